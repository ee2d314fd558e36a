package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/sujet-portal-api/internal/models"
)

// SubmissionFilter allows narrowing submission queries.
type SubmissionFilter struct {
	AssignmentID *uint
	StudentID    *uint
	ProfessorID  *uint
}

// AssignmentSubmissionCount is the number of submissions received by one assignment.
type AssignmentSubmissionCount struct {
	AssignmentID uint
	Total        int64
}

// SubmissionRepository defines data operations for submissions.
type SubmissionRepository interface {
	List(ctx context.Context, filter SubmissionFilter) ([]models.Submission, error)
	ListByStudent(ctx context.Context, studentID uint) ([]models.Submission, error)
	CountByStudent(ctx context.Context, studentID uint) (int64, error)
	CountByAssignment(ctx context.Context) ([]AssignmentSubmissionCount, error)
	GetByID(ctx context.Context, id uint) (models.Submission, error)
	FindByStudentAndAssignment(ctx context.Context, studentID, assignmentID uint) (models.Submission, error)
	Upsert(ctx context.Context, submission *models.Submission) error
	SetArchiveURL(ctx context.Context, id uint, url string) error
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository instantiates the repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

// metadataQuery loads submissions without their payload, with the owning
// assignment and student for listings.
func (r *submissionRepository) metadataQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Submission{}).
		Omit("payload").
		Preload("Assignment", func(db *gorm.DB) *gorm.DB {
			return db.Omit("payload")
		}).
		Preload("Student")
}

func (r *submissionRepository) List(ctx context.Context, filter SubmissionFilter) ([]models.Submission, error) {
	query := r.metadataQuery(ctx)

	if filter.AssignmentID != nil {
		query = query.Where("submissions.assignment_id = ?", *filter.AssignmentID)
	}

	if filter.StudentID != nil {
		query = query.Where("submissions.student_id = ?", *filter.StudentID)
	}

	if filter.ProfessorID != nil {
		query = query.Where("submissions.assignment_id IN (?)",
			r.db.Model(&models.Assignment{}).Select("id").Where("professor_id = ?", *filter.ProfessorID))
	}

	var submissions []models.Submission
	if err := query.Order("submitted_at DESC").Order("id DESC").Find(&submissions).Error; err != nil {
		return nil, err
	}

	return submissions, nil
}

func (r *submissionRepository) ListByStudent(ctx context.Context, studentID uint) ([]models.Submission, error) {
	var submissions []models.Submission
	err := r.db.WithContext(ctx).
		Omit("payload").
		Where("student_id = ?", studentID).
		Order("submitted_at DESC").
		Find(&submissions).Error
	if err != nil {
		return nil, err
	}
	return submissions, nil
}

func (r *submissionRepository) CountByStudent(ctx context.Context, studentID uint) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.Submission{}).
		Where("student_id = ?", studentID).
		Count(&total).Error
	return total, err
}

func (r *submissionRepository) CountByAssignment(ctx context.Context) ([]AssignmentSubmissionCount, error) {
	var rows []AssignmentSubmissionCount
	err := r.db.WithContext(ctx).Model(&models.Submission{}).
		Select("assignment_id, COUNT(*) AS total").
		Group("assignment_id").
		Order("assignment_id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *submissionRepository) GetByID(ctx context.Context, id uint) (models.Submission, error) {
	var submission models.Submission
	err := r.db.WithContext(ctx).
		Preload("Assignment", func(db *gorm.DB) *gorm.DB {
			return db.Omit("payload")
		}).
		First(&submission, id).Error
	if err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

func (r *submissionRepository) FindByStudentAndAssignment(ctx context.Context, studentID, assignmentID uint) (models.Submission, error) {
	var submission models.Submission
	err := r.db.WithContext(ctx).
		Omit("payload").
		Where("student_id = ? AND assignment_id = ?", studentID, assignmentID).
		First(&submission).Error
	if err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

// Upsert inserts the submission or, when the (student, assignment) pair
// already exists, overwrites it in the same statement. On return submission
// holds the stored row without its payload.
func (r *submissionRepository) Upsert(ctx context.Context, submission *models.Submission) error {
	err := r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "student_id"}, {Name: "assignment_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"payload", "file_name", "mime_type", "size_bytes", "comment", "submitted_at", "archive_url", "updated_at",
			}),
		}).
		Create(submission).Error
	if err != nil {
		return err
	}

	stored, err := r.FindByStudentAndAssignment(ctx, submission.StudentID, submission.AssignmentID)
	if err != nil {
		return err
	}
	*submission = stored
	return nil
}

func (r *submissionRepository) SetArchiveURL(ctx context.Context, id uint, url string) error {
	return r.db.WithContext(ctx).Model(&models.Submission{}).
		Where("id = ?", id).
		UpdateColumn("archive_url", url).Error
}
