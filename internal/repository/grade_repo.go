package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/sujet-portal-api/internal/models"
)

// StudentGrades groups the grade values of one student.
type StudentGrades struct {
	StudentID uint
	Values    []float64
}

// GradeSummary aggregates grades across the whole class.
type GradeSummary struct {
	Count   int64
	Passing int64
	Average float64
}

// GradeRepository persists grades ("notes").
type GradeRepository interface {
	ListByStudent(ctx context.Context, studentID uint) ([]models.Grade, error)
	ListStudentsWithGrades(ctx context.Context, studentIDs []uint) ([]StudentGrades, error)
	Upsert(ctx context.Context, grade *models.Grade) error
	Delete(ctx context.Context, studentID, assignmentID uint) error
	Summary(ctx context.Context) (GradeSummary, error)
}

type gradeRepository struct {
	db *gorm.DB
}

// NewGradeRepository constructs a grade repository.
func NewGradeRepository(db *gorm.DB) GradeRepository {
	return &gradeRepository{db: db}
}

func (r *gradeRepository) ListByStudent(ctx context.Context, studentID uint) ([]models.Grade, error) {
	var grades []models.Grade
	err := r.db.WithContext(ctx).
		Preload("Assignment", func(db *gorm.DB) *gorm.DB {
			return db.Omit("payload")
		}).
		Where("student_id = ?", studentID).
		Order("assignment_id ASC").
		Find(&grades).Error
	if err != nil {
		return nil, err
	}
	return grades, nil
}

// ListStudentsWithGrades returns one entry per requested student, in the
// order given, including students without any grade.
func (r *gradeRepository) ListStudentsWithGrades(ctx context.Context, studentIDs []uint) ([]StudentGrades, error) {
	result := make([]StudentGrades, 0, len(studentIDs))
	if len(studentIDs) == 0 {
		return result, nil
	}

	type row struct {
		StudentID uint
		Value     float64
	}
	var rows []row
	err := r.db.WithContext(ctx).Model(&models.Grade{}).
		Select("student_id, value").
		Where("student_id IN ?", studentIDs).
		Order("student_id ASC, id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	byStudent := make(map[uint][]float64, len(studentIDs))
	for _, item := range rows {
		byStudent[item.StudentID] = append(byStudent[item.StudentID], item.Value)
	}
	for _, id := range studentIDs {
		result = append(result, StudentGrades{StudentID: id, Values: byStudent[id]})
	}
	return result, nil
}

// Upsert stores the grade, replacing any previous value for the same
// (student, assignment) pair.
func (r *gradeRepository) Upsert(ctx context.Context, grade *models.Grade) error {
	err := r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "student_id"}, {Name: "assignment_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "graded_by", "updated_at"}),
		}).
		Create(grade).Error
	if err != nil {
		return err
	}

	return r.db.WithContext(ctx).
		Where("student_id = ? AND assignment_id = ?", grade.StudentID, grade.AssignmentID).
		First(grade).Error
}

func (r *gradeRepository) Delete(ctx context.Context, studentID, assignmentID uint) error {
	result := r.db.WithContext(ctx).
		Where("student_id = ? AND assignment_id = ?", studentID, assignmentID).
		Delete(&models.Grade{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *gradeRepository) Summary(ctx context.Context) (GradeSummary, error) {
	var summary GradeSummary
	err := r.db.WithContext(ctx).Model(&models.Grade{}).
		Select("COUNT(*) AS count, COALESCE(SUM(CASE WHEN value >= ? THEN 1 ELSE 0 END), 0) AS passing, COALESCE(AVG(value), 0) AS average", models.PassingGrade).
		Scan(&summary).Error
	return summary, err
}
