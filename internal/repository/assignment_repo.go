package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/noah-isme/sujet-portal-api/internal/models"
)

// AssignmentFilter narrows the professor assignment listing.
type AssignmentFilter struct {
	Search      string
	Status      string
	ProfessorID *uint
	Sort        string
	Page        int
	PageSize    int
}

func (f AssignmentFilter) scope(db *gorm.DB) *gorm.DB {
	if term := strings.ToLower(strings.TrimSpace(f.Search)); term != "" {
		pattern := "%" + term + "%"
		db = db.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", pattern, pattern)
	}
	if status := strings.ToLower(strings.TrimSpace(f.Status)); status != "" {
		db = db.Where("status = ?", status)
	}
	if f.ProfessorID != nil {
		db = db.Where("professor_id = ?", *f.ProfessorID)
	}
	return db
}

// AssignmentRepository defines persistence operations for assignments.
type AssignmentRepository interface {
	ListPublished(ctx context.Context) ([]models.Assignment, error)
	CountPublished(ctx context.Context) (int64, error)
	ListWithFilter(ctx context.Context, filter AssignmentFilter) ([]models.Assignment, int64, error)
	GetByID(ctx context.Context, id uint) (models.Assignment, error)
	GetByTitle(ctx context.Context, title string) (models.Assignment, error)
	Create(ctx context.Context, assignment *models.Assignment) error
	Update(ctx context.Context, assignment *models.Assignment) error
	Delete(ctx context.Context, id uint) error
}

type assignmentRepository struct {
	db *gorm.DB
}

// NewAssignmentRepository instantiates a GORM-backed repository.
func NewAssignmentRepository(db *gorm.DB) AssignmentRepository {
	return &assignmentRepository{db: db}
}

// listing queries never load the prompt file.
func (r *assignmentRepository) listQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Assignment{}).Omit("payload")
}

func (r *assignmentRepository) ListPublished(ctx context.Context) ([]models.Assignment, error) {
	var assignments []models.Assignment
	err := r.listQuery(ctx).
		Where("status = ?", models.AssignmentStatusPublished).
		Order("deadline DESC, id DESC").
		Find(&assignments).Error
	return assignments, err
}

func (r *assignmentRepository) CountPublished(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.Assignment{}).
		Where("status = ?", models.AssignmentStatusPublished).
		Count(&total).Error
	return total, err
}

func (r *assignmentRepository) ListWithFilter(ctx context.Context, filter AssignmentFilter) ([]models.Assignment, int64, error) {
	query := r.listQuery(ctx).Scopes(filter.scope)

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var assignments []models.Assignment
	err := query.Order(assignmentOrder(filter.Sort)).Order("id DESC").
		Scopes(paginate(filter.Page, filter.PageSize)).
		Find(&assignments).Error
	if err != nil {
		return nil, 0, err
	}
	return assignments, total, nil
}

func (r *assignmentRepository) GetByID(ctx context.Context, id uint) (models.Assignment, error) {
	var assignment models.Assignment
	if err := r.db.WithContext(ctx).First(&assignment, id).Error; err != nil {
		return models.Assignment{}, err
	}

	return assignment, nil
}

func (r *assignmentRepository) GetByTitle(ctx context.Context, title string) (models.Assignment, error) {
	var assignment models.Assignment
	err := r.listQuery(ctx).
		Where("title = ?", strings.TrimSpace(title)).
		Order("id ASC").
		First(&assignment).Error
	if err != nil {
		return models.Assignment{}, err
	}

	return assignment, nil
}

func (r *assignmentRepository) Create(ctx context.Context, assignment *models.Assignment) error {
	return r.db.WithContext(ctx).Create(assignment).Error
}

func (r *assignmentRepository) Update(ctx context.Context, assignment *models.Assignment) error {
	return r.db.WithContext(ctx).Save(assignment).Error
}

// Delete removes an assignment with its submissions and grades. The
// dependents are deleted explicitly so the outcome does not hinge on the
// driver enforcing the cascade constraints.
func (r *assignmentRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("assignment_id = ?", id).Delete(&models.Grade{}).Error; err != nil {
			return err
		}
		if err := tx.Where("assignment_id = ?", id).Delete(&models.Submission{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.Assignment{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

var assignmentSortColumns = map[string]string{
	"deadline":   "deadline",
	"open_date":  "open_date",
	"updated_at": "updated_at",
	"title":      "title",
}

// assignmentOrder accepts "column" or "-column" and falls back to the latest
// deadline first.
func assignmentOrder(sort string) string {
	key := strings.ToLower(strings.TrimSpace(sort))
	direction := "ASC"
	if strings.HasPrefix(key, "-") {
		key, direction = key[1:], "DESC"
	}
	column, ok := assignmentSortColumns[key]
	if !ok {
		return "deadline DESC"
	}
	return column + " " + direction
}
