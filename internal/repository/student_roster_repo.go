package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/noah-isme/sujet-portal-api/internal/models"
)

// StudentFilter defines filters for listing the student roster.
type StudentFilter struct {
	Search   string
	Active   *bool
	Sort     string
	Page     int
	PageSize int
}

// StudentRosterRepository lists and manages accounts holding the student role.
type StudentRosterRepository interface {
	List(ctx context.Context, filter StudentFilter) ([]models.User, int64, error)
	GetByID(ctx context.Context, id uint) (models.User, error)
	SetActive(ctx context.Context, id uint, active bool) error
}

type studentRosterRepository struct {
	db *gorm.DB
}

// NewStudentRosterRepository constructs the roster repository.
func NewStudentRosterRepository(db *gorm.DB) StudentRosterRepository {
	return &studentRosterRepository{db: db}
}

func (r *studentRosterRepository) studentIDs(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&models.UserRole{}).
		Select("user_roles.user_id").
		Joins("JOIN roles ON roles.id = user_roles.role_id").
		Where("roles.name = ?", models.RoleStudent)
}

func (r *studentRosterRepository) List(ctx context.Context, filter StudentFilter) ([]models.User, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.User{}).Where("id IN (?)", r.studentIDs(ctx))

	if search := strings.ToLower(strings.TrimSpace(filter.Search)); search != "" {
		like := "%" + search + "%"
		query = query.Where(
			"LOWER(email) LIKE ? OR LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ? OR LOWER(student_number) LIKE ?",
			like, like, like, like,
		)
	}

	if filter.Active != nil {
		query = query.Where("active = ?", *filter.Active)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = query.Order(normalizeStudentSort(filter.Sort)).Order("id ASC").
		Scopes(paginate(filter.Page, filter.PageSize))

	var students []models.User
	if err := query.Find(&students).Error; err != nil {
		return nil, 0, err
	}

	return students, total, nil
}

func (r *studentRosterRepository) GetByID(ctx context.Context, id uint) (models.User, error) {
	var student models.User
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		Where("id IN (?)", r.studentIDs(ctx)).
		First(&student).Error
	if err != nil {
		return models.User{}, err
	}
	return student, nil
}

func (r *studentRosterRepository) SetActive(ctx context.Context, id uint, active bool) error {
	result := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Where("id IN (?)", r.studentIDs(ctx)).
		Update("active", active)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func normalizeStudentSort(sort string) string {
	switch strings.ToLower(strings.TrimSpace(sort)) {
	case "email", "email:asc":
		return "email ASC"
	case "-email", "email:desc":
		return "email DESC"
	case "created_at", "created_at:asc":
		return "created_at ASC"
	case "-created_at", "created_at:desc":
		return "created_at DESC"
	case "student_number", "student_number:asc":
		return "student_number ASC"
	default:
		return "last_name ASC, first_name ASC"
	}
}
