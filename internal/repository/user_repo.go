package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/sujet-portal-api/internal/models"
)

// UserRepository provides access to accounts and their roles.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (models.User, error)
	GetByEmail(ctx context.Context, email string) (models.User, error)
	Create(ctx context.Context, user *models.User, roles ...string) error
	ListStudentIDs(ctx context.Context) ([]uint, error)
	ListStudents(ctx context.Context) ([]models.User, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository constructs a user repository.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) withRoles(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Preload("Roles", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	}).Preload("Roles.Role")
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (models.User, error) {
	var user models.User
	if err := r.withRoles(ctx).First(&user, id).Error; err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (models.User, error) {
	var user models.User
	normalized := strings.ToLower(strings.TrimSpace(email))
	if err := r.withRoles(ctx).Where("email = ?", normalized).First(&user).Error; err != nil {
		return models.User{}, err
	}
	return user, nil
}

// Create stores the user and grants roles in the given order, all in one
// transaction. Missing roles are created on the fly.
func (r *userRepository) Create(ctx context.Context, user *models.User, roles ...string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user.Email = strings.ToLower(strings.TrimSpace(user.Email))
		user.Roles = nil
		if err := tx.Create(user).Error; err != nil {
			return err
		}

		for position, name := range roles {
			role, err := ensureRole(tx, name)
			if err != nil {
				return err
			}
			link := models.UserRole{UserID: user.ID, RoleID: role.ID, Position: position}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Omit(clause.Associations).Create(&link).Error; err != nil {
				return err
			}
			link.Role = role
			user.Roles = append(user.Roles, link)
		}
		return nil
	})
}

func (r *userRepository) ListStudentIDs(ctx context.Context) ([]uint, error) {
	var ids []uint
	err := r.studentQuery(ctx).
		Distinct("users.id").
		Order("users.id ASC").
		Pluck("users.id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *userRepository) ListStudents(ctx context.Context) ([]models.User, error) {
	var ids []uint
	if err := r.studentQuery(ctx).Distinct("users.id").Pluck("users.id", &ids).Error; err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []models.User{}, nil
	}

	var users []models.User
	if err := r.withRoles(ctx).Where("id IN ?", ids).Order("last_name ASC, first_name ASC, id ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *userRepository) studentQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Joins("JOIN user_roles ON user_roles.user_id = users.id").
		Joins("JOIN roles ON roles.id = user_roles.role_id").
		Where("roles.name = ?", models.RoleStudent)
}

func ensureRole(tx *gorm.DB, name string) (models.Role, error) {
	role := models.Role{Name: strings.ToLower(strings.TrimSpace(name))}
	if err := tx.Where(models.Role{Name: role.Name}).FirstOrCreate(&role).Error; err != nil {
		return models.Role{}, err
	}
	return role, nil
}
