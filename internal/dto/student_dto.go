package dto

import (
	"time"

	"github.com/noah-isme/sujet-portal-api/internal/models"
)

// StudentListRequest carries roster filters.
type StudentListRequest struct {
	Search   string `validate:"omitempty,max=255"`
	Active   *bool
	Sort     string
	Page     int `validate:"gte=0"`
	PageSize int `validate:"gte=0,lte=100"`
}

// StudentUpdateRequest toggles a student account.
type StudentUpdateRequest struct {
	Active *bool `json:"active" validate:"required"`
}

// StudentResponse is a roster entry.
type StudentResponse struct {
	ID            uint      `json:"id"`
	Email         string    `json:"email"`
	FirstName     string    `json:"first_name"`
	LastName      string    `json:"last_name"`
	StudentNumber string    `json:"student_number,omitempty"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"created_at"`
}

// StudentListResponse wraps a page of the roster.
type StudentListResponse struct {
	Items      []StudentResponse `json:"items"`
	Pagination PaginationMeta    `json:"pagination"`
}

// NewStudentResponse converts a user into a roster entry.
func NewStudentResponse(user models.User) StudentResponse {
	return StudentResponse{
		ID:            user.ID,
		Email:         user.Email,
		FirstName:     user.FirstName,
		LastName:      user.LastName,
		StudentNumber: user.StudentNumber,
		Active:        user.Active,
		CreatedAt:     user.CreatedAt,
	}
}
