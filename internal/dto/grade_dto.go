package dto

import (
	"time"

	"github.com/noah-isme/sujet-portal-api/internal/models"
)

// GradeUpsertRequest records a grade on the 0-20 scale.
type GradeUpsertRequest struct {
	StudentID    uint    `json:"student_id" validate:"required"`
	AssignmentID uint    `json:"assignment_id" validate:"required"`
	Value        float64 `json:"value" validate:"gte=0,lte=20"`
}

// GradeResponse serializes a grade.
type GradeResponse struct {
	ID              uint      `json:"id"`
	StudentID       uint      `json:"student_id"`
	AssignmentID    uint      `json:"assignment_id"`
	AssignmentTitle string    `json:"assignment_title,omitempty"`
	Value           float64   `json:"value"`
	Passing         bool      `json:"passing"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// NewGradeResponse converts a model into a DTO.
func NewGradeResponse(model models.Grade) GradeResponse {
	return GradeResponse{
		ID:              model.ID,
		StudentID:       model.StudentID,
		AssignmentID:    model.AssignmentID,
		AssignmentTitle: model.Assignment.Title,
		Value:           model.Value,
		Passing:         model.IsPassing(),
		UpdatedAt:       model.UpdatedAt,
	}
}

// NewGradeResponseSlice converts a slice of models into DTOs.
func NewGradeResponseSlice(items []models.Grade) []GradeResponse {
	responses := make([]GradeResponse, 0, len(items))
	for _, item := range items {
		responses = append(responses, NewGradeResponse(item))
	}
	return responses
}
