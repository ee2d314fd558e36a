package dto

import (
	"time"

	"github.com/noah-isme/sujet-portal-api/internal/models"
)

// SubmitRequest carries the form fields of a submission upload.
type SubmitRequest struct {
	AssignmentID uint   `form:"assignment_id" json:"assignment_id" validate:"required"`
	Comment      string `form:"comment" json:"comment" validate:"omitempty,max=5000"`
}

// SubmissionAck acknowledges a stored submission.
type SubmissionAck struct {
	ID           uint      `json:"id"`
	AssignmentID uint      `json:"assignment_id"`
	SubmittedAt  time.Time `json:"submitted_at"`
	Replaced     bool      `json:"replaced"`
}

// SubmissionFilter narrows professor submission listings.
type SubmissionFilter struct {
	AssignmentID *uint `validate:"omitempty,gt=0"`
	StudentID    *uint `validate:"omitempty,gt=0"`
	Mine         bool
}

// SubmissionSummary describes a submission without its payload.
type SubmissionSummary struct {
	ID           uint      `json:"id"`
	AssignmentID uint      `json:"assignment_id"`
	StudentID    uint      `json:"student_id"`
	FileName     string    `json:"file_name"`
	MimeType     string    `json:"mime_type"`
	SizeBytes    int64     `json:"size_bytes"`
	Comment      string    `json:"comment"`
	SubmittedAt  time.Time `json:"submitted_at"`
	ArchiveURL   string    `json:"archive_url,omitempty"`
}

// SubmissionResponse is a submission listed for staff with its context.
type SubmissionResponse struct {
	SubmissionSummary
	AssignmentTitle string `json:"assignment_title"`
	StudentName     string `json:"student_name"`
	StudentEmail    string `json:"student_email"`
}

// SubmissionFile is a payload ready for download.
type SubmissionFile struct {
	FileName string
	MimeType string
	Content  []byte
}

// NewSubmissionSummary converts a model into a summary DTO.
func NewSubmissionSummary(model models.Submission) SubmissionSummary {
	return SubmissionSummary{
		ID:           model.ID,
		AssignmentID: model.AssignmentID,
		StudentID:    model.StudentID,
		FileName:     model.FileName,
		MimeType:     model.MimeType,
		SizeBytes:    model.SizeBytes,
		Comment:      model.Comment,
		SubmittedAt:  model.SubmittedAt,
		ArchiveURL:   model.ArchiveURL,
	}
}

// NewSubmissionResponse converts a model with preloaded relations into a DTO.
func NewSubmissionResponse(model models.Submission) SubmissionResponse {
	return SubmissionResponse{
		SubmissionSummary: NewSubmissionSummary(model),
		AssignmentTitle:   model.Assignment.Title,
		StudentName:       model.Student.FullName(),
		StudentEmail:      model.Student.Email,
	}
}

// NewSubmissionResponseSlice converts a slice of models into DTOs.
func NewSubmissionResponseSlice(items []models.Submission) []SubmissionResponse {
	responses := make([]SubmissionResponse, 0, len(items))
	for _, item := range items {
		responses = append(responses, NewSubmissionResponse(item))
	}
	return responses
}
