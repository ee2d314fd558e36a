package dto

import (
	"time"

	"github.com/noah-isme/sujet-portal-api/internal/models"
)

const isoLayout = time.RFC3339

// AssignmentCreateRequest describes the payload for creating a new assignment.
type AssignmentCreateRequest struct {
	Title       string `form:"title" json:"title" validate:"required,min=3,max=255"`
	Subtitle    string `form:"subtitle" json:"subtitle" validate:"omitempty,max=255"`
	Description string `form:"description" json:"description" validate:"omitempty,max=20000"`
	Type        string `form:"type" json:"type" validate:"omitempty,max=64"`
	Status      string `form:"status" json:"status" validate:"omitempty,oneof=published draft"`
	OpenDate    string `form:"open_date" json:"open_date" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	Deadline    string `form:"deadline" json:"deadline" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
}

// AssignmentUpdateRequest describes the payload for updating an assignment.
type AssignmentUpdateRequest struct {
	Title       *string `form:"title" json:"title" validate:"omitempty,min=3,max=255"`
	Subtitle    *string `form:"subtitle" json:"subtitle" validate:"omitempty,max=255"`
	Description *string `form:"description" json:"description" validate:"omitempty,max=20000"`
	Type        *string `form:"type" json:"type" validate:"omitempty,max=64"`
	Status      *string `form:"status" json:"status" validate:"omitempty,oneof=published draft"`
	OpenDate    *string `form:"open_date" json:"open_date" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	Deadline    *string `form:"deadline" json:"deadline" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
}

// AssignmentListRequest carries professor listing filters.
type AssignmentListRequest struct {
	Search   string `validate:"omitempty,max=255"`
	Status   string `validate:"omitempty,oneof=published draft"`
	Sort     string
	Page     int `validate:"gte=0"`
	PageSize int `validate:"gte=0,lte=100"`
	Mine     bool
}

// AssignmentFile is an uploaded prompt or submission file read into memory.
type AssignmentFile struct {
	Name    string
	Content []byte
}

// AssignmentResponse is the serialized representation returned to API clients.
type AssignmentResponse struct {
	ID          uint      `json:"id"`
	Title       string    `json:"title"`
	Subtitle    string    `json:"subtitle"`
	Description string    `json:"description"`
	Type        string    `json:"type"`
	Status      string    `json:"status"`
	OpenDate    time.Time `json:"open_date"`
	Deadline    time.Time `json:"deadline"`
	ProfessorID *uint     `json:"professor_id,omitempty"`
	FileName    string    `json:"file_name,omitempty"`
	MimeType    string    `json:"mime_type,omitempty"`
	HasFile     bool      `json:"has_file"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// AssignmentListResponse wraps a page of assignments.
type AssignmentListResponse struct {
	Items      []AssignmentResponse `json:"items"`
	Pagination PaginationMeta       `json:"pagination"`
}

// NewAssignmentResponse converts a model into a DTO.
func NewAssignmentResponse(model models.Assignment) AssignmentResponse {
	return AssignmentResponse{
		ID:          model.ID,
		Title:       model.Title,
		Subtitle:    model.Subtitle,
		Description: model.Description,
		Type:        model.Type,
		Status:      model.Status,
		OpenDate:    model.OpenDate,
		Deadline:    model.Deadline,
		ProfessorID: model.ProfessorID,
		FileName:    model.FileName,
		MimeType:    model.MimeType,
		HasFile:     model.FileName != "" || model.HasPayload(),
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}

// NewAssignmentResponseSlice converts a slice of models into DTOs.
func NewAssignmentResponseSlice(assignments []models.Assignment) []AssignmentResponse {
	responses := make([]AssignmentResponse, 0, len(assignments))
	for _, assignment := range assignments {
		responses = append(responses, NewAssignmentResponse(assignment))
	}

	return responses
}

// ParseTimestamp parses an RFC3339 timestamp as sent by clients.
func ParseTimestamp(value string) (time.Time, error) {
	return time.Parse(isoLayout, value)
}
