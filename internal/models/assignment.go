package models

import "time"

// Assignment publish states.
const (
	AssignmentStatusPublished = "published"
	AssignmentStatusDraft     = "draft"
)

// Assignment is a subject ("sujet") published by a professor.
type Assignment struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Title       string    `gorm:"size:255" json:"title"`
	Subtitle    string    `gorm:"size:255" json:"subtitle"`
	Description string    `gorm:"type:text" json:"description"`
	Type        string    `gorm:"size:64" json:"type"`
	Status      string    `gorm:"size:16;not null;default:draft;index" json:"status"`
	OpenDate    time.Time `gorm:"not null" json:"open_date"`
	Deadline    time.Time `gorm:"not null;index" json:"deadline"`
	ProfessorID *uint     `gorm:"index" json:"professor_id"`
	Payload     []byte    `json:"-"`
	FileName    string    `gorm:"size:255" json:"file_name"`
	MimeType    string    `gorm:"size:128" json:"mime_type"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IsPublished reports whether students can see the assignment.
func (a Assignment) IsPublished() bool {
	return a.Status == AssignmentStatusPublished
}

// IsPastDue returns true once the deadline has been reached.
func (a Assignment) IsPastDue(reference time.Time) bool {
	return !reference.Before(a.Deadline)
}

// IsOpen reports whether reference falls in [OpenDate, Deadline).
func (a Assignment) IsOpen(reference time.Time) bool {
	return !reference.Before(a.OpenDate) && reference.Before(a.Deadline)
}

// HasPayload reports whether a prompt file is attached.
func (a Assignment) HasPayload() bool {
	return len(a.Payload) > 0
}
