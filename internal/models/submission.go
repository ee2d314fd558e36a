package models

import "time"

// Submission is a student's file for an assignment. The pair
// (StudentID, AssignmentID) is unique: resubmitting overwrites the row.
type Submission struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	StudentID    uint       `gorm:"not null;uniqueIndex:idx_submission_student_assignment" json:"student_id"`
	AssignmentID uint       `gorm:"not null;uniqueIndex:idx_submission_student_assignment;index" json:"assignment_id"`
	Payload      []byte     `gorm:"not null" json:"-"`
	FileName     string     `gorm:"size:255" json:"file_name"`
	MimeType     string     `gorm:"size:128" json:"mime_type"`
	SizeBytes    int64      `json:"size_bytes"`
	Comment      string     `gorm:"type:text" json:"comment"`
	SubmittedAt  time.Time  `gorm:"not null" json:"submitted_at"`
	ArchiveURL   string     `gorm:"size:512" json:"archive_url"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	Assignment   Assignment `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Student      User       `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}
