package dto

import "time"

// ViewEvent announces that cached views became stale. StudentID 0 means the
// event concerns every student.
type ViewEvent struct {
	AssignmentID uint      `json:"assignment_id,omitempty"`
	StudentID    uint      `json:"student_id,omitempty"`
	Views        []string  `json:"views"`
	Reason       string    `json:"reason"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// Concerns reports whether the event applies to studentID.
func (e ViewEvent) Concerns(studentID uint) bool {
	return e.StudentID == 0 || e.StudentID == studentID
}
