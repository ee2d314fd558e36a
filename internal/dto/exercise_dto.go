package dto

import "time"

// ExerciseView is an assignment as seen by one student, annotated with a
// display status and the explicit lifecycle state it derives from.
type ExerciseView struct {
	ID          uint      `json:"id"`
	Title       string    `json:"title"`
	Subtitle    string    `json:"subtitle"`
	Description string    `json:"description"`
	Type        string    `json:"type"`
	OpenDate    time.Time `json:"open_date"`
	Deadline    time.Time `json:"deadline"`
	HasFile     bool      `json:"has_file"`
	Status      string    `json:"status"`
	Lifecycle   string    `json:"lifecycle"`
}

// ExerciseDetail is the assignment detail view for a student.
type ExerciseDetail struct {
	Exercise   ExerciseView       `json:"exercise"`
	Submission *SubmissionSummary `json:"submission,omitempty"`
	Grade      *float64           `json:"grade,omitempty"`
}
