package dto

// EvaluationResponse is an automatic grading suggestion for a submission.
type EvaluationResponse struct {
	SubmissionID   uint     `json:"submission_id"`
	SuggestedGrade float64  `json:"suggested_grade"`
	Errors         []string `json:"errors"`
	CorrectAnswer  string   `json:"correct_answer"`
	Suggestions    []string `json:"suggestions"`
	SQLStatements  []string `json:"sql_statements,omitempty"`
}
