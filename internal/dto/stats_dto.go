package dto

// StudentStats is the statistics block of the student dashboard.
type StudentStats struct {
	Completed     int64   `json:"completed"`
	Pending       int64   `json:"pending"`
	AverageGrade  float64 `json:"average_grade"`
	HasGrades     bool    `json:"has_grades"`
	Rank          int     `json:"rank"`
	TotalStudents int     `json:"total_students"`
	PassRate      int     `json:"pass_rate"`
}
