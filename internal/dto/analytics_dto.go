package dto

// ClassAnalytics summarises grades and submissions across the class.
type ClassAnalytics struct {
	AverageGrade     float64                    `json:"average_grade"`
	SuccessRate      int                        `json:"success_rate"`
	GradeCount       int64                      `json:"grade_count"`
	StudentCount     int                        `json:"student_count"`
	PublishedCount   int64                      `json:"published_count"`
	SubmissionCount  int64                      `json:"submission_count"`
	AssignmentTotals []AssignmentSubmissionStat `json:"assignment_totals"`
}

// AssignmentSubmissionStat is the submission count of one assignment.
type AssignmentSubmissionStat struct {
	AssignmentID uint   `json:"assignment_id"`
	Title        string `json:"title"`
	Submissions  int64  `json:"submissions"`
}
