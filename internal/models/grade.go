package models

import "time"

// PassingGrade is the lowest value counted as a pass on the 0-20 scale.
const PassingGrade = 10.0

// Grade ("note") is the value a professor gave a student for an assignment.
// It exists independently of any submission.
type Grade struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	StudentID    uint       `gorm:"not null;uniqueIndex:idx_grade_student_assignment" json:"student_id"`
	AssignmentID uint       `gorm:"not null;uniqueIndex:idx_grade_student_assignment;index" json:"assignment_id"`
	Value        float64    `gorm:"not null" json:"value"`
	GradedBy     *uint      `json:"graded_by"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	Assignment   Assignment `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Student      User       `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// IsPassing reports whether the grade reaches PassingGrade.
func (g Grade) IsPassing() bool {
	return g.Value >= PassingGrade
}
