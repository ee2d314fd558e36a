package models

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

// Audited actions. The prefix before the dot is the entity type.
const (
	ActionSubmissionUpserted  = "submission.upserted"
	ActionSubmissionEvaluated = "submission.evaluated"
	ActionGradeUpserted       = "grade.upserted"
	ActionGradeDeleted        = "grade.deleted"
	ActionAssignmentCreated   = "assignment.created"
	ActionAssignmentUpdated   = "assignment.updated"
	ActionAssignmentDeleted   = "assignment.deleted"
	ActionAssignmentPublished = "assignment.published"
	ActionAssignmentHidden    = "assignment.unpublished"
	ActionStudentActivated    = "student.activated"
	ActionStudentDeactivated  = "student.deactivated"
)

// ActivityLog is one row of the portal audit trail: who changed which
// submission, grade, assignment or account, and during which request.
type ActivityLog struct {
	ID            uint              `gorm:"primaryKey" json:"id"`
	ActorID       uint              `gorm:"not null;index:idx_activity_actor" json:"actor_id"`
	ActorRole     string            `gorm:"size:32;not null" json:"actor_role"`
	Action        string            `gorm:"size:64;not null;index:idx_activity_action" json:"action"`
	EntityType    string            `gorm:"size:32;not null;index:idx_activity_entity,priority:1" json:"entity_type"`
	EntityID      *uint             `gorm:"index:idx_activity_entity,priority:2" json:"entity_id"`
	CorrelationID string            `gorm:"size:128" json:"correlation_id,omitempty"`
	Metadata      datatypes.JSONMap `gorm:"type:json" json:"metadata"`
	CreatedAt     time.Time         `gorm:"index" json:"created_at"`
}

// ActionEntity returns the entity type encoded in an action name.
func ActionEntity(action string) string {
	entity, _, found := strings.Cut(action, ".")
	if !found {
		return ""
	}
	return entity
}
