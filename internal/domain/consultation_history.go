package domain

import "time"

// ConsultationChangeType captures what changed in a history entry.
type ConsultationChangeType string

const (
	ChangeTypeStatus  ConsultationChangeType = "STATUS_CHANGE"
	ChangeTypeOutcome ConsultationChangeType = "OUTCOME_CHANGE"
)

// ConsultationHistory is an immutable audit trail entry for a consultation
// transition.
type ConsultationHistory struct {
	ID             string
	ConsultationID string
	ChangedByType  SubjectType
	ChangedByID    *string
	ChangeType     ConsultationChangeType
	OldValue       map[string]any
	NewValue       map[string]any
	CreatedAt      time.Time
}
