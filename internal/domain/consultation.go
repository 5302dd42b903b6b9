package domain

import "time"

// ConsultationStatus enumerates lifecycle states for consultations.
type ConsultationStatus string

const (
	ConsultationStatusPending   ConsultationStatus = "PENDING"
	ConsultationStatusScheduled ConsultationStatus = "SCHEDULED"
	ConsultationStatusActive    ConsultationStatus = "ACTIVE"
	ConsultationStatusClosed    ConsultationStatus = "CLOSED"
)

// ConsultationOutcome is the terminal result recorded when a consultation closes.
type ConsultationOutcome string

const (
	OutcomeSuccess   ConsultationOutcome = "SUCCESS"
	OutcomeFailure   ConsultationOutcome = "FAILURE"
	OutcomeCancelled ConsultationOutcome = "CANCELLED"
)

// Consultation is the aggregate for a telehealth appointment between a
// customer's pet and a veterinarian. Outcome is non-nil only when the
// status is CLOSED; EndedAt is set by the closing transition.
type Consultation struct {
	ID                 string
	ConsultationNumber int64
	CustomerID         string
	VetID              string
	PetID              string
	Status             ConsultationStatus
	Outcome            *ConsultationOutcome
	ScheduledAt        *time.Time
	StartedAt          *time.Time
	EndedAt            *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// closableFrom lists statuses from which the documentation-completion path
// may close a consultation. Closing from PENDING/SCHEDULED covers deferred
// documentation, where the vet writes the record after the call ended
// without the consultation ever being marked active.
var closableFrom = map[ConsultationStatus]bool{
	ConsultationStatusPending:   true,
	ConsultationStatusScheduled: true,
	ConsultationStatusActive:    true,
}

// CanClose reports whether a consultation in the given status may be closed.
func CanClose(status ConsultationStatus) bool {
	return closableFrom[status]
}
