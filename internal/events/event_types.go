package events

import (
	"time"

	"github.com/vetlink/consultation-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventConsultationCompleted EventType = "consultation_completed"
	EventSoapNoteSaved         EventType = "soap_note_saved"
	EventFollowUpThreadCreated EventType = "followup_thread_created"
	EventFollowUpMessageSent   EventType = "followup_message_sent"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Type       domain.SubjectType `json:"type"`
	CustomerID *string            `json:"customer_id,omitempty"`
	VetID      *string            `json:"vet_id,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID             string      `json:"id"`
	Type           EventType   `json:"type"`
	ConsultationID string      `json:"consultation_id"`
	Actor          Actor       `json:"actor"`
	Timestamp      time.Time   `json:"timestamp"`
	Payload        interface{} `json:"payload"`
}

// ConsultationCompletedPayload payload.
type ConsultationCompletedPayload struct {
	OldStatus domain.ConsultationStatus  `json:"old_status"`
	Outcome   domain.ConsultationOutcome `json:"outcome"`
	EndedAt   time.Time                  `json:"ended_at"`
}

// SoapNoteSavedPayload payload.
type SoapNoteSavedPayload struct {
	SoapNoteID string `json:"soap_note_id"`
	Trigger    string `json:"trigger"`
}

// FollowUpThreadCreatedPayload payload.
type FollowUpThreadCreatedPayload struct {
	ThreadID  string    `json:"thread_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// FollowUpMessageSentPayload payload.
type FollowUpMessageSentPayload struct {
	ThreadID       string                     `json:"thread_id"`
	MessageID      string                     `json:"message_id"`
	MessageType    domain.FollowUpMessageType `json:"message_type"`
	SenderRole     domain.SenderRole          `json:"sender_role"`
	ContentPreview string                     `json:"content_preview"`
}
