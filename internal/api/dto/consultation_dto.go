package dto

import (
	"time"

	"github.com/vetlink/consultation-service/internal/domain"
)

// ConsultationResponse is the detail view of a consultation.
type ConsultationResponse struct {
	ID                 string                      `json:"id"`
	ConsultationNumber int64                       `json:"consultation_number"`
	CustomerID         string                      `json:"customer_id"`
	VetID              string                      `json:"vet_id"`
	PetID              string                      `json:"pet_id"`
	Status             domain.ConsultationStatus   `json:"status"`
	Outcome            *domain.ConsultationOutcome `json:"outcome,omitempty"`
	ScheduledAt        *time.Time                  `json:"scheduled_at,omitempty"`
	StartedAt          *time.Time                  `json:"started_at,omitempty"`
	EndedAt            *time.Time                  `json:"ended_at,omitempty"`
	CreatedAt          time.Time                   `json:"created_at"`
	UpdatedAt          time.Time                   `json:"updated_at"`
}

// HistoryEntryResponse is one audit-trail row.
type HistoryEntryResponse struct {
	ID             string                        `json:"id"`
	ConsultationID string                        `json:"consultation_id"`
	ChangedByType  domain.SubjectType            `json:"changed_by_type"`
	ChangedByID    *string                       `json:"changed_by_id,omitempty"`
	ChangeType     domain.ConsultationChangeType `json:"change_type"`
	OldValue       map[string]any                `json:"old_value"`
	NewValue       map[string]any                `json:"new_value"`
	CreatedAt      time.Time                     `json:"created_at"`
}

// NewHistoryEntryResponse maps an audit entry.
func NewHistoryEntryResponse(h *domain.ConsultationHistory) HistoryEntryResponse {
	return HistoryEntryResponse{
		ID:             h.ID,
		ConsultationID: h.ConsultationID,
		ChangedByType:  h.ChangedByType,
		ChangedByID:    h.ChangedByID,
		ChangeType:     h.ChangeType,
		OldValue:       h.OldValue,
		NewValue:       h.NewValue,
		CreatedAt:      h.CreatedAt,
	}
}

// NewConsultationResponse maps the domain aggregate.
func NewConsultationResponse(c *domain.Consultation) ConsultationResponse {
	return ConsultationResponse{
		ID:                 c.ID,
		ConsultationNumber: c.ConsultationNumber,
		CustomerID:         c.CustomerID,
		VetID:              c.VetID,
		PetID:              c.PetID,
		Status:             c.Status,
		Outcome:            c.Outcome,
		ScheduledAt:        c.ScheduledAt,
		StartedAt:          c.StartedAt,
		EndedAt:            c.EndedAt,
		CreatedAt:          c.CreatedAt,
		UpdatedAt:          c.UpdatedAt,
	}
}
