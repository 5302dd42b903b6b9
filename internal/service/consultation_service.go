package service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/vetlink/consultation-service/internal/domain"
	"github.com/vetlink/consultation-service/internal/repository"
	apperrors "github.com/vetlink/consultation-service/pkg/util/errorutil"
)

// ConsultationService owns the consultation status/outcome fields and
// validates transitions. Scheduling and cancellation live in the booking
// flow; the only transition in scope is closing via documentation
// completion.
type ConsultationService struct {
	consultations repository.ConsultationRepository
	history       repository.ConsultationHistoryRepository
	logger        *zap.Logger
	clock         func() time.Time
}

// NewConsultationService constructs the service.
func NewConsultationService(consultations repository.ConsultationRepository, history repository.ConsultationHistoryRepository, logger *zap.Logger) *ConsultationService {
	return &ConsultationService{
		consultations: consultations,
		history:       history,
		logger:        logger,
		clock:         time.Now,
	}
}

// WithClock overrides the time source. Test hook.
func (s *ConsultationService) WithClock(clock func() time.Time) *ConsultationService {
	s.clock = clock
	return s
}

// GetForSubject fetches a consultation, ensuring the caller participates
// in it.
func (s *ConsultationService) GetForSubject(ctx context.Context, subject domain.SubjectType, subjectID, consultationID string) (*domain.Consultation, error) {
	consultation, err := s.consultations.GetByID(ctx, consultationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("consultation", nil)
		}
		return nil, apperrors.MapError(err)
	}
	switch subject {
	case domain.SubjectTypeVet:
		if consultation.VetID != subjectID {
			return nil, apperrors.NewForbidden("consultation belongs to another vet")
		}
	case domain.SubjectTypeCustomer:
		if consultation.CustomerID != subjectID {
			return nil, apperrors.NewForbidden("consultation belongs to another customer")
		}
	default:
		return nil, apperrors.NewForbidden("unknown subject")
	}
	return consultation, nil
}

// History returns the audit trail for a consultation the caller
// participates in, oldest entry first.
func (s *ConsultationService) History(ctx context.Context, subject domain.SubjectType, subjectID, consultationID string) ([]domain.ConsultationHistory, error) {
	if _, err := s.GetForSubject(ctx, subject, subjectID, consultationID); err != nil {
		return nil, err
	}
	entries, err := s.history.ListByConsultation(ctx, consultationID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return entries, nil
}

// TransitionToClosed moves a consultation to CLOSED with the given
// outcome, setting ended_at. Allowed from PENDING, SCHEDULED and ACTIVE;
// re-closing with the same outcome is a no-op so orchestrator retries stay
// idempotent.
func (s *ConsultationService) TransitionToClosed(ctx context.Context, consultation *domain.Consultation, outcome domain.ConsultationOutcome, actorID string) (*domain.Consultation, error) {
	if consultation.Status == domain.ConsultationStatusClosed {
		if consultation.Outcome != nil && *consultation.Outcome == outcome {
			return consultation, nil
		}
		return nil, apperrors.NewConflict("consultation already closed with a different outcome", map[string]any{
			"consultation_id": consultation.ID,
		})
	}
	if !domain.CanClose(consultation.Status) {
		return nil, apperrors.NewConflict("consultation cannot be closed from its current status", map[string]any{
			"status": consultation.Status,
		})
	}

	now := s.clock()
	oldStatus := consultation.Status
	consultation.Status = domain.ConsultationStatusClosed
	consultation.Outcome = &outcome
	consultation.EndedAt = &now
	if err := s.consultations.UpdateStatus(ctx, consultation); err != nil {
		consultation.Status = oldStatus
		consultation.Outcome = nil
		consultation.EndedAt = nil
		return nil, apperrors.NewPersistenceError("consultation transition", err)
	}

	s.recordStatusChange(ctx, consultation.ID, actorID, oldStatus, outcome)
	return consultation, nil
}

// recordStatusChange appends the audit entry. The closure itself is the
// medical record of truth, so an audit write failure is logged, not
// propagated.
func (s *ConsultationService) recordStatusChange(ctx context.Context, consultationID, actorID string, oldStatus domain.ConsultationStatus, outcome domain.ConsultationOutcome) {
	if s.history == nil {
		return
	}
	entry := &domain.ConsultationHistory{
		ConsultationID: consultationID,
		ChangedByType:  domain.SubjectTypeVet,
		ChangedByID:    &actorID,
		ChangeType:     domain.ChangeTypeStatus,
		OldValue: map[string]any{
			"status": oldStatus,
		},
		NewValue: map[string]any{
			"status":  domain.ConsultationStatusClosed,
			"outcome": outcome,
		},
	}
	if err := s.history.Create(ctx, entry); err != nil {
		s.logger.Warn("failed to record consultation history",
			zap.String("consultation_id", consultationID), zap.Error(err))
	}
}
