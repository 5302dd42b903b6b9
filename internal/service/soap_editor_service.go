package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/vetlink/consultation-service/internal/domain"
	"github.com/vetlink/consultation-service/internal/events"
	"github.com/vetlink/consultation-service/internal/observability"
	"github.com/vetlink/consultation-service/internal/repository"
	apperrors "github.com/vetlink/consultation-service/pkg/util/errorutil"
)

// SoapEditorService hands out one EditorSession per consultation being
// documented. Sessions are created on first access, seeded from the
// persisted note when one exists, and discarded when the consultation
// completes or the vet abandons the editor.
type SoapEditorService struct {
	mu       sync.Mutex
	sessions map[string]*EditorSession

	notes         repository.SoapNoteRepository
	consultations repository.ConsultationRepository
	dispatcher    events.Dispatcher
	interval      time.Duration
	logger        *zap.Logger
	metrics       *observability.Metrics
	clock         func() time.Time
}

// NewSoapEditorService constructs the service.
func NewSoapEditorService(notes repository.SoapNoteRepository, consultations repository.ConsultationRepository, dispatcher events.Dispatcher, interval time.Duration, logger *zap.Logger, metrics *observability.Metrics) *SoapEditorService {
	return &SoapEditorService{
		sessions:      make(map[string]*EditorSession),
		notes:         notes,
		consultations: consultations,
		dispatcher:    dispatcher,
		interval:      interval,
		logger:        logger,
		metrics:       metrics,
		clock:         time.Now,
	}
}

// WithClock overrides the time source for new sessions. Test hook.
func (s *SoapEditorService) WithClock(clock func() time.Time) *SoapEditorService {
	s.clock = clock
	return s
}

// Session returns the editing session for a consultation, creating it on
// first access. Only the consulting vet may edit.
func (s *SoapEditorService) Session(ctx context.Context, consultationID, vetID string) (*EditorSession, error) {
	s.mu.Lock()
	if session, ok := s.sessions[consultationID]; ok {
		s.mu.Unlock()
		if session.vetID != vetID {
			return nil, apperrors.NewForbidden("consultation is being documented by another vet")
		}
		return session, nil
	}
	s.mu.Unlock()

	consultation, err := s.consultations.GetByID(ctx, consultationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("consultation", nil)
		}
		return nil, apperrors.MapError(err)
	}
	if consultation.VetID != vetID {
		return nil, apperrors.NewForbidden("consultation belongs to another vet")
	}

	var (
		draft     domain.SoapNote
		persisted bool
	)
	existing, err := s.notes.GetByConsultation(ctx, consultationID)
	switch {
	case err == nil:
		draft = *existing
		persisted = true
	case errors.Is(err, pgx.ErrNoRows):
		// first save will insert
	default:
		return nil, apperrors.MapError(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[consultationID]; ok {
		if session.vetID != vetID {
			return nil, apperrors.NewForbidden("consultation is being documented by another vet")
		}
		return session, nil
	}
	session := NewEditorSession(EditorSessionConfig{
		ConsultationID:   consultationID,
		VetID:            vetID,
		InitialDraft:     draft,
		AlreadyPersisted: persisted,
		AutosaveInterval: s.interval,
		Notes:            s.notes,
		Dispatcher:       s.dispatcher,
		Logger:           s.logger,
		Metrics:          s.metrics,
		Clock:            s.clock,
	})
	s.sessions[consultationID] = session
	return session, nil
}

// CloseSession tears the session down, cancelling its autosave timer.
func (s *SoapEditorService) CloseSession(consultationID string) {
	s.mu.Lock()
	session, ok := s.sessions[consultationID]
	if ok {
		delete(s.sessions, consultationID)
	}
	s.mu.Unlock()
	if ok {
		session.Close()
	}
}
