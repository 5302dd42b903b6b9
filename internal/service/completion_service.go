package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vetlink/consultation-service/internal/cache"
	"github.com/vetlink/consultation-service/internal/domain"
	"github.com/vetlink/consultation-service/internal/events"
	"github.com/vetlink/consultation-service/internal/observability"
	apperrors "github.com/vetlink/consultation-service/pkg/util/errorutil"
)

// ThreadProvisioner requests follow-up thread creation without blocking.
type ThreadProvisioner interface {
	ProvisionAsync(consultation *domain.Consultation)
}

// CompletionService sequences the cross-entity close-out of a consultation.
// The underlying store has no multi-table transactions, so the sequence is
// compensating: validate, persist the note, transition the consultation,
// then run the advisory tail. Steps 1-3 block; cache invalidation and
// thread provisioning are best-effort relative to the medical record.
type CompletionService struct {
	consultations *ConsultationService
	editor        *SoapEditorService
	invalidator   cache.Invalidator
	provisioner   ThreadProvisioner
	dispatcher    events.Dispatcher
	logger        *zap.Logger
	metrics       *observability.Metrics
}

// CompletionDependencies bundles collaborators for the orchestrator.
type CompletionDependencies struct {
	Consultations *ConsultationService
	Editor        *SoapEditorService
	Invalidator   cache.Invalidator
	Provisioner   ThreadProvisioner
	Dispatcher    events.Dispatcher
	Logger        *zap.Logger
	Metrics       *observability.Metrics
}

// NewCompletionService constructs the orchestrator.
func NewCompletionService(deps CompletionDependencies) *CompletionService {
	return &CompletionService{
		consultations: deps.Consultations,
		editor:        deps.Editor,
		invalidator:   deps.Invalidator,
		provisioner:   deps.Provisioner,
		dispatcher:    deps.Dispatcher,
		logger:        deps.Logger,
		metrics:       deps.Metrics,
	}
}

// Complete closes out a consultation after documentation. On the required
// path any failure aborts with nothing further written; a transition
// failure leaves the SOAP note saved, which is acceptable partial state
// because a retry re-runs the upsert.
func (s *CompletionService) Complete(ctx context.Context, vetID, consultationID string) (*domain.Consultation, error) {
	consultation, err := s.consultations.GetForSubject(ctx, domain.SubjectTypeVet, vetID, consultationID)
	if err != nil {
		return nil, err
	}

	session, err := s.editor.Session(ctx, consultationID, vetID)
	if err != nil {
		return nil, err
	}

	// step 1: validate before any write
	draft := session.Snapshot()
	if !draft.HasRequiredFields() {
		s.metrics.RecordWorkflow("completion", false)
		return nil, apperrors.NewValidationError("chief complaint and provisional diagnosis are required to complete", map[string]any{
			"chief_complaint_missing":       strings.TrimSpace(draft.Subjective.ChiefComplaint) == "",
			"provisional_diagnosis_missing": strings.TrimSpace(draft.Assessment.ProvisionalDiagnosis) == "",
		})
	}

	// step 2: synchronous save; waits out any in-flight autosave so the
	// transition never runs ahead of an unpersisted patch
	if err := session.Flush(ctx); err != nil {
		s.metrics.RecordWorkflow("completion", false)
		return nil, err
	}

	// step 3: status transition, the medical closure of record
	oldStatus := consultation.Status
	consultation, err = s.consultations.TransitionToClosed(ctx, consultation, domain.OutcomeSuccess, vetID)
	if err != nil {
		s.metrics.RecordWorkflow("completion", false)
		return nil, err
	}
	s.metrics.RecordWorkflow("completion", true)

	// step 4: advisory cache invalidation
	if s.invalidator != nil {
		if err := s.invalidator.Invalidate(ctx, consultationID); err != nil {
			s.logger.Warn("cache invalidation failed",
				zap.String("consultation_id", consultationID), zap.Error(err))
		}
	}

	// step 5: advisory thread provisioning, fire-and-forget
	if s.provisioner != nil {
		s.provisioner.ProvisionAsync(consultation)
	}

	s.publishCompleted(ctx, consultation, oldStatus, vetID)

	// step 6: the editor is done; tear the session down
	s.editor.CloseSession(consultationID)
	return consultation, nil
}

func (s *CompletionService) publishCompleted(ctx context.Context, consultation *domain.Consultation, oldStatus domain.ConsultationStatus, vetID string) {
	if s.dispatcher == nil {
		return
	}
	event := events.Event{
		ID:             uuid.NewString(),
		Type:           events.EventConsultationCompleted,
		ConsultationID: consultation.ID,
		Actor:          vetActor(vetID),
		Payload: events.ConsultationCompletedPayload{
			OldStatus: oldStatus,
			Outcome:   *consultation.Outcome,
			EndedAt:   *consultation.EndedAt,
		},
	}
	if event.Timestamp.IsZero() && consultation.EndedAt != nil {
		event.Timestamp = *consultation.EndedAt
	}
	_ = s.dispatcher.Publish(ctx, event)
}
