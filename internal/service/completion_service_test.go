package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vetlink/consultation-service/internal/domain"
	"github.com/vetlink/consultation-service/internal/events"
	"github.com/vetlink/consultation-service/internal/observability"
	apperrors "github.com/vetlink/consultation-service/pkg/util/errorutil"
)

type completionFixture struct {
	consultations *fakeConsultationRepo
	notes         *fakeSoapNoteRepo
	invalidator   *fakeInvalidator
	provisioner   *fakeProvisioner
	dispatcher    *fakeDispatcher
	editor        *SoapEditorService
	service       *CompletionService
	now           time.Time
}

func newCompletionFixture(t *testing.T, consultation *domain.Consultation) *completionFixture {
	t.Helper()
	now := time.Date(2026, 5, 2, 16, 45, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	fx := &completionFixture{
		consultations: newFakeConsultationRepo(consultation),
		notes:         &fakeSoapNoteRepo{},
		invalidator:   &fakeInvalidator{},
		provisioner:   &fakeProvisioner{},
		dispatcher:    &fakeDispatcher{},
		now:           now,
	}

	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	consultationSvc := NewConsultationService(fx.consultations, &fakeHistoryRepo{}, logger).WithClock(clock)
	fx.editor = NewSoapEditorService(fx.notes, fx.consultations, fx.dispatcher, time.Hour, logger, metrics).WithClock(clock)
	fx.service = NewCompletionService(CompletionDependencies{
		Consultations: consultationSvc,
		Editor:        fx.editor,
		Invalidator:   fx.invalidator,
		Provisioner:   fx.provisioner,
		Dispatcher:    fx.dispatcher,
		Logger:        logger,
		Metrics:       metrics,
	})
	return fx
}

func (fx *completionFixture) documentDraft(t *testing.T, consultationID string) {
	t.Helper()
	session, err := fx.editor.Session(context.Background(), consultationID, "vet-1")
	require.NoError(t, err)
	session.ApplyPatch(SoapNotePatch{
		Subjective: &SubjectivePatch{ChiefComplaint: strPtr("acute vomiting since yesterday")},
		Assessment: &AssessmentPatch{ProvisionalDiagnosis: strPtr("gastroenteritis")},
	})
}

func TestCompleteClosesConsultationAndSavesNote(t *testing.T) {
	fx := newCompletionFixture(t, activeConsultation("c-1"))
	fx.documentDraft(t, "c-1")

	closed, err := fx.service.Complete(context.Background(), "vet-1", "c-1")
	require.NoError(t, err)

	assert.Equal(t, domain.ConsultationStatusClosed, closed.Status)
	require.NotNil(t, closed.Outcome)
	assert.Equal(t, domain.OutcomeSuccess, *closed.Outcome)
	require.NotNil(t, closed.EndedAt)
	assert.True(t, closed.EndedAt.Equal(fx.now))

	assert.Equal(t, 1, fx.notes.writes())
	assert.Equal(t, "acute vomiting since yesterday", fx.notes.stored.Subjective.ChiefComplaint)

	assert.Equal(t, []string{"c-1"}, fx.invalidator.calls)
	assert.Equal(t, 1, fx.provisioner.callCount())
	assert.Len(t, fx.dispatcher.byType(events.EventConsultationCompleted), 1)
	assert.Len(t, fx.dispatcher.byType(events.EventSoapNoteSaved), 1)

	// the editor session is torn down after completion
	fx.editor.mu.Lock()
	assert.Empty(t, fx.editor.sessions)
	fx.editor.mu.Unlock()
}

func TestCompleteRejectsMissingRequiredFields(t *testing.T) {
	fx := newCompletionFixture(t, activeConsultation("c-1"))
	session, err := fx.editor.Session(context.Background(), "c-1", "vet-1")
	require.NoError(t, err)
	session.ApplyPatch(SoapNotePatch{
		Subjective: &SubjectivePatch{ChiefComplaint: strPtr("   ")},
	})

	_, err = fx.service.Complete(context.Background(), "vet-1", "c-1")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, "VALIDATION_FAILED"))

	de := apperrors.ToDomainError(err)
	assert.Equal(t, true, de.Details["chief_complaint_missing"])
	assert.Equal(t, true, de.Details["provisional_diagnosis_missing"])

	// fail-fast: nothing was written anywhere
	assert.Equal(t, 0, fx.notes.writes())
	assert.Equal(t, 0, fx.consultations.updateCalls)
	assert.Equal(t, 0, fx.provisioner.callCount())
	assert.Empty(t, fx.invalidator.calls)
}

func TestCompleteAbortsWhenSaveFails(t *testing.T) {
	fx := newCompletionFixture(t, activeConsultation("c-1"))
	fx.documentDraft(t, "c-1")
	fx.notes.setFailWrite(errors.New("disk full"))

	_, err := fx.service.Complete(context.Background(), "vet-1", "c-1")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, "PERSISTENCE_FAILED"))

	assert.Equal(t, 0, fx.consultations.updateCalls)
	assert.Equal(t, 0, fx.provisioner.callCount())
}

func TestCompleteTransitionFailureKeepsNoteSaved(t *testing.T) {
	fx := newCompletionFixture(t, activeConsultation("c-1"))
	fx.documentDraft(t, "c-1")
	fx.consultations.failUpdate = errors.New("connection reset")

	_, err := fx.service.Complete(context.Background(), "vet-1", "c-1")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, "PERSISTENCE_FAILED"))

	// the note write is acceptable partial state; a retry re-runs the upsert
	assert.Equal(t, 1, fx.notes.writes())
	assert.Equal(t, 0, fx.provisioner.callCount())
	assert.Empty(t, fx.invalidator.calls)
}

func TestCompleteSucceedsDespiteInvalidationFailure(t *testing.T) {
	fx := newCompletionFixture(t, activeConsultation("c-1"))
	fx.documentDraft(t, "c-1")
	fx.invalidator.fail = errors.New("redis unavailable")

	closed, err := fx.service.Complete(context.Background(), "vet-1", "c-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ConsultationStatusClosed, closed.Status)
	assert.Equal(t, 1, fx.provisioner.callCount())
}

func TestCompleteWaitsOutInFlightAutosave(t *testing.T) {
	fx := newCompletionFixture(t, activeConsultation("c-1"))
	fx.documentDraft(t, "c-1")
	session, err := fx.editor.Session(context.Background(), "c-1", "vet-1")
	require.NoError(t, err)

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	fx.notes.onPersist = func() {
		once.Do(func() {
			close(started)
			<-release
		})
	}

	go func() { _ = session.Save(context.Background(), TriggerAuto) }()
	<-started

	// a late edit lands while the autosave write is still on the wire
	session.ApplyPatch(SoapNotePatch{
		Plan: &PlanPatch{HomeCare: strPtr("bland diet for 48 hours")},
	})

	done := make(chan error, 1)
	go func() {
		_, err := fx.service.Complete(context.Background(), "vet-1", "c-1")
		done <- err
	}()

	select {
	case err := <-done:
		t.Fatalf("complete finished while a write was in flight: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-done)

	// the late patch made it to disk before the consultation closed
	require.NotNil(t, fx.notes.stored)
	assert.Equal(t, "bland diet for 48 hours", fx.notes.stored.Plan.HomeCare)
	assert.Equal(t, 2, fx.notes.writes())
	assert.Equal(t, domain.ConsultationStatusClosed, fx.consultations.byID["c-1"].Status)
}

func TestCompleteRejectsOtherVet(t *testing.T) {
	fx := newCompletionFixture(t, activeConsultation("c-1"))

	_, err := fx.service.Complete(context.Background(), "vet-2", "c-1")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, "FORBIDDEN"))
}
