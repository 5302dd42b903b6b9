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

	"github.com/vetlink/consultation-service/internal/observability"
	apperrors "github.com/vetlink/consultation-service/pkg/util/errorutil"
)

func strPtr(s string) *string { return &s }

func newTestSession(notes *fakeSoapNoteRepo, interval time.Duration) *EditorSession {
	return NewEditorSession(EditorSessionConfig{
		ConsultationID:   "consultation-1",
		VetID:            "vet-1",
		AutosaveInterval: interval,
		Notes:            notes,
		Logger:           zap.NewNop(),
		Metrics:          observability.NewMetrics(),
	})
}

func TestApplyPatchMergesIntoDraftAndMarksDirty(t *testing.T) {
	session := newTestSession(&fakeSoapNoteRepo{}, time.Hour)

	session.ApplyPatch(SoapNotePatch{
		Subjective: &SubjectivePatch{ChiefComplaint: strPtr("limping on left hind leg")},
	})
	session.ApplyPatch(SoapNotePatch{
		Subjective: &SubjectivePatch{History: strPtr("started after a fall two days ago")},
	})

	snapshot := session.Snapshot()
	assert.Equal(t, "limping on left hind leg", snapshot.Subjective.ChiefComplaint)
	assert.Equal(t, "started after a fall two days ago", snapshot.Subjective.History)
	assert.True(t, session.Dirty())
}

func TestManualSaveWritesOnceForMultiplePatches(t *testing.T) {
	notes := &fakeSoapNoteRepo{}
	session := newTestSession(notes, time.Hour)

	session.ApplyPatch(SoapNotePatch{
		Subjective: &SubjectivePatch{ChiefComplaint: strPtr("vomiting")},
	})
	session.ApplyPatch(SoapNotePatch{
		Assessment: &AssessmentPatch{ProvisionalDiagnosis: strPtr("dietary indiscretion")},
	})

	require.NoError(t, session.Save(context.Background(), TriggerManual))

	assert.Equal(t, 1, notes.writes())
	require.NotNil(t, notes.stored)
	assert.Equal(t, "vomiting", notes.stored.Subjective.ChiefComplaint)
	assert.Equal(t, "dietary indiscretion", notes.stored.Assessment.ProvisionalDiagnosis)
	assert.False(t, session.Dirty())
	require.NotNil(t, session.LastSavedAt())

	// the successful save must have disarmed the autosave timer
	session.mu.Lock()
	assert.Nil(t, session.timer)
	session.mu.Unlock()
}

func TestOverlappingSaveIsCoalesced(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	notes := &fakeSoapNoteRepo{
		onPersist: func() {
			once.Do(func() { close(started) })
			<-release
		},
	}
	session := newTestSession(notes, time.Hour)
	session.ApplyPatch(SoapNotePatch{
		Subjective: &SubjectivePatch{ChiefComplaint: strPtr("coughing")},
	})

	done := make(chan error, 1)
	go func() { done <- session.Save(context.Background(), TriggerManual) }()
	<-started

	// a second trigger while the write is in flight must not queue a write
	require.NoError(t, session.Save(context.Background(), TriggerManual))
	assert.Equal(t, 0, notes.writes())

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, notes.writes())
}

func TestPatchDuringSaveKeepsDraftDirty(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	notes := &fakeSoapNoteRepo{
		onPersist: func() {
			once.Do(func() { close(started) })
			<-release
		},
	}
	session := newTestSession(notes, time.Hour)
	session.ApplyPatch(SoapNotePatch{
		Subjective: &SubjectivePatch{ChiefComplaint: strPtr("itchy skin")},
	})

	done := make(chan error, 1)
	go func() { done <- session.Save(context.Background(), TriggerManual) }()
	<-started

	session.ApplyPatch(SoapNotePatch{
		Assessment: &AssessmentPatch{ProvisionalDiagnosis: strPtr("flea allergy dermatitis")},
	})

	close(release)
	require.NoError(t, <-done)

	// the write that completed predates the second patch
	assert.True(t, session.Dirty())
	assert.Empty(t, notes.stored.Assessment.ProvisionalDiagnosis)

	require.NoError(t, session.Save(context.Background(), TriggerManual))
	assert.False(t, session.Dirty())
	assert.Equal(t, "flea allergy dermatitis", notes.stored.Assessment.ProvisionalDiagnosis)
}

func TestAutosaveFiresWhileDirty(t *testing.T) {
	notes := &fakeSoapNoteRepo{}
	session := newTestSession(notes, 15*time.Millisecond)
	defer session.Close()

	session.ApplyPatch(SoapNotePatch{
		Subjective: &SubjectivePatch{ChiefComplaint: strPtr("lethargy")},
	})

	require.Eventually(t, func() bool {
		return notes.writes() == 1 && !session.Dirty()
	}, 2*time.Second, 5*time.Millisecond)
}

func TestAutosaveFailureRetriesOnNextTick(t *testing.T) {
	notes := &fakeSoapNoteRepo{}
	notes.setFailWrite(errors.New("connection reset"))
	session := newTestSession(notes, 15*time.Millisecond)
	defer session.Close()

	session.ApplyPatch(SoapNotePatch{
		Subjective: &SubjectivePatch{ChiefComplaint: strPtr("not eating")},
	})

	require.Eventually(t, func() bool { return notes.writes() >= 1 }, 2*time.Second, 5*time.Millisecond)
	assert.True(t, session.Dirty())
	assert.Nil(t, session.LastSavedAt())

	notes.setFailWrite(nil)
	require.Eventually(t, func() bool { return !session.Dirty() }, 2*time.Second, 5*time.Millisecond)
	require.NotNil(t, notes.stored)
	assert.Equal(t, "not eating", notes.stored.Subjective.ChiefComplaint)
}

func TestManualSaveFailureSurfacesPersistenceError(t *testing.T) {
	notes := &fakeSoapNoteRepo{}
	notes.setFailWrite(errors.New("disk full"))
	session := newTestSession(notes, time.Hour)

	session.ApplyPatch(SoapNotePatch{
		Subjective: &SubjectivePatch{ChiefComplaint: strPtr("ear discharge")},
	})

	err := session.Save(context.Background(), TriggerManual)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, "PERSISTENCE_FAILED"))
	assert.True(t, session.Dirty())
}

func TestSecondSaveUpdatesExistingRow(t *testing.T) {
	notes := &fakeSoapNoteRepo{}
	session := newTestSession(notes, time.Hour)

	session.ApplyPatch(SoapNotePatch{
		Subjective: &SubjectivePatch{ChiefComplaint: strPtr("sneezing")},
	})
	require.NoError(t, session.Save(context.Background(), TriggerManual))

	session.ApplyPatch(SoapNotePatch{
		Assessment: &AssessmentPatch{ProvisionalDiagnosis: strPtr("upper respiratory infection")},
	})
	require.NoError(t, session.Save(context.Background(), TriggerManual))

	assert.Equal(t, 1, notes.insertCalls)
	assert.Equal(t, 1, notes.updateCalls)
	assert.Equal(t, "sneezing", notes.stored.Subjective.ChiefComplaint)
	assert.Equal(t, "upper respiratory infection", notes.stored.Assessment.ProvisionalDiagnosis)
}

func TestSaveCountersTrackTriggerAndResult(t *testing.T) {
	notes := &fakeSoapNoteRepo{}
	metrics := observability.NewMetrics()
	session := NewEditorSession(EditorSessionConfig{
		ConsultationID:   "consultation-1",
		VetID:            "vet-1",
		AutosaveInterval: time.Hour,
		Notes:            notes,
		Logger:           zap.NewNop(),
		Metrics:          metrics,
	})

	session.ApplyPatch(SoapNotePatch{
		Subjective: &SubjectivePatch{ChiefComplaint: strPtr("weight loss")},
	})
	require.NoError(t, session.Save(context.Background(), TriggerManual))

	notes.setFailWrite(errors.New("write timeout"))
	session.ApplyPatch(SoapNotePatch{
		Subjective: &SubjectivePatch{History: strPtr("gradual over a month")},
	})
	require.Error(t, session.Save(context.Background(), TriggerManual))

	saves := metrics.SoapSaves()
	assert.Equal(t, int64(1), saves["MANUAL|true"])
	assert.Equal(t, int64(1), saves["MANUAL|false"])
}

func TestCleanAutosaveDoesNotWrite(t *testing.T) {
	notes := &fakeSoapNoteRepo{}
	session := newTestSession(notes, time.Hour)

	require.NoError(t, session.Save(context.Background(), TriggerAuto))
	assert.Equal(t, 0, notes.writes())
}

func TestCloseStopsAutosave(t *testing.T) {
	notes := &fakeSoapNoteRepo{}
	session := newTestSession(notes, 15*time.Millisecond)

	session.ApplyPatch(SoapNotePatch{
		Subjective: &SubjectivePatch{ChiefComplaint: strPtr("limping")},
	})
	session.Close()

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 0, notes.writes())

	err := session.Save(context.Background(), TriggerManual)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, "CONFLICT"))
}

func TestPatchAfterCloseIsIgnored(t *testing.T) {
	session := newTestSession(&fakeSoapNoteRepo{}, time.Hour)
	session.Close()

	session.ApplyPatch(SoapNotePatch{
		Subjective: &SubjectivePatch{ChiefComplaint: strPtr("dropped")},
	})

	assert.False(t, session.Dirty())
	assert.Empty(t, session.Snapshot().Subjective.ChiefComplaint)
}

func TestFlushWaitsOutInFlightSaveAndPersistsLatePatch(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	notes := &fakeSoapNoteRepo{
		onPersist: func() {
			once.Do(func() {
				close(started)
				<-release
			})
		},
	}
	session := newTestSession(notes, time.Hour)
	session.ApplyPatch(SoapNotePatch{
		Subjective: &SubjectivePatch{ChiefComplaint: strPtr("swollen paw")},
	})

	go func() { _ = session.Save(context.Background(), TriggerAuto) }()
	<-started

	// lands after the in-flight snapshot was taken
	session.ApplyPatch(SoapNotePatch{
		Plan: &PlanPatch{HomeCare: strPtr("cold compress twice daily")},
	})

	flushed := make(chan error, 1)
	go func() { flushed <- session.Flush(context.Background()) }()

	select {
	case err := <-flushed:
		t.Fatalf("flush returned while a write was still in flight: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-flushed)

	assert.False(t, session.Dirty())
	assert.Equal(t, 2, notes.writes())
	require.NotNil(t, notes.stored)
	assert.Equal(t, "cold compress twice daily", notes.stored.Plan.HomeCare)
}

func TestFlushOnCleanSessionDoesNotWrite(t *testing.T) {
	notes := &fakeSoapNoteRepo{}
	session := newTestSession(notes, time.Hour)

	session.ApplyPatch(SoapNotePatch{
		Subjective: &SubjectivePatch{ChiefComplaint: strPtr("sneezing")},
	})
	require.NoError(t, session.Save(context.Background(), TriggerManual))
	require.NoError(t, session.Flush(context.Background()))

	assert.Equal(t, 1, notes.writes())
}
