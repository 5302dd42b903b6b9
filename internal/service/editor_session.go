package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/vetlink/consultation-service/internal/domain"
	"github.com/vetlink/consultation-service/internal/events"
	"github.com/vetlink/consultation-service/internal/observability"
	"github.com/vetlink/consultation-service/internal/repository"
	apperrors "github.com/vetlink/consultation-service/pkg/util/errorutil"
)

// SaveTrigger distinguishes autosave ticks from explicit saves.
type SaveTrigger string

const (
	TriggerAuto   SaveTrigger = "AUTO"
	TriggerManual SaveTrigger = "MANUAL"
)

// EditorSession owns the in-memory SOAP draft for one consultation while a
// vet is documenting it. It dirty-tracks patches, arms a lazy autosave
// timer whenever there are unsaved changes, and guarantees at most one
// in-flight write per note: a save requested while another is running is
// coalesced, never queued.
type EditorSession struct {
	mu   sync.Mutex
	cond *sync.Cond // signalled when an in-flight write finishes

	consultationID string
	vetID          string

	draft         domain.SoapNote
	dirty         bool
	revision      uint64
	saveInFlight  bool
	lastSavedAt   *time.Time
	everPersisted bool
	closed        bool

	timer    *time.Timer
	interval time.Duration

	notes      repository.SoapNoteRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
	clock      func() time.Time
}

// EditorSessionConfig bundles session dependencies.
type EditorSessionConfig struct {
	ConsultationID   string
	VetID            string
	InitialDraft     domain.SoapNote
	AlreadyPersisted bool
	AutosaveInterval time.Duration
	Notes            repository.SoapNoteRepository
	Dispatcher       events.Dispatcher
	Logger           *zap.Logger
	Metrics          *observability.Metrics
	Clock            func() time.Time
}

// NewEditorSession builds a session around an initial draft.
func NewEditorSession(cfg EditorSessionConfig) *EditorSession {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	interval := cfg.AutosaveInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	draft := cfg.InitialDraft
	draft.ConsultationID = cfg.ConsultationID
	s := &EditorSession{
		consultationID: cfg.ConsultationID,
		vetID:          cfg.VetID,
		draft:          draft,
		everPersisted:  cfg.AlreadyPersisted,
		interval:       interval,
		notes:          cfg.Notes,
		dispatcher:     cfg.Dispatcher,
		logger:         cfg.Logger,
		metrics:        cfg.Metrics,
		clock:          clock,
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// ApplyPatch merges a partial update into the draft, marks it dirty and
// (re)arms the autosave timer. No validation happens here; required-field
// checks are deferred to completion.
func (s *EditorSession) ApplyPatch(patch SoapNotePatch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	patch.applyTo(&s.draft)
	s.revision++
	s.dirty = true
	s.armTimerLocked()
}

// Save persists the draft. Returns nil without writing when a save is
// already in flight (the overlapping trigger is coalesced) or when there is
// nothing new to write. Manual-save failures surface as PERSISTENCE_FAILED;
// autosave callers swallow the error after logging and retry on the next
// dirty tick.
func (s *EditorSession) Save(ctx context.Context, trigger SaveTrigger) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return apperrors.NewConflict("editor session closed", nil)
	}
	if s.saveInFlight {
		s.mu.Unlock()
		return nil
	}
	if !s.dirty && (trigger == TriggerAuto || s.everPersisted) {
		s.mu.Unlock()
		return nil
	}
	s.saveInFlight = true
	snapshot := s.draft
	rev := s.revision
	s.mu.Unlock()

	err := s.persist(ctx, &snapshot)

	s.mu.Lock()
	s.saveInFlight = false
	s.cond.Broadcast()
	if err == nil {
		now := s.clock()
		s.lastSavedAt = &now
		s.everPersisted = true
		s.draft.ID = snapshot.ID
		s.draft.CreatedAt = snapshot.CreatedAt
		s.draft.UpdatedAt = snapshot.UpdatedAt
		if s.revision == rev {
			// no patch arrived during the write
			s.dirty = false
			s.stopTimerLocked()
		}
	}
	s.mu.Unlock()

	s.metrics.RecordSoapSave(string(trigger), err == nil)
	if err != nil {
		return apperrors.NewPersistenceError("soap note save", err)
	}
	s.publishSaved(ctx, snapshot.ID, trigger)
	return nil
}

// Flush persists the draft synchronously. Unlike Save it never coalesces:
// it waits out any in-flight write and re-saves until the draft is clean,
// so a caller sequencing a status change behind the note cannot lose a
// patch applied after the in-flight snapshot.
func (s *EditorSession) Flush(ctx context.Context) error {
	for {
		s.mu.Lock()
		for s.saveInFlight && !s.closed {
			s.cond.Wait()
		}
		if s.closed {
			s.mu.Unlock()
			return apperrors.NewConflict("editor session closed", nil)
		}
		if !s.dirty && s.everPersisted {
			s.mu.Unlock()
			return nil
		}
		s.mu.Unlock()
		if err := s.Save(ctx, TriggerManual); err != nil {
			return err
		}
	}
}

func (s *EditorSession) publishSaved(ctx context.Context, noteID string, trigger SaveTrigger) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:             uuid.NewString(),
		Type:           events.EventSoapNoteSaved,
		ConsultationID: s.consultationID,
		Actor:          vetActor(s.vetID),
		Timestamp:      s.clock(),
		Payload: events.SoapNoteSavedPayload{
			SoapNoteID: noteID,
			Trigger:    string(trigger),
		},
	})
}

// persist decides insert vs update by looking up the one-to-one record
// keyed by consultation_id.
func (s *EditorSession) persist(ctx context.Context, snapshot *domain.SoapNote) error {
	existing, err := s.notes.GetByConsultation(ctx, s.consultationID)
	switch {
	case err == nil:
		snapshot.ID = existing.ID
		snapshot.CreatedAt = existing.CreatedAt
		return s.notes.Update(ctx, snapshot)
	case errors.Is(err, pgx.ErrNoRows):
		return s.notes.Insert(ctx, snapshot)
	default:
		return err
	}
}

// Close cancels the autosave timer and freezes the session. Idempotent; no
// timer fires after teardown.
func (s *EditorSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.stopTimerLocked()
	s.cond.Broadcast()
}

// Snapshot returns a copy of the current draft.
func (s *EditorSession) Snapshot() domain.SoapNote {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

// Dirty reports whether unsaved changes exist ("Unsaved changes" badge).
func (s *EditorSession) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// LastSavedAt returns when the draft last persisted, if ever.
func (s *EditorSession) LastSavedAt() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSavedAt
}

// armTimerLocked schedules the autosave tick relative to the latest patch,
// not a fixed wall-clock grid. Caller holds mu.
func (s *EditorSession) armTimerLocked() {
	if s.timer != nil {
		s.timer.Reset(s.interval)
		return
	}
	s.timer = time.AfterFunc(s.interval, s.autosaveTick)
}

func (s *EditorSession) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// autosaveTick fires save('auto') only if the draft is still dirty at fire
// time. Failures are logged and retried on the next tick.
func (s *EditorSession) autosaveTick() {
	s.mu.Lock()
	if s.closed || !s.dirty {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	if err := s.Save(context.Background(), TriggerAuto); err != nil {
		s.logger.Warn("autosave failed; will retry on next tick",
			zap.String("consultation_id", s.consultationID), zap.Error(err))
		s.mu.Lock()
		if !s.closed && s.dirty {
			s.armTimerLocked()
		}
		s.mu.Unlock()
	}
}

// SoapNotePatch is a partial update to the draft; nil fields are left
// untouched.
type SoapNotePatch struct {
	Subjective *SubjectivePatch
	Objective  *ObjectivePatch
	Assessment *AssessmentPatch
	Plan       *PlanPatch
}

// SubjectivePatch updates owner-reported fields.
type SubjectivePatch struct {
	ChiefComplaint  *string
	History         *string
	BehaviorChanges *string
	AppetiteChanges *string
	ActivityChanges *string
	Diet            *string
	PriorTreatment  *string
	Environment     *string
	Household       *string
}

// ObjectivePatch updates exam fields.
type ObjectivePatch struct {
	GeneralAppearance  *string
	BodyConditionScore *int
	PhysicalFindings   *string
	RespiratoryPattern *string
	Gait               *string
	Vitals             *domain.VitalSigns
}

// AssessmentPatch updates diagnostic fields.
type AssessmentPatch struct {
	ProvisionalDiagnosis  *string
	DifferentialDiagnoses []string
	Confidence            *domain.ConfidenceLevel
	Limitations           *string
}

// PlanPatch updates treatment fields.
type PlanPatch struct {
	Medications         []domain.PrescribedMedication
	DietaryLifestyle    *string
	HomeCare            *string
	WarningSigns        *string
	FollowUpTimeframe   *string
	InPersonVisitNeeded *bool
	VisitUrgency        *domain.VisitUrgency
	Referral            *string
	Diagnostics         *string
}

func (p SoapNotePatch) applyTo(note *domain.SoapNote) {
	if p.Subjective != nil {
		p.Subjective.applyTo(&note.Subjective)
	}
	if p.Objective != nil {
		p.Objective.applyTo(&note.Objective)
	}
	if p.Assessment != nil {
		p.Assessment.applyTo(&note.Assessment)
	}
	if p.Plan != nil {
		p.Plan.applyTo(&note.Plan)
	}
}

func (p *SubjectivePatch) applyTo(s *domain.Subjective) {
	setString(&s.ChiefComplaint, p.ChiefComplaint)
	setString(&s.History, p.History)
	setString(&s.BehaviorChanges, p.BehaviorChanges)
	setString(&s.AppetiteChanges, p.AppetiteChanges)
	setString(&s.ActivityChanges, p.ActivityChanges)
	setString(&s.Diet, p.Diet)
	setString(&s.PriorTreatment, p.PriorTreatment)
	setString(&s.Environment, p.Environment)
	setString(&s.Household, p.Household)
}

func (p *ObjectivePatch) applyTo(o *domain.Objective) {
	setString(&o.GeneralAppearance, p.GeneralAppearance)
	if p.BodyConditionScore != nil {
		o.BodyConditionScore = *p.BodyConditionScore
	}
	setString(&o.PhysicalFindings, p.PhysicalFindings)
	setString(&o.RespiratoryPattern, p.RespiratoryPattern)
	setString(&o.Gait, p.Gait)
	if p.Vitals != nil {
		o.Vitals = *p.Vitals
	}
}

func (p *AssessmentPatch) applyTo(a *domain.Assessment) {
	setString(&a.ProvisionalDiagnosis, p.ProvisionalDiagnosis)
	if p.DifferentialDiagnoses != nil {
		a.DifferentialDiagnoses = p.DifferentialDiagnoses
	}
	if p.Confidence != nil {
		confidence := *p.Confidence
		a.Confidence = &confidence
	}
	setString(&a.Limitations, p.Limitations)
}

func (p *PlanPatch) applyTo(plan *domain.Plan) {
	if p.Medications != nil {
		plan.Medications = p.Medications
	}
	setString(&plan.DietaryLifestyle, p.DietaryLifestyle)
	setString(&plan.HomeCare, p.HomeCare)
	setString(&plan.WarningSigns, p.WarningSigns)
	setString(&plan.FollowUpTimeframe, p.FollowUpTimeframe)
	if p.InPersonVisitNeeded != nil {
		plan.InPersonVisitNeeded = *p.InPersonVisitNeeded
	}
	if p.VisitUrgency != nil {
		urgency := *p.VisitUrgency
		plan.VisitUrgency = &urgency
	}
	setString(&plan.Referral, p.Referral)
	setString(&plan.Diagnostics, p.Diagnostics)
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}
