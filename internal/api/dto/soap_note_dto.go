package dto

import (
	"time"

	"github.com/vetlink/consultation-service/internal/domain"
	"github.com/vetlink/consultation-service/internal/service"
)

// SoapNotePatchRequest is the partial-update payload for the draft. Absent
// fields leave the draft untouched.
type SoapNotePatchRequest struct {
	Subjective *SubjectivePatchRequest `json:"subjective,omitempty"`
	Objective  *ObjectivePatchRequest  `json:"objective,omitempty"`
	Assessment *AssessmentPatchRequest `json:"assessment,omitempty"`
	Plan       *PlanPatchRequest       `json:"plan,omitempty"`
}

// SubjectivePatchRequest payload.
type SubjectivePatchRequest struct {
	ChiefComplaint  *string `json:"chief_complaint,omitempty"`
	History         *string `json:"history,omitempty"`
	BehaviorChanges *string `json:"behavior_changes,omitempty"`
	AppetiteChanges *string `json:"appetite_changes,omitempty"`
	ActivityChanges *string `json:"activity_changes,omitempty"`
	Diet            *string `json:"diet,omitempty"`
	PriorTreatment  *string `json:"prior_treatment,omitempty"`
	Environment     *string `json:"environment,omitempty"`
	Household       *string `json:"household,omitempty"`
}

// ObjectivePatchRequest payload.
type ObjectivePatchRequest struct {
	GeneralAppearance  *string            `json:"general_appearance,omitempty"`
	BodyConditionScore *int               `json:"body_condition_score,omitempty"`
	PhysicalFindings   *string            `json:"physical_findings,omitempty"`
	RespiratoryPattern *string            `json:"respiratory_pattern,omitempty"`
	Gait               *string            `json:"gait,omitempty"`
	Vitals             *domain.VitalSigns `json:"vitals,omitempty"`
}

// AssessmentPatchRequest payload.
type AssessmentPatchRequest struct {
	ProvisionalDiagnosis  *string                 `json:"provisional_diagnosis,omitempty"`
	DifferentialDiagnoses []string                `json:"differential_diagnoses,omitempty"`
	Confidence            *domain.ConfidenceLevel `json:"confidence,omitempty"`
	Limitations           *string                 `json:"limitations,omitempty"`
}

// PlanPatchRequest payload.
type PlanPatchRequest struct {
	Medications         []domain.PrescribedMedication `json:"medications,omitempty"`
	DietaryLifestyle    *string                       `json:"dietary_lifestyle,omitempty"`
	HomeCare            *string                       `json:"home_care,omitempty"`
	WarningSigns        *string                       `json:"warning_signs,omitempty"`
	FollowUpTimeframe   *string                       `json:"follow_up_timeframe,omitempty"`
	InPersonVisitNeeded *bool                         `json:"in_person_visit_needed,omitempty"`
	VisitUrgency        *domain.VisitUrgency          `json:"visit_urgency,omitempty"`
	Referral            *string                       `json:"referral,omitempty"`
	Diagnostics         *string                       `json:"diagnostics,omitempty"`
}

// ToServicePatch maps the request to the editor patch type.
func (r SoapNotePatchRequest) ToServicePatch() service.SoapNotePatch {
	patch := service.SoapNotePatch{}
	if r.Subjective != nil {
		patch.Subjective = &service.SubjectivePatch{
			ChiefComplaint:  r.Subjective.ChiefComplaint,
			History:         r.Subjective.History,
			BehaviorChanges: r.Subjective.BehaviorChanges,
			AppetiteChanges: r.Subjective.AppetiteChanges,
			ActivityChanges: r.Subjective.ActivityChanges,
			Diet:            r.Subjective.Diet,
			PriorTreatment:  r.Subjective.PriorTreatment,
			Environment:     r.Subjective.Environment,
			Household:       r.Subjective.Household,
		}
	}
	if r.Objective != nil {
		patch.Objective = &service.ObjectivePatch{
			GeneralAppearance:  r.Objective.GeneralAppearance,
			BodyConditionScore: r.Objective.BodyConditionScore,
			PhysicalFindings:   r.Objective.PhysicalFindings,
			RespiratoryPattern: r.Objective.RespiratoryPattern,
			Gait:               r.Objective.Gait,
			Vitals:             r.Objective.Vitals,
		}
	}
	if r.Assessment != nil {
		patch.Assessment = &service.AssessmentPatch{
			ProvisionalDiagnosis:  r.Assessment.ProvisionalDiagnosis,
			DifferentialDiagnoses: r.Assessment.DifferentialDiagnoses,
			Confidence:            r.Assessment.Confidence,
			Limitations:           r.Assessment.Limitations,
		}
	}
	if r.Plan != nil {
		patch.Plan = &service.PlanPatch{
			Medications:         r.Plan.Medications,
			DietaryLifestyle:    r.Plan.DietaryLifestyle,
			HomeCare:            r.Plan.HomeCare,
			WarningSigns:        r.Plan.WarningSigns,
			FollowUpTimeframe:   r.Plan.FollowUpTimeframe,
			InPersonVisitNeeded: r.Plan.InPersonVisitNeeded,
			VisitUrgency:        r.Plan.VisitUrgency,
			Referral:            r.Plan.Referral,
			Diagnostics:         r.Plan.Diagnostics,
		}
	}
	return patch
}

// SoapNoteResponse is the full note view.
type SoapNoteResponse struct {
	ID             string            `json:"id,omitempty"`
	ConsultationID string            `json:"consultation_id"`
	Subjective     domain.Subjective `json:"subjective"`
	Objective      domain.Objective  `json:"objective"`
	Assessment     domain.Assessment `json:"assessment"`
	Plan           domain.Plan       `json:"plan"`
	CreatedAt      *time.Time        `json:"created_at,omitempty"`
	UpdatedAt      *time.Time        `json:"updated_at,omitempty"`
}

// EditorStateResponse surfaces the "Unsaved changes" / "Last saved" badge
// state alongside the draft.
type EditorStateResponse struct {
	Draft       SoapNoteResponse `json:"draft"`
	Dirty       bool             `json:"dirty"`
	LastSavedAt *time.Time       `json:"last_saved_at,omitempty"`
}

// NewSoapNoteResponse maps a note.
func NewSoapNoteResponse(note domain.SoapNote) SoapNoteResponse {
	resp := SoapNoteResponse{
		ID:             note.ID,
		ConsultationID: note.ConsultationID,
		Subjective:     note.Subjective,
		Objective:      note.Objective,
		Assessment:     note.Assessment,
		Plan:           note.Plan,
	}
	if !note.CreatedAt.IsZero() {
		created := note.CreatedAt
		resp.CreatedAt = &created
	}
	if !note.UpdatedAt.IsZero() {
		updated := note.UpdatedAt
		resp.UpdatedAt = &updated
	}
	return resp
}
