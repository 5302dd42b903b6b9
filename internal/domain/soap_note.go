package domain

import (
	"strings"
	"time"
)

// ConfidenceLevel grades the vet's confidence in a provisional diagnosis.
type ConfidenceLevel string

const (
	ConfidenceLow    ConfidenceLevel = "LOW"
	ConfidenceMedium ConfidenceLevel = "MEDIUM"
	ConfidenceHigh   ConfidenceLevel = "HIGH"
)

// VisitUrgency grades how urgently an in-person visit is needed.
type VisitUrgency string

const (
	UrgencyLow       VisitUrgency = "LOW"
	UrgencyMedium    VisitUrgency = "MEDIUM"
	UrgencyHigh      VisitUrgency = "HIGH"
	UrgencyEmergency VisitUrgency = "EMERGENCY"
)

// VitalSigns holds the optional numeric measurements taken during the exam.
type VitalSigns struct {
	TemperatureCelsius *float64 `json:"temperature_celsius,omitempty"`
	HeartRateBPM       *int     `json:"heart_rate_bpm,omitempty"`
	RespiratoryRateBPM *int     `json:"respiratory_rate_bpm,omitempty"`
	WeightKg           *float64 `json:"weight_kg,omitempty"`
}

// PrescribedMedication is one entry of the treatment plan.
type PrescribedMedication struct {
	Name         string `json:"name"`
	Dosage       string `json:"dosage"`
	Route        string `json:"route"`
	Frequency    string `json:"frequency"`
	Duration     string `json:"duration"`
	Instructions string `json:"instructions"`
}

// Subjective captures the owner-reported side of the consultation.
type Subjective struct {
	ChiefComplaint  string `json:"chief_complaint"`
	History         string `json:"history"`
	BehaviorChanges string `json:"behavior_changes"`
	AppetiteChanges string `json:"appetite_changes"`
	ActivityChanges string `json:"activity_changes"`
	Diet            string `json:"diet"`
	PriorTreatment  string `json:"prior_treatment"`
	Environment     string `json:"environment"`
	Household       string `json:"household"`
}

// Objective captures the vet's observations. BodyConditionScore uses the
// 1-9 scale; zero means not recorded.
type Objective struct {
	GeneralAppearance  string     `json:"general_appearance"`
	BodyConditionScore int        `json:"body_condition_score"`
	PhysicalFindings   string     `json:"physical_findings"`
	RespiratoryPattern string     `json:"respiratory_pattern"`
	Gait               string     `json:"gait"`
	Vitals             VitalSigns `json:"vitals"`
}

// Assessment captures the diagnostic conclusion.
type Assessment struct {
	ProvisionalDiagnosis  string           `json:"provisional_diagnosis"`
	DifferentialDiagnoses []string         `json:"differential_diagnoses"`
	Confidence            *ConfidenceLevel `json:"confidence,omitempty"`
	Limitations           string           `json:"limitations"`
}

// Plan captures treatment and follow-up instructions.
type Plan struct {
	Medications         []PrescribedMedication `json:"medications"`
	DietaryLifestyle    string                 `json:"dietary_lifestyle"`
	HomeCare            string                 `json:"home_care"`
	WarningSigns        string                 `json:"warning_signs"`
	FollowUpTimeframe   string                 `json:"follow_up_timeframe"`
	InPersonVisitNeeded bool                   `json:"in_person_visit_needed"`
	VisitUrgency        *VisitUrgency          `json:"visit_urgency,omitempty"`
	Referral            string                 `json:"referral"`
	Diagnostics         string                 `json:"diagnostics"`
}

// SoapNote is the structured consultation record, one-to-one with a
// consultation. Created on first save, updated thereafter, never deleted.
type SoapNote struct {
	ID             string
	ConsultationID string
	Subjective     Subjective
	Objective      Objective
	Assessment     Assessment
	Plan           Plan
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// HasRequiredFields reports whether the note carries the two fields that
// gate consultation completion.
func (n *SoapNote) HasRequiredFields() bool {
	return strings.TrimSpace(n.Subjective.ChiefComplaint) != "" &&
		strings.TrimSpace(n.Assessment.ProvisionalDiagnosis) != ""
}
