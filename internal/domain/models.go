package domain

import (
	"fmt"
	"time"
)

// Location is a WGS84 coordinate pair. Patients and facilities carry it as a
// pointer: a nil location means "position unknown" and must propagate as
// infeasible transport, never as coordinate (0, 0).
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// VitalSigns carries the last recorded observations. The engine never reads
// these; they feed the reasoning collaborator's prompt only.
type VitalSigns struct {
	HeartRate          *float64 `json:"heart_rate,omitempty"`
	SystolicBP         *float64 `json:"systolic_bp,omitempty"`
	DiastolicBP        *float64 `json:"diastolic_bp,omitempty"`
	RespiratoryRate    *float64 `json:"respiratory_rate,omitempty"`
	OxygenSaturation   *float64 `json:"oxygen_saturation,omitempty"`
	TemperatureCelsius *float64 `json:"temperature_celsius,omitempty"`
	GlasgowComaScale   *int     `json:"glasgow_coma_scale,omitempty"`
}

// Injury describes one documented injury from the triage record.
type Injury struct {
	Description string   `json:"description"`
	Locations   []string `json:"locations,omitempty"`
	Mechanisms  []string `json:"mechanisms,omitempty"`
	Severity    Severity `json:"severity,omitempty"`
}

// Patient is a triaged casualty record as emitted by the upstream triage
// collaborator. Capability and resource requirements are keyed by the
// catalogs in OptimizationConfig; a missing key means "no constraint".
type Patient struct {
	ID     string   `json:"patient_id"`
	Name   string   `json:"name,omitempty"`
	Age    int      `json:"age,omitempty"`
	Gender string   `json:"gender,omitempty"`
	Acuity Severity `json:"acuity"`

	// Deceased mirrors the triage collaborator's flag; either it or a
	// terminal acuity short-circuits any transfer.
	Deceased bool `json:"deceased,omitempty"`

	Location         *Location  `json:"location,omitempty"`
	PredictedDeathAt *time.Time `json:"predicted_death_at,omitempty"`

	RequiredCapabilities map[string]bool `json:"required_medical_capabilities,omitempty"`
	RequiredResources    map[string]int  `json:"required_medical_resources,omitempty"`

	Injuries   []Injury    `json:"injuries,omitempty"`
	VitalSigns *VitalSigns `json:"vital_signs,omitempty"`
}

// Facility is a candidate destination. Resources are integer capacities
// shared across a batch solve; the engine never mutates them.
type Facility struct {
	ID           string          `json:"facility_id"`
	Name         string          `json:"name"`
	Level        FacilityLevel   `json:"level"`
	Location     *Location       `json:"location,omitempty"`
	Capabilities map[string]bool `json:"capabilities,omitempty"`
	Resources    map[string]int  `json:"medical_resources,omitempty"`
}

// Validate checks the structural invariants a roster entry must satisfy.
func (f *Facility) Validate() error {
	if f.ID == "" {
		return fmt.Errorf("facility validation: facility_id is required")
	}
	if f.Name == "" {
		return fmt.Errorf("facility validation: name is required for %s", f.ID)
	}
	if !f.Level.IsValid() {
		return fmt.Errorf("facility validation: %w (facility %s, level %d)", ErrInvalidFacilityLevel, f.ID, f.Level)
	}
	return nil
}

// Destination is the chosen facility of a single-destination Transfer.
type Destination struct {
	FacilityID   string  `json:"facility_id"`
	FacilityName string  `json:"facility_name"`
	ETAMinutes   float64 `json:"eta_minutes"`
}

// Alternative is a ranked alternative destination discovered by re-solving
// with exclusion constraints. Order is discovery order, never re-sorted.
type Alternative struct {
	FacilityID   string  `json:"facility_id"`
	FacilityName string  `json:"facility_name"`
	ETAMinutes   float64 `json:"eta_minutes"`
}

// ChainLeg is one stage of a MEDEVAC evacuation chain.
type ChainLeg struct {
	Role               string        `json:"role"`
	Level              FacilityLevel `json:"level"`
	FacilityID         string        `json:"facility_id"`
	FacilityName       string        `json:"facility_name"`
	ETAMinutes         float64       `json:"eta_minutes"`
	CumulativeMinutes  float64       `json:"cumulative_time"`
	TimelineCompliance bool          `json:"timeline_compliance"`
}

// NATOCompliance aggregates the per-role timeline flags of an evacuation
// chain against the AJP-4.10 10-1-2 timeline.
type NATOCompliance struct {
	Role1Compliant    bool `json:"role1_compliant"`
	Role2Compliant    bool `json:"role2_compliant"`
	SurvivalCompliant bool `json:"survival_compliant"`
}

// Decision is the terminal record of one transfer evaluation. It is
// constructed fresh per invocation and never mutated after being returned.
// Forfeit decisions carry only action, reasoning and code; Transfer
// decisions carry either a destination block (MCI/PHE) or an evacuation
// chain (MEDEVAC).
type Decision struct {
	DecisionID    string         `json:"decision_id"`
	PatientID     string         `json:"patient_id"`
	Action        DecisionAction `json:"action"`
	ReasoningCode ReasoningCode  `json:"reasoning_code"`
	Reasoning     string         `json:"reasoning"`
	DecidedAt     time.Time      `json:"decided_at"`

	// Single-destination mode.
	Destination    *Destination  `json:"destination,omitempty"`
	Alternatives   []Alternative `json:"alternatives,omitempty"`
	SolverStatus   string        `json:"solver_status,omitempty"`
	FallbackReason string        `json:"fallback_reason,omitempty"`

	// MEDEVAC chain mode. A DEAD_ON_ARRIVAL forfeit still carries the
	// constructed chain for diagnostics.
	EvacuationChain       []ChainLeg      `json:"evacuation_chain,omitempty"`
	TotalTimeMinutes      float64         `json:"total_time_minutes,omitempty"`
	SurvivalWindowMinutes float64         `json:"survival_window_minutes,omitempty"`
	NATOCompliance        *NATOCompliance `json:"nato_compliance,omitempty"`
}

// ReasoningRequest is the contract handed to the reasoning collaborator when
// enriching a Transfer decision with prose. It is purely advisory input; the
// collaborator can never change the decision itself.
type ReasoningRequest struct {
	Patient      *Patient
	Destination  *Facility
	ETAMinutes   float64
	DistanceKM   float64
	Alternatives []Alternative
	IncidentType IncidentType
	SolverStatus string
}
