// Package domain contains core business entities and types for disaster-response
// patient transfer decisions following NATO AJP-4.10 MEDEVAC doctrine and the
// SALT mass-casualty triage protocol.
//
// Reference: NATO AJP-4.10 Allied Joint Doctrine for Medical Support;
// SALT Mass Casualty Triage (Sort-Assess-Lifesaving Interventions-Treatment/Transport).
package domain

import "errors"

// Severity represents a SALT triage category. The ordering is clinical, not
// alphabetical: Dead terminates processing, Immediate carries the highest
// transport priority.
type Severity string

const (
	DEAD      Severity = "Dead"      // Not breathing even after opening airway
	EXPECTANT Severity = "Expectant" // Unlikely to survive given resource constraints
	IMMEDIATE Severity = "Immediate" // Likely to survive with immediate care
	DELAYED   Severity = "Delayed"   // Serious injuries, can wait for care
	MINIMAL   Severity = "Minimal"   // Minor injuries only
	UNDEFINED Severity = "Undefined" // Not yet triaged
)

// IncidentType selects the decision mode: MCI and PHE use single-destination
// assignment, MEDEVAC builds a staged evacuation chain.
type IncidentType string

const (
	MCI     IncidentType = "MCI"
	MEDEVAC IncidentType = "MEDEVAC"
	PHE     IncidentType = "PHE"
)

// FacilityLevel is the NATO echelon level of a facility. Numerically the
// scale is inverted relative to Role naming: level 1 = Role 3 definitive
// surgical care, level 3 = Role 1 initial stabilization.
type FacilityLevel int

const (
	LevelDefinitiveCare FacilityLevel = 1
	LevelAdvancedTrauma FacilityLevel = 2
	LevelStabilization  FacilityLevel = 3
)

// DecisionAction is the terminal outcome of a transfer decision.
type DecisionAction string

const (
	TRANSFER DecisionAction = "Transfer"
	FORFEIT  DecisionAction = "Forfeit"
)

// ReasoningCode is the machine-readable reason attached to every terminal
// decision so downstream systems can branch without parsing prose.
type ReasoningCode string

const (
	PatientDeceased        ReasoningCode = "PATIENT_DECEASED"
	DeadOnArrivalAll       ReasoningCode = "DEAD_ON_ARRIVAL_ALL_FACILITIES"
	DeadOnArrival          ReasoningCode = "DEAD_ON_ARRIVAL"
	NoLocation             ReasoningCode = "NO_LOCATION"
	NoViableChain          ReasoningCode = "NO_VIABLE_CHAIN"
	NoFacilitiesAvailable  ReasoningCode = "NO_FACILITIES_AVAILABLE"
	TransferOptimal        ReasoningCode = "TRANSFER_OPTIMAL"
	TransferFallback       ReasoningCode = "TRANSFER_FALLBACK"
	EvacuationChainOptimal ReasoningCode = "EVACUATION_CHAIN_OPTIMAL"
)

// TransportMode selects the speed constant used for ETA estimation.
type TransportMode string

const (
	GroundTransport TransportMode = "ground"
	AirTransport    TransportMode = "air"
)

// Validation errors for triage data integrity.
var (
	ErrInvalidSeverity      = errors.New("invalid SALT severity")
	ErrInvalidIncidentType  = errors.New("invalid incident type")
	ErrInvalidFacilityLevel = errors.New("invalid facility level")
)

// IsValid validates that the severity is one of the SALT categories.
func (s Severity) IsValid() bool {
	switch s {
	case DEAD, EXPECTANT, IMMEDIATE, DELAYED, MINIMAL, UNDEFINED:
		return true
	default:
		return false
	}
}

// Terminal reports whether the severity terminates processing. A terminal
// patient is never handed to the optimizer or the chain builder.
func (s Severity) Terminal() bool {
	return s == DEAD
}

// String returns the string representation of the severity.
func (s Severity) String() string {
	return string(s)
}

// IsValid validates the incident type.
func (t IncidentType) IsValid() bool {
	switch t {
	case MCI, MEDEVAC, PHE:
		return true
	default:
		return false
	}
}

// String returns the string representation of the incident type.
func (t IncidentType) String() string {
	return string(t)
}

// IsValid validates the facility level against the 1..3 echelon scale.
func (l FacilityLevel) IsValid() bool {
	return l >= LevelDefinitiveCare && l <= LevelStabilization
}

// Role returns the NATO Role label for the facility level.
func (l FacilityLevel) Role() string {
	switch l {
	case LevelDefinitiveCare:
		return "Role 3"
	case LevelAdvancedTrauma:
		return "Role 2"
	case LevelStabilization:
		return "Role 1"
	default:
		return "Unknown"
	}
}

// String returns the string representation of the action.
func (a DecisionAction) String() string {
	return string(a)
}

// String returns the string representation of the reasoning code.
func (c ReasoningCode) String() string {
	return string(c)
}
