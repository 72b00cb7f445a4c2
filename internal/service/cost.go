package service

import (
	"math"

	"github.com/lorenz-liu/disaster-agent/internal/domain"
)

// CostModel computes the per-pairing cost terms used by both the pooled
// optimizer and the chain builder. All functions are pure over a
// (patient, facility) pair; every weight and penalty comes from the injected
// configuration, never from constants in this package.
type CostModel struct {
	cfg *domain.OptimizationConfig
}

// NewCostModel creates a cost model over the given tunables.
func NewCostModel(cfg *domain.OptimizationConfig) *CostModel {
	return &CostModel{cfg: cfg}
}

// CapabilityPenalty charges a large fixed penalty per capability the patient
// requires and the facility lacks, and reports whether any hard mismatch
// exists. A missing requirement or missing facility datum is "no constraint".
func (m *CostModel) CapabilityPenalty(p *domain.Patient, f *domain.Facility) (float64, bool) {
	if len(p.RequiredCapabilities) == 0 || len(f.Capabilities) == 0 {
		return 0, false
	}
	var penalty float64
	mismatch := false
	for _, capName := range m.cfg.ManagedCapabilities {
		if p.RequiredCapabilities[capName] && !f.Capabilities[capName] {
			penalty += m.cfg.CapabilityMismatchPenalty
			mismatch = true
		}
	}
	return penalty, mismatch
}

// ResourceDeficit reports per-resource shortfalls where the patient's
// required quantity exceeds facility availability. The deficit penalty is
// charged once per assignment, not per unit short.
func (m *CostModel) ResourceDeficit(p *domain.Patient, f *domain.Facility) (map[string]int, bool) {
	if len(p.RequiredResources) == 0 || len(f.Resources) == 0 {
		return nil, false
	}
	deficit := make(map[string]int)
	for _, resName := range m.cfg.ManagedResources {
		required := p.RequiredResources[resName]
		if required <= 0 {
			continue
		}
		available := f.Resources[resName]
		if available < required {
			deficit[resName] = required - available
		}
	}
	return deficit, len(deficit) > 0
}

// ResourceStress sums the continuous congestion penalty across resource
// types. It applies even when capacity nominally suffices, spreading load
// away from near-saturated facilities.
func (m *CostModel) ResourceStress(p *domain.Patient, f *domain.Facility) float64 {
	if len(p.RequiredResources) == 0 || len(f.Resources) == 0 {
		return 0
	}
	var stress float64
	for _, resName := range m.cfg.ManagedResources {
		required := p.RequiredResources[resName]
		if required <= 0 {
			continue
		}
		available, ok := f.Resources[resName]
		if !ok {
			// Facility does not track this resource: no constraint.
			continue
		}
		if available > 0 {
			stress += m.cfg.ResourceStress(required, available)
		}
	}
	return stress
}

// StewardshipPenalty charges for every scarce capability the facility has
// that the patient does not need, preserving specialized facilities for
// patients who require them. Only the pooled optimizer applies this term.
func (m *CostModel) StewardshipPenalty(p *domain.Patient, f *domain.Facility) float64 {
	if len(p.RequiredCapabilities) == 0 || len(f.Capabilities) == 0 {
		return 0
	}
	var penalty float64
	for _, capName := range m.cfg.ManagedCapabilities {
		if f.Capabilities[capName] && !p.RequiredCapabilities[capName] {
			penalty += m.cfg.ScarcityPenalty(capName)
		}
	}
	return penalty
}

// PairCost computes the full pairing cost for a given ETA:
//
//	eta x acuity weight + capability penalty + resource stress
//	  + deficit penalty (once, if any shortfall)
//	  + stewardship penalty (pooled optimizer only)
//	  - acuity-level affinity score
func (m *CostModel) PairCost(p *domain.Patient, f *domain.Facility, etaMinutes float64, pooled bool) float64 {
	if math.IsInf(etaMinutes, 1) {
		// Unreachable pairing; keep it infinite even for zero-weight acuities.
		return etaMinutes
	}
	cost := etaMinutes * m.cfg.AcuityWeight(p.Acuity)

	capPenalty, _ := m.CapabilityPenalty(p, f)
	cost += capPenalty
	cost += m.ResourceStress(p, f)

	if _, short := m.ResourceDeficit(p, f); short {
		cost += m.cfg.ResourceDeficitPenalty
	}
	if pooled {
		cost += m.StewardshipPenalty(p, f)
	}

	cost -= m.cfg.AcuityLevelScore(p.Acuity, f.Level)
	return cost
}
