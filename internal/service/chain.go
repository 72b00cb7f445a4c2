package service

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/lorenz-liu/disaster-agent/internal/domain"
)

// ChainBuilder constructs Role 1 -> Role 2 -> Role 3 evacuation chains for
// MEDEVAC incidents. Each echelon is chosen greedily against its own
// cumulative deadline; the builder never backtracks to revise an earlier
// leg once a later echelon turns out to be tight.
type ChainBuilder struct {
	logger *logrus.Logger
	cfg    *domain.OptimizationConfig
	cost   *CostModel
}

// NewChainBuilder creates the evacuation chain builder.
func NewChainBuilder(logger *logrus.Logger, cfg *domain.OptimizationConfig) *ChainBuilder {
	return &ChainBuilder{
		logger: logger,
		cfg:    cfg,
		cost:   NewCostModel(cfg),
	}
}

// echelon pairs a facility level with the NATO role label and the cumulative
// deadline that governs arrival at that echelon.
type echelon struct {
	level    domain.FacilityLevel
	role     string
	deadline float64
}

// Build walks the echelons from point of injury toward definitive care. A
// facility qualifies for a leg only when its ETA fits the echelon's remaining
// time budget; echelons with no facilities in the roster are skipped rather
// than failing the chain.
func (b *ChainBuilder) Build(p *domain.Patient, facilities []domain.Facility, slackMinutes float64) *domain.Decision {
	if p.Location == nil {
		return forfeit(p.ID, domain.NoLocation, "Patient location unknown, cannot plan evacuation")
	}

	echelons := []echelon{
		{level: domain.LevelStabilization, role: "Role 1", deadline: b.cfg.Role1DeadlineMinutes},
		{level: domain.LevelAdvancedTrauma, role: "Role 2", deadline: b.cfg.Role2DeadlineMinutes},
		{level: domain.LevelDefinitiveCare, role: "Role 3", deadline: slackMinutes},
	}

	var chain []domain.ChainLeg
	cumulative := 0.0
	current := p.Location

	for _, ech := range echelons {
		candidates := facilitiesAtLevel(facilities, ech.level)
		if len(candidates) == 0 {
			continue
		}

		budget := ech.deadline - cumulative
		best, eta := b.bestWithinBudget(p, candidates, current, budget)
		if best == nil {
			continue
		}

		cumulative += eta
		chain = append(chain, domain.ChainLeg{
			Role:               ech.role,
			Level:              best.Level,
			FacilityID:         best.ID,
			FacilityName:       best.Name,
			ETAMinutes:         eta,
			CumulativeMinutes:  cumulative,
			TimelineCompliance: cumulative <= ech.deadline,
		})
		if best.Location != nil {
			current = best.Location
		}
	}

	if len(chain) == 0 {
		return forfeit(p.ID, domain.NoViableChain, "No evacuation chain satisfies NATO timelines")
	}

	if cumulative > slackMinutes {
		d := forfeit(p.ID, domain.DeadOnArrival,
			fmt.Sprintf("Evacuation chain exceeds survival window (%.1f > %.1f min)", cumulative, slackMinutes))
		d.EvacuationChain = chain
		d.TotalTimeMinutes = cumulative
		d.SurvivalWindowMinutes = slackMinutes
		return d
	}

	b.logger.WithFields(logrus.Fields{
		"patient_id":    p.ID,
		"legs":          len(chain),
		"total_minutes": cumulative,
	}).Info("Evacuation chain constructed")

	return &domain.Decision{
		PatientID:     p.ID,
		Action:        domain.TRANSFER,
		ReasoningCode: domain.EvacuationChainOptimal,
		Reasoning: fmt.Sprintf("NATO-compliant evacuation chain constructed (%d facilities, total time: %.1f min)",
			len(chain), cumulative),
		EvacuationChain:       chain,
		TotalTimeMinutes:      cumulative,
		SurvivalWindowMinutes: slackMinutes,
		NATOCompliance:        compliance(chain, cumulative, slackMinutes),
	}
}

// bestWithinBudget picks the cheapest qualifying facility for a leg. Pairs
// over the time budget are excluded outright, not penalized; cost ties break
// toward the earlier facility in roster order.
func (b *ChainBuilder) bestWithinBudget(p *domain.Patient, candidates []domain.Facility, from *domain.Location, budget float64) (*domain.Facility, float64) {
	var best *domain.Facility
	bestCost := 0.0
	bestETA := 0.0

	for i := range candidates {
		f := &candidates[i]
		eta := ETAMinutes(from, f.Location, b.cfg.GroundSpeedKMH)
		if eta > budget {
			continue
		}
		cost := b.cost.PairCost(p, f, eta, false)
		if best == nil || cost < bestCost {
			best = f
			bestCost = cost
			bestETA = eta
		}
	}
	return best, bestETA
}

func facilitiesAtLevel(facilities []domain.Facility, level domain.FacilityLevel) []domain.Facility {
	var out []domain.Facility
	for i := range facilities {
		if facilities[i].Level == level {
			out = append(out, facilities[i])
		}
	}
	return out
}

func compliance(chain []domain.ChainLeg, cumulative, slackMinutes float64) *domain.NATOCompliance {
	c := &domain.NATOCompliance{SurvivalCompliant: cumulative <= slackMinutes}
	for _, leg := range chain {
		switch leg.Role {
		case "Role 1":
			c.Role1Compliant = leg.TimelineCompliance
		case "Role 2":
			c.Role2Compliant = leg.TimelineCompliance
		}
	}
	return c
}
