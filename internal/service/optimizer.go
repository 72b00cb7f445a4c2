package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lorenz-liu/disaster-agent/internal/domain"
	"github.com/lorenz-liu/disaster-agent/internal/solver"
)

// AssignmentOptimizer resolves single-destination transfers for MCI/PHE
// incidents. It formulates a capacitated 0/1 assignment over the whole
// patient batch, solves it through the solver backend, and degrades to a
// deterministic greedy per-patient minimizer whenever the backend cannot
// produce a usable solution. The greedy path never fails: it always returns
// a best-effort facility if at least one reachable facility exists.
type AssignmentOptimizer struct {
	logger  *logrus.Logger
	cfg     *domain.OptimizationConfig
	cost    *CostModel
	backend solver.Solver
}

// NewAssignmentOptimizer creates the optimizer over a solver backend.
func NewAssignmentOptimizer(logger *logrus.Logger, cfg *domain.OptimizationConfig, backend solver.Solver) *AssignmentOptimizer {
	return &AssignmentOptimizer{
		logger:  logger,
		cfg:     cfg,
		cost:    NewCostModel(cfg),
		backend: backend,
	}
}

// SolveBatch produces one decision per patient. Capacity constraints bind
// across the whole batch: two patients competing for a facility's last ICU
// bed cannot both be assigned there.
func (o *AssignmentOptimizer) SolveBatch(ctx context.Context, patients []domain.Patient, facilities []domain.Facility, now time.Time) map[string]*domain.Decision {
	results := make(map[string]*domain.Decision, len(patients))

	// Phase 1: resolve patients who must forfeit before any optimization.
	active := make([]domain.Patient, 0, len(patients))
	for i := range patients {
		p := &patients[i]

		if p.Acuity.Terminal() || p.Deceased {
			results[p.ID] = forfeit(p.ID, domain.PatientDeceased, "Patient has deceased or survival window expired")
			continue
		}

		slack := survivalSlackMinutes(p, now, o.cfg)
		if slack <= 0 {
			results[p.ID] = forfeit(p.ID, domain.PatientDeceased, "Patient has deceased or survival window expired")
			continue
		}

		if !o.reachableWithinSlack(p, facilities, slack) {
			results[p.ID] = forfeit(p.ID, domain.DeadOnArrivalAll,
				fmt.Sprintf("No facility reachable within survival window (%.1f min)", slack))
			continue
		}

		active = append(active, *p)
	}

	if len(active) == 0 {
		return results
	}

	// Phase 2: pooled solve under the configured time budget.
	solveCtx, cancel := context.WithTimeout(ctx, o.cfg.SolveTimeBudget)
	defer cancel()

	problem := o.buildProblem(active, facilities, nil)
	solution, err := o.backend.Solve(solveCtx, problem)
	if err != nil {
		o.logger.WithError(err).Warn("Assignment solve failed, using greedy fallback")
		solution = &solver.Solution{Status: solver.StatusAbnormal}
	}

	// Phase 3: extract the solution, or degrade to the greedy path.
	if solution.Status.Solved() {
		for i := range active {
			p := &active[i]
			facilityID, ok := solution.Assignments[p.ID]
			f := findFacility(facilities, facilityID)
			if !ok || f == nil {
				results[p.ID] = o.greedyDecision(p, facilities, solution.Status)
				continue
			}

			eta := ETAMinutes(p.Location, f.Location, o.cfg.GroundSpeedKMH)
			results[p.ID] = &domain.Decision{
				PatientID:     p.ID,
				Action:        domain.TRANSFER,
				ReasoningCode: domain.TransferOptimal,
				Destination: &domain.Destination{
					FacilityID:   f.ID,
					FacilityName: f.Name,
					ETAMinutes:   eta,
				},
				Alternatives: o.findAlternatives(ctx, p, f.ID, active, facilities),
				SolverStatus: string(solution.Status),
			}
		}

		o.logger.WithFields(logrus.Fields{
			"patients":      len(active),
			"facilities":    len(facilities),
			"solver_status": string(solution.Status),
		}).Info("Batch assignment completed")
		return results
	}

	o.logger.WithFields(logrus.Fields{
		"patients":      len(active),
		"solver_status": string(solution.Status),
	}).Warn("Solver returned no usable solution, degrading to greedy assignment")

	for i := range active {
		results[active[i].ID] = o.greedyDecision(&active[i], facilities, solution.Status)
	}
	return results
}

// reachableWithinSlack reports whether at least one facility lies strictly
// inside the patient's survival window.
func (o *AssignmentOptimizer) reachableWithinSlack(p *domain.Patient, facilities []domain.Facility, slack float64) bool {
	for i := range facilities {
		if ETAMinutes(p.Location, facilities[i].Location, o.cfg.GroundSpeedKMH) < slack {
			return true
		}
	}
	return false
}

// buildProblem formulates the batch as a capacitated assignment problem:
// one unit per patient, one capacity pool per (facility, tracked resource)
// with positive capacity, and the full pooled pair cost as objective
// coefficient. Unreachable pairings are omitted rather than priced.
func (o *AssignmentOptimizer) buildProblem(active []domain.Patient, facilities []domain.Facility, excluded map[string][]string) *solver.Problem {
	problem := &solver.Problem{}

	poolIndex := make(map[string]int)
	for i := range facilities {
		f := &facilities[i]
		for _, resName := range o.cfg.ManagedResources {
			if f.Resources[resName] > 0 {
				poolIndex[f.ID+"/"+resName] = len(problem.Pools)
				problem.Pools = append(problem.Pools, solver.Pool{
					Key:      f.ID + "/" + resName,
					Capacity: f.Resources[resName],
				})
			}
		}
	}

	for i := range active {
		p := &active[i]
		unit := solver.Unit{ID: p.ID}
		for j := range facilities {
			f := &facilities[j]
			eta := ETAMinutes(p.Location, f.Location, o.cfg.GroundSpeedKMH)
			if math.IsInf(eta, 1) {
				continue
			}
			opt := solver.Option{
				Key:  f.ID,
				Cost: o.cost.PairCost(p, f, eta, true),
			}
			for _, resName := range o.cfg.ManagedResources {
				required := p.RequiredResources[resName]
				if required <= 0 {
					continue
				}
				if pool, ok := poolIndex[f.ID+"/"+resName]; ok {
					if opt.Demand == nil {
						opt.Demand = make(map[int]int)
					}
					opt.Demand[pool] = required
				}
			}
			unit.Options = append(unit.Options, opt)
		}
		problem.Units = append(problem.Units, unit)
	}

	for patientID, facilityIDs := range excluded {
		for _, facilityID := range facilityIDs {
			problem.Exclude(patientID, facilityID)
		}
	}
	return problem
}

// findAlternatives re-solves the identical batch up to MaxAlternatives
// times, each round excluding the facilities already found for the target
// patient. Alternatives keep discovery order; the loop stops at the first
// non-feasible re-solve or missing assignment.
func (o *AssignmentOptimizer) findAlternatives(ctx context.Context, p *domain.Patient, chosenID string, active []domain.Patient, facilities []domain.Facility) []domain.Alternative {
	var alternatives []domain.Alternative
	excluded := map[string][]string{p.ID: {chosenID}}

	for k := 0; k < o.cfg.MaxAlternatives; k++ {
		solveCtx, cancel := context.WithTimeout(ctx, o.cfg.SolveTimeBudget)
		solution, err := o.backend.Solve(solveCtx, o.buildProblem(active, facilities, excluded))
		cancel()
		if err != nil || !solution.Status.Solved() {
			break
		}

		facilityID, ok := solution.Assignments[p.ID]
		f := findFacility(facilities, facilityID)
		if !ok || f == nil {
			break
		}

		alternatives = append(alternatives, domain.Alternative{
			FacilityID:   f.ID,
			FacilityName: f.Name,
			ETAMinutes:   ETAMinutes(p.Location, f.Location, o.cfg.GroundSpeedKMH),
		})
		excluded[p.ID] = append(excluded[p.ID], f.ID)
	}
	return alternatives
}

// greedyDecision is the deterministic fallback: the cheapest facility per
// patient considering only time cost and capability mismatch, ignoring
// shared capacity. It never fails while one reachable facility exists.
func (o *AssignmentOptimizer) greedyDecision(p *domain.Patient, facilities []domain.Facility, status solver.Status) *domain.Decision {
	var best *domain.Facility
	bestCost := math.Inf(1)
	bestETA := 0.0

	weight := o.cfg.AcuityWeight(p.Acuity)
	for i := range facilities {
		f := &facilities[i]
		eta := ETAMinutes(p.Location, f.Location, o.cfg.GroundSpeedKMH)
		if math.IsInf(eta, 1) {
			continue
		}
		cost := eta * weight
		capPenalty, _ := o.cost.CapabilityPenalty(p, f)
		cost += capPenalty

		if cost < bestCost {
			bestCost = cost
			best = f
			bestETA = eta
		}
	}

	if best == nil {
		return forfeit(p.ID, domain.NoFacilitiesAvailable, "No suitable facility available")
	}

	return &domain.Decision{
		PatientID:     p.ID,
		Action:        domain.TRANSFER,
		ReasoningCode: domain.TransferFallback,
		Destination: &domain.Destination{
			FacilityID:   best.ID,
			FacilityName: best.Name,
			ETAMinutes:   bestETA,
		},
		SolverStatus:   string(status),
		FallbackReason: fmt.Sprintf("Solver returned %s", status),
	}
}

func forfeit(patientID string, code domain.ReasoningCode, reasoning string) *domain.Decision {
	return &domain.Decision{
		PatientID:     patientID,
		Action:        domain.FORFEIT,
		ReasoningCode: code,
		Reasoning:     reasoning,
	}
}

func findFacility(facilities []domain.Facility, id string) *domain.Facility {
	for i := range facilities {
		if facilities[i].ID == id {
			return &facilities[i]
		}
	}
	return nil
}
