package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/lorenz-liu/disaster-agent/internal/domain"
	"github.com/lorenz-liu/disaster-agent/internal/solver"
)

// TransferService is the decision orchestrator. It gates every patient on
// viability, dispatches MEDEVAC incidents to the chain builder and everything
// else to the pooled optimizer, and enriches Transfer decisions with prose
// from the reasoning collaborator. The engine's verdict is final before
// enrichment starts: reasoning failures degrade the prose, never the outcome.
type TransferService struct {
	logger    *logrus.Logger
	cfg       *domain.OptimizationConfig
	optimizer *AssignmentOptimizer
	chain     *ChainBuilder
	reasoner  domain.ReasoningGenerator // nil disables enrichment

	now func() time.Time
}

// NewTransferService wires the orchestrator. reasoner may be nil, in which
// case Transfer decisions carry the templated fallback sentence.
func NewTransferService(logger *logrus.Logger, cfg *domain.OptimizationConfig, backend solver.Solver, reasoner domain.ReasoningGenerator) *TransferService {
	return &TransferService{
		logger:    logger,
		cfg:       cfg,
		optimizer: NewAssignmentOptimizer(logger, cfg, backend),
		chain:     NewChainBuilder(logger, cfg),
		reasoner:  reasoner,
		now:       time.Now,
	}
}

// survivalSlackMinutes returns minutes remaining until predicted death, or
// the configured default window when no prediction exists. Zero or negative
// slack means the patient cannot survive any transfer.
func survivalSlackMinutes(p *domain.Patient, now time.Time, cfg *domain.OptimizationConfig) float64 {
	if p.PredictedDeathAt == nil {
		return cfg.DefaultSurvivalWindowMinutes
	}
	return p.PredictedDeathAt.Sub(now).Minutes()
}

// Decide evaluates a single patient against the roster and returns exactly
// one decision. The viability gate runs before any facility is inspected, so
// a deceased patient forfeits even against an empty roster.
func (s *TransferService) Decide(ctx context.Context, p *domain.Patient, facilities []domain.Facility, incident domain.IncidentType) *domain.Decision {
	now := s.now()
	slack := survivalSlackMinutes(p, now, s.cfg)

	var d *domain.Decision
	switch {
	case p.Acuity.Terminal() || p.Deceased || slack <= 0:
		d = forfeit(p.ID, domain.PatientDeceased, "Patient has deceased or survival window expired")
	case incident == domain.MEDEVAC:
		d = s.chain.Build(p, facilities, slack)
	default:
		d = s.decideSingle(ctx, p, facilities, now)
	}

	s.finalize(ctx, d, p, facilities, incident, now, true)
	return d
}

// DecideBatch evaluates every patient in one pooled solve so capacity
// contention resolves across the batch. Batch decisions carry templated
// reasoning only; per-patient prose enrichment is a single-decision concern.
func (s *TransferService) DecideBatch(ctx context.Context, patients []domain.Patient, facilities []domain.Facility) map[string]*domain.Decision {
	now := s.now()
	results := s.optimizer.SolveBatch(ctx, patients, facilities, now)
	for i := range patients {
		p := &patients[i]
		if d, ok := results[p.ID]; ok {
			s.finalize(ctx, d, p, facilities, domain.MCI, now, false)
		}
	}
	return results
}

// decideSingle runs the single-destination path as a one-patient batch.
func (s *TransferService) decideSingle(ctx context.Context, p *domain.Patient, facilities []domain.Facility, now time.Time) *domain.Decision {
	if p.Location == nil {
		return forfeit(p.ID, domain.NoLocation, "Patient location unknown, cannot compute transfer")
	}

	results := s.optimizer.SolveBatch(ctx, []domain.Patient{*p}, facilities, now)
	d, ok := results[p.ID]
	if !ok {
		return forfeit(p.ID, domain.NoFacilitiesAvailable, "No suitable facility available")
	}
	return d
}

// finalize stamps identity and timing onto a decision and fills reasoning
// prose where the engine left it empty.
func (s *TransferService) finalize(ctx context.Context, d *domain.Decision, p *domain.Patient, facilities []domain.Facility, incident domain.IncidentType, now time.Time, enrich bool) {
	d.DecisionID = uuid.New().String()
	d.DecidedAt = now

	if d.Reasoning == "" {
		switch {
		case d.Action == domain.FORFEIT:
			d.Reasoning = fmt.Sprintf("Patient cannot be transferred (%s)", d.ReasoningCode)
		case d.Destination != nil && enrich:
			d.Reasoning = s.enrichReasoning(ctx, p, d, facilities, incident)
		case d.Destination != nil:
			d.Reasoning = fmt.Sprintf("Optimal facility selected using constraint optimization (ETA: %.1f min)",
				d.Destination.ETAMinutes)
		}
	}

	s.logger.WithFields(logrus.Fields{
		"decision_id":    d.DecisionID,
		"patient_id":     d.PatientID,
		"action":         string(d.Action),
		"reasoning_code": string(d.ReasoningCode),
	}).Info("Transfer decision finalized")
}

// enrichReasoning asks the reasoning collaborator for prose. The collaborator
// contract guarantees a usable sentence back, so this never alters anything
// except Decision.Reasoning.
func (s *TransferService) enrichReasoning(ctx context.Context, p *domain.Patient, d *domain.Decision, facilities []domain.Facility, incident domain.IncidentType) string {
	fallback := fmt.Sprintf("Optimal facility selected using constraint optimization (ETA: %.1f min)",
		d.Destination.ETAMinutes)
	if s.reasoner == nil {
		return fallback
	}

	f := findFacility(facilities, d.Destination.FacilityID)
	if f == nil {
		return fallback
	}

	var distanceKM float64
	if p.Location != nil && f.Location != nil {
		distanceKM = HaversineKM(*p.Location, *f.Location)
	}

	return s.reasoner.Generate(ctx, &domain.ReasoningRequest{
		Patient:      p,
		Destination:  f,
		ETAMinutes:   d.Destination.ETAMinutes,
		DistanceKM:   distanceKM,
		Alternatives: d.Alternatives,
		IncidentType: incident,
		SolverStatus: d.SolverStatus,
	})
}
