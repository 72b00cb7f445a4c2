// Package solver defines the contract the transfer engine requires of a
// capacitated assignment solver, plus a deterministic branch-and-bound
// backend. The engine only depends on the Solver interface, so a different
// integer-programming backend can be swapped in without touching the cost
// model or decision paths.
package solver

import (
	"context"
	"fmt"
)

// Status mirrors the classic MILP solver status vocabulary so callers can
// branch on the full set even when a backend only produces a subset.
type Status string

const (
	StatusOptimal    Status = "OPTIMAL"
	StatusFeasible   Status = "FEASIBLE"
	StatusInfeasible Status = "INFEASIBLE"
	StatusUnbounded  Status = "UNBOUNDED"
	StatusAbnormal   Status = "ABNORMAL"
	StatusNotSolved  Status = "NOT_SOLVED"
)

// Solved reports whether the status carries a usable assignment.
func (s Status) Solved() bool {
	return s == StatusOptimal || s == StatusFeasible
}

// Option is one selectable assignment for a unit: a candidate facility with
// its pairing cost and the capacity it would consume from shared pools.
type Option struct {
	Key    string
	Cost   float64
	Demand map[int]int // pool index -> quantity consumed
}

// Unit is one entity that must be assigned to exactly one of its options.
type Unit struct {
	ID      string
	Options []Option
}

// Pool is a shared capacity constraint: the summed demand of all chosen
// options against a pool must not exceed its capacity.
type Pool struct {
	Key      string
	Capacity int
}

// Problem is a 0/1 capacitated assignment problem. Excluded pins named
// (unit, option) pairs to zero; it exists as an explicit constraint (rather
// than option removal by the caller) because alternative generation re-solves
// the identical problem with a growing exclusion set.
type Problem struct {
	Units    []Unit
	Pools    []Pool
	Excluded map[string]map[string]bool // unit ID -> option keys forced to 0
}

// Exclude adds an exclusion constraint for one (unit, option) pair.
func (p *Problem) Exclude(unitID, optionKey string) {
	if p.Excluded == nil {
		p.Excluded = make(map[string]map[string]bool)
	}
	if p.Excluded[unitID] == nil {
		p.Excluded[unitID] = make(map[string]bool)
	}
	p.Excluded[unitID][optionKey] = true
}

// IsExcluded reports whether a pair is pinned to zero.
func (p *Problem) IsExcluded(unitID, optionKey string) bool {
	return p.Excluded[unitID][optionKey]
}

// Solution is the outcome of one solve. Assignments maps unit ID to the
// chosen option key; it is populated only when Status.Solved().
type Solution struct {
	Status      Status
	Assignments map[string]string
	Objective   float64
}

// Solver solves capacitated assignment problems. Implementations respect the
// context deadline: an exhausted budget yields StatusFeasible when an
// incumbent exists and StatusNotSolved otherwise, never an error.
type Solver interface {
	Solve(ctx context.Context, problem *Problem) (*Solution, error)
}

// Validate checks structural sanity of a problem before solving.
func (p *Problem) Validate() error {
	seen := make(map[string]bool, len(p.Units))
	for _, u := range p.Units {
		if u.ID == "" {
			return fmt.Errorf("solver: unit with empty ID")
		}
		if seen[u.ID] {
			return fmt.Errorf("solver: duplicate unit ID %q", u.ID)
		}
		seen[u.ID] = true
		for _, opt := range u.Options {
			for pool := range opt.Demand {
				if pool < 0 || pool >= len(p.Pools) {
					return fmt.Errorf("solver: option %s/%s references unknown pool %d", u.ID, opt.Key, pool)
				}
			}
		}
	}
	return nil
}
