package solver

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
)

// BranchAndBound is an exact backend for the assignment Problem. It explores
// units in a fixed order (fewest candidates first), tries each unit's options
// in ascending cost order, and prunes subtrees whose lower bound cannot beat
// the incumbent. The search is fully deterministic: equal-cost ties break on
// option key, so repeated solves of the same problem yield the same solution.
type BranchAndBound struct {
	logger *logrus.Logger
}

// NewBranchAndBound creates the branch-and-bound solver backend.
func NewBranchAndBound(logger *logrus.Logger) *BranchAndBound {
	return &BranchAndBound{logger: logger}
}

type searchState struct {
	units     []searchUnit
	remaining []int // pool capacities left
	suffixMin []float64

	assignment []int // option index per unit, -1 when unassigned
	cost       float64

	best     []int
	bestCost float64
	found    bool

	deadline time.Time
	timedOut bool
	nodes    int
}

type searchUnit struct {
	id      string
	options []Option // feasible candidates, sorted by cost then key
}

// Solve runs the exact search. A context deadline bounds the solve: when the
// budget runs out the incumbent (if any) is returned as FEASIBLE, otherwise
// the status is NOT_SOLVED so the caller can fall back to its greedy path.
func (s *BranchAndBound) Solve(ctx context.Context, problem *Problem) (*Solution, error) {
	if err := problem.Validate(); err != nil {
		return &Solution{Status: StatusAbnormal}, err
	}
	if len(problem.Units) == 0 {
		return &Solution{Status: StatusOptimal, Assignments: map[string]string{}}, nil
	}

	st := &searchState{
		remaining: make([]int, len(problem.Pools)),
		bestCost:  math.Inf(1),
	}
	for i, pool := range problem.Pools {
		st.remaining[i] = pool.Capacity
	}
	if dl, ok := ctx.Deadline(); ok {
		st.deadline = dl
	}

	// Candidate lists drop excluded pairs and non-finite costs (an infinite
	// pairing cost encodes an unreachable facility).
	for _, u := range problem.Units {
		cands := make([]Option, 0, len(u.Options))
		for _, opt := range u.Options {
			if problem.IsExcluded(u.ID, opt.Key) || math.IsInf(opt.Cost, 0) || math.IsNaN(opt.Cost) {
				continue
			}
			cands = append(cands, opt)
		}
		if len(cands) == 0 {
			return &Solution{Status: StatusInfeasible}, nil
		}
		sort.Slice(cands, func(i, j int) bool {
			if cands[i].Cost != cands[j].Cost {
				return cands[i].Cost < cands[j].Cost
			}
			return cands[i].Key < cands[j].Key
		})
		st.units = append(st.units, searchUnit{id: u.ID, options: cands})
	}

	// Most constrained units first keeps the tree narrow near the root.
	sort.SliceStable(st.units, func(i, j int) bool {
		if len(st.units[i].options) != len(st.units[j].options) {
			return len(st.units[i].options) < len(st.units[j].options)
		}
		return st.units[i].id < st.units[j].id
	})

	// suffixMin[i] is the cheapest possible completion cost from unit i on,
	// ignoring capacity. It is an admissible lower bound for pruning.
	st.suffixMin = make([]float64, len(st.units)+1)
	for i := len(st.units) - 1; i >= 0; i-- {
		st.suffixMin[i] = st.suffixMin[i+1] + st.units[i].options[0].Cost
	}

	st.assignment = make([]int, len(st.units))
	for i := range st.assignment {
		st.assignment[i] = -1
	}

	s.search(st, 0)

	sol := &Solution{}
	switch {
	case st.found && !st.timedOut:
		sol.Status = StatusOptimal
	case st.found && st.timedOut:
		sol.Status = StatusFeasible
	case st.timedOut:
		sol.Status = StatusNotSolved
	default:
		sol.Status = StatusInfeasible
	}

	if st.found {
		sol.Assignments = make(map[string]string, len(st.units))
		for i, u := range st.units {
			sol.Assignments[u.id] = u.options[st.best[i]].Key
		}
		sol.Objective = st.bestCost
	}

	s.logger.WithFields(logrus.Fields{
		"status":    string(sol.Status),
		"units":     len(st.units),
		"pools":     len(problem.Pools),
		"nodes":     st.nodes,
		"objective": sol.Objective,
	}).Debug("Assignment solve completed")

	return sol, nil
}

func (s *BranchAndBound) search(st *searchState, depth int) {
	st.nodes++
	if st.timedOut {
		return
	}
	if !st.deadline.IsZero() && st.nodes%256 == 0 && time.Now().After(st.deadline) {
		st.timedOut = true
		return
	}

	if depth == len(st.units) {
		if st.cost < st.bestCost {
			st.bestCost = st.cost
			st.best = append(st.best[:0], st.assignment...)
			st.found = true
		}
		return
	}

	if st.cost+st.suffixMin[depth] >= st.bestCost {
		return
	}

	unit := st.units[depth]
	for idx, opt := range unit.options {
		if !s.fits(st, opt) {
			continue
		}
		if st.cost+opt.Cost+st.suffixMin[depth+1] >= st.bestCost {
			// Options are cost-sorted, so every later option prunes too.
			break
		}

		s.take(st, opt)
		st.assignment[depth] = idx
		st.cost += opt.Cost

		s.search(st, depth+1)

		st.cost -= opt.Cost
		st.assignment[depth] = -1
		s.release(st, opt)

		if st.timedOut {
			return
		}
	}
}

func (s *BranchAndBound) fits(st *searchState, opt Option) bool {
	for pool, qty := range opt.Demand {
		if qty > st.remaining[pool] {
			return false
		}
	}
	return true
}

func (s *BranchAndBound) take(st *searchState, opt Option) {
	for pool, qty := range opt.Demand {
		st.remaining[pool] -= qty
	}
}

func (s *BranchAndBound) release(st *searchState, opt Option) {
	for pool, qty := range opt.Demand {
		st.remaining[pool] += qty
	}
}
