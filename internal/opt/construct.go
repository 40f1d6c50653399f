package opt

import (
	"context"
	"time"
)

// Empty returns a solution with one empty route per vehicle and no jobs placed.
func (ev *Evaluator) Empty() *Solution {
	s := &Solution{Routes: make([]Route, len(ev.P.Vehicles))}
	for i := range s.Routes {
		s.Routes[i].Vehicle = i
	}
	ev.Evaluate(s)
	return s
}

// Construct builds the initial solution by cheapest insertion. Each round inserts the
// job whose best feasible placement over all routes and positions is cheapest, ties
// going to the smallest job id. Jobs that fit nowhere are left unassigned with the
// constraints that rejected them.
func (ev *Evaluator) Construct() *Solution { return ev.ConstructUntil(nil) }

// ConstructUntil is Construct polling halt between insertions. Once it fires, the jobs
// still pending are appended at the cheapest feasible route end, so the result is
// always a complete solution.
func (ev *Evaluator) ConstructUntil(halt Halt) *Solution {
	s := ev.Empty()
	pending := make([]int, len(ev.P.Jobs))
	for i := range pending {
		pending[i] = i
	}
	ev.recreateCheapest(s, pending, halt)
	return s
}

// Budget returns a Halt that fires once ctx is done or, when maxTime is positive,
// maxTime has passed since started on the now clock.
func Budget(ctx context.Context, started time.Time, maxTime time.Duration, now func() time.Time) Halt {
	if now == nil {
		now = time.Now
	}
	return func() bool {
		if ctx.Err() != nil {
			return true
		}
		return maxTime > 0 && now().Sub(started) >= maxTime
	}
}
