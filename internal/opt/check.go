package opt

import (
	"fmt"
	"math"
)

// CheckSolution verifies the structural invariants of s: one route slot per vehicle,
// every job either fully on one route or unassigned exactly once, every route feasible,
// and cached costs consistent with a fresh evaluation.
func (ev *Evaluator) CheckSolution(s *Solution) error {
	if len(s.Routes) != len(ev.P.Vehicles) {
		return fmt.Errorf("check: %d route slots for %d vehicles", len(s.Routes), len(ev.P.Vehicles))
	}
	seen := make([]int, len(ev.P.Jobs))
	where := make([]int, len(ev.P.Jobs))
	for i := range where {
		where[i] = -1
	}
	sum := 0.0
	for ri, r := range s.Routes {
		if r.Vehicle != ri {
			return fmt.Errorf("check: route slot %d holds vehicle %d", ri, r.Vehicle)
		}
		for _, st := range r.Stops {
			if st.Job < 0 || st.Job >= len(ev.P.Jobs) || st.Task < 0 || st.Task >= len(ev.P.Jobs[st.Job].Tasks) {
				return fmt.Errorf("check: route %d has invalid stop %+v", ri, st)
			}
			if where[st.Job] >= 0 && where[st.Job] != ri {
				return fmt.Errorf("check: job %s split across routes", ev.P.Jobs[st.Job].ID)
			}
			where[st.Job] = ri
			seen[st.Job]++
		}
		c, viol := ev.cost(r.Vehicle, r.Stops)
		if viol != 0 {
			return fmt.Errorf("check: route %d violates constraint %d", ri, viol)
		}
		if math.Abs(c-r.Cost) > 1e-6*math.Max(1, math.Abs(c)) {
			return fmt.Errorf("check: route %d cached cost %v, evaluated %v", ri, r.Cost, c)
		}
		sum += c
	}
	for _, u := range s.Unassigned {
		if u.Job < 0 || u.Job >= len(ev.P.Jobs) {
			return fmt.Errorf("check: invalid unassigned job %d", u.Job)
		}
		if seen[u.Job] != 0 || where[u.Job] == -2 {
			return fmt.Errorf("check: job %s both assigned and unassigned", ev.P.Jobs[u.Job].ID)
		}
		where[u.Job] = -2
	}
	for j, job := range ev.P.Jobs {
		switch {
		case where[j] == -1:
			return fmt.Errorf("check: job %s is missing", job.ID)
		case where[j] >= 0 && seen[j] != len(job.Tasks):
			return fmt.Errorf("check: job %s has %d of %d tasks on route", job.ID, seen[j], len(job.Tasks))
		case where[j] >= 0 && !ev.P.Vehicles[where[j]].HasSkills(job.Skills):
			return fmt.Errorf("check: job %s on vehicle without required skills", job.ID)
		}
	}
	total := sum + ev.P.Weights.Unassigned*float64(len(s.Unassigned))
	if math.Abs(total-s.Cost) > 1e-6*math.Max(1, math.Abs(total)) {
		return fmt.Errorf("check: cached total %v, evaluated %v", s.Cost, total)
	}
	return nil
}
