package opt

import (
	"math"
	"math/rand"
	"sort"

	"vrpengine/internal/model"
)

// ruinFunc removes some assigned jobs from s and returns them.
type ruinFunc func(ev *Evaluator, s *Solution, k int, rng *rand.Rand) []int

var ruins = []struct {
	name string
	fn   ruinFunc
}{
	{"random-job", ruinRandomJob},
	{"random-route", ruinRandomRoute},
	{"neighbour", ruinNeighbour},
	{"worst-job", ruinWorstJob},
}

// ruinSize picks how many jobs to remove this generation.
func ruinSize(assigned int, rng *rand.Rand) int {
	if assigned == 0 {
		return 0
	}
	limit := min(assigned, 3+assigned/10)
	return 1 + rng.Intn(limit)
}

// removeJobs takes jobs off their routes. Without the triangle inequality a shorter
// route can become infeasible; such a route is emptied and its jobs join the removed set.
func (ev *Evaluator) removeJobs(s *Solution, jobs []int) []int {
	touched := map[int]bool{}
	for _, j := range jobs {
		if ri := s.locate(j); ri >= 0 {
			s.removeJob(ri, j)
			touched[ri] = true
		}
	}
	removed := append([]int(nil), jobs...)
	for ri := range s.Routes {
		if !touched[ri] {
			continue
		}
		ev.refresh(s, ri)
		if !math.IsInf(s.Routes[ri].Cost, 1) {
			continue
		}
		for _, st := range s.Routes[ri].Stops {
			if st.Task == 0 {
				removed = append(removed, st.Job)
			}
		}
		s.Routes[ri].Stops = nil
		ev.refresh(s, ri)
	}
	return removed
}

func ruinRandomJob(ev *Evaluator, s *Solution, k int, rng *rand.Rand) []int {
	all := s.Assigned()
	var removed []int
	for i := 0; i < k && len(all) > 0; i++ {
		j := rng.Intn(len(all))
		removed = append(removed, all[j])
		all = append(all[:j], all[j+1:]...)
	}
	return ev.removeJobs(s, removed)
}

func ruinRandomRoute(ev *Evaluator, s *Solution, _ int, rng *rand.Rand) []int {
	var used []int
	for ri, r := range s.Routes {
		if len(r.Stops) > 0 {
			used = append(used, ri)
		}
	}
	if len(used) == 0 {
		return nil
	}
	ri := used[rng.Intn(len(used))]
	var removed []int
	for _, st := range s.Routes[ri].Stops {
		if st.Task == 0 {
			removed = append(removed, st.Job)
		}
	}
	return ev.removeJobs(s, removed)
}

// ruinNeighbour removes a random seed job and the jobs most related to it by travel
// distance and time window proximity (Shaw removal).
func ruinNeighbour(ev *Evaluator, s *Solution, k int, rng *rand.Rand) []int {
	assigned := s.Assigned()
	if len(assigned) == 0 {
		return nil
	}
	seed := assigned[rng.Intn(len(assigned))]
	type scored struct {
		job   int
		score float64
	}
	profile := ev.P.Vehicles[s.Routes[s.locate(seed)].Vehicle].Profile
	st := ev.P.Jobs[seed].Tasks[0]
	var rel []scored
	for _, j := range assigned {
		if j == seed {
			continue
		}
		ot := ev.P.Jobs[j].Tasks[0]
		tr := ev.R.Travel(profile, st.Location, ot.Location)
		d := tr.Distance
		if math.IsInf(d, 1) {
			d = math.MaxFloat64 / 4
		}
		tw := math.Abs(windowStart(st.Windows) - windowStart(ot.Windows))
		rel = append(rel, scored{job: j, score: d + tw})
	}
	sort.SliceStable(rel, func(a, b int) bool { return rel[a].score < rel[b].score })
	removed := []int{seed}
	for i := 0; i < len(rel) && len(removed) < k; i++ {
		removed = append(removed, rel[i].job)
	}
	return ev.removeJobs(s, removed)
}

func windowStart(ws []model.TimeWindow) float64 {
	if len(ws) == 0 {
		return 0
	}
	return ws[0].Start
}

// ruinWorstJob removes the jobs whose removal saves most, randomized so the same
// jobs are not always picked.
func ruinWorstJob(ev *Evaluator, s *Solution, k int, rng *rand.Rand) []int {
	type saving struct {
		job   int
		value float64
	}
	var savings []saving
	for ri := range s.Routes {
		r := &s.Routes[ri]
		for _, st := range r.Stops {
			if st.Task != 0 {
				continue
			}
			without := withoutJob(r.Stops, st.Job)
			c, viol := ev.cost(r.Vehicle, without)
			if viol != 0 {
				continue
			}
			savings = append(savings, saving{job: st.Job, value: (r.Cost - c) * (0.5 + rng.Float64())})
		}
	}
	sort.SliceStable(savings, func(a, b int) bool { return savings[a].value > savings[b].value })
	var removed []int
	for i := 0; i < len(savings) && i < k; i++ {
		removed = append(removed, savings[i].job)
	}
	return ev.removeJobs(s, removed)
}

func withoutJob(stops []Stop, job int) []Stop {
	out := make([]Stop, 0, len(stops))
	for _, st := range stops {
		if st.Job != job {
			out = append(out, st)
		}
	}
	return out
}
