package opt

import (
	"math/rand"
)

// localFunc applies one improving move to s in place and reports whether it did.
type localFunc func(ev *Evaluator, s *Solution, rng *rand.Rand) bool

var locals = []struct {
	name string
	fn   localFunc
}{
	{"relocate", relocate},
	{"exchange", exchange},
	{"two-opt", twoOpt},
}

// sampleSize bounds how many candidates a local move inspects per generation.
const sampleSize = 8

// relocate moves one job to its best position in another route when that lowers cost.
func relocate(ev *Evaluator, s *Solution, rng *rand.Rand) bool {
	assigned := s.Assigned()
	if len(assigned) == 0 || len(s.Routes) < 2 {
		return false
	}
	var (
		bestGain = eps
		bestIns  insertion
		bestFrom = -1
		found    bool
	)
	for n := 0; n < sampleSize && n < len(assigned); n++ {
		job := assigned[rng.Intn(len(assigned))]
		from := s.locate(job)
		r := &s.Routes[from]
		without := withoutJob(r.Stops, job)
		c, viol := ev.cost(r.Vehicle, without)
		if viol != 0 {
			continue
		}
		saved := r.Cost - c
		for ri := range s.Routes {
			if ri == from {
				continue
			}
			var why reasonSet
			ins, ok := ev.bestInRoute(s, ri, job, &why)
			if !ok {
				continue
			}
			if gain := saved - ins.delta; gain > bestGain {
				bestGain, bestIns, bestFrom, found = gain, ins, from, true
			}
		}
	}
	if !found {
		return false
	}
	s.removeJob(bestFrom, bestIns.job)
	ev.refresh(s, bestFrom)
	ev.apply(s, bestIns)
	ev.total(s)
	return true
}

// exchange swaps two single-task jobs between different routes in place.
func exchange(ev *Evaluator, s *Solution, rng *rand.Rand) bool {
	type pos struct{ route, idx int }
	var singles []pos
	for ri, r := range s.Routes {
		for i, st := range r.Stops {
			if !ev.P.Jobs[st.Job].IsShipment() {
				singles = append(singles, pos{ri, i})
			}
		}
	}
	if len(singles) < 2 {
		return false
	}
	type move struct {
		a, b   pos
		ca, cb float64
	}
	var best *move
	bestGain := eps
	for n := 0; n < 2*sampleSize; n++ {
		a := singles[rng.Intn(len(singles))]
		b := singles[rng.Intn(len(singles))]
		if a.route == b.route {
			continue
		}
		ra, rb := &s.Routes[a.route], &s.Routes[b.route]
		sa := append([]Stop(nil), ra.Stops...)
		sb := append([]Stop(nil), rb.Stops...)
		sa[a.idx], sb[b.idx] = rb.Stops[b.idx], ra.Stops[a.idx]
		if !ev.P.Vehicles[ra.Vehicle].HasSkills(ev.P.Jobs[sa[a.idx].Job].Skills) ||
			!ev.P.Vehicles[rb.Vehicle].HasSkills(ev.P.Jobs[sb[b.idx].Job].Skills) {
			continue
		}
		ca, va := ev.cost(ra.Vehicle, sa)
		cb, vb := ev.cost(rb.Vehicle, sb)
		if va != 0 || vb != 0 {
			continue
		}
		if gain := ra.Cost + rb.Cost - ca - cb; gain > bestGain {
			bestGain = gain
			best = &move{a: a, b: b, ca: ca, cb: cb}
		}
	}
	if best == nil {
		return false
	}
	ra, rb := &s.Routes[best.a.route], &s.Routes[best.b.route]
	ra.Stops[best.a.idx], rb.Stops[best.b.idx] = rb.Stops[best.b.idx], ra.Stops[best.a.idx]
	ra.Cost, rb.Cost = best.ca, best.cb
	ev.total(s)
	return true
}

// twoOpt reverses the best improving segment of one random route.
func twoOpt(ev *Evaluator, s *Solution, rng *rand.Rand) bool {
	var used []int
	for ri, r := range s.Routes {
		if len(r.Stops) > 2 {
			used = append(used, ri)
		}
	}
	if len(used) == 0 {
		return false
	}
	ri := used[rng.Intn(len(used))]
	r := &s.Routes[ri]
	n := len(r.Stops)
	bestI, bestK, bestCost := -1, -1, r.Cost-eps
	cand := make([]Stop, n)
	for i := 0; i < n-1; i++ {
		for k := i + 1; k < n; k++ {
			copy(cand, r.Stops)
			reverse(cand[i : k+1])
			c, viol := ev.cost(r.Vehicle, cand)
			if viol != 0 {
				continue
			}
			if c < bestCost {
				bestI, bestK, bestCost = i, k, c
			}
		}
	}
	if bestI < 0 {
		return false
	}
	reverse(r.Stops[bestI : bestK+1])
	r.Cost = bestCost
	ev.total(s)
	return true
}

func reverse(st []Stop) {
	for a, b := 0, len(st)-1; a < b; a, b = a+1, b-1 {
		st[a], st[b] = st[b], st[a]
	}
}
