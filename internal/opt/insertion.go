package opt

import (
	"math"
	"sort"

	"vrpengine/internal/model"
)

// insertion is a feasible placement of every task of a job into one route.
type insertion struct {
	job   int
	route int
	at    [2]int  // stop index of each task in the resulting route
	delta float64 // route cost increase
}

const eps = 1e-9

// bestInRoute finds the cheapest feasible placement of job into route ri. When none
// exists the violated constraints are added to why.
func (ev *Evaluator) bestInRoute(s *Solution, ri, job int, why *reasonSet) (insertion, bool) {
	return ev.bestFrom(s, ri, job, 0, why)
}

// bestFrom is bestInRoute restricted to placements at or after stop index first.
func (ev *Evaluator) bestFrom(s *Solution, ri, job, first int, why *reasonSet) (insertion, bool) {
	var sl *slack
	if len(ev.P.Jobs[job].Tasks) == 1 {
		sl = ev.slackOf(&s.Routes[ri])
	}
	return ev.bestWith(s, ri, job, first, sl, why)
}

// bestWith searches with a precomputed route profile; nil means full evaluation.
func (ev *Evaluator) bestWith(s *Solution, ri, job, first int, sl *slack, why *reasonSet) (insertion, bool) {
	r := &s.Routes[ri]
	v := &ev.P.Vehicles[r.Vehicle]
	j := &ev.P.Jobs[job]
	if !v.HasSkills(j.Skills) {
		why.add(ReasonSkill)
		return insertion{}, false
	}
	for _, t := range j.Tasks {
		if !fits(t.Demand, v.Capacity) {
			why.add(ReasonCapacity)
			return insertion{}, false
		}
	}

	base := r.Cost
	best := insertion{job: job, route: ri, delta: math.Inf(1)}
	found := false
	var buf []Stop
	try := func(at [2]int) {
		if buf == nil {
			buf = make([]Stop, 0, len(r.Stops)+len(j.Tasks))
		}
		buf = place(buf[:0], r.Stops, job, len(j.Tasks), at)
		c, viol := ev.cost(r.Vehicle, buf)
		if viol != 0 {
			why.add(viol)
			return
		}
		if d := c - base; d < best.delta-eps {
			best.delta, best.at, found = d, at, true
		}
	}

	n := len(r.Stops)
	first = min(max(first, 0), n)
	if len(j.Tasks) == 1 {
		if sl != nil {
			for i := first; i <= n; i++ {
				d, feasible, exact := ev.insertAt(sl, j, i)
				switch {
				case !exact:
					try([2]int{i, -1})
				case feasible && d < best.delta-eps:
					best.delta, best.at, found = d, [2]int{i, -1}, true
				}
			}
			if found {
				return best, true
			}
		}
		// full evaluation also collects the violated constraints
		for i := first; i <= n; i++ {
			try([2]int{i, -1})
		}
	} else {
		for i := first; i <= n; i++ {
			for k := i + 1; k <= n+1; k++ {
				try([2]int{i, k})
			}
		}
	}
	return best, found
}

// place builds stops with job's tasks inserted at the given result positions.
func place(dst, stops []Stop, job, tasks int, at [2]int) []Stop {
	src := 0
	for pos := 0; pos < len(stops)+tasks; pos++ {
		switch {
		case pos == at[0]:
			dst = append(dst, Stop{Job: job, Task: 0})
		case tasks == 2 && pos == at[1]:
			dst = append(dst, Stop{Job: job, Task: 1})
		default:
			dst = append(dst, stops[src])
			src++
		}
	}
	return dst
}

func (ev *Evaluator) apply(s *Solution, ins insertion) {
	r := &s.Routes[ins.route]
	r.Stops = place(make([]Stop, 0, len(r.Stops)+2), r.Stops, ins.job, len(ev.P.Jobs[ins.job].Tasks), ins.at)
	ev.refresh(s, ins.route)
	s.clearUnassigned(ins.job)
}

// Halt reports whether insertion must stop early. A nil Halt never fires.
type Halt func() bool

func (h Halt) due() bool { return h != nil && h() }

// candidates caches, per pending job, the best insertion into every route. Only the
// column of a modified route is recomputed after each insertion.
type candidates struct {
	ev      *Evaluator
	s       *Solution
	halt    Halt
	halted  bool
	slacks  []*slack
	fresh   []bool
	jobs    []int
	best    [][]insertion
	ok      [][]bool
	reasons [][]reasonSet
}

func newCandidates(ev *Evaluator, s *Solution, jobs []int, halt Halt) *candidates {
	c := &candidates{ev: ev, s: s, halt: halt, jobs: append([]int(nil), jobs...)}
	c.slacks = make([]*slack, len(s.Routes))
	c.fresh = make([]bool, len(s.Routes))
	c.best = make([][]insertion, len(jobs))
	c.ok = make([][]bool, len(jobs))
	c.reasons = make([][]reasonSet, len(jobs))
	for i := range c.jobs {
		c.best[i] = make([]insertion, len(s.Routes))
		c.ok[i] = make([]bool, len(s.Routes))
		c.reasons[i] = make([]reasonSet, len(s.Routes))
	}
	for i := range c.jobs {
		if c.stopped() {
			break
		}
		for ri := range s.Routes {
			c.update(i, ri)
		}
	}
	return c
}

// stopped polls the halt and latches it.
func (c *candidates) stopped() bool {
	if !c.halted && c.halt.due() {
		c.halted = true
	}
	return c.halted
}

// slackFor profiles route ri once per modification.
func (c *candidates) slackFor(ri int) *slack {
	if !c.fresh[ri] {
		c.slacks[ri] = c.ev.slackOf(&c.s.Routes[ri])
		c.fresh[ri] = true
	}
	return c.slacks[ri]
}

func (c *candidates) update(i, ri int) {
	var why reasonSet
	var sl *slack
	if len(c.ev.P.Jobs[c.jobs[i]].Tasks) == 1 {
		sl = c.slackFor(ri)
	}
	c.best[i][ri], c.ok[i][ri] = c.ev.bestWith(c.s, ri, c.jobs[i], 0, sl, &why)
	c.reasons[i][ri] = why
}

// top returns the two cheapest route level insertions of pending job i.
func (c *candidates) top(i int) (first insertion, second float64, ok bool) {
	second = math.Inf(1)
	first.delta = math.Inf(1)
	for ri := range c.s.Routes {
		if !c.ok[i][ri] {
			continue
		}
		d := c.best[i][ri].delta
		switch {
		case d < first.delta-eps:
			second = first.delta
			first, ok = c.best[i][ri], true
		case d < second:
			second = d
		}
	}
	return first, second, ok
}

func (c *candidates) why(i int) []int {
	var all reasonSet
	for _, r := range c.reasons[i] {
		all |= r
	}
	if len(c.s.Routes) == 0 {
		all.add(ReasonSkill)
	}
	return all.codes()
}

// commit applies the pending job at position i and refreshes the touched route.
func (c *candidates) commit(i int) {
	ins, _, _ := c.top(i)
	c.ev.apply(c.s, ins)
	c.fresh[ins.route] = false
	c.jobs = append(c.jobs[:i], c.jobs[i+1:]...)
	c.best = append(c.best[:i], c.best[i+1:]...)
	c.ok = append(c.ok[:i], c.ok[i+1:]...)
	c.reasons = append(c.reasons[:i], c.reasons[i+1:]...)
	for k := range c.jobs {
		if c.stopped() {
			return
		}
		if c.blocked(k, ins.route) {
			continue
		}
		c.update(k, ins.route)
	}
}

// lasting are the violations an extra stop can never lift: loads only grow and
// skills are fixed.
var lasting = func() reasonSet {
	var r reasonSet
	r.add(ReasonCapacity)
	r.add(ReasonSkill)
	return r
}()

// blocked reports whether pending job i was rejected by route ri for lasting reasons
// only, so refreshing it after the route grew cannot change the outcome.
func (c *candidates) blocked(i, ri int) bool {
	why := c.reasons[i][ri]
	return !c.ok[i][ri] && why != 0 && why&^lasting == 0
}

// finish settles the jobs still pending: left unassigned when no insertion fits, or
// appended at route ends when the halt fired.
func (c *candidates) finish() {
	if c.halted {
		c.appendRemaining()
		return
	}
	for i, job := range c.jobs {
		c.s.setUnassigned(job, c.why(i))
	}
	c.jobs = nil
}

// appendRemaining places each pending job, in id order, at the end of the route where
// that is cheapest. Its cost is linear in the route lengths.
func (c *candidates) appendRemaining() {
	jobs := append([]int(nil), c.jobs...)
	sort.Slice(jobs, func(a, b int) bool { return lessJob(c.ev.P, jobs[a], jobs[b]) })
	for _, job := range jobs {
		var why reasonSet
		best := insertion{delta: math.Inf(1)}
		found := false
		for ri := range c.s.Routes {
			ins, ok := c.ev.bestFrom(c.s, ri, job, len(c.s.Routes[ri].Stops), &why)
			if ok && ins.delta < best.delta-eps {
				best, found = ins, true
			}
		}
		if found {
			c.ev.apply(c.s, best)
			continue
		}
		if len(c.s.Routes) == 0 {
			why.add(ReasonSkill)
		}
		c.s.setUnassigned(job, why.codes())
	}
	c.jobs = nil
}

// lessJob breaks ties deterministically by job id, then by index.
func lessJob(p *model.Problem, a, b int) bool {
	if p.Jobs[a].ID != p.Jobs[b].ID {
		return p.Jobs[a].ID < p.Jobs[b].ID
	}
	return a < b
}

// recreateCheapest repeatedly inserts the pending job with the cheapest insertion.
func (ev *Evaluator) recreateCheapest(s *Solution, pending []int, halt Halt) {
	c := newCandidates(ev, s, pending, halt)
	for len(c.jobs) > 0 && !c.stopped() {
		pick := -1
		var pickCost float64
		for i := range c.jobs {
			ins, _, ok := c.top(i)
			if !ok {
				continue
			}
			if pick < 0 || ins.delta < pickCost-eps ||
				(math.Abs(ins.delta-pickCost) <= eps && lessJob(ev.P, c.jobs[i], c.jobs[pick])) {
				pick, pickCost = i, ins.delta
			}
		}
		if pick < 0 {
			break
		}
		c.commit(pick)
	}
	c.finish()
	ev.total(s)
}

// recreateRegret inserts first the pending job that loses most when its best route
// is taken away (regret-2). Jobs with a single feasible route come first.
func (ev *Evaluator) recreateRegret(s *Solution, pending []int, halt Halt) {
	c := newCandidates(ev, s, pending, halt)
	const single = 1e18
	for len(c.jobs) > 0 && !c.stopped() {
		pick := -1
		var pickRegret, pickCost float64
		for i := range c.jobs {
			ins, second, ok := c.top(i)
			if !ok {
				continue
			}
			regret := single
			if !math.IsInf(second, 1) {
				regret = second - ins.delta
			}
			better := pick < 0 || regret > pickRegret+eps
			if !better && math.Abs(regret-pickRegret) <= eps {
				better = ins.delta < pickCost-eps ||
					(math.Abs(ins.delta-pickCost) <= eps && lessJob(ev.P, c.jobs[i], c.jobs[pick]))
			}
			if better {
				pick, pickRegret, pickCost = i, regret, ins.delta
			}
		}
		if pick < 0 {
			break
		}
		c.commit(pick)
	}
	c.finish()
	ev.total(s)
}
