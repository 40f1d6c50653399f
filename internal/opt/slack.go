package opt

import (
	"math"

	"vrpengine/internal/model"
)

// slack summarizes a feasible route so that one extra stop can be tested at any
// position without replaying the route. It only applies to routes whose stops have a
// single hard window each: then a delay d at a stop leaves max(0, d-wait) behind it.
type slack struct {
	vehicle  *model.Vehicle
	n        int
	loc      []model.Location // node before position p; loc[0] is the shift start
	dep      []float64        // departure from loc[p]
	arr      []float64        // arrival at stop p
	fwd      []float64        // largest arrival delay stop p (or the end, p == n) absorbs
	wait     []float64        // waiting from stop p to the end
	pre      [][]int          // max load over the points before position p
	post     [][]int          // max load over the points from position p on
	end      float64
	distance float64
}

// slackOf profiles route r. It returns nil when the route needs full evaluation.
func (ev *Evaluator) slackOf(r *Route) *slack {
	n := len(r.Stops)
	if n == 0 {
		return nil
	}
	for _, st := range r.Stops {
		if ev.P.Jobs[st.Job].SoftWindows || len(ev.task(st).Windows) != 1 {
			return nil
		}
	}
	v := &ev.P.Vehicles[r.Vehicle]
	sched := ev.Schedule(r.Vehicle, r.Stops)
	if sched.Violation != 0 {
		return nil
	}

	sl := &slack{
		vehicle:  v,
		n:        n,
		loc:      make([]model.Location, n+1),
		dep:      make([]float64, n+1),
		arr:      make([]float64, n),
		fwd:      make([]float64, n+1),
		wait:     make([]float64, n+1),
		pre:      make([][]int, n+1),
		post:     make([][]int, n+1),
		end:      sched.EndArrival,
		distance: sched.Distance,
	}
	sl.loc[0], sl.dep[0] = v.Start, v.Earliest
	for i, st := range r.Stops {
		sl.loc[i+1] = ev.task(st).Location
		sl.dep[i+1] = sched.Stops[i].Departure
		sl.arr[i] = sched.Stops[i].Arrival
	}

	sl.fwd[n] = v.Latest - sched.EndArrival
	if v.ShiftTime > 0 {
		sl.fwd[n] = math.Min(sl.fwd[n], v.ShiftTime-sched.Duration)
	}
	for i := n - 1; i >= 0; i-- {
		w := ev.task(r.Stops[i]).Windows[0]
		idle := sched.Stops[i].Start - sched.Stops[i].Arrival
		sl.wait[i] = idle + sl.wait[i+1]
		sl.fwd[i] = math.Min(w.End-sl.arr[i], idle+sl.fwd[i+1])
	}

	loadAt := func(p int) []int {
		if p == 0 {
			return sched.StartLoad
		}
		return sched.Stops[p-1].Load
	}
	sl.pre[0] = append([]int(nil), sched.StartLoad...)
	for p := 1; p <= n; p++ {
		sl.pre[p] = maxLoad(sl.pre[p-1], loadAt(p))
	}
	tail := append([]int(nil), loadAt(n)...)
	sl.post[n] = tail
	for p := n - 1; p >= 0; p-- {
		tail = maxLoad(tail, loadAt(p))
		sl.post[p] = tail
	}
	return sl
}

func maxLoad(a, b []int) []int {
	out := append([]int(nil), a...)
	for d := range b {
		if b[d] > out[d] {
			out[d] = b[d]
		}
	}
	return out
}

func fitsWith(load, demand, capacity []int) bool {
	for d := range load {
		extra := 0
		if d < len(demand) {
			extra = demand[d]
		}
		if load[d]+extra > capacity[d] {
			return false
		}
	}
	return true
}

// insertAt prices a single task job at position p. exact is false when the shortcut
// does not apply and the position needs full evaluation.
func (ev *Evaluator) insertAt(sl *slack, job *model.Job, p int) (delta float64, ok, exact bool) {
	if job.SoftWindows {
		return 0, false, false
	}
	v := sl.vehicle
	t := &job.Tasks[0]
	prev := sl.loc[p]

	in := ev.R.Travel(v.Profile, prev, t.Location)
	if !in.Reachable() {
		return 0, false, true
	}
	start, _, fit := serviceStart(t.Windows, sl.dep[p]+in.Duration, false)
	if !fit {
		return 0, false, true
	}
	leave := start + t.Duration
	detour := in.Distance

	var delay float64
	switch {
	case p < sl.n:
		next := sl.loc[p+1]
		out := ev.R.Travel(v.Profile, t.Location, next)
		if !out.Reachable() {
			return 0, false, true
		}
		detour += out.Distance - ev.R.Travel(v.Profile, prev, next).Distance
		delay = leave + out.Duration - sl.arr[p]
	case v.End != nil:
		out := ev.R.Travel(v.Profile, t.Location, *v.End)
		if !out.Reachable() {
			return 0, false, true
		}
		detour += out.Distance - ev.R.Travel(v.Profile, prev, *v.End).Distance
		delay = leave + out.Duration - sl.end
	default:
		delay = leave - sl.end
	}
	if delay < 0 {
		return 0, false, false
	}
	if delay > sl.fwd[p] {
		return 0, false, true
	}
	if v.MaxDistance > 0 && sl.distance+detour > v.MaxDistance {
		return 0, false, true
	}
	switch t.Kind {
	case model.Delivery:
		if !fitsWith(sl.pre[p], t.Demand, v.Capacity) {
			return 0, false, true
		}
	case model.Pickup:
		if !fitsWith(sl.post[p], t.Demand, v.Capacity) {
			return 0, false, true
		}
	}
	endDelay := math.Max(0, delay-sl.wait[p])
	return v.Costs.Distance*detour + v.Costs.Time*endDelay, true, true
}
