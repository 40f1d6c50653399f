package opt

import (
	"math"

	"vrpengine/internal/matrix"
	"vrpengine/internal/model"
)

// StopTime is the schedule of one stop.
type StopTime struct {
	Arrival   float64
	Start     float64 // service start, after waiting
	Departure float64
	Distance  float64 // cumulative from the route start
	Load      []int   // after the stop is served
	Lateness  float64
}

// Schedule is a fully evaluated route.
type Schedule struct {
	Vehicle    int
	Departure  float64
	StartLoad  []int
	Stops      []StopTime
	EndArrival float64
	Distance   float64
	Duration   float64
	Driving    float64
	Serving    float64
	Waiting    float64
	Lateness   float64
	Cost       float64
	Violation  int // 0 when feasible, otherwise the first violated reason code
}

// Evaluator computes schedules and costs against a frozen problem.
type Evaluator struct {
	P *model.Problem
	R *matrix.Resolver
}

// NewEvaluator binds a problem to its travel data.
func NewEvaluator(p *model.Problem, r *matrix.Resolver) *Evaluator {
	return &Evaluator{P: p, R: r}
}

// Schedule evaluates a route with per-stop detail.
func (ev *Evaluator) Schedule(vehicle int, stops []Stop) Schedule {
	s := Schedule{Stops: make([]StopTime, 0, len(stops))}
	ev.run(vehicle, stops, &s)
	return s
}

// cost evaluates a route without per-stop detail.
func (ev *Evaluator) cost(vehicle int, stops []Stop) (float64, int) {
	var s Schedule
	ev.run(vehicle, stops, &s)
	return s.Cost, s.Violation
}

func (ev *Evaluator) task(st Stop) *model.Task {
	return &ev.P.Jobs[st.Job].Tasks[st.Task]
}

// run propagates time and load forward along the route. Evaluation stops at the
// first violation; out.Stops is only filled when it was preallocated.
func (ev *Evaluator) run(vehicle int, stops []Stop, out *Schedule) {
	v := &ev.P.Vehicles[vehicle]
	detail := out.Stops != nil
	out.Vehicle = vehicle
	out.Departure = v.Earliest
	if len(stops) == 0 {
		out.EndArrival = v.Earliest
		if detail {
			out.StartLoad = make([]int, ev.P.Dimensions)
		}
		return
	}

	load := make([]int, ev.P.Dimensions)
	for _, st := range stops {
		t := ev.task(st)
		if t.Kind == model.Delivery && !ev.P.Jobs[st.Job].IsShipment() {
			addLoad(load, t.Demand, 1)
		}
	}
	if detail {
		out.StartLoad = append([]int(nil), load...)
	}
	if !fits(load, v.Capacity) {
		out.Violation = ReasonCapacity
		return
	}

	now := v.Earliest
	at := v.Start
	for i, st := range stops {
		t := ev.task(st)
		job := &ev.P.Jobs[st.Job]
		if job.IsShipment() && st.Task == 1 && !pickedBefore(stops[:i], st.Job) {
			out.Violation = violationPrecedence
			return
		}

		tr := ev.R.Travel(v.Profile, at, t.Location)
		if !tr.Reachable() {
			out.Violation = ReasonUnreachable
			return
		}
		arrival := now + tr.Duration
		out.Distance += tr.Distance
		out.Driving += tr.Duration

		start, late, ok := serviceStart(t.Windows, arrival, job.SoftWindows)
		if !ok {
			out.Violation = ReasonTimeWindow
			return
		}
		out.Waiting += start - arrival
		out.Lateness += late
		out.Serving += t.Duration
		now = start + t.Duration
		at = t.Location

		switch t.Kind {
		case model.Pickup:
			addLoad(load, t.Demand, 1)
		case model.Delivery:
			addLoad(load, t.Demand, -1)
		}
		if !fits(load, v.Capacity) {
			out.Violation = ReasonCapacity
			return
		}
		if detail {
			out.Stops = append(out.Stops, StopTime{
				Arrival:   arrival,
				Start:     start,
				Departure: now,
				Distance:  out.Distance,
				Load:      append([]int(nil), load...),
				Lateness:  late,
			})
		}
	}

	out.EndArrival = now
	if v.End != nil {
		tr := ev.R.Travel(v.Profile, at, *v.End)
		if !tr.Reachable() {
			out.Violation = ReasonUnreachable
			return
		}
		out.Distance += tr.Distance
		out.Driving += tr.Duration
		out.EndArrival = now + tr.Duration
	}
	if out.EndArrival > v.Latest {
		out.Violation = ReasonTimeWindow
		return
	}
	out.Duration = out.EndArrival - out.Departure
	if v.ShiftTime > 0 && out.Duration > v.ShiftTime {
		out.Violation = ReasonShiftTime
		return
	}
	if v.MaxDistance > 0 && out.Distance > v.MaxDistance {
		out.Violation = ReasonMaxDistance
		return
	}
	out.Cost = v.Costs.Fixed + v.Costs.Distance*out.Distance + v.Costs.Time*out.Duration +
		ev.P.Weights.Lateness*out.Lateness
}

// serviceStart picks the first window that can still be met. A soft job arriving
// after every window is served on arrival and charged lateness.
func serviceStart(windows []model.TimeWindow, arrival float64, soft bool) (start, late float64, ok bool) {
	for _, w := range windows {
		if arrival <= w.End {
			return math.Max(arrival, w.Start), 0, true
		}
	}
	if soft && len(windows) > 0 {
		return arrival, arrival - windows[len(windows)-1].End, true
	}
	return 0, 0, false
}

func pickedBefore(prefix []Stop, job int) bool {
	for _, st := range prefix {
		if st.Job == job && st.Task == 0 {
			return true
		}
	}
	return false
}

func addLoad(load, demand []int, sign int) {
	for d := range demand {
		load[d] += sign * demand[d]
	}
}

func fits(load, capacity []int) bool {
	for d := range load {
		if load[d] > capacity[d] {
			return false
		}
	}
	return true
}

// refresh re-evaluates route ri and caches its cost; infeasible routes cost +Inf.
func (ev *Evaluator) refresh(s *Solution, ri int) {
	c, viol := ev.cost(s.Routes[ri].Vehicle, s.Routes[ri].Stops)
	if viol != 0 {
		c = math.Inf(1)
	}
	s.Routes[ri].Cost = c
}

// total recomputes the aggregate cost from cached route costs.
func (ev *Evaluator) total(s *Solution) {
	sum := 0.0
	for _, r := range s.Routes {
		sum += r.Cost
	}
	s.Cost = sum + ev.P.Weights.Unassigned*float64(len(s.Unassigned))
}

// Evaluate recomputes every route cost and the aggregate.
func (ev *Evaluator) Evaluate(s *Solution) {
	for ri := range s.Routes {
		ev.refresh(s, ri)
	}
	ev.total(s)
}
