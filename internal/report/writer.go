package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"vrpengine/internal/model"
	"vrpengine/internal/opt"
	"vrpengine/internal/pragmatic"
	"vrpengine/internal/vrperr"
)

// Options controls optional projections of the solution.
type Options struct {
	GeoJSON bool
	Indent  bool
}

// Build projects a solution into the pragmatic solution document.
func Build(ev *opt.Evaluator, s *opt.Solution, tel opt.Telemetry, opts Options) (*Solution, error) {
	p := ev.P
	out := &Solution{Tours: []Tour{}, Unassigned: []Unassigned{}}
	for _, r := range s.Routes {
		if len(r.Stops) == 0 {
			continue
		}
		sched := ev.Schedule(r.Vehicle, r.Stops)
		if sched.Violation != 0 {
			return nil, vrperr.Newf(vrperr.EngineFault, "route of vehicle %s is infeasible (code %d)", p.Vehicles[r.Vehicle].ID, sched.Violation)
		}
		tour, err := buildTour(p, r, sched)
		if err != nil {
			return nil, err
		}
		out.Tours = append(out.Tours, tour)
		addStatistic(&out.Statistic, tour.Statistic)
	}
	for _, u := range s.Unassigned {
		un := Unassigned{JobID: p.Jobs[u.Job].ID, Reasons: []Reason{}}
		for _, c := range u.Codes {
			un.Reasons = append(un.Reasons, Reason{Code: c, Description: opt.ReasonDescription(c)})
		}
		out.Unassigned = append(out.Unassigned, un)
	}
	out.Extras.Metrics = Metrics{
		Generations:   tel.Generations,
		Improvements:  tel.Improvements,
		AcceptedWorse: tel.AcceptedWorse,
		Faults:        tel.Faults,
		State:         tel.State.String(),
		InitialCost:   tel.InitialCost,
		Operators:     tel.Operators,
	}
	if err := finite(out.Statistic.Cost, tel.InitialCost); err != nil {
		return nil, err
	}
	for _, st := range tel.Operators {
		if err := finite(st.Weight); err != nil {
			return nil, err
		}
	}
	if opts.GeoJSON {
		fs, err := buildGeoJSON(p, out)
		if err != nil {
			return nil, err
		}
		out.GeoJSON = fs
	}
	return out, nil
}

// Write renders the solution as JSON.
func Write(ev *opt.Evaluator, s *opt.Solution, tel opt.Telemetry, opts Options) ([]byte, error) {
	doc, err := Build(ev, s, tel, opts)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	if opts.Indent {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(doc); err != nil {
		return nil, vrperr.New(vrperr.Serialization, "cannot serialize solution",
			vrperr.D("E0003", err.Error(), "report the problem that produced this solution"))
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func buildTour(p *model.Problem, r opt.Route, sched opt.Schedule) (Tour, error) {
	v := &p.Vehicles[r.Vehicle]
	tour := Tour{VehicleID: v.ID, TypeID: v.TypeID, ShiftIndex: v.ShiftIndex}
	dep := pragmatic.FormatTime(sched.Departure)
	tour.Stops = append(tour.Stops, Stop{
		Location:   location(p, v.Start),
		Time:       Schedule{Arrival: dep, Departure: dep},
		Load:       sched.StartLoad,
		Activities: []Activity{{JobID: "departure", Type: "departure"}},
	})
	last := v.Start
	for i, st := range r.Stops {
		job := &p.Jobs[st.Job]
		task := &job.Tasks[st.Task]
		tm := sched.Stops[i]
		if err := finite(tm.Arrival, tm.Start, tm.Departure, tm.Distance); err != nil {
			return Tour{}, err
		}
		act := Activity{
			JobID:  job.ID,
			Type:   task.Kind.String(),
			Time:   &Interval{Start: pragmatic.FormatTime(tm.Start), End: pragmatic.FormatTime(tm.Departure)},
			JobTag: task.Tag,
		}
		prev := &tour.Stops[len(tour.Stops)-1]
		if task.Location == last {
			prev.Time.Departure = pragmatic.FormatTime(tm.Departure)
			prev.Load = tm.Load
			prev.Activities = append(prev.Activities, act)
			continue
		}
		tour.Stops = append(tour.Stops, Stop{
			Location:   location(p, task.Location),
			Time:       Schedule{Arrival: pragmatic.FormatTime(tm.Arrival), Departure: pragmatic.FormatTime(tm.Departure)},
			Distance:   round(tm.Distance),
			Load:       tm.Load,
			Activities: []Activity{act},
		})
		last = task.Location
	}
	if v.End != nil {
		end := pragmatic.FormatTime(sched.EndArrival)
		tour.Stops = append(tour.Stops, Stop{
			Location:   location(p, *v.End),
			Time:       Schedule{Arrival: end, Departure: end},
			Distance:   round(sched.Distance),
			Load:       sched.Stops[len(sched.Stops)-1].Load,
			Activities: []Activity{{JobID: "arrival", Type: "arrival"}},
		})
	}
	if err := finite(sched.Cost, sched.Distance, sched.Duration, sched.Driving, sched.Serving, sched.Waiting); err != nil {
		return Tour{}, err
	}
	tour.Statistic = Statistic{
		Cost:     sched.Cost,
		Distance: round(sched.Distance),
		Duration: round(sched.Duration),
		Times:    Timing{Driving: round(sched.Driving), Serving: round(sched.Serving), Waiting: round(sched.Waiting)},
	}
	return tour, nil
}

func addStatistic(total *Statistic, s Statistic) {
	total.Cost += s.Cost
	total.Distance += s.Distance
	total.Duration += s.Duration
	total.Times.Driving += s.Times.Driving
	total.Times.Serving += s.Times.Serving
	total.Times.Waiting += s.Times.Waiting
}

func location(p *model.Problem, l model.Location) pragmatic.Location {
	if p.HasCoordinates() {
		c := p.Coordinates[l]
		return pragmatic.NewCoordinate(c.Lat, c.Lng)
	}
	return pragmatic.NewReference(int(l))
}

func round(x float64) int64 { return int64(math.Round(x)) }

func finite(vals ...float64) error {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return vrperr.New(vrperr.Serialization, "solution contains a non-finite number",
				vrperr.D("E0003", fmt.Sprintf("value %v cannot be represented in JSON", v), "check routing matrix and cost inputs"))
		}
	}
	return nil
}
