package opt

import (
	"sort"
)

// Stop is one task of one job on a route.
type Stop struct {
	Job  int // index into Problem.Jobs
	Task int // index into Job.Tasks
}

// Route is the ordered work of one vehicle shift. Routes are indexed by vehicle.
type Route struct {
	Vehicle int
	Stops   []Stop
	Cost    float64
}

// Unassigned is a job left out of every route and why.
type Unassigned struct {
	Job   int
	Codes []int
}

// Solution holds one route slot per vehicle plus the unassigned jobs.
type Solution struct {
	Routes     []Route
	Unassigned []Unassigned // sorted by job index
	Cost       float64
}

// Clone deep-copies the solution. Moves only ever mutate a clone.
func (s *Solution) Clone() *Solution {
	out := &Solution{
		Routes:     make([]Route, len(s.Routes)),
		Unassigned: make([]Unassigned, len(s.Unassigned)),
		Cost:       s.Cost,
	}
	for i, r := range s.Routes {
		out.Routes[i] = Route{Vehicle: r.Vehicle, Stops: append([]Stop(nil), r.Stops...), Cost: r.Cost}
	}
	for i, u := range s.Unassigned {
		out.Unassigned[i] = Unassigned{Job: u.Job, Codes: append([]int(nil), u.Codes...)}
	}
	return out
}

// Assigned returns the indices of jobs served by some route in route order.
func (s *Solution) Assigned() []int {
	var out []int
	for _, r := range s.Routes {
		for _, st := range r.Stops {
			if st.Task == 0 {
				out = append(out, st.Job)
			}
		}
	}
	return out
}

// locate returns the route index serving job, or -1.
func (s *Solution) locate(job int) int {
	for ri, r := range s.Routes {
		for _, st := range r.Stops {
			if st.Job == job {
				return ri
			}
		}
	}
	return -1
}

// removeJob drops every stop of job from route ri.
func (s *Solution) removeJob(ri, job int) {
	r := &s.Routes[ri]
	kept := r.Stops[:0]
	for _, st := range r.Stops {
		if st.Job != job {
			kept = append(kept, st)
		}
	}
	r.Stops = kept
}

func (s *Solution) setUnassigned(job int, codes []int) {
	for i := range s.Unassigned {
		if s.Unassigned[i].Job == job {
			s.Unassigned[i].Codes = codes
			return
		}
	}
	s.Unassigned = append(s.Unassigned, Unassigned{Job: job, Codes: codes})
	sort.Slice(s.Unassigned, func(i, k int) bool { return s.Unassigned[i].Job < s.Unassigned[k].Job })
}

func (s *Solution) clearUnassigned(job int) {
	for i := range s.Unassigned {
		if s.Unassigned[i].Job == job {
			s.Unassigned = append(s.Unassigned[:i], s.Unassigned[i+1:]...)
			return
		}
	}
}

// Reason codes attached to unassigned jobs.
const (
	ReasonTimeWindow  = 1
	ReasonMaxDistance = 2
	ReasonShiftTime   = 3
	ReasonCapacity    = 4
	ReasonSkill       = 6
	ReasonUnreachable = 8
)

// violationPrecedence marks a delivery scheduled before its pickup. Insertion never
// produces it, so it is not a reason code.
const violationPrecedence = 100

// ReasonDescription returns the human readable text for a reason code.
func ReasonDescription(code int) string {
	switch code {
	case ReasonTimeWindow:
		return "cannot be visited within time window"
	case ReasonMaxDistance:
		return "cannot be assigned due to max distance constraint of vehicle"
	case ReasonShiftTime:
		return "cannot be assigned due to shift time constraint of vehicle"
	case ReasonCapacity:
		return "does not fit into any vehicle due to capacity"
	case ReasonSkill:
		return "cannot serve required skill"
	case ReasonUnreachable:
		return "location unreachable"
	default:
		return "unknown reason"
	}
}

type reasonSet uint32

func (r *reasonSet) add(code int) {
	if code > 0 && code < 32 {
		*r |= 1 << uint(code)
	}
}

func (r reasonSet) codes() []int {
	var out []int
	for c := 1; c < 32; c++ {
		if r&(1<<uint(c)) != 0 {
			out = append(out, c)
		}
	}
	return out
}
