// Package model holds the validated, immutable problem graph consumed by the solver.
package model

import "math"

// Location is an index into the problem's coordinate table and routing matrices.
type Location int

// Coordinate is a geographic point.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// TimeWindow is a closed interval in unix seconds.
type TimeWindow struct {
	Start float64
	End   float64
}

// Contains reports whether t lies inside the window.
func (w TimeWindow) Contains(t float64) bool { return t >= w.Start && t <= w.End }

// Unbounded is used when a task declares no windows.
var Unbounded = TimeWindow{Start: 0, End: math.Inf(1)}

// TaskKind is the activity type of a job task.
type TaskKind int

const (
	Service TaskKind = iota
	Pickup
	Delivery
)

func (k TaskKind) String() string {
	switch k {
	case Pickup:
		return "pickup"
	case Delivery:
		return "delivery"
	default:
		return "service"
	}
}

// Task is a single place a job has to be served at.
type Task struct {
	Kind     TaskKind
	Location Location
	Duration float64
	Windows  []TimeWindow // sorted by start, never empty
	Demand   []int        // one entry per capacity dimension
	Tag      string
}

// Job is a unit of demand. All of its tasks are served by the same vehicle or none are.
type Job struct {
	ID     string
	Tasks  []Task // one task, or pickup followed by delivery
	Skills []string
	// SoftWindows turns late arrival into a cost penalty instead of infeasibility.
	SoftWindows bool
}

// IsShipment reports whether the job is a pickup-delivery pair.
func (j *Job) IsShipment() bool { return len(j.Tasks) == 2 }

// Costs are the per-vehicle cost coefficients.
type Costs struct {
	Fixed    float64
	Distance float64
	Time     float64
}

// Vehicle is one shift of one concrete vehicle; each gets its own route slot.
type Vehicle struct {
	ID          string
	TypeID      string
	ShiftIndex  int
	Profile     int
	Capacity    []int
	Costs       Costs
	Skills      []string
	Start       Location
	Earliest    float64
	End         *Location
	Latest      float64 // +Inf when the shift has no end time
	MaxDistance float64 // 0 means unlimited
	ShiftTime   float64 // 0 means unlimited
}

// HasSkills reports whether the vehicle offers every required skill.
func (v *Vehicle) HasSkills(required []string) bool {
	for _, r := range required {
		found := false
		for _, s := range v.Skills {
			if s == r {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Profile is a named travel mode.
type Profile struct {
	Name  string
	Speed float64 // m/s, used by the approximation mode
}

// Weights are objective penalties that are not tied to a vehicle.
type Weights struct {
	Lateness   float64 // per second of soft-window violation
	Unassigned float64 // per unassigned job
}

// Problem is frozen after construction and shared read-only by the search.
type Problem struct {
	Jobs        []Job
	Vehicles    []Vehicle
	Profiles    []Profile
	Coordinates []Coordinate // empty when locations are matrix indices only
	Locations   int          // number of distinct locations
	Dimensions  int          // capacity dimensions
	Weights     Weights
}

// HasCoordinates reports whether locations carry geographic coordinates.
func (p *Problem) HasCoordinates() bool { return len(p.Coordinates) > 0 }

// ProfileIndex returns the index of the named profile or -1.
func (p *Problem) ProfileIndex(name string) int {
	for i, pr := range p.Profiles {
		if pr.Name == name {
			return i
		}
	}
	return -1
}

// DefaultWeights keeps unassigned jobs far more expensive than any realistic route
// so the search never trades a served job for a shorter tour.
func DefaultWeights() Weights {
	return Weights{Lateness: 1, Unassigned: 1e6}
}
