// Package report renders solutions in the pragmatic solution format.
package report

import (
	"vrpengine/internal/opt"
	"vrpengine/internal/pragmatic"
)

// Solution is the pragmatic solution document.
type Solution struct {
	Statistic  Statistic    `json:"statistic"`
	Tours      []Tour       `json:"tours"`
	Unassigned []Unassigned `json:"unassigned"`
	Extras     Extras       `json:"extras"`
	GeoJSON    *FeatureSet  `json:"geojson,omitempty"`
}

// Statistic aggregates cost, distance and time.
type Statistic struct {
	Cost     float64 `json:"cost"`
	Distance int64   `json:"distance"`
	Duration int64   `json:"duration"`
	Times    Timing  `json:"times"`
}

// Timing splits a duration by activity.
type Timing struct {
	Driving int64 `json:"driving"`
	Serving int64 `json:"serving"`
	Waiting int64 `json:"waiting"`
}

// Tour is the route of one vehicle shift.
type Tour struct {
	VehicleID  string    `json:"vehicleId"`
	TypeID     string    `json:"typeId"`
	ShiftIndex int       `json:"shiftIndex"`
	Stops      []Stop    `json:"stops"`
	Statistic  Statistic `json:"statistic"`
}

// Stop groups the activities performed at one location without moving.
type Stop struct {
	Location   pragmatic.Location `json:"location"`
	Time       Schedule           `json:"time"`
	Distance   int64              `json:"distance"`
	Load       []int              `json:"load"`
	Activities []Activity         `json:"activities"`
}

// Schedule is an arrival/departure pair in RFC3339.
type Schedule struct {
	Arrival   string `json:"arrival"`
	Departure string `json:"departure"`
}

// Activity is one job task or a shift boundary.
type Activity struct {
	JobID  string    `json:"jobId"`
	Type   string    `json:"type"`
	Time   *Interval `json:"time,omitempty"`
	JobTag string    `json:"jobTag,omitempty"`
}

// Interval is a service start/end pair in RFC3339.
type Interval struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Unassigned lists a job left out and why.
type Unassigned struct {
	JobID   string   `json:"jobId"`
	Reasons []Reason `json:"reasons"`
}

// Reason is a coded explanation.
type Reason struct {
	Code        int    `json:"code"`
	Description string `json:"description"`
}

// Extras carries search telemetry.
type Extras struct {
	Metrics Metrics `json:"metrics"`
}

// Metrics is the serializable part of the search telemetry. It holds no wall-clock
// values so fixed-seed generation-bounded solves render identically.
type Metrics struct {
	Generations   int                          `json:"generations"`
	Improvements  int                          `json:"improvements"`
	AcceptedWorse int                          `json:"acceptedWorse"`
	Faults        int                          `json:"faults"`
	State         string                       `json:"state"`
	InitialCost   float64                      `json:"initialCost"`
	Operators     map[string]opt.OperatorStats `json:"operators"`
}
