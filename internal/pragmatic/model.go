// Package pragmatic implements the canonical JSON problem schema: decoding, validation
// and translation into the core model.
package pragmatic

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Problem is the pragmatic problem definition.
type Problem struct {
	Plan  Plan  `json:"plan"`
	Fleet Fleet `json:"fleet"`
}

// Plan holds the work to be done.
type Plan struct {
	Jobs []Job `json:"jobs"`
}

// Job is a customer demand. Either a single pickup, delivery or service task,
// or one pickup followed by one delivery of the same demand.
type Job struct {
	ID              string    `json:"id"`
	Pickups         []JobTask `json:"pickups,omitempty"`
	Deliveries      []JobTask `json:"deliveries,omitempty"`
	Services        []JobTask `json:"services,omitempty"`
	Skills          []string  `json:"skills,omitempty"`
	SoftTimeWindows bool      `json:"softTimeWindows,omitempty"`
}

// JobTask is a single activity of a job.
type JobTask struct {
	Places []JobPlace `json:"places"`
	Demand []int      `json:"demand,omitempty"`
	Tag    string     `json:"tag,omitempty"`
}

// JobPlace is where and when a task is performed.
type JobPlace struct {
	Location Location   `json:"location"`
	Duration float64    `json:"duration"`
	Times    [][]string `json:"times,omitempty"`
}

// Location is either a geocoordinate or an index into the routing matrix.
type Location struct {
	Lat   *float64 `json:"lat,omitempty"`
	Lng   *float64 `json:"lng,omitempty"`
	Index *int     `json:"index,omitempty"`
}

// NewCoordinate creates a coordinate location.
func NewCoordinate(lat, lng float64) Location { return Location{Lat: &lat, Lng: &lng} }

// NewReference creates a matrix index location.
func NewReference(index int) Location { return Location{Index: &index} }

// IsCoordinate reports whether the location carries lat/lng.
func (l Location) IsCoordinate() bool { return l.Lat != nil && l.Lng != nil && l.Index == nil }

// IsReference reports whether the location is a matrix index.
func (l Location) IsReference() bool { return l.Index != nil && l.Lat == nil && l.Lng == nil }

func (l Location) String() string {
	switch {
	case l.IsCoordinate():
		return fmt.Sprintf("lat=%v, lng=%v", *l.Lat, *l.Lng)
	case l.IsReference():
		return fmt.Sprintf("index=%d", *l.Index)
	default:
		return "invalid location"
	}
}

// Fleet holds vehicle types and routing profiles.
type Fleet struct {
	Vehicles []VehicleType   `json:"vehicles"`
	Profiles []MatrixProfile `json:"profiles"`
}

// VehicleType describes a group of identical vehicles.
type VehicleType struct {
	TypeID     string         `json:"typeId"`
	VehicleIDs []string       `json:"vehicleIds"`
	Profile    VehicleProfile `json:"profile"`
	Costs      VehicleCosts   `json:"costs"`
	Shifts     []VehicleShift `json:"shifts"`
	Capacity   []int          `json:"capacity"`
	Skills     []string       `json:"skills,omitempty"`
	Limits     *VehicleLimits `json:"limits,omitempty"`
}

// VehicleProfile names the routing matrix profile.
type VehicleProfile struct {
	Matrix string `json:"matrix"`
}

// VehicleCosts are the cost coefficients of a vehicle type.
type VehicleCosts struct {
	Fixed    float64 `json:"fixed,omitempty"`
	Distance float64 `json:"distance"`
	Time     float64 `json:"time"`
}

// VehicleShift is a working period of a vehicle.
type VehicleShift struct {
	Start ShiftStart `json:"start"`
	End   *ShiftEnd  `json:"end,omitempty"`
}

// ShiftStart is where and when a shift begins.
type ShiftStart struct {
	Earliest string   `json:"earliest"`
	Location Location `json:"location"`
}

// ShiftEnd is where and by when a shift ends.
type ShiftEnd struct {
	Latest   string   `json:"latest"`
	Location Location `json:"location"`
}

// VehicleLimits restricts a single tour.
type VehicleLimits struct {
	MaxDistance float64 `json:"maxDistance,omitempty"`
	ShiftTime   float64 `json:"shiftTime,omitempty"`
}

// MatrixProfile is a routing profile declaration.
type MatrixProfile struct {
	Name  string  `json:"name"`
	Speed float64 `json:"speed,omitempty"`
}

// Matrix is a routing matrix in row-major order.
type Matrix struct {
	Profile     string  `json:"profile,omitempty"`
	Timestamp   string  `json:"timestamp,omitempty"`
	TravelTimes []int64 `json:"travelTimes"`
	Distances   []int64 `json:"distances"`
	ErrorCodes  []int64 `json:"errorCodes,omitempty"`
}

// DecodeProblem parses problem JSON.
func DecodeProblem(data []byte) (*Problem, error) {
	var p Problem
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode problem: %w", err)
	}
	return &p, nil
}

// DecodeMatrix parses routing matrix JSON. "durations" is accepted as an alias of "travelTimes".
func DecodeMatrix(data []byte) (*Matrix, error) {
	var raw struct {
		Matrix
		Durations []int64 `json:"durations"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode matrix: %w", err)
	}
	m := raw.Matrix
	if m.TravelTimes == nil {
		m.TravelTimes = raw.Durations
	}
	return &m, nil
}

// EncodeProblem renders the problem as indented canonical JSON.
func EncodeProblem(p *Problem) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(p); err != nil {
		return nil, fmt.Errorf("encode problem: %w", err)
	}
	return buf.Bytes(), nil
}
