// Package matrix resolves travel distance and duration between problem locations.
package matrix

import (
	"fmt"
	"math"

	"vrpengine/internal/model"
	"vrpengine/internal/vrperr"
)

// Travel is the cost of moving between two locations.
type Travel struct {
	Distance float64 // meters
	Duration float64 // seconds
}

// Reachable reports whether the pair has finite travel data.
func (t Travel) Reachable() bool {
	return !math.IsInf(t.Distance, 1) && !math.IsInf(t.Duration, 1)
}

var unreachable = Travel{Distance: math.Inf(1), Duration: math.Inf(1)}

// Matrix is a parsed routing matrix for one profile, row-major n×n.
type Matrix struct {
	Profile    string
	Durations  []int64
	Distances  []int64
	ErrorCodes []int64
}

// Size returns n for an n×n matrix, or -1 when the arrays are not square.
func (m Matrix) Size() int {
	n := int(math.Round(math.Sqrt(float64(len(m.Durations)))))
	if n*n != len(m.Durations) || len(m.Distances) != len(m.Durations) {
		return -1
	}
	if m.ErrorCodes != nil && len(m.ErrorCodes) != len(m.Durations) {
		return -1
	}
	return n
}

// Resolver answers travel queries for every (profile, from, to) triple of a problem.
// It is built once per solve and is read-only afterwards.
type Resolver struct {
	n            int
	distance     [][]float64 // per profile, n*n
	duration     [][]float64
	approximated bool
}

// NewExact builds a resolver from supplied matrices. Every profile used by a vehicle
// must have a matrix that covers every location, otherwise MatrixMissingEntry is returned.
func NewExact(p *model.Problem, matrices []Matrix) (*Resolver, error) {
	r := &Resolver{
		n:        p.Locations,
		distance: make([][]float64, len(p.Profiles)),
		duration: make([][]float64, len(p.Profiles)),
	}
	used := usedProfiles(p)
	var c vrperr.Collector
	for pi, prof := range p.Profiles {
		if !used[pi] {
			continue
		}
		m, ok := findMatrix(matrices, prof.Name)
		if !ok {
			c.Add("E1510", fmt.Sprintf("no routing matrix for profile '%s'", prof.Name),
				"supply a matrix for every profile used by the fleet")
			continue
		}
		size := m.Size()
		if size < p.Locations {
			c.Add("E1511", fmt.Sprintf("matrix for profile '%s' covers %d locations, problem references %d", prof.Name, max(size, 0), p.Locations),
				"request the matrix for every location returned by get_routing_locations")
			continue
		}
		dist := make([]float64, r.n*r.n)
		dur := make([]float64, r.n*r.n)
		for i := 0; i < r.n; i++ {
			for j := 0; j < r.n; j++ {
				src := i*size + j
				dst := i*r.n + j
				if m.ErrorCodes != nil && m.ErrorCodes[src] != 0 {
					dist[dst], dur[dst] = unreachable.Distance, unreachable.Duration
					continue
				}
				dist[dst] = float64(m.Distances[src])
				dur[dst] = float64(m.Durations[src])
			}
		}
		r.distance[pi] = dist
		r.duration[pi] = dur
	}
	if err := c.Err(vrperr.MatrixMissing, "routing matrix does not cover the problem"); err != nil {
		return nil, err
	}
	return r, nil
}

// NewApproximate derives travel from coordinates using great-circle distance and the
// profile speed. cache may be nil.
func NewApproximate(p *model.Problem, cache *Cache) *Resolver {
	r := &Resolver{
		n:            p.Locations,
		distance:     make([][]float64, len(p.Profiles)),
		duration:     make([][]float64, len(p.Profiles)),
		approximated: true,
	}
	meters := make([]float64, r.n*r.n)
	for i := 0; i < r.n; i++ {
		for j := 0; j < r.n; j++ {
			if i == j {
				continue
			}
			a, b := p.Coordinates[i], p.Coordinates[j]
			if cache != nil {
				meters[i*r.n+j] = cache.Distance(a, b)
			} else {
				meters[i*r.n+j] = Haversine(a, b)
			}
		}
	}
	for pi, prof := range p.Profiles {
		speed := prof.Speed
		if speed <= 0 {
			speed = DefaultSpeed
		}
		dur := make([]float64, len(meters))
		for k, d := range meters {
			dur[k] = math.Round(d / speed)
		}
		r.distance[pi] = meters
		r.duration[pi] = dur
	}
	return r
}

// DefaultSpeed is the approximation speed in m/s when a profile declares none.
const DefaultSpeed = 10.0

// Approximated reports whether travel is derived from coordinates rather than matrices.
func (r *Resolver) Approximated() bool { return r.approximated }

// Lookup returns travel for the pair or MatrixMissingEntry when the pair is not covered.
func (r *Resolver) Lookup(profile int, from, to model.Location) (Travel, error) {
	if profile < 0 || profile >= len(r.distance) || r.distance[profile] == nil {
		return Travel{}, vrperr.New(vrperr.MatrixMissing, "no routing data for profile",
			vrperr.D("E1510", fmt.Sprintf("profile index %d has no routing data", profile), "supply the matrix"))
	}
	if int(from) < 0 || int(from) >= r.n || int(to) < 0 || int(to) >= r.n {
		return Travel{}, vrperr.New(vrperr.MatrixMissing, "location pair not covered",
			vrperr.D("E1511", fmt.Sprintf("pair (%d,%d) outside %dx%d matrix", from, to, r.n, r.n), "supply a larger matrix"))
	}
	return r.Travel(profile, from, to), nil
}

// Travel is the unchecked hot-path lookup; callers must only pass validated locations.
func (r *Resolver) Travel(profile int, from, to model.Location) Travel {
	k := int(from)*r.n + int(to)
	return Travel{Distance: r.distance[profile][k], Duration: r.duration[profile][k]}
}

func usedProfiles(p *model.Problem) map[int]bool {
	used := map[int]bool{}
	for _, v := range p.Vehicles {
		used[v.Profile] = true
	}
	return used
}

func findMatrix(ms []Matrix, profile string) (Matrix, bool) {
	for _, m := range ms {
		if m.Profile == profile {
			return m, true
		}
	}
	return Matrix{}, false
}

// Haversine returns the great-circle distance between a and b in meters.
func Haversine(a, b model.Coordinate) float64 {
	const R = 6371000.0
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lng - a.Lng) * math.Pi / 180
	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(a.Lat*math.Pi/180)*math.Cos(b.Lat*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return R * c
}
