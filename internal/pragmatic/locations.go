package pragmatic

import (
	"fmt"
	"sort"

	"vrpengine/internal/model"
	"vrpengine/internal/vrperr"
)

// RoutingLocation is one entry of the routing locations list: the matrix index a
// location will occupy for the given profile.
type RoutingLocation struct {
	Index    int      `json:"index"`
	Location Location `json:"location"`
	Profile  string   `json:"profile"`
}

// visitLocations walks every location of the problem in canonical order:
// jobs in plan order (pickups, deliveries, services), then vehicle shifts (start, end).
// Matrix indices are assigned in this order.
func visitLocations(p *Problem, fn func(Location)) {
	for _, j := range p.Plan.Jobs {
		for _, group := range [][]JobTask{j.Pickups, j.Deliveries, j.Services} {
			for _, t := range group {
				for _, pl := range t.Places {
					fn(pl.Location)
				}
			}
		}
	}
	for _, vt := range p.Fleet.Vehicles {
		for _, sh := range vt.Shifts {
			fn(sh.Start.Location)
			if sh.End != nil {
				fn(sh.End.Location)
			}
		}
	}
}

type locationIndex struct {
	coords   []model.Coordinate
	byCoord  map[model.Coordinate]int
	maxRef   int
	hasCoord bool
	hasRef   bool
	invalid  int
	negative int
}

func indexLocations(p *Problem) *locationIndex {
	li := &locationIndex{byCoord: map[model.Coordinate]int{}, maxRef: -1}
	visitLocations(p, func(l Location) {
		switch {
		case l.IsCoordinate():
			li.hasCoord = true
			c := model.Coordinate{Lat: *l.Lat, Lng: *l.Lng}
			if _, ok := li.byCoord[c]; !ok {
				li.byCoord[c] = len(li.coords)
				li.coords = append(li.coords, c)
			}
		case l.IsReference():
			li.hasRef = true
			if *l.Index < 0 {
				li.negative++
				return
			}
			li.maxRef = max(li.maxRef, *l.Index)
		default:
			li.invalid++
		}
	})
	return li
}

// check reports location kind violations. haveMatrices tells whether index
// locations can be resolved at all.
func (li *locationIndex) check(c *vrperr.Collector, haveMatrices bool) {
	if li.hasCoord && li.hasRef {
		c.Add("E1500", "problem mixes coordinate and index locations", "use either lat/lng or index locations everywhere")
	}
	if li.hasRef && !haveMatrices {
		c.Add("E1500", "index locations require routing matrices", "supply a routing matrix or use lat/lng locations")
	}
	if li.invalid > 0 {
		c.Add("E1500", fmt.Sprintf("%d locations have neither lat/lng nor index", li.invalid), "specify lat and lng, or index")
	}
	if li.negative > 0 {
		c.Add("E1500", fmt.Sprintf("%d locations have a negative index", li.negative), "use matrix indices starting at 0")
	}
}

// size is the number of distinct matrix locations.
func (li *locationIndex) size() int {
	if li.hasRef {
		return li.maxRef + 1
	}
	return len(li.coords)
}

func (li *locationIndex) lookup(l Location) model.Location {
	if l.IsCoordinate() {
		return model.Location(li.byCoord[model.Coordinate{Lat: *l.Lat, Lng: *l.Lng}])
	}
	if l.IsReference() && *l.Index >= 0 {
		return model.Location(*l.Index)
	}
	return 0
}

// profileNames lists declared profiles, or the distinct vehicle profiles in
// fleet order when none are declared.
func profileNames(p *Problem) []string {
	if len(p.Fleet.Profiles) > 0 {
		out := make([]string, 0, len(p.Fleet.Profiles))
		for _, pr := range p.Fleet.Profiles {
			out = append(out, pr.Name)
		}
		return out
	}
	seen := map[string]bool{}
	var out []string
	for _, vt := range p.Fleet.Vehicles {
		if !seen[vt.Profile.Matrix] {
			seen[vt.Profile.Matrix] = true
			out = append(out, vt.Profile.Matrix)
		}
	}
	return out
}

// RoutingLocations lists the matrix slot of every unique location for every profile.
// The caller requests matrices whose rows and columns follow these indices.
func RoutingLocations(data []byte) ([]RoutingLocation, error) {
	p, err := DecodeProblem(data)
	if err != nil {
		return nil, vrperr.New(vrperr.Validation, "cannot read problem",
			vrperr.D("E0000", err.Error(), "check input json"))
	}
	li := indexLocations(p)
	var c vrperr.Collector
	li.check(&c, true)
	if err := c.Err(vrperr.Validation, "problem has invalid locations"); err != nil {
		return nil, err
	}

	var locs []RoutingLocation
	if li.hasRef {
		seen := map[int]bool{}
		visitLocations(p, func(l Location) { seen[*l.Index] = true })
		idx := make([]int, 0, len(seen))
		for i := range seen {
			idx = append(idx, i)
		}
		sort.Ints(idx)
		for _, i := range idx {
			locs = append(locs, RoutingLocation{Index: i, Location: NewReference(i)})
		}
	} else {
		for i, co := range li.coords {
			locs = append(locs, RoutingLocation{Index: i, Location: NewCoordinate(co.Lat, co.Lng)})
		}
	}

	out := []RoutingLocation{}
	for _, name := range profileNames(p) {
		for _, l := range locs {
			l.Profile = name
			out = append(out, l)
		}
	}
	return out, nil
}
