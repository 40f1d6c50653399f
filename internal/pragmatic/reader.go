package pragmatic

import (
	"fmt"
	"sort"
	"time"

	"vrpengine/internal/matrix"
	"vrpengine/internal/model"
	"vrpengine/internal/vrperr"
)

// Read parses and validates a problem and its routing matrices. Every violation found
// is reported in a single ValidationError.
func Read(problem []byte, matrices [][]byte) (*model.Problem, []matrix.Matrix, error) {
	p, err := DecodeProblem(problem)
	if err != nil {
		return nil, nil, vrperr.New(vrperr.Validation, "cannot read problem",
			vrperr.D("E0000", err.Error(), "check input json"))
	}
	var c vrperr.Collector
	ms := make([]Matrix, 0, len(matrices))
	for i, raw := range matrices {
		m, err := DecodeMatrix(raw)
		if err != nil {
			c.Add("E0001", fmt.Sprintf("cannot read routing matrix %d: %v", i, err), "check matrix json")
			continue
		}
		ms = append(ms, *m)
	}
	return build(p, ms, len(matrices) > 0, &c)
}

// ReadProblem validates an already decoded problem.
func ReadProblem(p *Problem, ms []Matrix) (*model.Problem, []matrix.Matrix, error) {
	var c vrperr.Collector
	return build(p, ms, len(ms) > 0, &c)
}

func build(p *Problem, ms []Matrix, haveMatrices bool, c *vrperr.Collector) (*model.Problem, []matrix.Matrix, error) {
	li := indexLocations(p)
	li.check(c, haveMatrices)

	b := &builder{src: p, li: li, c: c}
	b.profiles()
	b.vehicles()
	b.jobs()
	b.dimensions()
	mats := b.matrices(ms)

	if err := c.Err(vrperr.Validation, "problem is not valid"); err != nil {
		return nil, nil, err
	}
	if li.hasCoord {
		b.out.Coordinates = li.coords
	}
	b.out.Locations = li.size()
	b.out.Weights = model.DefaultWeights()
	return &b.out, mats, nil
}

type builder struct {
	src *Problem
	li  *locationIndex
	c   *vrperr.Collector
	out model.Problem
}

func (b *builder) profiles() {
	if len(b.src.Fleet.Profiles) == 0 {
		for _, name := range profileNames(b.src) {
			b.out.Profiles = append(b.out.Profiles, model.Profile{Name: name, Speed: matrix.DefaultSpeed})
		}
		return
	}
	seen := map[string]bool{}
	for _, pr := range b.src.Fleet.Profiles {
		if seen[pr.Name] {
			b.c.Add("E1302", fmt.Sprintf("duplicate profile name '%s'", pr.Name), "use unique profile names")
			continue
		}
		seen[pr.Name] = true
		if pr.Speed < 0 {
			b.c.Add("E1302", fmt.Sprintf("profile '%s' has negative speed", pr.Name), "use a positive speed in m/s")
		}
		speed := pr.Speed
		if speed <= 0 {
			speed = matrix.DefaultSpeed
		}
		b.out.Profiles = append(b.out.Profiles, model.Profile{Name: pr.Name, Speed: speed})
	}
}

func (b *builder) vehicles() {
	if len(b.src.Fleet.Vehicles) == 0 {
		b.c.Add("E1304", "fleet has no vehicle types", "add at least one vehicle type")
		return
	}
	typeIDs := map[string]bool{}
	vehicleIDs := map[string]bool{}
	for _, vt := range b.src.Fleet.Vehicles {
		if typeIDs[vt.TypeID] {
			b.c.Add("E1300", fmt.Sprintf("duplicate vehicle type id '%s'", vt.TypeID), "use unique type ids")
		}
		typeIDs[vt.TypeID] = true
		if len(vt.VehicleIDs) == 0 {
			b.c.Add("E1304", fmt.Sprintf("vehicle type '%s' has no vehicle ids", vt.TypeID), "add at least one vehicle id")
		}
		profile := b.out.ProfileIndex(vt.Profile.Matrix)
		if profile < 0 {
			b.c.Add("E1302", fmt.Sprintf("vehicle type '%s' uses undeclared profile '%s'", vt.TypeID, vt.Profile.Matrix),
				"declare the profile in fleet.profiles")
		}
		if vt.Costs.Fixed < 0 || vt.Costs.Distance < 0 || vt.Costs.Time < 0 {
			b.c.Add("E1303", fmt.Sprintf("vehicle type '%s' has negative costs", vt.TypeID), "use non-negative costs")
		}
		for _, q := range vt.Capacity {
			if q < 0 {
				b.c.Add("E1303", fmt.Sprintf("vehicle type '%s' has negative capacity", vt.TypeID), "use non-negative capacity")
				break
			}
		}
		var limits VehicleLimits
		if vt.Limits != nil {
			limits = *vt.Limits
			if limits.MaxDistance < 0 || limits.ShiftTime < 0 {
				b.c.Add("E1303", fmt.Sprintf("vehicle type '%s' has negative limits", vt.TypeID), "use non-negative limits")
			}
		}
		if len(vt.Shifts) == 0 {
			b.c.Add("E1301", fmt.Sprintf("vehicle type '%s' has no shifts", vt.TypeID), "add at least one shift")
		}

		type shift struct {
			earliest, latest float64
			start            model.Location
			end              *model.Location
		}
		shifts := make([]shift, 0, len(vt.Shifts))
		for si, sh := range vt.Shifts {
			s := shift{start: b.li.lookup(sh.Start.Location), latest: model.Unbounded.End}
			earliest, err := parseTime(sh.Start.Earliest)
			if err != nil {
				b.c.Add("E1301", fmt.Sprintf("vehicle type '%s' shift %d: invalid start time '%s'", vt.TypeID, si, sh.Start.Earliest),
					"use RFC3339 time")
			}
			s.earliest = earliest
			if sh.End != nil {
				latest, err := parseTime(sh.End.Latest)
				if err != nil {
					b.c.Add("E1301", fmt.Sprintf("vehicle type '%s' shift %d: invalid end time '%s'", vt.TypeID, si, sh.End.Latest),
						"use RFC3339 time")
				} else if latest < earliest {
					b.c.Add("E1301", fmt.Sprintf("vehicle type '%s' shift %d ends before it starts", vt.TypeID, si),
						"make shift end later than shift start")
				}
				s.latest = latest
				end := b.li.lookup(sh.End.Location)
				s.end = &end
			}
			shifts = append(shifts, s)
		}

		for _, id := range vt.VehicleIDs {
			if vehicleIDs[id] {
				b.c.Add("E1300", fmt.Sprintf("duplicate vehicle id '%s'", id), "use unique vehicle ids")
				continue
			}
			vehicleIDs[id] = true
			for si, s := range shifts {
				b.out.Vehicles = append(b.out.Vehicles, model.Vehicle{
					ID:          id,
					TypeID:      vt.TypeID,
					ShiftIndex:  si,
					Profile:     max(profile, 0),
					Capacity:    append([]int(nil), vt.Capacity...),
					Costs:       model.Costs{Fixed: vt.Costs.Fixed, Distance: vt.Costs.Distance, Time: vt.Costs.Time},
					Skills:      append([]string(nil), vt.Skills...),
					Start:       s.start,
					Earliest:    s.earliest,
					End:         s.end,
					Latest:      s.latest,
					MaxDistance: limits.MaxDistance,
					ShiftTime:   limits.ShiftTime,
				})
			}
		}
	}
}

func (b *builder) jobs() {
	ids := map[string]bool{}
	for _, j := range b.src.Plan.Jobs {
		if j.ID == "" {
			b.c.Add("E1100", "job with empty id", "give every job a unique id")
		} else if ids[j.ID] {
			b.c.Add("E1100", fmt.Sprintf("duplicate job id '%s'", j.ID), "use unique job ids")
		}
		ids[j.ID] = true

		np, nd, ns := len(j.Pickups), len(j.Deliveries), len(j.Services)
		shapeOK := (np+nd+ns == 1) || (np == 1 && nd == 1 && ns == 0)
		if !shapeOK {
			b.c.Add("E1104", fmt.Sprintf("job '%s' has %d pickups, %d deliveries, %d services", j.ID, np, nd, ns),
				"use a single task or one pickup with one delivery")
			continue
		}

		job := model.Job{ID: j.ID, Skills: append([]string(nil), j.Skills...), SoftWindows: j.SoftTimeWindows}
		ok := true
		add := func(kind model.TaskKind, t JobTask) {
			task, good := b.task(j.ID, kind, t)
			ok = ok && good
			job.Tasks = append(job.Tasks, task)
		}
		for _, t := range j.Pickups {
			add(model.Pickup, t)
		}
		for _, t := range j.Deliveries {
			add(model.Delivery, t)
		}
		for _, t := range j.Services {
			add(model.Service, t)
		}
		if ok && job.IsShipment() && !equalDemand(job.Tasks[0].Demand, job.Tasks[1].Demand) {
			b.c.Add("E1102", fmt.Sprintf("job '%s': pickup and delivery demand differ", j.ID),
				"use the same demand for pickup and delivery")
		}
		b.out.Jobs = append(b.out.Jobs, job)
	}
}

func (b *builder) task(jobID string, kind model.TaskKind, t JobTask) (model.Task, bool) {
	ok := true
	if len(t.Places) != 1 {
		b.c.Add("E1104", fmt.Sprintf("job '%s': %s task has %d places", jobID, kind, len(t.Places)), "use exactly one place per task")
		return model.Task{Kind: kind}, false
	}
	switch kind {
	case model.Service:
		if len(t.Demand) > 0 {
			b.c.Add("E1101", fmt.Sprintf("job '%s': service task has demand", jobID), "remove demand from service tasks")
			ok = false
		}
	default:
		if len(t.Demand) == 0 {
			b.c.Add("E1101", fmt.Sprintf("job '%s': %s task has no demand", jobID, kind), "specify demand")
			ok = false
		}
		for _, d := range t.Demand {
			if d < 0 {
				b.c.Add("E1101", fmt.Sprintf("job '%s': %s task has negative demand", jobID, kind), "use non-negative demand")
				ok = false
				break
			}
		}
	}

	pl := t.Places[0]
	if pl.Duration < 0 {
		b.c.Add("E1104", fmt.Sprintf("job '%s': negative duration", jobID), "use a non-negative duration")
		ok = false
	}
	windows, good := b.windows(jobID, pl.Times)
	ok = ok && good
	return model.Task{
		Kind:     kind,
		Location: b.li.lookup(pl.Location),
		Duration: pl.Duration,
		Windows:  windows,
		Demand:   append([]int(nil), t.Demand...),
		Tag:      t.Tag,
	}, ok
}

func (b *builder) windows(jobID string, times [][]string) ([]model.TimeWindow, bool) {
	if len(times) == 0 {
		return []model.TimeWindow{model.Unbounded}, true
	}
	ok := true
	out := make([]model.TimeWindow, 0, len(times))
	for _, tw := range times {
		if len(tw) != 2 {
			b.c.Add("E1103", fmt.Sprintf("job '%s': time window must have exactly two entries", jobID), "use [start, end]")
			ok = false
			continue
		}
		start, err1 := parseTime(tw[0])
		end, err2 := parseTime(tw[1])
		if err1 != nil || err2 != nil {
			b.c.Add("E1103", fmt.Sprintf("job '%s': cannot parse time window [%s, %s]", jobID, tw[0], tw[1]), "use RFC3339 time")
			ok = false
			continue
		}
		if start > end {
			b.c.Add("E1103", fmt.Sprintf("job '%s': time window start is after end", jobID), "make start earlier than end")
			ok = false
			continue
		}
		out = append(out, model.TimeWindow{Start: start, End: end})
	}
	if len(out) == 0 {
		out = []model.TimeWindow{model.Unbounded}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Start < out[k].Start })
	return out, ok
}

// dimensions pads every demand and capacity vector to the widest one and checks
// that each demanded dimension exists on some skill-compatible vehicle.
func (b *builder) dimensions() {
	dims := 0
	for _, v := range b.out.Vehicles {
		dims = max(dims, len(v.Capacity))
	}
	for _, j := range b.out.Jobs {
		for _, t := range j.Tasks {
			dims = max(dims, len(t.Demand))
		}
	}
	for _, j := range b.out.Jobs {
		var compatible []*model.Vehicle
		for i := range b.out.Vehicles {
			if b.out.Vehicles[i].HasSkills(j.Skills) {
				compatible = append(compatible, &b.out.Vehicles[i])
			}
		}
		if len(compatible) == 0 {
			continue
		}
		for _, t := range j.Tasks {
			for d, q := range t.Demand {
				if q == 0 {
					continue
				}
				served := false
				for _, v := range compatible {
					if len(v.Capacity) > d {
						served = true
						break
					}
				}
				if !served {
					b.c.Add("E1105", fmt.Sprintf("job '%s' demands capacity dimension %d that no vehicle has", j.ID, d),
						"align demand and capacity dimensions")
				}
			}
		}
	}
	for i := range b.out.Vehicles {
		b.out.Vehicles[i].Capacity = pad(b.out.Vehicles[i].Capacity, dims)
	}
	for i := range b.out.Jobs {
		for k := range b.out.Jobs[i].Tasks {
			b.out.Jobs[i].Tasks[k].Demand = pad(b.out.Jobs[i].Tasks[k].Demand, dims)
		}
	}
	b.out.Dimensions = dims
}

// matrices validates matrix shape and profile binding. An unnamed matrix binds to
// the only profile, or by position when one matrix per profile is supplied.
func (b *builder) matrices(ms []Matrix) []matrix.Matrix {
	out := make([]matrix.Matrix, 0, len(ms))
	seen := map[string]bool{}
	for i, m := range ms {
		name := m.Profile
		if name == "" {
			switch {
			case len(b.out.Profiles) == 1:
				name = b.out.Profiles[0].Name
			case len(ms) == len(b.out.Profiles):
				name = b.out.Profiles[i].Name
			default:
				b.c.Add("E1502", fmt.Sprintf("matrix %d has no profile and cannot be bound", i), "set the matrix profile")
				continue
			}
		}
		if b.out.ProfileIndex(name) < 0 {
			b.c.Add("E1502", fmt.Sprintf("matrix %d has unknown profile '%s'", i, name), "use a profile declared in the fleet")
			continue
		}
		if seen[name] {
			b.c.Add("E1502", fmt.Sprintf("duplicate matrix for profile '%s'", name), "supply one matrix per profile")
			continue
		}
		seen[name] = true
		mm := matrix.Matrix{Profile: name, Durations: m.TravelTimes, Distances: m.Distances, ErrorCodes: m.ErrorCodes}
		if mm.Size() < 0 {
			b.c.Add("E1501", fmt.Sprintf("matrix for profile '%s' is not a square of consistent arrays", name),
				"make travelTimes, distances and errorCodes the same n*n length")
			continue
		}
		out = append(out, mm)
	}
	return out
}

func parseTime(s string) (float64, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return 0, err
	}
	return float64(t.Unix()) + float64(t.Nanosecond())/1e9, nil
}

// FormatTime renders unix seconds as RFC3339 in UTC.
func FormatTime(sec float64) string {
	whole := int64(sec)
	nsec := int64((sec - float64(whole)) * 1e9)
	return time.Unix(whole, nsec).UTC().Format(time.RFC3339)
}

func pad(v []int, n int) []int {
	if len(v) >= n {
		return v
	}
	out := make([]int, n)
	copy(out, v)
	return out
}

func equalDemand(a, b []int) bool {
	n := max(len(a), len(b))
	a, b = pad(a, n), pad(b, n)
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
