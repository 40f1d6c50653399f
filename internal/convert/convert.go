// Package convert turns foreign problem formats into the pragmatic problem JSON.
package convert

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"vrpengine/internal/pragmatic"
	"vrpengine/internal/vrperr"
)

// Cost coefficients assigned to every imported vehicle type.
const (
	csvFixedCost    = 25
	csvDistanceCost = 0.0002
	csvTimeCost     = 0.005
)

var (
	jobColumns     = []string{"ID", "LAT", "LNG", "DEMAND", "DURATION", "TW_START", "TW_END"}
	vehicleColumns = []string{"ID", "LAT", "LNG", "CAPACITY", "TW_START", "TW_END", "AMOUNT", "PROFILE"}
)

// ToPragmatic converts inputs of the given format into canonical pragmatic JSON.
// "csv" expects two inputs, jobs then vehicles; "pragmatic" expects one problem document.
func ToPragmatic(format string, inputs [][]byte) ([]byte, error) {
	imp, ok := Lookup(format)
	if !ok {
		return nil, invalid("unknown format", fmt.Sprintf("format '%s' is not supported", format),
			fmt.Sprintf("use one of: %s", strings.Join(Formats(), ", ")))
	}
	if len(inputs) != imp.Inputs() {
		return nil, invalid(fmt.Sprintf("%s format expects %d inputs", imp.Name(), imp.Inputs()),
			fmt.Sprintf("got %d inputs", len(inputs)), imp.Usage())
	}
	p, err := imp.Import(inputs)
	if err != nil {
		return nil, err
	}
	out, err := pragmatic.EncodeProblem(p)
	if err != nil {
		return nil, vrperr.New(vrperr.Serialization, "cannot serialize problem",
			vrperr.D("E0003", err.Error(), "check input values"))
	}
	return out, nil
}

// ReadCSV builds a pragmatic problem from the jobs and vehicles tables.
func ReadCSV(jobs, vehicles io.Reader) (*pragmatic.Problem, error) {
	js, err := readJobs(jobs)
	if err != nil {
		return nil, invalid("cannot read jobs", err.Error(), "check jobs definition")
	}
	vs, err := readVehicles(vehicles)
	if err != nil {
		return nil, invalid("cannot read vehicles", err.Error(), "check vehicles definition")
	}
	p := &pragmatic.Problem{Plan: pragmatic.Plan{Jobs: js}, Fleet: pragmatic.Fleet{Vehicles: vs}}
	seen := map[string]bool{}
	for _, v := range vs {
		if !seen[v.Profile.Matrix] {
			seen[v.Profile.Matrix] = true
			p.Fleet.Profiles = append(p.Fleet.Profiles, pragmatic.MatrixProfile{Name: v.Profile.Matrix})
		}
	}
	return p, nil
}

func invalid(msg, cause, action string) error {
	return vrperr.New(vrperr.Validation, msg, vrperr.D("E0005", cause, action))
}

// table is a CSV body addressed by header name.
type table struct {
	cols map[string]int
	rows [][]string
	line int
}

func readTable(r io.Reader, required []string) (*table, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, errors.New("missing header")
	}
	t := &table{cols: map[string]int{}, rows: records[1:]}
	for i, name := range records[0] {
		t.cols[strings.ToUpper(strings.TrimSpace(name))] = i
	}
	for _, name := range required {
		if _, ok := t.cols[name]; !ok {
			return nil, fmt.Errorf("missing column %s", name)
		}
	}
	return t, nil
}

func (t *table) str(row []string, col string) string {
	i := t.cols[col]
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func (t *table) float(row []string, col string) (float64, error) {
	v, err := strconv.ParseFloat(t.str(row, col), 64)
	if err != nil {
		return 0, fmt.Errorf("row %d: column %s: %w", t.line, col, err)
	}
	return v, nil
}

func (t *table) int(row []string, col string) (int, error) {
	v, err := strconv.Atoi(t.str(row, col))
	if err != nil {
		return 0, fmt.Errorf("row %d: column %s: %w", t.line, col, err)
	}
	return v, nil
}

func readJobs(r io.Reader) ([]pragmatic.Job, error) {
	t, err := readTable(r, jobColumns)
	if err != nil {
		return nil, err
	}
	var (
		jobs  []pragmatic.Job
		index = map[string]int{}
	)
	for i, row := range t.rows {
		t.line = i + 2
		id := t.str(row, "ID")
		if id == "" {
			return nil, fmt.Errorf("row %d: empty job id", t.line)
		}
		lat, err := t.float(row, "LAT")
		if err != nil {
			return nil, err
		}
		lng, err := t.float(row, "LNG")
		if err != nil {
			return nil, err
		}
		demand, err := t.int(row, "DEMAND")
		if err != nil {
			return nil, err
		}
		minutes, err := t.int(row, "DURATION")
		if err != nil {
			return nil, err
		}
		if minutes < 0 {
			return nil, fmt.Errorf("row %d: negative duration", t.line)
		}
		place := pragmatic.JobPlace{Location: pragmatic.NewCoordinate(lat, lng), Duration: float64(minutes) * 60}
		if start, end := t.str(row, "TW_START"), t.str(row, "TW_END"); start != "" && end != "" {
			place.Times = [][]string{{start, end}}
		}
		task := pragmatic.JobTask{Places: []pragmatic.JobPlace{place}}
		if demand != 0 {
			task.Demand = []int{abs(demand)}
		}

		at, ok := index[id]
		if !ok {
			at = len(jobs)
			index[id] = at
			jobs = append(jobs, pragmatic.Job{ID: id})
		}
		job := &jobs[at]
		switch {
		case demand > 0:
			job.Pickups = append(job.Pickups, task)
		case demand < 0:
			job.Deliveries = append(job.Deliveries, task)
		default:
			job.Services = append(job.Services, task)
		}
	}
	return jobs, nil
}

func readVehicles(r io.Reader) ([]pragmatic.VehicleType, error) {
	t, err := readTable(r, vehicleColumns)
	if err != nil {
		return nil, err
	}
	var out []pragmatic.VehicleType
	for i, row := range t.rows {
		t.line = i + 2
		lat, err := t.float(row, "LAT")
		if err != nil {
			return nil, err
		}
		lng, err := t.float(row, "LNG")
		if err != nil {
			return nil, err
		}
		capacity, err := t.int(row, "CAPACITY")
		if err != nil {
			return nil, err
		}
		amount, err := t.int(row, "AMOUNT")
		if err != nil {
			return nil, err
		}
		if amount < 0 {
			return nil, fmt.Errorf("row %d: negative amount", t.line)
		}
		profile := t.str(row, "PROFILE")
		depot := pragmatic.NewCoordinate(lat, lng)
		vt := pragmatic.VehicleType{
			TypeID:     t.str(row, "ID"),
			VehicleIDs: make([]string, 0, amount),
			Profile:    pragmatic.VehicleProfile{Matrix: profile},
			Costs:      pragmatic.VehicleCosts{Fixed: csvFixedCost, Distance: csvDistanceCost, Time: csvTimeCost},
			Shifts: []pragmatic.VehicleShift{{
				Start: pragmatic.ShiftStart{Earliest: t.str(row, "TW_START"), Location: depot},
				End:   &pragmatic.ShiftEnd{Latest: t.str(row, "TW_END"), Location: depot},
			}},
			Capacity: []int{capacity},
		}
		for seq := 1; seq <= amount; seq++ {
			vt.VehicleIDs = append(vt.VehicleIDs, fmt.Sprintf("%s_%d", profile, seq))
		}
		out = append(out, vt)
	}
	return out, nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
