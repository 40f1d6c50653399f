package opt

import (
	"math"
	"testing"

	"vrpengine/internal/matrix"
	"vrpengine/internal/model"
)

// linear builds an evaluator over points on a line: 1 unit = 1000 m = 100 s.
func linear(t *testing.T, points []float64, jobs []model.Job, vehicles []model.Vehicle) *Evaluator {
	t.Helper()
	n := len(points)
	m := matrix.Matrix{Profile: "car", Durations: make([]int64, n*n), Distances: make([]int64, n*n)}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			d := math.Abs(points[i] - points[j])
			m.Distances[i*n+j] = int64(d * 1000)
			m.Durations[i*n+j] = int64(d * 100)
		}
	}
	p := &model.Problem{
		Jobs:       jobs,
		Vehicles:   vehicles,
		Profiles:   []model.Profile{{Name: "car", Speed: 10}},
		Locations:  n,
		Dimensions: 1,
		Weights:    model.DefaultWeights(),
	}
	r, err := matrix.NewExact(p, []matrix.Matrix{m})
	if err != nil {
		t.Fatalf("matrix: %v", err)
	}
	return NewEvaluator(p, r)
}

func delivery(id string, loc, demand int) model.Job {
	return model.Job{ID: id, Tasks: []model.Task{{
		Kind: model.Delivery, Location: model.Location(loc), Duration: 10,
		Windows: []model.TimeWindow{model.Unbounded}, Demand: []int{demand},
	}}}
}

func shipment(id string, from, to, demand int) model.Job {
	return model.Job{ID: id, Tasks: []model.Task{
		{Kind: model.Pickup, Location: model.Location(from), Duration: 5, Windows: []model.TimeWindow{model.Unbounded}, Demand: []int{demand}},
		{Kind: model.Delivery, Location: model.Location(to), Duration: 5, Windows: []model.TimeWindow{model.Unbounded}, Demand: []int{demand}},
	}}
}

func truck(id string, depot, capacity int) model.Vehicle {
	return model.Vehicle{
		ID: id, TypeID: "truck", Capacity: []int{capacity},
		Costs: model.Costs{Fixed: 10, Distance: 1, Time: 0.1},
		Start: model.Location(depot), Latest: math.Inf(1),
	}
}

// mediumInstance has enough jobs and vehicles for the search to have choices.
func mediumInstance(t *testing.T) *Evaluator {
	t.Helper()
	points := []float64{0}
	var jobs []model.Job
	for i := 1; i <= 14; i++ {
		points = append(points, float64((i*37)%23)-11)
		jobs = append(jobs, delivery(string(rune('a'+i-1)), i, 1+i%3))
	}
	points = append(points, 4, -6)
	jobs = append(jobs, shipment("ship1", 15, 16, 2))
	return linear(t, points, jobs, []model.Vehicle{truck("v1", 0, 10), truck("v2", 0, 10), truck("v3", 0, 8)})
}

func assignedCount(s *Solution) int { return len(s.Assigned()) }
