package report

import (
	"context"
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"vrpengine/internal/matrix"
	"vrpengine/internal/opt"
	"vrpengine/internal/pragmatic"
	"vrpengine/internal/vrperr"
)

const problem = `{
  "plan": {"jobs": [
    {"id": "job1", "deliveries": [{"places": [{"location": {"lat": 52.5200, "lng": 13.4000}, "duration": 300}], "demand": [1], "tag": "front"}]},
    {"id": "job2", "deliveries": [{"places": [{"location": {"lat": 52.5200, "lng": 13.4000}, "duration": 120}], "demand": [1]}]},
    {"id": "job3", "pickups": [{"places": [{"location": {"lat": 52.5300, "lng": 13.4300}, "duration": 60}], "demand": [2]}]},
    {"id": "heavy", "deliveries": [{"places": [{"location": {"lat": 52.5100, "lng": 13.3900}, "duration": 60}], "demand": [50]}]}
  ]},
  "fleet": {
    "vehicles": [{"typeId": "van", "vehicleIds": ["van_1"], "profile": {"matrix": "car"},
      "costs": {"fixed": 20, "distance": 0.002, "time": 0.003},
      "shifts": [{"start": {"earliest": "2024-01-01T08:00:00Z", "location": {"lat": 52.5000, "lng": 13.3800}},
                  "end": {"latest": "2024-01-01T18:00:00Z", "location": {"lat": 52.5000, "lng": 13.3800}}}],
      "capacity": [10]}],
    "profiles": [{"name": "car", "speed": 12}]
  }
}`

func solve(t *testing.T, doc string, generations int) (*opt.Evaluator, *opt.Solution, opt.Telemetry) {
	t.Helper()
	p, _, err := pragmatic.Read([]byte(doc), nil)
	require.NoError(t, err)
	ev := opt.NewEvaluator(p, matrix.NewApproximate(p, nil))
	best, tel, err := opt.NewEngine(ev, opt.Config{MaxGenerations: generations, Seed: 11}).Run(context.Background(), ev.Construct())
	require.NoError(t, err)
	return ev, best, tel
}

func TestWriteSolutionShape(t *testing.T) {
	ev, best, tel := solve(t, problem, 20)
	data, err := Write(ev, best, tel, Options{})
	require.NoError(t, err)

	var doc Solution
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Len(t, doc.Tours, 1)
	tour := doc.Tours[0]
	require.Equal(t, "van_1", tour.VehicleID)
	require.Equal(t, "van", tour.TypeID)

	first, last := tour.Stops[0], tour.Stops[len(tour.Stops)-1]
	require.Equal(t, "departure", first.Activities[0].Type)
	require.Equal(t, "2024-01-01T08:00:00Z", first.Time.Departure)
	require.Equal(t, []int{2}, first.Load)
	require.Equal(t, "arrival", last.Activities[0].Type)
	require.Equal(t, tour.Statistic.Distance, last.Distance)

	// job1 and job2 share a location and are merged into one stop
	jobs := 0
	for _, st := range tour.Stops[1 : len(tour.Stops)-1] {
		jobs += len(st.Activities)
		if len(st.Activities) == 2 {
			require.ElementsMatch(t, []string{"job1", "job2"}, []string{st.Activities[0].JobID, st.Activities[1].JobID})
		}
	}
	require.Equal(t, 3, jobs)
	require.Len(t, tour.Stops, 4)

	require.Len(t, doc.Unassigned, 1)
	require.Equal(t, "heavy", doc.Unassigned[0].JobID)
	require.Equal(t, opt.ReasonCapacity, doc.Unassigned[0].Reasons[0].Code)

	require.Equal(t, 20, doc.Extras.Metrics.Generations)
	require.Equal(t, "BudgetExhausted", doc.Extras.Metrics.State)
	require.InDelta(t, tour.Statistic.Cost, doc.Statistic.Cost, 1e-9)
	require.Nil(t, doc.GeoJSON)
}

func TestWriteIsByteIdenticalForFixedSeed(t *testing.T) {
	ev1, b1, t1 := solve(t, problem, 30)
	ev2, b2, t2 := solve(t, problem, 30)
	out1, err := Write(ev1, b1, t1, Options{GeoJSON: true})
	require.NoError(t, err)
	out2, err := Write(ev2, b2, t2, Options{GeoJSON: true})
	require.NoError(t, err)
	require.Equal(t, string(out1), string(out2))
}

func TestGeoJSON(t *testing.T) {
	ev, best, tel := solve(t, problem, 5)
	doc, err := Build(ev, best, tel, Options{GeoJSON: true})
	require.NoError(t, err)
	require.Equal(t, "FeatureCollection", doc.GeoJSON.Type)

	points, lines := 0, 0
	for _, f := range doc.GeoJSON.Features {
		switch f.Geometry.Type {
		case "Point":
			points++
		case "LineString":
			lines++
			require.Len(t, f.Geometry.Coordinates, len(doc.Tours[0].Stops))
		}
	}
	require.Equal(t, len(doc.Tours[0].Stops), points)
	require.Equal(t, 1, lines)
}

func TestGeoJSONNeedsCoordinates(t *testing.T) {
	doc := `{
	  "plan": {"jobs": [{"id": "j", "services": [{"places": [{"location": {"index": 1}, "duration": 10}]}]}]},
	  "fleet": {"vehicles": [{"typeId": "t", "vehicleIds": ["v"], "profile": {"matrix": "car"}, "costs": {"distance": 1, "time": 1},
	    "shifts": [{"start": {"earliest": "2020-01-01T00:00:00Z", "location": {"index": 0}}}], "capacity": [1]}],
	    "profiles": [{"name": "car"}]}
	}`
	p, ms, err := pragmatic.Read([]byte(doc), [][]byte{[]byte(`{"profile": "car", "travelTimes": [0, 5, 5, 0], "distances": [0, 50, 50, 0]}`)})
	require.NoError(t, err)
	r, err := matrix.NewExact(p, ms)
	require.NoError(t, err)
	ev := opt.NewEvaluator(p, r)
	best := ev.Construct()

	_, err = Write(ev, best, opt.Telemetry{}, Options{GeoJSON: true})
	require.True(t, vrperr.Is(err, vrperr.Serialization))

	out, err := Write(ev, best, opt.Telemetry{}, Options{})
	require.NoError(t, err)
	require.Contains(t, string(out), `"location":{"index":1}`)
}

func TestNonFiniteCostIsSerializationError(t *testing.T) {
	p, _, err := pragmatic.Read([]byte(problem), nil)
	require.NoError(t, err)
	ev := opt.NewEvaluator(p, matrix.NewApproximate(p, nil))
	best := ev.Construct()
	p.Vehicles[0].Costs.Time = math.NaN()

	_, err = Write(ev, best, opt.Telemetry{}, Options{})
	require.True(t, vrperr.Is(err, vrperr.Serialization), "got %v", err)
}
