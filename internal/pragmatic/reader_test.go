package pragmatic

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"vrpengine/internal/model"
	"vrpengine/internal/vrperr"
)

const sampleProblem = `{
  "plan": {"jobs": [
    {"id": "job1", "deliveries": [{"places": [{"location": {"lat": 52.52, "lng": 13.40}, "duration": 300,
      "times": [["2020-07-04T10:00:00Z", "2020-07-04T12:00:00Z"]]}], "demand": [1]}]},
    {"id": "job2", "pickups": [{"places": [{"location": {"lat": 52.53, "lng": 13.41}, "duration": 120}], "demand": [2]}],
      "deliveries": [{"places": [{"location": {"lat": 52.52, "lng": 13.40}, "duration": 60}], "demand": [2]}]}
  ]},
  "fleet": {
    "vehicles": [{"typeId": "truck", "vehicleIds": ["t1", "t2"], "profile": {"matrix": "car"},
      "costs": {"fixed": 20, "distance": 0.002, "time": 0.003},
      "shifts": [{"start": {"earliest": "2020-07-04T09:00:00Z", "location": {"lat": 52.50, "lng": 13.38}}}],
      "capacity": [10]}],
    "profiles": [{"name": "car"}]
  }
}`

func TestReadSample(t *testing.T) {
	p, ms, err := Read([]byte(sampleProblem), nil)
	require.NoError(t, err)
	require.Empty(t, ms)
	require.Len(t, p.Jobs, 2)
	require.Len(t, p.Vehicles, 2)
	require.Equal(t, 3, p.Locations)
	require.Equal(t, 1, p.Dimensions)

	// location indices follow first appearance: job locations, then shift starts
	want := []model.Coordinate{{Lat: 52.52, Lng: 13.40}, {Lat: 52.53, Lng: 13.41}, {Lat: 52.50, Lng: 13.38}}
	if diff := cmp.Diff(want, p.Coordinates); diff != "" {
		t.Fatalf("coordinates mismatch (-want +got):\n%s", diff)
	}

	job2 := p.Jobs[1]
	require.True(t, job2.IsShipment())
	require.Equal(t, model.Pickup, job2.Tasks[0].Kind)
	require.Equal(t, model.Location(1), job2.Tasks[0].Location)
	require.Equal(t, model.Location(0), job2.Tasks[1].Location)

	w := p.Jobs[0].Tasks[0].Windows
	require.Len(t, w, 1)
	require.Equal(t, 7200.0, w[0].End-w[0].Start)
	require.Equal(t, "2020-07-04T10:00:00Z", FormatTime(w[0].Start))

	v := p.Vehicles[0]
	require.Equal(t, "t1", v.ID)
	require.Nil(t, v.End)
	require.Equal(t, model.Unbounded.End, v.Latest)
	require.Equal(t, 10.0, p.Profiles[0].Speed)
}

func TestReadCollectsAllViolations(t *testing.T) {
	bad := `{
	  "plan": {"jobs": [
	    {"id": "a", "deliveries": [{"places": [{"location": {"lat": 1, "lng": 1}, "duration": 1}]}]},
	    {"id": "a", "services": [{"places": [{"location": {"lat": 1, "lng": 2}, "duration": 1, "times": [["bad", "worse"]]}]}]},
	    {"id": "b", "pickups": [{"places": [{"location": {"lat": 1, "lng": 3}, "duration": 1}], "demand": [1]}],
	      "deliveries": [{"places": [{"location": {"lat": 1, "lng": 4}, "duration": 1}], "demand": [2]}]}
	  ]},
	  "fleet": {
	    "vehicles": [
	      {"typeId": "t", "vehicleIds": ["v1"], "profile": {"matrix": "bike"}, "costs": {"distance": -1, "time": 0},
	       "shifts": [{"start": {"earliest": "nope", "location": {"lat": 1, "lng": 1}}}], "capacity": [1]},
	      {"typeId": "u", "vehicleIds": ["v1"], "profile": {"matrix": "car"}, "costs": {"distance": 1, "time": 1},
	       "shifts": [{"start": {"earliest": "2020-01-01T00:00:00Z", "location": {"lat": 1, "lng": 1}}}], "capacity": [1]}
	    ],
	    "profiles": [{"name": "car"}]
	  }
	}`
	_, _, err := Read([]byte(bad), nil)
	e := vrperr.From(err)
	require.NotNil(t, e)
	require.Equal(t, vrperr.Validation, e.Kind)

	codes := map[string]bool{}
	for _, d := range e.Details {
		codes[d.Code] = true
	}
	for _, want := range []string{"E1100", "E1101", "E1102", "E1103", "E1300", "E1301", "E1302", "E1303"} {
		require.Truef(t, codes[want], "missing %s in %v", want, e.Details)
	}
}

func TestReadRejectsUnparsableInput(t *testing.T) {
	_, _, err := Read([]byte("{"), nil)
	e := vrperr.From(err)
	require.Equal(t, vrperr.Validation, e.Kind)
	require.Equal(t, "E0000", e.Details[0].Code)

	_, _, err = Read([]byte(sampleProblem), [][]byte{[]byte("[")})
	e = vrperr.From(err)
	require.Equal(t, "E0001", e.Details[0].Code)
}

func TestReadJobShapes(t *testing.T) {
	cases := map[string]string{
		"two services":     `"services": [{"places": [{"location": {"lat": 1, "lng": 1}, "duration": 1}]}, {"places": [{"location": {"lat": 1, "lng": 1}, "duration": 1}]}]`,
		"no tasks":         `"skills": ["x"]`,
		"two places":       `"services": [{"places": [{"location": {"lat": 1, "lng": 1}, "duration": 1}, {"location": {"lat": 1, "lng": 2}, "duration": 1}]}]`,
		"delivery+service": `"deliveries": [{"places": [{"location": {"lat": 1, "lng": 1}, "duration": 1}], "demand": [1]}], "services": [{"places": [{"location": {"lat": 1, "lng": 1}, "duration": 1}]}]`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			doc := strings.Replace(sampleProblem, `"plan": {"jobs": [`, `"plan": {"jobs": [{"id": "x", `+body+`},`, 1)
			_, _, err := Read([]byte(doc), nil)
			e := vrperr.From(err)
			require.NotNil(t, e)
			require.Equal(t, "E1104", e.Details[0].Code)
		})
	}
}

func TestReadIndexLocations(t *testing.T) {
	doc := `{
	  "plan": {"jobs": [{"id": "j", "services": [{"places": [{"location": {"index": 1}, "duration": 10}]}]}]},
	  "fleet": {"vehicles": [{"typeId": "t", "vehicleIds": ["v"], "profile": {"matrix": "car"}, "costs": {"distance": 1, "time": 1},
	    "shifts": [{"start": {"earliest": "2020-01-01T00:00:00Z", "location": {"index": 0}},
	                "end": {"latest": "2020-01-01T10:00:00Z", "location": {"index": 0}}}], "capacity": [1]}],
	    "profiles": [{"name": "car"}]}
	}`
	_, _, err := Read([]byte(doc), nil)
	e := vrperr.From(err)
	require.NotNil(t, e)
	require.Equal(t, "E1500", e.Details[0].Code)

	m := `{"travelTimes": [0, 5, 5, 0], "distances": [0, 50, 50, 0]}`
	p, ms, err := Read([]byte(doc), [][]byte{[]byte(m)})
	require.NoError(t, err)
	require.False(t, p.HasCoordinates())
	require.Equal(t, 2, p.Locations)
	require.Len(t, ms, 1)
	require.Equal(t, "car", ms[0].Profile)
	require.NotNil(t, p.Vehicles[0].End)
	require.Equal(t, 36000.0, p.Vehicles[0].Latest-p.Vehicles[0].Earliest)
}

func TestReadMatrixShapeAndProfile(t *testing.T) {
	_, _, err := Read([]byte(sampleProblem), [][]byte{[]byte(`{"profile": "car", "travelTimes": [0, 1, 1], "distances": [0, 1, 1]}`)})
	require.Equal(t, "E1501", vrperr.From(err).Details[0].Code)

	_, _, err = Read([]byte(sampleProblem), [][]byte{[]byte(`{"profile": "boat", "travelTimes": [0], "distances": [0]}`)})
	require.Equal(t, "E1502", vrperr.From(err).Details[0].Code)
}

func TestReadMixedLocations(t *testing.T) {
	doc := strings.Replace(sampleProblem, `{"lat": 52.53, "lng": 13.41}`, `{"index": 3}`, 1)
	_, _, err := Read([]byte(doc), [][]byte{[]byte(`{"profile": "car", "travelTimes": [0], "distances": [0]}`)})
	require.Equal(t, "E1500", vrperr.From(err).Details[0].Code)
}

func TestReadDemandDimensionNotServed(t *testing.T) {
	doc := strings.Replace(sampleProblem, `"demand": [1]}]}`, `"demand": [0, 1]}]}`, 1)
	_, _, err := Read([]byte(doc), nil)
	require.Equal(t, "E1105", vrperr.From(err).Details[0].Code)
}

func TestReadEmptyFleet(t *testing.T) {
	_, _, err := Read([]byte(`{"plan": {"jobs": []}, "fleet": {"vehicles": [], "profiles": []}}`), nil)
	require.Equal(t, "E1304", vrperr.From(err).Details[0].Code)
}

func TestRoutingLocations(t *testing.T) {
	locs, err := RoutingLocations([]byte(sampleProblem))
	require.NoError(t, err)
	require.Len(t, locs, 3)
	for i, l := range locs {
		require.Equal(t, i, l.Index)
		require.Equal(t, "car", l.Profile)
		require.True(t, l.Location.IsCoordinate())
	}
	require.Equal(t, 52.53, *locs[1].Location.Lat)
}

func TestEncodeProblemRoundTrip(t *testing.T) {
	p, err := DecodeProblem([]byte(sampleProblem))
	require.NoError(t, err)
	data, err := EncodeProblem(p)
	require.NoError(t, err)
	again, err := DecodeProblem(data)
	require.NoError(t, err)
	if diff := cmp.Diff(p, again); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}
