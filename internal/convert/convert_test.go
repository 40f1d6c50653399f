package convert

import (
	"testing"

	"github.com/stretchr/testify/require"

	"vrpengine/internal/pragmatic"
	"vrpengine/internal/vrperr"
)

const jobsCSV = `ID,LAT,LNG,DEMAND,DURATION,TW_START,TW_END
job1,52.52599,13.45413,2,5,2020-07-04T08:00:00Z,2020-07-04T12:00:00Z
job2,52.5225,13.4095,-1,3,,
job3,52.5165,13.3808,0,1,,
job4,52.5316,13.3884,1,2,,
job4,52.5110,13.4000,-1,2,,
`

const vehiclesCSV = `ID,LAT,LNG,CAPACITY,TW_START,TW_END,AMOUNT,PROFILE
vehicle1,52.4664,13.4023,10,2020-07-04T08:00:00Z,2020-07-04T20:00:00Z,2,car
vehicle2,52.4664,13.4023,3,2020-07-04T09:00:00Z,2020-07-04T18:00:00Z,1,truck
`

func TestReadCSV(t *testing.T) {
	out, err := ToPragmatic("csv", [][]byte{[]byte(jobsCSV), []byte(vehiclesCSV)})
	require.NoError(t, err)
	p, err := pragmatic.DecodeProblem(out)
	require.NoError(t, err)

	require.Len(t, p.Plan.Jobs, 4)
	ids := []string{}
	for _, j := range p.Plan.Jobs {
		ids = append(ids, j.ID)
	}
	require.Equal(t, []string{"job1", "job2", "job3", "job4"}, ids)

	job1 := p.Plan.Jobs[0]
	require.Len(t, job1.Pickups, 1)
	require.Equal(t, []int{2}, job1.Pickups[0].Demand)
	require.Equal(t, 300.0, job1.Pickups[0].Places[0].Duration)
	require.Equal(t, [][]string{{"2020-07-04T08:00:00Z", "2020-07-04T12:00:00Z"}}, job1.Pickups[0].Places[0].Times)

	job2 := p.Plan.Jobs[1]
	require.Len(t, job2.Deliveries, 1)
	require.Equal(t, []int{1}, job2.Deliveries[0].Demand)
	require.Nil(t, job2.Deliveries[0].Places[0].Times)

	job3 := p.Plan.Jobs[2]
	require.Len(t, job3.Services, 1)
	require.Nil(t, job3.Services[0].Demand)

	job4 := p.Plan.Jobs[3]
	require.Len(t, job4.Pickups, 1)
	require.Len(t, job4.Deliveries, 1)

	require.Len(t, p.Fleet.Vehicles, 2)
	require.Equal(t, []string{"truck_1"}, p.Fleet.Vehicles[1].VehicleIDs)
	v1 := p.Fleet.Vehicles[0]
	require.Equal(t, "vehicle1", v1.TypeID)
	require.Equal(t, []string{"car_1", "car_2"}, v1.VehicleIDs)
	require.Equal(t, pragmatic.VehicleCosts{Fixed: 25, Distance: 0.0002, Time: 0.005}, v1.Costs)
	require.Equal(t, "2020-07-04T20:00:00Z", v1.Shifts[0].End.Latest)
	require.Equal(t, []int{10}, v1.Capacity)
	require.Equal(t, []pragmatic.MatrixProfile{{Name: "car"}, {Name: "truck"}}, p.Fleet.Profiles)

	// the converted document is a valid problem
	_, _, err = pragmatic.Read(out, nil)
	require.NoError(t, err)
}

func TestReadCSVErrors(t *testing.T) {
	_, err := ToPragmatic("csv", [][]byte{[]byte("ID,LAT\njob1,1\n"), []byte(vehiclesCSV)})
	require.True(t, vrperr.Is(err, vrperr.Validation))
	require.Equal(t, "E0005", vrperr.From(err).Details[0].Code)
	require.Contains(t, err.Error(), "cannot read jobs")

	bad := "ID,LAT,LNG,CAPACITY,TW_START,TW_END,AMOUNT,PROFILE\nv,1,2,ten,a,b,1,car\n"
	_, err = ToPragmatic("csv", [][]byte{[]byte(jobsCSV), []byte(bad)})
	require.True(t, vrperr.Is(err, vrperr.Validation))
	require.Contains(t, err.Error(), "cannot read vehicles")

	_, err = ToPragmatic("csv", [][]byte{[]byte(jobsCSV)})
	require.True(t, vrperr.Is(err, vrperr.Validation))
}

func TestPragmaticIsCanonicalized(t *testing.T) {
	in := `{"fleet":{"vehicles":[],"profiles":[{"name":"car"}]},"plan":{"jobs":[]}}`
	out, err := ToPragmatic("pragmatic", [][]byte{[]byte(in)})
	require.NoError(t, err)
	require.Contains(t, string(out), "\"plan\": {")

	again, err := ToPragmatic("pragmatic", [][]byte{out})
	require.NoError(t, err)
	require.Equal(t, string(out), string(again))

	_, err = ToPragmatic("pragmatic", [][]byte{[]byte("{")})
	require.True(t, vrperr.Is(err, vrperr.Validation))
}

func TestUnknownFormat(t *testing.T) {
	_, err := ToPragmatic("hre", [][]byte{[]byte("x")})
	require.True(t, vrperr.Is(err, vrperr.Validation))
	require.Equal(t, "E0005", vrperr.From(err).Details[0].Code)
}

type echoImporter struct{}

func (echoImporter) Name() string  { return "Echo" }
func (echoImporter) Inputs() int   { return 1 }
func (echoImporter) Usage() string { return "pass one document" }
func (echoImporter) Import(inputs [][]byte) (*pragmatic.Problem, error) {
	return pragmatic.DecodeProblem(inputs[0])
}

func TestRegisterImporter(t *testing.T) {
	Register(echoImporter{})
	require.Equal(t, []string{"csv", "echo", "pragmatic"}, Formats())

	_, ok := Lookup(" ECHO ")
	require.True(t, ok)
	out, err := ToPragmatic("echo", [][]byte{[]byte(`{"plan":{"jobs":[]},"fleet":{"vehicles":[],"profiles":[]}}`)})
	require.NoError(t, err)
	require.Contains(t, string(out), `"plan"`)

	_, err = ToPragmatic("echo", nil)
	require.Contains(t, err.Error(), "echo format expects 1 inputs")
}
