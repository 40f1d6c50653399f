package opt

import (
	"testing"

	"github.com/stretchr/testify/require"

	"vrpengine/internal/matrix"
	"vrpengine/internal/model"
)

func TestConstructAssignsEverythingThatFits(t *testing.T) {
	ev := linear(t, []float64{0, 1, 2, 3}, []model.Job{
		delivery("j1", 1, 1), delivery("j2", 2, 1), delivery("j3", 3, 1),
	}, []model.Vehicle{truck("v1", 0, 5)})

	s := ev.Construct()
	require.NoError(t, ev.CheckSolution(s))
	require.Empty(t, s.Unassigned)
	require.Equal(t, []Stop{{Job: 0}, {Job: 1}, {Job: 2}}, s.Routes[0].Stops)

	sched := ev.Schedule(0, s.Routes[0].Stops)
	require.Equal(t, 0, sched.Violation)
	require.Equal(t, []int{3}, sched.StartLoad)
	require.Equal(t, []int{0}, sched.Stops[2].Load)
	require.Equal(t, 3000.0, sched.Distance)
}

func TestConstructCapacityReason(t *testing.T) {
	ev := linear(t, []float64{0, 1, 2, 3}, []model.Job{
		delivery("j1", 1, 1), delivery("j2", 2, 1), delivery("j3", 3, 1),
	}, []model.Vehicle{truck("v1", 0, 2)})

	s := ev.Construct()
	require.NoError(t, ev.CheckSolution(s))
	require.Len(t, s.Unassigned, 1)
	require.Equal(t, []int{ReasonCapacity}, s.Unassigned[0].Codes)
	require.Equal(t, 2, assignedCount(s))
}

func TestConstructTimeWindowReason(t *testing.T) {
	late := delivery("late", 2, 1)
	// travel to location 2 takes 200s, the window closes at 100s
	late.Tasks[0].Windows = []model.TimeWindow{{Start: 0, End: 100}}
	ev := linear(t, []float64{0, 1, 2}, []model.Job{delivery("ok", 1, 1), late}, []model.Vehicle{truck("v1", 0, 5)})

	s := ev.Construct()
	require.NoError(t, ev.CheckSolution(s))
	require.Len(t, s.Unassigned, 1)
	require.Equal(t, 1, s.Unassigned[0].Job)
	require.Equal(t, []int{ReasonTimeWindow}, s.Unassigned[0].Codes)
}

func TestSoftWindowChargesLateness(t *testing.T) {
	late := delivery("late", 1, 1)
	late.SoftWindows = true
	late.Tasks[0].Windows = []model.TimeWindow{{Start: 0, End: 100}}
	ev := linear(t, []float64{0, 2}, []model.Job{late}, []model.Vehicle{truck("v1", 0, 5)})

	s := ev.Construct()
	require.Empty(t, s.Unassigned)
	sched := ev.Schedule(0, s.Routes[0].Stops)
	require.Equal(t, 100.0, sched.Lateness)
}

func TestConstructSkillReason(t *testing.T) {
	j := delivery("skilled", 1, 1)
	j.Skills = []string{"fridge"}
	ev := linear(t, []float64{0, 1}, []model.Job{j}, []model.Vehicle{truck("v1", 0, 5)})

	s := ev.Construct()
	require.Equal(t, []int{ReasonSkill}, s.Unassigned[0].Codes)

	ev.P.Vehicles[0].Skills = []string{"fridge"}
	s = ev.Construct()
	require.Empty(t, s.Unassigned)
}

func TestConstructUnreachableReason(t *testing.T) {
	p := &model.Problem{
		Jobs:       []model.Job{delivery("far", 1, 1)},
		Vehicles:   []model.Vehicle{truck("v1", 0, 5)},
		Profiles:   []model.Profile{{Name: "car"}},
		Locations:  2,
		Dimensions: 1,
		Weights:    model.DefaultWeights(),
	}
	r, err := matrix.NewExact(p, []matrix.Matrix{{
		Profile: "car", Durations: []int64{0, 5, 5, 0}, Distances: []int64{0, 5, 5, 0}, ErrorCodes: []int64{0, 1, 0, 0},
	}})
	require.NoError(t, err)
	ev := NewEvaluator(p, r)

	s := ev.Construct()
	require.Equal(t, []int{ReasonUnreachable}, s.Unassigned[0].Codes)
}

func TestConstructLimits(t *testing.T) {
	v := truck("v1", 0, 5)
	v.MaxDistance = 1500
	ev := linear(t, []float64{0, 1}, []model.Job{delivery("j", 1, 1)}, []model.Vehicle{v})
	ev.P.Vehicles[0].End = new(model.Location)

	s := ev.Construct()
	require.Equal(t, []int{ReasonMaxDistance}, s.Unassigned[0].Codes)

	ev.P.Vehicles[0].MaxDistance = 0
	ev.P.Vehicles[0].ShiftTime = 150
	s = ev.Construct()
	require.Equal(t, []int{ReasonShiftTime}, s.Unassigned[0].Codes)
}

func TestShipmentPrecedence(t *testing.T) {
	ev := linear(t, []float64{0, 3, 1}, []model.Job{shipment("s", 1, 2, 4)}, []model.Vehicle{truck("v1", 0, 4)})

	s := ev.Construct()
	require.NoError(t, ev.CheckSolution(s))
	require.Equal(t, []Stop{{Job: 0, Task: 0}, {Job: 0, Task: 1}}, s.Routes[0].Stops)

	_, viol := ev.cost(0, []Stop{{Job: 0, Task: 1}, {Job: 0, Task: 0}})
	require.Equal(t, violationPrecedence, viol)

	sched := ev.Schedule(0, s.Routes[0].Stops)
	require.Equal(t, []int{0}, sched.StartLoad)
	require.Equal(t, []int{4}, sched.Stops[0].Load)
	require.Equal(t, []int{0}, sched.Stops[1].Load)
}

func TestWaitingForWindowStart(t *testing.T) {
	j := delivery("j", 1, 1)
	j.Tasks[0].Windows = []model.TimeWindow{{Start: 50, End: 60}, {Start: 500, End: 600}}
	ev := linear(t, []float64{0, 1}, []model.Job{j}, []model.Vehicle{truck("v1", 0, 5)})

	sched := ev.Schedule(0, []Stop{{Job: 0}})
	require.Equal(t, 0, sched.Violation)
	require.Equal(t, 100.0, sched.Stops[0].Arrival)
	require.Equal(t, 500.0, sched.Stops[0].Start)
	require.Equal(t, 400.0, sched.Waiting)
}

func TestShiftEndRespected(t *testing.T) {
	v := truck("v1", 0, 5)
	v.Latest = 150
	end := model.Location(0)
	v.End = &end
	ev := linear(t, []float64{0, 1}, []model.Job{delivery("j", 1, 1)}, []model.Vehicle{v})

	s := ev.Construct()
	require.Equal(t, []int{ReasonTimeWindow}, s.Unassigned[0].Codes)
}

func TestCheckSolutionDetectsCorruption(t *testing.T) {
	ev := linear(t, []float64{0, 1, 2}, []model.Job{delivery("a", 1, 1), delivery("b", 2, 1)}, []model.Vehicle{truck("v1", 0, 5)})
	s := ev.Construct()
	require.NoError(t, ev.CheckSolution(s))

	missing := s.Clone()
	missing.Routes[0].Stops = missing.Routes[0].Stops[:1]
	ev.Evaluate(missing)
	require.Error(t, ev.CheckSolution(missing))

	dup := s.Clone()
	dup.Unassigned = append(dup.Unassigned, Unassigned{Job: 0, Codes: []int{1}})
	ev.Evaluate(dup)
	require.Error(t, ev.CheckSolution(dup))

	stale := s.Clone()
	stale.Cost += 1
	require.Error(t, ev.CheckSolution(stale))
}

func TestCloneIsDeep(t *testing.T) {
	ev := linear(t, []float64{0, 1}, []model.Job{delivery("a", 1, 1)}, []model.Vehicle{truck("v1", 0, 5)})
	s := ev.Construct()
	c := s.Clone()
	c.Routes[0].Stops[0].Job = 42
	require.Equal(t, 0, s.Routes[0].Stops[0].Job)
}
