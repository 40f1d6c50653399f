package boundary

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"vrpengine/internal/opt"
	"vrpengine/internal/progress"
	"vrpengine/internal/report"
	"vrpengine/internal/store"
	"vrpengine/internal/vrperr"
)

const oneJob = `{
  "plan": {"jobs": [
    {"id": "job1", "deliveries": [{"places": [{"location": {"lat": 52.52, "lng": 13.40}, "duration": 300,
      "times": [["2024-01-01T08:00:00Z", "2024-01-01T12:00:00Z"]]}], "demand": [1]}]}
  ]},
  "fleet": {
    "vehicles": [{"typeId": "van", "vehicleIds": ["van_1"], "profile": {"matrix": "car"},
      "costs": {"fixed": 10, "distance": 0.001, "time": 0.002},
      "shifts": [{"start": {"earliest": "2024-01-01T08:00:00Z", "location": {"lat": 52.50, "lng": 13.38}}}],
      "capacity": [5]}],
    "profiles": [{"name": "car"}]
  }
}`

const tooHeavy = `{
  "plan": {"jobs": [
    {"id": "ok", "deliveries": [{"places": [{"location": {"lat": 52.52, "lng": 13.40}, "duration": 60}], "demand": [2]}]},
    {"id": "heavy", "deliveries": [{"places": [{"location": {"lat": 52.53, "lng": 13.41}, "duration": 60}], "demand": [99]}]}
  ]},
  "fleet": {
    "vehicles": [{"typeId": "van", "vehicleIds": ["van_1", "van_2"], "profile": {"matrix": "car"},
      "costs": {"distance": 0.001, "time": 0.002},
      "shifts": [{"start": {"earliest": "2024-01-01T08:00:00Z", "location": {"lat": 52.50, "lng": 13.38}}}],
      "capacity": [10]}],
    "profiles": [{"name": "car"}]
  }
}`

// indexed references matrix slots 0..2
const indexed = `{
  "plan": {"jobs": [
    {"id": "a", "services": [{"places": [{"location": {"index": 1}, "duration": 10}]}]},
    {"id": "b", "services": [{"places": [{"location": {"index": 2}, "duration": 10}]}]}
  ]},
  "fleet": {
    "vehicles": [{"typeId": "t", "vehicleIds": ["v"], "profile": {"matrix": "car"}, "costs": {"distance": 1, "time": 1},
      "shifts": [{"start": {"earliest": "2024-01-01T00:00:00Z", "location": {"index": 0}}}], "capacity": [1]}],
    "profiles": [{"name": "car"}]
  }
}`

type outcome struct {
	mu       sync.Mutex
	success  []string
	failures []string
}

func (o *outcome) onSuccess(p string) { o.mu.Lock(); o.success = append(o.success, p); o.mu.Unlock() }
func (o *outcome) onError(p string)   { o.mu.Lock(); o.failures = append(o.failures, p); o.mu.Unlock() }

func (o *outcome) solution(t *testing.T) report.Solution {
	t.Helper()
	require.Len(t, o.failures, 0, "unexpected error: %v", o.failures)
	require.Len(t, o.success, 1)
	var s report.Solution
	require.NoError(t, json.Unmarshal([]byte(o.success[0]), &s))
	return s
}

func (o *outcome) failure(t *testing.T) vrperr.Error {
	t.Helper()
	require.Len(t, o.success, 0)
	require.Len(t, o.failures, 1)
	var e vrperr.Error
	require.NoError(t, json.Unmarshal([]byte(o.failures[0]), &e))
	return e
}

func newEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	e := New(opts...)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestSolveSingleJob(t *testing.T) {
	e := newEngine(t)
	var o outcome
	e.SolvePragmatic(oneJob, nil, `{"max_generations": 20, "seed": 1}`, false, o.onSuccess, o.onError).Wait()

	s := o.solution(t)
	require.Len(t, s.Tours, 1)
	require.Empty(t, s.Unassigned)
	stops := s.Tours[0].Stops
	// departure plus the job; the shift has no end location
	require.Len(t, stops, 2)
	require.Equal(t, "job1", stops[1].Activities[0].JobID)
}

// manyJobs spreads n single deliveries over a small area served by two vans.
func manyJobs(n int) string {
	var b strings.Builder
	b.WriteString(`{"plan": {"jobs": [`)
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, `{"id": "job%03d", "deliveries": [{"places": [{"location": {"lat": %.5f, "lng": %.5f}, "duration": 60}], "demand": [1]}]}`,
			i, 52.40+float64(i%17)*0.01, 13.30+float64(i%23)*0.01)
	}
	b.WriteString(`]}, "fleet": {"vehicles": [{"typeId": "van", "vehicleIds": ["van_1", "van_2"], "profile": {"matrix": "car"},
	  "costs": {"distance": 0.001, "time": 0.002},
	  "shifts": [{"start": {"earliest": "2024-01-01T06:00:00Z", "location": {"lat": 52.50, "lng": 13.38}}}],
	  "capacity": [1000]}], "profiles": [{"name": "car"}]}}`)
	return b.String()
}

func TestSolveMaxTimeCoversConstruction(t *testing.T) {
	e := newEngine(t)
	var o outcome
	started := time.Now()
	e.SolvePragmatic(manyJobs(300), nil, `{"max_time": 0.5, "seed": 1}`, false, o.onSuccess, o.onError).Wait()
	elapsed := time.Since(started)

	s := o.solution(t)
	require.Empty(t, s.Unassigned)
	require.Equal(t, "BudgetExhausted", s.Extras.Metrics.State)
	require.Less(t, elapsed, 2*time.Second)
}

func TestCancelDuringConstructionIsCancelledError(t *testing.T) {
	e := newEngine(t)
	var o outcome
	call := e.SolvePragmatic(manyJobs(400), nil, `{"max_time": 30, "seed": 1}`, false, o.onSuccess, o.onError)
	call.Cancel()
	call.Wait()

	require.Equal(t, vrperr.Cancelled, o.failure(t).Kind)
}

func TestSolveOverCapacityIsNotAnError(t *testing.T) {
	e := newEngine(t)
	var o outcome
	e.SolvePragmatic(tooHeavy, nil, `{"max_generations": 20, "seed": 1}`, false, o.onSuccess, o.onError).Wait()

	s := o.solution(t)
	require.Len(t, s.Unassigned, 1)
	require.Equal(t, "heavy", s.Unassigned[0].JobID)
	require.Equal(t, opt.ReasonCapacity, s.Unassigned[0].Reasons[0].Code)
	require.Len(t, s.Tours, 1)
}

func TestSolveMatrixMissingEntry(t *testing.T) {
	e := newEngine(t)
	var o outcome
	small := `{"profile": "car", "travelTimes": [0, 5, 5, 0], "distances": [0, 50, 50, 0]}`
	e.SolvePragmatic(indexed, []string{small}, "", false, o.onSuccess, o.onError).Wait()

	err := o.failure(t)
	require.Equal(t, vrperr.MatrixMissing, err.Kind)
	require.Equal(t, "E1511", err.Details[0].Code)
}

func TestSolveWithExactMatrix(t *testing.T) {
	e := newEngine(t)
	var o outcome
	m := `{"profile": "car", "travelTimes": [0,5,7, 5,0,3, 7,3,0], "distances": [0,50,70, 50,0,30, 70,30,0]}`
	e.SolvePragmatic(indexed, []string{m}, `{"max_generations": 10, "seed": 4}`, false, o.onSuccess, o.onError).Wait()

	s := o.solution(t)
	require.Empty(t, s.Unassigned)
	require.Equal(t, int64(80), s.Statistic.Distance)
}

func TestSolveValidationErrors(t *testing.T) {
	e := newEngine(t)

	var bad outcome
	e.SolvePragmatic(`{"plan": {"jobs": []}, "fleet": {"vehicles": [], "profiles": []}}`, nil, "", false, bad.onSuccess, bad.onError).Wait()
	require.Equal(t, vrperr.Validation, bad.failure(t).Kind)

	var cfg outcome
	e.SolvePragmatic(oneJob, nil, `{"max_iterations": 5}`, false, cfg.onSuccess, cfg.onError).Wait()
	err := cfg.failure(t)
	require.Equal(t, vrperr.Validation, err.Kind)
	require.Equal(t, "E0004", err.Details[0].Code)
}

func TestSolveIsDeterministicForSeed(t *testing.T) {
	e := newEngine(t, WithWorkers(2))
	cfg := `{"max_generations": 50, "seed": 42}`
	var a, b outcome
	ca := e.SolvePragmatic(tooHeavy, nil, cfg, true, a.onSuccess, a.onError)
	cb := e.SolvePragmatic(tooHeavy, nil, cfg, true, b.onSuccess, b.onError)
	ca.Wait()
	cb.Wait()
	require.Len(t, a.success, 1)
	require.Len(t, b.success, 1)
	require.Equal(t, a.success[0], b.success[0])
}

func TestCancelMidSolveReturnsBestSoFar(t *testing.T) {
	broker := progress.NewMemory()
	e := newEngine(t, WithBroker(broker), WithProgressRate(0))
	var o outcome
	call := e.SolvePragmatic(tooHeavy, nil, `{"max_generations": 100000000, "seed": 3}`, false, o.onSuccess, o.onError)
	// let the search start before cancelling
	time.Sleep(50 * time.Millisecond)
	call.Cancel()
	call.Wait()

	s := o.solution(t)
	require.Equal(t, "Cancelled", s.Extras.Metrics.State)
	require.Len(t, s.Tours, 1)
	require.Len(t, s.Unassigned, 1)

	rec, err := e.Store().GetSolve(context.Background(), call.ID)
	require.NoError(t, err)
	require.Equal(t, store.StatusSucceeded, rec.Status)
	require.Equal(t, "Cancelled", rec.State)
}

func TestCancelWhileQueuedIsCancelledError(t *testing.T) {
	e := newEngine(t, WithWorkers(1))
	var first, second outcome
	long := e.SolvePragmatic(tooHeavy, nil, `{"max_generations": 100000000, "seed": 1}`, false, first.onSuccess, first.onError)
	time.Sleep(20 * time.Millisecond)
	queued := e.SolvePragmatic(oneJob, nil, `{"max_generations": 5}`, false, second.onSuccess, second.onError)
	queued.Cancel()
	queued.Wait()
	require.Equal(t, vrperr.Cancelled, second.failure(t).Kind)

	long.Cancel()
	long.Wait()
	require.Len(t, first.success, 1)
}

func TestExactlyOneContinuation(t *testing.T) {
	e := newEngine(t, WithWorkers(3))
	var successes, failures atomic.Int32
	var calls []*Call
	for i := 0; i < 6; i++ {
		problem := oneJob
		if i%2 == 1 {
			problem = "{not json"
		}
		calls = append(calls, e.SolvePragmatic(problem, nil, `{"max_generations": 5, "seed": 1}`, false,
			func(string) { successes.Add(1) }, func(string) { failures.Add(1) }))
	}
	for _, c := range calls {
		c.Wait()
	}
	require.Equal(t, int32(3), successes.Load())
	require.Equal(t, int32(3), failures.Load())
}

func TestFutureAwait(t *testing.T) {
	e := newEngine(t)
	call := e.SolvePragmatic(oneJob, nil, `{"max_generations": 5, "seed": 1}`, false, nil, nil)
	payload, err := call.Future().Await(context.Background())
	require.NoError(t, err)
	require.Contains(t, string(payload), `"tours"`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	never := newFuture()
	_, err = never.Await(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestPanickingWorkIsEngineFault(t *testing.T) {
	e := newEngine(t)
	var o outcome
	e.start("boom", meta{}, func(context.Context, *store.SolveRecord, logrus.FieldLogger) ([]byte, error) {
		panic("kaboom")
	}, o.onSuccess, o.onError).Wait()
	err := o.failure(t)
	require.Equal(t, vrperr.EngineFault, err.Kind)
	require.Contains(t, err.Message, "kaboom")
}

func TestPanickingContinuationIsContained(t *testing.T) {
	e := newEngine(t)
	call := e.GetRoutingLocations(oneJob, func(string) { panic("caller bug") }, nil)
	call.Wait()
	payload, err := call.Future().Await(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, payload)
}

func TestClosedEngineRejectsCalls(t *testing.T) {
	e := New()
	require.NoError(t, e.Close())
	require.NoError(t, e.Close())
	var o outcome
	e.GetRoutingLocations(oneJob, o.onSuccess, o.onError).Wait()
	require.Equal(t, vrperr.EngineFault, o.failure(t).Kind)
}

func TestGetRoutingLocations(t *testing.T) {
	e := newEngine(t)
	var o outcome
	e.GetRoutingLocations(oneJob, o.onSuccess, o.onError).Wait()
	require.Len(t, o.success, 1)
	var locs []struct {
		Index    int    `json:"index"`
		Profile  string `json:"profile"`
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
	}
	require.NoError(t, json.Unmarshal([]byte(o.success[0]), &locs))
	require.Len(t, locs, 2)
	require.Equal(t, 0, locs[0].Index)
	require.Equal(t, 52.52, locs[0].Location.Lat)
	require.Equal(t, "car", locs[1].Profile)
}

func TestConvertToPragmatic(t *testing.T) {
	e := newEngine(t)
	var o outcome
	e.ConvertToPragmatic("unknown", []string{"x"}, o.onSuccess, o.onError).Wait()
	err := o.failure(t)
	require.Equal(t, vrperr.Validation, err.Kind)
	require.Equal(t, "E0005", err.Details[0].Code)

	var ok outcome
	e.ConvertToPragmatic("pragmatic", []string{oneJob}, ok.onSuccess, ok.onError).Wait()
	require.Len(t, ok.success, 1)
	require.Contains(t, ok.success[0], `"typeId": "van"`)
}

// recordingBroker logs published event types in order.
type recordingBroker struct {
	progress.Discard
	mu  sync.Mutex
	log []string
}

func (b *recordingBroker) Publish(_ string, evt progress.Event) { b.add(evt.Type) }

func (b *recordingBroker) add(s string) {
	b.mu.Lock()
	b.log = append(b.log, s)
	b.mu.Unlock()
}

func TestProgressIsPublishedBeforeContinuation(t *testing.T) {
	b := &recordingBroker{}
	e := newEngine(t, WithBroker(b), WithProgressRate(1e6))
	e.SolvePragmatic(oneJob, nil, `{"max_generations": 5, "seed": 1}`, false,
		func(string) { b.add("continuation") }, nil).Wait()

	b.mu.Lock()
	defer b.mu.Unlock()
	n := len(b.log)
	require.GreaterOrEqual(t, n, 3)
	require.Equal(t, progress.TypeProgress, b.log[0])
	require.Equal(t, []string{progress.TypeFinished, "continuation"}, b.log[n-2:])
}
