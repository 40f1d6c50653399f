package boundary

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"vrpengine/internal/convert"
	"vrpengine/internal/matrix"
	"vrpengine/internal/metrics"
	"vrpengine/internal/opt"
	"vrpengine/internal/pragmatic"
	"vrpengine/internal/progress"
	"vrpengine/internal/report"
	"vrpengine/internal/store"
	"vrpengine/internal/vrperr"
)

// GetRoutingLocations resolves with the JSON list of {index, location, profile} a caller
// needs to build routing matrices for problem.
func (e *Engine) GetRoutingLocations(problem string, onSuccess, onError Continuation) *Call {
	return e.start(OpRoutingLocations, meta{}, func(_ context.Context, _ *store.SolveRecord, _ logrus.FieldLogger) ([]byte, error) {
		locs, err := pragmatic.RoutingLocations([]byte(problem))
		if err != nil {
			return nil, err
		}
		return marshal(locs)
	}, onSuccess, onError)
}

// ConvertToPragmatic resolves with canonical problem JSON converted from format.
func (e *Engine) ConvertToPragmatic(format string, inputs []string, onSuccess, onError Continuation) *Call {
	return e.start(OpConvert, meta{}, func(_ context.Context, _ *store.SolveRecord, _ logrus.FieldLogger) ([]byte, error) {
		return convert.ToPragmatic(format, toBytes(inputs))
	}, onSuccess, onError)
}

// SolveRequest is the input of Solve.
type SolveRequest struct {
	// ID names the call; empty assigns a random uuid. Hosts set it when continuations
	// need the id before Solve returns.
	ID       string
	Problem  string
	Matrices []string
	Config   string
	GeoJSON  bool
	// CallbackURL is only recorded; delivering to it is up to the continuations.
	CallbackURL string
}

// SolvePragmatic resolves with the solution JSON of problem.
func (e *Engine) SolvePragmatic(problem string, matrices []string, config string, geojson bool, onSuccess, onError Continuation) *Call {
	return e.Solve(SolveRequest{Problem: problem, Matrices: matrices, Config: config, GeoJSON: geojson}, onSuccess, onError)
}

// Solve is SolvePragmatic with request metadata.
func (e *Engine) Solve(req SolveRequest, onSuccess, onError Continuation) *Call {
	return e.start(OpSolve, meta{id: req.ID, callbackURL: req.CallbackURL}, func(ctx context.Context, rec *store.SolveRecord, log logrus.FieldLogger) ([]byte, error) {
		return e.solve(ctx, req, rec, log)
	}, onSuccess, onError)
}

func (e *Engine) solve(ctx context.Context, req SolveRequest, rec *store.SolveRecord, log logrus.FieldLogger) ([]byte, error) {
	started := time.Now()
	cfg, err := ParseConfig(req.Config)
	if err != nil {
		return nil, err
	}
	p, ms, err := pragmatic.Read([]byte(req.Problem), toBytes(req.Matrices))
	if err != nil {
		return nil, err
	}
	cfg.apply(p)

	var r *matrix.Resolver
	if len(ms) > 0 {
		if r, err = matrix.NewExact(p, ms); err != nil {
			return nil, err
		}
	} else {
		r = matrix.NewApproximate(p, e.cache)
	}
	if ctx.Err() != nil {
		return nil, vrperr.New(vrperr.Cancelled, "solve cancelled before a solution existed")
	}
	log.WithFields(logrus.Fields{"jobs": len(p.Jobs), "vehicles": len(p.Vehicles), "approximated": r.Approximated()}).Debug("problem accepted")

	// max_time covers construction as well as the search
	ec := cfg.engineConfig(e.now)
	ec.Started = started
	ec.Log = log
	ec.Observer = e.observer(rec.ID)

	ev := opt.NewEvaluator(p, r)
	initial := ev.ConstructUntil(opt.Budget(ctx, started, ec.MaxTime, nil))
	if ctx.Err() != nil {
		return nil, vrperr.New(vrperr.Cancelled, "solve cancelled while building the initial solution")
	}

	best, tel, err := opt.NewEngine(ev, ec).Run(ctx, initial)
	if err != nil {
		return nil, vrperr.New(vrperr.EngineFault, err.Error())
	}

	rec.State = tel.State.String()
	rec.Generations = tel.Generations
	rec.Improvements = tel.Improvements
	rec.Faults = tel.Faults
	rec.InitialCost = tel.InitialCost
	rec.BestCost = tel.BestCost
	rec.Unassigned = len(best.Unassigned)
	for _, route := range best.Routes {
		if len(route.Stops) > 0 {
			rec.Tours++
		}
	}
	metrics.SolveDuration.WithLabelValues(rec.State).Observe(tel.Elapsed.Seconds())
	metrics.EngineFaults.Add(float64(tel.Faults))
	metrics.Unassigned.Observe(float64(rec.Unassigned))

	return report.Write(ev, best, tel, report.Options{GeoJSON: req.GeoJSON})
}

// observer publishes throttled progress. The limiter reads the wall clock between
// generations only, so it never influences the search.
func (e *Engine) observer(solveID string) opt.Observer {
	var lim *rate.Limiter
	if e.progressRate > 0 {
		lim = rate.NewLimiter(rate.Limit(e.progressRate), 1)
	}
	return func(p opt.Progress) {
		metrics.Generations.Inc()
		if lim == nil || !lim.Allow() {
			return
		}
		e.broker.Publish(solveID, progress.Event{
			Type: progress.TypeProgress, SolveID: solveID, Generation: p.Generation,
			BestCost: p.BestCost, CurrentCost: p.CurrentCost, State: p.State,
		})
	}
}

func toBytes(in []string) [][]byte {
	out := make([][]byte, len(in))
	for i, s := range in {
		out[i] = []byte(s)
	}
	return out
}

func marshal(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, vrperr.New(vrperr.Serialization, "cannot serialize result",
			vrperr.D("E0003", err.Error(), "report the input that produced this result"))
	}
	return b, nil
}
