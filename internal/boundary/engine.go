// Package boundary is the asynchronous surface of the solver: every operation runs on a
// bounded worker pool and resolves exactly one of two continuations exactly once.
package boundary

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"vrpengine/internal/logging"
	"vrpengine/internal/matrix"
	"vrpengine/internal/metrics"
	"vrpengine/internal/progress"
	"vrpengine/internal/store"
	"vrpengine/internal/vrperr"
)

// Operation names used in logs, metrics and telemetry records.
const (
	OpRoutingLocations = "routing_locations"
	OpConvert          = "convert"
	OpSolve            = "solve"
)

// Continuation receives a JSON payload: the result on success, a vrperr payload on error.
type Continuation func(payload string)

// Engine owns the worker pool and the state shared by its calls.
type Engine struct {
	sem          *semaphore.Weighted
	log          logrus.FieldLogger
	broker       progress.Broker
	store        store.Store
	cache        *matrix.Cache
	progressRate float64
	now          func() time.Time

	base context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup

	mu     sync.Mutex
	closed bool
	calls  map[string]*Call
}

// Option configures an Engine.
type Option func(*Engine)

// WithWorkers bounds the number of calls running at once.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.sem = semaphore.NewWeighted(int64(n))
		}
	}
}

func WithLogger(l logrus.FieldLogger) Option { return func(e *Engine) { e.log = l } }

func WithBroker(b progress.Broker) Option { return func(e *Engine) { e.broker = b } }

func WithStore(s store.Store) Option { return func(e *Engine) { e.store = s } }

// WithProgressRate caps progress events per second per solve; zero publishes only the final event.
func WithProgressRate(perSecond float64) Option {
	return func(e *Engine) { e.progressRate = perSecond }
}

// WithCacheSize bounds the approximation cache shared by all solves of the engine.
func WithCacheSize(n int) Option { return func(e *Engine) { e.cache = matrix.NewCache(n) } }

// WithClock replaces time.Now for seeding and durations.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// DefaultWorkers is the pool size when WithWorkers is not given.
const DefaultWorkers = 4

// New creates an engine. It must be released with Close.
func New(opts ...Option) *Engine {
	e := &Engine{
		sem:          semaphore.NewWeighted(DefaultWorkers),
		log:          logging.Discard(),
		broker:       progress.Discard{},
		store:        store.NewMemory(),
		cache:        matrix.NewCache(1 << 16),
		progressRate: 10,
		now:          time.Now,
		calls:        map[string]*Call{},
	}
	for _, o := range opts {
		o(e)
	}
	e.base, e.stop = context.WithCancel(context.Background())
	return e
}

// Close cancels every running call and waits for their continuations. Calls started
// afterwards fail with EngineFault.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()
	e.stop()
	e.wg.Wait()
	return nil
}

// Lookup returns a running call by id.
func (e *Engine) Lookup(id string) (*Call, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.calls[id]
	return c, ok
}

// Store exposes the telemetry store.
func (e *Engine) Store() store.Store { return e.store }

// Broker exposes the progress broker.
func (e *Engine) Broker() progress.Broker { return e.broker }

// Call is a handle to one asynchronous operation.
type Call struct {
	ID       string
	Op       string
	future   *Future
	cancel   context.CancelFunc
	finished chan struct{}
}

// Cancel requests cooperative cancellation. A solve that already has a solution
// still succeeds with the best one found.
func (c *Call) Cancel() { c.cancel() }

// Wait blocks until the continuation has returned.
func (c *Call) Wait() { <-c.finished }

// Done is closed when the continuation has returned.
func (c *Call) Done() <-chan struct{} { return c.finished }

// Future returns the call result independent of continuations.
func (c *Call) Future() *Future { return c.future }

// work is the body of a call; it may fill telemetry fields of rec.
type work func(ctx context.Context, rec *store.SolveRecord, log logrus.FieldLogger) ([]byte, error)

type meta struct {
	id          string
	callbackURL string
}

func (e *Engine) start(op string, m meta, fn work, onSuccess, onError Continuation) *Call {
	ctx, cancel := context.WithCancel(e.base)
	if m.id == "" {
		m.id = uuid.NewString()
	}
	call := &Call{ID: m.id, Op: op, future: newFuture(), cancel: cancel, finished: make(chan struct{})}

	e.mu.Lock()
	closed := e.closed
	if !closed {
		e.calls[call.ID] = call
		e.wg.Add(1)
	}
	e.mu.Unlock()

	if closed {
		cancel()
		go func() {
			err := vrperr.New(vrperr.EngineFault, "engine is closed")
			call.future.resolve(nil, err)
			e.continueWith(e.log, nil, err, onSuccess, onError)
			close(call.finished)
		}()
		return call
	}
	go e.run(ctx, call, m, fn, onSuccess, onError)
	return call
}

func (e *Engine) run(ctx context.Context, call *Call, m meta, fn work, onSuccess, onError Continuation) {
	defer e.wg.Done()
	defer call.cancel()
	log := e.log.WithFields(logrus.Fields{"solve_id": call.ID, "op": call.Op})

	started := e.now()
	rec := store.SolveRecord{ID: call.ID, Op: call.Op, Status: store.StatusRunning, CallbackURL: m.callbackURL, CreatedAt: started.UTC()}
	if err := e.store.CreateSolve(context.Background(), rec); err != nil {
		log.WithError(err).Warn("cannot record call")
	}
	log.Debug("call started")

	payload, err := e.execute(ctx, &rec, log, fn)

	finished := e.now().UTC()
	rec.DurationMs = finished.Sub(started).Milliseconds()
	rec.FinishedAt = &finished
	outcome := "success"
	if err != nil {
		ve := vrperr.From(err)
		err = ve
		outcome = string(ve.Kind)
		rec.Status = store.StatusFailed
		if ve.Kind == vrperr.Cancelled {
			rec.Status = store.StatusCancelled
		}
		rec.ErrorKind, rec.ErrorMessage = string(ve.Kind), ve.Message
		log.WithError(err).Info("call failed")
	} else {
		rec.Status = store.StatusSucceeded
		log.WithFields(logrus.Fields{"duration_ms": rec.DurationMs, "state": rec.State}).Info("call succeeded")
	}
	if serr := e.store.FinishSolve(context.Background(), rec); serr != nil {
		log.WithError(serr).Warn("cannot record call result")
	}
	metrics.Calls.WithLabelValues(call.Op, outcome).Inc()
	if call.Op == OpSolve {
		e.broker.Publish(call.ID, progress.Event{
			Type: progress.TypeFinished, SolveID: call.ID, Generation: rec.Generations,
			BestCost: rec.BestCost, State: rec.Status,
		})
	}

	e.mu.Lock()
	delete(e.calls, call.ID)
	e.mu.Unlock()

	call.future.resolve(payload, err)
	e.continueWith(log, payload, err, onSuccess, onError)
	close(call.finished)
}

// execute holds a worker slot for fn and turns a panic into an EngineFault.
func (e *Engine) execute(ctx context.Context, rec *store.SolveRecord, log logrus.FieldLogger, fn work) (payload []byte, err error) {
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return nil, vrperr.New(vrperr.Cancelled, "call cancelled while waiting for a worker")
	}
	defer e.sem.Release(1)
	metrics.InFlight.Inc()
	defer metrics.InFlight.Dec()

	defer func() {
		if r := recover(); r != nil {
			log.WithField("stack", string(debug.Stack())).Error("call panicked")
			payload, err = nil, vrperr.New(vrperr.EngineFault, fmt.Sprintf("internal failure: %v", r))
		}
	}()
	return fn(ctx, rec, log)
}

func (e *Engine) continueWith(log logrus.FieldLogger, payload []byte, err error, onSuccess, onError Continuation) {
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("continuation panicked")
		}
	}()
	if err != nil {
		if onError != nil {
			onError(vrperr.From(err).JSON())
		}
		return
	}
	if onSuccess != nil {
		onSuccess(string(payload))
	}
}
