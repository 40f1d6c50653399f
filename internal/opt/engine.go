package opt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"
)

// State is the lifecycle of one search.
type State int

const (
	Idle State = iota
	Running
	Converged
	BudgetExhausted
	Cancelled
	Reporting
)

func (s State) String() string {
	switch s {
	case Running:
		return "Running"
	case Converged:
		return "Converged"
	case BudgetExhausted:
		return "BudgetExhausted"
	case Cancelled:
		return "Cancelled"
	case Reporting:
		return "Reporting"
	default:
		return "Idle"
	}
}

// Progress is published after every generation.
type Progress struct {
	Generation  int     `json:"generation"`
	BestCost    float64 `json:"bestCost"`
	CurrentCost float64 `json:"currentCost"`
	State       string  `json:"state"`
}

// Observer receives progress from the search goroutine; it must not block for long.
type Observer func(Progress)

// OperatorStats tracks one adaptive operator.
type OperatorStats struct {
	Selected int     `json:"selected"`
	Improved int     `json:"improved"`
	Weight   float64 `json:"weight"`
}

// Telemetry summarizes a finished search.
type Telemetry struct {
	Generations   int
	Improvements  int
	AcceptedWorse int
	Faults        int
	State         State
	InitialCost   float64
	BestCost      float64
	Operators     map[string]OperatorStats
	Elapsed       time.Duration
}

// DefaultGenerations applies when neither a generation nor a time budget is set.
const DefaultGenerations = 3000

// Config controls the search.
type Config struct {
	MaxGenerations int
	MaxTime        time.Duration
	Seed           int64
	Acceptance     Acceptance
	// VariationSample generations whose best cost has a coefficient of variation below
	// VariationCV end the search as converged. Zero disables the check.
	VariationSample int
	VariationCV     float64
	Observer        Observer
	Log             logrus.FieldLogger
	// Now is read between generations and between insertions; defaults to time.Now.
	Now func() time.Time
	// Started anchors MaxTime when the caller already spent part of the budget, for
	// instance on construction. Zero means the start of Run.
	Started time.Time
}

// ErrInvalidInitial is returned by Run when the initial solution breaks an invariant.
var ErrInvalidInitial = errors.New("initial solution failed verification")

// Engine improves a solution by adaptive ruin and recreate with local moves.
type Engine struct {
	ev    *Evaluator
	cfg   Config
	rng   *rand.Rand
	state State

	ruinW   []float64
	createW []float64
	localW  []float64
	stats   map[string]OperatorStats
}

var recreates = []struct {
	name string
	fn   func(ev *Evaluator, s *Solution, pending []int, halt Halt)
}{
	{"cheapest", (*Evaluator).recreateCheapest},
	{"regret", (*Evaluator).recreateRegret},
}

// NewEngine prepares a search. The random source is seeded from cfg.Seed only.
func NewEngine(ev *Evaluator, cfg Config) *Engine {
	if cfg.MaxGenerations <= 0 && cfg.MaxTime <= 0 {
		cfg.MaxGenerations = DefaultGenerations
	}
	if cfg.Acceptance == nil {
		cfg.Acceptance = NewAnnealing(0, 0)
	}
	if cfg.Log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		cfg.Log = l
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	e := &Engine{
		ev:      ev,
		cfg:     cfg,
		rng:     rand.New(rand.NewSource(cfg.Seed)),
		ruinW:   ones(len(ruins)),
		createW: ones(len(recreates)),
		localW:  ones(len(locals)),
		stats:   map[string]OperatorStats{},
	}
	return e
}

func ones(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 1
	}
	return w
}

// State returns the lifecycle state. After Run it is Reporting; Telemetry.State holds
// the reason the search stopped.
func (e *Engine) State() State { return e.state }

// Run searches from initial until a budget, convergence or cancellation stops it and
// returns the best solution seen. Budgets and ctx are polled between generations and
// between the insertions of a generation. An initial solution that fails
// verification is never searched from nor returned.
func (e *Engine) Run(ctx context.Context, initial *Solution) (*Solution, Telemetry, error) {
	log := e.cfg.Log
	tel := Telemetry{InitialCost: initial.Cost}
	if err := e.ev.CheckSolution(initial); err != nil {
		tel.Faults++
		log.WithError(err).Error("initial solution failed verification")
		return nil, tel, fmt.Errorf("%w: %v", ErrInvalidInitial, err)
	}

	e.state = Running
	started := e.cfg.Started
	if started.IsZero() {
		started = e.cfg.Now()
	}
	halt := Budget(ctx, started, e.cfg.MaxTime, e.cfg.Now)
	current, best := initial, initial
	var history []float64

	for {
		if ctx.Err() != nil {
			e.state = Cancelled
			break
		}
		if e.cfg.MaxGenerations > 0 && tel.Generations >= e.cfg.MaxGenerations {
			e.state = BudgetExhausted
			break
		}
		if e.cfg.MaxTime > 0 && e.cfg.Now().Sub(started) >= e.cfg.MaxTime {
			e.state = BudgetExhausted
			break
		}
		if e.converged(history) {
			e.state = Converged
			break
		}

		tel.Generations++
		cand, ops, err := e.generation(current, halt)
		if err == nil {
			err = e.ev.CheckSolution(cand)
		}
		if err != nil {
			tel.Faults++
			log.WithError(err).WithField("generation", tel.Generations).Warn("candidate discarded")
			e.penalize(ops)
		} else if cand.Cost < best.Cost-eps || e.cfg.Acceptance.Accept(cand.Cost, current.Cost, best.Cost, e.rng) {
			if cand.Cost < best.Cost-eps {
				best = cand
				tel.Improvements++
				e.reward(ops, 0.1, true)
			} else {
				if cand.Cost > current.Cost+eps {
					tel.AcceptedWorse++
				}
				e.reward(ops, 0.01, false)
			}
			current = cand
		} else {
			e.penalize(ops)
		}
		e.cfg.Acceptance.Step()

		history = append(history, best.Cost)
		if n := e.cfg.VariationSample; n > 0 && len(history) > 2*n {
			history = append(history[:0], history[len(history)-n:]...)
		}
		if e.cfg.Observer != nil {
			e.cfg.Observer(Progress{Generation: tel.Generations, BestCost: best.Cost, CurrentCost: current.Cost, State: Running.String()})
		}
	}

	tel.State = e.state
	tel.BestCost = best.Cost
	tel.Elapsed = e.cfg.Now().Sub(started)
	tel.Operators = e.operatorStats()
	log.WithFields(logrus.Fields{
		"generations":  tel.Generations,
		"improvements": tel.Improvements,
		"faults":       tel.Faults,
		"state":        tel.State.String(),
		"best_cost":    tel.BestCost,
	}).Info("search finished")
	e.state = Reporting
	return best, tel, nil
}

// generation produces one candidate from a clone of current. A panic inside a move
// is returned as an error so the candidate is discarded.
func (e *Engine) generation(current *Solution, halt Halt) (cand *Solution, ops [3]int, err error) {
	ops = [3]int{-1, -1, -1}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("move panicked: %v", r)
		}
	}()
	cand = current.Clone()
	ops[0] = selectOp(e.ruinW, e.rng)
	ops[1] = selectOp(e.createW, e.rng)
	ops[2] = selectOp(e.localW, e.rng)
	e.count(ruins[ops[0]].name)
	e.count(recreates[ops[1]].name)
	e.count(locals[ops[2]].name)

	k := ruinSize(len(cand.Assigned()), e.rng)
	removed := ruins[ops[0]].fn(e.ev, cand, k, e.rng)
	recreates[ops[1]].fn(e.ev, cand, pendingJobs(cand, removed), halt)
	locals[ops[2]].fn(e.ev, cand, e.rng)
	e.ev.total(cand)
	return cand, ops, nil
}

// pendingJobs merges removed jobs with the unassigned ones, sorted and unique.
func pendingJobs(s *Solution, removed []int) []int {
	seen := map[int]bool{}
	var out []int
	for _, j := range removed {
		if !seen[j] {
			seen[j] = true
			out = append(out, j)
		}
	}
	for _, u := range s.Unassigned {
		if !seen[u.Job] {
			seen[u.Job] = true
			out = append(out, u.Job)
		}
	}
	sort.Ints(out)
	return out
}

func (e *Engine) converged(history []float64) bool {
	n := e.cfg.VariationSample
	if n < 2 || e.cfg.VariationCV <= 0 || len(history) < n {
		return false
	}
	window := history[len(history)-n:]
	mean := stat.Mean(window, nil)
	if mean == 0 {
		return true
	}
	return stat.StdDev(window, nil)/math.Abs(mean) < e.cfg.VariationCV
}

func (e *Engine) count(name string) {
	st := e.stats[name]
	st.Selected++
	e.stats[name] = st
}

func (e *Engine) reward(ops [3]int, by float64, improved bool) {
	for i, w := range [][]float64{e.ruinW, e.createW, e.localW} {
		if ops[i] < 0 {
			continue
		}
		w[ops[i]] += by
		if improved {
			name := e.opName(i, ops[i])
			st := e.stats[name]
			st.Improved++
			e.stats[name] = st
		}
	}
}

func (e *Engine) penalize(ops [3]int) {
	for i, w := range [][]float64{e.ruinW, e.createW, e.localW} {
		if ops[i] >= 0 {
			w[ops[i]] = math.Max(0.01, w[ops[i]]*0.999)
		}
	}
}

func (e *Engine) opName(group, idx int) string {
	switch group {
	case 0:
		return ruins[idx].name
	case 1:
		return recreates[idx].name
	default:
		return locals[idx].name
	}
}

func (e *Engine) operatorStats() map[string]OperatorStats {
	out := map[string]OperatorStats{}
	for g, w := range [][]float64{e.ruinW, e.createW, e.localW} {
		for i := range w {
			name := e.opName(g, i)
			st := e.stats[name]
			st.Weight = w[i]
			out[name] = st
		}
	}
	return out
}

// selectOp spins the roulette wheel over weights.
func selectOp(weights []float64, rng *rand.Rand) int {
	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	if sum <= 0 {
		return 0
	}
	r := rng.Float64() * sum
	acc := 0.0
	for i, w := range weights {
		acc += w
		if r <= acc {
			return i
		}
	}
	return len(weights) - 1
}
