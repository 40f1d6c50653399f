package opt

import (
	"fmt"
	"math"
	"math/rand"
)

// Acceptance decides whether a candidate replaces the current solution.
type Acceptance interface {
	Accept(candidate, current, best float64, rng *rand.Rand) bool
	// Step advances the acceptance schedule once per generation.
	Step()
	Name() string
}

// Greedy accepts strict improvements over the current solution only.
type Greedy struct{}

func (Greedy) Accept(candidate, current, _ float64, _ *rand.Rand) bool {
	return candidate < current-eps
}
func (Greedy) Step()        {}
func (Greedy) Name() string { return "greedy" }

// Annealing is simulated annealing with geometric cooling. Deltas are relative to the
// current cost so the temperature does not depend on the cost scale.
type Annealing struct {
	Temperature float64
	Cooling     float64
}

// NewAnnealing returns annealing with defaults for non-positive arguments.
func NewAnnealing(initial, cooling float64) *Annealing {
	if initial <= 0 {
		initial = 0.05
	}
	if cooling <= 0 || cooling >= 1 {
		cooling = 0.995
	}
	return &Annealing{Temperature: initial, Cooling: cooling}
}

func (a *Annealing) Accept(candidate, current, _ float64, rng *rand.Rand) bool {
	if candidate < current {
		return true
	}
	delta := (candidate - current) / math.Max(math.Abs(current), 1)
	return rng.Float64() < math.Exp(-delta/(a.Temperature+1e-12))
}
func (a *Annealing) Step()        { a.Temperature *= a.Cooling }
func (a *Annealing) Name() string { return "annealing" }

// Threshold is record-to-record travel: accept anything within a decaying relative
// tolerance of the best known cost.
type Threshold struct {
	Tolerance float64
	Decay     float64
}

// NewThreshold returns a threshold acceptance with defaults for non-positive arguments.
func NewThreshold(tolerance, decay float64) *Threshold {
	if tolerance <= 0 {
		tolerance = 0.02
	}
	if decay <= 0 || decay >= 1 {
		decay = 0.995
	}
	return &Threshold{Tolerance: tolerance, Decay: decay}
}

func (t *Threshold) Accept(candidate, current, best float64, _ *rand.Rand) bool {
	return candidate < current || candidate <= best+math.Abs(best)*t.Tolerance
}
func (t *Threshold) Step()        { t.Tolerance *= t.Decay }
func (t *Threshold) Name() string { return "threshold" }

// NewAcceptance builds an acceptance by name; empty selects annealing.
func NewAcceptance(kind string, initialTemperature, cooling, tolerance float64) (Acceptance, error) {
	switch kind {
	case "", "annealing":
		return NewAnnealing(initialTemperature, cooling), nil
	case "greedy":
		return Greedy{}, nil
	case "threshold":
		return NewThreshold(tolerance, cooling), nil
	default:
		return nil, fmt.Errorf("unknown acceptance %q", kind)
	}
}
