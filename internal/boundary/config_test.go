package boundary

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"vrpengine/internal/model"
	"vrpengine/internal/opt"
	"vrpengine/internal/vrperr"
)

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig(`{
	  "max_time": 1.5, "max_generations": 200, "seed": 9,
	  "cost_weights": {"distance": 2, "unassigned": 500},
	  "acceptance": {"type": "threshold", "tolerance": 0.1, "cooling": 0.9},
	  "variation": {"sample": 50, "cv": 0.01}
	}`)
	require.NoError(t, err)

	ec := cfg.engineConfig(func() time.Time { t.Fatal("clock read with a fixed seed"); return time.Time{} })
	require.Equal(t, 1500*time.Millisecond, ec.MaxTime)
	require.Equal(t, 200, ec.MaxGenerations)
	require.Equal(t, int64(9), ec.Seed)
	require.Equal(t, "threshold", ec.Acceptance.Name())
	require.Equal(t, 50, ec.VariationSample)
	require.Equal(t, 0.01, ec.VariationCV)
}

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := ParseConfig("  ")
	require.NoError(t, err)
	ec := cfg.engineConfig(func() time.Time { return time.Unix(0, 77) })
	require.Equal(t, int64(77), ec.Seed)
	require.Nil(t, ec.Acceptance)
	require.Zero(t, ec.MaxGenerations)
}

func TestParseConfigRejects(t *testing.T) {
	for name, doc := range map[string]string{
		"unknown key":      `{"iterations": 3}`,
		"not json":         `{`,
		"negative time":    `{"max_time": -1}`,
		"negative weight":  `{"cost_weights": {"time": -0.5}}`,
		"bad acceptance":   `{"acceptance": {"type": "tabu"}}`,
		"bad cooling":      `{"acceptance": {"type": "annealing", "cooling": 1.5}}`,
		"empty variation":  `{"variation": {"sample": 0, "cv": 0.1}}`,
		"nested unknown":   `{"variation": {"sample": 5, "cv": 0.1, "window": 3}}`,
		"wrong value type": `{"seed": "abc"}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseConfig(doc)
			require.True(t, vrperr.Is(err, vrperr.Validation), "got %v", err)
			require.Equal(t, "E0004", vrperr.From(err).Details[0].Code)
		})
	}
}

func TestCostWeightsOverride(t *testing.T) {
	cfg, err := ParseConfig(`{"cost_weights": {"fixed": 0, "time": 3, "lateness": 7}}`)
	require.NoError(t, err)
	p := &model.Problem{
		Vehicles: []model.Vehicle{{Costs: model.Costs{Fixed: 20, Distance: 1, Time: 1}}},
		Weights:  model.DefaultWeights(),
	}
	cfg.apply(p)
	require.Equal(t, model.Costs{Fixed: 0, Distance: 1, Time: 3}, p.Vehicles[0].Costs)
	require.Equal(t, 7.0, p.Weights.Lateness)
	require.Equal(t, model.DefaultWeights().Unassigned, p.Weights.Unassigned)
}

func TestAcceptanceDefaultsToAnnealing(t *testing.T) {
	cfg, err := ParseConfig(`{"acceptance": {"type": ""}}`)
	require.NoError(t, err)
	ec := cfg.engineConfig(time.Now)
	_, ok := ec.Acceptance.(*opt.Annealing)
	require.True(t, ok)
}
