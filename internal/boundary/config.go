package boundary

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"vrpengine/internal/model"
	"vrpengine/internal/opt"
	"vrpengine/internal/vrperr"
)

// SolveConfig is the optional JSON configuration of a solve call.
type SolveConfig struct {
	// MaxTime is the wall-clock ceiling in seconds.
	MaxTime        *float64 `json:"max_time,omitempty"`
	MaxGenerations *int     `json:"max_generations,omitempty"`
	// Seed fixes the random source; nil seeds from the clock.
	Seed        *int64            `json:"seed,omitempty"`
	CostWeights *CostWeights      `json:"cost_weights,omitempty"`
	Acceptance  *AcceptanceConfig `json:"acceptance,omitempty"`
	Variation   *VariationConfig  `json:"variation,omitempty"`
}

// CostWeights override per-vehicle coefficients and objective penalties.
type CostWeights struct {
	Fixed      *float64 `json:"fixed,omitempty"`
	Distance   *float64 `json:"distance,omitempty"`
	Time       *float64 `json:"time,omitempty"`
	Lateness   *float64 `json:"lateness,omitempty"`
	Unassigned *float64 `json:"unassigned,omitempty"`
}

type AcceptanceConfig struct {
	Type               string  `json:"type"`
	InitialTemperature float64 `json:"initial_temperature,omitempty"`
	Cooling            float64 `json:"cooling,omitempty"`
	Tolerance          float64 `json:"tolerance,omitempty"`
}

type VariationConfig struct {
	Sample int     `json:"sample"`
	CV     float64 `json:"cv"`
}

// ParseConfig decodes a solve config. Empty input yields the defaults.
func ParseConfig(data string) (SolveConfig, error) {
	var cfg SolveConfig
	if strings.TrimSpace(data) == "" {
		return cfg, nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(data)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, configError(err.Error())
	}
	var c vrperr.Collector
	if cfg.MaxTime != nil && *cfg.MaxTime < 0 {
		c.Add("E0004", "max_time must not be negative", "use a positive number of seconds")
	}
	if cfg.MaxGenerations != nil && *cfg.MaxGenerations < 0 {
		c.Add("E0004", "max_generations must not be negative", "use a positive generation count")
	}
	if w := cfg.CostWeights; w != nil {
		names := []string{"fixed", "distance", "time", "lateness", "unassigned"}
		for i, v := range []*float64{w.Fixed, w.Distance, w.Time, w.Lateness, w.Unassigned} {
			if v != nil && *v < 0 {
				c.Add("E0004", fmt.Sprintf("cost_weights.%s must not be negative", names[i]), "use a non-negative weight")
			}
		}
	}
	if a := cfg.Acceptance; a != nil {
		if _, err := opt.NewAcceptance(a.Type, a.InitialTemperature, a.Cooling, a.Tolerance); err != nil {
			c.Add("E0004", err.Error(), "use greedy, annealing or threshold")
		}
		if a.Cooling < 0 || a.Cooling >= 1 {
			c.Add("E0004", "acceptance.cooling must be in [0,1)", "use a factor like 0.995")
		}
	}
	if v := cfg.Variation; v != nil && (v.Sample <= 0 || v.CV < 0) {
		c.Add("E0004", "variation needs a positive sample and a non-negative cv", "for example {\"sample\": 200, \"cv\": 0.1}")
	}
	return cfg, c.Err(vrperr.Validation, "invalid solve config")
}

func configError(cause string) error {
	return vrperr.New(vrperr.Validation, "cannot read solve config",
		vrperr.D("E0004", cause, "check config json"))
}

// apply overrides problem weights and vehicle coefficients in place.
func (cfg SolveConfig) apply(p *model.Problem) {
	w := cfg.CostWeights
	if w == nil {
		return
	}
	for i := range p.Vehicles {
		c := &p.Vehicles[i].Costs
		if w.Fixed != nil {
			c.Fixed = *w.Fixed
		}
		if w.Distance != nil {
			c.Distance = *w.Distance
		}
		if w.Time != nil {
			c.Time = *w.Time
		}
	}
	if w.Lateness != nil {
		p.Weights.Lateness = *w.Lateness
	}
	if w.Unassigned != nil {
		p.Weights.Unassigned = *w.Unassigned
	}
}

// engineConfig builds the search configuration. now seeds the random source when no seed is set.
func (cfg SolveConfig) engineConfig(now func() time.Time) opt.Config {
	var ec opt.Config
	if cfg.MaxTime != nil {
		ec.MaxTime = time.Duration(*cfg.MaxTime * float64(time.Second))
	}
	if cfg.MaxGenerations != nil {
		ec.MaxGenerations = *cfg.MaxGenerations
	}
	if cfg.Seed != nil {
		ec.Seed = *cfg.Seed
	} else {
		ec.Seed = now().UnixNano()
	}
	if a := cfg.Acceptance; a != nil {
		// validated in ParseConfig
		ec.Acceptance, _ = opt.NewAcceptance(a.Type, a.InitialTemperature, a.Cooling, a.Tolerance)
	}
	if v := cfg.Variation; v != nil {
		ec.VariationSample = v.Sample
		ec.VariationCV = v.CV
	}
	return ec
}
