package main

import (
	"os"
	"sync"

	"vrpengine/internal/boundary"
	"vrpengine/internal/config"
	"vrpengine/internal/logging"
)

var (
	defaultMu  sync.Mutex
	defaultEng *boundary.Engine
)

// newEngine builds an engine from the host settings found in the environment. Logs go
// to stderr since the library owns no other output.
func newEngine(workers int) *boundary.Engine {
	cfg, err := config.Load(os.Getenv("VRP_CONFIG"))
	if err != nil {
		cfg = config.Default()
	}
	if workers > 0 {
		cfg.Engine.Workers = workers
	}
	return boundary.New(
		boundary.WithWorkers(cfg.Engine.Workers),
		boundary.WithLogger(logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)),
		boundary.WithCacheSize(cfg.Engine.CacheSize),
		boundary.WithProgressRate(0),
	)
}

// initDefault creates the shared engine unless it exists and reports whether it did.
func initDefault(workers int) bool {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultEng != nil {
		return false
	}
	defaultEng = newEngine(workers)
	return true
}

// defaultEngine returns the shared engine, creating it with the configured pool size on first use.
func defaultEngine() *boundary.Engine {
	initDefault(0)
	defaultMu.Lock()
	defer defaultMu.Unlock()
	return defaultEng
}
