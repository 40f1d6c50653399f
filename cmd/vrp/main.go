// Command vrp solves pragmatic problems from files. It is the command line host of the
// boundary engine.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"vrpengine/internal/boundary"
	"vrpengine/internal/config"
	"vrpengine/internal/logging"
	"vrpengine/internal/vrperr"
)

func main() {
	_ = godotenv.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx)
	stop()
	if err != nil {
		var ve *vrperr.Error
		if errors.As(err, &ve) {
			fmt.Fprintln(os.Stderr, ve.JSON())
		} else {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath string
	logLevel   string
	logFormat  string
	workers    int
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	o := &rootOptions{}
	root := &cobra.Command{
		Use:           "vrp",
		Short:         "Solve vehicle routing problems in the pragmatic format",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	f := root.PersistentFlags()
	f.StringVar(&o.configPath, "settings", os.Getenv("VRP_CONFIG"), "host settings yaml")
	f.StringVar(&o.logLevel, "log-level", "", "log level (overrides settings)")
	f.StringVar(&o.logFormat, "log-format", "", "log format json|text (overrides settings)")
	f.IntVar(&o.workers, "workers", 0, "worker pool size (overrides settings)")

	root.AddCommand(newSolveCmd(o), newLocationsCmd(o), newConvertCmd(o), newVersionCmd())
	return root
}

// engine builds the boundary engine for one command run from the host settings.
func (o *rootOptions) engine(stderr io.Writer) (*boundary.Engine, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.logFormat != "" {
		cfg.Log.Format = o.logFormat
	}
	if o.workers > 0 {
		cfg.Engine.Workers = o.workers
	}
	log := logging.New(stderr, cfg.Log.Level, cfg.Log.Format)
	return boundary.New(
		boundary.WithWorkers(cfg.Engine.Workers),
		boundary.WithLogger(log),
		boundary.WithCacheSize(cfg.Engine.CacheSize),
		boundary.WithProgressRate(0),
	), nil
}

// await waits for call. When ctx ends first the call is cancelled and its result,
// which for a solve is the best solution so far, is still returned.
func await(ctx context.Context, call *boundary.Call) ([]byte, error) {
	select {
	case <-call.Future().Done():
	case <-ctx.Done():
		call.Cancel()
	}
	return call.Future().Await(context.Background())
}
