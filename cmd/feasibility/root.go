package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/danielpatrickdp/plan-feasibility/internal/config"
	"github.com/danielpatrickdp/plan-feasibility/internal/gate"
	"github.com/danielpatrickdp/plan-feasibility/internal/logging"
	"github.com/danielpatrickdp/plan-feasibility/internal/rules"
)

// Exit codes.
const (
	exitOK       = 0
	exitError    = 1
	exitConfig   = 2
	exitMismatch = 3
)

// errMismatch marks replays whose outcome differed from the fixture.
var errMismatch = errors.New("replay mismatch")

var (
	configPath string
	logLevel   string
	logFormat  string
	traceOut   bool

	cfg    config.Config
	logger *slog.Logger
	tracer *sdktrace.TracerProvider
)

var rootCmd = &cobra.Command{
	Use:   "feasibility",
	Short: "Evaluate maintenance plans against operational constraints",
	Long: `feasibility checks candidate maintenance plans against pipeline health,
manpower, safety, backup, schedule, and budget constraints, retrying with
alternative plans until one is feasible or the search is exhausted.`,
	PersistentPreRunE: setup,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

// Execute runs the root command with signal handling. Spans are flushed
// whether or not the command failed.
func Execute(ctx context.Context) (err error) {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	defer func() {
		if shutdownErr := shutdownTracing(context.WithoutCancel(ctx)); shutdownErr != nil {
			err = errors.Join(err, shutdownErr)
		}
	}()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "path to YAML config file")
	pf.StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	pf.StringVar(&logFormat, "log-format", "", "log format override (text, json)")
	pf.BoolVar(&traceOut, "trace", false, "print OpenTelemetry spans to stderr")

	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(evaluateCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(observeServerCmd)
}

// setup loads configuration and builds the logger before any command runs.
func setup(cmd *cobra.Command, _ []string) error {
	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}
	logger, err = logging.NewLogger(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	if err != nil {
		return errors.Join(rules.ErrConfig, err)
	}
	slog.SetDefault(logger)

	if traceOut {
		tracer, err = installTracing(cmd.ErrOrStderr())
		if err != nil {
			return err
		}
	}
	return nil
}

func shutdownTracing(ctx context.Context) error {
	if tracer == nil {
		return nil
	}
	tp := tracer
	tracer = nil
	return tp.Shutdown(ctx)
}

// newGate validates the default rule table against the configured thresholds.
func newGate() (*gate.Gate, error) {
	return gate.NewGate(rules.DefaultTable(), cfg.Thresholds)
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, rules.ErrConfig):
		return exitConfig
	case errors.Is(err, errMismatch):
		return exitMismatch
	}
	return exitError
}
