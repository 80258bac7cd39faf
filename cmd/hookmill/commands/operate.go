package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hookmill/hookmill/pkg/appliers"
	"github.com/hookmill/hookmill/pkg/config"
	"github.com/hookmill/hookmill/pkg/lifecycle"
	"github.com/hookmill/hookmill/pkg/manifest"
	"github.com/hookmill/hookmill/pkg/policy"
	"github.com/hookmill/hookmill/pkg/release"
	"github.com/hookmill/hookmill/pkg/stores"
	"github.com/hookmill/hookmill/pkg/telemetry"
)

// newOperateCommand builds one of the four operation commands. They share
// flags and wiring; only the operation differs.
func newOperateCommand(name, short, long string) *cobra.Command {
	var manifestFiles []string

	cmd := &cobra.Command{
		Use:   name + " -f manifest.yaml [-f more.yaml ...]",
		Short: short,
		Long: long + `

Manifest files are read in the given order; that order is the hook
discovery order. Supply one flattened list covering the top-level package
and all sub-packages.`,
		Example: fmt.Sprintf(`  # Run against rendered manifests
  hookmill %s -f rendered.yaml

  # Multiple manifest files, JSON result
  hookmill %s -f base.yaml -f subchart.yaml --json`, name, name),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOperation(cmd.Context(), lifecycle.Operation(name), manifestFiles)
		},
	}

	cmd.Flags().StringSliceVarP(&manifestFiles, "file", "f", nil, "rendered manifest file (repeatable)")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

// runOperation wires the orchestrator from configuration and performs one
// release operation.
func runOperation(ctx context.Context, op lifecycle.Operation, files []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	tel, err := telemetryConfig(cfg)
	if err != nil {
		return err
	}

	logger, err := telemetry.NewLogger(tel.Logging)
	if err != nil {
		return err
	}

	manifests, err := manifest.DecodeFiles(files)
	if err != nil {
		return err
	}

	bus := telemetry.NewEventBus(tel.Events)
	defer bus.Close()

	metrics := telemetry.NewMetrics(tel.Metrics)
	bus.Subscribe(metrics.Observe)
	metrics.Serve()

	tracer, err := telemetry.NewTracer(tel.Tracing, tel.ServiceName, tel.ServiceVersion, tel.Environment)
	if err != nil {
		return err
	}
	defer func() {
		_ = tracer.Shutdown(context.Background())
	}()

	var history lifecycle.HistoryStore
	if cfg.Store.Enabled {
		store, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer store.Close()
		history = store
	}

	var policies *policy.Engine
	if cfg.Policy.Enabled {
		policies, err = policy.NewEngine(logger)
		if err != nil {
			return err
		}
		if len(cfg.Policy.Paths) > 0 {
			if err := policies.LoadPolicies(ctx, cfg.Policy.Paths); err != nil {
				return err
			}
			if cfg.Policy.Watch {
				watchCtx, stopWatch := context.WithCancel(ctx)
				defer stopWatch()
				go func() {
					if err := policies.WatchPolicies(watchCtx, cfg.Policy.Paths); err != nil && !errors.Is(err, context.Canceled) {
						logger.Warn().Err(err).Msg("Policy watcher stopped")
					}
				}()
			}
		}
	}

	applier, err := appliers.DefaultRegistry().Open(cfg.Applier)
	if err != nil {
		return err
	}

	executor := lifecycle.NewPhaseExecutor(
		applier,
		lifecycle.NewReadinessEvaluator(),
		bus,
		logger,
		lifecycle.ExecutorOptions{
			PollInterval: cfg.Hooks.PollInterval.Std(),
			HookTimeout:  cfg.Hooks.Timeout.Std(),
		},
	)
	coordinator := lifecycle.NewCoordinator(executor, history, bus, tracer, logger)
	manager := release.NewManager(
		coordinator,
		applier,
		&manifest.Extractor{Strict: cfg.Hooks.StrictAnnotations},
		policies,
		tracer,
		logger,
	)

	result, err := manager.Perform(ctx, op, manifests, nil)
	if result != nil {
		printOperationResult(result)
	}
	if err != nil {
		if code := lifecycle.ErrorCode(err); code != "" {
			metrics.RecordError(code)
		}
		return err
	}
	return nil
}

// printOperationResult writes the operation outcome to stdout.
func printOperationResult(result *lifecycle.OperationResult) {
	if jsonOutput {
		data, err := json.MarshalIndent(result, "", "  ")
		if err == nil {
			fmt.Println(string(data))
		}
		return
	}

	status := "succeeded"
	if !result.Succeeded {
		status = "failed"
	}
	fmt.Printf("Operation %s %s (run %s, %s)\n",
		result.Operation, status, result.RunID,
		result.CompletedAt.Sub(result.StartedAt).Round(1e6))
	if !result.Succeeded {
		if result.FailedPhase != "" {
			fmt.Printf("  failed phase: %s\n", result.FailedPhase)
		}
		if result.FailedHook != "" {
			fmt.Printf("  failed hook:  %s\n", result.FailedHook)
		}
	}
}

// telemetryConfig assembles and validates the telemetry stack
// configuration from the orchestrator config, honoring --verbose.
func telemetryConfig(cfg *config.Config) (*telemetry.Config, error) {
	tel := telemetry.DefaultConfig()
	tel.Logging.Level = cfg.Logging.Level
	if verbose {
		tel.Logging.Level = "debug"
	}
	tel.Logging.Format = cfg.Logging.Format
	tel.Metrics.Enabled = cfg.Metrics.Enabled
	tel.Metrics.Listen = cfg.Metrics.Listen
	tel.Tracing.Enabled = cfg.Tracing.Enabled
	tel.Tracing.Exporter = cfg.Tracing.Exporter
	tel.Tracing.Endpoint = cfg.Tracing.Endpoint

	if err := tel.Validate(); err != nil {
		return nil, err
	}
	return tel, nil
}

// buildLogger creates the logger from configuration, honoring --verbose.
func buildLogger(cfg *config.Config) (zerolog.Logger, error) {
	tel, err := telemetryConfig(cfg)
	if err != nil {
		return zerolog.Logger{}, err
	}
	return telemetry.NewLogger(tel.Logging)
}

// openStore opens and migrates the history database.
func openStore(ctx context.Context, cfg *config.Config) (*stores.SQLiteStore, error) {
	store, err := stores.NewSQLiteStore(stores.Config{Path: cfg.Store.Path})
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}
