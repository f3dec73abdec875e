// ============================================================================
// cx-taskflow CLI - Command Line Interface
// ============================================================================
//
// Package: internal/cli
// File: cli.go
// Purpose: Cobra-based command line interface for building and running a
//   Task Flow from a YAML config file.
//
// Command Structure:
//   cx-taskflow
//   ├── run                  # Build a Flow from config and run it
//   │   └── --config, -c     # Config file path
//   ├── validate             # Parse and validate a flow topology only
//   │   └── --config, -c     # Config file path
//   └── trace                # Replay a previously exported tracer JSON file
//       └── --file, -f       # Tracer JSON file path (required)
//
// run Command:
//   1. Load and validate config
//   2. Build the Flow: workers, tasks, dependencies, optional tracer
//   3. Start Prometheus metrics server, if enabled
//   4. Start the flow for the configured number of cycles
//   5. Wait for completion or SIGINT/SIGTERM, then stop gracefully
//   6. Export tracer JSON, if enabled
//
// ============================================================================

package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ChuLiYu/cx-taskflow/internal/config"
	"github.com/ChuLiYu/cx-taskflow/internal/metrics"
	"github.com/ChuLiYu/cx-taskflow/internal/taskflow"
	"github.com/ChuLiYu/cx-taskflow/internal/tracer"
	"github.com/ChuLiYu/cx-taskflow/pkg/types"
)

var configFile string
var traceFile string

// BuildCLI assembles the cx-taskflow root command and its subcommands.
func BuildCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "cx-taskflow",
		Short:   "cx-taskflow: a dependency-driven task scheduler",
		Version: "1.0.0",
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "configs/flow.yaml", "config file path")
	rootCmd.AddCommand(buildRunCommand())
	rootCmd.AddCommand(buildValidateCommand())
	rootCmd.AddCommand(buildTraceCommand())

	return rootCmd
}

func buildRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Build a flow from config and run it",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFlow(configFile)
		},
	}
	return cmd
}

func buildValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Parse and validate a flow topology without running it",
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateFlow(configFile)
		},
	}
	return cmd
}

func buildTraceCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Replay a previously exported tracer JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return replayTrace(traceFile)
		},
	}
	cmd.Flags().StringVarP(&traceFile, "file", "f", "", "tracer JSON file to replay (required)")
	cmd.MarkFlagRequired("file")
	return cmd
}

// replayTrace reads a tracer.WriteJSONFile export and prints each event in
// recorded order, one line per event, in the style of `chrome://tracing`'s
// underlying ph/ts/pid/tid fields.
func replayTrace(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read trace file: %w", err)
	}

	var events []types.TraceEvent
	if err := json.Unmarshal(data, &events); err != nil {
		return fmt.Errorf("failed to parse trace file: %w", err)
	}

	for _, ev := range events {
		line := fmt.Sprintf("ts=%d pid=%d tid=%d ph=%s name=%s cat=%s", ev.TS, ev.PID, ev.TID, ev.Phase, ev.Name, ev.Cat)
		if ev.Scope != "" {
			line += fmt.Sprintf(" s=%s", ev.Scope)
		}
		fmt.Println(line)
	}
	fmt.Printf("%d events replayed\n", len(events))
	return nil
}

func validateFlow(path string) error {
	cfg, err := config.LoadFile(path)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid flow topology: %w", err)
	}
	fmt.Printf("flow topology valid: %d tasks, %d workers\n", len(cfg.Tasks), cfg.Flow.WorkerCount)
	return nil
}

func runFlow(path string) error {
	cfg, err := config.LoadFile(path)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid flow topology: %w", err)
	}

	var tr *tracer.Tracer
	if cfg.Trace.Enabled {
		capacity := cfg.Flow.TracerCapacity
		if capacity <= 0 {
			capacity = 10_000
		}
		tr = tracer.New(capacity)
	}

	flow, err := taskflow.New(cfg.Flow.WorkerCount, tr)
	if err != nil {
		return fmt.Errorf("failed to create flow: %w", err)
	}
	defer flow.Close()

	if err := buildTasks(flow, cfg); err != nil {
		return err
	}

	if cfg.Metrics.Enabled {
		collector := metrics.NewCollector()
		flow.SetMetrics(collector)
		if tr != nil {
			tr.SetObserver(collector)
		}
		go func() {
			slog.Info("starting metrics server", "port", cfg.Metrics.Port)
			if err := metrics.StartServer(cfg.Metrics.Port); err != nil {
				slog.Error("metrics server error", "error", err)
			}
		}()

		depthTicker := time.NewTicker(time.Second)
		defer depthTicker.Stop()
		go func() {
			for range depthTicker.C {
				collector.SetQueueDepth(flow.QueueDepth())
			}
		}()
	}

	slog.Info("starting flow", "tasks", len(cfg.Tasks), "workers", cfg.Flow.WorkerCount, "cycles", cfg.Flow.Cycles)
	if err := flow.Start(cfg.Flow.Cycles); err != nil {
		return fmt.Errorf("failed to start flow: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan error, 1)
	go func() { done <- flow.Wait(0) }()

	select {
	case <-sigCh:
		slog.Info("received shutdown signal, stopping flow")
		if err := flow.Stop(10 * time.Second); err != nil {
			slog.Error("flow stop error", "error", err)
		}
	case err := <-done:
		if err != nil {
			slog.Error("flow wait error", "error", err)
		}
	}

	if cfg.Trace.Enabled && tr != nil {
		if err := tr.WriteJSONFile(cfg.Trace.OutputPath); err != nil {
			slog.Error("failed to write trace file", "error", err)
		} else {
			slog.Info("trace written", "path", cfg.Trace.OutputPath, "events", tr.Count())
		}
	}

	return nil
}

// buildTasks instantiates every task named in cfg and wires up its
// dependencies. Task functions do no work beyond emitting a thread-scoped
// tracer instant named after the task: cx-taskflow's CLI runs
// topology-only flows for demonstration and load-testing; real task
// bodies are supplied by embedding taskflow.Flow directly in a Go program.
func buildTasks(flow *taskflow.Flow, cfg *config.Config) error {
	refs := make(map[string]taskflow.TaskRef, len(cfg.Tasks))
	for _, spec := range cfg.Tasks {
		name := spec.Name
		ref, err := flow.AddTask(name, func(any) {
			flow.TraceInstant(name, "cli", tracer.ScopeThread)
		}, nil)
		if err != nil {
			return fmt.Errorf("failed to add task %q: %w", name, err)
		}
		refs[name] = ref
	}

	for _, spec := range cfg.Tasks {
		for _, predName := range spec.Predecessors {
			if err := flow.SetTaskDep(refs[spec.Name], refs[predName]); err != nil {
				return fmt.Errorf("failed to set dependency %q -> %q: %w", spec.Name, predName, err)
			}
		}
	}

	return nil
}
