package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cwbudde/polyga/internal/chart"
	"github.com/cwbudde/polyga/internal/controller"
	"github.com/cwbudde/polyga/internal/ga"
	"github.com/cwbudde/polyga/internal/opt"
	"github.com/cwbudde/polyga/internal/store"
)

// runSettings are the flags shared by run and resume.
type runSettings struct {
	dataDir        string
	maxGenerations int
	reference      bool
	referenceIters int
	plotPath       string
	tracePlotPath  string
}

var (
	runGA    gaFlags
	runOpts  runSettings
	runRunID string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the GA headless until convergence",
	Long: `Initializes a population and steps it automatically until the best
fitness stays unchanged for --patience generations or --max-generations is
reached. Each generation is appended to <data-dir>/runs/<run-id>/trace.jsonl
and the final state is saved as a checkpoint that "resume" can continue.`,
	RunE: runHeadless,
}

func init() {
	addGAFlags(runCmd, &runGA)
	addRunSettings(runCmd, &runOpts)
	runCmd.Flags().StringVar(&runRunID, "run-id", "", "Run identifier (default: random UUID)")
	rootCmd.AddCommand(runCmd)
}

func addRunSettings(cmd *cobra.Command, s *runSettings) {
	cmd.Flags().StringVar(&s.dataDir, "data-dir", "", "Base directory for checkpoints and traces (default: config server.data_dir)")
	cmd.Flags().IntVar(&s.maxGenerations, "max-generations", 0, "Stop once this generation is reached (0 = no limit)")
	cmd.Flags().BoolVar(&s.reference, "reference", false, "Also compute the mayfly continuous optimum for comparison")
	cmd.Flags().IntVar(&s.referenceIters, "reference-iters", 200, "Mayfly iterations for --reference")
	cmd.Flags().StringVar(&s.plotPath, "plot", "", "Write a PNG of the final population to this path")
	cmd.Flags().StringVar(&s.tracePlotPath, "trace-plot", "", "Write a PNG of the best/mean trace to this path")
}

func (s runSettings) store() (*store.FSStore, error) {
	dir := s.dataDir
	if dir == "" {
		dir = appConfig.Server.DataDir
	}
	st, err := store.NewFSStore(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkpoint store: %w", err)
	}
	return st, nil
}

func runHeadless(cmd *cobra.Command, args []string) error {
	cfg, opts, err := runGA.resolve(cmd)
	if err != nil {
		return err
	}
	st, err := runOpts.store()
	if err != nil {
		return err
	}

	runID := runRunID
	if runID == "" {
		runID = uuid.New().String()
	}

	slog.Info("Starting run",
		"run_id", runID,
		"domain", fmt.Sprintf("[%d,%d]", cfg.MinX, cfg.MaxX),
		"pop_size", cfg.PopSize,
		"goal", opts.Goal,
	)

	ctrl := controller.New(cfg, opts)
	return executeRun(cmd.Context(), ctrl, st, runID, false, runOpts, ctrl.Init)
}

// executeRun drives ctrl to convergence, recording a trace and a final
// checkpoint. start initializes or restores the controller once the trace
// observer is attached.
func executeRun(ctx context.Context, ctrl *controller.Controller, st *store.FSStore, runID string, appendTrace bool, settings runSettings, start func() error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	trace, err := store.NewTraceWriter(st.BaseDir(), runID, appendTrace)
	if err != nil {
		return err
	}
	defer trace.Close()

	// A restored run already traced its checkpoint generation
	skipNext := appendTrace
	unsubscribe := ctrl.Subscribe(func(snap controller.Snapshot) {
		if snap.Best == nil {
			return
		}
		if skipNext {
			skipNext = false
			return
		}
		if err := trace.Write(store.TraceEntry{
			Generation: snap.Generation,
			BestX:      snap.Best.X,
			BestY:      snap.Best.Y,
			MeanY:      snap.Stats.Mean,
			Stability:  snap.Stability,
			Timestamp:  time.Now(),
		}); err != nil {
			slog.Error("Failed to write trace entry", "run_id", runID, "error", err)
		}
		if settings.maxGenerations > 0 && snap.Generation >= settings.maxGenerations {
			ctrl.StopAuto()
		}
	})
	defer unsubscribe()

	if err := start(); err != nil {
		return err
	}

	began := time.Now()
	if snap := ctrl.Snapshot(); settings.maxGenerations == 0 || snap.Generation < settings.maxGenerations {
		ctrl.StartAuto()
	}
	if err := ctrl.Wait(ctx); err != nil {
		slog.Warn("Run interrupted", "run_id", runID)
		ctrl.Close()
	}
	elapsed := time.Since(began)

	if err := trace.Flush(); err != nil {
		slog.Error("Failed to flush trace", "run_id", runID, "error", err)
	}

	cp, err := ctrl.Checkpoint(runID)
	if err != nil {
		return err
	}
	if err := st.SaveCheckpoint(runID, cp); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}

	snap := ctrl.Snapshot()
	slog.Info("Run finished",
		"run_id", runID,
		"generation", snap.Generation,
		"converged", snap.Converged,
		"best_x", snap.Best.X,
		"best_y", snap.Best.Y,
		"elapsed", elapsed,
	)
	fmt.Printf("Run %s: best x=%d f(x)=%g at generation %d (%s, %s)\n",
		runID, snap.Best.X, snap.Best.Y, snap.Generation, snap.State, elapsed.Round(time.Millisecond))

	if settings.reference {
		printReference(snap.Config, snap.Goal, settings.referenceIters)
	}
	if settings.plotPath != "" {
		if err := writeFile(settings.plotPath, func(f *os.File) error { return chart.Population(f, snap) }); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", settings.plotPath)
	}
	if settings.tracePlotPath != "" {
		entries, err := store.ReadTrace(st.BaseDir(), runID)
		if err != nil {
			return err
		}
		if err := writeFile(settings.tracePlotPath, func(f *os.File) error { return chart.Trace(f, entries) }); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", settings.tracePlotPath)
	}

	if snap.LastError != "" {
		return fmt.Errorf("run stopped at generation %d: %s", snap.Generation, snap.LastError)
	}
	return nil
}

func printReference(cfg ga.Config, goal ga.Goal, iters int) {
	optimizer := opt.NewMayfly(iters, opt.MinMayflyPopSize, int64(cfg.Seed))
	ref := opt.Solve(cfg, goal, optimizer)
	fmt.Printf("Reference (%s): continuous x=%.4f f(x)=%g, rounded x=%d f(x)=%g, exact x=%d f(x)=%g\n",
		ref.Goal, ref.ContinuousX, ref.ContinuousY, ref.Rounded.X, ref.Rounded.Y, ref.Exact.X, ref.Exact.Y)
}

func writeFile(path string, write func(f *os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
