package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/cwbudde/polyga/internal/chart"
	"github.com/cwbudde/polyga/internal/controller"
	"github.com/cwbudde/polyga/internal/store"
)

var (
	plotGA          gaFlags
	plotOut         string
	plotGenerations int
	plotRunID       string
	plotDataDir     string
	plotTrace       bool
)

var plotCmd = &cobra.Command{
	Use:   "plot",
	Short: "Render the curve and population as a PNG",
	Long: `Without --run-id, initializes a population from the config and flags,
steps it --generations times and renders the result. With --run-id, renders
the saved checkpoint of that run, or its trace when --trace is set.`,
	RunE: runPlot,
}

func init() {
	addGAFlags(plotCmd, &plotGA)
	plotCmd.Flags().StringVar(&plotOut, "out", "plot.png", "Output PNG path")
	plotCmd.Flags().IntVar(&plotGenerations, "generations", 0, "Generations to step before rendering")
	plotCmd.Flags().StringVar(&plotRunID, "run-id", "", "Render a stored run instead of a fresh population")
	plotCmd.Flags().StringVar(&plotDataDir, "data-dir", "", "Base directory for checkpoints (default: config server.data_dir)")
	plotCmd.Flags().BoolVar(&plotTrace, "trace", false, "With --run-id, plot best/mean fitness per generation")
	rootCmd.AddCommand(plotCmd)
}

func runPlot(cmd *cobra.Command, args []string) error {
	if plotRunID != "" {
		return plotStoredRun()
	}

	cfg, opts, err := plotGA.resolve(cmd)
	if err != nil {
		return err
	}
	if plotGenerations < 0 {
		return fmt.Errorf("generations must be >= 0, got %d", plotGenerations)
	}

	ctrl := controller.New(cfg, opts)
	if err := ctrl.Init(); err != nil {
		return err
	}
	for i := 0; i < plotGenerations; i++ {
		if err := ctrl.Step(); err != nil {
			return err
		}
	}

	return renderSnapshot(ctrl.Snapshot())
}

func plotStoredRun() error {
	dir := plotDataDir
	if dir == "" {
		dir = appConfig.Server.DataDir
	}
	st, err := store.NewFSStore(dir)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint store: %w", err)
	}

	if plotTrace {
		entries, err := store.ReadTrace(st.BaseDir(), plotRunID)
		if err != nil {
			return err
		}
		if err := writeFile(plotOut, func(f *os.File) error { return chart.Trace(f, entries) }); err != nil {
			return err
		}
		fmt.Printf("Wrote %s (%d generations)\n", plotOut, len(entries))
		return nil
	}

	cp, err := st.LoadCheckpoint(plotRunID)
	if err != nil {
		return err
	}
	ctrl := controller.New(cp.Config, appConfig.Options())
	if err := ctrl.Restore(cp); err != nil {
		return err
	}
	return renderSnapshot(ctrl.Snapshot())
}

func renderSnapshot(snap controller.Snapshot) error {
	if err := writeFile(plotOut, func(f *os.File) error { return chart.Population(f, snap) }); err != nil {
		return err
	}
	slog.Info("Plot written", "path", plotOut, "generation", snap.Generation)
	fmt.Printf("Wrote %s (generation %d, best x=%d f(x)=%g)\n", plotOut, snap.Generation, snap.Best.X, snap.Best.Y)
	return nil
}
