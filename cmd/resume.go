package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/cwbudde/polyga/internal/controller"
)

var (
	resumeOpts     runSettings
	resumePatience int
)

var resumeCmd = &cobra.Command{
	Use:   "resume <run-id>",
	Short: "Resume a run from its checkpoint",
	Long: `Loads <data-dir>/runs/<run-id>/checkpoint.json, restores population,
goal and convergence tracking, and continues auto-running. New generations
are appended to the run's trace. A converged run is reported unchanged.`,
	Args: cobra.ExactArgs(1),
	RunE: runResume,
}

func init() {
	addRunSettings(resumeCmd, &resumeOpts)
	resumeCmd.Flags().IntVar(&resumePatience, "patience", 0, "Override convergence patience (0 = config value)")
	rootCmd.AddCommand(resumeCmd)
}

func runResume(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st, err := resumeOpts.store()
	if err != nil {
		return err
	}
	cp, err := st.LoadCheckpoint(runID)
	if err != nil {
		return err
	}

	opts := appConfig.Options()
	opts.Goal = cp.Goal
	if resumePatience > 0 {
		opts.Patience = resumePatience
	}

	slog.Info("Resuming run",
		"run_id", runID,
		"generation", cp.Generation,
		"goal", cp.Goal,
		"converged", cp.Converged,
	)

	ctrl := controller.New(cp.Config, opts)
	return executeRun(cmd.Context(), ctrl, st, runID, true, resumeOpts, func() error {
		return ctrl.Restore(cp)
	})
}
