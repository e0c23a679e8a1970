package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/gdamore/tcell/v2"
	"github.com/spf13/cobra"

	"github.com/cwbudde/polyga/internal/controller"
	"github.com/cwbudde/polyga/internal/tui"
)

var (
	tuiGA      gaFlags
	tuiLogFile string
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Drive the GA interactively in the terminal",
	Long: `Shows the fitness curve, the population and the best individual.
Keys: space/s step, a toggle auto-run, r reset, g toggle goal, q/Esc quit.`,
	RunE: runTUI,
}

func init() {
	addGAFlags(tuiCmd, &tuiGA)
	tuiCmd.Flags().StringVar(&tuiLogFile, "log-file", "", "Write logs to this file instead of discarding them")
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, args []string) error {
	cfg, opts, err := tuiGA.resolve(cmd)
	if err != nil {
		return err
	}

	// The screen owns stdout while the UI runs
	var logOut *os.File
	if tuiLogFile != "" {
		logOut, err = os.OpenFile(tuiLogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer logOut.Close()
		slog.SetDefault(slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{Level: activeLvl})))
	} else {
		slog.SetDefault(slog.New(slog.DiscardHandler))
	}

	ctrl := controller.New(cfg, opts)
	if err := ctrl.Init(); err != nil {
		return err
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("failed to create screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("failed to initialize screen: %w", err)
	}
	defer screen.Fini()

	return tui.New(screen, ctrl).Run()
}
