package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/cwbudde/polyga/internal/config"
)

var (
	logLevel   string
	configPath string
	logger     *slog.Logger
	activeLvl  slog.Level

	// appConfig is loaded in PersistentPreRunE and read by subcommands.
	appConfig = config.Default()
)

var rootCmd = &cobra.Command{
	Use:   "polyga",
	Short: "Genetic algorithm search for the extremum of a cubic",
	Long: `Polyga evolves a population of bit-string individuals to find the
integer x in [min-x, max-x] that maximizes or minimizes
f(x) = a + b*x + c*x^2 + d*x^3, with step-by-step or automatic control.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		appConfig = cfg

		levelName := appConfig.Log.Level
		if cmd.Flags().Changed("log-level") {
			levelName = logLevel
		}
		level, err := config.ParseLevel(levelName)
		if err != nil {
			return fmt.Errorf("invalid --log-level: %w", err)
		}

		activeLvl = level
		opts := &slog.HandlerOptions{Level: level}
		handler := slog.NewJSONHandler(os.Stdout, opts)
		logger = slog.New(handler)
		slog.SetDefault(logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a TOML config file")
}
