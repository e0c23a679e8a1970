package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/polyga/internal/controller"
	"github.com/cwbudde/polyga/internal/ga"
)

// gaFlags holds command-line overrides for the [ga] and [controller]
// config sections. Only flags the user set replace file values.
type gaFlags struct {
	a, b, c, d   float64
	minX, maxX   int
	popSize      int
	mutationRate float64
	seed         uint64
	goal         string
	patience     int
	interval     time.Duration
}

func addGAFlags(cmd *cobra.Command, f *gaFlags) {
	def := ga.DefaultConfig()
	opts := controller.DefaultOptions()

	fs := cmd.Flags()
	fs.Float64Var(&f.a, "a", def.A, "Constant coefficient")
	fs.Float64Var(&f.b, "b", def.B, "Linear coefficient")
	fs.Float64Var(&f.c, "c", def.C, "Quadratic coefficient")
	fs.Float64Var(&f.d, "d", def.D, "Cubic coefficient")
	fs.IntVar(&f.minX, "min-x", def.MinX, "Lower bound of the domain (inclusive)")
	fs.IntVar(&f.maxX, "max-x", def.MaxX, "Upper bound of the domain (inclusive)")
	fs.IntVar(&f.popSize, "pop", def.PopSize, "Population size")
	fs.Float64Var(&f.mutationRate, "mutation-rate", def.MutationRate, "Per-bit mutation probability")
	fs.Uint64Var(&f.seed, "seed", 0, "Random seed (0 = random)")
	fs.StringVar(&f.goal, "goal", string(opts.Goal), "Optimization goal: max or min")
	fs.IntVar(&f.patience, "patience", opts.Patience, "Unchanged steps that count as convergence")
	fs.DurationVar(&f.interval, "interval", opts.Interval, "Auto-run step interval")
}

// resolve merges appConfig with the flags the user changed.
func (f *gaFlags) resolve(cmd *cobra.Command) (ga.Config, controller.Options, error) {
	cfg := appConfig.GA
	opts := appConfig.Options()
	fs := cmd.Flags()

	if fs.Changed("a") {
		cfg.A = f.a
	}
	if fs.Changed("b") {
		cfg.B = f.b
	}
	if fs.Changed("c") {
		cfg.C = f.c
	}
	if fs.Changed("d") {
		cfg.D = f.d
	}
	if fs.Changed("min-x") {
		cfg.MinX = f.minX
	}
	if fs.Changed("max-x") {
		cfg.MaxX = f.maxX
	}
	if fs.Changed("pop") {
		cfg.PopSize = f.popSize
	}
	if fs.Changed("mutation-rate") {
		cfg.MutationRate = f.mutationRate
	}
	if fs.Changed("seed") {
		cfg.Seed = f.seed
	}
	if fs.Changed("goal") {
		goal, err := ga.ParseGoal(f.goal)
		if err != nil {
			return cfg, opts, err
		}
		opts.Goal = goal
	}
	if fs.Changed("patience") {
		opts.Patience = f.patience
	}
	if fs.Changed("interval") {
		opts.Interval = f.interval
	}

	if err := cfg.Validate(); err != nil {
		return cfg, opts, err
	}
	if opts.Patience <= 0 {
		return cfg, opts, fmt.Errorf("patience must be positive, got %d", opts.Patience)
	}
	if opts.Interval <= 0 {
		return cfg, opts, fmt.Errorf("interval must be positive, got %s", opts.Interval)
	}
	return cfg, opts, nil
}
