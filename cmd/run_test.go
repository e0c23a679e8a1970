package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/polyga/internal/controller"
	"github.com/cwbudde/polyga/internal/ga"
	"github.com/cwbudde/polyga/internal/store"
)

func TestGAFlags_Resolve(t *testing.T) {
	var f gaFlags
	cmd := &cobra.Command{Use: "test"}
	addGAFlags(cmd, &f)

	if err := cmd.ParseFlags([]string{"--pop", "8", "--goal", "min", "--seed", "9", "--interval", "5ms"}); err != nil {
		t.Fatalf("ParseFlags failed: %v", err)
	}
	cfg, opts, err := f.resolve(cmd)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	if cfg.PopSize != 8 {
		t.Errorf("Expected pop 8, got %d", cfg.PopSize)
	}
	if cfg.Seed != 9 {
		t.Errorf("Expected seed 9, got %d", cfg.Seed)
	}
	if opts.Goal != ga.GoalMin {
		t.Errorf("Expected goal min, got %s", opts.Goal)
	}
	if opts.Interval != 5*time.Millisecond {
		t.Errorf("Expected 5ms interval, got %s", opts.Interval)
	}
	// Unset flags keep config values
	if cfg.MinX != appConfig.GA.MinX || cfg.MaxX != appConfig.GA.MaxX {
		t.Errorf("Expected config domain, got [%d,%d]", cfg.MinX, cfg.MaxX)
	}
	if opts.Patience != appConfig.Controller.Patience {
		t.Errorf("Expected config patience, got %d", opts.Patience)
	}
}

func TestGAFlags_ResolveInvalid(t *testing.T) {
	for _, args := range [][]string{
		{"--goal", "up"},
		{"--min-x", "5", "--max-x", "1"},
		{"--mutation-rate", "2"},
		{"--patience", "0"},
	} {
		var f gaFlags
		cmd := &cobra.Command{Use: "test"}
		addGAFlags(cmd, &f)
		if err := cmd.ParseFlags(args); err != nil {
			t.Fatalf("ParseFlags(%v) failed: %v", args, err)
		}
		if _, _, err := f.resolve(cmd); err == nil {
			t.Errorf("Expected error for %v", args)
		}
	}
}

func TestExecuteRun_MaxGenerationsThenResume(t *testing.T) {
	dir := t.TempDir()
	st, err := store.NewFSStore(dir)
	if err != nil {
		t.Fatalf("NewFSStore failed: %v", err)
	}

	cfg := ga.DefaultConfig()
	cfg.Seed = 11
	opts := controller.DefaultOptions()
	opts.Interval = time.Millisecond

	plotPath := filepath.Join(dir, "pop.png")
	tracePlotPath := filepath.Join(dir, "trace.png")
	settings := runSettings{maxGenerations: 5, plotPath: plotPath, tracePlotPath: tracePlotPath}

	ctrl := controller.New(cfg, opts)
	if err := executeRun(context.Background(), ctrl, st, "run-a", false, settings, ctrl.Init); err != nil {
		t.Fatalf("executeRun failed: %v", err)
	}

	cp, err := st.LoadCheckpoint("run-a")
	if err != nil {
		t.Fatalf("LoadCheckpoint failed: %v", err)
	}
	if cp.Generation != 5 {
		t.Errorf("Expected checkpoint at generation 5, got %d", cp.Generation)
	}

	entries, err := store.ReadTrace(dir, "run-a")
	if err != nil {
		t.Fatalf("ReadTrace failed: %v", err)
	}
	if len(entries) != 6 {
		t.Fatalf("Expected 6 trace entries (generations 0-5), got %d", len(entries))
	}
	for i, e := range entries {
		if e.Generation != i {
			t.Errorf("Entry %d: expected generation %d, got %d", i, i, e.Generation)
		}
	}

	for _, p := range []string{plotPath, tracePlotPath} {
		if info, err := os.Stat(p); err != nil || info.Size() == 0 {
			t.Errorf("Expected non-empty %s, got err %v", p, err)
		}
	}

	// Resume continues from the checkpoint and appends to the trace
	resumed := controller.New(cp.Config, opts)
	settings = runSettings{maxGenerations: 8}
	if err := executeRun(context.Background(), resumed, st, "run-a", true, settings, func() error {
		return resumed.Restore(cp)
	}); err != nil {
		t.Fatalf("resume failed: %v", err)
	}

	entries, err = store.ReadTrace(dir, "run-a")
	if err != nil {
		t.Fatalf("ReadTrace failed: %v", err)
	}
	if len(entries) != 9 {
		t.Fatalf("Expected 9 trace entries after resume, got %d", len(entries))
	}
	if last := entries[len(entries)-1].Generation; last != 8 {
		t.Errorf("Expected last traced generation 8, got %d", last)
	}
}

func TestExecuteRun_Converges(t *testing.T) {
	st, err := store.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore failed: %v", err)
	}

	cfg := ga.DefaultConfig()
	cfg.Seed = 5
	opts := controller.DefaultOptions()
	opts.Interval = time.Millisecond
	opts.Patience = 10

	ctrl := controller.New(cfg, opts)
	if err := executeRun(context.Background(), ctrl, st, "run-b", false, runSettings{}, ctrl.Init); err != nil {
		t.Fatalf("executeRun failed: %v", err)
	}

	cp, err := st.LoadCheckpoint("run-b")
	if err != nil {
		t.Fatalf("LoadCheckpoint failed: %v", err)
	}
	if !cp.Converged {
		t.Error("Expected converged checkpoint")
	}
	if cp.Stability != 10 {
		t.Errorf("Expected stability 10, got %d", cp.Stability)
	}
}
