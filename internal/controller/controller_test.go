package controller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cwbudde/polyga/internal/ga"
	"github.com/cwbudde/polyga/internal/store"
)

// flatConfig has a single-point domain, so the best fitness never changes.
func flatConfig() ga.Config {
	return ga.Config{A: 5, MinX: 3, MaxX: 3, PopSize: 4, MutationRate: 0.1, Seed: 1}
}

func seededConfig() ga.Config {
	cfg := ga.DefaultConfig()
	cfg.Seed = 42
	return cfg
}

func fastOptions() Options {
	opts := DefaultOptions()
	opts.Interval = time.Millisecond
	return opts
}

func TestController_IdleNoOps(t *testing.T) {
	c := New(seededConfig(), DefaultOptions())

	if c.State() != StateIdle {
		t.Errorf("Expected idle state, got %s", c.State())
	}
	if err := c.Step(); err != nil {
		t.Errorf("Step on idle controller should be a no-op, got %v", err)
	}

	c.StartAuto()
	snap := c.Snapshot()
	if snap.Running {
		t.Error("StartAuto on idle controller should be a no-op")
	}
	if snap.Generation != 0 || snap.Population != nil || snap.Best != nil {
		t.Errorf("Expected empty snapshot, got %+v", snap)
	}
	c.StopAuto()
}

func TestController_InitPublishesState(t *testing.T) {
	c := New(seededConfig(), DefaultOptions())
	if err := c.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	snap := c.Snapshot()
	if snap.State != StateReady {
		t.Errorf("Expected ready state, got %s", snap.State)
	}
	if len(snap.Population) != 20 {
		t.Errorf("Expected population of 20, got %d", len(snap.Population))
	}
	if snap.Best == nil {
		t.Fatal("Expected best individual after init")
	}
	if len(snap.Points) != 64 {
		t.Errorf("Expected 64 curve points, got %d", len(snap.Points))
	}
	if snap.GeneLength != 6 {
		t.Errorf("Expected gene length 6, got %d", snap.GeneLength)
	}
	if snap.LastBestY == nil || *snap.LastBestY != snap.Best.Y {
		t.Errorf("Expected tracker to record initial best %v, got %v", snap.Best.Y, snap.LastBestY)
	}
}

func TestController_StepAdvances(t *testing.T) {
	c := New(seededConfig(), DefaultOptions())
	if err := c.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	prev := c.Snapshot().Best.Y
	for i := 1; i <= 10; i++ {
		if err := c.Step(); err != nil {
			t.Fatalf("Step failed: %v", err)
		}
		snap := c.Snapshot()
		if snap.Generation != i {
			t.Fatalf("Expected generation %d, got %d", i, snap.Generation)
		}
		if snap.Best.Y < prev {
			t.Fatalf("Best worsened from %v to %v", prev, snap.Best.Y)
		}
		prev = snap.Best.Y
	}
}

func TestController_ConvergesAfterPatience(t *testing.T) {
	c := New(flatConfig(), DefaultOptions())
	if err := c.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	for i := 1; i < 30; i++ {
		if err := c.Step(); err != nil {
			t.Fatalf("Step failed: %v", err)
		}
		snap := c.Snapshot()
		if snap.Converged {
			t.Fatalf("Converged early at step %d", i)
		}
		if snap.Stability != i {
			t.Fatalf("Expected stability %d, got %d", i, snap.Stability)
		}
	}

	if err := c.Step(); err != nil {
		t.Fatalf("Step failed: %v", err)
	}
	snap := c.Snapshot()
	if !snap.Converged || snap.State != StateConverged {
		t.Fatalf("Expected converged after 30th unchanged step, got %+v", snap.State)
	}

	c.StartAuto()
	if c.Snapshot().Running {
		t.Error("StartAuto after convergence should be a no-op")
	}

	if err := c.Step(); err != nil {
		t.Fatalf("Step failed: %v", err)
	}
	if c.Snapshot().Generation != 30 {
		t.Error("Step after convergence should be a no-op")
	}
}

func TestController_AutoRunConverges(t *testing.T) {
	c := New(seededConfig(), fastOptions())
	if err := c.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	c.StartAuto()
	if !c.Snapshot().Running {
		t.Fatal("Expected running after StartAuto")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.Wait(ctx); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}

	snap := c.Snapshot()
	if !snap.Converged {
		t.Fatalf("Expected convergence, got state %s", snap.State)
	}
	if snap.Running {
		t.Error("Expected auto-run stopped after convergence")
	}
	if snap.Generation < 30 {
		t.Errorf("Expected at least 30 generations, got %d", snap.Generation)
	}
}

func TestController_StopAutoHaltsSteps(t *testing.T) {
	opts := fastOptions()
	opts.Patience = 1_000_000
	c := New(seededConfig(), opts)
	if err := c.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	c.StartAuto()
	time.Sleep(20 * time.Millisecond)
	c.StopAuto()

	gen := c.Snapshot().Generation
	time.Sleep(20 * time.Millisecond)

	snap := c.Snapshot()
	if snap.Generation != gen {
		t.Errorf("Generation advanced after StopAuto: %d -> %d", gen, snap.Generation)
	}
	if snap.Running || snap.State != StateReady {
		t.Errorf("Expected ready and not running, got %s", snap.State)
	}

	// Idempotent
	c.StopAuto()
	if err := c.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestController_StartAutoDoesNotStack(t *testing.T) {
	opts := DefaultOptions()
	opts.Interval = time.Hour
	c := New(seededConfig(), opts)
	if err := c.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	c.StartAuto()
	c.mu.Lock()
	first := c.done
	c.mu.Unlock()

	c.StartAuto()
	c.mu.Lock()
	second := c.done
	c.mu.Unlock()

	if first != second {
		t.Error("Second StartAuto registered another loop")
	}
	if c.State() != StateRunning {
		t.Errorf("Expected running, got %s", c.State())
	}
	c.Close()
}

func TestController_ResetIdempotent(t *testing.T) {
	c := New(flatConfig(), fastOptions())
	if err := c.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	for i := 0; i < 12; i++ {
		c.Step()
	}
	c.StartAuto()

	for i := 0; i < 2; i++ {
		if err := c.Reset(); err != nil {
			t.Fatalf("Reset failed: %v", err)
		}
		snap := c.Snapshot()
		if snap.Generation != 0 || snap.Stability != 0 || snap.Converged || snap.Running {
			t.Fatalf("Reset %d left residual state: gen=%d stability=%d converged=%v running=%v",
				i+1, snap.Generation, snap.Stability, snap.Converged, snap.Running)
		}
	}
	c.Close()
}

func TestController_ResetClearsConvergence(t *testing.T) {
	c := New(flatConfig(), DefaultOptions())
	c.Init()
	for i := 0; i < 30; i++ {
		c.Step()
	}
	if !c.Snapshot().Converged {
		t.Fatal("Expected converged")
	}

	if err := c.Reset(); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if c.State() != StateReady {
		t.Errorf("Expected ready after reset, got %s", c.State())
	}
}

func TestController_SetConfigAppliesOnReset(t *testing.T) {
	c := New(seededConfig(), DefaultOptions())
	c.Init()

	cfg := seededConfig()
	cfg.MinX, cfg.MaxX = 0, 9
	if err := c.SetConfig(cfg); err != nil {
		t.Fatalf("SetConfig failed: %v", err)
	}
	if len(c.Points()) != 64 {
		t.Error("Curve points must not change before reset")
	}

	c.Reset()
	if got := len(c.Points()); got != 10 {
		t.Errorf("Expected 10 curve points after reset, got %d", got)
	}

	bad := cfg
	bad.PopSize = 0
	if err := c.SetConfig(bad); err == nil {
		t.Error("Expected SetConfig to reject invalid config")
	}
}

func TestController_InitInvalidConfig(t *testing.T) {
	cfg := seededConfig()
	cfg.MinX, cfg.MaxX = 10, 0
	c := New(cfg, DefaultOptions())

	err := c.Init()
	var vErr *ga.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("Expected ValidationError, got %v", err)
	}
	snap := c.Snapshot()
	if snap.State != StateIdle || snap.LastError == "" {
		t.Errorf("Expected idle with error, got %s %q", snap.State, snap.LastError)
	}
}

func TestController_GoalSwitch(t *testing.T) {
	c := New(seededConfig(), DefaultOptions())
	c.Init()

	c.SetGoal(ga.GoalMin)
	if c.Goal() != ga.GoalMin {
		t.Fatal("Goal not updated")
	}
	for i := 0; i < 5; i++ {
		c.Step()
	}
	snap := c.Snapshot()
	for _, ind := range snap.Population {
		if ind.Y < snap.Best.Y {
			t.Fatalf("Best %v is not the minimum (found %v)", snap.Best.Y, ind.Y)
		}
	}
}

func TestController_StepErrorStopsAuto(t *testing.T) {
	// Mutation flips every bit of all-zero parents to 127, outside [0, 64].
	cfg := ga.Config{MinX: 0, MaxX: 64, PopSize: 3, MutationRate: 1, RetryBudget: 3}
	zero := []int{0, 0, 0, 0, 0, 0, 0}
	cp := store.NewCheckpoint("bad", cfg, ga.GoalMax, 0,
		[]ga.Individual{{Genes: zero}, {Genes: zero}, {Genes: zero}}, nil, 0, false)

	c := New(cfg, fastOptions())
	if err := c.Restore(cp); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}

	err := c.Step()
	if !errors.Is(err, ga.ErrRetryExhausted) {
		t.Fatalf("Expected ErrRetryExhausted, got %v", err)
	}
	if c.Snapshot().LastError == "" {
		t.Error("Expected LastError to be published")
	}

	c.StartAuto()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Wait(ctx); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	snap := c.Snapshot()
	if snap.Running || snap.Generation != 0 {
		t.Errorf("Expected auto-run stopped at generation 0, got running=%v gen=%d", snap.Running, snap.Generation)
	}
}

func TestController_CheckpointRestore(t *testing.T) {
	c := New(seededConfig(), DefaultOptions())
	c.Init()
	for i := 0; i < 8; i++ {
		c.Step()
	}
	before := c.Snapshot()

	cp, err := c.Checkpoint("run-x")
	if err != nil {
		t.Fatalf("Checkpoint failed: %v", err)
	}

	restored := New(ga.DefaultConfig(), DefaultOptions())
	if err := restored.Restore(cp); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}

	after := restored.Snapshot()
	if after.Generation != before.Generation {
		t.Errorf("Expected generation %d, got %d", before.Generation, after.Generation)
	}
	if after.Best.ID != before.Best.ID || after.Best.Y != before.Best.Y {
		t.Errorf("Expected best %+v, got %+v", before.Best, after.Best)
	}
	if after.Stability != before.Stability {
		t.Errorf("Expected stability %d, got %d", before.Stability, after.Stability)
	}
	if err := restored.Step(); err != nil {
		t.Fatalf("Step after restore failed: %v", err)
	}

	idle := New(seededConfig(), DefaultOptions())
	if _, err := idle.Checkpoint("x"); err == nil {
		t.Error("Expected error checkpointing an idle controller")
	}
}

func TestController_Observers(t *testing.T) {
	c := New(seededConfig(), DefaultOptions())

	var mu sync.Mutex
	var gens []int
	unsubscribe := c.Subscribe(func(s Snapshot) {
		mu.Lock()
		gens = append(gens, s.Generation)
		mu.Unlock()
	})

	c.Init()
	c.Step()
	c.Step()
	unsubscribe()
	c.Step()

	mu.Lock()
	defer mu.Unlock()
	expected := []int{0, 1, 2}
	if len(gens) != len(expected) {
		t.Fatalf("Expected %v, got %v", expected, gens)
	}
	for i := range expected {
		if gens[i] != expected[i] {
			t.Fatalf("Expected %v, got %v", expected, gens)
		}
	}
}

func TestController_SnapshotIsCopy(t *testing.T) {
	c := New(seededConfig(), DefaultOptions())
	c.Init()

	snap := c.Snapshot()
	snap.Population[0].Genes[0] ^= 1
	snap.Best.X = 9999

	again := c.Snapshot()
	if again.Best.X == 9999 {
		t.Error("Snapshot best shares memory with controller")
	}
	if again.Population[0].Genes[0] == snap.Population[0].Genes[0] {
		t.Error("Snapshot population shares memory with controller")
	}
}

func TestController_OversizedDomainRejected(t *testing.T) {
	cfg := seededConfig()
	cfg.MinX, cfg.MaxX = 0, 1<<60
	c := New(cfg, DefaultOptions())

	err := c.Init()
	var vErr *ga.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("Expected ValidationError, got %v", err)
	}

	// The controller must stay usable after the failed init
	if !c.mu.TryLock() {
		t.Fatal("Controller mutex left locked")
	}
	c.mu.Unlock()

	if err := c.SetConfig(cfg); err == nil {
		t.Error("Expected SetConfig to reject the oversized domain")
	}
	if err := c.SetConfig(seededConfig()); err != nil {
		t.Fatalf("SetConfig failed: %v", err)
	}
	if err := c.Reset(); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if c.State() != StateReady {
		t.Errorf("Expected ready after reset, got %s", c.State())
	}
}

func TestController_PublishedSeqIncreases(t *testing.T) {
	c := New(seededConfig(), fastOptions())

	var mu sync.Mutex
	var seqs []uint64
	c.Subscribe(func(s Snapshot) {
		mu.Lock()
		seqs = append(seqs, s.Seq)
		mu.Unlock()
	})

	if err := c.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	c.StartAuto()
	for i := 0; i < 10; i++ {
		c.Step()
	}
	c.Close()

	snap := c.Snapshot()
	mu.Lock()
	defer mu.Unlock()

	if len(seqs) == 0 {
		t.Fatal("Expected published snapshots")
	}
	// Every change gets its own sequence number
	seen := make(map[uint64]bool)
	var maxSeq uint64
	for _, s := range seqs {
		if seen[s] {
			t.Fatalf("Sequence %d published twice: %v", s, seqs)
		}
		seen[s] = true
		if s > maxSeq {
			maxSeq = s
		}
	}
	if maxSeq != snap.Seq {
		t.Errorf("Expected latest snapshot seq %d, got %d", maxSeq, snap.Seq)
	}
	// Init plus one per generation
	if want := uint64(snap.Generation) + 1; snap.Seq != want {
		t.Errorf("Expected seq %d for generation %d, got %d", want, snap.Generation, snap.Seq)
	}
}
