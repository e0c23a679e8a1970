package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cwbudde/polyga/internal/ga"
	"github.com/cwbudde/polyga/internal/store"
)

// State is the lifecycle state of a Controller.
type State string

const (
	StateIdle      State = "idle"
	StateReady     State = "ready"
	StateRunning   State = "running"
	StateConverged State = "converged"
)

// Options configures a Controller.
type Options struct {
	// Interval between automatic steps
	Interval time.Duration
	// Patience is the number of consecutive unchanged best values that
	// count as convergence
	Patience int
	// Goal is the initial optimization goal
	Goal ga.Goal
}

// DefaultOptions returns a 50ms auto-run period and a patience of 30.
func DefaultOptions() Options {
	return Options{
		Interval: 50 * time.Millisecond,
		Patience: 30,
		Goal:     ga.GoalMax,
	}
}

// Controller sequences generations of one Engine, either one step at a
// time or automatically on a ticker, and publishes snapshots of its state.
// All methods are safe for concurrent use. Steps never overlap.
type Controller struct {
	mu sync.Mutex

	cfg  ga.Config
	opts Options
	goal ga.Goal

	engine    *ga.Engine
	tracker   *PlateauTracker
	running   bool
	converged bool
	lastErr   error
	// seq increases with every published change
	seq uint64

	// published state, refreshed after every step
	population []ga.Individual
	generation int
	best       *ga.Individual
	stats      ga.Stats
	points     []ga.Point

	// auto-run loop; stop is closed to cancel, done is closed on exit
	stop chan struct{}
	done chan struct{}

	obsMu     sync.Mutex
	observers map[int]func(Snapshot)
	nextObsID int
}

// New creates an idle controller. Call Init to create the engine.
func New(cfg ga.Config, opts Options) *Controller {
	def := DefaultOptions()
	if opts.Interval <= 0 {
		opts.Interval = def.Interval
	}
	if opts.Patience <= 0 {
		opts.Patience = def.Patience
	}
	if opts.Goal == "" {
		opts.Goal = def.Goal
	}
	return &Controller{
		cfg:       cfg,
		opts:      opts,
		goal:      opts.Goal,
		tracker:   NewPlateauTracker(opts.Patience),
		observers: make(map[int]func(Snapshot)),
	}
}

// Init (re)creates the engine from the current configuration and clears
// convergence tracking.
func (c *Controller) Init() error {
	snap, err := c.publish(func() (bool, error) {
		return true, c.initLocked()
	})
	c.notify(snap)
	return err
}

// publish runs fn under the lock. When fn reports a change the sequence
// number advances and the returned snapshot should be sent to observers.
// The deferred unlock keeps the controller usable if fn panics.
func (c *Controller) publish(fn func() (bool, error)) (*Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	changed, err := fn()
	if !changed {
		return nil, err
	}
	c.seq++
	snap := c.snapshotLocked()
	return &snap, err
}

// Reset stops automatic running and re-initializes.
func (c *Controller) Reset() error {
	snap, err := c.publish(func() (bool, error) {
		c.stopLocked()
		return true, c.initLocked()
	})

	slog.Info("Controller reset", "generation", snap.Generation, "goal", snap.Goal)
	c.notify(snap)
	return err
}

func (c *Controller) initLocked() error {
	engine, err := ga.NewEngine(c.cfg, nil)
	if err != nil {
		c.engine = nil
		c.population, c.best, c.points = nil, nil, nil
		c.generation = 0
		c.stats = ga.Stats{}
		c.tracker.Clear()
		c.converged = false
		c.lastErr = err
		return fmt.Errorf("failed to create engine: %w", err)
	}

	c.engine = engine
	c.points = engine.FunctionPoints()
	c.refreshLocked()
	c.tracker.Reset(c.best.Y)
	c.converged = false
	c.lastErr = nil

	slog.Debug("Engine initialized", "pop_size", c.cfg.PopSize, "gene_length", engine.GeneLength(), "best_y", c.best.Y)
	return nil
}

// Step advances one generation. It is a no-op when no engine exists or the
// run has converged.
func (c *Controller) Step() error {
	snap, err := c.publish(c.stepLocked)
	c.notify(snap)
	return err
}

// stepLocked reports whether published state changed.
func (c *Controller) stepLocked() (bool, error) {
	if c.engine == nil || c.converged {
		return false, nil
	}

	if err := c.engine.NextGeneration(c.goal); err != nil {
		c.lastErr = err
		c.stopLocked()
		return true, err
	}
	c.lastErr = nil
	c.refreshLocked()

	slog.Debug("Generation complete",
		"generation", c.generation,
		"goal", c.goal,
		"best_x", c.best.X,
		"best_y", c.best.Y,
	)

	if c.tracker.Update(c.best.Y) {
		c.stopLocked()
		c.converged = true
		slog.Info("Run converged", "generation", c.generation, "best_x", c.best.X, "best_y", c.best.Y)
	}
	return true, nil
}

func (c *Controller) refreshLocked() {
	c.population = c.engine.Population()
	c.generation = c.engine.Generation()
	best := c.engine.Best(c.goal)
	c.best = &best
	c.stats = ga.PopulationStats(c.population)
}

// StartAuto begins stepping on the configured interval. It is a no-op when
// already running, converged, or uninitialized.
func (c *Controller) StartAuto() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running || c.converged || c.engine == nil {
		return
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	c.stop, c.done = stop, done
	c.running = true

	slog.Info("Auto-run started", "interval", c.opts.Interval, "generation", c.generation)
	go c.loop(stop, done)
}

// StopAuto cancels automatic stepping. No step starts after it returns.
func (c *Controller) StopAuto() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

func (c *Controller) stopLocked() {
	if !c.running {
		return
	}
	c.running = false
	close(c.stop)
	c.stop = nil
	slog.Debug("Auto-run stopped", "generation", c.generation)
}

func (c *Controller) loop(stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(c.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			stopped := false
			snap, err := c.publish(func() (bool, error) {
				// StopAuto may have won the race for the lock
				select {
				case <-stop:
					stopped = true
					return false, nil
				default:
				}
				return c.stepLocked()
			})
			if stopped {
				return
			}
			if err != nil {
				slog.Error("Auto-run step failed", "error", err)
			}
			c.notify(snap)
		}
	}
}

// Wait blocks until the current auto-run ends (stopped, converged or
// failed) or ctx is done. It returns immediately when not running.
// Must not be called from an observer.
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()

	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops automatic running and waits for the loop to exit.
// Must not be called from an observer.
func (c *Controller) Close() error {
	c.StopAuto()
	return c.Wait(context.Background())
}

// SetGoal changes the goal used by the next step.
func (c *Controller) SetGoal(goal ga.Goal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.goal = goal
}

// Goal returns the active goal.
func (c *Controller) Goal() ga.Goal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.goal
}

// SetConfig replaces the configuration used by the next Init or Reset.
func (c *Controller) SetConfig(cfg ga.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg = cfg
	return nil
}

// Config returns the configuration used by the next Init or Reset.
func (c *Controller) Config() ga.Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

// Subscribe registers fn to receive a snapshot after every init, reset and
// step. Observers run on the stepping goroutine and must not block.
// The returned function removes the observer.
func (c *Controller) Subscribe(fn func(Snapshot)) func() {
	c.obsMu.Lock()
	defer c.obsMu.Unlock()

	id := c.nextObsID
	c.nextObsID++
	c.observers[id] = fn

	return func() {
		c.obsMu.Lock()
		defer c.obsMu.Unlock()
		delete(c.observers, id)
	}
}

// notify delivers snap to every observer. A nil snap is a no-op.
func (c *Controller) notify(snap *Snapshot) {
	if snap == nil {
		return
	}
	c.obsMu.Lock()
	fns := make([]func(Snapshot), 0, len(c.observers))
	for _, fn := range c.observers {
		fns = append(fns, fn)
	}
	c.obsMu.Unlock()

	for _, fn := range fns {
		fn(*snap)
	}
}

// Checkpoint captures the run so it can be restored later.
func (c *Controller) Checkpoint(runID string) (*store.Checkpoint, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.engine == nil {
		return nil, errors.New("controller not initialized")
	}
	return store.NewCheckpoint(
		runID,
		c.engine.Config(),
		c.goal,
		c.generation,
		c.engine.Population(),
		c.tracker.Last(),
		c.tracker.StaleCount(),
		c.converged,
	), nil
}

// Restore replaces the engine and tracking state with a checkpoint. Any
// auto-run is stopped first.
func (c *Controller) Restore(cp *store.Checkpoint) error {
	if err := cp.Validate(); err != nil {
		return fmt.Errorf("invalid checkpoint: %w", err)
	}

	engine, err := ga.Restore(cp.Config, cp.Population, cp.Generation, nil)
	if err != nil {
		return fmt.Errorf("failed to restore engine: %w", err)
	}

	snap, _ := c.publish(func() (bool, error) {
		c.stopLocked()
		c.cfg = cp.Config
		c.goal = cp.Goal
		c.engine = engine
		c.points = engine.FunctionPoints()
		c.refreshLocked()
		c.tracker.Restore(cp.LastBestY, cp.Stability)
		c.converged = cp.Converged
		c.lastErr = nil
		return true, nil
	})

	slog.Info("Controller restored", "run_id", cp.RunID, "generation", cp.Generation, "converged", cp.Converged)
	c.notify(snap)
	return nil
}
