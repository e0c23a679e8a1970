package controller

import "github.com/cwbudde/polyga/internal/ga"

// Snapshot is a read-only copy of controller state for renderers.
type Snapshot struct {
	// Seq increases with every published change; observers can drop a
	// snapshot whose Seq is not newer than the last one they saw.
	Seq        uint64          `json:"seq"`
	State      State           `json:"state"`
	Goal       ga.Goal         `json:"goal"`
	Generation int             `json:"generation"`
	Population []ga.Individual `json:"population"`
	Best       *ga.Individual  `json:"best,omitempty"`
	Running    bool            `json:"running"`
	Converged  bool            `json:"converged"`
	Stability  int             `json:"stability"`
	LastBestY  *float64        `json:"lastBestY,omitempty"`
	Stats      ga.Stats        `json:"stats"`
	GeneLength int             `json:"geneLength"`
	Config     ga.Config       `json:"config"`
	LastError  string          `json:"lastError,omitempty"`

	// Points is the sampled fitness curve; omitted from JSON because it
	// only changes on init and has its own endpoint.
	Points []ga.Point `json:"-"`
}

// Snapshot returns a copy of the published state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// State returns the lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

// Points returns the cached curve samples.
func (c *Controller) Points() []ga.Point {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ga.Point(nil), c.points...)
}

func (c *Controller) stateLocked() State {
	switch {
	case c.engine == nil:
		return StateIdle
	case c.converged:
		return StateConverged
	case c.running:
		return StateRunning
	default:
		return StateReady
	}
}

func (c *Controller) snapshotLocked() Snapshot {
	s := Snapshot{
		Seq:        c.seq,
		State:      c.stateLocked(),
		Goal:       c.goal,
		Generation: c.generation,
		Running:    c.running,
		Converged:  c.converged,
		Stability:  c.tracker.StaleCount(),
		LastBestY:  c.tracker.Last(),
		Stats:      c.stats,
		Config:     c.cfg,
		Points:     append([]ga.Point(nil), c.points...),
	}
	if c.engine != nil {
		s.GeneLength = c.engine.GeneLength()
		s.Config = c.engine.Config()
	}
	if c.population != nil {
		s.Population = make([]ga.Individual, len(c.population))
		for i, ind := range c.population {
			s.Population[i] = ind.Clone()
		}
	}
	if c.best != nil {
		best := c.best.Clone()
		s.Best = &best
	}
	if c.lastErr != nil {
		s.LastError = c.lastErr.Error()
	}
	return s
}
