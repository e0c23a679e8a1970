package store

import (
	"fmt"
	"time"

	"github.com/cwbudde/polyga/internal/ga"
)

// Checkpoint is a saved run: the full population plus the convergence
// tracking state, enough to continue exactly where the run stopped apart
// from the random stream.
type Checkpoint struct {
	RunID      string          `json:"runId"`
	Config     ga.Config       `json:"config"`
	Goal       ga.Goal         `json:"goal"`
	Generation int             `json:"generation"`
	Population []ga.Individual `json:"population"`

	// LastBestY and Stability restore the plateau tracker
	LastBestY *float64 `json:"lastBestY,omitempty"`
	Stability int      `json:"stability"`
	Converged bool     `json:"converged"`

	Timestamp time.Time `json:"timestamp"`
}

// CheckpointInfo is checkpoint metadata without the population.
type CheckpointInfo struct {
	RunID      string    `json:"runId"`
	Goal       ga.Goal   `json:"goal"`
	Generation int       `json:"generation"`
	BestX      int       `json:"bestX"`
	BestY      float64   `json:"bestY"`
	PopSize    int       `json:"popSize"`
	Converged  bool      `json:"converged"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewCheckpoint creates a checkpoint from run state.
func NewCheckpoint(runID string, cfg ga.Config, goal ga.Goal, generation int, population []ga.Individual, lastBestY *float64, stability int, converged bool) *Checkpoint {
	return &Checkpoint{
		RunID:      runID,
		Config:     cfg,
		Goal:       goal,
		Generation: generation,
		Population: population,
		LastBestY:  lastBestY,
		Stability:  stability,
		Converged:  converged,
		Timestamp:  time.Now(),
	}
}

// Best returns the best individual under the checkpoint's goal.
func (c *Checkpoint) Best() ga.Individual {
	return c.Population[ga.BestIndex(c.Population, c.Goal)]
}

// ToInfo converts a full Checkpoint to CheckpointInfo.
func (c *Checkpoint) ToInfo() CheckpointInfo {
	info := CheckpointInfo{
		RunID:      c.RunID,
		Goal:       c.Goal,
		Generation: c.Generation,
		PopSize:    len(c.Population),
		Converged:  c.Converged,
		Timestamp:  c.Timestamp,
	}
	if len(c.Population) > 0 {
		best := c.Best()
		info.BestX, info.BestY = best.X, best.Y
	}
	return info
}

// Validate checks the checkpoint for missing or inconsistent data. Gene
// level checks happen when the engine is restored.
func (c *Checkpoint) Validate() error {
	if c.RunID == "" {
		return &ValidationError{Field: "RunID", Reason: "cannot be empty"}
	}
	if _, err := ga.ParseGoal(string(c.Goal)); err != nil {
		return &ValidationError{Field: "Goal", Reason: err.Error()}
	}
	if err := c.Config.Validate(); err != nil {
		return &ValidationError{Field: "Config", Reason: err.Error()}
	}
	if len(c.Population) == 0 {
		return &ValidationError{Field: "Population", Reason: "cannot be empty"}
	}
	if len(c.Population) != c.Config.PopSize {
		return &ValidationError{
			Field:  "Population",
			Reason: fmt.Sprintf("length mismatch: expected %d individuals, got %d", c.Config.PopSize, len(c.Population)),
		}
	}
	if c.Generation < 0 {
		return &ValidationError{Field: "Generation", Reason: "cannot be negative"}
	}
	if c.Stability < 0 {
		return &ValidationError{Field: "Stability", Reason: "cannot be negative"}
	}
	if c.Timestamp.IsZero() {
		return &ValidationError{Field: "Timestamp", Reason: "cannot be zero"}
	}
	return nil
}

// ValidationError represents a checkpoint validation error.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}
