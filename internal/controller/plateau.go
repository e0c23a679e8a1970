package controller

import "log/slog"

// PlateauTracker detects convergence as a run of consecutive steps whose
// best fitness is exactly equal to the last recorded value.
type PlateauTracker struct {
	patience   int
	last       float64
	hasLast    bool
	staleCount int
}

// NewPlateauTracker creates a tracker that converges after patience
// unchanged steps.
func NewPlateauTracker(patience int) *PlateauTracker {
	return &PlateauTracker{patience: patience}
}

// Reset clears the stale counter and records the starting best value.
func (p *PlateauTracker) Reset(initial float64) {
	p.last = initial
	p.hasLast = true
	p.staleCount = 0
}

// Clear forgets everything, as if no engine existed.
func (p *PlateauTracker) Clear() {
	p.last = 0
	p.hasLast = false
	p.staleCount = 0
}

// Restore sets the tracker to a previously saved state.
func (p *PlateauTracker) Restore(last *float64, staleCount int) {
	p.hasLast = last != nil
	p.last = 0
	if last != nil {
		p.last = *last
	}
	p.staleCount = staleCount
}

// Update records the best value after a step and reports whether the
// plateau has lasted long enough to count as converged.
func (p *PlateauTracker) Update(best float64) bool {
	if p.hasLast && best == p.last {
		p.staleCount++
	} else {
		p.staleCount = 0
		p.last = best
		p.hasLast = true
	}

	if p.staleCount >= p.patience {
		slog.Info("Convergence detected",
			"stale_count", p.staleCount,
			"patience", p.patience,
			"best_y", p.last,
		)
		return true
	}
	return false
}

// StaleCount returns the number of consecutive unchanged steps.
func (p *PlateauTracker) StaleCount() int {
	return p.staleCount
}

// Last returns the recorded best value, or nil if none.
func (p *PlateauTracker) Last() *float64 {
	if !p.hasLast {
		return nil
	}
	v := p.last
	return &v
}
