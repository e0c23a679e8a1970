package opt

import (
	"log/slog"
	"math/rand"

	"github.com/cwbudde/mayfly"
)

// MinMayflyPopSize is the smallest population mayfly v0.1.0 accepts.
const MinMayflyPopSize = 20

// MayflyAdapter answers Solve's continuous question (where on [minX, maxX]
// does the cubic peak) with the mayfly swarm optimizer. The library takes a
// single scalar bound pair, which is exact for the one-dimensional cubic.
type MayflyAdapter struct {
	maxIters int
	popSize  int
	seed     int64
}

// NewMayfly returns a seeded mayfly optimizer. popSize is raised to
// MinMayflyPopSize when smaller.
func NewMayfly(maxIters, popSize int, seed int64) Optimizer {
	if popSize < MinMayflyPopSize {
		popSize = MinMayflyPopSize
	}
	return &MayflyAdapter{
		maxIters: maxIters,
		popSize:  popSize,
		seed:     seed,
	}
}

// Run minimizes eval inside [lower[0], upper[0]] in every dimension. If the
// swarm fails, the better of the two box corners is returned.
func (m *MayflyAdapter) Run(eval func([]float64) float64, lower, upper []float64, dim int) ([]float64, float64) {
	cfg := mayfly.NewDefaultConfig()
	cfg.ObjectiveFunc = eval
	cfg.ProblemSize = dim
	cfg.MaxIterations = m.maxIters
	cfg.NPop = m.popSize
	cfg.LowerBound = lower[0]
	cfg.UpperBound = upper[0]
	cfg.Rand = rand.New(rand.NewSource(m.seed))

	result, err := mayfly.Optimize(cfg)
	if err != nil {
		slog.Warn("Mayfly failed, using best bound", "dim", dim, "error", err)
		return bestCorner(eval, lower, upper, dim)
	}

	pos := clampBox(result.GlobalBest.Position, lower[0], upper[0])
	return pos, eval(pos)
}

// bestCorner evaluates the all-lower and all-upper corners.
func bestCorner(eval func([]float64) float64, lower, upper []float64, dim int) ([]float64, float64) {
	lo := append([]float64(nil), lower[:dim]...)
	hi := append([]float64(nil), upper[:dim]...)
	loCost, hiCost := eval(lo), eval(hi)
	if hiCost < loCost {
		return hi, hiCost
	}
	return lo, loCost
}

func clampBox(pos []float64, lower, upper float64) []float64 {
	out := make([]float64, len(pos))
	for i, v := range pos {
		out[i] = min(max(v, lower), upper)
	}
	return out
}
