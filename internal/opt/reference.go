package opt

import (
	"math"

	"github.com/cwbudde/polyga/internal/ga"
)

// Reference compares the GA against two independent answers for the same
// cubic: a continuous optimum from an Optimizer and the exact discrete
// optimum from scanning the domain.
type Reference struct {
	Goal ga.Goal `json:"goal"`

	// ContinuousX/Y is the optimizer's answer over the real interval
	ContinuousX float64 `json:"continuousX"`
	ContinuousY float64 `json:"continuousY"`

	// Rounded is the better integer neighbour of ContinuousX
	Rounded ga.Point `json:"rounded"`

	// Exact is the true discrete optimum (earliest x on ties)
	Exact ga.Point `json:"exact"`
}

// Exact scans every integer in the domain and returns the best point.
func Exact(cfg ga.Config, goal ga.Goal) ga.Point {
	points := ga.FunctionPoints(cfg)
	best := points[0]
	for _, p := range points[1:] {
		if goal.Better(p.Y, best.Y) {
			best = p
		}
	}
	return best
}

// Solve runs optimizer on f over [MinX, MaxX]. The optimizer minimizes, so
// the objective is negated for GoalMax.
func Solve(cfg ga.Config, goal ga.Goal, optimizer Optimizer) Reference {
	sign := 1.0
	if goal == ga.GoalMax {
		sign = -1.0
	}
	eval := func(x []float64) float64 {
		return sign * cfg.EvalAt(clampX(cfg, x[0]))
	}

	lower := []float64{float64(cfg.MinX)}
	upper := []float64{float64(cfg.MaxX)}
	best, _ := optimizer.Run(eval, lower, upper, 1)

	x := clampX(cfg, best[0])
	ref := Reference{
		Goal:        goal,
		ContinuousX: x,
		ContinuousY: cfg.EvalAt(x),
		Exact:       Exact(cfg, goal),
	}

	lo := int(math.Floor(x))
	hi := int(math.Ceil(x))
	ref.Rounded = ga.Point{X: lo, Y: cfg.Eval(lo)}
	if hi != lo {
		if y := cfg.Eval(hi); goal.Better(y, ref.Rounded.Y) {
			ref.Rounded = ga.Point{X: hi, Y: y}
		}
	}
	return ref
}

func clampX(cfg ga.Config, x float64) float64 {
	return math.Max(float64(cfg.MinX), math.Min(float64(cfg.MaxX), x))
}
