package opt

import (
	"math"
	"testing"

	"github.com/cwbudde/polyga/internal/ga"
)

// Sphere function: f(x) = sum(x_i^2), minimum at origin
func sphere(x []float64) float64 {
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return sum
}

func TestMayflyAdapterOnSphere(t *testing.T) {
	optimizer := NewMayfly(100, 20, 42)

	dim := 3
	lower := make([]float64, dim)
	upper := make([]float64, dim)
	for i := 0; i < dim; i++ {
		lower[i] = -10
		upper[i] = 10
	}

	best, cost := optimizer.Run(sphere, lower, upper, dim)

	if len(best) != dim {
		t.Fatalf("Expected %d parameters, got %d", dim, len(best))
	}
	if cost > 0.1 {
		t.Errorf("Expected cost near 0, got %f", cost)
	}
	for i, v := range best {
		if math.Abs(v) > 1.0 {
			t.Errorf("Parameter %d = %f, expected near 0", i, v)
		}
	}
}

func TestMayflyAdapterDeterministic(t *testing.T) {
	lower := []float64{-5, -5}
	upper := []float64{5, 5}

	_, cost1 := NewMayfly(50, 20, 123).Run(sphere, lower, upper, 2)
	_, cost2 := NewMayfly(50, 20, 123).Run(sphere, lower, upper, 2)

	if cost1 != cost2 {
		t.Errorf("Non-deterministic: cost1=%f, cost2=%f", cost1, cost2)
	}
}

func TestMayflyMinPopSize(t *testing.T) {
	m := NewMayfly(10, 5, 1).(*MayflyAdapter)
	if m.popSize != MinMayflyPopSize {
		t.Errorf("Expected pop size raised to %d, got %d", MinMayflyPopSize, m.popSize)
	}
}

func TestExact(t *testing.T) {
	cfg := ga.DefaultConfig()

	maxPt := Exact(cfg, ga.GoalMax)
	if maxPt.X != 53 || maxPt.Y != 36861 {
		t.Errorf("Expected max at (53, 36861), got %+v", maxPt)
	}

	minPt := Exact(cfg, ga.GoalMin)
	if minPt.X != 31 || minPt.Y != -29579 {
		t.Errorf("Expected min at (31, -29579), got %+v", minPt)
	}
}

// fixedOptimizer returns a preset position regardless of the objective.
type fixedOptimizer struct {
	x float64
}

func (f fixedOptimizer) Run(eval func([]float64) float64, lower, upper []float64, dim int) ([]float64, float64) {
	pos := []float64{f.x}
	return pos, eval(pos)
}

func TestSolveRounding(t *testing.T) {
	cfg := ga.DefaultConfig()

	ref := Solve(cfg, ga.GoalMin, fixedOptimizer{x: 30.97})
	if ref.Rounded.X != 31 {
		t.Errorf("Expected rounded min at 31, got %d", ref.Rounded.X)
	}
	if ref.Exact.X != 31 {
		t.Errorf("Expected exact min at 31, got %d", ref.Exact.X)
	}

	// Out-of-range answers are clamped into the domain
	ref = Solve(cfg, ga.GoalMax, fixedOptimizer{x: 80})
	if ref.ContinuousX != 53 || ref.Rounded.X != 53 {
		t.Errorf("Expected clamp to 53, got %v / %d", ref.ContinuousX, ref.Rounded.X)
	}
}

func TestSolveWithMayfly(t *testing.T) {
	cfg := ga.DefaultConfig()

	ref := Solve(cfg, ga.GoalMax, NewMayfly(100, 20, 7))
	if ref.ContinuousX < float64(cfg.MinX) || ref.ContinuousX > float64(cfg.MaxX) {
		t.Fatalf("Continuous optimum %v outside domain", ref.ContinuousX)
	}
	if ref.Rounded.Y > ref.Exact.Y {
		t.Errorf("Rounded answer %v beats the exact maximum %v", ref.Rounded.Y, ref.Exact.Y)
	}
	if ref.Exact.X != 53 {
		t.Errorf("Expected exact max at 53, got %d", ref.Exact.X)
	}
}

func TestBestCorner(t *testing.T) {
	// Decreasing on [0, 4]: the upper corner wins
	pos, cost := bestCorner(func(x []float64) float64 { return -x[0] }, []float64{0}, []float64{4}, 1)
	if pos[0] != 4 || cost != -4 {
		t.Errorf("Expected (4, -4), got (%v, %v)", pos[0], cost)
	}

	// Ties keep the lower corner
	pos, _ = bestCorner(func([]float64) float64 { return 1 }, []float64{-2}, []float64{2}, 1)
	if pos[0] != -2 {
		t.Errorf("Expected lower corner on tie, got %v", pos[0])
	}
}

func TestClampBox(t *testing.T) {
	got := clampBox([]float64{-11, 3.5, 60}, -10, 53)
	want := []float64{-10, 3.5, 53}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("clampBox[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}
