package ga

import (
	"fmt"
	"math"
	"math/bits"
)

// Goal selects the direction of optimization.
type Goal string

const (
	GoalMax Goal = "max"
	GoalMin Goal = "min"
)

// ParseGoal converts a user supplied string into a Goal.
func ParseGoal(s string) (Goal, error) {
	switch Goal(s) {
	case GoalMax, GoalMin:
		return Goal(s), nil
	default:
		return "", fmt.Errorf("unknown goal %q (expected max or min)", s)
	}
}

// Better reports whether fitness a strictly beats fitness b under the goal.
func (g Goal) Better(a, b float64) bool {
	if g == GoalMin {
		return a < b
	}
	return a > b
}

// Opposite returns the other goal.
func (g Goal) Opposite() Goal {
	if g == GoalMin {
		return GoalMax
	}
	return GoalMin
}

// Individual is one candidate solution. Genes are the source of truth;
// X and Y are derived from them and never set independently.
type Individual struct {
	ID    string  `json:"id"`
	Genes []int   `json:"genes"`
	X     int     `json:"x"`
	Y     float64 `json:"y"`
}

// Clone returns a copy that does not share the gene slice.
func (ind Individual) Clone() Individual {
	genes := make([]int, len(ind.Genes))
	copy(genes, ind.Genes)
	ind.Genes = genes
	return ind
}

// Point is one sample of the fitness curve.
type Point struct {
	X int     `json:"x"`
	Y float64 `json:"y"`
}

// Config is the immutable configuration of one engine instance.
type Config struct {
	// Coefficients of f(x) = A + B*x + C*x^2 + D*x^3
	A float64 `json:"a" toml:"a"`
	B float64 `json:"b" toml:"b"`
	C float64 `json:"c" toml:"c"`
	D float64 `json:"d" toml:"d"`

	// Inclusive phenotype domain
	MinX int `json:"minX" toml:"min_x"`
	MaxX int `json:"maxX" toml:"max_x"`

	PopSize      int     `json:"popSize" toml:"pop_size"`
	MutationRate float64 `json:"mutationRate" toml:"mutation_rate"`

	// Seed for the randomness source (0 for a random seed)
	Seed uint64 `json:"seed,omitempty" toml:"seed"`

	// RetryBudget caps rejection sampling per produced individual (0 = default)
	RetryBudget int `json:"retryBudget,omitempty" toml:"retry_budget"`
}

// DefaultRetryBudget is the number of attempts allowed to produce one
// in-domain individual before the engine gives up.
const DefaultRetryBudget = 1000

// MaxDomainSpan is the largest number of integers [MinX, MaxX] may hold.
// The full curve is sampled on every init.
const MaxDomainSpan = 1 << 20

// DefaultConfig returns the demonstration cubic over [-10, 53].
func DefaultConfig() Config {
	return Config{
		A:            26,
		B:            6,
		C:            -93,
		D:            2,
		MinX:         -10,
		MaxX:         53,
		PopSize:      20,
		MutationRate: 0.1,
	}
}

// Eval computes f(x) at an integer phenotype.
func (c Config) Eval(x int) float64 {
	return c.EvalAt(float64(x))
}

// EvalAt computes f(x) for any real x.
func (c Config) EvalAt(x float64) float64 {
	return c.A + c.B*x + c.C*x*x + c.D*x*x*x
}

// GeneLength returns ceil(log2(maxX - minX + 1)), the number of bits needed
// to address every phenotype in the domain.
func (c Config) GeneLength() int {
	span := c.MaxX - c.MinX + 1
	if span <= 1 {
		return 0
	}
	return bits.Len(uint(span - 1))
}

// InDomain reports whether x lies in [MinX, MaxX].
func (c Config) InDomain(x int) bool {
	return x >= c.MinX && x <= c.MaxX
}

func (c Config) retryBudget() int {
	if c.RetryBudget <= 0 {
		return DefaultRetryBudget
	}
	return c.RetryBudget
}

// Validate checks the configuration for values the engine cannot work with.
func (c Config) Validate() error {
	for _, coef := range []struct {
		name string
		v    float64
	}{{"A", c.A}, {"B", c.B}, {"C", c.C}, {"D", c.D}} {
		if math.IsNaN(coef.v) || math.IsInf(coef.v, 0) {
			return &ValidationError{Field: coef.name, Reason: "must be finite"}
		}
	}
	if c.MinX > c.MaxX {
		return &ValidationError{Field: "MinX", Reason: fmt.Sprintf("must not exceed MaxX (%d > %d)", c.MinX, c.MaxX)}
	}
	// MinX <= MaxX here, so the unsigned difference is exact
	if uint64(c.MaxX)-uint64(c.MinX) >= MaxDomainSpan {
		return &ValidationError{Field: "MaxX", Reason: fmt.Sprintf("domain holds more than %d integers", MaxDomainSpan)}
	}
	if c.PopSize < 1 {
		return &ValidationError{Field: "PopSize", Reason: "must be positive"}
	}
	if math.IsNaN(c.MutationRate) || c.MutationRate < 0 || c.MutationRate > 1 {
		return &ValidationError{Field: "MutationRate", Reason: "must be in [0, 1]"}
	}
	if c.RetryBudget < 0 {
		return &ValidationError{Field: "RetryBudget", Reason: "cannot be negative"}
	}
	return nil
}
