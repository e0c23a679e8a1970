// Package opt computes reference optima for the cubic with continuous
// optimizers, independent of the genetic algorithm.
package opt

// Optimizer minimizes eval over the box [lower, upper] in dim dimensions and
// returns the best position and its cost.
type Optimizer interface {
	Run(eval func([]float64) float64, lower, upper []float64, dim int) ([]float64, float64)
}
