package ga

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Stats summarizes population fitness.
type Stats struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stdDev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// PopulationStats computes fitness statistics. An empty population yields
// the zero value.
func PopulationStats(pop []Individual) Stats {
	if len(pop) == 0 {
		return Stats{}
	}
	ys := make([]float64, len(pop))
	for i, ind := range pop {
		ys[i] = ind.Y
	}

	var s Stats
	if len(ys) == 1 {
		s.Mean = ys[0]
	} else {
		s.Mean, s.StdDev = stat.MeanStdDev(ys, nil)
	}
	s.Min = floats.Min(ys)
	s.Max = floats.Max(ys)
	return s
}
