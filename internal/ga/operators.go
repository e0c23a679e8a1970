package ga

const tournamentSize = 3

// Decode maps genes (most significant bit first) to minX + unsigned value.
func Decode(genes []int, minX int) int {
	v := 0
	for _, bit := range genes {
		v = v<<1 | (bit & 1)
	}
	return minX + v
}

// randomGenes draws length independent uniform bits.
func randomGenes(src Source, length int) []int {
	genes := make([]int, length)
	for i := range genes {
		genes[i] = src.IntN(2)
	}
	return genes
}

// TournamentSelect draws three individuals with replacement and returns the
// index of the best one. Ties keep the first drawn.
func TournamentSelect(pop []Individual, goal Goal, src Source) int {
	bestIdx := src.IntN(len(pop))
	for i := 1; i < tournamentSize; i++ {
		idx := src.IntN(len(pop))
		if goal.Better(pop[idx].Y, pop[bestIdx].Y) {
			bestIdx = idx
		}
	}
	return bestIdx
}

// Crossover performs single point crossover with a cut in [0, L).
// The child takes p1 before the cut and p2 from the cut onward.
func Crossover(p1, p2 []int, src Source) []int {
	child := make([]int, len(p1))
	if len(p1) == 0 {
		return child
	}
	point := src.IntN(len(p1))
	copy(child, p1[:point])
	copy(child[point:], p2[point:])
	return child
}

// Mutate flips every bit independently with probability rate and returns
// a new slice.
func Mutate(genes []int, rate float64, src Source) []int {
	out := make([]int, len(genes))
	for i, bit := range genes {
		if src.Float64() < rate {
			out[i] = 1 - bit
		} else {
			out[i] = bit
		}
	}
	return out
}

// BestIndex scans the population and returns the index of the best
// individual under goal. Ties keep the earliest. Panics on an empty
// population.
func BestIndex(pop []Individual, goal Goal) int {
	if len(pop) == 0 {
		panic("ga: best of empty population")
	}
	best := 0
	for i := 1; i < len(pop); i++ {
		if goal.Better(pop[i].Y, pop[best].Y) {
			best = i
		}
	}
	return best
}
