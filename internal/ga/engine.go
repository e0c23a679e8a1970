package ga

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"
)

// Engine owns a fixed-size population and advances it one generation per
// call to NextGeneration. It is not safe for concurrent use.
type Engine struct {
	cfg        Config
	rng        Source
	ids        io.Reader
	geneLen    int
	population []Individual
	generation int
}

// NewEngine validates cfg and seeds the initial population. A nil src uses
// NewSource(cfg.Seed).
func NewEngine(cfg Config, src Source) (*Engine, error) {
	e, err := newEngine(cfg, src)
	if err != nil {
		return nil, err
	}

	pop := make([]Individual, 0, cfg.PopSize)
	for len(pop) < cfg.PopSize {
		ind, err := e.seedIndividual()
		if err != nil {
			return nil, err
		}
		pop = append(pop, ind)
	}
	e.population = pop

	slog.Debug("Engine seeded", "pop_size", cfg.PopSize, "gene_length", e.geneLen)
	return e, nil
}

// Restore rebuilds an engine from a saved population. X and Y are
// recomputed from genes; IDs are kept.
func Restore(cfg Config, pop []Individual, generation int, src Source) (*Engine, error) {
	e, err := newEngine(cfg, src)
	if err != nil {
		return nil, err
	}
	if len(pop) != cfg.PopSize {
		return nil, &ValidationError{Field: "Population", Reason: fmt.Sprintf("has %d individuals, want %d", len(pop), cfg.PopSize)}
	}
	if generation < 0 {
		return nil, &ValidationError{Field: "Generation", Reason: "cannot be negative"}
	}

	restored := make([]Individual, len(pop))
	for i, ind := range pop {
		if len(ind.Genes) != e.geneLen {
			return nil, &ValidationError{Field: "Population", Reason: fmt.Sprintf("individual %d has %d genes, want %d", i, len(ind.Genes), e.geneLen)}
		}
		for _, bit := range ind.Genes {
			if bit != 0 && bit != 1 {
				return nil, &ValidationError{Field: "Population", Reason: fmt.Sprintf("individual %d has non-binary gene %d", i, bit)}
			}
		}
		x := Decode(ind.Genes, cfg.MinX)
		if !cfg.InDomain(x) {
			return nil, &ValidationError{Field: "Population", Reason: fmt.Sprintf("individual %d decodes to %d outside [%d, %d]", i, x, cfg.MinX, cfg.MaxX)}
		}
		id := ind.ID
		if id == "" {
			id = e.newID()
		}
		restored[i] = e.newIndividual(id, append([]int(nil), ind.Genes...), x)
	}

	e.population = restored
	e.generation = generation
	return e, nil
}

func newEngine(cfg Config, src Source) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if src == nil {
		src = NewSource(cfg.Seed)
	}
	return &Engine{
		cfg:     cfg,
		rng:     src,
		ids:     sourceReader{src: src},
		geneLen: cfg.GeneLength(),
	}, nil
}

// seedIndividual draws random genes until they decode inside the domain.
func (e *Engine) seedIndividual() (Individual, error) {
	budget := e.cfg.retryBudget()
	for attempt := 0; attempt < budget; attempt++ {
		genes := randomGenes(e.rng, e.geneLen)
		x := Decode(genes, e.cfg.MinX)
		if x > e.cfg.MaxX {
			continue
		}
		return e.newIndividual(e.newID(), genes, x), nil
	}
	return Individual{}, &RetryExhaustedError{Phase: "seed", Attempts: budget}
}

// breed produces one mutated child of two tournament winners, retrying from
// parent selection while the child decodes outside the domain.
func (e *Engine) breed(goal Goal) (Individual, error) {
	budget := e.cfg.retryBudget()
	for attempt := 0; attempt < budget; attempt++ {
		p1 := e.population[TournamentSelect(e.population, goal, e.rng)]
		p2 := e.population[TournamentSelect(e.population, goal, e.rng)]

		genes := Mutate(Crossover(p1.Genes, p2.Genes, e.rng), e.cfg.MutationRate, e.rng)
		x := Decode(genes, e.cfg.MinX)
		if !e.cfg.InDomain(x) {
			continue
		}
		return e.newIndividual(e.newID(), genes, x), nil
	}
	return Individual{}, &RetryExhaustedError{Phase: "offspring", Attempts: budget}
}

// NextGeneration carries the current best over unchanged and fills the rest
// of the new population with offspring. On error the engine is unchanged.
func (e *Engine) NextGeneration(goal Goal) error {
	next := make([]Individual, 0, e.cfg.PopSize)
	next = append(next, e.population[BestIndex(e.population, goal)])

	for len(next) < e.cfg.PopSize {
		child, err := e.breed(goal)
		if err != nil {
			slog.Error("Generation aborted", "generation", e.generation, "goal", goal, "error", err)
			return fmt.Errorf("generation %d: %w", e.generation+1, err)
		}
		next = append(next, child)
	}

	e.population = next
	e.generation++
	return nil
}

// Best returns a copy of the best individual under goal.
func (e *Engine) Best(goal Goal) Individual {
	return e.population[BestIndex(e.population, goal)].Clone()
}

// Population returns a deep copy of the current population.
func (e *Engine) Population() []Individual {
	out := make([]Individual, len(e.population))
	for i, ind := range e.population {
		out[i] = ind.Clone()
	}
	return out
}

// Generation returns the number of completed generations.
func (e *Engine) Generation() int {
	return e.generation
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// GeneLength returns the number of bits per individual.
func (e *Engine) GeneLength() int {
	return e.geneLen
}

// FunctionPoints samples f at every integer in [MinX, MaxX].
func (e *Engine) FunctionPoints() []Point {
	return FunctionPoints(e.cfg)
}

// FunctionPoints samples f at every integer in [cfg.MinX, cfg.MaxX].
func FunctionPoints(cfg Config) []Point {
	if cfg.MinX > cfg.MaxX {
		return nil
	}
	points := make([]Point, 0, cfg.MaxX-cfg.MinX+1)
	for x := cfg.MinX; x <= cfg.MaxX; x++ {
		points = append(points, Point{X: x, Y: cfg.Eval(x)})
	}
	return points
}

func (e *Engine) newIndividual(id string, genes []int, x int) Individual {
	return Individual{
		ID:    id,
		Genes: genes,
		X:     x,
		Y:     e.cfg.Eval(x),
	}
}

func (e *Engine) newID() string {
	id, err := uuid.NewRandomFromReader(e.ids)
	if err != nil {
		// sourceReader never fails
		panic(err)
	}
	return id.String()
}
