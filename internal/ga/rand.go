package ga

import (
	"encoding/binary"
	"math/rand/v2"
)

// Source is the single randomness source behind seeding, selection,
// crossover, mutation and identifier generation. *rand.Rand satisfies it.
type Source interface {
	IntN(n int) int
	Float64() float64
	Uint64() uint64
}

// NewSource returns a PCG-backed source. A zero seed draws a random one.
func NewSource(seed uint64) *rand.Rand {
	if seed == 0 {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return rand.New(rand.NewPCG(seed, seed))
}

// sourceReader adapts a Source to io.Reader so identifiers come from the
// same stream as every other draw.
type sourceReader struct {
	src Source
}

func (r sourceReader) Read(p []byte) (int, error) {
	var buf [8]byte
	n := 0
	for n < len(p) {
		binary.LittleEndian.PutUint64(buf[:], r.src.Uint64())
		n += copy(p[n:], buf[:])
	}
	return n, nil
}
