package partition

import (
	"math/rand"

	"github.com/zhangyunhao116/fastrand"
)

// Source supplies the randomness used for sample draws and per-pass reshuffles.
// *rand.Rand satisfies it.
type Source interface {
	Perm(n int) []int
	Shuffle(n int, swap func(i, j int))
}

// processSource draws from the process-wide generator, so results differ
// between runs.
type processSource struct{}

func (s processSource) Perm(n int) []int {
	p := make([]int, n)
	for i := range p {
		p[i] = i
	}
	s.Shuffle(n, func(i, j int) { p[i], p[j] = p[j], p[i] })
	return p
}

// Shuffle is a Fisher-Yates pass over n elements.
func (processSource) Shuffle(n int, swap func(i, j int)) {
	for i := n - 1; i > 0; i-- {
		swap(i, fastrand.Intn(i+1))
	}
}

// NewSource returns a source seeded with seed, or the unseeded process-wide
// source when seed is 0.
func NewSource(seed int64) Source {
	if seed == 0 {
		return processSource{}
	}
	return rand.New(rand.NewSource(seed))
}
