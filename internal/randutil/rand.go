// Package randutil derives reproducible random sources from a single seed,
// used for room codes when the server runs with --seed and in tests.
package randutil

import (
	rand "math/rand/v2"
	"sync"
)

const goldenRatio64 = 0x9e3779b97f4a7c15

// New returns a PCG-backed *rand.Rand for seed. It is not safe for
// concurrent use.
func New(seed int64) *rand.Rand {
	u := uint64(seed)
	return rand.New(rand.NewPCG(splitmix(u), splitmix(u+goldenRatio64)))
}

// Locked is a seeded source that many goroutines may draw from.
type Locked struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewLocked returns a concurrency-safe source seeded like New.
func NewLocked(seed int64) *Locked {
	return &Locked{r: New(seed)}
}

// IntN returns a value in [0, n). It panics if n <= 0.
func (l *Locked) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.IntN(n)
}

// splitmix spreads nearby seeds across the PCG state space.
func splitmix(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}
