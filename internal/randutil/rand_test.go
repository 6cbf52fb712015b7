package randutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewIsReproducible(t *testing.T) {
	a, b := New(99), New(99)
	for i := 0; i < 50; i++ {
		assert.Equal(t, a.IntN(9000), b.IntN(9000))
	}
}

func TestNearbySeedsDiverge(t *testing.T) {
	a, b := New(1), New(2)
	same := 0
	for i := 0; i < 50; i++ {
		if a.IntN(9000) == b.IntN(9000) {
			same++
		}
	}
	assert.Less(t, same, 5)
}

func TestLockedMatchesNew(t *testing.T) {
	plain, locked := New(5), NewLocked(5)
	for i := 0; i < 50; i++ {
		assert.Equal(t, plain.IntN(100), locked.IntN(100))
	}
}

func TestLockedConcurrent(t *testing.T) {
	l := NewLocked(11)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				v := l.IntN(10)
				if v < 0 || v >= 10 {
					t.Errorf("IntN(10) = %d", v)
					return
				}
			}
		}()
	}
	wg.Wait()
}
