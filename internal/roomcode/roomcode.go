// Package roomcode mints and validates the 4-digit codes players type to
// join a room.
package roomcode

import (
	"fmt"
	rand "math/rand/v2"
	"strconv"
)

const (
	Min = 1000
	Max = 9999

	// Space is the number of distinct codes.
	Space = Max - Min + 1
)

// RandSource is the randomness a Generator draws from. *rand.Rand and
// *randutil.Locked satisfy it.
type RandSource interface {
	IntN(n int) int
}

type globalSource struct{}

func (globalSource) IntN(n int) int { return rand.IntN(n) }

// Generator produces candidate room codes.
type Generator struct {
	randSource RandSource
}

// NewGenerator creates a generator. A nil source uses the process-wide
// math/rand generator.
func NewGenerator(randSource RandSource) *Generator {
	if randSource == nil {
		randSource = globalSource{}
	}
	return &Generator{randSource: randSource}
}

// Generate returns a uniformly random code in [Min, Max]. It does not check
// whether the code is in use.
func (g *Generator) Generate() string {
	return strconv.Itoa(Min + g.randSource.IntN(Space))
}

// Validate checks that code is exactly four ASCII digits in [Min, Max].
func Validate(code string) error {
	if len(code) != 4 {
		return fmt.Errorf("room code must be 4 digits, got %q", code)
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return fmt.Errorf("room code must be 4 digits, got %q", code)
		}
	}
	if code[0] == '0' {
		return fmt.Errorf("room code %q is below %d", code, Min)
	}
	return nil
}
