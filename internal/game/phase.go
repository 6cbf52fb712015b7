package game

import "fmt"

// Phase is a stage of the room lifecycle. Phases only move forward.
type Phase string

const (
	PhaseAuction  Phase = "auction"
	PhaseBetting1 Phase = "betting1"
	PhaseBetting2 Phase = "betting2"
	PhaseBetting3 Phase = "betting3"
	PhaseFinished Phase = "finished"
)

// NumRounds is the number of betting rounds.
const NumRounds = 3

// Round returns the betting round (1..3) for a betting phase and 0 otherwise.
func (p Phase) Round() int {
	switch p {
	case PhaseBetting1:
		return 1
	case PhaseBetting2:
		return 2
	case PhaseBetting3:
		return 3
	}
	return 0
}

// IsBetting reports whether p is one of the three betting phases.
func (p Phase) IsBetting() bool {
	return p.Round() != 0
}

// Valid reports whether p is a known phase.
func (p Phase) Valid() bool {
	switch p {
	case PhaseAuction, PhaseBetting1, PhaseBetting2, PhaseBetting3, PhaseFinished:
		return true
	}
	return false
}

// next returns the phase reached by advancing a betting round.
// betting3 is a fixed point; only FinalizeRace leaves it.
func (p Phase) next() Phase {
	switch p {
	case PhaseBetting1:
		return PhaseBetting2
	case PhaseBetting2, PhaseBetting3:
		return PhaseBetting3
	}
	return p
}

func (p Phase) String() string {
	return string(p)
}

// ParsePhase converts a phase name into a Phase.
func ParsePhase(s string) (Phase, error) {
	p := Phase(s)
	if !p.Valid() {
		return "", fmt.Errorf("unknown phase %q", s)
	}
	return p, nil
}
