package game

import (
	"errors"
	"fmt"
)

var (
	// ErrRoomNotFound indicates no room exists for the requested code.
	ErrRoomNotFound = errors.New("game: room not found")

	// ErrCarAlreadyClaimed indicates the car is owned by another player.
	ErrCarAlreadyClaimed = errors.New("game: car already claimed")

	// ErrNotOwner indicates the player does not own the car.
	ErrNotOwner = errors.New("game: player does not own car")

	// ErrInvalidPermutation indicates an ordering that is not every car exactly once.
	ErrInvalidPermutation = errors.New("game: not a permutation of the six cars")

	// ErrAlreadyBet indicates the player already bet in this round.
	ErrAlreadyBet = errors.New("game: bet already placed for round")

	// ErrPositionsNotSet indicates the host has not published standings for the round.
	ErrPositionsNotSet = errors.New("game: positions not set for round")

	// ErrNotAllPlayersBet indicates at least one player has not bet in the current round.
	ErrNotAllPlayersBet = errors.New("game: not all players have bet")

	ErrWrongPhase      = errors.New("game: operation not allowed in current phase")
	ErrPlayerNotFound  = errors.New("game: player not found")
	ErrPlayerExists    = errors.New("game: player already in room")
	ErrUnknownCar      = errors.New("game: unknown car")
	ErrInvalidPrice    = errors.New("game: invalid auction price")
	ErrRoundInProgress = errors.New("game: bets already placed this round")
	ErrNotHost         = errors.New("game: only the host can do that")
)

// PersistenceError wraps a storage failure. It is never swallowed: the room
// service returns it to whoever asked for the operation.
type PersistenceError struct {
	Op   string
	Code string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("game: persistence %s room %s: %v", e.Op, e.Code, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func wrongPhase(op string, p Phase) error {
	return fmt.Errorf("%w: %s during %s", ErrWrongPhase, op, p)
}
