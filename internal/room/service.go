// Package room runs game operations against stored rooms.
//
// Every mutation is a read-modify-write: the service loads the room, applies
// one game.State operation and writes the result back guarded by the state's
// revision. When another request wrote first the store reports a conflict and
// the service replays the operation against the fresh state, so concurrent
// requests serialize without a lock held across the store round trip.
package room

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/coder/quartz"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lox/downforce/internal/game"
	"github.com/lox/downforce/internal/roomcode"
	"github.com/lox/downforce/internal/scoring"
	"github.com/lox/downforce/internal/store"
)

const (
	DefaultMaxAttempts  = 8
	DefaultCodeAttempts = 100
	MaxNameLength       = 32
)

var (
	// ErrContention indicates the operation kept losing to concurrent writers.
	ErrContention = errors.New("room: too many concurrent updates")

	// ErrNoFreeCode indicates no unused room code was found.
	ErrNoFreeCode = errors.New("room: no free room code")

	// ErrInvalidName indicates an empty or overlong player name.
	ErrInvalidName = errors.New("room: invalid player name")
)

// Config tunes a Service. Zero values select defaults.
type Config struct {
	TTL          time.Duration
	MaxAttempts  int
	CodeAttempts int
	RandSource   roomcode.RandSource
	Clock        quartz.Clock
	NewPlayerID  func() string
}

// Service is safe for concurrent use.
type Service struct {
	store        store.Store
	codes        *roomcode.Generator
	clock        quartz.Clock
	logger       zerolog.Logger
	ttl          time.Duration
	maxAttempts  int
	codeAttempts int
	newPlayerID  func() string
}

// NewService creates a room service backed by st.
func NewService(st store.Store, logger zerolog.Logger, cfg Config) *Service {
	s := &Service{
		store:        st,
		codes:        roomcode.NewGenerator(cfg.RandSource),
		clock:        cfg.Clock,
		logger:       logger.With().Str("component", "room_service").Logger(),
		ttl:          cfg.TTL,
		maxAttempts:  cfg.MaxAttempts,
		codeAttempts: cfg.CodeAttempts,
		newPlayerID:  cfg.NewPlayerID,
	}
	if s.clock == nil {
		s.clock = quartz.NewReal()
	}
	if s.ttl <= 0 {
		s.ttl = store.DefaultTTL
	}
	if s.maxAttempts <= 0 {
		s.maxAttempts = DefaultMaxAttempts
	}
	if s.codeAttempts <= 0 {
		s.codeAttempts = DefaultCodeAttempts
	}
	if s.newPlayerID == nil {
		s.newPlayerID = uuid.NewString
	}
	return s
}

// CreateRoom mints a free code and stores a new room with hostName as host.
// It returns the room and the host's player ID.
func (s *Service) CreateRoom(ctx context.Context, hostName string) (*game.State, string, error) {
	name, err := cleanName(hostName)
	if err != nil {
		return nil, "", err
	}
	hostID := s.newPlayerID()

	for attempt := 0; attempt < s.codeAttempts; attempt++ {
		code := s.codes.Generate()
		exists, err := s.store.Exists(ctx, code)
		if err != nil {
			return nil, "", &game.PersistenceError{Op: "exists", Code: code, Err: err}
		}
		if exists {
			continue
		}

		st := game.New(code, hostID, name, s.clock.Now().UTC())
		err = s.store.Create(ctx, code, st, s.ttl)
		if errors.Is(err, store.ErrExists) {
			// Minted concurrently by another host.
			continue
		}
		if err != nil {
			return nil, "", &game.PersistenceError{Op: "create", Code: code, Err: err}
		}

		s.logger.Info().
			Str("room", code).
			Str("host_id", hostID).
			Int("attempts", attempt+1).
			Msg("Room created")
		return st, hostID, nil
	}
	return nil, "", fmt.Errorf("%w after %d attempts", ErrNoFreeCode, s.codeAttempts)
}

// Get returns the current state of a room.
func (s *Service) Get(ctx context.Context, code string) (*game.State, error) {
	return s.load(ctx, code)
}

// JoinRoom adds a player called name and returns the room and their ID.
func (s *Service) JoinRoom(ctx context.Context, code, name string) (*game.State, string, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, "", err
	}
	id := s.newPlayerID()
	st, err := s.mutate(ctx, code, "join", func(st *game.State) error {
		return st.AddPlayer(id, name)
	})
	if err != nil {
		return nil, "", err
	}
	s.logger.Info().Str("room", code).Str("player_id", id).Int("players", len(st.Players)).Msg("Player joined")
	return st, id, nil
}

// LeaveRoom removes a player and releases their cars. The room is deleted
// once nobody is left; the returned state is then nil. The delete is guarded
// by revision like any other write, so a concurrent join keeps the room.
func (s *Service) LeaveRoom(ctx context.Context, code, playerID string) (*game.State, error) {
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		st, err := s.load(ctx, code)
		if err != nil {
			return nil, err
		}
		if err := st.RemovePlayer(playerID); err != nil {
			return nil, err
		}

		if len(st.Players) == 0 {
			done, err := s.remove(ctx, code, st.Revision, attempt)
			if err != nil {
				return nil, err
			}
			if done {
				s.logger.Info().Str("room", code).Msg("Room deleted after last player left")
				return nil, nil
			}
			continue
		}

		done, err := s.save(ctx, code, st, attempt)
		if err != nil {
			return nil, err
		}
		if done {
			s.logger.Info().Str("room", code).Str("player_id", playerID).Msg("Player left")
			return st, nil
		}
	}
	return nil, s.contention(code, "leave")
}

// ClaimCar records that playerID bought car at auction for price.
func (s *Service) ClaimCar(ctx context.Context, code, playerID string, car game.Car, price int) (*game.State, error) {
	return s.mutate(ctx, code, "claim_car", func(st *game.State) error {
		return st.ClaimCar(playerID, car, price)
	})
}

// ReleaseCar gives up a car owned by playerID.
func (s *Service) ReleaseCar(ctx context.Context, code, playerID string, car game.Car) (*game.State, error) {
	return s.mutate(ctx, code, "release_car", func(st *game.State) error {
		return st.ReleaseCar(playerID, car)
	})
}

// AssignCars replaces the auction outcome. Host only.
func (s *Service) AssignCars(ctx context.Context, code, hostID string, assignments map[game.Car]game.Assignment) (*game.State, error) {
	return s.mutate(ctx, code, "assign_cars", func(st *game.State) error {
		if err := requireHost(st, hostID); err != nil {
			return err
		}
		return st.AssignCars(assignments)
	})
}

// StartBetting closes the auction. Host only.
func (s *Service) StartBetting(ctx context.Context, code, hostID string) (*game.State, error) {
	return s.mutate(ctx, code, "start_betting", func(st *game.State) error {
		if err := requireHost(st, hostID); err != nil {
			return err
		}
		return st.StartBetting()
	})
}

// SetPositions publishes the standings for the current round. Host only.
func (s *Service) SetPositions(ctx context.Context, code, hostID string, order []game.Car) (*game.State, error) {
	return s.mutate(ctx, code, "set_positions", func(st *game.State) error {
		if err := requireHost(st, hostID); err != nil {
			return err
		}
		return st.SetPositions(order)
	})
}

// PlaceBet records playerID's bet on car for round.
func (s *Service) PlaceBet(ctx context.Context, code, playerID string, round int, car game.Car) (*game.State, error) {
	return s.mutate(ctx, code, "place_bet", func(st *game.State) error {
		return st.PlaceBet(playerID, round, car)
	})
}

// AdvanceRound moves to the next betting round. Host only.
func (s *Service) AdvanceRound(ctx context.Context, code, hostID string) (*game.State, error) {
	return s.mutate(ctx, code, "advance_round", func(st *game.State) error {
		if err := requireHost(st, hostID); err != nil {
			return err
		}
		return st.AdvanceBettingRound()
	})
}

// FinalizeRace records the final result and finishes the game. Host only.
func (s *Service) FinalizeRace(ctx context.Context, code, hostID string, order []game.Car) (*game.State, error) {
	st, err := s.mutate(ctx, code, "finalize_race", func(st *game.State) error {
		if err := requireHost(st, hostID); err != nil {
			return err
		}
		return st.FinalizeRace(order)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("room", code).Int("players", len(st.Players)).Msg("Race finalized")
	return st, nil
}

// Scores returns the scoreboard of a finished room.
func (s *Service) Scores(ctx context.Context, code string) ([]scoring.PlayerScore, error) {
	st, err := s.load(ctx, code)
	if err != nil {
		return nil, err
	}
	return scoring.ScoreAll(st)
}

// mutate applies fn to a freshly loaded state and saves it, replaying fn on
// revision conflicts. fn's own errors are returned unchanged and nothing is
// written.
func (s *Service) mutate(ctx context.Context, code, op string, fn func(*game.State) error) (*game.State, error) {
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		st, err := s.load(ctx, code)
		if err != nil {
			return nil, err
		}
		if err := fn(st); err != nil {
			return nil, err
		}
		done, err := s.save(ctx, code, st, attempt)
		if err != nil {
			return nil, err
		}
		if done {
			return st, nil
		}
	}
	return nil, s.contention(code, op)
}

func (s *Service) load(ctx context.Context, code string) (*game.State, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if roomcode.Validate(code) != nil {
		return nil, fmt.Errorf("%w: %q", game.ErrRoomNotFound, code)
	}
	st, err := s.store.Get(ctx, code)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", game.ErrRoomNotFound, code)
	}
	if err != nil {
		return nil, &game.PersistenceError{Op: "load", Code: code, Err: err}
	}
	return st, nil
}

// save writes st and reports whether it landed. A false result with no
// error means another writer got there first.
func (s *Service) save(ctx context.Context, code string, st *game.State, attempt int) (bool, error) {
	err := s.store.Update(ctx, code, st, s.ttl)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, store.ErrConflict):
		s.logger.Debug().Str("room", code).Int("attempt", attempt).Msg("Revision conflict, retrying")
		return false, nil
	case errors.Is(err, store.ErrNotFound):
		// Expired or deleted between load and save.
		return false, fmt.Errorf("%w: %s", game.ErrRoomNotFound, code)
	default:
		return false, &game.PersistenceError{Op: "save", Code: code, Err: err}
	}
}

// remove deletes the room at revision, reporting false on a conflict like
// save does.
func (s *Service) remove(ctx context.Context, code string, revision uint64, attempt int) (bool, error) {
	err := s.store.DeleteAt(ctx, code, revision)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, store.ErrConflict):
		s.logger.Debug().Str("room", code).Int("attempt", attempt).Msg("Revision conflict on delete, retrying")
		return false, nil
	case errors.Is(err, store.ErrNotFound):
		return false, fmt.Errorf("%w: %s", game.ErrRoomNotFound, code)
	default:
		return false, &game.PersistenceError{Op: "delete", Code: code, Err: err}
	}
}

func (s *Service) contention(code, op string) error {
	s.logger.Warn().Str("room", code).Str("op", op).Int("attempts", s.maxAttempts).Msg("Giving up after repeated conflicts")
	return fmt.Errorf("%w: %s on room %s", ErrContention, op, code)
}

func requireHost(st *game.State, playerID string) error {
	if _, ok := st.Player(playerID); !ok {
		return fmt.Errorf("%w: %s", game.ErrPlayerNotFound, playerID)
	}
	if !st.IsHost(playerID) {
		return fmt.Errorf("%w: %s", game.ErrNotHost, playerID)
	}
	return nil
}

func cleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > MaxNameLength {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return name, nil
}
