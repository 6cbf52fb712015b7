package game

import (
	"fmt"
	"maps"
	"time"
)

// Ownership records who bought a car at auction and what they paid.
type Ownership struct {
	PlayerID string
	Price    int
}

// Assignment is one entry of a host's manual override of the auction.
// An empty PlayerID leaves the car unowned.
type Assignment struct {
	PlayerID string
	Price    int
}

// State is the aggregate for a single room.
//
// Owners is the only record of car ownership; per-player owned cars and
// auction prices are derived from it, so the two views cannot disagree.
type State struct {
	Code           string
	Phase          Phase
	Players        []*Player // join order, host first
	Positions      map[Car]int
	Owners         map[Car]Ownership
	PositionsSet   bool
	FinalPositions map[Car]int // nil until the race is finalized
	CreatedAt      time.Time

	// Revision is the store's optimistic-concurrency stamp. The state
	// machine never changes it.
	Revision uint64
}

// New creates the state for a freshly created room: auction phase, every
// car at standing 1, and the host as the only player.
func New(code, hostID, hostName string, now time.Time) *State {
	positions := make(map[Car]int, NumCars)
	for _, c := range AllCars {
		positions[c] = 1
	}
	return &State{
		Code:      code,
		Phase:     PhaseAuction,
		Players:   []*Player{{ID: hostID, Name: hostName, IsHost: true}},
		Positions: positions,
		Owners:    make(map[Car]Ownership, NumCars),
		CreatedAt: now,
	}
}

// Clone returns a deep copy of s.
func (s *State) Clone() *State {
	c := *s
	c.Players = make([]*Player, len(s.Players))
	for i, p := range s.Players {
		c.Players[i] = p.clone()
	}
	c.Positions = maps.Clone(s.Positions)
	c.Owners = maps.Clone(s.Owners)
	if c.Owners == nil {
		c.Owners = make(map[Car]Ownership, NumCars)
	}
	c.FinalPositions = maps.Clone(s.FinalPositions)
	return &c
}

// Player returns the player with the given ID.
func (s *State) Player(id string) (*Player, bool) {
	for _, p := range s.Players {
		if p.ID == id {
			return p, true
		}
	}
	return nil, false
}

// Host returns the room's host.
func (s *State) Host() (*Player, bool) {
	for _, p := range s.Players {
		if p.IsHost {
			return p, true
		}
	}
	return nil, false
}

// IsHost reports whether playerID is the room's host.
func (s *State) IsHost(playerID string) bool {
	p, ok := s.Player(playerID)
	return ok && p.IsHost
}

// Owner returns the ID of the player owning c, if any.
func (s *State) Owner(c Car) (string, bool) {
	o, ok := s.Owners[c]
	return o.PlayerID, ok
}

// OwnedCars returns the cars owned by playerID in canonical car order.
func (s *State) OwnedCars(playerID string) []Car {
	var cars []Car
	for _, c := range AllCars {
		if o, ok := s.Owners[c]; ok && o.PlayerID == playerID {
			cars = append(cars, c)
		}
	}
	return cars
}

// AuctionPrices returns car -> price paid for every car owned by playerID.
func (s *State) AuctionPrices(playerID string) map[Car]int {
	prices := make(map[Car]int)
	for c, o := range s.Owners {
		if o.PlayerID == playerID {
			prices[c] = o.Price
		}
	}
	return prices
}

// StandingOrder returns the cars sorted by current standing. Cars sharing a
// standing keep canonical order.
func (s *State) StandingOrder() []Car {
	order := make([]Car, 0, NumCars)
	for pos := 1; pos <= NumCars; pos++ {
		for _, c := range AllCars {
			if s.Positions[c] == pos {
				order = append(order, c)
			}
		}
	}
	return order
}

// AllPlayersBet reports whether every player has bet in round.
func (s *State) AllPlayersBet(round int) bool {
	for _, p := range s.Players {
		if !p.HasBet(round) {
			return false
		}
	}
	return true
}

// anyPlayerBet reports whether at least one player has bet in round.
func (s *State) anyPlayerBet(round int) bool {
	for _, p := range s.Players {
		if p.HasBet(round) {
			return true
		}
	}
	return false
}

// AddPlayer appends a non-host player with no cars and no bets. Joining is
// not restricted to the auction phase.
func (s *State) AddPlayer(id, name string) error {
	if _, exists := s.Player(id); exists {
		return fmt.Errorf("%w: %s", ErrPlayerExists, id)
	}
	s.Players = append(s.Players, &Player{ID: id, Name: name})
	return nil
}

// RemovePlayer removes a player and releases every car they owned. The
// host role is never transferred.
func (s *State) RemovePlayer(id string) error {
	idx := -1
	for i, p := range s.Players {
		if p.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrPlayerNotFound, id)
	}
	for c, o := range s.Owners {
		if o.PlayerID == id {
			delete(s.Owners, c)
		}
	}
	s.Players = append(s.Players[:idx], s.Players[idx+1:]...)
	return nil
}

// ClaimCar records that playerID bought car for price at auction.
func (s *State) ClaimCar(playerID string, car Car, price int) error {
	if s.Phase != PhaseAuction {
		return wrongPhase("claim car", s.Phase)
	}
	if !car.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownCar, car)
	}
	if price < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidPrice, price)
	}
	if _, ok := s.Player(playerID); !ok {
		return fmt.Errorf("%w: %s", ErrPlayerNotFound, playerID)
	}
	if owner, owned := s.Owner(car); owned {
		return fmt.Errorf("%w: %s owned by %s", ErrCarAlreadyClaimed, car, owner)
	}
	s.Owners[car] = Ownership{PlayerID: playerID, Price: price}
	return nil
}

// ReleaseCar gives up a car playerID owns, discarding the price paid.
func (s *State) ReleaseCar(playerID string, car Car) error {
	if !car.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownCar, car)
	}
	if owner, owned := s.Owner(car); !owned || owner != playerID {
		return fmt.Errorf("%w: %s", ErrNotOwner, car)
	}
	if s.Phase != PhaseAuction {
		return wrongPhase("release car", s.Phase)
	}
	delete(s.Owners, car)
	return nil
}

// AssignCars replaces the whole auction outcome with assignments. Cars
// missing from the map, or assigned to an empty player ID, end up unowned.
// The phase stays auction.
func (s *State) AssignCars(assignments map[Car]Assignment) error {
	if s.Phase != PhaseAuction {
		return wrongPhase("assign cars", s.Phase)
	}
	for c, a := range assignments {
		if !c.Valid() {
			return fmt.Errorf("%w: %q", ErrUnknownCar, c)
		}
		if a.PlayerID == "" {
			continue
		}
		if _, ok := s.Player(a.PlayerID); !ok {
			return fmt.Errorf("%w: %s", ErrPlayerNotFound, a.PlayerID)
		}
		if a.Price < 0 {
			return fmt.Errorf("%w: %d for %s", ErrInvalidPrice, a.Price, c)
		}
	}

	owners := make(map[Car]Ownership, NumCars)
	for c, a := range assignments {
		if a.PlayerID != "" {
			owners[c] = Ownership{PlayerID: a.PlayerID, Price: a.Price}
		}
	}
	s.Owners = owners
	return nil
}

// StartBetting closes the auction and opens the first betting round.
func (s *State) StartBetting() error {
	if s.Phase != PhaseAuction {
		return wrongPhase("start betting", s.Phase)
	}
	s.Phase = PhaseBetting1
	s.PositionsSet = false
	return nil
}

// SetPositions publishes the standings for the current betting round and
// opens it for bets. order lists the cars from first to last. Published
// standings cannot change once someone has bet against them; advancing
// betting3 onto itself clears them so the host can publish again.
func (s *State) SetPositions(order []Car) error {
	ranks, err := ranking(order)
	if err != nil {
		return err
	}
	if !s.Phase.IsBetting() {
		return wrongPhase("set positions", s.Phase)
	}
	if s.PositionsSet && s.anyPlayerBet(s.Phase.Round()) {
		return fmt.Errorf("%w: round %d", ErrRoundInProgress, s.Phase.Round())
	}
	s.Positions = ranks
	s.PositionsSet = true
	return nil
}

// PlaceBet records playerID's bet on car for round, freezing the car's
// current standing. A bet is never overwritten.
func (s *State) PlaceBet(playerID string, round int, car Car) error {
	if !car.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownCar, car)
	}
	if !s.Phase.IsBetting() || s.Phase.Round() != round {
		return fmt.Errorf("%w: bet for round %d during %s", ErrWrongPhase, round, s.Phase)
	}
	p, ok := s.Player(playerID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrPlayerNotFound, playerID)
	}
	if p.HasBet(round) {
		return fmt.Errorf("%w: round %d", ErrAlreadyBet, round)
	}
	if !s.PositionsSet {
		return fmt.Errorf("%w: round %d", ErrPositionsNotSet, round)
	}
	p.Bets[round-1] = Bet{Car: car, Position: s.Positions[car]}
	return nil
}

// AdvanceBettingRound moves to the next betting round once every player has
// bet in the current one. betting3 advances to itself.
func (s *State) AdvanceBettingRound() error {
	if !s.Phase.IsBetting() {
		return wrongPhase("advance round", s.Phase)
	}
	if !s.AllPlayersBet(s.Phase.Round()) {
		return fmt.Errorf("%w: round %d", ErrNotAllPlayersBet, s.Phase.Round())
	}
	s.Phase = s.Phase.next()
	s.PositionsSet = false
	return nil
}

// FinalizeRace records the final positions from order (first to last) and
// finishes the game.
func (s *State) FinalizeRace(order []Car) error {
	ranks, err := ranking(order)
	if err != nil {
		return err
	}
	if s.Phase != PhaseBetting3 {
		return wrongPhase("finalize race", s.Phase)
	}
	if !s.PositionsSet {
		return fmt.Errorf("%w: round %d", ErrPositionsNotSet, NumRounds)
	}
	if !s.AllPlayersBet(NumRounds) {
		return fmt.Errorf("%w: round %d", ErrNotAllPlayersBet, NumRounds)
	}
	s.FinalPositions = ranks
	s.Phase = PhaseFinished
	s.PositionsSet = false
	return nil
}

// Validate checks the structural invariants of s. Decoders call it on every
// state read back from storage.
func (s *State) Validate() error {
	if !s.Phase.Valid() {
		return fmt.Errorf("game: invalid phase %q", s.Phase)
	}
	if s.PositionsSet && !s.Phase.IsBetting() {
		return fmt.Errorf("game: positions set during %s", s.Phase)
	}

	hosts := 0
	ids := make(map[string]bool, len(s.Players))
	for _, p := range s.Players {
		if ids[p.ID] {
			return fmt.Errorf("game: duplicate player %s", p.ID)
		}
		ids[p.ID] = true
		if p.IsHost {
			hosts++
		}
		for i, b := range p.Bets {
			if !b.Placed() {
				continue
			}
			if !b.Car.Valid() || b.Position < 1 || b.Position > NumCars {
				return fmt.Errorf("game: player %s has invalid bet %d", p.ID, i+1)
			}
		}
	}
	if hosts > 1 {
		return fmt.Errorf("game: %d hosts", hosts)
	}

	for _, c := range AllCars {
		pos, ok := s.Positions[c]
		if !ok || pos < 1 || pos > NumCars {
			return fmt.Errorf("game: car %s has invalid standing %d", c, pos)
		}
	}
	for c, o := range s.Owners {
		if !c.Valid() {
			return fmt.Errorf("game: unknown owned car %q", c)
		}
		if !ids[o.PlayerID] {
			return fmt.Errorf("game: car %s owned by unknown player %s", c, o.PlayerID)
		}
		if o.Price < 0 {
			return fmt.Errorf("game: car %s has negative price", c)
		}
	}

	if s.Phase == PhaseFinished {
		if !isPermutation(s.FinalPositions) {
			return fmt.Errorf("game: final positions are not a permutation")
		}
	} else if s.FinalPositions != nil {
		return fmt.Errorf("game: final positions present during %s", s.Phase)
	}
	return nil
}
