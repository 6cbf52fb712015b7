package game

// Bet is a wager on a car for one betting round. Position is the car's
// standing when the bet was placed and never changes afterwards.
type Bet struct {
	Car      Car `json:"car"`
	Position int `json:"position"`
}

// Placed reports whether the bet has been made.
func (b Bet) Placed() bool {
	return b.Car != ""
}

// Player is a participant in a room.
type Player struct {
	ID     string
	Name   string
	IsHost bool
	Bets   [NumRounds]Bet // indexed by round-1
}

// Bet returns the player's bet for round (1..3).
func (p *Player) Bet(round int) (Bet, bool) {
	if round < 1 || round > NumRounds {
		return Bet{}, false
	}
	b := p.Bets[round-1]
	return b, b.Placed()
}

// HasBet reports whether the player has bet in round.
func (p *Player) HasBet(round int) bool {
	_, ok := p.Bet(round)
	return ok
}

func (p *Player) clone() *Player {
	c := *p
	return &c
}
