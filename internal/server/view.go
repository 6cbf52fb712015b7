package server

import (
	"strconv"

	"github.com/lox/downforce/internal/game"
	"github.com/lox/downforce/internal/i18n"
)

// RoomView is the JSON shape clients poll. Ownership appears three ways
// (carOwners, ownedCars, auctionPrices), all derived from the same source.
type RoomView struct {
	RoomCode       string                `json:"roomCode"`
	Phase          game.Phase            `json:"phase"`
	PhaseName      string                `json:"phaseName"`
	Players        map[string]PlayerView `json:"players"`
	PlayerOrder    []string              `json:"playerOrder"`
	Cars           map[game.Car]CarView  `json:"cars"`
	CarOwners      map[game.Car]*string  `json:"carOwners"`
	PositionsSet   bool                  `json:"positionsSet"`
	FinalPositions map[game.Car]int      `json:"finalPositions,omitempty"`
	CreatedAt      int64                 `json:"createdAt"` // unix milliseconds
	Revision       uint64                `json:"revision"`
}

type PlayerView struct {
	ID            string              `json:"id"`
	Name          string              `json:"name"`
	IsHost        bool                `json:"isHost"`
	OwnedCars     []game.Car          `json:"ownedCars"`
	AuctionPrices map[game.Car]int    `json:"auctionPrices"`
	Bets          map[string]game.Car `json:"bets"`         // keyed bet1..bet3
	BetPositions  map[string]int      `json:"betPositions"` // keyed bet1..bet3
}

type CarView struct {
	Color    game.Car `json:"color"`
	Name     string   `json:"name"`
	Position int      `json:"position"`
}

func newRoomView(s *game.State, loc i18n.Locale) RoomView {
	v := RoomView{
		RoomCode:       s.Code,
		Phase:          s.Phase,
		PhaseName:      i18n.PhaseName(loc, s.Phase),
		Players:        make(map[string]PlayerView, len(s.Players)),
		PlayerOrder:    make([]string, 0, len(s.Players)),
		Cars:           make(map[game.Car]CarView, game.NumCars),
		CarOwners:      make(map[game.Car]*string, game.NumCars),
		PositionsSet:   s.PositionsSet,
		FinalPositions: s.FinalPositions,
		CreatedAt:      s.CreatedAt.UnixMilli(),
		Revision:       s.Revision,
	}

	for _, c := range game.AllCars {
		v.Cars[c] = CarView{Color: c, Name: i18n.CarName(loc, c), Position: s.Positions[c]}
		if owner, ok := s.Owner(c); ok {
			v.CarOwners[c] = &owner
		} else {
			v.CarOwners[c] = nil
		}
	}

	for _, p := range s.Players {
		pv := PlayerView{
			ID:            p.ID,
			Name:          p.Name,
			IsHost:        p.IsHost,
			OwnedCars:     s.OwnedCars(p.ID),
			AuctionPrices: s.AuctionPrices(p.ID),
			Bets:          make(map[string]game.Car),
			BetPositions:  make(map[string]int),
		}
		if pv.OwnedCars == nil {
			pv.OwnedCars = []game.Car{}
		}
		for round := 1; round <= game.NumRounds; round++ {
			if b, ok := p.Bet(round); ok {
				pv.Bets[betKey(round)] = b.Car
				pv.BetPositions[betKey(round)] = b.Position
			}
		}
		v.Players[p.ID] = pv
		v.PlayerOrder = append(v.PlayerOrder, p.ID)
	}
	return v
}

func betKey(round int) string {
	return "bet" + strconv.Itoa(round)
}
