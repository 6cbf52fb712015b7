// Package scoring computes the end-of-game scoreboard for a finished room.
//
// All amounts are in millions of dollars, as on the board game's money.
package scoring

import (
	"errors"
	"sort"

	"github.com/lox/downforce/internal/game"
)

// ErrNotFinished is returned when the race has no final positions yet.
var ErrNotFinished = errors.New("scoring: race not finished")

// RacePrize is the prize paid to a car's owner for each finishing position.
var RacePrize = map[int]int{1: 12, 2: 9, 3: 6, 4: 4, 5: 2, 6: 0}

// BetMultiplier[round-1][finalPos-1] is the payout multiplier for a bet placed
// in round on a car that finished at finalPos. Positions past third pay nothing.
var BetMultiplier = [game.NumRounds][3]int{
	{3, 2, 1},
	{2, 1, 0},
	{1, 0, 0},
}

// Multiplier returns the payout multiplier for a bet in round (1..3) on a car
// finishing at finalPos.
func Multiplier(round, finalPos int) int {
	if round < 1 || round > game.NumRounds || finalPos < 1 || finalPos > 3 {
		return 0
	}
	return BetMultiplier[round-1][finalPos-1]
}

// CarResult is the racing line item for one owned car.
type CarResult struct {
	Car           game.Car `json:"car"`
	Price         int      `json:"price"`
	FinalPosition int      `json:"finalPosition"`
	Prize         int      `json:"prize"`
}

// BetResult is the betting line item for one round.
type BetResult struct {
	Round         int      `json:"round"`
	Car           game.Car `json:"car"`
	Position      int      `json:"position"` // standing when the bet was placed
	FinalPosition int      `json:"finalPosition"`
	Multiplier    int      `json:"multiplier"`
	Payout        int      `json:"payout"`
}

// PlayerScore is one row of the scoreboard.
type PlayerScore struct {
	PlayerID      string      `json:"playerId"`
	PlayerName    string      `json:"playerName"`
	Rank          int         `json:"rank"`
	AuctionTotal  int         `json:"auctionTotal"`
	RacingTotal   int         `json:"racingTotal"`
	BettingTotal  int         `json:"bettingTotal"`
	TotalWinnings int         `json:"totalWinnings"`
	Cars          []CarResult `json:"cars"`
	Bets          []BetResult `json:"bets"`
}

// ScorePlayer computes the score of a single player. Rank is left zero.
func ScorePlayer(s *game.State, p *game.Player) (PlayerScore, error) {
	if s.FinalPositions == nil {
		return PlayerScore{}, ErrNotFinished
	}

	score := PlayerScore{
		PlayerID:   p.ID,
		PlayerName: p.Name,
		Cars:       []CarResult{},
		Bets:       []BetResult{},
	}

	for _, car := range s.OwnedCars(p.ID) {
		owner := s.Owners[car]
		finalPos := s.FinalPositions[car]
		prize := RacePrize[finalPos]
		score.AuctionTotal += owner.Price
		score.RacingTotal += prize
		score.Cars = append(score.Cars, CarResult{
			Car:           car,
			Price:         owner.Price,
			FinalPosition: finalPos,
			Prize:         prize,
		})
	}

	for round := 1; round <= game.NumRounds; round++ {
		bet, ok := p.Bet(round)
		if !ok {
			continue
		}
		finalPos := s.FinalPositions[bet.Car]
		mult := Multiplier(round, finalPos)
		payout := bet.Position * mult
		score.BettingTotal += payout
		score.Bets = append(score.Bets, BetResult{
			Round:         round,
			Car:           bet.Car,
			Position:      bet.Position,
			FinalPosition: finalPos,
			Multiplier:    mult,
			Payout:        payout,
		})
	}

	score.TotalWinnings = score.RacingTotal + score.BettingTotal - score.AuctionTotal
	return score, nil
}

// ScoreAll scores every player and ranks them by total winnings, highest
// first. Equal totals keep join order and share a rank.
func ScoreAll(s *game.State) ([]PlayerScore, error) {
	if s.FinalPositions == nil {
		return nil, ErrNotFinished
	}

	scores := make([]PlayerScore, 0, len(s.Players))
	for _, p := range s.Players {
		score, err := ScorePlayer(s, p)
		if err != nil {
			return nil, err
		}
		scores = append(scores, score)
	}

	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].TotalWinnings > scores[j].TotalWinnings
	})
	for i := range scores {
		if i > 0 && scores[i].TotalWinnings == scores[i-1].TotalWinnings {
			scores[i].Rank = scores[i-1].Rank
		} else {
			scores[i].Rank = i + 1
		}
	}
	return scores, nil
}

// Winners returns the players sharing first place.
func Winners(scores []PlayerScore) []PlayerScore {
	var winners []PlayerScore
	for _, s := range scores {
		if s.Rank == 1 {
			winners = append(winners, s)
		}
	}
	return winners
}
