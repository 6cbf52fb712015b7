package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/downforce/internal/game"
)

var gridOrder = []game.Car{game.Black, game.Blue, game.Green, game.Orange, game.Red, game.Yellow}

// finishedGame plays a full room through the state machine:
//
//	host (Ana)    owns black for 5, bets black@2, green@3, black@3
//	p2   (Bruno)  owns red for 3 and blue for 4, bets red@1, blue@2, red@6
//	p3   (Carla)  owns nothing, bets yellow@6, yellow@6, green@2
//
// and finishes black, blue, green, orange, red, yellow.
func finishedGame(t *testing.T) *game.State {
	t.Helper()
	s := game.New("4821", "host", "Ana", time.Unix(0, 0))
	require.NoError(t, s.AddPlayer("p2", "Bruno"))
	require.NoError(t, s.AddPlayer("p3", "Carla"))

	require.NoError(t, s.ClaimCar("host", game.Black, 5))
	require.NoError(t, s.ClaimCar("p2", game.Red, 3))
	require.NoError(t, s.ClaimCar("p2", game.Blue, 4))
	require.NoError(t, s.StartBetting())

	rounds := []struct {
		standings []game.Car
		bets      map[string]game.Car
	}{
		{
			standings: []game.Car{game.Red, game.Black, game.Blue, game.Green, game.Orange, game.Yellow},
			bets:      map[string]game.Car{"host": game.Black, "p2": game.Red, "p3": game.Yellow},
		},
		{
			standings: gridOrder,
			bets:      map[string]game.Car{"host": game.Green, "p2": game.Blue, "p3": game.Yellow},
		},
		{
			standings: []game.Car{game.Yellow, game.Green, game.Black, game.Blue, game.Orange, game.Red},
			bets:      map[string]game.Car{"host": game.Black, "p2": game.Red, "p3": game.Green},
		},
	}
	for i, r := range rounds {
		round := i + 1
		require.NoError(t, s.SetPositions(r.standings))
		for id, car := range r.bets {
			require.NoError(t, s.PlaceBet(id, round, car))
		}
		if round < game.NumRounds {
			require.NoError(t, s.AdvanceBettingRound())
		}
	}
	require.NoError(t, s.FinalizeRace(gridOrder))
	return s
}

func TestScoreAll(t *testing.T) {
	t.Parallel()
	scores, err := ScoreAll(finishedGame(t))
	require.NoError(t, err)
	require.Len(t, scores, 3)

	host := scores[0]
	assert.Equal(t, "host", host.PlayerID)
	assert.Equal(t, "Ana", host.PlayerName)
	assert.Equal(t, 1, host.Rank)
	assert.Equal(t, 5, host.AuctionTotal)
	assert.Equal(t, 12, host.RacingTotal)
	assert.Equal(t, 6+0+3, host.BettingTotal)
	assert.Equal(t, 16, host.TotalWinnings)

	bruno := scores[1]
	assert.Equal(t, "p2", bruno.PlayerID)
	assert.Equal(t, 2, bruno.Rank)
	assert.Equal(t, 7, bruno.AuctionTotal)
	assert.Equal(t, 9+2, bruno.RacingTotal)
	assert.Equal(t, 2, bruno.BettingTotal)
	assert.Equal(t, 6, bruno.TotalWinnings)

	carla := scores[2]
	assert.Equal(t, "p3", carla.PlayerID)
	assert.Equal(t, 3, carla.Rank)
	assert.Equal(t, 0, carla.TotalWinnings)
	assert.Empty(t, carla.Cars)
	assert.Len(t, carla.Bets, 3)

	assert.Equal(t, []PlayerScore{host}, Winners(scores))
}

func TestScorePlayerBreakdown(t *testing.T) {
	t.Parallel()
	s := finishedGame(t)
	host, _ := s.Player("host")

	score, err := ScorePlayer(s, host)
	require.NoError(t, err)

	assert.Equal(t, []CarResult{{Car: game.Black, Price: 5, FinalPosition: 1, Prize: 12}}, score.Cars)
	assert.Equal(t, []BetResult{
		{Round: 1, Car: game.Black, Position: 2, FinalPosition: 1, Multiplier: 3, Payout: 6},
		{Round: 2, Car: game.Green, Position: 3, FinalPosition: 3, Multiplier: 0, Payout: 0},
		{Round: 3, Car: game.Black, Position: 3, FinalPosition: 1, Multiplier: 1, Payout: 3},
	}, score.Bets)
}

// The worked example: black bought for 5, bet on black in round one at
// standing 2, black wins. 12 + 2*3 - 5 = 13.
func TestSingleCarExample(t *testing.T) {
	t.Parallel()
	s := &game.State{
		Phase:   game.PhaseFinished,
		Players: []*game.Player{{ID: "p1", Name: "Solo", IsHost: true}},
		Owners:  map[game.Car]game.Ownership{game.Black: {PlayerID: "p1", Price: 5}},
		FinalPositions: map[game.Car]int{
			game.Black: 1, game.Blue: 2, game.Green: 3, game.Orange: 4, game.Red: 5, game.Yellow: 6,
		},
	}
	s.Players[0].Bets[0] = game.Bet{Car: game.Black, Position: 2}

	scores, err := ScoreAll(s)
	require.NoError(t, err)
	require.Len(t, scores, 1)
	assert.Equal(t, 12, scores[0].RacingTotal)
	assert.Equal(t, 6, scores[0].BettingTotal)
	assert.Equal(t, 5, scores[0].AuctionTotal)
	assert.Equal(t, 13, scores[0].TotalWinnings)
}

func TestTiesKeepJoinOrder(t *testing.T) {
	t.Parallel()
	final := map[game.Car]int{
		game.Black: 1, game.Blue: 2, game.Green: 3, game.Orange: 4, game.Red: 5, game.Yellow: 6,
	}
	s := &game.State{
		Phase: game.PhaseFinished,
		Players: []*game.Player{
			{ID: "zed", Name: "Zed", IsHost: true},
			{ID: "amy", Name: "Amy"},
			{ID: "bob", Name: "Bob"},
			{ID: "cat", Name: "Cat"},
		},
		Owners: map[game.Car]game.Ownership{
			game.Orange: {PlayerID: "bob", Price: 0}, // 4
			game.Green:  {PlayerID: "amy", Price: 2}, // 6 - 2 = 4
			game.Black:  {PlayerID: "cat", Price: 1}, // 12 - 1 = 11
		},
		FinalPositions: final,
	}

	for i := 0; i < 5; i++ {
		scores, err := ScoreAll(s)
		require.NoError(t, err)

		ids := make([]string, len(scores))
		ranks := make([]int, len(scores))
		for j, sc := range scores {
			ids[j] = sc.PlayerID
			ranks[j] = sc.Rank
		}
		assert.Equal(t, []string{"cat", "amy", "bob", "zed"}, ids)
		assert.Equal(t, []int{1, 2, 2, 4}, ranks)
	}
}

func TestScoreAllIsIdempotent(t *testing.T) {
	t.Parallel()
	s := finishedGame(t)
	before := s.Clone()

	first, err := ScoreAll(s)
	require.NoError(t, err)
	second, err := ScoreAll(s)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, before, s, "scoring must not mutate the state")
}

func TestNotFinished(t *testing.T) {
	t.Parallel()
	s := game.New("1000", "host", "Ana", time.Unix(0, 0))

	_, err := ScoreAll(s)
	require.ErrorIs(t, err, ErrNotFinished)

	_, err = ScorePlayer(s, s.Players[0])
	require.ErrorIs(t, err, ErrNotFinished)
}

func TestMultiplier(t *testing.T) {
	t.Parallel()
	tests := []struct {
		round, pos, want int
	}{
		{1, 1, 3}, {1, 2, 2}, {1, 3, 1}, {1, 4, 0},
		{2, 1, 2}, {2, 2, 1}, {2, 3, 0},
		{3, 1, 1}, {3, 2, 0}, {3, 3, 0}, {3, 6, 0},
		{0, 1, 0}, {4, 1, 0}, {1, 0, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Multiplier(tt.round, tt.pos), "round %d pos %d", tt.round, tt.pos)
	}
}
