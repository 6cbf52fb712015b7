// Package game implements the Downforce room state machine.
//
// The main type is State, one per room. It holds the auction ownership of
// the six cars, the standings the host publishes between betting rounds,
// every player's bets and, once the race is over, the final positions.
//
// # Basic Usage
//
//	s := game.New("4821", hostID, "Ana", time.Now())
//	_ = s.AddPlayer(bobID, "Bob")
//	_ = s.ClaimCar(bobID, game.Red, 7)
//	_ = s.StartBetting()
//	_ = s.SetPositions([]game.Car{game.Red, game.Blue, game.Black, game.Green, game.Orange, game.Yellow})
//	_ = s.PlaceBet(bobID, 1, game.Red)
//
// Every mutating method checks all of its preconditions before touching the
// state. When a method returns an error the state is exactly as it was.
//
// State carries no locks. Callers load a snapshot, apply one operation and
// save it back through a store that rejects stale revisions; see the room
// package.
package game
