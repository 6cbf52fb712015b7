package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/lox/downforce/internal/game"
	"github.com/lox/downforce/internal/room"
	"github.com/lox/downforce/internal/store"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard).Level(zerolog.Disabled)
}

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T, st store.Store, limiter *RateLimiter) http.Handler {
	t.Helper()
	if st == nil {
		st = store.NewMemoryStore(quartz.NewMock(t), testLogger())
	}
	rooms := room.NewService(st, testLogger(), room.Config{})
	return New(rooms, limiter, testLogger(), Config{}).Handler()
}

func do(t *testing.T, h http.Handler, method, path string, body any, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

// createRoom returns the room code and host ID.
func createRoom(t *testing.T, h http.Handler) (string, string) {
	t.Helper()
	w := do(t, h, http.MethodPost, "/api/rooms", map[string]any{"hostName": "Ana"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	resp := decode[JoinResponse](t, w)
	return resp.GameState.RoomCode, resp.PlayerID
}

func joinRoom(t *testing.T, h http.Handler, code, name string) string {
	t.Helper()
	w := do(t, h, http.MethodPost, "/api/rooms/"+code+"/players", map[string]any{"playerName": name})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decode[JoinResponse](t, w).PlayerID
}

func TestHealth(t *testing.T) {
	h := newTestServer(t, nil, nil)
	w := do(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
}

func TestCreateRoomView(t *testing.T) {
	h := newTestServer(t, nil, nil)
	w := do(t, h, http.MethodPost, "/api/rooms", map[string]any{"hostName": "Ana"})
	require.Equal(t, http.StatusCreated, w.Code)

	// Check the wire shape rather than the Go types.
	var raw struct {
		GameState map[string]json.RawMessage `json:"gameState"`
		PlayerID  string                     `json:"playerId"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
	assert.NotEmpty(t, raw.PlayerID)
	for _, field := range []string{"roomCode", "phase", "players", "cars", "carOwners", "positionsSet", "createdAt"} {
		assert.Contains(t, raw.GameState, field)
	}
	assert.NotContains(t, raw.GameState, "finalPositions")

	var owners map[string]*string
	require.NoError(t, json.Unmarshal(raw.GameState["carOwners"], &owners))
	assert.Len(t, owners, game.NumCars)
	for car, owner := range owners {
		assert.Nil(t, owner, car)
	}

	var cars map[string]CarView
	require.NoError(t, json.Unmarshal(raw.GameState["cars"], &cars))
	assert.Equal(t, CarView{Color: game.Black, Name: "Preto", Position: 1}, cars["black"])
}

func TestBetKeysOnTheWire(t *testing.T) {
	h := newTestServer(t, nil, nil)
	code, host := createRoom(t, h)
	base := "/api/rooms/" + code

	w := do(t, h, http.MethodPost, base+"/start-betting", map[string]any{"playerId": host})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = do(t, h, http.MethodPut, base+"/positions", map[string]any{
		"playerId": host,
		"order":    []string{"red", "blue", "black", "green", "orange", "yellow"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = do(t, h, http.MethodPost, base+"/bets", map[string]any{"playerId": host, "round": 1, "carColor": "red"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var raw struct {
		Players map[string]struct {
			Bets         map[string]string `json:"bets"`
			BetPositions map[string]int    `json:"betPositions"`
		} `json:"players"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
	assert.Equal(t, map[string]string{"bet1": "red"}, raw.Players[host].Bets)
	assert.Equal(t, map[string]int{"bet1": 1}, raw.Players[host].BetPositions)
}

func TestJoinAndGet(t *testing.T) {
	h := newTestServer(t, nil, nil)
	code, hostID := createRoom(t, h)
	playerID := joinRoom(t, h, code, "Bruno")

	w := do(t, h, http.MethodGet, "/api/rooms/"+code, nil)
	require.Equal(t, http.StatusOK, w.Code)
	view := decode[RoomView](t, w)
	assert.Equal(t, []string{hostID, playerID}, view.PlayerOrder)
	assert.True(t, view.Players[hostID].IsHost)
	assert.Equal(t, "Bruno", view.Players[playerID].Name)
	assert.Equal(t, game.PhaseAuction, view.Phase)
}

func TestErrorResponses(t *testing.T) {
	h := newTestServer(t, nil, nil)
	code, hostID := createRoom(t, h)
	playerID := joinRoom(t, h, code, "Bruno")

	w := do(t, h, http.MethodPut, "/api/rooms/"+code+"/claim-car",
		map[string]any{"playerId": hostID, "carColor": "red", "price": 4})
	require.Equal(t, http.StatusOK, w.Code)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		header []string
		status int
		code   string
		msg    string
	}{
		{
			name:   "car already claimed, default locale",
			method: http.MethodPut, path: "/api/rooms/" + code + "/claim-car",
			body:   map[string]any{"playerId": playerID, "carColor": "red", "price": 5},
			status: http.StatusConflict, code: "car_already_claimed", msg: "Carro já foi comprado",
		},
		{
			name:   "car already claimed, english",
			method: http.MethodPut, path: "/api/rooms/" + code + "/claim-car",
			body:   map[string]any{"playerId": playerID, "carColor": "red", "price": 5},
			header: []string{"Accept-Language", "en-US,en;q=0.9"},
			status: http.StatusConflict, code: "car_already_claimed", msg: "Car already claimed",
		},
		{
			name:   "lang query wins",
			method: http.MethodPut, path: "/api/rooms/" + code + "/claim-car?lang=en",
			body:   map[string]any{"playerId": playerID, "carColor": "red", "price": 5},
			header: []string{"Accept-Language", "pt-BR"},
			status: http.StatusConflict, code: "car_already_claimed", msg: "Car already claimed",
		},
		{
			name:   "not owner",
			method: http.MethodPut, path: "/api/rooms/" + code + "/release-car?lang=en",
			body:   map[string]any{"playerId": playerID, "carColor": "red"},
			status: http.StatusForbidden, code: "not_owner", msg: "You do not own this car",
		},
		{
			name:   "unknown car",
			method: http.MethodPut, path: "/api/rooms/" + code + "/claim-car?lang=en",
			body:   map[string]any{"playerId": playerID, "carColor": "purple", "price": 1},
			status: http.StatusBadRequest, code: "unknown_car", msg: "Unknown car",
		},
		{
			name:   "missing price",
			method: http.MethodPut, path: "/api/rooms/" + code + "/claim-car?lang=en",
			body:   map[string]any{"playerId": playerID, "carColor": "blue"},
			status: http.StatusBadRequest, code: "invalid_request", msg: "Invalid request",
		},
		{
			name:   "not host",
			method: http.MethodPost, path: "/api/rooms/" + code + "/start-betting?lang=en",
			body:   map[string]any{"playerId": playerID},
			status: http.StatusForbidden, code: "not_host", msg: "Only the host can do that",
		},
		{
			name:   "wrong phase",
			method: http.MethodPost, path: "/api/rooms/" + code + "/bets?lang=en",
			body:   map[string]any{"playerId": playerID, "round": 1, "carColor": "red"},
			status: http.StatusConflict, code: "wrong_phase", msg: "Not allowed in this phase",
		},
		{
			name:   "room not found",
			method: http.MethodGet, path: "/api/rooms/9999?lang=en",
			status: http.StatusNotFound, code: "room_not_found", msg: "Room not found",
		},
		{
			name:   "scores before finish",
			method: http.MethodGet, path: "/api/rooms/" + code + "/scores?lang=en",
			status: http.StatusConflict, code: "not_finished", msg: "The race has not finished yet",
		},
		{
			name:   "blank name",
			method: http.MethodPost, path: "/api/rooms/" + code + "/players?lang=en",
			body:   map[string]any{"playerName": "   "},
			status: http.StatusBadRequest, code: "invalid_name", msg: "Invalid name",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, tt.method, tt.path, tt.body, tt.header...)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			resp := decode[ErrorResponse](t, w)
			assert.Equal(t, tt.code, resp.Code)
			assert.Equal(t, tt.msg, resp.Error)
		})
	}
}

func TestMalformedJSON(t *testing.T) {
	h := newTestServer(t, nil, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/rooms", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_request", decode[ErrorResponse](t, w).Code)
}

func TestFullGameOverHTTP(t *testing.T) {
	h := newTestServer(t, nil, nil)
	code, host := createRoom(t, h)
	bruno := joinRoom(t, h, code, "Bruno")
	base := "/api/rooms/" + code

	w := do(t, h, http.MethodPut, base+"/assignments", map[string]any{
		"playerId": host,
		"assignments": map[string]any{
			"black": map[string]any{"playerId": host, "price": 5},
			"blue":  map[string]any{"playerId": bruno, "price": 2},
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	view := decode[RoomView](t, w)
	assert.Equal(t, []game.Car{game.Black}, view.Players[host].OwnedCars)
	assert.Equal(t, map[game.Car]int{game.Blue: 2}, view.Players[bruno].AuctionPrices)
	require.NotNil(t, view.CarOwners[game.Blue])
	assert.Equal(t, bruno, *view.CarOwners[game.Blue])

	w = do(t, h, http.MethodPost, base+"/start-betting", map[string]any{"playerId": host})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	standings := []string{"blue", "black", "green", "orange", "red", "yellow"}
	for round := 1; round <= game.NumRounds; round++ {
		w = do(t, h, http.MethodPut, base+"/positions", map[string]any{"playerId": host, "order": standings})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.True(t, decode[RoomView](t, w).PositionsSet)

		w = do(t, h, http.MethodPost, base+"/bets", map[string]any{"playerId": host, "round": round, "carColor": "black"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		w = do(t, h, http.MethodPost, base+"/bets", map[string]any{"playerId": bruno, "round": round, "carColor": "blue"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		view = decode[RoomView](t, w)
		assert.Equal(t, game.Blue, view.Players[bruno].Bets[betKey(round)])
		assert.Equal(t, 1, view.Players[bruno].BetPositions[betKey(round)])

		if round < game.NumRounds {
			w = do(t, h, http.MethodPost, base+"/advance", map[string]any{"playerId": host})
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		}
	}

	w = do(t, h, http.MethodPost, base+"/finish", map[string]any{
		"playerId": host,
		"order":    []string{"black", "blue", "green", "orange", "red", "yellow"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	view = decode[RoomView](t, w)
	assert.Equal(t, game.PhaseFinished, view.Phase)
	assert.Equal(t, 1, view.FinalPositions[game.Black])

	w = do(t, h, http.MethodGet, base+"/scores", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	scores := decode[ScoresResponse](t, w)
	require.Len(t, scores.Scores, 2)
	assert.Equal(t, host, scores.Scores[0].PlayerID)
	assert.Equal(t, 19, scores.Scores[0].TotalWinnings)
	assert.Equal(t, 10, scores.Scores[1].TotalWinnings)
	assert.Equal(t, []string{host}, scores.Winners)
}

func TestLeaveRoom(t *testing.T) {
	h := newTestServer(t, nil, nil)
	code, host := createRoom(t, h)
	bruno := joinRoom(t, h, code, "Bruno")

	w := do(t, h, http.MethodDelete, "/api/rooms/"+code+"/players/"+bruno, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, decode[RoomView](t, w).Players, 1)

	w = do(t, h, http.MethodDelete, "/api/rooms/"+code+"/players/"+host, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, h, http.MethodGet, "/api/rooms/"+code, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRateLimit(t *testing.T) {
	clock := quartz.NewMock(t)
	limiter := NewRateLimiter(rate.Every(time.Minute), 2, clock)
	h := newTestServer(t, nil, limiter)

	for i := 0; i < 2; i++ {
		w := do(t, h, http.MethodGet, "/api/rooms/9999", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	}
	w := do(t, h, http.MethodGet, "/api/rooms/9999?lang=en", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "rate_limited", decode[ErrorResponse](t, w).Code)

	// Health checks are not limited.
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/health", nil).Code)

	clock.Advance(time.Minute).MustWait(context.Background())
	w = do(t, h, http.MethodGet, "/api/rooms/9999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRateLimiterPrune(t *testing.T) {
	clock := quartz.NewMock(t)
	limiter := NewRateLimiter(rate.Limit(1), 1, clock)

	assert.True(t, limiter.Allow("a"))
	clock.Advance(5 * time.Minute).MustWait(context.Background())
	assert.True(t, limiter.Allow("b"))

	assert.Equal(t, 1, limiter.Prune(time.Minute))
	assert.Equal(t, 0, limiter.Prune(time.Minute))
}

// brokenStore fails every write.
type brokenStore struct {
	store.Store
}

func (brokenStore) Update(context.Context, string, *game.State, time.Duration) error {
	return errors.New("connection reset")
}

func TestPersistenceFailureIsReported(t *testing.T) {
	mem := store.NewMemoryStore(quartz.NewMock(t), testLogger())
	code, host := createRoom(t, newTestServer(t, mem, nil))

	h := newTestServer(t, brokenStore{Store: mem}, nil)
	w := do(t, h, http.MethodPut, "/api/rooms/"+code+"/claim-car?lang=en",
		map[string]any{"playerId": host, "carColor": "red", "price": 1})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "internal", decode[ErrorResponse](t, w).Code)

	// Nothing was written.
	w = do(t, h, http.MethodGet, "/api/rooms/"+code, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, decode[RoomView](t, w).CarOwners[game.Red])
}
