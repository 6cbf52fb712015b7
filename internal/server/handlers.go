package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lox/downforce/internal/game"
	"github.com/lox/downforce/internal/i18n"
	"github.com/lox/downforce/internal/scoring"
)

type createRoomRequest struct {
	HostName string `json:"hostName" binding:"required"`
}

type joinRoomRequest struct {
	PlayerName string `json:"playerName" binding:"required"`
}

// JoinResponse carries the caller's new player ID alongside the room.
type JoinResponse struct {
	GameState RoomView `json:"gameState"`
	PlayerID  string   `json:"playerId"`
}

type claimCarRequest struct {
	PlayerID string `json:"playerId" binding:"required"`
	CarColor string `json:"carColor" binding:"required"`
	Price    *int   `json:"price" binding:"required"`
}

type releaseCarRequest struct {
	PlayerID string `json:"playerId" binding:"required"`
	CarColor string `json:"carColor" binding:"required"`
}

type assignment struct {
	PlayerID string `json:"playerId"`
	Price    int    `json:"price"`
}

type assignCarsRequest struct {
	PlayerID    string                `json:"playerId" binding:"required"`
	Assignments map[string]assignment `json:"assignments"`
}

type hostRequest struct {
	PlayerID string `json:"playerId" binding:"required"`
}

type orderRequest struct {
	PlayerID string   `json:"playerId" binding:"required"`
	Order    []string `json:"order" binding:"required"`
}

type betRequest struct {
	PlayerID string `json:"playerId" binding:"required"`
	Round    int    `json:"round" binding:"required,min=1,max=3"`
	CarColor string `json:"carColor" binding:"required"`
}

// ScoresResponse is the scoreboard of a finished room.
type ScoresResponse struct {
	Scores  []scoring.PlayerScore `json:"scores"`
	Winners []string              `json:"winners"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

func (s *Server) handleCreateRoom(c *gin.Context) {
	var req createRoomRequest
	if !s.bind(c, &req) {
		return
	}
	st, playerID, err := s.rooms.CreateRoom(c.Request.Context(), req.HostName)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, JoinResponse{GameState: newRoomView(st, locale(c)), PlayerID: playerID})
}

func (s *Server) handleGetRoom(c *gin.Context) {
	st, err := s.rooms.Get(c.Request.Context(), c.Param("code"))
	s.respond(c, st, err)
}

func (s *Server) handleJoinRoom(c *gin.Context) {
	var req joinRoomRequest
	if !s.bind(c, &req) {
		return
	}
	st, playerID, err := s.rooms.JoinRoom(c.Request.Context(), c.Param("code"), req.PlayerName)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, JoinResponse{GameState: newRoomView(st, locale(c)), PlayerID: playerID})
}

func (s *Server) handleLeaveRoom(c *gin.Context) {
	st, err := s.rooms.LeaveRoom(c.Request.Context(), c.Param("code"), c.Param("playerId"))
	if err != nil {
		s.fail(c, err)
		return
	}
	if st == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, newRoomView(st, locale(c)))
}

func (s *Server) handleClaimCar(c *gin.Context) {
	var req claimCarRequest
	if !s.bind(c, &req) {
		return
	}
	st, err := s.rooms.ClaimCar(c.Request.Context(), c.Param("code"), req.PlayerID, game.Car(req.CarColor), *req.Price)
	s.respond(c, st, err)
}

func (s *Server) handleReleaseCar(c *gin.Context) {
	var req releaseCarRequest
	if !s.bind(c, &req) {
		return
	}
	st, err := s.rooms.ReleaseCar(c.Request.Context(), c.Param("code"), req.PlayerID, game.Car(req.CarColor))
	s.respond(c, st, err)
}

func (s *Server) handleAssignCars(c *gin.Context) {
	var req assignCarsRequest
	if !s.bind(c, &req) {
		return
	}
	assignments := make(map[game.Car]game.Assignment, len(req.Assignments))
	for color, a := range req.Assignments {
		assignments[game.Car(color)] = game.Assignment{PlayerID: a.PlayerID, Price: a.Price}
	}
	st, err := s.rooms.AssignCars(c.Request.Context(), c.Param("code"), req.PlayerID, assignments)
	s.respond(c, st, err)
}

func (s *Server) handleStartBetting(c *gin.Context) {
	var req hostRequest
	if !s.bind(c, &req) {
		return
	}
	st, err := s.rooms.StartBetting(c.Request.Context(), c.Param("code"), req.PlayerID)
	s.respond(c, st, err)
}

func (s *Server) handleSetPositions(c *gin.Context) {
	var req orderRequest
	if !s.bind(c, &req) {
		return
	}
	st, err := s.rooms.SetPositions(c.Request.Context(), c.Param("code"), req.PlayerID, toCars(req.Order))
	s.respond(c, st, err)
}

func (s *Server) handlePlaceBet(c *gin.Context) {
	var req betRequest
	if !s.bind(c, &req) {
		return
	}
	st, err := s.rooms.PlaceBet(c.Request.Context(), c.Param("code"), req.PlayerID, req.Round, game.Car(req.CarColor))
	s.respond(c, st, err)
}

func (s *Server) handleAdvance(c *gin.Context) {
	var req hostRequest
	if !s.bind(c, &req) {
		return
	}
	st, err := s.rooms.AdvanceRound(c.Request.Context(), c.Param("code"), req.PlayerID)
	s.respond(c, st, err)
}

func (s *Server) handleFinish(c *gin.Context) {
	var req orderRequest
	if !s.bind(c, &req) {
		return
	}
	st, err := s.rooms.FinalizeRace(c.Request.Context(), c.Param("code"), req.PlayerID, toCars(req.Order))
	s.respond(c, st, err)
}

func (s *Server) handleScores(c *gin.Context) {
	scores, err := s.rooms.Scores(c.Request.Context(), c.Param("code"))
	if err != nil {
		s.fail(c, err)
		return
	}
	resp := ScoresResponse{Scores: scores, Winners: []string{}}
	for _, w := range scoring.Winners(scores) {
		resp.Winners = append(resp.Winners, w.PlayerID)
	}
	c.JSON(http.StatusOK, resp)
}

// bind decodes the JSON body into req, answering 400 on failure.
func (s *Server) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		_ = c.Error(err)
		abortWithKey(c, http.StatusBadRequest, i18n.ErrInvalidRequest)
		return false
	}
	return true
}

func (s *Server) respond(c *gin.Context, st *game.State, err error) {
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newRoomView(st, locale(c)))
}

func (s *Server) fail(c *gin.Context, err error) {
	status, key := classify(err)
	_ = c.Error(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("path", c.FullPath()).Str("room", c.Param("code")).Msg("Request failed")
	}
	abortWithKey(c, status, key)
}

func toCars(order []string) []game.Car {
	cars := make([]game.Car, len(order))
	for i, o := range order {
		cars[i] = game.Car(o)
	}
	return cars
}
