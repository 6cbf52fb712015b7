// Package server exposes the room service over HTTP.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/lox/downforce/internal/room"
)

// Config configures the HTTP server.
type Config struct {
	Address     string
	CORSOrigins []string // empty allows any origin
	RateLimit   rate.Limit // used when New is given no limiter
	RateBurst   int
}

// Server is the JSON API in front of a room.Service.
type Server struct {
	rooms   *room.Service
	logger  zerolog.Logger
	engine  *gin.Engine
	limiter *RateLimiter
	http    *http.Server
}

// New builds the server and its routes. It does not start listening.
func New(rooms *room.Service, limiter *RateLimiter, logger zerolog.Logger, cfg Config) *Server {
	s := &Server{
		rooms:   rooms,
		logger:  logger.With().Str("component", "http").Logger(),
		limiter: limiter,
	}
	if s.limiter == nil {
		limit, burst := cfg.RateLimit, cfg.RateBurst
		if limit <= 0 {
			limit, burst = rate.Inf, 1
		}
		s.limiter = NewRateLimiter(limit, burst, nil)
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.logger))
	r.Use(cors.New(corsConfig(cfg.CORSOrigins)))

	r.GET("/health", s.handleHealth)

	api := r.Group("/api", localeMiddleware(), s.limiter.middleware())
	{
		api.POST("/rooms", s.handleCreateRoom)

		rooms := api.Group("/rooms/:code")
		rooms.GET("", s.handleGetRoom)
		rooms.POST("/players", s.handleJoinRoom)
		rooms.DELETE("/players/:playerId", s.handleLeaveRoom)
		rooms.PUT("/claim-car", s.handleClaimCar)
		rooms.PUT("/release-car", s.handleReleaseCar)
		rooms.PUT("/assignments", s.handleAssignCars)
		rooms.POST("/start-betting", s.handleStartBetting)
		rooms.PUT("/positions", s.handleSetPositions)
		rooms.POST("/bets", s.handlePlaceBet)
		rooms.POST("/advance", s.handleAdvance)
		rooms.POST("/finish", s.handleFinish)
		rooms.GET("/scores", s.handleScores)
	}

	s.engine = r
	s.http = &http.Server{
		Addr:              cfg.Address,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Content-Type", "Accept-Language"},
		MaxAge:       12 * time.Hour,
	}
	if len(origins) == 0 {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
	}
	return c
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve serves on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info().Str("addr", ln.Addr().String()).Msg("Starting HTTP server")
	if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Shutting down HTTP server")
	return s.http.Shutdown(ctx)
}
