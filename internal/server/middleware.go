package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/lox/downforce/internal/i18n"
)

const localeKey = "locale"

// localeMiddleware picks the response language from ?lang= or
// Accept-Language.
func localeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		loc := i18n.Match(c.GetHeader("Accept-Language"))
		if q := c.Query("lang"); q != "" {
			if parsed, ok := i18n.Parse(q); ok {
				loc = parsed
			}
		}
		c.Set(localeKey, loc)
		c.Header("Content-Language", string(loc))
		c.Next()
	}
}

func locale(c *gin.Context) i18n.Locale {
	if v, ok := c.Get(localeKey); ok {
		if loc, ok := v.(i18n.Locale); ok {
			return loc
		}
	}
	return i18n.Default
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter hands out a token bucket per client IP.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientLimiter
	limit   rate.Limit
	burst   int
	clock   quartz.Clock
}

// NewRateLimiter allows each client limit requests per second with bursts
// of up to burst.
func NewRateLimiter(limit rate.Limit, burst int, clock quartz.Clock) *RateLimiter {
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &RateLimiter{
		clients: make(map[string]*clientLimiter),
		limit:   limit,
		burst:   burst,
		clock:   clock,
	}
}

// Allow reports whether client may make a request now.
func (r *RateLimiter) Allow(client string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	cl, ok := r.clients[client]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(r.limit, r.burst)}
		r.clients[client] = cl
	}
	cl.lastSeen = now
	return cl.limiter.AllowN(now, 1)
}

// Prune forgets clients idle for longer than idle and returns how many
// were dropped.
func (r *RateLimiter) Prune(idle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.clock.Now().Add(-idle)
	pruned := 0
	for client, cl := range r.clients {
		if cl.lastSeen.Before(cutoff) {
			delete(r.clients, client)
			pruned++
		}
	}
	return pruned
}

func (r *RateLimiter) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !r.Allow(c.ClientIP()) {
			abortWithKey(c, http.StatusTooManyRequests, i18n.ErrRateLimited)
			return
		}
		c.Next()
	}
}

// requestLogger logs every request through zerolog.
func requestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		event := logger.Debug()
		switch {
		case status >= http.StatusInternalServerError:
			event = logger.Error()
		case status == http.StatusTooManyRequests:
			event = logger.Warn()
		}
		if len(c.Errors) > 0 {
			event = event.Err(c.Errors.Last())
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("client", c.ClientIP()).
			Msg("Request")
	}
}
