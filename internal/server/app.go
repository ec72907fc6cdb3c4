package server

import (
	"database/sql"
	"net/http"

	"tenderbench/internal/auth"
	"tenderbench/internal/store"
	"tenderbench/internal/websocket"
)

// App holds shared dependencies for the application.
type App struct {
	DB      *sql.DB
	Store   *store.Store
	Hub     *websocket.Hub
	Keys    *auth.KeyChecker
	Limiter *RateLimiter
	// RateLimit is the per-IP request budget per minute for /api/; 0 disables it.
	RateLimit int
}

// Wrap applies the middleware chain around the router, outermost first:
// logging, security headers, rate limit, api key, gzip.
func (a *App) Wrap(h http.Handler) http.Handler {
	if a.Limiter == nil {
		a.Limiter = NewRateLimiter()
	}
	h = GzipMiddleware(h)
	h = RequireAPIKey(a.Keys)(h)
	h = RateLimitMiddleware(a.Limiter, a.RateLimit)(h)
	h = SecurityHeaders(h)
	return LoggingMiddleware(h)
}
