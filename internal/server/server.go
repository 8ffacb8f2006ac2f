// Package server assembles the echo instance: shared middleware, health
// endpoints and every package's route table behind the right authentication.
package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/sudo-init-do/bazaar/internal/api"
	"github.com/sudo-init-do/bazaar/internal/config"
	appmw "github.com/sudo-init-do/bazaar/internal/middleware"
)

const readyTimeout = 2 * time.Second

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// New builds the HTTP surface. Duplicate method+path pairs across tables are
// rejected instead of silently shadowing each other.
func New(cfg config.ServerConfig, auth *appmw.Authenticator, db Pinger, tables ...[]api.Route) (*echo.Echo, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	api.Install(e)

	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{Skipper: isProbe}))
	e.Use(middleware.Recover())
	if len(cfg.AllowedOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: cfg.AllowedOrigins,
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		}))
	}
	if cfg.RateLimit > 0 {
		e.Use(middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
			Skipper: unmetered,
			Store:   middleware.NewRateLimiterMemoryStore(rate.Limit(cfg.RateLimit)),
		}))
	}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	})
	e.GET("/ready", ready(db))

	seen := make(map[string]bool)
	for _, table := range append([][]api.Route{identityRoutes()}, tables...) {
		for _, r := range table {
			key := r.Method + " " + r.Path
			if seen[key] {
				return nil, fmt.Errorf("server: route %s registered twice", key)
			}
			seen[key] = true
			e.Add(r.Method, r.Path, r.Handler, guard(auth, r.Access)...)
		}
	}
	return e, nil
}

func guard(auth *appmw.Authenticator, access api.Access) []echo.MiddlewareFunc {
	switch access {
	case api.OptionalAuth:
		return []echo.MiddlewareFunc{auth.Optional}
	case api.Authenticated:
		return []echo.MiddlewareFunc{auth.Required}
	case api.Socket:
		return []echo.MiddlewareFunc{auth.Socket}
	default:
		return nil
	}
}

func isProbe(c echo.Context) bool {
	p := c.Request().URL.Path
	return p == "/health" || p == "/ready"
}

// unmetered skips health checks, long-lived sockets and provider webhooks.
// Webhooks are authenticated by signature and must never be answered 429.
func unmetered(c echo.Context) bool {
	p := c.Request().URL.Path
	return isProbe(c) || strings.HasPrefix(p, "/ws/") || strings.HasPrefix(p, "/webhooks/")
}

func ready(db Pinger) echo.HandlerFunc {
	return func(c echo.Context) error {
		if db == nil {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "not_ready", "error": "db not initialized"})
		}
		ctx, cancel := context.WithTimeout(c.Request().Context(), readyTimeout)
		defer cancel()
		if err := db.Ping(ctx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "not_ready", "error": "db unreachable"})
		}
		return c.JSON(http.StatusOK, echo.Map{"status": "ready"})
	}
}
