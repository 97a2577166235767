package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tournament-registration/internal/handler"
)

// RegisterRoutes registers routes that do not require authentication or
// caching.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo, h *handler.HealthHandler) {
	e.GET("/healthz", h.Health)
}

// RegisterPublic registers the unauthenticated browse endpoints.  cache is
// the response cache middleware; pass nil to serve every request live.
func RegisterPublic(e *echo.Echo, t *handler.TournamentHandler, cache echo.MiddlewareFunc) {
	var mw []echo.MiddlewareFunc
	if cache != nil {
		mw = append(mw, cache)
	}
	e.GET("/v1/tournaments", t.List, mw...)
	// the static "slug" segment wins over :id, so both routes coexist
	e.GET("/v1/tournaments/slug/:slug", t.GetBySlug, mw...)
	e.GET("/v1/tournaments/:id", t.Get, mw...)
}
