package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tournament-registration/internal/handler"
	"github.com/iliyamo/tournament-registration/internal/middleware"
	"github.com/iliyamo/tournament-registration/internal/model"
)

// RegisterOrganizer registers tournament management endpoints.  All routes
// require a valid JWT and the ORGANIZER or ADMIN role; ownership is
// checked by the services.
func RegisterOrganizer(e *echo.Echo, t *handler.TournamentHandler, r *handler.RegistrationHandler, s *handler.StatsHandler, jwtSecret string, purge echo.MiddlewareFunc) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleOrganizer, model.RoleAdmin),
	)
	var mw []echo.MiddlewareFunc
	if purge != nil {
		mw = append(mw, purge)
	}

	// ---- Tournaments ----
	g.POST("/tournaments", t.Create, mw...)
	g.PUT("/tournaments/:id", t.Update, mw...)
	g.PATCH("/tournaments/:id", t.Update, mw...)
	g.PATCH("/tournaments/:id/status", t.UpdateStatus, mw...)
	g.DELETE("/tournaments/:id", t.Delete, mw...)

	// ---- Registrations ----
	g.GET("/tournaments/:id/registrations", r.ListForTournament)
	g.POST("/registrations/:id/cancel", r.Cancel, mw...)
	g.POST("/registrations/:id/payment-failed", r.PaymentFailed, mw...)

	g.GET("/organizer/stats", s.OrganizerStats)
}

// RegisterAdmin registers the ADMIN-only dashboard endpoints.
func RegisterAdmin(e *echo.Echo, s *handler.StatsHandler, jwtSecret string) {
	g := e.Group(
		"/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
	)
	g.GET("/stats", s.AdminStats)
	g.GET("/organizers/:id/stats", s.AdminOrganizerStats)
	g.GET("/tournaments/:id/consistency", s.Consistency)
}
