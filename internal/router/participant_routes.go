package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tournament-registration/internal/handler"
	"github.com/iliyamo/tournament-registration/internal/middleware"
	"github.com/iliyamo/tournament-registration/internal/model"
)

// RegisterParticipant registers the registration endpoints open to any
// authenticated role.  limiter throttles registration writes per user and
// purge clears cached browse responses after successful writes; either may
// be nil.
func RegisterParticipant(e *echo.Echo, r *handler.RegistrationHandler, jwtSecret string, limiter, purge echo.MiddlewareFunc) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleUser, model.RoleOrganizer, model.RoleAdmin),
	)

	var writes []echo.MiddlewareFunc
	for _, m := range []echo.MiddlewareFunc{limiter, purge} {
		if m != nil {
			writes = append(writes, m)
		}
	}

	g.POST("/tournaments/:id/registrations", r.Register, writes...)
	g.GET("/my-registrations", r.ListMine)
	g.GET("/registrations/:id", r.Get)
	g.POST("/registrations/:id/payment", r.Pay, writes...)
}
