package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tournament-registration/internal/model"
	"github.com/iliyamo/tournament-registration/internal/service"
)

// StatsHandler serves dashboard statistics and the counter consistency
// check.
type StatsHandler struct {
	Reporter   *service.Reporter
	Aggregator *service.Aggregator
}

// OrganizerStats handles GET /v1/organizer/stats for the caller's own
// tournaments.  Organizer stats are always computed live.
func (h *StatsHandler) OrganizerStats(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	st, err := h.Reporter.ComputeOrganizerStats(c.Request().Context(), uid)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, st)
}

// AdminStats handles GET /v1/admin/stats.  It serves the stored snapshot
// while fresh; ?refresh=true recomputes and replaces the snapshot.
func (h *StatsHandler) AdminStats(c echo.Context) error {
	ctx := c.Request().Context()
	var (
		st  model.Stats
		err error
	)
	if c.QueryParam("refresh") == "true" {
		st, err = h.Reporter.RefreshGlobalStats(ctx)
	} else {
		st, err = h.Reporter.GlobalStats(ctx)
	}
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, st)
}

// AdminOrganizerStats handles GET /v1/admin/organizers/:id/stats.
func (h *StatsHandler) AdminOrganizerStats(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid organizer id")
	}
	st, err := h.Reporter.ComputeOrganizerStats(c.Request().Context(), id)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, st)
}

// Consistency handles GET /v1/admin/tournaments/:id/consistency and returns
// the stored counter next to the live count plus the revenue summary.
func (h *StatsHandler) Consistency(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid tournament id")
	}
	ctx := c.Request().Context()
	res, err := h.Aggregator.Verify(ctx, id)
	if err != nil {
		return writeServiceError(c, err)
	}
	sum, err := h.Aggregator.Summary(ctx, id)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"consistency": res, "summary": sum})
}
