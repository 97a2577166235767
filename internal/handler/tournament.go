package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tournament-registration/internal/model"
	"github.com/iliyamo/tournament-registration/internal/repository"
	"github.com/iliyamo/tournament-registration/internal/service"
)

// TournamentHandler serves tournament browsing for everyone and tournament
// management for organizers and admins.
type TournamentHandler struct {
	Tournaments *service.TournamentService
}

// NewTournamentHandler panics when the service is missing.
func NewTournamentHandler(svc *service.TournamentService) *TournamentHandler {
	if svc == nil {
		panic("nil service passed to NewTournamentHandler")
	}
	return &TournamentHandler{Tournaments: svc}
}

// List handles GET /v1/tournaments.  Query parameters: sport_type, status,
// organizer_id, q, page, page_size.
func (h *TournamentHandler) List(c echo.Context) error {
	f := repository.TournamentFilter{
		SportType: model.SportType(strings.ToLower(strings.TrimSpace(c.QueryParam("sport_type")))),
		Status:    model.TournamentStatus(strings.ToLower(strings.TrimSpace(c.QueryParam("status")))),
		Search:    c.QueryParam("q"),
		Page:      1,
		PageSize:  20,
	}
	if v := c.QueryParam("organizer_id"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return badRequest(c, "invalid organizer_id")
		}
		f.OrganizerID = n
	}
	if v := c.QueryParam("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return badRequest(c, "invalid page")
		}
		f.Page = n
	}
	if v := c.QueryParam("page_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			return badRequest(c, "page_size must be between 1 and 100")
		}
		f.PageSize = n
	}

	items, total, err := h.Tournaments.List(c.Request().Context(), f)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"items":     items,
		"total":     total,
		"page":      f.Page,
		"page_size": f.PageSize,
	})
}

// Get handles GET /v1/tournaments/:id.
func (h *TournamentHandler) Get(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid tournament id")
	}
	v, err := h.Tournaments.Get(c.Request().Context(), id)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, v)
}

// GetBySlug handles GET /v1/tournaments/slug/:slug.
func (h *TournamentHandler) GetBySlug(c echo.Context) error {
	v, err := h.Tournaments.GetBySlug(c.Request().Context(), c.Param("slug"))
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, v)
}

// Create handles POST /v1/tournaments.
func (h *TournamentHandler) Create(c echo.Context) error {
	actor, err := getActor(c)
	if err != nil {
		return unauthorized(c)
	}
	var in service.TournamentInput
	if err := c.Bind(&in); err != nil {
		return badRequest(c, "invalid request body")
	}
	t, err := h.Tournaments.Create(c.Request().Context(), actor, in)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, t)
}

// Update handles PUT and PATCH /v1/tournaments/:id.  Both accept a partial
// body; omitted fields keep their value.
func (h *TournamentHandler) Update(c echo.Context) error {
	actor, err := getActor(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid tournament id")
	}
	var patch service.TournamentPatch
	if err := c.Bind(&patch); err != nil {
		return badRequest(c, "invalid request body")
	}
	t, err := h.Tournaments.Update(c.Request().Context(), actor, id, patch)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, t)
}

// UpdateStatus handles PATCH /v1/tournaments/:id/status with body
// {"status": "..."}.
func (h *TournamentHandler) UpdateStatus(c echo.Context) error {
	actor, err := getActor(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid tournament id")
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	status := model.TournamentStatus(strings.ToLower(strings.TrimSpace(body.Status)))
	t, err := h.Tournaments.UpdateStatus(c.Request().Context(), actor, id, status)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, t)
}

// Delete handles DELETE /v1/tournaments/:id.  A tournament with
// registrations is deactivated instead of removed; the response says which.
func (h *TournamentHandler) Delete(c echo.Context) error {
	actor, err := getActor(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid tournament id")
	}
	soft, err := h.Tournaments.Delete(c.Request().Context(), actor, id)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"id": id, "deleted": true, "soft": soft})
}
