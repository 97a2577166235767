package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tournament-registration/internal/model"
	"github.com/iliyamo/tournament-registration/internal/service"
)

// RegistrationHandler exposes the registration ledger.
type RegistrationHandler struct {
	Ledger *service.Ledger
}

// NewRegistrationHandler panics when the ledger is missing.
func NewRegistrationHandler(l *service.Ledger) *RegistrationHandler {
	if l == nil {
		panic("nil ledger passed to NewRegistrationHandler")
	}
	return &RegistrationHandler{Ledger: l}
}

// registerBody is the body of POST /v1/tournaments/:id/registrations.
// user_id is only honoured for admins registering someone else.
type registerBody struct {
	UserID        uint64         `json:"user_id"`
	PaymentStatus string         `json:"payment_status"`
	Profile       *model.Profile `json:"profile"`
}

// Register handles POST /v1/tournaments/:id/registrations.
func (h *RegistrationHandler) Register(c echo.Context) error {
	actor, err := getActor(c)
	if err != nil {
		return unauthorized(c)
	}
	tid, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid tournament id")
	}
	var body registerBody
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	res, err := h.Ledger.Register(c.Request().Context(), actor, service.RegisterInput{
		TournamentID:  tid,
		UserID:        body.UserID,
		PaymentStatus: model.PaymentStatus(strings.ToLower(strings.TrimSpace(body.PaymentStatus))),
		Profile:       body.Profile,
	})
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, res)
}

// ListMine handles GET /v1/my-registrations.
func (h *RegistrationHandler) ListMine(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	items, err := h.Ledger.ListMine(c.Request().Context(), uid)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Get handles GET /v1/registrations/:id for the registrant, the
// tournament's organizer or an admin.
func (h *RegistrationHandler) Get(c echo.Context) error {
	actor, err := getActor(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid registration id")
	}
	reg, err := h.Ledger.Get(c.Request().Context(), actor, id)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, reg)
}

// Pay handles POST /v1/registrations/:id/payment with body
// {"amount_paid_cents": n}.  The payment itself happens elsewhere; this
// records its outcome.
func (h *RegistrationHandler) Pay(c echo.Context) error {
	actor, err := getActor(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid registration id")
	}
	var body struct {
		AmountPaidCents *int64 `json:"amount_paid_cents"`
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if body.AmountPaidCents == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error":  "amount_paid_cents is required",
			"code":   "VALIDATION_ERROR",
			"fields": []string{"amount_paid_cents"},
		})
	}
	reg, err := h.Ledger.MarkPaid(c.Request().Context(), actor, id, *body.AmountPaidCents)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, reg)
}

// PaymentFailed handles POST /v1/registrations/:id/payment-failed.
func (h *RegistrationHandler) PaymentFailed(c echo.Context) error {
	actor, err := getActor(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid registration id")
	}
	reg, err := h.Ledger.MarkPaymentFailed(c.Request().Context(), actor, id)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, reg)
}

// Cancel handles POST /v1/registrations/:id/cancel with an optional
// {"reason": "..."} body.  Cancelling twice returns the cancelled row.
func (h *RegistrationHandler) Cancel(c echo.Context) error {
	actor, err := getActor(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid registration id")
	}
	var body struct {
		Reason string `json:"reason"`
	}
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&body); err != nil {
			return badRequest(c, "invalid request body")
		}
	}
	reg, err := h.Ledger.Cancel(c.Request().Context(), actor, id, strings.TrimSpace(body.Reason))
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, reg)
}

// ListForTournament handles GET /v1/tournaments/:id/registrations.
func (h *RegistrationHandler) ListForTournament(c echo.Context) error {
	actor, err := getActor(c)
	if err != nil {
		return unauthorized(c)
	}
	tid, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid tournament id")
	}
	items, err := h.Ledger.ListForTournament(c.Request().Context(), actor, tid)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}
