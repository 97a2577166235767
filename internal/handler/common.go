package handler // handler defines http handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tournament-registration/internal/middleware"
	"github.com/iliyamo/tournament-registration/internal/model"
	"github.com/iliyamo/tournament-registration/internal/service"
)

// getUserID extracts the user_id set by JWTAuth and converts it to uint64.
func getUserID(c echo.Context) (uint64, error) {
	switch t := c.Get(middleware.ContextUserID).(type) {
	case uint64:
		return t, nil
	case int64:
		if t > 0 {
			return uint64(t), nil
		}
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil && n > 0 {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}

// getActor returns the verified (user, role) pair for the request.
func getActor(c echo.Context) (model.Actor, error) {
	uid, err := getUserID(c)
	if err != nil {
		return model.Actor{}, err
	}
	role, _ := c.Get(middleware.ContextRole).(string)
	if role == "" {
		return model.Actor{}, errors.New("missing role in context")
	}
	return model.Actor{UserID: uid, Role: role}, nil
}

// parseID reads a positive numeric path parameter.
func parseID(c echo.Context, name string) (uint64, bool) {
	n, err := strconv.ParseUint(c.Param(name), 10, 64)
	return n, err == nil && n > 0
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "code": "UNAUTHORIZED"})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg, "code": "VALIDATION_ERROR"})
}

// writeServiceError maps a service error to its stable HTTP response.
// Unexpected errors are logged and answered with a generic 500.
func writeServiceError(c echo.Context, err error) error {
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		body := echo.Map{"error": ve.Error(), "code": "VALIDATION_ERROR"}
		if len(ve.Fields) > 0 {
			body["fields"] = ve.Fields
		}
		return c.JSON(http.StatusBadRequest, body)
	case errors.Is(err, service.ErrValidation):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error(), "code": "VALIDATION_ERROR"})
	case errors.Is(err, service.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error(), "code": "NOT_FOUND"})
	case errors.Is(err, service.ErrDuplicateRegistration):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error(), "code": "ALREADY_REGISTERED"})
	case errors.Is(err, service.ErrCapacityExceeded):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error(), "code": "TOURNAMENT_FULL"})
	case errors.Is(err, service.ErrInvalidState):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": err.Error(), "code": "INVALID_STATE"})
	case errors.Is(err, service.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden", "code": "FORBIDDEN"})
	}
	slog.ErrorContext(c.Request().Context(), "request failed", "method", c.Request().Method, "route", c.Path(), "err", err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error", "code": "INTERNAL"})
}
