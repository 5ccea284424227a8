// Package handler adapts HTTP requests to the service layer. Handlers bind
// and validate input, call one service operation and translate its error.
package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/venue-reservation/internal/service"
	"github.com/iliyamo/venue-reservation/internal/store"
)

// requestTimeout bounds every store round trip started by a handler.
const requestTimeout = 5 * time.Second

func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// fail maps a service error to a status code. Domain errors carry their
// message to the client; anything else is logged and reported as a 500.
func fail(c echo.Context, err error) error {
	var status int
	switch {
	case errors.Is(err, service.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrConflict), errors.Is(err, service.ErrIllegalTransition):
		status = http.StatusConflict
	case errors.Is(err, service.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, service.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, service.ErrPaymentDeclined):
		status = http.StatusPaymentRequired
	case errors.Is(err, context.DeadlineExceeded):
		c.Logger().Errorf("%s %s: %v", c.Request().Method, c.Path(), err)
		return c.JSON(http.StatusGatewayTimeout, echo.Map{"error": "timeout"})
	default:
		c.Logger().Errorf("%s %s: %v", c.Request().Method, c.Path(), err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	return c.JSON(status, echo.Map{"error": err.Error()})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}

// page reads skip/take. Invalid numbers fall back to the defaults.
func page(c echo.Context) store.Page {
	skip, _ := strconv.Atoi(c.QueryParam("skip"))
	take, _ := strconv.Atoi(c.QueryParam("take"))
	return store.Page{Skip: skip, Take: take}.Normalize()
}

// parseTime accepts RFC 3339 timestamps and plain YYYY-MM-DD dates (UTC
// midnight).
func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

// queryTime parses an optional query parameter. ok is false when absent.
func queryTime(c echo.Context, name string) (t time.Time, ok bool, err error) {
	v := c.QueryParam(name)
	if v == "" {
		return time.Time{}, false, nil
	}
	t, err = parseTime(v)
	return t, err == nil, err
}

// itemIndex parses the :index path parameter.
func itemIndex(c echo.Context) (int, bool) {
	i, err := strconv.Atoi(c.Param("index"))
	return i, err == nil
}
