package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/venue-reservation/internal/model"
	"github.com/iliyamo/venue-reservation/internal/service"
)

// UserID returns the authenticated user id or "" for anonymous requests.
func UserID(c echo.Context) string {
	s, _ := c.Get(CtxUserID).(string)
	return s
}

// Role returns the authenticated role or "" for anonymous requests.
func Role(c echo.Context) model.Role {
	s, _ := c.Get(CtxRole).(string)
	return model.Role(s)
}

// Actor builds the service principal for the current request.
func Actor(c echo.Context) service.Actor {
	return service.Actor{UserID: UserID(c), Role: Role(c)}
}
