// Package router wires handlers to paths and attaches the auth middleware
// each route needs.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/venue-reservation/internal/handler"
	"github.com/iliyamo/venue-reservation/internal/middleware"
)

// Handlers bundles everything Register needs.
type Handlers struct {
	Auth         *handler.AuthHandler
	Reservations *handler.ReservationHandler
	Payments     *handler.PaymentHandler
	Quotes       *handler.QuoteHandler
	Users        *handler.UserHandler
	DB           handler.Pinger // nil with the memory store
	// RateLimit guards every /v1 route. It runs after JWTAuth on the
	// protected group so it can key buckets by user. Nil disables it.
	RateLimit echo.MiddlewareFunc
}

// Register mounts the whole API on e.
func Register(e *echo.Echo, h Handlers, jwtSecret string) {
	limit := h.RateLimit
	if limit == nil {
		limit = func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}

	e.GET("/healthz", handler.Health(h.DB))

	// Availability is public so prospective clients can browse the calendar.
	e.GET("/v1/reservations/availability", h.Reservations.Availability, limit)
	e.GET("/v1/reservations/available-slots", h.Reservations.AvailableSlots, limit)

	v1 := e.Group("/v1", middleware.JWTAuth(jwtSecret), limit)
	registerAuth(e.Group("/v1/auth", limit), v1, h.Auth, h.Users)
	registerUsers(v1.Group("/users"), h.Auth, h.Users)
	registerReservations(v1.Group("/reservations"), h.Reservations)
	registerPayments(v1.Group("/payments"), h.Payments)
	registerQuotes(v1.Group("/quotes"), h.Quotes)
}

// registerAuth mounts the public token endpoints on g and the
// authenticated account endpoints on v1.
func registerAuth(g, v1 *echo.Group, a *handler.AuthHandler, u *handler.UserHandler) {
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)              // rotates the refresh token
	g.POST("/refresh-access", a.RefreshAccess) // keeps it
	g.POST("/logout", a.Logout)                // bearer optional, parsed by the handler

	v1.GET("/me", a.Me)
	v1.POST("/auth/change-password", u.ChangeOwnPassword)
}
