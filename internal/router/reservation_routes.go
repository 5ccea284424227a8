package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/venue-reservation/internal/handler"
	"github.com/iliyamo/venue-reservation/internal/middleware"
	"github.com/iliyamo/venue-reservation/internal/model"
)

// registerReservations expects g to already carry JWTAuth. Routes without
// a role middleware are open to every authenticated user; ownership is
// enforced by the service.
func registerReservations(g *echo.Group, h *handler.ReservationHandler) {
	staff := middleware.RequireStaff()
	admin := middleware.RequireRole(model.RoleAdmin)

	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/my", h.Mine)
	g.GET("/stats", h.Stats, staff)
	g.GET("/upcoming", h.Upcoming, staff)
	g.GET("/user/:userId", h.ByUser, staff)
	g.GET("/:id", h.Get)
	g.PATCH("/:id", h.Update)
	g.PATCH("/:id/cancel", h.Cancel)
	g.PATCH("/:id/confirm", h.Confirm, staff)
	g.PATCH("/:id/complete", h.Complete, staff)
	g.PATCH("/:id/status", h.SetStatus, staff)
	g.DELETE("/:id", h.Delete, admin)
}
