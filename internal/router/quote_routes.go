package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/venue-reservation/internal/handler"
	"github.com/iliyamo/venue-reservation/internal/middleware"
	"github.com/iliyamo/venue-reservation/internal/model"
)

// Quotes are staff tools. Reading one (and its export) is also allowed for
// the client whose reservation it is linked to, checked by the service.
func registerQuotes(g *echo.Group, h *handler.QuoteHandler) {
	staff := middleware.RequireStaff()
	admin := middleware.RequireRole(model.RoleAdmin)

	g.POST("", h.Create, staff)
	g.GET("", h.List, staff)
	g.GET("/stats", h.Stats, staff)
	g.GET("/reservation/:reservationId", h.ByReservation, staff)
	g.GET("/:id", h.Get)
	g.GET("/:id/export", h.Export)
	g.PATCH("/:id", h.Update, staff)
	g.POST("/:id/duplicate", h.Duplicate, staff)
	g.PATCH("/:id/link-reservation/:reservationId", h.Link, staff)
	g.PATCH("/:id/unlink-reservation", h.Unlink, staff)
	g.POST("/:id/items", h.AddItem, staff)
	g.PATCH("/:id/items/:index", h.UpdateItem, staff)
	g.DELETE("/:id/items/:index", h.RemoveItem, staff)
	g.DELETE("/:id", h.Delete, admin)
}
