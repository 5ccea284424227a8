package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/venue-reservation/internal/handler"
	"github.com/iliyamo/venue-reservation/internal/middleware"
	"github.com/iliyamo/venue-reservation/internal/model"
)

func registerPayments(g *echo.Group, h *handler.PaymentHandler) {
	staff := middleware.RequireStaff()
	admin := middleware.RequireRole(model.RoleAdmin)

	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/my", h.Mine)
	g.GET("/stats", h.Stats, staff)
	g.GET("/revenue/:year/:month", h.Revenue, staff)
	g.GET("/pending", h.Pending, staff)
	g.GET("/failed", h.Failed, staff)
	g.GET("/user/:userId", h.ByUser, staff)
	g.GET("/reservation/:reservationId", h.ByReservation, staff)
	g.GET("/:id", h.Get)
	g.GET("/:id/invoice", h.Invoice)
	g.PATCH("/:id", h.Update, admin)
	g.POST("/:id/process", h.Process)
	g.PATCH("/:id/mark-paid", h.MarkPaid, staff)
	g.PATCH("/:id/mark-failed", h.MarkFailed, staff)
	g.PATCH("/:id/refund", h.Refund, admin)
	g.PATCH("/:id/status", h.SetStatus, staff)
	g.DELETE("/:id", h.Delete, admin)
}
