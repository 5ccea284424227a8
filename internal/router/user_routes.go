package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/venue-reservation/internal/handler"
	"github.com/iliyamo/venue-reservation/internal/middleware"
	"github.com/iliyamo/venue-reservation/internal/model"
)

// registerUsers expects g to already carry JWTAuth. Profile reads, edits
// and password changes check ownership in the service.
func registerUsers(g *echo.Group, a *handler.AuthHandler, u *handler.UserHandler) {
	staff := middleware.RequireStaff()
	admin := middleware.RequireRole(model.RoleAdmin)

	g.POST("/staff", a.CreateStaff, admin)
	g.GET("", u.List, staff)
	g.GET("/search", u.Search, staff)
	g.GET("/count", u.Count, admin)
	g.GET("/by-role/:role", u.ByRole, staff)
	g.GET("/:id", u.Get)
	g.GET("/:id/stats", u.Stats, admin)
	g.PATCH("/:id", u.Update)
	g.PATCH("/:id/password", u.ChangePassword)
	g.DELETE("/:id", u.Delete, admin)
}
