package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/venue-reservation/internal/middleware"
	"github.com/iliyamo/venue-reservation/internal/model"
	"github.com/iliyamo/venue-reservation/internal/service"
	"github.com/iliyamo/venue-reservation/internal/store"
)

// UserHandler serves /v1/users.
type UserHandler struct {
	Svc *service.UserService
}

func NewUserHandler(svc *service.UserService) *UserHandler {
	return &UserHandler{Svc: svc}
}

type updateUserReq struct {
	Email     *string     `json:"email"`
	FirstName *string     `json:"first_name"`
	LastName  *string     `json:"last_name"`
	Phone     *string     `json:"phone"`
	Role      *model.Role `json:"role"`
	IsActive  *bool       `json:"is_active"`
}

type passwordReq struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func roleParam(v string) model.Role {
	return model.Role(strings.ToUpper(strings.TrimSpace(v)))
}

// List supports ?role=, ?q= and skip/take.
func (h *UserHandler) List(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	users, err := h.Svc.List(ctx, store.UserFilter{
		Role:   roleParam(c.QueryParam("role")),
		Search: c.QueryParam("q"),
		Page:   page(c),
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, users)
}

func (h *UserHandler) Search(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	p := page(c)
	if c.QueryParam("take") == "" {
		p.Take = service.DefaultSearchTake
	}
	users, err := h.Svc.Search(ctx, c.QueryParam("q"), p)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, users)
}

func (h *UserHandler) ByRole(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	role := roleParam(c.Param("role"))
	if !role.Valid() {
		return badRequest(c, "unknown role")
	}
	users, err := h.Svc.List(ctx, store.UserFilter{Role: role, Page: page(c)})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, users)
}

// Count supports an optional ?role=.
func (h *UserHandler) Count(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	n, err := h.Svc.Count(ctx, roleParam(c.QueryParam("role")))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"count": n})
}

func (h *UserHandler) Get(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	p, err := h.Svc.Get(ctx, middleware.Actor(c), c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *UserHandler) Stats(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	st, err := h.Svc.Stats(ctx, c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, st)
}

func (h *UserHandler) Update(c echo.Context) error {
	var req updateUserReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.Role != nil {
		r := roleParam(string(*req.Role))
		req.Role = &r
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	u, err := h.Svc.Update(ctx, middleware.Actor(c), c.Param("id"), service.UpdateUserInput{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		Role:      req.Role,
		IsActive:  req.IsActive,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, u)
}

// ChangePassword serves PATCH /users/:id/password.
func (h *UserHandler) ChangePassword(c echo.Context) error {
	return h.changePassword(c, c.Param("id"))
}

// ChangeOwnPassword serves POST /auth/change-password for the bearer.
func (h *UserHandler) ChangeOwnPassword(c echo.Context) error {
	return h.changePassword(c, middleware.UserID(c))
}

func (h *UserHandler) changePassword(c echo.Context, id string) error {
	var req passwordReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Svc.ChangePassword(ctx, middleware.Actor(c), id, req.CurrentPassword, req.NewPassword); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Delete removes the user, or deactivates one with past bookings.
func (h *UserHandler) Delete(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	deactivated, err := h.Svc.Delete(ctx, c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	if deactivated {
		return c.JSON(http.StatusOK, echo.Map{"deactivated": true})
	}
	return c.NoContent(http.StatusNoContent)
}
