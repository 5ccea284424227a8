package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/venue-reservation/internal/middleware"
	"github.com/iliyamo/venue-reservation/internal/model"
	"github.com/iliyamo/venue-reservation/internal/service"
	"github.com/iliyamo/venue-reservation/internal/store"
)

type ReservationHandler struct {
	Svc *service.ReservationService
}

func NewReservationHandler(svc *service.ReservationService) *ReservationHandler {
	return &ReservationHandler{Svc: svc}
}

type createReservationReq struct {
	EventType model.EventType `json:"event_type"`
	StartsAt  time.Time       `json:"starts_at"`
	EndsAt    time.Time       `json:"ends_at"`
	Attendees int             `json:"attendees"`
	Notes     string          `json:"notes"`
}

// updateReservationReq uses pointers so absent fields are left unchanged.
type updateReservationReq struct {
	EventType *model.EventType         `json:"event_type"`
	StartsAt  *time.Time               `json:"starts_at"`
	EndsAt    *time.Time               `json:"ends_at"`
	Attendees *int                     `json:"attendees"`
	Notes     *string                  `json:"notes"`
	Status    *model.ReservationStatus `json:"status"`
}

type statusReq struct {
	Status string `json:"status"`
}

func (h *ReservationHandler) Create(c echo.Context) error {
	var req createReservationReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	r, err := h.Svc.Create(ctx, middleware.Actor(c), service.CreateReservationInput{
		EventType: req.EventType,
		StartsAt:  req.StartsAt,
		EndsAt:    req.EndsAt,
		Attendees: req.Attendees,
		Notes:     req.Notes,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, r)
}

// List supports status, event_type, user_id, start_date, end_date and
// skip/take. Clients only ever see their own reservations.
func (h *ReservationHandler) List(c echo.Context) error {
	f := store.ReservationFilter{
		Status:    model.ReservationStatus(strings.ToUpper(c.QueryParam("status"))),
		EventType: model.EventType(strings.ToUpper(c.QueryParam("event_type"))),
		UserID:    c.QueryParam("user_id"),
		Page:      page(c),
	}
	if t, ok, err := queryTime(c, "start_date"); err != nil {
		return badRequest(c, "invalid start_date")
	} else if ok {
		f.StartFrom = &t
	}
	if t, ok, err := queryTime(c, "end_date"); err != nil {
		return badRequest(c, "invalid end_date")
	} else if ok {
		f.StartTo = &t
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	out, err := h.Svc.List(ctx, middleware.Actor(c), f)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *ReservationHandler) Mine(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	out, err := h.Svc.ByUser(ctx, middleware.UserID(c), page(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *ReservationHandler) ByUser(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	out, err := h.Svc.ByUser(ctx, c.Param("userId"), page(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *ReservationHandler) Get(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	r, err := h.Svc.Get(ctx, middleware.Actor(c), c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, r)
}

func (h *ReservationHandler) Update(c echo.Context) error {
	var req updateReservationReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	r, err := h.Svc.Update(ctx, middleware.Actor(c), c.Param("id"), service.UpdateReservationInput{
		EventType: req.EventType,
		StartsAt:  req.StartsAt,
		EndsAt:    req.EndsAt,
		Attendees: req.Attendees,
		Notes:     req.Notes,
		Status:    req.Status,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, r)
}

func (h *ReservationHandler) Cancel(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	r, err := h.Svc.Cancel(ctx, middleware.Actor(c), c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, r)
}

func (h *ReservationHandler) Confirm(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	r, err := h.Svc.Confirm(ctx, c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, r)
}

func (h *ReservationHandler) Complete(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	r, err := h.Svc.Complete(ctx, c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, r)
}

func (h *ReservationHandler) SetStatus(c echo.Context) error {
	var req statusReq
	if err := c.Bind(&req); err != nil || req.Status == "" {
		return badRequest(c, "status required")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	r, err := h.Svc.SetStatus(ctx, c.Param("id"), model.ReservationStatus(strings.ToUpper(req.Status)))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, r)
}

func (h *ReservationHandler) Delete(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Svc.Delete(ctx, c.Param("id")); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *ReservationHandler) Stats(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	st, err := h.Svc.Stats(ctx)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, st)
}

// Upcoming lists confirmed reservations in the next ?days (default 7).
func (h *ReservationHandler) Upcoming(c echo.Context) error {
	days, _ := strconv.Atoi(c.QueryParam("days"))
	ctx, cancel := reqCtx(c)
	defer cancel()
	out, err := h.Svc.Upcoming(ctx, days)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// Availability answers GET /availability?start_date=&end_date=[&exclude_id=].
func (h *ReservationHandler) Availability(c echo.Context) error {
	start, err := parseTime(c.QueryParam("start_date"))
	if err != nil {
		return badRequest(c, "invalid start_date")
	}
	end, err := parseTime(c.QueryParam("end_date"))
	if err != nil {
		return badRequest(c, "invalid end_date")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	free, err := h.Svc.CheckAvailability(ctx, start, end, c.QueryParam("exclude_id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"available": free, "start": start.UTC(), "end": end.UTC()})
}

// AvailableSlots answers GET /available-slots?date=YYYY-MM-DD. A bare date
// names a calendar day of the venue time zone.
func (h *ReservationHandler) AvailableSlots(c echo.Context) error {
	loc := h.Svc.Hours.Location
	if loc == nil {
		loc = time.UTC
	}
	day, err := time.ParseInLocation("2006-01-02", c.QueryParam("date"), loc)
	if err != nil {
		day, err = parseTime(c.QueryParam("date"))
	}
	if err != nil {
		return badRequest(c, "invalid date")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	slots, err := h.Svc.AvailableSlots(ctx, day)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"date": c.QueryParam("date"), "slots": slots})
}
