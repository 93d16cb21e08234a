package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/fablab-reservation/internal/service"
)

// AvailabilityHandler serves machine availability and blocked dates.
type AvailabilityHandler struct {
	Svc *service.AvailabilityService
}

func NewAvailabilityHandler(svc *service.AvailabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{Svc: svc}
}

// Check answers GET /v1/availability?service_id=&date=&start=&end=.
// start and end are 12-hour clock strings such as "9:00 AM".
func (h *AvailabilityHandler) Check(c echo.Context) error {
	serviceID, err := strconv.ParseUint(c.QueryParam("service_id"), 10, 64)
	if err != nil || serviceID == 0 {
		return badRequest(c, "service_id required")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	av, err := h.Svc.CheckMachineAvailability(ctx, serviceID,
		c.QueryParam("date"), c.QueryParam("start"), c.QueryParam("end"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, av)
}

func (h *AvailabilityHandler) ListBlocked(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	out, err := h.Svc.ListBlockedDates(ctx)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

type blockReq struct {
	Date   string `json:"date"`
	Reason string `json:"reason"`
}

func (h *AvailabilityHandler) Block(c echo.Context) error {
	var req blockReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	bd, err := h.Svc.BlockDate(ctx, actor(c), req.Date, req.Reason)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, bd)
}

func (h *AvailabilityHandler) Unblock(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	if err := h.Svc.UnblockDate(ctx, actor(c), id); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
