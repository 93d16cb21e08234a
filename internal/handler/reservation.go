package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/fablab-reservation/internal/model"
	"github.com/iliyamo/fablab-reservation/internal/service"
)

// ReservationHandler serves utilization requests, their surveys and
// their exports.
type ReservationHandler struct {
	Svc     *service.ReservationService
	Surveys *service.SurveyService
	Exports *service.ExportService
	Avail   *service.AvailabilityService
}

func NewReservationHandler(svc *service.ReservationService, surveys *service.SurveyService,
	exports *service.ExportService, avail *service.AvailabilityService) *ReservationHandler {
	return &ReservationHandler{Svc: svc, Surveys: surveys, Exports: exports, Avail: avail}
}

func (h *ReservationHandler) Create(c echo.Context) error {
	var in service.UtilReqInput
	if err := c.Bind(&in); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	u, err := h.Svc.Create(ctx, actor(c), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, u)
}

func (h *ReservationHandler) List(c echo.Context) error {
	f, err := listFilter(c, h.Avail.Location())
	if err != nil {
		return respondError(c, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	out, err := h.Svc.List(ctx, actor(c), f)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *ReservationHandler) Get(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	u, err := h.Svc.Get(ctx, actor(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, u)
}

// transition runs one id-only lifecycle action.
func (h *ReservationHandler) transition(c echo.Context,
	op func(context.Context, service.Actor, uint64) (model.UtilReq, error)) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	u, err := op(ctx, actor(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, u)
}

// withReason is transition for actions that take {"reason": ...}.
func (h *ReservationHandler) withReason(c echo.Context,
	op func(context.Context, service.Actor, uint64, string) (model.UtilReq, error)) error {
	var req reasonReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	return h.transition(c, func(ctx context.Context, a service.Actor, id uint64) (model.UtilReq, error) {
		return op(ctx, a, id, req.Reason)
	})
}

func (h *ReservationHandler) Approve(c echo.Context) error      { return h.transition(c, h.Svc.Approve) }
func (h *ReservationHandler) MarkReceived(c echo.Context) error { return h.transition(c, h.Svc.MarkReceived) }
func (h *ReservationHandler) Reject(c echo.Context) error       { return h.withReason(c, h.Svc.Reject) }
func (h *ReservationHandler) Cancel(c echo.Context) error       { return h.withReason(c, h.Svc.Cancel) }

type paymentReq struct {
	ReceiptNumber string `json:"receipt_number"`
}

// ConfirmPayment records the cashier's receipt and completes the request.
func (h *ReservationHandler) ConfirmPayment(c echo.Context) error {
	var req paymentReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	return h.transition(c, func(ctx context.Context, a service.Actor, id uint64) (model.UtilReq, error) {
		return h.Svc.ConfirmPayment(ctx, a, id, req.ReceiptNumber)
	})
}

func (h *ReservationHandler) RecordDowntime(c echo.Context) error {
	var in service.DowntimeInput
	if err := c.Bind(&in); err != nil {
		return badRequest(c, "invalid body")
	}
	return h.transition(c, func(ctx context.Context, a service.Actor, id uint64) (model.UtilReq, error) {
		return h.Svc.RecordDowntime(ctx, a, id, in)
	})
}

func (h *ReservationHandler) submitSurvey(c echo.Context, path service.SurveyPath) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	var sub model.SurveySubmission
	if err := c.Bind(&sub); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	if err := h.Surveys.SubmitUtil(ctx, actor(c), id, path, sub); err != nil {
		return respondError(c, err)
	}
	u, err := h.Svc.Get(ctx, actor(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, u)
}

// SubmitSurvey is the client path: Ongoing to Pending Payment.
func (h *ReservationHandler) SubmitSurvey(c echo.Context) error {
	return h.submitSurvey(c, service.SurveyStandard)
}

// SubmitInternalSurvey is the staff path: Ongoing to Completed.
func (h *ReservationHandler) SubmitInternalSurvey(c echo.Context) error {
	return h.submitSurvey(c, service.SurveyInternal)
}

// PDF streams the reservation summary with its signed receipt QR code.
func (h *ReservationHandler) PDF(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	out, err := h.Exports.ReservationPDF(ctx, actor(c), id)
	if err != nil {
		return respondError(c, err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf(`inline; filename="reservation-%d.pdf"`, id))
	return c.Blob(http.StatusOK, "application/pdf", out)
}

// Report streams the admin workbook for ?status=&from=&to=.
func (h *ReservationHandler) Report(c echo.Context) error {
	f, err := listFilter(c, h.Avail.Location())
	if err != nil {
		return respondError(c, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	out, err := h.Exports.Report(ctx, actor(c), f)
	if err != nil {
		return respondError(c, err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="reservations.xlsx"`)
	return c.Blob(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", out)
}

type receiptReq struct {
	Payload string `json:"payload"`
}

// VerifyReceipt checks a scanned receipt QR payload.
func (h *ReservationHandler) VerifyReceipt(c echo.Context) error {
	var req receiptReq
	if err := c.Bind(&req); err != nil || req.Payload == "" {
		return badRequest(c, "payload required")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	u, err := h.Exports.VerifyReceipt(ctx, actor(c), req.Payload)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, u)
}

// GetSurvey returns a stored survey: GET /v1/admin/surveys/:family/:id.
func (h *ReservationHandler) GetSurvey(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	family := model.Family(c.Param("family"))
	if family != model.FamilyUtilization && family != model.FamilyEVC {
		return badRequest(c, "family must be utilization or evc")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	sub, err := h.Surveys.Get(ctx, actor(c), family, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, sub)
}
