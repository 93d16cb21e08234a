package handler

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/fablab-reservation/internal/export"
	"github.com/iliyamo/fablab-reservation/internal/model"
	"github.com/iliyamo/fablab-reservation/internal/service"
)

//go:embed templates/approval.html
var pageFS embed.FS

var approvalPage = template.Must(template.ParseFS(pageFS, "templates/approval.html"))

// EVCHandler serves educational visit reservations, including the
// teacher's approval page reached from the emailed link.
type EVCHandler struct {
	Svc     *service.EVCService
	Surveys *service.SurveyService
	Avail   *service.AvailabilityService
}

func NewEVCHandler(svc *service.EVCService, surveys *service.SurveyService, avail *service.AvailabilityService) *EVCHandler {
	return &EVCHandler{Svc: svc, Surveys: surveys, Avail: avail}
}

func (h *EVCHandler) Create(c echo.Context) error {
	var in service.EVCInput
	if err := c.Bind(&in); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	e, err := h.Svc.Create(ctx, actor(c), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, e)
}

func (h *EVCHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	out, err := h.Svc.List(ctx, actor(c), c.QueryParam("status"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *EVCHandler) Get(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	e, err := h.Svc.Get(ctx, actor(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, e)
}

func (h *EVCHandler) transition(c echo.Context,
	op func(context.Context, service.Actor, uint64) (model.EVCReservation, error)) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	e, err := op(ctx, actor(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, e)
}

func (h *EVCHandler) withReason(c echo.Context,
	op func(context.Context, service.Actor, uint64, string) (model.EVCReservation, error)) error {
	var req reasonReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	return h.transition(c, func(ctx context.Context, a service.Actor, id uint64) (model.EVCReservation, error) {
		return op(ctx, a, id, req.Reason)
	})
}

func (h *EVCHandler) Approve(c echo.Context) error  { return h.transition(c, h.Svc.AdminApprove) }
func (h *EVCHandler) Ongoing(c echo.Context) error  { return h.transition(c, h.Svc.MarkOngoing) }
func (h *EVCHandler) Complete(c echo.Context) error { return h.transition(c, h.Svc.Complete) }
func (h *EVCHandler) Reject(c echo.Context) error   { return h.withReason(c, h.Svc.AdminReject) }
func (h *EVCHandler) Cancel(c echo.Context) error   { return h.withReason(c, h.Svc.Cancel) }

// SubmitSurvey records the visit survey and completes the reservation.
func (h *EVCHandler) SubmitSurvey(c echo.Context) error {
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
	if err := h.Surveys.SubmitEVC(ctx, actor(c), id, sub); err != nil {
		return respondError(c, err)
	}
	e, err := h.Svc.Get(ctx, actor(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, e)
}

type approvalView struct {
	Reservation *model.EVCReservation
	Schedule    []string
	Message     string
	CanDecide   bool
}

func (h *EVCHandler) render(c echo.Context, status int, v approvalView) error {
	if v.Reservation != nil {
		v.Schedule = export.ScheduleLines(v.Reservation.Slots, h.Avail.Location())
	}
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(status)
	return approvalPage.Execute(c.Response(), v)
}

// pageMessage turns a service error into text for the teacher.
func pageMessage(err error) (int, string) {
	switch {
	case service.IsKind(err, service.KindNotFound):
		return http.StatusNotFound, "This approval link is not valid."
	case service.IsKind(err, service.KindConflict):
		return http.StatusConflict, "This approval link has already been used."
	case service.IsKind(err, service.KindInvalidTransition):
		return http.StatusConflict, "This reservation is no longer waiting for your approval."
	}
	var se *service.Error
	if errors.As(err, &se) && se.Kind == service.KindValidation {
		return http.StatusBadRequest, se.Message
	}
	return http.StatusInternalServerError, "Something went wrong. Please try again later."
}

// ApprovalPage shows the reservation behind an approval link.
func (h *EVCHandler) ApprovalPage(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	e, err := h.Svc.PendingApproval(ctx, c.Param("token"))
	if err != nil {
		status, msg := pageMessage(err)
		return h.render(c, status, approvalView{Message: msg})
	}
	return h.render(c, http.StatusOK, approvalView{
		Reservation: &e,
		CanDecide:   e.Status == model.EVCPendingTeacher,
	})
}

// ApprovalDecision applies the teacher's form submission.
func (h *EVCHandler) ApprovalDecision(c echo.Context) error {
	decision := c.FormValue("decision")
	if decision != "approve" && decision != "reject" {
		return h.render(c, http.StatusBadRequest, approvalView{Message: "Choose approve or reject."})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	e, err := h.Svc.TeacherDecision(ctx, c.Param("token"), decision == "approve", c.FormValue("reason"))
	if err != nil {
		status, msg := pageMessage(err)
		v := approvalView{Message: msg}
		if service.IsKind(err, service.KindValidation) {
			if pe, perr := h.Svc.PendingApproval(ctx, c.Param("token")); perr == nil {
				v.Reservation, v.CanDecide = &pe, true
			}
		}
		return h.render(c, status, v)
	}
	msg := "Thank you. The visit has been approved and sent to the lab for confirmation."
	if e.Status == model.EVCRejected {
		msg = "Thank you. The visit has been rejected and the student has been notified."
	}
	return h.render(c, http.StatusOK, approvalView{Reservation: &e, Message: msg})
}
