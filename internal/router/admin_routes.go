package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/fablab-reservation/internal/handler"
	"github.com/iliyamo/fablab-reservation/internal/middleware"
	"github.com/iliyamo/fablab-reservation/internal/model"
)

// AdminHandlers groups the handlers with admin-only endpoints.
type AdminHandlers struct {
	Accounts     *handler.AccountHandler
	Catalog      *handler.CatalogHandler
	Availability *handler.AvailabilityHandler
	Reservations *handler.ReservationHandler
	EVC          *handler.EVCHandler
}

// RegisterAdmin registers ADMIN-scoped endpoints under /v1/admin.
// purge drops cached catalog responses after every successful write.
func RegisterAdmin(e *echo.Echo, h AdminHandlers, jwtSecret string, purge echo.MiddlewareFunc) {
	g := e.Group(
		"/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
	)

	// ---- Accounts ----
	g.GET("/accounts", h.Accounts.List)
	g.PUT("/accounts/:id/role", h.Accounts.SetRole)
	g.GET("/teacher-emails", h.Accounts.ListTeacherEmails)
	g.POST("/teacher-emails", h.Accounts.AddTeacherEmail)
	g.DELETE("/teacher-emails/:id", h.Accounts.DeleteTeacherEmail)

	// ---- Catalog ----
	cat := g.Group("", purge)
	cat.POST("/services", h.Catalog.CreateService)
	cat.PUT("/services/:id", h.Catalog.UpdateService)
	cat.DELETE("/services/:id", h.Catalog.DeleteService)
	cat.POST("/machines", h.Catalog.CreateMachine)
	cat.PUT("/machines/:id", h.Catalog.UpdateMachine)
	cat.PATCH("/machines/:id/availability", h.Catalog.SetMachineAvailability)
	cat.DELETE("/machines/:id", h.Catalog.DeleteMachine)
	cat.POST("/blocked-dates", h.Availability.Block)
	cat.DELETE("/blocked-dates/:id", h.Availability.Unblock)

	// ---- Utilization requests ----
	g.POST("/reservations/:id/approve", h.Reservations.Approve)
	g.POST("/reservations/:id/reject", h.Reservations.Reject)
	g.POST("/reservations/:id/receive", h.Reservations.MarkReceived)
	g.POST("/reservations/:id/downtime", h.Reservations.RecordDowntime)
	g.GET("/reports/reservations.xlsx", h.Reservations.Report)
	g.GET("/surveys/:family/:id", h.Reservations.GetSurvey)

	// ---- Educational visits ----
	g.POST("/evc/:id/approve", h.EVC.Approve)
	g.POST("/evc/:id/reject", h.EVC.Reject)
	g.POST("/evc/:id/ongoing", h.EVC.Ongoing)
	g.POST("/evc/:id/complete", h.EVC.Complete)
}
