package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/fablab-reservation/internal/handler"
	"github.com/iliyamo/fablab-reservation/internal/middleware"
	"github.com/iliyamo/fablab-reservation/internal/model"
)

// RegisterMember registers endpoints open to any signed-in account.
// Ownership and finer role rules are enforced by the services.
func RegisterMember(e *echo.Echo, acc *handler.AccountHandler, res *handler.ReservationHandler,
	evc *handler.EVCHandler, jwtSecret string) {
	g := e.Group("/v1", middleware.JWTAuth(jwtSecret), middleware.RequireRole(allRoles...))

	// ---- Accounts ----
	g.GET("/profile", acc.GetProfile)
	g.PUT("/profile", acc.SaveProfile, middleware.RequireRole(model.RoleClient, model.RoleBusiness))
	g.GET("/accounts/:id", acc.Get)
	g.DELETE("/accounts/:id", acc.Delete)

	// ---- Utilization requests ----
	g.POST("/reservations", res.Create)
	g.GET("/reservations", res.List)
	g.GET("/reservations/:id", res.Get)
	g.POST("/reservations/:id/cancel", res.Cancel)
	g.POST("/reservations/:id/survey", res.SubmitSurvey)
	g.POST("/reservations/:id/internal-survey", res.SubmitInternalSurvey, middleware.RequireRole(model.RoleStaff))
	g.GET("/reservations/:id/pdf", res.PDF)

	// ---- Educational visits ----
	g.POST("/evc", evc.Create, middleware.RequireRole(model.RoleStudent, model.RoleStaff))
	g.GET("/evc", evc.List)
	g.GET("/evc/:id", evc.Get)
	g.POST("/evc/:id/cancel", evc.Cancel)
	g.POST("/evc/:id/survey", evc.SubmitSurvey)
}

// RegisterCashier registers payment endpoints.
func RegisterCashier(e *echo.Echo, res *handler.ReservationHandler, jwtSecret string) {
	g := e.Group("/v1", middleware.JWTAuth(jwtSecret))
	g.POST("/reservations/:id/payment", res.ConfirmPayment, middleware.RequireRole(model.RoleCashier))
	g.POST("/receipts/verify", res.VerifyReceipt, middleware.RequireRole(model.RoleCashier, model.RoleAdmin))
}
