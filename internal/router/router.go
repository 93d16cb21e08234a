package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iliyamo/fablab-reservation/internal/handler"
	"github.com/iliyamo/fablab-reservation/internal/middleware"
	"github.com/iliyamo/fablab-reservation/internal/model"
)

// allRoles is every role an authenticated account can hold.
var allRoles = []model.Role{
	model.RoleClient, model.RoleBusiness, model.RoleStudent,
	model.RoleStaff, model.RoleAdmin, model.RoleCashier,
}

// RegisterRoutes registers the unauthenticated operational endpoints:
// the health check and the Prometheus scrape endpoint.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// RegisterAuth registers session routes.  Sign-in and token exchange
// live under /v1/auth; /v1/me needs a valid access token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/signin", a.Signin)
	g.POST("/refresh", a.Refresh)               // rotates the refresh token
	g.POST("/refresh-access", a.RefreshAccess) // access token only
	g.POST("/logout", a.Logout)

	auth := e.Group("/v1", middleware.JWTAuth(jwtSecret), middleware.RequireRole(allRoles...))
	auth.GET("/me", a.Me)
}
