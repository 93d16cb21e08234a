package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/fablab-reservation/internal/handler"
)

// RegisterPublic registers guest endpoints.  Catalog reads go through
// the response cache passed as cached; the teacher approval page is
// authenticated by its single-use token alone.
func RegisterPublic(e *echo.Echo, cat *handler.CatalogHandler, av *handler.AvailabilityHandler,
	evc *handler.EVCHandler, cached echo.MiddlewareFunc) {
	g := e.Group("/v1", cached)
	g.GET("/services", cat.ListServices)
	g.GET("/services/:id", cat.GetService)
	g.GET("/machines", cat.ListMachines)
	g.GET("/machines/:id", cat.GetMachine)
	g.GET("/blocked-dates", av.ListBlocked)

	// Availability changes with every approval, so it is never cached.
	e.GET("/v1/availability", av.Check)

	e.GET("/v1/evc/approvals/:token", evc.ApprovalPage)
	e.POST("/v1/evc/approvals/:token", evc.ApprovalDecision)
}
