package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/fablab-reservation/internal/middleware"
	"github.com/iliyamo/fablab-reservation/internal/model"
	"github.com/iliyamo/fablab-reservation/internal/service"
)

// requestTimeout bounds the database work of one request.
const requestTimeout = 10 * time.Second

// respondError writes err as {"error": ..., "details": ...}.  Service
// errors carry their own status; anything else is a 500.
func respondError(c echo.Context, err error) error {
	var se *service.Error
	if !errors.As(err, &se) {
		zerolog.Ctx(c.Request().Context()).Error().Err(err).Msg("unhandled error")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error", "details": err.Error()})
	}
	status := se.Kind.Status()
	body := echo.Map{"error": se.Message}
	if se.Details != nil {
		body["details"] = se.Details
	}
	if status >= http.StatusInternalServerError {
		zerolog.Ctx(c.Request().Context()).Error().Err(se).Msg("request failed")
		if se.Err != nil && se.Details == nil {
			body["details"] = se.Err.Error()
		}
	}
	return c.JSON(status, body)
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}

// actor converts the JWT principal into a service actor.  Routes outside
// JWTAuth get the zero Actor, which services treat as unauthenticated.
func actor(c echo.Context) service.Actor {
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		return service.Actor{}
	}
	return service.Actor{AccountID: p.AccountID, Role: p.Role, Name: p.Name}
}

// pathID parses a positive numeric path parameter.
func pathID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// listFilter reads ?status=&from=&to= where from and to are facility
// calendar days.  to is inclusive.
func listFilter(c echo.Context, loc *time.Location) (service.ListFilter, error) {
	f := service.ListFilter{Status: c.QueryParam("status")}
	if v := c.QueryParam("from"); v != "" {
		t, err := time.ParseInLocation(model.DateLayout, v, loc)
		if err != nil {
			return f, service.Validation("from must be YYYY-MM-DD", nil)
		}
		f.From = &t
	}
	if v := c.QueryParam("to"); v != "" {
		t, err := time.ParseInLocation(model.DateLayout, v, loc)
		if err != nil {
			return f, service.Validation("to must be YYYY-MM-DD", nil)
		}
		t = t.AddDate(0, 0, 1)
		f.To = &t
	}
	return f, nil
}

type reasonReq struct {
	Reason string `json:"reason"`
}
