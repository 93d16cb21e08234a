package middleware

// identity.go holds the helpers that read the authenticated account out
// of the Echo context populated by JWTAuth.

import (
    "strconv"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/fablab-reservation/internal/model"
)

// Principal is the authenticated caller.
type Principal struct {
    AccountID uint64
    Role      model.Role
    Name      string
}

// CurrentPrincipal returns the caller stored by JWTAuth.  ok is false on
// routes that are not behind JWTAuth.
func CurrentPrincipal(c echo.Context) (Principal, bool) {
    id, ok := c.Get(CtxUserID).(uint64)
    if !ok || id == 0 {
        return Principal{}, false
    }
    role, _ := c.Get(CtxRole).(string)
    name, _ := c.Get(CtxName).(string)
    return Principal{AccountID: id, Role: model.Role(role), Name: name}, true
}

// userKey identifies the caller for rate limiting.  It returns "anon"
// when no account is authenticated.
func userKey(c echo.Context) string {
    if p, ok := CurrentPrincipal(c); ok {
        return strconv.FormatUint(p.AccountID, 10)
    }
    return "anon"
}
