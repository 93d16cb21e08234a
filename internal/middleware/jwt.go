package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
    "net/http" // HTTP status codes for responses
    "strings"  // string utilities for prefix checking and trimming

    "github.com/labstack/echo/v4" // Echo framework used for defining middleware and handlers

    "github.com/iliyamo/fablab-reservation/internal/utils"
)

// Context keys populated by JWTAuth.
const (
    CtxUserID = "user_id" // uint64 account id
    CtxRole   = "role"    // role string, e.g. "ADMIN"
    CtxName   = "name"    // display name copied into the token
)

// JWTAuth returns an Echo middleware that validates a Bearer access token and
// injects the account id, role and name claims into the request context.  The
// provided secret must match the one used when issuing tokens.  Handlers read
// the values with c.Get("user_id") (uint64), c.Get("role") and c.Get("name").
func JWTAuth(secret string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            // A valid header is "Bearer " followed by the JWT.
            auth := c.Request().Header.Get("Authorization")
            if !strings.HasPrefix(auth, "Bearer ") {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
            }
            raw := strings.TrimPrefix(auth, "Bearer ")

            // Signature, algorithm and expiry are checked by the parser.
            claims, err := utils.ParseAccessToken(secret, raw)
            if err != nil {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
            }
            id, _ := claims.AccountID()

            c.Set(CtxUserID, id)
            c.Set(CtxRole, claims.Role)
            c.Set(CtxName, claims.Name)
            return next(c)
        }
    }
}
