package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/fablab-reservation/internal/config"
	"github.com/iliyamo/fablab-reservation/internal/identity"
	"github.com/iliyamo/fablab-reservation/internal/model"
	"github.com/iliyamo/fablab-reservation/internal/repository"
	"github.com/iliyamo/fablab-reservation/internal/service"
	"github.com/iliyamo/fablab-reservation/internal/utils"
)

// AuthHandler exchanges identity provider tokens for local sessions.
type AuthHandler struct {
	Cfg      config.Config
	IdP      identity.Provider
	Accounts *service.AccountService
	Users    *repository.AccountRepo
	Tokens   *repository.TokenRepo
}

func NewAuthHandler(cfg config.Config, idp identity.Provider, accounts *service.AccountService,
	users *repository.AccountRepo, tokens *repository.TokenRepo) *AuthHandler {
	return &AuthHandler{Cfg: cfg, IdP: idp, Accounts: accounts, Users: users, Tokens: tokens}
}

// ----- DTOs -----

type signinReq struct {
	IDToken string `json:"id_token"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type authResp struct {
	User    model.Account `json:"user"`
	Access  tokenPart     `json:"access"`
	Refresh tokenPart     `json:"refresh"`
}

// issue creates an access token and a stored refresh token for a.
func (h *AuthHandler) issue(ctx context.Context, a model.Account) (authResp, error) {
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTL())
	if err != nil {
		return authResp{}, err
	}
	if err := h.Tokens.Store(ctx, a.ID, utils.HashToken(refresh.Raw), refresh.Exp); err != nil {
		return authResp{}, err
	}
	return h.pair(a, refresh)
}

// pair signs an access token for a next to an already stored refresh token.
func (h *AuthHandler) pair(a model.Account, refresh utils.RefreshToken) (authResp, error) {
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, a.ID, string(a.Role), a.Name, h.Cfg.AccessTTL())
	if err != nil {
		return authResp{}, err
	}
	return authResp{
		User:    a,
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp}, // raw back to client
	}, nil
}

// Signin verifies the identity provider token, creates the account on
// first use and returns a token pair.
func (h *AuthHandler) Signin(c echo.Context) error {
	var req signinReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.IDToken) == "" {
		return badRequest(c, "id_token required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	p, err := h.IdP.UserInfo(ctx, strings.TrimSpace(req.IDToken))
	if err != nil {
		if errors.Is(err, identity.ErrUnauthorized) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid identity token"})
		}
		zerolog.Ctx(ctx).Warn().Err(err).Msg("identity provider userinfo failed")
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "identity provider unavailable"})
	}
	a, err := h.Accounts.ResolveOrCreate(ctx, p.Subject, p.Email, p.Name)
	if err != nil {
		return respondError(c, err)
	}
	resp, err := h.issue(ctx, a)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue tokens failed"})
	}
	return c.JSON(http.StatusOK, resp)
}

// Refresh rotates the refresh token: the presented token is revoked and
// a new one stored in the same transaction, so a token is redeemable
// once.  Role and name are re-read so admin role changes take effect on
// the next refresh.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return badRequest(c, "refresh_token required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	next, err := utils.NewRefreshToken(h.Cfg.RefreshTTL())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue tokens failed"})
	}
	accountID, err := h.Tokens.Rotate(ctx,
		utils.HashToken(strings.TrimSpace(req.RefreshToken)), utils.HashToken(next.Raw), next.Exp)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "rotate refresh failed"})
	}
	a, err := h.Users.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load account failed"})
	}
	resp, err := h.pair(a, next)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue tokens failed"})
	}
	return c.JSON(http.StatusOK, resp)
}

// RefreshAccess returns a new access token without rotating the refresh
// token.
func (h *AuthHandler) RefreshAccess(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return badRequest(c, "refresh_token required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	accountID, err := h.Tokens.Lookup(ctx, utils.HashToken(strings.TrimSpace(req.RefreshToken)))
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
	}
	a, err := h.Users.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load account failed"})
	}
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, a.ID, string(a.Role), a.Name, h.Cfg.AccessTTL())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue access failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"access": tokenPart{Token: access.Token, Expires: access.Exp},
	})
}

// Logout revokes one refresh token when the body carries it, or every
// refresh token of the caller when only a bearer token is sent.
func (h *AuthHandler) Logout(c echo.Context) error {
	var accountID uint64
	if auth := c.Request().Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		if claims, err := utils.ParseAccessToken(h.Cfg.JWTSecret, strings.TrimPrefix(auth, "Bearer ")); err == nil {
			accountID, _ = claims.AccountID()
		}
	}
	var req refreshReq
	_ = c.Bind(&req)
	refreshToken := strings.TrimSpace(req.RefreshToken)

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	switch {
	case refreshToken != "":
		if err := h.Tokens.Revoke(ctx, utils.HashToken(refreshToken)); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token"})
			}
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "logout failed"})
		}
	case accountID != 0:
		if _, err := h.Tokens.RevokeAll(ctx, accountID); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "logout failed"})
		}
	default:
		return badRequest(c, "provide Authorization header or refresh_token")
	}
	return c.NoContent(http.StatusNoContent)
}

// Me returns the caller's account.
func (h *AuthHandler) Me(c echo.Context) error {
	a := actor(c)
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	acct, err := h.Accounts.Get(ctx, a, a.AccountID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, acct)
}
