package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cliora-storefront/internal/middleware"
	"github.com/iliyamo/cliora-storefront/internal/service"
)

const refreshCookie = "refresh_token"

// AuthHandler serves /api/auth.  The refresh token only ever travels in
// the HTTP-only cookie.
type AuthHandler struct {
	auth       *service.AuthService
	secure     bool
	refreshTTL time.Duration
}

// NewAuthHandler wires the handler.  secure marks the cookie Secure and is
// set in production.
func NewAuthHandler(auth *service.AuthService, secure bool, refreshTTL time.Duration) *AuthHandler {
	return &AuthHandler{auth: auth, secure: secure, refreshTTL: refreshTTL}
}

type registerReq struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	sess, err := h.auth.Register(ctx, req.Name, req.Email, req.Password)
	if err != nil {
		return fail(c, err)
	}
	h.setRefresh(c, sess.Refresh.Raw)
	return c.JSON(http.StatusCreated, echo.Map{"token": sess.AccessToken, "user": sess.User})
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	sess, err := h.auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		return fail(c, err)
	}
	h.setRefresh(c, sess.Refresh.Raw)
	return c.JSON(http.StatusOK, echo.Map{"token": sess.AccessToken, "user": sess.User})
}

func (h *AuthHandler) Refresh(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	token, err := h.auth.Refresh(ctx, cookieValue(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"token": token})
}

// Logout revokes the cookie's token and clears the cookie.  It always
// answers {ok:true}.
func (h *AuthHandler) Logout(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	h.auth.Logout(ctx, cookieValue(c))
	c.SetCookie(h.cookie("", -1))
	return ok(c)
}

// Me returns the caller's profile, or JSON null if the account is gone.
func (h *AuthHandler) Me(c echo.Context) error {
	id, _ := middleware.IdentityFrom(c)
	ctx, cancel := reqCtx(c)
	defer cancel()

	me, err := h.auth.Me(ctx, id.UserID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, me)
}

func (h *AuthHandler) setRefresh(c echo.Context, raw string) {
	c.SetCookie(h.cookie(raw, int(h.refreshTTL/time.Second)))
}

func (h *AuthHandler) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     refreshCookie,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func cookieValue(c echo.Context) string {
	ck, err := c.Cookie(refreshCookie)
	if err != nil {
		return ""
	}
	return ck.Value
}
