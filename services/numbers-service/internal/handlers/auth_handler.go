package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	pkgmodels "github.com/vanityline/vanityline/pkg/models"
)

// SessionCookie names the cookie the web client authenticates with.
type SessionCookie interface {
	CookieName() string
	ExpiresIn() time.Duration
}

type AuthHandler struct {
	responder
	accounts     Accounts
	cookie       SessionCookie
	cookieSecure bool
}

func NewAuthHandler(accounts Accounts, cookie SessionCookie, opts Options) *AuthHandler {
	return &AuthHandler{
		responder:    newResponder(opts),
		accounts:     accounts,
		cookie:       cookie,
		cookieSecure: opts.CookieSecure,
	}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req pkgmodels.RegisterRequest
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, err)
		return
	}

	token, err := h.accounts.Register(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.setCookie(c, token.AccessToken, token.ExpiresIn)
	h.created(c, "Registration successful", token)
}

func (h *AuthHandler) Login(c *gin.Context) {
	h.login(c, h.accounts.Login)
}

func (h *AuthHandler) AdminLogin(c *gin.Context) {
	h.login(c, h.accounts.AdminLogin)
}

func (h *AuthHandler) login(c *gin.Context, fn func(context.Context, pkgmodels.LoginRequest) (*pkgmodels.TokenResponse, error)) {
	var req pkgmodels.LoginRequest
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, err)
		return
	}

	token, err := fn(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.setCookie(c, token.AccessToken, token.ExpiresIn)
	h.ok(c, "Login successful", token)
}

// Logout clears the session cookie. Tokens are stateless, so a bearer token stays valid until it expires.
func (h *AuthHandler) Logout(c *gin.Context) {
	h.setCookie(c, "", -1)
	h.ok(c, "Logged out", nil)
}

func (h *AuthHandler) Me(c *gin.Context) {
	req, err := requester(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	user, err := h.accounts.Me(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, "", user)
}

func (h *AuthHandler) setCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.CookieName(), value, maxAge, "/", "", h.cookieSecure, true)
}
