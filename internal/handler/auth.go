package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/resource-api/internal/middleware"
	"github.com/iliyamo/resource-api/internal/model"
	"github.com/iliyamo/resource-api/internal/schema"
	"github.com/iliyamo/resource-api/internal/service"
	"github.com/iliyamo/resource-api/internal/utils"
)

// Auth is the service behind the /v1/auth endpoints.
// *service.AuthService implements it.
type Auth interface {
	Register(ctx context.Context, in service.RegisterInput) (schema.Record, error)
	Login(ctx context.Context, in service.LoginInput, client service.Client) (service.LoginResult, error)
	Check(ctx context.Context, token string) (*utils.Claims, error)
	Logoff(ctx context.Context, token string) error
	Sessions(ctx context.Context, userID uint64) ([]model.Session, error)
}

// AuthHandler bundles the auth endpoints.
type AuthHandler struct {
	Auth Auth
}

func NewAuthHandler(a Auth) *AuthHandler {
	return &AuthHandler{Auth: a}
}

// ----- DTOs -----

// registerReq has no role: self-registered accounts always get the
// default role.  Email and phone are accepted as aliases of loginKey.
type registerReq struct {
	Name     string `json:"name"`
	LoginKey string `json:"loginKey"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
	Group    string `json:"group"`
}

type loginReq struct {
	LoginKey string `json:"loginKey"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

type identityResp struct {
	UserID    string    `json:"user_id"`
	Login     string    `json:"login"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	SessionID string    `json:"session_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func identityOf(cl *utils.Claims) identityResp {
	out := identityResp{UserID: cl.Subject, Login: cl.Login, Name: cl.Name, Role: cl.Role, SessionID: cl.ID}
	if cl.ExpiresAt != nil {
		out.ExpiresAt = cl.ExpiresAt.Time.UTC()
	}
	return out
}

// Register creates an account with the default role.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	rec, err := h.Auth.Register(c.Request().Context(), service.RegisterInput{
		Name:     req.Name,
		LoginKey: firstNonEmpty(req.LoginKey, req.Email, req.Phone),
		Password: req.Password,
		Group:    req.Group,
	})
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusCreated, "user registered", rec)
}

// Login exchanges credentials for a bearer token.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	res, err := h.Auth.Login(c.Request().Context(),
		service.LoginInput{LoginKey: firstNonEmpty(req.LoginKey, req.Email, req.Phone), Password: req.Password},
		service.Client{IP: c.RealIP(), UserAgent: c.Request().UserAgent()})
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, "logged in", res)
}

// Check validates the bearer token and records the check on its session.
func (h *AuthHandler) Check(c echo.Context) error {
	claims, err := h.Auth.Check(c.Request().Context(), middleware.BearerToken(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, "", identityOf(claims))
}

// Logoff ends the session of the bearer token.
func (h *AuthHandler) Logoff(c echo.Context) error {
	if err := h.Auth.Logoff(c.Request().Context(), middleware.BearerToken(c)); err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, "logged off", nil)
}

// Sessions lists the caller's own sessions.  Runs behind BearerAuth.
func (h *AuthHandler) Sessions(c echo.Context) error {
	claims, found := middleware.ClaimsFrom(c)
	if !found {
		return c.JSON(http.StatusUnauthorized, envelope{Message: "unauthorized"})
	}
	uid, err := claims.UserID()
	if err != nil {
		return c.JSON(http.StatusUnauthorized, envelope{Message: "unauthorized"})
	}
	list, err := h.Auth.Sessions(c.Request().Context(), uid)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, "", list)
}

// Me returns the identity of the caller.  Runs behind BearerAuth.
func (h *AuthHandler) Me(c echo.Context) error {
	claims, found := middleware.ClaimsFrom(c)
	if !found {
		return c.JSON(http.StatusUnauthorized, envelope{Message: "unauthorized"})
	}
	return ok(c, http.StatusOK, "", identityOf(claims))
}
