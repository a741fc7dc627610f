package httpserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	jwthelp "github.com/Skotchmaster/jyra/internal/jwt"
	"github.com/Skotchmaster/jyra/internal/logging"
	"github.com/Skotchmaster/jyra/internal/service"
	"github.com/Skotchmaster/jyra/internal/tokens"
)

const (
	msgRequired       = "Email and password are required"
	msgDuplicate      = "Email already registered"
	msgBadCredentials = "Invalid email or password"
	msgUnauthorized   = "Missing or invalid access token"
	msgRefreshFailed  = "Token refresh failed"
	msgUserNotFound   = "User not found"
	msgInvalidBody    = "Invalid request body"
	msgInternal       = "Internal server error"
	msgCreateFailed   = "Failed to create user"
	msgRetrieveFailed = "Failed to retrieve user"
	claimsContextKey  = "claims"
)

type AuthHTTP struct {
	Svc     *service.AuthService
	Cookies jwthelp.Cookies
}

type signupRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	AdminSecret string `json:"adminSecret"`
}

type signinRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// httpError maps service errors onto the public error taxonomy. internalMsg
// is what the client sees for anything unexpected.
func httpError(err error, internalMsg string) *echo.HTTPError {
	switch {
	case errors.Is(err, service.ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, msgRequired)
	case errors.Is(err, service.ErrDuplicateEmail):
		return echo.NewHTTPError(http.StatusBadRequest, msgDuplicate)
	case errors.Is(err, service.ErrInvalidCredentials):
		return echo.NewHTTPError(http.StatusUnauthorized, msgBadCredentials)
	case errors.Is(err, service.ErrUnauthorized):
		return echo.NewHTTPError(http.StatusUnauthorized, msgUnauthorized)
	case errors.Is(err, service.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, msgUserNotFound)
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, internalMsg).SetInternal(err)
	}
}

func (h *AuthHTTP) setSession(c echo.Context, res *service.SessionResult) {
	c.SetCookie(h.Cookies.Access(res.AccessToken, res.AccessExp))
	c.SetCookie(h.Cookies.Refresh(res.RefreshToken, res.RefreshExp))
}

func (h *AuthHTTP) Signup(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_signup")

	var req signupRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("signup_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, msgInvalidBody)
	}

	res, err := h.Svc.Signup(ctx, req.Email, req.Password, req.AdminSecret)
	if err != nil {
		return httpError(err, msgCreateFailed)
	}

	h.setSession(c, res)
	return c.JSON(http.StatusCreated, successResponse{
		Message: "User created successfully",
		Body:    echo.Map{"user": summary(res.User)},
	})
}

func (h *AuthHTTP) Signin(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_signin")

	var req signinRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("signin_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, msgInvalidBody)
	}

	res, err := h.Svc.Signin(ctx, req.Email, req.Password)
	if err != nil {
		return httpError(err, msgInternal)
	}

	h.setSession(c, res)
	return c.JSON(http.StatusOK, successResponse{
		Message: "Login successful",
		Body:    echo.Map{"user": summary(res.User)},
	})
}

// Refresh only overwrites the access cookie; the refresh cookie is left as is.
func (h *AuthHTTP) Refresh(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_refresh")

	refreshCookie, err := c.Cookie(jwthelp.RefreshCookie)
	if err != nil || refreshCookie.Value == "" {
		l.Warn("refresh_failed", "status", 401, "reason", "missing_refresh_cookie")
		return echo.NewHTTPError(http.StatusUnauthorized, msgRefreshFailed)
	}

	res, err := h.Svc.Refresh(ctx, refreshCookie.Value)
	if err != nil {
		if errors.Is(err, service.ErrUnauthorized) {
			return echo.NewHTTPError(http.StatusUnauthorized, msgRefreshFailed)
		}
		return httpError(err, msgInternal)
	}

	c.SetCookie(h.Cookies.Access(res.AccessToken, res.AccessExp))
	return c.JSON(http.StatusOK, successResponse{Message: "Token refreshed successfully"})
}

// Signout clears both cookies. Tokens already copied elsewhere stay valid
// until they expire; there is no server side session to end.
func (h *AuthHTTP) Signout(c echo.Context) error {
	l := logging.FromContext(c.Request().Context()).With("handler", "auth_signout")

	for _, ck := range h.Cookies.Clear() {
		c.SetCookie(ck)
	}
	l.Info("successful_signout")
	return c.JSON(http.StatusOK, successResponse{Message: "Logged out successfully"})
}

func (h *AuthHTTP) CurrentUser(c echo.Context) error {
	ctx := c.Request().Context()

	claims, ok := c.Get(claimsContextKey).(*tokens.Claims)
	if !ok || claims == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, msgUnauthorized)
	}

	user, err := h.Svc.CurrentUser(ctx, claims.Subject)
	if err != nil {
		return httpError(err, msgRetrieveFailed)
	}

	return c.JSON(http.StatusOK, successResponse{
		Message: "User retrieved successfully",
		Body:    details(user),
	})
}
