package httpserver

import (
	"log/slog"
	"net/http"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	jwthelp "github.com/Skotchmaster/jyra/internal/jwt"
	"github.com/Skotchmaster/jyra/internal/logging"
	loggingmw "github.com/Skotchmaster/jyra/internal/middleware/logging"
	"github.com/Skotchmaster/jyra/internal/tokens"
)

type TokenVerifier interface {
	Verify(token string, kind tokens.Kind) (*tokens.Claims, error)
}

// RequireAccess accepts requests carrying a valid access_token cookie and
// stores its claims in the echo context.
func RequireAccess(v TokenVerifier) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		TokenLookup: "cookie:" + jwthelp.AccessCookie,
		ContextKey:  claimsContextKey,
		ParseTokenFunc: func(c echo.Context, auth string) (interface{}, error) {
			claims, err := v.Verify(auth, tokens.Access)
			if err != nil {
				return nil, err
			}
			return claims, nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			logging.FromContext(c.Request().Context()).Warn("access_denied", "status", 401, "error", err)
			return echo.NewHTTPError(http.StatusUnauthorized, msgUnauthorized)
		},
	})
}

// NewEcho builds the server with the shared middleware stack.
func NewEcho(base *slog.Logger, corsOrigins []string) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = ErrorHandler

	e.Use(
		middleware.RequestID(),
		loggingmw.RequestLogger(base),
		middleware.Recover(),
		middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins:     corsOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders:     []string{echo.HeaderContentType},
			ExposeHeaders:    []string{"Set-Cookie"},
			AllowCredentials: true,
		}),
	)
	return e
}
