package httpserver

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
)

type Deps struct {
	AuthHandler *AuthHTTP
	Tokens      TokenVerifier
	Ready       func(ctx context.Context) error
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if d.Ready != nil {
			if err := d.Ready(c.Request().Context()); err != nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "not ready").SetInternal(err)
			}
		}
		return c.NoContent(http.StatusOK)
	})

	api := e.Group("/api")

	api.POST("/signup", d.AuthHandler.Signup)
	api.POST("/signin", d.AuthHandler.Signin)
	api.POST("/refresh", d.AuthHandler.Refresh)
	api.POST("/signout", d.AuthHandler.Signout)

	api.GET("/user", d.AuthHandler.CurrentUser, RequireAccess(d.Tokens))
}
