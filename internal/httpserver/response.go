package httpserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/jyra/internal/models"
)

type successResponse struct {
	Message string `json:"message"`
	Body    any    `json:"body,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type userSummary struct {
	ID      uint   `json:"id"`
	Email   string `json:"email"`
	IsAdmin bool   `json:"is_admin"`
}

type userDetails struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	IsAdmin     bool   `json:"is_admin"`
	WorkplaceID uint   `json:"workplace_id"`
}

func summary(u *models.User) userSummary {
	return userSummary{ID: u.ID, Email: u.Email, IsAdmin: u.IsAdmin}
}

func details(u *models.User) userDetails {
	return userDetails{ID: u.ID, Name: u.Name, Email: u.Email, IsAdmin: u.IsAdmin, WorkplaceID: u.WorkplaceID}
}

// ErrorHandler renders every error as {"error": msg}. Messages of 5xx errors
// come from the handlers and never carry the internal cause.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	msg := "Internal server error"

	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		} else {
			msg = http.StatusText(code)
		}
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, errorResponse{Error: msg})
	}
	if err != nil {
		c.Logger().Error(err)
	}
}
