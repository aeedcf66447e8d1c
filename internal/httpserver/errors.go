package httpserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/apperr"
	"github.com/Skotchmaster/storefront/internal/auth"
	"github.com/Skotchmaster/storefront/internal/logging"
	sessionmw "github.com/Skotchmaster/storefront/internal/middleware/session"
	"github.com/Skotchmaster/storefront/internal/session"
)

type fieldErrorBody struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// toHTTP maps a state-layer error onto a status code. Form errors keep
// their field so the page can show the message next to the input.
func toHTTP(c echo.Context, event string, err error) error {
	var fe *auth.FieldError
	switch {
	case errors.As(err, &fe):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, fieldErrorBody{Field: fe.Field, Message: fe.Message})
	case errors.Is(err, apperr.ErrUnauthenticated):
		return echo.NewHTTPError(http.StatusUnauthorized, "login required")
	case errors.Is(err, apperr.ErrValidation):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, apperr.ErrNetwork):
		logging.FromContext(c.Request().Context()).Error(event, "error", err)
		return echo.NewHTTPError(http.StatusBadGateway, "content service unavailable")
	default:
		logging.FromContext(c.Request().Context()).Error(event, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}

func rootOf(c echo.Context) (*session.Root, error) {
	r := sessionmw.Root(c)
	if r == nil {
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "no session")
	}
	return r, nil
}
