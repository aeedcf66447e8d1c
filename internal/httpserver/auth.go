package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/meta"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/session"
)

type AuthHTTP struct{}

type MeResponse struct {
	Authenticated bool         `json:"authenticated"`
	User          *models.User `json:"user"`
	Status        meta.Status  `json:"status"`
}

func meOf(r *session.Root) MeResponse {
	return MeResponse{
		Authenticated: r.Auth.IsAuthenticated(),
		User:          r.Auth.CurrentUser(),
		Status:        r.Auth.Status(),
	}
}

func (h *AuthHTTP) Login(c echo.Context) error {
	r, err := rootOf(c)
	if err != nil {
		return err
	}
	var req struct {
		Identifier string `json:"identifier"`
		Password   string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := r.Auth.Login(c.Request().Context(), req.Identifier, req.Password); err != nil {
		return toHTTP(c, "login_error", err)
	}
	return c.JSON(http.StatusOK, meOf(r))
}

func (h *AuthHTTP) Register(c echo.Context) error {
	r, err := rootOf(c)
	if err != nil {
		return err
	}
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := r.Auth.Register(c.Request().Context(), req.Username, req.Email, req.Password); err != nil {
		return toHTTP(c, "register_error", err)
	}
	return c.JSON(http.StatusCreated, meOf(r))
}

func (h *AuthHTTP) Logout(c echo.Context) error {
	r, err := rootOf(c)
	if err != nil {
		return err
	}
	if err := r.Auth.Logout(c.Request().Context()); err != nil {
		return toHTTP(c, "logout_error", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *AuthHTTP) ChangePassword(c echo.Context) error {
	r, err := rootOf(c)
	if err != nil {
		return err
	}
	var req struct {
		CurrentPassword      string `json:"currentPassword"`
		Password             string `json:"password"`
		PasswordConfirmation string `json:"passwordConfirmation"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := r.Auth.ChangePassword(c.Request().Context(), req.CurrentPassword, req.Password, req.PasswordConfirmation); err != nil {
		return toHTTP(c, "change_password_error", err)
	}
	return c.JSON(http.StatusOK, meOf(r))
}

func (h *AuthHTTP) Me(c echo.Context) error {
	r, err := rootOf(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, meOf(r))
}
