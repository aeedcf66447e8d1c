package sessionmw

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/session"
)

const (
	CookieName = "sid"
	contextKey = "session"
	issuer     = "storefront"
)

type Provider interface {
	Get(ctx context.Context, id string) (*session.Root, error)
}

type Config struct {
	Secret []byte
	MaxAge time.Duration
	Secure bool
}

// Load resolves the browser session from the signed sid cookie, starting
// a new one when the cookie is missing or invalid, and stores its Root in
// the echo context.
func Load(p Provider, cfg Config) echo.MiddlewareFunc {
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 30 * 24 * time.Hour
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			l := logging.FromContext(ctx)

			id, err := readCookie(c, cfg.Secret)
			if err != nil {
				if !errors.Is(err, http.ErrNoCookie) {
					l.Warn("session_cookie_invalid", "error", err)
				}
				id = uuid.NewString()
			}

			signed, err := Sign(id, cfg.Secret, time.Now().Add(cfg.MaxAge))
			if err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, "failed to sign session")
			}
			c.SetCookie(&http.Cookie{
				Name:     CookieName,
				Value:    signed,
				Path:     "/",
				HttpOnly: true,
				Secure:   cfg.Secure,
				SameSite: http.SameSiteLaxMode,
				MaxAge:   int(cfg.MaxAge.Seconds()),
			})

			root, err := p.Get(ctx, id)
			if err != nil {
				l.Error("session_init_error", "session", id, "error", err)
				return echo.NewHTTPError(http.StatusInternalServerError, "session unavailable")
			}
			c.Set(contextKey, root)
			c.SetRequest(c.Request().WithContext(logging.IntoContext(ctx, l.With("session", id))))
			return next(c)
		}
	}
}

// Root returns the session loaded by Load.
func Root(c echo.Context) *session.Root {
	r, _ := c.Get(contextKey).(*session.Root)
	return r
}

// Set stores r as the request's session. Handler tests use it in place of
// Load.
func Set(c echo.Context, r *session.Root) {
	c.Set(contextKey, r)
}

// RequireLogin rejects requests whose session has no valid login.
func RequireLogin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		r := Root(c)
		if r == nil || !r.Auth.IsAuthenticated() {
			return echo.NewHTTPError(http.StatusUnauthorized, "login required")
		}
		return next(c)
	}
}

func Sign(id string, secret []byte, exp time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   id,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// Parse verifies a session cookie value and returns the session id.
func Parse(value string, secret []byte) (string, error) {
	var claims jwt.RegisteredClaims
	tkn, err := jwt.ParseWithClaims(value, &claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected sign method")
		}
		return secret, nil
	}, jwt.WithIssuer(issuer))
	if err != nil || !tkn.Valid {
		return "", fmt.Errorf("invalid session cookie: %w", err)
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return "", fmt.Errorf("invalid session id: %w", err)
	}
	return claims.Subject, nil
}

func readCookie(c echo.Context, secret []byte) (string, error) {
	ck, err := c.Cookie(CookieName)
	if err != nil {
		return "", err
	}
	return Parse(ck.Value, secret)
}
