package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Skotchmaster/storefront/internal/apperr"
	"github.com/Skotchmaster/storefront/internal/contentapi"
	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/meta"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/storage"
)

const (
	tokenKey = "_token"
	userKey  = "_currentUser"
)

type API interface {
	Login(ctx context.Context, req contentapi.LoginRequest) (*models.AuthResponse, error)
	Register(ctx context.Context, req contentapi.RegisterRequest) (*models.AuthResponse, error)
	ChangePassword(ctx context.Context, token string, req contentapi.ChangePasswordRequest) (*models.AuthResponse, error)
}

// Cart is what the session drives on login and logout.
type Cart interface {
	FetchAuthoritative(ctx context.Context) error
	Reset()
}

// Session holds who is logged in. The token and the user are mirrored to
// the session's key/value storage under _token and _currentUser.
type Session struct {
	api   API
	store storage.KV
	log   *slog.Logger
	now   func() time.Time

	mu     sync.Mutex
	cart   Cart
	user   *models.User
	token  string
	status meta.Status
}

func New(api API, store storage.KV, log *slog.Logger) *Session {
	if log == nil {
		log = logging.Discard()
	}
	if store == nil {
		store = storage.NewMemory()
	}
	return &Session{
		api:    api,
		store:  store,
		log:    log.With("component", "auth"),
		now:    time.Now,
		status: meta.Initial,
	}
}

// AttachCart connects the cart that follows this session. The cart needs
// the session for its credentials, so it is attached after construction.
func (s *Session) AttachCart(c Cart) {
	s.mu.Lock()
	s.cart = c
	s.mu.Unlock()
}

// InitFromStorage restores a previous login. Both keys must be present;
// an expired token is removed.
func (s *Session) InitFromStorage(ctx context.Context) error {
	token, okToken, err := s.store.Get(ctx, tokenKey)
	if err != nil {
		return fmt.Errorf("restore token: %w", err)
	}
	raw, okUser, err := s.store.Get(ctx, userKey)
	if err != nil {
		return fmt.Errorf("restore user: %w", err)
	}
	if !okToken || !okUser || token == "" {
		return nil
	}

	var u models.User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		s.log.Warn("auth_restore_error", "error", err)
		return s.clearStorage(ctx)
	}
	if expired(token, s.now()) {
		s.log.Info("auth_token_expired", "user", u.ID)
		return s.clearStorage(ctx)
	}

	s.mu.Lock()
	s.token = token
	s.user = &u
	s.mu.Unlock()
	return nil
}

func (s *Session) Login(ctx context.Context, identifier, password string) error {
	if err := validateLogin(identifier, password); err != nil {
		return err
	}

	s.setStatus(meta.Loading)
	resp, err := s.api.Login(ctx, contentapi.LoginRequest{Identifier: strings.TrimSpace(identifier), Password: password})
	if err != nil {
		s.setStatus(meta.Error)
		s.log.Warn("login_error", "status", meta.Error, "error", err)
		return rejected("login", "", "Invalid username or password", err)
	}
	if err := s.establish(ctx, resp); err != nil {
		return err
	}

	if c := s.attached(); c != nil {
		if err := c.FetchAuthoritative(ctx); err != nil {
			s.log.Warn("login_cart_fetch_error", "error", err)
		}
	}
	return nil
}

func (s *Session) Register(ctx context.Context, username, email, password string) error {
	username, email, password = strings.TrimSpace(username), strings.TrimSpace(email), strings.TrimSpace(password)
	if err := validateRegister(username, email, password); err != nil {
		return err
	}

	s.setStatus(meta.Loading)
	resp, err := s.api.Register(ctx, contentapi.RegisterRequest{Username: username, Email: email, Password: password})
	if err != nil {
		s.setStatus(meta.Error)
		s.log.Warn("register_error", "status", meta.Error, "error", err)
		return rejected("register", "", "username or email is already in use", err)
	}
	return s.establish(ctx, resp)
}

// ChangePassword changes the password of the logged-in user. The API
// answers with a fresh token, which replaces the current one.
func (s *Session) ChangePassword(ctx context.Context, current, password, confirmation string) error {
	token := s.Token()
	if token == "" {
		return apperr.ErrUnauthenticated
	}
	if err := validateChange(current, password, confirmation); err != nil {
		return err
	}

	resp, err := s.api.ChangePassword(ctx, token, contentapi.ChangePasswordRequest{
		CurrentPassword:      current,
		Password:             password,
		PasswordConfirmation: confirmation,
	})
	if err != nil {
		s.log.Warn("change_password_error", "error", err)
		return rejected("change password", "currentPassword", "The provided current password is invalid", err)
	}
	if resp.JWT == "" {
		return nil
	}
	return s.establish(ctx, resp)
}

// Logout forgets the user and resets the cart locally.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	s.user = nil
	s.token = ""
	s.status = meta.Initial
	c := s.cart
	s.mu.Unlock()

	if c != nil {
		c.Reset()
	}
	return s.clearStorage(ctx)
}

// Token returns the bearer token, or "" when logged out or expired.
func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == "" || expired(s.token, s.now()) {
		return ""
	}
	return s.token
}

func (s *Session) IsAuthenticated() bool {
	return s.Token() != ""
}

// UserID keys events by user. Empty when logged out.
func (s *Session) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return ""
	}
	if s.user.DocumentID != "" {
		return s.user.DocumentID
	}
	return strconv.Itoa(s.user.ID)
}

func (s *Session) CurrentUser() *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

func (s *Session) Status() meta.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Session) establish(ctx context.Context, resp *models.AuthResponse) error {
	u := models.User{
		ID:         resp.User.ID,
		DocumentID: resp.User.DocumentID,
		Username:   resp.User.Username,
		Email:      resp.User.Email,
	}
	raw, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}

	s.mu.Lock()
	s.token = resp.JWT
	s.user = &u
	s.status = meta.Success
	s.mu.Unlock()

	if err := s.store.Set(ctx, tokenKey, resp.JWT); err != nil {
		return fmt.Errorf("persist token: %w", err)
	}
	if err := s.store.Set(ctx, userKey, string(raw)); err != nil {
		return fmt.Errorf("persist user: %w", err)
	}
	return nil
}

func (s *Session) clearStorage(ctx context.Context) error {
	if err := s.store.Delete(ctx, tokenKey); err != nil {
		return fmt.Errorf("clear token: %w", err)
	}
	if err := s.store.Delete(ctx, userKey); err != nil {
		return fmt.Errorf("clear user: %w", err)
	}
	return nil
}

func (s *Session) attached() Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart
}

func (s *Session) setStatus(st meta.Status) {
	s.mu.Lock()
	s.status = st
	s.mu.Unlock()
}

// expired reads the exp claim without verifying the signature; the content
// API does the verifying. Tokens without exp never expire here.
func expired(token string, now time.Time) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !now.Before(exp.Time)
}
