package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/storefront/internal/apperr"
	"github.com/Skotchmaster/storefront/internal/contentapi"
	"github.com/Skotchmaster/storefront/internal/meta"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/storage"
)

type fakeAPI struct {
	resp      *models.AuthResponse
	err       error
	logins    int
	registers int
	changes   []contentapi.ChangePasswordRequest
	lastToken string
}

func (f *fakeAPI) Login(_ context.Context, _ contentapi.LoginRequest) (*models.AuthResponse, error) {
	f.logins++
	return f.resp, f.err
}

func (f *fakeAPI) Register(_ context.Context, _ contentapi.RegisterRequest) (*models.AuthResponse, error) {
	f.registers++
	return f.resp, f.err
}

func (f *fakeAPI) ChangePassword(_ context.Context, token string, req contentapi.ChangePasswordRequest) (*models.AuthResponse, error) {
	f.lastToken = token
	f.changes = append(f.changes, req)
	return f.resp, f.err
}

type fakeCart struct {
	fetches int
	resets  int
}

func (c *fakeCart) FetchAuthoritative(context.Context) error {
	c.fetches++
	return nil
}

func (c *fakeCart) Reset() { c.resets++ }

func signToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":  7,
		"exp": exp.Unix(),
	}).SignedString([]byte("content-api-secret"))
	require.NoError(t, err)
	return tok
}

var alice = models.User{ID: 7, DocumentID: "u-7", Username: "alice", Email: "alice@example.com"}

func TestSession_LoginPersistsAndFetchesCart(t *testing.T) {
	ctx := context.Background()
	tok := signToken(t, time.Now().Add(time.Hour))
	api := &fakeAPI{resp: &models.AuthResponse{JWT: tok, User: alice}}
	store := storage.NewMemory()
	cart := &fakeCart{}

	s := New(api, store, nil)
	s.AttachCart(cart)

	require.NoError(t, s.Login(ctx, "alice", "secret"))

	assert.True(t, s.IsAuthenticated())
	assert.Equal(t, tok, s.Token())
	assert.Equal(t, "u-7", s.UserID())
	assert.Equal(t, meta.Success, s.Status())
	assert.Equal(t, 1, cart.fetches)

	saved, ok, err := store.Get(ctx, "_token")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, tok, saved)

	raw, ok, err := store.Get(ctx, "_currentUser")
	require.NoError(t, err)
	require.True(t, ok)
	var u models.User
	require.NoError(t, json.Unmarshal([]byte(raw), &u))
	assert.Equal(t, alice, u)
}

func TestSession_LoginFailureCarriesAPIMessage(t *testing.T) {
	api := &fakeAPI{err: &contentapi.APIError{StatusCode: http.StatusBadRequest, Message: "Invalid identifier or password"}}
	s := New(api, nil, nil)

	err := s.Login(context.Background(), "alice", "wrong")

	var fe *FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "Invalid identifier or password", fe.Message)
	assert.True(t, errors.Is(err, apperr.ErrNetwork))
	assert.False(t, s.IsAuthenticated())
	assert.Equal(t, meta.Error, s.Status())
}

func TestSession_LoginFailureFallbackMessage(t *testing.T) {
	api := &fakeAPI{err: &contentapi.APIError{StatusCode: http.StatusBadRequest}}
	s := New(api, nil, nil)

	err := s.Login(context.Background(), "alice", "wrong")

	var fe *FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "Invalid username or password", fe.Message)
}

func TestSession_UnreachableAPIIsNotBadInput(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		err  error
		call func(s *Session) error
	}{
		{"login transport", apperr.ErrNetwork, func(s *Session) error { return s.Login(ctx, "alice", "secret") }},
		{"login server error", &contentapi.APIError{StatusCode: http.StatusBadGateway, Message: "upstream"}, func(s *Session) error {
			return s.Login(ctx, "alice", "secret")
		}},
		{"register transport", apperr.ErrNetwork, func(s *Session) error {
			return s.Register(ctx, "alice", "alice@example.com", "secret")
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(&fakeAPI{err: tt.err}, nil, nil)

			err := tt.call(s)

			require.ErrorIs(t, err, apperr.ErrNetwork)
			var fe *FieldError
			assert.False(t, errors.As(err, &fe))
			assert.False(t, s.IsAuthenticated())
			assert.Equal(t, meta.Error, s.Status())
		})
	}
}

func TestSession_LocalValidationSkipsNetwork(t *testing.T) {
	tests := []struct {
		name  string
		call  func(s *Session) error
		field string
	}{
		{"login without identifier", func(s *Session) error {
			return s.Login(context.Background(), " ", "secret")
		}, "identifier"},
		{"register short password", func(s *Session) error {
			return s.Register(context.Background(), "alice", "alice@example.com", "abc")
		}, "password"},
		{"register bad email", func(s *Session) error {
			return s.Register(context.Background(), "alice", "alice@", "secret")
		}, "email"},
		{"register short username", func(s *Session) error {
			return s.Register(context.Background(), "a", "alice@example.com", "secret")
		}, "username"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{}
			s := New(api, nil, nil)

			err := tt.call(s)

			require.ErrorIs(t, err, apperr.ErrValidation)
			var fe *FieldError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tt.field, fe.Field)
			assert.Zero(t, api.logins+api.registers)
		})
	}
}

func TestSession_RegisterDoesNotFetchCart(t *testing.T) {
	tok := signToken(t, time.Now().Add(time.Hour))
	api := &fakeAPI{resp: &models.AuthResponse{JWT: tok, User: alice}}
	cart := &fakeCart{}
	s := New(api, nil, nil)
	s.AttachCart(cart)

	require.NoError(t, s.Register(context.Background(), " alice ", "alice@example.com", "secret"))

	assert.True(t, s.IsAuthenticated())
	assert.Zero(t, cart.fetches)
}

func TestSession_InitFromStorage(t *testing.T) {
	ctx := context.Background()
	raw, err := json.Marshal(alice)
	require.NoError(t, err)

	t.Run("valid token", func(t *testing.T) {
		store := storage.NewMemory()
		tok := signToken(t, time.Now().Add(time.Hour))
		require.NoError(t, store.Set(ctx, "_token", tok))
		require.NoError(t, store.Set(ctx, "_currentUser", string(raw)))

		s := New(&fakeAPI{}, store, nil)
		require.NoError(t, s.InitFromStorage(ctx))

		assert.True(t, s.IsAuthenticated())
		assert.Equal(t, "alice", s.CurrentUser().Username)
	})

	t.Run("expired token is dropped", func(t *testing.T) {
		store := storage.NewMemory()
		require.NoError(t, store.Set(ctx, "_token", signToken(t, time.Now().Add(-time.Minute))))
		require.NoError(t, store.Set(ctx, "_currentUser", string(raw)))

		s := New(&fakeAPI{}, store, nil)
		require.NoError(t, s.InitFromStorage(ctx))

		assert.False(t, s.IsAuthenticated())
		_, ok, err := store.Get(ctx, "_token")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("user missing", func(t *testing.T) {
		store := storage.NewMemory()
		require.NoError(t, store.Set(ctx, "_token", "opaque"))

		s := New(&fakeAPI{}, store, nil)
		require.NoError(t, s.InitFromStorage(ctx))
		assert.False(t, s.IsAuthenticated())
	})
}

func TestSession_TokenExpiresWhileLoggedIn(t *testing.T) {
	now := time.Now()
	tok := signToken(t, now.Add(time.Minute))
	s := New(&fakeAPI{resp: &models.AuthResponse{JWT: tok, User: alice}}, nil, nil)
	s.now = func() time.Time { return now }
	require.NoError(t, s.Login(context.Background(), "alice", "secret"))
	require.True(t, s.IsAuthenticated())

	now = now.Add(2 * time.Minute)
	assert.False(t, s.IsAuthenticated())
	assert.Empty(t, s.Token())
}

func TestSession_LogoutResetsCart(t *testing.T) {
	ctx := context.Background()
	tok := signToken(t, time.Now().Add(time.Hour))
	store := storage.NewMemory()
	cart := &fakeCart{}
	s := New(&fakeAPI{resp: &models.AuthResponse{JWT: tok, User: alice}}, store, nil)
	s.AttachCart(cart)
	require.NoError(t, s.Login(ctx, "alice", "secret"))

	require.NoError(t, s.Logout(ctx))

	assert.False(t, s.IsAuthenticated())
	assert.Nil(t, s.CurrentUser())
	assert.Equal(t, 1, cart.resets)
	_, ok, err := store.Get(ctx, "_currentUser")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSession_ChangePassword(t *testing.T) {
	ctx := context.Background()
	tok := signToken(t, time.Now().Add(time.Hour))
	api := &fakeAPI{resp: &models.AuthResponse{JWT: tok, User: alice}}
	s := New(api, nil, nil)

	require.ErrorIs(t, s.ChangePassword(ctx, "old12", "new12", "new12"), apperr.ErrUnauthenticated)

	require.NoError(t, s.Login(ctx, "alice", "old12"))

	tests := []struct {
		name                   string
		current, next, confirm string
		field                  string
	}{
		{"same as current", "old12", "old12", "old12", "password"},
		{"mismatch", "old12", "new12", "new13", "passwordConfirmation"},
		{"too short", "old12", "abc", "abc", "password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.ChangePassword(ctx, tt.current, tt.next, tt.confirm)
			require.ErrorIs(t, err, apperr.ErrValidation)
			var fe *FieldError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tt.field, fe.Field)
		})
	}
	assert.Empty(t, api.changes)

	fresh := signToken(t, time.Now().Add(2*time.Hour))
	api.resp = &models.AuthResponse{JWT: fresh, User: alice}
	require.NoError(t, s.ChangePassword(ctx, "old12", "new12", "new12"))
	assert.Equal(t, tok, api.lastToken)
	assert.Equal(t, fresh, s.Token())

	api.err = &contentapi.APIError{StatusCode: http.StatusBadRequest}
	err := s.ChangePassword(ctx, "bad12", "new34", "new34")
	var fe *FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "currentPassword", fe.Field)
	assert.Equal(t, "The provided current password is invalid", fe.Message)

	api.err = apperr.ErrNetwork
	err = s.ChangePassword(ctx, "old12", "new34", "new34")
	require.ErrorIs(t, err, apperr.ErrNetwork)
	assert.False(t, errors.As(err, &fe))
	assert.Equal(t, fresh, s.Token())
}
