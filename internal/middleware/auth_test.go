package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudo-init-do/bazaar/internal/apperr"
	"github.com/sudo-init-do/bazaar/internal/identity"
)

type stubVerifier struct{}

func (stubVerifier) Verify(_ context.Context, token string) (identity.Account, error) {
	if token == "good" {
		return identity.Account{ID: "acc-1", Email: "a@example.com"}, nil
	}
	return identity.Account{}, identity.ErrInvalidToken
}

type recordingDirectory struct {
	mu      sync.Mutex
	touched []string
}

func (d *recordingDirectory) Touch(_ context.Context, acc identity.Account) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.touched = append(d.touched, acc.ID)
	return nil
}

func (d *recordingDirectory) Email(context.Context, string) (string, error) { return "", nil }

func run(t *testing.T, mw echo.MiddlewareFunc, req *http.Request) (identity.Account, bool, error) {
	t.Helper()
	e := echo.New()
	c := e.NewContext(req, httptest.NewRecorder())
	var (
		acc identity.Account
		ok  bool
	)
	err := mw(func(c echo.Context) error {
		acc, ok = AccountFrom(c)
		return nil
	})(c)
	return acc, ok, err
}

func TestRequired(t *testing.T) {
	dir := &recordingDirectory{}
	a := NewAuthenticator(stubVerifier{}, dir)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer good")
	acc, ok, err := run(t, a.Required, req)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "acc-1", acc.ID)
	assert.Equal(t, []string{"acc-1"}, dir.touched)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	_, _, err = run(t, a.Required, req)
	assert.True(t, apperr.Is(err, apperr.CodeUnauthorized))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer bad")
	_, _, err = run(t, a.Required, req)
	assert.True(t, apperr.Is(err, apperr.CodeUnauthorized))

	req = httptest.NewRequest(http.MethodGet, "/?token=good", nil)
	_, _, err = run(t, a.Required, req)
	assert.True(t, apperr.Is(err, apperr.CodeUnauthorized), "query tokens are only accepted on sockets")
}

func TestSocketAcceptsQueryToken(t *testing.T) {
	a := NewAuthenticator(stubVerifier{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/ws?token=good", nil)
	acc, ok, err := run(t, a.Socket, req)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "a@example.com", acc.Email)
}

func TestOptional(t *testing.T) {
	a := NewAuthenticator(stubVerifier{}, nil)

	_, ok, err := run(t, a.Optional, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.False(t, ok)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer bad")
	_, _, err = run(t, a.Optional, req)
	assert.True(t, apperr.Is(err, apperr.CodeUnauthorized))
}
