package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/bazaar/internal/apperr"
	"github.com/sudo-init-do/bazaar/internal/identity"
	"github.com/sudo-init-do/bazaar/internal/logger"
)

const accountKey = "account"

// Authenticator resolves bearer credentials into an identity.Account on the echo context.
type Authenticator struct {
	verifier  identity.Verifier
	directory identity.Directory
}

// NewAuthenticator wires the verifier. directory may be nil.
func NewAuthenticator(verifier identity.Verifier, directory identity.Directory) *Authenticator {
	return &Authenticator{verifier: verifier, directory: directory}
}

// Required rejects requests without a valid Authorization header.
func (a *Authenticator) Required(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token, err := headerToken(c.Request())
		if err != nil {
			return err
		}
		if err := a.resolve(c, token); err != nil {
			return err
		}
		return next(c)
	}
}

// Socket is Required with a ?token= fallback, since browsers cannot set
// headers on a websocket handshake.
func (a *Authenticator) Socket(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := c.QueryParam("token")
		if token == "" {
			var err error
			if token, err = headerToken(c.Request()); err != nil {
				return err
			}
		}
		if err := a.resolve(c, token); err != nil {
			return err
		}
		return next(c)
	}
}

// Optional resolves the account when a valid credential is present and
// otherwise lets the request through anonymously.
func (a *Authenticator) Optional(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if c.Request().Header.Get(echo.HeaderAuthorization) == "" {
			return next(c)
		}
		token, err := headerToken(c.Request())
		if err != nil {
			return err
		}
		if err := a.resolve(c, token); err != nil {
			return err
		}
		return next(c)
	}
}

func (a *Authenticator) resolve(c echo.Context, token string) error {
	ctx := c.Request().Context()
	acc, err := a.verifier.Verify(ctx, token)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidToken) {
			return apperr.Unauthorized("invalid or expired token", err)
		}
		return apperr.Unauthorized("token verification failed", err)
	}
	if a.directory != nil {
		if err := a.directory.Touch(ctx, acc); err != nil {
			logger.Warn("account mirror update failed for %s: %v", acc.ID, err)
		}
	}
	c.Set(accountKey, acc)
	return nil
}

func headerToken(r *http.Request) (string, error) {
	header := r.Header.Get(echo.HeaderAuthorization)
	if header == "" {
		return "", apperr.Unauthorized("authorization header is required", nil)
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", apperr.Unauthorized("invalid authorization format", nil)
	}
	return strings.TrimSpace(parts[1]), nil
}

// AccountFrom returns the caller, if the request was authenticated.
func AccountFrom(c echo.Context) (identity.Account, bool) {
	acc, ok := c.Get(accountKey).(identity.Account)
	return acc, ok
}

// SetAccount is used by tests to bypass verification.
func SetAccount(c echo.Context, acc identity.Account) {
	c.Set(accountKey, acc)
}
