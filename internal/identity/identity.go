package identity

import (
	"context"
	"errors"
)

// Account is the verified caller. The ID is the identity provider's subject.
type Account struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

var ErrInvalidToken = errors.New("invalid or expired token")

// Verifier turns a bearer credential into a verified Account.
type Verifier interface {
	Verify(ctx context.Context, token string) (Account, error)
}
