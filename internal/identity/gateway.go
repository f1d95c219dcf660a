// Package identity talks to the identity provider that owns user accounts,
// credentials and bearer tokens.
package identity

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Errors reported by gateways. ErrTokenExpired is also an ErrInvalidToken.
var (
	ErrAccountNotFound = errors.New("account not found")
	ErrCreateAccount   = errors.New("create account failed")
	ErrEmailExists     = errors.New("email already in use")
	ErrInvalidToken    = errors.New("invalid token")
	ErrTokenExpired    = fmt.Errorf("%w: expired", ErrInvalidToken)
)

// ProviderError is a failure reported by the provider during token exchange.
type ProviderError struct {
	Message string
}

func (e *ProviderError) Error() string {
	return "identity provider: " + e.Message
}

// Account is the provider-side view of a user.
type Account struct {
	ID          string
	Email       string
	DisplayName string
}

// AccountToCreate holds the fields used to open an account.
type AccountToCreate struct {
	Email       string
	Password    string
	DisplayName string
}

// AccountUpdate holds the profile fields pushed to the provider. Nil fields are untouched.
type AccountUpdate struct {
	Email       *string
	DisplayName *string
}

// IsEmpty reports whether the update changes nothing.
func (u AccountUpdate) IsEmpty() bool {
	return u.Email == nil && u.DisplayName == nil
}

// Principal is the identity proven by a verified bearer token.
type Principal struct {
	UID       string
	Email     string
	ExpiresAt time.Time
}

// Gateway is the narrow interface over the identity provider.
type Gateway interface {
	FindAccountByEmail(ctx context.Context, email string) (*Account, error)
	GetAccount(ctx context.Context, id string) (*Account, error)
	CreateAccount(ctx context.Context, in AccountToCreate) (*Account, error)
	UpdateAccount(ctx context.Context, id string, update AccountUpdate) error
	DeleteAccount(ctx context.Context, id string) error
	VerifyToken(ctx context.Context, token string) (*Principal, error)
	IssueCustomToken(ctx context.Context, id string) (string, error)
}

// TokenExchanger turns credentials into a session token the Gateway can verify.
type TokenExchanger interface {
	ExchangeCustomToken(ctx context.Context, apiKey, customToken string) (string, error)
	SignInWithPassword(ctx context.Context, apiKey, email, password string) (string, error)
}

type principalKey struct{}

// WithPrincipal returns a context carrying p.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the principal stored by WithPrincipal, if any.
func PrincipalFrom(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok && p != nil
}
