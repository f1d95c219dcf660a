package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	memoryIssuer    = "memory-identity"
	tokenUseID      = "id"
	tokenUseCustom  = "custom"
	defaultTokenTTL = time.Hour
)

// memoryClaims are carried by tokens minted by MemoryGateway
type memoryClaims struct {
	Email string `json:"email,omitempty"`
	Use   string `json:"use"`
	jwt.RegisteredClaims
}

type memoryAccount struct {
	Account
	PasswordHash []byte
}

// MemoryGateway is an in-process identity provider. It implements both Gateway
// and TokenExchanger and signs its tokens with HS256.
type MemoryGateway struct {
	mu       sync.RWMutex
	accounts map[string]*memoryAccount
	byEmail  map[string]string
	secret   []byte
	ttl      time.Duration
	now      func() time.Time
}

// NewMemoryGateway returns an empty provider signing tokens with secret.
func NewMemoryGateway(secret string) *MemoryGateway {
	return &MemoryGateway{
		accounts: make(map[string]*memoryAccount),
		byEmail:  make(map[string]string),
		secret:   []byte(secret),
		ttl:      defaultTokenTTL,
		now:      time.Now,
	}
}

// WithClock overrides the time source. Meant for tests.
func (g *MemoryGateway) WithClock(now func() time.Time) *MemoryGateway {
	g.now = now
	return g
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// FindAccountByEmail looks an account up by its email address.
func (g *MemoryGateway) FindAccountByEmail(_ context.Context, email string) (*Account, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	id, ok := g.byEmail[normalizeEmail(email)]
	if !ok {
		return nil, ErrAccountNotFound
	}
	acc := g.accounts[id].Account
	return &acc, nil
}

// GetAccount looks an account up by id.
func (g *MemoryGateway) GetAccount(_ context.Context, id string) (*Account, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	a, ok := g.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	acc := a.Account
	return &acc, nil
}

// CreateAccount opens a new account. Emails are unique.
func (g *MemoryGateway) CreateAccount(_ context.Context, in AccountToCreate) (*Account, error) {
	email := normalizeEmail(in.Email)
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrCreateAccount)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCreateAccount, err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, taken := g.byEmail[email]; taken {
		return nil, fmt.Errorf("%w: %w", ErrCreateAccount, ErrEmailExists)
	}

	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	g.accounts[id] = &memoryAccount{
		Account:      Account{ID: id, Email: in.Email, DisplayName: in.DisplayName},
		PasswordHash: hash,
	}
	g.byEmail[email] = id

	return &Account{ID: id, Email: in.Email, DisplayName: in.DisplayName}, nil
}

// UpdateAccount pushes profile changes to the account.
func (g *MemoryGateway) UpdateAccount(_ context.Context, id string, update AccountUpdate) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	a, ok := g.accounts[id]
	if !ok {
		return ErrAccountNotFound
	}

	if update.Email != nil {
		email := normalizeEmail(*update.Email)
		if owner, taken := g.byEmail[email]; taken && owner != id {
			return ErrEmailExists
		}
		delete(g.byEmail, normalizeEmail(a.Email))
		g.byEmail[email] = id
		a.Email = *update.Email
	}
	if update.DisplayName != nil {
		a.DisplayName = *update.DisplayName
	}
	return nil
}

// DeleteAccount removes the account.
func (g *MemoryGateway) DeleteAccount(_ context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	a, ok := g.accounts[id]
	if !ok {
		return ErrAccountNotFound
	}
	delete(g.byEmail, normalizeEmail(a.Email))
	delete(g.accounts, id)
	return nil
}

// VerifyToken validates an ID token minted by this gateway.
func (g *MemoryGateway) VerifyToken(_ context.Context, token string) (*Principal, error) {
	claims, err := g.parse(token, tokenUseID)
	if err != nil {
		return nil, err
	}

	g.mu.RLock()
	_, exists := g.accounts[claims.Subject]
	g.mu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("%w: account no longer exists", ErrInvalidToken)
	}

	return &Principal{
		UID:       claims.Subject,
		Email:     claims.Email,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// IssueCustomToken mints a short lived custom token for the account.
func (g *MemoryGateway) IssueCustomToken(_ context.Context, id string) (string, error) {
	g.mu.RLock()
	a, ok := g.accounts[id]
	g.mu.RUnlock()
	if !ok {
		return "", ErrAccountNotFound
	}
	return g.sign(a.ID, a.Email, tokenUseCustom)
}

// ExchangeCustomToken trades a custom token for an ID token. The API key is ignored.
func (g *MemoryGateway) ExchangeCustomToken(_ context.Context, _ string, customToken string) (string, error) {
	claims, err := g.parse(customToken, tokenUseCustom)
	if err != nil {
		return "", &ProviderError{Message: "INVALID_CUSTOM_TOKEN"}
	}
	return g.sign(claims.Subject, claims.Email, tokenUseID)
}

// SignInWithPassword checks the credentials and returns an ID token. The API key is ignored.
func (g *MemoryGateway) SignInWithPassword(_ context.Context, _ string, email, password string) (string, error) {
	g.mu.RLock()
	id, ok := g.byEmail[normalizeEmail(email)]
	var a memoryAccount
	if ok {
		a = *g.accounts[id]
	}
	g.mu.RUnlock()

	if !ok || bcrypt.CompareHashAndPassword(a.PasswordHash, []byte(password)) != nil {
		return "", &ProviderError{Message: "INVALID_LOGIN_CREDENTIALS"}
	}
	return g.sign(a.ID, a.Email, tokenUseID)
}

func (g *MemoryGateway) sign(uid, email, use string) (string, error) {
	now := g.now()
	claims := &memoryClaims{
		Email: email,
		Use:   use,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(g.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    memoryIssuer,
			Subject:   uid,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(g.secret)
}

func (g *MemoryGateway) parse(tokenString, use string) (*memoryClaims, error) {
	claims := &memoryClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return g.secret, nil
	},
		jwt.WithIssuer(memoryIssuer),
		jwt.WithTimeFunc(g.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Use != use || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
