package services

import (
	"context"
	"errors"
	"net/http"

	"github.com/ebuddy/user-admin-backend/internal/identity"
	"github.com/ebuddy/user-admin-backend/model"
	"go.uber.org/zap"
)

// EmulatorAPIKey is accepted by the auth emulator in place of a real key.
const EmulatorAPIKey = "fake-api-key"

// SessionService exchanges credentials for a bearer token.
type SessionService struct {
	identity  identity.Gateway
	exchanger identity.TokenExchanger
	emulated  bool
	apiKey    string
	logger    *zap.Logger
}

// NewSessionService wires the login flow. In emulated mode an empty apiKey
// falls back to EmulatorAPIKey.
func NewSessionService(gw identity.Gateway, exchanger identity.TokenExchanger, emulated bool, apiKey string, logger *zap.Logger) *SessionService {
	if emulated && apiKey == "" {
		apiKey = EmulatorAPIKey
	}
	return &SessionService{
		identity:  gw,
		exchanger: exchanger,
		emulated:  emulated,
		apiKey:    apiKey,
		logger:    logger,
	}
}

// Login returns a session token for the account registered under email.
// Emulated mode trusts the account lookup and skips the password check.
func (s *SessionService) Login(ctx context.Context, email, password string) (*model.Session, error) {
	if email == "" || password == "" {
		return nil, &ValidationError{Message: "Email and password are required"}
	}

	acc, err := s.identity.FindAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, identity.ErrAccountNotFound) {
			return nil, &AuthError{Code: http.StatusNotFound, Message: "User not found"}
		}
		s.logger.Error("Account lookup failed", zap.String("email", email), zap.Error(err))
		return nil, &AuthError{Code: http.StatusInternalServerError, Message: "Internal server error"}
	}

	if s.emulated {
		return s.emulatedLogin(ctx, acc)
	}

	if s.apiKey == "" {
		s.logger.Error("Identity provider API key is not configured")
		return nil, &AuthError{Code: http.StatusInternalServerError, Message: "Missing identity provider API key"}
	}

	token, err := s.exchanger.SignInWithPassword(ctx, s.apiKey, email, password)
	if err != nil {
		var perr *identity.ProviderError
		if errors.As(err, &perr) {
			return nil, &AuthError{Code: http.StatusUnauthorized, Message: perr.Message}
		}
		s.logger.Error("Password sign-in failed", zap.String("email", email), zap.Error(err))
		return nil, &AuthError{Code: http.StatusInternalServerError, Message: "Internal server error"}
	}

	return &model.Session{Token: token}, nil
}

func (s *SessionService) emulatedLogin(ctx context.Context, acc *identity.Account) (*model.Session, error) {
	custom, err := s.identity.IssueCustomToken(ctx, acc.ID)
	if err != nil {
		s.logger.Error("Custom token issue failed", zap.String("uid", acc.ID), zap.Error(err))
		return nil, &AuthError{Code: http.StatusInternalServerError, Message: "Internal server error"}
	}

	token, err := s.exchanger.ExchangeCustomToken(ctx, s.apiKey, custom)
	if err != nil {
		s.logger.Warn("Emulator token exchange failed", zap.String("uid", acc.ID), zap.Error(err))
		return nil, &AuthError{Code: http.StatusUnauthorized, Message: "Emulator login failed"}
	}

	return &model.Session{Token: token}, nil
}
