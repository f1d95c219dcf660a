package identity

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

const authEmulatorHostEnv = "FIREBASE_AUTH_EMULATOR_HOST"

// FirebaseConfig selects the Firebase project and how to reach it.
type FirebaseConfig struct {
	ProjectID      string
	CredentialPath string
	// Emulated routes every call to the local auth emulator.
	Emulated     bool
	EmulatorHost string
}

// FirebaseGateway implements Gateway with the Firebase Admin SDK.
type FirebaseGateway struct {
	client       *auth.Client
	checkRevoked bool
	logger       *zap.Logger
}

// NewFirebaseGateway initializes the Admin SDK auth client.
func NewFirebaseGateway(ctx context.Context, cfg FirebaseConfig, logger *zap.Logger) (*FirebaseGateway, error) {
	var opts []option.ClientOption

	if cfg.Emulated {
		// The SDK reads the emulator address from the environment.
		if err := os.Setenv(authEmulatorHostEnv, cfg.EmulatorHost); err != nil {
			return nil, fmt.Errorf("set %s: %w", authEmulatorHostEnv, err)
		}
		logger.Info("Using Firebase auth emulator", zap.String("host", cfg.EmulatorHost))
	} else {
		if cfg.CredentialPath == "" {
			return nil, errors.New("firebase credential path is required outside emulated mode")
		}
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialPath))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("initialize firebase app: %w", err)
	}

	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("initialize firebase auth: %w", err)
	}

	return &FirebaseGateway{client: client, checkRevoked: cfg.Emulated, logger: logger}, nil
}

// FindAccountByEmail looks an account up by its email address.
func (g *FirebaseGateway) FindAccountByEmail(ctx context.Context, email string) (*Account, error) {
	rec, err := g.client.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, translateLookupError(err)
	}
	return accountFromRecord(rec), nil
}

// GetAccount looks an account up by id.
func (g *FirebaseGateway) GetAccount(ctx context.Context, id string) (*Account, error) {
	rec, err := g.client.GetUser(ctx, id)
	if err != nil {
		return nil, translateLookupError(err)
	}
	return accountFromRecord(rec), nil
}

// CreateAccount opens a new account.
func (g *FirebaseGateway) CreateAccount(ctx context.Context, in AccountToCreate) (*Account, error) {
	params := (&auth.UserToCreate{}).
		Email(in.Email).
		Password(in.Password).
		DisplayName(in.DisplayName)

	rec, err := g.client.CreateUser(ctx, params)
	if err != nil {
		if auth.IsEmailAlreadyExists(err) {
			return nil, fmt.Errorf("%w: %w", ErrCreateAccount, ErrEmailExists)
		}
		return nil, fmt.Errorf("%w: %w", ErrCreateAccount, err)
	}
	return accountFromRecord(rec), nil
}

// UpdateAccount pushes profile changes to the account.
func (g *FirebaseGateway) UpdateAccount(ctx context.Context, id string, update AccountUpdate) error {
	if update.IsEmpty() {
		return nil
	}

	params := &auth.UserToUpdate{}
	if update.Email != nil {
		params = params.Email(*update.Email)
	}
	if update.DisplayName != nil {
		params = params.DisplayName(*update.DisplayName)
	}

	if _, err := g.client.UpdateUser(ctx, id, params); err != nil {
		return translateLookupError(err)
	}
	return nil
}

// DeleteAccount removes the account.
func (g *FirebaseGateway) DeleteAccount(ctx context.Context, id string) error {
	if err := g.client.DeleteUser(ctx, id); err != nil {
		return translateLookupError(err)
	}
	return nil
}

// VerifyToken validates an ID token. Emulated mode also checks revocation.
func (g *FirebaseGateway) VerifyToken(ctx context.Context, token string) (*Principal, error) {
	var (
		tok *auth.Token
		err error
	)
	if g.checkRevoked {
		tok, err = g.client.VerifyIDTokenAndCheckRevoked(ctx, token)
	} else {
		tok, err = g.client.VerifyIDToken(ctx, token)
	}
	if err != nil {
		g.logger.Debug("Token verification failed", zap.Error(err))
		return nil, translateTokenError(err)
	}

	p := &Principal{UID: tok.UID, ExpiresAt: time.Unix(tok.Expires, 0)}
	if email, ok := tok.Claims["email"].(string); ok {
		p.Email = email
	}
	return p, nil
}

// IssueCustomToken mints a custom token for the account.
func (g *FirebaseGateway) IssueCustomToken(ctx context.Context, id string) (string, error) {
	token, err := g.client.CustomToken(ctx, id)
	if err != nil {
		return "", fmt.Errorf("issue custom token: %w", err)
	}
	return token, nil
}

// translateTokenError maps a verification failure onto ErrTokenExpired or ErrInvalidToken.
func translateTokenError(err error) error {
	if auth.IsIDTokenExpired(err) {
		return ErrTokenExpired
	}
	return fmt.Errorf("%w: %v", ErrInvalidToken, err)
}

func translateLookupError(err error) error {
	if auth.IsUserNotFound(err) {
		return ErrAccountNotFound
	}
	return err
}

func accountFromRecord(rec *auth.UserRecord) *Account {
	if rec == nil || rec.UserInfo == nil {
		return &Account{}
	}
	return &Account{
		ID:          rec.UID,
		Email:       rec.Email,
		DisplayName: rec.DisplayName,
	}
}
