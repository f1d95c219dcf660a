package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/ebuddy/user-admin-backend/database"
	"github.com/ebuddy/user-admin-backend/internal/identity"
	"github.com/ebuddy/user-admin-backend/model"
	"go.uber.org/zap"
)

// Identity sync outcomes reported by Update.
const (
	IdentitySynced    = "synced"
	IdentityUnchanged = "unchanged"
	IdentitySkipped   = "skipped"
	IdentityFailed    = "failed"
)

// UpdateResult reports how far an update propagated. The store write always
// succeeded when a result is returned.
type UpdateResult struct {
	IdentitySync string `json:"identitySync"`
}

// UserService keeps user profiles and identity accounts in step.
type UserService struct {
	identity        identity.Gateway
	store           database.RecordStore
	audit           Auditor
	logger          *zap.Logger
	defaultPassword string
}

// NewUserService wires the orchestration service.
func NewUserService(gw identity.Gateway, store database.RecordStore, audit Auditor, logger *zap.Logger, defaultPassword string) *UserService {
	return &UserService{
		identity:        gw,
		store:           store,
		audit:           audit,
		logger:          logger,
		defaultPassword: defaultPassword,
	}
}

// Create opens an identity account and then stores the profile. If the profile
// write fails the account is deleted again.
func (s *UserService) Create(ctx context.Context, in model.NewUser) (string, error) {
	if err := checkStruct(in, "Missing required fields"); err != nil {
		return "", err
	}

	password := in.Password
	if password == "" {
		password = s.defaultPassword
	}

	var id string
	saga := NewSaga("create_user", s.logger,
		Step{
			Name: "identity.create",
			Action: func(ctx context.Context) error {
				acc, err := s.identity.CreateAccount(ctx, identity.AccountToCreate{
					Email:       in.Email,
					Password:    password,
					DisplayName: in.Name,
				})
				if err != nil {
					return err
				}
				id = acc.ID
				return nil
			},
			Compensate: func(ctx context.Context) error {
				return s.identity.DeleteAccount(ctx, id)
			},
		},
		Step{
			Name: "store.set",
			Action: func(ctx context.Context) error {
				return s.store.Set(ctx, database.UsersCollection, id, in.ProfileFor(id).Fields())
			},
		},
	)

	if err := saga.Run(ctx); err != nil {
		s.logger.Error("Failed to create user", zap.String("email", in.Email), zap.Error(err))
		return "", fmt.Errorf("%w: %w", ErrCreateUserFailed, err)
	}

	s.audit.Record(ctx, id, model.ActionAddUser, map[string]interface{}{"email": in.Email})
	return id, nil
}

// Get returns the stored profile, refreshed with the identity provider's name
// and email when they are available.
func (s *UserService) Get(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, &ValidationError{Message: "User ID is required"}
	}

	u, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	acc, err := s.identity.GetAccount(ctx, id)
	switch {
	case err == nil:
		if acc.DisplayName != "" {
			u.Name = acc.DisplayName
		}
		if acc.Email != "" {
			u.Email = acc.Email
		}
	case errors.Is(err, identity.ErrAccountNotFound):
		s.logger.Debug("No identity account for user", zap.String("id", id))
	default:
		swallow(s.logger, "user.get.identity_lookup", err, zap.String("id", id))
	}

	s.audit.Record(ctx, id, model.ActionFetchUser, nil)
	return u, nil
}

// List returns every stored profile. An empty store yields an empty slice.
func (s *UserService) List(ctx context.Context) ([]model.User, error) {
	docs, err := s.store.List(ctx, database.UsersCollection)
	if err != nil {
		return nil, upstream("list users", err)
	}

	users := make([]model.User, 0, len(docs))
	for _, doc := range docs {
		u, err := model.UserFromFields("", doc)
		if err != nil {
			return nil, upstream("decode users", err)
		}
		users = append(users, u)
	}

	if len(users) > 0 {
		s.audit.Record(ctx, model.SystemActor, model.ActionFetchAllUsers, map[string]interface{}{"count": len(users)})
	}
	return users, nil
}

// Update applies a partial update. Name and email changes are pushed to the
// identity provider on a best-effort basis before the profile is written.
func (s *UserService) Update(ctx context.Context, id string, patch model.UserPatch) (*UpdateResult, error) {
	if id == "" {
		return nil, &ValidationError{Message: "User ID is required"}
	}
	if patch.IsEmpty() {
		return nil, &ValidationError{Message: "No fields to update"}
	}
	if err := checkStruct(patch, "Missing required fields"); err != nil {
		return nil, err
	}

	if _, err := s.load(ctx, id); err != nil {
		return nil, err
	}

	result := &UpdateResult{IdentitySync: s.pushIdentity(ctx, id, patch)}

	if err := s.store.Update(ctx, database.UsersCollection, id, patch.Fields()); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, upstream("update user", err)
	}

	s.audit.Record(ctx, id, model.ActionUpdateUser, patch.Fields())
	return result, nil
}

func (s *UserService) pushIdentity(ctx context.Context, id string, patch model.UserPatch) string {
	update := identity.AccountUpdate{Email: patch.Email, DisplayName: patch.Name}
	if update.IsEmpty() {
		return IdentityUnchanged
	}

	if _, err := s.identity.GetAccount(ctx, id); err != nil {
		if errors.Is(err, identity.ErrAccountNotFound) {
			s.logger.Info("No identity account to update", zap.String("id", id))
		} else {
			swallow(s.logger, "user.update.identity_lookup", err, zap.String("id", id))
		}
		return IdentitySkipped
	}

	if err := s.identity.UpdateAccount(ctx, id, update); err != nil {
		swallow(s.logger, "user.update.identity_push", err, zap.String("id", id))
		return IdentityFailed
	}
	return IdentitySynced
}

// Delete removes the identity account on a best-effort basis and then the
// profile. Deleting an account that is already gone is not an error.
func (s *UserService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return &ValidationError{Message: "User ID is required"}
	}

	if _, err := s.load(ctx, id); err != nil {
		return err
	}

	if err := s.identity.DeleteAccount(ctx, id); err != nil {
		if errors.Is(err, identity.ErrAccountNotFound) {
			s.logger.Info("Identity account already removed", zap.String("id", id))
		} else {
			swallow(s.logger, "user.delete.identity", err, zap.String("id", id))
		}
	}

	if err := s.store.Delete(ctx, database.UsersCollection, id); err != nil {
		return upstream("delete user", err)
	}

	s.audit.Record(ctx, id, model.ActionDeleteUser, nil)
	return nil
}

func (s *UserService) load(ctx context.Context, id string) (*model.User, error) {
	doc, err := s.store.Get(ctx, database.UsersCollection, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, upstream("get user", err)
	}

	u, err := model.UserFromFields(id, doc)
	if err != nil {
		return nil, upstream("decode user", err)
	}
	return &u, nil
}
