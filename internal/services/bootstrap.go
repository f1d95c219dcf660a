package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ebuddy/user-admin-backend/database"
	"github.com/ebuddy/user-admin-backend/internal/identity"
	"github.com/ebuddy/user-admin-backend/model"
	"github.com/ebuddy/user-admin-backend/util"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

// initMarkerKey is the fixed AUDIT_LOGS key of the store initialization entry.
const initMarkerKey = "store-init"

// SeedConfig represents the YAML seed file
type SeedConfig struct {
	Users []SeedUser `yaml:"users"`
}

// SeedUser represents a user in the seed file
type SeedUser struct {
	Name                      string  `yaml:"name"`
	Email                     string  `yaml:"email"`
	Password                  string  `yaml:"password,omitempty"`
	TotalAverageWeightRatings float64 `yaml:"totalAverageWeightRatings"`
	NumberOfRents             int64   `yaml:"numberOfRents"`
}

// SeedResult tracks the outcome of a seed run
type SeedResult struct {
	Created  []string
	Existing []string
	Errors   []string
}

// LoadSeedConfig reads and parses a seed file
func LoadSeedConfig(path string) (*SeedConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return ParseSeedConfig(data)
}

// ParseSeedConfig parses seed YAML content
func ParseSeedConfig(data []byte) (*SeedConfig, error) {
	var config SeedConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateSeedConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid seed config: %w", err)
	}
	return &config, nil
}

func validateSeedConfig(config *SeedConfig) error {
	emails := make(map[string]bool)
	for i, u := range config.Users {
		if u.Email == "" {
			return fmt.Errorf("user at index %d has no email", i)
		}
		if u.Name == "" {
			return fmt.Errorf("user %s has no name", u.Email)
		}
		key := strings.ToLower(u.Email)
		if emails[key] {
			return fmt.Errorf("duplicate email: %s", u.Email)
		}
		emails[key] = true
	}
	return nil
}

// Bootstrapper prepares a fresh environment: the store marker and seed users.
type Bootstrapper struct {
	identity        identity.Gateway
	store           database.RecordStore
	audit           Auditor
	logger          *zap.Logger
	defaultPassword string
	now             func() time.Time
}

// NewBootstrapper wires the bootstrap tasks.
func NewBootstrapper(gw identity.Gateway, store database.RecordStore, audit Auditor, logger *zap.Logger, defaultPassword string) *Bootstrapper {
	return &Bootstrapper{
		identity:        gw,
		store:           store,
		audit:           audit,
		logger:          logger,
		defaultPassword: defaultPassword,
		now:             time.Now,
	}
}

// EnsureStore writes the initialization audit entry once.
func (b *Bootstrapper) EnsureStore(ctx context.Context) error {
	_, err := b.store.Get(ctx, database.AuditLogsCollection, initMarkerKey)
	if err == nil {
		return nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("check store marker: %w", err)
	}

	entry := model.AuditEntry{
		UserID:    model.SystemActor,
		Action:    model.ActionInitStore,
		Details:   map[string]interface{}{"collections": database.Collections()},
		Timestamp: util.EpochMillis(b.now()),
	}
	if err := b.store.Set(ctx, database.AuditLogsCollection, initMarkerKey, entry.Fields()); err != nil {
		return fmt.Errorf("write store marker: %w", err)
	}
	b.logger.Info("Initialized record store")
	return nil
}

// Seed makes sure every seed user has both an identity account and a profile.
// Per-user failures are collected and do not stop the run.
func (b *Bootstrapper) Seed(ctx context.Context, config *SeedConfig) *SeedResult {
	result := &SeedResult{}

	for _, su := range config.Users {
		created, err := b.seedUser(ctx, su)
		switch {
		case err != nil:
			b.logger.Warn("Failed to seed user", zap.String("email", su.Email), zap.Error(err))
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", su.Email, err))
		case created:
			result.Created = append(result.Created, su.Email)
		default:
			result.Existing = append(result.Existing, su.Email)
		}
	}

	b.logger.Info("Seed complete",
		zap.Int("created", len(result.Created)),
		zap.Int("existing", len(result.Existing)),
		zap.Int("errors", len(result.Errors)))
	return result
}

func (b *Bootstrapper) seedUser(ctx context.Context, su SeedUser) (bool, error) {
	created := false

	acc, err := b.identity.FindAccountByEmail(ctx, su.Email)
	if errors.Is(err, identity.ErrAccountNotFound) {
		password := su.Password
		if password == "" {
			password = b.defaultPassword
		}
		acc, err = b.identity.CreateAccount(ctx, identity.AccountToCreate{
			Email:       su.Email,
			Password:    password,
			DisplayName: su.Name,
		})
		created = err == nil
	}
	if err != nil {
		return false, err
	}

	_, err = b.store.Get(ctx, database.UsersCollection, acc.ID)
	if err == nil {
		return created, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return false, err
	}

	profile := model.User{
		ID:                        acc.ID,
		Name:                      su.Name,
		Email:                     su.Email,
		TotalAverageWeightRatings: su.TotalAverageWeightRatings,
		NumberOfRents:             su.NumberOfRents,
		RecentlyActive:            util.EpochMillis(b.now()),
	}
	if err := b.store.Set(ctx, database.UsersCollection, acc.ID, profile.Fields()); err != nil {
		return false, err
	}

	b.audit.Record(ctx, acc.ID, model.ActionSeedUser, map[string]interface{}{"email": su.Email})
	return true, nil
}
