// Package config loads the backend configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

// Identity and record store drivers.
const (
	IdentityFirebase = "firebase"
	IdentityMemory   = "memory"

	StoreArango = "arangodb"
	StoreMongo  = "mongodb"
	StoreMemory = "memory"
)

// ErrConfiguration marks a configuration that cannot start the backend.
var ErrConfiguration = errors.New("invalid configuration")

// Config holds every setting read at startup.
type Config struct {
	Port            string        `env:"PORT" envDefault:"5000" validate:"required,numeric"`
	FrontendURL     string        `env:"FRONTEND_URL" envDefault:"*" validate:"required"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	UseEmulator       bool   `env:"USE_FIREBASE_EMULATOR" envDefault:"false"`
	IdentityDriver    string `env:"IDENTITY_DRIVER" envDefault:"firebase" validate:"oneof=firebase memory"`
	ProjectID         string `env:"FIREBASE_PROJECT_ID" envDefault:"demo-project" validate:"required"`
	CredentialPath    string `env:"FIREBASE_CREDENTIAL_PATH"`
	APIKey            string `env:"FIREBASE_API_KEY"`
	AuthEmulatorHost  string `env:"FIREBASE_AUTH_EMULATOR_HOST" envDefault:"localhost:9099" validate:"required,hostname_port"`
	MemoryTokenSecret string `env:"MEMORY_TOKEN_SECRET"`
	DefaultPassword   string `env:"DEFAULT_USER_PASSWORD" envDefault:"Default@1234" validate:"min=6"`

	StoreDriver      string        `env:"RECORD_STORE_DRIVER" envDefault:"arangodb" validate:"oneof=arangodb mongodb memory"`
	StoreConnTimeout time.Duration `env:"RECORD_STORE_CONNECT_TIMEOUT" envDefault:"2m"`
	ArangoURL        string        `env:"ARANGO_URL" envDefault:"http://localhost:8529" validate:"url"`
	ArangoUser       string        `env:"ARANGO_USER" envDefault:"root"`
	ArangoPass       string        `env:"ARANGO_PASS"`
	ArangoDatabase   string        `env:"ARANGO_DATABASE" envDefault:"ebuddy"`
	MongoURI         string        `env:"MONGO_URI" envDefault:"mongodb://localhost:27017"`
	MongoDatabase    string        `env:"MONGO_DATABASE" envDefault:"ebuddy"`

	KafkaBrokers    []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaAuditTopic string   `env:"KAFKA_AUDIT_TOPIC" envDefault:"user-audit-events"`
	KafkaAPIKey     string   `env:"KAFKA_API_KEY"`
	KafkaAPISecret  string   `env:"KAFKA_API_SECRET"`

	SeedFile string `env:"SEED_FILE"`
}

// Load parses and validates the environment.
func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("%w: parse env: %w", ErrConfiguration, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field formats and the rules that span several fields.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	switch c.IdentityDriver {
	case IdentityFirebase:
		if !c.UseEmulator && c.CredentialPath == "" {
			return fmt.Errorf("%w: FIREBASE_CREDENTIAL_PATH is required when USE_FIREBASE_EMULATOR is false", ErrConfiguration)
		}
	case IdentityMemory:
		if len(c.MemoryTokenSecret) < 16 {
			return fmt.Errorf("%w: MEMORY_TOKEN_SECRET must be at least 16 characters for the memory identity driver", ErrConfiguration)
		}
	}

	return nil
}

// Emulated reports whether login uses the custom token flow.
func (c *Config) Emulated() bool {
	return c.UseEmulator || c.IdentityDriver == IdentityMemory
}
