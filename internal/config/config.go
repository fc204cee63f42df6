// Package config loads CLI configuration from the XDG config dir.
// Only non-secret settings are kept here; secrets go to OS keychain.
//
// Values are layered: built-in defaults, then config.json, then STOREFRONT_*
// environment variables. Command-line flags are applied last by cmd.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	apperrors "storefront/cli/internal/errors"
	"storefront/cli/internal/xdg"

	"github.com/caarlos0/env/v11"
)

// Backend kinds understood by backend.New.
const (
	BackendFirebase = "firebase"
	BackendGRPC     = "grpc"
	BackendPostgres = "postgres"
)

// Session store kinds understood by session.Open.
const (
	StoreKeyring = "keyring"
	StoreRedis   = "redis"
	StoreMemory  = "memory"
)

// Config holds non-sensitive CLI settings.
type Config struct {
	LogLevel  string        `json:"log_level" env:"STOREFRONT_LOG_LEVEL"`
	LogFormat string        `json:"log_format" env:"STOREFRONT_LOG_FORMAT"`
	Backend   BackendConfig `json:"backend" envPrefix:"STOREFRONT_BACKEND_"`
	Google    GoogleConfig  `json:"google" envPrefix:"STOREFRONT_GOOGLE_"`
	Session   SessionConfig `json:"session" envPrefix:"STOREFRONT_SESSION_"`
	Keyring   KeyringConfig `json:"keyring" envPrefix:"STOREFRONT_KEYRING_"`
}

// BackendConfig selects and configures the identity backend adapter.
type BackendConfig struct {
	Kind           string         `json:"kind" env:"KIND"`
	TimeoutSeconds int            `json:"timeout_seconds" env:"TIMEOUT_SECONDS"`
	Firebase       FirebaseConfig `json:"firebase" envPrefix:"FIREBASE_"`
	GRPC           GRPCConfig     `json:"grpc" envPrefix:"GRPC_"`
	Postgres       PostgresConfig `json:"postgres" envPrefix:"POSTGRES_"`
}

// FirebaseConfig points at the Identity Toolkit and Secure Token REST APIs.
// The API key is a public project identifier, not a secret.
type FirebaseConfig struct {
	APIKey      string `json:"api_key" env:"API_KEY"`
	IdentityURL string `json:"identity_url" env:"IDENTITY_URL"`
	TokenURL    string `json:"token_url" env:"TOKEN_URL"`
}

// GRPCConfig configures the generic gRPC identity service.
type GRPCConfig struct {
	Addr     string `json:"addr" env:"ADDR"`
	Insecure bool   `json:"insecure" env:"INSECURE"`
}

// PostgresConfig configures the self-hosted account database.
// The DSN is usually supplied through the environment rather than the file.
type PostgresConfig struct {
	DSN string `json:"dsn" env:"DSN"`
}

// GoogleConfig configures the federated Google sign-in.
type GoogleConfig struct {
	ClientID          string   `json:"client_id" env:"CLIENT_ID"`
	ClientSecret      string   `json:"client_secret" env:"CLIENT_SECRET"`
	Issuer            string   `json:"issuer" env:"ISSUER"`
	RedirectPort      int      `json:"redirect_port" env:"REDIRECT_PORT"`
	Scopes            []string `json:"scopes" env:"SCOPES" envSeparator:","`
	HandoffTTLSeconds int      `json:"handoff_ttl_seconds" env:"HANDOFF_TTL_SECONDS"`
}

// SessionConfig selects where the "logged in" flag lives.
type SessionConfig struct {
	Store         string `json:"store" env:"STORE"`
	RedisAddr     string `json:"redis_addr" env:"REDIS_ADDR"`
	RedisPassword string `json:"-" env:"REDIS_PASSWORD"`
	RedisDB       int    `json:"redis_db" env:"REDIS_DB"`
}

// KeyringConfig narrows the OS keyring backends and unlocks the file backend.
type KeyringConfig struct {
	Backends     []string `json:"backends" env:"BACKENDS" envSeparator:","`
	FilePassword string   `json:"-" env:"FILE_PASSWORD"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel:  "info",
		LogFormat: "text",
		Backend: BackendConfig{
			Kind:           BackendFirebase,
			TimeoutSeconds: 10,
			Firebase: FirebaseConfig{
				IdentityURL: "https://identitytoolkit.googleapis.com",
				TokenURL:    "https://securetoken.googleapis.com",
			},
		},
		Google: GoogleConfig{
			Issuer:            "https://accounts.google.com",
			RedirectPort:      8085,
			Scopes:            []string{"openid", "email", "profile"},
			HandoffTTLSeconds: 300,
		},
		Session: SessionConfig{
			Store: StoreKeyring,
		},
	}
}

// BackendTimeout is the per-request timeout for backend adapters.
func (c Config) BackendTimeout() time.Duration {
	if c.Backend.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Backend.TimeoutSeconds) * time.Second
}

// HandoffTTL bounds how long a federated sign-in may wait for its callback.
func (c Config) HandoffTTL() time.Duration {
	if c.Google.HandoffTTLSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.Google.HandoffTTLSeconds) * time.Second
}

// GoogleEnabled reports whether federated sign-in is configured.
func (c Config) GoogleEnabled() bool {
	return c.Google.ClientID != ""
}

// Validate checks the settings needed by the selected backend and store.
func (c Config) Validate() error {
	switch c.Backend.Kind {
	case BackendFirebase:
		if c.Backend.Firebase.APIKey == "" {
			return apperrors.New(apperrors.ConfigInvalid, "backend.firebase.api_key is required (STOREFRONT_BACKEND_FIREBASE_API_KEY)")
		}
	case BackendGRPC:
		if c.Backend.GRPC.Addr == "" {
			return apperrors.New(apperrors.ConfigInvalid, "backend.grpc.addr is required (STOREFRONT_BACKEND_GRPC_ADDR)")
		}
	case BackendPostgres:
		if c.Backend.Postgres.DSN == "" {
			return apperrors.New(apperrors.ConfigInvalid, "backend.postgres.dsn is required (STOREFRONT_BACKEND_POSTGRES_DSN)")
		}
	default:
		return apperrors.New(apperrors.ConfigInvalid, fmt.Sprintf("unknown backend kind %q", c.Backend.Kind))
	}

	switch c.Session.Store {
	case StoreKeyring, StoreMemory:
	case StoreRedis:
		if c.Session.RedisAddr == "" {
			return apperrors.New(apperrors.ConfigInvalid, "session.redis_addr is required for the redis store")
		}
	default:
		return apperrors.New(apperrors.ConfigInvalid, fmt.Sprintf("unknown session store %q", c.Session.Store))
	}

	if c.GoogleEnabled() && c.Google.Issuer == "" {
		return apperrors.New(apperrors.ConfigInvalid, "google.issuer is required when google.client_id is set")
	}
	return nil
}

// path returns the path to the config file.
func path() (string, error) {
	dir, err := xdg.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads configuration; missing file returns defaults.
// Environment variables override file values.
func Load() (Config, error) {
	p, err := path()
	if err != nil {
		return Default(), err
	}
	return LoadFrom(p)
}

// LoadFrom reads configuration from p, then applies the environment.
func LoadFrom(p string) (Config, error) {
	c := Default()
	data, err := os.ReadFile(p)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &c); err != nil {
			return c, fmt.Errorf("parse %s: %w", p, err)
		}
	case errors.Is(err, os.ErrNotExist):
		// Defaults
	default:
		return c, err
	}

	if err := env.Parse(&c); err != nil {
		return c, fmt.Errorf("parse env: %w", err)
	}
	c.Backend.Kind = strings.ToLower(strings.TrimSpace(c.Backend.Kind))
	c.Session.Store = strings.ToLower(strings.TrimSpace(c.Session.Store))
	return c, nil
}
