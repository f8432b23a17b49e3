package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime"
	"strings"

	"github.com/caarlos0/env/v11"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"github.com/lawnchairsociety/battlecalc/internal/database"
	"github.com/lawnchairsociety/battlecalc/internal/flood"
)

// EnvPrefix prefixes every environment override, for example
// BATTLECALC_SERVER_ADDRESS=:9000.
const EnvPrefix = "BATTLECALC_"

// Config holds the settings shared by the CLI and the odds service.
type Config struct {
	Calculator  CalculatorConfig  `yaml:"calculator" envPrefix:"CALC_"`
	Server      ServerConfig      `yaml:"server" envPrefix:"SERVER_"`
	Connections ConnectionsConfig `yaml:"connections" envPrefix:"CONN_"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit" envPrefix:"RATE_"`
	Flood       flood.Config      `yaml:"flood" envPrefix:"FLOOD_"`
	Database    database.Config   `yaml:"database" envPrefix:"DB_"`

	// RulesetFile is loaded when no stored ruleset is requested.
	RulesetFile string `yaml:"ruleset_file" env:"RULESET_FILE"`
}

// CalculatorConfig holds the defaults applied to new sessions.
type CalculatorConfig struct {
	// Workers is the worker count per session. 0 uses the CPU count.
	Workers       int    `yaml:"workers" env:"WORKERS"`
	DefaultTrials int    `yaml:"default_trials" env:"DEFAULT_TRIALS"`
	Seed          uint64 `yaml:"seed" env:"SEED"` // 0 means random dice
}

// ServerConfig holds the websocket service settings.
type ServerConfig struct {
	Address string `yaml:"address" env:"ADDRESS"`

	// AllowedOrigins is a list of origins allowed to connect via WebSocket.
	// Empty list enforces same-origin policy.
	// Use "*" to allow all origins (not recommended for production).
	AllowedOrigins []string `yaml:"allowed_origins" env:"ALLOWED_ORIGINS" envSeparator:","`

	// MaxMessageSize is the maximum WebSocket message size in bytes.
	MaxMessageSize int64 `yaml:"max_message_size" env:"MAX_MESSAGE_SIZE"`

	// AccessKeyHash is a bcrypt hash; when set, clients must send the
	// matching key in their hello message.
	AccessKeyHash string `yaml:"access_key_hash" env:"ACCESS_KEY_HASH"`

	// MaxRunsPerConnection caps runs on one connection. 0 means unlimited.
	MaxRunsPerConnection int `yaml:"max_runs_per_connection" env:"MAX_RUNS_PER_CONNECTION"`
}

// ConnectionsConfig holds connection limit settings.
type ConnectionsConfig struct {
	// MaxPerIP is the maximum concurrent connections allowed from a single IP address.
	// 0 means unlimited (not recommended).
	MaxPerIP int `yaml:"max_per_ip" env:"MAX_PER_IP"`

	// MaxTotal is the maximum total concurrent connections to the server.
	// 0 means unlimited.
	MaxTotal int `yaml:"max_total" env:"MAX_TOTAL"`
}

// RateLimitConfig holds the lockout settings for wrong access keys.
type RateLimitConfig struct {
	// MaxAttempts is the number of wrong keys before a lockout.
	MaxAttempts int `yaml:"max_attempts" env:"MAX_ATTEMPTS"`

	// LockoutSeconds is the first lockout; each further one doubles it.
	LockoutSeconds int `yaml:"lockout_seconds" env:"LOCKOUT_SECONDS"`

	// MaxLockoutSeconds caps the doubling.
	MaxLockoutSeconds int `yaml:"max_lockout_seconds" env:"MAX_LOCKOUT_SECONDS"`
}

// DefaultConfig returns a Config with secure defaults.
func DefaultConfig() *Config {
	return &Config{
		Calculator: CalculatorConfig{
			DefaultTrials: 2000,
		},
		Server: ServerConfig{
			Address:        ":8080",
			AllowedOrigins: []string{}, // Same-origin only by default
			MaxMessageSize: 16384,
		},
		Connections: ConnectionsConfig{
			MaxPerIP: 3,
			MaxTotal: 100,
		},
		RateLimit: RateLimitConfig{
			MaxAttempts:       5,
			LockoutSeconds:    30,
			MaxLockoutSeconds: 300,
		},
		Flood:       flood.DefaultConfig(),
		Database:    database.DefaultConfig("data/rulesets.db"),
		RulesetFile: "data/classic.yaml",
	}
}

// LoadConfig reads a YAML file over the defaults and then applies
// BATTLECALC_* environment overrides. A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := env.ParseWithOptions(config, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("config environment: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate rejects settings no component can work with.
func (c *Config) Validate() error {
	if c.Calculator.Workers < 0 {
		return fmt.Errorf("calculator.workers must not be negative")
	}
	if c.Calculator.DefaultTrials < 1 {
		return fmt.Errorf("calculator.default_trials must be at least 1")
	}
	if c.Server.MaxMessageSize < 512 {
		return fmt.Errorf("server.max_message_size must be at least 512 bytes")
	}
	if c.Server.MaxRunsPerConnection < 0 {
		return fmt.Errorf("server.max_runs_per_connection must not be negative")
	}
	if c.Connections.MaxPerIP < 0 || c.Connections.MaxTotal < 0 {
		return fmt.Errorf("connection limits must not be negative")
	}
	if c.RateLimit.MaxAttempts < 0 || c.RateLimit.LockoutSeconds < 0 || c.RateLimit.MaxLockoutSeconds < 0 {
		return fmt.Errorf("rate limits must not be negative")
	}
	if c.Flood.MaxMessages < 0 || c.Flood.WindowSeconds < 0 {
		return fmt.Errorf("flood limits must not be negative")
	}
	if err := c.Database.Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	return nil
}

// WorkerCount resolves the configured worker count.
func (c *CalculatorConfig) WorkerCount() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.NumCPU()
}

// IsOriginAllowed checks if the given origin is allowed based on the config.
// Returns true if:
// - AllowedOrigins contains "*" (allow all)
// - AllowedOrigins contains the exact origin
// - AllowedOrigins is empty and origin matches the request host (same-origin)
func (c *ServerConfig) IsOriginAllowed(origin, requestHost string) bool {
	if len(c.AllowedOrigins) == 0 {
		return isSameOrigin(origin, requestHost)
	}
	for _, allowed := range c.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// isSameOrigin compares the host part of an Origin header with the request host.
func isSameOrigin(origin, requestHost string) bool {
	if origin == "" {
		return true // non-browser client
	}
	originHost := origin
	if _, rest, ok := strings.Cut(origin, "://"); ok {
		originHost = rest
	}
	return strings.TrimSuffix(originHost, "/") == requestHost
}

// RequiresAccessKey reports whether clients must authenticate.
func (c *ServerConfig) RequiresAccessKey() bool {
	return c.AccessKeyHash != ""
}

// CheckAccessKey reports whether key matches the configured hash. With no
// hash configured every key is accepted.
func (c *ServerConfig) CheckAccessKey(key string) bool {
	if !c.RequiresAccessKey() {
		return true
	}
	return bcrypt.CompareHashAndPassword([]byte(c.AccessKeyHash), []byte(key)) == nil
}

// HashAccessKey produces the value for server.access_key_hash.
func HashAccessKey(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("access key must not be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
