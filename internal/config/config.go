// ABOUTME: Configuration loading and parsing for sigil-gateway
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/2389/sigil/internal/lattice"
)

// Defaults applied by Load and Default.
const (
	DefaultHTTPAddr       = ":8080"
	DefaultScheme         = lattice.SchemeDilithium2
	DefaultChallengeTTL   = 5 * time.Minute
	DefaultTokenTTL       = time.Hour
	DefaultToyModulus     = 7681
	DefaultToyDimension   = 4
	DefaultRevocationSize = 100000
	DefaultMetricsPath    = "/metrics"
)

// Database drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// Config represents the complete sigil-gateway configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Database  DatabaseConfig  `yaml:"database" toml:"database"`
	Scheme    SchemeConfig    `yaml:"scheme" toml:"scheme"`
	Challenge ChallengeConfig `yaml:"challenge" toml:"challenge"`
	Auth      AuthConfig      `yaml:"auth" toml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit" toml:"rate_limit"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics" toml:"metrics"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr" toml:"http_addr"`
}

// DatabaseConfig selects where principals are kept.
type DatabaseConfig struct {
	Driver string `yaml:"driver" toml:"driver"` // "memory" (default) or "sqlite"
	Path   string `yaml:"path" toml:"path"`
}

// SchemeConfig selects the signature scheme.
type SchemeConfig struct {
	Name string    `yaml:"name" toml:"name"`
	Toy  ToyConfig `yaml:"toy" toml:"toy"`
}

// ToyConfig holds parameters for the toy lattice scheme. When Matrix is empty
// a random N×N matrix is generated at startup.
type ToyConfig struct {
	Q      uint32    `yaml:"q" toml:"q"`
	N      int       `yaml:"n" toml:"n"`
	Matrix [][]int64 `yaml:"matrix" toml:"matrix"`
	Low    int64     `yaml:"low" toml:"low"`
	High   int64     `yaml:"high" toml:"high"`
	Digest string    `yaml:"digest" toml:"digest"`
}

// ChallengeConfig holds challenge lifetime configuration
type ChallengeConfig struct {
	TTL time.Duration `yaml:"-" toml:"-"`

	// Raw string value for unmarshaling
	TTLRaw string `yaml:"ttl" toml:"ttl"`
}

// AuthConfig holds session token configuration. An empty JWTSecret disables
// session tokens.
type AuthConfig struct {
	JWTSecret      string        `yaml:"jwt_secret" toml:"jwt_secret"`
	TokenTTL       time.Duration `yaml:"-" toml:"-"`
	RevocationSize int           `yaml:"revocation_size" toml:"revocation_size"`

	TokenTTLRaw string `yaml:"token_ttl" toml:"token_ttl"`
}

// RateLimitConfig holds per-principal limits for challenge and login.
// A zero RPS disables limiting.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps" toml:"rps"`
	Burst int     `yaml:"burst" toml:"burst"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Path    string `yaml:"path" toml:"path"`
}

// Default returns a configuration usable without any file: in-memory store,
// dilithium2, and no session tokens.
func Default() *Config {
	cfg := &Config{Metrics: MetricsConfig{Enabled: true}}
	applyDefaults(cfg)
	return cfg
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are decoded as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw content
	expanded := expandEnvVars(string(data))

	cfg := Config{Metrics: MetricsConfig{Enabled: true}}
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func applyDefaults(cfg *Config) {
	if cfg.Server.HTTPAddr == "" {
		cfg.Server.HTTPAddr = DefaultHTTPAddr
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = DriverMemory
	}
	if cfg.Scheme.Name == "" {
		cfg.Scheme.Name = DefaultScheme
	}
	if cfg.Scheme.Toy.Q == 0 {
		cfg.Scheme.Toy.Q = DefaultToyModulus
	}
	if cfg.Scheme.Toy.N == 0 {
		if len(cfg.Scheme.Toy.Matrix) > 0 {
			cfg.Scheme.Toy.N = len(cfg.Scheme.Toy.Matrix)
		} else {
			cfg.Scheme.Toy.N = DefaultToyDimension
		}
	}
	if cfg.Scheme.Toy.Digest == "" {
		cfg.Scheme.Toy.Digest = lattice.DigestAdditive
	}
	if cfg.Challenge.TTL <= 0 {
		cfg.Challenge.TTL = DefaultChallengeTTL
	}
	if cfg.Auth.TokenTTL <= 0 {
		cfg.Auth.TokenTTL = DefaultTokenTTL
	}
	if cfg.Auth.RevocationSize <= 0 {
		cfg.Auth.RevocationSize = DefaultRevocationSize
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	switch c.Database.Driver {
	case DriverMemory:
	case DriverSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("database.driver must be %q or %q, got %q", DriverMemory, DriverSQLite, c.Database.Driver)
	}

	switch c.Scheme.Name {
	case lattice.SchemeDilithium2, lattice.SchemeDilithium3:
	case lattice.SchemeToy:
		if err := c.Scheme.Toy.validate(); err != nil {
			return err
		}
		if c.Database.Driver == DriverSQLite && len(c.Scheme.Toy.Matrix) == 0 {
			return fmt.Errorf("scheme.toy.matrix is required with the sqlite driver; a generated matrix would not verify stored keys after a restart")
		}
	default:
		return fmt.Errorf("scheme.name must be one of %s, %s, %s; got %q",
			lattice.SchemeDilithium2, lattice.SchemeDilithium3, lattice.SchemeToy, c.Scheme.Name)
	}

	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("auth.jwt_secret must be at least 32 bytes")
	}

	if c.RateLimit.RPS < 0 || c.RateLimit.Burst < 0 {
		return fmt.Errorf("rate_limit.rps and rate_limit.burst must not be negative")
	}
	if c.RateLimit.RPS > 0 && c.RateLimit.Burst == 0 {
		return fmt.Errorf("rate_limit.burst is required when rate_limit.rps is set")
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be \"text\" or \"json\", got %q", c.Logging.Format)
	}

	if c.Metrics.Enabled {
		if err := validateMetricsPath(c.Metrics.Path); err != nil {
			return err
		}
	}

	return nil
}

// reservedPaths are mounted by the gateway itself.
var reservedPaths = []string{"/", "/health", "/health/ready", "/api"}

func validateMetricsPath(path string) error {
	if !strings.HasPrefix(path, "/") {
		return fmt.Errorf("metrics.path must start with \"/\", got %q", path)
	}
	if strings.ContainsAny(path, " {}") {
		return fmt.Errorf("metrics.path %q must be a plain path", path)
	}
	clean := strings.TrimSuffix(path, "/")
	for _, reserved := range reservedPaths {
		if clean == "" || clean == reserved {
			return fmt.Errorf("metrics.path %q conflicts with a gateway route", path)
		}
	}
	if strings.HasPrefix(clean, "/api/") || strings.HasPrefix(clean, "/health/") {
		return fmt.Errorf("metrics.path %q conflicts with a gateway route", path)
	}
	return nil
}

func (t ToyConfig) validate() error {
	if t.N <= 0 {
		return fmt.Errorf("scheme.toy.n must be positive")
	}
	if len(t.Matrix) > 0 && len(t.Matrix) != t.N {
		return fmt.Errorf("scheme.toy.matrix has %d rows, want %d", len(t.Matrix), t.N)
	}
	if _, err := lattice.DigestByName(t.Digest); err != nil {
		return fmt.Errorf("scheme.toy.digest: %w", err)
	}
	return nil
}

// SchemeParams turns the scheme section into lattice.Params, generating the
// toy matrix when none is configured. The scheme itself validates the rest.
func (c *Config) SchemeParams() (lattice.Params, error) {
	p := lattice.Params{Name: c.Scheme.Name}
	if c.Scheme.Name != lattice.SchemeToy {
		return p, nil
	}

	toy := c.Scheme.Toy
	digest, err := lattice.DigestByName(toy.Digest)
	if err != nil {
		return p, err
	}

	matrix := lattice.Matrix(toy.Matrix)
	if len(matrix) == 0 {
		matrix, err = lattice.NewToyMatrix(toy.N, toy.Q, rand.Reader)
		if err != nil {
			return p, fmt.Errorf("generating toy matrix: %w", err)
		}
	}

	p.Toy = lattice.ToyParams{
		Q:      toy.Q,
		Matrix: matrix,
		Low:    toy.Low,
		High:   toy.High,
		Digest: digest,
	}
	return p, nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Challenge.TTLRaw != "" {
		cfg.Challenge.TTL, err = time.ParseDuration(cfg.Challenge.TTLRaw)
		if err != nil {
			return fmt.Errorf("parsing challenge.ttl %q: %w", cfg.Challenge.TTLRaw, err)
		}
		if cfg.Challenge.TTL <= 0 {
			return fmt.Errorf("challenge.ttl must be positive, got %q", cfg.Challenge.TTLRaw)
		}
	}

	if cfg.Auth.TokenTTLRaw != "" {
		cfg.Auth.TokenTTL, err = time.ParseDuration(cfg.Auth.TokenTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing auth.token_ttl %q: %w", cfg.Auth.TokenTTLRaw, err)
		}
		if cfg.Auth.TokenTTL <= 0 {
			return fmt.Errorf("auth.token_ttl must be positive, got %q", cfg.Auth.TokenTTLRaw)
		}
	}

	return nil
}
