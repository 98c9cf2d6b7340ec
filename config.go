package twostep

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"github.com/MrEthical07/twostep/password"
)

// DevelopmentSecret is the key shipped in [DefaultConfig]. Build logs a
// warning while either signing key still equals it.
const DevelopmentSecret = "twostep-development-secret-change-me"

// EnvPrefix prefixes every variable read by [LoadConfigFromEnv].
const EnvPrefix = "TWOSTEP_"

// Config is the engine configuration. Start from [DefaultConfig]; the
// builder clones it on Build.
type Config struct {
	Token     TokenConfig     `yaml:"token" envPrefix:"TOKEN_"`
	Code      CodeConfig      `yaml:"code" envPrefix:"CODE_"`
	Password  password.Config `yaml:"password" envPrefix:"PASSWORD_"`
	Session   SessionConfig   `yaml:"session" envPrefix:"SESSION_"`
	RateLimit RateLimitConfig `yaml:"rate_limit" envPrefix:"RATE_LIMIT_"`
	Audit     AuditConfig     `yaml:"audit" envPrefix:"AUDIT_"`
	Metrics   MetricsConfig   `yaml:"metrics" envPrefix:"METRICS_"`
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig configures continuation tokens.
type TokenConfig struct {
	// SigningMethod is "hs256" (default) or "ed25519".
	SigningMethod string `yaml:"signing_method" env:"SIGNING_METHOD"`
	// Secret is the HMAC key for hs256 or the PEM private key for ed25519.
	Secret string `yaml:"secret" env:"SECRET"`
	// PublicKey is the optional PEM public key for ed25519.
	PublicKey string        `yaml:"public_key" env:"PUBLIC_KEY"`
	Issuer    string        `yaml:"issuer" env:"ISSUER"`
	TTL       time.Duration `yaml:"ttl" env:"TTL"`
	// BidTTL is the lifetime of the password-reset bid token.
	BidTTL time.Duration `yaml:"bid_ttl" env:"BID_TTL"`
	Leeway time.Duration `yaml:"leeway" env:"LEEWAY"`
	KeyID  string        `yaml:"key_id" env:"KEY_ID"`
}

// CodeConfig configures one-time codes.
type CodeConfig struct {
	Digits int `yaml:"digits" env:"DIGITS"`
	// Cost is the bcrypt cost of the stored code hash.
	Cost int `yaml:"cost" env:"COST"`
}

// SessionConfig configures bearer sessions.
type SessionConfig struct {
	// Secret keys the digest under which session tokens are stored.
	Secret   string        `yaml:"secret" env:"SECRET"`
	Lifetime time.Duration `yaml:"lifetime" env:"LIFETIME"`
}

// RateLimitConfig configures the Redis-backed issuance and verification
// budgets. A zero maximum disables that budget.
type RateLimitConfig struct {
	Enabled           bool          `yaml:"enabled" env:"ENABLED"`
	MaxIssuePerWindow int           `yaml:"max_issue_per_window" env:"MAX_ISSUE_PER_WINDOW"`
	IssueWindow       time.Duration `yaml:"issue_window" env:"ISSUE_WINDOW"`
	EnableIPThrottle  bool          `yaml:"enable_ip_throttle" env:"ENABLE_IP_THROTTLE"`
	MaxVerifyFailures int           `yaml:"max_verify_failures" env:"MAX_VERIFY_FAILURES"`
	VerifyCooldown    time.Duration `yaml:"verify_cooldown" env:"VERIFY_COOLDOWN"`
}

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool `yaml:"enabled" env:"ENABLED"`
	BufferSize int  `yaml:"buffer_size" env:"BUFFER_SIZE"`
	DropIfFull bool `yaml:"drop_if_full" env:"DROP_IF_FULL"`
	// FailuresOnly discards successful flow events before they are queued.
	FailuresOnly bool `yaml:"failures_only" env:"FAILURES_ONLY"`
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool `yaml:"enabled" env:"ENABLED"`
	EnableLatencyHistograms bool `yaml:"enable_latency_histograms" env:"ENABLE_LATENCY_HISTOGRAMS"`
}

// DefaultConfig returns a configuration that validates. Both secrets are
// [DevelopmentSecret] and must be replaced in production.
func DefaultConfig() Config {
	return Config{
		Token: TokenConfig{
			SigningMethod: "hs256",
			Secret:        DevelopmentSecret,
			Issuer:        "twostep",
			TTL:           10 * time.Minute,
			BidTTL:        10 * time.Minute,
		},
		Code: CodeConfig{
			Digits: 6,
			Cost:   bcrypt.DefaultCost,
		},
		Password: password.DefaultConfig(),
		Session: SessionConfig{
			Secret:   DevelopmentSecret,
			Lifetime: 30 * 24 * time.Hour,
		},
		RateLimit: RateLimitConfig{
			MaxIssuePerWindow: 5,
			IssueWindow:       15 * time.Minute,
			MaxVerifyFailures: 5,
			VerifyCooldown:    15 * time.Minute,
		},
		Audit: AuditConfig{
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	return cfg
}

// usesDevelopmentSecret reports whether a signing key was left at its
// shipped value.
func (c *Config) usesDevelopmentSecret() bool {
	return c.Token.Secret == DevelopmentSecret || c.Session.Secret == DevelopmentSecret
}

// Redacted returns a copy with both secrets masked, for printing.
func (c Config) Redacted() Config {
	if c.Token.Secret != "" {
		c.Token.Secret = "<redacted>"
	}
	if c.Session.Secret != "" {
		c.Session.Secret = "<redacted>"
	}
	return c
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first configuration error found.
func (c *Config) Validate() error {
	// Token
	if c.Token.TTL <= 0 {
		return errors.New("Token TTL must be > 0")
	}
	if c.Token.BidTTL <= 0 {
		return errors.New("Token BidTTL must be > 0")
	}
	if c.Token.Leeway < 0 || c.Token.Leeway > 2*time.Minute {
		return errors.New("Token Leeway must be within [0, 2m]")
	}
	switch c.Token.SigningMethod {
	case "hs256", "ed25519":
	default:
		return fmt.Errorf("unsupported Token SigningMethod %q", c.Token.SigningMethod)
	}
	if c.Token.Secret == "" {
		return errors.New("Token Secret is required")
	}

	// Code
	if c.Code.Digits < 6 || c.Code.Digits > 10 {
		return errors.New("Code Digits must be within [6, 10]")
	}
	if c.Code.Cost < bcrypt.MinCost || c.Code.Cost > bcrypt.MaxCost {
		return fmt.Errorf("Code Cost must be within [%d, %d]", bcrypt.MinCost, bcrypt.MaxCost)
	}

	// Password
	if _, err := password.New(c.Password); err != nil {
		return fmt.Errorf("Password: %w", err)
	}

	// Session
	if c.Session.Secret == "" {
		return errors.New("Session Secret is required")
	}
	if c.Session.Lifetime <= 0 {
		return errors.New("Session Lifetime must be > 0")
	}

	// Rate limit
	if c.RateLimit.MaxIssuePerWindow < 0 || c.RateLimit.MaxVerifyFailures < 0 {
		return errors.New("RateLimit maximums must be >= 0")
	}
	if c.RateLimit.Enabled {
		if c.RateLimit.MaxIssuePerWindow > 0 && c.RateLimit.IssueWindow <= 0 {
			return errors.New("RateLimit IssueWindow must be > 0")
		}
		if c.RateLimit.MaxVerifyFailures > 0 && c.RateLimit.VerifyCooldown <= 0 {
			return errors.New("RateLimit VerifyCooldown must be > 0")
		}
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}

	return nil
}

/*
====================================
LOADING
====================================
*/

// LoadConfigFromEnv overlays TWOSTEP_* environment variables on
// [DefaultConfig] and validates the result. Nested sections use their own
// prefix, e.g. TWOSTEP_TOKEN_SECRET or TWOSTEP_RATE_LIMIT_ENABLED.
func LoadConfigFromEnv() (Config, error) {
	return loadConfigFromEnv(nil)
}

func loadConfigFromEnv(environ map[string]string) (Config, error) {
	cfg := DefaultConfig()
	if err := env.ParseWithOptions(&cfg, env.Options{
		Prefix:      EnvPrefix,
		Environment: environ,
	}); err != nil {
		return Config{}, fmt.Errorf("twostep: parse env config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfigFile overlays the YAML document at path on [DefaultConfig] and
// validates the result. Durations are written as Go duration strings.
func LoadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("twostep: read config file: %w", err)
	}
	return ParseConfigYAML(data)
}

// ParseConfigYAML is [LoadConfigFile] for an in-memory document.
func ParseConfigYAML(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("twostep: parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
