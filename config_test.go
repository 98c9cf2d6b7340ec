package twostep

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected default config to validate: %v", err)
	}
	if !cfg.usesDevelopmentSecret() {
		t.Fatalf("expected default config to use the development secret")
	}
}

func TestConfigValidateEnums(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name: "token leeway valid",
			mutate: func(c *Config) {
				c.Token.Leeway = 45 * time.Second
			},
			wantValid: true,
		},
		{
			name: "token leeway invalid",
			mutate: func(c *Config) {
				c.Token.Leeway = 3 * time.Minute
			},
			wantValid: false,
		},
		{
			name: "token ttl zero invalid",
			mutate: func(c *Config) {
				c.Token.TTL = 0
			},
			wantValid: false,
		},
		{
			name: "bid ttl zero invalid",
			mutate: func(c *Config) {
				c.Token.BidTTL = 0
			},
			wantValid: false,
		},
		{
			name: "signing method invalid",
			mutate: func(c *Config) {
				c.Token.SigningMethod = "rs256"
			},
			wantValid: false,
		},
		{
			name: "token secret missing",
			mutate: func(c *Config) {
				c.Token.Secret = ""
			},
			wantValid: false,
		},
		{
			name: "code digits too short",
			mutate: func(c *Config) {
				c.Code.Digits = 4
			},
			wantValid: false,
		},
		{
			name: "code digits eight valid",
			mutate: func(c *Config) {
				c.Code.Digits = 8
			},
			wantValid: true,
		},
		{
			name: "code cost out of range",
			mutate: func(c *Config) {
				c.Code.Cost = 40
			},
			wantValid: false,
		},
		{
			name: "password memory too small",
			mutate: func(c *Config) {
				c.Password.Memory = 1024
			},
			wantValid: false,
		},
		{
			name: "session secret missing",
			mutate: func(c *Config) {
				c.Session.Secret = ""
			},
			wantValid: false,
		},
		{
			name: "session lifetime zero",
			mutate: func(c *Config) {
				c.Session.Lifetime = 0
			},
			wantValid: false,
		},
		{
			name: "rate limit negative maximum",
			mutate: func(c *Config) {
				c.RateLimit.MaxVerifyFailures = -1
			},
			wantValid: false,
		},
		{
			name: "rate limit enabled without window",
			mutate: func(c *Config) {
				c.RateLimit.Enabled = true
				c.RateLimit.IssueWindow = 0
			},
			wantValid: false,
		},
		{
			name: "rate limit disabled ignores window",
			mutate: func(c *Config) {
				c.RateLimit.IssueWindow = 0
			},
			wantValid: true,
		},
		{
			name: "audit enabled without buffer",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.BufferSize = 0
			},
			wantValid: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantValid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tc.wantValid && err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	cfg, err := loadConfigFromEnv(map[string]string{
		"TWOSTEP_TOKEN_SECRET":               "env-token-secret",
		"TWOSTEP_TOKEN_TTL":                  "5m",
		"TWOSTEP_SESSION_SECRET":             "env-session-secret",
		"TWOSTEP_CODE_DIGITS":                "8",
		"TWOSTEP_PASSWORD_MEMORY_KB":         "16384",
		"TWOSTEP_RATE_LIMIT_ENABLED":         "true",
		"TWOSTEP_RATE_LIMIT_VERIFY_COOLDOWN": "1h",
		"TWOSTEP_AUDIT_ENABLED":              "true",
		"UNRELATED_TOKEN_SECRET":             "ignored",
	})
	if err != nil {
		t.Fatalf("loadConfigFromEnv: %v", err)
	}

	if cfg.Token.Secret != "env-token-secret" || cfg.Token.TTL != 5*time.Minute {
		t.Fatalf("unexpected token config: %+v", cfg.Token)
	}
	if cfg.Session.Secret != "env-session-secret" {
		t.Fatalf("unexpected session secret %q", cfg.Session.Secret)
	}
	if cfg.Code.Digits != 8 || cfg.Password.Memory != 16384 {
		t.Fatalf("unexpected code/password config: %+v %+v", cfg.Code, cfg.Password)
	}
	if !cfg.RateLimit.Enabled || cfg.RateLimit.VerifyCooldown != time.Hour {
		t.Fatalf("unexpected rate limit config: %+v", cfg.RateLimit)
	}
	// Untouched fields keep their defaults.
	if cfg.Token.BidTTL != 10*time.Minute || cfg.Audit.BufferSize != 1024 {
		t.Fatalf("expected defaults to survive, got %+v %+v", cfg.Token, cfg.Audit)
	}
	if cfg.usesDevelopmentSecret() {
		t.Fatalf("expected development secret to be replaced")
	}
}

func TestLoadConfigFromEnvRejectsInvalid(t *testing.T) {
	if _, err := loadConfigFromEnv(map[string]string{"TWOSTEP_TOKEN_TTL": "soon"}); err == nil {
		t.Fatalf("expected parse error for malformed duration")
	}
	if _, err := loadConfigFromEnv(map[string]string{"TWOSTEP_CODE_DIGITS": "4"}); err == nil {
		t.Fatalf("expected validation error for short codes")
	}
}

const sampleYAML = `
token:
  secret: file-token-secret
  issuer: example
  ttl: 3m
  leeway: 30s
code:
  digits: 7
session:
  secret: file-session-secret
  lifetime: 72h
rate_limit:
  enabled: true
  max_issue_per_window: 3
  issue_window: 10m
`

func TestParseConfigYAML(t *testing.T) {
	cfg, err := ParseConfigYAML([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("ParseConfigYAML: %v", err)
	}
	if cfg.Token.Issuer != "example" || cfg.Token.TTL != 3*time.Minute || cfg.Token.Leeway != 30*time.Second {
		t.Fatalf("unexpected token config: %+v", cfg.Token)
	}
	if cfg.Code.Digits != 7 || cfg.Session.Lifetime != 72*time.Hour {
		t.Fatalf("unexpected code/session config: %+v %+v", cfg.Code, cfg.Session)
	}
	if !cfg.RateLimit.Enabled || cfg.RateLimit.MaxIssuePerWindow != 3 || cfg.RateLimit.IssueWindow != 10*time.Minute {
		t.Fatalf("unexpected rate limit config: %+v", cfg.RateLimit)
	}
	if cfg.Token.SigningMethod != "hs256" {
		t.Fatalf("expected default signing method, got %q", cfg.Token.SigningMethod)
	}

	if _, err := ParseConfigYAML([]byte("token: [")); err == nil {
		t.Fatalf("expected syntax error")
	}
	if _, err := ParseConfigYAML([]byte("token:\n  signing_method: rs256\n")); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "twostep.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFile: %v", err)
	}
	if cfg.Token.Secret != "file-token-secret" {
		t.Fatalf("unexpected secret %q", cfg.Token.Secret)
	}

	if _, err := LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestConfigRedacted(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Token.Secret = "token-secret"
	cfg.Session.Secret = "session-secret"

	red := cfg.Redacted()
	if strings.Contains(red.Token.Secret, "token-secret") || strings.Contains(red.Session.Secret, "session-secret") {
		t.Fatalf("expected secrets to be masked: %+v", red)
	}
	if cfg.Token.Secret != "token-secret" {
		t.Fatalf("expected original config untouched")
	}
	if red.Token.TTL != cfg.Token.TTL {
		t.Fatalf("expected non-secret fields kept")
	}
}
