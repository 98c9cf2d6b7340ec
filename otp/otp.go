package otp

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/MrEthical07/twostep/internal"
)

// ErrMissingCode is returned when verification is attempted against an
// account that has no pending code hash.
var ErrMissingCode = errors.New("no pending one-time code")

// Config controls code width and hashing cost.
type Config struct {
	Digits int
	Cost   int
}

// DefaultConfig returns 6-digit codes hashed at bcrypt cost 10.
func DefaultConfig() Config {
	return Config{Digits: 6, Cost: bcrypt.DefaultCost}
}

// Manager creates, hashes and verifies one-time codes.
type Manager struct {
	digits int
	cost   int
}

// New validates cfg and returns a Manager.
func New(cfg Config) (*Manager, error) {
	if cfg.Digits == 0 {
		cfg.Digits = 6
	}
	if cfg.Cost == 0 {
		cfg.Cost = bcrypt.DefaultCost
	}
	if cfg.Digits < 6 || cfg.Digits > 10 {
		return nil, fmt.Errorf("otp: digits must be in [6,10], got %d", cfg.Digits)
	}
	if cfg.Cost < bcrypt.MinCost || cfg.Cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("otp: bcrypt cost must be in [%d,%d], got %d", bcrypt.MinCost, bcrypt.MaxCost, cfg.Cost)
	}
	return &Manager{digits: cfg.Digits, cost: cfg.Cost}, nil
}

// Create returns a fresh numeric code.
func (m *Manager) Create() (string, error) {
	return internal.NewNumericCode(m.digits)
}

// Hash returns the bcrypt hash of code.
func (m *Manager) Hash(code string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(code), m.cost)
	if err != nil {
		return "", fmt.Errorf("otp: hash code: %w", err)
	}
	return string(h), nil
}

// Verify compares code against the stored hash. A nil hash yields
// ErrMissingCode; a mismatch yields false with a nil error.
func (m *Manager) Verify(code string, hash *string) (bool, error) {
	if hash == nil {
		return false, ErrMissingCode
	}
	err := bcrypt.CompareHashAndPassword([]byte(*hash), []byte(code))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("otp: verify code: %w", err)
	}
}
