package token

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalid is returned for any continuation token that fails signature,
// expiry, issuer, algorithm or purpose checks.
var ErrInvalid = errors.New("invalid continuation token")

// SigningMethod selects the JWS algorithm.
type SigningMethod string

const (
	MethodHS256   SigningMethod = "hs256"
	MethodEd25519 SigningMethod = "ed25519"
)

// Config configures a [Manager].
type Config struct {
	SigningMethod SigningMethod
	// Secret is the HMAC key for hs256, or a PEM/raw private key for ed25519.
	Secret    []byte
	PublicKey []byte
	Issuer    string
	TTL       time.Duration
	Leeway    time.Duration
	KeyID     string
	// Now overrides the clock used for issuing and validating tokens.
	Now func() time.Time
}

// Subject identifies the account a token is issued for.
type Subject struct {
	Name  string
	Email string
	Role  int
}

// Claims is the signed continuation payload.
type Claims struct {
	Name    string  `json:"m_name"`
	Email   string  `json:"m_mail"`
	Role    int     `json:"m_role"`
	Purpose Purpose `json:"purpose"`
	Version *int64  `json:"version,omitempty"`
	jwt.RegisteredClaims
}

// Manager signs and verifies continuation tokens.
type Manager struct {
	config Config
	sign   any
	verify any
}

// NewManager validates cfg and prepares the signing keys.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.TTL <= 0 {
		return nil, errors.New("token: invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("token: invalid leeway configuration")
	}
	if cfg.SigningMethod == "" {
		cfg.SigningMethod = MethodHS256
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	m := &Manager{config: cfg}
	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.Secret) == 0 {
			return nil, errors.New("token: hs256 requires a secret")
		}
		key := append([]byte(nil), cfg.Secret...)
		m.sign, m.verify = key, key
	case MethodEd25519:
		priv, err := parseEdPrivateKey(cfg.Secret)
		if err != nil {
			return nil, err
		}
		m.sign = priv
		if len(cfg.PublicKey) > 0 {
			pub, err := parseEdPublicKey(cfg.PublicKey)
			if err != nil {
				return nil, err
			}
			m.verify = pub
		} else {
			m.verify = priv.Public()
		}
	default:
		return nil, fmt.Errorf("token: unsupported signing method %q", cfg.SigningMethod)
	}

	return m, nil
}

// TTL returns the default lifetime applied when Sign gets a zero ttl.
func (m *Manager) TTL() time.Duration {
	return m.config.TTL
}

// Sign issues a token for sub bound to purpose. version may be nil for
// flows that run before the account has a stable version.
func (m *Manager) Sign(sub Subject, purpose Purpose, version *int64, ttl time.Duration) (string, error) {
	if !purpose.Valid() {
		return "", fmt.Errorf("token: unknown purpose %d", purpose)
	}
	if ttl <= 0 {
		ttl = m.config.TTL
	}

	now := m.config.Now()
	claims := Claims{
		Name:    sub.Name,
		Email:   sub.Email,
		Role:    sub.Role,
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub.Name,
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if version != nil {
		v := *version
		claims.Version = &v
	}

	t := jwt.NewWithClaims(m.method(), claims)
	if m.config.KeyID != "" {
		t.Header["kid"] = m.config.KeyID
	}
	return t.SignedString(m.sign)
}

// Verify parses raw and checks that it was issued for purpose. Every
// failure is reported as ErrInvalid wrapping the cause.
func (m *Manager) Verify(raw string, purpose Purpose) (*Claims, error) {
	if raw == "" {
		return nil, fmt.Errorf("%w: empty token", ErrInvalid)
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.method().Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.config.Now),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}

	parsed, err := jwt.NewParser(options...).ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		if m.config.KeyID != "" {
			if kid, _ := t.Header["kid"].(string); kid != m.config.KeyID {
				return nil, errors.New("unknown kid")
			}
		}
		return m.verify, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, fmt.Errorf("%w: malformed claims", ErrInvalid)
	}
	if claims.Purpose != purpose {
		return nil, fmt.Errorf("%w: purpose %s does not match %s", ErrInvalid, claims.Purpose, purpose)
	}
	return claims, nil
}

func (m *Manager) method() jwt.SigningMethod {
	if m.config.SigningMethod == MethodEd25519 {
		return jwt.SigningMethodEdDSA
	}
	return jwt.SigningMethodHS256
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("token: invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("token: invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("token: invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("token: invalid ed25519 public key type")
	}
	return edKey, nil
}
