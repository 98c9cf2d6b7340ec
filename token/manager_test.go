package token

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"strings"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func newHSManager(t *testing.T, c *clock) *Manager {
	t.Helper()
	m, err := NewManager(Config{
		Secret: []byte("test-secret-test-secret-test-secret"),
		Issuer: "twostep",
		TTL:    10 * time.Minute,
		Now:    c.Now,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func TestSignVerifyRoundTripKeepsVersion(t *testing.T) {
	c := &clock{now: time.Now()}
	m := newHSManager(t, c)

	v := int64(4)
	raw, err := m.Sign(Subject{Name: "alice", Email: "a@x.com", Role: 1}, PurposeSignIn, &v, 0)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	v = 9

	claims, err := m.Verify(raw, PurposeSignIn)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Name != "alice" || claims.Email != "a@x.com" || claims.Role != 1 {
		t.Fatalf("unexpected subject: %+v", claims)
	}
	if claims.Version == nil || *claims.Version != 4 {
		t.Fatalf("expected version 4, got %v", claims.Version)
	}
}

func TestVerifyWithoutVersion(t *testing.T) {
	c := &clock{now: time.Now()}
	m := newHSManager(t, c)

	raw, err := m.Sign(Subject{Name: "alice"}, PurposeCreate, nil, 0)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	claims, err := m.Verify(raw, PurposeCreate)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Version != nil {
		t.Fatalf("expected nil version, got %d", *claims.Version)
	}
}

func TestVerifyRejectsOtherPurposes(t *testing.T) {
	c := &clock{now: time.Now()}
	m := newHSManager(t, c)

	raw, err := m.Sign(Subject{Name: "alice"}, PurposePasswordReset, nil, 0)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	for _, p := range []Purpose{PurposeCreate, PurposeSignIn, PurposePasswordBid, PurposeEmailUpdate, PurposeDeleteMember} {
		if _, err := m.Verify(raw, p); !errors.Is(err, ErrInvalid) {
			t.Fatalf("purpose %s: expected ErrInvalid, got %v", p, err)
		}
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	c := &clock{now: time.Now()}
	m := newHSManager(t, c)

	raw, err := m.Sign(Subject{Name: "alice"}, PurposeSignIn, nil, time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	c.now = c.now.Add(2 * time.Minute)
	if _, err := m.Verify(raw, PurposeSignIn); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected expired token to fail, got %v", err)
	}
}

func TestVerifyRejectsEverySingleCharacterMutation(t *testing.T) {
	c := &clock{now: time.Now()}
	m := newHSManager(t, c)

	raw, err := m.Sign(Subject{Name: "alice", Email: "a@x.com"}, PurposeCreate, nil, 0)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	// The final base64url character of an HS256 signature carries padding
	// bits, so only mutations that change the decoded bytes are checked.
	for i := 0; i < len(raw)-1; i++ {
		if raw[i] == '.' {
			continue
		}
		repl := byte('A')
		if raw[i] == 'A' {
			repl = 'B'
		}
		mutated := raw[:i] + string(repl) + raw[i+1:]
		if _, err := m.Verify(mutated, PurposeCreate); err == nil {
			t.Fatalf("mutation at %d accepted", i)
		}
	}
}

func TestVerifyRejectsWrongIssuerAndAlgorithm(t *testing.T) {
	c := &clock{now: time.Now()}
	m := newHSManager(t, c)

	claims := Claims{Name: "alice", Purpose: PurposeSignIn, RegisteredClaims: gjwt.RegisteredClaims{
		Issuer:    "other",
		ExpiresAt: gjwt.NewNumericDate(c.now.Add(time.Minute)),
	}}
	wrongIssuer, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString([]byte("test-secret-test-secret-test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := m.Verify(wrongIssuer, PurposeSignIn); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected wrong issuer to fail, got %v", err)
	}

	claims.Issuer = "twostep"
	none, err := gjwt.NewWithClaims(gjwt.SigningMethodNone, claims).SignedString(gjwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := m.Verify(none, PurposeSignIn); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected alg none to fail, got %v", err)
	}
}

func TestEd25519SignAndVerify(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	signer, err := NewManager(Config{SigningMethod: MethodEd25519, Secret: priv, TTL: time.Minute, KeyID: "k1"})
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	verifier, err := NewManager(Config{SigningMethod: MethodEd25519, Secret: priv, PublicKey: pub, TTL: time.Minute, KeyID: "k1"})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	raw, err := signer.Sign(Subject{Name: "bob"}, PurposeDeleteMember, nil, 0)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := verifier.Verify(raw, PurposeDeleteMember); err != nil {
		t.Fatalf("verify: %v", err)
	}

	other, err := NewManager(Config{SigningMethod: MethodEd25519, Secret: priv, TTL: time.Minute, KeyID: "k2"})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if _, err := other.Verify(raw, PurposeDeleteMember); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected kid mismatch to fail, got %v", err)
	}
}

func TestNewManagerRejectsBadConfig(t *testing.T) {
	cases := []Config{
		{Secret: []byte("s"), TTL: 0},
		{TTL: time.Minute},
		{Secret: []byte("s"), TTL: time.Minute, Leeway: time.Hour},
		{Secret: []byte("s"), TTL: time.Minute, SigningMethod: "rs256"},
		{Secret: []byte("short"), TTL: time.Minute, SigningMethod: MethodEd25519},
	}
	for i, cfg := range cases {
		if _, err := NewManager(cfg); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
}

func TestSignRejectsUnknownPurpose(t *testing.T) {
	c := &clock{now: time.Now()}
	m := newHSManager(t, c)
	if _, err := m.Sign(Subject{Name: "alice"}, Purpose(500), nil, 0); err == nil || !strings.Contains(err.Error(), "unknown purpose") {
		t.Fatalf("expected unknown purpose error, got %v", err)
	}
}
