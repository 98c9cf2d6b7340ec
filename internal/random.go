package internal

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"math/big"
	"strconv"
)

// NewNumericCode returns a decimal code of exactly digits characters drawn
// uniformly from [10^(digits-1), 10^digits-1].
func NewNumericCode(digits int) (string, error) {
	if digits < 4 || digits > 10 {
		return "", errors.New("invalid code digits")
	}

	lo := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits-1)), nil)
	span := new(big.Int).Sub(new(big.Int).Mul(lo, big.NewInt(10)), lo)

	n, err := rand.Int(rand.Reader, span)
	if err != nil {
		return "", err
	}
	code := strconv.FormatInt(n.Add(n, lo).Int64(), 10)
	if len(code) != digits {
		return "", errors.New("invalid code generation length")
	}
	return code, nil
}

// KeyedDigest returns hex(HMAC-SHA256(key, value)).
func KeyedDigest(key []byte, value string) string {
	mac := hmac.New(sha256.New, key)
	_, _ = mac.Write([]byte(value))
	return hex.EncodeToString(mac.Sum(nil))
}

// DigestEqual compares two hex digests in constant time.
func DigestEqual(a, b string) bool {
	return hmac.Equal([]byte(a), []byte(b))
}
