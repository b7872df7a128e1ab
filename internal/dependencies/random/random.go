package random

import (
	"crypto/rand"
	"math/big"
)

// TokenAlphabet is the character set opaque tokens are drawn from
const TokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// Random produces opaque random tokens and can be mocked for testing
type Random interface {
	// Token returns a random string of the given length from TokenAlphabet
	Token(length int) string
}

// CryptoRandom implements Random using crypto/rand
type CryptoRandom struct{}

// New creates a new CryptoRandom
func New() *CryptoRandom {
	return &CryptoRandom{}
}

// Token returns a cryptographically random token
func (r *CryptoRandom) Token(length int) string {
	if length <= 0 {
		return ""
	}
	max := big.NewInt(int64(len(TokenAlphabet)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails when the OS source is broken
			panic(err)
		}
		out[i] = TokenAlphabet[n.Int64()]
	}
	return string(out)
}
