package random

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToken(t *testing.T) {
	r := New()

	tok := r.Token(24)
	assert.Len(t, tok, 24)
	for _, c := range tok {
		assert.True(t, strings.ContainsRune(TokenAlphabet, c), "unexpected %q", c)
	}

	assert.NotEqual(t, r.Token(24), r.Token(24))
	assert.Empty(t, r.Token(0))
}
