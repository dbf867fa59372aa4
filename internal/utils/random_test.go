package utils

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomBytes(t *testing.T) {
	a, err := RandomBytes(32)
	require.NoError(t, err)
	b, err := RandomBytes(32)
	require.NoError(t, err)

	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
}

func TestRandomSalt(t *testing.T) {
	salt, err := RandomSalt(32)
	require.NoError(t, err)

	assert.Len(t, salt, base64.StdEncoding.EncodedLen(32))
	raw, err := base64.StdEncoding.DecodeString(salt)
	require.NoError(t, err)
	assert.Len(t, raw, 32)
}
