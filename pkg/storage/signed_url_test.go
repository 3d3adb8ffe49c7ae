package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignedURLRoundTrip(t *testing.T) {
	signer := NewSignedURLSigner("test-secret", time.Minute)

	token, expiresAt, err := signer.Generate("file-1", "materials/mod-1/file-1.pdf")
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	fileID, relPath, parsedExpiry, err := signer.Parse(token, false)
	require.NoError(t, err)
	assert.Equal(t, "file-1", fileID)
	assert.Equal(t, "materials/mod-1/file-1.pdf", relPath)
	assert.Equal(t, expiresAt.Unix(), parsedExpiry.Unix())
}

func TestSignedURLExpired(t *testing.T) {
	signer := &SignedURLSigner{secret: []byte("test-secret"), ttl: -time.Minute}

	token, _, err := signer.Generate("file-1", "materials/mod-1/file-1.pdf")
	require.NoError(t, err)

	_, _, _, err = signer.Parse(token, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expired")

	// Cleanup routines still need the metadata out of stale tokens.
	fileID, _, _, err := signer.Parse(token, true)
	require.NoError(t, err)
	assert.Equal(t, "file-1", fileID)
}

func TestSignedURLTamperedSignature(t *testing.T) {
	signer := NewSignedURLSigner("test-secret", time.Minute)

	token, _, err := signer.Generate("file-1", "materials/mod-1/file-1.pdf")
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 4)
	parts[0] = "file-2"
	_, _, _, err = signer.Parse(strings.Join(parts, "."), false)
	require.Error(t, err)

	_, _, _, err = signer.Parse("not-a-token", false)
	require.Error(t, err)
}

func TestSignedURLWrongSecret(t *testing.T) {
	signer := NewSignedURLSigner("secret-a", time.Minute)
	other := NewSignedURLSigner("secret-b", time.Minute)

	token, _, err := signer.Generate("file-1", "materials/mod-1/file-1.pdf")
	require.NoError(t, err)

	_, _, _, err = other.Parse(token, false)
	require.Error(t, err)
}
