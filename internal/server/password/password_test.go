package password

import (
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashVerify_Roundtrip(t *testing.T) {
	digest, err := Hash("correct horse battery staple")
	require.NoError(t, err)

	ok, err := Verify(digest, "correct horse battery staple")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Verify(digest, "wrong password")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHash_ProducesSelfDescribingDigest(t *testing.T) {
	digest, err := Hash("pw")
	require.NoError(t, err)

	id, err := SchemeID(digest)
	require.NoError(t, err)
	assert.Equal(t, Argon2ID, id)

	d, err := ParsePHC(digest)
	require.NoError(t, err)
	assert.Equal(t, Argon2ID, d.ID)
	assert.Len(t, d.Salt, argonSaltLen)
	assert.Len(t, d.Hash, argonKeyLen)
	assert.Equal(t, "3", d.Params["t"])
}

func TestParsePHC_Malformed(t *testing.T) {
	tests := []string{
		"",
		"no-dollar",
		"$onlyid",
		"$id$notbase64!$also!",
	}
	for _, s := range tests {
		t.Run(s, func(t *testing.T) {
			_, err := ParsePHC(s)
			assert.ErrorIs(t, err, ErrMalformedDigest)
		})
	}
}

func TestParsePHC_NoVersionNoParams(t *testing.T) {
	salt := base64.RawStdEncoding.EncodeToString([]byte("salt"))
	hash := base64.RawStdEncoding.EncodeToString([]byte("hashhash"))

	d, err := ParsePHC(fmt.Sprintf("$mssql-sha1$%s$%s", salt, hash))
	require.NoError(t, err)
	assert.Equal(t, "mssql-sha1", d.ID)
	assert.Equal(t, []byte("salt"), d.Salt)
	assert.Equal(t, []byte("hashhash"), d.Hash)
}

func TestSchemeID(t *testing.T) {
	id, err := SchemeID("$mssql-sha512$c2FsdA$aGFzaA")
	require.NoError(t, err)
	assert.Equal(t, "mssql-sha512", id)

	_, err = SchemeID("plain")
	assert.ErrorIs(t, err, ErrMalformedDigest)
}

func legacySHA1Digest(t *testing.T, password string, salt []byte) string {
	t.Helper()
	h := sha1.New()
	h.Write(encodeUTF16LE(password))
	h.Write(salt)
	return fmt.Sprintf("$mssql-sha1$%s$%s",
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(h.Sum(nil)))
}

func TestMSSQLVerifier_AcceptsMatchingPassword(t *testing.T) {
	registry := DefaultLegacyVerifiers()
	v, ok := registry["mssql-sha1"]
	require.True(t, ok)

	digest := legacySHA1Digest(t, "hunter2", []byte("pepper"))
	d, err := ParsePHC(digest)
	require.NoError(t, err)

	match, err := v.Verify(d, "hunter2")
	require.NoError(t, err)
	assert.True(t, match)

	match, err = v.Verify(d, "hunter3")
	require.NoError(t, err)
	assert.False(t, match)
}

func TestDefaultLegacyVerifiers_CoversBothSchemes(t *testing.T) {
	registry := DefaultLegacyVerifiers()
	assert.Contains(t, registry, "mssql-sha1")
	assert.Contains(t, registry, "mssql-sha512")
	assert.NotContains(t, registry, Argon2ID)
}
