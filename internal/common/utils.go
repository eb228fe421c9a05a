package common

import (
	"crypto/rand"
	"encoding/hex"
)

// TokenByteLength is the number of random bytes in a verification or
// password-reset secret. The hex-encoded token is twice this length.
const TokenByteLength = 32

// MakeRandHexString generates a random hexadecimal string of the given size.
// The size parameter specifies the number of random bytes to generate before
// encoding them as a hexadecimal string, so the final string length is twice
// the size.
//
// It returns an error if the random number generator fails.
func MakeRandHexString(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
