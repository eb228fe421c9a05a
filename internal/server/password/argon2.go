package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"

	"golang.org/x/crypto/argon2"
)

// Argon2ID is the scheme identifier of the current (modern) digest format.
const Argon2ID = "argon2id"

// argon2id parameters for newly created digests. Stored digests carry their
// own parameters, so these can be raised without invalidating old rows.
const (
	argonTime    = 3
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
	argonSaltLen = 16
)

// Hash derives an argon2id digest of the password and encodes it as a PHC
// string suitable for the users.password_digest column.
func Hash(password string) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	key := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	digest := fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		Argon2ID, argon2.Version, argonMemory, argonTime, argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key))

	return digest, nil
}

// Verify reports whether the password matches an argon2id PHC digest,
// using the parameters stored in the digest itself.
func Verify(digest, password string) (bool, error) {
	d, err := ParsePHC(digest)
	if err != nil {
		return false, err
	}
	if d.ID != Argon2ID {
		return false, fmt.Errorf("%w: unexpected scheme %q", ErrMalformedDigest, d.ID)
	}

	memory, err := paramUint32(d, "m")
	if err != nil {
		return false, err
	}
	time, err := paramUint32(d, "t")
	if err != nil {
		return false, err
	}
	threads, err := paramUint32(d, "p")
	if err != nil {
		return false, err
	}

	key := argon2.IDKey([]byte(password), d.Salt, time, memory, uint8(threads), uint32(len(d.Hash)))
	return subtle.ConstantTimeCompare(key, d.Hash) == 1, nil
}

func paramUint32(d *Digest, name string) (uint32, error) {
	raw, ok := d.Params[name]
	if !ok {
		return 0, fmt.Errorf("%w: missing parameter %q", ErrMalformedDigest, name)
	}
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: bad parameter %q", ErrMalformedDigest, name)
	}
	return uint32(v), nil
}
