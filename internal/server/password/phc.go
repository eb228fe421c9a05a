// Package password implements password digest handling: argon2id hashing in
// PHC string format, plus pluggable verification of legacy digest schemes
// with in-place rehash on successful login.
package password

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformedDigest is returned when a stored digest cannot be parsed as a
// PHC string.
var ErrMalformedDigest = errors.New("malformed password digest")

// Digest is a parsed PHC-formatted password digest:
//
//	$<id>[$v=<version>][$<param>=<value>,...]$<salt>$<hash>
//
// Salt and hash are base64 without padding.
type Digest struct {
	ID      string
	Version int
	Params  map[string]string
	Salt    []byte
	Hash    []byte
}

// ParsePHC parses a PHC-formatted digest string into its parts.
func ParsePHC(s string) (*Digest, error) {
	if !strings.HasPrefix(s, "$") {
		return nil, ErrMalformedDigest
	}
	fields := strings.Split(s[1:], "$")
	if len(fields) < 2 {
		return nil, ErrMalformedDigest
	}

	d := &Digest{ID: fields[0], Params: map[string]string{}}
	rest := fields[1:]

	if strings.HasPrefix(rest[0], "v=") {
		v, err := strconv.Atoi(strings.TrimPrefix(rest[0], "v="))
		if err != nil {
			return nil, ErrMalformedDigest
		}
		d.Version = v
		rest = rest[1:]
	}

	if len(rest) > 0 && strings.Contains(rest[0], "=") {
		for _, kv := range strings.Split(rest[0], ",") {
			parts := strings.SplitN(kv, "=", 2)
			if len(parts) != 2 {
				return nil, ErrMalformedDigest
			}
			d.Params[parts[0]] = parts[1]
		}
		rest = rest[1:]
	}

	if len(rest) != 2 {
		return nil, ErrMalformedDigest
	}

	salt, err := base64.RawStdEncoding.DecodeString(rest[0])
	if err != nil {
		return nil, fmt.Errorf("%w: bad salt", ErrMalformedDigest)
	}
	hash, err := base64.RawStdEncoding.DecodeString(rest[1])
	if err != nil {
		return nil, fmt.Errorf("%w: bad hash", ErrMalformedDigest)
	}
	d.Salt = salt
	d.Hash = hash

	return d, nil
}

// SchemeID extracts the hash-scheme identifier from a self-describing PHC
// digest without fully parsing it.
func SchemeID(digest string) (string, error) {
	if !strings.HasPrefix(digest, "$") {
		return "", ErrMalformedDigest
	}
	end := strings.IndexByte(digest[1:], '$')
	if end <= 0 {
		return "", ErrMalformedDigest
	}
	return digest[1 : 1+end], nil
}
