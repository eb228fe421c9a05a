package password

import (
	"crypto/sha1"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/binary"
	"hash"
	"unicode/utf16"
)

// LegacyVerifier checks a password against a historical digest scheme. On a
// successful legacy verification the account service rehashes the credential
// with the modern scheme, so legacy verifiers only ever see old rows.
type LegacyVerifier interface {
	// ID is the PHC scheme identifier this verifier handles.
	ID() string

	// Verify reports whether the password matches the parsed legacy digest.
	Verify(d *Digest, password string) (bool, error)
}

// VerifierRegistry maps a PHC scheme identifier to its legacy verifier.
type VerifierRegistry map[string]LegacyVerifier

// DefaultLegacyVerifiers returns the registry of legacy schemes still found
// in the user table: salted SHA digests of UTF-16LE passwords imported from
// the previous MSSQL-based system.
func DefaultLegacyVerifiers() VerifierRegistry {
	r := VerifierRegistry{}
	for _, v := range []LegacyVerifier{
		&mssqlVerifier{id: "mssql-sha1", newHash: sha1.New},
		&mssqlVerifier{id: "mssql-sha512", newHash: sha512.New},
	} {
		r[v.ID()] = v
	}
	return r
}

type mssqlVerifier struct {
	id      string
	newHash func() hash.Hash
}

func (v *mssqlVerifier) ID() string { return v.id }

// Verify recomputes hash(utf16le(password) || salt) and compares it with the
// stored hash in constant time.
func (v *mssqlVerifier) Verify(d *Digest, password string) (bool, error) {
	h := v.newHash()
	h.Write(encodeUTF16LE(password))
	h.Write(d.Salt)
	sum := h.Sum(nil)
	return subtle.ConstantTimeCompare(sum, d.Hash) == 1, nil
}

func encodeUTF16LE(s string) []byte {
	units := utf16.Encode([]rune(s))
	b := make([]byte, 2*len(units))
	for i, u := range units {
		binary.LittleEndian.PutUint16(b[2*i:], u)
	}
	return b
}
