package models

import "time"

// EmailAddress is a (local, domain) pair, unique case-insensitively.
// OwnerIdx is set once the address has been verified by its owner.
type EmailAddress struct {
	Idx      int64
	Local    string
	Domain   string
	OwnerIdx *int64
}

// VerificationToken is a single-use secret bound to exactly one owner key
// (an email address or a user, depending on the store). At most one live
// token exists per owner; reissuing replaces the secret and expiry and
// increments ResendCount.
type VerificationToken struct {
	Idx         int64
	OwnerIdx    int64
	Token       string
	Expires     time.Time
	ResendCount int
}
