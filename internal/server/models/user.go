package models

import "time"

// Language is the user's preferred interface language.
// Mirrors the language enum in the schema.
type Language string

const (
	LanguageKorean  Language = "ko"
	LanguageEnglish Language = "en"
)

// User is an identity record. Username and Shell are pointers because both
// are nullable; users without either are excluded from the POSIX projection.
type User struct {
	Idx               int64
	Username          *string
	Name              string
	UID               int64
	Shell             *string
	PreferredLanguage Language
	Activated         bool
	CreatedAt         time.Time
	LastLoginAt       *time.Time
}

// UserMembership is a (user, group) edge recording a direct membership.
type UserMembership struct {
	Idx      int64
	UserIdx  int64
	GroupIdx int64
}
