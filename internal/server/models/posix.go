package models

// PosixAccountObjectClass is the LDAP objectClass set for projected accounts.
var PosixAccountObjectClass = []string{"top", "account", "posixAccount"}

// PosixAccount is the read-only directory view of a user. The LDAP layer
// consumes these entries verbatim.
type PosixAccount struct {
	DN         string
	Attributes PosixAccountAttributes
}

type PosixAccountAttributes struct {
	UID           string
	CN            string
	Gecos         string
	HomeDirectory string
	LoginShell    string
	ObjectClass   []string
	UIDNumber     int64
	GIDNumber     int64
}
