package config

import (
	"flag"
	"os"
	"time"

	"github.com/campuslab/accountd/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN
//	-m int      minimum POSIX UID for allocation
//	-p string   home directory prefix
//	-g int      fixed POSIX group id for projected accounts
//	-b string   directory base DN
//	-o string   users organizational unit
//	-t int      token validity, hours
//	-r int      token resend limit
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components. The token
// validity flag is accepted as an integer in hours and then converted to a
// time.Duration value.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-m", "-p", "-g", "-b", "-o", "-t", "-r"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.Int64Var(&config.MinUID, "m", config.MinUID, "minimum POSIX UID")
	fs.StringVar(&config.HomeDirectoryPrefix, "p", config.HomeDirectoryPrefix, "home directory prefix")
	fs.Int64Var(&config.UserGroupGID, "g", config.UserGroupGID, "POSIX group id for all users")
	fs.StringVar(&config.BaseDN, "b", config.BaseDN, "directory base DN")
	fs.StringVar(&config.UsersOU, "o", config.UsersOU, "users organizational unit")

	tokenValidity := fs.Int("t", int(config.TokenValidityDuration.Hours()), "token validity (in hours)")
	fs.IntVar(&config.TokenResendLimit, "r", config.TokenResendLimit, "token resend limit")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.TokenValidityDuration = time.Duration(*tokenValidity) * time.Hour
}
