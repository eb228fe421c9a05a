package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// envConfig mirrors Config with pointer fields so that only variables
// actually present in the environment overlay the current values.
type envConfig struct {
	EndpointAddrHTTP      *string        `env:"ACCOUNTD_HTTP_ADDR"`
	DatabaseDSN           *string        `env:"ACCOUNTD_DATABASE_DSN"`
	MinUID                *int64         `env:"ACCOUNTD_MIN_UID"`
	HomeDirectoryPrefix   *string        `env:"ACCOUNTD_HOME_PREFIX"`
	UserGroupGID          *int64         `env:"ACCOUNTD_USER_GROUP_GID"`
	BaseDN                *string        `env:"ACCOUNTD_BASE_DN"`
	UsersOU               *string        `env:"ACCOUNTD_USERS_OU"`
	TokenValidityDuration *time.Duration `env:"ACCOUNTD_TOKEN_VALIDITY"`
	TokenResendLimit      *int           `env:"ACCOUNTD_TOKEN_RESEND_LIMIT"`
}

// parseEnv overlays configuration from environment variables. Malformed
// values panic, matching the JSON overlay behavior.
func parseEnv(config *Config) {
	e := &envConfig{}
	if err := env.Parse(e); err != nil {
		panic(err)
	}

	if e.EndpointAddrHTTP != nil {
		config.EndpointAddrHTTP = *e.EndpointAddrHTTP
	}
	if e.DatabaseDSN != nil {
		config.DatabaseDSN = *e.DatabaseDSN
	}
	if e.MinUID != nil {
		config.MinUID = *e.MinUID
	}
	if e.HomeDirectoryPrefix != nil {
		config.HomeDirectoryPrefix = *e.HomeDirectoryPrefix
	}
	if e.UserGroupGID != nil {
		config.UserGroupGID = *e.UserGroupGID
	}
	if e.BaseDN != nil {
		config.BaseDN = *e.BaseDN
	}
	if e.UsersOU != nil {
		config.UsersOU = *e.UsersOU
	}
	if e.TokenValidityDuration != nil {
		config.TokenValidityDuration = *e.TokenValidityDuration
	}
	if e.TokenResendLimit != nil {
		config.TokenResendLimit = *e.TokenResendLimit
	}
}
