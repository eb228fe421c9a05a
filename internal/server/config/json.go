package config

import (
	"encoding/json"
	"os"

	"github.com/campuslab/accountd/internal/flagx"
	"github.com/campuslab/accountd/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON
// unmarshalling. It uses timex.Duration for interval fields, which allows
// parsing both string values such as "24h" and integer nanoseconds.
//
// This struct is an intermediate DTO used only for reading JSON
// configuration files. After unmarshalling, its fields are copied into the
// runtime Config struct which uses time.Duration.
type JsonConfig struct {
	EndpointAddrHTTP      string         `json:"endpoint_addr_http"`
	DatabaseDSN           string         `json:"database_dsn"`
	MinUID                int64          `json:"min_uid"`
	HomeDirectoryPrefix   string         `json:"home_directory_prefix"`
	UserGroupGID          int64          `json:"user_group_gid"`
	BaseDN                string         `json:"base_dn"`
	UsersOU               string         `json:"users_ou"`
	TokenValidityDuration timex.Duration `json:"token_validity_duration"`
	TokenResendLimit      int            `json:"token_resend_limit"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance. The file path comes from the -c or -config command-line
// flags; if neither is set, no JSON file is loaded. If the file cannot be
// read or contains invalid JSON, the function panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	config.EndpointAddrHTTP = c.EndpointAddrHTTP
	config.DatabaseDSN = c.DatabaseDSN
	config.MinUID = c.MinUID
	config.HomeDirectoryPrefix = c.HomeDirectoryPrefix
	config.UserGroupGID = c.UserGroupGID
	config.BaseDN = c.BaseDN
	config.UsersOU = c.UsersOU
	config.TokenValidityDuration = c.TokenValidityDuration.Duration
	config.TokenResendLimit = c.TokenResendLimit
}
