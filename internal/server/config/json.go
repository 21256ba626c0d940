package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/cookieauth/internal/flagx"
	"github.com/dmitrijs2005/cookieauth/internal/timex"
)

// JsonConfig is the on-disk shape of the -c/-config file. Durations accept
// "15m" style strings or integer nanoseconds. Pointer fields distinguish
// "absent" from an explicit false or zero.
type JsonConfig struct {
	EndpointAddrHTTP             string          `json:"endpoint_addr_http"`
	EndpointAddrGRPC             *string         `json:"endpoint_addr_grpc"`
	DatabaseDSN                  string          `json:"database_dsn"`
	SecretKey                    string          `json:"secret_key"`
	AccessTokenValidityDuration  *timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration *timex.Duration `json:"refresh_token_validity_duration"`
	Argon2Memory                 *uint32         `json:"argon2_memory"`
	Argon2Time                   *uint32         `json:"argon2_time"`
	Argon2Threads                *uint8          `json:"argon2_threads"`
	CookieDomain                 string          `json:"cookie_domain"`
	CookiePath                   string          `json:"cookie_path"`
	CookieSecure                 *bool           `json:"cookie_secure"`
	CookieSameSite               string          `json:"cookie_samesite"`
	CORSAllowedOrigins           string          `json:"cors_allowed_origins"`
	LogFormat                    string          `json:"log_format"`
	GinMode                      string          `json:"gin_mode"`
}

// parseJson overlays values from the file named by -c/-config onto config.
// Without the flag nothing happens. Fields missing from the file keep their
// current values.
func parseJson(config *Config) error {
	path := flagx.JsonConfigFlags()
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return err
	}

	overlay(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	overlay(&config.DatabaseDSN, c.DatabaseDSN)
	overlay(&config.SecretKey, c.SecretKey)
	overlay(&config.CookieDomain, c.CookieDomain)
	overlay(&config.CookiePath, c.CookiePath)
	overlay(&config.CookieSameSite, c.CookieSameSite)
	overlay(&config.CORSAllowedOrigins, c.CORSAllowedOrigins)
	overlay(&config.LogFormat, c.LogFormat)
	overlay(&config.GinMode, c.GinMode)

	if c.EndpointAddrGRPC != nil {
		config.EndpointAddrGRPC = *c.EndpointAddrGRPC
	}
	if c.AccessTokenValidityDuration != nil {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if c.RefreshTokenValidityDuration != nil {
		config.RefreshTokenValidityDuration = c.RefreshTokenValidityDuration.Duration
	}
	if c.Argon2Memory != nil {
		config.Argon2Memory = *c.Argon2Memory
	}
	if c.Argon2Time != nil {
		config.Argon2Time = *c.Argon2Time
	}
	if c.Argon2Threads != nil {
		config.Argon2Threads = *c.Argon2Threads
	}
	if c.CookieSecure != nil {
		config.CookieSecure = *c.CookieSecure
	}
	return nil
}

func overlay(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
