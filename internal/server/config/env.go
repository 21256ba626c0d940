package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// envFile is loaded into the process environment when present.
// Variables already set in the environment take precedence over it.
var envFile = ".env"

// parseEnv overlays AUTH_* environment variables (and GIN_MODE) onto config.
// Unset or empty variables leave the current value alone.
func parseEnv(config *Config) error {
	_ = godotenv.Load(envFile)

	setString(&config.EndpointAddrHTTP, "AUTH_HTTP_ADDRESS")
	setString(&config.EndpointAddrGRPC, "AUTH_GRPC_ADDRESS")
	setString(&config.DatabaseDSN, "AUTH_DATABASE_DSN")
	setString(&config.SecretKey, "AUTH_SECRET_KEY")
	setString(&config.CookieDomain, "AUTH_COOKIE_DOMAIN")
	setString(&config.CookiePath, "AUTH_COOKIE_PATH")
	setString(&config.CookieSameSite, "AUTH_COOKIE_SAMESITE")
	setString(&config.CORSAllowedOrigins, "AUTH_CORS_ALLOWED_ORIGINS")
	setString(&config.LogFormat, "AUTH_LOG_FORMAT")
	setString(&config.GinMode, "GIN_MODE")

	if err := setDuration(&config.AccessTokenValidityDuration, "AUTH_ACCESS_TOKEN_TTL"); err != nil {
		return err
	}
	if err := setDuration(&config.RefreshTokenValidityDuration, "AUTH_REFRESH_TOKEN_TTL"); err != nil {
		return err
	}
	if err := setUint32(&config.Argon2Memory, "AUTH_ARGON2_MEMORY"); err != nil {
		return err
	}
	if err := setUint32(&config.Argon2Time, "AUTH_ARGON2_TIME"); err != nil {
		return err
	}
	if v := os.Getenv("AUTH_ARGON2_THREADS"); v != "" {
		n, err := strconv.ParseUint(v, 10, 8)
		if err != nil {
			return fmt.Errorf("AUTH_ARGON2_THREADS: %w", err)
		}
		config.Argon2Threads = uint8(n)
	}
	if v := os.Getenv("AUTH_COOKIE_SECURE"); v != "" {
		secure, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("AUTH_COOKIE_SECURE: %w", err)
		}
		config.CookieSecure = secure
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}

func setUint32(dst *uint32, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = uint32(n)
	return nil
}
