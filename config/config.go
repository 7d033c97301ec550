// Package config contains code to set the default values and read
// config files to be used throughout the whole application
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	maxArgonIterations = 64
	// 4 GiB
	maxArgonMemory = 4 * 1024 * 1024
)

var (
	MigrateOnly = pflag.Bool("migrate-only", false, "Applies pending migrations and exits")

	validLogLevels = []string{"debug", "info", "warn", "error", "fatal"}
	validEnvs      = []string{"development", "production", "test"}
	validDrivers   = []string{"postgres", "sqlite"}
)

// ErrMissingSecret is returned when no JWT secret is configured. A random
// one is printed alongside it so it can be pasted into the config.
var ErrMissingSecret = errors.New("jwt.secret is not set")

func genSecret() string {
	b := make([]byte, 64)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// Setup prepares everything config-related so that the app can
// start working. Function will return an error if something
// is critically wrong and the application can't run because of
// that.
func Setup() error {
	pflag.Parse()

	// A missing .env is fine, real environment variables still apply
	_ = godotenv.Load()

	v := viper.GetViper()
	if err := v.BindPFlags(pflag.CommandLine); err != nil {
		return fmt.Errorf("failed to bind flags, %w", err)
	}

	return load(v)
}

func load(v *viper.Viper) error {
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")

	// app.log_level <- APP_LOG_LEVEL
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config file, %w", err)
		}
	}

	return validate(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.frontend_url", "http://localhost:5173")

	v.SetDefault("host.port", 5000)
	v.SetDefault("host.cors_origins", []string{"http://localhost:5173"})
	v.SetDefault("host.ssl.enabled", false)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "file:users.db?_foreign_keys=on")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")

	v.SetDefault("jwt.expires_in", "168h")
	v.SetDefault("jwt.issuer", "user-api")

	v.SetDefault("verification.expires_in", "72h")

	v.SetDefault("argon.memory", 64*1024)
	v.SetDefault("argon.iterations", 3)
	v.SetDefault("argon.parallelism", 2)

	v.SetDefault("mail.port", 587)
	v.SetDefault("mail.workers", 2)
	v.SetDefault("mail.queue_size", 100)
	v.SetDefault("mail.send_timeout", "30s")

	v.SetDefault("security.rate_limit", 20)
	v.SetDefault("security.body_limit", 1<<20)

	v.SetDefault("cloudflare.turnstile.enabled", false)

	v.SetDefault("cleanup.unverified_schedule", "@daily")
	v.SetDefault("cleanup.unverified_max_age", "168h")
}

func validate(v *viper.Viper) error {
	if !slices.Contains(validEnvs, v.GetString("app.env")) {
		return errors.New("invalid app.env provided")
	}

	if !slices.Contains(validLogLevels, v.GetString("app.log_level")) {
		return errors.New("invalid log level provided")
	}

	if v.GetInt("host.port") <= 0 {
		return errors.New("invalid port provided")
	}

	if v.GetBool("host.ssl.enabled") {
		if v.GetString("host.ssl.certificate_path") == "" {
			return errors.New("no ssl certificate path provided")
		}

		if v.GetString("host.ssl.certificate_key_path") == "" {
			return errors.New("no ssl certificate key path provided")
		}
	}

	if !slices.Contains(validDrivers, v.GetString("database.driver")) {
		return errors.New("invalid database driver provided")
	}

	if v.GetString("database.dsn") == "" {
		return errors.New("database.dsn can't be empty")
	}

	if v.GetString("jwt.secret") == "" {
		fmt.Println("WARNING: You haven't set a JWT secret. Please set it as an environment variable or in the config.toml file.\nA random JWT secret you can use:\n\n" + genSecret() + "\n")
		return ErrMissingSecret
	}

	if v.GetDuration("jwt.expires_in") <= 0 {
		return errors.New("jwt.expires_in must be a positive duration")
	}

	if v.GetDuration("verification.expires_in") <= 0 {
		return errors.New("verification.expires_in must be a positive duration")
	}

	// argon2 needs at least 8 KiB per lane, parallelism is stored in a uint8
	parallelism := v.GetInt64("argon.parallelism")
	if parallelism < 1 || parallelism > math.MaxUint8 {
		return errors.New("argon.parallelism must be between 1 and 255")
	}

	iterations := v.GetInt64("argon.iterations")
	if iterations < 1 || iterations > maxArgonIterations {
		return fmt.Errorf("argon.iterations must be between 1 and %d", maxArgonIterations)
	}

	memory := v.GetInt64("argon.memory")
	if memory < 8*parallelism || memory > maxArgonMemory {
		return fmt.Errorf("argon.memory must be between %d and %d KiB", 8*parallelism, maxArgonMemory)
	}

	if v.GetInt("mail.workers") <= 0 {
		return errors.New("mail.workers must be bigger than 0")
	}

	if v.GetInt("mail.queue_size") <= 0 {
		return errors.New("mail.queue_size must be bigger than 0")
	}

	if v.GetString("mail.host") != "" && v.GetString("mail.from") == "" {
		return errors.New("mail.from is required when mail.host is set")
	}

	if v.GetInt("security.rate_limit") < 0 {
		return errors.New("security.rate_limit can't be negative")
	}

	if v.GetInt64("security.body_limit") <= 0 {
		return errors.New("security.body_limit must be bigger than 0")
	}

	if v.GetBool("cloudflare.turnstile.enabled") && v.GetString("cloudflare.turnstile.secret_token") == "" {
		return errors.New("turnstile secret token is missing")
	}

	if v.GetDuration("cleanup.unverified_max_age") <= 0 {
		return errors.New("cleanup.unverified_max_age must be a positive duration")
	}

	return nil
}
