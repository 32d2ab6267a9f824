package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DevJWTSecret signs credentials when no secret is configured outside production.
const DevJWTSecret = "dev-secret"

// Config holds the server configuration.
type Config struct {
	// HTTP Server
	Port string `mapstructure:"port"`
	Env  string `mapstructure:"app_env"`

	// Storage
	Store    string `mapstructure:"store"`
	DBPath   string `mapstructure:"db_path"`
	MongoURI string `mapstructure:"mongodb_uri"`
	MongoDB  string `mapstructure:"mongodb_db"`

	// Sessions
	JWTSecret    string `mapstructure:"jwt_secret"`
	CookieSecure bool   `mapstructure:"-"`

	// Aggregation
	Timezone string `mapstructure:"timezone"`

	// Bootstrap account
	AdminEmail    string `mapstructure:"admin_email"`
	AdminPassword string `mapstructure:"admin_password"`
	AdminName     string `mapstructure:"admin_name"`

	// DevSecret is set when JWTSecret fell back to DevJWTSecret.
	DevSecret bool `mapstructure:"-"`
}

// Load reads an optional .env file, then layers defaults, an optional config
// file named by EXPENSEFLOW_CONFIG and the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("could not load .env file", "error", err)
	}

	v := viper.New()
	v.SetDefault("port", "8080")
	v.SetDefault("app_env", "development")
	v.SetDefault("store", "sqlite")
	v.SetDefault("db_path", "expenses.db")
	v.SetDefault("mongodb_uri", "")
	v.SetDefault("mongodb_db", "expense-tracker")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("timezone", "Local")
	v.SetDefault("admin_email", "")
	v.SetDefault("admin_password", "")
	v.SetDefault("admin_name", "")
	_ = v.BindEnv("cookie_secure")

	if path := os.Getenv("EXPENSEFLOW_CONFIG"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}
	v.AutomaticEnv()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	c.Store = strings.ToLower(strings.TrimSpace(c.Store))

	c.CookieSecure = c.IsProduction()
	if v.IsSet("cookie_secure") {
		secure, err := strconv.ParseBool(v.GetString("cookie_secure"))
		if err != nil {
			return nil, fmt.Errorf("invalid COOKIE_SECURE %q: %w", v.GetString("cookie_secure"), err)
		}
		c.CookieSecure = secure
	}

	if c.JWTSecret == "" && !c.IsProduction() {
		c.JWTSecret = DevJWTSecret
		c.DevSecret = true
	}
	return &c, nil
}

// IsProduction reports whether the server runs with APP_ENV=production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Addr is the listen address of the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Port
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// Validate validates the configuration and returns every problem found.
func (c *Config) Validate() error {
	var problems []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		problems = append(problems, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		problems = append(problems, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	validEnvs := []string{"development", "production"}
	if !slices.Contains(validEnvs, c.Env) {
		problems = append(problems, fmt.Sprintf("invalid environment '%s': must be one of %v", c.Env, validEnvs))
	}

	validStores := []string{"sqlite", "mongo"}
	if !slices.Contains(validStores, c.Store) {
		problems = append(problems, fmt.Sprintf("invalid store '%s': must be one of %v", c.Store, validStores))
	}
	if c.Store == "sqlite" && c.DBPath == "" {
		problems = append(problems, "database path cannot be empty when using sqlite store")
	}
	if c.Store == "mongo" {
		if c.MongoURI == "" {
			problems = append(problems, "MONGODB_URI is required when using mongo store")
		}
		if c.MongoDB == "" {
			problems = append(problems, "MONGODB_DB cannot be empty when using mongo store")
		}
	}

	if c.JWTSecret == "" {
		problems = append(problems, "JWT_SECRET is required")
	} else if c.IsProduction() && c.JWTSecret == DevJWTSecret {
		problems = append(problems, "JWT_SECRET must not be the development secret in production")
	}

	if _, err := c.Location(); err != nil {
		problems = append(problems, fmt.Sprintf("invalid timezone '%s': %v", c.Timezone, err))
	}

	if (c.AdminEmail == "") != (c.AdminPassword == "") {
		problems = append(problems, "ADMIN_EMAIL and ADMIN_PASSWORD must be set together")
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(problems, "\n- "))
	}
	return nil
}
