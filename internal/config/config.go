package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Seed-on-start modes.
const (
	SeedOnStartNever  = "false"
	SeedOnStartAlways = "true"
	SeedOnStartAuto   = "auto"
)

type Config struct {
	// HTTP Server
	Port               string
	CORSAllowedOrigins []string
	RateLimitRPM       int

	// Pagination
	DefaultPerPage int
	MaxPerPage     int

	// Backend selection
	DataBackend string

	// Database
	SQLiteDBPath  string
	PostgresDSN   string
	MongoURI      string
	MongoDatabase string

	// Seeding
	SeedURL     string
	SeedTimeout time.Duration
	SeedOnStart string

	// AMQP, disabled when AMQPURL is empty
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Logging
	LogLevel  string
	LogFormat string
}

func Load() *Config {
	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		RateLimitRPM:       getEnvInt("RATE_LIMIT_RPM", 60),

		DefaultPerPage: getEnvInt("DEFAULT_PER_PAGE", 10),
		MaxPerPage:     getEnvInt("MAX_PER_PAGE", 100),

		DataBackend: getEnv("DATA_BACKEND", "sqlite"),

		SQLiteDBPath:  getEnv("SQLITE_DB_PATH", "./data/transactions.db"),
		PostgresDSN:   getEnv("POSTGRES_DSN", ""),
		MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase: getEnv("MONGO_DATABASE", "mern-challenge"),

		SeedURL:     getEnv("SEED_URL", "https://s3.amazonaws.com/roxiler.com/product_transaction.json"),
		SeedTimeout: getEnvDuration("SEED_TIMEOUT", 30*time.Second),
		SeedOnStart: strings.ToLower(getEnv("SEED_ON_START", SeedOnStartNever)),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "transactions"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "dataset_seeded"),

		LogLevel:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "text")),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	validBackends := []string{"memory", "mongo", "postgres", "sqlite"}
	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	switch c.DataBackend {
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	case "postgres":
		if c.PostgresDSN == "" {
			errors = append(errors, "POSTGRES_DSN is required when using postgres backend")
		}
	case "mongo":
		if u, err := url.Parse(c.MongoURI); err != nil || (u.Scheme != "mongodb" && u.Scheme != "mongodb+srv") {
			errors = append(errors, fmt.Sprintf("invalid Mongo URI '%s': scheme must be 'mongodb' or 'mongodb+srv'", c.MongoURI))
		}
		if c.MongoDatabase == "" {
			errors = append(errors, "MONGO_DATABASE cannot be empty when using mongo backend")
		}
	}

	// Validate seed source
	if u, err := url.Parse(c.SeedURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errors = append(errors, fmt.Sprintf("invalid seed URL '%s': must be an absolute http(s) URL", c.SeedURL))
	}
	if c.SeedTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid seed timeout %v: must be at least 1 second", c.SeedTimeout))
	} else if c.SeedTimeout > 10*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid seed timeout %v: must be at most 10 minutes", c.SeedTimeout))
	}
	if !slices.Contains([]string{SeedOnStartNever, SeedOnStartAlways, SeedOnStartAuto}, c.SeedOnStart) {
		errors = append(errors, fmt.Sprintf("invalid SEED_ON_START '%s': must be false, true or auto", c.SeedOnStart))
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	// Validate pagination
	if c.DefaultPerPage < 1 {
		errors = append(errors, fmt.Sprintf("invalid default per page %d: must be at least 1", c.DefaultPerPage))
	}
	if c.MaxPerPage < c.DefaultPerPage {
		errors = append(errors, fmt.Sprintf("invalid max per page %d: must be at least the default per page %d", c.MaxPerPage, c.DefaultPerPage))
	}

	if c.RateLimitRPM < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitRPM))
	}

	if !slices.Contains([]string{"debug", "info", "warn", "error"}, c.LogLevel) {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be debug, info, warn or error", c.LogLevel))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be text or json", c.LogFormat))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvList splits a comma-separated value, dropping empty entries.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
