package backend

import (
	"fmt"
	"strings"

	"transactions/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	return Config{
		Type: backendType,

		SQLiteDBPath:  appConfig.SQLiteDBPath,
		PostgresDSN:   appConfig.PostgresDSN,
		MongoURI:      appConfig.MongoURI,
		MongoDatabase: appConfig.MongoDatabase,

		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
		AMQPQueue:    appConfig.AMQPQueue,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s (want one of %s)", c.Type, strings.Join(GetBackendTypeStrings(), ", "))
	}

	switch c.Type {
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}
	case PostgresBackend:
		if c.PostgresDSN == "" {
			return fmt.Errorf("Postgres DSN is required for postgres backend")
		}
	case MongoBackend:
		if c.MongoURI == "" {
			return fmt.Errorf("Mongo URI is required for mongo backend")
		}
		if c.MongoDatabase == "" {
			return fmt.Errorf("Mongo database name is required for mongo backend")
		}
	case MemoryBackend:
		// nothing to configure
	}

	if c.AMQPURL != "" && (c.AMQPExchange == "" || c.AMQPQueue == "") {
		return fmt.Errorf("AMQP exchange and queue are required when AMQP is enabled")
	}

	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{SQLiteBackend, PostgresBackend, MongoBackend, MemoryBackend}
}

// GetBackendTypeStrings returns all valid backend type strings
func GetBackendTypeStrings() []string {
	types := GetBackendTypes()
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = t.String()
	}
	return out
}
