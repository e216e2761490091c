package database

import (
	"os"
)

// Config holds the database configuration
type Config struct {
	URL       string `koanf:"url" validate:"required"`
	AuthToken string `koanf:"auth_token"`
	// connection pool tuning, zero keeps the driver default
	MaxOpenConns   int `koanf:"max_open_conns" validate:"gte=0"`
	MaxIdleConns   int `koanf:"max_idle_conns" validate:"gte=0"`
	ConnMaxIdleSec int `koanf:"conn_max_idle_sec" validate:"gte=0"`
	ConnMaxLifeSec int `koanf:"conn_max_life_sec" validate:"gte=0"`
}

// NewConfig creates a new Config from environment variables
func NewConfig() *Config {
	url := os.Getenv("LIBSQL_URL")
	if url == "" {
		url = "file:./conceptgraph.db"
	}

	authToken := os.Getenv("LIBSQL_AUTH_TOKEN")

	return &Config{
		URL:       url,
		AuthToken: authToken,
	}
}
