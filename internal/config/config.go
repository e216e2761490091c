// Package config loads the layered process configuration: struct defaults,
// an optional YAML file and environment variables, in that order.
package config

import (
	"github.com/ZanzyTHEbar/conceptgraph-go/internal/database"
	"github.com/ZanzyTHEbar/conceptgraph-go/internal/insights"
	"github.com/ZanzyTHEbar/conceptgraph-go/internal/logging"
	"github.com/ZanzyTHEbar/conceptgraph-go/internal/metrics"
	"github.com/ZanzyTHEbar/conceptgraph-go/internal/service"
)

// Config is the root configuration.
type Config struct {
	Database  database.Config `koanf:"database"`
	Insights  insights.Config `koanf:"insights"`
	Recommend service.Config  `koanf:"recommend"`
	Server    ServerConfig    `koanf:"server"`
	Logging   logging.Config  `koanf:"logging"`
	Metrics   metrics.Config  `koanf:"metrics"`
}

// ServerConfig selects the MCP transport.
type ServerConfig struct {
	Transport   string `koanf:"transport" validate:"oneof=stdio sse"`
	Addr        string `koanf:"addr" validate:"required_if=Transport sse"`
	SSEEndpoint string `koanf:"sse_endpoint" validate:"required_if=Transport sse"`
}

// defaultConfig returns a Config with every default applied. File and env
// values override it.
func defaultConfig() *Config {
	return &Config{
		Database: database.Config{
			URL: "file:./conceptgraph.db",
		},
		Insights:  insights.DefaultConfig(),
		Recommend: service.DefaultConfig(),
		Server: ServerConfig{
			Transport:   "stdio",
			Addr:        ":8080",
			SSEEndpoint: "/sse",
		},
		Logging: logging.Config{
			Level:  "info",
			Format: "json",
		},
		Metrics: metrics.Config{
			Addr: ":9090",
		},
	}
}
