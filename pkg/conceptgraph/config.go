package conceptgraph

import (
	"time"

	"github.com/ZanzyTHEbar/conceptgraph-go/internal/database"
	"github.com/ZanzyTHEbar/conceptgraph-go/internal/insights"
	"github.com/ZanzyTHEbar/conceptgraph-go/internal/service"
)

// Config exposes a stable wrapper for configuration in package mode.
// Zero values fall back to the server defaults.
type Config struct {
	URL            string
	AuthToken      string
	MaxOpenConns   int
	MaxIdleConns   int
	ConnMaxIdleSec int
	ConnMaxLifeSec int

	InsightsURL   string
	InsightsGraph string
	InsightsToken string
	Timeout       time.Duration
	// OfflineFixture serves annotation, relatedness and view counts from a
	// YAML or JSON file instead of the HTTP services
	OfflineFixture string

	Level            int
	Limit            int
	Parallelism      int
	AnnotationScores bool
}

func (c *Config) toDatabase() *database.Config {
	url := c.URL
	if url == "" {
		url = database.NewConfig().URL
	}
	return &database.Config{
		URL:            url,
		AuthToken:      c.AuthToken,
		MaxOpenConns:   c.MaxOpenConns,
		MaxIdleConns:   c.MaxIdleConns,
		ConnMaxIdleSec: c.ConnMaxIdleSec,
		ConnMaxLifeSec: c.ConnMaxLifeSec,
	}
}

func (c *Config) toInsights() insights.Config {
	cfg := insights.DefaultConfig()
	if c.InsightsURL != "" {
		cfg.BaseURL = c.InsightsURL
	}
	if c.InsightsGraph != "" {
		cfg.Graph = c.InsightsGraph
	}
	if c.Timeout > 0 {
		cfg.Timeout = c.Timeout
	}
	cfg.Token = c.InsightsToken
	cfg.OfflineFixture = c.OfflineFixture
	return cfg
}

func (c *Config) toService() service.Config {
	cfg := service.DefaultConfig()
	cfg.Level = c.Level
	if c.Limit > 0 {
		cfg.Limit = c.Limit
	}
	if c.Parallelism > 0 {
		cfg.ExplodeParallelism = c.Parallelism
	}
	cfg.AnnotationScores = c.AnnotationScores
	return cfg
}
