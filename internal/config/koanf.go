package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths searched for a config file, first match wins.
var DefaultConfigPaths = []string{
	"conceptgraph.yaml",
	"conceptgraph.yml",
	"/etc/conceptgraph/config.yaml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// envMappings maps environment variables (lowercased) to config keys.
// Unmapped variables are ignored.
var envMappings = map[string]string{
	"libsql_url":               "database.url",
	"libsql_auth_token":        "database.auth_token",
	"db_max_open_conns":        "database.max_open_conns",
	"db_max_idle_conns":        "database.max_idle_conns",
	"db_conn_max_idle_sec":     "database.conn_max_idle_sec",
	"db_conn_max_lifetime_sec": "database.conn_max_life_sec",

	"concept_insights_url":     "insights.base_url",
	"concept_insights_graph":   "insights.graph",
	"concept_insights_token":   "insights.token",
	"concept_insights_timeout": "insights.timeout",
	"concept_insights_rps":     "insights.requests_per_second",
	"concept_insights_burst":   "insights.burst",
	"pageviews_url":            "insights.pageviews_url",
	"pageviews_project":        "insights.pageviews_project",
	"pageviews_days":           "insights.pageviews_days",
	"offline_fixture":          "insights.offline_fixture",

	"recommend_level":             "recommend.level",
	"recommend_limit":             "recommend.limit",
	"recommend_parallelism":       "recommend.explode_parallelism",
	"recommend_annotation_scores": "recommend.annotation_scores",
	"recommend_boost":             "recommend.policy.boost",
	"recommend_decay":             "recommend.policy.decay",
	"recommend_disinterest":       "recommend.policy.disinterest",
	"recommend_prune_threshold":   "recommend.policy.prune_threshold",

	"transport":    "server.transport",
	"addr":         "server.addr",
	"sse_endpoint": "server.sse_endpoint",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	"metrics_prometheus": "metrics.prometheus",
	"metrics_addr":       "metrics.addr",
}

// Load builds the configuration from defaults, the config file (if any) and
// the environment, then validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks field constraints declared in validate tags.
func (c *Config) Validate() error {
	return validator.New(validator.WithRequiredStructEnabled()).Struct(c)
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
