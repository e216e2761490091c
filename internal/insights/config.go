package insights

import (
	"time"

	"github.com/ZanzyTHEbar/conceptgraph-go/internal/concept"
)

// Config configures the concept service collaborators.
type Config struct {
	BaseURL string `koanf:"base_url" validate:"omitempty,url"`
	// Graph is the concept graph to query, e.g. wikipedia/en-20120601
	Graph string `koanf:"graph"`
	// Token is an opaque access token forwarded on every call
	Token   string        `koanf:"token"`
	Timeout time.Duration `koanf:"timeout" validate:"gte=0"`
	// RequestsPerSecond throttles outbound calls; 0 disables throttling
	RequestsPerSecond float64 `koanf:"requests_per_second" validate:"gte=0"`
	Burst             int     `koanf:"burst" validate:"gte=0"`

	PageviewsURL     string `koanf:"pageviews_url" validate:"omitempty,url"`
	PageviewsProject string `koanf:"pageviews_project"`
	PageviewsDays    int    `koanf:"pageviews_days" validate:"gte=0"`

	// OfflineFixture, when set, serves every collaborator from a local file
	OfflineFixture string `koanf:"offline_fixture"`
}

// DefaultConfig returns the public endpoints and conservative limits.
func DefaultConfig() Config {
	return Config{
		BaseURL:           "https://gateway.watsonplatform.net/concept-insights/api",
		Graph:             "wikipedia/en-20120601",
		Timeout:           15 * time.Second,
		RequestsPerSecond: 5,
		Burst:             5,
		PageviewsURL:      "https://wikimedia.org/api/rest_v1",
		PageviewsProject:  "en.wikipedia",
		PageviewsDays:     30,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.BaseURL == "" {
		c.BaseURL = d.BaseURL
	}
	if c.Graph == "" {
		c.Graph = d.Graph
	}
	if c.Timeout == 0 {
		c.Timeout = d.Timeout
	}
	if c.PageviewsURL == "" {
		c.PageviewsURL = d.PageviewsURL
	}
	if c.PageviewsProject == "" {
		c.PageviewsProject = d.PageviewsProject
	}
	if c.PageviewsDays == 0 {
		c.PageviewsDays = d.PageviewsDays
	}
	return c
}

// Collaborators bundles the three external capabilities the core consumes.
type Collaborators struct {
	Annotator   concept.Annotator
	Relater     concept.Relater
	ViewCounter concept.ViewCounter
}

// New builds the collaborators described by cfg. With an offline fixture
// every capability is served from that file; otherwise the HTTP clients are
// used.
func New(cfg Config) (*Collaborators, error) {
	if cfg.OfflineFixture != "" {
		off, err := LoadOffline(cfg.OfflineFixture)
		if err != nil {
			return nil, err
		}
		return &Collaborators{Annotator: off, Relater: off, ViewCounter: off}, nil
	}
	client := NewClient(cfg)
	return &Collaborators{
		Annotator:   client,
		Relater:     client,
		ViewCounter: NewPageviewsClient(cfg),
	}, nil
}
