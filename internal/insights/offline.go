package insights

import (
	"cmp"
	"context"
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ZanzyTHEbar/conceptgraph-go/internal/concept"
)

// Fixture is the file format of the offline collaborator. JSON files are
// accepted as well since they are valid YAML.
//
//	annotations:
//	  gopher: [{concept: Go (programming language), score: 0.9}]
//	related:
//	  Go (programming language): [{concept: Concurrency (computer science), score: 0.8}]
//	view_counts:
//	  Go (programming language): 5400
type Fixture struct {
	// Annotations maps a phrase to the concepts it identifies
	Annotations map[string][]concept.Scored `yaml:"annotations"`
	Related     map[string][]concept.Scored `yaml:"related"`
	ViewCounts  map[string]uint64           `yaml:"view_counts"`
}

// Offline serves the collaborator interfaces from an in-memory fixture. It is
// used for demos, integration runs and tests.
type Offline struct {
	fx Fixture
}

var (
	_ concept.Annotator   = (*Offline)(nil)
	_ concept.Relater     = (*Offline)(nil)
	_ concept.ViewCounter = (*Offline)(nil)
)

// NewOffline serves lookups from fx.
func NewOffline(fx Fixture) *Offline {
	return &Offline{fx: fx}
}

// LoadOffline reads a fixture file.
func LoadOffline(path string) (*Offline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture: %w", err)
	}
	var fx Fixture
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return nil, fmt.Errorf("failed to parse fixture %s: %w", path, err)
	}
	return NewOffline(fx), nil
}

// Annotate returns the concepts of every fixture phrase found in text,
// case-insensitively, ordered by where the phrase first occurs. A concept is
// reported once.
func (o *Offline) Annotate(_ context.Context, text string) ([]concept.Scored, error) {
	lower := strings.ToLower(text)
	type hit struct {
		pos    int
		phrase string
	}
	var hits []hit
	for phrase := range o.fx.Annotations {
		if phrase == "" {
			continue
		}
		if i := strings.Index(lower, strings.ToLower(phrase)); i >= 0 {
			hits = append(hits, hit{pos: i, phrase: phrase})
		}
	}
	slices.SortFunc(hits, func(a, b hit) int {
		if c := cmp.Compare(a.pos, b.pos); c != 0 {
			return c
		}
		return cmp.Compare(a.phrase, b.phrase)
	})

	seen := make(map[string]bool)
	out := []concept.Scored{}
	for _, h := range hits {
		for _, s := range o.fx.Annotations[h.phrase] {
			if !seen[s.Concept] {
				seen[s.Concept] = true
				out = append(out, s)
			}
		}
	}
	return out, nil
}

// RelatedConcepts returns the fixture list for label truncated to limit.
// level is ignored.
func (o *Offline) RelatedConcepts(_ context.Context, label string, _, limit int) ([]concept.Scored, error) {
	related := o.fx.Related[label]
	if limit >= 0 && len(related) > limit {
		related = related[:limit]
	}
	return slices.Clone(related), nil
}

// ViewCount returns the fixture count for label, 0 when unknown.
func (o *Offline) ViewCount(_ context.Context, label string) (uint64, error) {
	return o.fx.ViewCounts[label], nil
}
