package concept

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// ExpandOption tunes Explode and Expand.
type ExpandOption func(*expandOptions)

type expandOptions struct {
	parallelism int
}

// WithParallelism bounds how many relatedness lookups run at once. Values
// below 1 mean one at a time.
func WithParallelism(n int) ExpandOption {
	return func(o *expandOptions) { o.parallelism = n }
}

// Augment adds the one-hop star of concept to the model. The star links
// concept to every related concept returned by r, weighted by the returned
// score; self-referential results are skipped. concept is added first when
// absent.
func (m *Model) Augment(ctx context.Context, r Relater, concept string, level, limit int) error {
	related, err := r.RelatedConcepts(ctx, concept, level, limit)
	if err != nil {
		return fmt.Errorf("failed to fetch concepts related to %q: %w", concept, err)
	}
	m.Add(concept)
	m.MergeWith(m.star(concept, related))
	return nil
}

// Abridge removes every vertex that Augment would add for concept, including
// concept itself. Vertices of the star that are not in the model are ignored.
func (m *Model) Abridge(ctx context.Context, r Relater, concept string, level, limit int) error {
	related, err := r.RelatedConcepts(ctx, concept, level, limit)
	if err != nil {
		return fmt.Errorf("failed to fetch concepts related to %q: %w", concept, err)
	}
	for _, c := range m.star(concept, related).Concepts() {
		if m.Contains(c) {
			if err := m.Remove(c); err != nil {
				return err
			}
		}
	}
	return nil
}

// Explode augments every vertex currently in the model. It makes one
// relatedness call per vertex.
func (m *Model) Explode(ctx context.Context, r Relater, level, limit int, opts ...ExpandOption) error {
	return m.augmentAll(ctx, r, m.Concepts(), level, limit, opts)
}

// Expand augments only the vertices whose degree is at most degreeThreshold.
func (m *Model) Expand(ctx context.Context, r Relater, level, limit, degreeThreshold int, opts ...ExpandOption) error {
	var targets []string
	for _, c := range m.Concepts() {
		if m.Degree(c) <= degreeThreshold {
			targets = append(targets, c)
		}
	}
	return m.augmentAll(ctx, r, targets, level, limit, opts)
}

// augmentAll fetches the stars for targets concurrently and merges them one
// at a time in target order.
func (m *Model) augmentAll(ctx context.Context, r Relater, targets []string, level, limit int, opts []ExpandOption) error {
	o := expandOptions{parallelism: 1}
	for _, opt := range opts {
		opt(&o)
	}
	if o.parallelism < 1 {
		o.parallelism = 1
	}

	related := make([][]Scored, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.parallelism)
	for i, c := range targets {
		g.Go(func() error {
			res, err := r.RelatedConcepts(gctx, c, level, limit)
			if err != nil {
				return fmt.Errorf("failed to fetch concepts related to %q: %w", c, err)
			}
			related[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, c := range targets {
		m.Add(c)
		m.MergeWith(m.star(c, related[i]))
	}
	return nil
}

// star builds the one-hop star for concept. Vertices already present in m are
// seeded with their current properties so that merging the star does not
// reset them.
func (m *Model) star(concept string, related []Scored) *Model {
	s := New()
	s.AddNode(m.seed(concept))
	for _, rc := range related {
		if rc.Concept == "" || rc.Concept == concept {
			continue
		}
		if !s.Contains(rc.Concept) {
			s.AddNode(m.seed(rc.Concept))
		}
		// endpoints differ, so this cannot fail
		_ = s.SetEdge(concept, rc.Concept, rc.Score)
	}
	return s
}

func (m *Model) seed(concept string) *Node {
	if n, ok := m.nodes[concept]; ok {
		return n.Clone()
	}
	return &Node{Concept: concept}
}

// SetViewCounts fetches and stores the view count of every vertex.
func (m *Model) SetViewCounts(ctx context.Context, vc ViewCounter) error {
	for _, n := range m.Nodes() {
		v, err := vc.ViewCount(ctx, n.Concept)
		if err != nil {
			return fmt.Errorf("failed to fetch view count for %q: %w", n.Concept, err)
		}
		n.SetViewCount(v)
	}
	return nil
}

// Conceptualize resolves text to its best matching concept, the first
// annotation returned. ok is false when nothing matched.
func Conceptualize(ctx context.Context, a Annotator, text string) (label string, ok bool, err error) {
	annotations, err := a.Annotate(ctx, text)
	if err != nil {
		return "", false, fmt.Errorf("failed to annotate text: %w", err)
	}
	if len(annotations) == 0 {
		return "", false, nil
	}
	return annotations[0].Concept, true, nil
}

// FromText builds a model from the annotations of text. Every vertex carries
// its annotation score as relevance. Empty text yields an empty model without
// calling a.
func FromText(ctx context.Context, a Annotator, text string) (*Model, error) {
	m := New()
	if text == "" {
		return m, nil
	}
	annotations, err := a.Annotate(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to annotate text: %w", err)
	}
	for _, an := range annotations {
		if an.Concept == "" {
			continue
		}
		n := &Node{Concept: an.Concept}
		n.SetRelevance(an.Score)
		m.AddNode(n)
	}
	return m, nil
}
