package concept

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRelater struct {
	mu      sync.Mutex
	related map[string][]Scored
	calls   []string
	err     error
}

func (f *fakeRelater) RelatedConcepts(_ context.Context, label string, _, limit int) ([]Scored, error) {
	f.mu.Lock()
	f.calls = append(f.calls, label)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	res := f.related[label]
	if limit > 0 && len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

type fakeAnnotator map[string][]Scored

func (f fakeAnnotator) Annotate(_ context.Context, text string) ([]Scored, error) {
	return f[text], nil
}

type fakeViewCounter map[string]uint64

func (f fakeViewCounter) ViewCount(_ context.Context, label string) (uint64, error) {
	v, ok := f[label]
	if !ok {
		return 0, errors.New("no such article")
	}
	return v, nil
}

func newFakeRelater() *fakeRelater {
	return &fakeRelater{related: map[string][]Scored{
		"Go": {
			{"Go", 1.0},
			{"Concurrency", 0.8},
			{"Google", 0.6},
		},
		"Concurrency": {
			{"Parallel computing", 0.7},
			{"Go", 0.8},
		},
		"Google": {
			{"Alphabet Inc.", 0.9},
		},
		"Rust": {
			{"Mozilla", 0.5},
		},
	}}
}

func TestAugmentBuildsStarWithoutSelfLoop(t *testing.T) {
	m := New()
	r := newFakeRelater()

	require.NoError(t, m.Augment(context.Background(), r, "Go", 0, 10))

	assert.Equal(t, []string{"Concurrency", "Go", "Google"}, m.Concepts())
	for _, e := range m.Edges() {
		assert.NotEqual(t, e.Source, e.Target)
	}
	nbrs, err := m.Neighborhood("Go")
	require.NoError(t, err)
	assert.Equal(t, []Neighbor{{"Concurrency", 0.8}, {"Google", 0.6}}, nbrs)
}

func TestAugmentKeepsExistingProperties(t *testing.T) {
	m := New()
	withRelevance(t, m, "Go", 0.7)
	withRelevance(t, m, "Google", 0.3)

	require.NoError(t, m.Augment(context.Background(), newFakeRelater(), "Go", 0, 10))

	assert.Equal(t, 0.7, relevanceOf(t, m, "Go"))
	assert.Equal(t, 0.3, relevanceOf(t, m, "Google"))
	n, err := m.Node("Concurrency")
	require.NoError(t, err)
	assert.False(t, n.HasRelevance())
}

func TestAugmentRespectsLimit(t *testing.T) {
	m := New()
	require.NoError(t, m.Augment(context.Background(), newFakeRelater(), "Go", 0, 2))
	// the self entry uses one of the two slots
	assert.Equal(t, []string{"Concurrency", "Go"}, m.Concepts())
}

func TestAbridgeInvertsAugment(t *testing.T) {
	ctx := context.Background()
	r := newFakeRelater()
	m := New()
	withRelevance(t, m, "Python", 0.5)
	before := m.Copy()

	require.NoError(t, m.Augment(ctx, r, "Rust", 0, 10))
	assert.Equal(t, []string{"Mozilla", "Python", "Rust"}, m.Concepts())

	require.NoError(t, m.Abridge(ctx, r, "Rust", 0, 10))
	assert.True(t, m.Equal(before))
}

func TestExplode(t *testing.T) {
	for _, parallelism := range []int{0, 1, 4} {
		m := New("Go", "Rust")
		r := newFakeRelater()

		require.NoError(t, m.Explode(context.Background(), r, 0, 10, WithParallelism(parallelism)))

		assert.ElementsMatch(t, []string{"Go", "Rust"}, r.calls)
		assert.Equal(t, []string{"Concurrency", "Go", "Google", "Mozilla", "Rust"}, m.Concepts())
		assert.Len(t, m.Edges(), 3)
	}
}

func TestExpandOnlyTouchesSparseVertices(t *testing.T) {
	m := New()
	require.NoError(t, m.SetEdge("Go", "Concurrency", 0.8))
	require.NoError(t, m.SetEdge("Go", "Google", 0.6))
	r := newFakeRelater()

	require.NoError(t, m.Expand(context.Background(), r, 0, 10, 1))

	assert.ElementsMatch(t, []string{"Concurrency", "Google"}, r.calls)
	assert.True(t, m.Contains("Parallel computing"))
	assert.True(t, m.Contains("Alphabet Inc."))
}

func TestExplodePropagatesFailure(t *testing.T) {
	m := New("Go")
	boom := errors.New("service unavailable")
	r := &fakeRelater{err: boom}

	err := m.Explode(context.Background(), r, 0, 10)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"Go"}, m.Concepts())
}

func TestSetViewCounts(t *testing.T) {
	m := New("Go", "Rust")
	require.NoError(t, m.SetViewCounts(context.Background(), fakeViewCounter{"Go": 120, "Rust": 80}))
	counts, err := m.ConceptsByViewCount()
	require.NoError(t, err)
	assert.Equal(t, []ViewCount{{"Go", 120}, {"Rust", 80}}, counts)

	m.Add("Zig")
	assert.Error(t, m.SetViewCounts(context.Background(), fakeViewCounter{"Go": 1, "Rust": 1}))
}

func TestConceptualizeAndFromText(t *testing.T) {
	ctx := context.Background()
	ann := fakeAnnotator{
		"gophers writing servers": {{"Go", 0.9}, {"Server", 0.4}},
	}

	label, ok, err := Conceptualize(ctx, ann, "gophers writing servers")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Go", label)

	_, ok, err = Conceptualize(ctx, ann, "nothing here")
	require.NoError(t, err)
	assert.False(t, ok)

	m, err := FromText(ctx, ann, "gophers writing servers")
	require.NoError(t, err)
	assert.Equal(t, []Relevance{{"Go", 0.9}, {"Server", 0.4}}, m.Relevancies())

	empty, err := FromText(ctx, nil, "")
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Len())
}
