package recommend

import (
	"context"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/conceptgraph-go/internal/concept"
)

type stubAnnotator map[string][]concept.Scored

func (s stubAnnotator) Annotate(_ context.Context, text string) ([]concept.Scored, error) {
	return s[text], nil
}

type stubRelater map[string][]concept.Scored

func (s stubRelater) RelatedConcepts(_ context.Context, label string, _, _ int) ([]concept.Scored, error) {
	return s[label], nil
}

func modelOf(t *testing.T, relevances map[string]float64) *concept.Model {
	t.Helper()
	m := concept.New()
	for c, r := range relevances {
		n, err := concept.NewNode(c, map[string]any{concept.PropRelevance: r})
		require.NoError(t, err)
		m.AddNode(n)
	}
	return m
}

func userWith(t *testing.T, relevances map[string]float64) *User {
	u := NewUser("u1", "secret")
	u.Model = modelOf(t, relevances)
	return u
}

func itemWith(t *testing.T, name string, relevances map[string]float64) *Item {
	return &Item{Name: name, Model: modelOf(t, relevances)}
}

func relevance(t *testing.T, m *concept.Model, c string) float64 {
	t.Helper()
	n, err := m.Node(c)
	require.NoError(t, err)
	r, err := n.Relevance()
	require.NoError(t, err)
	return r
}

func TestInterestInSumsReconciledRelevance(t *testing.T) {
	u := userWith(t, map[string]float64{"X": 0.2, "Y": 0.6, "Z": 0.9})
	item := itemWith(t, "talk", map[string]float64{"X": 0.8, "Y": 0.4, "W": 1.0})

	score, err := u.InterestIn(item)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, score, 1e-9)
	assert.InDelta(t, 0.5, relevance(t, u.Model, "X"), 1e-9)
	assert.InDelta(t, 0.5, relevance(t, item.Model, "X"), 1e-9)
	assert.InDelta(t, 0.9, relevance(t, u.Model, "Z"), 1e-9)

	none, err := u.InterestIn(itemWith(t, "other", map[string]float64{"Q": 1}))
	require.NoError(t, err)
	assert.Zero(t, none)
}

func TestBestItemTieFavorsLater(t *testing.T) {
	u := userWith(t, map[string]float64{"X": 0.5, "Y": 0.5})
	first := itemWith(t, "first", map[string]float64{"X": 0.5})
	second := itemWith(t, "second", map[string]float64{"Y": 0.5})

	best, score, err := u.BestItem([]*Item{first, second})
	require.NoError(t, err)
	require.NotNil(t, best)
	assert.Equal(t, "second", best.Name)
	assert.InDelta(t, 0.5, score, 1e-9)
}

func TestBestItemPicksHighestAndSkipsExceptions(t *testing.T) {
	u := userWith(t, map[string]float64{"X": 0.9, "Y": 0.3})
	strong := itemWith(t, "strong", map[string]float64{"X": 0.9})
	weak := itemWith(t, "weak", map[string]float64{"Y": 0.3})

	best, _, err := u.BestItem([]*Item{strong, weak})
	require.NoError(t, err)
	assert.Equal(t, "strong", best.Name)

	u.Exceptions.Add("strong")
	best, _, err = u.BestItem([]*Item{strong, weak})
	require.NoError(t, err)
	assert.Equal(t, "weak", best.Name)

	u.Exceptions.Add("weak")
	best, _, err = u.BestItem([]*Item{strong, weak})
	require.NoError(t, err)
	assert.Nil(t, best)
}

func TestExpressInterestBoost(t *testing.T) {
	u := userWith(t, map[string]float64{"X": 0.5})
	item := itemWith(t, "talk", map[string]float64{"X": 0.5})

	require.NoError(t, u.ExpressInterest(item))
	assert.InDelta(t, 0.6, relevance(t, u.Model, "X"), 1e-9)
	// the item keeps its own relevance
	assert.InDelta(t, 0.5, relevance(t, item.Model, "X"), 1e-9)
	assert.True(t, u.Exceptions.Contains("talk"))
}

func TestExpressInterestBoostIsCapped(t *testing.T) {
	u := userWith(t, map[string]float64{"X": 0.95})
	require.NoError(t, u.ExpressInterest(itemWith(t, "talk", map[string]float64{"X": 1.0})))
	assert.Equal(t, 1.0, relevance(t, u.Model, "X"))
}

func TestExpressInterestDecayAndPrune(t *testing.T) {
	u := userWith(t, map[string]float64{"X": 0.5, "Y": 0.5})
	require.NoError(t, u.ExpressInterest(itemWith(t, "a", map[string]float64{"X": 0.5})))
	assert.InDelta(t, 0.45, relevance(t, u.Model, "Y"), 1e-9)

	u = userWith(t, map[string]float64{"X": 0.5, "Y": 0.2})
	require.NoError(t, u.ExpressInterest(itemWith(t, "a", map[string]float64{"X": 0.5})))
	assert.False(t, u.Model.Contains("Y"))
	assert.True(t, u.Model.Contains("X"))
}

func TestExpressInterestMergesNewConcepts(t *testing.T) {
	u := userWith(t, map[string]float64{"X": 0.5})
	item := itemWith(t, "talk", map[string]float64{"X": 0.5, "New": 0.7, "Faint": 0.1})
	require.NoError(t, item.Model.SetEdge("X", "New", 0.4))

	require.NoError(t, u.ExpressInterest(item))
	assert.Equal(t, []string{"New", "X"}, u.Model.Concepts())
	assert.InDelta(t, 0.7, relevance(t, u.Model, "New"), 1e-9)
	w, ok := u.Model.Weight("X", "New")
	require.True(t, ok)
	assert.Equal(t, 0.4, w)
}

func TestExpressInterestMissingRelevanceLeavesUserUntouched(t *testing.T) {
	u := userWith(t, map[string]float64{"X": 0.5, "Y": 0.5})
	item := &Item{Name: "bare", Model: concept.New("X")}

	err := u.ExpressInterest(item)
	assert.ErrorIs(t, err, concept.ErrPropertyNotFound)
	assert.Equal(t, 0.5, relevance(t, u.Model, "Y"))
	assert.False(t, u.Exceptions.Contains("bare"))
}

func TestExpressDisinterest(t *testing.T) {
	u := userWith(t, map[string]float64{"X": 0.8, "Y": 0.25, "Z": 0.5})
	item := itemWith(t, "boring", map[string]float64{"X": 0.1, "Y": 0.1, "New": 0.9})

	require.NoError(t, u.ExpressDisinterest(item))
	assert.InDelta(t, 0.6, relevance(t, u.Model, "X"), 1e-9)
	assert.False(t, u.Model.Contains("Y"))
	assert.Equal(t, 0.5, relevance(t, u.Model, "Z"))
	assert.False(t, u.Model.Contains("New"))
	assert.True(t, u.Exceptions.Contains("boring"))
}

func TestInputInterest(t *testing.T) {
	ctx := context.Background()
	ann := stubAnnotator{"i love gophers": {{Concept: "Go", Score: 0.9}, {Concept: "Gopher", Score: 0.3}}}
	rel := stubRelater{"Go": {{Concept: "Go", Score: 1}, {Concept: "Concurrency", Score: 0.8}, {Concept: "Google", Score: 0.6}}}

	u := userWith(t, map[string]float64{"Google": 0.2, "Cooking": 0.7})
	require.NoError(t, u.InputInterest(ctx, ann, rel, "i love gophers", 0, 10))

	assert.Equal(t, 1.0, relevance(t, u.Model, "Go"))
	assert.Equal(t, 0.8, relevance(t, u.Model, "Concurrency"))
	assert.Equal(t, 0.6, relevance(t, u.Model, "Google"))
	assert.Equal(t, 0.7, relevance(t, u.Model, "Cooking"))
	assert.False(t, u.Model.Contains("Gopher"))
	for _, e := range u.Model.Edges() {
		assert.NotEqual(t, e.Source, e.Target)
	}
}

func TestInputInterestsNoMatchIsNoop(t *testing.T) {
	ctx := context.Background()
	ann := stubAnnotator{"rust": {{Concept: "Rust", Score: 0.9}}}
	rel := stubRelater{}

	u := userWith(t, map[string]float64{"X": 0.5})
	require.NoError(t, u.InputInterests(ctx, ann, rel, []string{"???", "rust"}, 0, 5))
	assert.Equal(t, []string{"Rust", "X"}, u.Model.Concepts())
}

func TestUserJSONRoundTrip(t *testing.T) {
	u := userWith(t, map[string]float64{"X": 0.5, "Y": 0.75})
	require.NoError(t, u.Model.SetEdge("X", "Y", 0.3))
	u.Exceptions.Append("b-talk", "a-talk")

	data, err := json.Marshal(u)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, []any{"a-talk", "b-talk"}, raw["exceptions"])
	assert.Equal(t, "secret", raw["password"])

	var decoded User
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "u1", decoded.ID)
	assert.True(t, decoded.Model.Equal(u.Model))
	assert.True(t, decoded.Exceptions.Equal(u.Exceptions))
	assert.Equal(t, DefaultPolicy(), decoded.Policy)

	var missing User
	assert.ErrorIs(t, missing.UnmarshalJSON([]byte(`{"password": "x"}`)), ErrMalformedRecord)
}
