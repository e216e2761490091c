package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/conceptgraph-go/internal/concept"
	"github.com/ZanzyTHEbar/conceptgraph-go/internal/database"
	"github.com/ZanzyTHEbar/conceptgraph-go/internal/insights"
	"github.com/ZanzyTHEbar/conceptgraph-go/internal/recommend"
)

var testFixture = insights.Fixture{
	Annotations: map[string][]concept.Scored{
		"gopher":      {{Concept: "Go", Score: 0.9}},
		"concurrency": {{Concept: "Concurrency", Score: 0.7}},
		"chess":       {{Concept: "Chess", Score: 0.8}},
	},
	Related: map[string][]concept.Scored{
		"Go":    {{Concept: "Go", Score: 1}, {Concept: "Concurrency", Score: 0.8}, {Concept: "Google", Score: 0.5}},
		"Chess": {{Concept: "Chess", Score: 1}, {Concept: "Board game", Score: 0.6}},
	},
	ViewCounts: map[string]uint64{"Go": 5400, "Concurrency": 900, "Google": 100000},
}

func newTestRecommender(t *testing.T, cfg Config) *Recommender {
	t.Helper()
	dbCfg := database.NewConfig()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dbCfg.URL = "file:svc_" + name + "?mode=memory&cache=shared"
	db, err := database.NewDBManager(dbCfg)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, db.Close()) })

	off := insights.NewOffline(testFixture)
	return New(db, &insights.Collaborators{Annotator: off, Relater: off, ViewCounter: off}, cfg)
}

func relevanceOf(t *testing.T, interests []concept.Relevance, c string) float64 {
	t.Helper()
	for _, r := range interests {
		if r.Concept == c {
			return r.Relevance
		}
	}
	t.Fatalf("concept %q not among interests %v", c, interests)
	return 0
}

func TestAddItem(t *testing.T) {
	r := newTestRecommender(t, DefaultConfig())
	ctx := context.Background()

	item, err := r.AddItem(ctx, ItemInput{
		Name:        "gophercon",
		Description: "A gopher conference about concurrency",
		Fields:      map[string]any{"track": "systems"},
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Go", "Concurrency"}, item.Concepts())

	stored, err := r.GetItem(ctx, "gophercon")
	require.NoError(t, err)
	rels, err := stored.Relevancies()
	require.NoError(t, err)
	for _, rel := range rels {
		assert.Zero(t, rel.Relevance)
	}
	assert.Equal(t, "systems", stored.Fields["track"])

	_, err = r.AddItem(ctx, ItemInput{Name: " "})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestAddEventWithScores(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AnnotationScores = true
	r := newTestRecommender(t, cfg)
	ctx := context.Background()

	start := time.Date(2025, 8, 26, 9, 0, 0, 0, time.UTC)
	_, err := r.AddItem(ctx, ItemInput{
		Name:        "chess-night",
		Description: "Chess for everyone",
		Event:       &recommend.Event{StartTime: start, Location: "Library"},
	})
	require.NoError(t, err)

	stored, err := r.GetItem(ctx, "chess-night")
	require.NoError(t, err)
	rels, err := stored.Relevancies()
	require.NoError(t, err)
	assert.Equal(t, []concept.Relevance{{Concept: "Chess", Relevance: 0.8}}, rels)

	ev, ok, err := recommend.EventOf(stored)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, start.Equal(ev.StartTime))
	assert.Equal(t, "Library", ev.Location)
}

func TestRegisterUser(t *testing.T) {
	r := newTestRecommender(t, DefaultConfig())
	ctx := context.Background()

	u, err := r.RegisterUser(ctx, "alice", "pw")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.ID)

	_, err = r.RegisterUser(ctx, "alice", "other")
	assert.ErrorIs(t, err, ErrUserExists)

	anon, err := r.RegisterUser(ctx, "", "")
	require.NoError(t, err)
	_, err = uuid.Parse(anon.ID)
	assert.NoError(t, err)

	ids, err := r.Users(ctx)
	require.NoError(t, err)
	assert.Len(t, ids, 2)

	require.NoError(t, r.DeleteUser(ctx, "alice"))
	_, err = r.UserInterests(ctx, "alice")
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestInterestWorkflow(t *testing.T) {
	r := newTestRecommender(t, DefaultConfig())
	ctx := context.Background()

	_, err := r.AddItem(ctx, ItemInput{Name: "gophercon", Description: "A gopher conference about concurrency"})
	require.NoError(t, err)
	_, err = r.AddItem(ctx, ItemInput{Name: "chess-club", Description: "chess nights"})
	require.NoError(t, err)
	_, err = r.RegisterUser(ctx, "alice", "")
	require.NoError(t, err)

	interests, err := r.InputInterests(ctx, "alice", []string{"I am a gopher", "nothing matches here"})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, relevanceOf(t, interests, "Go"), 1e-9)
	assert.InDelta(t, 0.8, relevanceOf(t, interests, "Concurrency"), 1e-9)
	assert.InDelta(t, 0.5, relevanceOf(t, interests, "Google"), 1e-9)

	rec, err := r.Recommend(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, rec.Item)
	assert.Equal(t, "gophercon", rec.Item.Name)
	assert.InDelta(t, 0.9, rec.Score, 1e-9)

	// scoring does not persist the reconciled relevances
	interests, err = r.UserInterests(ctx, "alice")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, relevanceOf(t, interests, "Go"), 1e-9)

	interests, err = r.ExpressInterest(ctx, "alice", "gophercon")
	require.NoError(t, err)
	assert.InDelta(t, 0.6, relevanceOf(t, interests, "Go"), 1e-9)
	assert.InDelta(t, 0.48, relevanceOf(t, interests, "Concurrency"), 1e-9)
	assert.InDelta(t, 0.45, relevanceOf(t, interests, "Google"), 1e-9)

	// the liked item is now an exception and chess shares nothing
	rec, err = r.Recommend(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, rec.Item)

	_, err = r.ExpressInterest(ctx, "alice", "missing")
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestDisinterestWorkflow(t *testing.T) {
	r := newTestRecommender(t, DefaultConfig())
	ctx := context.Background()

	_, err := r.AddItem(ctx, ItemInput{Name: "chess-club", Description: "chess nights"})
	require.NoError(t, err)
	_, err = r.RegisterUser(ctx, "bob", "")
	require.NoError(t, err)
	_, err = r.InputInterests(ctx, "bob", []string{"chess"})
	require.NoError(t, err)

	interests, err := r.ExpressDisinterest(ctx, "bob", "chess-club")
	require.NoError(t, err)
	assert.InDelta(t, 0.75, relevanceOf(t, interests, "Chess"), 1e-9)
	assert.InDelta(t, 0.6, relevanceOf(t, interests, "Board game"), 1e-9)

	_, err = r.InputInterests(ctx, "bob", nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestRelatedConceptsAndViewCounts(t *testing.T) {
	r := newTestRecommender(t, DefaultConfig())
	ctx := context.Background()

	related, err := r.RelatedConcepts(ctx, "Go", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []concept.Scored{{Concept: "Concurrency", Score: 0.8}, {Concept: "Google", Score: 0.5}}, related)

	_, err = r.RelatedConcepts(ctx, "", 0, 0)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = r.RegisterUser(ctx, "carol", "")
	require.NoError(t, err)
	_, err = r.InputInterests(ctx, "carol", []string{"gopher"})
	require.NoError(t, err)

	counts, err := r.RefreshViewCounts(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, []concept.ViewCount{
		{Concept: "Google", ViewCount: 100000},
		{Concept: "Go", ViewCount: 5400},
		{Concept: "Concurrency", ViewCount: 900},
	}, counts)

	require.NoError(t, r.Health(ctx))
}
