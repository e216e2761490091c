package database

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/conceptgraph-go/internal/concept"
	"github.com/ZanzyTHEbar/conceptgraph-go/internal/recommend"
)

func setupTestDB(t testing.TB) (*DBManager, func()) {
	config := NewConfig()
	// Use an in-memory database for testing.
	// The `cache=shared` is crucial for sharing the connection across different
	// calls to `sql.Open` within the same process, so each test gets its own name.
	name := strings.NewReplacer("/", "_", " ", "_", "#", "_").Replace(t.Name())
	config.URL = "file:" + name + "?mode=memory&cache=shared"
	db, err := NewDBManager(config)
	require.NoError(t, err)

	cleanup := func() {
		err := db.Close()
		assert.NoError(t, err)
	}

	return db, cleanup
}

func testModel(t testing.TB, relevance map[string]float64, edges ...concept.Edge) *concept.Model {
	t.Helper()
	m := concept.New()
	for c, r := range relevance {
		node, err := concept.NewNode(c, map[string]any{concept.PropRelevance: r})
		require.NoError(t, err)
		m.AddNode(node)
	}
	for _, e := range edges {
		require.NoError(t, m.SetEdge(e.Source, e.Target, e.Weight))
	}
	return m
}

func TestSaveAndGetItem(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	model := testModel(t,
		map[string]float64{"Go (programming language)": 0, "Concurrency": 0.5},
		concept.Edge{Source: "Go (programming language)", Target: "Concurrency", Weight: 0.8})
	model.Add("Google")
	google, err := model.Node("Google")
	require.NoError(t, err)
	require.NoError(t, google.SetProperty("rank", 3))
	item := &recommend.Item{
		Name:        "GopherCon",
		Description: "A conference about Go",
		Model:       model,
		Fields:      map[string]any{"location": "Denver"},
	}
	require.NoError(t, db.SaveItem(ctx, item))

	got, err := db.GetItem(ctx, "GopherCon")
	require.NoError(t, err)
	assert.Equal(t, "A conference about Go", got.Description)
	assert.Equal(t, map[string]any{"location": "Denver"}, got.Fields)
	assert.True(t, model.Equal(got.Model), "stored model should round-trip")
	storedGoogle, err := got.Model.Node("Google")
	require.NoError(t, err)
	rank, err := storedGoogle.Property("rank")
	require.NoError(t, err)
	assert.Equal(t, int64(3), rank)

	_, err = db.GetItem(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveItemReplaces(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, db.SaveItem(ctx, &recommend.Item{
		Name:  "talk",
		Model: testModel(t, map[string]float64{"A": 0, "B": 0}, concept.Edge{Source: "A", Target: "B", Weight: 1}),
	}))
	require.NoError(t, db.SaveItem(ctx, &recommend.Item{
		Name:        "talk",
		Description: "updated",
		Model:       testModel(t, map[string]float64{"C": 0.3}),
	}))

	got, err := db.GetItem(ctx, "talk")
	require.NoError(t, err)
	assert.Equal(t, "updated", got.Description)
	assert.Equal(t, []string{"C"}, got.Model.Concepts())
	assert.Empty(t, got.Model.Edges())
	assert.Nil(t, got.Fields)

	require.Error(t, db.SaveItem(ctx, &recommend.Item{Name: "  "}))
}

func TestListAndDeleteItems(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, db.SaveItem(ctx, &recommend.Item{Name: name, Model: testModel(t, map[string]float64{name: 0})}))
	}
	all, err := db.ListItems(ctx, 0, 0)
	require.NoError(t, err)
	names := make([]string, 0, len(all))
	for _, it := range all {
		names = append(names, it.Name)
	}
	assert.ElementsMatch(t, []string{"a", "b", "c"}, names)

	page, err := db.ListItems(ctx, 2, 0)
	require.NoError(t, err)
	assert.Len(t, page, 2)

	require.NoError(t, db.DeleteItem(ctx, "b"))
	assert.ErrorIs(t, db.DeleteItem(ctx, "b"), ErrNotFound)
	_, err = db.GetItem(ctx, "b")
	assert.ErrorIs(t, err, ErrNotFound)

	// the deleted item's concepts no longer match
	found, err := db.ItemsWithConcepts(ctx, []string{"b"})
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestItemsWithConcepts(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, db.SaveItem(ctx, &recommend.Item{Name: "go-talk", Model: testModel(t, map[string]float64{"Go": 0, "Channels": 0})}))
	require.NoError(t, db.SaveItem(ctx, &recommend.Item{Name: "rust-talk", Model: testModel(t, map[string]float64{"Rust": 0, "Ownership": 0})}))
	require.NoError(t, db.SaveItem(ctx, &recommend.Item{Name: "pl-panel", Model: testModel(t, map[string]float64{"Go": 0, "Rust": 0})}))

	found, err := db.ItemsWithConcepts(ctx, []string{"Go", "Channels"})
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "go-talk", found[0].Name)
	assert.Equal(t, "pl-panel", found[1].Name)
	assert.True(t, found[0].Model.Contains("Channels"))

	none, err := db.ItemsWithConcepts(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestItemsWithConceptsChunksLongLists(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	prev := maxInParams
	maxInParams = 2
	t.Cleanup(func() { maxInParams = prev })

	require.NoError(t, db.SaveItem(ctx, &recommend.Item{Name: "go-talk", Model: testModel(t, map[string]float64{"Go": 0, "Channels": 0})}))
	require.NoError(t, db.SaveItem(ctx, &recommend.Item{Name: "rust-talk", Model: testModel(t, map[string]float64{"Rust": 0})}))
	require.NoError(t, db.SaveItem(ctx, &recommend.Item{Name: "pl-panel", Model: testModel(t, map[string]float64{"Go": 0, "Rust": 0})}))

	// pl-panel matches in both chunks and must be returned once
	found, err := db.ItemsWithConcepts(ctx, []string{"Go", "Channels", "Rust", "Zig", "Go"})
	require.NoError(t, err)
	names := make([]string, 0, len(found))
	for _, item := range found {
		names = append(names, item.Name)
	}
	assert.Equal(t, []string{"go-talk", "pl-panel", "rust-talk"}, names)
}

func TestSaveAndGetUser(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	user := recommend.NewUser("alice", "hunter2")
	user.Model = testModel(t, map[string]float64{"Go": 0.6, "Chess": 0.3})
	user.Exceptions.Add("GopherCon")
	require.NoError(t, db.SaveUser(ctx, user))

	got, err := db.GetUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", got.Password)
	assert.True(t, user.Model.Equal(got.Model))
	assert.True(t, got.Exceptions.Contains("GopherCon"))
	assert.Equal(t, recommend.DefaultPolicy(), got.Policy)

	user.Model = testModel(t, map[string]float64{"Go": 0.9})
	require.NoError(t, db.SaveUser(ctx, user))
	got, err = db.GetUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"Go"}, got.Model.Concepts())

	require.NoError(t, db.SaveUser(ctx, recommend.NewUser("bob", "")))
	ids, err := db.ListUserIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, ids)

	require.NoError(t, db.DeleteUser(ctx, "alice"))
	_, err = db.GetUser(ctx, "alice")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, db.DeleteUser(ctx, "alice"), ErrNotFound)
}

func TestDocumentsUpsert(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, db.SaveItem(ctx, &recommend.Item{Name: "keep", Description: "old"}))

	n, err := db.ImportItems(ctx, []byte(`{"items": [
		{"name": "keep", "description": "new", "model": {"nodes": [{"id": "Go", "relevance": 0}], "links": []}},
		{"name": "fresh", "description": "", "url": "https://example.org"}
	]}`))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	kept, err := db.GetItem(ctx, "keep")
	require.NoError(t, err)
	assert.Equal(t, "new", kept.Description)
	assert.Equal(t, []string{"Go"}, kept.Model.Concepts())

	fresh, err := db.GetItem(ctx, "fresh")
	require.NoError(t, err)
	assert.Equal(t, "https://example.org", fresh.Fields["url"])

	exported, err := db.ExportItems(ctx)
	require.NoError(t, err)
	assert.Contains(t, string(exported), `"items"`)

	// exporting into a fresh store reproduces the items
	other, cleanupOther := setupTestDB(&namedTB{TB: t, name: t.Name() + "_copy"})
	defer cleanupOther()
	n, err = other.ImportItems(ctx, exported)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = db.ImportItems(ctx, []byte(`{"items": [{"description": "nameless"}]}`))
	assert.ErrorIs(t, err, ErrMalformedDocument)
	_, err = db.ImportItems(ctx, []byte(`not json`))
	assert.ErrorIs(t, err, ErrMalformedDocument)
}

func TestUserDocuments(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	n, err := db.ImportUsers(ctx, []byte(`{"accounts": [
		{"id": "carol", "password": "pw", "model": {"nodes": [{"id": "Jazz", "relevance": 0.7}], "links": []}, "exceptions": ["Concert"]}
	]}`))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	carol, err := db.GetUser(ctx, "carol")
	require.NoError(t, err)
	assert.True(t, carol.Exceptions.Contains("Concert"))
	assert.Equal(t, []concept.Relevance{{Concept: "Jazz", Relevance: 0.7}}, carol.Interests())

	exported, err := db.ExportUsers(ctx)
	require.NoError(t, err)
	assert.Contains(t, string(exported), `"accounts"`)
	assert.Contains(t, string(exported), `"carol"`)

	_, err = db.ImportUsers(ctx, []byte(`{"accounts": [{"password": "x"}]}`))
	assert.ErrorIs(t, err, ErrMalformedDocument)
}

func TestWithAuthToken(t *testing.T) {
	assert.Equal(t, "libsql://db.example.org?authToken=abc", withAuthToken("libsql://db.example.org", "abc"))
	assert.Equal(t, "libsql://db.example.org", redact("libsql://db.example.org?authToken=abc"))
}

// namedTB overrides Name so a test can open a second private database
type namedTB struct {
	testing.TB
	name string
}

func (n *namedTB) Name() string { return n.name }
