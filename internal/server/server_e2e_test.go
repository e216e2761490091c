package server

import (
	"context"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/conceptgraph-go/internal/apptype"
	"github.com/ZanzyTHEbar/conceptgraph-go/internal/concept"
	"github.com/ZanzyTHEbar/conceptgraph-go/internal/database"
	"github.com/ZanzyTHEbar/conceptgraph-go/internal/insights"
	"github.com/ZanzyTHEbar/conceptgraph-go/internal/service"
)

// pickFreePort tries to get a free TCP port on 127.0.0.1
func pickFreePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

func newTestServer(t *testing.T) *MCPServer {
	t.Helper()
	cfg := database.NewConfig()
	cfg.URL = "file:e2e_" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	dbm, err := database.NewDBManager(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = dbm.Close() })

	off := insights.NewOffline(insights.Fixture{
		Annotations: map[string][]concept.Scored{
			"gopher": {{Concept: "Go", Score: 0.9}},
			"jazz":   {{Concept: "Jazz", Score: 0.8}},
		},
		Related: map[string][]concept.Scored{
			"Go": {{Concept: "Go", Score: 1}, {Concept: "Concurrency", Score: 0.8}},
		},
		ViewCounts: map[string]uint64{"Go": 5400, "Concurrency": 900},
	})
	svc := service.New(dbm, &insights.Collaborators{Annotator: off, Relater: off, ViewCounter: off}, service.DefaultConfig())
	return NewMCPServer(svc)
}

func connectSSE(t *testing.T, srv *MCPServer) (context.Context, *mcp.ClientSession) {
	t.Helper()
	port, err := pickFreePort()
	require.NoError(t, err)
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	endpoint := "/sse"

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	// start SSE server
	go func() { _ = srv.RunSSE(ctx, addr, endpoint) }()

	// wait briefly for server to bind
	time.Sleep(150 * time.Millisecond)

	// connect with MCP SSE client
	client := mcp.NewClient(&mcp.Implementation{Name: "e2e-client", Version: "test"}, nil)
	transport := mcp.NewSSEClientTransport("http://"+addr+endpoint, nil)

	// retry connect a few times to avoid flakes
	var session *mcp.ClientSession
	for i := 0; i < 5; i++ {
		session, err = client.Connect(ctx, transport)
		if err == nil {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })
	return ctx, session
}

// callTool calls name and decodes its structured content into out
func callTool(t *testing.T, ctx context.Context, session *mcp.ClientSession, name string, args, out any) {
	t.Helper()
	res, err := session.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.False(t, res.IsError, "tool %s returned an error: %v", name, res.Content)
	if out == nil {
		return
	}
	raw, err := json.Marshal(res.StructuredContent)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, out))
}

func TestSSEServer_ListTools(t *testing.T) {
	ctx, session := connectSSE(t, newTestServer(t))

	tools, err := session.ListTools(ctx, &mcp.ListToolsParams{})
	require.NoError(t, err)
	names := make([]string, 0, len(tools.Tools))
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{
		"add_item", "get_item", "list_items", "delete_item",
		"register_user", "delete_user", "user_interests",
		"express_interest", "express_disinterest", "input_interests",
		"recommend_item", "related_concepts", "refresh_view_counts", "health_check",
	}, names)
}

func TestSSEServer_RecommendFlow(t *testing.T) {
	ctx, session := connectSSE(t, newTestServer(t))

	var added apptype.ItemResult
	callTool(t, ctx, session, "add_item", apptype.AddItemArgs{
		Name:        "gophercon",
		Description: "Meet every gopher in town",
		Event:       &apptype.EventArgs{StartTime: "2025-08-26T09:00:00Z", Location: "Denver"},
	}, &added)
	assert.Equal(t, []apptype.ConceptRelevance{{Concept: "Go", Relevance: 0}}, added.Item.Concepts)
	assert.Equal(t, "Denver", added.Item.Fields["location"])
	callTool(t, ctx, session, "add_item", apptype.AddItemArgs{Name: "jazz-night", Description: "jazz"}, nil)

	var listed apptype.ItemsResult
	callTool(t, ctx, session, "list_items", apptype.ListItemsArgs{}, &listed)
	assert.Len(t, listed.Items, 2)

	var user apptype.InterestsResult
	callTool(t, ctx, session, "register_user", apptype.RegisterUserArgs{UserID: "alice"}, &user)
	assert.Equal(t, "alice", user.UserID)

	var interests apptype.InterestsResult
	callTool(t, ctx, session, "input_interests", apptype.InputInterestsArgs{UserID: "alice", Texts: []string{"a gopher"}}, &interests)
	assert.Equal(t, []apptype.ConceptRelevance{
		{Concept: "Go", Relevance: 1},
		{Concept: "Concurrency", Relevance: 0.8},
	}, interests.Interests)

	var rec apptype.RecommendResult
	callTool(t, ctx, session, "recommend_item", apptype.UserArgs{UserID: "alice"}, &rec)
	require.True(t, rec.Found)
	assert.Equal(t, "gophercon", rec.Item.Name)
	assert.InDelta(t, 0.5, rec.Score, 1e-9)

	callTool(t, ctx, session, "express_interest", apptype.UserItemArgs{UserID: "alice", ItemName: "gophercon"}, &interests)
	require.NotEmpty(t, interests.Interests)
	assert.Equal(t, "Concurrency", interests.Interests[0].Concept)
	assert.InDelta(t, 0.72, interests.Interests[0].Relevance, 1e-9)

	callTool(t, ctx, session, "recommend_item", apptype.UserArgs{UserID: "alice"}, &rec)
	assert.False(t, rec.Found)

	var related apptype.RelatedConceptsResult
	callTool(t, ctx, session, "related_concepts", apptype.RelatedConceptsArgs{Concept: "Go"}, &related)
	assert.Equal(t, []apptype.ScoredConcept{{Concept: "Concurrency", Score: 0.8}}, related.Related)

	var views apptype.ViewCountsResult
	callTool(t, ctx, session, "refresh_view_counts", apptype.UserArgs{UserID: "alice"}, &views)
	assert.Equal(t, []apptype.ConceptViewCount{{Concept: "Go", ViewCount: 5400}, {Concept: "Concurrency", ViewCount: 900}}, views.ViewCounts)

	var health apptype.HealthResult
	callTool(t, ctx, session, "health_check", apptype.HealthArgs{}, &health)
	assert.Equal(t, "ok", health.Database)

	callTool(t, ctx, session, "delete_item", apptype.ItemArgs{Name: "jazz-night"}, nil)
	callTool(t, ctx, session, "delete_user", apptype.UserArgs{UserID: "alice"}, nil)

	res, err := session.CallTool(ctx, &mcp.CallToolParams{Name: "user_interests", Arguments: apptype.UserArgs{UserID: "alice"}})
	if err == nil {
		assert.True(t, res.IsError)
	}
}
