package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ZanzyTHEbar/conceptgraph-go/internal/apptype"
	"github.com/ZanzyTHEbar/conceptgraph-go/internal/buildinfo"
	"github.com/ZanzyTHEbar/conceptgraph-go/internal/logging"
	"github.com/ZanzyTHEbar/conceptgraph-go/internal/metrics"
	"github.com/ZanzyTHEbar/conceptgraph-go/internal/service"
)

const (
	serverName       = "conceptgraph-go"
	defaultListLimit = 20
)

// MCPServer handles MCP protocol communication
type MCPServer struct {
	server *mcp.Server
	svc    *service.Recommender
}

// NewMCPServer creates a new MCP server
func NewMCPServer(svc *service.Recommender) *MCPServer {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    serverName,
		Version: buildinfo.Version,
	}, nil)

	mcpServer := &MCPServer{
		server: server,
		svc:    svc,
	}
	mcpServer.setupToolHandlers()
	return mcpServer
}

// schemaFor builds the JSON schema of T or panics; schemas are static.
func schemaFor[T any]() *jsonschema.Schema {
	schema, err := jsonschema.For[T]()
	if err != nil {
		var zero T
		panic(fmt.Sprintf("failed to create schema for %T: %v", zero, err))
	}
	return schema
}

// setupToolHandlers registers all MCP tools
func (s *MCPServer) setupToolHandlers() {
	addItemAnnotations := mcp.ToolAnnotations{
		Title: "Add Item",
	}

	mcp.AddTool(s.server, &mcp.Tool{
		Annotations:  &addItemAnnotations,
		Name:         "add_item",
		Title:        "Add Item",
		Description:  "Annotate a description into concepts and store it as a recommendable item, replacing any item with the same name.",
		InputSchema:  schemaFor[apptype.AddItemArgs](),
		OutputSchema: schemaFor[apptype.ItemResult](),
	}, s.handleAddItem)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:         "get_item",
		Title:        "Get Item",
		Description:  "Get a stored item with its concepts.",
		InputSchema:  schemaFor[apptype.ItemArgs](),
		OutputSchema: schemaFor[apptype.ItemResult](),
	}, s.handleGetItem)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:         "list_items",
		Title:        "List Items",
		Description:  "List stored items, newest first.",
		InputSchema:  schemaFor[apptype.ListItemsArgs](),
		OutputSchema: schemaFor[apptype.ItemsResult](),
	}, s.handleListItems)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "delete_item",
		Title:       "Delete Item",
		Description: "Delete an item and its concepts.",
		InputSchema: schemaFor[apptype.ItemArgs](),
	}, s.handleDeleteItem)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:         "register_user",
		Title:        "Register User",
		Description:  "Create a user with an empty interest model.",
		InputSchema:  schemaFor[apptype.RegisterUserArgs](),
		OutputSchema: schemaFor[apptype.InterestsResult](),
	}, s.handleRegisterUser)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "delete_user",
		Title:       "Delete User",
		Description: "Delete a user and its interest model.",
		InputSchema: schemaFor[apptype.UserArgs](),
	}, s.handleDeleteUser)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:         "user_interests",
		Title:        "User Interests",
		Description:  "Get a user's concepts ordered by relevance.",
		InputSchema:  schemaFor[apptype.UserArgs](),
		OutputSchema: schemaFor[apptype.InterestsResult](),
	}, s.handleUserInterests)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:         "express_interest",
		Title:        "Express Interest",
		Description:  "Record that a user liked an item: shared concepts are reinforced, other interests decay and the item's concepts are merged in.",
		InputSchema:  schemaFor[apptype.UserItemArgs](),
		OutputSchema: schemaFor[apptype.InterestsResult](),
	}, s.handleExpressInterest)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:         "express_disinterest",
		Title:        "Express Disinterest",
		Description:  "Record that a user disliked an item: shared concepts are weakened.",
		InputSchema:  schemaFor[apptype.UserItemArgs](),
		OutputSchema: schemaFor[apptype.InterestsResult](),
	}, s.handleExpressDisinterest)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:         "input_interests",
		Title:        "Input Interests",
		Description:  "Resolve free-text interests to concepts and merge them, with related concepts, into a user's model.",
		InputSchema:  schemaFor[apptype.InputInterestsArgs](),
		OutputSchema: schemaFor[apptype.InterestsResult](),
	}, s.handleInputInterests)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:         "recommend_item",
		Title:        "Recommend Item",
		Description:  "Recommend the stored item a user is most interested in, skipping items the user already reacted to.",
		InputSchema:  schemaFor[apptype.UserArgs](),
		OutputSchema: schemaFor[apptype.RecommendResult](),
	}, s.handleRecommendItem)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:         "related_concepts",
		Title:        "Related Concepts",
		Description:  "Look up concepts related to a concept label.",
		InputSchema:  schemaFor[apptype.RelatedConceptsArgs](),
		OutputSchema: schemaFor[apptype.RelatedConceptsResult](),
	}, s.handleRelatedConcepts)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:         "refresh_view_counts",
		Title:        "Refresh View Counts",
		Description:  "Fetch page view counts for a user's concepts and return them by popularity.",
		InputSchema:  schemaFor[apptype.UserArgs](),
		OutputSchema: schemaFor[apptype.ViewCountsResult](),
	}, s.handleRefreshViewCounts)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:         "health_check",
		Title:        "Health Check",
		Description:  "Report server version and database reachability.",
		InputSchema:  schemaFor[apptype.HealthArgs](),
		OutputSchema: schemaFor[apptype.HealthResult](),
	}, s.handleHealth)
}

// handleAddItem handles the add_item tool call
func (s *MCPServer) handleAddItem(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.AddItemArgs],
) (*mcp.CallToolResultFor[apptype.ItemResult], error) {
	done := metrics.TimeTool("add_item")
	var success bool
	defer func() { done(success) }()

	args := params.Arguments
	ev, err := toEvent(args.Event)
	if err != nil {
		return nil, fmt.Errorf("add_item failed: %w", err)
	}
	item, err := s.svc.AddItem(ctx, service.ItemInput{
		Name:        args.Name,
		Description: args.Description,
		Fields:      args.Fields,
		Event:       ev,
	})
	if err != nil {
		return nil, fmt.Errorf("add_item failed: %w", err)
	}
	success = true
	return &mcp.CallToolResultFor[apptype.ItemResult]{
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("Stored item %s with %d concepts", item.Name, item.Model.Len())},
		},
		StructuredContent: apptype.ItemResult{Item: toItem(item)},
	}, nil
}

// handleGetItem handles the get_item tool call
func (s *MCPServer) handleGetItem(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.ItemArgs],
) (*mcp.CallToolResultFor[apptype.ItemResult], error) {
	done := metrics.TimeTool("get_item")
	var success bool
	defer func() { done(success) }()

	item, err := s.svc.GetItem(ctx, params.Arguments.Name)
	if err != nil {
		return nil, fmt.Errorf("get_item failed: %w", err)
	}
	success = true
	return &mcp.CallToolResultFor[apptype.ItemResult]{
		Content:           []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("Item %s", item.Name)}},
		StructuredContent: apptype.ItemResult{Item: toItem(item)},
	}, nil
}

// handleListItems handles the list_items tool call
func (s *MCPServer) handleListItems(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.ListItemsArgs],
) (*mcp.CallToolResultFor[apptype.ItemsResult], error) {
	done := metrics.TimeTool("list_items")
	var success bool
	defer func() { done(success) }()

	limit := params.Arguments.Limit
	offset := params.Arguments.Offset
	if limit <= 0 {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}
	items, err := s.svc.ListItems(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list_items failed: %w", err)
	}
	out := make([]apptype.Item, 0, len(items))
	for _, it := range items {
		out = append(out, toItem(it))
	}
	success = true
	return &mcp.CallToolResultFor[apptype.ItemsResult]{
		Content:           []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("Found %d items", len(out))}},
		StructuredContent: apptype.ItemsResult{Items: out},
	}, nil
}

// handleDeleteItem handles the delete_item tool call
func (s *MCPServer) handleDeleteItem(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.ItemArgs],
) (*mcp.CallToolResultFor[any], error) {
	done := metrics.TimeTool("delete_item")
	var success bool
	defer func() { done(success) }()

	name := params.Arguments.Name
	if err := s.svc.DeleteItem(ctx, name); err != nil {
		return nil, fmt.Errorf("delete_item failed: %w", err)
	}
	success = true
	return &mcp.CallToolResultFor[any]{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("Successfully deleted item %s", name)}},
	}, nil
}

// handleRegisterUser handles the register_user tool call
func (s *MCPServer) handleRegisterUser(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.RegisterUserArgs],
) (*mcp.CallToolResultFor[apptype.InterestsResult], error) {
	done := metrics.TimeTool("register_user")
	var success bool
	defer func() { done(success) }()

	user, err := s.svc.RegisterUser(ctx, params.Arguments.UserID, params.Arguments.Password)
	if err != nil {
		return nil, fmt.Errorf("register_user failed: %w", err)
	}
	success = true
	return interestsResult(user.ID, user.Interests(), "Registered user "+user.ID), nil
}

// handleDeleteUser handles the delete_user tool call
func (s *MCPServer) handleDeleteUser(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.UserArgs],
) (*mcp.CallToolResultFor[any], error) {
	done := metrics.TimeTool("delete_user")
	var success bool
	defer func() { done(success) }()

	id := params.Arguments.UserID
	if err := s.svc.DeleteUser(ctx, id); err != nil {
		return nil, fmt.Errorf("delete_user failed: %w", err)
	}
	success = true
	return &mcp.CallToolResultFor[any]{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("Successfully deleted user %s", id)}},
	}, nil
}

// handleUserInterests handles the user_interests tool call
func (s *MCPServer) handleUserInterests(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.UserArgs],
) (*mcp.CallToolResultFor[apptype.InterestsResult], error) {
	done := metrics.TimeTool("user_interests")
	var success bool
	defer func() { done(success) }()

	id := params.Arguments.UserID
	interests, err := s.svc.UserInterests(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("user_interests failed: %w", err)
	}
	success = true
	return interestsResult(id, interests, fmt.Sprintf("User %s has %d interests", id, len(interests))), nil
}

// handleExpressInterest handles the express_interest tool call
func (s *MCPServer) handleExpressInterest(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.UserItemArgs],
) (*mcp.CallToolResultFor[apptype.InterestsResult], error) {
	done := metrics.TimeTool("express_interest")
	var success bool
	defer func() { done(success) }()

	args := params.Arguments
	interests, err := s.svc.ExpressInterest(ctx, args.UserID, args.ItemName)
	if err != nil {
		return nil, fmt.Errorf("express_interest failed: %w", err)
	}
	success = true
	return interestsResult(args.UserID, interests, fmt.Sprintf("Recorded interest of %s in %s", args.UserID, args.ItemName)), nil
}

// handleExpressDisinterest handles the express_disinterest tool call
func (s *MCPServer) handleExpressDisinterest(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.UserItemArgs],
) (*mcp.CallToolResultFor[apptype.InterestsResult], error) {
	done := metrics.TimeTool("express_disinterest")
	var success bool
	defer func() { done(success) }()

	args := params.Arguments
	interests, err := s.svc.ExpressDisinterest(ctx, args.UserID, args.ItemName)
	if err != nil {
		return nil, fmt.Errorf("express_disinterest failed: %w", err)
	}
	success = true
	return interestsResult(args.UserID, interests, fmt.Sprintf("Recorded disinterest of %s in %s", args.UserID, args.ItemName)), nil
}

// handleInputInterests handles the input_interests tool call
func (s *MCPServer) handleInputInterests(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.InputInterestsArgs],
) (*mcp.CallToolResultFor[apptype.InterestsResult], error) {
	done := metrics.TimeTool("input_interests")
	var success bool
	defer func() { done(success) }()

	args := params.Arguments
	interests, err := s.svc.InputInterests(ctx, args.UserID, args.Texts)
	if err != nil {
		return nil, fmt.Errorf("input_interests failed: %w", err)
	}
	success = true
	return interestsResult(args.UserID, interests, fmt.Sprintf("User %s now has %d interests", args.UserID, len(interests))), nil
}

// handleRecommendItem handles the recommend_item tool call
func (s *MCPServer) handleRecommendItem(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.UserArgs],
) (*mcp.CallToolResultFor[apptype.RecommendResult], error) {
	done := metrics.TimeTool("recommend_item")
	var success bool
	defer func() { done(success) }()

	id := params.Arguments.UserID
	rec, err := s.svc.Recommend(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("recommend_item failed: %w", err)
	}
	success = true

	result := apptype.RecommendResult{UserID: id, Score: rec.Score}
	text := "No matching item"
	if rec.Item != nil {
		item := toItem(rec.Item)
		result.Found = true
		result.Item = &item
		text = fmt.Sprintf("Recommended %s (score %.3f)", rec.Item.Name, rec.Score)
	}
	return &mcp.CallToolResultFor[apptype.RecommendResult]{
		Content:           []mcp.Content{&mcp.TextContent{Text: text}},
		StructuredContent: result,
	}, nil
}

// handleRelatedConcepts handles the related_concepts tool call
func (s *MCPServer) handleRelatedConcepts(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.RelatedConceptsArgs],
) (*mcp.CallToolResultFor[apptype.RelatedConceptsResult], error) {
	done := metrics.TimeTool("related_concepts")
	var success bool
	defer func() { done(success) }()

	args := params.Arguments
	related, err := s.svc.RelatedConcepts(ctx, args.Concept, args.Level, args.Limit)
	if err != nil {
		return nil, fmt.Errorf("related_concepts failed: %w", err)
	}
	out := make([]apptype.ScoredConcept, 0, len(related))
	for _, r := range related {
		out = append(out, apptype.ScoredConcept{Concept: r.Concept, Score: r.Score})
	}
	success = true
	return &mcp.CallToolResultFor[apptype.RelatedConceptsResult]{
		Content:           []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("Found %d concepts related to %s", len(out), args.Concept)}},
		StructuredContent: apptype.RelatedConceptsResult{Concept: args.Concept, Related: out},
	}, nil
}

// handleRefreshViewCounts handles the refresh_view_counts tool call
func (s *MCPServer) handleRefreshViewCounts(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.UserArgs],
) (*mcp.CallToolResultFor[apptype.ViewCountsResult], error) {
	done := metrics.TimeTool("refresh_view_counts")
	var success bool
	defer func() { done(success) }()

	id := params.Arguments.UserID
	counts, err := s.svc.RefreshViewCounts(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("refresh_view_counts failed: %w", err)
	}
	out := make([]apptype.ConceptViewCount, 0, len(counts))
	for _, c := range counts {
		out = append(out, apptype.ConceptViewCount{Concept: c.Concept, ViewCount: c.ViewCount})
	}
	success = true
	return &mcp.CallToolResultFor[apptype.ViewCountsResult]{
		Content:           []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("Refreshed view counts of %d concepts", len(out))}},
		StructuredContent: apptype.ViewCountsResult{UserID: id, ViewCounts: out},
	}, nil
}

// handleHealth handles the health_check tool call
func (s *MCPServer) handleHealth(
	ctx context.Context,
	session *mcp.ServerSession,
	params *mcp.CallToolParamsFor[apptype.HealthArgs],
) (*mcp.CallToolResultFor[apptype.HealthResult], error) {
	done := metrics.TimeTool("health_check")
	var success bool
	defer func() { done(success) }()

	dbStatus := "ok"
	if err := s.svc.Health(ctx); err != nil {
		dbStatus = err.Error()
	}
	success = true
	return &mcp.CallToolResultFor[apptype.HealthResult]{
		Content: []mcp.Content{&mcp.TextContent{Text: "ok"}},
		StructuredContent: apptype.HealthResult{
			Name:      serverName,
			Version:   buildinfo.Version,
			Revision:  buildinfo.Revision,
			BuildDate: buildinfo.BuildDate,
			Database:  dbStatus,
		},
	}, nil
}

// Run starts the MCP server with stdio transport
func (s *MCPServer) Run(ctx context.Context) error {
	transport := mcp.NewStdioTransport()
	return s.server.Run(ctx, transport)
}

// RunSSE starts the MCP server over SSE at the given address and endpoint
func (s *MCPServer) RunSSE(ctx context.Context, addr string, endpoint string) error {
	handler := mcp.NewSSEHandler(func(r *http.Request) *mcp.Server { return s.server })
	mux := http.NewServeMux()
	mux.Handle(endpoint, handler)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logging.Info().Str("addr", addr).Str("endpoint", endpoint).Msg("SSE MCP server listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
