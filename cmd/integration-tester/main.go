package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ZanzyTHEbar/conceptgraph-go/internal/apptype"
)

type StepResult struct {
	Name      string `json:"name"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
	ElapsedMs int64  `json:"elapsed_ms"`
}

type Report struct {
	SSEURL     string       `json:"sse_url"`
	StartedAt  time.Time    `json:"started_at"`
	DurationMs int64        `json:"duration_ms"`
	Steps      []StepResult `json:"steps"`
	Passed     bool         `json:"passed"`
}

func main() {
	sseURL := flag.String("sse-url", "http://localhost:8080/sse", "SSE endpoint URL")
	interest := flag.String("interest", "golang", "Free-text interest fed to input_interests")
	timeout := flag.Duration("timeout", 30*time.Second, "Overall timeout")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client := mcp.NewClient(&mcp.Implementation{Name: "integration-tester", Version: "dev"}, nil)
	transport := mcp.NewSSEClientTransport(*sseURL, nil)

	start := time.Now()
	report := Report{SSEURL: *sseURL, StartedAt: start}
	steps := make([]StepResult, 0, 16)

	// Connect
	tConn := time.Now()
	connRes := StepResult{Name: "connect"}
	session, err := client.Connect(ctx, transport)
	if err != nil {
		connRes.Error = err.Error()
		connRes.ElapsedMs = elapsedMsSince(tConn)
		report.Steps = append(steps, connRes)
		report.DurationMs = elapsedMsSince(start)
		writeReport(report)
		os.Exit(1)
	}
	defer session.Close()
	connRes.Success = true
	connRes.ElapsedMs = elapsedMsSince(tConn)
	steps = append(steps, connRes)

	// unique names so repeated runs against the same database do not collide
	suffix := uuid.NewString()[:8]
	item := "it-item-" + suffix
	user := "it-user-" + suffix

	steps = append(steps, runListTools(ctx, session))
	steps = append(steps, runTool(ctx, session, "health_check", apptype.HealthArgs{}))
	steps = append(steps, runTool(ctx, session, "add_item", apptype.AddItemArgs{
		Name:        item,
		Description: *interest,
		Event:       &apptype.EventArgs{StartTime: start.UTC().Format(time.RFC3339), Location: "integration"},
	}))
	steps = append(steps, runTool(ctx, session, "get_item", apptype.ItemArgs{Name: item}))
	steps = append(steps, runTool(ctx, session, "list_items", apptype.ListItemsArgs{Limit: 10}))
	steps = append(steps, runTool(ctx, session, "register_user", apptype.RegisterUserArgs{UserID: user}))
	steps = append(steps, runTool(ctx, session, "input_interests", apptype.InputInterestsArgs{UserID: user, Texts: []string{*interest}}))
	steps = append(steps, runTool(ctx, session, "user_interests", apptype.UserArgs{UserID: user}))
	steps = append(steps, runTool(ctx, session, "recommend_item", apptype.UserArgs{UserID: user}))
	steps = append(steps, runTool(ctx, session, "express_interest", apptype.UserItemArgs{UserID: user, ItemName: item}))
	steps = append(steps, runTool(ctx, session, "express_disinterest", apptype.UserItemArgs{UserID: user, ItemName: item}))
	steps = append(steps, runTool(ctx, session, "related_concepts", apptype.RelatedConceptsArgs{Concept: *interest, Limit: 5}))
	steps = append(steps, runTool(ctx, session, "refresh_view_counts", apptype.UserArgs{UserID: user}))
	// cleanup
	steps = append(steps, runTool(ctx, session, "delete_item", apptype.ItemArgs{Name: item}))
	steps = append(steps, runTool(ctx, session, "delete_user", apptype.UserArgs{UserID: user}))

	// finalize report
	report.Steps = steps
	report.DurationMs = elapsedMsSince(start)
	report.Passed = true
	for _, s := range steps {
		if !s.Success {
			report.Passed = false
			break
		}
	}
	writeReport(report)

	if !report.Passed {
		os.Exit(1)
	}
}

func writeReport(report Report) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(report)
}

func runListTools(ctx context.Context, session *mcp.ClientSession) StepResult {
	t0 := time.Now()
	res := StepResult{Name: "list_tools"}
	if _, err := session.ListTools(ctx, &mcp.ListToolsParams{}); err != nil {
		res.Error = err.Error()
	} else {
		res.Success = true
	}
	res.ElapsedMs = elapsedMsSince(t0)
	return res
}

// runTool calls a tool and records a failure for transport errors and
// tool-level errors alike.
func runTool(ctx context.Context, session *mcp.ClientSession, name string, args any) StepResult {
	t0 := time.Now()
	res := StepResult{Name: name}
	out, err := session.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: args})
	switch {
	case err != nil:
		res.Error = err.Error()
	case out.IsError:
		res.Error = toolErrorText(out)
	default:
		res.Success = true
	}
	res.ElapsedMs = elapsedMsSince(t0)
	return res
}

func toolErrorText(out *mcp.CallToolResult) string {
	for _, c := range out.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			return tc.Text
		}
	}
	return fmt.Sprintf("tool returned an error with %d content blocks", len(out.Content))
}

// elapsedMsSince returns max(1ms, elapsed) to avoid zero durations on fast steps
func elapsedMsSince(t0 time.Time) int64 {
	d := time.Since(t0) / time.Millisecond
	if d <= 0 {
		return 1
	}
	return int64(d)
}
