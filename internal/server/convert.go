package server

import (
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ZanzyTHEbar/conceptgraph-go/internal/apptype"
	"github.com/ZanzyTHEbar/conceptgraph-go/internal/concept"
	"github.com/ZanzyTHEbar/conceptgraph-go/internal/recommend"
)

func toRelevances(in []concept.Relevance) []apptype.ConceptRelevance {
	out := make([]apptype.ConceptRelevance, 0, len(in))
	for _, r := range in {
		out = append(out, apptype.ConceptRelevance{Concept: r.Concept, Relevance: r.Relevance})
	}
	return out
}

func interestsResult(userID string, interests []concept.Relevance, text string) *mcp.CallToolResultFor[apptype.InterestsResult] {
	return &mcp.CallToolResultFor[apptype.InterestsResult]{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		StructuredContent: apptype.InterestsResult{
			UserID:    userID,
			Interests: toRelevances(interests),
		},
	}
}

func toItem(item *recommend.Item) apptype.Item {
	out := apptype.Item{
		Name:        item.Name,
		Description: item.Description,
		Concepts:    []apptype.ConceptRelevance{},
		Fields:      item.Fields,
	}
	if item.Model != nil {
		out.Concepts = toRelevances(item.Model.Relevancies())
	}
	return out
}

func toEvent(args *apptype.EventArgs) (*recommend.Event, error) {
	if args == nil {
		return nil, nil
	}
	ev := &recommend.Event{Location: args.Location, Picture: args.Picture, URL: args.URL}
	var err error
	if args.StartTime != "" {
		if ev.StartTime, err = time.Parse(time.RFC3339, args.StartTime); err != nil {
			return nil, fmt.Errorf("invalid startTime: %w", err)
		}
	}
	if args.EndTime != "" {
		if ev.EndTime, err = time.Parse(time.RFC3339, args.EndTime); err != nil {
			return nil, fmt.Errorf("invalid endTime: %w", err)
		}
	}
	return ev, nil
}
