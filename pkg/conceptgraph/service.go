// Package conceptgraph is the library-first API of the recommender for
// programs that embed it without the MCP transport.
package conceptgraph

import (
	"context"

	"github.com/ZanzyTHEbar/conceptgraph-go/internal/concept"
	"github.com/ZanzyTHEbar/conceptgraph-go/internal/database"
	"github.com/ZanzyTHEbar/conceptgraph-go/internal/insights"
	"github.com/ZanzyTHEbar/conceptgraph-go/internal/recommend"
	"github.com/ZanzyTHEbar/conceptgraph-go/internal/service"
)

// Service provides the recommender operations over a libSQL store.
type Service struct {
	db  *database.DBManager
	rec *service.Recommender
}

// NewService constructs a Service with the provided config.
func NewService(cfg *Config) (*Service, error) {
	collab, err := insights.New(cfg.toInsights())
	if err != nil {
		return nil, err
	}
	dm, err := database.NewDBManager(cfg.toDatabase())
	if err != nil {
		return nil, err
	}
	return &Service{db: dm, rec: service.New(dm, collab, cfg.toService())}, nil
}

// Close releases resources.
func (s *Service) Close() error { return s.db.Close() }

// AddItem annotates description and stores the item.
func (s *Service) AddItem(ctx context.Context, name, description string, fields map[string]any) (*recommend.Item, error) {
	return s.rec.AddItem(ctx, service.ItemInput{Name: name, Description: description, Fields: fields})
}

// AddEvent stores an item carrying event details.
func (s *Service) AddEvent(ctx context.Context, name, description string, ev recommend.Event) (*recommend.Item, error) {
	return s.rec.AddItem(ctx, service.ItemInput{Name: name, Description: description, Event: &ev})
}

// GetItem fetches an item by name.
func (s *Service) GetItem(ctx context.Context, name string) (*recommend.Item, error) {
	return s.rec.GetItem(ctx, name)
}

// ListItems pages through items, newest first.
func (s *Service) ListItems(ctx context.Context, limit, offset int) ([]*recommend.Item, error) {
	return s.rec.ListItems(ctx, limit, offset)
}

// DeleteItem removes an item.
func (s *Service) DeleteItem(ctx context.Context, name string) error {
	return s.rec.DeleteItem(ctx, name)
}

// RegisterUser creates a user; an empty id is generated.
func (s *Service) RegisterUser(ctx context.Context, id, password string) (*recommend.User, error) {
	return s.rec.RegisterUser(ctx, id, password)
}

// DeleteUser removes a user.
func (s *Service) DeleteUser(ctx context.Context, id string) error {
	return s.rec.DeleteUser(ctx, id)
}

// UserInterests returns the user's concepts by relevance.
func (s *Service) UserInterests(ctx context.Context, id string) ([]concept.Relevance, error) {
	return s.rec.UserInterests(ctx, id)
}

// ExpressInterest applies a like of the item to the user model.
func (s *Service) ExpressInterest(ctx context.Context, userID, itemName string) ([]concept.Relevance, error) {
	return s.rec.ExpressInterest(ctx, userID, itemName)
}

// ExpressDisinterest applies a dislike of the item to the user model.
func (s *Service) ExpressDisinterest(ctx context.Context, userID, itemName string) ([]concept.Relevance, error) {
	return s.rec.ExpressDisinterest(ctx, userID, itemName)
}

// InputInterests adds free-text interests to the user model.
func (s *Service) InputInterests(ctx context.Context, userID string, texts []string) ([]concept.Relevance, error) {
	return s.rec.InputInterests(ctx, userID, texts)
}

// Recommend returns the best item for the user, nil when nothing matches.
func (s *Service) Recommend(ctx context.Context, userID string) (*recommend.Item, float64, error) {
	rec, err := s.rec.Recommend(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	return rec.Item, rec.Score, nil
}

// RelatedConcepts looks up concepts related to label.
func (s *Service) RelatedConcepts(ctx context.Context, label string, level, limit int) ([]concept.Scored, error) {
	return s.rec.RelatedConcepts(ctx, label, level, limit)
}

// RefreshViewCounts updates view counts of the user's concepts.
func (s *Service) RefreshViewCounts(ctx context.Context, userID string) ([]concept.ViewCount, error) {
	return s.rec.RefreshViewCounts(ctx, userID)
}

// ExportItems returns every item as an {"items": [...]} document.
func (s *Service) ExportItems(ctx context.Context) ([]byte, error) { return s.db.ExportItems(ctx) }

// ImportItems upserts the items of a document and returns how many were stored.
func (s *Service) ImportItems(ctx context.Context, data []byte) (int, error) {
	return s.db.ImportItems(ctx, data)
}

// ExportUsers returns every user as an {"accounts": [...]} document.
func (s *Service) ExportUsers(ctx context.Context) ([]byte, error) { return s.db.ExportUsers(ctx) }

// ImportUsers upserts the accounts of a document and returns how many were stored.
func (s *Service) ImportUsers(ctx context.Context, data []byte) (int, error) {
	return s.db.ImportUsers(ctx, data)
}
