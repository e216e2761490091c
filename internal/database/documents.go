package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/ZanzyTHEbar/conceptgraph-go/internal/metrics"
	"github.com/ZanzyTHEbar/conceptgraph-go/internal/recommend"
)

// ErrMalformedDocument is returned when an import document cannot be decoded
var ErrMalformedDocument = errors.New("malformed document")

type itemsDocument struct {
	Items []*recommend.Item `json:"items"`
}

type usersDocument struct {
	Accounts []*recommend.User `json:"accounts"`
}

// ExportItems writes every item as {"items":[...]}
func (dm *DBManager) ExportItems(ctx context.Context) ([]byte, error) {
	items, err := dm.ListItems(ctx, 0, 0)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*recommend.Item{}
	}
	return json.Marshal(itemsDocument{Items: items})
}

// ImportItems upserts every item of an {"items":[...]} document in a single
// transaction and returns how many were written
func (dm *DBManager) ImportItems(ctx context.Context, data []byte) (int, error) {
	done := metrics.TimeOp("db_import_items")
	success := false
	defer func() { done(success) }()

	var doc itemsDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	for i, item := range doc.Items {
		if item == nil || item.Name == "" {
			return 0, fmt.Errorf("%w: item %d has no name", ErrMalformedDocument, i)
		}
	}

	tx, err := dm.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()
	for _, item := range doc.Items {
		if err := saveItemTx(ctx, tx, item); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	success = true
	return len(doc.Items), nil
}

// ExportUsers writes every user as {"accounts":[...]}
func (dm *DBManager) ExportUsers(ctx context.Context) ([]byte, error) {
	ids, err := dm.ListUserIDs(ctx)
	if err != nil {
		return nil, err
	}
	users := make([]*recommend.User, 0, len(ids))
	for _, id := range ids {
		u, err := dm.GetUser(ctx, id)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return json.Marshal(usersDocument{Accounts: users})
}

// ImportUsers upserts every user of an {"accounts":[...]} document in a
// single transaction and returns how many were written
func (dm *DBManager) ImportUsers(ctx context.Context, data []byte) (int, error) {
	done := metrics.TimeOp("db_import_users")
	success := false
	defer func() { done(success) }()

	var doc usersDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	for i, user := range doc.Accounts {
		if user == nil || user.ID == "" {
			return 0, fmt.Errorf("%w: account %d has no id", ErrMalformedDocument, i)
		}
	}

	tx, err := dm.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()
	for _, user := range doc.Accounts {
		if err := saveUserTx(ctx, tx, user); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	success = true
	return len(doc.Accounts), nil
}
