package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/goccy/go-json"

	"github.com/ZanzyTHEbar/conceptgraph-go/internal/metrics"
	"github.com/ZanzyTHEbar/conceptgraph-go/internal/recommend"
)

// SaveItem creates or replaces an item together with its concept model
func (dm *DBManager) SaveItem(ctx context.Context, item *recommend.Item) error {
	done := metrics.TimeOp("db_save_item")
	success := false
	defer func() { done(success) }()

	if strings.TrimSpace(item.Name) == "" {
		return fmt.Errorf("item name must be a non-empty string")
	}
	tx, err := dm.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for item %q: %w", item.Name, err)
	}
	defer tx.Rollback()

	if err := saveItemTx(ctx, tx, item); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit item %q: %w", item.Name, err)
	}
	success = true
	return nil
}

func saveItemTx(ctx context.Context, tx *sql.Tx, item *recommend.Item) error {
	fields := item.Fields
	if fields == nil {
		fields = map[string]any{}
	}
	rawFields, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to encode fields of item %q: %w", item.Name, err)
	}

	result, err := tx.ExecContext(ctx,
		"UPDATE items SET description = ?, fields = ?, updated_at = CURRENT_TIMESTAMP WHERE name = ?",
		item.Description, string(rawFields), item.Name)
	if err != nil {
		return fmt.Errorf("failed to update item %q: %w", item.Name, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for update: %w", err)
	}
	if rowsAffected == 0 {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO items (name, description, fields) VALUES (?, ?, ?)",
			item.Name, item.Description, string(rawFields)); err != nil {
			return fmt.Errorf("failed to insert item %q: %w", item.Name, err)
		}
	}
	return saveModel(ctx, tx, ownerItem, item.Name, item.Model)
}

// GetItem loads an item by name
func (dm *DBManager) GetItem(ctx context.Context, name string) (*recommend.Item, error) {
	done := metrics.TimeOp("db_get_item")
	success := false
	defer func() { done(success) }()

	stmt, err := dm.getPreparedStmt(ctx, "SELECT description, fields FROM items WHERE name = ?")
	if err != nil {
		return nil, err
	}
	var description, rawFields string
	if err := stmt.QueryRowContext(ctx, name).Scan(&description, &rawFields); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("item %q: %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to query item %q: %w", name, err)
	}
	item, err := dm.hydrateItem(ctx, name, description, rawFields)
	if err != nil {
		return nil, err
	}
	success = true
	return item, nil
}

func (dm *DBManager) hydrateItem(ctx context.Context, name, description, rawFields string) (*recommend.Item, error) {
	var fields map[string]any
	if err := json.Unmarshal([]byte(rawFields), &fields); err != nil {
		return nil, fmt.Errorf("failed to decode fields of item %q: %w", name, err)
	}
	model, err := loadModel(ctx, dm.db, ownerItem, name)
	if err != nil {
		return nil, fmt.Errorf("item %q: %w", name, err)
	}
	item := &recommend.Item{Name: name, Description: description, Model: model}
	if len(fields) > 0 {
		item.Fields = fields
	}
	return item, nil
}

// ListItems returns items ordered by creation time, newest first.
// A limit <= 0 returns every item.
func (dm *DBManager) ListItems(ctx context.Context, limit, offset int) ([]*recommend.Item, error) {
	done := metrics.TimeOp("db_list_items")
	success := false
	defer func() { done(success) }()

	if limit <= 0 {
		limit = -1
	}
	if offset < 0 {
		offset = 0
	}
	stmt, err := dm.getPreparedStmt(ctx,
		"SELECT name, description, fields FROM items ORDER BY created_at DESC, name LIMIT ? OFFSET ?")
	if err != nil {
		return nil, err
	}
	items, err := dm.queryItems(ctx, stmt, limit, offset)
	if err != nil {
		return nil, err
	}
	success = true
	return items, nil
}

// queryItems scans (name, description, fields) rows and loads each model
func (dm *DBManager) queryItems(ctx context.Context, stmt *sql.Stmt, args ...any) ([]*recommend.Item, error) {
	rows, err := stmt.QueryContext(ctx, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	type row struct{ name, description, fields string }
	var found []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.name, &r.description, &r.fields); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		found = append(found, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	items := make([]*recommend.Item, 0, len(found))
	for _, r := range found {
		item, err := dm.hydrateItem(ctx, r.name, r.description, r.fields)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// DeleteItem removes an item and its concept model
func (dm *DBManager) DeleteItem(ctx context.Context, name string) error {
	done := metrics.TimeOp("db_delete_item")
	success := false
	defer func() { done(success) }()

	tx, err := dm.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, "DELETE FROM items WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("failed to delete item %q: %w", name, err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("item %q: %w", name, ErrNotFound)
	}
	if err := deleteModel(ctx, tx, ownerItem, name); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	success = true
	return nil
}

// maxInParams bounds the IN list of one candidate query, well below SQLite's
// default limit of 32766 host parameters.
var maxInParams = 500

// ItemsWithConcepts returns the items whose model contains at least one of
// the given concepts, ordered by name. Long concept lists are queried in
// chunks of maxInParams.
func (dm *DBManager) ItemsWithConcepts(ctx context.Context, concepts []string) ([]*recommend.Item, error) {
	done := metrics.TimeOp("db_items_with_concepts")
	success := false
	defer func() { done(success) }()

	if len(concepts) == 0 {
		success = true
		return nil, nil
	}
	seen := make(map[string]struct{})
	var items []*recommend.Item
	for chunk := range slices.Chunk(concepts, maxInParams) {
		found, err := dm.itemsWithConceptsIn(ctx, chunk)
		if err != nil {
			return nil, err
		}
		for _, item := range found {
			if _, dup := seen[item.Name]; dup {
				continue
			}
			seen[item.Name] = struct{}{}
			items = append(items, item)
		}
	}
	slices.SortFunc(items, func(a, b *recommend.Item) int { return strings.Compare(a.Name, b.Name) })
	success = true
	return items, nil
}

func (dm *DBManager) itemsWithConceptsIn(ctx context.Context, concepts []string) ([]*recommend.Item, error) {
	placeholders := make([]string, len(concepts))
	args := make([]any, 0, len(concepts)+1)
	args = append(args, ownerItem)
	for i, c := range concepts {
		placeholders[i] = "?"
		args = append(args, c)
	}
	query := fmt.Sprintf(`SELECT i.name, i.description, i.fields FROM items i
        WHERE i.name IN (
            SELECT DISTINCT owner FROM concepts WHERE owner_kind = ? AND concept IN (%s)
        )
        ORDER BY i.name`, strings.Join(placeholders, ","))

	// the IN list length varies, so these are not cached
	stmt, err := dm.db.PrepareContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare candidate query: %w", err)
	}
	defer stmt.Close()
	return dm.queryItems(ctx, stmt, args...)
}
