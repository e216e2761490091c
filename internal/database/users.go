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

// SaveUser creates or replaces a user together with its interest model
func (dm *DBManager) SaveUser(ctx context.Context, user *recommend.User) error {
	done := metrics.TimeOp("db_save_user")
	success := false
	defer func() { done(success) }()

	if strings.TrimSpace(user.ID) == "" {
		return fmt.Errorf("user id must be a non-empty string")
	}
	tx, err := dm.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for user %q: %w", user.ID, err)
	}
	defer tx.Rollback()

	if err := saveUserTx(ctx, tx, user); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit user %q: %w", user.ID, err)
	}
	success = true
	return nil
}

func saveUserTx(ctx context.Context, tx *sql.Tx, user *recommend.User) error {
	exceptions := []string{}
	if user.Exceptions != nil {
		exceptions = user.Exceptions.ToSlice()
		slices.Sort(exceptions)
	}
	rawExceptions, err := json.Marshal(exceptions)
	if err != nil {
		return fmt.Errorf("failed to encode exceptions of user %q: %w", user.ID, err)
	}

	result, err := tx.ExecContext(ctx,
		"UPDATE users SET password = ?, exceptions = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		user.Password, string(rawExceptions), user.ID)
	if err != nil {
		return fmt.Errorf("failed to update user %q: %w", user.ID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for update: %w", err)
	}
	if rowsAffected == 0 {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO users (id, password, exceptions) VALUES (?, ?, ?)",
			user.ID, user.Password, string(rawExceptions)); err != nil {
			return fmt.Errorf("failed to insert user %q: %w", user.ID, err)
		}
	}
	return saveModel(ctx, tx, ownerUser, user.ID, user.Model)
}

// GetUser loads a user by id. The returned user carries the default policy.
func (dm *DBManager) GetUser(ctx context.Context, id string) (*recommend.User, error) {
	done := metrics.TimeOp("db_get_user")
	success := false
	defer func() { done(success) }()

	stmt, err := dm.getPreparedStmt(ctx, "SELECT password, exceptions FROM users WHERE id = ?")
	if err != nil {
		return nil, err
	}
	var password, rawExceptions string
	if err := stmt.QueryRowContext(ctx, id).Scan(&password, &rawExceptions); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %q: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to query user %q: %w", id, err)
	}
	var exceptions []string
	if err := json.Unmarshal([]byte(rawExceptions), &exceptions); err != nil {
		return nil, fmt.Errorf("failed to decode exceptions of user %q: %w", id, err)
	}
	model, err := loadModel(ctx, dm.db, ownerUser, id)
	if err != nil {
		return nil, fmt.Errorf("user %q: %w", id, err)
	}

	user := recommend.NewUser(id, password)
	user.Model = model
	user.Exceptions.Append(exceptions...)
	success = true
	return user, nil
}

// ListUserIDs returns every user id in ascending order
func (dm *DBManager) ListUserIDs(ctx context.Context) ([]string, error) {
	done := metrics.TimeOp("db_list_users")
	success := false
	defer func() { done(success) }()

	stmt, err := dm.getPreparedStmt(ctx, "SELECT id FROM users ORDER BY id")
	if err != nil {
		return nil, err
	}
	rows, err := stmt.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	success = true
	return ids, nil
}

// DeleteUser removes a user and its interest model
func (dm *DBManager) DeleteUser(ctx context.Context, id string) error {
	done := metrics.TimeOp("db_delete_user")
	success := false
	defer func() { done(success) }()

	tx, err := dm.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete user %q: %w", id, err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("user %q: %w", id, ErrNotFound)
	}
	if err := deleteModel(ctx, tx, ownerUser, id); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	success = true
	return nil
}
