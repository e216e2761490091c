package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ZanzyTHEbar/conceptgraph-go/internal/metrics"
)

// getPreparedStmt returns or prepares and caches a statement
func (dm *DBManager) getPreparedStmt(ctx context.Context, sqlText string) (*sql.Stmt, error) {
	// fast path read
	dm.stmtMu.RLock()
	if stmt, ok := dm.stmtCache[sqlText]; ok {
		dm.stmtMu.RUnlock()
		metrics.Default().IncStmtCacheHit()
		return stmt, nil
	}
	dm.stmtMu.RUnlock()
	metrics.Default().IncStmtCacheMiss()

	stmt, err := dm.db.PrepareContext(ctx, sqlText)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}
	dm.stmtMu.Lock()
	if existing, ok := dm.stmtCache[sqlText]; ok {
		// lost the race, keep the first one
		dm.stmtMu.Unlock()
		stmt.Close()
		return existing, nil
	}
	dm.stmtCache[sqlText] = stmt
	dm.stmtMu.Unlock()
	return stmt, nil
}
