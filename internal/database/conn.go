package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/ZanzyTHEbar/conceptgraph-go/internal/logging"
	"github.com/ZanzyTHEbar/conceptgraph-go/internal/metrics"
)

// ErrNotFound is returned when an item or user does not exist
var ErrNotFound = errors.New("not found")

// DBManager handles all database operations
type DBManager struct {
	config *Config
	db     *sql.DB

	stmtMu    sync.RWMutex
	stmtCache map[string]*sql.Stmt
}

// NewDBManager opens the database and applies the schema
func NewDBManager(config *Config) (*DBManager, error) {
	dbURL := config.URL
	if !strings.HasPrefix(dbURL, "file:") && config.AuthToken != "" {
		dbURL = withAuthToken(dbURL, config.AuthToken)
	}
	db, err := sql.Open("libsql", dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connector: %w", err)
	}

	manager := &DBManager{
		config:    config,
		db:        db,
		stmtCache: make(map[string]*sql.Stmt),
	}
	if err := manager.initialize(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Apply connection pool tuning from config
	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(config.MaxIdleConns)
	}
	if config.ConnMaxIdleSec > 0 {
		db.SetConnMaxIdleTime(time.Duration(config.ConnMaxIdleSec) * time.Second)
	}
	if config.ConnMaxLifeSec > 0 {
		db.SetConnMaxLifetime(time.Duration(config.ConnMaxLifeSec) * time.Second)
	}
	logging.Debug().Str("url", redact(config.URL)).Msg("database ready")
	return manager, nil
}

// withAuthToken appends or overrides the authToken query parameter
func withAuthToken(dbURL, token string) string {
	if u, err := url.Parse(dbURL); err == nil {
		q := u.Query()
		q.Set("authToken", token)
		u.RawQuery = q.Encode()
		return u.String()
	}
	if strings.Contains(dbURL, "?") {
		return dbURL + "&authToken=" + url.QueryEscape(token)
	}
	return dbURL + "?authToken=" + url.QueryEscape(token)
}

// redact strips credentials from a URL for logging
func redact(dbURL string) string {
	u, err := url.Parse(dbURL)
	if err != nil || u.RawQuery == "" {
		return dbURL
	}
	u.RawQuery = ""
	return u.String()
}

// initialize creates tables and indexes if they don't exist
func (dm *DBManager) initialize(db *sql.DB) error {
	done := metrics.TimeOp("db_initialize")
	success := false
	defer func() { done(success) }()
	tx, err := db.BeginTx(context.Background(), nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for initialization: %w", err)
	}
	defer tx.Rollback()

	for _, statement := range schema() {
		if _, err := tx.Exec(statement); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	success = true
	return nil
}

// Ping verifies the database is reachable
func (dm *DBManager) Ping(ctx context.Context) error {
	return dm.db.PingContext(ctx)
}

// Close closes cached statements and the database
func (dm *DBManager) Close() error {
	dm.stmtMu.Lock()
	for sqlText, stmt := range dm.stmtCache {
		if err := stmt.Close(); err != nil {
			logging.Warn().Err(err).Msg("failed to close prepared statement")
		}
		delete(dm.stmtCache, sqlText)
	}
	dm.stmtMu.Unlock()
	return dm.db.Close()
}
