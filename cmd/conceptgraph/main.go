package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/ZanzyTHEbar/conceptgraph-go/internal/buildinfo"
	"github.com/ZanzyTHEbar/conceptgraph-go/internal/config"
	"github.com/ZanzyTHEbar/conceptgraph-go/internal/database"
	"github.com/ZanzyTHEbar/conceptgraph-go/internal/insights"
	"github.com/ZanzyTHEbar/conceptgraph-go/internal/logging"
	"github.com/ZanzyTHEbar/conceptgraph-go/internal/metrics"
	"github.com/ZanzyTHEbar/conceptgraph-go/internal/server"
	"github.com/ZanzyTHEbar/conceptgraph-go/internal/service"
)

var (
	envFile        = flag.String("env-file", ".env", "Optional dotenv file loaded before configuration")
	libsqlURL      = flag.String("libsql-url", "", "libSQL database URL (default: file:./conceptgraph.db)")
	authToken      = flag.String("auth-token", "", "Authentication token for remote databases")
	transport      = flag.String("transport", "", "Transport to use: stdio or sse")
	addr           = flag.String("addr", "", "Address to listen on when using SSE transport")
	sseEndpoint    = flag.String("sse-endpoint", "", "SSE endpoint path when using SSE transport")
	offlineFixture = flag.String("offline-fixture", "", "Serve concept lookups from a YAML/JSON fixture instead of the HTTP services")
	importItems    = flag.String("import-items", "", "Upsert items from an {\"items\": [...]} JSON document before serving")
	importUsers    = flag.String("import-users", "", "Upsert users from an {\"accounts\": [...]} JSON document before serving")
	exportItems    = flag.String("export-items", "", "Write all items to this file and exit")
	exportUsers    = flag.String("export-users", "", "Write all users to this file and exit")
	showVersion    = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("conceptgraph %s (%s, %s)\n", buildinfo.Version, buildinfo.Revision, buildinfo.BuildDate)
		return
	}

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logging.Fatal().Err(err).Str("file", *envFile).Msg("failed to load env file")
	}

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}
	applyFlags(cfg)
	if err := cfg.Validate(); err != nil {
		logging.Fatal().Err(err).Msg("invalid configuration")
	}

	logging.Init(cfg.Logging)

	// Initialize metrics (noop if disabled)
	if err := metrics.Init(cfg.Metrics); err != nil {
		logging.Fatal().Err(err).Msg("failed to start metrics exporter")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logging.Info().Msg("received shutdown signal, closing server")
		cancel()
	}()

	db, err := database.NewDBManager(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to create database manager")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("error closing database")
		}
	}()

	if done, err := runDocuments(ctx, db); err != nil {
		logging.Error().Err(err).Msg("document transfer failed")
		return
	} else if done {
		return
	}

	collab, err := insights.New(cfg.Insights)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to create concept collaborators")
	}
	svc := service.New(db, collab, cfg.Recommend)
	mcpServer := server.NewMCPServer(svc)

	logging.Info().
		Str("version", buildinfo.Version).
		Str("transport", cfg.Server.Transport).
		Bool("offline", cfg.Insights.OfflineFixture != "").
		Msg("starting conceptgraph MCP server")
	switch cfg.Server.Transport {
	case "sse":
		go func() {
			if err := mcpServer.RunSSE(ctx, cfg.Server.Addr, cfg.Server.SSEEndpoint); err != nil {
				logging.Error().Err(err).Msg("SSE server error")
				cancel()
			}
		}()
	default:
		go func() {
			if err := mcpServer.Run(ctx); err != nil {
				logging.Error().Err(err).Msg("server error")
			}
			cancel()
		}()
	}

	<-ctx.Done()
	logging.Info().Msg("server stopped")
}

// applyFlags overrides configuration with command line flags if provided
func applyFlags(cfg *config.Config) {
	if *libsqlURL != "" {
		cfg.Database.URL = *libsqlURL
	}
	if *authToken != "" {
		cfg.Database.AuthToken = *authToken
	}
	if *transport != "" {
		cfg.Server.Transport = *transport
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *sseEndpoint != "" {
		cfg.Server.SSEEndpoint = *sseEndpoint
	}
	if *offlineFixture != "" {
		cfg.Insights.OfflineFixture = *offlineFixture
	}
}

// runDocuments performs the requested imports and exports. done is true
// when an export was requested and the process should exit.
func runDocuments(ctx context.Context, db *database.DBManager) (done bool, err error) {
	imports := []struct {
		path string
		fn   func(context.Context, []byte) (int, error)
		kind string
	}{
		{*importItems, db.ImportItems, "items"},
		{*importUsers, db.ImportUsers, "users"},
	}
	for _, imp := range imports {
		if imp.path == "" {
			continue
		}
		data, err := os.ReadFile(imp.path)
		if err != nil {
			return false, fmt.Errorf("failed to read %s: %w", imp.path, err)
		}
		n, err := imp.fn(ctx, data)
		if err != nil {
			return false, fmt.Errorf("failed to import %s: %w", imp.kind, err)
		}
		logging.Info().Int("count", n).Str("kind", imp.kind).Str("file", imp.path).Msg("imported documents")
	}

	exports := []struct {
		path string
		fn   func(context.Context) ([]byte, error)
	}{
		{*exportItems, db.ExportItems},
		{*exportUsers, db.ExportUsers},
	}
	for _, exp := range exports {
		if exp.path == "" {
			continue
		}
		data, err := exp.fn(ctx)
		if err != nil {
			return false, err
		}
		if err := os.WriteFile(exp.path, data, 0o644); err != nil {
			return false, fmt.Errorf("failed to write %s: %w", exp.path, err)
		}
		done = true
	}
	return done, nil
}
