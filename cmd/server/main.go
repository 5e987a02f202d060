package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/terrasync/terrasync/internal/config"
	"github.com/terrasync/terrasync/internal/gdal"
	"github.com/terrasync/terrasync/internal/geoserver"
	"github.com/terrasync/terrasync/internal/logging"
	"github.com/terrasync/terrasync/internal/mask"
	"github.com/terrasync/terrasync/internal/pipeline"
	"github.com/terrasync/terrasync/internal/store"
	"github.com/terrasync/terrasync/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"workspace", cfg.GeoServer.Workspace,
		"upload_max_concurrent", cfg.Upload.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		slog.Error("failed to parse database URL", "error", err)
		os.Exit(1)
	}
	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	ctx := context.Background()
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		slog.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	if u, err := url.Parse(cfg.Database.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	}

	ogrDSN, err := cfg.Database.OGRConnString()
	if err != nil {
		slog.Error("failed to derive ogr2ogr datasource", "error", err)
		os.Exit(1)
	}

	records := store.New(pool, slog.Default())
	tools := gdal.NewTools(cfg.Tools, ogrDSN)
	publisher := geoserver.NewClient(cfg.GeoServer, slog.Default())
	masks := mask.NewGenerator(tools, slog.Default())
	service := pipeline.New(cfg, records, publisher, tools, masks, slog.Default())

	server := web.NewServer(service, cfg)

	jobCtx, cancelJobs := context.WithCancel(context.Background())

	// Tile-server initialization and boundary re-import run in the background
	// so a slow or absent GeoServer never blocks startup.
	go initTileServer(jobCtx, publisher, cfg, service)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(); err != nil {
		slog.Info("server stopped", "error", err)
	}
}

// initTileServer ensures the workspace and datastore exist, retrying while
// GeoServer boots, then replays archived boundaries. Failures are warnings;
// uploads will surface publish errors on their own if the server stays down.
func initTileServer(ctx context.Context, publisher *geoserver.Client, cfg *config.Config, service *pipeline.Service) {
	const attempts = 5

	var err error
	for i := 1; i <= attempts; i++ {
		if err = publisher.EnsureWorkspace(ctx); err == nil {
			break
		}
		slog.Warn("tile server not ready", "attempt", i, "error", err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(i) * 5 * time.Second):
		}
	}
	if err != nil {
		slog.Warn("tile server initialization gave up", "error", err)
		return
	}

	if err := publisher.EnsureDatastore(ctx, cfg.Database); err != nil {
		slog.Warn("datastore initialization failed", "error", err)
		return
	}
	slog.Info("tile server initialized",
		"workspace", cfg.GeoServer.Workspace, "datastore", cfg.GeoServer.Datastore)

	service.ReimportBoundaries(ctx)
}
