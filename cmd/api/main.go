package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"draftroom/api/internal/app"
	"draftroom/api/internal/config"
	"draftroom/api/internal/gateway"
	"draftroom/api/internal/reconcile"
	"draftroom/api/internal/rewrite"
	"draftroom/api/internal/session"
	"draftroom/api/internal/store"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	var snapshots store.SnapshotStore
	var pinger app.Pinger
	switch {
	case strings.TrimSpace(cfg.SnapshotAPIURL) != "":
		log.Printf("Using drafts API for snapshot storage")
		snapshots = store.NewHTTPClient(cfg.SnapshotAPIURL, cfg.SnapshotAPIToken)
	case strings.TrimSpace(cfg.MinioEndpoint) != "":
		log.Printf("Using object storage for snapshots")
		minioStore, err := store.NewMinio(ctx, cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			log.Fatalf("object store connection failed: %v", err)
		}
		snapshots = minioStore
	default:
		log.Printf("Using PostgreSQL for snapshot storage")
		db, err := store.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("database connection failed: %v", err)
		}
		defer db.Close()
		if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
			log.Fatalf("migrations failed: %v", err)
		}
		pg := store.NewPostgres(db)
		snapshots = pg
		pinger = pg
	}

	var pending reconcile.PendingStore
	if strings.TrimSpace(cfg.RedisURL) != "" {
		log.Printf("Using Redis for pending reconciliations")
		redisStore, err := reconcile.NewRedisStore(cfg.RedisURL, cfg.PendingTTL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer redisStore.Close()
		pending = redisStore
		if pinger == nil {
			pinger = redisStore
		}
	} else {
		log.Printf("Using in-memory store for pending reconciliations")
		pending = reconcile.NewMemoryStore(cfg.PendingTTL)
	}

	sessions := session.NewManager(snapshots, cfg.Debounce)
	rewriter := rewrite.NewHTTP(cfg.RewriteURL, cfg.RewriteToken)
	reconciler := reconcile.NewService(rewriter, pending, cfg.ContextWindow)
	service := app.New(sessions, reconciler, pinger)

	httpServer := app.NewHTTPServer(service, gateway.New(sessions), cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Draftroom API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	// Every remaining session persists synchronously before exit.
	sessions.Shutdown(shutdownCtx)
}
