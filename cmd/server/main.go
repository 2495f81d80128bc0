// Package main initializes and starts the BranchLift HTTP server,
// setting up configuration, logging, the key/value store, the session and
// workspace services, handlers, and optional TLS.
package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	nethttp "net/http"

	"github.com/atinyakov/BranchLift/internal/config"
	"github.com/atinyakov/BranchLift/internal/db"
	"github.com/atinyakov/BranchLift/internal/kv"
	"github.com/atinyakov/BranchLift/internal/logger"
	"github.com/atinyakov/BranchLift/internal/lookup"
	"github.com/atinyakov/BranchLift/internal/repository"
	"github.com/atinyakov/BranchLift/internal/server/handler/http"
	"github.com/atinyakov/BranchLift/internal/service"
	"go.uber.org/zap"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

func main() {
	// Parse command-line, environment and file configuration.
	options := config.Parse()

	// Print build metadata (or "N/A" if unset).
	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	// Initialize structured logging.
	log := logger.New()
	if err := log.Init(options.LogLevel, logger.WithFile(options.LogFile)); err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Log.Sync() }()
	zapLogger := log.Log

	store, closeStore, err := openStore(options)
	if err != nil {
		zapLogger.Fatal("cannot open store", zap.String("kind", options.StoreKind), zap.Error(err))
	}
	defer closeStore()
	zapLogger.Info("store ready", zap.String("kind", options.StoreKind))

	// Build the core services.
	sessions := service.NewSessionStore(store, nil, zapLogger.Named("session"))
	workspace := service.NewWorkspace(store, sessions, service.WorkspaceConfig{
		Lookup:     lookup.NewGitHub(options.GitHubURL, options.LookupTimeout),
		BuildDelay: options.BuildDelay,
		Log:        zapLogger.Named("workspace"),
	})
	defer workspace.Reset()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Pick up where the previous run left off.
	if acc, err := sessions.RestoreSession(ctx); err != nil {
		zapLogger.Error("failed to restore session", zap.Error(err))
	} else if acc != nil {
		if _, err := workspace.Load(ctx); err != nil {
			zapLogger.Error("failed to load workspace", zap.Error(err))
		}
		zapLogger.Info("session restored", zap.Int64("account_id", acc.ID))
	}

	// Create HTTP handlers and the router.
	authHandler := &http.AuthHandler{Sessions: sessions, Workspace: workspace, Log: zapLogger}
	workspaceHandler := &http.WorkspaceHandler{Workspace: workspace}
	router := http.NewRouter(authHandler, workspaceHandler, sessions, zapLogger)

	server := &nethttp.Server{
		Addr:              options.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if options.TLSCert != "" {
			zapLogger.Info("starting HTTPS server", zap.String("addr", options.Addr))
			errCh <- server.ListenAndServeTLS(options.TLSCert, options.TLSKey)
			return
		}
		zapLogger.Info("starting HTTP server", zap.String("addr", options.Addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, nethttp.ErrServerClosed) {
			zapLogger.Fatal("server stopped", zap.Error(err))
		}
	case <-ctx.Done():
		zapLogger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			zapLogger.Error("graceful shutdown failed", zap.Error(err))
		}
	}
}

// openStore builds the key/value backend named by options.StoreKind.
// The returned func releases it.
func openStore(options *config.Options) (kv.Store, func(), error) {
	noop := func() {}
	switch options.StoreKind {
	case config.StoreMemory:
		return kv.NewMemory(), noop, nil
	case config.StoreFile:
		f, err := kv.OpenFile(options.StorePath)
		if err != nil {
			return nil, nil, err
		}
		return f, noop, nil
	case config.StorePostgres:
		pg, err := db.InitPostgres(options.DatabaseDSN)
		if err != nil {
			return nil, nil, err
		}
		return repository.NewPostgresStore(pg), func() { _ = pg.Close() }, nil
	case config.StoreSQLite:
		gdb, err := db.InitSQLite(options.StorePath)
		if err != nil {
			return nil, nil, err
		}
		s, err := repository.NewSQLiteStore(gdb)
		if err != nil {
			return nil, nil, err
		}
		closer := noop
		if sqlDB, err := gdb.DB(); err == nil {
			closer = func() { _ = sqlDB.Close() }
		}
		return s, closer, nil
	default:
		return nil, nil, fmt.Errorf("unknown store kind %q", options.StoreKind)
	}
}
