package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rohits-web03/passkeyd/internal/api"
	"github.com/rohits-web03/passkeyd/internal/api/handlers"
	"github.com/rohits-web03/passkeyd/internal/api/services"
	"github.com/rohits-web03/passkeyd/internal/config"
	"github.com/rohits-web03/passkeyd/internal/logger"
	"github.com/rohits-web03/passkeyd/internal/repositories"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// @title passkeyd API
// @version 1.0
// @description Zero-knowledge credential vault backend. The server stores only ciphertext.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	zl, err := logger.New(cfg.Environment)
	if err != nil {
		log.Fatalf("Could not build logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	if err := run(cfg, zl); err != nil {
		zl.Error("server exited", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg config.Config, zl *zap.Logger) error {
	// Connect to database
	db, err := repositories.Open(cfg.DBDriver, cfg.DBURL)
	if err != nil {
		return err
	}
	defer func() { _ = repositories.Close(db) }()
	zl.Info("database ready", zap.String("driver", cfg.DBDriver))

	// A nil interface disables archiving; a typed nil would not.
	var archive services.VaultArchive
	if cfg.Archive.Enabled() {
		archive = repositories.NewArchive(cfg.Archive)
		zl.Info("vault archive enabled", zap.String("bucket", cfg.Archive.Bucket))
	}

	hasher, err := services.NewHasher(cfg.Hash)
	if err != nil {
		return err
	}
	tokens, err := services.NewTokenIssuer([]byte(cfg.JWTSecret), cfg.JWTAlgorithm, cfg.AccessTokenTTL)
	if err != nil {
		return err
	}

	uow := repositories.NewUnitOfWork(db)
	authSvc, err := services.NewAuthService(uow, hasher, tokens, archive, zl, cfg.FakeSaltBytes)
	if err != nil {
		return err
	}
	vaultSvc := services.NewVaultService(uow, archive, zl)

	mux := api.SetupRouter(api.Deps{
		Config:   cfg,
		Log:      zl,
		Auth:     handlers.NewAuthHandler(authSvc, zl, cfg.IsProduction()),
		Vault:    handlers.NewVaultHandler(vaultSvc, zl),
		Verifier: authSvc,
		Ping: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: mux,
		// Timeouts prevent resource exhaustion from slow clients
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		zl.Info("starting passkeyd server", zap.String("port", cfg.Port), zap.String("env", cfg.Environment))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen on port %s: %w", cfg.Port, err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		zl.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
