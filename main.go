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

	"github.com/gin-gonic/gin"

	"github.com/fmuoria/recruitment-scoring/internal/api"
	"github.com/fmuoria/recruitment-scoring/internal/attachment"
	"github.com/fmuoria/recruitment-scoring/internal/config"
	"github.com/fmuoria/recruitment-scoring/internal/lock"
	"github.com/fmuoria/recruitment-scoring/internal/logger"
	"github.com/fmuoria/recruitment-scoring/internal/metadata"
	"github.com/fmuoria/recruitment-scoring/internal/section"
	"github.com/fmuoria/recruitment-scoring/internal/store"
	"github.com/fmuoria/recruitment-scoring/internal/submission"
)

// idle sections are closed after this long
const sessionIdle = 30 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	logg, err := logger.New(cfg.LogMode)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logg.Sync()

	if cfg.LogMode != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Fatal("Server stopped", "error", err)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	db, err := store.Open(cfg.DatabaseDriver, cfg.DatabaseDSN, logg)
	if err != nil {
		return err
	}
	st := store.New(db, attachment.NewFileStore(cfg.UploadsDir), logg)

	if cfg.SeedFile != "" {
		seed, err := store.LoadSeedFile(cfg.SeedFile)
		if err != nil {
			return err
		}
		if err := st.Seed(ctx, seed); err != nil {
			return err
		}
		logg.Info("Seeded metadata", "file", cfg.SeedFile, "advertisements", len(seed.Advertisements))
	}

	var guard submission.Guard
	if cfg.RedisAddr != "" {
		rg, err := lock.NewRedisGuard(ctx, cfg.RedisAddr, logg)
		if err != nil {
			return err
		}
		defer rg.Close()
		guard = rg
	}

	loader := metadata.NewLoader(st, st, logg)
	sections := section.NewService(loader, st, st, guard, attachment.NewPathBuilder(cfg.AttachmentRoot), logg)
	server := api.NewServer(sections, cfg.ExportDir, logg)

	go expireIdle(ctx, sections)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logg.Info("Starting Recruitment Scoring", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server failed to start: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logg.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func expireIdle(ctx context.Context, sections *section.Service) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sections.Expire(sessionIdle)
		}
	}
}
