package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"loungeerp/backend/internal/cache"
	"loungeerp/backend/internal/config"
	"loungeerp/backend/internal/domain"
	"loungeerp/backend/internal/httpapi"
	"loungeerp/backend/internal/ledger"
	"loungeerp/backend/internal/store"
	"loungeerp/backend/internal/store/memory"
	pgstore "loungeerp/backend/internal/store/postgres"
)

func main() {
	cfg := config.Load()
	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatalf("invalid security configuration: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL, domain.SchemaVersion)
		if err != nil {
			log.Fatalf("postgres unavailable (%v) and DATABASE_URL is set; refusing to start with in-memory fallback", err)
		}
		repo = pg
		closers = append(closers, pg.Close)
		log.Println("repository: postgres")
	} else {
		repo = memory.NewSeeded()
		log.Println("repository: in-memory")
	}

	// A store tagged with a different ledger layout must not be served.
	version, err := repo.SchemaVersion(ctx)
	if err != nil {
		log.Fatalf("schema version check failed: %v", err)
	}
	if version != domain.SchemaVersion {
		log.Fatalf("schema version mismatch: store has %q, this build expects %q", version, domain.SchemaVersion)
	}

	var shared cache.SharedBuckets = cache.Noop{}
	if cfg.RedisAddr != "" {
		redisBuckets := cache.NewRedisBuckets(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisBuckets.Ping(ctx); err != nil {
			log.Printf("redis unavailable (%v), using local cache only", err)
		} else {
			shared = redisBuckets
			closers = append(closers, redisBuckets.Close)
			log.Println("cache: local + redis")
		}
	} else {
		log.Println("cache: local")
	}

	cached := cache.Wrap(repo, shared)
	engine := ledger.New(cached, cfg.DefaultSalesmanID)
	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, repo)
	api := httpapi.New(engine, auth, cfg.AllowedOrigin)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("%s ledger backend listening on %s", cfg.BusinessName, cfg.Address())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Printf("close error: %v", err)
		}
	}

	log.Println("server stopped")
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	return nil
}
