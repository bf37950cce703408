package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hearthlabs/hearth/internal/api"
	"github.com/hearthlabs/hearth/internal/config"
	"github.com/hearthlabs/hearth/internal/dav"
	httpserver "github.com/hearthlabs/hearth/internal/http"
	"github.com/hearthlabs/hearth/internal/lock"
	"github.com/hearthlabs/hearth/internal/recurrence"
	"github.com/hearthlabs/hearth/internal/store"
)

func main() {
	log.Println("Starting Hearth sync server...")
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DB.DSN)
	if err != nil {
		log.Fatalf("failed to create db pool: %v", err)
	}
	defer pool.Close()

	if err := store.ApplyMigrations(ctx, pool); err != nil {
		log.Fatalf("failed to apply migrations: %v", err)
	}

	stor := store.New(pool)
	locker := lock.NewAdvisoryLocker(pool, cfg.LockTimeout)
	expander := recurrence.NewExpander(stor.Events, locker)

	refresher := recurrence.NewRefresher(stor.Users, expander, cfg.RefreshCron)
	if err := refresher.Start(); err != nil {
		log.Fatalf("failed to start recurrence refresher: %v", err)
	}
	defer refresher.Stop()

	davHandler := dav.NewHandler(cfg, stor, expander)
	apiHandler := api.NewHandler(stor, expander)
	r := httpserver.NewRouter(cfg, stor, davHandler, apiHandler)

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("server listening on %s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}
