package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flymap/trackd/internal/archive"
	"github.com/flymap/trackd/internal/config"
	"github.com/flymap/trackd/internal/db"
	"github.com/flymap/trackd/internal/nats"
	"github.com/flymap/trackd/internal/redis"
	"github.com/flymap/trackd/internal/skylines"
	"github.com/flymap/trackd/internal/stats"
)

// createClients creates all the required clients for the application
func createClients(cfg *config.Config) (*nats.Client, *db.Client, *redis.Client, error) {
	natsClient, err := nats.New(cfg.NATSURL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create NATS client: %w", err)
	}

	dbClient, err := db.New(cfg.DatabaseURL)
	if err != nil {
		natsClient.Close()
		return nil, nil, nil, fmt.Errorf("failed to create database client: %w", err)
	}

	redisClient, err := redis.New(cfg.RedisAddr)
	if err != nil {
		natsClient.Close()
		if closeErr := dbClient.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing dbClient: %v\n", closeErr)
		}
		return nil, nil, nil, fmt.Errorf("failed to create Redis client: %w", err)
	}

	return natsClient, dbClient, redisClient, nil
}

// setupRefresher wires the refresher and its supporting pieces
func setupRefresher(cfg *config.Config, natsClient *nats.Client, dbClient *db.Client, redisClient *redis.Client, payloads *archive.Archive) (*skylines.Refresher, *stats.Stats) {
	refreshStats := stats.New()
	refreshStats.SetPersister(dbClient)

	refresher := skylines.NewRefresher(dbClient,
		skylines.WithBaseURL(cfg.SkylinesURL),
		skylines.WithPointCache(redisClient),
		skylines.WithEventPublisher(natsClient),
		skylines.WithPayloadArchiver(payloads),
		skylines.WithStats(refreshStats),
	)
	return refresher, refreshStats
}

// runRefreshLoop polls the provider on a fixed cadence until the
// context is canceled.
func runRefreshLoop(ctx context.Context, refresher *skylines.Refresher, cfg *config.Config) {
	ticker := time.NewTicker(cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := refresher.Refresh(ctx, cfg.MaxTrackHours, cfg.RefreshTimeoutSecs); err != nil {
				log.Printf("Refresh failed: %v", err)
			}
		}
	}
}

// logStats periodically logs refresh statistics
func logStats(ctx context.Context, s *stats.Stats) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			log.Printf("Statistics:\n%s", s)
		}
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	natsClient, dbClient, redisClient, err := createClients(cfg)
	if err != nil {
		return err
	}
	defer func() {
		natsClient.Close()
		if err := dbClient.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "error closing dbClient: %v\n", err)
		}
		if err := redisClient.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "error closing redisClient: %v\n", err)
		}
	}()

	payloads := archive.New(cfg.ArchiveDir)
	if err := payloads.Start(); err != nil {
		return fmt.Errorf("failed to start payload archive: %w", err)
	}
	defer func() {
		if err := payloads.Stop(); err != nil {
			fmt.Fprintf(os.Stderr, "error stopping archive: %v\n", err)
		}
	}()

	refresher, refreshStats := setupRefresher(cfg, natsClient, dbClient, redisClient, payloads)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go refreshStats.StartPersistence(ctx, 5*time.Minute)
	go logStats(ctx, refreshStats)
	go runRefreshLoop(ctx, refresher, cfg)

	log.Printf("Refresher started: interval %s, budget %ds, max age %dh",
		cfg.RefreshInterval, cfg.RefreshTimeoutSecs, cfg.MaxTrackHours)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down...")
	cancel()
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Printf("Fatal: %v", err)
		os.Exit(1)
	}
}
