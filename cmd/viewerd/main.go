package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flymap/trackd/internal/config"
	"github.com/flymap/trackd/internal/engine"
	"github.com/flymap/trackd/internal/metadata"
	"github.com/flymap/trackd/internal/nats"
	"github.com/flymap/trackd/internal/trackstore"
	"github.com/flymap/trackd/internal/types"
)

func main() {
	if err := runViewer(); err != nil {
		log.Printf("Viewer failed: %v", err)
		os.Exit(1)
	}
}

// runViewer contains the main application logic and can be tested
func runViewer() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.MetadataURL == "" {
		return fmt.Errorf("METADATA_URL environment variable is required")
	}

	natsClient, err := nats.New(cfg.NATSURL)
	if err != nil {
		return fmt.Errorf("failed to create NATS client: %w", err)
	}

	store := trackstore.New()
	fetcher := metadata.NewClient(cfg.MetadataURL)
	eng := engine.New(store, fetcher,
		engine.WithNotifier(&natsNotifier{client: natsClient}),
	)

	for _, url := range cfg.TrackURLs {
		tracks, err := loadTrackBatch(context.Background(), url)
		if err != nil {
			log.Printf("Failed to load tracks from %s: %v", url, err)
			continue
		}
		eng.LoadTracks(tracks)
		log.Printf("Loaded %d tracks from %s", len(tracks), url)
	}

	log.Printf("Viewer started: %d tracks", store.Len())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down...")
	eng.Close()
	natsClient.Close()

	return nil
}

// loadTrackBatch downloads and decodes one track batch.
func loadTrackBatch(ctx context.Context, url string) ([]*types.Track, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	return metadata.DecodeTrackBatch(body)
}

// natsNotifier publishes group membership changes to NATS.
type natsNotifier struct {
	client *nats.Client
}

func (n *natsNotifier) GroupsAdded(ids []int64) {
	event := &nats.GroupsEvent{GroupIDs: ids, Ts: time.Now().UnixMilli()}
	if err := n.client.PublishGroupsAdded(event); err != nil {
		log.Printf("Failed to publish groups added: %v", err)
	}
}

func (n *natsNotifier) GroupsRemoved(ids []int64) {
	// Nothing downstream consumes removals yet.
	log.Printf("Groups removed: %v", ids)
}
