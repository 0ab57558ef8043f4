package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	rediscontainer "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/flymap/trackd/internal/db"
	"github.com/flymap/trackd/internal/db/migrations"
	"github.com/flymap/trackd/internal/skylines"
	"github.com/flymap/trackd/internal/types"
)

type testContainers struct {
	postgres *postgres.PostgresContainer
	redis    *rediscontainer.RedisContainer
}

func setupTestContainers(t *testing.T) *testContainers {
	ctx := context.Background()

	postgresContainer, err := postgres.Run(ctx, "postgres:14-alpine",
		postgres.WithDatabase("trackd"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections"),
		),
	)
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}

	redisContainer, err := rediscontainer.Run(ctx, "redis:7-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Ready to accept connections"),
		),
	)
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	return &testContainers{
		postgres: postgresContainer,
		redis:    redisContainer,
	}
}

func terminateContainers(t *testing.T, containers *testContainers) {
	if err := containers.postgres.Terminate(context.Background()); err != nil {
		t.Logf("Failed to terminate PostgreSQL container: %v", err)
	}
	if err := containers.redis.Terminate(context.Background()); err != nil {
		t.Logf("Failed to terminate Redis container: %v", err)
	}
}

func TestMigrationsAndDeviceStore_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	containers := setupTestContainers(t)
	defer terminateContainers(t, containers)

	dbConnStr, err := containers.postgres.ConnectionString(context.Background())
	if err != nil {
		t.Fatalf("Failed to get PostgreSQL connection string: %v", err)
	}
	dbConnStr += "&sslmode=disable"

	sqlDB, err := sql.Open("postgres", dbConnStr)
	if err != nil {
		t.Fatalf("Failed to open database connection: %v", err)
	}
	defer sqlDB.Close()

	if err := migrations.New(sqlDB).Migrate(migrations.All()); err != nil {
		t.Fatalf("Failed to apply migrations: %v", err)
	}

	client, err := db.New(dbConnStr)
	if err != nil {
		t.Fatalf("Failed to create db client: %v", err)
	}
	defer client.Close()

	ctx := context.Background()

	device := &types.Device{
		ID:         "dev-1",
		Provider:   "skylines",
		ProviderID: "123",
		Updated:    1000,
		Active:     false,
	}
	if err := client.SaveDevice(ctx, device); err != nil {
		t.Fatalf("SaveDevice() failed: %v", err)
	}

	stale, err := client.QueryStaleDevices(ctx, "skylines", 2000)
	if err != nil {
		t.Fatalf("QueryStaleDevices() failed: %v", err)
	}
	if len(stale) != 1 || stale[0].ID != "dev-1" {
		t.Fatalf("Expected dev-1 to be stale, got %v", stale)
	}

	// Upsert moves the device out of the stale window
	device.Updated = 5000
	device.Active = true
	if err := client.SaveDevice(ctx, device); err != nil {
		t.Fatalf("SaveDevice() upsert failed: %v", err)
	}

	stale, err = client.QueryStaleDevices(ctx, "skylines", 2000)
	if err != nil {
		t.Fatalf("QueryStaleDevices() failed: %v", err)
	}
	if len(stale) != 0 {
		t.Errorf("Expected no stale devices after upsert, got %d", len(stale))
	}

	got, err := client.GetDevice(ctx, "dev-1")
	if err != nil {
		t.Fatalf("GetDevice() failed: %v", err)
	}
	if got == nil || !got.Active || got.Updated != 5000 {
		t.Errorf("Unexpected device after upsert: %+v", got)
	}
}

func TestRefreshAgainstLiveDatabase_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	containers := setupTestContainers(t)
	defer terminateContainers(t, containers)

	dbConnStr, err := containers.postgres.ConnectionString(context.Background())
	if err != nil {
		t.Fatalf("Failed to get PostgreSQL connection string: %v", err)
	}
	dbConnStr += "&sslmode=disable"

	sqlDB, err := sql.Open("postgres", dbConnStr)
	if err != nil {
		t.Fatalf("Failed to open database connection: %v", err)
	}
	defer sqlDB.Close()

	if err := migrations.New(sqlDB).Migrate(migrations.All()); err != nil {
		t.Fatalf("Failed to apply migrations: %v", err)
	}

	client, err := db.New(dbConnStr)
	if err != nil {
		t.Fatalf("Failed to create db client: %v", err)
	}
	defer client.Close()

	ctx := context.Background()

	if err := client.SaveDevice(ctx, &types.Device{
		ID:         "dev-1",
		Provider:   "skylines",
		ProviderID: "123",
	}); err != nil {
		t.Fatalf("SaveDevice() failed: %v", err)
	}

	// Live endpoint with no flights: device polls clean but inactive
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(skylines.LiveResponse{})
	}))
	defer server.Close()

	refresher := skylines.NewRefresher(client, skylines.WithBaseURL(server.URL))
	numActive, err := refresher.Refresh(ctx, 24, 30)
	if err != nil {
		t.Fatalf("Refresh() failed: %v", err)
	}
	if numActive != 0 {
		t.Errorf("Expected 0 active devices, got %d", numActive)
	}

	got, err := client.GetDevice(ctx, "dev-1")
	if err != nil {
		t.Fatalf("GetDevice() failed: %v", err)
	}
	if got == nil {
		t.Fatal("Expected device to exist")
	}
	if got.Updated == 0 {
		t.Error("Expected updated timestamp to be written")
	}
	if got.Active {
		t.Error("Expected device to be inactive with no flights")
	}
	if got.Features == "" {
		t.Error("Expected features to be written")
	}
}
