package db

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"

	"github.com/flymap/trackd/internal/types"
)

type Client struct {
	db *sql.DB
}

// New creates a new database client
func New(connStr string) (*Client, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	return &Client{db: db}, nil
}

// Close closes the database connection
func (c *Client) Close() error {
	return c.db.Close()
}

// QueryStaleDevices retrieves the devices of one provider whose updated
// timestamp is older than staleBefore (milliseconds since epoch).
func (c *Client) QueryStaleDevices(ctx context.Context, provider string, staleBefore int64) ([]*types.Device, error) {
	query := `
		SELECT id, provider, provider_id, updated, active, features
		FROM trackers
		WHERE provider = $1 AND updated < $2
		ORDER BY updated DESC
	`
	rows, err := c.db.QueryContext(ctx, query, provider, staleBefore)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var devices []*types.Device
	for rows.Next() {
		var d types.Device
		if err := rows.Scan(
			&d.ID, &d.Provider, &d.ProviderID, &d.Updated, &d.Active, &d.Features,
		); err != nil {
			return nil, err
		}
		devices = append(devices, &d)
	}
	return devices, rows.Err()
}

// SaveDevice upserts a device record. The features column holds the
// serialized GeoJSON and is never part of any index.
func (c *Client) SaveDevice(ctx context.Context, device *types.Device) error {
	query := `
		INSERT INTO trackers (
			id, provider, provider_id, updated, active, features
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			provider = EXCLUDED.provider,
			provider_id = EXCLUDED.provider_id,
			updated = EXCLUDED.updated,
			active = EXCLUDED.active,
			features = EXCLUDED.features
	`
	_, err := c.db.ExecContext(ctx, query,
		device.ID, device.Provider, device.ProviderID,
		device.Updated, device.Active, device.Features,
	)
	return err
}

// GetDevice retrieves a single device by id.
func (c *Client) GetDevice(ctx context.Context, id string) (*types.Device, error) {
	query := `
		SELECT id, provider, provider_id, updated, active, features
		FROM trackers
		WHERE id = $1
	`
	var d types.Device
	err := c.db.QueryRowContext(ctx, query, id).Scan(
		&d.ID, &d.Provider, &d.ProviderID, &d.Updated, &d.Active, &d.Features,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// StoreRefreshStats stores a refresh statistics snapshot
func (c *Client) StoreRefreshStats(stats map[string]interface{}) error {
	query := `
		INSERT INTO refresh_stats (
			time, runs, devices_polled, devices_active, devices_failed,
			devices_skipped, budget_exhaustions, poll_time_ms
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	// Convert poll time to milliseconds
	pollTime := stats["poll_time"].(time.Duration).Milliseconds()

	_, err := c.db.Exec(query,
		time.Now(),
		stats["runs"],
		stats["devices_polled"],
		stats["devices_active"],
		stats["devices_failed"],
		stats["devices_skipped"],
		stats["budget_exhaustions"],
		pollTime,
	)

	return err
}
