package migrations

// InitialSchema creates the initial database schema
var InitialSchema = &Migration{
	Name: "001_initial_schema",
	UpSQL: `
		-- Create trackers table. The features column holds the latest
		-- serialized GeoJSON and stays out of every index.
		CREATE TABLE IF NOT EXISTS trackers (
			id TEXT PRIMARY KEY,
			provider TEXT NOT NULL,
			provider_id TEXT NOT NULL,
			updated BIGINT NOT NULL DEFAULT 0,
			active BOOLEAN NOT NULL DEFAULT FALSE,
			features TEXT NOT NULL DEFAULT ''
		);

		-- Stale-device queries filter by provider and updated
		CREATE INDEX IF NOT EXISTS idx_trackers_provider_updated ON trackers (provider, updated);
		CREATE INDEX IF NOT EXISTS idx_trackers_active ON trackers (active);

		-- Create refresh statistics table
		CREATE TABLE IF NOT EXISTS refresh_stats (
			time TIMESTAMPTZ NOT NULL,
			runs BIGINT NOT NULL,
			devices_polled BIGINT NOT NULL,
			devices_active BIGINT NOT NULL,
			devices_failed BIGINT NOT NULL,
			devices_skipped BIGINT NOT NULL,
			budget_exhaustions BIGINT NOT NULL,
			poll_time_ms BIGINT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_refresh_stats_time ON refresh_stats (time DESC);
	`,
	DownSQL: `
		DROP TABLE IF EXISTS refresh_stats;
		DROP TABLE IF EXISTS trackers;
	`,
}
