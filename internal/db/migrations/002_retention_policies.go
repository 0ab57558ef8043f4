package migrations

// RetentionPolicies trims old refresh statistics and summarizes them
// per day. Tracker rows are kept forever.
var RetentionPolicies = &Migration{
	Name: "002_retention_policies",
	UpSQL: `
		-- Keep 90 days of refresh statistics
		DELETE FROM refresh_stats WHERE time < NOW() - INTERVAL '90 days';

		-- Create daily summary view for refresh statistics
		CREATE MATERIALIZED VIEW IF NOT EXISTS refresh_stats_daily AS
		SELECT
			date_trunc('day', time) AS day,
			MAX(runs) AS runs,
			MAX(devices_polled) AS devices_polled,
			MAX(devices_active) AS devices_active,
			MAX(devices_failed) AS devices_failed,
			MAX(devices_skipped) AS devices_skipped,
			MAX(budget_exhaustions) AS budget_exhaustions
		FROM refresh_stats
		GROUP BY day
		WITH NO DATA;

		CREATE INDEX IF NOT EXISTS idx_refresh_stats_daily_day ON refresh_stats_daily (day DESC);
	`,
	DownSQL: `
		DROP MATERIALIZED VIEW IF EXISTS refresh_stats_daily;
	`,
}
