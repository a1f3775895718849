package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	infralogger "github.com/jonesrussell/site-portfolio/infrastructure/logger"
	"github.com/jonesrussell/site-portfolio/internal/models"
)

const trafficColumns = `id, site_id, date, sessions, users, new_users, pageviews, bounce_rate,
	avg_session_duration, source, created_at, updated_at`

const searchConsoleColumns = `id, site_id, date, clicks, impressions, ctr, position, created_at, updated_at`

// AnalyticsRepository stores per-day traffic and search console rows. All
// writes are idempotent upserts keyed on (site_id, date).
type AnalyticsRepository struct {
	db     *sqlx.DB
	logger infralogger.Logger
}

func NewAnalyticsRepository(db *sqlx.DB, log infralogger.Logger) *AnalyticsRepository {
	return &AnalyticsRepository{
		db:     db,
		logger: log,
	}
}

// UpsertTraffic writes one day of traffic. An existing row for the same site
// and day is overwritten with the new values and keeps its ID.
func (r *AnalyticsRepository) UpsertTraffic(ctx context.Context, d *models.TrafficData) error {
	now := time.Now().UTC()
	if d.Source == "" {
		d.Source = models.TrafficSourceGoogleAnalytics
	}

	query := `
		INSERT INTO traffic_data (
			id, site_id, date, sessions, users, new_users, pageviews, bounce_rate,
			avg_session_duration, source, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
		ON CONFLICT (site_id, date) DO UPDATE SET
			sessions = EXCLUDED.sessions,
			users = EXCLUDED.users,
			new_users = EXCLUDED.new_users,
			pageviews = EXCLUDED.pageviews,
			bounce_rate = EXCLUDED.bounce_rate,
			avg_session_duration = EXCLUDED.avg_session_duration,
			source = EXCLUDED.source,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at, updated_at
	`

	row := r.db.QueryRowxContext(ctx, query,
		uuid.New().String(),
		d.SiteID,
		d.Date,
		d.Sessions,
		d.Users,
		d.NewUsers,
		d.Pageviews,
		d.BounceRate,
		d.AvgSessionDuration,
		d.Source,
		now,
	)
	if err := row.Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return fmt.Errorf("upsert traffic %s: %w", d.Date, err)
	}
	return nil
}

// ListTraffic returns a site's traffic rows within rng, oldest first.
func (r *AnalyticsRepository) ListTraffic(ctx context.Context, siteID string, rng models.DateRange) ([]models.TrafficData, error) {
	query := `SELECT ` + trafficColumns + ` FROM traffic_data
		WHERE site_id = $1 AND date BETWEEN $2 AND $3 ORDER BY date ASC`

	rows := make([]models.TrafficData, 0)
	if err := r.db.SelectContext(ctx, &rows, query, siteID, rng.Start, rng.End); err != nil {
		return nil, fmt.Errorf("list traffic: %w", err)
	}
	return rows, nil
}

// UpsertSearchConsole writes one day of search performance.
func (r *AnalyticsRepository) UpsertSearchConsole(ctx context.Context, d *models.SearchConsoleData) error {
	now := time.Now().UTC()

	query := `
		INSERT INTO search_console_data (
			id, site_id, date, clicks, impressions, ctr, position, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		ON CONFLICT (site_id, date) DO UPDATE SET
			clicks = EXCLUDED.clicks,
			impressions = EXCLUDED.impressions,
			ctr = EXCLUDED.ctr,
			position = EXCLUDED.position,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at, updated_at
	`

	row := r.db.QueryRowxContext(ctx, query,
		uuid.New().String(),
		d.SiteID,
		d.Date,
		d.Clicks,
		d.Impressions,
		d.CTR,
		d.Position,
		now,
	)
	if err := row.Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return fmt.Errorf("upsert search console %s: %w", d.Date, err)
	}
	return nil
}

// ListSearchConsole returns a site's search console rows within rng, oldest
// first.
func (r *AnalyticsRepository) ListSearchConsole(
	ctx context.Context,
	siteID string,
	rng models.DateRange,
) ([]models.SearchConsoleData, error) {
	query := `SELECT ` + searchConsoleColumns + ` FROM search_console_data
		WHERE site_id = $1 AND date BETWEEN $2 AND $3 ORDER BY date ASC`

	rows := make([]models.SearchConsoleData, 0)
	if err := r.db.SelectContext(ctx, &rows, query, siteID, rng.Start, rng.End); err != nil {
		return nil, fmt.Errorf("list search console: %w", err)
	}
	return rows, nil
}
