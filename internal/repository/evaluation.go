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

const evaluationColumns = `e.id, e.site_id, s.name AS site_name, e.evaluation_date,
	e.market_score, e.quality_score, e.seo_score, e.traffic_score, e.revenue_score,
	e.composite_score, e.weights, e.notes, e.evaluator, e.created_at, e.updated_at`

// latestEvaluations selects the newest evaluation of every active site.
const latestEvaluations = `
	SELECT DISTINCT ON (e.site_id) e.*
	FROM evaluations e
	JOIN sites s ON s.id = e.site_id AND s.deleted_at IS NULL
	ORDER BY e.site_id, e.evaluation_date DESC, e.created_at DESC
`

type EvaluationRepository struct {
	db     *sqlx.DB
	logger infralogger.Logger
}

func NewEvaluationRepository(db *sqlx.DB, log infralogger.Logger) *EvaluationRepository {
	return &EvaluationRepository{
		db:     db,
		logger: log,
	}
}

// Create inserts an evaluation whose composite has already been computed.
// A second evaluation for the same site and date is a conflict.
func (r *EvaluationRepository) Create(ctx context.Context, e *models.Evaluation) error {
	now := time.Now().UTC()
	e.ID = uuid.New().String()
	e.CreatedAt = now
	e.UpdatedAt = now

	query := `
		INSERT INTO evaluations (
			id, site_id, evaluation_date, market_score, quality_score, seo_score,
			traffic_score, revenue_score, composite_score, weights, notes, evaluator,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := r.db.ExecContext(ctx, query,
		e.ID,
		e.SiteID,
		e.EvaluationDate,
		e.MarketScore,
		e.QualityScore,
		e.SEOScore,
		e.TrafficScore,
		e.RevenueScore,
		e.CompositeScore,
		e.Weights,
		e.Notes,
		e.Evaluator,
		e.CreatedAt,
		e.UpdatedAt,
	)
	return translate(err, "insert evaluation", "evaluation",
		"an evaluation for this site and date already exists")
}

func (r *EvaluationRepository) GetByID(ctx context.Context, id string) (*models.Evaluation, error) {
	query := `SELECT ` + evaluationColumns + `
		FROM evaluations e JOIN sites s ON s.id = e.site_id
		WHERE e.id = $1`

	var e models.Evaluation
	if err := r.db.GetContext(ctx, &e, query, id); err != nil {
		return nil, translate(err, "query evaluation", "evaluation", "")
	}
	return &e, nil
}

// List returns evaluations of active sites, newest first.
func (r *EvaluationRepository) List(
	ctx context.Context,
	filter models.EvaluationFilter,
) (*models.PageResult[models.Evaluation], error) {
	page := filter.Page.Normalize()

	where := &whereBuilder{}
	where.add("s.deleted_at IS NULL")
	if filter.SiteID != "" {
		where.add("e.site_id = ?", filter.SiteID)
	}
	from := ` FROM evaluations e JOIN sites s ON s.id = e.site_id` + where.clause()

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*)`+from, where.args...); err != nil {
		return nil, fmt.Errorf("count evaluations: %w", err)
	}

	query := `SELECT ` + evaluationColumns + from +
		` ORDER BY e.evaluation_date DESC, e.created_at DESC` +
		` LIMIT ` + where.next(page.PageSize) + ` OFFSET ` + where.next(page.Offset())

	items := make([]models.Evaluation, 0)
	if err := r.db.SelectContext(ctx, &items, query, where.args...); err != nil {
		return nil, fmt.Errorf("list evaluations: %w", err)
	}

	return &models.PageResult[models.Evaluation]{
		Items:    items,
		Total:    total,
		Page:     page.Page,
		PageSize: page.PageSize,
	}, nil
}

// Leaderboard ranks the latest evaluation of each active site by dim,
// descending. Ranks are global, so page 2 of size 20 holds ranks 21-40.
func (r *EvaluationRepository) Leaderboard(
	ctx context.Context,
	dim models.Dimension,
	p models.Page,
) (*models.PageResult[models.LeaderboardEntry], error) {
	page := p.Normalize()

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM (`+latestEvaluations+`) latest`); err != nil {
		return nil, fmt.Errorf("count leaderboard: %w", err)
	}

	entries := make([]models.LeaderboardEntry, 0)
	query := leaderboardQuery(dim) + ` LIMIT $1 OFFSET $2`
	if err := r.db.SelectContext(ctx, &entries, query, page.PageSize, page.Offset()); err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}

	return &models.PageResult[models.LeaderboardEntry]{
		Items:    entries,
		Total:    total,
		Page:     page.Page,
		PageSize: page.PageSize,
	}, nil
}

// LeaderboardAll returns the full ranking, for export.
func (r *EvaluationRepository) LeaderboardAll(ctx context.Context, dim models.Dimension) ([]models.LeaderboardEntry, error) {
	entries := make([]models.LeaderboardEntry, 0)
	if err := r.db.SelectContext(ctx, &entries, leaderboardQuery(dim)); err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	return entries, nil
}

// leaderboardQuery interpolates only whitelisted column names.
func leaderboardQuery(dim models.Dimension) string {
	col := "l." + dim.Column()
	// #nosec G202 -- column comes from models.Dimension whitelist
	return `
		SELECT ROW_NUMBER() OVER (ORDER BY ` + col + ` DESC, s.name ASC, l.site_id ASC) AS rank,
		       l.site_id, s.name AS site_name, s.domain, s.category, l.evaluation_date,
		       ` + col + ` AS score,
		       l.market_score, l.quality_score, l.seo_score, l.traffic_score, l.revenue_score,
		       l.composite_score
		FROM (` + latestEvaluations + `) l
		JOIN sites s ON s.id = l.site_id
		ORDER BY rank ASC`
}

// Stats aggregates all evaluations of active sites.
func (r *EvaluationRepository) Stats(ctx context.Context) (*models.EvaluationStats, error) {
	query := `
		SELECT COUNT(*) AS total_evaluations,
		       COUNT(DISTINCT e.site_id) AS sites_evaluated,
		       COALESCE(AVG(e.composite_score), 0) AS avg_composite,
		       COALESCE(AVG(e.market_score), 0) AS avg_market,
		       COALESCE(AVG(e.quality_score), 0) AS avg_quality,
		       COALESCE(AVG(e.seo_score), 0) AS avg_seo,
		       COALESCE(AVG(e.traffic_score), 0) AS avg_traffic,
		       COALESCE(AVG(e.revenue_score), 0) AS avg_revenue,
		       COALESCE(MAX(e.composite_score), 0) AS max_composite,
		       COALESCE(MIN(e.composite_score), 0) AS min_composite,
		       MAX(e.evaluation_date) AS latest_date
		FROM evaluations e
		JOIN sites s ON s.id = e.site_id AND s.deleted_at IS NULL
	`

	var stats models.EvaluationStats
	if err := r.db.GetContext(ctx, &stats, query); err != nil {
		return nil, fmt.Errorf("query evaluation stats: %w", err)
	}
	return &stats, nil
}
