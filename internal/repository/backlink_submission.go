package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	apperrors "github.com/jonesrussell/site-portfolio/infrastructure/errors"
	infralogger "github.com/jonesrussell/site-portfolio/infrastructure/logger"
	"github.com/jonesrussell/site-portfolio/internal/models"
)

const submissionColumns = `bs.id, bs.site_id, bs.backlink_site_id, bs.status, bs.submitted_at,
	bs.indexed_at, bs.notes, bs.created_at, bs.updated_at,
	s.name AS site_name, b.domain AS backlink_domain`

const submissionFrom = ` FROM backlink_submissions bs
	JOIN sites s ON s.id = bs.site_id
	JOIN backlink_sites b ON b.id = bs.backlink_site_id`

const submissionConflictMsg = "this site already has a submission for the backlink site"

type SubmissionRepository struct {
	db     *sqlx.DB
	logger infralogger.Logger
}

func NewSubmissionRepository(db *sqlx.DB, log infralogger.Logger) *SubmissionRepository {
	return &SubmissionRepository{
		db:     db,
		logger: log,
	}
}

// Create inserts s, stamping submitted/indexed times for its status.
func (r *SubmissionRepository) Create(ctx context.Context, s *models.BacklinkSubmission) error {
	now := time.Now().UTC()
	s.ID = uuid.New().String()
	s.CreatedAt = now
	s.UpdatedAt = now
	if s.Status == "" {
		s.Status = models.SubmissionPending
	}
	s.StampTransition(now)

	query := `
		INSERT INTO backlink_submissions (
			id, site_id, backlink_site_id, status, submitted_at, indexed_at, notes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.ExecContext(ctx, query,
		s.ID,
		s.SiteID,
		s.BacklinkSiteID,
		s.Status,
		s.SubmittedAt,
		s.IndexedAt,
		s.Notes,
		s.CreatedAt,
		s.UpdatedAt,
	)
	return translate(err, "insert submission", "submission", submissionConflictMsg)
}

// CreateIfAbsent inserts s unless the (site, backlink site) pair exists.
// created reports whether a row was written.
func (r *SubmissionRepository) CreateIfAbsent(ctx context.Context, s *models.BacklinkSubmission) (created bool, err error) {
	now := time.Now().UTC()
	s.ID = uuid.New().String()
	s.CreatedAt = now
	s.UpdatedAt = now
	s.StampTransition(now)

	query := `
		INSERT INTO backlink_submissions (
			id, site_id, backlink_site_id, status, submitted_at, indexed_at, notes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (site_id, backlink_site_id) DO NOTHING
	`

	result, err := r.db.ExecContext(ctx, query,
		s.ID,
		s.SiteID,
		s.BacklinkSiteID,
		s.Status,
		s.SubmittedAt,
		s.IndexedAt,
		s.Notes,
		s.CreatedAt,
		s.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert submission: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert submission: %w", err)
	}
	return n > 0, nil
}

func (r *SubmissionRepository) GetByID(ctx context.Context, id string) (*models.BacklinkSubmission, error) {
	query := `SELECT ` + submissionColumns + submissionFrom + ` WHERE bs.id = $1`

	var s models.BacklinkSubmission
	if err := r.db.GetContext(ctx, &s, query, id); err != nil {
		return nil, translate(err, "query submission", "submission", "")
	}
	return &s, nil
}

// ListByBacklinkSite returns the submissions of one backlink site, newest
// first.
func (r *SubmissionRepository) ListByBacklinkSite(ctx context.Context, backlinkSiteID string) ([]models.BacklinkSubmission, error) {
	query := `SELECT ` + submissionColumns + submissionFrom +
		` WHERE bs.backlink_site_id = $1 ORDER BY bs.created_at DESC`

	items := make([]models.BacklinkSubmission, 0)
	if err := r.db.SelectContext(ctx, &items, query, backlinkSiteID); err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return items, nil
}

// Statuses returns the raw status of every submission of a backlink site,
// the input of the traditional importance score.
func (r *SubmissionRepository) Statuses(ctx context.Context, backlinkSiteID string) ([]models.SubmissionStatus, error) {
	statuses := make([]models.SubmissionStatus, 0)
	query := `SELECT status FROM backlink_submissions WHERE backlink_site_id = $1`
	if err := r.db.SelectContext(ctx, &statuses, query, backlinkSiteID); err != nil {
		return nil, fmt.Errorf("query submission statuses: %w", err)
	}
	return statuses, nil
}

// Update stores status, notes and transition timestamps.
func (r *SubmissionRepository) Update(ctx context.Context, s *models.BacklinkSubmission) error {
	now := time.Now().UTC()
	s.UpdatedAt = now
	s.StampTransition(now)

	query := `
		UPDATE backlink_submissions
		SET status = $2, submitted_at = $3, indexed_at = $4, notes = $5, updated_at = $6
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		s.ID,
		s.Status,
		s.SubmittedAt,
		s.IndexedAt,
		s.Notes,
		s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update submission: %w", err)
	}
	return execRequireRows(result, nil, apperrors.NotFound("submission"))
}

func (r *SubmissionRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM backlink_submissions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete submission: %w", err)
	}
	return execRequireRows(result, nil, apperrors.NotFound("submission"))
}
