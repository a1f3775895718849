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

const siteColumns = `id, name, domain, url, category, status, description, deleted_at, created_at, updated_at`

const siteConflictMsg = "a site with this domain already exists"

type SiteRepository struct {
	db     *sqlx.DB
	logger infralogger.Logger
}

func NewSiteRepository(db *sqlx.DB, log infralogger.Logger) *SiteRepository {
	return &SiteRepository{
		db:     db,
		logger: log,
	}
}

// Create inserts site, assigning its ID and timestamps. Domain and URL must
// already be normalized.
func (r *SiteRepository) Create(ctx context.Context, site *models.Site) error {
	now := time.Now().UTC()
	site.ID = uuid.New().String()
	site.CreatedAt = now
	site.UpdatedAt = now
	if site.Status == "" {
		site.Status = models.SiteStatusOnline
	}

	query := `
		INSERT INTO sites (id, name, domain, url, category, status, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.ExecContext(ctx, query,
		site.ID,
		site.Name,
		site.Domain,
		site.URL,
		site.Category,
		site.Status,
		site.Description,
		site.CreatedAt,
		site.UpdatedAt,
	)
	return translate(err, "insert site", "site", siteConflictMsg)
}

// GetByID returns an active site.
func (r *SiteRepository) GetByID(ctx context.Context, id string) (*models.Site, error) {
	query := `SELECT ` + siteColumns + ` FROM sites WHERE id = $1 AND deleted_at IS NULL`

	var site models.Site
	if err := r.db.GetContext(ctx, &site, query, id); err != nil {
		return nil, translate(err, "query site", "site", "")
	}
	return &site, nil
}

// GetByDomain returns the active site owning domain.
func (r *SiteRepository) GetByDomain(ctx context.Context, domain string) (*models.Site, error) {
	query := `SELECT ` + siteColumns + ` FROM sites WHERE domain = $1 AND deleted_at IS NULL`

	var site models.Site
	if err := r.db.GetContext(ctx, &site, query, domain); err != nil {
		return nil, translate(err, "query site by domain", "site", "")
	}
	return &site, nil
}

// List returns one page of active sites ordered by name.
func (r *SiteRepository) List(ctx context.Context, filter models.SiteFilter) (*models.PageResult[models.Site], error) {
	page := filter.Page.Normalize()

	where := &whereBuilder{}
	where.add("deleted_at IS NULL")
	if filter.Status != "" {
		where.add("status = ?", filter.Status)
	}
	if filter.Category != "" {
		where.add("category = ?", filter.Category)
	}
	if filter.Search != "" {
		pattern := likePattern(filter.Search)
		where.add("(name ILIKE ? OR domain ILIKE ?)", pattern, pattern)
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM sites` + where.clause()
	if err := r.db.GetContext(ctx, &total, countQuery, where.args...); err != nil {
		return nil, fmt.Errorf("count sites: %w", err)
	}

	// #nosec G202 -- conditions are fixed strings; values are bound
	query := `SELECT ` + siteColumns + ` FROM sites` + where.clause() +
		` ORDER BY name ASC, id ASC LIMIT ` + where.next(page.PageSize) + ` OFFSET ` + where.next(page.Offset())

	sites := make([]models.Site, 0)
	if err := r.db.SelectContext(ctx, &sites, query, where.args...); err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}

	return &models.PageResult[models.Site]{
		Items:    sites,
		Total:    total,
		Page:     page.Page,
		PageSize: page.PageSize,
	}, nil
}

// ListActive returns every active site ordered by name.
func (r *SiteRepository) ListActive(ctx context.Context) ([]models.Site, error) {
	query := `SELECT ` + siteColumns + ` FROM sites WHERE deleted_at IS NULL ORDER BY name ASC, id ASC`

	sites := make([]models.Site, 0)
	if err := r.db.SelectContext(ctx, &sites, query); err != nil {
		return nil, fmt.Errorf("list active sites: %w", err)
	}
	return sites, nil
}

// Update overwrites the mutable fields of an active site.
func (r *SiteRepository) Update(ctx context.Context, site *models.Site) error {
	site.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE sites
		SET name = $2, domain = $3, url = $4, category = $5, status = $6,
		    description = $7, updated_at = $8
		WHERE id = $1 AND deleted_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query,
		site.ID,
		site.Name,
		site.Domain,
		site.URL,
		site.Category,
		site.Status,
		site.Description,
		site.UpdatedAt,
	)
	if err != nil {
		return translate(err, "update site", "site", siteConflictMsg)
	}
	return execRequireRows(result, nil, apperrors.NotFound("site"))
}

// SoftDelete marks an active site deleted. Its domain becomes free for reuse.
func (r *SiteRepository) SoftDelete(ctx context.Context, id string) error {
	query := `UPDATE sites SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete site: %w", err)
	}
	return execRequireRows(result, nil, apperrors.NotFound("site"))
}
