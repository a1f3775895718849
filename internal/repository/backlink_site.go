package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	apperrors "github.com/jonesrussell/site-portfolio/infrastructure/errors"
	infralogger "github.com/jonesrussell/site-portfolio/infrastructure/logger"
	"github.com/jonesrussell/site-portfolio/internal/models"
)

const backlinkSiteColumns = `b.id, b.url, b.domain, b.name, b.category, b.dr, b.authority_score,
	b.organic_traffic, b.backlinks, b.ref_domains, b.notes, b.importance_score,
	b.created_at, b.updated_at,
	(SELECT COUNT(*) FROM backlink_submissions bs WHERE bs.backlink_site_id = b.id) AS submission_count`

const backlinkConflictMsg = "a backlink site with this domain already exists"

// backlinkSortColumns whitelists sortable columns.
var backlinkSortColumns = map[string]string{
	"":                "b.importance_score",
	"importanceScore": "b.importance_score",
	"domain":          "b.domain",
	"name":            "b.name",
	"dr":              "b.dr",
	"authorityScore":  "b.authority_score",
	"organicTraffic":  "b.organic_traffic",
	"createdAt":       "b.created_at",
}

type BacklinkSiteRepository struct {
	db     *sqlx.DB
	logger infralogger.Logger
}

func NewBacklinkSiteRepository(db *sqlx.DB, log infralogger.Logger) *BacklinkSiteRepository {
	return &BacklinkSiteRepository{
		db:     db,
		logger: log,
	}
}

// Create inserts b. ImportanceScore must already be computed.
func (r *BacklinkSiteRepository) Create(ctx context.Context, b *models.BacklinkSite) error {
	now := time.Now().UTC()
	b.ID = uuid.New().String()
	b.CreatedAt = now
	b.UpdatedAt = now

	query := `
		INSERT INTO backlink_sites (
			id, url, domain, name, category, dr, authority_score, organic_traffic,
			backlinks, ref_domains, notes, importance_score, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := r.db.ExecContext(ctx, query,
		b.ID,
		b.URL,
		b.Domain,
		b.Name,
		b.Category,
		b.DR,
		b.AuthorityScore,
		b.OrganicTraffic,
		b.Backlinks,
		b.RefDomains,
		b.Notes,
		b.ImportanceScore,
		b.CreatedAt,
		b.UpdatedAt,
	)
	return translate(err, "insert backlink site", "backlink site", backlinkConflictMsg)
}

func (r *BacklinkSiteRepository) GetByID(ctx context.Context, id string) (*models.BacklinkSite, error) {
	query := `SELECT ` + backlinkSiteColumns + ` FROM backlink_sites b WHERE b.id = $1`

	var b models.BacklinkSite
	if err := r.db.GetContext(ctx, &b, query, id); err != nil {
		return nil, translate(err, "query backlink site", "backlink site", "")
	}
	return &b, nil
}

func (r *BacklinkSiteRepository) GetByDomain(ctx context.Context, domain string) (*models.BacklinkSite, error) {
	query := `SELECT ` + backlinkSiteColumns + ` FROM backlink_sites b WHERE b.domain = $1`

	var b models.BacklinkSite
	if err := r.db.GetContext(ctx, &b, query, domain); err != nil {
		return nil, translate(err, "query backlink site by domain", "backlink site", "")
	}
	return &b, nil
}

// ExistingDomains returns the subset of domains already stored.
func (r *BacklinkSiteRepository) ExistingDomains(ctx context.Context, domains []string) (map[string]string, error) {
	found := make(map[string]string, len(domains))
	if len(domains) == 0 {
		return found, nil
	}

	rows, err := r.db.QueryxContext(ctx,
		`SELECT domain, id FROM backlink_sites WHERE domain = ANY($1)`, pq.Array(domains))
	if err != nil {
		return nil, fmt.Errorf("query existing domains: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var domain, id string
		if scanErr := rows.Scan(&domain, &id); scanErr != nil {
			return nil, fmt.Errorf("scan existing domain: %w", scanErr)
		}
		found[domain] = id
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate existing domains: %w", err)
	}
	return found, nil
}

// List returns one page of backlink sites. Unknown sort keys fall back to
// importance descending.
func (r *BacklinkSiteRepository) List(
	ctx context.Context,
	filter models.BacklinkSiteFilter,
) (*models.PageResult[models.BacklinkSite], error) {
	page := filter.Page.Normalize()

	where := &whereBuilder{}
	if filter.Search != "" {
		pattern := likePattern(filter.Search)
		where.add("(b.domain ILIKE ? OR b.name ILIKE ?)", pattern, pattern)
	}
	if filter.Category != "" {
		where.add("b.category = ?", filter.Category)
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM backlink_sites b` + where.clause()
	if err := r.db.GetContext(ctx, &total, countQuery, where.args...); err != nil {
		return nil, fmt.Errorf("count backlink sites: %w", err)
	}

	// #nosec G202 -- order clause built from whitelist
	query := `SELECT ` + backlinkSiteColumns + ` FROM backlink_sites b` + where.clause() +
		buildBacklinkOrder(filter) +
		` LIMIT ` + where.next(page.PageSize) + ` OFFSET ` + where.next(page.Offset())

	items := make([]models.BacklinkSite, 0)
	if err := r.db.SelectContext(ctx, &items, query, where.args...); err != nil {
		return nil, fmt.Errorf("list backlink sites: %w", err)
	}

	return &models.PageResult[models.BacklinkSite]{
		Items:    items,
		Total:    total,
		Page:     page.Page,
		PageSize: page.PageSize,
	}, nil
}

func buildBacklinkOrder(filter models.BacklinkSiteFilter) string {
	col, ok := backlinkSortColumns[filter.SortBy]
	if !ok {
		col = backlinkSortColumns[""]
	}
	dir := "DESC"
	if strings.EqualFold(filter.SortOrder, "asc") {
		dir = "ASC"
	}
	return ` ORDER BY ` + col + ` ` + dir + ` NULLS LAST, b.domain ASC`
}

// ListIDs returns every backlink site ID, for batch recompute.
func (r *BacklinkSiteRepository) ListIDs(ctx context.Context) ([]string, error) {
	ids := make([]string, 0)
	if err := r.db.SelectContext(ctx, &ids, `SELECT id FROM backlink_sites ORDER BY domain`); err != nil {
		return nil, fmt.Errorf("list backlink site ids: %w", err)
	}
	return ids, nil
}

// Update overwrites the mutable fields of b, including its importance score.
func (r *BacklinkSiteRepository) Update(ctx context.Context, b *models.BacklinkSite) error {
	b.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE backlink_sites
		SET url = $2, domain = $3, name = $4, category = $5, dr = $6, authority_score = $7,
		    organic_traffic = $8, backlinks = $9, ref_domains = $10, notes = $11,
		    importance_score = $12, updated_at = $13
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		b.ID,
		b.URL,
		b.Domain,
		b.Name,
		b.Category,
		b.DR,
		b.AuthorityScore,
		b.OrganicTraffic,
		b.Backlinks,
		b.RefDomains,
		b.Notes,
		b.ImportanceScore,
		b.UpdatedAt,
	)
	if err != nil {
		return translate(err, "update backlink site", "backlink site", backlinkConflictMsg)
	}
	return execRequireRows(result, nil, apperrors.NotFound("backlink site"))
}

// UpdateImportance stores a recomputed score.
func (r *BacklinkSiteRepository) UpdateImportance(ctx context.Context, id string, score int) error {
	query := `UPDATE backlink_sites SET importance_score = $2, updated_at = NOW() WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, score)
	if err != nil {
		return fmt.Errorf("update importance: %w", err)
	}
	return execRequireRows(result, nil, apperrors.NotFound("backlink site"))
}

// Delete removes b; its submissions cascade.
func (r *BacklinkSiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM backlink_sites WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete backlink site: %w", err)
	}
	return execRequireRows(result, nil, apperrors.NotFound("backlink site"))
}

// ExportRows flattens every submission with its backlink site and portfolio
// site, ordered by importance.
func (r *BacklinkSiteRepository) ExportRows(ctx context.Context) ([]models.BacklinkExportRow, error) {
	query := `
		SELECT b.domain AS backlink_domain, b.url AS backlink_url, b.category, b.importance_score,
		       s.name AS site_name, s.domain AS site_domain, bs.status, bs.submitted_at, bs.indexed_at
		FROM backlink_submissions bs
		JOIN backlink_sites b ON b.id = bs.backlink_site_id
		JOIN sites s ON s.id = bs.site_id AND s.deleted_at IS NULL
		ORDER BY b.importance_score DESC, b.domain ASC, s.name ASC
	`

	rows := make([]models.BacklinkExportRow, 0)
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("query backlink export: %w", err)
	}
	return rows, nil
}
