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

const connectorColumns = `c.id, c.site_id, s.name AS site_name, c.type, c.name, c.property_id,
	c.credentials, c.enabled, c.last_sync_at, c.last_sync_status, c.last_sync_error,
	c.created_at, c.updated_at`

const connectorFrom = ` FROM connectors c JOIN sites s ON s.id = c.site_id`

const connectorConflictMsg = "this site already has a connector of that type"

type ConnectorRepository struct {
	db     *sqlx.DB
	logger infralogger.Logger
}

func NewConnectorRepository(db *sqlx.DB, log infralogger.Logger) *ConnectorRepository {
	return &ConnectorRepository{
		db:     db,
		logger: log,
	}
}

func (r *ConnectorRepository) Create(ctx context.Context, c *models.Connector) error {
	now := time.Now().UTC()
	c.ID = uuid.New().String()
	c.CreatedAt = now
	c.UpdatedAt = now
	c.HasCredentials = c.Credentials != ""

	query := `
		INSERT INTO connectors (
			id, site_id, type, name, property_id, credentials, enabled, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.ExecContext(ctx, query,
		c.ID,
		c.SiteID,
		c.Type,
		c.Name,
		c.PropertyID,
		c.Credentials,
		c.Enabled,
		c.CreatedAt,
		c.UpdatedAt,
	)
	return translate(err, "insert connector", "connector", connectorConflictMsg)
}

// GetByID returns a connector whose site is not soft-deleted.
func (r *ConnectorRepository) GetByID(ctx context.Context, id string) (*models.Connector, error) {
	query := `SELECT ` + connectorColumns + connectorFrom + ` WHERE c.id = $1 AND s.deleted_at IS NULL`

	var c models.Connector
	if err := r.db.GetContext(ctx, &c, query, id); err != nil {
		return nil, translate(err, "query connector", "connector", "")
	}
	c.HasCredentials = c.Credentials != ""
	return &c, nil
}

// GetForSite returns the connector of type t for an active site.
func (r *ConnectorRepository) GetForSite(ctx context.Context, siteID string, t models.ConnectorType) (*models.Connector, error) {
	query := `SELECT ` + connectorColumns + connectorFrom + ` WHERE c.site_id = $1 AND c.type = $2 AND s.deleted_at IS NULL`

	var c models.Connector
	if err := r.db.GetContext(ctx, &c, query, siteID, t); err != nil {
		return nil, translate(err, "query site connector", "connector", "")
	}
	c.HasCredentials = c.Credentials != ""
	return &c, nil
}

func (r *ConnectorRepository) List(ctx context.Context, filter models.ConnectorFilter) ([]models.Connector, error) {
	where := &whereBuilder{}
	where.add("s.deleted_at IS NULL")
	if filter.SiteID != "" {
		where.add("c.site_id = ?", filter.SiteID)
	}
	if filter.Type != "" {
		where.add("c.type = ?", filter.Type)
	}

	query := `SELECT ` + connectorColumns + connectorFrom + where.clause() + ` ORDER BY s.name ASC, c.type ASC`

	items := make([]models.Connector, 0)
	if err := r.db.SelectContext(ctx, &items, query, where.args...); err != nil {
		return nil, fmt.Errorf("list connectors: %w", err)
	}
	for i := range items {
		items[i].HasCredentials = items[i].Credentials != ""
	}
	return items, nil
}

// ListEnabled returns the enabled connectors of type t on active sites, the
// targets of a batch sync.
func (r *ConnectorRepository) ListEnabled(ctx context.Context, t models.ConnectorType) ([]models.Connector, error) {
	query := `SELECT ` + connectorColumns + connectorFrom + `
		WHERE s.deleted_at IS NULL AND c.enabled AND c.type = $1
		ORDER BY s.name ASC, c.id ASC`

	items := make([]models.Connector, 0)
	if err := r.db.SelectContext(ctx, &items, query, t); err != nil {
		return nil, fmt.Errorf("list enabled connectors: %w", err)
	}
	for i := range items {
		items[i].HasCredentials = items[i].Credentials != ""
	}
	return items, nil
}

// Update overwrites name, property, enabled and, when non-empty, credentials.
func (r *ConnectorRepository) Update(ctx context.Context, c *models.Connector) error {
	c.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE connectors
		SET name = $2, property_id = $3, enabled = $4,
		    credentials = CASE WHEN $5 = '' THEN credentials ELSE $5 END,
		    updated_at = $6
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		c.ID,
		c.Name,
		c.PropertyID,
		c.Enabled,
		c.Credentials,
		c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update connector: %w", err)
	}
	return execRequireRows(result, nil, apperrors.NotFound("connector"))
}

func (r *ConnectorRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM connectors WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete connector: %w", err)
	}
	return execRequireRows(result, nil, apperrors.NotFound("connector"))
}

// RecordSync stores the outcome of a sync run. errMsg is cleared on success.
func (r *ConnectorRepository) RecordSync(ctx context.Context, id string, at time.Time, syncErr error) error {
	status, errMsg := models.SyncStatusSuccess, ""
	if syncErr != nil {
		status, errMsg = models.SyncStatusFailed, syncErr.Error()
	}

	query := `
		UPDATE connectors
		SET last_sync_at = $2, last_sync_status = $3, last_sync_error = $4, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id, at, status, errMsg)
	if err != nil {
		return fmt.Errorf("record connector sync: %w", err)
	}
	return execRequireRows(result, nil, apperrors.NotFound("connector"))
}
