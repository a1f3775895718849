package models

import "time"

// ConnectorType names the external provider behind a connector.
type ConnectorType string

const (
	ConnectorGoogleAnalytics ConnectorType = "google_analytics"
	ConnectorSearchConsole   ConnectorType = "search_console"
)

func (t ConnectorType) Valid() bool {
	return t == ConnectorGoogleAnalytics || t == ConnectorSearchConsole
}

// Sync outcome recorded on a connector.
const (
	SyncStatusSuccess = "success"
	SyncStatusFailed  = "failed"
)

// Connector links a Site to an external analytics property. PropertyID is the
// GA4 property ID or the Search Console site URL. Empty Credentials means the
// process-wide service account is used.
type Connector struct {
	ID             string        `db:"id"               json:"id"`
	SiteID         string        `db:"site_id"          json:"siteId"`
	SiteName       string        `db:"site_name"        json:"siteName,omitempty"`
	Type           ConnectorType `db:"type"             json:"type"`
	Name           string        `db:"name"             json:"name"`
	PropertyID     string        `db:"property_id"      json:"propertyId"`
	Credentials    string        `db:"credentials"      json:"-"`
	HasCredentials bool          `db:"-"                json:"hasCredentials"`
	Enabled        bool          `db:"enabled"          json:"enabled"`
	LastSyncAt     *time.Time    `db:"last_sync_at"     json:"lastSyncAt,omitempty"`
	LastSyncStatus string        `db:"last_sync_status" json:"lastSyncStatus"`
	LastSyncError  string        `db:"last_sync_error"  json:"lastSyncError,omitempty"`
	CreatedAt      time.Time     `db:"created_at"       json:"createdAt"`
	UpdatedAt      time.Time     `db:"updated_at"       json:"updatedAt"`
}

// ConnectorFilter narrows connector listings.
type ConnectorFilter struct {
	SiteID string
	Type   ConnectorType
}
