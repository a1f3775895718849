package models

import "time"

// SiteStatus is the lifecycle status of a managed site.
type SiteStatus string

const (
	SiteStatusOnline      SiteStatus = "online"
	SiteStatusMaintenance SiteStatus = "maintenance"
	SiteStatusOffline     SiteStatus = "offline"
)

// Valid reports whether s is a known status.
func (s SiteStatus) Valid() bool {
	switch s {
	case SiteStatusOnline, SiteStatusMaintenance, SiteStatusOffline:
		return true
	}
	return false
}

// Site is a website in the portfolio. Domain is unique among sites that are
// not soft-deleted.
type Site struct {
	ID          string     `db:"id"          json:"id"`
	Name        string     `db:"name"        json:"name"`
	Domain      string     `db:"domain"      json:"domain"`
	URL         string     `db:"url"         json:"url"`
	Category    string     `db:"category"    json:"category"`
	Status      SiteStatus `db:"status"      json:"status"`
	Description string     `db:"description" json:"description"`
	DeletedAt   *time.Time `db:"deleted_at"  json:"deletedAt,omitempty"`
	CreatedAt   time.Time  `db:"created_at"  json:"createdAt"`
	UpdatedAt   time.Time  `db:"updated_at"  json:"updatedAt"`
}

// SiteFilter narrows site listings.
type SiteFilter struct {
	Status   SiteStatus
	Category string
	// Search matches name or domain, case-insensitively.
	Search string
	Page
}
