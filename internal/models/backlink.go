package models

import (
	"strings"
	"time"
)

// SubmissionStatus is the lifecycle status of a backlink submission.
type SubmissionStatus string

const (
	SubmissionPending   SubmissionStatus = "pending"
	SubmissionSubmitted SubmissionStatus = "submitted"
	SubmissionContacted SubmissionStatus = "contacted"
	SubmissionIndexed   SubmissionStatus = "indexed"
	SubmissionFailed    SubmissionStatus = "failed"
)

// SubmissionStatuses lists every known status.
var SubmissionStatuses = []SubmissionStatus{
	SubmissionPending, SubmissionSubmitted, SubmissionContacted, SubmissionIndexed, SubmissionFailed,
}

// Valid reports whether s is a known status.
func (s SubmissionStatus) Valid() bool {
	switch s {
	case SubmissionPending, SubmissionSubmitted, SubmissionContacted, SubmissionIndexed, SubmissionFailed:
		return true
	}
	return false
}

// ParseSubmissionStatus normalizes case and whitespace. ok is false for
// unknown values, which are returned unchanged.
func ParseSubmissionStatus(s string) (status SubmissionStatus, ok bool) {
	status = SubmissionStatus(strings.ToLower(strings.TrimSpace(s)))
	return status, status.Valid()
}

// BacklinkSite is an external site considered as a backlink target.
// It carries either Semrush-style metrics or a legacy DR value;
// ImportanceScore is derived from them.
type BacklinkSite struct {
	ID              string    `db:"id"               json:"id"`
	URL             string    `db:"url"              json:"url"`
	Domain          string    `db:"domain"           json:"domain"`
	Name            string    `db:"name"             json:"name"`
	Category        string    `db:"category"         json:"category"`
	DR              *float64  `db:"dr"               json:"dr"`
	AuthorityScore  *float64  `db:"authority_score"  json:"authorityScore"`
	OrganicTraffic  *int64    `db:"organic_traffic"  json:"organicTraffic"`
	Backlinks       *int64    `db:"backlinks"        json:"backlinks"`
	RefDomains      *int64    `db:"ref_domains"      json:"refDomains"`
	Notes           string    `db:"notes"            json:"notes"`
	ImportanceScore int       `db:"importance_score" json:"importanceScore"`
	SubmissionCount int       `db:"submission_count" json:"submissionCount"`
	CreatedAt       time.Time `db:"created_at"       json:"createdAt"`
	UpdatedAt       time.Time `db:"updated_at"       json:"updatedAt"`
}

// BacklinkSiteFilter narrows backlink site listings.
type BacklinkSiteFilter struct {
	Search   string
	Category string
	// SortBy is validated against a whitelist by the repository.
	SortBy    string
	SortOrder string
	Page
}

// BacklinkSubmission links a portfolio Site to a BacklinkSite.
// (SiteID, BacklinkSiteID) is unique.
type BacklinkSubmission struct {
	ID             string           `db:"id"               json:"id"`
	SiteID         string           `db:"site_id"          json:"siteId"`
	BacklinkSiteID string           `db:"backlink_site_id" json:"backlinkSiteId"`
	Status         SubmissionStatus `db:"status"           json:"status"`
	SubmittedAt    *time.Time       `db:"submitted_at"     json:"submittedAt,omitempty"`
	IndexedAt      *time.Time       `db:"indexed_at"       json:"indexedAt,omitempty"`
	Notes          string           `db:"notes"            json:"notes"`
	CreatedAt      time.Time        `db:"created_at"       json:"createdAt"`
	UpdatedAt      time.Time        `db:"updated_at"       json:"updatedAt"`

	SiteName       string `db:"site_name"       json:"siteName,omitempty"`
	BacklinkDomain string `db:"backlink_domain" json:"backlinkDomain,omitempty"`
}

// StampTransition sets SubmittedAt/IndexedAt the first time the submission
// reaches the matching status.
func (s *BacklinkSubmission) StampTransition(now time.Time) {
	switch s.Status {
	case SubmissionSubmitted, SubmissionContacted:
		if s.SubmittedAt == nil {
			s.SubmittedAt = &now
		}
	case SubmissionIndexed:
		if s.SubmittedAt == nil {
			s.SubmittedAt = &now
		}
		if s.IndexedAt == nil {
			s.IndexedAt = &now
		}
	case SubmissionPending, SubmissionFailed:
	}
}

// BacklinkExportRow is one submission flattened for export.
type BacklinkExportRow struct {
	BacklinkDomain  string           `db:"backlink_domain"`
	BacklinkURL     string           `db:"backlink_url"`
	Category        string           `db:"category"`
	ImportanceScore int              `db:"importance_score"`
	SiteName        string           `db:"site_name"`
	SiteDomain      string           `db:"site_domain"`
	Status          SubmissionStatus `db:"status"`
	SubmittedAt     *time.Time       `db:"submitted_at"`
	IndexedAt       *time.Time       `db:"indexed_at"`
}
