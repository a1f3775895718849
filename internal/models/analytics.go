package models

import "time"

// Traffic data sources.
const (
	TrafficSourceGoogleAnalytics = "google_analytics"
	TrafficSourceManual          = "manual"
)

// TrafficData is one day of analytics for a site, unique on (SiteID, Date).
type TrafficData struct {
	ID                 string    `db:"id"                   json:"id"`
	SiteID             string    `db:"site_id"              json:"siteId"`
	Date               Date      `db:"date"                 json:"date"`
	Sessions           int64     `db:"sessions"             json:"sessions"`
	Users              int64     `db:"users"                json:"users"`
	NewUsers           int64     `db:"new_users"            json:"newUsers"`
	Pageviews          int64     `db:"pageviews"            json:"pageviews"`
	BounceRate         float64   `db:"bounce_rate"          json:"bounceRate"`
	AvgSessionDuration float64   `db:"avg_session_duration" json:"avgSessionDuration"`
	Source             string    `db:"source"               json:"source"`
	CreatedAt          time.Time `db:"created_at"           json:"createdAt"`
	UpdatedAt          time.Time `db:"updated_at"           json:"updatedAt"`
}

// SearchConsoleData is one day of search performance for a site, unique on
// (SiteID, Date).
type SearchConsoleData struct {
	ID          string    `db:"id"          json:"id"`
	SiteID      string    `db:"site_id"     json:"siteId"`
	Date        Date      `db:"date"        json:"date"`
	Clicks      int64     `db:"clicks"      json:"clicks"`
	Impressions int64     `db:"impressions" json:"impressions"`
	CTR         float64   `db:"ctr"         json:"ctr"`
	Position    float64   `db:"position"    json:"position"`
	CreatedAt   time.Time `db:"created_at"  json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at"  json:"updatedAt"`
}

// DateRange is an inclusive range of days.
type DateRange struct {
	Start Date `json:"startDate"`
	End   Date `json:"endDate"`
}

// Days is the number of days in the range, inclusive.
func (r DateRange) Days() int {
	return int(r.End.Sub(r.Start.Time).Hours()/24) + 1
}
