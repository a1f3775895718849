// Package events defines the portfolio lifecycle events published to a Redis
// stream for downstream consumers (dashboards, notifiers, audit).
package events

import (
	"time"

	"github.com/google/uuid"
)

// DefaultStreamName is the Redis stream used when none is configured.
const DefaultStreamName = "portfolio-events"

// EventType names a lifecycle event.
type EventType string

const (
	SiteCreated       EventType = "SITE_CREATED"
	SiteUpdated       EventType = "SITE_UPDATED"
	SiteDeleted       EventType = "SITE_DELETED"
	SubmissionCreated EventType = "SUBMISSION_CREATED"
	SubmissionUpdated EventType = "SUBMISSION_UPDATED"
	SyncCompleted     EventType = "SYNC_COMPLETED"
	ImportCompleted   EventType = "IMPORT_COMPLETED"
	ScoresRecomputed  EventType = "SCORES_RECOMPUTED"
)

// Event is the envelope written to the stream under the "event" field.
type Event struct {
	EventID   uuid.UUID `json:"event_id"`
	EventType EventType `json:"event_type"`
	// EntityID is the site, submission or backlink site the event is about;
	// empty for batch events.
	EntityID  string    `json:"entity_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

// SitePayload accompanies SITE_* events.
type SitePayload struct {
	Name          string   `json:"name"`
	Domain        string   `json:"domain"`
	Status        string   `json:"status"`
	ChangedFields []string `json:"changed_fields,omitempty"`
}

// SubmissionPayload accompanies SUBMISSION_* events.
type SubmissionPayload struct {
	SiteID         string `json:"site_id"`
	BacklinkSiteID string `json:"backlink_site_id"`
	Status         string `json:"status"`
}

// SyncCompletedPayload summarizes one sync batch.
type SyncCompletedPayload struct {
	Provider     string `json:"provider"`
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
	SuccessCount int    `json:"success_count"`
	FailureCount int    `json:"failure_count"`
	Trigger      string `json:"trigger"`
}

// ImportCompletedPayload summarizes one backlink import.
type ImportCompletedPayload struct {
	Kind    string `json:"kind"`
	Created int    `json:"created"`
	Updated int    `json:"updated"`
	Skipped int    `json:"skipped"`
	Errors  int    `json:"errors"`
}

// ScoresRecomputedPayload summarizes a batch importance recompute.
type ScoresRecomputedPayload struct {
	Total  int `json:"total"`
	Failed int `json:"failed"`
}
