// Package recompute keeps backlink importance scores current. Recomputer
// does the work; Queue runs single-site recomputes off the request path.
package recompute

import (
	"context"
	"fmt"

	infraevents "github.com/jonesrussell/site-portfolio/infrastructure/events"
	infralogger "github.com/jonesrussell/site-portfolio/infrastructure/logger"
	"github.com/jonesrussell/site-portfolio/internal/models"
	"github.com/jonesrussell/site-portfolio/internal/scoring"
)

// SiteStore reads backlink sites and persists their score.
type SiteStore interface {
	GetByID(ctx context.Context, id string) (*models.BacklinkSite, error)
	ListIDs(ctx context.Context) ([]string, error)
	UpdateImportance(ctx context.Context, id string, score int) error
}

// StatusStore lists the submission statuses of a backlink site.
type StatusStore interface {
	Statuses(ctx context.Context, backlinkSiteID string) ([]models.SubmissionStatus, error)
}

// EventPublisher receives SCORES_RECOMPUTED after a batch.
type EventPublisher interface {
	PublishAsync(event infraevents.Event)
}

// ItemError is one failed site of a batch.
type ItemError struct {
	BacklinkSiteID string `json:"backlinkSiteId"`
	Error          string `json:"error"`
}

// BatchResult summarizes RecomputeAll. Total is Updated + Unchanged + Failed.
type BatchResult struct {
	Total     int         `json:"total"`
	Updated   int         `json:"updated"`
	Unchanged int         `json:"unchanged"`
	Failed    int         `json:"failed"`
	Errors    []ItemError `json:"errors"`
}

type Recomputer struct {
	sites     SiteStore
	statuses  StatusStore
	publisher EventPublisher
	logger    infralogger.Logger
}

// NewRecomputer builds a Recomputer. publisher may be nil.
func NewRecomputer(sites SiteStore, statuses StatusStore, publisher EventPublisher, log infralogger.Logger) *Recomputer {
	if log == nil {
		log = infralogger.NewNop()
	}
	return &Recomputer{
		sites:     sites,
		statuses:  statuses,
		publisher: publisher,
		logger:    log,
	}
}

// Recompute scores one backlink site from its stored metrics and
// submissions and saves the result.
func (r *Recomputer) Recompute(ctx context.Context, backlinkSiteID string) (int, error) {
	score, _, err := r.recompute(ctx, backlinkSiteID)
	return score, err
}

// recompute reports whether the stored score changed; an unchanged score is
// not written.
func (r *Recomputer) recompute(ctx context.Context, backlinkSiteID string) (score int, changed bool, err error) {
	site, err := r.sites.GetByID(ctx, backlinkSiteID)
	if err != nil {
		return 0, false, err
	}

	m := scoring.MetricsOf(site)
	var statuses []models.SubmissionStatus
	if !m.Rich() {
		statuses, err = r.statuses.Statuses(ctx, backlinkSiteID)
		if err != nil {
			return 0, false, fmt.Errorf("list submission statuses: %w", err)
		}
		if unknown := scoring.UnknownStatuses(statuses); len(unknown) > 0 {
			r.logger.Warn("Unknown submission status scored as 0",
				infralogger.String("backlink_site_id", backlinkSiteID),
				infralogger.Any("statuses", unknown),
			)
		}
	}

	score = scoring.Importance(m, statuses)
	if score == site.ImportanceScore {
		return score, false, nil
	}
	if err = r.sites.UpdateImportance(ctx, backlinkSiteID, score); err != nil {
		return 0, false, fmt.Errorf("update importance: %w", err)
	}
	return score, true, nil
}

// RecomputeAll rescores every backlink site. One site failing is recorded
// and the batch continues.
func (r *Recomputer) RecomputeAll(ctx context.Context) (*BatchResult, error) {
	ids, err := r.sites.ListIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list backlink sites: %w", err)
	}

	result := &BatchResult{Total: len(ids), Errors: []ItemError{}}
	for _, id := range ids {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		_, changed, recomputeErr := r.recompute(ctx, id)
		if recomputeErr != nil {
			result.Failed++
			result.Errors = append(result.Errors, ItemError{BacklinkSiteID: id, Error: recomputeErr.Error()})
			r.logger.Warn("Importance recompute failed",
				infralogger.String("backlink_site_id", id),
				infralogger.Error(recomputeErr),
			)
			continue
		}
		if changed {
			result.Updated++
		} else {
			result.Unchanged++
		}
	}

	r.logger.Info("Importance recompute finished",
		infralogger.Int("total", result.Total),
		infralogger.Int("updated", result.Updated),
		infralogger.Int("failed", result.Failed),
	)
	if r.publisher != nil {
		r.publisher.PublishAsync(infraevents.Event{
			EventType: infraevents.ScoresRecomputed,
			Payload:   infraevents.ScoresRecomputedPayload{Total: result.Total, Failed: result.Failed},
		})
	}
	return result, nil
}
