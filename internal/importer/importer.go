// Package importer bulk-loads backlink sites: quick URL lists, Semrush
// exports and referral sources of a portfolio site. Every import follows the
// partial-failure model: bad rows are reported and the rest still land.
package importer

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/jonesrussell/site-portfolio/infrastructure/errors"
	infraevents "github.com/jonesrussell/site-portfolio/infrastructure/events"
	infralogger "github.com/jonesrussell/site-portfolio/infrastructure/logger"
	"github.com/jonesrussell/site-portfolio/internal/analytics"
	"github.com/jonesrussell/site-portfolio/internal/metrics"
	"github.com/jonesrussell/site-portfolio/internal/models"
	"github.com/jonesrussell/site-portfolio/internal/scoring"
	"github.com/jonesrussell/site-portfolio/internal/syncer"
	"github.com/jonesrussell/site-portfolio/internal/urlutil"
)

// Import kinds, used in events and metrics.
const (
	KindQuick    = "quick"
	KindSemrush  = "semrush"
	KindReferral = "referral"
)

// ImportError represents a validation error for a specific row.
type ImportError struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

// Result is the outcome of one import. Duplicates are counted in Skipped and
// listed separately from Errors.
type Result struct {
	Created    int           `json:"created"`
	Updated    int           `json:"updated"`
	Skipped    int           `json:"skipped"`
	Errors     []ImportError `json:"errors"`
	Duplicates []ImportError `json:"duplicates,omitempty"`
}

func newResult(parseErrors []ImportError) *Result {
	r := &Result{Errors: []ImportError{}}
	r.Errors = append(r.Errors, parseErrors...)
	return r
}

func (r *Result) fail(row int, format string, args ...any) {
	r.Errors = append(r.Errors, ImportError{Row: row, Error: fmt.Sprintf(format, args...)})
}

func (r *Result) duplicate(row int, format string, args ...any) {
	r.Skipped++
	r.Duplicates = append(r.Duplicates, ImportError{Row: row, Error: fmt.Sprintf(format, args...)})
}

// BacklinkStore is the backlink site persistence used by imports.
type BacklinkStore interface {
	GetByDomain(ctx context.Context, domain string) (*models.BacklinkSite, error)
	ExistingDomains(ctx context.Context, domains []string) (map[string]string, error)
	Create(ctx context.Context, b *models.BacklinkSite) error
	Update(ctx context.Context, b *models.BacklinkSite) error
}

type SubmissionStore interface {
	CreateIfAbsent(ctx context.Context, s *models.BacklinkSubmission) (bool, error)
}

type SiteReader interface {
	GetByID(ctx context.Context, id string) (*models.Site, error)
}

type ConnectorReader interface {
	GetForSite(ctx context.Context, siteID string, t models.ConnectorType) (*models.Connector, error)
}

type ReferralFetcher interface {
	FetchReferralSources(ctx context.Context, c *models.Connector, rng models.DateRange) ([]analytics.ReferralSource, error)
}

// Recomputer schedules an importance recompute after a write.
type Recomputer interface {
	Enqueue(backlinkSiteID string) bool
}

type EventPublisher interface {
	PublishAsync(event infraevents.Event)
}

// Deps are the collaborators of an Importer. Referrals, Recompute, Publisher
// and Metrics may be nil.
type Deps struct {
	Backlinks   BacklinkStore
	Submissions SubmissionStore
	Sites       SiteReader
	Connectors  ConnectorReader
	Referrals   ReferralFetcher
	Filter      *urlutil.ReferralFilter
	Recompute   Recomputer
	Publisher   EventPublisher
	Metrics     *metrics.Metrics
	Logger      infralogger.Logger
}

type Importer struct {
	Deps
	now func() time.Time
}

func New(deps Deps) *Importer {
	if deps.Logger == nil {
		deps.Logger = infralogger.NewNop()
	}
	if deps.Filter == nil {
		deps.Filter = urlutil.NewReferralFilter()
	}
	return &Importer{Deps: deps, now: time.Now}
}

// QuickRequest is either newline separated text or a URL list with one DR.
type QuickRequest struct {
	Text string   `json:"text"`
	URLs []string `json:"urls"`
	DR   *float64 `json:"dr"`
}

// Quick creates backlink sites from bare URLs. Domains already stored or
// repeated within the batch are skipped and reported.
func (im *Importer) Quick(ctx context.Context, req QuickRequest) (*Result, error) {
	lines := ParseQuickText(req.Text)
	if req.Text == "" {
		lines = QuickLinesFromURLs(req.URLs, req.DR)
	}
	if len(lines) == 0 {
		return nil, apperrors.Validation("no URLs to import")
	}

	result := newResult(nil)
	type candidate struct {
		line   QuickLine
		url    string
		domain string
	}
	candidates := make([]candidate, 0, len(lines))
	firstRow := make(map[string]int, len(lines))
	for _, line := range lines {
		normalized, err := urlutil.NormalizeURL(line.URL)
		domain := urlutil.ExtractDomain(line.URL)
		if err != nil || domain == "" {
			result.fail(line.Row, "invalid url %q", line.URL)
			continue
		}
		if line.DR != nil && (*line.DR < 0 || *line.DR > 100) {
			result.fail(line.Row, "dr must be between 0 and 100")
			continue
		}
		if prev, dup := firstRow[domain]; dup {
			result.duplicate(line.Row, "duplicate of row %d (%s)", prev, domain)
			continue
		}
		firstRow[domain] = line.Row
		candidates = append(candidates, candidate{line: line, url: normalized, domain: domain})
	}

	existing, err := im.Backlinks.ExistingDomains(ctx, mapKeys(firstRow))
	if err != nil {
		return nil, err
	}

	for _, c := range candidates {
		if _, ok := existing[c.domain]; ok {
			result.duplicate(c.line.Row, "%s already exists", c.domain)
			continue
		}
		site := &models.BacklinkSite{URL: c.url, Domain: c.domain, Name: c.domain, DR: c.line.DR}
		site.ImportanceScore = scoring.Importance(scoring.MetricsOf(site), nil)
		if createErr := im.Backlinks.Create(ctx, site); createErr != nil {
			if errors.Is(createErr, apperrors.ErrConflict) {
				result.duplicate(c.line.Row, "%s already exists", c.domain)
				continue
			}
			result.fail(c.line.Row, "%s", apperrors.PublicMessage(createErr))
			im.logRowError(KindQuick, c.line.Row, createErr)
			continue
		}
		result.Created++
	}

	im.finish(KindQuick, result)
	return result, nil
}

// Semrush upserts rows by domain. Existing sites get the new metrics; DR,
// name and notes are kept. Importance is recomputed inline.
func (im *Importer) Semrush(ctx context.Context, rows []SemrushRow, parseErrors []ImportError) (*Result, error) {
	result := newResult(parseErrors)
	if len(rows) == 0 && len(parseErrors) == 0 {
		return nil, apperrors.Validation("no rows to import")
	}

	seen := make(map[string]int, len(rows))
	for _, row := range rows {
		domain := urlutil.ExtractDomain(row.Domain)
		if prev, dup := seen[domain]; dup {
			result.duplicate(row.Row, "duplicate of row %d (%s)", prev, domain)
			continue
		}
		seen[domain] = row.Row

		created, err := im.upsertSemrush(ctx, domain, row)
		switch {
		case err != nil:
			result.fail(row.Row, "%s", apperrors.PublicMessage(err))
			im.logRowError(KindSemrush, row.Row, err)
		case created:
			result.Created++
		default:
			result.Updated++
		}
	}

	im.finish(KindSemrush, result)
	return result, nil
}

func (im *Importer) upsertSemrush(ctx context.Context, domain string, row SemrushRow) (created bool, err error) {
	site, err := im.Backlinks.GetByDomain(ctx, domain)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return false, err
	}

	if site == nil {
		site = &models.BacklinkSite{URL: "https://" + domain, Domain: domain, Name: domain}
		applySemrush(site, row)
		site.ImportanceScore = scoring.Importance(scoring.MetricsOf(site), nil)
		return true, im.Backlinks.Create(ctx, site)
	}

	applySemrush(site, row)
	// Rich metrics are set, so submissions do not affect the score.
	site.ImportanceScore = scoring.Importance(scoring.MetricsOf(site), nil)
	return false, im.Backlinks.Update(ctx, site)
}

func applySemrush(site *models.BacklinkSite, row SemrushRow) {
	if row.AuthorityScore != nil {
		site.AuthorityScore = row.AuthorityScore
	}
	if row.OrganicTraffic != nil {
		site.OrganicTraffic = row.OrganicTraffic
	}
	if row.Backlinks != nil {
		site.Backlinks = row.Backlinks
	}
	if row.RefDomains != nil {
		site.RefDomains = row.RefDomains
	}
}

// ReferralRequest imports the referring domains of a portfolio site. Without
// Domains, the referral sources of the site's Analytics connector are read.
type ReferralRequest struct {
	SiteID  string   `json:"siteId"`
	Domains []string `json:"domains"`
	syncer.RangeRequest
}

// Referral records each referring domain as a backlink site with an indexed
// submission for the site. Sources that fail the referral filter are
// skipped; pairs already recorded are skipped too.
func (im *Importer) Referral(ctx context.Context, req ReferralRequest) (*Result, error) {
	if req.SiteID == "" {
		return nil, apperrors.Validation("siteId is required")
	}
	site, err := im.Sites.GetByID(ctx, req.SiteID)
	if err != nil {
		return nil, err
	}

	sources := req.Domains
	if len(sources) == 0 {
		sources, err = im.fetchReferralSources(ctx, req)
		if err != nil {
			return nil, err
		}
	}

	result := newResult(nil)
	domains := im.Filter.Filter(sources)
	result.Skipped += len(sources) - len(domains)

	for i, domain := range domains {
		row := i + 1
		if domain == site.Domain {
			result.Skipped++
			continue
		}

		backlinkID, created, upsertErr := im.ensureBacklinkSite(ctx, domain)
		if upsertErr != nil {
			result.fail(row, "%s", apperrors.PublicMessage(upsertErr))
			im.logRowError(KindReferral, row, upsertErr)
			continue
		}

		submission := &models.BacklinkSubmission{
			SiteID:         site.ID,
			BacklinkSiteID: backlinkID,
			Status:         models.SubmissionIndexed,
			Notes:          "imported from referral traffic",
		}
		inserted, subErr := im.Submissions.CreateIfAbsent(ctx, submission)
		if subErr != nil {
			result.fail(row, "%s", apperrors.PublicMessage(subErr))
			im.logRowError(KindReferral, row, subErr)
			continue
		}

		switch {
		case created:
			result.Created++
		case inserted:
			result.Updated++
		default:
			result.Skipped++
		}
		if inserted && im.Recompute != nil {
			im.Recompute.Enqueue(backlinkID)
		}
	}

	im.finish(KindReferral, result)
	return result, nil
}

func (im *Importer) fetchReferralSources(ctx context.Context, req ReferralRequest) ([]string, error) {
	if im.Referrals == nil {
		return nil, apperrors.Validation("Google Analytics is not configured; pass domains explicitly")
	}
	connector, err := im.Connectors.GetForSite(ctx, req.SiteID, models.ConnectorGoogleAnalytics)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Validation("site has no Google Analytics connector; pass domains explicitly")
		}
		return nil, err
	}

	rng, err := syncer.ResolveRange(req.RangeRequest, syncer.AnalyticsLagDays, models.NewDate(im.now().UTC()))
	if err != nil {
		return nil, err
	}
	referrals, err := im.Referrals.FetchReferralSources(ctx, connector, rng)
	if err != nil {
		return nil, fmt.Errorf("fetch referral sources: %w", err)
	}

	sources := make([]string, 0, len(referrals))
	for _, r := range referrals {
		sources = append(sources, r.Source)
	}
	return sources, nil
}

func (im *Importer) ensureBacklinkSite(ctx context.Context, domain string) (id string, created bool, err error) {
	existing, err := im.Backlinks.GetByDomain(ctx, domain)
	if err == nil {
		return existing.ID, false, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return "", false, err
	}

	site := &models.BacklinkSite{
		URL:      "https://" + domain,
		Domain:   domain,
		Name:     domain,
		Category: "referral",
	}
	if err = im.Backlinks.Create(ctx, site); err != nil {
		if !errors.Is(err, apperrors.ErrConflict) {
			return "", false, err
		}
		// Created concurrently.
		existing, err = im.Backlinks.GetByDomain(ctx, domain)
		if err != nil {
			return "", false, err
		}
		return existing.ID, false, nil
	}
	return site.ID, true, nil
}

func (im *Importer) finish(kind string, result *Result) {
	im.Metrics.ImportRows(kind, "created", result.Created)
	im.Metrics.ImportRows(kind, "updated", result.Updated)
	im.Metrics.ImportRows(kind, "skipped", result.Skipped)
	im.Metrics.ImportRows(kind, "failed", len(result.Errors))

	im.Logger.Info("Import finished",
		infralogger.String("kind", kind),
		infralogger.Int("created", result.Created),
		infralogger.Int("updated", result.Updated),
		infralogger.Int("skipped", result.Skipped),
		infralogger.Int("errors", len(result.Errors)),
	)

	if im.Publisher != nil {
		im.Publisher.PublishAsync(infraevents.Event{
			EventType: infraevents.ImportCompleted,
			Payload: infraevents.ImportCompletedPayload{
				Kind:    kind,
				Created: result.Created,
				Updated: result.Updated,
				Skipped: result.Skipped,
				Errors:  len(result.Errors),
			},
		})
	}
}

func (im *Importer) logRowError(kind string, row int, err error) {
	im.Logger.Warn("Import row failed",
		infralogger.String("kind", kind),
		infralogger.Int("row", row),
		infralogger.Error(err),
	)
}

func mapKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
