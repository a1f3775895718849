package handlers

import (
	"context"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	apperrors "github.com/jonesrussell/site-portfolio/infrastructure/errors"
	infraevents "github.com/jonesrussell/site-portfolio/infrastructure/events"
	infralogger "github.com/jonesrussell/site-portfolio/infrastructure/logger"
	"github.com/jonesrussell/site-portfolio/internal/export"
	"github.com/jonesrussell/site-portfolio/internal/importer"
	"github.com/jonesrussell/site-portfolio/internal/models"
	"github.com/jonesrussell/site-portfolio/internal/recompute"
	"github.com/jonesrussell/site-portfolio/internal/scoring"
	"github.com/jonesrussell/site-portfolio/internal/urlutil"
)

const maxUploadBytes = 10 << 20

type BacklinkStore interface {
	Create(ctx context.Context, b *models.BacklinkSite) error
	GetByID(ctx context.Context, id string) (*models.BacklinkSite, error)
	List(ctx context.Context, filter models.BacklinkSiteFilter) (*models.PageResult[models.BacklinkSite], error)
	Update(ctx context.Context, b *models.BacklinkSite) error
	Delete(ctx context.Context, id string) error
	ExportRows(ctx context.Context) ([]models.BacklinkExportRow, error)
}

type SubmissionStore interface {
	Create(ctx context.Context, s *models.BacklinkSubmission) error
	GetByID(ctx context.Context, id string) (*models.BacklinkSubmission, error)
	ListByBacklinkSite(ctx context.Context, backlinkSiteID string) ([]models.BacklinkSubmission, error)
	Statuses(ctx context.Context, backlinkSiteID string) ([]models.SubmissionStatus, error)
	Update(ctx context.Context, s *models.BacklinkSubmission) error
	Delete(ctx context.Context, id string) error
}

// Importer runs the three bulk imports.
type Importer interface {
	Quick(ctx context.Context, req importer.QuickRequest) (*importer.Result, error)
	Semrush(ctx context.Context, rows []importer.SemrushRow, parseErrors []importer.ImportError) (*importer.Result, error)
	Referral(ctx context.Context, req importer.ReferralRequest) (*importer.Result, error)
}

type BatchRecomputer interface {
	RecomputeAll(ctx context.Context) (*recompute.BatchResult, error)
}

// RecomputeQueue schedules a background importance recompute.
type RecomputeQueue interface {
	Enqueue(backlinkSiteID string) bool
}

// BacklinkDeps are the collaborators of BacklinkHandler. Queue and Publisher
// may be nil.
type BacklinkDeps struct {
	Backlinks   BacklinkStore
	Submissions SubmissionStore
	Sites       SiteGetter
	Importer    Importer
	Recomputer  BatchRecomputer
	Queue       RecomputeQueue
	Publisher   EventPublisher
	Logger      infralogger.Logger
}

type BacklinkHandler struct {
	base
	backlinks   BacklinkStore
	submissions SubmissionStore
	sites       SiteGetter
	importer    Importer
	recomputer  BatchRecomputer
	queue       RecomputeQueue
	publisher   EventPublisher
}

func NewBacklinkHandler(deps BacklinkDeps) *BacklinkHandler {
	return &BacklinkHandler{
		base:        newBase(deps.Logger),
		backlinks:   deps.Backlinks,
		submissions: deps.Submissions,
		sites:       deps.Sites,
		importer:    deps.Importer,
		recomputer:  deps.Recomputer,
		queue:       deps.Queue,
		publisher:   deps.Publisher,
	}
}

// backlinkRequest accepts metric values as numbers or Semrush-style strings
// ("12.5K"); unparseable values clear the metric.
type backlinkRequest struct {
	URL            *string `json:"url"`
	Name           *string `json:"name"`
	Category       *string `json:"category"`
	Notes          *string `json:"notes"`
	DR             any     `json:"dr"`
	AuthorityScore any     `json:"authorityScore"`
	OrganicTraffic any     `json:"organicTraffic"`
	Backlinks      any     `json:"backlinks"`
	RefDomains     any     `json:"refDomains"`
}

func (r *backlinkRequest) apply(b *models.BacklinkSite, create bool) error {
	if r.URL != nil {
		normalized, err := urlutil.NormalizeURL(*r.URL)
		if err != nil {
			return apperrors.Validation("invalid url: %v", err)
		}
		b.URL = normalized
		b.Domain = urlutil.ExtractDomain(normalized)
	}
	if b.URL == "" {
		return apperrors.Validation("url is required")
	}
	if r.Name != nil {
		b.Name = strings.TrimSpace(*r.Name)
	}
	if b.Name == "" {
		b.Name = b.Domain
	}
	if r.Category != nil {
		b.Category = strings.TrimSpace(*r.Category)
	}
	if r.Notes != nil {
		b.Notes = strings.TrimSpace(*r.Notes)
	}

	// On update, metrics absent from the body keep their stored values.
	metric := func(v any) bool { return create || v != nil }
	if metric(r.DR) {
		b.DR = scoring.ParseMetric(r.DR)
	}
	if metric(r.AuthorityScore) {
		b.AuthorityScore = scoring.ParseMetric(r.AuthorityScore)
	}
	if metric(r.OrganicTraffic) {
		b.OrganicTraffic = scoring.ParseMetricInt(r.OrganicTraffic)
	}
	if metric(r.Backlinks) {
		b.Backlinks = scoring.ParseMetricInt(r.Backlinks)
	}
	if metric(r.RefDomains) {
		b.RefDomains = scoring.ParseMetricInt(r.RefDomains)
	}
	return validateBacklinkMetrics(b)
}

func validateBacklinkMetrics(b *models.BacklinkSite) error {
	if b.DR != nil && (*b.DR < 0 || *b.DR > 100) {
		return apperrors.Validation("dr must be between 0 and 100")
	}
	if b.AuthorityScore != nil && (*b.AuthorityScore < 0 || *b.AuthorityScore > 100) {
		return apperrors.Validation("authorityScore must be between 0 and 100")
	}
	counts := []struct {
		name string
		v    *int64
	}{
		{"organicTraffic", b.OrganicTraffic},
		{"backlinks", b.Backlinks},
		{"refDomains", b.RefDomains},
	}
	for _, m := range counts {
		if m.v != nil && *m.v < 0 {
			return apperrors.Validation("%s must not be negative", m.name)
		}
	}
	return nil
}

func (h *BacklinkHandler) List(c *gin.Context) {
	result, err := h.backlinks.List(c.Request.Context(), models.BacklinkSiteFilter{
		Search:    strings.TrimSpace(c.Query("search")),
		Category:  c.Query("category"),
		SortBy:    c.Query("sortBy"),
		SortOrder: c.Query("sortOrder"),
		Page:      pageQuery(c),
	})
	if err != nil {
		h.respondError(c, err, "list backlink sites")
		return
	}
	respond(c, http.StatusOK, result)
}

func (h *BacklinkHandler) GetByID(c *gin.Context) {
	b, err := h.backlinks.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err, "get backlink site")
		return
	}
	respond(c, http.StatusOK, b)
}

// Create stores a backlink site with its importance computed inline; a new
// site has no submissions yet.
func (h *BacklinkHandler) Create(c *gin.Context) {
	var req backlinkRequest
	if !h.bindJSON(c, &req) {
		return
	}

	b := &models.BacklinkSite{}
	if err := req.apply(b, true); err != nil {
		h.respondError(c, err, "create backlink site")
		return
	}
	b.ImportanceScore = scoring.Importance(scoring.MetricsOf(b), nil)

	if err := h.backlinks.Create(c.Request.Context(), b); err != nil {
		h.respondError(c, err, "create backlink site")
		return
	}

	h.log(c).Info("Backlink site created",
		infralogger.String("backlink_site_id", b.ID),
		infralogger.String("domain", b.Domain),
		infralogger.Int("importance_score", b.ImportanceScore),
	)
	respond(c, http.StatusCreated, b)
}

func (h *BacklinkHandler) Update(c *gin.Context) {
	ctx := c.Request.Context()

	var req backlinkRequest
	if !h.bindJSON(c, &req) {
		return
	}

	b, err := h.backlinks.GetByID(ctx, c.Param("id"))
	if err != nil {
		h.respondError(c, err, "update backlink site")
		return
	}
	if err = req.apply(b, false); err != nil {
		h.respondError(c, err, "update backlink site")
		return
	}

	m := scoring.MetricsOf(b)
	var statuses []models.SubmissionStatus
	if !m.Rich() {
		statuses, err = h.submissions.Statuses(ctx, b.ID)
		if err != nil {
			h.respondError(c, err, "update backlink site")
			return
		}
	}
	b.ImportanceScore = scoring.Importance(m, statuses)

	if err = h.backlinks.Update(ctx, b); err != nil {
		h.respondError(c, err, "update backlink site")
		return
	}
	respond(c, http.StatusOK, b)
}

func (h *BacklinkHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.backlinks.Delete(c.Request.Context(), id); err != nil {
		h.respondError(c, err, "delete backlink site")
		return
	}
	h.log(c).Info("Backlink site deleted", infralogger.String("backlink_site_id", id))
	respond(c, http.StatusOK, gin.H{"id": id})
}

func (h *BacklinkHandler) ListSubmissions(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	if _, err := h.backlinks.GetByID(ctx, id); err != nil {
		h.respondError(c, err, "list submissions")
		return
	}
	subs, err := h.submissions.ListByBacklinkSite(ctx, id)
	if err != nil {
		h.respondError(c, err, "list submissions")
		return
	}
	respond(c, http.StatusOK, subs)
}

type submissionRequest struct {
	SiteID string  `json:"siteId"`
	Status *string `json:"status"`
	Notes  *string `json:"notes"`
}

func parseStatus(s *string) (models.SubmissionStatus, error) {
	status, ok := models.ParseSubmissionStatus(*s)
	if !ok {
		return "", apperrors.Validation("status must be one of pending, submitted, contacted, indexed, failed")
	}
	return status, nil
}

// CreateSubmission records that a site was submitted to a backlink site.
// The importance recompute runs in the background after the insert.
func (h *BacklinkHandler) CreateSubmission(c *gin.Context) {
	ctx := c.Request.Context()

	var req submissionRequest
	if !h.bindJSON(c, &req) {
		return
	}
	if req.SiteID == "" {
		h.respondError(c, apperrors.Validation("siteId is required"), "create submission")
		return
	}

	sub := &models.BacklinkSubmission{
		SiteID:         req.SiteID,
		BacklinkSiteID: c.Param("id"),
		Status:         models.SubmissionPending,
	}
	if req.Status != nil {
		status, err := parseStatus(req.Status)
		if err != nil {
			h.respondError(c, err, "create submission")
			return
		}
		sub.Status = status
	}
	if req.Notes != nil {
		sub.Notes = strings.TrimSpace(*req.Notes)
	}

	backlink, err := h.backlinks.GetByID(ctx, sub.BacklinkSiteID)
	if err != nil {
		h.respondError(c, err, "create submission")
		return
	}
	site, err := h.sites.GetByID(ctx, sub.SiteID)
	if err != nil {
		h.respondError(c, err, "create submission")
		return
	}

	if err = h.submissions.Create(ctx, sub); err != nil {
		h.respondError(c, err, "create submission")
		return
	}
	sub.SiteName = site.Name
	sub.BacklinkDomain = backlink.Domain

	h.log(c).Info("Submission created",
		infralogger.String("submission_id", sub.ID),
		infralogger.String("backlink_site_id", sub.BacklinkSiteID),
		infralogger.String("status", string(sub.Status)),
	)
	h.afterSubmissionWrite(infraevents.SubmissionCreated, sub)

	respond(c, http.StatusCreated, sub)
}

func (h *BacklinkHandler) UpdateSubmission(c *gin.Context) {
	ctx := c.Request.Context()

	var req submissionRequest
	if !h.bindJSON(c, &req) {
		return
	}

	sub, err := h.submissionOf(ctx, c)
	if err != nil {
		h.respondError(c, err, "update submission")
		return
	}

	previous := sub.Status
	if req.Status != nil {
		status, parseErr := parseStatus(req.Status)
		if parseErr != nil {
			h.respondError(c, parseErr, "update submission")
			return
		}
		sub.Status = status
	}
	if req.Notes != nil {
		sub.Notes = strings.TrimSpace(*req.Notes)
	}

	if err = h.submissions.Update(ctx, sub); err != nil {
		h.respondError(c, err, "update submission")
		return
	}

	if sub.Status != previous {
		h.log(c).Info("Submission status changed",
			infralogger.String("submission_id", sub.ID),
			infralogger.String("from", string(previous)),
			infralogger.String("to", string(sub.Status)),
		)
		h.afterSubmissionWrite(infraevents.SubmissionUpdated, sub)
	}
	respond(c, http.StatusOK, sub)
}

func (h *BacklinkHandler) DeleteSubmission(c *gin.Context) {
	ctx := c.Request.Context()

	sub, err := h.submissionOf(ctx, c)
	if err != nil {
		h.respondError(c, err, "delete submission")
		return
	}
	if err = h.submissions.Delete(ctx, sub.ID); err != nil {
		h.respondError(c, err, "delete submission")
		return
	}
	if h.queue != nil {
		h.queue.Enqueue(sub.BacklinkSiteID)
	}

	respond(c, http.StatusOK, gin.H{"id": sub.ID})
}

// submissionOf loads :submissionId and checks it belongs to :id.
func (h *BacklinkHandler) submissionOf(ctx context.Context, c *gin.Context) (*models.BacklinkSubmission, error) {
	sub, err := h.submissions.GetByID(ctx, c.Param("submissionId"))
	if err != nil {
		return nil, err
	}
	if sub.BacklinkSiteID != c.Param("id") {
		return nil, apperrors.NotFound("submission")
	}
	return sub, nil
}

func (h *BacklinkHandler) afterSubmissionWrite(t infraevents.EventType, sub *models.BacklinkSubmission) {
	if h.queue != nil {
		h.queue.Enqueue(sub.BacklinkSiteID)
	}
	if h.publisher != nil {
		h.publisher.PublishAsync(infraevents.Event{
			EventType: t,
			EntityID:  sub.ID,
			Payload: infraevents.SubmissionPayload{
				SiteID:         sub.SiteID,
				BacklinkSiteID: sub.BacklinkSiteID,
				Status:         string(sub.Status),
			},
		})
	}
}

func (h *BacklinkHandler) QuickImport(c *gin.Context) {
	var req importer.QuickRequest
	if !h.bindJSON(c, &req) {
		return
	}
	h.importResult(c, "quick import")(h.importer.Quick(c.Request.Context(), req))
}

type semrushJSONRequest struct {
	Rows []importer.SemrushJSONRow `json:"rows"`
}

// SemrushImport accepts a multipart "file" (.xlsx or .csv) or a JSON body
// {rows: [...]}.
func (h *BacklinkHandler) SemrushImport(c *gin.Context) {
	var (
		rows        []importer.SemrushRow
		parseErrors []importer.ImportError
		err         error
	)

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		rows, parseErrors, err = h.parseUpload(c)
	} else {
		var req semrushJSONRequest
		if !h.bindJSON(c, &req) {
			return
		}
		if len(req.Rows) == 0 {
			err = apperrors.Validation("rows must not be empty")
		}
		rows, parseErrors = importer.SemrushRowsFromJSON(req.Rows)
	}
	if err != nil {
		h.respondError(c, err, "semrush import")
		return
	}

	h.importResult(c, "semrush import")(h.importer.Semrush(c.Request.Context(), rows, parseErrors))
}

func (h *BacklinkHandler) parseUpload(c *gin.Context) ([]importer.SemrushRow, []importer.ImportError, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)

	header, err := c.FormFile("file")
	if err != nil {
		return nil, nil, apperrors.Validation("file is required")
	}
	f, err := header.Open()
	if err != nil {
		return nil, nil, apperrors.Validation("cannot read upload: %v", err)
	}
	defer f.Close()

	var (
		rows        []importer.SemrushRow
		parseErrors []importer.ImportError
	)
	switch strings.ToLower(filepath.Ext(header.Filename)) {
	case ".xlsx":
		rows, parseErrors, err = importer.ParseSemrushExcel(f)
	case ".csv":
		rows, parseErrors, err = importer.ParseSemrushCSV(f)
	default:
		return nil, nil, apperrors.Validation("file must be .xlsx or .csv")
	}
	if err != nil {
		return nil, nil, apperrors.Validation("%v", err)
	}
	return rows, parseErrors, nil
}

// GSCImport records the referring domains of a portfolio site.
func (h *BacklinkHandler) GSCImport(c *gin.Context) {
	var req importer.ReferralRequest
	if !h.bindJSON(c, &req) {
		return
	}
	h.importResult(c, "referral import")(h.importer.Referral(c.Request.Context(), req))
}

// importResult answers with the partial-failure result of a batch that ran,
// or with the error that stopped it from running.
func (h *BacklinkHandler) importResult(c *gin.Context, action string) func(*importer.Result, error) {
	return func(result *importer.Result, err error) {
		if err != nil {
			h.respondError(c, err, action)
			return
		}
		respond(c, http.StatusOK, result)
	}
}

func (h *BacklinkHandler) Recompute(c *gin.Context) {
	result, err := h.recomputer.RecomputeAll(c.Request.Context())
	if err != nil {
		h.respondError(c, err, "recompute importance")
		return
	}
	respond(c, http.StatusOK, result)
}

func (h *BacklinkHandler) Export(c *gin.Context) {
	format, ok := h.exportFormat(c, "backlinks")
	if !ok {
		return
	}
	rows, err := h.backlinks.ExportRows(c.Request.Context())
	if err != nil {
		h.respondError(c, err, "export backlinks")
		return
	}
	h.sendTable(c, "backlinks", format, export.BacklinkTable(rows))
}
