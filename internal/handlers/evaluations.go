package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	apperrors "github.com/jonesrussell/site-portfolio/infrastructure/errors"
	infralogger "github.com/jonesrussell/site-portfolio/infrastructure/logger"
	"github.com/jonesrussell/site-portfolio/internal/export"
	"github.com/jonesrussell/site-portfolio/internal/models"
	"github.com/jonesrussell/site-portfolio/internal/scoring"
)

type EvaluationStore interface {
	Create(ctx context.Context, e *models.Evaluation) error
	List(ctx context.Context, filter models.EvaluationFilter) (*models.PageResult[models.Evaluation], error)
	Stats(ctx context.Context) (*models.EvaluationStats, error)
	Leaderboard(ctx context.Context, dim models.Dimension, p models.Page) (*models.PageResult[models.LeaderboardEntry], error)
	LeaderboardAll(ctx context.Context, dim models.Dimension) ([]models.LeaderboardEntry, error)
}

// SiteGetter resolves the site an evaluation or submission refers to.
type SiteGetter interface {
	GetByID(ctx context.Context, id string) (*models.Site, error)
}

type EvaluationHandler struct {
	base
	evaluations EvaluationStore
	sites       SiteGetter
}

func NewEvaluationHandler(evaluations EvaluationStore, sites SiteGetter, log infralogger.Logger) *EvaluationHandler {
	return &EvaluationHandler{
		base:        newBase(log),
		evaluations: evaluations,
		sites:       sites,
	}
}

type evaluationRequest struct {
	SiteID         string                    `json:"siteId"`
	EvaluationDate *models.Date              `json:"evaluationDate"`
	MarketScore    float64                   `json:"marketScore"`
	QualityScore   float64                   `json:"qualityScore"`
	SEOScore       float64                   `json:"seoScore"`
	TrafficScore   float64                   `json:"trafficScore"`
	RevenueScore   float64                   `json:"revenueScore"`
	Weights        *models.EvaluationWeights `json:"weights"`
	Notes          string                    `json:"notes"`
	Evaluator      string                    `json:"evaluator"`
}

func (h *EvaluationHandler) List(c *gin.Context) {
	result, err := h.evaluations.List(c.Request.Context(), models.EvaluationFilter{
		SiteID: c.Query("siteId"),
		Page:   pageQuery(c),
	})
	if err != nil {
		h.respondError(c, err, "list evaluations")
		return
	}
	respond(c, http.StatusOK, result)
}

// Create stores an evaluation. The composite score is always computed here;
// a compositeScore in the body is ignored.
func (h *EvaluationHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	var req evaluationRequest
	if !h.bindJSON(c, &req) {
		return
	}
	if strings.TrimSpace(req.SiteID) == "" {
		h.respondError(c, apperrors.Validation("siteId is required"), "create evaluation")
		return
	}

	site, err := h.sites.GetByID(ctx, req.SiteID)
	if err != nil {
		h.respondError(c, err, "create evaluation")
		return
	}

	e := &models.Evaluation{
		SiteID:         site.ID,
		SiteName:       site.Name,
		EvaluationDate: models.Today(),
		MarketScore:    req.MarketScore,
		QualityScore:   req.QualityScore,
		SEOScore:       req.SEOScore,
		TrafficScore:   req.TrafficScore,
		RevenueScore:   req.RevenueScore,
		Notes:          strings.TrimSpace(req.Notes),
		Evaluator:      strings.TrimSpace(req.Evaluator),
	}
	if req.EvaluationDate != nil {
		e.EvaluationDate = *req.EvaluationDate
	}

	composite, weights, err := scoring.Composite(scoring.SubScoresOf(e), req.Weights)
	if err != nil {
		h.respondError(c, err, "create evaluation")
		return
	}
	e.CompositeScore = composite
	if req.Weights != nil {
		e.Weights = &weights
	}

	if err := h.evaluations.Create(ctx, e); err != nil {
		h.respondError(c, err, "create evaluation")
		return
	}

	h.log(c).Info("Evaluation created",
		infralogger.String("evaluation_id", e.ID),
		infralogger.String("site_id", e.SiteID),
		infralogger.Any("composite_score", e.CompositeScore),
	)
	respond(c, http.StatusCreated, e)
}

func (h *EvaluationHandler) Stats(c *gin.Context) {
	stats, err := h.evaluations.Stats(c.Request.Context())
	if err != nil {
		h.respondError(c, err, "evaluation stats")
		return
	}
	respond(c, http.StatusOK, stats)
}

// Leaderboard ranks the latest evaluation of each active site on
// ?dimension= (default composite).
func (h *EvaluationHandler) Leaderboard(c *gin.Context) {
	dim, err := models.ParseDimension(c.Query("dimension"))
	if err != nil {
		h.respondError(c, apperrors.Validation("%v", err), "leaderboard")
		return
	}

	result, err := h.evaluations.Leaderboard(c.Request.Context(), dim, pageQuery(c))
	if err != nil {
		h.respondError(c, err, "leaderboard")
		return
	}
	respond(c, http.StatusOK, gin.H{
		"dimension": dim,
		"items":     result.Items,
		"total":     result.Total,
		"page":      result.Page,
		"pageSize":  result.PageSize,
	})
}

func (h *EvaluationHandler) ExportLeaderboard(c *gin.Context) {
	format, ok := h.exportFormat(c, "leaderboard")
	if !ok {
		return
	}
	dim, err := models.ParseDimension(c.Query("dimension"))
	if err != nil {
		h.respondError(c, apperrors.Validation("%v", err), "export leaderboard")
		return
	}

	entries, err := h.evaluations.LeaderboardAll(c.Request.Context(), dim)
	if err != nil {
		h.respondError(c, err, "export leaderboard")
		return
	}
	h.sendTable(c, "leaderboard", format, export.LeaderboardTable(dim, entries))
}
