package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sellerdesk/variant-engine/internal/domain"
	"github.com/sellerdesk/variant-engine/internal/infrastructure/catalogfile"
	"github.com/sellerdesk/variant-engine/internal/usecase"
)

// Handler holds the services behind the HTTP API.
type Handler struct {
	detection *usecase.DetectionService
	grouping  *usecase.GroupingService
	catalog   domain.CatalogRepository
	log       *zap.SugaredLogger
}

// NewHandler creates the HTTP handler set.
func NewHandler(
	detection *usecase.DetectionService,
	grouping *usecase.GroupingService,
	catalog domain.CatalogRepository,
	log *zap.SugaredLogger,
) *Handler {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Handler{
		detection: detection,
		grouping:  grouping,
		catalog:   catalog,
		log:       log,
	}
}

// HealthCheck returns the health status of the API.
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "variant-engine",
		"version": "1.0.0",
	})
}

// ImportCatalog accepts a csv/xlsx marketplace export as a multipart file
// and replaces the product snapshot with its contents.
func (h *Handler) ImportCatalog(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing multipart field \"file\"", "field": "file"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable upload", "field": "file"})
		return
	}
	defer file.Close()

	products, err := catalogfile.Parse(file, fileHeader.Filename)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if err := h.catalog.ReplaceProducts(c.Request.Context(), products); err != nil {
		h.respondError(c, err)
		return
	}

	h.log.Infow("catalog imported",
		"filename", fileHeader.Filename,
		"products", len(products),
	)
	c.JSON(http.StatusOK, gin.H{"imported": len(products)})
}

// ListProducts returns the catalog annotated with group membership.
func (h *Handler) ListProducts(c *gin.Context) {
	views, err := h.grouping.ProductViews(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": views, "count": len(views)})
}

// runDetectionRequest carries optional per-pass overrides. Absent fields
// fall back to the configured defaults.
type runDetectionRequest struct {
	Sensitivity       float64 `json:"sensitivity"`
	MinConfidence     float64 `json:"minConfidence"`
	MinGroupSize      int     `json:"minGroupSize"`
	MaxAnalysisTimeMs int64   `json:"maxAnalysisTimeMs"`
	Force             bool    `json:"force"`
}

// RunDetection triggers a detection pass. Re-triggers inside the debounce
// window are served the last committed result unless force is set. A pass
// that hits its analysis budget still responds 200; the incomplete flag on
// the result marks it partial.
func (h *Handler) RunDetection(c *gin.Context) {
	var req runDetectionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}

	overrides := domain.DetectionConfig{
		Sensitivity:     req.Sensitivity,
		MinConfidence:   req.MinConfidence,
		MinGroupSize:    req.MinGroupSize,
		MaxAnalysisTime: time.Duration(req.MaxAnalysisTimeMs) * time.Millisecond,
	}

	result, err := h.detection.Run(c.Request.Context(), overrides, req.Force)
	if err != nil {
		if domain.IsAnalysisTimeout(err) && result != nil {
			c.JSON(http.StatusOK, result)
			return
		}
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ListSuggestions returns the suggestions of the latest committed pass.
func (h *Handler) ListSuggestions(c *gin.Context) {
	suggestions, err := h.detection.Suggestions()
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"suggestions": suggestions, "count": len(suggestions)})
}

// GetSuggestion returns one suggestion by its pass-scoped ID.
func (h *Handler) GetSuggestion(c *gin.Context) {
	sg, err := h.detection.Suggestion(c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sg)
}

// AcceptSuggestion converts a suggestion into a persistent variant group.
func (h *Handler) AcceptSuggestion(c *gin.Context) {
	group, err := h.grouping.AcceptSuggestion(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"group": group})
}

// RejectSuggestion records a rejection; no group is created or changed.
func (h *Handler) RejectSuggestion(c *gin.Context) {
	if err := h.grouping.RejectSuggestion(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "rejected"})
}

// ListGroups returns all variant groups.
func (h *Handler) ListGroups(c *gin.Context) {
	groups, err := h.grouping.Groups(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"groups": groups, "count": len(groups)})
}

type createGroupRequest struct {
	ProductIDs    []string `json:"productIds" binding:"required"`
	Name          string   `json:"name"`
	MainProductID string   `json:"mainProductId"`
}

// CreateManualGroup creates a group directly from operator-picked products.
func (h *Handler) CreateManualGroup(c *gin.Context) {
	var req createGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	group, err := h.grouping.CreateManualGroup(c.Request.Context(), req.ProductIDs, req.Name, req.MainProductID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"group": group})
}

// GetGroup returns one variant group.
func (h *Handler) GetGroup(c *gin.Context) {
	group, err := h.grouping.Group(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"group": group})
}

// DeleteGroup dissolves a group. Deleting an already-dissolved group is a
// no-op, so repeats respond identically.
func (h *Handler) DeleteGroup(c *gin.Context) {
	if err := h.grouping.DissolveGroup(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type unlinkRequest struct {
	ProductID        string `json:"productId" binding:"required"`
	NewMainProductID string `json:"newMainProductId"`
}

// UnlinkMember removes one product from a group. Dropping to a single
// member dissolves the group.
func (h *Handler) UnlinkMember(c *gin.Context) {
	var req unlinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	result, err := h.grouping.UnlinkMember(c.Request.Context(), c.Param("id"), req.ProductID, req.NewMainProductID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type setMainRequest struct {
	ProductID string `json:"productId" binding:"required"`
}

// SetMainProduct changes which member represents the group.
func (h *Handler) SetMainProduct(c *gin.Context) {
	var req setMainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	group, err := h.grouping.SetMainProduct(c.Request.Context(), c.Param("id"), req.ProductID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"group": group})
}

// FeedbackHistory returns the append-only feedback journal.
func (h *Handler) FeedbackHistory(c *gin.Context) {
	events, err := h.grouping.FeedbackHistory(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
}

// ClearFeedback empties the journal, which also lifts pattern suppression.
func (h *Handler) ClearFeedback(c *gin.Context) {
	if err := h.grouping.ClearFeedbackHistory(c.Request.Context()); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// respondError maps domain errors onto HTTP statuses. Unknown errors are
// logged and surfaced as a plain 500 so internals never leak to callers.
func (h *Handler) respondError(c *gin.Context, err error) {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Message, "field": ve.Field})
		return
	}

	var ce *domain.ConflictError
	if errors.As(err, &ce) {
		c.JSON(http.StatusConflict, gin.H{
			"error":     ce.Error(),
			"productId": ce.ProductID,
			"groupId":   ce.GroupID,
		})
		return
	}

	switch {
	case errors.Is(err, domain.ErrProductNotFound),
		errors.Is(err, domain.ErrGroupNotFound),
		errors.Is(err, domain.ErrSuggestionNotFound),
		errors.Is(err, domain.ErrNoDetectionResult):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})

	case errors.Is(err, domain.ErrPassSuperseded):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})

	case errors.Is(err, domain.ErrDetectorUnavailable):
		c.JSON(http.StatusBadGateway, gin.H{"error": "detection service temporarily unavailable"})

	default:
		h.log.Errorw("request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
