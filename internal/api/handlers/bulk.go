package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"kopy/internal/api/middleware"
	"kopy/internal/events"
	"kopy/internal/logger"
	"kopy/internal/models"
	"kopy/internal/shopify"
	"kopy/internal/worker"
)

type BulkHandler struct {
	db        *gorm.DB
	logger    *logger.Logger
	listing   *shopify.ListingClient
	engine    *worker.Engine
	publisher *events.Publisher
	admin     AdminFactory
}

func NewBulkHandler(db *gorm.DB, logger *logger.Logger, listing *shopify.ListingClient, engine *worker.Engine, publisher *events.Publisher, admin AdminFactory) *BulkHandler {
	return &BulkHandler{
		db:        db,
		logger:    logger,
		listing:   listing,
		engine:    engine,
		publisher: publisher,
		admin:     admin,
	}
}

// FetchCatalog lists products from a source shop or one of its collections.
func (h *BulkHandler) FetchCatalog(c *gin.Context) {
	var req struct {
		ShopURL       string `json:"shop_url"`
		CollectionURL string `json:"collection_url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	var (
		products []models.ProductSummary
		shop     string
		err      error
	)

	switch {
	case req.CollectionURL != "":
		var handle string
		shop, handle, err = shopify.ParseCollectionURL(req.CollectionURL)
		if err == nil {
			products, err = h.listing.CollectionProducts(ctx, shop, handle)
		}
	case req.ShopURL != "":
		shop, err = shopify.NormalizeShopDomain(req.ShopURL)
		if err == nil {
			products, err = h.listing.ShopProducts(ctx, shop)
		}
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "shop_url or collection_url is required"})
		return
	}

	if err != nil {
		writeFetchError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"source_shop": shop,
			"products":    products,
			"count":       len(products),
		},
	})
}

// StartJob creates a bulk import job, announces it on the event topic, and
// kicks off processing in the background. The response carries the job id
// for status polling.
func (h *BulkHandler) StartJob(c *gin.Context) {
	var req struct {
		SourceShop   string              `json:"source_shop" binding:"required"`
		Products     []models.ProductRef `json:"products" binding:"required"`
		Pricing      pricingRequest      `json:"pricing" binding:"required"`
		Status       string              `json:"status"`
		CollectionID string              `json:"collection_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.Products) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "products list is empty"})
		return
	}

	cfg, err := req.Pricing.toConfig()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sourceShop, err := shopify.NormalizeShopDomain(req.SourceShop)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	refs, err := json.Marshal(req.Products)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to encode product list"})
		return
	}

	status := req.Status
	if status == "" {
		status = string(models.ProductStatusActive)
	}

	shop := middleware.ShopFrom(c)
	job := models.BulkImportJob{
		Shop:          shop,
		SourceShop:    sourceShop,
		SourceShopURL: "https://" + sourceShop,
		ProductRefs:   string(refs),
		PricingMode:   string(cfg.Mode),
		MarkupAmount:  cfg.MarkupAmount.String(),
		Multiplier:    cfg.Multiplier.String(),
		TargetStatus:  status,
		CollectionID:  req.CollectionID,
		JobStatus:     models.JobStatusPending,
		TotalProducts: len(req.Products),
	}
	if err := h.db.Create(&job).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create job"})
		return
	}

	// Publishing is best-effort: the in-process start below covers single
	// binary deployments, the event covers dedicated worker deployments.
	if err := h.publisher.PublishJobCreated(context.Background(), job.ID, shop); err != nil {
		h.logger.Warn("[Bulk] event publish failed for job %s: %v", job.ID, err)
	}

	h.engine.StartJob(job.ID, h.admin(c))

	c.JSON(http.StatusAccepted, gin.H{
		"data": gin.H{
			"job_id":         job.ID,
			"job_status":     job.JobStatus,
			"total_products": job.TotalProducts,
		},
	})
}

// JobStatus reports job progress for polling clients.
func (h *BulkHandler) JobStatus(c *gin.Context) {
	id := c.Param("id")

	var job models.BulkImportJob
	if err := h.db.First(&job, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch job"})
		return
	}

	if job.Shop != middleware.ShopFrom(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Job belongs to another shop"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"job_id":             job.ID,
			"job_status":         job.JobStatus,
			"source_shop":        job.SourceShop,
			"total_products":     job.TotalProducts,
			"processed_products": job.ProcessedProducts,
			"successful_imports": job.SuccessfulImports,
			"failed_imports":     job.FailedImports,
			"progress":           job.ParsedProgress(),
			"progress_truncated": job.ProgressTruncated(),
			"progress_window":    models.MaxProgressEntries,
			"errors":             job.ParsedErrors(),
			"created_at":         job.CreatedAt,
			"started_at":         job.StartedAt,
			"completed_at":       job.CompletedAt,
		},
	})
}
