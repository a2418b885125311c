package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"kopy/internal/api/middleware"
	"kopy/internal/importer"
	"kopy/internal/logger"
	"kopy/internal/models"
	"kopy/internal/pricing"
	"kopy/internal/shopify"
)

type ImportHandler struct {
	db       *gorm.DB
	logger   *logger.Logger
	fetcher  *shopify.Fetcher
	importer *importer.Importer
	admin    AdminFactory
}

func NewImportHandler(db *gorm.DB, logger *logger.Logger, fetcher *shopify.Fetcher, imp *importer.Importer, admin AdminFactory) *ImportHandler {
	return &ImportHandler{
		db:       db,
		logger:   logger,
		fetcher:  fetcher,
		importer: imp,
		admin:    admin,
	}
}

// pricingRequest is the wire form of a pricing config; amounts arrive as
// strings to avoid float coercion on the way in.
type pricingRequest struct {
	Mode         string `json:"mode" binding:"required"`
	MarkupAmount string `json:"markup_amount"`
	Multiplier   string `json:"multiplier"`
}

func (p pricingRequest) toConfig() (pricing.Config, error) {
	cfg := pricing.Config{Mode: pricing.Mode(p.Mode)}
	if p.MarkupAmount != "" {
		amount, err := decimal.NewFromString(p.MarkupAmount)
		if err != nil {
			return cfg, err
		}
		cfg.MarkupAmount = amount
	}
	if p.Multiplier != "" {
		factor, err := decimal.NewFromString(p.Multiplier)
		if err != nil {
			return cfg, err
		}
		cfg.Multiplier = factor
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Fetch previews a single source product by URL.
func (h *ImportHandler) Fetch(c *gin.Context) {
	var req struct {
		URL string `json:"url" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	product, err := h.fetcher.WithAdmin(h.admin(c)).ProductByURL(c.Request.Context(), req.URL)
	if err != nil {
		writeFetchError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": product})
}

// Import copies one product into the calling shop's catalog.
func (h *ImportHandler) Import(c *gin.Context) {
	var req struct {
		URL          string         `json:"url" binding:"required"`
		Pricing      pricingRequest `json:"pricing" binding:"required"`
		Status       string         `json:"status"`
		CollectionID string         `json:"collection_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cfg, err := req.Pricing.toConfig()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	status := models.ProductStatus(req.Status)
	if req.Status == "" {
		status = models.ProductStatusActive
	}

	admin := h.admin(c)
	source, err := h.fetcher.WithAdmin(admin).ProductByURL(c.Request.Context(), req.URL)
	if err != nil {
		writeFetchError(c, err)
		return
	}

	result := h.importer.Import(c.Request.Context(), admin, importer.Request{
		Shop:         middleware.ShopFrom(c),
		Source:       source,
		SourceURL:    req.URL,
		Pricing:      cfg,
		Status:       status,
		CollectionID: req.CollectionID,
	})

	if !result.Success {
		h.writeImportFailure(c, result)
		return
	}

	payload := gin.H{
		"data": result.Record,
	}
	if len(result.VariantErrors) > 0 {
		messages := make([]string, 0, len(result.VariantErrors))
		for _, fe := range result.VariantErrors {
			messages = append(messages, fe.String())
		}
		payload["variant_errors"] = messages
	}
	c.JSON(http.StatusCreated, payload)
}

func (h *ImportHandler) writeImportFailure(c *gin.Context, result *importer.Result) {
	message := "import failed"
	if result.Err != nil {
		message = result.Err.Error()
	}

	switch result.Failure {
	case importer.FailureSourceFetch:
		writeFetchError(c, result.Err)
	case importer.FailureDestinationValidation:
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": message})
	case importer.FailureAlreadyImported:
		c.JSON(http.StatusConflict, gin.H{"error": message})
	case importer.FailureUpstream:
		c.JSON(http.StatusBadGateway, gin.H{"error": message})
	case importer.FailurePersistence:
		payload := gin.H{"error": message}
		if result.Product != nil {
			payload["destination_product_id"] = result.Product.ID
		}
		c.JSON(http.StatusInternalServerError, payload)
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": message})
	}
}
