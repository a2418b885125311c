package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"kopy/internal/api/middleware"
	"kopy/internal/logger"
	"kopy/internal/models"
	"kopy/internal/syncer"
)

type SyncHandler struct {
	db     *gorm.DB
	logger *logger.Logger
	syncer *syncer.Syncer
	admin  AdminFactory
}

func NewSyncHandler(db *gorm.DB, logger *logger.Logger, s *syncer.Syncer, admin AdminFactory) *SyncHandler {
	return &SyncHandler{
		db:     db,
		logger: logger,
		syncer: s,
		admin:  admin,
	}
}

// SyncProduct re-checks one imported product against its source.
func (h *SyncHandler) SyncProduct(c *gin.Context) {
	id := c.Param("id")

	var product models.ImportedProduct
	if err := h.db.Preload("Variants").First(&product, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch product"})
		return
	}

	if product.Shop != middleware.ShopFrom(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Product belongs to another shop"})
		return
	}

	result, err := h.syncer.SyncProduct(c.Request.Context(), &product, h.admin(c))
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

// SyncAll syncs every sync-enabled product for the calling shop.
func (h *SyncHandler) SyncAll(c *gin.Context) {
	shop := middleware.ShopFrom(c)
	synced, errs := h.syncer.SyncAllForShop(c.Request.Context(), shop, h.admin(c))

	payload := gin.H{"synced": synced}
	if len(errs) > 0 {
		payload["errors"] = errs
	}
	c.JSON(http.StatusOK, gin.H{"data": payload})
}

// ProductsUpdateWebhook applies price changes announced by a source shop
// without a refetch round trip.
func (h *SyncHandler) ProductsUpdateWebhook(c *gin.Context) {
	var payload syncer.WebhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updated, err := h.syncer.ApplyWebhookUpdate(c.Request.Context(), &payload, h.admin(c))
	if err != nil {
		h.logger.Error("[Sync] webhook apply failed for product %d: %v", payload.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to apply update"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"updated_products": updated}})
}
