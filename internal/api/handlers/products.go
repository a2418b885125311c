package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"kopy/internal/api/middleware"
	"kopy/internal/logger"
	"kopy/internal/models"
)

// ProductHandler serves the import history: the durable records created by
// past imports.
type ProductHandler struct {
	db     *gorm.DB
	logger *logger.Logger
}

func NewProductHandler(db *gorm.DB, logger *logger.Logger) *ProductHandler {
	return &ProductHandler{db: db, logger: logger}
}

func (h *ProductHandler) List(c *gin.Context) {
	shop := middleware.ShopFrom(c)

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	offset := (page - 1) * limit

	query := h.db.Model(&models.ImportedProduct{}).Where("shop = ?", shop)

	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if sourceShop := c.Query("source_shop"); sourceShop != "" {
		query = query.Where("source_shop = ?", sourceShop)
	}
	if syncEnabled := c.Query("sync_enabled"); syncEnabled != "" {
		query = query.Where("sync_enabled = ?", syncEnabled == "true")
	}
	if search := c.Query("search"); search != "" {
		query = query.Where("title LIKE ?", "%"+search+"%")
	}

	var total int64
	query.Count(&total)

	var products []models.ImportedProduct
	err := query.Preload("Variants").
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&products).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch products"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": products,
		"pagination": gin.H{
			"page":  page,
			"limit": limit,
			"total": total,
		},
	})
}

func (h *ProductHandler) Get(c *gin.Context) {
	product, ok := h.ownedProduct(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": product})
}

// UpdateStatus changes the stored status of an imported product record.
func (h *ProductHandler) UpdateStatus(c *gin.Context) {
	product, ok := h.ownedProduct(c)
	if !ok {
		return
	}

	var req struct {
		Status models.ProductStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	switch req.Status {
	case models.ProductStatusActive, models.ProductStatusDraft, models.ProductStatusArchived:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status"})
		return
	}

	if err := h.db.Model(product).Update("status", req.Status).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update status"})
		return
	}
	product.Status = req.Status
	c.JSON(http.StatusOK, gin.H{"data": product})
}

// ToggleSync flips whether the product participates in price sync.
func (h *ProductHandler) ToggleSync(c *gin.Context) {
	product, ok := h.ownedProduct(c)
	if !ok {
		return
	}

	var req struct {
		SyncEnabled bool `json:"sync_enabled"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.db.Model(product).Update("sync_enabled", req.SyncEnabled).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update sync flag"})
		return
	}
	product.SyncEnabled = req.SyncEnabled
	c.JSON(http.StatusOK, gin.H{"data": product})
}

// Delete removes the import record and its variant mappings. The product in
// the destination catalog is left alone.
func (h *ProductHandler) Delete(c *gin.Context) {
	product, ok := h.ownedProduct(c)
	if !ok {
		return
	}

	if err := h.db.Select("Variants").Delete(product).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete product"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"deleted": product.ID}})
}

// Stats summarizes the shop's import history.
func (h *ProductHandler) Stats(c *gin.Context) {
	shop := middleware.ShopFrom(c)

	var total, syncEnabled int64
	h.db.Model(&models.ImportedProduct{}).Where("shop = ?", shop).Count(&total)
	h.db.Model(&models.ImportedProduct{}).
		Where("shop = ? AND sync_enabled = ?", shop, true).Count(&syncEnabled)

	type shopCount struct {
		SourceShop string `json:"source_shop"`
		Count      int64  `json:"count"`
	}
	var bySource []shopCount
	h.db.Model(&models.ImportedProduct{}).
		Select("source_shop, count(*) as count").
		Where("shop = ?", shop).
		Group("source_shop").
		Scan(&bySource)

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"total_products": total,
			"sync_enabled":   syncEnabled,
			"by_source_shop": bySource,
		},
	})
}

// SourceShops lists the distinct source shops the shop has imported from.
func (h *ProductHandler) SourceShops(c *gin.Context) {
	shop := middleware.ShopFrom(c)

	var shops []string
	err := h.db.Model(&models.ImportedProduct{}).
		Where("shop = ?", shop).
		Distinct("source_shop").
		Order("source_shop").
		Pluck("source_shop", &shops).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch source shops"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": shops})
}

// ownedProduct loads the product in the path and enforces shop ownership,
// writing the error response itself on failure.
func (h *ProductHandler) ownedProduct(c *gin.Context) (*models.ImportedProduct, bool) {
	id := c.Param("id")

	var product models.ImportedProduct
	if err := h.db.Preload("Variants").First(&product, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch product"})
		return nil, false
	}

	if product.Shop != middleware.ShopFrom(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Product belongs to another shop"})
		return nil, false
	}
	return &product, true
}
