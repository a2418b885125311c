package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"kopy/internal/api/middleware"
	"kopy/internal/logger"
	"kopy/internal/models"
	"kopy/internal/pricing"
)

type SettingsHandler struct {
	db     *gorm.DB
	logger *logger.Logger
}

func NewSettingsHandler(db *gorm.DB, logger *logger.Logger) *SettingsHandler {
	return &SettingsHandler{db: db, logger: logger}
}

// Get returns the shop's settings, creating the default row on first access.
func (h *SettingsHandler) Get(c *gin.Context) {
	settings, err := h.getOrCreate(middleware.ShopFrom(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load settings"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"settings":           settings,
			"authorized_sources": settings.Sources(),
		},
	})
}

// Update applies partial changes to the shop's settings.
func (h *SettingsHandler) Update(c *gin.Context) {
	var req struct {
		DefaultPricingMode  *string  `json:"default_pricing_mode"`
		DefaultMarkupAmount *string  `json:"default_markup_amount"`
		DefaultMultiplier   *string  `json:"default_multiplier"`
		AutoSyncEnabled     *bool    `json:"auto_sync_enabled"`
		SyncFrequency       *string  `json:"sync_frequency"`
		AuthorizedSources   []string `json:"authorized_sources"`
		DefaultTags         *string  `json:"default_tags"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	settings, err := h.getOrCreate(middleware.ShopFrom(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load settings"})
		return
	}

	if req.DefaultPricingMode != nil {
		mode := pricing.Mode(*req.DefaultPricingMode)
		if mode != pricing.ModeMarkup && mode != pricing.ModeMultiplier {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid pricing mode"})
			return
		}
		settings.DefaultPricingMode = *req.DefaultPricingMode
	}
	if req.DefaultMarkupAmount != nil {
		amount, err := decimal.NewFromString(*req.DefaultMarkupAmount)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid markup amount"})
			return
		}
		settings.DefaultMarkupAmount = amount
	}
	if req.DefaultMultiplier != nil {
		factor, err := decimal.NewFromString(*req.DefaultMultiplier)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid multiplier"})
			return
		}
		settings.DefaultMultiplier = factor
	}
	if req.AutoSyncEnabled != nil {
		settings.AutoSyncEnabled = *req.AutoSyncEnabled
	}
	if req.SyncFrequency != nil {
		settings.SyncFrequency = *req.SyncFrequency
	}
	if req.AuthorizedSources != nil {
		settings.SetSources(req.AuthorizedSources)
	}
	if req.DefaultTags != nil {
		settings.DefaultTags = *req.DefaultTags
	}

	if err := h.db.Save(settings).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save settings"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"settings":           settings,
			"authorized_sources": settings.Sources(),
		},
	})
}

func (h *SettingsHandler) getOrCreate(shop string) (*models.AppSettings, error) {
	var settings models.AppSettings
	err := h.db.First(&settings, "shop = ?", shop).Error
	if err == nil {
		return &settings, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	settings = models.AppSettings{
		Shop:                shop,
		DefaultPricingMode:  string(pricing.ModeMarkup),
		DefaultMarkupAmount: decimal.Zero,
		DefaultMultiplier:   decimal.NewFromInt(1),
		AuthorizedSources:   "[]",
		DefaultTags:         "kopy-product",
	}
	if err := h.db.Create(&settings).Error; err != nil {
		return nil, err
	}
	return &settings, nil
}
