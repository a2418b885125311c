package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"kopy/internal/api/middleware"
	"kopy/internal/config"
	"kopy/internal/logger"
	"kopy/internal/shopify"
)

// AdminFactory resolves the Admin API client serving a request. Handlers
// hold one so tests can substitute a canned client.
type AdminFactory func(c *gin.Context) shopify.AdminAPI

// NewAdminFactory builds admin clients for the calling shop. Per-request
// headers win over the configured single-tenant credentials.
func NewAdminFactory(cfg *config.Config, log *logger.Logger) AdminFactory {
	return func(c *gin.Context) shopify.AdminAPI {
		domain := middleware.ShopFrom(c)
		token := c.GetHeader("X-Shopify-Access-Token")
		if token == "" {
			token = cfg.ShopAccessToken
		}
		return shopify.NewAdminClient(domain, token, cfg.AdminAPIVersion, log)
	}
}

// writeFetchError maps source catalog errors onto HTTP statuses.
func writeFetchError(c *gin.Context, err error) {
	var upstream *shopify.UpstreamError
	switch {
	case errors.Is(err, shopify.ErrInvalidURL):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, shopify.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found. Check the URL and try again."})
	case errors.Is(err, shopify.ErrEmptyResult):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.As(err, &upstream):
		c.JSON(http.StatusBadGateway, gin.H{"error": upstream.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
