package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ShopKey is the gin context key holding the caller's shop domain.
const ShopKey = "shop"

// Shop resolves the calling shop from the X-Shop-Domain header, falling back
// to the configured single-tenant domain. Requests without either are
// rejected; every resource below /api/v1 is shop-scoped.
func Shop(fallbackDomain string) gin.HandlerFunc {
	return func(c *gin.Context) {
		shop := c.GetHeader("X-Shop-Domain")
		if shop == "" {
			shop = fallbackDomain
		}
		if shop == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing X-Shop-Domain header"})
			return
		}
		c.Set(ShopKey, shop)
		c.Next()
	}
}

// ShopFrom returns the shop domain set by the Shop middleware.
func ShopFrom(c *gin.Context) string {
	return c.GetString(ShopKey)
}
