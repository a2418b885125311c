// Package syncer keeps destination prices aligned with their source
// products by refetching the source and pushing recomputed prices when
// they have drifted.
package syncer

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"kopy/internal/logger"
	"kopy/internal/models"
	"kopy/internal/pricing"
	"kopy/internal/shopify"
)

// driftEpsilon is the minimum source price change that counts as drift.
// Sub-cent noise from currency formatting is ignored.
var driftEpsilon = decimal.RequireFromString("0.01")

// SourceFetcher resolves a product URL into a fresh source snapshot.
type SourceFetcher interface {
	ProductByURL(ctx context.Context, url string) (*models.SourceProduct, error)
}

type Syncer struct {
	db      *gorm.DB
	fetcher SourceFetcher
	logger  *logger.Logger
}

func New(db *gorm.DB, fetcher SourceFetcher, logger *logger.Logger) *Syncer {
	return &Syncer{db: db, fetcher: fetcher, logger: logger}
}

// Result reports one product sync.
type Result struct {
	Success         bool      `json:"success"`
	UpdatedVariants int       `json:"updated_variants"`
	Errors          []string  `json:"errors,omitempty"`
	SyncedAt        time.Time `json:"synced_at"`
}

// SyncProduct refetches the source product, recomputes destination prices
// for drifted variants, and pushes all changed prices in one bulk update.
// Missing source variants are reported but do not fail the sync; a rejected
// bulk update does.
func (s *Syncer) SyncProduct(ctx context.Context, product *models.ImportedProduct, admin shopify.AdminAPI) (*Result, error) {
	result := &Result{SyncedAt: time.Now().UTC()}

	source, err := s.fetcher.ProductByURL(ctx, product.SourceProductURL)
	if err != nil {
		return nil, fmt.Errorf("source fetch failed for %s: %w", product.Title, err)
	}

	cfg := pricing.Config{
		Mode:         pricing.Mode(product.PricingMode),
		MarkupAmount: product.MarkupAmount,
		Multiplier:   product.Multiplier,
	}

	sourceByID := make(map[string]models.SourceVariant, len(source.Variants))
	for _, v := range source.Variants {
		sourceByID[shopify.ExtractIDFromGID(v.ID)] = v
	}

	var updates []shopify.VariantPriceUpdate

	for idx := range product.Variants {
		mapping := &product.Variants[idx]

		sourceVariant, ok := sourceByID[mapping.SourceVariantID]
		if !ok {
			result.Errors = append(result.Errors,
				fmt.Sprintf("source variant %s no longer exists", mapping.SourceVariantID))
			continue
		}

		if sourceVariant.Price.Sub(mapping.SourcePrice).Abs().LessThan(driftEpsilon) {
			continue
		}

		newPrice, err := pricing.ComputeDestinationPrice(sourceVariant.Price, cfg)
		if err != nil {
			result.Errors = append(result.Errors,
				fmt.Sprintf("variant %s: %v", mapping.SourceVariantID, err))
			continue
		}

		update := shopify.VariantPriceUpdate{
			ID:    shopify.GID("ProductVariant", mapping.DestinationVariantID),
			Price: newPrice.StringFixed(2),
		}
		if sourceVariant.CompareAtPrice != nil {
			compareAt, err := pricing.ComputeDestinationPrice(*sourceVariant.CompareAtPrice, cfg)
			if err == nil {
				update.CompareAtPrice = compareAt.StringFixed(2)
			}
		}

		mapping.SourcePrice = sourceVariant.Price
		mapping.DestinationPrice = newPrice
		if err := s.db.Save(mapping).Error; err != nil {
			return nil, fmt.Errorf("failed to persist mapping for %s: %w", mapping.SourceVariantID, err)
		}

		updates = append(updates, update)
	}

	if len(updates) > 0 {
		productGID := shopify.GID("Product", product.DestinationProductID)
		if err := admin.UpdateVariantPrices(ctx, productGID, updates); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("price update rejected: %v", err))
			return result, nil
		}
		result.UpdatedVariants = len(updates)
		s.logger.Info("[Syncer] updated %d variant price(s) for %s", len(updates), product.Title)
	}

	now := time.Now().UTC()
	product.LastSyncAt = &now
	if err := s.db.Model(product).Update("last_sync_at", now).Error; err != nil {
		s.logger.Error("[Syncer] failed to stamp last_sync_at for %s: %v", product.ID, err)
	}

	result.Success = true
	result.SyncedAt = now
	return result, nil
}

// SyncAllForShop syncs every sync-enabled product for the shop, tolerating
// per-product failures and collecting them into one error list.
func (s *Syncer) SyncAllForShop(ctx context.Context, shop string, admin shopify.AdminAPI) (synced int, errs []string) {
	var products []models.ImportedProduct
	err := s.db.Preload("Variants").
		Where("shop = ? AND sync_enabled = ?", shop, true).
		Find(&products).Error
	if err != nil {
		return 0, []string{fmt.Sprintf("failed to load products: %v", err)}
	}

	for idx := range products {
		product := &products[idx]
		result, err := s.SyncProduct(ctx, product, admin)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", product.Title, err))
			continue
		}
		if !result.Success {
			errs = append(errs, fmt.Sprintf("%s: %s", product.Title, joinErrors(result.Errors)))
			continue
		}
		synced++
	}
	return synced, errs
}

// ProductsNeedingSync lists sync-enabled products whose last sync is older
// than the window, never-synced ones included.
func (s *Syncer) ProductsNeedingSync(shop string, window time.Duration) ([]models.ImportedProduct, error) {
	cutoff := time.Now().UTC().Add(-window)
	var products []models.ImportedProduct
	err := s.db.Preload("Variants").
		Where("shop = ? AND sync_enabled = ? AND (last_sync_at IS NULL OR last_sync_at < ?)",
			shop, true, cutoff).
		Find(&products).Error
	return products, err
}

// WebhookVariant is one variant price as delivered by a product update
// webhook from a source shop.
type WebhookVariant struct {
	ID             int64  `json:"id"`
	Price          string `json:"price"`
	CompareAtPrice string `json:"compare_at_price"`
}

// WebhookPayload is the subset of a products/update webhook the syncer
// consumes.
type WebhookPayload struct {
	ID       int64            `json:"id"`
	Title    string           `json:"title"`
	Variants []WebhookVariant `json:"variants"`
}

// ApplyWebhookUpdate pushes prices from a source shop webhook to every
// sync-enabled product imported from that source product. Unlike
// SyncProduct it trusts the payload instead of refetching.
func (s *Syncer) ApplyWebhookUpdate(ctx context.Context, payload *WebhookPayload, admin shopify.AdminAPI) (int, error) {
	var products []models.ImportedProduct
	err := s.db.Preload("Variants").
		Where("source_product_id = ? AND sync_enabled = ?", fmt.Sprintf("%d", payload.ID), true).
		Find(&products).Error
	if err != nil {
		return 0, err
	}
	if len(products) == 0 {
		return 0, nil
	}

	priceByID := make(map[string]WebhookVariant, len(payload.Variants))
	for _, v := range payload.Variants {
		priceByID[fmt.Sprintf("%d", v.ID)] = v
	}

	updated := 0
	for idx := range products {
		product := &products[idx]

		cfg := pricing.Config{
			Mode:         pricing.Mode(product.PricingMode),
			MarkupAmount: product.MarkupAmount,
			Multiplier:   product.Multiplier,
		}

		var updates []shopify.VariantPriceUpdate
		for mIdx := range product.Variants {
			mapping := &product.Variants[mIdx]
			webhookVariant, ok := priceByID[mapping.SourceVariantID]
			if !ok {
				continue
			}
			newSource, err := decimal.NewFromString(webhookVariant.Price)
			if err != nil {
				continue
			}
			if newSource.Sub(mapping.SourcePrice).Abs().LessThan(driftEpsilon) {
				continue
			}
			newPrice, err := pricing.ComputeDestinationPrice(newSource, cfg)
			if err != nil {
				continue
			}
			mapping.SourcePrice = newSource
			mapping.DestinationPrice = newPrice
			if err := s.db.Save(mapping).Error; err != nil {
				s.logger.Error("[Syncer] webhook: failed to persist mapping %s: %v", mapping.ID, err)
				continue
			}
			updates = append(updates, shopify.VariantPriceUpdate{
				ID:    shopify.GID("ProductVariant", mapping.DestinationVariantID),
				Price: newPrice.StringFixed(2),
			})
		}

		if len(updates) == 0 {
			continue
		}
		productGID := shopify.GID("Product", product.DestinationProductID)
		if err := admin.UpdateVariantPrices(ctx, productGID, updates); err != nil {
			s.logger.Error("[Syncer] webhook: price update rejected for %s: %v", product.Title, err)
			continue
		}
		now := time.Now().UTC()
		product.LastSyncAt = &now
		s.db.Model(product).Update("last_sync_at", now)
		updated++
	}
	return updated, nil
}

// RunAutoSync periodically syncs stale products for the configured shop
// until ctx is cancelled. Used by the worker process.
func (s *Syncer) RunAutoSync(ctx context.Context, shop string, interval time.Duration, admin shopify.AdminAPI) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("[Syncer] auto-sync running every %s for %s", interval, shop)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("[Syncer] auto-sync stopped")
			return
		case <-ticker.C:
			var settings models.AppSettings
			if err := s.db.First(&settings, "shop = ?", shop).Error; err != nil || !settings.AutoSyncEnabled {
				s.logger.Debug("[Syncer] auto-sync disabled for %s", shop)
				continue
			}

			products, err := s.ProductsNeedingSync(shop, interval)
			if err != nil {
				s.logger.Error("[Syncer] auto-sync: failed to list stale products: %v", err)
				continue
			}
			for idx := range products {
				product := &products[idx]
				if _, err := s.SyncProduct(ctx, product, admin); err != nil {
					s.logger.Warn("[Syncer] auto-sync: %s: %v", product.Title, err)
				}
			}
		}
	}
}

func joinErrors(errs []string) string {
	if len(errs) == 0 {
		return "sync failed"
	}
	out := errs[0]
	for _, e := range errs[1:] {
		out += "; " + e
	}
	return out
}
