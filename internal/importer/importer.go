// Package importer executes the multi-step product creation protocol
// against the destination catalog and persists the resulting
// source-to-destination mapping.
package importer

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"kopy/internal/logger"
	"kopy/internal/models"
	"kopy/internal/pricing"
	"kopy/internal/shopify"
)

// FailureKind classifies why an import failed so callers can tell a
// user-correctable rejection from a transport fault or an orphaned record.
type FailureKind string

const (
	FailureSourceFetch           FailureKind = "source_fetch_failed"
	FailureDestinationValidation FailureKind = "destination_validation_failed"
	FailureUpstream              FailureKind = "upstream_error"
	FailureAlreadyImported       FailureKind = "already_imported"
	// FailurePartialVariant marks a degraded success: the product was
	// created but some variants were rejected.
	FailurePartialVariant FailureKind = "partial_variant_failure"
	// FailurePersistence means the destination-side product exists but the
	// durable record could not be written; cleanup may be needed.
	FailurePersistence FailureKind = "persistence_failed"
)

// Result reports one import. A degraded import (some variants rejected) is
// still a success; the per-item errors are carried in VariantErrors.
type Result struct {
	Success       bool
	Failure       FailureKind
	Product       *shopify.CreatedProduct
	Record        *models.ImportedProduct
	VariantErrors []shopify.FieldError
	Err           error
}

func failure(kind FailureKind, err error) *Result {
	return &Result{Failure: kind, Err: err}
}

// SourceFetcher resolves a product URL into a source snapshot.
type SourceFetcher interface {
	ProductByURL(ctx context.Context, url string) (*models.SourceProduct, error)
}

type Importer struct {
	db      *gorm.DB
	fetcher SourceFetcher
	logger  *logger.Logger
}

func New(db *gorm.DB, fetcher SourceFetcher, logger *logger.Logger) *Importer {
	return &Importer{db: db, fetcher: fetcher, logger: logger}
}

// Request carries everything one import needs. Source may be pre-fetched;
// when nil it is resolved from SourceURL.
type Request struct {
	Shop         string
	Source       *models.SourceProduct
	SourceURL    string
	Pricing      pricing.Config
	Status       models.ProductStatus
	CollectionID string
}

// Import runs the creation protocol. Each step may fail independently;
// failure of a required step aborts the import, while variant-level
// degradation, publish failures and collection-add failures are logged and
// tolerated.
func (i *Importer) Import(ctx context.Context, admin shopify.AdminAPI, req Request) *Result {
	parsed, err := shopify.ParseProductURL(req.SourceURL)
	if err != nil {
		return failure(FailureSourceFetch, err)
	}

	// 1. Resolve the source product.
	source := req.Source
	if source == nil {
		source, err = i.fetcher.ProductByURL(ctx, req.SourceURL)
		if err != nil {
			return failure(FailureSourceFetch, err)
		}
	}

	sourceProductID := shopify.ExtractIDFromGID(source.ID)
	already, err := i.alreadyImported(req.Shop, sourceProductID)
	if err != nil {
		// The unique index on (shop, source_product_id) still rejects a
		// duplicate at persist time, so proceed.
		i.logger.Warn("[Importer] duplicate pre-check failed for %s: %v", sourceProductID, err)
	} else if already {
		return failure(FailureAlreadyImported,
			fmt.Errorf("product %s already imported for %s", sourceProductID, req.Shop))
	}

	// 2-3. Build and submit the creation request.
	input := shopify.BuildCreateInput(source, req.Status)
	created, err := admin.CreateProduct(ctx, input)
	if err != nil {
		var validation *shopify.ValidationError
		if errors.As(err, &validation) {
			return failure(FailureDestinationValidation, err)
		}
		return failure(FailureUpstream, err)
	}

	var variantErrors []shopify.FieldError

	if len(source.Variants) > 1 && len(source.Options) > 0 {
		// 4. Bulk-create variants in source order. Per-item rejections
		// degrade the import but never fail it.
		inputs, err := shopify.BuildVariantInputs(source, req.Pricing)
		if err != nil {
			return failure(FailureDestinationValidation, err)
		}
		bulk, err := admin.CreateVariantsBulk(ctx, created.ID, inputs)
		if err != nil {
			i.logger.Error("[Importer] bulk variant create failed for %s: %v", created.ID, err)
			variantErrors = append(variantErrors, shopify.FieldError{Message: err.Error()})
		} else if len(bulk.UserErrors) > 0 {
			i.logger.Warn("[Importer] %d variant(s) rejected for %s", len(bulk.UserErrors), created.ID)
			variantErrors = append(variantErrors, bulk.UserErrors...)
		}
	} else if len(source.Variants) > 0 && len(created.Variants) > 0 {
		// 5. Single variant: reprice the auto-created default variant.
		update, err := defaultVariantUpdate(source.Variants[0], created.Variants[0].ID, req.Pricing)
		if err != nil {
			return failure(FailureDestinationValidation, err)
		}
		if err := admin.UpdateVariantPrices(ctx, created.ID, []shopify.VariantPriceUpdate{update}); err != nil {
			i.logger.Error("[Importer] default variant price update failed for %s: %v", created.ID, err)
			variantErrors = append(variantErrors, shopify.FieldError{Message: err.Error()})
		}
	}

	// 6. Refetch for authoritative variant ids and prices, then publish.
	// A publish failure never fails the import; the product exists.
	if final, err := admin.GetCreatedProduct(ctx, created.ID); err != nil {
		i.logger.Warn("[Importer] refetch failed for %s, using creation response: %v", created.ID, err)
	} else {
		created = final
	}

	if err := admin.PublishProduct(ctx, created.ID); err != nil {
		i.logger.Warn("[Importer] publish failed for %s: %v", created.ID, err)
	}

	// 7. Persist the mapping. A duplicate that slipped past the pre-check
	// hits the unique index here and reports as already imported, not as a
	// persistence fault.
	record, err := i.persist(source, created, parsed, req)
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return failure(FailureAlreadyImported,
				fmt.Errorf("product %s already imported for %s", sourceProductID, req.Shop))
		}
		return &Result{
			Failure: FailurePersistence,
			Product: created,
			Err:     fmt.Errorf("product %s created but record not persisted: %w", created.ID, err),
		}
	}

	// 8. Collection membership is best-effort.
	if req.CollectionID != "" {
		if err := admin.AddToCollection(ctx, req.CollectionID, created.ID); err != nil {
			i.logger.Warn("[Importer] collection add failed for %s: %v", created.ID, err)
		}
	}

	result := &Result{
		Success:       true,
		Product:       created,
		Record:        record,
		VariantErrors: variantErrors,
	}
	if len(variantErrors) > 0 {
		result.Failure = FailurePartialVariant
	}
	return result
}

func (i *Importer) alreadyImported(shop, sourceProductID string) (bool, error) {
	var count int64
	err := i.db.Model(&models.ImportedProduct{}).
		Where("shop = ? AND source_product_id = ?", shop, sourceProductID).
		Count(&count).Error
	return count > 0, err
}

func defaultVariantUpdate(source models.SourceVariant, destinationVariantID string, cfg pricing.Config) (shopify.VariantPriceUpdate, error) {
	price, err := pricing.ComputeDestinationPrice(source.Price, cfg)
	if err != nil {
		return shopify.VariantPriceUpdate{}, err
	}

	update := shopify.VariantPriceUpdate{
		ID:    destinationVariantID,
		Price: price.StringFixed(2),
	}
	if source.CompareAtPrice != nil {
		compareAt, err := pricing.ComputeDestinationPrice(*source.CompareAtPrice, cfg)
		if err != nil {
			return shopify.VariantPriceUpdate{}, err
		}
		update.CompareAtPrice = compareAt.StringFixed(2)
	}
	return update, nil
}

func (i *Importer) persist(source *models.SourceProduct, created *shopify.CreatedProduct, parsed *shopify.ParsedProductURL, req Request) (*models.ImportedProduct, error) {
	record := &models.ImportedProduct{
		Shop:                 req.Shop,
		SourceShop:           parsed.Shop,
		SourceProductID:      shopify.ExtractIDFromGID(source.ID),
		SourceProductHandle:  source.Handle,
		SourceProductURL:     req.SourceURL,
		DestinationProductID: shopify.ExtractIDFromGID(created.ID),
		DestinationHandle:    created.Handle,
		Title:                source.Title,
		Status:               req.Status,
		PricingMode:          string(req.Pricing.Mode),
		MarkupAmount:         req.Pricing.MarkupAmount,
		Multiplier:           req.Pricing.Multiplier,
		SyncEnabled:          false,
	}

	for _, pair := range alignVariants(source.Variants, created.Variants) {
		destPrice, err := decimal.NewFromString(pair.dest.Price)
		if err != nil {
			destPrice = decimal.Zero
		}

		record.Variants = append(record.Variants, models.VariantMapping{
			SourceVariantID:      shopify.ExtractIDFromGID(pair.source.ID),
			DestinationVariantID: shopify.ExtractIDFromGID(pair.dest.ID),
			Title:                pair.source.Title,
			SKU:                  pair.source.SKU,
			SourcePrice:          pair.source.Price,
			DestinationPrice:     destPrice,
		})
	}

	if err := i.db.Create(record).Error; err != nil {
		return nil, err
	}
	return record, nil
}

type variantPair struct {
	source models.SourceVariant
	dest   shopify.CreatedVariant
}

// alignVariants pairs source variants with their destination counterparts.
// Creation preserves order, so equal-length lists pair by index. After a
// partial variant failure the destination list is shorter and index pairing
// would drift, so the fallback matches on SKU, then variant title, and
// skips source variants with no surviving counterpart.
func alignVariants(source []models.SourceVariant, created []shopify.CreatedVariant) []variantPair {
	if len(source) == len(created) {
		pairs := make([]variantPair, len(source))
		for idx := range source {
			pairs[idx] = variantPair{source: source[idx], dest: created[idx]}
		}
		return pairs
	}

	used := make([]bool, len(created))
	var pairs []variantPair
	for _, sv := range source {
		for idx, cv := range created {
			if used[idx] {
				continue
			}
			if (sv.SKU != "" && sv.SKU == cv.SKU) || (sv.SKU == "" && sv.Title != "" && sv.Title == cv.Title) {
				used[idx] = true
				pairs = append(pairs, variantPair{source: sv, dest: cv})
				break
			}
		}
	}
	return pairs
}
