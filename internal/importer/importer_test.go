package importer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"kopy/internal/database"
	"kopy/internal/logger"
	"kopy/internal/models"
	"kopy/internal/pricing"
	"kopy/internal/shopify"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// fakeAdmin records calls and returns canned responses.
type fakeAdmin struct {
	createErr     error
	bulkResult    *shopify.VariantBulkResult
	bulkErr       error
	updateErr     error
	publishErr    error
	collectionErr error
	refetched     *shopify.CreatedProduct

	created            *shopify.CreatedProduct
	bulkInputs         []shopify.VariantInput
	priceUpdates       []shopify.VariantPriceUpdate
	published          bool
	addedToCollection  string
	refetchCalls       int
}

func (f *fakeAdmin) CreateProduct(ctx context.Context, input shopify.ProductCreateInput) (*shopify.CreatedProduct, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = &shopify.CreatedProduct{
		ID:     "gid://shopify/Product/900",
		Handle: "imported-product",
		Title:  input.Title,
		Variants: []shopify.CreatedVariant{
			{ID: "gid://shopify/ProductVariant/9001", Title: "Default Title", Price: "0.00"},
		},
	}
	return f.created, nil
}

func (f *fakeAdmin) CreateVariantsBulk(ctx context.Context, productID string, variants []shopify.VariantInput) (*shopify.VariantBulkResult, error) {
	f.bulkInputs = variants
	if f.bulkErr != nil {
		return nil, f.bulkErr
	}
	if f.bulkResult != nil {
		return f.bulkResult, nil
	}
	result := &shopify.VariantBulkResult{}
	for i, v := range variants {
		result.Variants = append(result.Variants, shopify.CreatedVariant{
			ID:    fmt.Sprintf("gid://shopify/ProductVariant/91%02d", i),
			Price: v.Price,
		})
	}
	return result, nil
}

func (f *fakeAdmin) UpdateVariantPrices(ctx context.Context, productID string, updates []shopify.VariantPriceUpdate) error {
	f.priceUpdates = append(f.priceUpdates, updates...)
	if f.updateErr != nil {
		return f.updateErr
	}
	for i := range f.created.Variants {
		for _, u := range updates {
			if u.ID == f.created.Variants[i].ID {
				f.created.Variants[i].Price = u.Price
			}
		}
	}
	return nil
}

func (f *fakeAdmin) GetProduct(ctx context.Context, productID string) (*models.SourceProduct, error) {
	return nil, shopify.ErrNotFound
}

func (f *fakeAdmin) GetCreatedProduct(ctx context.Context, productID string) (*shopify.CreatedProduct, error) {
	f.refetchCalls++
	if f.refetched != nil {
		return f.refetched, nil
	}
	// Refetch reflects the bulk-created variants replacing the default one.
	if len(f.bulkInputs) > 0 {
		refetched := &shopify.CreatedProduct{
			ID:     f.created.ID,
			Handle: f.created.Handle,
			Title:  f.created.Title,
		}
		for i, v := range f.bulkInputs {
			refetched.Variants = append(refetched.Variants, shopify.CreatedVariant{
				ID:    fmt.Sprintf("gid://shopify/ProductVariant/91%02d", i),
				Price: v.Price,
			})
		}
		return refetched, nil
	}
	return f.created, nil
}

func (f *fakeAdmin) PublishProduct(ctx context.Context, productID string) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = true
	return nil
}

func (f *fakeAdmin) AddToCollection(ctx context.Context, collectionID, productID string) error {
	if f.collectionErr != nil {
		return f.collectionErr
	}
	f.addedToCollection = collectionID
	return nil
}

type fakeFetcher struct {
	product *models.SourceProduct
	err     error
}

func (f *fakeFetcher) ProductByURL(ctx context.Context, url string) (*models.SourceProduct, error) {
	return f.product, f.err
}

func multiVariantSource() *models.SourceProduct {
	compareAt := dec("35.00")
	return &models.SourceProduct{
		ID:     "gid://shopify/Product/111",
		Handle: "blue-shirt",
		Title:  "Blue Shirt",
		Options: []models.SourceOption{
			{Name: "Size", Values: []string{"Small", "Large"}},
		},
		Variants: []models.SourceVariant{
			{
				ID:             "gid://shopify/ProductVariant/201",
				Title:          "Small",
				Price:          dec("20.00"),
				CompareAtPrice: &compareAt,
				SKU:            "SHIRT-S",
				Options:        []models.SelectedOption{{Name: "Size", Value: "Small"}},
			},
			{
				ID:      "gid://shopify/ProductVariant/202",
				Title:   "Large",
				Price:   dec("25.00"),
				SKU:     "SHIRT-L",
				Options: []models.SelectedOption{{Name: "Size", Value: "Large"}},
			},
		},
	}
}

func singleVariantSource() *models.SourceProduct {
	return &models.SourceProduct{
		ID:     "gid://shopify/Product/112",
		Handle: "plain-mug",
		Title:  "Plain Mug",
		Variants: []models.SourceVariant{
			{ID: "gid://shopify/ProductVariant/301", Title: "Default Title", Price: dec("10.00")},
		},
	}
}

func newTestImporter(t *testing.T, source *models.SourceProduct) (*Importer, *gorm.DB) {
	t.Helper()
	db := testDB(t)
	return New(db, &fakeFetcher{product: source}, logger.New("error")), db
}

func markupRequest(source *models.SourceProduct, amount string) Request {
	return Request{
		Shop:      "dest.myshopify.com",
		Source:    source,
		SourceURL: "https://source-shop.com/products/" + source.Handle,
		Pricing:   pricing.Config{Mode: pricing.ModeMarkup, MarkupAmount: dec(amount)},
		Status:    models.ProductStatusActive,
	}
}

func TestImportMultiVariantWithMarkup(t *testing.T) {
	source := multiVariantSource()
	imp, db := newTestImporter(t, source)
	admin := &fakeAdmin{}

	result := imp.Import(context.Background(), admin, markupRequest(source, "5"))

	require.True(t, result.Success, "err: %v", result.Err)
	assert.Empty(t, result.VariantErrors)
	assert.True(t, admin.published)

	// priced variants went to the bulk create
	require.Len(t, admin.bulkInputs, 2)
	assert.Equal(t, "25.00", admin.bulkInputs[0].Price)
	assert.Equal(t, "40.00", admin.bulkInputs[0].CompareAtPrice)
	assert.Equal(t, "30.00", admin.bulkInputs[1].Price)

	// mapping pairs source and destination variants by position
	var record models.ImportedProduct
	require.NoError(t, db.Preload("Variants").First(&record, "id = ?", result.Record.ID).Error)
	assert.Equal(t, "dest.myshopify.com", record.Shop)
	assert.Equal(t, "source-shop.com", record.SourceShop)
	assert.Equal(t, "111", record.SourceProductID)
	assert.Equal(t, "900", record.DestinationProductID)
	require.Len(t, record.Variants, 2)
	assert.Equal(t, "201", record.Variants[0].SourceVariantID)
	assert.Equal(t, "9100", record.Variants[0].DestinationVariantID)
	assert.Equal(t, "25", record.Variants[0].DestinationPrice.String())
	assert.Equal(t, "202", record.Variants[1].SourceVariantID)
	assert.Equal(t, "30", record.Variants[1].DestinationPrice.String())
}

func TestImportSingleVariantWithMultiplier(t *testing.T) {
	source := singleVariantSource()
	imp, db := newTestImporter(t, source)
	admin := &fakeAdmin{}

	req := markupRequest(source, "0")
	req.Pricing = pricing.Config{Mode: pricing.ModeMultiplier, Multiplier: dec("1.5")}
	result := imp.Import(context.Background(), admin, req)

	require.True(t, result.Success, "err: %v", result.Err)
	assert.Empty(t, admin.bulkInputs)

	// the default variant got repriced instead of a bulk create
	require.Len(t, admin.priceUpdates, 1)
	assert.Equal(t, "15.00", admin.priceUpdates[0].Price)

	var record models.ImportedProduct
	require.NoError(t, db.Preload("Variants").First(&record, "id = ?", result.Record.ID).Error)
	require.Len(t, record.Variants, 1)
	assert.Equal(t, "15", record.Variants[0].DestinationPrice.String())
}

func TestImportNegativeMarkupFloorsAtZero(t *testing.T) {
	source := singleVariantSource()
	imp, _ := newTestImporter(t, source)
	admin := &fakeAdmin{}

	result := imp.Import(context.Background(), admin, markupRequest(source, "-100"))

	require.True(t, result.Success, "err: %v", result.Err)
	require.Len(t, admin.priceUpdates, 1)
	assert.Equal(t, "0.00", admin.priceUpdates[0].Price)
}

func TestImportSourceFetchFailure(t *testing.T) {
	db := testDB(t)
	imp := New(db, &fakeFetcher{err: shopify.ErrNotFound}, logger.New("error"))

	req := markupRequest(multiVariantSource(), "5")
	req.Source = nil
	result := imp.Import(context.Background(), &fakeAdmin{}, req)

	assert.False(t, result.Success)
	assert.Equal(t, FailureSourceFetch, result.Failure)
	assert.ErrorIs(t, result.Err, shopify.ErrNotFound)
}

func TestImportValidationFailurePreserved(t *testing.T) {
	source := multiVariantSource()
	imp, db := newTestImporter(t, source)
	admin := &fakeAdmin{
		createErr: &shopify.ValidationError{Fields: []shopify.FieldError{
			{Field: []string{"title"}, Message: "Title has already been taken"},
		}},
	}

	result := imp.Import(context.Background(), admin, markupRequest(source, "5"))

	assert.False(t, result.Success)
	assert.Equal(t, FailureDestinationValidation, result.Failure)
	assert.Contains(t, result.Err.Error(), "Title has already been taken")

	var count int64
	db.Model(&models.ImportedProduct{}).Count(&count)
	assert.Zero(t, count)
}

func TestImportPartialVariantFailureIsDegradedSuccess(t *testing.T) {
	source := multiVariantSource()
	imp, _ := newTestImporter(t, source)
	admin := &fakeAdmin{
		bulkErr: errors.New("variant limit reached"),
	}

	result := imp.Import(context.Background(), admin, markupRequest(source, "5"))

	require.True(t, result.Success, "err: %v", result.Err)
	assert.Equal(t, FailurePartialVariant, result.Failure)
	require.Len(t, result.VariantErrors, 1)
	assert.Contains(t, result.VariantErrors[0].Message, "variant limit reached")
	assert.True(t, admin.published)
}

func TestImportPublishFailureTolerated(t *testing.T) {
	source := singleVariantSource()
	imp, _ := newTestImporter(t, source)
	admin := &fakeAdmin{publishErr: errors.New("no publication")}

	result := imp.Import(context.Background(), admin, markupRequest(source, "5"))
	require.True(t, result.Success, "err: %v", result.Err)
}

func TestImportCollectionFailureTolerated(t *testing.T) {
	source := singleVariantSource()
	imp, _ := newTestImporter(t, source)
	admin := &fakeAdmin{collectionErr: errors.New("collection gone")}

	req := markupRequest(source, "5")
	req.CollectionID = "gid://shopify/Collection/77"
	result := imp.Import(context.Background(), admin, req)
	require.True(t, result.Success, "err: %v", result.Err)
}

func TestImportDuplicateRejected(t *testing.T) {
	source := singleVariantSource()
	imp, _ := newTestImporter(t, source)

	first := imp.Import(context.Background(), &fakeAdmin{}, markupRequest(source, "5"))
	require.True(t, first.Success, "err: %v", first.Err)

	second := imp.Import(context.Background(), &fakeAdmin{}, markupRequest(source, "5"))
	assert.False(t, second.Success)
	assert.Equal(t, FailureAlreadyImported, second.Failure)
}

func TestImportConcurrentDuplicateReportsAlreadyImported(t *testing.T) {
	source := singleVariantSource()
	imp, db := newTestImporter(t, source)

	// A rival import lands between the pre-check and the insert. The unique
	// index rejects the second insert, which must read as a duplicate rather
	// than a persistence fault.
	raced := false
	err := db.Callback().Create().Before("gorm:create").Register("rival_import", func(_ *gorm.DB) {
		if raced {
			return
		}
		raced = true
		rival := &models.ImportedProduct{
			Shop:                 "dest.myshopify.com",
			SourceShop:           "source-shop.com",
			SourceProductID:      "112",
			SourceProductURL:     "https://source-shop.com/products/plain-mug",
			DestinationProductID: "899",
			Title:                "Plain Mug",
			PricingMode:          string(pricing.ModeMarkup),
		}
		// Insert outside the importer's transaction so the rival commits
		// before the conflicting insert runs.
		db.Session(&gorm.Session{NewDB: true}).Create(rival)
	})
	require.NoError(t, err)

	result := imp.Import(context.Background(), &fakeAdmin{}, markupRequest(source, "5"))

	assert.False(t, result.Success)
	assert.Equal(t, FailureAlreadyImported, result.Failure)
	assert.Contains(t, result.Err.Error(), "already imported")

	var count int64
	db.Model(&models.ImportedProduct{}).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestImportPartialBulkFailureAlignsMappingsBySKU(t *testing.T) {
	source := multiVariantSource()
	imp, db := newTestImporter(t, source)
	admin := &fakeAdmin{
		bulkResult: &shopify.VariantBulkResult{
			Variants: []shopify.CreatedVariant{
				{ID: "gid://shopify/ProductVariant/9201", Title: "Large", Price: "30.00", SKU: "SHIRT-L"},
			},
			UserErrors: []shopify.FieldError{
				{Field: []string{"variants", "0", "barcode"}, Message: "Barcode has already been taken"},
			},
		},
		refetched: &shopify.CreatedProduct{
			ID:     "gid://shopify/Product/900",
			Handle: "imported-product",
			Title:  "Blue Shirt",
			Variants: []shopify.CreatedVariant{
				{ID: "gid://shopify/ProductVariant/9201", Title: "Large", Price: "30.00", SKU: "SHIRT-L"},
			},
		},
	}

	result := imp.Import(context.Background(), admin, markupRequest(source, "5"))

	require.True(t, result.Success, "err: %v", result.Err)
	assert.Equal(t, FailurePartialVariant, result.Failure)

	// Only the surviving variant is mapped, and to its own source variant.
	var record models.ImportedProduct
	require.NoError(t, db.Preload("Variants").First(&record, "id = ?", result.Record.ID).Error)
	require.Len(t, record.Variants, 1)
	assert.Equal(t, "202", record.Variants[0].SourceVariantID)
	assert.Equal(t, "9201", record.Variants[0].DestinationVariantID)
	assert.Equal(t, "30", record.Variants[0].DestinationPrice.String())
}

func TestAlignVariantsFallsBackToTitleWithoutSKU(t *testing.T) {
	source := []models.SourceVariant{
		{ID: "gid://shopify/ProductVariant/401", Title: "Red", Price: dec("10.00")},
		{ID: "gid://shopify/ProductVariant/402", Title: "Green", Price: dec("11.00")},
		{ID: "gid://shopify/ProductVariant/403", Title: "Blue", Price: dec("12.00")},
	}
	created := []shopify.CreatedVariant{
		{ID: "gid://shopify/ProductVariant/9301", Title: "Red", Price: "15.00"},
		{ID: "gid://shopify/ProductVariant/9303", Title: "Blue", Price: "17.00"},
	}

	pairs := alignVariants(source, created)

	require.Len(t, pairs, 2)
	assert.Equal(t, "gid://shopify/ProductVariant/401", pairs[0].source.ID)
	assert.Equal(t, "gid://shopify/ProductVariant/9301", pairs[0].dest.ID)
	assert.Equal(t, "gid://shopify/ProductVariant/403", pairs[1].source.ID)
	assert.Equal(t, "gid://shopify/ProductVariant/9303", pairs[1].dest.ID)
}
