package worker

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"kopy/internal/database"
	"kopy/internal/importer"
	"kopy/internal/logger"
	"kopy/internal/models"
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

// scriptedImporter fails the handles listed in failures and succeeds on
// everything else.
type scriptedImporter struct {
	failures map[string]error
	calls    []string
}

func (s *scriptedImporter) Import(ctx context.Context, admin shopify.AdminAPI, req importer.Request) *importer.Result {
	parsed, err := shopify.ParseProductURL(req.SourceURL)
	if err != nil {
		return &importer.Result{Failure: importer.FailureSourceFetch, Err: err}
	}
	s.calls = append(s.calls, parsed.Handle)

	if failErr, ok := s.failures[parsed.Handle]; ok {
		return &importer.Result{Failure: importer.FailureDestinationValidation, Err: failErr}
	}
	return &importer.Result{
		Success: true,
		Record: &models.ImportedProduct{
			Title:                "Title of " + parsed.Handle,
			DestinationProductID: "900",
			Variants: []models.VariantMapping{
				{SourcePrice: decimal.RequireFromString("10.00"), DestinationPrice: decimal.RequireFromString("15.00")},
			},
		},
	}
}

func makeJob(t *testing.T, db *gorm.DB, handles []string) *models.BulkImportJob {
	t.Helper()
	refs := make([]models.ProductRef, 0, len(handles))
	for i, h := range handles {
		refs = append(refs, models.ProductRef{ID: string(rune('1' + i)), Handle: h})
	}
	data, err := json.Marshal(refs)
	require.NoError(t, err)

	job := &models.BulkImportJob{
		Shop:          "dest.myshopify.com",
		SourceShop:    "source-shop.com",
		ProductRefs:   string(data),
		PricingMode:   "markup",
		MarkupAmount:  "5",
		TargetStatus:  "active",
		JobStatus:     models.JobStatusPending,
		TotalProducts: len(handles),
	}
	require.NoError(t, db.Create(job).Error)
	return job
}

func newTestEngine(db *gorm.DB, imp ProductImporter) *Engine {
	engine := NewEngine(db, imp, logger.New("error"))
	engine.ItemDelay = 0
	return engine
}

func TestProcessJobAllSucceed(t *testing.T) {
	db := testDB(t)
	imp := &scriptedImporter{}
	engine := newTestEngine(db, imp)

	job := makeJob(t, db, []string{"product-a", "product-b", "product-c"})
	engine.ProcessJob(context.Background(), job.ID, nil)

	var reloaded models.BulkImportJob
	require.NoError(t, db.First(&reloaded, "id = ?", job.ID).Error)
	assert.Equal(t, models.JobStatusCompleted, reloaded.JobStatus)
	assert.Equal(t, 3, reloaded.ProcessedProducts)
	assert.Equal(t, 3, reloaded.SuccessfulImports)
	assert.Zero(t, reloaded.FailedImports)
	assert.NotNil(t, reloaded.StartedAt)
	assert.NotNil(t, reloaded.CompletedAt)
	assert.Empty(t, reloaded.ParsedErrors())

	// processing + terminal entry per item
	assert.Equal(t, 6, reloaded.ProgressTotal)
	assert.Equal(t, []string{"product-a", "product-b", "product-c"}, imp.calls)
}

func TestProcessJobFailureDoesNotAbortBatch(t *testing.T) {
	db := testDB(t)
	imp := &scriptedImporter{failures: map[string]error{
		"product-b": errors.New("title taken"),
	}}
	engine := newTestEngine(db, imp)

	job := makeJob(t, db, []string{"product-a", "product-b", "product-c"})
	engine.ProcessJob(context.Background(), job.ID, nil)

	var reloaded models.BulkImportJob
	require.NoError(t, db.First(&reloaded, "id = ?", job.ID).Error)
	assert.Equal(t, models.JobStatusCompleted, reloaded.JobStatus)
	assert.Equal(t, 3, reloaded.ProcessedProducts)
	assert.Equal(t, 2, reloaded.SuccessfulImports)
	assert.Equal(t, 1, reloaded.FailedImports)

	errs := reloaded.ParsedErrors()
	require.Len(t, errs, 1)
	assert.Equal(t, "product-b", errs[0].ProductID)
	assert.Contains(t, errs[0].Error, "title taken")

	// all three items were attempted
	assert.Equal(t, []string{"product-a", "product-b", "product-c"}, imp.calls)
}

func TestProcessJobPendingGuard(t *testing.T) {
	db := testDB(t)
	imp := &scriptedImporter{}
	engine := newTestEngine(db, imp)

	job := makeJob(t, db, []string{"product-a"})
	require.NoError(t, db.Model(job).Update("job_status", models.JobStatusProcessing).Error)

	engine.ProcessJob(context.Background(), job.ID, nil)

	assert.Empty(t, imp.calls)
	var reloaded models.BulkImportJob
	require.NoError(t, db.First(&reloaded, "id = ?", job.ID).Error)
	assert.Equal(t, models.JobStatusProcessing, reloaded.JobStatus)
	assert.Zero(t, reloaded.ProcessedProducts)
}

func TestProcessJobCompletedGuard(t *testing.T) {
	db := testDB(t)
	imp := &scriptedImporter{}
	engine := newTestEngine(db, imp)

	job := makeJob(t, db, []string{"product-a"})
	require.NoError(t, db.Model(job).Update("job_status", models.JobStatusCompleted).Error)

	engine.ProcessJob(context.Background(), job.ID, nil)
	assert.Empty(t, imp.calls)
}

func TestProcessJobMalformedRefs(t *testing.T) {
	db := testDB(t)
	engine := newTestEngine(db, &scriptedImporter{})

	job := &models.BulkImportJob{
		Shop:        "dest.myshopify.com",
		SourceShop:  "source-shop.com",
		ProductRefs: "not json",
		PricingMode: "markup",
		JobStatus:   models.JobStatusPending,
	}
	require.NoError(t, db.Create(job).Error)

	engine.ProcessJob(context.Background(), job.ID, nil)

	var reloaded models.BulkImportJob
	require.NoError(t, db.First(&reloaded, "id = ?", job.ID).Error)
	assert.Equal(t, models.JobStatusFailed, reloaded.JobStatus)
	errs := reloaded.ParsedErrors()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error, "invalid product list")
}

func TestProcessJobInvalidPricing(t *testing.T) {
	db := testDB(t)
	engine := newTestEngine(db, &scriptedImporter{})

	job := makeJob(t, db, []string{"product-a"})
	require.NoError(t, db.Model(job).Update("pricing_mode", "percentage").Error)

	engine.ProcessJob(context.Background(), job.ID, nil)

	var reloaded models.BulkImportJob
	require.NoError(t, db.First(&reloaded, "id = ?", job.ID).Error)
	assert.Equal(t, models.JobStatusFailed, reloaded.JobStatus)
}

func TestProcessJobProgressEntries(t *testing.T) {
	db := testDB(t)
	imp := &scriptedImporter{failures: map[string]error{
		"bad-product": errors.New("rejected"),
	}}
	engine := newTestEngine(db, imp)

	job := makeJob(t, db, []string{"good-product", "bad-product"})
	engine.ProcessJob(context.Background(), job.ID, nil)

	var reloaded models.BulkImportJob
	require.NoError(t, db.First(&reloaded, "id = ?", job.ID).Error)

	entries := reloaded.ParsedProgress()
	require.Len(t, entries, 4)

	assert.Equal(t, models.ProgressProcessing, entries[0].Status)
	assert.Equal(t, "good-product", entries[0].Handle)

	success := entries[1]
	assert.Equal(t, models.ProgressSuccess, success.Status)
	assert.Equal(t, "Title of good-product", success.Title)
	assert.Equal(t, "900", success.DestinationProductID)
	assert.InDelta(t, 10.0, success.SourcePrice, 0.001)
	assert.InDelta(t, 15.0, success.DestinationPrice, 0.001)
	assert.NotEmpty(t, success.CompletedAt)

	failed := entries[3]
	assert.Equal(t, models.ProgressFailed, failed.Status)
	assert.Equal(t, "bad-product", failed.Handle)
	assert.Contains(t, failed.Error, "rejected")
}

func TestStartJobRecoversFromPanic(t *testing.T) {
	db := testDB(t)
	engine := newTestEngine(db, panickingImporter{})

	job := makeJob(t, db, []string{"product-a"})
	engine.StartJob(job.ID, nil)

	require.Eventually(t, func() bool {
		var reloaded models.BulkImportJob
		if err := db.First(&reloaded, "id = ?", job.ID).Error; err != nil {
			return false
		}
		return reloaded.JobStatus == models.JobStatusFailed
	}, 5*time.Second, 10*time.Millisecond)

	var reloaded models.BulkImportJob
	require.NoError(t, db.First(&reloaded, "id = ?", job.ID).Error)
	errs := reloaded.ParsedErrors()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error, "internal error")
}

type panickingImporter struct{}

func (panickingImporter) Import(ctx context.Context, admin shopify.AdminAPI, req importer.Request) *importer.Result {
	panic("boom")
}
