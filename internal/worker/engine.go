// Package worker runs bulk import jobs: sequentially importing every
// product in a job while keeping durable progress on the job row.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"kopy/internal/importer"
	"kopy/internal/logger"
	"kopy/internal/models"
	"kopy/internal/pricing"
	"kopy/internal/shopify"
)

const defaultItemDelay = 1 * time.Second

// ProductImporter is what the engine needs from the import layer.
type ProductImporter interface {
	Import(ctx context.Context, admin shopify.AdminAPI, req importer.Request) *importer.Result
}

// Engine drives one bulk job at a time per invocation. Job rows are never
// written by anything else once processing starts, so plain saves suffice.
type Engine struct {
	db       *gorm.DB
	importer ProductImporter
	logger   *logger.Logger

	// ItemDelay is the pause between items, keeping request volume against
	// the source shop polite. Tests set it to zero.
	ItemDelay time.Duration
}

func NewEngine(db *gorm.DB, imp ProductImporter, logger *logger.Logger) *Engine {
	return &Engine{
		db:        db,
		importer:  imp,
		logger:    logger,
		ItemDelay: defaultItemDelay,
	}
}

// StartJob launches ProcessJob on a new goroutine and returns immediately.
// A panic in the job marks it failed instead of killing the process.
func (e *Engine) StartJob(jobID string, admin shopify.AdminAPI) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				e.logger.Error("[Worker] panic in job %s: %v", jobID, r)
				e.markFailed(jobID, fmt.Sprintf("internal error: %v", r))
			}
		}()
		e.ProcessJob(context.Background(), jobID, admin)
	}()
}

// ProcessJob runs the job to a terminal status. When the job is not pending
// it is a no-op, which makes concurrent triggers (API fire-and-forget plus
// the Kafka consumer) safe.
func (e *Engine) ProcessJob(ctx context.Context, jobID string, admin shopify.AdminAPI) {
	var job models.BulkImportJob
	if err := e.db.First(&job, "id = ?", jobID).Error; err != nil {
		e.logger.Error("[Worker] job %s not found: %v", jobID, err)
		return
	}

	if job.JobStatus != models.JobStatusPending {
		e.logger.Info("[Worker] job %s already %s, skipping", jobID, job.JobStatus)
		return
	}

	refs, err := job.Refs()
	if err != nil {
		e.markFailed(jobID, fmt.Sprintf("invalid product list: %v", err))
		return
	}

	now := time.Now().UTC()
	job.JobStatus = models.JobStatusProcessing
	job.StartedAt = &now
	if err := e.db.Save(&job).Error; err != nil {
		e.logger.Error("[Worker] failed to mark job %s processing: %v", jobID, err)
		return
	}

	cfg, err := jobPricing(&job)
	if err != nil {
		e.markFailed(jobID, err.Error())
		return
	}

	var importErrors []models.ImportError

	for idx, ref := range refs {
		e.logger.Info("[Worker] job %s: importing %s (%d/%d)", jobID, ref.Handle, idx+1, len(refs))

		startedAt := time.Now().UTC().Format(time.RFC3339)
		e.appendProgress(&job, models.ProgressEntry{
			Handle:    ref.Handle,
			Status:    models.ProgressProcessing,
			StartedAt: startedAt,
		})
		e.saveProgress(&job)

		sourceURL := fmt.Sprintf("https://%s/products/%s", job.SourceShop, ref.Handle)
		result := e.importer.Import(ctx, admin, importer.Request{
			Shop:         job.Shop,
			SourceURL:    sourceURL,
			Pricing:      cfg,
			Status:       models.ProductStatus(job.TargetStatus),
			CollectionID: job.CollectionID,
		})

		completedAt := time.Now().UTC().Format(time.RFC3339)
		job.ProcessedProducts++

		if result.Success {
			job.SuccessfulImports++
			e.appendProgress(&job, successEntry(ref, result, startedAt, completedAt))
		} else {
			job.FailedImports++
			message := "import failed"
			if result.Err != nil {
				message = result.Err.Error()
			}
			importErrors = append(importErrors, models.ImportError{
				ProductID: ref.Handle,
				Error:     message,
			})
			e.appendProgress(&job, models.ProgressEntry{
				Handle:      ref.Handle,
				Status:      models.ProgressFailed,
				StartedAt:   startedAt,
				CompletedAt: completedAt,
				Error:       message,
			})
			e.logger.Warn("[Worker] job %s: %s failed: %s", jobID, ref.Handle, message)
		}
		e.saveProgress(&job)

		if idx < len(refs)-1 && e.ItemDelay > 0 {
			select {
			case <-ctx.Done():
				e.markFailed(jobID, "job cancelled: "+ctx.Err().Error())
				return
			case <-time.After(e.ItemDelay):
			}
		}
	}

	done := time.Now().UTC()
	job.JobStatus = models.JobStatusCompleted
	job.CompletedAt = &done
	if len(importErrors) > 0 {
		if data, err := json.Marshal(importErrors); err == nil {
			job.Errors = string(data)
		}
	}
	if err := e.db.Save(&job).Error; err != nil {
		e.logger.Error("[Worker] failed to finalize job %s: %v", jobID, err)
		return
	}
	e.logger.Info("[Worker] job %s completed: %d ok, %d failed",
		jobID, job.SuccessfulImports, job.FailedImports)
}

func successEntry(ref models.ProductRef, result *importer.Result, startedAt, completedAt string) models.ProgressEntry {
	entry := models.ProgressEntry{
		Handle:      ref.Handle,
		Status:      models.ProgressSuccess,
		StartedAt:   startedAt,
		CompletedAt: completedAt,
	}
	if result.Record != nil {
		entry.Title = result.Record.Title
		entry.DestinationProductID = result.Record.DestinationProductID
		if len(result.Record.Variants) > 0 {
			entry.SourcePrice = result.Record.Variants[0].SourcePrice.InexactFloat64()
			entry.DestinationPrice = result.Record.Variants[0].DestinationPrice.InexactFloat64()
		}
	}
	return entry
}

func (e *Engine) appendProgress(job *models.BulkImportJob, entry models.ProgressEntry) {
	job.Progress = models.AppendProgress(job.Progress, entry)
	job.ProgressTotal++
}

func (e *Engine) saveProgress(job *models.BulkImportJob) {
	if err := e.db.Save(job).Error; err != nil {
		e.logger.Error("[Worker] failed to persist progress for job %s: %v", job.ID, err)
	}
}

// markFailed puts the job in its terminal failed state with a single
// explanatory error entry. Used for faults outside the per-item loop.
func (e *Engine) markFailed(jobID, message string) {
	errs, _ := json.Marshal([]models.ImportError{{Error: message}})
	now := time.Now().UTC()
	err := e.db.Model(&models.BulkImportJob{}).
		Where("id = ?", jobID).
		Updates(map[string]interface{}{
			"job_status":   models.JobStatusFailed,
			"errors":       string(errs),
			"completed_at": now,
		}).Error
	if err != nil {
		e.logger.Error("[Worker] failed to mark job %s failed: %v", jobID, err)
	}
}

func jobPricing(job *models.BulkImportJob) (pricing.Config, error) {
	cfg := pricing.Config{Mode: pricing.Mode(job.PricingMode)}
	switch cfg.Mode {
	case pricing.ModeMarkup:
		amount, err := decimal.NewFromString(job.MarkupAmount)
		if err != nil {
			return cfg, fmt.Errorf("invalid markup amount %q: %w", job.MarkupAmount, err)
		}
		cfg.MarkupAmount = amount
	case pricing.ModeMultiplier:
		factor, err := decimal.NewFromString(job.Multiplier)
		if err != nil {
			return cfg, fmt.Errorf("invalid multiplier %q: %w", job.Multiplier, err)
		}
		cfg.Multiplier = factor
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
