package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	// Present in the schema for forward compatibility; no code path drives
	// a job into it.
	JobStatusCancelled JobStatus = "cancelled"
)

// MaxProgressEntries bounds the rolling per-item progress log persisted on
// the job row. Older entries are dropped; ProgressTotal keeps the real count
// so status consumers can tell when truncation happened.
const MaxProgressEntries = 50

// ProductRef identifies one product to import within a bulk job.
type ProductRef struct {
	ID     string `json:"id"`
	Handle string `json:"handle"`
}

type ProgressStatus string

const (
	ProgressProcessing ProgressStatus = "processing"
	ProgressSuccess    ProgressStatus = "success"
	ProgressFailed     ProgressStatus = "failed"
)

// ProgressEntry is one record in the bounded per-item progress log.
type ProgressEntry struct {
	Handle               string         `json:"handle"`
	Title                string         `json:"title"`
	Status               ProgressStatus `json:"status"`
	StartedAt            string         `json:"started_at"`
	CompletedAt          string         `json:"completed_at,omitempty"`
	SourcePrice          float64        `json:"source_price,omitempty"`
	DestinationPrice     float64        `json:"destination_price,omitempty"`
	DestinationProductID string         `json:"destination_product_id,omitempty"`
	Error                string         `json:"error,omitempty"`
}

// ImportError records one failed item in a bulk job.
type ImportError struct {
	ProductID string `json:"product_id"`
	Error     string `json:"error"`
}

// BulkImportJob is one batch import operation. The row is created pending,
// mutated exclusively by the job engine, and read-only everywhere else.
type BulkImportJob struct {
	ID                string    `json:"id" gorm:"type:uuid;primary_key"`
	Shop              string    `json:"shop" gorm:"not null;index"`
	SourceShop        string    `json:"source_shop" gorm:"not null"`
	SourceShopURL     string    `json:"source_shop_url"`
	ProductRefs       string    `json:"-" gorm:"type:text;not null"`
	PricingMode       string    `json:"pricing_mode" gorm:"not null"`
	MarkupAmount      string    `json:"markup_amount"`
	Multiplier        string    `json:"multiplier"`
	TargetStatus      string    `json:"target_status" gorm:"default:active"`
	CollectionID      string    `json:"collection_id"`
	JobStatus         JobStatus `json:"job_status" gorm:"default:pending;index"`
	TotalProducts     int       `json:"total_products"`
	ProcessedProducts int       `json:"processed_products"`
	SuccessfulImports int       `json:"successful_imports"`
	FailedImports     int       `json:"failed_imports"`
	Progress          string    `json:"-" gorm:"type:text"`
	ProgressTotal     int       `json:"progress_total"`
	Errors            string    `json:"-" gorm:"type:text"`
	CreatedAt         time.Time `json:"created_at"`
	StartedAt         *time.Time `json:"started_at"`
	CompletedAt       *time.Time `json:"completed_at"`
}

func (j *BulkImportJob) BeforeCreate(tx *gorm.DB) error {
	if j.ID == "" {
		j.ID = uuid.New().String()
	}
	return nil
}

// Refs parses the serialized product reference list.
func (j *BulkImportJob) Refs() ([]ProductRef, error) {
	var refs []ProductRef
	if err := json.Unmarshal([]byte(j.ProductRefs), &refs); err != nil {
		return nil, err
	}
	return refs, nil
}

// ParsedProgress returns the rolling progress log; a missing or malformed
// column yields an empty log rather than an error, matching the status
// endpoint's tolerance.
func (j *BulkImportJob) ParsedProgress() []ProgressEntry {
	if j.Progress == "" {
		return []ProgressEntry{}
	}
	var entries []ProgressEntry
	if err := json.Unmarshal([]byte(j.Progress), &entries); err != nil {
		return []ProgressEntry{}
	}
	return entries
}

// ParsedErrors returns the accumulated error list, empty when none recorded.
func (j *BulkImportJob) ParsedErrors() []ImportError {
	if j.Errors == "" {
		return []ImportError{}
	}
	var errs []ImportError
	if err := json.Unmarshal([]byte(j.Errors), &errs); err != nil {
		return []ImportError{}
	}
	return errs
}

// ProgressTruncated reports whether entries have been dropped from the
// rolling window.
func (j *BulkImportJob) ProgressTruncated() bool {
	return j.ProgressTotal > MaxProgressEntries
}

// AppendProgress appends an entry to the serialized log and truncates it to
// the most recent MaxProgressEntries. The log is append-only within a run;
// terminal entries are appended after their processing entry, not edited in
// place.
func AppendProgress(current string, entry ProgressEntry) string {
	var entries []ProgressEntry
	if current != "" {
		if err := json.Unmarshal([]byte(current), &entries); err != nil {
			entries = nil
		}
	}

	entries = append(entries, entry)
	if len(entries) > MaxProgressEntries {
		entries = entries[len(entries)-MaxProgressEntries:]
	}

	data, err := json.Marshal(entries)
	if err != nil {
		return current
	}
	return string(data)
}
