package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AppSettings holds per-shop defaults for imports and synchronization.
type AppSettings struct {
	ID                  string          `json:"id" gorm:"type:uuid;primary_key"`
	Shop                string          `json:"shop" gorm:"uniqueIndex;not null"`
	DefaultPricingMode  string          `json:"default_pricing_mode" gorm:"default:markup"`
	DefaultMarkupAmount decimal.Decimal `json:"default_markup_amount" gorm:"type:decimal(12,2)"`
	DefaultMultiplier   decimal.Decimal `json:"default_multiplier" gorm:"type:decimal(8,4)"`
	AutoSyncEnabled     bool            `json:"auto_sync_enabled" gorm:"default:false"`
	SyncFrequency       string          `json:"sync_frequency"`
	AuthorizedSources   string          `json:"-" gorm:"type:text;default:'[]'"`
	DefaultTags         string          `json:"default_tags" gorm:"default:kopy-product"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

func (s *AppSettings) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return nil
}

// Sources parses the authorized source domain list.
func (s *AppSettings) Sources() []string {
	if s.AuthorizedSources == "" {
		return []string{}
	}
	var sources []string
	if err := json.Unmarshal([]byte(s.AuthorizedSources), &sources); err != nil {
		return []string{}
	}
	return sources
}

// SetSources serializes the authorized source domain list.
func (s *AppSettings) SetSources(sources []string) {
	data, err := json.Marshal(sources)
	if err != nil {
		return
	}
	s.AuthorizedSources = string(data)
}
