package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ProductStatus string

const (
	ProductStatusActive   ProductStatus = "active"
	ProductStatusDraft    ProductStatus = "draft"
	ProductStatusArchived ProductStatus = "archived"
)

// ImportedProduct is the durable record of one completed import. One import
// per source product per shop, enforced by the composite unique index.
type ImportedProduct struct {
	ID                    string          `json:"id" gorm:"type:uuid;primary_key"`
	Shop                  string          `json:"shop" gorm:"not null;index;uniqueIndex:idx_shop_source_product"`
	SourceShop            string          `json:"source_shop" gorm:"not null"`
	SourceProductID       string          `json:"source_product_id" gorm:"not null;uniqueIndex:idx_shop_source_product"`
	SourceProductHandle   string          `json:"source_product_handle"`
	SourceProductURL      string          `json:"source_product_url" gorm:"not null"`
	DestinationProductID  string          `json:"destination_product_id" gorm:"not null"`
	DestinationHandle     string          `json:"destination_handle"`
	Title                 string          `json:"title" gorm:"not null"`
	Status                ProductStatus   `json:"status" gorm:"default:active"`
	PricingMode           string          `json:"pricing_mode" gorm:"not null"`
	MarkupAmount          decimal.Decimal `json:"markup_amount" gorm:"type:decimal(12,2)"`
	Multiplier            decimal.Decimal `json:"multiplier" gorm:"type:decimal(8,4)"`
	SyncEnabled           bool            `json:"sync_enabled" gorm:"default:false"`
	LastSyncAt            *time.Time      `json:"last_sync_at"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`

	Variants []VariantMapping `json:"variants" gorm:"foreignKey:ImportedProductID;constraint:OnDelete:CASCADE"`
}

// VariantMapping pairs one source variant with the destination variant
// created from it. The set is fixed at import time; only the two price
// columns change afterwards, and only through the sync engine.
type VariantMapping struct {
	ID                   string          `json:"id" gorm:"type:uuid;primary_key"`
	ImportedProductID    string          `json:"imported_product_id" gorm:"type:uuid;not null;index"`
	SourceVariantID      string          `json:"source_variant_id" gorm:"not null"`
	DestinationVariantID string          `json:"destination_variant_id" gorm:"not null"`
	Title                string          `json:"title"`
	SKU                  string          `json:"sku"`
	SourcePrice          decimal.Decimal `json:"source_price" gorm:"type:decimal(12,2)"`
	DestinationPrice     decimal.Decimal `json:"destination_price" gorm:"type:decimal(12,2)"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

func (p *ImportedProduct) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return nil
}

func (v *VariantMapping) BeforeCreate(tx *gorm.DB) error {
	if v.ID == "" {
		v.ID = uuid.New().String()
	}
	return nil
}
