package models

import "github.com/shopspring/decimal"

// SourceProduct is a snapshot of a remote product at fetch time. It is built
// fresh on every fetch, never mutated, and discarded once the importer or
// syncer has consumed it.
type SourceProduct struct {
	ID              string           `json:"id"`
	Handle          string           `json:"handle"`
	Title           string           `json:"title"`
	Description     string           `json:"description"`
	DescriptionHTML string           `json:"description_html"`
	Vendor          string           `json:"vendor"`
	ProductType     string           `json:"product_type"`
	Tags            []string         `json:"tags"`
	Images          []SourceImage    `json:"images"`
	Options         []SourceOption   `json:"options"`
	Variants        []SourceVariant  `json:"variants"`
}

type SourceImage struct {
	ID      string `json:"id"`
	URL     string `json:"url"`
	AltText string `json:"alt_text"`
}

// SourceOption is one of at most three option definitions (a destination
// catalog constraint) with its ordered allowed values.
type SourceOption struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

type SourceVariant struct {
	ID                string           `json:"id"`
	Title             string           `json:"title"`
	Price             decimal.Decimal  `json:"price"`
	CompareAtPrice    *decimal.Decimal `json:"compare_at_price,omitempty"`
	SKU               string           `json:"sku"`
	Barcode           string           `json:"barcode"`
	InventoryQuantity int              `json:"inventory_quantity"`
	Weight            float64          `json:"weight"`
	WeightUnit        string           `json:"weight_unit"`
	RequiresShipping  bool             `json:"requires_shipping"`
	Taxable           bool             `json:"taxable"`
	Options           []SelectedOption `json:"options"`
}

// SelectedOption pairs an option name with the value this variant takes.
// The list length must equal the parent product's option count.
type SelectedOption struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ProductSummary is the lightweight listing shape returned by the public
// catalog/collection listing endpoints.
type ProductSummary struct {
	ID            string `json:"id"`
	Handle        string `json:"handle"`
	Title         string `json:"title"`
	Vendor        string `json:"vendor"`
	ProductType   string `json:"product_type"`
	Price         string `json:"price"`
	Image         string `json:"image,omitempty"`
	VariantsCount int    `json:"variants_count"`
}
