package shopify

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kopy/internal/models"
	"kopy/internal/pricing"
)

func TestBuildCreateInput(t *testing.T) {
	source := &models.SourceProduct{
		Title:           "Blue Shirt",
		DescriptionHTML: "<p>nice</p>",
		Vendor:          "Acme",
		ProductType:     "Shirts",
		Tags:            []string{"summer", "sale"},
		Images: []models.SourceImage{
			{URL: "https://cdn.example.com/1.jpg", AltText: "front"},
		},
		Options: []models.SourceOption{
			{Name: "Size", Values: []string{"S", "M"}},
		},
	}

	input := BuildCreateInput(source, models.ProductStatusDraft)

	assert.Equal(t, "Blue Shirt", input.Title)
	assert.Equal(t, "<p>nice</p>", input.DescriptionHTML)
	assert.Equal(t, "DRAFT", input.Status)
	require.Len(t, input.Options, 1)
	assert.Equal(t, "Size", input.Options[0].Name)
	require.Len(t, input.Options[0].Values, 2)
	assert.Equal(t, "S", input.Options[0].Values[0].Name)
	require.Len(t, input.Media, 1)
	assert.Equal(t, "https://cdn.example.com/1.jpg", input.Media[0].OriginalSource)
	assert.Equal(t, "IMAGE", input.Media[0].MediaContentType)
}

func TestBuildCreateInputDescriptionFallback(t *testing.T) {
	source := &models.SourceProduct{Title: "Mug", Description: "plain text"}

	input := BuildCreateInput(source, models.ProductStatusActive)
	assert.Equal(t, "plain text", input.DescriptionHTML)
	assert.Equal(t, "ACTIVE", input.Status)
}

func TestBuildCreateInputCapsOptions(t *testing.T) {
	source := &models.SourceProduct{
		Title: "Over-optioned",
		Options: []models.SourceOption{
			{Name: "Size"}, {Name: "Color"}, {Name: "Material"}, {Name: "Pattern"},
		},
	}

	input := BuildCreateInput(source, models.ProductStatusActive)
	assert.Len(t, input.Options, maxOptions)
}

func TestBuildVariantInputs(t *testing.T) {
	compareAt := decimal.RequireFromString("30.00")
	source := &models.SourceProduct{
		Variants: []models.SourceVariant{
			{
				ID:               "gid://shopify/ProductVariant/201",
				Price:            decimal.RequireFromString("20.00"),
				CompareAtPrice:   &compareAt,
				SKU:              "SHIRT-S",
				Barcode:          "12345",
				RequiresShipping: true,
				Options:          []models.SelectedOption{{Name: "Size", Value: "Small"}},
			},
			{
				ID:    "gid://shopify/ProductVariant/202",
				Price: decimal.RequireFromString("25.00"),
			},
		},
	}
	cfg := pricing.Config{Mode: pricing.ModeMarkup, MarkupAmount: decimal.RequireFromString("5")}

	inputs, err := BuildVariantInputs(source, cfg)
	require.NoError(t, err)
	require.Len(t, inputs, 2)

	first := inputs[0]
	assert.Equal(t, "25.00", first.Price)
	assert.Equal(t, "35.00", first.CompareAtPrice)
	assert.Equal(t, "12345", first.Barcode)
	require.NotNil(t, first.InventoryItem)
	assert.Equal(t, "SHIRT-S", first.InventoryItem.SKU)
	assert.True(t, first.InventoryItem.RequiresShipping)
	require.Len(t, first.OptionValues, 1)
	assert.Equal(t, "Size", first.OptionValues[0].OptionName)
	assert.Equal(t, "Small", first.OptionValues[0].Name)

	assert.Equal(t, "30.00", inputs[1].Price)
	assert.Empty(t, inputs[1].CompareAtPrice)
}

func TestBuildVariantInputsRejectsInvalidConfig(t *testing.T) {
	source := &models.SourceProduct{
		Variants: []models.SourceVariant{{Price: decimal.RequireFromString("10.00")}},
	}

	_, err := BuildVariantInputs(source, pricing.Config{Mode: "percentage"})
	assert.ErrorIs(t, err, pricing.ErrInvalidConfig)
}
