package shopify

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"kopy/internal/models"
)

// parseMoney accepts the two price encodings the APIs use: a bare string
// ("12.50", admin) or a money object ({"amount":"12.50",...}, storefront).
func parseMoney(raw json.RawMessage) (decimal.Decimal, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return decimal.Zero, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return decimal.NewFromString(s)
	}

	var money struct {
		Amount string `json:"amount"`
	}
	if err := json.Unmarshal(raw, &money); err != nil {
		return decimal.Zero, fmt.Errorf("unrecognized price encoding: %s", raw)
	}
	return decimal.NewFromString(money.Amount)
}

func productNodeToSource(node *productNode) (*models.SourceProduct, error) {
	product := &models.SourceProduct{
		ID:              node.ID,
		Handle:          node.Handle,
		Title:           node.Title,
		Description:     node.Description,
		DescriptionHTML: node.DescriptionHTML,
		Vendor:          node.Vendor,
		ProductType:     node.ProductType,
		Tags:            node.Tags,
	}

	for _, edge := range node.Images.Edges {
		product.Images = append(product.Images, models.SourceImage{
			ID:      edge.Node.ID,
			URL:     edge.Node.URL,
			AltText: edge.Node.AltText,
		})
	}

	for _, opt := range node.Options {
		product.Options = append(product.Options, models.SourceOption{
			Name:   opt.Name,
			Values: opt.Values,
		})
	}

	for _, edge := range node.Variants.Edges {
		variant, err := variantNodeToSource(edge.Node)
		if err != nil {
			return nil, &UpstreamError{Message: err.Error()}
		}
		product.Variants = append(product.Variants, variant)
	}

	return product, nil
}

func variantNodeToSource(node variantNode) (models.SourceVariant, error) {
	price, err := parseMoney(node.Price)
	if err != nil {
		return models.SourceVariant{}, fmt.Errorf("variant %s: %w", node.ID, err)
	}

	variant := models.SourceVariant{
		ID:                node.ID,
		Title:             node.Title,
		Price:             price,
		SKU:               node.SKU,
		Barcode:           node.Barcode,
		InventoryQuantity: node.InventoryQuantity,
		Weight:            node.Weight,
		WeightUnit:        node.WeightUnit,
		RequiresShipping:  node.RequiresShipping,
		Taxable:           node.Taxable,
	}

	if len(node.CompareAtPrice) > 0 && string(node.CompareAtPrice) != "null" {
		compareAt, err := parseMoney(node.CompareAtPrice)
		if err != nil {
			return models.SourceVariant{}, fmt.Errorf("variant %s: %w", node.ID, err)
		}
		variant.CompareAtPrice = &compareAt
	}

	for _, opt := range node.SelectedOptions {
		variant.Options = append(variant.Options, models.SelectedOption{
			Name:  opt.Name,
			Value: opt.Value,
		})
	}

	return variant, nil
}
