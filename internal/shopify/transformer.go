package shopify

import (
	"fmt"

	"kopy/internal/models"
	"kopy/internal/pricing"
)

// maxOptions is the destination catalog's limit on option definitions.
const maxOptions = 3

// BuildCreateInput converts a source product snapshot into a destination
// creation request. Option definitions are taken verbatim from the source,
// capped at the destination limit; images become external-source media
// descriptors.
func BuildCreateInput(source *models.SourceProduct, status models.ProductStatus) ProductCreateInput {
	input := ProductCreateInput{
		Title:           source.Title,
		DescriptionHTML: source.DescriptionHTML,
		Vendor:          source.Vendor,
		ProductType:     source.ProductType,
		Tags:            source.Tags,
		Status:          statusEnum(status),
	}
	if input.DescriptionHTML == "" {
		input.DescriptionHTML = source.Description
	}

	options := source.Options
	if len(options) > maxOptions {
		options = options[:maxOptions]
	}
	for _, opt := range options {
		values := make([]OptionValueInput, len(opt.Values))
		for i, v := range opt.Values {
			values[i] = OptionValueInput{Name: v}
		}
		input.Options = append(input.Options, OptionInput{Name: opt.Name, Values: values})
	}

	for _, img := range source.Images {
		input.Media = append(input.Media, CreateMediaInput{
			OriginalSource:   img.URL,
			Alt:              img.AltText,
			MediaContentType: "IMAGE",
		})
	}

	return input
}

// BuildVariantInputs prepares destination variants in source order, pricing
// each one (and its compare-at price, identically) through the transform.
func BuildVariantInputs(source *models.SourceProduct, cfg pricing.Config) ([]VariantInput, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	inputs := make([]VariantInput, 0, len(source.Variants))
	for _, variant := range source.Variants {
		price, err := pricing.ComputeDestinationPrice(variant.Price, cfg)
		if err != nil {
			return nil, fmt.Errorf("variant %s: %w", variant.ID, err)
		}

		input := VariantInput{
			Price:   price.StringFixed(2),
			Barcode: variant.Barcode,
			InventoryItem: &VariantInventoryInput{
				SKU:              variant.SKU,
				RequiresShipping: variant.RequiresShipping,
			},
		}

		if variant.CompareAtPrice != nil {
			compareAt, err := pricing.ComputeDestinationPrice(*variant.CompareAtPrice, cfg)
			if err != nil {
				return nil, fmt.Errorf("variant %s: %w", variant.ID, err)
			}
			input.CompareAtPrice = compareAt.StringFixed(2)
		}

		for _, opt := range variant.Options {
			input.OptionValues = append(input.OptionValues, VariantOptionValue{
				OptionName: opt.Name,
				Name:       opt.Value,
			})
		}

		inputs = append(inputs, input)
	}

	return inputs, nil
}

func statusEnum(status models.ProductStatus) string {
	switch status {
	case models.ProductStatusDraft:
		return "DRAFT"
	case models.ProductStatusArchived:
		return "ARCHIVED"
	default:
		return "ACTIVE"
	}
}
