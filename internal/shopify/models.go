package shopify

import "encoding/json"

// graphQLRequest is the wire shape of every GraphQL call.
type graphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type graphQLError struct {
	Message string `json:"message"`
}

// graphQLEnvelope is the common response wrapper; Data is decoded per call
// into a typed payload so destination-API failures stay structurally
// distinguishable from transport failures.
type graphQLEnvelope struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

// ProductCreateInput is the destination-side creation request built from a
// source product snapshot.
type ProductCreateInput struct {
	Title           string             `json:"title"`
	DescriptionHTML string             `json:"descriptionHtml,omitempty"`
	Vendor          string             `json:"vendor,omitempty"`
	ProductType     string             `json:"productType,omitempty"`
	Tags            []string           `json:"tags,omitempty"`
	Status          string             `json:"status,omitempty"`
	Options         []OptionInput      `json:"productOptions,omitempty"`
	Media           []CreateMediaInput `json:"-"`
}

type OptionInput struct {
	Name   string             `json:"name"`
	Values []OptionValueInput `json:"values"`
}

type OptionValueInput struct {
	Name string `json:"name"`
}

// CreateMediaInput references an image by its external source URL; bytes are
// never re-uploaded.
type CreateMediaInput struct {
	OriginalSource   string `json:"originalSource"`
	Alt              string `json:"alt,omitempty"`
	MediaContentType string `json:"mediaContentType"`
}

// VariantInput is one destination variant to bulk-create.
type VariantInput struct {
	Price          string                 `json:"price"`
	CompareAtPrice string                 `json:"compareAtPrice,omitempty"`
	Barcode        string                 `json:"barcode,omitempty"`
	OptionValues   []VariantOptionValue   `json:"optionValues,omitempty"`
	InventoryItem  *VariantInventoryInput `json:"inventoryItem,omitempty"`
}

type VariantOptionValue struct {
	OptionName string `json:"optionName"`
	Name       string `json:"name"`
}

type VariantInventoryInput struct {
	SKU              string `json:"sku,omitempty"`
	RequiresShipping bool   `json:"requiresShipping"`
}

// VariantPriceUpdate is one entry of a bulk price update.
type VariantPriceUpdate struct {
	ID             string `json:"id"`
	Price          string `json:"price"`
	CompareAtPrice string `json:"compareAtPrice,omitempty"`
}

// CreatedVariant is the destination API's view of a variant after creation.
type CreatedVariant struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Price string `json:"price"`
	SKU   string `json:"sku"`
}

// CreatedProduct is the destination API's view of a product after creation
// or refetch. Variant order matches creation order; the importer pairs
// variants by index when the counts line up.
type CreatedProduct struct {
	ID       string           `json:"id"`
	Handle   string           `json:"handle"`
	Title    string           `json:"title"`
	Variants []CreatedVariant `json:"variants"`
}

// VariantBulkResult reports a bulk variant creation: the variants that were
// created plus any per-item user errors. Partial failure is a degraded
// success, not a fatal one.
type VariantBulkResult struct {
	Variants   []CreatedVariant
	UserErrors []FieldError
}

// productNode is the GraphQL shape shared by the admin product query and
// the refetch after creation.
type productNode struct {
	ID              string   `json:"id"`
	Handle          string   `json:"handle"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	DescriptionHTML string   `json:"descriptionHtml"`
	Vendor          string   `json:"vendor"`
	ProductType     string   `json:"productType"`
	Tags            []string `json:"tags"`
	Images          struct {
		Edges []struct {
			Node struct {
				ID      string `json:"id"`
				URL     string `json:"url"`
				AltText string `json:"altText"`
			} `json:"node"`
		} `json:"edges"`
	} `json:"images"`
	Variants struct {
		Edges []struct {
			Node variantNode `json:"node"`
		} `json:"edges"`
	} `json:"variants"`
	Options []struct {
		Name   string   `json:"name"`
		Values []string `json:"values"`
	} `json:"options"`
}

type variantNode struct {
	ID                string          `json:"id"`
	Title             string          `json:"title"`
	Price             json.RawMessage `json:"price"`
	CompareAtPrice    json.RawMessage `json:"compareAtPrice"`
	SKU               string          `json:"sku"`
	Barcode           string          `json:"barcode"`
	InventoryQuantity int             `json:"inventoryQuantity"`
	Weight            float64         `json:"weight"`
	WeightUnit        string          `json:"weightUnit"`
	RequiresShipping  bool            `json:"requiresShipping"`
	Taxable           bool            `json:"taxable"`
	SelectedOptions   []struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	} `json:"selectedOptions"`
}

type userErrorsPayload struct {
	UserErrors []FieldError `json:"userErrors"`
}
