package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"kopy/internal/logger"
	"kopy/internal/models"
)

// AdminAPI is the destination catalog's mutation surface as consumed by the
// importer and the sync engine.
type AdminAPI interface {
	CreateProduct(ctx context.Context, input ProductCreateInput) (*CreatedProduct, error)
	CreateVariantsBulk(ctx context.Context, productID string, variants []VariantInput) (*VariantBulkResult, error)
	UpdateVariantPrices(ctx context.Context, productID string, updates []VariantPriceUpdate) error
	GetProduct(ctx context.Context, productID string) (*models.SourceProduct, error)
	GetCreatedProduct(ctx context.Context, productID string) (*CreatedProduct, error)
	PublishProduct(ctx context.Context, productID string) error
	AddToCollection(ctx context.Context, collectionID, productID string) error
}

// AdminClient talks to one destination shop's admin GraphQL API.
type AdminClient struct {
	shopDomain  string
	accessToken string
	apiVersion  string
	httpClient  *http.Client
	logger      *logger.Logger

	// Resolved lazily on the first publish.
	publicationID string
}

func NewAdminClient(shopDomain, accessToken, apiVersion string, logger *logger.Logger) *AdminClient {
	if apiVersion == "" {
		apiVersion = "2024-10"
	}
	return &AdminClient{
		shopDomain:  shopDomain,
		accessToken: accessToken,
		apiVersion:  apiVersion,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

func (c *AdminClient) graphql(ctx context.Context, query string, variables map[string]interface{}, out interface{}) error {
	url := fmt.Sprintf("https://%s/admin/api/%s/graphql.json", c.shopDomain, c.apiVersion)

	body, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Shopify-Access-Token", c.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &UpstreamError{Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return &UpstreamError{Status: resp.StatusCode, Message: string(raw)}
	}

	var envelope graphQLEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return &UpstreamError{Message: fmt.Sprintf("failed to decode response: %v", err)}
	}
	if len(envelope.Errors) > 0 {
		return &UpstreamError{Message: envelope.Errors[0].Message}
	}

	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return &UpstreamError{Message: fmt.Sprintf("unexpected response shape: %v", err)}
	}
	return nil
}

const productCreateMutation = `
mutation createProduct($input: ProductInput!, $media: [CreateMediaInput!]) {
  productCreate(input: $input, media: $media) {
    product {
      id
      handle
      title
      variants(first: 100) {
        edges {
          node {
            id
            title
            price
            sku
          }
        }
      }
    }
    userErrors {
      field
      message
    }
  }
}`

// CreateProduct submits a product creation. Field-level user errors come
// back verbatim as a *ValidationError and are never retried automatically.
func (c *AdminClient) CreateProduct(ctx context.Context, input ProductCreateInput) (*CreatedProduct, error) {
	var payload struct {
		ProductCreate struct {
			Product *struct {
				ID       string `json:"id"`
				Handle   string `json:"handle"`
				Title    string `json:"title"`
				Variants struct {
					Edges []struct {
						Node CreatedVariant `json:"node"`
					} `json:"edges"`
				} `json:"variants"`
			} `json:"product"`
			UserErrors []FieldError `json:"userErrors"`
		} `json:"productCreate"`
	}

	variables := map[string]interface{}{"input": input}
	if len(input.Media) > 0 {
		variables["media"] = input.Media
	}

	if err := c.graphql(ctx, productCreateMutation, variables, &payload); err != nil {
		return nil, err
	}
	if len(payload.ProductCreate.UserErrors) > 0 {
		return nil, &ValidationError{Fields: payload.ProductCreate.UserErrors}
	}
	if payload.ProductCreate.Product == nil {
		return nil, &UpstreamError{Message: "product create returned no product"}
	}

	p := payload.ProductCreate.Product
	created := &CreatedProduct{ID: p.ID, Handle: p.Handle, Title: p.Title}
	for _, edge := range p.Variants.Edges {
		created.Variants = append(created.Variants, edge.Node)
	}
	return created, nil
}

const variantsBulkCreateMutation = `
mutation createVariants($productId: ID!, $variants: [ProductVariantsBulkInput!]!) {
  productVariantsBulkCreate(productId: $productId, variants: $variants, strategy: REMOVE_STANDALONE_VARIANT) {
    productVariants {
      id
      title
      price
      sku
    }
    userErrors {
      field
      message
    }
  }
}`

// CreateVariantsBulk creates destination variants in source order. Per-item
// user errors are returned in the result rather than as an error; a partial
// creation is an accepted degradation.
func (c *AdminClient) CreateVariantsBulk(ctx context.Context, productID string, variants []VariantInput) (*VariantBulkResult, error) {
	var payload struct {
		ProductVariantsBulkCreate struct {
			ProductVariants []CreatedVariant `json:"productVariants"`
			UserErrors      []FieldError     `json:"userErrors"`
		} `json:"productVariantsBulkCreate"`
	}

	err := c.graphql(ctx, variantsBulkCreateMutation, map[string]interface{}{
		"productId": productID,
		"variants":  variants,
	}, &payload)
	if err != nil {
		return nil, err
	}

	return &VariantBulkResult{
		Variants:   payload.ProductVariantsBulkCreate.ProductVariants,
		UserErrors: payload.ProductVariantsBulkCreate.UserErrors,
	}, nil
}

const variantsBulkUpdateMutation = `
mutation updateVariants($productId: ID!, $variants: [ProductVariantsBulkInput!]!) {
  productVariantsBulkUpdate(productId: $productId, variants: $variants) {
    productVariants {
      id
      price
    }
    userErrors {
      field
      message
    }
  }
}`

// UpdateVariantPrices issues one bulk price update covering all the given
// variants. User errors abort the whole call.
func (c *AdminClient) UpdateVariantPrices(ctx context.Context, productID string, updates []VariantPriceUpdate) error {
	var payload struct {
		ProductVariantsBulkUpdate userErrorsPayload `json:"productVariantsBulkUpdate"`
	}

	err := c.graphql(ctx, variantsBulkUpdateMutation, map[string]interface{}{
		"productId": productID,
		"variants":  updates,
	}, &payload)
	if err != nil {
		return err
	}
	if len(payload.ProductVariantsBulkUpdate.UserErrors) > 0 {
		return &ValidationError{Fields: payload.ProductVariantsBulkUpdate.UserErrors}
	}
	return nil
}

const adminProductQuery = `
query getProduct($id: ID!) {
  product(id: $id) {
    id
    handle
    title
    description
    descriptionHtml
    vendor
    productType
    tags
    images(first: 20) {
      edges {
        node {
          id
          url
          altText
        }
      }
    }
    variants(first: 100) {
      edges {
        node {
          id
          title
          price
          compareAtPrice
          sku
          barcode
          inventoryQuantity
          selectedOptions {
            name
            value
          }
        }
      }
    }
    options {
      name
      values
    }
  }
}`

// GetProduct fetches a product through the admin API and normalizes it into
// the same snapshot shape the storefront fetch produces.
func (c *AdminClient) GetProduct(ctx context.Context, productID string) (*models.SourceProduct, error) {
	var payload struct {
		Product *productNode `json:"product"`
	}

	if err := c.graphql(ctx, adminProductQuery, map[string]interface{}{"id": productID}, &payload); err != nil {
		return nil, err
	}
	if payload.Product == nil {
		return nil, ErrNotFound
	}
	return productNodeToSource(payload.Product)
}

// GetCreatedProduct refetches a finalized product to get authoritative
// variant ids and prices after the creation protocol completes.
func (c *AdminClient) GetCreatedProduct(ctx context.Context, productID string) (*CreatedProduct, error) {
	source, err := c.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	created := &CreatedProduct{ID: source.ID, Handle: source.Handle, Title: source.Title}
	for _, v := range source.Variants {
		created.Variants = append(created.Variants, CreatedVariant{
			ID:    v.ID,
			Title: v.Title,
			Price: v.Price.StringFixed(2),
			SKU:   v.SKU,
		})
	}
	return created, nil
}

const publicationsQuery = `
query publications {
  publications(first: 5) {
    edges {
      node {
        id
        name
      }
    }
  }
}`

const publishMutation = `
mutation publish($id: ID!, $input: [PublicationInput!]!) {
  publishablePublish(id: $id, input: $input) {
    userErrors {
      field
      message
    }
  }
}`

// PublishProduct publishes a product to the shop's first sales channel.
// Callers treat failures here as non-fatal; the product already exists.
func (c *AdminClient) PublishProduct(ctx context.Context, productID string) error {
	if c.publicationID == "" {
		var payload struct {
			Publications struct {
				Edges []struct {
					Node struct {
						ID string `json:"id"`
					} `json:"node"`
				} `json:"edges"`
			} `json:"publications"`
		}
		if err := c.graphql(ctx, publicationsQuery, nil, &payload); err != nil {
			return err
		}
		if len(payload.Publications.Edges) == 0 {
			return &UpstreamError{Message: "no sales channel publication available"}
		}
		c.publicationID = payload.Publications.Edges[0].Node.ID
	}

	var payload struct {
		PublishablePublish userErrorsPayload `json:"publishablePublish"`
	}
	err := c.graphql(ctx, publishMutation, map[string]interface{}{
		"id": productID,
		"input": []map[string]interface{}{
			{"publicationId": c.publicationID},
		},
	}, &payload)
	if err != nil {
		return err
	}
	if len(payload.PublishablePublish.UserErrors) > 0 {
		return &ValidationError{Fields: payload.PublishablePublish.UserErrors}
	}
	return nil
}

const collectionAddMutation = `
mutation collectionAddProducts($id: ID!, $productIds: [ID!]!) {
  collectionAddProducts(id: $id, productIds: $productIds) {
    collection {
      id
    }
    userErrors {
      field
      message
    }
  }
}`

// AddToCollection adds a product to a destination collection.
func (c *AdminClient) AddToCollection(ctx context.Context, collectionID, productID string) error {
	var payload struct {
		CollectionAddProducts userErrorsPayload `json:"collectionAddProducts"`
	}

	err := c.graphql(ctx, collectionAddMutation, map[string]interface{}{
		"id":         collectionID,
		"productIds": []string{productID},
	}, &payload)
	if err != nil {
		return err
	}
	if len(payload.CollectionAddProducts.UserErrors) > 0 {
		return &ValidationError{Fields: payload.CollectionAddProducts.UserErrors}
	}
	return nil
}
