package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"kopy/internal/logger"
	"kopy/internal/models"
)

const storefrontProductQuery = `
query getProduct($handle: String!) {
  productByHandle(handle: $handle) {
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
          price {
            amount
            currencyCode
          }
          compareAtPrice {
            amount
            currencyCode
          }
          sku
          barcode
          weight
          weightUnit
          requiresShipping
          taxable
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

// Fetcher resolves product URLs into source product snapshots. Storefront
// URLs go through the shop's public storefront GraphQL endpoint; admin URLs
// go through the destination admin client when one was supplied.
type Fetcher struct {
	httpClient      *http.Client
	storefrontToken string
	apiVersion      string
	admin           AdminAPI
	logger          *logger.Logger

	// BaseURL overrides the https://{shop} origin; tests point it at a
	// local server.
	BaseURL string
}

func NewFetcher(storefrontToken, apiVersion string, admin AdminAPI, logger *logger.Logger) *Fetcher {
	if apiVersion == "" {
		apiVersion = "2024-10"
	}
	return &Fetcher{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		storefrontToken: storefrontToken,
		apiVersion:      apiVersion,
		admin:           admin,
		logger:          logger,
	}
}

// WithAdmin returns a copy of the fetcher that resolves admin-style URLs
// through the given client. Used to bind a request-scoped admin client
// without rebuilding the fetcher.
func (f *Fetcher) WithAdmin(admin AdminAPI) *Fetcher {
	clone := *f
	clone.admin = admin
	return &clone
}

// ProductByURL normalizes both accepted URL patterns into a single
// SourceProduct shape regardless of which transport answered.
func (f *Fetcher) ProductByURL(ctx context.Context, rawURL string) (*models.SourceProduct, error) {
	parsed, err := ParseProductURL(rawURL)
	if err != nil {
		return nil, err
	}

	if parsed.IsAdmin {
		if f.admin == nil {
			return nil, fmt.Errorf("%w: admin URL requires an authenticated client", ErrInvalidURL)
		}
		return f.admin.GetProduct(ctx, GID("Product", parsed.ProductID))
	}

	return f.fetchStorefront(ctx, parsed.Shop, parsed.Handle)
}

func (f *Fetcher) fetchStorefront(ctx context.Context, shop, handle string) (*models.SourceProduct, error) {
	origin := "https://" + shop
	if f.BaseURL != "" {
		origin = f.BaseURL
	}
	url := fmt.Sprintf("%s/api/%s/graphql.json", origin, f.apiVersion)

	body, err := json.Marshal(graphQLRequest{
		Query:     storefrontProductQuery,
		Variables: map[string]interface{}{"handle": handle},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if f.storefrontToken != "" {
		req.Header.Set("X-Shopify-Storefront-Access-Token", f.storefrontToken)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, &UpstreamError{Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &UpstreamError{Status: resp.StatusCode, Message: resp.Status}
	}

	var envelope struct {
		Data struct {
			ProductByHandle *productNode `json:"productByHandle"`
		} `json:"data"`
		Errors []graphQLError `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, &UpstreamError{Message: fmt.Sprintf("failed to decode response: %v", err)}
	}
	if len(envelope.Errors) > 0 {
		return nil, &UpstreamError{Message: envelope.Errors[0].Message}
	}
	if envelope.Data.ProductByHandle == nil {
		return nil, ErrNotFound
	}

	return productNodeToSource(envelope.Data.ProductByHandle)
}
