package shopify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kopy/internal/logger"
	"kopy/internal/models"
)

const storefrontProductJSON = `{
	"data": {
		"productByHandle": {
			"id": "gid://shopify/Product/111",
			"handle": "blue-shirt",
			"title": "Blue Shirt",
			"description": "A blue shirt",
			"descriptionHtml": "<p>A blue shirt</p>",
			"vendor": "Acme",
			"productType": "Shirts",
			"tags": ["summer"],
			"images": {"edges": [{"node": {"id": "gid://shopify/ProductImage/1", "url": "https://cdn.example.com/1.jpg", "altText": "front"}}]},
			"variants": {"edges": [
				{"node": {
					"id": "gid://shopify/ProductVariant/201",
					"title": "Small",
					"price": {"amount": "20.00", "currencyCode": "USD"},
					"compareAtPrice": {"amount": "30.00", "currencyCode": "USD"},
					"sku": "SHIRT-S",
					"selectedOptions": [{"name": "Size", "value": "Small"}]
				}},
				{"node": {
					"id": "gid://shopify/ProductVariant/202",
					"title": "Large",
					"price": {"amount": "25.00", "currencyCode": "USD"},
					"compareAtPrice": null,
					"sku": "SHIRT-L",
					"selectedOptions": [{"name": "Size", "value": "Large"}]
				}}
			]},
			"options": [{"name": "Size", "values": ["Small", "Large"]}]
		}
	}
}`

func testFetcher(baseURL string) *Fetcher {
	f := NewFetcher("token", "2024-10", nil, logger.New("error"))
	f.BaseURL = baseURL
	return f
}

func TestFetcherProductByURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/2024-10/graphql.json", r.URL.Path)
		assert.Equal(t, "token", r.Header.Get("X-Shopify-Storefront-Access-Token"))

		var req graphQLRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "blue-shirt", req.Variables["handle"])

		fmt.Fprint(w, storefrontProductJSON)
	}))
	defer server.Close()

	product, err := testFetcher(server.URL).ProductByURL(context.Background(), "https://example.com/products/blue-shirt")
	require.NoError(t, err)

	assert.Equal(t, "gid://shopify/Product/111", product.ID)
	assert.Equal(t, "Blue Shirt", product.Title)
	require.Len(t, product.Variants, 2)

	small := product.Variants[0]
	assert.Equal(t, "20", small.Price.String())
	require.NotNil(t, small.CompareAtPrice)
	assert.Equal(t, "30", small.CompareAtPrice.String())
	require.Len(t, small.Options, 1)
	assert.Equal(t, "Size", small.Options[0].Name)

	assert.Nil(t, product.Variants[1].CompareAtPrice)
	require.Len(t, product.Options, 1)
	assert.Equal(t, []string{"Small", "Large"}, product.Options[0].Values)
}

func TestFetcherProductNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data": {"productByHandle": null}}`)
	}))
	defer server.Close()

	_, err := testFetcher(server.URL).ProductByURL(context.Background(), "https://example.com/products/missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFetcherHTTPNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := testFetcher(server.URL).ProductByURL(context.Background(), "https://example.com/products/missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFetcherUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := testFetcher(server.URL).ProductByURL(context.Background(), "https://example.com/products/blue-shirt")
	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, http.StatusTooManyRequests, upstream.Status)
}

func TestFetcherGraphQLErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"errors": [{"message": "throttled"}]}`)
	}))
	defer server.Close()

	_, err := testFetcher(server.URL).ProductByURL(context.Background(), "https://example.com/products/blue-shirt")
	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Contains(t, upstream.Message, "throttled")
}

func TestFetcherInvalidURL(t *testing.T) {
	_, err := testFetcher("").ProductByURL(context.Background(), "not a url")
	assert.ErrorIs(t, err, ErrInvalidURL)
}

func TestFetcherAdminURLWithoutClient(t *testing.T) {
	_, err := testFetcher("").ProductByURL(context.Background(), "https://admin.shopify.com/store/example/products/123")
	assert.ErrorIs(t, err, ErrInvalidURL)
}

// stubAdmin answers GetProduct only; the embedded interface panics on
// anything else.
type stubAdmin struct {
	AdminAPI
	product *models.SourceProduct
	gotID   string
}

func (s *stubAdmin) GetProduct(ctx context.Context, productID string) (*models.SourceProduct, error) {
	s.gotID = productID
	return s.product, nil
}

func TestFetcherAdminURLResolvesThroughClient(t *testing.T) {
	admin := &stubAdmin{product: &models.SourceProduct{
		ID:    "gid://shopify/Product/123",
		Title: "Desk Lamp",
	}}

	product, err := testFetcher("").WithAdmin(admin).ProductByURL(context.Background(),
		"https://admin.shopify.com/store/example/products/123")

	require.NoError(t, err)
	assert.Equal(t, "gid://shopify/Product/123", admin.gotID)
	assert.Equal(t, "Desk Lamp", product.Title)
}

func TestFetcherWithAdminLeavesOriginalUnbound(t *testing.T) {
	base := testFetcher("")
	base.WithAdmin(&stubAdmin{product: &models.SourceProduct{ID: "gid://shopify/Product/123"}})

	_, err := base.ProductByURL(context.Background(), "https://admin.shopify.com/store/example/products/123")
	assert.ErrorIs(t, err, ErrInvalidURL)
}
