package shopify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"kopy/internal/logger"
	"kopy/internal/models"
)

// listingPageSize is the remote endpoint's maximum page size.
const listingPageSize = 250

// ListingClient pages a shop's public product listing endpoints. Pages are
// concatenated into one ordered list with no cap on total size.
type ListingClient struct {
	httpClient *http.Client
	logger     *logger.Logger

	// PageDelay is the pause between pages, a self-imposed rate limit
	// against the remote shop. Tests set it to zero.
	PageDelay time.Duration

	// BaseURL overrides the https://{shop} origin; tests point it at a
	// local server.
	BaseURL string
}

func NewListingClient(logger *logger.Logger) *ListingClient {
	return &ListingClient{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:    logger,
		PageDelay: 500 * time.Millisecond,
	}
}

// ShopProducts fetches a whole-catalog listing. An empty catalog is a
// successful empty list.
func (c *ListingClient) ShopProducts(ctx context.Context, shopDomain string) ([]models.ProductSummary, error) {
	products, err := c.fetchAllPages(ctx, shopDomain, "/products.json")
	if err != nil {
		return nil, err
	}
	c.logger.Info("[Listing] fetched %d products from %s", len(products), shopDomain)
	return products, nil
}

// CollectionProducts fetches a collection listing. Unlike the whole-catalog
// listing, a resolved-but-empty collection is an ErrEmptyResult failure.
func (c *ListingClient) CollectionProducts(ctx context.Context, shopDomain, collectionHandle string) ([]models.ProductSummary, error) {
	path := fmt.Sprintf("/collections/%s/products.json", collectionHandle)
	products, err := c.fetchAllPages(ctx, shopDomain, path)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, ErrEmptyResult
	}
	c.logger.Info("[Listing] fetched %d products from %s/%s", len(products), shopDomain, collectionHandle)
	return products, nil
}

type listingProduct struct {
	ID          int64  `json:"id"`
	Handle      string `json:"handle"`
	Title       string `json:"title"`
	Vendor      string `json:"vendor"`
	ProductType string `json:"product_type"`
	Variants    []struct {
		Price string `json:"price"`
	} `json:"variants"`
	Images []struct {
		Src string `json:"src"`
	} `json:"images"`
}

func (c *ListingClient) fetchAllPages(ctx context.Context, shopDomain, path string) ([]models.ProductSummary, error) {
	origin := "https://" + shopDomain
	if c.BaseURL != "" {
		origin = c.BaseURL
	}

	all := []models.ProductSummary{}
	for page := 1; ; page++ {
		url := fmt.Sprintf("%s%s?limit=%d&page=%d", origin, path, listingPageSize, page)

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "Kopy Import & Copy Products App")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, &UpstreamError{Message: err.Error()}
		}

		if resp.StatusCode == http.StatusNotFound {
			resp.Body.Close()
			return nil, ErrNotFound
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, &UpstreamError{Status: resp.StatusCode, Message: resp.Status}
		}

		var data struct {
			Products []listingProduct `json:"products"`
		}
		err = json.NewDecoder(resp.Body).Decode(&data)
		resp.Body.Close()
		if err != nil {
			return nil, &UpstreamError{Message: fmt.Sprintf("failed to decode response: %v", err)}
		}

		c.logger.Debug("[Listing] page %d: %d products from %s%s", page, len(data.Products), shopDomain, path)

		for _, p := range data.Products {
			summary := models.ProductSummary{
				ID:            strconv.FormatInt(p.ID, 10),
				Handle:        p.Handle,
				Title:         p.Title,
				Vendor:        p.Vendor,
				ProductType:   p.ProductType,
				Price:         "0",
				VariantsCount: len(p.Variants),
			}
			if len(p.Variants) > 0 {
				summary.Price = p.Variants[0].Price
			}
			if len(p.Images) > 0 {
				summary.Image = p.Images[0].Src
			}
			all = append(all, summary)
		}

		// A short page is the last page.
		if len(data.Products) < listingPageSize {
			break
		}

		if c.PageDelay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.PageDelay):
			}
		}
	}

	return all, nil
}
