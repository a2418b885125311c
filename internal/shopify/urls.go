package shopify

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	productURLRe    = regexp.MustCompile(`^https?://([a-zA-Z0-9-]+(?:\.[a-zA-Z0-9-]+)*\.[a-zA-Z]{2,})/products/([a-zA-Z0-9_-]+)`)
	adminURLRe      = regexp.MustCompile(`^https?://admin\.shopify\.com/store/([a-zA-Z0-9-]+)/products/(\d+)`)
	collectionURLRe = regexp.MustCompile(`^https?://([a-zA-Z0-9-]+(?:\.[a-zA-Z0-9-]+)*\.[a-zA-Z]{2,})/collections/([a-zA-Z0-9_-]+)`)
	shopDomainRe    = regexp.MustCompile(`^[a-zA-Z0-9-]+(?:\.[a-zA-Z0-9-]+)*\.[a-zA-Z]{2,}$`)
)

// ParsedProductURL holds what was extracted from a product URL. Admin URLs
// carry a numeric product id; storefront URLs carry a handle.
type ParsedProductURL struct {
	Shop      string
	Handle    string
	ProductID string
	IsAdmin   bool
}

// normalizeRawURL makes parsing tolerant of missing schemes, www prefixes
// and stray whitespace.
func normalizeRawURL(raw string) string {
	clean := strings.TrimSpace(raw)
	if !strings.HasPrefix(clean, "http://") && !strings.HasPrefix(clean, "https://") {
		clean = "https://" + clean
	}
	// Keep the admin host intact; only storefront hosts drop www.
	clean = strings.Replace(clean, "://www.", "://", 1)
	return clean
}

// ParseProductURL accepts a public storefront product URL or an admin-style
// URL and extracts the shop plus handle or numeric id. Anything without a
// dot-qualified host is rejected.
func ParseProductURL(raw string) (*ParsedProductURL, error) {
	clean := normalizeRawURL(raw)

	if m := adminURLRe.FindStringSubmatch(clean); m != nil {
		return &ParsedProductURL{
			Shop:      m[1] + ".myshopify.com",
			ProductID: m[2],
			IsAdmin:   true,
		}, nil
	}

	if m := productURLRe.FindStringSubmatch(clean); m != nil {
		return &ParsedProductURL{
			Shop:   strings.ToLower(m[1]),
			Handle: m[2],
		}, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrInvalidURL, raw)
}

// ParseCollectionURL extracts the shop domain and collection handle from a
// storefront collection URL.
func ParseCollectionURL(raw string) (shop, handle string, err error) {
	clean := normalizeRawURL(raw)

	m := collectionURLRe.FindStringSubmatch(clean)
	if m == nil {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}
	return strings.ToLower(m[1]), m[2], nil
}

// NormalizeShopDomain reduces a shop URL or bare domain to its host,
// rejecting anything without a dot-qualified host.
func NormalizeShopDomain(raw string) (string, error) {
	clean := strings.ToLower(strings.TrimSpace(raw))
	clean = strings.TrimPrefix(clean, "https://")
	clean = strings.TrimPrefix(clean, "http://")
	clean = strings.TrimPrefix(clean, "www.")
	if i := strings.IndexByte(clean, '/'); i >= 0 {
		clean = clean[:i]
	}

	if !shopDomainRe.MatchString(clean) {
		return "", fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}
	return clean, nil
}

// ExtractIDFromGID returns the trailing numeric id of a Shopify GID such as
// gid://shopify/Product/123.
func ExtractIDFromGID(gid string) string {
	parts := strings.Split(gid, "/")
	return parts[len(parts)-1]
}

// GID builds a Shopify GID from a resource type and numeric id.
func GID(resource, id string) string {
	if strings.HasPrefix(id, "gid://") {
		return id
	}
	return fmt.Sprintf("gid://shopify/%s/%s", resource, id)
}
