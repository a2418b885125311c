package shopify

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidURL means the input matched neither the storefront nor the
	// admin product URL pattern.
	ErrInvalidURL = errors.New("not a valid Shopify product URL")

	// ErrNotFound means the remote shop, collection, or product does not
	// resolve.
	ErrNotFound = errors.New("not found")

	// ErrEmptyResult means a resolved collection contains zero products.
	// Whole-catalog listings return an empty success list instead.
	ErrEmptyResult = errors.New("collection contains no products")
)

// UpstreamError is any other non-2xx or malformed-payload response from a
// remote catalog. The remote message is carried verbatim for diagnostics.
type UpstreamError struct {
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("upstream error: HTTP %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("upstream error: %s", e.Message)
}

// FieldError is one field-level user error reported by the destination
// catalog's mutation API. Field is the path to the offending input field.
type FieldError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
}

func (e FieldError) String() string {
	if len(e.Field) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", strings.Join(e.Field, "."), e.Message)
}

// ValidationError carries the destination API's field-level user errors.
// These are user-correctable and surfaced verbatim, never retried.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.String()
	}
	return "destination validation failed: " + strings.Join(msgs, ", ")
}
