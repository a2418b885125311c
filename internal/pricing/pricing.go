// Package pricing implements the source-to-destination price transform.
// The same transform runs at import time and at every sync; drift detection
// depends on that identity, so all arithmetic stays on decimals.
package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

type Mode string

const (
	ModeMarkup     Mode = "markup"
	ModeMultiplier Mode = "multiplier"
)

// Validation bounds, matching the settings form.
var (
	MinMarkupAmount = decimal.NewFromInt(-1000)
	MaxMarkupAmount = decimal.NewFromInt(10000)
	MinMultiplier   = decimal.RequireFromString("0.1")
	MaxMultiplier   = decimal.NewFromInt(10)
)

var ErrInvalidConfig = errors.New("invalid pricing config")

// Config selects the pricing rule. Exactly one of MarkupAmount or Multiplier
// is meaningful depending on Mode; the other is ignored.
type Config struct {
	Mode         Mode            `json:"mode"`
	MarkupAmount decimal.Decimal `json:"markup_amount"`
	Multiplier   decimal.Decimal `json:"multiplier"`
}

// Validate checks the mode and the bounds of the active field.
func (c Config) Validate() error {
	switch c.Mode {
	case ModeMarkup:
		if c.MarkupAmount.LessThan(MinMarkupAmount) || c.MarkupAmount.GreaterThan(MaxMarkupAmount) {
			return fmt.Errorf("%w: markup amount must be between %s and %s",
				ErrInvalidConfig, MinMarkupAmount, MaxMarkupAmount)
		}
	case ModeMultiplier:
		if c.Multiplier.LessThanOrEqual(decimal.Zero) {
			return fmt.Errorf("%w: multiplier must be greater than 0", ErrInvalidConfig)
		}
		if c.Multiplier.LessThan(MinMultiplier) || c.Multiplier.GreaterThan(MaxMultiplier) {
			return fmt.Errorf("%w: multiplier must be between %s and %s",
				ErrInvalidConfig, MinMultiplier, MaxMultiplier)
		}
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidConfig, c.Mode)
	}
	return nil
}

// ComputeDestinationPrice maps a source price to a destination price. The
// result is floored at zero; a negative markup can discount a price but
// never produce a negative one.
func ComputeDestinationPrice(sourcePrice decimal.Decimal, cfg Config) (decimal.Decimal, error) {
	switch cfg.Mode {
	case ModeMarkup:
		result := sourcePrice.Add(cfg.MarkupAmount)
		if result.IsNegative() {
			return decimal.Zero, nil
		}
		return result, nil
	case ModeMultiplier:
		if cfg.Multiplier.LessThanOrEqual(decimal.Zero) {
			return decimal.Zero, fmt.Errorf("%w: multiplier must be greater than 0", ErrInvalidConfig)
		}
		result := sourcePrice.Mul(cfg.Multiplier)
		if result.IsNegative() {
			return decimal.Zero, nil
		}
		return result, nil
	default:
		return decimal.Zero, fmt.Errorf("%w: unknown mode %q", ErrInvalidConfig, cfg.Mode)
	}
}
