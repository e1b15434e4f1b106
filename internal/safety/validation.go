package safety

import (
	"fmt"
	"math"
	"time"
)

// ValidationResult represents the result of a validation check
type ValidationResult struct {
	Valid   bool
	Message string
	Code    string
}

func invalid(code, format string, args ...interface{}) ValidationResult {
	return ValidationResult{Valid: false, Message: fmt.Sprintf(format, args...), Code: code}
}

// Validator provides sanity checks for untrusted numeric inputs
type Validator struct {
	MaxPrice    float64
	MinPrice    float64
	MaxQuantity float64
	MaxSkew     time.Duration // tolerated clock skew for quotes stamped in the future
}

// NewValidator creates a validator with default bounds
func NewValidator() *Validator {
	return &Validator{
		MaxPrice:    1e10, // $10 billion per unit is a data error
		MinPrice:    1e-8, // below one satoshi
		MaxQuantity: 1e12,
		MaxSkew:     5 * time.Second,
	}
}

// ValidatePrice validates a quoted price
func (v *Validator) ValidatePrice(price float64, symbol string) ValidationResult {
	switch {
	case math.IsNaN(price):
		return invalid("INVALID_PRICE_NAN", "invalid price for %s: price is NaN", symbol)
	case math.IsInf(price, 0):
		return invalid("INVALID_PRICE_INF", "invalid price for %s: price is infinite", symbol)
	case price <= 0:
		return invalid("INVALID_PRICE_NEGATIVE", "invalid price %.8f for %s: price must be positive", price, symbol)
	case price > v.MaxPrice:
		return invalid("PRICE_OUT_OF_BOUNDS", "suspicious price %.8f for %s: exceeds reasonable bounds", price, symbol)
	case price < v.MinPrice:
		return invalid("PRICE_TOO_SMALL", "suspicious price %.8f for %s: below reasonable bounds", price, symbol)
	}
	return ValidationResult{Valid: true}
}

// ValidateQuantity validates a position quantity
func (v *Validator) ValidateQuantity(quantity float64, symbol string) ValidationResult {
	switch {
	case math.IsNaN(quantity):
		return invalid("INVALID_QUANTITY_NAN", "invalid quantity for %s: quantity is NaN", symbol)
	case math.IsInf(quantity, 0):
		return invalid("INVALID_QUANTITY_INF", "invalid quantity for %s: quantity is infinite", symbol)
	case quantity <= 0:
		return invalid("INVALID_QUANTITY_NEGATIVE", "invalid quantity %.8f for %s: quantity must be positive", quantity, symbol)
	case quantity > v.MaxQuantity:
		return invalid("QUANTITY_OUT_OF_BOUNDS", "suspicious quantity %.8f for %s: exceeds reasonable bounds", quantity, symbol)
	}
	return ValidationResult{Valid: true}
}

// ValidateTimestamp rejects zero timestamps and ones too far in the future
func (v *Validator) ValidateTimestamp(ts time.Time, now time.Time, context string) ValidationResult {
	if ts.IsZero() {
		return invalid("INVALID_TIMESTAMP_ZERO", "invalid timestamp for %s: zero value", context)
	}
	if ts.Sub(now) > v.MaxSkew {
		return invalid("TIMESTAMP_IN_FUTURE", "invalid timestamp for %s: %s is ahead of now", context, ts.Sub(now))
	}
	return ValidationResult{Valid: true}
}

// ValidatePercentageRange checks that a fraction lies within [min, max]
func (v *Validator) ValidatePercentageRange(pct, min, max float64, context string) ValidationResult {
	if math.IsNaN(pct) || pct < min || pct > max {
		return invalid("PERCENTAGE_OUT_OF_RANGE", "%s must be within [%g, %g], got %g", context, min, max, pct)
	}
	return ValidationResult{Valid: true}
}
