package basket

import (
	"errors"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/basket-api/internal/discount"
)

// MaxProductNameLength bounds product names.
const MaxProductNameLength = 200

// MaxQuantity bounds a line's quantity, including after merges. It matches the
// 32-bit quantity column.
const MaxQuantity = math.MaxInt32

// ErrInvalidArgument is returned for input that fails validation.
var ErrInvalidArgument = errors.New("invalid argument")

// ValidationError describes which field failed validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// Unwrap lets callers match ErrInvalidArgument with errors.Is.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidArgument
}

// ValidatePrice reports whether price is strictly positive.
func ValidatePrice(price decimal.Decimal) bool {
	return price.IsPositive()
}

// ValidateQuantity reports whether quantity is strictly positive.
func ValidateQuantity(quantity int) bool {
	return quantity > 0
}

func quantityTooLarge() error {
	return &ValidationError{Field: "quantity", Reason: "Quantity must not exceed 2147483647"}
}

// ValidateDiscountPercentage reports whether pct lies in 0..100 inclusive.
func ValidateDiscountPercentage(pct decimal.Decimal) bool {
	return discount.ValidPercentage(pct)
}

// ValidateProductName requires a non-blank name of at most MaxProductNameLength characters.
func ValidateProductName(name string) bool {
	if strings.TrimSpace(name) == "" {
		return false
	}
	return utf8.RuneCountInString(name) <= MaxProductNameLength
}

// NewItem is the input for adding an item to a basket.
type NewItem struct {
	ProductName        string
	Price              decimal.Decimal
	Quantity           int
	IsDiscounted       bool
	DiscountPercentage decimal.Decimal
}

// Validate runs the field checks in a fixed order and returns the first failure.
func (n NewItem) Validate() error {
	switch {
	case !ValidateProductName(n.ProductName):
		return &ValidationError{Field: "productName", Reason: "Invalid product name"}
	case !ValidatePrice(n.Price):
		return &ValidationError{Field: "price", Reason: "Price must be greater than zero"}
	case !ValidateQuantity(n.Quantity):
		return &ValidationError{Field: "quantity", Reason: "Quantity must be greater than zero"}
	case n.Quantity > MaxQuantity:
		return quantityTooLarge()
	case !ValidateDiscountPercentage(n.DiscountPercentage):
		return &ValidationError{Field: "discountPercentage", Reason: "Discount percentage must be between 0 and 100"}
	}
	return nil
}
