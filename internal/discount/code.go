package discount

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MaxCodeLength bounds the length of a discount code.
const MaxCodeLength = 50

var (
	// ErrNotFound is returned when no active code matches the lookup.
	ErrNotFound = errors.New("discount code not found")
	// ErrInvalidCode indicates the code definition violates its constraints.
	ErrInvalidCode = errors.New("invalid discount code")
)

var (
	minPercentage = decimal.Zero
	maxPercentage = decimal.NewFromInt(100)
)

// Code is a basket-wide percentage discount that clients apply by name.
type Code struct {
	ID         uuid.UUID
	Code       string
	Percentage decimal.Decimal
	IsActive   bool
}

// Validate checks the code name and percentage range.
func (c Code) Validate() error {
	name := strings.TrimSpace(c.Code)
	if name == "" {
		return fmt.Errorf("code is required: %w", ErrInvalidCode)
	}
	if utf8.RuneCountInString(c.Code) > MaxCodeLength {
		return fmt.Errorf("code exceeds %d characters: %w", MaxCodeLength, ErrInvalidCode)
	}
	if !ValidPercentage(c.Percentage) {
		return fmt.Errorf("percentage must be between 0 and 100: %w", ErrInvalidCode)
	}
	return nil
}

// ValidPercentage reports whether pct lies in the inclusive range 0..100.
func ValidPercentage(pct decimal.Decimal) bool {
	return pct.GreaterThanOrEqual(minPercentage) && pct.LessThanOrEqual(maxPercentage)
}
