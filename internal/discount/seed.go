package discount

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Saver persists discount code definitions. Saving an existing code replaces it.
type Saver interface {
	SaveDiscountCode(ctx context.Context, code Code) error
}

// DefaultCodes returns the reference codes every deployment starts with.
func DefaultCodes() []Code {
	return []Code{
		{ID: uuid.MustParse("6f1c1e0a-1d2b-4b8e-9a10-000000000010"), Code: "SAVE10", Percentage: decimal.NewFromInt(10), IsActive: true},
		{ID: uuid.MustParse("6f1c1e0a-1d2b-4b8e-9a10-000000000020"), Code: "SAVE20", Percentage: decimal.NewFromInt(20), IsActive: true},
		{ID: uuid.MustParse("6f1c1e0a-1d2b-4b8e-9a10-000000000030"), Code: "SAVE30", Percentage: decimal.NewFromInt(30), IsActive: true},
	}
}

// Seed validates and stores each code, stopping at the first failure.
func Seed(ctx context.Context, store Saver, codes []Code) error {
	seen := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("seed %q: %w", c.Code, err)
		}
		if _, dup := seen[c.Code]; dup {
			return fmt.Errorf("seed %q: duplicate code: %w", c.Code, ErrInvalidCode)
		}
		seen[c.Code] = struct{}{}
		if c.ID == uuid.Nil {
			c.ID = uuid.New()
		}
		if err := store.SaveDiscountCode(ctx, c); err != nil {
			return fmt.Errorf("seed %q: %w", c.Code, err)
		}
	}
	return nil
}
