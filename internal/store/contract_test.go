package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/basket-api/internal/basket"
	"github.com/noah-isme/basket-api/internal/discount"
)

// runStoreContract checks the behaviour every basket.Store backend must share.
func runStoreContract(t *testing.T, s basket.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("missing basket", func(t *testing.T) {
		_, err := s.GetBasket(ctx, uuid.New())
		require.True(t, errors.Is(err, basket.ErrNotFound), "got %v", err)
	})

	t.Run("round trip keeps items in order and decimals exact", func(t *testing.T) {
		now := time.Now().UTC().Truncate(time.Second)
		code := "SAVE10"
		b := basket.Basket{
			ID:                 uuid.New(),
			DiscountCode:       &code,
			DiscountPercentage: decimal.NewFromInt(10),
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		first := basket.Item{ID: uuid.New(), ProductName: "Widget", Price: decimal.RequireFromString("10.333"), Quantity: 3}
		second := basket.Item{ID: uuid.New(), ProductName: "Gadget", Price: decimal.RequireFromString("50"), Quantity: 1, IsDiscounted: true, DiscountPercentage: decimal.RequireFromString("12.5")}
		b.AddItem(first)
		b.AddItem(second)
		require.NoError(t, s.SaveBasket(ctx, b))

		got, err := s.GetBasket(ctx, b.ID)
		require.NoError(t, err)
		require.Equal(t, b.ID, got.ID)
		require.NotNil(t, got.DiscountCode)
		require.Equal(t, "SAVE10", *got.DiscountCode)
		require.True(t, got.DiscountPercentage.Equal(decimal.NewFromInt(10)))
		require.Len(t, got.Items, 2)
		require.Equal(t, first.ID, got.Items[0].ID)
		require.Equal(t, b.ID, got.Items[0].BasketID)
		require.True(t, got.Items[0].Price.Equal(decimal.RequireFromString("10.333")))
		require.Equal(t, 3, got.Items[0].Quantity)
		require.Equal(t, second.ID, got.Items[1].ID)
		require.True(t, got.Items[1].IsDiscounted)
		require.True(t, got.Items[1].DiscountPercentage.Equal(decimal.RequireFromString("12.5")))
		require.Equal(t, "31.00", got.Items[0].Total().StringFixed(2))
	})

	t.Run("save replaces items and clears code", func(t *testing.T) {
		b := basket.Basket{ID: uuid.New(), CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC()}
		itemID, err := b.AddItem(basket.Item{ID: uuid.New(), ProductName: "Mug", Price: decimal.NewFromInt(8), Quantity: 2})
		require.NoError(t, err)
		code := "SAVE20"
		b.ApplyDiscount(discount.Code{Code: code, Percentage: decimal.NewFromInt(20)})
		require.NoError(t, s.SaveBasket(ctx, b))

		require.True(t, b.RemoveItem(itemID))
		b.ClearDiscount()
		require.NoError(t, s.SaveBasket(ctx, b))

		got, err := s.GetBasket(ctx, b.ID)
		require.NoError(t, err)
		require.Empty(t, got.Items)
		require.Nil(t, got.DiscountCode)
		require.True(t, got.DiscountPercentage.IsZero())
	})

	t.Run("delete basket", func(t *testing.T) {
		b := basket.Basket{ID: uuid.New(), CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC()}
		b.AddItem(basket.Item{ID: uuid.New(), ProductName: "Pen", Price: decimal.NewFromInt(1), Quantity: 1})
		require.NoError(t, s.SaveBasket(ctx, b))
		require.NoError(t, s.DeleteBasket(ctx, b.ID))
		_, err := s.GetBasket(ctx, b.ID)
		require.True(t, errors.Is(err, basket.ErrNotFound), "got %v", err)
	})

	t.Run("discount codes", func(t *testing.T) {
		require.NoError(t, discount.Seed(ctx, s, discount.DefaultCodes()))
		require.NoError(t, s.SaveDiscountCode(ctx, discount.Code{ID: uuid.New(), Code: "OLD", Percentage: decimal.NewFromInt(50), IsActive: false}))

		dc, err := s.FindActiveDiscountCode(ctx, "SAVE30")
		require.NoError(t, err)
		require.Equal(t, "SAVE30", dc.Code)
		require.True(t, dc.Percentage.Equal(decimal.NewFromInt(30)))
		require.True(t, dc.IsActive)

		_, err = s.FindActiveDiscountCode(ctx, "save30")
		require.True(t, errors.Is(err, discount.ErrNotFound), "lookup must be case-sensitive, got %v", err)
		_, err = s.FindActiveDiscountCode(ctx, "OLD")
		require.True(t, errors.Is(err, discount.ErrNotFound), "inactive code must not match, got %v", err)
		_, err = s.FindActiveDiscountCode(ctx, "NOPE")
		require.True(t, errors.Is(err, discount.ErrNotFound))

		// seeding twice updates in place
		require.NoError(t, discount.Seed(ctx, s, discount.DefaultCodes()))
		require.NoError(t, s.SaveDiscountCode(ctx, discount.Code{ID: uuid.New(), Code: "OLD", Percentage: decimal.NewFromInt(40), IsActive: true}))
		dc, err = s.FindActiveDiscountCode(ctx, "OLD")
		require.NoError(t, err)
		require.True(t, dc.Percentage.Equal(decimal.NewFromInt(40)))
	})

	t.Run("ping", func(t *testing.T) {
		require.NoError(t, s.Ping(ctx))
	})
}
