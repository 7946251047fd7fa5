package basket

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/basket-api/internal/discount"
	"github.com/noah-isme/basket-api/internal/obs"
)

// ErrNotFound indicates the requested basket could not be located.
var ErrNotFound = errors.New("basket not found")

// ErrUnavailable indicates the record store is refusing calls.
var ErrUnavailable = errors.New("basket store unavailable")

// Store is the record store baskets and discount codes live in.
// GetBasket returns ErrNotFound for unknown ids and FindActiveDiscountCode
// returns discount.ErrNotFound for unknown or inactive codes.
type Store interface {
	GetBasket(ctx context.Context, id uuid.UUID) (Basket, error)
	SaveBasket(ctx context.Context, b Basket) error
	DeleteBasket(ctx context.Context, id uuid.UUID) error
	FindActiveDiscountCode(ctx context.Context, code string) (discount.Code, error)
	SaveDiscountCode(ctx context.Context, code discount.Code) error
	Ping(ctx context.Context) error
}

// Locker serialises work on a key across processes.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Service implements the basket commands and queries on top of a Store.
type Service struct {
	Store   Store
	Locker  Locker
	LockTTL time.Duration
	Now     func() time.Time
	NewID   func() uuid.UUID
}

func (s *Service) ready() error {
	if s == nil || s.Store == nil {
		return errors.New("basket service not configured")
	}
	return nil
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *Service) newID() uuid.UUID {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.New()
}

func (s *Service) lockTTL() time.Duration {
	if s.LockTTL <= 0 {
		return 5 * time.Second
	}
	return s.LockTTL
}

func lockKey(id uuid.UUID) string {
	return "lock:basket:" + id.String()
}

// Create stores a new empty basket.
func (s *Service) Create(ctx context.Context) (Basket, error) {
	if err := s.ready(); err != nil {
		return Basket{}, err
	}
	now := s.now()
	b := Basket{
		ID:                 s.newID(),
		Items:              []Item{},
		DiscountPercentage: decimal.Zero,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.Store.SaveBasket(ctx, b); err != nil {
		observe("create", resultFor(err))
		return Basket{}, fmt.Errorf("save basket: %w", err)
	}
	observe("create", resultOK)
	return b, nil
}

// Get loads a basket or returns ErrNotFound.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Basket, error) {
	if err := s.ready(); err != nil {
		return Basket{}, err
	}
	b, err := s.Store.GetBasket(ctx, id)
	if err != nil {
		observe("get", resultFor(err))
		return Basket{}, err
	}
	observe("get", resultOK)
	return b, nil
}

// AddItem validates the input and adds it to the basket, merging with an
// existing line of the same product, discount flag and percentage.
// It returns the id of the line holding the item.
func (s *Service) AddItem(ctx context.Context, basketID uuid.UUID, in NewItem) (uuid.UUID, error) {
	if err := s.ready(); err != nil {
		return uuid.Nil, err
	}
	if err := in.Validate(); err != nil {
		observe("add_item", resultInvalid)
		return uuid.Nil, err
	}
	var itemID uuid.UUID
	err := s.mutate(ctx, basketID, func(_ context.Context, b *Basket) (bool, error) {
		var err error
		itemID, err = b.AddItem(Item{
			ID:                 s.newID(),
			ProductName:        in.ProductName,
			Price:              in.Price,
			Quantity:           in.Quantity,
			IsDiscounted:       in.IsDiscounted,
			DiscountPercentage: in.DiscountPercentage,
		})
		return err == nil, err
	})
	observe("add_item", resultFor(err))
	if err != nil {
		return uuid.Nil, err
	}
	return itemID, nil
}

// RemoveItem deletes an item. It reports false when the basket or item does not exist.
func (s *Service) RemoveItem(ctx context.Context, basketID, itemID uuid.UUID) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}
	var removed bool
	err := s.mutate(ctx, basketID, func(_ context.Context, b *Basket) (bool, error) {
		removed = b.RemoveItem(itemID)
		return removed, nil
	})
	return s.outcome("remove_item", removed, err)
}

// ApplyDiscountCode applies an active code, matched exactly, replacing any code
// already on the basket. It reports false when the basket or an active code is missing.
func (s *Service) ApplyDiscountCode(ctx context.Context, basketID uuid.UUID, code string) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}
	var applied bool
	err := s.mutate(ctx, basketID, func(ctx context.Context, b *Basket) (bool, error) {
		dc, err := s.Store.FindActiveDiscountCode(ctx, code)
		if err != nil {
			if errors.Is(err, discount.ErrNotFound) {
				return false, nil
			}
			return false, fmt.Errorf("find discount code: %w", err)
		}
		b.ApplyDiscount(dc)
		applied = true
		return true, nil
	})
	if obs.DiscountCodeApplyTotal != nil {
		obs.DiscountCodeApplyTotal.WithLabelValues(applyResult(applied, err)).Inc()
	}
	return s.outcome("apply_discount", applied, err)
}

// ClearDiscountCode removes the discount code from the basket. It reports false when the basket is missing.
func (s *Service) ClearDiscountCode(ctx context.Context, basketID uuid.UUID) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}
	err := s.mutate(ctx, basketID, func(_ context.Context, b *Basket) (bool, error) {
		b.ClearDiscount()
		return true, nil
	})
	return s.outcome("clear_discount", err == nil, err)
}

// Total returns the basket total with or without VAT.
func (s *Service) Total(ctx context.Context, basketID uuid.UUID, includeVat bool) (decimal.Decimal, error) {
	b, err := s.Get(ctx, basketID)
	if err != nil {
		return decimal.Zero, err
	}
	return b.Total(includeVat), nil
}

// mutate loads the basket, applies fn and saves the basket when fn reports a change.
// With a Locker configured the whole read-modify-write runs under a per-basket lock.
func (s *Service) mutate(ctx context.Context, id uuid.UUID, fn func(context.Context, *Basket) (bool, error)) error {
	run := func(ctx context.Context) error {
		b, err := s.Store.GetBasket(ctx, id)
		if err != nil {
			return err
		}
		changed, err := fn(ctx, &b)
		if err != nil || !changed {
			return err
		}
		b.UpdatedAt = s.now()
		if err := s.Store.SaveBasket(ctx, b); err != nil {
			return fmt.Errorf("save basket: %w", err)
		}
		return nil
	}
	if s.Locker == nil {
		return run(ctx)
	}
	return s.Locker.WithLock(ctx, lockKey(id), s.lockTTL(), run)
}

// outcome folds a missing basket into (false, nil) for the boolean commands.
func (s *Service) outcome(op string, ok bool, err error) (bool, error) {
	switch {
	case errors.Is(err, ErrNotFound):
		observe(op, resultNotFound)
		return false, nil
	case err != nil:
		observe(op, resultFor(err))
		return false, err
	case !ok:
		observe(op, resultNotFound)
		return false, nil
	}
	observe(op, resultOK)
	return true, nil
}

const (
	resultOK          = "ok"
	resultNotFound    = "not_found"
	resultInvalid     = "invalid"
	resultUnavailable = "unavailable"
	resultError       = "error"
)

func resultFor(err error) string {
	switch {
	case err == nil:
		return resultOK
	case errors.Is(err, ErrNotFound):
		return resultNotFound
	case errors.Is(err, ErrInvalidArgument):
		return resultInvalid
	case errors.Is(err, ErrUnavailable):
		return resultUnavailable
	default:
		return resultError
	}
}

func applyResult(applied bool, err error) string {
	switch {
	case applied && err == nil:
		return "applied"
	case errors.Is(err, ErrNotFound):
		return "basket_missing"
	case err != nil:
		return "error"
	default:
		return "unknown_code"
	}
}

func observe(op, result string) {
	if obs.BasketOperationsTotal != nil {
		obs.BasketOperationsTotal.WithLabelValues(op, result).Inc()
	}
}
