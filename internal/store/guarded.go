package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/basket-api/internal/basket"
	"github.com/noah-isme/basket-api/internal/discount"
	"github.com/noah-isme/basket-api/internal/resilience"
)

// Guarded wraps a remote store with retries and a circuit breaker. While the
// breaker is open calls fail fast with basket.ErrUnavailable. Retried writes
// are safe only because SaveBasket puts the full basket state.
type Guarded struct {
	Next    basket.Store
	Breaker *resilience.Breaker
	Policy  resilience.Policy
}

// NewGuarded guards next with a breaker named after driver.
func NewGuarded(driver string, next basket.Store, attempts int, backoff time.Duration) *Guarded {
	return &Guarded{
		Next:    next,
		Breaker: resilience.NewBreaker(resilience.BreakerConfig{Name: driver}),
		Policy:  resilience.Policy{Attempts: attempts, BaseBackoff: backoff, Jitter: 0.2},
	}
}

func isAnswer(err error) bool {
	return errors.Is(err, basket.ErrNotFound) || errors.Is(err, discount.ErrNotFound)
}

func (g *Guarded) call(ctx context.Context, fn func(context.Context) error) error {
	p := g.Policy
	p.Permanent = isAnswer
	err := resilience.Call(ctx, g.Breaker, p, fn)
	if errors.Is(err, resilience.ErrOpenCircuit) {
		return fmt.Errorf("%w: %w", basket.ErrUnavailable, err)
	}
	return err
}

func (g *Guarded) GetBasket(ctx context.Context, id uuid.UUID) (basket.Basket, error) {
	var b basket.Basket
	err := g.call(ctx, func(ctx context.Context) error {
		var err error
		b, err = g.Next.GetBasket(ctx, id)
		return err
	})
	return b, err
}

func (g *Guarded) SaveBasket(ctx context.Context, b basket.Basket) error {
	return g.call(ctx, func(ctx context.Context) error {
		return g.Next.SaveBasket(ctx, b)
	})
}

func (g *Guarded) DeleteBasket(ctx context.Context, id uuid.UUID) error {
	return g.call(ctx, func(ctx context.Context) error {
		return g.Next.DeleteBasket(ctx, id)
	})
}

func (g *Guarded) FindActiveDiscountCode(ctx context.Context, code string) (discount.Code, error) {
	var dc discount.Code
	err := g.call(ctx, func(ctx context.Context) error {
		var err error
		dc, err = g.Next.FindActiveDiscountCode(ctx, code)
		return err
	})
	return dc, err
}

func (g *Guarded) SaveDiscountCode(ctx context.Context, code discount.Code) error {
	return g.call(ctx, func(ctx context.Context) error {
		return g.Next.SaveDiscountCode(ctx, code)
	})
}

// Ping bypasses the breaker so readiness reflects the real dependency.
func (g *Guarded) Ping(ctx context.Context) error {
	return g.Next.Ping(ctx)
}
