package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/basket-api/internal/basket"
	"github.com/noah-isme/basket-api/internal/discount"
	"github.com/noah-isme/basket-api/internal/resilience"
)

type flakyStore struct {
	*Memory
	failures int
	calls    int
}

func (f *flakyStore) GetBasket(ctx context.Context, id uuid.UUID) (basket.Basket, error) {
	f.calls++
	if f.failures > 0 {
		f.failures--
		return basket.Basket{}, errors.New("connection reset by peer")
	}
	return f.Memory.GetBasket(ctx, id)
}

func TestGuardedStoreContract(t *testing.T) {
	runStoreContract(t, NewGuarded(DriverMemory, NewMemory(), 2, time.Millisecond))
}

func TestGuardedRetriesTransientFailures(t *testing.T) {
	ctx := context.Background()
	flaky := &flakyStore{Memory: NewMemory(), failures: 2}
	b := basket.Basket{ID: uuid.New()}
	require.NoError(t, flaky.SaveBasket(ctx, b))

	g := NewGuarded(DriverPostgres, flaky, 3, time.Millisecond)
	got, err := g.GetBasket(ctx, b.ID)
	require.NoError(t, err)
	require.Equal(t, b.ID, got.ID)
	require.Equal(t, 3, flaky.calls)
}

func TestGuardedDoesNotRetryNotFound(t *testing.T) {
	ctx := context.Background()
	flaky := &flakyStore{Memory: NewMemory()}
	g := NewGuarded(DriverPostgres, flaky, 3, time.Millisecond)

	_, err := g.GetBasket(ctx, uuid.New())
	require.ErrorIs(t, err, basket.ErrNotFound)
	require.Equal(t, 1, flaky.calls)

	_, err = g.FindActiveDiscountCode(ctx, "NOPE")
	require.ErrorIs(t, err, discount.ErrNotFound)
	require.Equal(t, resilience.Closed, g.Breaker.State())
}

func TestGuardedFailsFastWhenOpen(t *testing.T) {
	ctx := context.Background()
	flaky := &flakyStore{Memory: NewMemory(), failures: 100}
	g := &Guarded{
		Next:    flaky,
		Breaker: resilience.NewBreaker(resilience.BreakerConfig{Name: "redis", MinCalls: 2, Cooldown: time.Minute}),
		Policy:  resilience.Policy{Attempts: 1},
	}

	for i := 0; i < 2; i++ {
		_, err := g.GetBasket(ctx, uuid.New())
		require.Error(t, err)
		require.NotErrorIs(t, err, basket.ErrUnavailable)
	}
	calls := flaky.calls

	_, err := g.GetBasket(ctx, uuid.New())
	require.ErrorIs(t, err, basket.ErrUnavailable)
	require.ErrorIs(t, err, resilience.ErrOpenCircuit)
	require.Equal(t, calls, flaky.calls, "open breaker must not reach the store")
	require.NoError(t, g.Ping(ctx))
}
