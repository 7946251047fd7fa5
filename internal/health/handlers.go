package health

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/basket-api/internal/common"
)

// ErrDisabled is returned by probes for optional dependencies that are not configured.
var ErrDisabled = errors.New("disabled")

// Checker probes the dependencies the API needs to serve baskets.
type Checker interface {
	PingStore(ctx context.Context, timeout time.Duration) error
	PingRedis(ctx context.Context, timeout time.Duration) error
}

var draining atomic.Bool

// SetReady flips readiness; the server clears it when shutdown begins.
func SetReady(v bool) {
	draining.Store(!v)
}

// Report is the readiness body.
type Report struct {
	Store  string `json:"store"`
	Redis  string `json:"redis"`
	Server string `json:"server,omitempty"`
}

// Handler serves the liveness and readiness probes.
type Handler struct {
	Checker      Checker
	StoreTimeout time.Duration
	RedisTimeout time.Duration
}

func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready answers 503 while draining, when the store is down, or when a configured redis is down.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.Checker == nil {
		common.JSONError(w, http.StatusServiceUnavailable, common.CodeUnavailable, "dependencies unavailable", nil)
		return
	}
	var storeErr, redisErr error
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		storeErr = h.Checker.PingStore(ctx, orDefault(h.StoreTimeout, 500*time.Millisecond))
		return nil
	})
	g.Go(func() error {
		redisErr = h.Checker.PingRedis(ctx, orDefault(h.RedisTimeout, 300*time.Millisecond))
		return nil
	})
	_ = g.Wait()

	report := Report{Store: probeStatus(storeErr), Redis: probeStatus(redisErr)}
	healthy := storeErr == nil && (redisErr == nil || errors.Is(redisErr, ErrDisabled))
	if draining.Load() {
		report.Server = "shutting down"
		healthy = false
	}
	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	common.JSON(w, status, report)
}

func probeStatus(err error) string {
	if err == nil {
		return "ok"
	}
	return err.Error()
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
