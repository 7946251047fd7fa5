package ratelimit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestGuardRejectsOverLimit(t *testing.T) {
	guard := Guard{
		Limiter: Limiter{Client: newTestClient(t), Window: time.Minute, Max: 1},
		Key:     func(*http.Request) string { return "static" },
	}
	h := guard.Middleware(okHandler())

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/basket", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "1", rr.Header().Get("X-RateLimit-Limit"))
	require.Equal(t, "0", rr.Header().Get("X-RateLimit-Remaining"))

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/basket", nil))
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
	require.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	require.NotEmpty(t, rr.Header().Get("Retry-After"))

	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "RATE_LIMITED", body.Error.Code)
}

func TestGuardFailsOpen(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	t.Cleanup(func() { _ = client.Close() })

	var reported error
	guard := Guard{
		Limiter: Limiter{Client: client, Window: time.Second, Max: 1},
		Key:     func(*http.Request) string { return "err" },
		OnError: func(err error) { reported = err },
	}
	rr := httptest.NewRecorder()
	guard.Middleware(okHandler()).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/basket/x", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Error(t, reported)
}

func TestGuardWithoutKeyPassesThrough(t *testing.T) {
	rr := httptest.NewRecorder()
	Guard{}.Middleware(okHandler()).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Empty(t, rr.Header().Get("X-RateLimit-Limit"))
}

func TestByClientIPSeparatesReadsAndWrites(t *testing.T) {
	get := httptest.NewRequest(http.MethodGet, "/api/basket/x", nil)
	get.RemoteAddr = "192.0.2.10:4000"
	post := httptest.NewRequest(http.MethodPost, "/api/basket", nil)
	post.RemoteAddr = "192.0.2.10:4000"

	require.Equal(t, "read:192.0.2.10", ByClientIP(get))
	require.Equal(t, "write:192.0.2.10", ByClientIP(post))
}
