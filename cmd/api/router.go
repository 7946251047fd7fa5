package main

import (
	"crypto/subtle"
	"net/http"
	"net/http/pprof"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/noah-isme/basket-api/internal/basket"
	"github.com/noah-isme/basket-api/internal/common"
	"github.com/noah-isme/basket-api/internal/config"
	"github.com/noah-isme/basket-api/internal/health"
	"github.com/noah-isme/basket-api/internal/obs"
	"github.com/noah-isme/basket-api/internal/ratelimit"
	"github.com/noah-isme/basket-api/internal/security"
)

const basketBasePath = "/api/basket"

func newRouter(cfg *config.Config, app *application, logger zerolog.Logger, tracing bool) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer, obs.RoutePatternMiddleware)
	if tracing {
		r.Use(obs.TracingMiddleware)
	}
	if cfg.Obs.MetricsEnabled {
		buckets := obs.ParseBucketsCSV(cfg.Obs.LatencyBuckets)
		r.Use(obs.HTTPObs{Metrics: obs.NewHTTPMetrics(cfg.Obs.MetricsNamespace, buckets, nil)}.Middleware)
		r.Handle("/metrics", promhttp.Handler())
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins(cfg.CORSAllowedOrigins),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", common.IdempotencyHeader},
		ExposedHeaders: []string{"Location", "Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		MaxAge:         300,
	}))
	r.Use(security.Headers{
		Enable:     cfg.SecurityHeadersEnabled,
		EnableHSTS: cfg.AppEnv == "production",
		HSTSMaxAge: cfg.HSTSMaxAge,
		NoStore:    true,
	}.Middleware)

	if cfg.Obs.PprofEnabled {
		r.Handle("/debug/pprof/*", basicAuth(pprofMux(), cfg.Obs.PprofUser, cfg.Obs.PprofPass))
	}

	probes := health.Handler{
		Checker:      readiness{app: app},
		StoreTimeout: cfg.ReadyStoreTimeout,
		RedisTimeout: cfg.ReadyRedisTimeout,
	}
	r.Get("/health/live", probes.Live)
	r.Get("/health/ready", probes.Ready)

	limiter := ratelimit.Guard{
		Limiter: ratelimit.Limiter{
			Client: app.redis,
			Prefix: cfg.RedisKeyPrefix + "ratelimit:",
			Window: cfg.RateLimitWindow,
			Max:    cfg.RateLimitMax,
		},
		Key: ratelimit.ByClientIP,
		OnError: func(err error) {
			logger.Warn().Err(err).Msg("rate limiter unavailable")
		},
	}
	idem := common.Idem{R: app.redis, TTL: cfg.IdempotencyTTL, Prefix: cfg.RedisKeyPrefix + "idem:"}
	baskets := &basket.Handler{Svc: app.service, Logger: logger, BasePath: basketBasePath}

	r.Route("/api", func(api chi.Router) {
		api.Use(limiter.Middleware, security.BodyLimit{Max: cfg.BodyLimitBytes}.Middleware)
		api.Mount("/basket", baskets.Routes(idem.Middleware))
	})
	return r
}

func corsOrigins(configured []string) []string {
	if len(configured) == 0 {
		return []string{"*"}
	}
	return configured
}

func pprofMux() http.Handler {
	const prefix = "/debug/pprof/"
	mux := http.NewServeMux()
	mux.HandleFunc(prefix, pprof.Index)
	mux.HandleFunc(prefix+"cmdline", pprof.Cmdline)
	mux.HandleFunc(prefix+"profile", pprof.Profile)
	mux.HandleFunc(prefix+"symbol", pprof.Symbol)
	mux.HandleFunc(prefix+"trace", pprof.Trace)
	return mux
}

// basicAuth guards next when user is set; an empty user leaves it open.
func basicAuth(next http.Handler, user, pass string) http.Handler {
	if user == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", `Basic realm="pprof"`)
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
