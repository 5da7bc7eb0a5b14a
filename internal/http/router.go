// Package httpapi wires the HTTP transport (Gin) to the application
// services, middleware, and route handlers. It centralizes cross-cutting
// concerns such as tracing, correlation IDs, logging with redaction, panic
// recovery, metrics, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/paresiga/go-traffic-backend/internal/bot"
	"github.com/paresiga/go-traffic-backend/internal/config"
	"github.com/paresiga/go-traffic-backend/internal/domain"
	"github.com/paresiga/go-traffic-backend/internal/gateway"
	"github.com/paresiga/go-traffic-backend/internal/http/handlers"
	"github.com/paresiga/go-traffic-backend/internal/http/middleware"
	"github.com/paresiga/go-traffic-backend/internal/repo"
	"github.com/paresiga/go-traffic-backend/internal/retry"
	"github.com/paresiga/go-traffic-backend/internal/services"
	"github.com/paresiga/go-traffic-backend/internal/store"
	"github.com/paresiga/go-traffic-backend/internal/weather"
)

// closureLogShim adapts the repository free functions to the interfaces the
// services expect. This keeps services decoupled from the concrete repo
// package while reusing existing functions.
type closureLogShim struct{ db *gorm.DB }

// AppendClosure proxies repo.AppendClosure.
func (s closureLogShim) AppendClosure(ctx context.Context, endpoint domain.Endpoint, duration time.Duration, recordedAt time.Time) error {
	_, err := repo.AppendClosure(ctx, s.db, endpoint, duration, recordedAt)
	return err
}

// ListRecentClosures proxies repo.ListRecentClosures.
func (s closureLogShim) ListRecentClosures(ctx context.Context, endpoint domain.Endpoint, limit int) ([]domain.ClosureRecord, error) {
	return repo.ListRecentClosures(ctx, s.db, endpoint, limit)
}

// ListClosuresBetween proxies repo.ListClosuresBetween.
func (s closureLogShim) ListClosuresBetween(ctx context.Context, from, to time.Time) ([]domain.ClosureRecord, error) {
	return repo.ListClosuresBetween(ctx, s.db, from, to)
}

// weatherLogShim adapts the weather history free functions to
// services.WeatherLog.
type weatherLogShim struct{ db *gorm.DB }

// AppendWeather proxies repo.AppendWeather.
func (s weatherLogShim) AppendWeather(ctx context.Context, snap domain.WeatherSnapshot) error {
	_, err := repo.AppendWeather(ctx, s.db, snap)
	return err
}

// LatestWeather proxies repo.LatestWeather.
func (s weatherLogShim) LatestWeather(ctx context.Context) (*domain.WeatherRecord, error) {
	return repo.LatestWeather(ctx, s.db)
}

// RegisterRoutes attaches all middleware and endpoints to the given Gin
// engine and wires the service graph. It returns the bot router so the
// caller can drive the periodic weather push.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Logger: structured logs with JID redaction
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Gzip
//  7. Metrics
//  8. Rate limiter (per IP)
func RegisterRoutes(r *gin.Engine, db *gorm.DB, st *store.Store, loc *time.Location, cfg config.Config) *bot.Router {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.Logger())

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (256 KiB; webhook payloads are small)
	r.Use(limitBody(256 << 10))

	// 6) Compressed responses
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	// 7) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 8) Token-bucket rate limiter per IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByIP())
	r.Use(rl.Handler())

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "online"}) })
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Dependency injection: services ← store/repo/upstreams
	notifier := &gateway.Client{
		ServerURL: cfg.Gateway.ServerURL,
		Instance:  cfg.Gateway.Instance,
		APIKey:    cfg.Gateway.APIKey,
		Policy:    retry.DefaultPolicy(),
	}
	statusSvc := &services.StatusService{
		Store:    st,
		Closures: closureLogShim{db: db},
		Loc:      loc,
	}
	confirmSvc := &services.ConfirmationService{Store: st, Status: statusSvc}
	statsSvc := &services.StatsService{Repo: closureLogShim{db: db}, Loc: loc}
	weatherSvc := &services.WeatherService{
		Client: &weather.Client{
			APIKey: cfg.Weather.APIKey,
			CityID: cfg.Weather.CityID,
		},
		Store:     st,
		History:   weatherLogShim{db: db},
		Policy:    retry.DefaultPolicy(),
		HotAbove:  &cfg.Weather.HotAbove,
		ColdBelow: &cfg.Weather.ColdBelow,
	}

	botRouter := &bot.Router{
		Status:      statusSvc,
		Confirm:     confirmSvc,
		Stats:       statsSvc,
		Weather:     weatherSvc,
		Store:       st,
		Notifier:    notifier,
		GroupTarget: cfg.GroupID,
	}

	wh := &handlers.WebhookHandler{
		Router:   botRouter,
		Notifier: notifier,
		Store:    st,
		GroupID:  cfg.GroupID,
	}
	r.POST("/webhook", wh.Handle)

	return botRouter
}

// limitBody caps the request body size for all routes.
func limitBody(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request != nil && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		}
		c.Next()
	}
}
