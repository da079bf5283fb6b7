// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging, panic recovery, metrics, CORS,
// security headers, and rate limiting, and mounts the realtime websocket
// endpoint next to the versioned REST API.
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

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/qsrdesk/go-support-backend/internal/ai"
	"github.com/qsrdesk/go-support-backend/internal/config"
	"github.com/qsrdesk/go-support-backend/internal/http/handlers"
	"github.com/qsrdesk/go-support-backend/internal/http/middleware"
	"github.com/qsrdesk/go-support-backend/internal/repo"
	"github.com/qsrdesk/go-support-backend/internal/services"
	"github.com/qsrdesk/go-support-backend/internal/suggest"
	"github.com/qsrdesk/go-support-backend/internal/ws"
)

// searchShim adapts the repository free functions to the suggest.Searcher
// interface. This keeps the pipeline decoupled from the concrete repo
// package while reusing existing functions.
type searchShim struct {
	db *gorm.DB
}

// NearestResolvedCases proxies repo.NearestResolvedCases.
func (s searchShim) NearestResolvedCases(ctx context.Context, clientID string, query []float32, k int) ([]repo.CaseMatch, error) {
	return repo.NearestResolvedCases(ctx, s.db, clientID, query, k)
}

// NearestArticles proxies repo.NearestArticles.
func (s searchShim) NearestArticles(ctx context.Context, clientID string, query []float32, k int) ([]repo.ArticleMatch, error) {
	return repo.NearestArticles(ctx, s.db, clientID, query, k)
}

// CategoryName resolves a category ID to its display name.
func (s searchShim) CategoryName(ctx context.Context, id string) (string, error) {
	cat, err := repo.GetCategory(ctx, s.db, id)
	if err != nil {
		return "", err
	}
	return cat.Name, nil
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine: observability, identity, rate limiting, CORS and security headers,
// health and metrics endpoints, the websocket endpoint, and the versioned
// public API.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Logger: structured access logs
//  4. Recovery: capture panics after logger
//  5. Body size limiter, gzip
//  6. Metrics
//  7. Rate limiter (per user/IP)
//  8. CORS and security headers
//
// Identity extraction runs on the API group only, so /health, /metrics and
// /ws stay reachable without identity headers.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, aiClient *ai.Client, tokenizer *ai.Tokenizer, hub *ws.Hub, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging
	r.Use(middleware.Logger())

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB) and response compression
	r.Use(limitBody(1 << 20))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/ws"})))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Token-bucket rate limiter per user/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	r.Use(rl.Handler())

	// 8) CORS posture (safe defaults: allow all if none configured)
	allowHeaders := []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID", "X-Client-ID"}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Realtime channel (room subscription happens over the socket itself)
	wsHandler := ws.NewHandler(hub, log.Logger)
	r.GET("/ws", wsHandler.Serve)

	// Dependency injection: pipeline ← gateways, services ← repo/db
	suggestSvc := &suggest.Service{
		DB:            db,
		Search:        searchShim{db: db},
		Embedder:      aiClient,
		Completer:     aiClient,
		Trimmer:       tokenizer,
		Hub:           hub,
		Threshold:     cfg.AI.CaseThreshold,
		ArticleBudget: cfg.AI.ArticleBudget,
		CallTimeout:   cfg.AI.CallTimeout,
		Logger:        log.Logger,
	}
	ticketSvc := &services.TicketService{DB: db, Suggest: suggestSvc, Hub: hub, Logger: log.Logger}
	fbSvc := &services.FeedbackService{DB: db, Embedder: aiClient, CallTimeout: cfg.AI.CallTimeout, Logger: log.Logger}
	kbSvc := &services.KnowledgeService{DB: db, Embedder: aiClient, CallTimeout: cfg.AI.CallTimeout, Logger: log.Logger}
	h := handlers.New(ticketSvc, fbSvc, kbSvc)

	// Public API (identity headers required)
	api := groupWithPrefix(r, cfg.APIBasePath)
	api.Use(middleware.Identity())
	{
		// Tickets
		api.POST("/tickets", h.CreateTicket)
		api.GET("/tickets", h.ListTickets)
		api.GET("/tickets/:id", h.GetTicket)
		api.PATCH("/tickets/:id", h.UpdateTicket)

		// Thread
		api.POST("/tickets/:id/messages", h.PostTicketMessage)

		// Suggestion feedback
		api.POST("/tickets/:id/feedback", h.PostFeedback)

		// Knowledge base
		api.POST("/knowledge", h.CreateArticle)
		api.GET("/knowledge", h.ListArticles)
		api.GET("/knowledge/:id", h.GetArticle)
		api.PATCH("/knowledge/:id", h.UpdateArticle)
		api.DELETE("/knowledge/:id", h.DeleteArticle)
	}
}

// limitBody caps the request body size for all endpoints using
// http.MaxBytesReader. Requests exceeding the cap fail on body read.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
