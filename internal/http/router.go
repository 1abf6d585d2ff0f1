// Package httpapi wires the ops/API transport (Gin) to the relay services.
// It owns middleware ordering, health and metrics endpoints, Swagger UI,
// the bot webhook and the versioned request API.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-relay-bot/docs"
	"github.com/tbourn/go-relay-bot/internal/config"
	"github.com/tbourn/go-relay-bot/internal/http/handlers"
	"github.com/tbourn/go-relay-bot/internal/http/middleware"
)

// Deps are the collaborators the routes need. Updates may be nil when the
// bot runs in long-polling mode or without a token.
type Deps struct {
	DB       *gorm.DB
	Requests handlers.RequestService
	Rooms    handlers.RoomService
	Updates  handlers.UpdateHandler
}

// RegisterRoutes attaches middleware and endpoints to r.
//
// Middleware order:
//  1. OpenTelemetry
//  2. RequestID
//  3. Logger
//  4. Recovery
//  5. Body size limit and gzip
//  6. Metrics
//  7. CORS and security headers
//
// The API group then adds Auth, Idempotency (before the rate limiter so
// replays cost no tokens) and the rate limiter.
func RegisterRoutes(r *gin.Engine, d Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(limitBody(1 << 20))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))
	r.Use(middleware.Metrics())
	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins))
	r.Use(middleware.SecurityHeaders())

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = cfg.APIBasePath
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	if d.Updates != nil && cfg.Bot.WebhookPath != "" {
		r.POST(cfg.Bot.WebhookPath, middleware.WebhookSecret(cfg.Bot.WebhookKey), handlers.NewWebhook(d.Updates).Receive)
	}

	h := handlers.New(d.Requests, d.Rooms)
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByActorOrIP())

	api := groupWithPrefix(r, cfg.APIBasePath)
	api.Use(middleware.Auth(cfg.JWTSecret))
	api.Use(middleware.Idempotency(d.DB, cfg.IdempotencyTTL))
	api.Use(rl.Handler())
	{
		api.GET("/requests", h.ListRequests)
		api.POST("/requests", h.CreateRequest)
		api.GET("/requests/:id", h.GetRequest)

		api.POST("/requests/:id/negotiate", h.Negotiate)
		api.POST("/requests/:id/accept", h.Accept)
		api.POST("/requests/:id/reject", h.Reject)
		api.POST("/requests/:id/instructions", h.SetInstructions)
		api.GET("/requests/:id/payment", h.Payment)
		api.POST("/requests/:id/paid", h.MarkPaid)
		api.POST("/requests/:id/proof", h.AttachProof)
		api.POST("/requests/:id/received", h.ConfirmReceived)
		api.POST("/requests/:id/confirm", h.Confirm)

		api.GET("/requests/:id/room", h.GetRoom)
		api.POST("/requests/:id/room/join", h.JoinRoom)
		api.POST("/requests/:id/room/leave", h.LeaveRoom)

		api.PUT("/performers/me/payinfo", h.SetPayInfo)
	}
}

// corsMiddleware allows every origin when none are configured, otherwise
// only the listed ones.
func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderUserID, middleware.HeaderIdempotencyKey},
		ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}

// limitBody caps request bodies at maxBytes; reads past it fail.
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
