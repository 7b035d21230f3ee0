package http

import (
	"context"
	"log/slog"

	"github.com/geocoder89/authhub/internal/config"
	"github.com/geocoder89/authhub/internal/http/handlers"
	"github.com/geocoder89/authhub/internal/http/middlewares"
	"github.com/geocoder89/authhub/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

type RouterDeps struct {
	Log      *slog.Logger
	Config   config.Config
	Accounts handlers.AccountService
	Tokens   middlewares.TokenVerifier

	// Ping backs /readyz; nil means always ready.
	Ping func(ctx context.Context) error

	Prom     *observability.Prom
	Gatherer prometheus.Gatherer

	// UploadDir is served under /uploads/profile when profile images live on disk.
	UploadDir string
}

func NewRouter(d RouterDeps) *gin.Engine {
	cfg := d.Config

	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	log := d.Log
	if log == nil {
		log = slog.Default()
	}

	r := gin.New()

	// middleware

	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(cfg.Tracing.ServiceName))
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(log))
	r.Use(middlewares.SecurityHeaders(cfg.IsProduction()))
	r.Use(middlewares.CORSMiddleware(cfg.HTTP.AllowedOrigins))

	if d.Prom != nil {
		r.Use(d.Prom.GinHandleMiddleware())
	}

	r.NoRoute(handlers.NotFound)

	// health
	h := handlers.NewHealthHandler(d.Ping)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)
	r.GET("/api/health", h.Health)

	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	if d.UploadDir != "" {
		r.StaticFS("/uploads/profile", gin.Dir(d.UploadDir, false))
	}

	authHandler := handlers.NewAuthHandler(d.Accounts, log, handlers.AuthHandlerConfig{
		Production:     cfg.IsProduction(),
		MaxUploadBytes: cfg.Upload.MaxBytes,
		Timeout:        cfg.HTTP.RequestTimeout,
	})
	authMw := middlewares.NewAuthMiddleware(d.Tokens)

	limiter := middlewares.NewRateLimiter(cfg.HTTP.AuthRateLimit, cfg.HTTP.AuthRateWindow)
	limitByIP := limiter.RateLimiterMiddleware(middlewares.KeyByIP)

	api := r.Group("/api/auth")
	api.Use(middlewares.MaxBodyBytes(maxBody(cfg)))

	api.POST("/register", limitByIP, middlewares.RequireMultipart(), authHandler.Register)

	public := api.Group("", limitByIP, middlewares.RequireJSON())
	{
		public.POST("/login", authHandler.Login)
		public.POST("/send-otp", authHandler.SendOtp)
		public.POST("/verify-email", authHandler.VerifyEmail)
		public.POST("/refresh-token", authHandler.RefreshToken)
		public.POST("/forgot-password", authHandler.ForgotPassword)
	}

	private := api.Group("", authMw.RequireAuth(), limiter.RateLimiterMiddleware(middlewares.KeyByUserOrIP), middlewares.RequireJSON())
	{
		private.POST("/reset-password", authHandler.ResetPassword)
		private.POST("/change-password", authHandler.ChangePassword)
	}

	return r
}

// the multipart body carries the image plus a few small fields
func maxBody(cfg config.Config) int64 {
	limit := cfg.HTTP.MaxBodyBytes
	if floor := cfg.Upload.MaxBytes + 64<<10; limit < floor {
		limit = floor
	}
	if limit <= 0 {
		limit = 2 << 20
	}
	return limit
}
