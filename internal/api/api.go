package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	api_utils "github.com/ethanbaker/api/pkg/utils"
	"github.com/ethanbaker/storyvideo/internal/ingest"
	"github.com/ethanbaker/storyvideo/pkg/logging"
	"github.com/ethanbaker/storyvideo/pkg/utils"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	admin_module "github.com/ethanbaker/storyvideo/internal/api/modules/admin"
	health_module "github.com/ethanbaker/storyvideo/internal/api/modules/health"
	uploads_module "github.com/ethanbaker/storyvideo/internal/api/modules/uploads"
	webhooks_module "github.com/ethanbaker/storyvideo/internal/api/modules/webhooks"
)

// Dependencies are the components the HTTP surface serves
type Dependencies struct {
	Pipeline *ingest.Pipeline
	Gatherer prometheus.Gatherer
	Checks   map[string]health_module.Check
	Logger   logging.Logger
}

// NewEngine builds the gin engine with every module registered
func NewEngine(cfg *utils.Config, deps Dependencies) *gin.Engine {
	// Add app level settings/routes
	engine := gin.Default()
	engine.NoRoute(api_utils.NoRouteHandler)

	// Add trusted proxies
	engine.SetTrustedProxies(nil)

	// Add CORS using gin-contrib/cors (https://github.com/gin-contrib/cors for documentation)
	engine.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Split(cfg.GetWithDefault("CORS_ALLOWED_ORIGINS", "*"), ","),
		AllowMethods:     []string{"OPTIONS", "GET", "POST"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	// Metrics live outside '/api' so scrapers need no credentials
	if deps.Gatherer != nil {
		engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	// Base group '/api' for all API routes
	baseGroup := engine.Group("/api")

	// Adding custom modules
	health_module.RegisterRoutes(baseGroup, deps.Checks)

	uploads_module.RegisterRoutes(baseGroup, uploads_module.NewController(deps.Pipeline.Issuer), []byte(cfg.Get("JWT_SECRET")))
	webhooks_module.RegisterRoutes(baseGroup, webhooks_module.NewController(deps.Pipeline.Router))

	apiKey := cfg.Get("API_KEY")
	if apiKey == "" {
		deps.Logger.Warn("API_KEY not set, admin routes will reject every request")
	}
	admin_module.RegisterRoutes(baseGroup, admin_module.NewController(deps.Pipeline.Sweeper), admin_module.NewKeyValidator(apiKey))

	return engine
}

// Start serves the API until ctx is cancelled, then drains in-flight requests
func Start(ctx context.Context, cfg *utils.Config, deps Dependencies) error {
	if deps.Logger == nil {
		deps.Logger = logging.NewDiscardLogger()
	}

	// Initialized configuration settings
	port := cfg.GetWithDefault("API_PORT", "8080")

	server := &http.Server{
		Addr:              ":" + port,
		Handler:           NewEngine(cfg, deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		deps.Logger.WithField("port", port).Info("API server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	deps.Logger.Info("shutting down API server")
	return server.Shutdown(shutdownCtx)
}
