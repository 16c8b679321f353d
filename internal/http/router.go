package http

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/hungtruong03/SAPromotion/internal/cache"
	"github.com/hungtruong03/SAPromotion/internal/config"
	promotionapi "github.com/hungtruong03/SAPromotion/internal/http/api/promotion"
	"github.com/hungtruong03/SAPromotion/internal/http/api/promotion/handlers"
	"github.com/hungtruong03/SAPromotion/internal/logging"
	"github.com/hungtruong03/SAPromotion/internal/promotion"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

// RouterDeps holds everything the HTTP layer needs.
type RouterDeps struct {
	Server   config.ServerConfig
	DB       *gorm.DB
	Cache    cache.Cache
	Service  *promotion.Service
	Gatherer prometheus.Gatherer // nil disables /metrics
}

// NewRouter builds the gin engine with middleware, health, metrics and the
// promotion routes.
func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logging.GinLogger())
	r.Use(TracingMiddleware())
	r.Use(cors.New(corsConfig(deps.Server.CORSOrigins)))

	if deps.DB != nil {
		healthHandler := handlers.NewHealthHandler(deps.DB, deps.Cache)
		r.GET("/healthz", healthHandler.Healthz)
	}
	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	promotionapi.RegisterPromotionRoutes(r, deps.Service)
	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Traceparent"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	return cfg
}
