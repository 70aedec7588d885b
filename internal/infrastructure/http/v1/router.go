package v1

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jaennil/guide_helper/backend/hips/internal/infrastructure/http/v1/handler"
	"github.com/jaennil/guide_helper/backend/hips/pkg/logger"
	"github.com/jaennil/guide_helper/backend/hips/pkg/telemetry"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewRouter(handler *handler.Handler, l logger.Logger, telemetryEnabled bool) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())

	if telemetryEnabled {
		r.Use(telemetry.GinMiddleware("guide-helper-hips"))
	}

	r.Use(ginZapLogger(l))

	api := r.Group("/api")
	v1 := api.Group("/v1")

	v1.GET("/healthz", handler.Healthz)

	mocs := v1.Group("/moc")
	mocs.GET("/contains", handler.CoverageContains)
	mocs.POST("/catalog", handler.CatalogCoverage)
	mocs.POST("/reduce", handler.ReduceCoverage)
	mocs.POST("/algebra/:op", handler.CoverageAlgebra)

	surveys := v1.Group("/surveys")
	surveys.GET("", handler.Surveys)
	surveys.POST("/:id/view", handler.View)
	surveys.GET("/:id/stats", handler.Stats)
	surveys.GET("/:id/coverage", handler.Coverage)
	surveys.GET("/:id/tiles/:order/:pixel", handler.Tile)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func ginZapLogger(l logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("logger", l)

		start := time.Now()

		c.Next()

		l.Info("request",
			"status", c.Writer.Status(),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"ip", c.ClientIP(),
			"latency", time.Since(start),
			"size", c.Writer.Size(),
		)
	}
}
