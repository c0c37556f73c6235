package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jengzang/roadsurvey-backend-go/internal/config"
	"github.com/jengzang/roadsurvey-backend-go/internal/handler"
	"github.com/jengzang/roadsurvey-backend-go/internal/middleware"
)

// Handlers groups the HTTP handlers mounted by SetupRouter
type Handlers struct {
	Lanes      *handler.LaneHandler
	Thresholds *handler.ThresholdHandler
	Limiter    *middleware.RateLimiter // guards threshold writes; nil disables
	Metrics    http.Handler            // nil uses the default Prometheus registry
	Logger     *slog.Logger
}

// SetupRouter 设置路由
func SetupRouter(cfg *config.Config, h Handlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.Logger(h.Logger))

	// CORS 中间件
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Road Survey Backend API is running",
		})
	})

	metrics := h.Metrics
	if metrics == nil {
		metrics = promhttp.Handler()
	}
	r.GET("/metrics", gin.WrapH(metrics))

	var writeChain []gin.HandlerFunc
	if h.Limiter != nil {
		writeChain = append(writeChain, middleware.RateLimit(h.Limiter))
	}
	writeChain = append(writeChain, middleware.Auth(cfg.JWTSecret))
	writes := func(fn gin.HandlerFunc) []gin.HandlerFunc {
		return append(append([]gin.HandlerFunc{}, writeChain...), fn)
	}

	// API 路由组
	api := r.Group("/api/v1")
	{
		api.GET("/session", h.Lanes.GetSession)
		api.GET("/geojson", h.Lanes.GetGeoJSON)
		api.GET("/charts/lanes", h.Lanes.GetLaneChart)

		// 车道
		lanes := api.Group("/lanes")
		{
			lanes.GET("", h.Lanes.GetLanes)
			lanes.GET("/:lane", h.Lanes.GetLane)
			lanes.GET("/:lane/path", h.Lanes.GetLanePath)
			lanes.GET("/:lane/summary", h.Lanes.GetLaneSummary)
		}

		// 阈值
		thresholds := api.Group("/thresholds")
		{
			thresholds.GET("", h.Thresholds.GetThresholds)
			thresholds.PUT("", writes(h.Thresholds.UpdateThresholds)...)
			thresholds.GET("/profiles", h.Thresholds.ListProfiles)
			thresholds.POST("/profiles", writes(h.Thresholds.CreateProfile)...)
			thresholds.POST("/profiles/:id/activate", writes(h.Thresholds.ActivateProfile)...)
		}
	}

	return r
}
