package api

import (
	"github.com/gin-gonic/gin"
	"github.com/septivank/campus-water-monitor/internal/config"
	"github.com/septivank/campus-water-monitor/internal/logging"
	"go.uber.org/zap"
)

// NewRouter builds the HTTP API
func NewRouter(
	cfg *config.Config,
	logger *zap.Logger,
	ingest ReadingIngester,
	usage UsageReporter,
	sensors SensorReporter,
) *gin.Engine {
	h := &Handler{
		serviceName:       cfg.ServiceName,
		defaultSensorID:   cfg.Sensors.DefaultSensorID,
		defaultBuildingID: cfg.Sensors.DefaultBuildingID,
		ingest:            ingest,
		usage:             usage,
		sensors:           sensors,
		logger:            logger,
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logging.GinMiddleware(logger))
	router.Use(CORS(cfg.CORSOrigin))

	router.GET("/health", h.Health)
	router.GET("/", h.Index)

	api := router.Group("/api")
	{
		api.POST("/water", h.PostESP32)

		api.POST("/sensors/reading", h.PostReading)
		api.GET("/sensors/status", h.AllSensorStatus)
		api.GET("/sensors/:sensorId/status", h.SensorStatus)
		api.GET("/sensors/:sensorId/readings", h.SensorReadings)

		api.GET("/usage", h.Usage)
		api.GET("/usage/hourly", h.HourlyUsage)

		api.GET("/alerts", h.ActiveAlerts)
		api.POST("/alerts/:alertId/resolve", h.ResolveAlert)
	}

	return router
}
