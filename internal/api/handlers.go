package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/septivank/campus-water-monitor/internal/logging"
	"github.com/septivank/campus-water-monitor/internal/service"
	"go.uber.org/zap"
)

const (
	apiVersion  = "1.0.0"
	defaultDays = 7
)

// ReadingIngester stores sensor readings
type ReadingIngester interface {
	ProcessReading(ctx context.Context, in service.ReadingInput) (*service.ProcessedReading, error)
}

// UsageReporter serves consumption reports and alerts
type UsageReporter interface {
	UsageByDays(ctx context.Context, days int) ([]service.DailyUsage, error)
	TodayHourly(ctx context.Context) ([]service.HourlyUsage, error)
	ActiveAlerts(ctx context.Context) ([]service.Alert, error)
	ResolveAlert(ctx context.Context, alertID string) error
}

// SensorReporter serves sensor status and history
type SensorReporter interface {
	AllStatus(ctx context.Context) ([]service.SensorStatus, error)
	Status(ctx context.Context, sensorID string) (*service.SensorStatus, error)
	Readings(ctx context.Context, sensorID string, limit int) ([]service.ProcessedReading, error)
}

// Handler serves the HTTP API
type Handler struct {
	serviceName       string
	defaultSensorID   string
	defaultBuildingID string
	ingest            ReadingIngester
	usage             UsageReporter
	sensors           SensorReporter
	logger            *zap.Logger
}

// Health reports liveness
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// Index lists the available endpoints
func (h *Handler) Index(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "Campus Water Monitor API",
		"service": h.serviceName,
		"version": apiVersion,
		"endpoints": gin.H{
			"health": "/health",
			"sensors": gin.H{
				"postReading":     "POST /api/sensors/reading",
				"postESP32":       "POST /api/water",
				"getStatus":       "GET /api/sensors/status",
				"getSensorStatus": "GET /api/sensors/:sensorId/status",
				"getReadings":     "GET /api/sensors/:sensorId/readings?limit=100",
			},
			"usage": gin.H{
				"getUsage":     "GET /api/usage?days=7",
				"getHourly":    "GET /api/usage/hourly",
				"getAlerts":    "GET /api/alerts",
				"resolveAlert": "POST /api/alerts/:alertId/resolve",
			},
		},
	})
}

// PostReading ingests a reading in the native format
func (h *Handler) PostReading(c *gin.Context) {
	var in service.ReadingInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	result, err := h.ingest.ProcessReading(c.Request.Context(), in)
	if err != nil {
		abortWithError(c, err, nil)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "data": result})
}

// esp32Reading is the payload posted by the ESP32 firmware. Only distance is
// used for computation; percentage and volume are the device's own estimate.
type esp32Reading struct {
	Distance   *float64 `json:"distance"`
	Percentage *float64 `json:"percentage"`
	Volume     *float64 `json:"volume"`
	SensorID   string   `json:"sensorId"`
	BuildingID string   `json:"buildingId"`
}

// PostESP32 ingests a reading in the ESP32 firmware format
func (h *Handler) PostESP32(c *gin.Context) {
	var req esp32Reading
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body"})
		return
	}
	if req.Distance == nil || req.Percentage == nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Missing required fields: distance, percentage",
		})
		return
	}

	if req.SensorID == "" {
		req.SensorID = h.defaultSensorID
	}
	if req.BuildingID == "" {
		req.BuildingID = h.defaultBuildingID
	}

	logger := logging.FromGin(c, h.logger)
	logger.Debug("esp32 reading received",
		zap.String("sensor_id", req.SensorID),
		zap.Float64("distance", *req.Distance),
		zap.Float64("device_percentage", *req.Percentage),
	)

	result, err := h.ingest.ProcessReading(c.Request.Context(), service.ReadingInput{
		SensorID:   req.SensorID,
		BuildingID: req.BuildingID,
		DistanceCm: req.Distance,
	})
	if err != nil {
		abortWithError(c, err, gin.H{"success": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Data received successfully",
		"data": gin.H{
			"sensorId":          result.SensorID,
			"waterLevelPercent": result.WaterLevelPercent,
			"volumeLiters":      result.VolumeLiters,
			"timestamp":         result.Timestamp,
		},
	})
}

// AllSensorStatus lists every sensor with its latest reading
func (h *Handler) AllSensorStatus(c *gin.Context) {
	statuses, err := h.sensors.AllStatus(c.Request.Context())
	if err != nil {
		abortWithError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, statuses)
}

// SensorStatus returns one sensor with its latest reading
func (h *Handler) SensorStatus(c *gin.Context) {
	status, err := h.sensors.Status(c.Request.Context(), c.Param("sensorId"))
	if err != nil {
		abortWithError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, status)
}

// SensorReadings returns a sensor's latest readings
func (h *Handler) SensorReadings(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer"})
			return
		}
		limit = parsed
	}

	readings, err := h.sensors.Readings(c.Request.Context(), c.Param("sensorId"), limit)
	if err != nil {
		abortWithError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, readings)
}

// Usage reports daily consumption. A missing, unparsable or zero days
// falls back to a week.
func (h *Handler) Usage(c *gin.Context) {
	days, err := strconv.Atoi(c.Query("days"))
	if err != nil || days == 0 {
		days = defaultDays
	}

	results, err := h.usage.UsageByDays(c.Request.Context(), days)
	if err != nil {
		abortWithError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, results)
}

// HourlyUsage reports today's consumption per hour
func (h *Handler) HourlyUsage(c *gin.Context) {
	hourly, err := h.usage.TodayHourly(c.Request.Context())
	if err != nil {
		abortWithError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, hourly)
}

// ActiveAlerts lists unresolved alerts
func (h *Handler) ActiveAlerts(c *gin.Context) {
	alerts, err := h.usage.ActiveAlerts(c.Request.Context())
	if err != nil {
		abortWithError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, alerts)
}

// ResolveAlert marks an alert resolved
func (h *Handler) ResolveAlert(c *gin.Context) {
	alertID := c.Param("alertId")
	if err := h.usage.ResolveAlert(c.Request.Context(), alertID); err != nil {
		abortWithError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "id": alertID})
}
