package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"esphub/internal/events"
	"esphub/internal/logger"
	"esphub/internal/service"
)

// Handler wires HTTP layer to services, the event hub and logging.
type Handler struct {
	services *service.Service
	hub      *events.Hub
	log      *logger.Logger
}

// NewHandler constructs a new HTTP handler with dependencies.
func NewHandler(services *service.Service, hub *events.Hub, log *logger.Logger) *Handler {
	return &Handler{services: services, hub: hub, log: log}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), h.requestLogger)

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health endpoint
	router.GET("/health", h.health)

	// Device-facing ingestion (legacy HTTP push)
	router.POST("/upload", h.upload)

	// Live update streams
	router.GET("/events", h.sseEvents)
	router.GET("/ws", h.wsConnect)

	// Legacy pin state snapshot the dashboard polls
	router.GET("/pins.json", h.pinsJSON)

	h.registerAPIRoutes(router)

	return router
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api")
	{
		api.POST("/pins/:pin", h.setPin)

		api.GET("/config", h.getConfig)
		api.POST("/config", h.updateConfig)

		api.GET("/latest-data", h.latestData)
		api.GET("/history", h.history)
		api.DELETE("/history/:id", h.deleteRecord)
		api.DELETE("/history", h.deleteAllRecords)
	}
}

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
