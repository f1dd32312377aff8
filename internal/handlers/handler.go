package handlers

import (
	"irrigation_controller/internal/logger"
	"irrigation_controller/internal/metrics"
	"irrigation_controller/internal/service"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	log      *logger.Logger
	metrics  *metrics.Metrics
}

// NewHandler constructs a new HTTP handler with dependencies. m may be nil.
func NewHandler(services *service.Service, log *logger.Logger, m *metrics.Metrics) *Handler {
	return &Handler{services: services, log: log, metrics: m}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/health", h.health)
	router.GET("/metrics", gin.WrapH(h.metrics.Handler()))

	// Auth endpoints
	h.registerAuthRoutes(router)

	// Versioned API endpoints (protected)
	h.registerAPIRoutes(router)

	// Live zone/program status over WebSocket, same port
	router.GET("/ws", h.wsConnect)

	return router
}

func (h *Handler) registerAuthRoutes(r *gin.Engine) {
	auth := r.Group("/auth")
	{
		auth.POST("/sign-up", h.signUp)
		auth.POST("/sign-in", h.signIn)
	}
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1", h.requireOperator)
	{
		h.registerZoneRoutes(api)
		h.registerProgramRoutes(api)
		h.registerSettingsRoutes(api)
		h.registerLogRoutes(api)
	}
}

func (h *Handler) registerZoneRoutes(api *gin.RouterGroup) {
	zones := api.Group("/zones")
	{
		zones.GET("", h.listZones)
		// Body example: {"duration_minutes":15}
		zones.POST("/:id/start", h.startZone)
		zones.POST("/:id/stop", h.stopZone)
		zones.POST("/stop-all", h.stopAllZones)
	}
}

func (h *Handler) registerProgramRoutes(api *gin.RouterGroup) {
	programs := api.Group("/programs")
	{
		programs.GET("", h.listPrograms)
		programs.POST("", h.createProgram)
		programs.GET("/state", h.programState)
		programs.POST("/stop", h.stopProgram)
		programs.GET("/:id", h.getProgram)
		programs.PUT("/:id", h.updateProgram)
		programs.DELETE("/:id", h.deleteProgram)
		programs.POST("/:id/run", h.runProgram)
	}
}

func (h *Handler) registerSettingsRoutes(api *gin.RouterGroup) {
	settings := api.Group("/settings")
	{
		settings.GET("", h.getSettings)
		settings.PUT("", h.updateSettings)
		settings.POST("/factory-reset", h.factoryReset)
		settings.POST("/reset-all", h.resetAll)
	}
}

func (h *Handler) registerLogRoutes(api *gin.RouterGroup) {
	logs := api.Group("/logs")
	{
		logs.GET("", h.getLogs)
		logs.DELETE("", h.clearLogs)
	}
}
