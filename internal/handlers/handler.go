package handlers

import (
	"net/http"
	"strings"

	"sensor_overlay/internal/config"
	"sensor_overlay/internal/logger"
	"sensor_overlay/internal/render"
	"sensor_overlay/internal/service"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// SocketServer serves the overlay websocket of one browser page.
type SocketServer interface {
	ServeWS(w http.ResponseWriter, r *http.Request)
}

// Deps are the presentation collaborators next to the services.
type Deps struct {
	Renderer *render.Renderer
	Sockets  SocketServer
	Metrics  http.Handler
	Viewer   config.ViewerConfig
}

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	deps     Deps
	log      *logger.Logger
}

// NewHandler constructs a new HTTP handler with dependencies.
func NewHandler(services *service.Service, deps Deps, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{services: services, deps: deps, log: log}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/health", h.health)
	if h.deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(h.deps.Metrics))
	}

	h.registerPageRoutes(router)
	h.registerReadingRoutes(router)
	h.registerAuthRoutes(router)

	// Versioned operator endpoints (protected)
	h.registerAPIRoutes(router)

	// Overlay channel (HTTP upgrade), same port
	router.GET("/ws", h.wsConnect)

	return router
}

func (h *Handler) registerPageRoutes(r *gin.Engine) {
	r.GET("/", h.page)
	r.StaticFS(staticBase, http.FS(render.StaticFS()))

	// Potree build and point clouds, unless a CDN hosts them
	base := h.deps.Viewer.PotreeBase
	if h.deps.Viewer.AssetsDir != "" && strings.HasPrefix(base, "/") && base != "/" {
		r.Static(base, h.deps.Viewer.AssetsDir)
	}
}

func (h *Handler) registerReadingRoutes(r *gin.Engine) {
	api := r.Group("/api")
	{
		api.GET("/reading", h.getReading)
		api.GET("/label", h.getLabel)
		api.GET("/panel", h.getPanel)
	}
}

func (h *Handler) registerAuthRoutes(r *gin.Engine) {
	auth := r.Group("/auth")
	{
		auth.POST("/token", h.issueToken)
	}
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1", h.operatorMiddleware)
	{
		h.registerRefreshRoutes(api)
		h.registerLogRoutes(api)
	}
}

func (h *Handler) registerRefreshRoutes(api *gin.RouterGroup) {
	refresh := api.Group("/refresh")
	{
		refresh.POST("/start", h.startRefresh)
		refresh.POST("/stop", h.stopRefresh)
		refresh.POST("/force", h.forceRefresh)
		refresh.GET("/state", h.getRefreshState)
	}
}

func (h *Handler) registerLogRoutes(api *gin.RouterGroup) {
	logs := api.Group("/logs")
	{
		logs.GET("/", h.getLogs)
	}
}
