package handler

import (
	"net/http"

	"agroai/internal/apperr"
	"agroai/internal/middleware"
	"agroai/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler handles HTTP requests
type Handler struct {
	auth           service.AuthService
	gateway        service.Gateway
	logger         *zap.Logger
	maxUploadBytes int64
}

// NewHandler creates a new API handler
func NewHandler(auth service.AuthService, gateway service.Gateway, maxUploadBytes int64, logger *zap.Logger) *Handler {
	return &Handler{
		auth:           auth,
		gateway:        gateway,
		logger:         logger,
		maxUploadBytes: maxUploadBytes,
	}
}

// RegisterRoutes mounts the API at the root and again under /api.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	h.registerAPI(r.Group(""))
	h.registerAPI(r.Group("/api"))
}

func (h *Handler) registerAPI(g *gin.RouterGroup) {
	requireAuth := middleware.AuthMiddleware(h.auth, h.logger)

	g.GET("/health", h.HealthCheck)

	auth := g.Group("/auth")
	{
		auth.POST("/register", h.Register)
		auth.POST("/login", h.Login)
		auth.POST("/logout", requireAuth, h.Logout)
		auth.GET("/profile", requireAuth, h.GetProfile)
		auth.PUT("/profile", requireAuth, h.UpdateProfile)
	}

	ai := g.Group("/ai", requireAuth)
	{
		ai.POST("/chat", h.Chat)
		ai.POST("/diagnose", h.Diagnose)
	}
}

// HealthCheck returns service health
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// respondError writes err as {"error": msg}. Errors without a kind are logged and
// reported as a generic 500.
func (h *Handler) respondError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(status, gin.H{"error": "internal server error"})
		return
	}
	if status == http.StatusBadGateway {
		h.logger.Warn("Upstream failure", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": apperr.Message(err, http.StatusText(status))})
}
