package middleware

import (
	"net/http"
	"strings"

	"agroai/internal/apperr"
	"agroai/internal/models"
	"agroai/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	userKey  = "user"
	tokenKey = "token"
)

// AuthMiddleware resolves the bearer token and stores the account and the raw token in
// the request context.
func AuthMiddleware(auth service.AuthService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		parts := strings.Fields(authHeader)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header format must be Bearer <token>"})
			return
		}
		tokenString := parts[1]

		user, err := auth.Resolve(c.Request.Context(), tokenString)
		if err != nil {
			status := apperr.HTTPStatus(err)
			if status == http.StatusInternalServerError {
				logger.Error("Failed to resolve token", zap.String("path", c.FullPath()), zap.Error(err))
				c.AbortWithStatusJSON(status, gin.H{"error": "internal server error"})
				return
			}
			logger.Debug("Rejected token", zap.Int("status", status), zap.Error(err))
			c.AbortWithStatusJSON(status, gin.H{"error": apperr.Message(err, "Invalid token")})
			return
		}

		c.Set(userKey, user)
		c.Set(tokenKey, tokenString)
		c.Next()
	}
}

// CurrentUser returns the account set by AuthMiddleware.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok && user != nil
}

// CurrentToken returns the bearer token set by AuthMiddleware.
func CurrentToken(c *gin.Context) string {
	return c.GetString(tokenKey)
}
