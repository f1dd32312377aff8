package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// operatorIDKey holds the signed-in operator's id on the gin context.
const operatorIDKey = "operatorId"

const (
	errNoCredentials  = "sign in to operate the irrigation controller"
	errBadAuthScheme  = "Authorization header must be \"Bearer <token>\""
	errSessionExpired = "operator session expired or invalid, sign in again"
)

// requireOperator guards the controller API: every request must carry a valid operator token.
func (h *Handler) requireOperator(c *gin.Context) {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if header == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errNoCredentials})
		return
	}

	scheme, token, ok := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errBadAuthScheme})
		return
	}

	operatorID, err := h.services.ParseToken(token)
	if err != nil {
		if h.log != nil {
			h.log.Infow("operator_token_rejected", "method", c.Request.Method, "path", c.FullPath(), "client", c.ClientIP(), "err", err)
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errSessionExpired})
		return
	}

	c.Set(operatorIDKey, operatorID)
	c.Next()
}

// operatorID returns the id stored by requireOperator.
func operatorID(c *gin.Context) (int, bool) {
	v, ok := c.Get(operatorIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(int)
	return id, ok
}
