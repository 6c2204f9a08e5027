package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const ctxOperator = "operator"

var (
	errNoAuthHeader  = errors.New("missing Authorization header")
	errAuthHeaderFmt = errors.New("invalid Authorization header format")
)

// bearerToken extracts the token from an "Authorization: Bearer <token>" header.
func bearerToken(header string) (string, error) {
	if header == "" {
		return "", errNoAuthHeader
	}
	scheme, token, ok := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !ok || scheme != "Bearer" || token == "" {
		return "", errAuthHeaderFmt
	}
	return token, nil
}

// operatorMiddleware admits requests carrying a valid operator token. The
// token's subject is checked by the authorization service.
func (h *Handler) operatorMiddleware(c *gin.Context) {
	token, err := bearerToken(c.GetHeader("Authorization"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	subject, err := h.services.ParseToken(token)
	if err != nil {
		h.log.Infow("operator_token_rejected", "remote", c.ClientIP(), "path", c.FullPath(), "err", err)
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
		return
	}

	c.Set(ctxOperator, subject)
	c.Next()
}
