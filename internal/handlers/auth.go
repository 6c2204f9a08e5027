package handlers

import (
	"errors"
	"net/http"

	"sensor_overlay/internal/service"

	"github.com/gin-gonic/gin"
)

// TokenRequest is the operator login payload.
type TokenRequest struct {
	Password string `json:"password" binding:"required" example:"s3cret"`
}

// bindJSONOrBadRequest tries to bind the request body into dst and writes a 400 JSON on failure.
// Returns false if the request was already handled (aborted), true otherwise.
func (h *Handler) bindJSONOrBadRequest(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.log.Infow("auth_bad_request_body", "err", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

// @Summary      Issue operator token
// @Description  Exchanges the operator password for a bearer token.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      TokenRequest  true  "Operator password"
// @Success      200   {object}  map[string]string  "token"
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      503   {object}  map[string]string
// @Router       /auth/token [post]
func (h *Handler) issueToken(c *gin.Context) {
	var input TokenRequest
	if ok := h.bindJSONOrBadRequest(c, &input); !ok {
		return
	}

	token, err := h.services.GenerateToken(input.Password)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"token": token})
	case errors.Is(err, service.ErrAuthDisabled):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "operator login is disabled"})
	case errors.Is(err, service.ErrInvalidPassword):
		h.log.Infow("auth_token_denied", "remote", c.ClientIP())
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
	default:
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to issue token", "auth_token_failed", err)
	}
}
