package handlers

import (
	"net/http"
	"time"

	"sensor_overlay/internal/models"
	"sensor_overlay/internal/service"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
)

const (
	statusOK        = "ok"
	statusStarted   = "started"
	statusStopped   = "stopped"
	statusRefreshed = "refreshed"

	errGetState   = "failed to load state"
	errSensorDown = "sensor API unavailable"
	neverHappened = "never"
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// Respond with a status and include current state if available (best-effort).
func (h *Handler) respondWithStatusAndState(c *gin.Context, status string, extra gin.H) {
	ctx := c.Request.Context()
	resp := gin.H{"status": status}
	for k, v := range extra {
		resp[k] = v
	}
	st, err := h.services.Monitoring.GetState(ctx)
	if err == nil {
		resp["state"] = st
	}
	c.JSON(http.StatusOK, resp)
}

// RefreshStateResponse is the operator view of the refresh timer.
type RefreshStateResponse struct {
	State       models.RefreshState `json:"state"`
	Running     bool                `json:"running"`
	Interval    string              `json:"interval" example:"30s"`
	LastAttempt string              `json:"last_attempt" example:"12 seconds ago"`
	LastSuccess string              `json:"last_success" example:"2 minutes ago"`
	HasReading  bool                `json:"has_reading"`
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}

// @Summary      Start refresh timer
// @Description  Cancels any running timer and schedules a new one.
// @Tags         refresh
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "status, state"
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/refresh/start [post]
// @Security     BearerAuth
func (h *Handler) startRefresh(c *gin.Context) {
	h.log.Infow("operator_refresh_start", "operator", c.GetString(ctxOperator))
	h.services.Refresh.Start(c.Request.Context())
	h.respondWithStatusAndState(c, statusStarted, gin.H{})
}

// @Summary      Stop refresh timer
// @Tags         refresh
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "status, state"
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/refresh/stop [post]
// @Security     BearerAuth
func (h *Handler) stopRefresh(c *gin.Context) {
	h.log.Infow("operator_refresh_stop", "operator", c.GetString(ctxOperator))
	h.services.Refresh.Stop(c.Request.Context())
	h.respondWithStatusAndState(c, statusStopped, gin.H{})
}

// @Summary      Refresh now
// @Description  Fetches the sensor API immediately and pushes the reading to every open page.
// @Tags         refresh
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "status, reading, statuses"
// @Failure      401  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /api/v1/refresh/force [post]
// @Security     BearerAuth
func (h *Handler) forceRefresh(c *gin.Context) {
	r := h.services.Refresh.ForceRefresh(c.Request.Context())
	if r == nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": errSensorDown})
		return
	}
	h.respondWithStatusAndState(c, statusRefreshed, gin.H{
		"reading":  r,
		"statuses": service.Classify(*r),
	})
}

// @Summary      Refresh timer state
// @Tags         refresh
// @Produce      json
// @Success      200  {object}  RefreshStateResponse
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/refresh/state [get]
// @Security     BearerAuth
func (h *Handler) getRefreshState(c *gin.Context) {
	st, err := h.services.Monitoring.GetState(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errGetState, "refresh_state_failed", err)
		return
	}
	c.JSON(http.StatusOK, RefreshStateResponse{
		State:       st,
		Running:     h.services.Refresh.Running(),
		Interval:    h.services.Refresh.Interval().String(),
		LastAttempt: ago(st.LastAttemptAt),
		LastSuccess: ago(st.LastSuccessAt),
		HasReading:  h.services.Refresh.Cached() != nil,
	})
}

func ago(t time.Time) string {
	if t.IsZero() {
		return neverHappened
	}
	return humanize.Time(t)
}
