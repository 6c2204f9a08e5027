package handlers

import (
	"bytes"
	"net/http"

	"sensor_overlay/internal/models"
	"sensor_overlay/internal/render"
	"sensor_overlay/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	staticBase = "/static"
	wsPath     = "/ws"

	contentTypeHTML = "text/html; charset=utf-8"
	errRenderPage   = "failed to render page"
)

// ReadingResponse is the cached reading with its per-metric classification.
type ReadingResponse struct {
	Reading  models.Reading       `json:"reading"`
	Statuses models.ReadingStatus `json:"statuses"`
}

// @Summary      Viewer page
// @Description  Point-cloud viewer with the sensor label and panel overlay.
// @Tags         page
// @Produce      html
// @Success      200
// @Router       / [get]
func (h *Handler) page(c *gin.Context) {
	var buf bytes.Buffer
	err := h.deps.Renderer.Page(&buf, render.PageData{
		Title:      h.deps.Viewer.Description,
		PotreeBase: h.deps.Viewer.PotreeBase,
		StaticBase: staticBase,
		WSPath:     wsPath,
	})
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errRenderPage, "page_render_failed", err)
		return
	}
	c.Data(http.StatusOK, contentTypeHTML, buf.Bytes())
}

// @Summary      Latest reading
// @Description  Cached reading of the last successful poll. 204 until the first one arrives.
// @Tags         reading
// @Produce      json
// @Success      200  {object}  ReadingResponse
// @Success      204
// @Router       /api/reading [get]
func (h *Handler) getReading(c *gin.Context) {
	r := h.services.Refresh.Cached()
	if r == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, ReadingResponse{Reading: *r, Statuses: service.Classify(*r)})
}

// @Summary      Label fragment
// @Description  Floating label markup for the cached reading (loading placeholder when empty).
// @Tags         reading
// @Produce      html
// @Success      200
// @Router       /api/label [get]
func (h *Handler) getLabel(c *gin.Context) {
	c.Data(http.StatusOK, contentTypeHTML, []byte(h.deps.Renderer.Label(h.services.Refresh.Cached())))
}

// @Summary      Panel fragment
// @Description  Detail panel markup. Fetches once when nothing is cached; an empty result renders the error message.
// @Tags         reading
// @Produce      html
// @Success      200
// @Router       /api/panel [get]
func (h *Handler) getPanel(c *gin.Context) {
	r := h.services.Refresh.Cached()
	if r == nil {
		r = h.services.Refresh.ForceRefresh(c.Request.Context())
	}
	c.Data(http.StatusOK, contentTypeHTML, []byte(h.deps.Renderer.Panel(r)))
}

func (h *Handler) wsConnect(c *gin.Context) {
	if h.deps.Sockets == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "overlay channel unavailable"})
		return
	}
	h.deps.Sockets.ServeWS(c.Writer, c.Request)
}
