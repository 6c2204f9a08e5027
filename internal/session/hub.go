package session

import (
	"context"
	"net/http"
	"sync"

	"sensor_overlay/internal/config"
	"sensor_overlay/internal/logger"
	"sensor_overlay/internal/metrics"
	"sensor_overlay/internal/models"
	"sensor_overlay/internal/render"
	"sensor_overlay/internal/viewer"

	"github.com/gorilla/websocket"
)

// Controller is the refresh controller as seen by the pages.
type Controller interface {
	viewer.Controller
	SetVisible(ctx context.Context, visible bool)
}

// Options holds what every session needs to build its overlay.
type Options struct {
	Renderer   *render.Renderer
	Fetcher    viewer.Fetcher
	Controller Controller
	Viewer     config.ViewerConfig
	Display    config.DisplayConfig
	Metrics    *metrics.Metrics
	Log        *logger.Logger
	// Context bounds every session; cancelling it closes them all.
	Context context.Context
}

// Hub tracks connected pages. It fans refreshed readings out to all of them
// and keeps the refresh timer running while at least one page is visible.
type Hub struct {
	opts     Options
	ctx      context.Context
	log      *logger.Logger
	upgrader websocket.Upgrader

	mu       sync.Mutex
	sessions map[*Session]bool // value: page visible

	visMu   sync.Mutex
	applied bool
}

func NewHub(opts Options) *Hub {
	if opts.Log == nil {
		opts.Log = logger.Nop()
	}
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	return &Hub{
		opts:     opts,
		ctx:      opts.Context,
		log:      opts.Log,
		sessions: make(map[*Session]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
}

// ServeWS upgrades the request and serves the session until it disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Errorw("ws_upgrade_failed", "err", err)
		return
	}
	s := newSession(h, conn)
	s.log.Infow("ws_session_opened", "remote", r.RemoteAddr)
	s.run()
}

// Publish implements service.Publisher.
func (h *Hub) Publish(r models.Reading) {
	h.mu.Lock()
	targets := make([]*Session, 0, len(h.sessions))
	for s := range h.sessions {
		targets = append(targets, s)
	}
	h.mu.Unlock()

	for _, s := range targets {
		s.publish(r)
	}
}

// Count returns the number of pages that completed their handshake.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// VisibleCount returns the number of pages currently visible.
func (h *Hub) VisibleCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.visibleLocked()
}

func (h *Hub) visibleLocked() int {
	n := 0
	for _, v := range h.sessions {
		if v {
			n++
		}
	}
	return n
}

// register adds a page. It does not touch the controller: the page's own
// startup sequence starts the timer through pageController.
func (h *Hub) register(s *Session, visible bool) {
	h.mu.Lock()
	h.sessions[s] = visible
	n := len(h.sessions)
	h.mu.Unlock()
	h.setGauge(n)
}

func (h *Hub) unregister(s *Session) {
	h.mu.Lock()
	_, ok := h.sessions[s]
	delete(h.sessions, s)
	n := len(h.sessions)
	h.mu.Unlock()
	if !ok {
		return
	}
	h.setGauge(n)
	// the session context is already cancelled
	h.applyVisibility(h.ctx)
}

func (h *Hub) setVisible(ctx context.Context, s *Session, visible bool) {
	h.mu.Lock()
	if _, ok := h.sessions[s]; !ok {
		h.mu.Unlock()
		return
	}
	h.sessions[s] = visible
	h.mu.Unlock()
	h.applyVisibility(ctx)
}

// applyVisibility pushes the aggregate visibility to the controller when it
// changed since the last push. Calls are serialised so the controller always
// ends up in the latest state.
func (h *Hub) applyVisibility(ctx context.Context) {
	h.visMu.Lock()
	defer h.visMu.Unlock()

	h.mu.Lock()
	want := h.visibleLocked() > 0
	h.mu.Unlock()

	if want == h.applied {
		return
	}
	h.applied = want
	h.log.Infow("pages_visibility_changed", "visible", want)
	if h.opts.Controller != nil {
		h.opts.Controller.SetVisible(ctx, want)
	}
}

// started runs the controller start requested by a page's startup sequence
// and records it, then reconciles with the pages that are visible now.
func (h *Hub) started(ctx context.Context) {
	h.visMu.Lock()
	if h.opts.Controller != nil {
		h.opts.Controller.Start(ctx)
	}
	h.applied = true
	h.visMu.Unlock()
	h.applyVisibility(ctx)
}

// pageController is the controller handed to a page's shim. Its Start goes
// through the hub so the aggregate visibility knows the timer runs.
type pageController struct {
	Controller
	hub *Hub
}

func (c pageController) Start(ctx context.Context) { c.hub.started(ctx) }

func (h *Hub) setGauge(n int) {
	if h.opts.Metrics != nil {
		h.opts.Metrics.Sessions.Set(float64(n))
	}
}
