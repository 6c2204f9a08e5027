package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"sensor_overlay/internal/models"
	"sensor_overlay/internal/render"
	"sensor_overlay/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockAuth struct {
	genTokenToken string
	genTokenErr   error
	parseSubject  string
	parseErr      error

	lastGenPassword string
	lastParseToken  string
}

func (m *mockAuth) GenerateToken(password string) (string, error) {
	m.lastGenPassword = password
	return m.genTokenToken, m.genTokenErr
}
func (m *mockAuth) ParseToken(token string) (string, error) {
	m.lastParseToken = token
	return m.parseSubject, m.parseErr
}

type mockRefresh struct {
	mu          sync.Mutex
	running     bool
	cached      *models.Reading
	forced      *models.Reading
	interval    time.Duration
	startCalled int
	stopCalled  int
	forceCalled int
}

func (m *mockRefresh) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startCalled++
	m.running = true
}
func (m *mockRefresh) Stop(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopCalled++
	m.running = false
}
func (m *mockRefresh) ForceRefresh(ctx context.Context) *models.Reading {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forceCalled++
	if m.forced != nil {
		m.cached = m.forced
	}
	return m.forced
}
func (m *mockRefresh) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}
func (m *mockRefresh) Cached() *models.Reading {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cached
}
func (m *mockRefresh) Interval() time.Duration { return m.interval }

type mockMonitoring struct {
	state models.RefreshState
	err   error
}

func (m *mockMonitoring) GetState(ctx context.Context) (models.RefreshState, error) {
	return m.state, m.err
}

type mockEventLog struct {
	resp     []models.RefreshEvent
	err      error
	lastFrom time.Time
	lastTo   time.Time
	lastType string
}

func (m *mockEventLog) List(ctx context.Context, f service.LogFilter) ([]models.RefreshEvent, error) {
	m.lastFrom = f.From
	m.lastTo = f.To
	m.lastType = f.Type
	return m.resp, m.err
}

// ---- Shared Test Helpers ----

func testRenderer() *render.Renderer {
	r, err := render.NewRenderer("en", time.UTC)
	if err != nil {
		panic(err)
	}
	return r
}

func newTestRouter(s *service.Service) *gin.Engine {
	return newTestRouterWith(s, Deps{Renderer: testRenderer()})
}

func newTestRouterWith(s *service.Service, deps Deps) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(s, deps, nil)
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}

func withHeaders(req *http.Request, hdr http.Header) *http.Request {
	for k, vv := range hdr {
		for _, v := range vv {
			req.Header.Add(k, v)
		}
	}
	return req
}
