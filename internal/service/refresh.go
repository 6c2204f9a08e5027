package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"sensor_overlay/internal/logger"
	"sensor_overlay/internal/metrics"
	"sensor_overlay/internal/models"
	"sensor_overlay/internal/repository"

	"golang.org/x/sync/singleflight"
)

// DefaultRefreshInterval is used when no interval is configured.
const DefaultRefreshInterval = 30 * time.Second

// Fetcher yields the latest reading, or nil when nothing new is available.
type Fetcher interface {
	FetchReading(ctx context.Context) *models.Reading
}

// Publisher receives every successful refresh (label update, panel refresh).
type Publisher interface {
	Publish(r models.Reading)
}

// Ticker is the part of *time.Ticker the controller relies on.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory creates a ticker firing every d.
type TickerFactory func(d time.Duration) Ticker

type timeTicker struct{ t *time.Ticker }

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

// NewTimeTicker is the production TickerFactory.
func NewTimeTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}

// RefreshOptions configures a RefreshController. Only Fetcher is required.
type RefreshOptions struct {
	Interval  time.Duration
	NewTicker TickerFactory
	Publisher Publisher
	States    repository.StateRepo
	Events    repository.EventRepo
	Metrics   *metrics.Metrics
	Log       *logger.Logger
	// Context bounds the fetches started by the timer; defaults to Background.
	Context context.Context
}

// RefreshController owns the polling timer and the single cached reading.
// At most one ticker is live at any time.
type RefreshController struct {
	fetcher   Fetcher
	interval  time.Duration
	newTicker TickerFactory
	states    repository.StateRepo
	events    repository.EventRepo
	metrics   *metrics.Metrics
	log       *logger.Logger
	baseCtx   context.Context
	group     singleflight.Group

	mu        sync.Mutex
	ticker    Ticker
	done      chan struct{}
	cached    *models.Reading
	publisher Publisher
	state     models.RefreshState
}

func NewRefreshController(f Fetcher, opts RefreshOptions) *RefreshController {
	if opts.Interval <= 0 {
		opts.Interval = DefaultRefreshInterval
	}
	if opts.NewTicker == nil {
		opts.NewTicker = NewTimeTicker
	}
	if opts.Log == nil {
		opts.Log = logger.Nop()
	}
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	return &RefreshController{
		fetcher:   f,
		interval:  opts.Interval,
		newTicker: opts.NewTicker,
		states:    opts.States,
		events:    opts.Events,
		metrics:   opts.Metrics,
		log:       opts.Log,
		baseCtx:   opts.Context,
		publisher: opts.Publisher,
		state: models.RefreshState{
			ID:         1,
			IntervalMs: opts.Interval.Milliseconds(),
		},
	}
}

// SetPublisher swaps the sink notified on successful refreshes.
func (c *RefreshController) SetPublisher(p Publisher) {
	c.mu.Lock()
	c.publisher = p
	c.mu.Unlock()
}

// Interval returns the configured polling period.
func (c *RefreshController) Interval() time.Duration { return c.interval }

// Running reports whether a ticker is scheduled.
func (c *RefreshController) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ticker != nil
}

// Cached returns a copy of the cached reading, or nil before the first success.
func (c *RefreshController) Cached() *models.Reading {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cached == nil {
		return nil
	}
	r := *c.cached
	return &r
}

// Seed stores r as the cached reading without publishing it. nil is ignored.
func (c *RefreshController) Seed(r *models.Reading) {
	if r == nil {
		return
	}
	c.mu.Lock()
	cp := *r
	c.cached = &cp
	c.mu.Unlock()
	c.observe(cp)
}

// Start (re)schedules the periodic refresh. Any previous ticker is cancelled
// first, so repeated calls leave exactly one live ticker.
func (c *RefreshController) Start(ctx context.Context) {
	c.mu.Lock()
	c.cancelLocked()
	t := c.newTicker(c.interval)
	done := make(chan struct{})
	c.ticker, c.done = t, done
	c.state.IsRunning = true
	snap := c.state
	c.mu.Unlock()

	go c.loop(t, done)

	c.setRunningGauge(true)
	c.log.Infow("refresh_started", "interval", c.interval.String())
	c.record(ctx, models.EventStart, "refresh timer started", map[string]any{"interval_ms": c.interval.Milliseconds()})
	c.persist(ctx, snap)
}

// Stop cancels the ticker. Calling it while stopped does nothing.
// An in-flight fetch is not interrupted.
func (c *RefreshController) Stop(ctx context.Context) {
	c.mu.Lock()
	if c.ticker == nil {
		c.mu.Unlock()
		return
	}
	c.cancelLocked()
	c.state.IsRunning = false
	snap := c.state
	c.mu.Unlock()

	c.setRunningGauge(false)
	c.log.Infow("refresh_stopped")
	c.record(ctx, models.EventStop, "refresh timer stopped", nil)
	c.persist(ctx, snap)
}

// SetVisible follows page visibility: hidden stops polling, visible restarts
// it and refreshes immediately.
func (c *RefreshController) SetVisible(ctx context.Context, visible bool) {
	if !visible {
		c.Stop(ctx)
		return
	}
	c.Start(ctx)
	c.ForceRefresh(ctx)
}

// ForceRefresh performs one refresh cycle now and returns the fetched reading
// (nil on a miss). Concurrent callers share a single upstream request, which
// runs under the controller's context: a caller that goes away does not cancel
// the fetch for the others.
func (c *RefreshController) ForceRefresh(ctx context.Context) *models.Reading {
	ch := c.group.DoChan("refresh", func() (any, error) {
		return c.refresh(c.baseCtx), nil
	})
	var v any
	select {
	case res := <-ch:
		v = res.Val
	case <-ctx.Done():
		return nil
	}
	r, _ := v.(*models.Reading)
	if r == nil {
		return nil
	}
	cp := *r
	return &cp
}

func (c *RefreshController) cancelLocked() {
	if c.ticker == nil {
		return
	}
	c.ticker.Stop()
	close(c.done)
	c.ticker, c.done = nil, nil
}

func (c *RefreshController) loop(t Ticker, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-c.baseCtx.Done():
			return
		case <-t.C():
			// a tick racing with Stop must not fire
			select {
			case <-done:
				return
			default:
			}
			c.ForceRefresh(c.baseCtx)
		}
	}
}

func (c *RefreshController) refresh(ctx context.Context) *models.Reading {
	r := c.fetcher.FetchReading(ctx)
	now := time.Now().UTC()

	c.mu.Lock()
	c.state.LastAttemptAt = now
	if r == nil {
		c.state.ConsecutiveMisses++
		snap := c.state
		c.mu.Unlock()

		c.log.Warnw("refresh_miss", "consecutive", snap.ConsecutiveMisses)
		c.record(ctx, models.EventMiss, "no reading available, keeping cached value",
			map[string]any{"consecutive_misses": snap.ConsecutiveMisses})
		c.persist(ctx, snap)
		return nil
	}

	cp := *r
	c.cached = &cp
	c.state.LastSuccessAt = now
	c.state.ConsecutiveMisses = 0
	snap := c.state
	pub := c.publisher
	c.mu.Unlock()

	c.observe(cp)
	if pub != nil {
		pub.Publish(cp)
	}
	c.log.Debugw("refresh_ok", "temperature", cp.Temperature, "humidity", cp.Humidity, "co2", cp.CO2)
	c.record(ctx, models.EventRefresh,
		fmt.Sprintf("%.1f°C %.1f%% %.0f ppm", cp.Temperature, cp.Humidity, cp.CO2),
		map[string]any{
			"temperature": cp.Temperature,
			"humidity":    cp.Humidity,
			"co2":         cp.CO2,
			"timestamp":   cp.Timestamp.UTC(),
		})
	c.persist(ctx, snap)
	return &cp
}

func (c *RefreshController) observe(r models.Reading) {
	if c.metrics == nil {
		return
	}
	c.metrics.Temperature.Set(r.Temperature)
	c.metrics.Humidity.Set(r.Humidity)
	c.metrics.CO2.Set(r.CO2)
}

func (c *RefreshController) setRunningGauge(running bool) {
	if c.metrics == nil {
		return
	}
	if running {
		c.metrics.Running.Set(1)
	} else {
		c.metrics.Running.Set(0)
	}
}

// record appends to the refresh log; failures are logged and swallowed.
func (c *RefreshController) record(ctx context.Context, typ, msg string, meta any) {
	if c.events == nil {
		return
	}
	ev := models.RefreshEvent{
		OccurredAt:  time.Now().UTC(),
		Type:        typ,
		Description: msg,
		Metadata:    meta,
	}
	if err := c.events.Append(ctx, ev); err != nil {
		c.log.Errorw("refresh_event_append_failed", "type", typ, "err", err)
	}
}

func (c *RefreshController) persist(ctx context.Context, s models.RefreshState) {
	if c.states == nil {
		return
	}
	s.UpdatedAt = time.Now().UTC()
	if err := c.states.Save(ctx, s); err != nil {
		c.log.Errorw("refresh_state_save_failed", "err", err)
	}
}
