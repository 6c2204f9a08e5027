package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"sensor_overlay/internal/models"
)

type fakeTicker struct {
	ch      chan time.Time
	stopped atomic.Bool
}

func (f *fakeTicker) C() <-chan time.Time { return f.ch }
func (f *fakeTicker) Stop()               { f.stopped.Store(true) }

type tickerRecorder struct {
	mu   sync.Mutex
	made []*fakeTicker
	d    []time.Duration
}

func (r *tickerRecorder) New(d time.Duration) Ticker {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := &fakeTicker{ch: make(chan time.Time, 1)}
	r.made = append(r.made, t)
	r.d = append(r.d, d)
	return t
}

func (r *tickerRecorder) live() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, t := range r.made {
		if !t.stopped.Load() {
			n++
		}
	}
	return n
}

func (r *tickerRecorder) last() *fakeTicker {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.made[len(r.made)-1]
}

// scriptedFetcher returns its readings in order; once exhausted it returns nil.
type scriptedFetcher struct {
	mu       sync.Mutex
	readings []*models.Reading
	calls    int32
	gate     chan struct{}
	entered  chan struct{}

	// set when the context was already cancelled once the fetch resumed
	cancelled atomic.Bool
}

func (f *scriptedFetcher) FetchReading(ctx context.Context) *models.Reading {
	atomic.AddInt32(&f.calls, 1)
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.gate != nil {
		<-f.gate
	}
	if ctx.Err() != nil {
		f.cancelled.Store(true)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.readings) == 0 {
		return nil
	}
	r := f.readings[0]
	f.readings = f.readings[1:]
	return r
}

type recordingPublisher struct {
	mu  sync.Mutex
	got []models.Reading
}

func (p *recordingPublisher) Publish(r models.Reading) {
	p.mu.Lock()
	p.got = append(p.got, r)
	p.mu.Unlock()
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.got)
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met: %s", msg)
}

func reading(temp float64) *models.Reading {
	return &models.Reading{Temperature: temp, Humidity: 45, CO2: 500, Timestamp: time.UnixMilli(1700000000000)}
}

func newTestController(f Fetcher, tr *tickerRecorder, pub Publisher) (*RefreshController, *fakeEventRepo, *stateRepoStub) {
	events := &fakeEventRepo{}
	states := &stateRepoStub{}
	c := NewRefreshController(f, RefreshOptions{
		NewTicker: tr.New,
		Publisher: pub,
		Events:    events,
		States:    states,
	})
	return c, events, states
}

func TestRefreshController_StartTwiceKeepsOneTicker(t *testing.T) {
	t.Parallel()

	tr := &tickerRecorder{}
	f := &scriptedFetcher{}
	c, events, _ := newTestController(f, tr, nil)
	ctx := context.Background()

	c.Start(ctx)
	c.Start(ctx)

	if len(tr.made) != 2 {
		t.Fatalf("tickers created = %d; want 2", len(tr.made))
	}
	if !tr.made[0].stopped.Load() {
		t.Fatal("first ticker should be stopped by the second Start")
	}
	if n := tr.live(); n != 1 {
		t.Fatalf("live tickers = %d; want 1", n)
	}
	if tr.d[1] != DefaultRefreshInterval {
		t.Fatalf("interval = %v; want %v", tr.d[1], DefaultRefreshInterval)
	}
	if !c.Running() {
		t.Fatal("controller should be running")
	}
	if got := events.types(); len(got) != 2 || got[0] != models.EventStart {
		t.Fatalf("events = %v", got)
	}

	// the replaced ticker must not fire any more
	tr.made[0].ch <- time.Now()
	time.Sleep(50 * time.Millisecond)
	if n := atomic.LoadInt32(&f.calls); n != 0 {
		t.Fatalf("fetch calls after a tick on the replaced ticker = %d; want 0", n)
	}

	// neither does the live one once stopped
	c.Stop(ctx)
	tr.made[1].ch <- time.Now()
	time.Sleep(50 * time.Millisecond)
	if n := atomic.LoadInt32(&f.calls); n != 0 {
		t.Fatalf("fetch calls after Stop = %d; want 0", n)
	}
}

func TestRefreshController_StopIsIdempotent(t *testing.T) {
	t.Parallel()

	tr := &tickerRecorder{}
	c, events, states := newTestController(&scriptedFetcher{}, tr, nil)
	ctx := context.Background()

	c.Stop(ctx)
	if len(events.types()) != 0 {
		t.Fatal("Stop while stopped must not log anything")
	}

	c.Start(ctx)
	c.Stop(ctx)
	c.Stop(ctx)

	if c.Running() {
		t.Fatal("controller should be stopped")
	}
	if tr.live() != 0 {
		t.Fatal("no ticker should be live after Stop")
	}
	if got := events.types(); len(got) != 2 || got[1] != models.EventStop {
		t.Fatalf("events = %v; want [START STOP]", got)
	}
	if st, ok := states.last(); !ok || st.IsRunning {
		t.Fatalf("last persisted state = %+v", st)
	}
}

func TestRefreshController_TickUpdatesCacheAndPublishes(t *testing.T) {
	t.Parallel()

	tr := &tickerRecorder{}
	pub := &recordingPublisher{}
	f := &scriptedFetcher{readings: []*models.Reading{reading(21)}}
	c, _, states := newTestController(f, tr, pub)
	ctx := context.Background()

	c.Start(ctx)
	defer c.Stop(ctx)

	tr.last().ch <- time.Now()
	eventually(t, func() bool { return pub.count() == 1 }, "publish after tick")

	cached := c.Cached()
	if cached == nil || cached.Temperature != 21 {
		t.Fatalf("cached = %+v", cached)
	}
	eventually(t, func() bool {
		st, ok := states.last()
		return ok && !st.LastSuccessAt.IsZero() && st.ConsecutiveMisses == 0
	}, "persisted success")
}

func TestRefreshController_NilKeepsCache(t *testing.T) {
	t.Parallel()

	pub := &recordingPublisher{}
	c, events, states := newTestController(&scriptedFetcher{}, &tickerRecorder{}, pub)
	c.Seed(reading(19))

	if got := c.ForceRefresh(context.Background()); got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
	if cached := c.Cached(); cached == nil || cached.Temperature != 19 {
		t.Fatalf("cache changed on miss: %+v", cached)
	}
	if pub.count() != 0 {
		t.Fatal("miss must not publish")
	}
	if got := events.types(); len(got) != 1 || got[0] != models.EventMiss {
		t.Fatalf("events = %v; want [MISS]", got)
	}
	if st, _ := states.last(); st.ConsecutiveMisses != 1 {
		t.Fatalf("misses = %d; want 1", st.ConsecutiveMisses)
	}
}

func TestRefreshController_SeedIgnoresNil(t *testing.T) {
	t.Parallel()

	c, _, _ := newTestController(&scriptedFetcher{}, &tickerRecorder{}, nil)
	c.Seed(nil)
	if c.Cached() != nil {
		t.Fatal("Seed(nil) must leave the cache empty")
	}
}

func TestRefreshController_VisibilityCycle(t *testing.T) {
	t.Parallel()

	tr := &tickerRecorder{}
	pub := &recordingPublisher{}
	f := &scriptedFetcher{readings: []*models.Reading{reading(22)}}
	c, _, _ := newTestController(f, tr, pub)
	ctx := context.Background()

	c.Start(ctx)
	c.SetVisible(ctx, false)
	if c.Running() || tr.live() != 0 {
		t.Fatal("hidden page must stop the timer")
	}
	if atomic.LoadInt32(&f.calls) != 0 {
		t.Fatal("hiding must not fetch")
	}

	c.SetVisible(ctx, true)
	defer c.Stop(ctx)
	if !c.Running() || tr.live() != 1 {
		t.Fatal("visible page must restart exactly one timer")
	}
	if atomic.LoadInt32(&f.calls) != 1 {
		t.Fatalf("fetch calls = %d; want 1 immediate refresh", f.calls)
	}
	if pub.count() != 1 {
		t.Fatalf("publishes = %d; want 1", pub.count())
	}
}

func TestRefreshController_ConcurrentRefreshesShareFetch(t *testing.T) {
	t.Parallel()

	f := &scriptedFetcher{
		readings: []*models.Reading{reading(23), reading(24)},
		gate:     make(chan struct{}),
		entered:  make(chan struct{}, 2),
	}
	pub := &recordingPublisher{}
	c, _, _ := newTestController(f, &tickerRecorder{}, pub)

	var wg sync.WaitGroup
	results := make([]*models.Reading, 2)
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0] = c.ForceRefresh(context.Background())
	}()
	<-f.entered

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[1] = c.ForceRefresh(context.Background())
	}()
	time.Sleep(50 * time.Millisecond)
	close(f.gate)
	wg.Wait()

	if n := atomic.LoadInt32(&f.calls); n != 1 {
		t.Fatalf("fetch calls = %d; want 1", n)
	}
	if pub.count() != 1 {
		t.Fatalf("publishes = %d; want 1", pub.count())
	}
	for i, r := range results {
		if r == nil || r.Temperature != 23 {
			t.Fatalf("result %d = %+v", i, r)
		}
	}
}

func TestRefreshController_LeaderLeavingDoesNotCancelSharedFetch(t *testing.T) {
	t.Parallel()

	f := &scriptedFetcher{
		readings: []*models.Reading{reading(25)},
		gate:     make(chan struct{}),
		entered:  make(chan struct{}, 1),
	}
	pub := &recordingPublisher{}
	c, events, _ := newTestController(f, &tickerRecorder{}, pub)

	leaderCtx, leave := context.WithCancel(context.Background())
	leader := make(chan *models.Reading, 1)
	go func() { leader <- c.ForceRefresh(leaderCtx) }()
	<-f.entered

	follower := make(chan *models.Reading, 1)
	go func() { follower <- c.ForceRefresh(context.Background()) }()
	time.Sleep(20 * time.Millisecond)

	leave()
	if got := <-leader; got != nil {
		t.Fatalf("a caller that left gets nothing, got %+v", got)
	}
	close(f.gate)

	got := <-follower
	if got == nil || got.Temperature != 25 {
		t.Fatalf("follower = %+v; want the shared reading", got)
	}
	if f.cancelled.Load() {
		t.Fatal("the shared fetch saw the leader's cancellation")
	}
	if n := atomic.LoadInt32(&f.calls); n != 1 {
		t.Fatalf("fetch calls = %d; want 1", n)
	}
	if pub.count() != 1 {
		t.Fatalf("publishes = %d; want 1", pub.count())
	}
	if got := events.types(); len(got) != 1 || got[0] != models.EventRefresh {
		t.Fatalf("events = %v; want [REFRESH]", got)
	}
}
