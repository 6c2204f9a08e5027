package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"sensor_overlay/internal/viewer"

	"github.com/google/uuid"
)

var (
	ErrSessionClosed = errors.New("session closed")
	ErrViewerClosed  = errors.New("viewer call failed in browser")
)

// RemoteViewer drives the Potree viewer of one page over the websocket.
// Calls that wait for the browser are matched to their ack by id.
type RemoteViewer struct {
	send func(viewerCallMsg) error

	mu      sync.Mutex
	pending map[string]chan error
	closed  bool
}

var _ viewer.Viewer = (*RemoteViewer)(nil)

func newRemoteViewer(send func(viewerCallMsg) error) *RemoteViewer {
	return &RemoteViewer{send: send, pending: map[string]chan error{}}
}

func (v *RemoteViewer) call(method string, args ...any) error {
	v.mu.Lock()
	closed := v.closed
	v.mu.Unlock()
	if closed {
		return ErrSessionClosed
	}
	return v.send(viewerCallMsg{Type: msgViewer, Method: method, Args: args})
}

func (v *RemoteViewer) await(ctx context.Context, method string, args ...any) error {
	id := uuid.NewString()
	done := make(chan error, 1)

	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return ErrSessionClosed
	}
	v.pending[id] = done
	v.mu.Unlock()

	defer func() {
		v.mu.Lock()
		delete(v.pending, id)
		v.mu.Unlock()
	}()

	if err := v.send(viewerCallMsg{Type: msgViewer, ID: id, Method: method, Args: args, Await: true}); err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", method, ctx.Err())
	}
}

// resolve completes the pending call id; unknown ids are ignored.
func (v *RemoteViewer) resolve(id, errMsg string) {
	v.mu.Lock()
	done, ok := v.pending[id]
	v.mu.Unlock()
	if !ok {
		return
	}
	var err error
	if errMsg != "" {
		err = fmt.Errorf("%w: %s", ErrViewerClosed, errMsg)
	}
	deliver(done, err)
}

// close fails every pending call and rejects new ones.
func (v *RemoteViewer) close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	v.closed = true
	for id, done := range v.pending {
		deliver(done, ErrSessionClosed)
		delete(v.pending, id)
	}
}

// deliver never blocks; only the first result of a call counts.
func deliver(done chan error, err error) {
	select {
	case done <- err:
	default:
	}
}

func (v *RemoteViewer) Create(ctx context.Context) error  { return v.call("create") }
func (v *RemoteViewer) SetEDLEnabled(on bool) error       { return v.call("setEDLEnabled", on) }
func (v *RemoteViewer) SetFOV(deg float64) error          { return v.call("setFOV", deg) }
func (v *RemoteViewer) SetPointBudget(points int) error   { return v.call("setPointBudget", points) }
func (v *RemoteViewer) LoadSettingsFromURL() error        { return v.call("loadSettingsFromURL") }
func (v *RemoteViewer) SetBackground(name string) error   { return v.call("setBackground", name) }
func (v *RemoteViewer) SetDescription(text string) error  { return v.call("setDescription", text) }
func (v *RemoteViewer) LoadGUI(ctx context.Context) error { return v.await(ctx, "loadGUI") }
func (v *RemoteViewer) SetLanguage(lang string) error     { return v.call("setLanguage", lang) }
func (v *RemoteViewer) FitToScreen() error                { return v.call("fitToScreen") }
func (v *RemoteViewer) SubscribeUpdates() error           { return v.call("subscribeUpdates") }
func (v *RemoteViewer) Resize(width, height int) error    { return v.call("resize", width, height) }

func (v *RemoteViewer) AddAnnotation(a viewer.Annotation) error {
	return v.call("addAnnotation", a)
}

func (v *RemoteViewer) LoadPointCloud(ctx context.Context, url, name string) (viewer.PointCloud, error) {
	if err := v.await(ctx, "loadPointCloud", url, name); err != nil {
		return nil, err
	}
	return remotePointCloud{v: v}, nil
}

type remotePointCloud struct {
	v *RemoteViewer
}

func (p remotePointCloud) SetMaterial(m viewer.Material) error {
	return p.v.call("setMaterial", m)
}
