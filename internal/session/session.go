package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"sensor_overlay/internal/logger"
	"sensor_overlay/internal/models"
	"sensor_overlay/internal/render"
	"sensor_overlay/internal/viewer"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Send/receive timing configuration and message size limits.
const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 1 << 14 // 16 KB, a frame carries two 4x4 matrices
	sendBuffer = 256
)

var errSlowConsumer = errors.New("send buffer full")

// Session is one connected viewer page.
type Session struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	log  *logger.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	out       chan []byte
	done      chan struct{}
	closeOnce sync.Once

	mu        sync.Mutex
	presenter *render.Presenter
	viewer    *RemoteViewer
	shim      *viewer.Shim
}

func newSession(h *Hub, conn *websocket.Conn) *Session {
	ctx, cancel := context.WithCancel(h.ctx)
	id := uuid.NewString()
	return &Session{
		id:     id,
		hub:    h,
		conn:   conn,
		log:    h.log.With("session", id),
		ctx:    ctx,
		cancel: cancel,
		out:    make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
	}
}

// ID returns the session identifier used in logs.
func (s *Session) ID() string { return s.id }

// run blocks until the connection ends.
func (s *Session) run() {
	defer s.close()
	go s.writeLoop()
	s.readLoop()
}

func (s *Session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.cancel()
		s.mu.Lock()
		rv := s.viewer
		s.mu.Unlock()
		if rv != nil {
			rv.close()
		}
		s.hub.unregister(s)
		_ = s.conn.Close()
		s.log.Infow("ws_session_closed")
	})
}

func (s *Session) enqueue(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}
	select {
	case s.out <- b:
		return nil
	case <-s.done:
		return ErrSessionClosed
	default:
		s.log.Warnw("ws_slow_consumer")
		go s.close()
		return errSlowConsumer
	}
}

func (s *Session) emitPatch(p patchMsg) {
	p.Type = msgPatch
	if err := s.enqueue(p); err != nil {
		s.log.Debugw("ws_patch_dropped", "slot", p.Slot, "op", p.Op, "err", err)
	}
}

func (s *Session) sendViewerCall(m viewerCallMsg) error {
	return s.enqueue(m)
}

func (s *Session) writeLoop() {
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ping.Stop()
		s.close()
	}()

	for {
		select {
		case <-s.done:
			return
		case <-s.ctx.Done():
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = s.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return
		case <-ping.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.log.Infow("ws_ping_failed", "err", err)
				return
			}
		case b := <-s.out:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				s.log.Infow("ws_write_failed", "err", err)
				return
			}
		}
	}
}

func (s *Session) readLoop() {
	s.conn.SetReadLimit(maxMsgSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.log.Infow("ws_read_closed", "err", err)
			return
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
		if err := s.dispatch(data); err != nil {
			s.log.Warnw("ws_bad_message", "err", err)
		}
	}
}

func (s *Session) dispatch(data []byte) error {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}

	switch env.Type {
	case msgHello:
		var m helloMsg
		if err := json.Unmarshal(data, &m); err != nil {
			return err
		}
		s.handleHello(m)
	case msgAck:
		var m ackMsg
		if err := json.Unmarshal(data, &m); err != nil {
			return err
		}
		if rv := s.remoteViewer(); rv != nil {
			rv.resolve(m.ID, m.Error)
		}
	case msgFrame:
		var m frameMsg
		if err := json.Unmarshal(data, &m); err != nil {
			return err
		}
		if sh := s.getShim(); sh != nil {
			sh.HandleFrame(m)
		}
	case msgResize:
		var m resizeMsg
		if err := json.Unmarshal(data, &m); err != nil {
			return err
		}
		if sh := s.getShim(); sh != nil {
			sh.HandleResize(m.Width, m.Height)
		}
	case msgVisibility:
		var m visibilityMsg
		if err := json.Unmarshal(data, &m); err != nil {
			return err
		}
		s.hub.setVisible(s.ctx, s, !m.Hidden)
	case msgClick:
		var m clickMsg
		if err := json.Unmarshal(data, &m); err != nil {
			return err
		}
		if sh := s.getShim(); sh != nil {
			sh.HandleClick(m.Target)
		}
	case msgAnnotationClick:
		var m annotationClickMsg
		if err := json.Unmarshal(data, &m); err != nil {
			return err
		}
		if sh := s.getShim(); sh != nil {
			// opening the panel may hit the sensor API
			go sh.HandleAnnotationClick(s.ctx, m.ID)
		}
	default:
		s.log.Debugw("ws_unknown_message", "type", env.Type)
	}
	return nil
}

func (s *Session) handleHello(m helloMsg) {
	s.mu.Lock()
	if s.shim != nil {
		s.mu.Unlock()
		s.log.Debugw("ws_duplicate_hello")
		return
	}
	opts := s.hub.opts
	surface := newSurface(m.Slots, s.emitPatch)
	presenter := render.NewPresenter(surface, opts.Renderer, render.PresenterOptions{
		LabelFlash: opts.Display.LabelFlash,
		PanelDip:   opts.Display.PanelDip,
	})
	rv := newRemoteViewer(s.sendViewerCall)
	var ctrl viewer.Controller
	if opts.Controller != nil {
		ctrl = pageController{Controller: opts.Controller, hub: s.hub}
	}
	shim := viewer.NewShim(rv, presenter, opts.Fetcher, ctrl, viewer.ShimOptions{
		Viewer:      opts.Viewer,
		Language:    opts.Display.Language,
		LabelOffset: opts.Display.LabelOffset,
		Width:       m.Width,
		Height:      m.Height,
		Log:         s.log.Named("shim"),
	})
	s.presenter, s.viewer, s.shim = presenter, rv, shim
	s.mu.Unlock()

	s.log.Infow("ws_hello", "slots", len(m.Slots), "hidden", m.Hidden)
	s.hub.register(s, !m.Hidden)

	go func() {
		if err := shim.Init(s.ctx); err != nil {
			s.log.Warnw("shim_init_failed", "err", err)
		}
	}()
}

func (s *Session) publish(r models.Reading) {
	s.mu.Lock()
	p := s.presenter
	s.mu.Unlock()
	if p != nil {
		p.Publish(r)
	}
}

func (s *Session) remoteViewer() *RemoteViewer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewer
}

func (s *Session) getShim() *viewer.Shim {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shim
}
