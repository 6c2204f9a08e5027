package viewer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"sensor_overlay/internal/config"
	"sensor_overlay/internal/logger"
	"sensor_overlay/internal/models"
	"sensor_overlay/internal/render"

	"github.com/google/uuid"
)

const defaultLabelOffset = 35.0

// Overlay is what the shim paints on the page.
type Overlay interface {
	MountSidebarToggle()
	ToggleSidebar()
	MountLabel(r *models.Reading)
	PositionLabel(left, top float64)
	OpenPanel(ctx context.Context, cached *models.Reading, fetch func(context.Context) *models.Reading)
	ClosePanel()
}

// Fetcher yields the latest reading, or nil.
type Fetcher interface {
	FetchReading(ctx context.Context) *models.Reading
}

// Controller is the part of the refresh controller the shim drives.
type Controller interface {
	Seed(r *models.Reading)
	Cached() *models.Reading
	Start(ctx context.Context)
}

// ShimOptions carries the page-level settings of one shim.
type ShimOptions struct {
	Viewer      config.ViewerConfig
	Language    string
	LabelOffset float64
	// Width and Height are the initial page size reported by the browser.
	Width  int
	Height int
	Log    *logger.Logger
}

// Shim wires one page's viewer to the overlay: it runs the startup sequence
// and keeps the floating label glued to the sensor anchor.
type Shim struct {
	viewer  Viewer
	overlay Overlay
	fetcher Fetcher
	ctrl    Controller
	opts    ShimOptions
	log     *logger.Logger

	mu           sync.Mutex
	ready        bool
	annotationID string
	lastFrame    *Frame
}

func NewShim(v Viewer, o Overlay, f Fetcher, c Controller, opts ShimOptions) *Shim {
	if opts.LabelOffset == 0 {
		opts.LabelOffset = defaultLabelOffset
	}
	if opts.Log == nil {
		opts.Log = logger.Nop()
	}
	return &Shim{viewer: v, overlay: o, fetcher: f, ctrl: c, opts: opts, log: opts.Log}
}

type initStep struct {
	name string
	run  func(ctx context.Context) error
}

func (s *Shim) steps() []initStep {
	vc := s.opts.Viewer
	var pc PointCloud
	return []initStep{
		{"sidebar_toggle", func(context.Context) error {
			s.overlay.MountSidebarToggle()
			return nil
		}},
		{"create_viewer", s.viewer.Create},
		{"configure_viewer", func(context.Context) error {
			return firstErr(
				s.viewer.SetEDLEnabled(vc.EDL),
				s.viewer.SetFOV(vc.FOV),
				s.viewer.SetPointBudget(vc.PointBudget),
				s.viewer.LoadSettingsFromURL(),
				s.viewer.SetBackground(vc.Background),
				s.viewer.SetDescription(vc.Description),
			)
		}},
		{"fit_window", func(context.Context) error {
			if s.opts.Width <= 0 || s.opts.Height <= 0 {
				return nil
			}
			return s.viewer.Resize(s.opts.Width, s.opts.Height)
		}},
		{"load_gui", func(ctx context.Context) error {
			if err := s.viewer.LoadGUI(ctx); err != nil {
				return err
			}
			return s.viewer.SetLanguage(s.opts.Language)
		}},
		{"load_pointcloud", func(ctx context.Context) error {
			if vc.LoadTimeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, vc.LoadTimeout)
				defer cancel()
			}
			var err error
			pc, err = s.viewer.LoadPointCloud(ctx, vc.PointCloudURL, vc.PointCloudName)
			return err
		}},
		{"material", func(context.Context) error {
			return pc.SetMaterial(Material{Size: vc.PointSize, PointSizeType: vc.PointSizeType, Shape: vc.PointShape})
		}},
		{"fit_to_screen", func(context.Context) error { return s.viewer.FitToScreen() }},
		{"initial_reading", func(ctx context.Context) error {
			r := s.fetcher.FetchReading(ctx)
			s.ctrl.Seed(r)
			if r == nil {
				r = s.ctrl.Cached()
			}
			s.overlay.MountLabel(r)
			return nil
		}},
		{"annotation", func(context.Context) error {
			id := uuid.NewString()
			err := s.viewer.AddAnnotation(Annotation{
				ID:             id,
				Position:       vc.Anchor,
				Title:          vc.AnnotationTitle,
				CameraPosition: vc.CameraPosition,
				CameraTarget:   vc.Anchor,
			})
			if err != nil {
				return err
			}
			s.mu.Lock()
			s.annotationID = id
			s.mu.Unlock()
			return nil
		}},
		{"subscribe_updates", func(context.Context) error { return s.viewer.SubscribeUpdates() }},
		{"start_refresh", func(ctx context.Context) error {
			s.ctrl.Start(ctx)
			return nil
		}},
	}
}

// Init runs the startup sequence in order and stops at the first failing step.
func (s *Shim) Init(ctx context.Context) error {
	if s.viewer == nil {
		return ErrNoViewer
	}
	for _, st := range s.steps() {
		start := time.Now()
		if err := st.run(ctx); err != nil {
			s.log.Errorw("shim_step_failed", "step", st.name, "err", err)
			return fmt.Errorf("init %s: %w", st.name, err)
		}
		s.log.Debugw("shim_step_done", "step", st.name, "took", time.Since(start))
	}
	s.mu.Lock()
	s.ready = true
	s.mu.Unlock()
	s.log.Infow("shim_ready")
	return nil
}

// Ready reports whether Init completed.
func (s *Shim) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// HandleFrame repositions the label for the latest camera state.
func (s *Shim) HandleFrame(f Frame) {
	s.mu.Lock()
	if !s.ready {
		s.mu.Unlock()
		return
	}
	fc := f
	s.lastFrame = &fc
	s.mu.Unlock()
	s.place(f)
}

// HandleResize resizes the viewer and re-places the label for the new aspect.
func (s *Shim) HandleResize(width, height int) {
	s.mu.Lock()
	if !s.ready || width <= 0 || height <= 0 {
		s.mu.Unlock()
		return
	}
	var frame *Frame
	if s.lastFrame != nil {
		f := *s.lastFrame
		f.Width, f.Height = float64(width), float64(height)
		f.Projection = f.Projection.WithAspect(f.Width / f.Height)
		s.lastFrame = &f
		frame = &f
	}
	s.mu.Unlock()

	if err := s.viewer.Resize(width, height); err != nil {
		s.log.Warnw("viewer_resize_failed", "err", err)
		return
	}
	if frame != nil {
		s.place(*frame)
	}
}

// HandleAnnotationClick opens the panel when the sensor annotation is clicked.
func (s *Shim) HandleAnnotationClick(ctx context.Context, id string) {
	s.mu.Lock()
	match := s.annotationID != "" && s.annotationID == id
	s.mu.Unlock()
	if !match {
		return
	}
	s.overlay.OpenPanel(ctx, s.ctrl.Cached(), s.fetcher.FetchReading)
}

// HandleClick reacts to clicks on page controls.
func (s *Shim) HandleClick(target render.Slot) {
	switch target {
	case render.SlotClosePanel, render.SlotOverlay:
		s.overlay.ClosePanel()
	case render.SlotSidebarToggle:
		s.overlay.ToggleSidebar()
	}
}

func (s *Shim) place(f Frame) {
	left, top, ok := LabelPosition(f, Vec3(s.opts.Viewer.Anchor), s.opts.LabelOffset)
	if !ok {
		return
	}
	s.overlay.PositionLabel(left, top)
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
