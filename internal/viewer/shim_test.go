package viewer

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"sensor_overlay/internal/config"
	"sensor_overlay/internal/models"
	"sensor_overlay/internal/render"
)

type recordingViewer struct {
	calls       []string
	annotations []Annotation
	material    Material
	failOn      string
}

func (v *recordingViewer) record(call string) error {
	v.calls = append(v.calls, call)
	if v.failOn != "" && strings.HasPrefix(call, v.failOn) {
		return errors.New(call + " failed")
	}
	return nil
}

func (v *recordingViewer) Create(ctx context.Context) error { return v.record("Create") }
func (v *recordingViewer) SetEDLEnabled(on bool) error      { return v.record(fmt.Sprintf("SetEDLEnabled(%v)", on)) }
func (v *recordingViewer) SetFOV(deg float64) error         { return v.record(fmt.Sprintf("SetFOV(%v)", deg)) }
func (v *recordingViewer) SetPointBudget(n int) error       { return v.record(fmt.Sprintf("SetPointBudget(%d)", n)) }
func (v *recordingViewer) LoadSettingsFromURL() error       { return v.record("LoadSettingsFromURL") }
func (v *recordingViewer) SetBackground(bg string) error    { return v.record("SetBackground(" + bg + ")") }
func (v *recordingViewer) SetDescription(d string) error    { return v.record("SetDescription(" + d + ")") }
func (v *recordingViewer) LoadGUI(ctx context.Context) error {
	return v.record("LoadGUI")
}
func (v *recordingViewer) SetLanguage(lang string) error { return v.record("SetLanguage(" + lang + ")") }
func (v *recordingViewer) LoadPointCloud(ctx context.Context, url, name string) (PointCloud, error) {
	if err := v.record("LoadPointCloud(" + name + ")"); err != nil {
		return nil, err
	}
	return cloudFunc(func(m Material) error {
		v.material = m
		return v.record("SetMaterial")
	}), nil
}
func (v *recordingViewer) FitToScreen() error { return v.record("FitToScreen") }
func (v *recordingViewer) AddAnnotation(a Annotation) error {
	v.annotations = append(v.annotations, a)
	return v.record("AddAnnotation")
}
func (v *recordingViewer) SubscribeUpdates() error { return v.record("SubscribeUpdates") }
func (v *recordingViewer) Resize(w, h int) error   { return v.record(fmt.Sprintf("Resize(%d,%d)", w, h)) }

type cloudFunc func(m Material) error

func (f cloudFunc) SetMaterial(m Material) error { return f(m) }

type recordingOverlay struct {
	calls     []string
	mounted   *models.Reading
	positions [][2]float64
	opened    *models.Reading
}

func (o *recordingOverlay) MountSidebarToggle() { o.calls = append(o.calls, "MountSidebarToggle") }
func (o *recordingOverlay) ToggleSidebar()      { o.calls = append(o.calls, "ToggleSidebar") }
func (o *recordingOverlay) MountLabel(r *models.Reading) {
	o.calls = append(o.calls, "MountLabel")
	o.mounted = r
}
func (o *recordingOverlay) PositionLabel(left, top float64) {
	o.positions = append(o.positions, [2]float64{left, top})
}
func (o *recordingOverlay) OpenPanel(ctx context.Context, cached *models.Reading, fetch func(context.Context) *models.Reading) {
	o.calls = append(o.calls, "OpenPanel")
	o.opened = cached
	if o.opened == nil {
		o.opened = fetch(ctx)
	}
}
func (o *recordingOverlay) ClosePanel() { o.calls = append(o.calls, "ClosePanel") }

type stubFetcher struct {
	r     *models.Reading
	calls int
}

func (f *stubFetcher) FetchReading(context.Context) *models.Reading {
	f.calls++
	return f.r
}

type stubController struct {
	seeded  []*models.Reading
	cached  *models.Reading
	started int
}

func (c *stubController) Seed(r *models.Reading) {
	c.seeded = append(c.seeded, r)
	if r != nil {
		c.cached = r
	}
}
func (c *stubController) Cached() *models.Reading { return c.cached }
func (c *stubController) Start(context.Context)   { c.started++ }

func testViewerConfig() config.ViewerConfig {
	return config.ViewerConfig{
		PointCloudURL:   "../pointclouds/mi_espacio_3d/metadata.json",
		PointCloudName:  "Mi Espacio 3D",
		Description:     "Monitoreo Ambiental IoT",
		PointBudget:     1_500_000,
		FOV:             60,
		EDL:             true,
		Background:      "gradient",
		PointSize:       1.2,
		PointSizeType:   "ADAPTIVE",
		PointShape:      "CIRCLE",
		Anchor:          [3]float64{-3.65, 1.07, -5.61},
		CameraPosition:  [3]float64{-2.5, 2.0, -4.5},
		AnnotationTitle: "Sensor",
		LoadTimeout:     time.Second,
	}
}

func newTestShim(v Viewer, f *stubFetcher, c *stubController) (*Shim, *recordingOverlay) {
	o := &recordingOverlay{}
	s := NewShim(v, o, f, c, ShimOptions{
		Viewer:   testViewerConfig(),
		Language: "es",
		Width:    1280,
		Height:   720,
	})
	return s, o
}

func TestShim_InitOrder(t *testing.T) {
	v := &recordingViewer{}
	r := &models.Reading{Temperature: 21}
	f := &stubFetcher{r: r}
	c := &stubController{}
	s, o := newTestShim(v, f, c)

	if err := s.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}

	want := []string{
		"Create",
		"SetEDLEnabled(true)",
		"SetFOV(60)",
		"SetPointBudget(1500000)",
		"LoadSettingsFromURL",
		"SetBackground(gradient)",
		"SetDescription(Monitoreo Ambiental IoT)",
		"Resize(1280,720)",
		"LoadGUI",
		"SetLanguage(es)",
		"LoadPointCloud(Mi Espacio 3D)",
		"SetMaterial",
		"FitToScreen",
		"AddAnnotation",
		"SubscribeUpdates",
	}
	if !reflect.DeepEqual(v.calls, want) {
		t.Fatalf("viewer calls:\n got %v\nwant %v", v.calls, want)
	}
	if v.material != (Material{Size: 1.2, PointSizeType: "ADAPTIVE", Shape: "CIRCLE"}) {
		t.Fatalf("material = %+v", v.material)
	}
	a := v.annotations[0]
	if a.Position != [3]float64{-3.65, 1.07, -5.61} || a.CameraTarget != a.Position || a.CameraPosition != [3]float64{-2.5, 2.0, -4.5} {
		t.Fatalf("annotation = %+v", a)
	}
	if f.calls != 1 {
		t.Fatalf("initial fetches = %d; want exactly 1", f.calls)
	}
	if len(c.seeded) != 1 || c.seeded[0] != r || o.mounted != r {
		t.Fatal("initial reading must seed the cache and mount the label")
	}
	if c.started != 1 {
		t.Fatalf("controller started %d times; want 1", c.started)
	}
	if o.calls[0] != "MountSidebarToggle" {
		t.Fatalf("sidebar toggle must be created first, got %v", o.calls)
	}
	if !s.Ready() {
		t.Fatal("shim should be ready")
	}
}

func TestShim_InitialMissFallsBackToCache(t *testing.T) {
	cached := &models.Reading{Temperature: 19}
	c := &stubController{cached: cached}
	s, o := newTestShim(&recordingViewer{}, &stubFetcher{}, c)

	if err := s.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if o.mounted != cached {
		t.Fatalf("label mounted with %+v; want cached reading", o.mounted)
	}
	if c.cached != cached {
		t.Fatal("a nil initial fetch must not clear the cache")
	}
}

func TestShim_InitStopsAtFailingStep(t *testing.T) {
	v := &recordingViewer{failOn: "LoadPointCloud"}
	f := &stubFetcher{r: &models.Reading{}}
	c := &stubController{}
	s, _ := newTestShim(v, f, c)

	err := s.Init(context.Background())
	if err == nil || !strings.Contains(err.Error(), "load_pointcloud") {
		t.Fatalf("err = %v; want load_pointcloud failure", err)
	}
	if f.calls != 0 || c.started != 0 || s.Ready() {
		t.Fatal("later steps must not run after a failure")
	}
}

func TestShim_InitWithoutViewer(t *testing.T) {
	s := NewShim(nil, &recordingOverlay{}, &stubFetcher{}, &stubController{}, ShimOptions{})
	if err := s.Init(context.Background()); !errors.Is(err, ErrNoViewer) {
		t.Fatalf("err = %v; want ErrNoViewer", err)
	}
}

func TestShim_HandleFrame(t *testing.T) {
	s, o := newTestShim(&recordingViewer{}, &stubFetcher{}, &stubController{})

	frame := Frame{View: Identity(), Projection: Identity(), Width: 800, Height: 600, LabelWidth: 100}
	s.HandleFrame(frame)
	if len(o.positions) != 0 {
		t.Fatal("frames before Init must be ignored")
	}

	if err := s.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	// identity camera: the anchor's x/y are already NDC
	s.opts.Viewer.Anchor = [3]float64{0, 0, 0}
	s.HandleFrame(frame)
	if len(o.positions) != 1 || o.positions[0] != [2]float64{350, 335} {
		t.Fatalf("positions = %v; want [[350 335]]", o.positions)
	}
}

func TestShim_HandleResize(t *testing.T) {
	v := &recordingViewer{}
	s, o := newTestShim(v, &stubFetcher{}, &stubController{})
	if err := s.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	s.opts.Viewer.Anchor = [3]float64{0, 0, -10}

	s.HandleResize(640, 480)
	if v.calls[len(v.calls)-1] != "Resize(640,480)" {
		t.Fatalf("last viewer call = %s", v.calls[len(v.calls)-1])
	}
	if len(o.positions) != 0 {
		t.Fatal("no frame seen yet, nothing to reposition")
	}

	s.HandleFrame(Frame{View: Identity(), Projection: Perspective(60, 1, 0.1, 100), Width: 600, Height: 600, LabelWidth: 60})
	s.HandleResize(1200, 600)
	last := o.positions[len(o.positions)-1]
	if !near(last[0], 570) || !near(last[1], 335) {
		t.Fatalf("position after resize = %v; want [570 335]", last)
	}
}

func TestShim_Clicks(t *testing.T) {
	r := &models.Reading{Temperature: 23}
	c := &stubController{}
	f := &stubFetcher{r: r}
	s, o := newTestShim(&recordingViewer{}, f, c)
	if err := s.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	o.calls = nil

	s.HandleAnnotationClick(context.Background(), "someone-else")
	if len(o.calls) != 0 {
		t.Fatal("unknown annotation ids are ignored")
	}

	s.HandleAnnotationClick(context.Background(), s.annotationID)
	if o.opened != r {
		t.Fatalf("panel opened with %+v", o.opened)
	}

	s.HandleClick(render.SlotClosePanel)
	s.HandleClick(render.SlotOverlay)
	s.HandleClick(render.SlotSidebarToggle)
	s.HandleClick(render.SlotPanelData)
	want := []string{"OpenPanel", "ClosePanel", "ClosePanel", "ToggleSidebar"}
	if !reflect.DeepEqual(o.calls, want) {
		t.Fatalf("overlay calls = %v; want %v", o.calls, want)
	}
}
