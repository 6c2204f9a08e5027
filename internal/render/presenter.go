package render

import (
	"context"
	"strconv"
	"time"

	"sensor_overlay/internal/models"
)

const (
	defaultLabelFlash = 500 * time.Millisecond
	defaultPanelDip   = 150 * time.Millisecond
	panelDipOpacity   = "0.7"
)

const sidebarToggleIcon = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 24 24"><path d="M3 6h18v2H3V6m0 5h18v2H3v-2m0 5h18v2H3v-2z"/></svg>`

// PresenterOptions tunes the cosmetic delays. Zero values use the defaults.
type PresenterOptions struct {
	LabelFlash time.Duration
	PanelDip   time.Duration
	// AfterFunc schedules f after d; tests replace it to run synchronously.
	AfterFunc func(d time.Duration, f func())
}

// Presenter paints rendered markup onto one page's Surface.
type Presenter struct {
	surface    Surface
	renderer   *Renderer
	labelFlash time.Duration
	panelDip   time.Duration
	afterFunc  func(d time.Duration, f func())
}

func NewPresenter(s Surface, r *Renderer, opts PresenterOptions) *Presenter {
	if opts.LabelFlash <= 0 {
		opts.LabelFlash = defaultLabelFlash
	}
	if opts.PanelDip <= 0 {
		opts.PanelDip = defaultPanelDip
	}
	if opts.AfterFunc == nil {
		opts.AfterFunc = func(d time.Duration, f func()) { time.AfterFunc(d, f) }
	}
	return &Presenter{
		surface:    s,
		renderer:   r,
		labelFlash: opts.LabelFlash,
		panelDip:   opts.PanelDip,
		afterFunc:  opts.AfterFunc,
	}
}

// MountSidebarToggle creates the button that shows and hides the viewer sidebar.
func (p *Presenter) MountSidebarToggle() {
	p.surface.Create(SlotSidebarToggle, ClassSidebarToggle, sidebarToggleIcon)
}

// ToggleSidebar flips the sidebar and the toggle button together.
func (p *Presenter) ToggleSidebar() {
	if !p.surface.Has(SlotSidebar) || !p.surface.Has(SlotSidebarToggle) {
		return
	}
	p.surface.ToggleClass(SlotSidebar, ClassVisible)
	p.surface.ToggleClass(SlotSidebarToggle, ClassSidebarVisible)
}

// MountLabel creates the floating label; nil shows the loading placeholder.
func (p *Presenter) MountLabel(r *models.Reading) {
	p.surface.Create(SlotLabel, ClassLabel, p.renderer.Label(r))
}

// UpdateLabel replaces the label content and flashes the "updating" class.
func (p *Presenter) UpdateLabel(r models.Reading) {
	if !p.surface.Has(SlotLabel) {
		return
	}
	p.surface.AddClass(SlotLabel, ClassUpdating)
	p.surface.SetHTML(SlotLabel, p.renderer.Label(&r))
	p.afterFunc(p.labelFlash, func() {
		p.surface.RemoveClass(SlotLabel, ClassUpdating)
	})
}

// PositionLabel moves the label to the given page coordinates in pixels.
func (p *Presenter) PositionLabel(left, top float64) {
	if !p.surface.Has(SlotLabel) {
		return
	}
	p.surface.SetStyle(SlotLabel, "left", px(left))
	p.surface.SetStyle(SlotLabel, "top", px(top))
}

// RefreshPanelIfOpen repaints the panel data with a short opacity dip, but
// only while the panel is open.
func (p *Presenter) RefreshPanelIfOpen(r models.Reading) {
	if !p.surface.HasClass(SlotPanel, ClassOpen) || !p.surface.Has(SlotPanelData) {
		return
	}
	p.surface.SetStyle(SlotPanelData, "opacity", panelDipOpacity)
	html := p.renderer.Panel(&r)
	p.afterFunc(p.panelDip, func() {
		p.surface.SetHTML(SlotPanelData, html)
		p.surface.SetStyle(SlotPanelData, "opacity", "1")
	})
}

// Publish applies a fresh reading to the label and the open panel.
func (p *Presenter) Publish(r models.Reading) {
	p.UpdateLabel(r)
	p.RefreshPanelIfOpen(r)
}

// OpenPanel slides the panel in and fills it with cached, or else freshly
// fetched, data. A nil result shows the error message.
func (p *Presenter) OpenPanel(ctx context.Context, cached *models.Reading, fetch func(context.Context) *models.Reading) {
	if !p.surface.Has(SlotPanel) || !p.surface.Has(SlotOverlay) {
		return
	}
	p.surface.AddClass(SlotPanel, ClassOpen)
	p.surface.AddClass(SlotOverlay, ClassVisible)

	r := cached
	if r == nil && fetch != nil {
		r = fetch(ctx)
	}
	if r == nil {
		p.surface.SetHTML(SlotPanelData, p.renderer.PanelError())
		return
	}
	p.surface.SetHTML(SlotPanelData, p.renderer.Panel(r))
}

// ClosePanel slides the panel out and hides the overlay.
func (p *Presenter) ClosePanel() {
	p.surface.RemoveClass(SlotPanel, ClassOpen)
	p.surface.RemoveClass(SlotOverlay, ClassVisible)
}

func px(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "px"
}
