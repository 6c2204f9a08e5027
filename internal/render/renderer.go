package render

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"math"
	"strconv"
	"time"

	"sensor_overlay/internal/models"
	"sensor_overlay/internal/service"
)

var errNoTemplates = errors.New("render templates not loaded")

// Renderer turns readings into the label and panel markup. It is pure: the
// same reading always produces the same markup.
type Renderer struct {
	tmpl *template.Template
	lang string
	text locale
	loc  *time.Location
}

// NewRenderer parses the embedded templates. lang is "es" or "en"; loc is the
// zone used for the "last update" line (nil keeps the reading's zone).
func NewRenderer(lang string, loc *time.Location) (*Renderer, error) {
	return newRendererFromFS(templatesFS, "templates", lang, loc)
}

func newRendererFromFS(fsys fs.FS, dir, lang string, loc *time.Location) (*Renderer, error) {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		return nil, err
	}
	tmpl, err := template.ParseFS(sub, "*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Renderer{tmpl: tmpl, lang: lang, text: lookupLocale(lang), loc: loc}, nil
}

// Language reports the configured UI language.
func (r *Renderer) Language() string { return r.lang }

type metricView struct {
	Icon     string
	Label    string
	Value    string
	Unit     string
	Color    string
	Status   string
	Severity models.Severity
}

type labelView struct {
	Loading     bool
	LoadingText string
	Metrics     []metricView
}

type panelView struct {
	Cards      []metricView
	LastUpdate string
	UpdatedAt  string
}

type errorView struct {
	Message string
}

// Label renders the single-line floating label. nil yields the loading placeholder.
func (r *Renderer) Label(rd *models.Reading) string {
	v := labelView{Loading: rd == nil, LoadingText: r.text.Loading}
	if rd != nil {
		v.Metrics = r.metrics(*rd)
	}
	return r.exec("label.html", v)
}

// Panel renders the three detail cards and the last-update line.
func (r *Renderer) Panel(rd *models.Reading) string {
	if rd == nil {
		return r.PanelError()
	}
	return r.exec("panel.html", panelView{
		Cards:      r.metrics(*rd),
		LastUpdate: r.text.LastUpdate,
		UpdatedAt:  r.text.formatTime(rd.Timestamp, r.loc),
	})
}

// PanelError renders the "failed to load" message.
func (r *Renderer) PanelError() string {
	return r.exec("panel_error.html", errorView{Message: r.text.LoadFailed})
}

// PageData feeds the viewer page template.
type PageData struct {
	Title      string
	Lang       string
	PotreeBase string
	StaticBase string
	WSPath     string
}

// Page writes the full viewer page.
func (r *Renderer) Page(w io.Writer, data PageData) error {
	if r == nil || r.tmpl == nil {
		return errNoTemplates
	}
	if data.Lang == "" {
		data.Lang = r.lang
	}
	return r.tmpl.ExecuteTemplate(w, "page.html", data)
}

func (r *Renderer) metrics(rd models.Reading) []metricView {
	st := service.Classify(rd)
	return []metricView{
		{
			Icon: "🌡️", Label: r.text.Temperature, Unit: "°C",
			Value: toFixed1(rd.Temperature), Color: st.Temperature.Color,
			Status: r.text.status(st.Temperature.Text), Severity: st.Temperature.Severity,
		},
		{
			Icon: "💧", Label: r.text.Humidity, Unit: "%",
			Value: toFixed1(rd.Humidity), Color: st.Humidity.Color,
			Status: r.text.status(st.Humidity.Text), Severity: st.Humidity.Severity,
		},
		{
			Icon: "🌬️", Label: r.text.CO2, Unit: "ppm",
			Value: roundHalfUp(rd.CO2), Color: st.CO2.Color,
			Status: r.text.status(st.CO2.Text), Severity: st.CO2.Severity,
		},
	}
}

func (r *Renderer) exec(name string, data any) string {
	if r == nil || r.tmpl == nil {
		return ""
	}
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return ""
	}
	return buf.String()
}

// toFixed1 formats v with one decimal. Exact binary ties (x.25, x.75) round
// away from zero.
func toFixed1(v float64) string {
	if q := v * 4; q == math.Trunc(q) && math.Mod(q, 2) != 0 {
		v += math.Copysign(0.05, v)
	}
	return strconv.FormatFloat(v, 'f', 1, 64)
}

// roundHalfUp rounds to the nearest integer, halves toward +Inf.
func roundHalfUp(v float64) string {
	return strconv.FormatFloat(math.Floor(v+0.5), 'f', 0, 64)
}
