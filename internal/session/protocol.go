package session

import (
	"sensor_overlay/internal/render"
	"sensor_overlay/internal/viewer"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Message types, browser to server.
const (
	msgHello           = "hello"
	msgAck             = "ack"
	msgFrame           = "frame"
	msgResize          = "resize"
	msgVisibility      = "visibility"
	msgClick           = "click"
	msgAnnotationClick = "annotation_click"
)

// Message types, server to browser.
const (
	msgPatch  = "patch"
	msgViewer = "viewer"
)

// Patch operations understood by the overlay client.
const (
	opCreate      = "create"
	opHTML        = "html"
	opAddClass    = "add_class"
	opRemoveClass = "remove_class"
	opToggleClass = "toggle_class"
	opStyle       = "style"
)

type envelope struct {
	Type string `json:"type"`
}

type helloMsg struct {
	Slots  []render.Slot `json:"slots"`
	Width  int           `json:"width"`
	Height int           `json:"height"`
	Hidden bool          `json:"hidden"`
}

type ackMsg struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

type frameMsg = viewer.Frame

type resizeMsg struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type visibilityMsg struct {
	Hidden bool `json:"hidden"`
}

type clickMsg struct {
	Target render.Slot `json:"target"`
}

type annotationClickMsg struct {
	ID string `json:"id"`
}

type patchMsg struct {
	Type     string      `json:"type"`
	Op       string      `json:"op"`
	Slot     render.Slot `json:"slot"`
	Class    string      `json:"class,omitempty"`
	HTML     string      `json:"html,omitempty"`
	Property string      `json:"property,omitempty"`
	Value    string      `json:"value,omitempty"`
}

type viewerCallMsg struct {
	Type   string `json:"type"`
	ID     string `json:"id,omitempty"`
	Method string `json:"method"`
	Args   []any  `json:"args,omitempty"`
	Await  bool   `json:"await,omitempty"`
}
