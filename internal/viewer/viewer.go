package viewer

import (
	"context"
	"errors"
)

// ErrNoViewer is returned when the page has no viewer to drive.
var ErrNoViewer = errors.New("viewer not available")

// Viewer is the point-cloud viewer running in the browser. Methods that need
// the browser to finish work (GUI, point cloud) block until it reports back.
type Viewer interface {
	Create(ctx context.Context) error
	SetEDLEnabled(on bool) error
	SetFOV(deg float64) error
	SetPointBudget(points int) error
	LoadSettingsFromURL() error
	SetBackground(name string) error
	SetDescription(text string) error
	LoadGUI(ctx context.Context) error
	SetLanguage(lang string) error
	LoadPointCloud(ctx context.Context, url, name string) (PointCloud, error)
	FitToScreen() error
	AddAnnotation(a Annotation) error
	SubscribeUpdates() error
	Resize(width, height int) error
}

// PointCloud is a loaded cloud whose material can be tuned.
type PointCloud interface {
	SetMaterial(m Material) error
}

type Material struct {
	Size          float64 `json:"size"`
	PointSizeType string  `json:"pointSizeType"` // FIXED | ATTENUATED | ADAPTIVE
	Shape         string  `json:"shape"`         // SQUARE | CIRCLE | PARABOLOID
}

// Annotation is a clickable marker placed in world space.
type Annotation struct {
	ID             string     `json:"id"`
	Position       [3]float64 `json:"position"`
	Title          string     `json:"title"`
	CameraPosition [3]float64 `json:"cameraPosition"`
	CameraTarget   [3]float64 `json:"cameraTarget"`
	Description    string     `json:"description"`
}

// Frame is the camera state reported by the viewer on every update.
type Frame struct {
	View       Mat4    `json:"view"`       // camera matrixWorldInverse
	Projection Mat4    `json:"projection"` // camera projectionMatrix
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	LabelWidth float64 `json:"labelWidth"`
}
