package render

// Slot names a DOM element of the viewer page by its id.
type Slot string

// Slots present in the page markup.
const (
	SlotRenderArea = Slot("potree_render_area")
	SlotSidebar    = Slot("potree_sidebar_container")
	SlotPanel      = Slot("sensor-panel")
	SlotOverlay    = Slot("panel-overlay")
	SlotClosePanel = Slot("close-panel")
	SlotPanelData  = Slot("panel-data")
)

// Slots created at runtime.
const (
	SlotLabel         = Slot("sensor-floating-label")
	SlotSidebarToggle = Slot("sidebar-toggle")
)

// CSS classes toggled by the presenter.
const (
	ClassOpen           = "open"
	ClassVisible        = "visible"
	ClassUpdating       = "updating"
	ClassSidebarVisible = "sidebar-visible"
	ClassLabel          = "sensor-label-floating"
	ClassSidebarToggle  = "sidebar-toggle"
)

// Surface is the UI the presenter paints. Every method is a silent no-op
// when the slot does not exist.
type Surface interface {
	Has(slot Slot) bool
	// Create appends a new element with the given id, class and content to
	// the page body. Creating an existing slot replaces its content.
	Create(slot Slot, class, html string)
	SetHTML(slot Slot, html string)
	AddClass(slot Slot, class string)
	RemoveClass(slot Slot, class string)
	ToggleClass(slot Slot, class string)
	HasClass(slot Slot, class string) bool
	SetStyle(slot Slot, property, value string)
}
