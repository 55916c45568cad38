package model

// Pane roles within a composition
type PaneRole string

const (
	PaneOriginal PaneRole = "original"
	PaneCapture  PaneRole = "capture"
)

// Pane is one video surface in a composition. Coordinates and sizes are
// fractions of the output frame, so the descriptor stays independent of any
// rendering resolution.
type Pane struct {
	Role   PaneRole `json:"role"`
	X      float64  `json:"x"`
	Y      float64  `json:"y"`
	Width  float64  `json:"width"`
	Height float64  `json:"height"`
	ZIndex int      `json:"zIndex"`
}

// CompositionDescriptor is the logical spatial arrangement for a duet style.
type CompositionDescriptor struct {
	Style DuetStyle `json:"style"`
	Panes []Pane    `json:"panes"`
}
