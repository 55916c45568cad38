package engine

import "github.com/duetly/api/internal/model"

// Inset geometry for picture-in-picture: capture pane anchored to the
// bottom-right corner at roughly a third of the frame.
const (
	pipInsetSize   = 0.35
	pipInsetMargin = 0.04
)

// LayoutFor maps a duet style to its composition descriptor: pane count,
// relative sizing and z-order. Pure function, no failure modes; unknown
// styles fall back to side-by-side.
func LayoutFor(style model.DuetStyle) model.CompositionDescriptor {
	switch style {
	case model.StyleReactRespond:
		// Capture stacked above the original.
		return model.CompositionDescriptor{
			Style: style,
			Panes: []model.Pane{
				{Role: model.PaneCapture, X: 0, Y: 0, Width: 1, Height: 0.5, ZIndex: 0},
				{Role: model.PaneOriginal, X: 0, Y: 0.5, Width: 1, Height: 0.5, ZIndex: 0},
			},
		}
	case model.StylePictureInPicture:
		return model.CompositionDescriptor{
			Style: style,
			Panes: []model.Pane{
				{Role: model.PaneOriginal, X: 0, Y: 0, Width: 1, Height: 1, ZIndex: 0},
				{
					Role:   model.PaneCapture,
					X:      1 - pipInsetSize - pipInsetMargin,
					Y:      1 - pipInsetSize - pipInsetMargin,
					Width:  pipInsetSize,
					Height: pipInsetSize,
					ZIndex: 1,
				},
			},
		}
	default:
		return model.CompositionDescriptor{
			Style: model.StyleSideBySide,
			Panes: []model.Pane{
				{Role: model.PaneCapture, X: 0, Y: 0, Width: 0.5, Height: 1, ZIndex: 0},
				{Role: model.PaneOriginal, X: 0.5, Y: 0, Width: 0.5, Height: 1, ZIndex: 0},
			},
		}
	}
}
