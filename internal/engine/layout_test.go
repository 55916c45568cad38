package engine

import (
	"testing"

	"github.com/duetly/api/internal/model"
)

func TestSideBySideLayout(t *testing.T) {
	desc := LayoutFor(model.StyleSideBySide)
	if len(desc.Panes) != 2 {
		t.Fatalf("expected 2 panes, got %d", len(desc.Panes))
	}
	capture, original := desc.Panes[0], desc.Panes[1]
	if capture.Role != model.PaneCapture || original.Role != model.PaneOriginal {
		t.Errorf("expected capture left, original right, got %s/%s", capture.Role, original.Role)
	}
	if capture.Width != 0.5 || original.Width != 0.5 {
		t.Errorf("expected equal halves, got %f/%f", capture.Width, original.Width)
	}
	if capture.X != 0 || original.X != 0.5 {
		t.Errorf("expected panes side by side, got x=%f/%f", capture.X, original.X)
	}
}

func TestReactRespondLayout(t *testing.T) {
	desc := LayoutFor(model.StyleReactRespond)
	if len(desc.Panes) != 2 {
		t.Fatalf("expected 2 panes, got %d", len(desc.Panes))
	}
	capture, original := desc.Panes[0], desc.Panes[1]
	if capture.Y != 0 || original.Y != 0.5 {
		t.Errorf("expected capture stacked above original, got y=%f/%f", capture.Y, original.Y)
	}
	if capture.Height != 0.5 || original.Height != 0.5 {
		t.Errorf("expected equal halves, got %f/%f", capture.Height, original.Height)
	}
}

func TestPictureInPictureLayout(t *testing.T) {
	desc := LayoutFor(model.StylePictureInPicture)
	if len(desc.Panes) != 2 {
		t.Fatalf("expected 2 panes, got %d", len(desc.Panes))
	}
	original, inset := desc.Panes[0], desc.Panes[1]
	if original.Width != 1 || original.Height != 1 {
		t.Errorf("expected original full frame, got %fx%f", original.Width, original.Height)
	}
	if inset.Role != model.PaneCapture {
		t.Errorf("expected capture inset, got %s", inset.Role)
	}
	if inset.ZIndex <= original.ZIndex {
		t.Error("expected capture inset rendered above the original")
	}
	if inset.X+inset.Width >= 1 || inset.Y+inset.Height >= 1 {
		t.Error("expected inset fully inside the frame with a margin")
	}
}

func TestUnknownStyleFallsBackToSideBySide(t *testing.T) {
	desc := LayoutFor("diagonal")
	if desc.Style != model.StyleSideBySide {
		t.Errorf("expected side-by-side fallback, got %s", desc.Style)
	}
}
