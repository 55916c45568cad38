package engine

import (
	"context"
	"strings"
	"testing"

	"github.com/duetly/api/internal/model"
)

func TestPreviewDefaultsMentionCreator(t *testing.T) {
	p := NewPreview(NewMemoryPreviews(), "dancequeen")
	md := p.Metadata()
	if md.Caption != "Duet with @dancequeen" {
		t.Errorf("unexpected default caption %q", md.Caption)
	}
	if len(md.Tags) != 2 || md.Tags[0] != "duet" || md.Tags[1] != "dancequeen" {
		t.Errorf("unexpected default tags %v", md.Tags)
	}
}

func TestPreviewShowAllocatesURL(t *testing.T) {
	store := NewMemoryPreviews()
	p := NewPreview(store, "creator")
	artifact := &model.DuetArtifact{ID: "a-1", Style: model.StyleSideBySide}

	if err := p.Show(context.Background(), "s-1", artifact, []byte("bytes")); err != nil {
		t.Fatalf("show failed: %v", err)
	}
	if p.State() != model.PreviewVisible {
		t.Errorf("expected visible preview, got %s", p.State())
	}
	url := p.Artifact().PreviewURL
	if !strings.HasPrefix(url, "mem://previews/s-1/") {
		t.Errorf("unexpected preview URL %q", url)
	}
	if data, ok := store.Resolve(url); !ok || string(data) != "bytes" {
		t.Errorf("expected URL to resolve to artifact bytes, got %q ok=%v", data, ok)
	}
}

func TestPreviewHideKeepsArtifactAndMetadata(t *testing.T) {
	p := NewPreview(NewMemoryPreviews(), "creator")
	artifact := &model.DuetArtifact{ID: "a-1"}
	if err := p.Show(context.Background(), "s-1", artifact, []byte("bytes")); err != nil {
		t.Fatalf("show failed: %v", err)
	}

	p.SetCaption("my duet")
	p.SetTags([]string{"fun"})
	p.Hide()

	if p.State() != model.PreviewHidden {
		t.Errorf("expected hidden preview, got %s", p.State())
	}
	if p.Artifact() == nil {
		t.Error("expected artifact to survive back-to-edit")
	}
	md := p.Metadata()
	if md.Caption != "my duet" || len(md.Tags) != 1 || md.Tags[0] != "fun" {
		t.Errorf("expected metadata to survive back-to-edit, got %+v", md)
	}
}

func TestPreviewDiscardReleasesURL(t *testing.T) {
	store := NewMemoryPreviews()
	p := NewPreview(store, "creator")
	artifact := &model.DuetArtifact{ID: "a-1"}
	if err := p.Show(context.Background(), "s-1", artifact, []byte("bytes")); err != nil {
		t.Fatalf("show failed: %v", err)
	}
	url := artifact.PreviewURL

	p.Discard(context.Background())

	if p.Artifact() != nil {
		t.Error("expected artifact dropped")
	}
	if _, ok := store.Resolve(url); ok {
		t.Error("expected preview URL invalidated")
	}
}
