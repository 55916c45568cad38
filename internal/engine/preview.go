package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/duetly/api/internal/model"
	"github.com/google/uuid"
)

// PreviewAllocator turns assembled artifact bytes into a temporary playable
// handle and releases it when the artifact is discarded. The production
// implementation uploads to object storage and presigns; tests and the
// unconfigured-storage fallback use an in-memory allocator.
type PreviewAllocator interface {
	Allocate(ctx context.Context, sessionID string, data []byte, contentType string) (string, error)
	Release(ctx context.Context, url string) error
}

// MemoryPreviews is the fallback allocator used when object storage is not
// configured. Handles resolve only inside this process.
type MemoryPreviews struct {
	mu      sync.Mutex
	entries map[string][]byte
}

// NewMemoryPreviews creates an empty in-memory preview store.
func NewMemoryPreviews() *MemoryPreviews {
	return &MemoryPreviews{entries: make(map[string][]byte)}
}

func (m *MemoryPreviews) Allocate(_ context.Context, sessionID string, data []byte, _ string) (string, error) {
	url := fmt.Sprintf("mem://previews/%s/%s", sessionID, uuid.New().String())
	m.mu.Lock()
	m.entries[url] = data
	m.mu.Unlock()
	return url, nil
}

func (m *MemoryPreviews) Release(_ context.Context, url string) error {
	m.mu.Lock()
	delete(m.entries, url)
	m.mu.Unlock()
	return nil
}

// Resolve returns the bytes behind a handle, for serving the local preview.
func (m *MemoryPreviews) Resolve(url string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.entries[url]
	return data, ok
}

// Preview is the post-recording workflow: it becomes visible when processing
// completes, carries the artifact and the user-editable metadata, and routes
// back-to-edit and retake exits.
type Preview struct {
	allocator PreviewAllocator

	mu       sync.Mutex
	state    model.PreviewState
	artifact *model.DuetArtifact
	data     []byte
	metadata model.DuetMetadata
}

// NewPreview creates a hidden preview workflow with metadata defaults derived
// from the original creator: an auto-generated caption mention and the duet
// tag pair.
func NewPreview(allocator PreviewAllocator, creatorHandle string) *Preview {
	return &Preview{
		allocator: allocator,
		state:     model.PreviewHidden,
		metadata: model.DuetMetadata{
			Caption: fmt.Sprintf("Duet with @%s", creatorHandle),
			Tags:    []string{"duet", creatorHandle},
		},
	}
}

// Show allocates a preview URL for the assembled artifact and makes the
// workflow visible. Called exactly once per completed take.
func (p *Preview) Show(ctx context.Context, sessionID string, artifact *model.DuetArtifact, data []byte) error {
	url, err := p.allocator.Allocate(ctx, sessionID, data, "video/webm")
	if err != nil {
		return fmt.Errorf("failed to allocate preview: %w", err)
	}

	p.mu.Lock()
	artifact.PreviewURL = url
	p.artifact = artifact
	p.data = data
	p.state = model.PreviewVisible
	p.mu.Unlock()
	return nil
}

// Hide implements back-to-edit: the workflow disappears but the artifact and
// metadata survive.
func (p *Preview) Hide() {
	p.mu.Lock()
	p.state = model.PreviewHidden
	p.mu.Unlock()
}

// Discard deallocates the preview URL and drops the artifact. Used by retake
// and by session teardown.
func (p *Preview) Discard(ctx context.Context) {
	p.mu.Lock()
	artifact := p.artifact
	p.artifact = nil
	p.data = nil
	p.state = model.PreviewHidden
	p.mu.Unlock()

	if artifact != nil && artifact.PreviewURL != "" {
		_ = p.allocator.Release(ctx, artifact.PreviewURL)
	}
}

// State returns the workflow visibility.
func (p *Preview) State() model.PreviewState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Artifact returns the assembled artifact, or nil before processing completes.
func (p *Preview) Artifact() *model.DuetArtifact {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.artifact
}

// ArtifactData returns the raw assembled bytes for upload at publish time.
func (p *Preview) ArtifactData() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.data
}

// Metadata returns a copy of the current caption and tags.
func (p *Preview) Metadata() model.DuetMetadata {
	p.mu.Lock()
	defer p.mu.Unlock()
	md := p.metadata
	md.Tags = append([]string(nil), p.metadata.Tags...)
	return md
}

// SetCaption replaces the caption. Free-form; emptiness is checked at publish.
func (p *Preview) SetCaption(caption string) {
	p.mu.Lock()
	p.metadata.Caption = caption
	p.mu.Unlock()
}

// SetTags replaces the tag list.
func (p *Preview) SetTags(tags []string) {
	p.mu.Lock()
	p.metadata.Tags = append([]string(nil), tags...)
	p.mu.Unlock()
}

// SetAudioSourceMode updates the artifact's export-policy snapshot after a
// permitted post-assembly mode change.
func (p *Preview) SetAudioSourceMode(mode model.AudioSourceMode) {
	p.mu.Lock()
	if p.artifact != nil {
		p.artifact.AudioSourceMode = mode
	}
	p.mu.Unlock()
}
