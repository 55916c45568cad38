package e2e

import (
	"net/http"
	"strings"
	"testing"
)

// completeTake records a short take to completion and returns the session ID.
func completeTake(t *testing.T, ta *testApp, userID string) string {
	t.Helper()
	sessionID := openSession(t, ta, userID, 200)
	resp, err := doAuthRequest(t, ta.app, "POST", "/api/sessions/"+sessionID+"/start", "", userID)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	ta.sessions.PushChunk(sessionID, []byte("fragment"))
	waitForState(t, ta, userID, sessionID, "complete")
	return sessionID
}

func TestPreviewBeforeCompletionIsHidden(t *testing.T) {
	ta := setupApp(t)
	sessionID := openSession(t, ta, "user-prehide", 60000)

	resp, err := doAuthRequest(t, ta.app, "GET", "/api/sessions/"+sessionID+"/preview", "", "user-prehide")
	if err != nil {
		t.Fatalf("preview failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)
	result := parseJSON(t, resp)
	if result["state"] != "hidden" {
		t.Errorf("expected hidden preview, got %v", result["state"])
	}
	if result["artifact"] != nil {
		t.Errorf("expected no artifact yet, got %v", result["artifact"])
	}
}

func TestPreviewCarriesArtifactAndDefaults(t *testing.T) {
	ta := setupApp(t)
	sessionID := completeTake(t, ta, "user-preview")

	resp, err := doAuthRequest(t, ta.app, "GET", "/api/sessions/"+sessionID+"/preview", "", "user-preview")
	if err != nil {
		t.Fatalf("preview failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)
	result := parseJSON(t, resp)
	if result["state"] != "visible" {
		t.Errorf("expected visible preview, got %v", result["state"])
	}

	artifact, _ := result["artifact"].(map[string]interface{})
	if artifact == nil {
		t.Fatal("expected an artifact in the preview")
	}
	url, _ := artifact["previewUrl"].(string)
	if !strings.HasPrefix(url, "mem://previews/") {
		t.Errorf("expected in-memory preview URL, got %q", url)
	}

	metadata, _ := result["metadata"].(map[string]interface{})
	if metadata == nil {
		t.Fatal("expected metadata in the preview")
	}
	if metadata["caption"] != "Duet with @dancequeen" {
		t.Errorf("unexpected default caption %v", metadata["caption"])
	}
}

func TestBackToEditKeepsArtifact(t *testing.T) {
	ta := setupApp(t)
	sessionID := completeTake(t, ta, "user-back")

	resp, err := doAuthRequest(t, ta.app, "POST", "/api/sessions/"+sessionID+"/preview/back", "", "user-back")
	if err != nil {
		t.Fatalf("back-to-edit failed: %v", err)
	}
	assertStatus(t, resp, http.StatusNoContent)
	resp.Body.Close()

	resp, err = doAuthRequest(t, ta.app, "GET", "/api/sessions/"+sessionID+"/preview", "", "user-back")
	if err != nil {
		t.Fatalf("preview failed: %v", err)
	}
	result := parseJSON(t, resp)
	if result["state"] != "hidden" {
		t.Errorf("expected hidden after back-to-edit, got %v", result["state"])
	}
	if result["artifact"] == nil {
		t.Error("expected artifact to survive back-to-edit")
	}
}

func TestMetadataEdits(t *testing.T) {
	ta := setupApp(t)
	sessionID := completeTake(t, ta, "user-meta")

	resp, err := doAuthRequest(t, ta.app, "PATCH", "/api/sessions/"+sessionID+"/metadata",
		`{"caption": "our duet", "tags": ["duet", "dance"]}`, "user-meta")
	if err != nil {
		t.Fatalf("metadata update failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)
	result := parseJSON(t, resp)
	if result["caption"] != "our duet" {
		t.Errorf("expected updated caption, got %v", result["caption"])
	}
	tags, _ := result["tags"].([]interface{})
	if len(tags) != 2 || tags[1] != "dance" {
		t.Errorf("expected updated tags, got %v", result["tags"])
	}

	// Partial update: caption only, tags untouched.
	resp, err = doAuthRequest(t, ta.app, "PATCH", "/api/sessions/"+sessionID+"/metadata",
		`{"caption": "final caption"}`, "user-meta")
	if err != nil {
		t.Fatalf("metadata update failed: %v", err)
	}
	result = parseJSON(t, resp)
	if result["caption"] != "final caption" {
		t.Errorf("expected new caption, got %v", result["caption"])
	}
	tags, _ = result["tags"].([]interface{})
	if len(tags) != 2 {
		t.Errorf("expected tags preserved, got %v", result["tags"])
	}
}

func TestRetakeDiscardsPreview(t *testing.T) {
	ta := setupApp(t)
	sessionID := completeTake(t, ta, "user-retake")

	resp, err := doAuthRequest(t, ta.app, "POST", "/api/sessions/"+sessionID+"/retake", "", "user-retake")
	if err != nil {
		t.Fatalf("retake failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	resp, err = doAuthRequest(t, ta.app, "GET", "/api/sessions/"+sessionID+"/preview", "", "user-retake")
	if err != nil {
		t.Fatalf("preview failed: %v", err)
	}
	result := parseJSON(t, resp)
	if result["state"] != "hidden" {
		t.Errorf("expected hidden preview after retake, got %v", result["state"])
	}
	if result["artifact"] != nil {
		t.Errorf("expected artifact discarded, got %v", result["artifact"])
	}
}
