package e2e

import (
	"net/http"
	"testing"
)

func TestPublishRequiresCompletedTake(t *testing.T) {
	ta := setupApp(t)
	sessionID := openSession(t, ta, "user-pub-idle", 60000)

	resp, err := doAuthRequest(t, ta.app, "POST", "/api/sessions/"+sessionID+"/publish", "", "user-pub-idle")
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	assertStatus(t, resp, http.StatusConflict)
	result := parseJSON(t, resp)
	errObj, _ := result["error"].(map[string]interface{})
	if errObj == nil || errObj["code"] != "INVALID_STATE" {
		t.Errorf("expected INVALID_STATE envelope, got %v", result)
	}
}

func TestPublishRequiresCaption(t *testing.T) {
	ta := setupApp(t)
	sessionID := completeTake(t, ta, "user-pub-caption")

	resp, err := doAuthRequest(t, ta.app, "PATCH", "/api/sessions/"+sessionID+"/metadata",
		`{"caption": "   "}`, "user-pub-caption")
	if err != nil {
		t.Fatalf("metadata update failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	resp, err = doAuthRequest(t, ta.app, "POST", "/api/sessions/"+sessionID+"/publish", "", "user-pub-caption")
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	assertStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()
}

func TestPublishEnqueuesJob(t *testing.T) {
	ta := setupApp(t)
	requireRedis(t, ta)
	sessionID := completeTake(t, ta, "user-pub-ok")

	resp, err := doAuthRequest(t, ta.app, "POST", "/api/sessions/"+sessionID+"/publish", "", "user-pub-ok")
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	assertStatus(t, resp, http.StatusAccepted)
	result := parseJSON(t, resp)
	jobID, _ := result["jobId"].(string)
	if jobID == "" {
		t.Fatalf("expected a job id, got %v", result)
	}
	if result["status"] != "queued" {
		t.Errorf("expected queued status, got %v", result["status"])
	}

	// No worker runs in tests, so the job stays queued with its record intact.
	resp, err = doAuthRequest(t, ta.app, "GET", "/api/publish/"+jobID, "", "user-pub-ok")
	if err != nil {
		t.Fatalf("job status failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)
	job := parseJSON(t, resp)
	if job["status"] != "queued" {
		t.Errorf("expected queued job, got %v", job["status"])
	}
	if job["sessionId"] != sessionID {
		t.Errorf("expected job bound to session, got %v", job["sessionId"])
	}
}

func TestPublishJobNotFound(t *testing.T) {
	ta := setupApp(t)
	requireRedis(t, ta)

	resp, err := doAuthRequest(t, ta.app, "GET", "/api/publish/nonexistent-job", "", "user-pub-missing")
	if err != nil {
		t.Fatalf("job status failed: %v", err)
	}
	assertStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()
}
