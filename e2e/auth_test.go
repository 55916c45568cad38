package e2e

import (
	"net/http"
	"testing"
)

func TestAPIRequiresAuth(t *testing.T) {
	ta := setupApp(t)

	resp, err := doRequest(ta.app, "GET", "/api/layouts", "", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusUnauthorized)
	resp.Body.Close()

	resp, err = doRequest(ta.app, "GET", "/api/layouts", "", map[string]string{
		"Authorization": "Bearer not-a-token",
	})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusUnauthorized)
	resp.Body.Close()
}

func TestAuthVerifyEndpoint(t *testing.T) {
	ta := setupApp(t)

	resp, err := doRequest(ta.app, "GET", "/auth/verify", "", map[string]string{
		"Authorization": "Bearer " + generateToken(t, "user-verify"),
	})
	if err != nil {
		t.Fatalf("verify request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)
	if got := resp.Header.Get("X-User-Id"); got != "user-verify" {
		t.Errorf("expected X-User-Id header, got %q", got)
	}
	resp.Body.Close()

	resp, err = doRequest(ta.app, "GET", "/auth/verify", "", nil)
	if err != nil {
		t.Fatalf("verify request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusUnauthorized)
	resp.Body.Close()
}
