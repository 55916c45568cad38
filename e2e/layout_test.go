package e2e

import (
	"net/http"
	"testing"
)

func TestLayoutDescriptors(t *testing.T) {
	ta := setupApp(t)

	for _, style := range []string{"side_by_side", "react_respond", "picture_in_picture"} {
		resp, err := doAuthRequest(t, ta.app, "GET", "/api/layouts/"+style, "", "user-layout")
		if err != nil {
			t.Fatalf("layout request failed: %v", err)
		}
		assertStatus(t, resp, http.StatusOK)

		result := parseJSON(t, resp)
		if result["style"] != style {
			t.Errorf("expected style %s, got %v", style, result["style"])
		}
		panes, ok := result["panes"].([]interface{})
		if !ok || len(panes) != 2 {
			t.Errorf("expected 2 panes for %s, got %v", style, result["panes"])
		}
	}
}

func TestUnknownLayoutStyleRejected(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta.app, "GET", "/api/layouts/diagonal", "", "user-layout")
	if err != nil {
		t.Fatalf("layout request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()
}

func TestLayoutList(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta.app, "GET", "/api/layouts", "", "user-layout")
	if err != nil {
		t.Fatalf("layout list failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	result := parseJSON(t, resp)
	layouts, ok := result["layouts"].([]interface{})
	if !ok || len(layouts) != 3 {
		t.Errorf("expected 3 layout descriptors, got %v", result["layouts"])
	}
}
