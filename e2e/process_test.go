package e2e

import (
	"context"
	"fmt"
	"net/http"
	"testing"
)

func TestPresets(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta.app, http.MethodGet, "/api/presets", "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusOK)

	body := parseJSON(t, resp)
	presets, ok := body["presets"].([]interface{})
	if !ok {
		t.Fatalf("expected 'presets' array, got %v", body)
	}
	if len(presets) != 7 {
		t.Errorf("expected 7 presets, got %d", len(presets))
	}
}

func TestEnhancement_UnknownPreset(t *testing.T) {
	ta := setupApp(t)

	file, err := ta.store.CreateFile(context.Background(), testUserID, "42/a.mp3", "a.mp3", "audio/mpeg", 10)
	if err != nil {
		t.Fatalf("failed to seed file: %v", err)
	}

	resp, err := doAuthRequest(t, ta.app, http.MethodPost,
		fmt.Sprintf("/api/files/%d/enhancement", file.ID),
		`{"preset":"mega_bass"}`)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusBadRequest)

	got, err := ta.store.GetFile(context.Background(), file.ID)
	if err != nil {
		t.Fatalf("failed to reload file: %v", err)
	}
	if got.EnhancementStatus != "not_started" {
		t.Errorf("rejected preset must not change state, got %s", got.EnhancementStatus)
	}
}

func TestEnhancement_MissingPreset(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/files/1/enhancement", `{}`)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusBadRequest)
}

func TestNoiseRemoval_Accepted(t *testing.T) {
	ta := setupApp(t)

	file, err := ta.store.CreateFile(context.Background(), testUserID, "42/b.mp3", "b.mp3", "audio/mpeg", 10)
	if err != nil {
		t.Fatalf("failed to seed file: %v", err)
	}

	resp, err := doAuthRequest(t, ta.app, http.MethodPost,
		fmt.Sprintf("/api/files/%d/noise-removal", file.ID), "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusAccepted)

	got, err := ta.store.GetFile(context.Background(), file.ID)
	if err != nil {
		t.Fatalf("failed to reload file: %v", err)
	}
	if got.NoiseRemovalStatus != "processing" {
		t.Errorf("expected processing, got %s", got.NoiseRemovalStatus)
	}
}

func TestNoiseRemoval_Conflict(t *testing.T) {
	ta := setupApp(t)
	ctx := context.Background()

	file, err := ta.store.CreateFile(ctx, testUserID, "42/c.mp3", "c.mp3", "audio/mpeg", 10)
	if err != nil {
		t.Fatalf("failed to seed file: %v", err)
	}

	path := fmt.Sprintf("/api/files/%d/noise-removal", file.ID)

	resp, err := doAuthRequest(t, ta.app, http.MethodPost, path, "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusAccepted)

	resp, err = doAuthRequest(t, ta.app, http.MethodPost, path, "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusConflict)
}

func TestProcess_FileNotFound(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/files/9999/vocal-removal", "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusNotFound)
}

func TestProcess_ForeignFile(t *testing.T) {
	ta := setupApp(t)

	file, err := ta.store.CreateFile(context.Background(), testUserID+1, "43/d.mp3", "d.mp3", "audio/mpeg", 10)
	if err != nil {
		t.Fatalf("failed to seed file: %v", err)
	}

	resp, err := doAuthRequest(t, ta.app, http.MethodPost,
		fmt.Sprintf("/api/files/%d/melody-removal", file.ID), "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusForbidden)
}
