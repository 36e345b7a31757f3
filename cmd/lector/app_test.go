package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mmcdole/lector/internal/adapter"
	"github.com/mmcdole/lector/internal/domain"
)

func newTestApp(t *testing.T, url string) *app {
	t.Helper()
	cfg := adapter.DefaultConfig()
	cfg.Backend.URL = url
	cfg.Backend.Timeout = 2 * time.Second
	cfg.Backend.Retries = -1
	cfg.Backend.RequestsPerSecond = 0
	cfg.User = adapter.UserConfig{ID: "u1", Email: "a@b.c"}

	a := buildApp(cfg, adapter.NullLogger(), "")
	t.Cleanup(a.Close)
	return a
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("encode: %v", err)
	}
}

func newTestBackend(t *testing.T, syncStatus int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]string{"status": "ok", "message": "lector backend"})
	})
	mux.HandleFunc("/voices", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, []map[string]string{
			{"ShortName": "en-US-AriaNeural", "FriendlyName": "Aria", "Locale": "en-US", "Gender": "Female"},
		})
	})
	mux.HandleFunc("/auth/sync", func(w http.ResponseWriter, r *http.Request) {
		if syncStatus != http.StatusOK {
			w.WriteHeader(syncStatus)
			writeJSON(t, w, map[string]string{"detail": "sync unavailable"})
			return
		}
		writeJSON(t, w, map[string]any{"success": true, "plan": "premium"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestBootstrapLoadsVoicesAndPlan(t *testing.T) {
	srv := newTestBackend(t, http.StatusOK)
	a := newTestApp(t, srv.URL)

	if err := a.bootstrap(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := len(a.voices.Voices()); got != 1 {
		t.Errorf("expected 1 voice, got %d", got)
	}
	if plan := a.session.Plan(); plan != domain.PlanPremium {
		t.Errorf("expected premium plan, got %s", plan)
	}
}

func TestBootstrapSyncFailureIsNotFatal(t *testing.T) {
	srv := newTestBackend(t, http.StatusBadRequest)
	a := newTestApp(t, srv.URL)

	if err := a.bootstrap(context.Background()); err != nil {
		t.Fatalf("expected sync failure to be logged only, got %v", err)
	}
	if got := len(a.voices.Voices()); got != 1 {
		t.Errorf("expected voices despite the sync failure, got %d", got)
	}
	if plan := a.session.Plan(); plan != domain.PlanFree {
		t.Errorf("expected the free plan to be kept, got %s", plan)
	}
}

func TestBootstrapReportsOfflineBackend(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	a := newTestApp(t, url)
	err := a.bootstrap(context.Background())
	if !errors.Is(err, domain.ErrBackendOffline) {
		t.Fatalf("expected ErrBackendOffline, got %v", err)
	}
	if a.voices.Voices() != nil {
		t.Error("expected no voices from an offline backend")
	}
}
