package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mmcdole/lector/internal/adapter"
	"github.com/mmcdole/lector/internal/domain"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL, Options{Timeout: 5 * time.Second}, adapter.NullLogger())
	c.retryDelay = time.Millisecond
	return c
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

func TestSynthesizeSendsSettingsAndMapsMarks(t *testing.T) {
	var got ttsRequest
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/tts" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		writeJSON(t, w, map[string]any{
			"audio_url": "/static/audio/abc.mp3",
			"marks": []map[string]any{
				{"text": "Hello.", "start": 0, "end": 1.5},
				{"text": "World.", "start": 1.5, "end": 3},
			},
		})
	}))

	req := domain.NewSynthesisRequest("Hello. World.", domain.Settings{Voice: "en-US-AriaNeural", Rate: 20, Pitch: -5})
	syn, err := c.Synthesize(context.Background(), req)
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}

	if got.Text != "Hello. World." || got.Voice != "en-US-AriaNeural" || got.Rate != "+20%" || got.Pitch != "-5Hz" {
		t.Errorf("unexpected request body: %+v", got)
	}
	if syn.AudioURL != c.BaseURL()+"/static/audio/abc.mp3" {
		t.Errorf("expected resolved audio URL, got %q", syn.AudioURL)
	}
	if len(syn.Marks) != 2 {
		t.Fatalf("expected 2 marks, got %d", len(syn.Marks))
	}
	if syn.Marks[1].Start != 1.5 || syn.Marks[1].End != 3 || syn.Marks[1].Text != "World." {
		t.Errorf("unexpected second mark: %+v", syn.Marks[1])
	}
}

func TestSynthesizeWithoutAudioURLFails(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{"marks": []any{}})
	}))

	_, err := c.Synthesize(context.Background(), domain.SynthesisRequest{Text: "x"})
	if !errors.Is(err, domain.ErrBackendRejected) {
		t.Fatalf("expected ErrBackendRejected, got %v", err)
	}
}

func TestRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, `{"detail":"busy"}`, http.StatusServiceUnavailable)
			return
		}
		writeJSON(t, w, map[string]string{"summary": "Short."})
	}))

	summary, err := c.Summarize(context.Background(), "Long text.", 3)
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if summary != "Short." {
		t.Errorf("expected summary %q, got %q", "Short.", summary)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestRetriesExhausted(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		writeJSON(t, w, map[string]string{"detail": "boom"})
	}))

	_, err := c.Translate(context.Background(), "hello", "es")
	if !errors.Is(err, domain.ErrBackendRejected) {
		t.Fatalf("expected ErrBackendRejected, got %v", err)
	}
	if calls.Load() != int32(defaultMaxRetries+1) {
		t.Errorf("expected %d attempts, got %d", defaultMaxRetries+1, calls.Load())
	}
}

func TestClientErrorsAreNotRetried(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"bad request", http.StatusBadRequest, domain.ErrBackendRejected},
		{"unauthorized", http.StatusUnauthorized, domain.ErrNotSignedIn},
		{"forbidden", http.StatusForbidden, domain.ErrNotSignedIn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
				writeJSON(t, w, map[string]string{"detail": "nope"})
			}))

			_, err := c.Voices(context.Background())
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if calls.Load() != 1 {
				t.Errorf("expected 1 attempt, got %d", calls.Load())
			}
		})
	}
}

func TestUnreachableBackendIsOffline(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(url, Options{Timeout: time.Second}, adapter.NullLogger())
	err := c.Health(context.Background())
	if !IsOffline(err) {
		t.Fatalf("expected offline error, got %v", err)
	}
}

func TestVoicesSorted(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, []map[string]string{
			{"ShortName": "fr-FR-DeniseNeural", "FriendlyName": "Denise", "Gender": "Female", "Locale": "fr-FR"},
			{"ShortName": "en-US-GuyNeural", "FriendlyName": "Guy", "Gender": "Male", "Locale": "en-US"},
			{"ShortName": "en-US-AriaNeural", "FriendlyName": "Aria", "Gender": "Female", "Locale": "en-US"},
		})
	}))

	voices, err := c.Voices(context.Background())
	if err != nil {
		t.Fatalf("Voices failed: %v", err)
	}
	want := []string{"en-US-AriaNeural", "en-US-GuyNeural", "fr-FR-DeniseNeural"}
	if len(voices) != len(want) {
		t.Fatalf("expected %d voices, got %d", len(want), len(voices))
	}
	for i, v := range voices {
		if v.ShortName != want[i] {
			t.Errorf("voice %d: expected %s, got %s", i, want[i], v.ShortName)
		}
	}
}

func TestUploadSendsMultipartFile(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("expected multipart file: %v", err)
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		if header.Filename != "notes.txt" {
			t.Errorf("expected filename notes.txt, got %s", header.Filename)
		}
		writeJSON(t, w, map[string]string{"text": string(data)})
	}))

	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("Read me aloud."), 0o644); err != nil {
		t.Fatal(err)
	}

	text, err := c.Upload(context.Background(), path)
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if text != "Read me aloud." {
		t.Errorf("expected extracted text, got %q", text)
	}
}

func TestUploadRejectsUnsupportedFile(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", Options{}, adapter.NullLogger())
	_, err := c.Upload(context.Background(), "slides.pptx")
	if !errors.Is(err, domain.ErrUnsupportedFile) {
		t.Fatalf("expected ErrUnsupportedFile, got %v", err)
	}
}

func TestSyncUser(t *testing.T) {
	tests := []struct {
		name     string
		response map[string]any
		wantPlan domain.Plan
		wantErr  bool
	}{
		{"premium", map[string]any{"success": true, "plan": "premium"}, domain.PlanPremium, false},
		{"unknown plan falls back to free", map[string]any{"success": true, "plan": "gold"}, domain.PlanFree, false},
		{"failure", map[string]any{"success": false, "error": "db down"}, domain.PlanFree, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got userSyncRequest
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/auth/sync" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				_ = json.NewDecoder(r.Body).Decode(&got)
				writeJSON(t, w, tt.response)
			}))

			plan, err := c.SyncUser(context.Background(), domain.User{ID: "u1", Email: "a@b.c", Name: "Ada"})
			if (err != nil) != tt.wantErr {
				t.Fatalf("unexpected error state: %v", err)
			}
			if plan != tt.wantPlan {
				t.Errorf("expected plan %s, got %s", tt.wantPlan, plan)
			}
			if got.ID != "u1" || got.Email != "a@b.c" || got.Name != "Ada" {
				t.Errorf("unexpected sync body: %+v", got)
			}
		})
	}
}

func TestSubscriptionFlow(t *testing.T) {
	var verify verifySubscriptionRequest
	mux := http.NewServeMux()
	mux.HandleFunc("/subscription/create", func(w http.ResponseWriter, r *http.Request) {
		var req createSubscriptionRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.PlanID != "plan_pro" {
			t.Errorf("expected plan_pro, got %s", req.PlanID)
		}
		writeJSON(t, w, map[string]any{"success": true, "subscription_id": "sub_1", "key_id": "key_1"})
	})
	mux.HandleFunc("/subscription/verify", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&verify)
		writeJSON(t, w, map[string]any{"success": true})
	})
	c := newTestClient(t, mux)

	sub, err := c.CreateSubscription(context.Background(), "plan_pro")
	if err != nil {
		t.Fatalf("CreateSubscription failed: %v", err)
	}
	if sub.ID != "sub_1" || sub.KeyID != "key_1" {
		t.Errorf("unexpected subscription: %+v", sub)
	}

	err = c.VerifySubscription(context.Background(), domain.PaymentConfirmation{
		PaymentID:      "pay_1",
		SubscriptionID: sub.ID,
		Signature:      "sig",
		PlanName:       "Pro",
		UserID:         "u1",
	})
	if err != nil {
		t.Fatalf("VerifySubscription failed: %v", err)
	}
	if verify.PaymentID != "pay_1" || verify.SubscriptionID != "sub_1" || verify.PlanName != "Pro" {
		t.Errorf("unexpected verify body: %+v", verify)
	}
}

func TestDetect(t *testing.T) {
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]string{"status": "ok", "message": "TTS backend is running"})
	}))
	defer ok.Close()

	msg, err := Detect(context.Background(), ok.URL+"/")
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if msg != "TTS backend is running" {
		t.Errorf("unexpected message %q", msg)
	}

	other := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "<html></html>")
	}))
	defer other.Close()

	if _, err := Detect(context.Background(), other.URL); err == nil {
		t.Error("expected error for non-backend server")
	}
	if _, err := Detect(context.Background(), "localhost:8000"); err == nil {
		t.Error("expected error for URL without scheme")
	}
}
