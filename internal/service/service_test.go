package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/mmcdole/lector/internal/adapter"
	"github.com/mmcdole/lector/internal/domain"
	"github.com/mmcdole/lector/internal/playback"
	"github.com/mmcdole/lector/internal/store"
)

// fakeBackend implements domain.Backend in memory
type fakeBackend struct {
	mu          sync.Mutex
	uploadText  string
	uploadErr   error
	summary     string
	plan        domain.Plan
	syncErr     error
	voices      []domain.Voice
	voiceCalls  int
	synthCalls  int
	summarizeN  int
	translateTo string
	verified    domain.PaymentConfirmation
}

func (f *fakeBackend) Upload(ctx context.Context, path string) (string, error) {
	return f.uploadText, f.uploadErr
}

func (f *fakeBackend) Synthesize(ctx context.Context, req domain.SynthesisRequest) (*domain.Synthesis, error) {
	f.mu.Lock()
	f.synthCalls++
	f.mu.Unlock()
	return &domain.Synthesis{
		AudioURL: "http://backend/audio.mp3",
		Marks:    domain.Marks{{Text: req.Text, Start: 0, End: 2}},
	}, nil
}

func (f *fakeBackend) Voices(ctx context.Context) ([]domain.Voice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.voiceCalls++
	return f.voices, nil
}

func (f *fakeBackend) Translate(ctx context.Context, text, targetLang string) (string, error) {
	f.translateTo = targetLang
	return "[" + targetLang + "] " + text, nil
}

func (f *fakeBackend) Summarize(ctx context.Context, text string, sentences int) (string, error) {
	f.summarizeN = sentences
	return f.summary, nil
}

func (f *fakeBackend) SyncUser(ctx context.Context, user domain.User) (domain.Plan, error) {
	return f.plan, f.syncErr
}

func (f *fakeBackend) CreateSubscription(ctx context.Context, planID string) (*domain.Subscription, error) {
	return &domain.Subscription{ID: "sub_" + planID, KeyID: "key"}, nil
}

func (f *fakeBackend) VerifySubscription(ctx context.Context, c domain.PaymentConfirmation) error {
	f.verified = c
	return nil
}

var testUser = domain.User{ID: "u1", Email: "ada@example.com", Name: "Ada"}

func newMemoryStore(t *testing.T) *store.ReaderStore {
	t.Helper()
	s, err := store.NewReaderStore("", "")
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func newSession(t *testing.T, backend *fakeBackend, plan domain.Plan) *SessionService {
	t.Helper()
	backend.plan = plan
	s := NewSessionService(backend, testUser, adapter.NullLogger())
	if _, err := s.Sync(context.Background()); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	return s
}

func TestSessionSyncAndGating(t *testing.T) {
	tests := []struct {
		plan      domain.Plan
		feature   domain.Feature
		wantError error
	}{
		{domain.PlanFree, domain.FeatureReadAloud, nil},
		{domain.PlanFree, domain.FeatureTranslate, nil},
		{domain.PlanFree, domain.FeatureSummarize, domain.ErrFeatureLocked},
		{domain.PlanPremium, domain.FeatureSummarize, nil},
		{domain.PlanEnterprise, domain.FeatureSummarize, nil},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%s", tt.plan, tt.feature), func(t *testing.T) {
			s := newSession(t, &fakeBackend{}, tt.plan)
			if s.Plan() != tt.plan {
				t.Fatalf("expected plan %s, got %s", tt.plan, s.Plan())
			}
			err := s.Require(tt.feature)
			if tt.wantError == nil && err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if tt.wantError != nil && !errors.Is(err, tt.wantError) {
				t.Fatalf("expected %v, got %v", tt.wantError, err)
			}
		})
	}
}

func TestSessionSyncFailureKeepsPlan(t *testing.T) {
	backend := &fakeBackend{syncErr: domain.ErrBackendOffline}
	s := NewSessionService(backend, testUser, adapter.NullLogger())

	plan, err := s.Sync(context.Background())
	if !errors.Is(err, domain.ErrBackendOffline) {
		t.Fatalf("expected offline error, got %v", err)
	}
	if plan != domain.PlanFree {
		t.Errorf("expected free plan after failed sync, got %s", plan)
	}
}

func TestSessionWithoutUser(t *testing.T) {
	s := NewSessionService(&fakeBackend{}, domain.User{}, adapter.NullLogger())
	if _, err := s.Sync(context.Background()); !errors.Is(err, domain.ErrNotSignedIn) {
		t.Errorf("expected ErrNotSignedIn from Sync, got %v", err)
	}
	if err := s.Require(domain.FeatureReadAloud); !errors.Is(err, domain.ErrNotSignedIn) {
		t.Errorf("expected ErrNotSignedIn from Require, got %v", err)
	}
}

func TestSessionUpgrade(t *testing.T) {
	backend := &fakeBackend{}
	s := newSession(t, backend, domain.PlanFree)

	sub, err := s.StartUpgrade(context.Background(), "plan_pro")
	if err != nil {
		t.Fatalf("StartUpgrade failed: %v", err)
	}
	plan, err := s.ConfirmUpgrade(context.Background(), domain.PaymentConfirmation{
		PaymentID:      "pay_1",
		SubscriptionID: sub.ID,
		Signature:      "sig",
		PlanName:       "Pro Monthly",
	})
	if err != nil {
		t.Fatalf("ConfirmUpgrade failed: %v", err)
	}
	if plan != domain.PlanPremium || s.Plan() != domain.PlanPremium {
		t.Errorf("expected premium plan, got %s", plan)
	}
	if backend.verified.UserID != testUser.ID {
		t.Errorf("expected user ID to be filled in, got %q", backend.verified.UserID)
	}
}

func TestSessionLogout(t *testing.T) {
	s := newSession(t, &fakeBackend{}, domain.PlanPremium)
	var cleared []string
	s.clearUser = func() error { cleared = append(cleared, "user"); return nil }
	s.clearCache = func() error { cleared = append(cleared, "cache"); return nil }

	if err := s.Logout(); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if len(cleared) != 2 {
		t.Errorf("expected user and cache to be cleared, got %v", cleared)
	}
	if s.User().SignedIn() || s.Plan() != domain.PlanFree {
		t.Errorf("expected signed-out free user, got %+v", s.User())
	}
}

func TestReaderLoadFileResetsSummary(t *testing.T) {
	backend := &fakeBackend{uploadText: "Extracted text.", summary: "Short."}
	st := newMemoryStore(t)
	session := newSession(t, backend, domain.PlanPremium)
	reader := NewReaderService(backend, st, session, ReaderOptions{}, adapter.NullLogger())

	var changes int
	reader.OnDocumentChange(func(domain.Document) { changes++ })

	if _, err := reader.SetText("Old text.", "paste"); err != nil {
		t.Fatal(err)
	}
	if _, err := reader.Summarize(context.Background()); err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if backend.summarizeN != defaultSummaryLength {
		t.Errorf("expected %d sentences, got %d", defaultSummaryLength, backend.summarizeN)
	}
	if reader.Document().Summary != "Short." {
		t.Fatalf("expected summary to be stored, got %q", reader.Document().Summary)
	}

	doc, err := reader.LoadFile(context.Background(), "/tmp/book.pdf")
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if doc.Text != "Extracted text." || doc.Source != "book.pdf" || doc.Summary != "" {
		t.Errorf("unexpected document: %+v", doc)
	}
	if changes != 2 {
		t.Errorf("expected 2 change notifications, got %d", changes)
	}

	saved, ok := st.GetDocument()
	if !ok || saved.Text != "Extracted text." {
		t.Errorf("expected document to be autosaved, got %+v", saved)
	}
}

func TestReaderRestoresFromStore(t *testing.T) {
	st := newMemoryStore(t)
	_ = st.SaveDocument(domain.Document{Text: "Saved.", Summary: "S.", Source: "demo"})
	_ = st.SaveSettings(domain.Settings{Voice: "fr-FR-DeniseNeural", Rate: 10})

	reader := NewReaderService(&fakeBackend{}, st, newSession(t, &fakeBackend{}, domain.PlanFree), ReaderOptions{}, adapter.NullLogger())
	if reader.Document().Text != "Saved." || reader.Document().Summary != "S." {
		t.Errorf("expected restored document, got %+v", reader.Document())
	}
	if reader.Settings().Voice != "fr-FR-DeniseNeural" || reader.Settings().Rate != 10 {
		t.Errorf("expected restored settings, got %+v", reader.Settings())
	}
}

func TestReaderGatesAndEmptyDocument(t *testing.T) {
	backend := &fakeBackend{}
	free := NewReaderService(backend, newMemoryStore(t), newSession(t, backend, domain.PlanFree), ReaderOptions{}, adapter.NullLogger())

	if _, err := free.Summarize(context.Background()); !errors.Is(err, domain.ErrFeatureLocked) {
		t.Errorf("expected ErrFeatureLocked for free summarize, got %v", err)
	}
	if _, err := free.Translate(context.Background(), "es"); !errors.Is(err, domain.ErrNoDocument) {
		t.Errorf("expected ErrNoDocument for empty translate, got %v", err)
	}

	backend.uploadText = "   "
	if _, err := free.LoadFile(context.Background(), "blank.txt"); !errors.Is(err, domain.ErrNoDocument) {
		t.Errorf("expected ErrNoDocument for blank upload, got %v", err)
	}
}

func TestReaderTranslateReplacesDocument(t *testing.T) {
	backend := &fakeBackend{}
	reader := NewReaderService(backend, newMemoryStore(t), newSession(t, backend, domain.PlanFree), ReaderOptions{DemoText: "Hello."}, adapter.NullLogger())
	if _, err := reader.LoadDemo(); err != nil {
		t.Fatal(err)
	}

	doc, err := reader.Translate(context.Background(), "es")
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	if doc.Text != "[es] Hello." || doc.Source != SourceTranslationPrefix+"es" {
		t.Errorf("unexpected translated document: %+v", doc)
	}
}

func TestReaderSettingsClamp(t *testing.T) {
	st := newMemoryStore(t)
	reader := NewReaderService(&fakeBackend{}, st, newSession(t, &fakeBackend{}, domain.PlanFree), ReaderOptions{}, adapter.NullLogger())

	for i := 0; i < 20; i++ {
		reader.AdjustRate(10)
	}
	reader.AdjustPitch(-5)
	reader.SetVoice("en-GB-RyanNeural")

	got := reader.Settings()
	if got.Rate != domain.MaxAdjustment || got.Pitch != -5 || got.Voice != "en-GB-RyanNeural" {
		t.Errorf("unexpected settings: %+v", got)
	}
	if saved, _ := st.GetSettings(); saved != got {
		t.Errorf("expected settings to be saved, got %+v", saved)
	}
}

// testOutput is a minimal playback.Output
type testOutput struct{ id string }

func (o *testOutput) ID() string { return o.id }
func (o *testOutput) Play(offset float64) error { return nil }
func (o *testOutput) Pause() (float64, error) { return 0.5, nil }
func (o *testOutput) Close() error { return nil }

func newTestPlayback(t *testing.T, backend *fakeBackend, plan domain.Plan) *PlaybackService {
	t.Helper()
	n := 0
	factory := func(audioURL string, duration float64, sink playback.Sink) (playback.Output, error) {
		n++
		return &testOutput{id: fmt.Sprintf("out-%d", n)}, nil
	}
	svc := NewPlaybackService(backend, newMemoryStore(t), 0, factory, nil, newSession(t, backend, plan), adapter.NullLogger())
	t.Cleanup(svc.Close)
	return svc
}

func TestPlaybackUsesSynthesisCache(t *testing.T) {
	backend := &fakeBackend{}
	svc := newTestPlayback(t, backend, domain.PlanFree)
	settings := domain.DefaultSettings()

	if err := svc.Play(context.Background(), "Hello.", settings); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	svc.Stop()
	if err := svc.Play(context.Background(), "Hello.", settings); err != nil {
		t.Fatalf("second Play failed: %v", err)
	}
	if backend.synthCalls != 1 {
		t.Errorf("expected cached second synthesis, got %d backend calls", backend.synthCalls)
	}

	svc.Stop()
	if err := svc.Play(context.Background(), "Hello.", settings.WithRate(10)); err != nil {
		t.Fatal(err)
	}
	if backend.synthCalls != 2 {
		t.Errorf("expected a new synthesis for a new rate, got %d calls", backend.synthCalls)
	}
}

func TestPlaybackToggleAndStop(t *testing.T) {
	svc := newTestPlayback(t, &fakeBackend{}, domain.PlanFree)

	if err := svc.Play(context.Background(), "Hello.", domain.DefaultSettings()); err != nil {
		t.Fatal(err)
	}
	if svc.Snapshot().State != playback.StatePlaying {
		t.Fatalf("expected playing, got %s", svc.Snapshot().State)
	}

	// Same text again toggles, like the play button
	if err := svc.Play(context.Background(), "Hello.", domain.DefaultSettings()); err != nil {
		t.Fatal(err)
	}
	snap := svc.Snapshot()
	if snap.State != playback.StatePaused || snap.CurrentTime != 0.5 {
		t.Fatalf("expected paused at 0.5, got %s at %v", snap.State, snap.CurrentTime)
	}

	svc.Stop()
	if svc.Snapshot().State != playback.StateIdle {
		t.Errorf("expected idle after stop, got %s", svc.Snapshot().State)
	}
}

func TestPlaybackRequiresText(t *testing.T) {
	svc := newTestPlayback(t, &fakeBackend{}, domain.PlanFree)
	if err := svc.Play(context.Background(), "  ", domain.DefaultSettings()); !errors.Is(err, domain.ErrNoDocument) {
		t.Errorf("expected ErrNoDocument, got %v", err)
	}
}

func TestVoiceServiceLoadsOnce(t *testing.T) {
	backend := &fakeBackend{voices: []domain.Voice{
		{ShortName: "en-US-AriaNeural", FriendlyName: "Aria", Locale: "en-US"},
		{ShortName: "de-DE-KatjaNeural", FriendlyName: "Katja", Locale: "de-DE"},
	}}
	svc := NewVoiceService(backend, adapter.NullLogger())

	for i := 0; i < 2; i++ {
		if _, err := svc.Load(context.Background()); err != nil {
			t.Fatalf("Load failed: %v", err)
		}
	}
	if backend.voiceCalls != 1 {
		t.Errorf("expected 1 backend call, got %d", backend.voiceCalls)
	}

	results := svc.Filter("katja")
	if len(results) != 1 || results[0].Voice.ShortName != "de-DE-KatjaNeural" {
		t.Errorf("unexpected filter results: %+v", results)
	}
	if _, ok := svc.Find("en-US-AriaNeural"); !ok {
		t.Error("expected to find Aria")
	}
	if langs := svc.Languages("fren"); len(langs) == 0 || langs[0].Code != "fr" {
		t.Errorf("expected French first, got %+v", langs)
	}
}
