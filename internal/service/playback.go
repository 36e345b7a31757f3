package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/mmcdole/lector/internal/domain"
	"github.com/mmcdole/lector/internal/playback"
)

// cachingSynthesizer serves repeated requests from the store
type cachingSynthesizer struct {
	next   playback.Synthesizer
	store  domain.Store
	ttl    time.Duration
	logger *slog.Logger
}

func (c *cachingSynthesizer) Synthesize(ctx context.Context, req domain.SynthesisRequest) (*domain.Synthesis, error) {
	if cached, ok := c.store.GetSynthesis(req, c.ttl); ok {
		c.logger.Debug("synthesis cache hit", "voice", req.Voice, "chars", len(req.Text))
		return cached, nil
	}

	syn, err := c.next.Synthesize(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := c.store.SaveSynthesis(req, syn); err != nil {
		c.logger.Warn("failed to cache synthesis", "error", err)
	}
	return syn, nil
}

// PlaybackService orchestrates reading a document aloud
type PlaybackService struct {
	controller *playback.Controller
	gate       gate
	logger     *slog.Logger
}

// NewPlaybackService creates a new playback service. Syntheses are cached
// in store for ttl; events from the live output are delivered to sink.
func NewPlaybackService(
	synth playback.Synthesizer,
	store domain.Store,
	ttl time.Duration,
	newOutput playback.OutputFactory,
	sink playback.Sink,
	gate gate,
	logger *slog.Logger,
) *PlaybackService {
	if logger == nil {
		logger = slog.Default()
	}
	cached := &cachingSynthesizer{next: synth, store: store, ttl: ttl, logger: logger}
	return &PlaybackService{
		controller: playback.NewController(cached, newOutput, sink, logger),
		gate:       gate,
		logger:     logger,
	}
}

// Play reads text aloud with settings. Calling it again with the same
// text while reading toggles pause.
func (s *PlaybackService) Play(ctx context.Context, text string, settings domain.Settings) error {
	if err := s.gate.Require(domain.FeatureReadAloud); err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		return domain.ErrNoDocument
	}
	s.logger.Info("starting playback", "voice", settings.Voice, "rate", settings.RateString(), "pitch", settings.PitchString())
	return s.controller.Start(ctx, domain.NewSynthesisRequest(text, settings))
}

// Toggle pauses or resumes the current reading
func (s *PlaybackService) Toggle() error {
	return s.controller.Toggle()
}

// Stop abandons the current reading and returns to idle
func (s *PlaybackService) Stop() {
	s.controller.Reset()
}

// HandleEvent applies an output event; stale events return false
func (s *PlaybackService) HandleEvent(ev playback.Event) bool {
	return s.controller.HandleEvent(ev)
}

// Snapshot returns the playback state for rendering
func (s *PlaybackService) Snapshot() playback.Snapshot {
	return s.controller.Snapshot()
}

// Close stops playback and releases the output
func (s *PlaybackService) Close() {
	s.controller.Close()
}
