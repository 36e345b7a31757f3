package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/mmcdole/lector/internal/domain"
	"github.com/mmcdole/lector/internal/search"
)

type voiceBackend interface {
	Voices(ctx context.Context) ([]domain.Voice, error)
}

// VoiceService loads the backend's voices once and filters them locally
type VoiceService struct {
	backend voiceBackend
	logger  *slog.Logger

	mu     sync.RWMutex
	voices []domain.Voice
	loaded bool
}

// NewVoiceService creates a new voice service
func NewVoiceService(backend voiceBackend, logger *slog.Logger) *VoiceService {
	if logger == nil {
		logger = slog.Default()
	}
	return &VoiceService{backend: backend, logger: logger}
}

// Load fetches voices from the backend, returning the cached list after
// the first success.
func (s *VoiceService) Load(ctx context.Context) ([]domain.Voice, error) {
	s.mu.RLock()
	if s.loaded {
		voices := s.voices
		s.mu.RUnlock()
		return voices, nil
	}
	s.mu.RUnlock()

	voices, err := s.backend.Voices(ctx)
	if err != nil {
		s.logger.Error("failed to load voices", "error", err)
		return nil, err
	}

	s.mu.Lock()
	s.voices = voices
	s.loaded = true
	s.mu.Unlock()

	s.logger.Info("voices loaded", "count", len(voices))
	return voices, nil
}

// Voices returns the loaded voices (nil before Load)
func (s *VoiceService) Voices() []domain.Voice {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.voices
}

// Filter fuzzy-matches the loaded voices
func (s *VoiceService) Filter(query string) []search.VoiceResult {
	return search.FilterVoices(query, s.Voices())
}

// Find returns a loaded voice by short name
func (s *VoiceService) Find(shortName string) (domain.Voice, bool) {
	return search.FindVoice(shortName, s.Voices())
}

// Languages fuzzy-matches the translation targets
func (s *VoiceService) Languages(query string) []domain.Language {
	return search.FilterLanguages(query, domain.Languages)
}
