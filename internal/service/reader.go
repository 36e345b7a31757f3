package service

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/mmcdole/lector/internal/domain"
)

const (
	defaultSummaryLength = 5

	// SourceDemo marks the built-in sample text
	SourceDemo = "demo"

	// SourceTranslationPrefix prefixes the target language of translated text
	SourceTranslationPrefix = "translation:"
)

// documentBackend is the slice of the backend the reader needs
type documentBackend interface {
	Upload(ctx context.Context, path string) (string, error)
	Translate(ctx context.Context, text, targetLang string) (string, error)
	Summarize(ctx context.Context, text string, sentences int) (string, error)
}

// gate checks whether the current user may use a feature
type gate interface {
	Require(feature domain.Feature) error
}

// ReaderOptions configures a ReaderService
type ReaderOptions struct {
	SummaryLength int
	DemoText      string
	Defaults      domain.Settings
}

// ReaderService owns the loaded document and the voice settings.
// Both are autosaved to the store on every change.
type ReaderService struct {
	backend documentBackend
	store   domain.Store
	gate    gate
	logger  *slog.Logger

	summaryLength int
	demoText      string

	mu       sync.RWMutex
	doc      domain.Document
	settings domain.Settings
	onChange func(domain.Document)
}

// NewReaderService creates a reader and restores the last document and
// settings from the store.
func NewReaderService(backend documentBackend, store domain.Store, gate gate, opts ReaderOptions, logger *slog.Logger) *ReaderService {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.SummaryLength <= 0 {
		opts.SummaryLength = defaultSummaryLength
	}
	settings := opts.Defaults
	if settings.Voice == "" {
		settings.Voice = domain.DefaultSettings().Voice
	}

	s := &ReaderService{
		backend:       backend,
		store:         store,
		gate:          gate,
		logger:        logger,
		summaryLength: opts.SummaryLength,
		demoText:      opts.DemoText,
		settings:      settings,
	}

	if doc, ok := store.GetDocument(); ok {
		s.doc = doc
		logger.Debug("restored document", "source", doc.Source, "chars", len(doc.Text))
	}
	if saved, ok := store.GetSettings(); ok && saved.Voice != "" {
		s.settings = saved
	}
	return s
}

// OnDocumentChange registers fn to run after the document text changes
func (s *ReaderService) OnDocumentChange(fn func(domain.Document)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Document returns the loaded document
func (s *ReaderService) Document() domain.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc
}

// LoadFile uploads a PDF or text file and makes its text the document
func (s *ReaderService) LoadFile(ctx context.Context, path string) (domain.Document, error) {
	text, err := s.backend.Upload(ctx, path)
	if err != nil {
		s.logger.Error("upload failed", "error", err, "file", path)
		return s.Document(), err
	}
	if strings.TrimSpace(text) == "" {
		return s.Document(), fmt.Errorf("%w: no text found in %s", domain.ErrNoDocument, filepath.Base(path))
	}
	return s.SetText(text, filepath.Base(path))
}

// LoadDemo replaces the document with the sample text
func (s *ReaderService) LoadDemo() (domain.Document, error) {
	return s.SetText(s.demoText, SourceDemo)
}

// SetText replaces the document text and clears the old summary
func (s *ReaderService) SetText(text, source string) (domain.Document, error) {
	s.mu.Lock()
	s.doc = domain.Document{Text: text, Source: source}
	doc := s.doc
	onChange := s.onChange
	s.mu.Unlock()

	if onChange != nil {
		onChange(doc)
	}
	if err := s.store.SaveDocument(doc); err != nil {
		s.logger.Warn("failed to save document", "error", err)
	}
	s.logger.Info("document loaded", "source", source, "chars", len(text))
	return doc, nil
}

// Translate replaces the document with its translation into lang
func (s *ReaderService) Translate(ctx context.Context, lang string) (domain.Document, error) {
	if err := s.gate.Require(domain.FeatureTranslate); err != nil {
		return s.Document(), err
	}
	doc := s.Document()
	if doc.IsEmpty() {
		return doc, domain.ErrNoDocument
	}

	translated, err := s.backend.Translate(ctx, doc.Text, lang)
	if err != nil {
		s.logger.Error("translation failed", "error", err, "lang", lang)
		return doc, err
	}
	return s.SetText(translated, SourceTranslationPrefix+lang)
}

// Summarize asks the backend for a summary and stores it with the document
func (s *ReaderService) Summarize(ctx context.Context) (string, error) {
	if err := s.gate.Require(domain.FeatureSummarize); err != nil {
		return "", err
	}
	doc := s.Document()
	if doc.IsEmpty() {
		return "", domain.ErrNoDocument
	}

	summary, err := s.backend.Summarize(ctx, doc.Text, s.summaryLength)
	if err != nil {
		s.logger.Error("summarization failed", "error", err)
		return "", err
	}

	s.mu.Lock()
	// Text may have changed while the backend was working
	if s.doc.Text != doc.Text {
		s.mu.Unlock()
		return summary, nil
	}
	s.doc.Summary = summary
	updated := s.doc
	s.mu.Unlock()

	if err := s.store.SaveDocument(updated); err != nil {
		s.logger.Warn("failed to save summary", "error", err)
	}
	return summary, nil
}

// Settings returns the voice settings
func (s *ReaderService) Settings() domain.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// SetVoice selects a synthesis voice
func (s *ReaderService) SetVoice(shortName string) domain.Settings {
	return s.updateSettings(func(st domain.Settings) domain.Settings {
		st.Voice = shortName
		return st
	})
}

// AdjustRate changes the speaking rate by delta percent
func (s *ReaderService) AdjustRate(delta int) domain.Settings {
	return s.updateSettings(func(st domain.Settings) domain.Settings {
		return st.WithRate(delta)
	})
}

// AdjustPitch changes the pitch by delta Hz
func (s *ReaderService) AdjustPitch(delta int) domain.Settings {
	return s.updateSettings(func(st domain.Settings) domain.Settings {
		return st.WithPitch(delta)
	})
}

func (s *ReaderService) updateSettings(fn func(domain.Settings) domain.Settings) domain.Settings {
	s.mu.Lock()
	s.settings = fn(s.settings)
	settings := s.settings
	s.mu.Unlock()

	if err := s.store.SaveSettings(settings); err != nil {
		s.logger.Warn("failed to save settings", "error", err)
	}
	return settings
}
