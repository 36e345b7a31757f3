package domain

import "time"

// Store handles local persistence (BoltDB + memory).
type Store interface {
	// === Document (autosaved text + summary) ===
	GetDocument() (Document, bool)
	SaveDocument(doc Document) error

	// === Settings ===
	GetSettings() (Settings, bool)
	SaveSettings(s Settings) error

	// === Synthesis cache ===
	GetSynthesis(req SynthesisRequest, maxAge time.Duration) (*Synthesis, bool)
	SaveSynthesis(req SynthesisRequest, s *Synthesis) error

	InvalidateAll()
	Close() error
}
