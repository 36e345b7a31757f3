package tui

import (
	"github.com/mmcdole/lector/internal/domain"
	"github.com/mmcdole/lector/internal/playback"
)

// Message types for the TUI

// ErrMsg represents an error
type ErrMsg struct {
	Err     error
	Context string
}

// Error implements the error interface
func (e ErrMsg) Error() string {
	if e.Context != "" {
		return e.Context + ": " + e.Err.Error()
	}
	return e.Err.Error()
}

// StatusMsg shows a transient, non-error toast
type StatusMsg struct {
	Text string
}

// clearStatusMsg expires the toast with the given sequence number
type clearStatusMsg struct {
	seq int
}

// TickMsg drives the spinner
type TickMsg struct{}

// scrollTickMsg advances the smooth scroller
type scrollTickMsg struct{}

// PlaybackEventMsg carries an event from the audio output
type PlaybackEventMsg struct {
	Event playback.Event
}

// PlaybackStartedMsg reports the end of a start request (synthesis + launch)
type PlaybackStartedMsg struct {
	Err error
}

// DocumentLoadedMsg signals that the document text changed
type DocumentLoadedMsg struct {
	Document domain.Document
}

// SummaryReadyMsg carries a new summary
type SummaryReadyMsg struct {
	Summary string
}

// VoicesLoadedMsg signals that voices were fetched
type VoicesLoadedMsg struct {
	Voices []domain.Voice
}

// PlanSyncedMsg reports the user's plan after a backend sync
type PlanSyncedMsg struct {
	Plan domain.Plan
}

// LogoutCompleteMsg signals that logout finished
type LogoutCompleteMsg struct {
	Error error
}
