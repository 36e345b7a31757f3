package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mmcdole/lector/internal/domain"
	"github.com/mmcdole/lector/internal/service"
)

// Command factories for async operations

// LoadVoicesCmd fetches the synthesis voices
func LoadVoicesCmd(svc *service.VoiceService) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		voices, err := svc.Load(ctx)
		if err != nil {
			return ErrMsg{Err: err, Context: "loading voices"}
		}
		return VoicesLoadedMsg{Voices: voices}
	}
}

// SyncUserCmd refreshes the user's plan
func SyncUserCmd(svc *service.SessionService) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		plan, err := svc.Sync(ctx)
		if err != nil {
			return ErrMsg{Err: err, Context: "syncing account"}
		}
		return PlanSyncedMsg{Plan: plan}
	}
}

// PlayCmd synthesizes the document and starts reading it aloud
func PlayCmd(svc *service.PlaybackService, text string, settings domain.Settings) tea.Cmd {
	return func() tea.Msg {
		// Synthesis of long documents is slow on the backend
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
		defer cancel()

		return PlaybackStartedMsg{Err: svc.Play(ctx, text, settings)}
	}
}

// OpenFileCmd uploads a file and loads its text
func OpenFileCmd(svc *service.ReaderService, path string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		doc, err := svc.LoadFile(ctx, path)
		if err != nil {
			return ErrMsg{Err: err, Context: "opening file"}
		}
		return DocumentLoadedMsg{Document: doc}
	}
}

// TranslateCmd replaces the document with its translation
func TranslateCmd(svc *service.ReaderService, lang string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		doc, err := svc.Translate(ctx, lang)
		if err != nil {
			return ErrMsg{Err: err, Context: "translating"}
		}
		return DocumentLoadedMsg{Document: doc}
	}
}

// SummarizeCmd asks for a summary of the document
func SummarizeCmd(svc *service.ReaderService) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		summary, err := svc.Summarize(ctx)
		if err != nil {
			return ErrMsg{Err: err, Context: "summarizing"}
		}
		return SummaryReadyMsg{Summary: summary}
	}
}

// CopyCmd writes text to the system clipboard
func CopyCmd(what, text string) tea.Cmd {
	return func() tea.Msg {
		if text == "" {
			return ErrMsg{Err: fmt.Errorf("nothing to copy"), Context: "copy " + what}
		}
		if err := clipboard.WriteAll(text); err != nil {
			return ErrMsg{Err: err, Context: "copy " + what}
		}
		return StatusMsg{Text: "Copied " + what + " to clipboard"}
	}
}

// LogoutCmd clears the stored identity and cache, then signals completion
func LogoutCmd(svc *service.SessionService) tea.Cmd {
	return func() tea.Msg {
		return LogoutCompleteMsg{Error: svc.Logout()}
	}
}

// TickCmd returns a command that sends a tick after a delay
func TickCmd(delay time.Duration) tea.Cmd {
	return tea.Tick(delay, func(t time.Time) tea.Msg {
		return TickMsg{}
	})
}

// scrollTickCmd schedules the next smooth-scroll frame
func scrollTickCmd() tea.Cmd {
	return tea.Tick(scrollFrame, func(t time.Time) tea.Msg {
		return scrollTickMsg{}
	})
}

// ClearStatusCmd expires toast seq after a delay
func ClearStatusCmd(seq int, delay time.Duration) tea.Cmd {
	return tea.Tick(delay, func(t time.Time) tea.Msg {
		return clearStatusMsg{seq: seq}
	})
}
