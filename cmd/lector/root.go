package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mmcdole/lector/internal/adapter"
	"github.com/mmcdole/lector/internal/domain"
	"github.com/mmcdole/lector/internal/service"
	"github.com/mmcdole/lector/internal/tui"
	"github.com/spf13/cobra"
)

const eventQueueSize = 64

var rootCmd = &cobra.Command{
	Use:   "lector",
	Short: "Read documents aloud in the terminal",
	Long: `Lector loads a PDF or text document, has the reading backend synthesize
speech for it, and highlights each sentence as it is spoken. Translation
and summaries are available on paid plans.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	Args:          cobra.NoArgs,
	RunE:          runReader,
}

func init() {
	rootCmd.SetVersionTemplate("lector {{.Version}}\n")
}

func runReader(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	a.logger.Info("starting lector", "version", Version)

	if !a.cfg.IsConfigured() {
		return runSetup(cmd, a)
	}

	if err := a.bootstrap(cmd.Context()); err != nil {
		a.logger.Warn("starting without the backend", "error", err)
	}

	queue := tui.NewEventQueue(eventQueueSize)
	defer queue.Close()
	players := adapter.NewPlayerFactory(a.cfg.Player, a.logger)
	a.logger.Info("audio output", "player", players.PlayerName())

	playbackSvc := service.NewPlaybackService(
		a.client, a.store, a.cfg.Cache.SynthesisTTL,
		players.NewOutput, queue.Sink, a.session, a.logger,
	)
	defer playbackSvc.Close()
	a.reader.OnDocumentChange(func(domain.Document) {
		playbackSvc.Stop()
	})

	model := tui.NewModel(a.reader, playbackSvc, a.session, a.voices, queue.Events(), tui.Options{
		ScrollMargin: a.cfg.Reader.ScrollMargin,
		ScrollRatio:  a.cfg.Reader.ScrollRatio,
	})

	p := tea.NewProgram(
		model,
		tea.WithAltScreen(),
		tea.WithContext(cmd.Context()),
	)

	a.logger.Info("starting TUI")

	final, err := p.Run()
	if err != nil {
		a.logger.Error("TUI error", "error", err)
		return fmt.Errorf("TUI error: %w", err)
	}

	if m, ok := final.(tui.Model); ok && m.LoggedOut {
		a.store.InvalidateAll()
		fmt.Println("Signed out. Run lector setup to sign in again.")
	}
	a.logger.Info("shutting down")
	return nil
}
