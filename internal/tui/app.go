package tui

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mmcdole/lector/internal/domain"
	"github.com/mmcdole/lector/internal/highlight"
	"github.com/mmcdole/lector/internal/playback"
	"github.com/mmcdole/lector/internal/search"
	"github.com/mmcdole/lector/internal/service"
	"github.com/mmcdole/lector/internal/tui/components"
	"github.com/mmcdole/lector/internal/tui/styles"
	"github.com/muesli/reflow/wordwrap"
)

// ApplicationState represents the current state of the application
type ApplicationState int

const (
	StateReading ApplicationState = iota
	StateVoicePicker
	StateLanguagePicker
	StateOpenFile
	StateHelp
	StateConfirmLogout
)

const (
	// Vertical chrome: bordered control panel and a single footer line
	ControlPanelHeight = 3
	FooterHeight       = 1
	MaxSummaryLines    = 6

	statusDuration  = 4 * time.Second
	spinnerInterval = 100 * time.Millisecond
	scrollFrame     = 30 * time.Millisecond

	rateStep  = 10
	pitchStep = 5
)

// Options tune the reader pane
type Options struct {
	ScrollMargin int     // lines kept between the highlight and the pane edge
	ScrollRatio  float64 // smooth scroll step fraction
}

// layoutKey identifies the content the current layout was built from
type layoutKey struct {
	width int
	text  string
	marks bool
}

// Model is the main Bubble Tea model for the application
type Model struct {
	// Application state
	State ApplicationState
	Ready bool

	// Services
	ReaderSvc   *service.ReaderService
	PlaybackSvc *service.PlaybackService
	SessionSvc  *service.SessionService
	VoiceSvc    *service.VoiceService

	// UI Components
	Picker     components.Picker
	InputModal components.InputModal
	keys       KeyMap
	help       help.Model

	events <-chan playback.Event

	// Dimensions
	Width  int
	Height int

	// Reader pane
	snapshot     playback.Snapshot
	layout       readerLayout
	layoutKey    layoutKey
	scroller     *highlight.Scroller
	scrollMargin int
	scrolling    bool

	// UI state
	StatusMsg    string
	StatusIsErr  bool
	statusSeq    int
	Busy         string // non-empty while a backend call is running
	SpinnerFrame int
	LoggedOut    bool
}

// NewModel creates a new application model
func NewModel(
	readerSvc *service.ReaderService,
	playbackSvc *service.PlaybackService,
	sessionSvc *service.SessionService,
	voiceSvc *service.VoiceService,
	events <-chan playback.Event,
	opts Options,
) Model {
	if opts.ScrollMargin < 0 {
		opts.ScrollMargin = 0
	}
	input := components.NewInputModal()
	input.SetValidator(validateDocumentPath)

	return Model{
		State:        StateReading,
		ReaderSvc:    readerSvc,
		PlaybackSvc:  playbackSvc,
		SessionSvc:   sessionSvc,
		VoiceSvc:     voiceSvc,
		Picker:       components.NewPicker(),
		InputModal:   input,
		keys:         DefaultKeyMap(),
		help:         help.New(),
		events:       events,
		scroller:     highlight.NewScroller(opts.ScrollRatio),
		scrollMargin: opts.ScrollMargin,
		snapshot:     playbackSvc.Snapshot(),
	}
}

// Init initializes the application
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		WaitForEventCmd(m.events),
		LoadVoicesCmd(m.VoiceSvc),
		TickCmd(spinnerInterval),
	)
}

// Update handles all messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Ready = true
		m.help.Width = msg.Width
		m.Picker.SetSize(msg.Width, msg.Height)
		m.relayout()
		return m, m.followHighlight(false)

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case TickMsg:
		m.SpinnerFrame++
		return m, TickCmd(spinnerInterval)

	case scrollTickMsg:
		if m.scroller.Step() {
			return m, scrollTickCmd()
		}
		m.scrolling = false
		return m, nil

	case PlaybackEventMsg:
		if !m.PlaybackSvc.HandleEvent(msg.Event) {
			return m, WaitForEventCmd(m.events)
		}
		cmds := []tea.Cmd{WaitForEventCmd(m.events), m.refreshPlayback()}
		if msg.Event.Kind == playback.EventEnded {
			cmds = append(cmds, m.setStatus("Finished reading", false))
		}
		return m, tea.Batch(cmds...)

	case PlaybackStartedMsg:
		m.Busy = ""
		cmd := m.refreshPlayback()
		if msg.Err != nil && !errors.Is(msg.Err, playback.ErrSuperseded) {
			return m, tea.Batch(cmd, m.setStatus(describeError(msg.Err), true))
		}
		return m, cmd

	case DocumentLoadedMsg:
		m.Busy = ""
		m.scroller.Jump(0)
		m.scrolling = false
		return m, tea.Batch(
			m.refreshPlayback(),
			m.setStatus("Loaded "+describeSource(msg.Document.Source), false),
		)

	case SummaryReadyMsg:
		m.Busy = ""
		m.relayout()
		return m, m.setStatus("Summary ready", false)

	case VoicesLoadedMsg:
		if m.State == StateVoicePicker {
			m.Picker.SetItems(voiceItems(m.VoiceSvc.Filter(m.Picker.Query())))
		}
		return m, nil

	case PlanSyncedMsg:
		if !msg.Plan.IsPaid() {
			return m, nil
		}
		return m, m.setStatus("Plan: "+string(msg.Plan), false)

	case StatusMsg:
		return m, m.setStatus(msg.Text, false)

	case clearStatusMsg:
		if msg.seq == m.statusSeq {
			m.StatusMsg = ""
			m.StatusIsErr = false
		}
		return m, nil

	case ErrMsg:
		m.Busy = ""
		return m, m.setStatus(msg.Context+": "+describeError(msg.Err), true)

	case LogoutCompleteMsg:
		if msg.Error != nil {
			m.State = StateReading
			return m, m.setStatus("logout failed: "+msg.Error.Error(), true)
		}
		m.LoggedOut = true
		m.PlaybackSvc.Close()
		return m, tea.Quit
	}

	return m, nil
}

func (m Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Handle state-specific keys
	switch m.State {
	case StateHelp:
		if msg.String() == "esc" || msg.String() == "?" || msg.String() == "q" {
			m.State = StateReading
		}
		return m, nil

	case StateConfirmLogout:
		switch msg.String() {
		case "y", "Y":
			return m, LogoutCmd(m.SessionSvc)
		case "n", "N", "esc":
			m.State = StateReading
		}
		return m, nil

	case StateVoicePicker, StateLanguagePicker:
		return m.handlePickerKey(msg)

	case StateOpenFile:
		var cmd tea.Cmd
		var submitted bool
		m.InputModal, cmd, submitted = m.InputModal.Update(msg)
		if !m.InputModal.IsVisible() {
			m.State = StateReading
			return m, cmd
		}
		if submitted {
			path := expandPath(m.InputModal.Value())
			m.InputModal.Hide()
			m.State = StateReading
			if path == "" {
				return m, nil
			}
			m.Busy = "Extracting text..."
			return m, OpenFileCmd(m.ReaderSvc, path)
		}
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.PlaybackSvc.Close()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.State = StateHelp
		return m, nil

	case key.Matches(msg, m.keys.Logout):
		m.State = StateConfirmLogout
		return m, nil

	case key.Matches(msg, m.keys.PlayPause):
		return m.handlePlayPause()

	case key.Matches(msg, m.keys.Stop):
		m.PlaybackSvc.Stop()
		return m, m.refreshPlayback()

	case key.Matches(msg, m.keys.Open):
		m.State = StateOpenFile
		m.InputModal.Show("Open document", "Path to a PDF or .txt file", "")
		return m, nil

	case key.Matches(msg, m.keys.Demo):
		doc, err := m.ReaderSvc.LoadDemo()
		if err != nil {
			return m, m.setStatus(describeError(err), true)
		}
		return m.Update(DocumentLoadedMsg{Document: doc})

	case key.Matches(msg, m.keys.Translate):
		if err := m.SessionSvc.Require(domain.FeatureTranslate); err != nil {
			return m, m.setStatus(describeError(err), true)
		}
		m.State = StateLanguagePicker
		m.Picker.Show("Translate to", languageItems(m.VoiceSvc.Languages("")))
		return m, nil

	case key.Matches(msg, m.keys.Summarize):
		if err := m.SessionSvc.Require(domain.FeatureSummarize); err != nil {
			// The plan may have been upgraded from the command line
			if errors.Is(err, domain.ErrFeatureLocked) {
				return m, tea.Batch(m.setStatus(describeError(err), true), SyncUserCmd(m.SessionSvc))
			}
			return m, m.setStatus(describeError(err), true)
		}
		m.Busy = "Summarizing..."
		return m, SummarizeCmd(m.ReaderSvc)

	case key.Matches(msg, m.keys.CopyText):
		return m, CopyCmd("text", m.ReaderSvc.Document().Text)

	case key.Matches(msg, m.keys.CopySum):
		return m, CopyCmd("summary", m.ReaderSvc.Document().Summary)

	case key.Matches(msg, m.keys.Voice):
		m.State = StateVoicePicker
		m.Picker.Show("Voice", voiceItems(m.VoiceSvc.Filter("")))
		if len(m.VoiceSvc.Voices()) == 0 {
			return m, LoadVoicesCmd(m.VoiceSvc)
		}
		return m, nil

	case key.Matches(msg, m.keys.Faster):
		s := m.ReaderSvc.AdjustRate(rateStep)
		return m, m.setStatus("Speed "+s.RateString(), false)

	case key.Matches(msg, m.keys.Slower):
		s := m.ReaderSvc.AdjustRate(-rateStep)
		return m, m.setStatus("Speed "+s.RateString(), false)

	case key.Matches(msg, m.keys.PitchUp):
		s := m.ReaderSvc.AdjustPitch(pitchStep)
		return m, m.setStatus("Pitch "+s.PitchString(), false)

	case key.Matches(msg, m.keys.PitchDown):
		s := m.ReaderSvc.AdjustPitch(-pitchStep)
		return m, m.setStatus("Pitch "+s.PitchString(), false)

	case key.Matches(msg, m.keys.Up):
		m.scrollBy(-1)
	case key.Matches(msg, m.keys.Down):
		m.scrollBy(1)
	case key.Matches(msg, m.keys.PageUp):
		m.scrollBy(-m.readerHeight() / 2)
	case key.Matches(msg, m.keys.PageDown):
		m.scrollBy(m.readerHeight() / 2)
	case key.Matches(msg, m.keys.Follow):
		return m, m.followHighlight(true)
	}
	return m, nil
}

func (m Model) handlePlayPause() (tea.Model, tea.Cmd) {
	if m.Busy != "" {
		return m, nil
	}
	if m.snapshot.Playing() {
		if err := m.PlaybackSvc.Toggle(); err != nil {
			return m, m.setStatus(describeError(err), true)
		}
		return m, m.refreshPlayback()
	}

	doc := m.ReaderSvc.Document()
	if doc.IsEmpty() {
		return m, m.setStatus("Open a document first (o), or load the demo text (d)", true)
	}
	m.Busy = "Generating audio..."
	return m, PlayCmd(m.PlaybackSvc, doc.Text, m.ReaderSvc.Settings())
}

func (m Model) handlePickerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	var selected bool
	m.Picker, cmd, selected = m.Picker.Update(msg)

	if !m.Picker.IsVisible() {
		m.State = StateReading
		return m, cmd
	}

	if m.Picker.QueryChanged() {
		query := m.Picker.Query()
		if m.State == StateVoicePicker {
			m.Picker.SetItems(voiceItems(m.VoiceSvc.Filter(query)))
		} else {
			m.Picker.SetItems(languageItems(m.VoiceSvc.Languages(query)))
		}
	}

	if !selected {
		return m, cmd
	}

	item, _ := m.Picker.Selected()
	state := m.State
	m.Picker.Hide()
	m.State = StateReading

	if state == StateVoicePicker {
		m.ReaderSvc.SetVoice(item.ID)
		return m, m.setStatus("Voice "+item.Title, false)
	}
	m.Busy = "Translating..."
	return m, TranslateCmd(m.ReaderSvc, item.ID)
}

// refreshPlayback pulls a new snapshot and follows the active mark
func (m *Model) refreshPlayback() tea.Cmd {
	prevActive := m.snapshot.Active
	m.snapshot = m.PlaybackSvc.Snapshot()
	changed := m.relayout()
	if m.snapshot.Active == prevActive && !changed {
		return nil
	}
	return m.followHighlight(false)
}

// relayout rebuilds the wrapped document when its content or width
// changed, and reports whether it did.
func (m *Model) relayout() bool {
	if !m.Ready {
		return false
	}
	width := m.readerWidth()
	k := layoutKey{width: width, text: m.ReaderSvc.Document().Text}
	if m.snapshot.State != playback.StateIdle && len(m.snapshot.Marks) > 0 {
		k = layoutKey{width: width, text: m.snapshot.Text, marks: true}
	}
	if k == m.layoutKey && m.layout.lines != nil {
		return false
	}

	m.layoutKey = k
	if k.marks {
		m.layout = layoutMarks(m.snapshot.Marks, width)
	} else {
		m.layout = layoutText(k.text, width)
	}
	m.clampScroll()
	return true
}

// followHighlight scrolls the active mark into view. Unless force is set
// it only scrolls when the mark is within the margin of the pane edge.
func (m *Model) followHighlight(force bool) tea.Cmd {
	rect, ok := m.layout.MarkRect(m.snapshot.Active)
	if !ok || m.readerHeight() <= 0 {
		return nil
	}
	top := m.scroller.Target()
	container := highlight.Rect{Top: top, Bottom: top + float64(m.readerHeight())}
	if !force && !highlight.ShouldAutoScroll(rect, container, float64(m.scrollMargin)) {
		return nil
	}

	m.scroller.ScrollTo(highlight.CenteredOffset(rect, container, float64(m.layout.Height())))
	if m.scrolling || !m.scroller.Animating() {
		return nil
	}
	m.scrolling = true
	return scrollTickCmd()
}

func (m *Model) scrollBy(lines int) {
	m.scroller.Jump(math.Round(m.scroller.Offset()) + float64(lines))
	m.clampScroll()
}

func (m *Model) clampScroll() {
	maxOffset := float64(max(0, m.layout.Height()-m.readerHeight()))
	if m.scroller.Offset() > maxOffset || m.scroller.Target() > maxOffset {
		m.scroller.Jump(math.Min(m.scroller.Offset(), maxOffset))
		m.scrolling = false
	}
}

func (m *Model) setStatus(text string, isErr bool) tea.Cmd {
	m.statusSeq++
	m.StatusMsg = text
	m.StatusIsErr = isErr
	return ClearStatusCmd(m.statusSeq, statusDuration)
}

func (m Model) readerWidth() int {
	return max(10, m.Width-4)
}

func (m Model) readerHeight() int {
	return max(1, m.Height-ControlPanelHeight-FooterHeight-m.summaryHeight())
}

func (m Model) summaryLines() []string {
	summary := strings.TrimSpace(m.ReaderSvc.Document().Summary)
	if summary == "" {
		return nil
	}
	lines := strings.Split(wordwrap.String(summary, max(10, m.Width-8)), "\n")
	if len(lines) > MaxSummaryLines {
		lines = append(lines[:MaxSummaryLines-1], "…")
	}
	return lines
}

func (m Model) summaryHeight() int {
	lines := m.summaryLines()
	if len(lines) == 0 {
		return 0
	}
	return len(lines) + 2 // title + blank line after the box
}

// View renders the UI
func (m Model) View() string {
	if !m.Ready {
		return "Loading..."
	}

	switch m.State {
	case StateHelp:
		return m.renderHelp()
	case StateConfirmLogout:
		return m.renderLogoutConfirmation()
	}

	parts := []string{m.renderControlPanel()}
	if lines := m.summaryLines(); len(lines) > 0 {
		body := styles.TitleStyle.Render("Summary") + "\n" + strings.Join(lines, "\n")
		parts = append(parts, styles.SummaryStyle.Width(m.Width-2).Render(body)+"\n")
	}
	parts = append(parts, m.renderReader(), m.renderFooter())
	view := lipgloss.JoinVertical(lipgloss.Left, parts...)

	// Overlay modals
	if m.Picker.IsVisible() {
		view = lipgloss.Place(m.Width, m.Height,
			lipgloss.Center, lipgloss.Center,
			m.Picker.View())
	}
	if m.InputModal.IsVisible() {
		view = lipgloss.Place(m.Width, m.Height,
			lipgloss.Center, lipgloss.Center,
			m.InputModal.View())
	}
	return view
}

// renderControlPanel renders state, voice settings and plan in one line
func (m Model) renderControlPanel() string {
	var badge string
	switch m.snapshot.State {
	case playback.StatePlaying:
		badge = styles.PlayingBadge.Render("▶ Reading")
	case playback.StatePaused:
		badge = styles.PausedBadge.Render("⏸ Paused")
	case playback.StateEnded:
		badge = styles.IdleBadge.Render("■ Finished")
	default:
		badge = styles.IdleBadge.Render("■ Idle")
	}

	settings := m.ReaderSvc.Settings()
	voice := settings.Voice
	if v, ok := m.VoiceSvc.Find(settings.Voice); ok {
		voice = search.VoiceTitle(v)
	}

	items := []string{badge}
	if m.snapshot.Playing() {
		pos := formatClock(m.snapshot.CurrentTime)
		if total := m.snapshot.Marks.Duration(); total > 0 {
			pos += " / " + formatClock(total)
		}
		items = append(items, styles.SubtitleStyle.Render(pos))
	}
	items = append(items,
		styles.DimStyle.Render("voice ")+styles.BodyStyle.Render(voice),
		styles.DimStyle.Render("speed ")+styles.BodyStyle.Render(settings.RateString()),
		styles.DimStyle.Render("pitch ")+styles.BodyStyle.Render(settings.PitchString()),
		styles.PlanBadge.Render(string(m.SessionSvc.Plan())),
	)
	if src := m.ReaderSvc.Document().Source; src != "" {
		items = append(items, styles.DimStyle.Render(describeSource(src)))
	}

	line := styles.Truncate(strings.Join(items, "  "), max(1, m.Width-4))
	return styles.ControlPanelStyle.Width(m.Width - 2).Render(line)
}

func (m Model) renderReader() string {
	height := m.readerHeight()
	if m.ReaderSvc.Document().IsEmpty() && !m.layoutKey.marks {
		hint := styles.DimStyle.Render("Press o to open a PDF or text file, or d for the demo text.")
		return styles.ReaderStyle.Height(height).Render(hint)
	}
	top := int(math.Round(m.scroller.Offset()))
	active := noMark
	if m.layoutKey.marks {
		active = m.snapshot.Active
	}
	return styles.ReaderStyle.Render(m.layout.Render(top, height, active))
}

// renderFooter renders a single-line minimal footer
func (m Model) renderFooter() string {
	var left string
	switch {
	case m.Busy != "":
		left = styles.RenderSpinner(m.SpinnerFrame) + " " + styles.DimStyle.Render(m.Busy)
	case m.StatusMsg != "" && m.StatusIsErr:
		left = styles.ErrorStyle.Render(m.StatusMsg)
	case m.StatusMsg != "":
		left = styles.DimStyle.Render(m.StatusMsg)
	}

	right := m.help.ShortHelpView(m.keys.ShortHelp())

	leftWidth := lipgloss.Width(left)
	rightWidth := lipgloss.Width(right)
	if leftWidth+rightWidth >= m.Width {
		right = styles.HelpKeyStyle.Render("?") + styles.HelpDescStyle.Render(" help")
		rightWidth = lipgloss.Width(right)
	}
	gap := max(0, m.Width-leftWidth-rightWidth)
	return left + strings.Repeat(" ", gap) + right
}

func (m Model) renderHelp() string {
	full := m.help
	full.ShowAll = true
	body := styles.ModalTitleStyle.Render("Keys") + "\n" +
		full.FullHelpView(m.keys.FullHelp()) + "\n\n" +
		styles.DimStyle.Render("Press ? or esc to return...")

	return lipgloss.Place(m.Width, m.Height,
		lipgloss.Center, lipgloss.Center,
		styles.ModalStyle.Render(body))
}

func (m Model) renderLogoutConfirmation() string {
	modal := `
              Log Out?

  This will clear your identity, the
  saved document and all cached audio.

        [Y] Yes      [N] No
`

	return lipgloss.Place(m.Width, m.Height,
		lipgloss.Center, lipgloss.Center,
		styles.ModalStyle.Render(modal))
}

func voiceItems(results []search.VoiceResult) []components.PickerItem {
	items := make([]components.PickerItem, len(results))
	for i, r := range results {
		items[i] = components.PickerItem{
			ID:             r.Voice.ShortName,
			Title:          r.Title(),
			MatchedIndexes: r.MatchedIndexes,
		}
	}
	return items
}

func languageItems(languages []domain.Language) []components.PickerItem {
	items := make([]components.PickerItem, len(languages))
	for i, l := range languages {
		items[i] = components.PickerItem{ID: l.Code, Title: l.Label, Detail: l.Code}
	}
	return items
}

// describeError maps domain errors to short user-facing text
func describeError(err error) string {
	switch {
	case errors.Is(err, domain.ErrFeatureLocked):
		return "Upgrade to Pro to use this feature"
	case errors.Is(err, domain.ErrNotSignedIn):
		return "Sign in first: run `lector setup`"
	case errors.Is(err, domain.ErrBackendOffline):
		return "Backend is unreachable. Is it running?"
	case errors.Is(err, domain.ErrNoDocument):
		return "No document loaded"
	case errors.Is(err, domain.ErrUnsupportedFile):
		return "Only .pdf and .txt files are supported"
	}
	return err.Error()
}

func describeSource(source string) string {
	switch {
	case source == service.SourceDemo:
		return "demo text"
	case strings.HasPrefix(source, service.SourceTranslationPrefix):
		return "translation (" + strings.TrimPrefix(source, service.SourceTranslationPrefix) + ")"
	}
	return source
}

// formatClock formats seconds as M:SS
func formatClock(seconds float64) string {
	s := int(seconds)
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}

// validateDocumentPath accepts existing .pdf and .txt files
func validateDocumentPath(value string) error {
	path := expandPath(value)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf", ".txt":
	default:
		return domain.ErrUnsupportedFile
	}
	info, err := os.Stat(path)
	if err != nil {
		return errors.New("file not found")
	}
	if info.IsDir() {
		return errors.New("path is a directory")
	}
	return nil
}

// expandPath resolves a leading ~ to the home directory
func expandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
