package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mmcdole/lector/internal/tui/styles"
)

const inputModalWidth = 52

// Validator checks a non-empty value before it may be submitted
type Validator func(value string) error

// InputModal is a single-line prompt (file path to open) that validates
// as the user types.
type InputModal struct {
	visible  bool
	title    string
	hint     string
	input    textinput.Model
	validate Validator
	err      error
}

// NewInputModal creates a new input modal
func NewInputModal() InputModal {
	ti := textinput.New()
	ti.Placeholder = "~/Documents/book.pdf"
	ti.CharLimit = 512
	ti.Width = inputModalWidth - 4
	ti.Prompt = "› "
	ti.PromptStyle = styles.AccentStyle
	ti.TextStyle = lipgloss.NewStyle().Foreground(styles.White)
	ti.PlaceholderStyle = styles.DimStyle

	return InputModal{input: ti}
}

// SetValidator installs the check run on every edit and on enter
func (m *InputModal) SetValidator(v Validator) {
	m.validate = v
}

// Show displays the modal with a title, a hint line and an initial value
func (m *InputModal) Show(title, hint, value string) {
	m.visible = true
	m.title = title
	m.hint = hint
	m.input.SetValue(value)
	m.input.CursorEnd()
	m.input.Focus()
	m.err = m.check()
}

// Hide dismisses the modal
func (m *InputModal) Hide() {
	m.visible = false
	m.err = nil
	m.input.Blur()
}

// IsVisible returns whether the modal is shown
func (m InputModal) IsVisible() bool {
	return m.visible
}

// Value returns the current input value, trimmed
func (m InputModal) Value() string {
	return strings.TrimSpace(m.input.Value())
}

// Err returns the validation error for the current value
func (m InputModal) Err() error {
	return m.err
}

func (m InputModal) check() error {
	if m.validate == nil || m.Value() == "" {
		return nil
	}
	return m.validate(m.Value())
}

// Update handles input events, returns (modal, cmd, submitted). Enter is
// ignored while the value fails validation.
func (m InputModal) Update(msg tea.Msg) (InputModal, tea.Cmd, bool) {
	if !m.visible {
		return m, nil, false
	}

	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "enter":
			m.err = m.check()
			return m, nil, m.err == nil
		case "esc":
			m.Hide()
			return m, nil, false
		}
	}

	var cmd tea.Cmd
	prev := m.input.Value()
	m.input, cmd = m.input.Update(msg)
	if m.input.Value() != prev {
		m.err = m.check()
	}
	return m, cmd, false
}

// statusLine reports the validation state under the field
func (m InputModal) statusLine() string {
	switch {
	case m.err != nil:
		return styles.ErrorStyle.Render("✗ " + m.err.Error())
	case m.validate != nil && m.Value() != "":
		return styles.SuccessStyle.Render("✓ ready to open")
	default:
		return styles.DimStyle.Render(m.hint)
	}
}

// View renders the input modal
func (m InputModal) View() string {
	if !m.visible {
		return ""
	}

	fieldBorder := styles.DimGray
	if m.err != nil {
		fieldBorder = styles.Red
	}
	field := lipgloss.NewStyle().
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(fieldBorder).
		Width(inputModalWidth).
		Render(m.input.View())

	body := lipgloss.JoinVertical(lipgloss.Left,
		styles.ModalTitleStyle.Render(m.title),
		"",
		field,
		styles.Truncate(m.statusLine(), inputModalWidth),
		"",
		styles.DimStyle.Render("enter open · esc cancel"),
	)

	return styles.ModalStyle.BorderForeground(styles.Amber).Render(body)
}
