package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mmcdole/lector/internal/tui/styles"
)

// PickerItem is one selectable row
type PickerItem struct {
	ID             string
	Title          string
	Detail         string
	MatchedIndexes []int // byte offsets in Title to emphasize
}

// Picker is a fuzzy-filtered selection modal (voices, languages)
type Picker struct {
	input     textinput.Model
	title     string
	items     []PickerItem
	cursor    int
	visible   bool
	width     int
	height    int
	prevQuery string // Track query changes for real-time filtering
}

// NewPicker creates a new picker component
func NewPicker() Picker {
	ti := textinput.New()
	ti.Placeholder = "Type to filter..."
	ti.CharLimit = 100
	ti.Width = 40
	ti.Prompt = "/ "
	ti.PromptStyle = styles.AccentStyle
	ti.TextStyle = lipgloss.NewStyle().Foreground(styles.White)
	ti.PlaceholderStyle = styles.DimStyle

	return Picker{input: ti}
}

// Show makes the picker visible with an empty query
func (p *Picker) Show(title string, items []PickerItem) {
	p.visible = true
	p.title = title
	p.input.Focus()
	p.input.SetValue("")
	p.prevQuery = ""
	p.SetItems(items)
}

// Hide hides the picker
func (p *Picker) Hide() {
	p.visible = false
	p.input.Blur()
}

// IsVisible returns true if the picker is visible
func (p Picker) IsVisible() bool {
	return p.visible
}

// SetItems replaces the rows and resets the cursor
func (p *Picker) SetItems(items []PickerItem) {
	p.items = items
	p.cursor = 0
}

// SetSize updates the component dimensions
func (p *Picker) SetSize(width, height int) {
	p.width = width
	p.height = height
	p.input.Width = max(10, min(width*2/3, 80)-10)
}

// Query returns the current filter text
func (p Picker) Query() string {
	return p.input.Value()
}

// QueryChanged returns true if the query changed since last check and updates prevQuery
func (p *Picker) QueryChanged() bool {
	current := p.input.Value()
	if current != p.prevQuery {
		p.prevQuery = current
		return true
	}
	return false
}

// Selected returns the highlighted row
func (p Picker) Selected() (PickerItem, bool) {
	if len(p.items) == 0 || p.cursor >= len(p.items) {
		return PickerItem{}, false
	}
	return p.items[p.cursor], true
}

// Update handles messages, returns (picker, cmd, selected)
func (p Picker) Update(msg tea.Msg) (Picker, tea.Cmd, bool) {
	if !p.visible {
		return p, nil, false
	}

	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "esc":
			p.Hide()
			return p, nil, false
		case "enter":
			return p, nil, len(p.items) > 0
		case "down", "ctrl+n":
			if p.cursor < len(p.items)-1 {
				p.cursor++
			}
			return p, nil, false
		case "up", "ctrl+p":
			if p.cursor > 0 {
				p.cursor--
			}
			return p, nil, false
		}
	}

	var cmd tea.Cmd
	p.input, cmd = p.input.Update(msg)
	return p, cmd, false
}

// View renders the component
func (p Picker) View() string {
	if !p.visible {
		return ""
	}

	modalWidth := max(40, min(p.width*2/3, 80))
	maxResults := max(3, min(12, p.height-10))

	var b strings.Builder
	b.WriteString(styles.ModalTitleStyle.Render(p.title))
	b.WriteString("\n")
	b.WriteString(p.input.View())
	b.WriteString("\n\n")

	if len(p.items) == 0 {
		b.WriteString(styles.DimStyle.Render("No matches"))
	}

	// Keep the cursor inside the visible window
	start := 0
	if p.cursor >= maxResults {
		start = p.cursor - maxResults + 1
	}
	end := min(len(p.items), start+maxResults)

	for i := start; i < end; i++ {
		item := p.items[i]
		selected := i == p.cursor
		line := renderMatched(item.Title, item.MatchedIndexes, selected)
		if item.Detail != "" {
			line += " " + styles.DimStyle.Render(item.Detail)
		}
		line = styles.Truncate(line, modalWidth-6)
		if selected {
			b.WriteString(styles.SelectedItemStyle.Render(line))
		} else {
			b.WriteString(styles.NormalItemStyle.Render(line))
		}
		b.WriteString("\n")
	}

	if len(p.items) > maxResults {
		b.WriteString(styles.DimStyle.Render(fmt.Sprintf("%d/%d", p.cursor+1, len(p.items))))
	}

	content := lipgloss.NewStyle().
		Width(modalWidth - 4).
		Render(b.String())

	return styles.ModalStyle.
		Width(modalWidth).
		Render(content)
}

// renderMatched emphasizes the matched byte offsets of title
func renderMatched(title string, matched []int, selected bool) string {
	if len(matched) == 0 {
		return title
	}
	hit := make(map[int]bool, len(matched))
	for _, idx := range matched {
		hit[idx] = true
	}
	style := styles.MatchHighlightStyle
	if selected {
		style = styles.MatchHighlightSelectedStyle
	}

	var b strings.Builder
	for i, r := range title {
		if hit[i] {
			b.WriteString(style.Render(string(r)))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
