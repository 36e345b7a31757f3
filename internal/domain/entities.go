package domain

import (
	"fmt"
	"strings"
	"time"
)

// Mark is one speakable unit of text aligned to an audio interval.
// Start is inclusive and End is exclusive, both in seconds.
type Mark struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Contains reports whether t falls inside the mark's half-open interval
func (m Mark) Contains(t float64) bool {
	return m.Start <= t && t < m.End
}

// Marks is an ordered sequence of marks for a single synthesis
type Marks []Mark

// Text reconstructs the spoken text from the marks
func (ms Marks) Text() string {
	var b strings.Builder
	for _, m := range ms {
		b.WriteString(m.Text)
	}
	return b.String()
}

// Duration returns the end of the last mark (0 when empty)
func (ms Marks) Duration() float64 {
	if len(ms) == 0 {
		return 0
	}
	return ms[len(ms)-1].End
}

// Document is the text currently loaded into the reader
type Document struct {
	Text      string    `json:"text"`
	Summary   string    `json:"summary"`
	Source    string    `json:"source"` // file name, "demo" or "translation:<lang>"
	UpdatedAt time.Time `json:"updated_at"`
}

// IsEmpty returns true if there is nothing to read
func (d Document) IsEmpty() bool {
	return strings.TrimSpace(d.Text) == ""
}

// Voice describes a synthesis voice offered by the backend
type Voice struct {
	ShortName    string `json:"ShortName"`
	FriendlyName string `json:"FriendlyName"`
	Gender       string `json:"Gender"`
	Locale       string `json:"Locale"`
}

// Label returns the display name, falling back to the short name
func (v Voice) Label() string {
	if v.FriendlyName != "" {
		return v.FriendlyName
	}
	return v.ShortName
}

// Adjustment bounds for speed and pitch
const (
	MinAdjustment = -50
	MaxAdjustment = 50
)

// Settings are the reader's voice preferences
type Settings struct {
	Voice string `json:"voice"`
	Rate  int    `json:"rate"`  // percent
	Pitch int    `json:"pitch"` // Hz
}

// DefaultSettings returns the settings used before the user picks anything
func DefaultSettings() Settings {
	return Settings{Voice: "en-US-AriaNeural"}
}

// RateString formats the rate the way the synthesis backend expects ("+0%", "-20%")
func (s Settings) RateString() string {
	return signed(clampAdjustment(s.Rate)) + "%"
}

// PitchString formats the pitch the way the synthesis backend expects ("+0Hz")
func (s Settings) PitchString() string {
	return signed(clampAdjustment(s.Pitch)) + "Hz"
}

// WithRate returns a copy with the rate adjusted by delta and clamped
func (s Settings) WithRate(delta int) Settings {
	s.Rate = clampAdjustment(s.Rate + delta)
	return s
}

// WithPitch returns a copy with the pitch adjusted by delta and clamped
func (s Settings) WithPitch(delta int) Settings {
	s.Pitch = clampAdjustment(s.Pitch + delta)
	return s
}

func clampAdjustment(v int) int {
	return max(MinAdjustment, min(MaxAdjustment, v))
}

func signed(v int) string {
	if v < 0 {
		return fmt.Sprintf("%d", v)
	}
	return fmt.Sprintf("+%d", v)
}

// Language is a translation target
type Language struct {
	Code  string
	Label string
}

// Languages lists the supported translation targets
var Languages = []Language{
	{Code: "en", Label: "English (English)"},
	{Code: "es", Label: "Spanish (Español)"},
	{Code: "fr", Label: "French (Français)"},
	{Code: "de", Label: "German (Deutsch)"},
	{Code: "hi", Label: "Hindi (हिन्दी)"},
	{Code: "ja", Label: "Japanese (日本語)"},
	{Code: "zh-CN", Label: "Chinese (Simplified)"},
	{Code: "ru", Label: "Russian (Русский)"},
	{Code: "pt", Label: "Portuguese (Português)"},
}
