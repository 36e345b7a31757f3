package domain

import "time"

// SynthesisRequest asks the backend to speak a text with a voice
type SynthesisRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
	Rate  string `json:"rate"`
	Pitch string `json:"pitch"`
}

// NewSynthesisRequest builds a request from a text and the reader settings
func NewSynthesisRequest(text string, s Settings) SynthesisRequest {
	return SynthesisRequest{
		Text:  text,
		Voice: s.Voice,
		Rate:  s.RateString(),
		Pitch: s.PitchString(),
	}
}

// Synthesis is a completed synthesis: a playable audio reference plus timing marks
type Synthesis struct {
	AudioURL  string    `json:"audio_url"`
	Marks     Marks     `json:"marks"`
	CreatedAt time.Time `json:"created_at"`
}
