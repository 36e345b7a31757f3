package search

import (
	"sort"
	"strings"

	lfuzzy "github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/mmcdole/lector/internal/domain"
	"github.com/sahilm/fuzzy"
)

// VoiceResult is a voice that matched a filter query
type VoiceResult struct {
	Voice          domain.Voice
	MatchedIndexes []int // byte positions in Title() that matched
	Score          int   // higher is better
}

// Title is the string the filter matched against, for highlighting
func (r VoiceResult) Title() string {
	return VoiceTitle(r.Voice)
}

// VoiceTitle is the searchable display line for a voice
func VoiceTitle(v domain.Voice) string {
	title := v.Label() + " (" + v.Locale + ")"
	if v.Gender != "" {
		title += " " + v.Gender
	}
	return title
}

// voiceIndex implements sahilm/fuzzy.Source over lowercase titles
type voiceIndex struct {
	voices []domain.Voice
	titles []string
}

func newVoiceIndex(voices []domain.Voice) *voiceIndex {
	titles := make([]string, len(voices))
	for i, v := range voices {
		titles[i] = strings.ToLower(VoiceTitle(v))
	}
	return &voiceIndex{voices: voices, titles: titles}
}

// String returns the lowercase title at index i (implements fuzzy.Source)
func (idx *voiceIndex) String(i int) string { return idx.titles[i] }

// Len returns the number of voices (implements fuzzy.Source)
func (idx *voiceIndex) Len() int { return len(idx.voices) }

// FilterVoices returns voices matching query, best first. An empty query
// returns every voice in its original order.
func FilterVoices(query string, voices []domain.Voice) []VoiceResult {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		results := make([]VoiceResult, len(voices))
		for i, v := range voices {
			results[i] = VoiceResult{Voice: v}
		}
		return results
	}

	idx := newVoiceIndex(voices)
	matches := fuzzy.FindFrom(query, idx)

	results := make([]VoiceResult, len(matches))
	for i, m := range matches {
		results[i] = VoiceResult{
			Voice:          idx.voices[m.Index],
			MatchedIndexes: m.MatchedIndexes,
			Score:          m.Score,
		}
	}
	return results
}

// FilterLanguages returns translation targets whose code or label matches
// query, ranked by edit distance. An empty query returns all languages.
func FilterLanguages(query string, languages []domain.Language) []domain.Language {
	query = strings.TrimSpace(query)
	if query == "" {
		return append([]domain.Language(nil), languages...)
	}

	targets := make([]string, len(languages))
	for i, l := range languages {
		targets[i] = l.Code + " " + l.Label
	}

	ranks := lfuzzy.RankFindNormalizedFold(query, targets)
	sort.Stable(ranks)

	results := make([]domain.Language, len(ranks))
	for i, r := range ranks {
		results[i] = languages[r.OriginalIndex]
	}
	return results
}

// FindVoice returns the voice with the given short name
func FindVoice(shortName string, voices []domain.Voice) (domain.Voice, bool) {
	for _, v := range voices {
		if strings.EqualFold(v.ShortName, shortName) {
			return v, true
		}
	}
	return domain.Voice{}, false
}
