// Package highlight maps elapsed playback time to the mark that should be
// highlighted and decides when the reader has to scroll to keep it in view.
//
// Everything here is pure: inputs are never mutated and results depend only
// on the arguments, so callers may invoke these on every time update.
package highlight

import (
	"math"
	"sort"

	"github.com/mmcdole/lector/internal/domain"
)

// DefaultMargin is the distance from the container edges inside which an
// active element triggers a scroll correction.
const DefaultMargin = 100

// ActiveIndex returns the index of the mark whose half-open interval
// [Start, End) contains currentTime. It returns (-1, false) when marks is
// empty, when the time falls in a gap or past the last mark, and when the
// time is negative or NaN. For malformed (overlapping or descending)
// sequences the first matching interval in sequence order wins.
func ActiveIndex(marks domain.Marks, currentTime float64) (int, bool) {
	if !validTime(currentTime) {
		return -1, false
	}
	for i, m := range marks {
		if m.Contains(currentTime) {
			return i, true
		}
	}
	return -1, false
}

// Timeline is a lookup structure over one mark sequence, built once per
// synthesis. Well-formed sequences are searched by Start in O(log n);
// malformed ones fall back to ActiveIndex.
type Timeline struct {
	marks   domain.Marks
	ordered bool
}

// NewTimeline validates ordering once so per-tick lookups can bisect
func NewTimeline(marks domain.Marks) Timeline {
	return Timeline{marks: marks, ordered: isOrdered(marks)}
}

// Marks returns the underlying sequence
func (tl Timeline) Marks() domain.Marks {
	return tl.marks
}

// Len returns the number of marks
func (tl Timeline) Len() int {
	return len(tl.marks)
}

// Active returns the same result as ActiveIndex(tl.Marks(), currentTime)
func (tl Timeline) Active(currentTime float64) (int, bool) {
	if !tl.ordered {
		return ActiveIndex(tl.marks, currentTime)
	}
	if len(tl.marks) == 0 || !validTime(currentTime) {
		return -1, false
	}

	// First mark starting after t; only the one before it can contain t.
	i := sort.Search(len(tl.marks), func(i int) bool {
		return tl.marks[i].Start > currentTime
	})
	if i == 0 || !tl.marks[i-1].Contains(currentTime) {
		return -1, false
	}
	return i - 1, true
}

func validTime(t float64) bool {
	return !math.IsNaN(t) && t >= 0
}

// isOrdered reports whether marks are ascending and non-overlapping
func isOrdered(marks domain.Marks) bool {
	for i := 1; i < len(marks); i++ {
		if marks[i].Start < marks[i-1].End || marks[i].Start < marks[i-1].Start {
			return false
		}
	}
	return true
}
