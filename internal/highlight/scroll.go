package highlight

import "math"

// Rect is the vertical extent of a rendered element. Top < Bottom, with
// coordinates growing downward.
type Rect struct {
	Top    float64
	Bottom float64
}

// Height returns the vertical size of the rect
func (r Rect) Height() float64 {
	return r.Bottom - r.Top
}

// ShouldAutoScroll reports whether the active element is above
// container.Top+margin or below container.Bottom-margin.
func ShouldAutoScroll(active, container Rect, margin float64) bool {
	return active.Top < container.Top+margin || active.Bottom > container.Bottom-margin
}

// CenteredOffset returns the scroll offset that vertically centres active
// inside a container of the given visible size, clamped to the scrollable
// range of contentHeight.
func CenteredOffset(active, container Rect, contentHeight float64) float64 {
	offset := active.Top - container.Height()/2 + active.Height()/2
	maxOffset := math.Max(0, contentHeight-container.Height())
	return math.Max(0, math.Min(offset, maxOffset))
}

// Scroller animates a scroll offset toward a target so corrections are
// smooth rather than instantaneous.
type Scroller struct {
	offset float64
	target float64
	ratio  float64 // fraction of the remaining distance covered per step
}

// NewScroller creates a scroller that covers ratio of the remaining distance
// on each step. Ratios outside (0, 1] fall back to 0.35.
func NewScroller(ratio float64) *Scroller {
	if ratio <= 0 || ratio > 1 {
		ratio = 0.35
	}
	return &Scroller{ratio: ratio}
}

// Offset returns the current (possibly mid-animation) offset
func (s *Scroller) Offset() float64 {
	return s.offset
}

// Target returns where the scroller is heading
func (s *Scroller) Target() float64 {
	return s.target
}

// ScrollTo starts an animated scroll toward target
func (s *Scroller) ScrollTo(target float64) {
	s.target = math.Max(0, target)
}

// Jump moves to offset immediately, cancelling any animation
func (s *Scroller) Jump(offset float64) {
	s.offset = math.Max(0, offset)
	s.target = s.offset
}

// Animating reports whether a step would still move the offset
func (s *Scroller) Animating() bool {
	return s.offset != s.target
}

// Step advances the animation once and reports whether it is still running.
// Each step moves at least one unit so the animation always terminates.
func (s *Scroller) Step() bool {
	remaining := s.target - s.offset
	if remaining == 0 {
		return false
	}
	delta := remaining * s.ratio
	if math.Abs(delta) < 1 {
		delta = math.Copysign(1, remaining)
	}
	if math.Abs(delta) >= math.Abs(remaining) {
		s.offset = s.target
		return false
	}
	s.offset += delta
	return true
}
