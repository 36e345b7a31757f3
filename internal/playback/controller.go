package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/mmcdole/lector/internal/domain"
	"github.com/mmcdole/lector/internal/highlight"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer trace.Tracer = otel.Tracer("github.com/mmcdole/lector/internal/playback")

// ErrSuperseded is returned by Start when a newer Start or Reset replaced
// the request while it was being synthesized.
var ErrSuperseded = errors.New("playback request superseded")

// Synthesizer produces audio and marks for a text
type Synthesizer interface {
	Synthesize(ctx context.Context, req domain.SynthesisRequest) (*domain.Synthesis, error)
}

// Snapshot is a consistent view of the controller for rendering
type Snapshot struct {
	State       State
	CurrentTime float64
	Marks       domain.Marks
	Active      int // -1 when no mark is active
	Text        string
}

// Playing returns true while audio is playing or paused (the original
// reader's isPlaying flag)
func (s Snapshot) Playing() bool {
	return s.State == StatePlaying || s.State == StatePaused
}

// Controller owns the playback state machine and the single live output.
//
//	Idle    --start-->      Playing (after synthesis; back to Idle on failure)
//	Playing --toggle-->     Paused
//	Paused  --toggle-->     Playing
//	Playing --naturalEnd--> Ended
//	Ended   --start-->      Playing
//	any     --newRequest--> Idle
type Controller struct {
	mu sync.Mutex

	synth     Synthesizer
	newOutput OutputFactory
	sink      Sink
	logger    *slog.Logger

	state       State
	output      Output
	text        string
	timeline    highlight.Timeline
	currentTime float64

	// generation increments on every teardown so a synthesis that finishes
	// after being superseded is discarded.
	generation uint64
}

// NewController creates a controller. sink receives every event of the live
// output; it is typically the UI's event queue, which feeds events back
// through HandleEvent.
func NewController(synth Synthesizer, newOutput OutputFactory, sink Sink, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	if sink == nil {
		sink = func(Event) {}
	}
	return &Controller{
		synth:     synth,
		newOutput: newOutput,
		sink:      sink,
		logger:    logger,
		timeline:  highlight.NewTimeline(nil),
	}
}

// Start begins reading req.Text. While playing or paused the same text
// toggles pause; a different text tears the current output down first.
func (c *Controller) Start(ctx context.Context, req domain.SynthesisRequest) error {
	c.mu.Lock()
	if (c.state == StatePlaying || c.state == StatePaused) && c.text == req.Text {
		c.mu.Unlock()
		return c.Toggle()
	}
	c.teardownLocked()
	gen := c.generation
	c.mu.Unlock()

	ctx, span := tracer.Start(ctx, "playback start", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()
	span.SetAttributes(
		attribute.Int("playback.text_length", len(req.Text)),
		attribute.String("playback.voice", req.Voice),
	)

	synthesis, err := c.synth.Synthesize(ctx, req)
	if err == nil && synthesis == nil {
		err = fmt.Errorf("empty synthesis result")
	}
	if err != nil {
		err = fmt.Errorf("%w: %w", domain.ErrSynthesisFailed, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Error("synthesis failed", "error", err)
		return err
	}
	span.SetAttributes(attribute.Int("playback.marks", len(synthesis.Marks)))

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		c.logger.Debug("discarding superseded synthesis", "generation", gen)
		return ErrSuperseded
	}

	output, err := c.newOutput(synthesis.AudioURL, synthesis.Marks.Duration(), c.sink)
	if err != nil {
		err = fmt.Errorf("%w: %w", domain.ErrSynthesisFailed, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if err := output.Play(0); err != nil {
		output.Close()
		err = fmt.Errorf("%w: %w", domain.ErrSynthesisFailed, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Error("audio output failed to start", "error", err)
		return err
	}

	c.output = output
	c.text = req.Text
	c.timeline = highlight.NewTimeline(synthesis.Marks)
	c.currentTime = 0
	c.state = StatePlaying

	c.logger.Info("playback started", "output", output.ID(), "marks", len(synthesis.Marks), "audio", synthesis.AudioURL)
	return nil
}

// Toggle pauses a playing output or resumes a paused one. Other states are
// left unchanged.
func (c *Controller) Toggle() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StatePlaying:
		pos, err := c.output.Pause()
		if err != nil {
			return fmt.Errorf("failed to pause: %w", err)
		}
		c.currentTime = clampTime(pos)
		c.state = StatePaused
		c.logger.Debug("playback paused", "time", c.currentTime)
	case StatePaused:
		if err := c.output.Play(c.currentTime); err != nil {
			return fmt.Errorf("failed to resume: %w", err)
		}
		c.state = StatePlaying
		c.logger.Debug("playback resumed", "time", c.currentTime)
	}
	return nil
}

// Reset tears down any output and returns to Idle (a new request, e.g. the
// text changed).
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.teardownLocked()
}

// HandleEvent applies an output event. It returns false when the event was
// dropped because its output is no longer the live one.
func (c *Controller) HandleEvent(ev Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.output == nil || ev.OutputID != c.output.ID() {
		return false
	}

	switch ev.Kind {
	case EventTimeUpdate:
		if c.state != StatePlaying {
			return false
		}
		c.currentTime = clampTime(ev.Time)
	case EventEnded:
		c.logger.Info("playback ended", "output", ev.OutputID)
		c.detachLocked()
		c.state = StateEnded
		c.currentTime = 0
	}
	return true
}

// Snapshot returns the current state, time and active mark
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	active, ok := c.timeline.Active(c.currentTime)
	if !ok {
		active = -1
	}
	return Snapshot{
		State:       c.state,
		CurrentTime: c.currentTime,
		Marks:       c.timeline.Marks(),
		Active:      active,
		Text:        c.text,
	}
}

// State returns the current state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Close releases the live output
func (c *Controller) Close() {
	c.Reset()
}

// teardownLocked detaches and releases the live output, discards the marks
// and returns to Idle.
func (c *Controller) teardownLocked() {
	c.generation++
	c.detachLocked()
	c.state = StateIdle
	c.text = ""
	c.timeline = highlight.NewTimeline(nil)
	c.currentTime = 0
}

// detachLocked drops the live output before closing it, so any event it
// still emits no longer matches the live output ID.
func (c *Controller) detachLocked() {
	if c.output == nil {
		return
	}
	old := c.output
	c.output = nil
	if err := old.Close(); err != nil {
		c.logger.Warn("failed to close audio output", "output", old.ID(), "error", err)
	}
}

// clampTime maps negative or NaN platform times to 0
func clampTime(t float64) float64 {
	if math.IsNaN(t) || t < 0 {
		return 0
	}
	return t
}
