package playback

// State is the playback control state
type State int

const (
	StateIdle State = iota
	StatePlaying
	StatePaused
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// EventKind distinguishes audio output events
type EventKind int

const (
	EventTimeUpdate EventKind = iota
	EventEnded
)

func (k EventKind) String() string {
	if k == EventEnded {
		return "ended"
	}
	return "time_update"
}

// Event is emitted by an audio output. OutputID identifies the emitting
// output so events from a replaced output can be recognised and dropped.
type Event struct {
	OutputID string
	Kind     EventKind
	Time     float64 // seconds; meaningful for EventTimeUpdate
}

// Sink receives events from an audio output
type Sink func(Event)

// Output is one live audio output for a synthesis result
type Output interface {
	// ID uniquely identifies this output instance
	ID() string

	// Play starts or resumes audio from offset seconds
	Play(offset float64) error

	// Pause suspends audio and returns the position it stopped at
	Pause() (float64, error)

	// Close releases the output; no events may be delivered afterwards
	Close() error
}

// OutputFactory creates an output for an audio reference. duration is the
// expected length in seconds (end of the last mark), 0 if unknown.
type OutputFactory func(audioURL string, duration float64, sink Sink) (Output, error)
