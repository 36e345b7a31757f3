package adapter

import (
	"errors"
	"os/exec"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/mmcdole/lector/internal/playback"
)

type eventLog struct {
	mu     sync.Mutex
	events []playback.Event
	ended  chan struct{}
	once   sync.Once
}

func newEventLog() *eventLog {
	return &eventLog{ended: make(chan struct{})}
}

func (l *eventLog) sink(ev playback.Event) {
	l.mu.Lock()
	l.events = append(l.events, ev)
	l.mu.Unlock()
	if ev.Kind == playback.EventEnded {
		l.once.Do(func() { close(l.ended) })
	}
}

func (l *eventLog) snapshot() []playback.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]playback.Event(nil), l.events...)
}

func silentFactory() *PlayerFactory {
	return NewPlayerFactory(PlayerConfig{Command: SilentPlayer, TickInterval: 5 * time.Millisecond}, NullLogger())
}

func TestOffsetArgs(t *testing.T) {
	tests := []struct {
		flag   string
		offset float64
		want   []string
	}{
		{"--start=", 12.5, []string{"--start=12.50"}},
		{"-ss ", 3, []string{"-ss", "3.00"}},
		{"--start=", 0, nil},
		{"", 4, nil},
	}
	for _, tt := range tests {
		if got := offsetArgs(tt.flag, tt.offset); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("offsetArgs(%q, %v) = %v, want %v", tt.flag, tt.offset, got, tt.want)
		}
	}
}

func TestConfiguredPlayerUsesRegistry(t *testing.T) {
	spec := configuredPlayer("/usr/local/bin/MPV", "")
	if spec.offsetFlag != "--start=" {
		t.Fatalf("expected mpv offset flag, got %q", spec.offsetFlag)
	}
	if len(spec.audioArgs) == 0 {
		t.Fatal("expected mpv audio args")
	}

	custom := configuredPlayer("myplayer", "--seek=")
	if custom.offsetFlag != "--seek=" || len(custom.audioArgs) != 0 {
		t.Fatalf("expected custom flag only, got %+v", custom)
	}
}

func TestDetectPlayerPicksFirstAvailable(t *testing.T) {
	lookPath := func(name string) (string, error) {
		if name == "ffplay" {
			return "/usr/bin/ffplay", nil
		}
		return "", exec.ErrNotFound
	}
	spec, ok := detectPlayer(lookPath)
	if !ok || spec.name != "ffplay" {
		t.Fatalf("expected ffplay, got %+v (found=%v)", spec, ok)
	}

	if _, ok := detectPlayer(func(string) (string, error) { return "", exec.ErrNotFound }); ok {
		t.Fatal("expected no player when nothing is installed")
	}
}

func TestSilentPlayerEmitsUpdatesThenEnds(t *testing.T) {
	log := newEventLog()
	out, err := silentFactory().NewOutput("", 0.05, log.sink)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer out.Close()

	if err := out.Play(0); err != nil {
		t.Fatalf("unexpected play error: %v", err)
	}

	select {
	case <-log.ended:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for end")
	}

	events := log.snapshot()
	if len(events) < 2 {
		t.Fatalf("expected time updates before end, got %d events", len(events))
	}
	last := -1.0
	for _, ev := range events {
		if ev.OutputID != out.ID() {
			t.Fatalf("expected events tagged with %s, got %s", out.ID(), ev.OutputID)
		}
		if ev.Kind == playback.EventTimeUpdate {
			if ev.Time < last {
				t.Fatalf("expected non-decreasing times, got %v after %v", ev.Time, last)
			}
			last = ev.Time
		}
	}
	if events[len(events)-1].Kind != playback.EventEnded {
		t.Fatal("expected the last event to be ended")
	}
}

func TestSilentPlayerPauseFreezesPosition(t *testing.T) {
	log := newEventLog()
	out, _ := silentFactory().NewOutput("", 10, log.sink)
	defer out.Close()

	out.Play(2)
	time.Sleep(20 * time.Millisecond)
	pos, err := out.Pause()
	if err != nil {
		t.Fatalf("unexpected pause error: %v", err)
	}
	if pos < 2 || pos > 5 {
		t.Fatalf("expected position a little past 2, got %v", pos)
	}

	count := len(log.snapshot())
	time.Sleep(30 * time.Millisecond)
	if got := len(log.snapshot()); got != count {
		t.Fatalf("expected no events while paused, got %d new", got-count)
	}

	again, _ := out.Pause()
	if again != pos {
		t.Fatalf("expected repeated pause to report %v, got %v", pos, again)
	}
}

func TestClosedPlayerIsDetached(t *testing.T) {
	log := newEventLog()
	out, _ := silentFactory().NewOutput("", 10, log.sink)

	out.Play(0)
	if err := out.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
	count := len(log.snapshot())
	time.Sleep(30 * time.Millisecond)
	if got := len(log.snapshot()); got != count {
		t.Fatalf("expected no events after close, got %d new", got-count)
	}
	if err := out.Play(0); !errors.Is(err, ErrOutputClosed) {
		t.Fatalf("expected ErrOutputClosed, got %v", err)
	}
}

func TestProcessExitEndsPlayback(t *testing.T) {
	if _, err := exec.LookPath("true"); err != nil {
		t.Skip("true(1) not available")
	}
	log := newEventLog()
	factory := NewPlayerFactory(PlayerConfig{Command: "true", TickInterval: 5 * time.Millisecond}, NullLogger())
	out, err := factory.NewOutput("ignored-url", 0, log.sink)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer out.Close()

	if err := out.Play(0); err != nil {
		t.Fatalf("unexpected play error: %v", err)
	}
	select {
	case <-log.ended:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for process exit to end playback")
	}
}
