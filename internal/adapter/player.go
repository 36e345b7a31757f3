package adapter

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mmcdole/lector/internal/playback"
)

// SilentPlayer is the player command that disables audio and keeps only the
// playback clock (the highlight still advances).
const SilentPlayer = "none"

const defaultTickInterval = 250 * time.Millisecond

// ErrOutputClosed is returned when a closed output is asked to play
var ErrOutputClosed = errors.New("audio output is closed")

// playerSpec describes how to run a known command-line audio player
type playerSpec struct {
	name       string
	command    string
	audioArgs  []string // flags that make the player audio-only and exit at the end
	offsetFlag string   // resume offset flag; a trailing space means a separate argument
}

// players registry - single source of truth for supported players
var players = map[string]playerSpec{
	"mpv": {
		name:       "mpv",
		command:    "mpv",
		audioArgs:  []string{"--no-video", "--really-quiet", "--no-terminal"},
		offsetFlag: "--start=",
	},
	"ffplay": {
		name:       "ffplay",
		command:    "ffplay",
		audioArgs:  []string{"-nodisp", "-autoexit", "-loglevel", "quiet"},
		offsetFlag: "-ss ",
	},
	"cvlc": {
		name:       "cvlc",
		command:    "cvlc",
		audioArgs:  []string{"--play-and-exit", "--quiet"},
		offsetFlag: "--start-time=",
	},
	"vlc": {
		name:       "vlc",
		command:    "vlc",
		audioArgs:  []string{"--intf", "dummy", "--play-and-exit"},
		offsetFlag: "--start-time=",
	},
}

// candidatePlayers defines the preferred player order for each platform
var candidatePlayers = map[string][]string{
	"darwin":  {"mpv", "ffplay", "vlc"},
	"linux":   {"mpv", "ffplay", "cvlc"},
	"windows": {"mpv", "ffplay", "vlc"},
}

// PlayerFactory creates audio outputs backed by an external player process,
// or by a bare clock when no player is available.
type PlayerFactory struct {
	spec   *playerSpec // nil = silent clock
	args   []string
	tick   time.Duration
	logger *slog.Logger
}

// NewPlayerFactory resolves the configured player. An empty command
// auto-detects one from the platform's candidates; SilentPlayer, or finding
// nothing, yields clock-only outputs.
func NewPlayerFactory(cfg PlayerConfig, logger *slog.Logger) *PlayerFactory {
	if logger == nil {
		logger = slog.Default()
	}
	tick := cfg.TickInterval
	if tick <= 0 {
		tick = defaultTickInterval
	}

	f := &PlayerFactory{args: cfg.Args, tick: tick, logger: logger}

	switch {
	case strings.EqualFold(cfg.Command, SilentPlayer):
		logger.Info("audio disabled, using silent playback clock")
	case cfg.Command != "":
		spec := configuredPlayer(cfg.Command, cfg.StartFlag)
		f.spec = &spec
		if spec.offsetFlag == "" {
			logger.Warn("cannot resume at an offset - unknown player, configure start_flag in config",
				"command", cfg.Command)
		}
		logger.Info("using configured player", "command", cfg.Command)
	default:
		if spec, ok := detectPlayer(exec.LookPath); ok {
			f.spec = &spec
			logger.Info("auto-detected audio player", "player", spec.name)
		} else {
			logger.Warn("no audio player found, using silent playback clock")
		}
	}
	return f
}

// PlayerName returns the resolved player, or SilentPlayer
func (f *PlayerFactory) PlayerName() string {
	if f.spec == nil {
		return SilentPlayer
	}
	return f.spec.name
}

// NewOutput implements playback.OutputFactory
func (f *PlayerFactory) NewOutput(audioURL string, duration float64, sink playback.Sink) (playback.Output, error) {
	if f.spec != nil && audioURL == "" {
		return nil, fmt.Errorf("no audio URL to play")
	}
	return newPlayer(f.spec, f.args, audioURL, duration, f.tick, sink, f.logger), nil
}

// configuredPlayer builds a spec for a user-configured command, filling in
// known flags when the command is in the registry
func configuredPlayer(command, startFlag string) playerSpec {
	base := filepath.Base(command)
	base = strings.ToLower(strings.TrimSuffix(base, filepath.Ext(base)))

	spec := playerSpec{name: base, command: command}
	if known, ok := players[base]; ok {
		spec.audioArgs = known.audioArgs
		spec.offsetFlag = known.offsetFlag
	}
	if startFlag != "" {
		spec.offsetFlag = startFlag
	}
	return spec
}

// detectPlayer returns the first candidate player found in PATH
func detectPlayer(lookPath func(string) (string, error)) (playerSpec, bool) {
	candidates, ok := candidatePlayers[runtime.GOOS]
	if !ok {
		candidates = candidatePlayers["linux"] // default
	}
	for _, name := range candidates {
		spec, exists := players[name]
		if !exists {
			continue
		}
		if _, err := lookPath(spec.command); err == nil {
			return spec, true
		}
	}
	return playerSpec{}, false
}

// offsetArgs formats the resume offset for a player flag
func offsetArgs(flag string, offset float64) []string {
	if offset <= 0 || flag == "" {
		return nil
	}
	value := fmt.Sprintf("%.2f", offset)
	// Flags like "-ss " need the value as a separate arg
	if strings.HasSuffix(flag, " ") {
		return []string{strings.TrimSuffix(flag, " "), value}
	}
	return []string{flag + value}
}

// Player is one audio output: an optional player process plus a clock that
// turns wall time into time-update events.
type Player struct {
	mu sync.Mutex

	id       string
	spec     *playerSpec
	args     []string
	url      string
	duration float64
	tick     time.Duration
	sink     playback.Sink
	logger   *slog.Logger
	now      func() time.Time

	cmd       *exec.Cmd
	stop      chan struct{}
	session   int
	offset    float64 // position when the current session started
	startedAt time.Time
	playing   bool
	closed    bool
}

func newPlayer(spec *playerSpec, args []string, url string, duration float64, tick time.Duration, sink playback.Sink, logger *slog.Logger) *Player {
	return &Player{
		id:       uuid.NewString(),
		spec:     spec,
		args:     args,
		url:      url,
		duration: duration,
		tick:     tick,
		sink:     sink,
		logger:   logger,
		now:      time.Now,
	}
}

// ID implements playback.Output
func (p *Player) ID() string {
	return p.id
}

// Play starts the player at offset seconds and begins emitting time updates
func (p *Player) Play(offset float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrOutputClosed
	}
	if p.playing {
		return nil
	}

	var cmd *exec.Cmd
	if p.spec != nil {
		args := append([]string{}, p.spec.audioArgs...)
		args = append(args, p.args...)
		args = append(args, offsetArgs(p.spec.offsetFlag, offset)...)
		args = append(args, p.url)

		cmd = exec.Command(p.spec.command, args...)
		p.logger.Info("launching player", "command", p.spec.command, "args", args, "output", p.id)
		if err := cmd.Start(); err != nil {
			return fmt.Errorf("failed to start %s: %w", p.spec.command, err)
		}
	}

	p.session++
	p.cmd = cmd
	p.stop = make(chan struct{})
	p.offset = offset
	p.startedAt = p.now()
	p.playing = true

	go p.runClock(p.session, p.stop)
	if cmd != nil {
		go p.waitProcess(p.session, cmd)
	}
	return nil
}

// Pause stops the player and returns the position it reached
func (p *Player) Pause() (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.playing {
		return p.offset, nil
	}
	pos := p.positionLocked()
	p.haltLocked()
	p.offset = pos
	return pos, nil
}

// Close stops the player and detaches the sink; nothing is emitted afterwards
func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	p.haltLocked()
	p.sink = nil
	return nil
}

// haltLocked ends the current session: the clock stops and the process is killed
func (p *Player) haltLocked() {
	p.playing = false
	if p.stop != nil {
		close(p.stop)
		p.stop = nil
	}
	if p.cmd != nil && p.cmd.Process != nil {
		if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			p.logger.Debug("failed to kill player", "error", err, "output", p.id)
		}
	}
	p.cmd = nil
}

// positionLocked returns the elapsed playback position in seconds
func (p *Player) positionLocked() float64 {
	pos := p.offset + p.now().Sub(p.startedAt).Seconds()
	if p.duration > 0 && pos > p.duration {
		pos = p.duration
	}
	return pos
}

// emitLocked delivers an event to the sink if the output is still attached
func (p *Player) emitLocked(kind playback.EventKind, t float64) {
	if p.sink == nil {
		return
	}
	p.sink(playback.Event{OutputID: p.id, Kind: kind, Time: t})
}

func (p *Player) runClock(session int, stop <-chan struct{}) {
	ticker := time.NewTicker(p.tick)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		p.mu.Lock()
		if p.session != session || !p.playing {
			p.mu.Unlock()
			return
		}
		pos := p.positionLocked()
		p.emitLocked(playback.EventTimeUpdate, pos)

		// Without a process, the clock decides when audio ends.
		if p.spec == nil && p.duration > 0 && pos >= p.duration {
			p.haltLocked()
			p.offset = 0
			p.emitLocked(playback.EventEnded, pos)
			p.mu.Unlock()
			return
		}
		p.mu.Unlock()
	}
}

// waitProcess reports a natural end when the player exits on its own
func (p *Player) waitProcess(session int, cmd *exec.Cmd) {
	err := cmd.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()

	// Exits caused by Pause or Close belong to a halted session.
	if p.session != session || !p.playing {
		return
	}
	if err != nil {
		p.logger.Warn("player exited with error", "error", err, "output", p.id)
	}
	pos := p.positionLocked()
	p.haltLocked()
	p.offset = 0
	p.emitLocked(playback.EventEnded, pos)
}
