package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mmcdole/lector/internal/playback"
)

// EventQueue adapts a playback.Sink to a channel for Bubble Tea.
// Outputs emit while holding their own locks, so Sink never blocks.
type EventQueue struct {
	ch      chan playback.Event
	done    chan struct{}
	once    sync.Once
	pending sync.WaitGroup
}

// NewEventQueue creates a queue buffering up to size events.
func NewEventQueue(size int) *EventQueue {
	return &EventQueue{
		ch:   make(chan playback.Event, size),
		done: make(chan struct{}),
	}
}

// Sink delivers an event. Time updates are dropped when the queue is full
// (a later update supersedes them); Ended is delivered unless the queue
// is closed first.
func (q *EventQueue) Sink(ev playback.Event) {
	select {
	case <-q.done:
		return
	default:
	}

	select {
	case q.ch <- ev:
	default:
		if ev.Kind != playback.EventEnded {
			return
		}
		q.pending.Add(1)
		go func() {
			defer q.pending.Done()
			select {
			case q.ch <- ev:
			case <-q.done:
			}
		}()
	}
}

// Close drops undelivered events and waits for pending deliveries to exit
func (q *EventQueue) Close() {
	q.once.Do(func() { close(q.done) })
	q.pending.Wait()
}

// Events returns the receive side of the queue
func (q *EventQueue) Events() <-chan playback.Event {
	return q.ch
}

// WaitForEventCmd waits for the next playback event
func WaitForEventCmd(ch <-chan playback.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return PlaybackEventMsg{Event: ev}
	}
}
