package jukebox

import (
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
)

type recordedEvent struct {
	Event   string
	Payload interface{}
}

type recorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *recorder) NotifyAll(event string, payload interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{Event: event, Payload: payload})
}

func (r *recorder) NotifyOne(_ string, event string, payload interface{}) {
	r.NotifyAll(event, payload)
}

func (r *recorder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Event
	}
	return out
}

func (r *recorder) last(event string) (interface{}, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Event == event {
			return r.events[i].Payload, true
		}
	}
	return nil, false
}

func (r *recorder) count(event string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Event == event {
			n++
		}
	}
	return n
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

func newTestRadio(t *testing.T) (*Radio, *clock.Mock, *recorder) {
	t.Helper()
	clk := clock.NewMock()
	rec := &recorder{}
	r := NewRadio(RadioConfig{
		Clock:    clk,
		Buffer:   DefaultBuffer,
		Notifier: rec,
		Logger:   zerolog.Nop(),
	})
	t.Cleanup(r.Shutdown)
	return r, clk, rec
}

func song(id string, seconds int64) Song {
	return Song{
		ID:       id,
		Title:    "title " + id,
		Artist:   "artist",
		Duration: seconds,
		FilePath: "/public/music/" + id + ".mp3",
		AddedBy:  "tester",
	}
}

func playingID(r *Radio) string {
	np, _ := r.Snapshot()
	if np == nil {
		return ""
	}
	return np.ID
}

const (
	waitFor = time.Second
	tick    = 5 * time.Millisecond
)
