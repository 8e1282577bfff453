// this file deals with the global state of the jukebox
package jukebox

import (
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
)

// DefaultBuffer is added to every song so clients have time to finish.
const DefaultBuffer = 2000 * time.Millisecond

// Status is the playback state machine's current state.
type Status int

const (
	StatusIdle Status = iota
	StatusPlaying
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusPlaying:
		return "playing"
	default:
		return "unknown"
	}
}

// Radio owns the queue, the song being played and the timer that advances
// it. Every transition happens under mu, and the timer is armed if and only
// if a song is playing.
type Radio struct {
	mu       sync.Mutex
	clock    clock.Clock
	buffer   time.Duration
	notifier Notifier
	log      zerolog.Logger

	queue      []Song
	nowPlaying *Song
	startedAt  time.Time

	timer *clock.Timer
	// generation identifies the live timer; fires from older timers are ignored
	generation uint64
	stopped    bool
}

type RadioConfig struct {
	Clock    clock.Clock
	Buffer   time.Duration
	Notifier Notifier
	Logger   zerolog.Logger
}

func NewRadio(cfg RadioConfig) *Radio {
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Buffer < 0 {
		cfg.Buffer = 0
	}
	if cfg.Notifier == nil {
		cfg.Notifier = nopNotifier{}
	}
	return &Radio{
		clock:    cfg.Clock,
		buffer:   cfg.Buffer,
		notifier: cfg.Notifier,
		log:      cfg.Logger.With().Str("component", "radio").Logger(),
		queue:    make([]Song, 0),
	}
}

// Enqueue appends song and starts it right away when nothing is playing.
// It returns the song's position: 0 when it started playing, otherwise its
// 1-based place in the queue.
func (r *Radio) Enqueue(song Song) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.queue = append(r.queue, song)
	r.log.Info().Str("song", song.ID).Str("added_by", song.AddedBy).Int("queue_len", len(r.queue)).Msg("song queued")
	r.notifier.NotifyAll(EventAnnouncement, newAnnouncement(r.clock,
		fmt.Sprintf("%s added %q to the queue.", song.AddedBy, song.Title)))

	if r.nowPlaying == nil && !r.stopped {
		r.advanceLocked()
		return 0
	}
	r.notifier.NotifyAll(EventQueueUpdate, summaries(r.queue))
	return len(r.queue)
}

// Skip cancels the current song and advances immediately.
func (r *Radio) Skip() (Song, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.nowPlaying == nil {
		return Song{}, ErrNothingPlaying
	}
	skipped := *r.nowPlaying
	r.log.Info().Str("song", skipped.ID).Msg("song skipped")
	r.advanceLocked()
	return skipped, nil
}

func (r *Radio) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.nowPlaying == nil {
		return StatusIdle
	}
	return StatusPlaying
}

// Snapshot returns the song being played (nil when idle) and the queue.
func (r *Radio) Snapshot() (*NowPlaying, []Summary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.nowPlayingLocked(), summaries(r.queue)
}

// SnapshotTo calls fn with the song being played and the queue while the
// radio is locked. Notifications sent from fn are ordered with transitions.
// fn must not block or call back into the radio.
func (r *Radio) SnapshotTo(fn func(np *NowPlaying, queue []Summary)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r.nowPlayingLocked(), summaries(r.queue))
}

// Shutdown cancels the timer. The radio does not advance afterwards.
func (r *Radio) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopTimerLocked()
	r.stopped = true
	r.log.Info().Msg("radio stopped")
}

func (r *Radio) nowPlayingLocked() *NowPlaying {
	if r.nowPlaying == nil {
		return nil
	}
	return &NowPlaying{
		Summary:   r.nowPlaying.Summary(),
		StartTime: r.startedAt.UnixMilli(),
	}
}

// advanceLocked pops the next song and arms its timer, or goes idle.
func (r *Radio) advanceLocked() {
	r.stopTimerLocked()

	if len(r.queue) == 0 {
		r.nowPlaying = nil
		r.startedAt = time.Time{}
		r.log.Info().Msg("queue drained, radio idle")

		r.notifier.NotifyAll(EventNowPlaying, nil)
		r.notifier.NotifyAll(EventAnnouncement, newAnnouncement(r.clock, "The queue is empty."))
		return
	}

	song := r.queue[0]
	r.queue[0] = Song{}
	r.queue = r.queue[1:]

	r.nowPlaying = &song
	r.startedAt = r.clock.Now()

	gen := r.generation
	wait := song.DurationTime() + r.buffer
	r.timer = r.clock.AfterFunc(wait, func() { r.onTimer(gen) })

	r.log.Info().
		Str("song", song.ID).
		Str("title", song.Title).
		Dur("fires_in", wait).
		Int("queue_len", len(r.queue)).
		Msg("now playing")

	r.notifier.NotifyAll(EventNowPlaying, r.nowPlayingLocked())
	r.notifier.NotifyAll(EventQueueUpdate, summaries(r.queue))
	r.notifier.NotifyAll(EventAnnouncement, newAnnouncement(r.clock,
		fmt.Sprintf("Now playing %q requested by %s.", song.Title, song.AddedBy)))
}

// stopTimerLocked cancels the live timer and invalidates any fire that is
// already waiting on mu.
func (r *Radio) stopTimerLocked() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.generation++
}

func (r *Radio) onTimer(gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped || gen != r.generation || r.nowPlaying == nil {
		r.log.Debug().Uint64("generation", gen).Msg("discarding stale playback timer")
		return
	}
	r.timer = nil
	r.log.Info().Str("song", r.nowPlaying.ID).Msg("song finished")
	r.advanceLocked()
}

func (r *Radio) timerArmed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.timer != nil
}
