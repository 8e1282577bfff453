package jukebox

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
)

const (
	DefaultMaxResults = 5
	minQueryLength    = 2
	anonymous         = "Anonymous"
)

// Resolver turns user input into catalog identifiers and search results.
type Resolver interface {
	// Identify extracts the canonical id from a URL or bare id without any
	// network access.
	Identify(input string) (id, sourceURL string, err error)
	Search(ctx context.Context, query string, limit int) ([]Candidate, error)
}

// Acquirer guarantees a playable file for a canonical id.
type Acquirer interface {
	Acquire(ctx context.Context, id, sourceURL string) (Asset, error)
}

// Service is what the transport layers call into.
type Service interface {
	Search(ctx context.Context, who Requester, query string, limit int) ([]Candidate, error)
	Submit(ctx context.Context, who Requester, input, addedBy string) (string, error)
	State() State
	// WithState runs fn on a snapshot that no transition can overtake.
	WithState(fn func(State))
	Sync() SyncReport
	SetVolume(volume float64) error
	Volume() float64
	Skip(who Requester) (Song, error)
}

// Coordinator is the request boundary in front of the Radio. Resolver and
// Acquirer failures stop here and never reach playback state.
type Coordinator struct {
	radio    *Radio
	resolver Resolver
	acquirer Acquirer
	limiter  *Limiter
	notifier Notifier
	clock    clock.Clock
	log      zerolog.Logger

	maxResults     int
	acquireTimeout time.Duration

	mu         sync.Mutex
	processing int
	volume     float64
}

var _ Service = (*Coordinator)(nil)

type CoordinatorConfig struct {
	Radio         *Radio
	Resolver      Resolver
	Acquirer      Acquirer
	Limiter       *Limiter
	Notifier      Notifier
	Clock         clock.Clock
	MaxResults    int
	DefaultVolume float64

	// AcquireTimeout bounds a submission after its requester has gone.
	// Zero leaves the bound to the Acquirer.
	AcquireTimeout time.Duration
	Logger         zerolog.Logger
}

func NewCoordinator(cfg CoordinatorConfig) (*Coordinator, error) {
	if cfg.Radio == nil || cfg.Resolver == nil || cfg.Acquirer == nil {
		return nil, errors.New("jukebox: radio, resolver and acquirer are required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Notifier == nil {
		cfg.Notifier = nopNotifier{}
	}
	if cfg.Limiter == nil {
		l, err := NewLimiter(cfg.Clock, 0, nil)
		if err != nil {
			return nil, err
		}
		cfg.Limiter = l
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = DefaultMaxResults
	}
	return &Coordinator{
		radio:          cfg.Radio,
		resolver:       cfg.Resolver,
		acquirer:       cfg.Acquirer,
		limiter:        cfg.Limiter,
		notifier:       cfg.Notifier,
		clock:          cfg.Clock,
		log:            cfg.Logger.With().Str("component", "coordinator").Logger(),
		maxResults:     cfg.MaxResults,
		acquireTimeout: cfg.AcquireTimeout,
		volume:         clampVolume(cfg.DefaultVolume),
	}, nil
}

// Search validates the query, applies the search throttle and asks the
// Resolver for at most limit candidates.
func (c *Coordinator) Search(ctx context.Context, who Requester, query string, limit int) ([]Candidate, error) {
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < minQueryLength {
		return nil, WithReason(fmt.Errorf("%w: query %q too short", ErrInvalidInput, query),
			fmt.Sprintf("Search needs at least %d characters.", minQueryLength))
	}
	if limit <= 0 || limit > c.maxResults {
		limit = c.maxResults
	}

	if err := c.limiter.Allow(ActionSearch, who.ID); err != nil {
		c.log.Debug().Str("requester", who.ID).Err(err).Msg("search throttled")
		return nil, WithReason(err, "Please wait a moment before searching again.")
	}

	c.log.Info().Str("requester", who.Name).Str("query", query).Msg("searching")
	results, err := c.resolver.Search(ctx, query, limit)
	if err != nil {
		if !Known(err) {
			err = fmt.Errorf("%w: %w", ErrResolutionFailed, err)
		}
		c.log.Warn().Err(err).Str("query", query).Msg("search failed")
		return nil, err
	}
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Submit resolves input to an id, acquires the audio and enqueues the song.
// The returned string is a confirmation for the requester.
func (c *Coordinator) Submit(ctx context.Context, who Requester, input, addedBy string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", WithReason(fmt.Errorf("%w: empty song request", ErrInvalidInput),
			"Send a YouTube link or video id.")
	}
	id, sourceURL, err := c.resolver.Identify(input)
	if err != nil {
		if !Known(err) {
			err = fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		return "", err
	}

	if err := c.limiter.Allow(ActionSubmit, who.ID); err != nil {
		c.log.Debug().Str("requester", who.ID).Err(err).Msg("submit throttled")
		return "", WithReason(err, "Please wait a moment before adding another song.")
	}

	// the requester may leave while the song downloads; the song is queued
	// anyway and only the reply is dropped
	work := context.WithoutCancel(ctx)
	cancel := func() {}
	if c.acquireTimeout > 0 {
		work, cancel = context.WithTimeout(work, c.acquireTimeout)
	}

	c.beginProcessing()
	done := make(chan submitResult, 1)
	go func() {
		defer cancel()
		msg, err := c.acquireAndEnqueue(work, who, id, sourceURL, addedBy)
		c.endProcessing()
		done <- submitResult{message: msg, err: err}
	}()

	select {
	case res := <-done:
		return res.message, res.err
	case <-ctx.Done():
		c.log.Info().Str("song", id).Str("requester", who.ID).Msg("requester left, song will still be queued")
		return "", ctx.Err()
	}
}

type submitResult struct {
	message string
	err     error
}

func (c *Coordinator) acquireAndEnqueue(ctx context.Context, who Requester, id, sourceURL, addedBy string) (string, error) {
	started := c.clock.Now()
	asset, err := c.acquirer.Acquire(ctx, id, sourceURL)
	if err != nil {
		if !errors.Is(err, ErrAcquisitionFailed) {
			err = fmt.Errorf("%w: %w", ErrAcquisitionFailed, err)
		}
		c.log.Error().Err(err).Str("song", id).Msg("acquisition failed")
		return "", err
	}
	if asset.Duration <= 0 {
		err := fmt.Errorf("%w: %s reports %d seconds", ErrInvalidDuration, id, asset.Duration)
		c.log.Warn().Err(err).Msg("rejecting song")
		return "", WithReason(err, "Live streams and songs without a length can't be queued.")
	}
	c.log.Info().Str("song", id).Dur("took", c.clock.Since(started)).Msg("song acquired")

	song := Song{
		ID:        asset.ID,
		Title:     asset.Title,
		Artist:    asset.Artist,
		Duration:  asset.Duration,
		Thumbnail: asset.Thumbnail,
		URL:       sourceURL,
		FilePath:  asset.PublicURL,
		AddedBy:   displayName(addedBy, who.Name),
	}
	if song.Artist == "" {
		song.Artist = UnknownArtist
	}

	if pos := c.radio.Enqueue(song); pos > 0 {
		return fmt.Sprintf("Added %q to the queue at position %d.", song.Title, pos), nil
	}
	return fmt.Sprintf("Now playing %q.", song.Title), nil
}

func (c *Coordinator) State() State {
	var state State
	c.WithState(func(s State) { state = s })
	return state
}

// WithState holds off transitions and volume or processing changes while fn
// runs, so a snapshot sent from fn reaches a client before any later update.
// fn must not block or call back into the Coordinator.
func (c *Coordinator) WithState(fn func(State)) {
	c.radio.SnapshotTo(func(np *NowPlaying, queue []Summary) {
		c.mu.Lock()
		defer c.mu.Unlock()
		fn(State{
			NowPlaying:   np,
			Queue:        queue,
			IsProcessing: c.processing > 0,
			Volume:       c.volume,
		})
	})
}

func (c *Coordinator) Sync() SyncReport {
	return c.radio.Sync()
}

// SetVolume stores volume (0..1) and broadcasts it. Last writer wins.
func (c *Coordinator) SetVolume(volume float64) error {
	if math.IsNaN(volume) || volume < 0 || volume > 1 {
		return WithReason(fmt.Errorf("%w: volume %v", ErrInvalidInput, volume),
			"Volume must be between 0 and 1.")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.volume = volume
	c.notifier.NotifyAll(EventVolumeChange, VolumePayload{Volume: volume})
	return nil
}

func (c *Coordinator) Volume() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.volume
}

func (c *Coordinator) Skip(who Requester) (Song, error) {
	song, err := c.radio.Skip()
	if err != nil {
		return Song{}, err
	}
	c.log.Info().Str("requester", who.Name).Str("song", song.ID).Msg("skip requested")
	return song, nil
}

// IsProcessing reports whether any acquisition is in flight.
func (c *Coordinator) IsProcessing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.processing > 0
}

// beginProcessing and endProcessing keep a count of acquisitions in flight
// and broadcast only when the flag flips.
func (c *Coordinator) beginProcessing() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.processing++
	if c.processing == 1 {
		c.notifier.NotifyAll(EventProcessing, true)
	}
}

func (c *Coordinator) endProcessing() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.processing--
	if c.processing == 0 {
		c.notifier.NotifyAll(EventProcessing, false)
	}
}

func displayName(names ...string) string {
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			return n
		}
	}
	return anonymous
}

func clampVolume(v float64) float64 {
	if math.IsNaN(v) {
		return 1
	}
	return math.Max(0, math.Min(1, v))
}
