package youtube

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/himanshub16/upnext-jukebox/jukebox"
)

// Searcher queries one catalog backend.
type Searcher interface {
	Name() string
	Search(ctx context.Context, query string, limit int) ([]jukebox.Candidate, error)
}

// Resolver tries its searchers in order and returns the first non-empty
// answer. It never retries a backend.
type Resolver struct {
	searchers []Searcher
	log       zerolog.Logger
}

var _ jukebox.Resolver = (*Resolver)(nil)

func NewResolver(log zerolog.Logger, searchers ...Searcher) *Resolver {
	return &Resolver{
		searchers: searchers,
		log:       log.With().Str("component", "resolver").Logger(),
	}
}

func (r *Resolver) Identify(input string) (string, string, error) {
	id, err := ParseVideoID(input)
	if err != nil {
		return "", "", err
	}
	return id, WatchURL(id), nil
}

func (r *Resolver) Search(ctx context.Context, query string, limit int) ([]jukebox.Candidate, error) {
	var errs []error
	for _, s := range r.searchers {
		results, err := s.Search(ctx, query, limit)
		if err != nil {
			r.log.Warn().Err(err).Str("searcher", s.Name()).Msg("search backend failed")
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		if len(results) > 0 {
			if len(results) > limit {
				results = results[:limit]
			}
			return results, nil
		}
		r.log.Debug().Str("searcher", s.Name()).Str("query", query).Msg("no results")
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", jukebox.ErrResolutionFailed, errors.Join(errs...))
	}
	return nil, jukebox.WithReason(fmt.Errorf("%w: no results for %q", jukebox.ErrResolutionFailed, query),
		"No songs matched that search.")
}

// candidate builds a search result from the fields every backend has.
func candidate(id, title, artist string, seconds int64) jukebox.Candidate {
	duration := "Unknown"
	if seconds > 0 {
		duration = jukebox.FormatDuration(seconds)
	}
	if artist == "" || artist == "NA" {
		artist = jukebox.UnknownArtist
	}
	return jukebox.Candidate{
		ID:        id,
		Title:     title,
		Artist:    artist,
		Duration:  duration,
		Thumbnail: ThumbnailURL(id),
		URL:       WatchURL(id),
	}
}
