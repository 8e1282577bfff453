package youtube

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/lrstanley/go-ytdlp"
	"github.com/ppalone/ytsearch"
	"github.com/rs/zerolog"

	"github.com/himanshub16/upnext-jukebox/jukebox"
)

const searchTemplate = "%(id)s\t%(title)s\t%(uploader)s\t%(duration)s"

// YtdlpSearcher runs "ytsearchN:query" through yt-dlp. Only videos come
// back from that extractor.
type YtdlpSearcher struct {
	Proxy string
}

func (s *YtdlpSearcher) Name() string { return "yt-dlp" }

func (s *YtdlpSearcher) Search(ctx context.Context, query string, limit int) ([]jukebox.Candidate, error) {
	cmd := ytdlp.New().
		Quiet().
		NoWarnings().
		IgnoreConfig().
		FlatPlaylist().
		Print(searchTemplate).
		PlaylistItems(fmt.Sprintf("1-%d", limit))
	if s.Proxy != "" {
		cmd.Proxy(s.Proxy)
	}

	res, err := cmd.Run(ctx, fmt.Sprintf("ytsearch%d:%s", limit, query))
	if err != nil {
		if res != nil && strings.TrimSpace(res.Stderr) != "" {
			return nil, fmt.Errorf("%w: %s", err, strings.TrimSpace(res.Stderr))
		}
		return nil, err
	}
	return parseSearchOutput(res.Stdout, limit), nil
}

func parseSearchOutput(out string, limit int) []jukebox.Candidate {
	results := make([]jukebox.Candidate, 0, limit)
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		parts := strings.Split(strings.TrimSpace(line), "\t")
		if len(parts) < 4 || !videoIDPattern.MatchString(parts[0]) {
			continue
		}
		var seconds int64
		if d, err := strconv.ParseFloat(parts[3], 64); err == nil {
			seconds = int64(d + 0.5)
		}
		results = append(results, candidate(parts[0], parts[1], parts[2], seconds))
		if len(results) == limit {
			break
		}
	}
	return results
}

// NativeSearcher scrapes the results page without yt-dlp.
type NativeSearcher struct {
	Log zerolog.Logger
}

func (NativeSearcher) Name() string { return "ytsearch" }

func (s NativeSearcher) Search(ctx context.Context, query string, limit int) ([]jukebox.Candidate, error) {
	c := ytsearch.NewClient(nil)
	res, err := c.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	return nativeCandidates(res.Results, limit, s.Log), nil
}

func nativeCandidates(videos []ytsearch.VideoInfo, limit int, log zerolog.Logger) []jukebox.Candidate {
	seen := make(map[string]bool)
	results := make([]jukebox.Candidate, 0, limit)
	for _, v := range videos {
		if !videoIDPattern.MatchString(v.VideoID) || seen[v.VideoID] {
			continue
		}
		seen[v.VideoID] = true

		// live streams carry no length text
		var seconds int64
		if v.Duration != "" {
			n, err := jukebox.ParseDuration(v.Duration)
			if err != nil {
				log.Warn().Err(err).Str("song", v.VideoID).Msg("unreadable duration in search result")
			} else {
				seconds = n
			}
		}

		c := candidate(v.VideoID, v.Title, v.Channel, seconds)
		if n := len(v.Thumbnails); n > 0 && v.Thumbnails[n-1].URL != "" {
			c.Thumbnail = v.Thumbnails[n-1].URL
		}
		results = append(results, c)
		if len(results) == limit {
			break
		}
	}
	return results
}
