package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/himanshub16/upnext-jukebox/acquire"
	"github.com/himanshub16/upnext-jukebox/jukebox"
)

const DefaultDataAPIURL = "https://www.googleapis.com/youtube/v3"

// DataAPI talks to the YouTube Data API v3. It can search and it can stand
// in for yt-dlp's metadata step.
type DataAPI struct {
	Key     string
	BaseURL string
	Client  *http.Client
}

type videoItem struct {
	ID      string `json:"id"`
	Snippet struct {
		ChannelTitle string `json:"channelTitle"`
		Title        string `json:"title"`
		Thumbnails   map[string]struct {
			URL string `json:"url"`
		} `json:"thumbnails"`
	} `json:"snippet"`
	ContentDetails struct {
		Duration string `json:"duration"`
	} `json:"contentDetails"`
}

func (d *DataAPI) Name() string { return "youtube-data-api" }

func (d *DataAPI) Search(ctx context.Context, query string, limit int) ([]jukebox.Candidate, error) {
	search := struct {
		Items []struct {
			ID struct {
				VideoID string `json:"videoId"`
			} `json:"id"`
		} `json:"items"`
	}{}
	err := d.get(ctx, "search", url.Values{
		"part":       {"snippet"},
		"type":       {"video"},
		"maxResults": {strconv.Itoa(limit)},
		"q":          {query},
	}, &search)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(search.Items))
	for _, it := range search.Items {
		if videoIDPattern.MatchString(it.ID.VideoID) {
			ids = append(ids, it.ID.VideoID)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	videos, err := d.videos(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]videoItem, len(videos))
	for _, v := range videos {
		byID[v.ID] = v
	}

	results := make([]jukebox.Candidate, 0, len(ids))
	for _, id := range ids {
		v, ok := byID[id]
		if !ok {
			continue
		}
		seconds, _ := ParseISODuration(v.ContentDetails.Duration)
		c := candidate(id, v.Snippet.Title, v.Snippet.ChannelTitle, seconds)
		if thumb := pickThumbnail(v); thumb != "" {
			c.Thumbnail = thumb
		}
		results = append(results, c)
	}
	return results, nil
}

// Metadata looks up a single video by its watch URL.
func (d *DataAPI) Metadata(ctx context.Context, sourceURL string) (acquire.Metadata, error) {
	id, err := ParseVideoID(sourceURL)
	if err != nil {
		return acquire.Metadata{}, err
	}
	videos, err := d.videos(ctx, []string{id})
	if err != nil {
		return acquire.Metadata{}, err
	}
	if len(videos) == 0 {
		return acquire.Metadata{}, errors.New("no item returned from YouTube")
	}

	v := videos[0]
	seconds, err := ParseISODuration(v.ContentDetails.Duration)
	if err != nil {
		return acquire.Metadata{}, err
	}
	return acquire.Metadata{
		ID:        id,
		Title:     v.Snippet.Title,
		Artist:    v.Snippet.ChannelTitle,
		Duration:  seconds,
		Thumbnail: pickThumbnail(v),
	}, nil
}

func (d *DataAPI) videos(ctx context.Context, ids []string) ([]videoItem, error) {
	response := struct {
		Items []videoItem `json:"items"`
	}{}
	err := d.get(ctx, "videos", url.Values{
		"part": {"snippet,contentDetails"},
		"id":   {strings.Join(ids, ",")},
	}, &response)
	return response.Items, err
}

func (d *DataAPI) get(ctx context.Context, resource string, q url.Values, out interface{}) error {
	base := d.BaseURL
	if base == "" {
		base = DefaultDataAPIURL
	}
	client := d.Client
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(base, "/")+"/"+resource, nil)
	if err != nil {
		return err
	}
	q.Set("key", d.Key)
	req.URL.RawQuery = q.Encode()

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("youtube %s: status %d: %s", resource, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.Unmarshal(body, out)
}

func pickThumbnail(v videoItem) string {
	for _, size := range []string{"high", "medium", "default"} {
		if t, ok := v.Snippet.Thumbnails[size]; ok && t.URL != "" {
			return t.URL
		}
	}
	return ""
}

var isoDuration = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

// ParseISODuration reads the PT#H#M#S durations the Data API returns.
func ParseISODuration(s string) (int64, error) {
	m := isoDuration.FindStringSubmatch(s)
	if m == nil || s == "P" || strings.HasSuffix(s, "T") {
		return 0, fmt.Errorf("%w: %q", jukebox.ErrInvalidDuration, s)
	}
	var total int64
	for i, unit := range []int64{86400, 3600, 60, 1} {
		if m[i+1] == "" {
			continue
		}
		n, err := strconv.ParseInt(m[i+1], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", jukebox.ErrInvalidDuration, s)
		}
		total += n * unit
	}
	return total, nil
}
