package youtube

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/himanshub16/upnext-jukebox/jukebox"
)

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// ParseVideoID accepts a bare video id or a watch, youtu.be, shorts or embed
// URL and returns the video id.
func ParseVideoID(input string) (string, error) {
	input = strings.TrimSpace(input)
	if videoIDPattern.MatchString(input) {
		return input, nil
	}

	u, err := url.Parse(input)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", invalidLink(input)
	}

	host := strings.ToLower(u.Hostname())
	for _, prefix := range []string{"www.", "m.", "music."} {
		host = strings.TrimPrefix(host, prefix)
	}

	var id string
	switch host {
	case "youtube.com":
		switch {
		case u.Path == "/watch":
			id = u.Query().Get("v")
		case strings.HasPrefix(u.Path, "/shorts/"), strings.HasPrefix(u.Path, "/embed/"):
			id = strings.SplitN(strings.TrimPrefix(u.Path, "/"), "/", 3)[1]
		}
	case "youtu.be":
		id = strings.TrimPrefix(u.Path, "/")
	}

	if !videoIDPattern.MatchString(id) {
		return "", invalidLink(input)
	}
	return id, nil
}

// WatchURL is the canonical source URL for a video id.
func WatchURL(id string) string {
	return "https://www.youtube.com/watch?v=" + id
}

// ThumbnailURL is the default thumbnail for a video id.
func ThumbnailURL(id string) string {
	return "https://i.ytimg.com/vi/" + id + "/hqdefault.jpg"
}

func invalidLink(input string) error {
	return jukebox.WithReason(fmt.Errorf("%w: not a youtube video %q", jukebox.ErrInvalidInput, input),
		"Send a YouTube video link or an 11 character video id.")
}
