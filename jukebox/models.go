// this file defines the data structures shared by the jukebox packages
package jukebox

import "time"

// UnknownArtist is reported when the catalog has no uploader.
const UnknownArtist = "Unknown"

// Song is immutable once enqueued.
type Song struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Artist    string `json:"artist"`
	Duration  int64  `json:"durationSeconds"`
	Thumbnail string `json:"thumbnail"`
	URL       string `json:"url"`
	FilePath  string `json:"filePath"`
	AddedBy   string `json:"addedBy"`
}

// Summary is the wire form of a song.
type Summary struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Artist          string `json:"artist"`
	Duration        string `json:"duration"`
	DurationSeconds int64  `json:"durationSeconds"`
	Thumbnail       string `json:"thumbnail"`
	URL             string `json:"url"`
	FilePath        string `json:"filePath"`
	AddedBy         string `json:"addedBy"`
}

func (s Song) Summary() Summary {
	return Summary{
		ID:              s.ID,
		Title:           s.Title,
		Artist:          s.Artist,
		Duration:        FormatDuration(s.Duration),
		DurationSeconds: s.Duration,
		Thumbnail:       s.Thumbnail,
		URL:             s.URL,
		FilePath:        s.FilePath,
		AddedBy:         s.AddedBy,
	}
}

// DurationTime is the playback length as a time.Duration.
func (s Song) DurationTime() time.Duration {
	return time.Duration(s.Duration) * time.Second
}

func summaries(songs []Song) []Summary {
	out := make([]Summary, len(songs))
	for i, s := range songs {
		out[i] = s.Summary()
	}
	return out
}

// NowPlaying is a song together with the instant it started, in unix ms.
type NowPlaying struct {
	Summary
	StartTime int64 `json:"startTime"`
}

// Candidate is one search result from the Resolver.
type Candidate struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Artist    string `json:"artist"`
	Duration  string `json:"duration"`
	Thumbnail string `json:"thumbnail"`
	URL       string `json:"url"`
}

// Asset is a locally playable file produced by the Acquirer.
type Asset struct {
	ID        string
	Path      string
	PublicURL string
	Title     string
	Artist    string
	Duration  int64
	Thumbnail string
}

// Requester identifies who sent a request.
type Requester struct {
	ID   string
	Name string
}

// State is the full snapshot returned by getState.
type State struct {
	NowPlaying   *NowPlaying `json:"currentSong"`
	Queue        []Summary   `json:"queue"`
	IsProcessing bool        `json:"isProcessing"`
	Volume       float64     `json:"volume"`
}

// SyncReport tells a late joiner where to resume.
type SyncReport struct {
	Song       *Summary `json:"song"`
	Elapsed    int64    `json:"elapsedTime"`
	ServerTime int64    `json:"serverTime"`
}

// Playing reports whether the report describes a song in progress.
func (r SyncReport) Playing() bool {
	return r.Song != nil
}

// Announcement replaces the system chat lines of the jukebox.
type Announcement struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
}
