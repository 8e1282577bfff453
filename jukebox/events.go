package jukebox

import (
	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
)

// Event names shared with the websocket clients.
const (
	EventState        = "jukebox:state"
	EventNowPlaying   = "jukebox:nowPlaying"
	EventQueueUpdate  = "jukebox:queueUpdate"
	EventProcessing   = "jukebox:processing"
	EventSync         = "jukebox:sync"
	EventVolumeChange = "jukebox:volumeChange"
	EventAnnouncement = "jukebox:announcement"

	EventSearch    = "jukebox:search"
	EventAddSong   = "jukebox:addSong"
	EventGetState  = "jukebox:getState"
	EventSetVolume = "jukebox:setVolume"
	EventGetVolume = "jukebox:getVolume"
	EventSkip      = "jukebox:skip"
	EventSongEnded = "jukebox:songEnded"
)

// Notifier fans events out to connected clients. Implementations must not
// block: the jukebox calls them while holding its state lock so that
// observers see transitions in the order they were applied.
type Notifier interface {
	NotifyAll(event string, payload interface{})
	NotifyOne(connID string, event string, payload interface{})
}

// VolumePayload is the body of jukebox:volumeChange.
type VolumePayload struct {
	Volume float64 `json:"volume"`
}

type nopNotifier struct{}

func (nopNotifier) NotifyAll(string, interface{})         {}
func (nopNotifier) NotifyOne(string, string, interface{}) {}

func newAnnouncement(clk clock.Clock, content string) Announcement {
	return Announcement{
		ID:        "system-jukebox-" + uuid.New().String(),
		Content:   content,
		Timestamp: clk.Now().UnixMilli(),
	}
}
