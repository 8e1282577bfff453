package jukebox

import "time"

// Sync reports what a client joining now should be playing.
func (r *Radio) Sync() SyncReport {
	return r.SyncAt(r.clock.Now())
}

// SyncAt computes the resume point at now. It never changes playback state.
func (r *Radio) SyncAt(now time.Time) SyncReport {
	r.mu.Lock()
	defer r.mu.Unlock()

	report := SyncReport{ServerTime: now.UnixMilli()}
	if r.nowPlaying == nil {
		return report
	}
	summary := r.nowPlaying.Summary()
	report.Song = &summary
	report.Elapsed = clampElapsed(now.Sub(r.startedAt), r.nowPlaying.DurationTime()).Milliseconds()
	return report
}

// clampElapsed keeps elapsed within [0, length]. Reads during the tail
// buffer would otherwise point past the end of the song.
func clampElapsed(elapsed, length time.Duration) time.Duration {
	if elapsed < 0 {
		return 0
	}
	if elapsed > length {
		return length
	}
	return elapsed
}
