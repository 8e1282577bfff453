package acquire

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

const DefaultBitrate = "192k"

// Transcoder converts any audio ffmpeg understands into MP3.
type Transcoder struct {
	FFmpeg  string
	Bitrate string
}

// CheckFFmpeg verifies ffmpeg is available.
func (t Transcoder) CheckFFmpeg(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, t.binary(), "-version")
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg is required but unavailable: %w", err)
	}
	return nil
}

// ToMP3 writes src as MP3 to dest. dest does not need an .mp3 extension.
func (t Transcoder) ToMP3(ctx context.Context, src, dest string) error {
	bitrate := t.Bitrate
	if bitrate == "" {
		bitrate = DefaultBitrate
	}
	cmd := exec.CommandContext(ctx, t.binary(),
		"-hide_banner", "-loglevel", "error",
		"-y", "-i", src,
		"-vn", "-codec:a", "libmp3lame", "-b:a", bitrate,
		"-f", "mp3", dest,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg to mp3 failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

func (t Transcoder) binary() string {
	if t.FFmpeg == "" {
		return "ffmpeg"
	}
	return t.FFmpeg
}
