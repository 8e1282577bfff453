package acquire

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/lrstanley/go-ytdlp"
)

const metadataTemplate = "%(id)s\t%(title)s\t%(uploader)s\t%(duration)s\t%(thumbnail)s"

// YtdlpFetcher downloads with yt-dlp and transcodes with ffmpeg.
type YtdlpFetcher struct {
	Proxy      string
	TempDir    string
	Transcoder Transcoder
}

var _ Fetcher = (*YtdlpFetcher)(nil)

func (f *YtdlpFetcher) command() *ytdlp.Command {
	cmd := ytdlp.New().
		Quiet().
		NoWarnings().
		IgnoreConfig().
		NoPlaylist()
	if f.Proxy != "" {
		cmd.Proxy(f.Proxy)
	}
	return cmd
}

func (f *YtdlpFetcher) Metadata(ctx context.Context, sourceURL string) (Metadata, error) {
	res, err := f.command().
		Print(metadataTemplate).
		Run(ctx, "--skip-download", sourceURL)
	if err != nil {
		return Metadata{}, fmt.Errorf("yt-dlp metadata: %w%s", err, stderrOf(res))
	}
	return parseMetadataLine(res.Stdout)
}

func (f *YtdlpFetcher) Download(ctx context.Context, sourceURL, dest string) error {
	work, err := os.MkdirTemp(f.TempDir, "jukebox-fetch-*")
	if err != nil {
		return fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(work)

	res, err := f.command().
		Format("bestaudio/best").
		Output(filepath.Join(work, "source.%(ext)s")).
		NoPart().
		Run(ctx, sourceURL)
	if err != nil {
		return fmt.Errorf("yt-dlp download: %w%s", err, stderrOf(res))
	}

	matches, _ := filepath.Glob(filepath.Join(work, "source.*"))
	if len(matches) == 0 {
		return errors.New("yt-dlp produced no file")
	}
	return f.Transcoder.ToMP3(ctx, matches[0], dest)
}

// parseMetadataLine reads the first line printed with metadataTemplate.
func parseMetadataLine(out string) (Metadata, error) {
	line := strings.TrimSpace(strings.SplitN(strings.TrimSpace(out), "\n", 2)[0])
	parts := strings.Split(line, "\t")
	if len(parts) < 5 {
		return Metadata{}, fmt.Errorf("unexpected yt-dlp output %q", line)
	}
	meta := Metadata{
		ID:        parts[0],
		Title:     parts[1],
		Artist:    na(parts[2]),
		Thumbnail: na(parts[4]),
	}
	// live streams report NA; the coordinator rejects zero durations
	if d, err := strconv.ParseFloat(parts[3], 64); err == nil && d > 0 {
		meta.Duration = int64(d + 0.5)
	}
	return meta, nil
}

func na(s string) string {
	if s == "NA" {
		return ""
	}
	return s
}

func stderrOf(res *ytdlp.Result) string {
	if res == nil || strings.TrimSpace(res.Stderr) == "" {
		return ""
	}
	return ": " + strings.TrimSpace(res.Stderr)
}
