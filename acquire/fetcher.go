package acquire

import "context"

// MetadataSource can replace a Fetcher's metadata step, e.g. with an API
// that is cheaper than spawning yt-dlp.
type MetadataSource interface {
	Metadata(ctx context.Context, sourceURL string) (Metadata, error)
}

type splitFetcher struct {
	meta     MetadataSource
	download Fetcher
}

// WithMetadata returns a Fetcher that asks src for metadata and f for audio.
func WithMetadata(f Fetcher, src MetadataSource) Fetcher {
	if src == nil {
		return f
	}
	return splitFetcher{meta: src, download: f}
}

func (s splitFetcher) Metadata(ctx context.Context, sourceURL string) (Metadata, error) {
	return s.meta.Metadata(ctx, sourceURL)
}

func (s splitFetcher) Download(ctx context.Context, sourceURL, dest string) error {
	return s.download.Download(ctx, sourceURL, dest)
}
