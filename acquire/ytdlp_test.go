package acquire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMetadataLine(t *testing.T) {
	meta, err := parseMetadataLine("dQw4w9WgXcQ\tNever Gonna Give You Up\tRick Astley\t212.0\thttps://i.ytimg.com/vi/x.jpg\n")
	require.NoError(t, err)
	assert.Equal(t, Metadata{
		ID:        "dQw4w9WgXcQ",
		Title:     "Never Gonna Give You Up",
		Artist:    "Rick Astley",
		Duration:  212,
		Thumbnail: "https://i.ytimg.com/vi/x.jpg",
	}, meta)
}

func TestParseMetadataLineLiveStream(t *testing.T) {
	meta, err := parseMetadataLine("abc\tLive radio\tNA\tNA\tNA")
	require.NoError(t, err)
	assert.Zero(t, meta.Duration)
	assert.Empty(t, meta.Artist)
	assert.Empty(t, meta.Thumbnail)
}

func TestParseMetadataLineMalformed(t *testing.T) {
	_, err := parseMetadataLine("ERROR: something")
	assert.Error(t, err)
	_, err = parseMetadataLine("")
	assert.Error(t, err)
}
