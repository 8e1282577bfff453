package youtube

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/himanshub16/upnext-jukebox/jukebox"
)

func TestParseVideoID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"  dQw4w9WgXcQ ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://youtube.com/watch?list=PL1&v=dQw4w9WgXcQ&t=42", "dQw4w9WgXcQ"},
		{"https://m.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://music.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://youtu.be/dQw4w9WgXcQ?si=abc", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/shorts/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseVideoID(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseVideoIDRejects(t *testing.T) {
	for _, in := range []string{
		"",
		"short",
		"https://vimeo.com/12345",
		"https://www.youtube.com/watch",
		"https://www.youtube.com/watch?v=tooShort",
		"https://www.youtube.com/channel/UC1234567890",
		"ftp://youtube.com/watch?v=dQw4w9WgXcQ",
		"javascript:alert(1)",
	} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseVideoID(in)
			assert.ErrorIs(t, err, jukebox.ErrInvalidInput)
		})
	}
}

func TestResolverIdentifyBuildsCanonicalURL(t *testing.T) {
	r := NewResolver(testLogger())
	id, src, err := r.Identify("https://youtu.be/dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.Equal(t, "dQw4w9WgXcQ", id)
	assert.Equal(t, "https://www.youtube.com/watch?v=dQw4w9WgXcQ", src)
}
