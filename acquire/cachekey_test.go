package acquire

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCacheKey(t *testing.T) {
	assert.Equal(t, "dQw4w9WgXcQ", CacheKey("dQw4w9WgXcQ"))
	assert.Equal(t, "a_b-c", CacheKey("a_b-c"))

	hashed := CacheKey("../../etc/passwd")
	assert.Len(t, hashed, 32)
	assert.Equal(t, hashed, CacheKey("../../etc/passwd"))
	assert.NotEqual(t, hashed, CacheKey("../../etc/shadow"))
}
