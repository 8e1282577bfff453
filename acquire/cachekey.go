package acquire

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
)

var safeKey = regexp.MustCompile(`^[A-Za-z0-9_-]{1,50}$`)

// CacheKey derives the file name stem for id. Ids that are already safe
// file names are used as is; anything else is hashed.
func CacheKey(id string) string {
	if safeKey.MatchString(id) {
		return id
	}
	hash := sha256.Sum256([]byte(id))
	return hex.EncodeToString(hash[:16])
}
