package jukebox

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FormatDuration renders seconds as M:SS, or H:MM:SS from one hour up.
func FormatDuration(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h == 0 {
		return fmt.Sprintf("%d:%02d", m, s)
	}
	return fmt.Sprintf("%d:%02d:%02d", h, m, s)
}

// ParseDuration is the inverse of FormatDuration. It accepts MM:SS and
// H:MM:SS made of plain digits; anything else is ErrInvalidDuration.
func ParseDuration(s string) (int64, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, s)
	}

	var total int64
	for i, p := range parts {
		if !allDigits(p) {
			return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, s)
		}
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, s)
		}
		// only the leading field may exceed its place value
		if i > 0 && n >= 60 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, s)
		}
		if total > (math.MaxInt64-n)/60 {
			return 0, fmt.Errorf("%w: %q overflows", ErrInvalidDuration, s)
		}
		total = total*60 + n
	}
	return total, nil
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
