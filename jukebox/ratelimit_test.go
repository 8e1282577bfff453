package jukebox

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, clk clock.Clock) *Limiter {
	t.Helper()
	l, err := NewLimiter(clk, 16, map[ActionKind]time.Duration{
		ActionSearch: 2 * time.Second,
	})
	require.NoError(t, err)
	return l
}

func TestLimiterRejectsInsideWindow(t *testing.T) {
	clk := clock.NewMock()
	l := newTestLimiter(t, clk)

	require.NoError(t, l.Allow(ActionSearch, "u1"))
	clk.Add(1999 * time.Millisecond)
	assert.ErrorIs(t, l.Allow(ActionSearch, "u1"), ErrRateLimited)
}

func TestLimiterAllowsAfterWindow(t *testing.T) {
	clk := clock.NewMock()
	l := newTestLimiter(t, clk)

	require.NoError(t, l.Allow(ActionSearch, "u1"))
	clk.Add(2001 * time.Millisecond)
	assert.NoError(t, l.Allow(ActionSearch, "u1"))
}

func TestLimiterRejectionDoesNotMoveWindow(t *testing.T) {
	clk := clock.NewMock()
	l := newTestLimiter(t, clk)

	require.NoError(t, l.Allow(ActionSearch, "u1"))
	clk.Add(1500 * time.Millisecond)
	require.Error(t, l.Allow(ActionSearch, "u1"))

	// 2.1s after the accepted search, 0.6s after the rejected one
	clk.Add(600 * time.Millisecond)
	assert.NoError(t, l.Allow(ActionSearch, "u1"))
}

func TestLimiterIsPerRequesterAndKind(t *testing.T) {
	clk := clock.NewMock()
	l := newTestLimiter(t, clk)

	require.NoError(t, l.Allow(ActionSearch, "u1"))
	assert.NoError(t, l.Allow(ActionSearch, "u2"))
	// no interval configured for submit
	assert.NoError(t, l.Allow(ActionSubmit, "u1"))
	assert.NoError(t, l.Allow(ActionSubmit, "u1"))
}
