package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "ev1:leaderboard", Key("ev1", "leaderboard"))
	assert.Equal(t, "ev1:team:t42", Key("ev1", "team", "t42"))
}

func TestGetSet(t *testing.T) {
	c, err := New(8, time.Minute)
	require.NoError(t, err)

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set(Key("ev1", "leaderboard"), 42)
	v, ok := c.Get(Key("ev1", "leaderboard"))
	require.True(t, ok)
	assert.Equal(t, 42, v)
}

func TestEntriesExpire(t *testing.T) {
	c, err := New(8, 10*time.Millisecond)
	require.NoError(t, err)

	c.Set("k", "v")
	_, ok := c.Get("k")
	require.True(t, ok)

	time.Sleep(20 * time.Millisecond)
	_, ok = c.Get("k")
	assert.False(t, ok)
}

func TestInvalidateEventDropsOnlyThatEvent(t *testing.T) {
	c, err := New(8, time.Minute)
	require.NoError(t, err)

	c.Set(Key("ev1", "leaderboard"), 1)
	c.Set(Key("ev1", "top"), 2)
	c.Set(Key("ev2", "leaderboard"), 3)

	c.InvalidateEvent("ev1")

	_, ok := c.Get(Key("ev1", "leaderboard"))
	assert.False(t, ok)
	_, ok = c.Get(Key("ev1", "top"))
	assert.False(t, ok)
	v, ok := c.Get(Key("ev2", "leaderboard"))
	require.True(t, ok)
	assert.Equal(t, 3, v)
}

func TestPurge(t *testing.T) {
	c, err := New(8, time.Minute)
	require.NoError(t, err)

	c.Set(Key("ev1", "leaderboard"), 1)
	c.Purge()
	_, ok := c.Get(Key("ev1", "leaderboard"))
	assert.False(t, ok)
}
