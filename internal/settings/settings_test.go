package settings

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasnerz/letax/internal/models"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "settings.yaml"))
	require.NoError(t, err)
	return s
}

func TestStoreDefaults(t *testing.T) {
	s := newStore(t)

	assert.Empty(t, s.Events())
	assert.Equal(t, 10, s.FeedPageSize())

	kind, bucket := s.FileSystem()
	assert.Equal(t, "local", kind)
	assert.Empty(t, bucket)
}

func TestEventLifecycle(t *testing.T) {
	s := newStore(t)

	event, err := s.CreateEvent(2026)
	require.NoError(t, err)
	assert.Equal(t, models.EventDraft, event.Status)
	assert.False(t, event.Active)
	assert.Len(t, event.ID, 8)

	event.Status = models.EventOngoing
	event.Active = true
	event.StartDate = "2026-08-27"
	require.NoError(t, s.UpdateEvent(*event))

	got, err := s.EventByID(event.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EventOngoing, got.Status)
	assert.Equal(t, "2026-08-27", got.StartDate)

	require.NoError(t, s.UpdateEvent(Event{ID: event.ID, Year: 2026, Status: models.EventPast}))
	_, err = s.EventByID("missing")
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestUpdateEventRejectsInvalidStatus(t *testing.T) {
	s := newStore(t)
	event, err := s.CreateEvent(2026)
	require.NoError(t, err)

	event.Status = "running"
	assert.Error(t, s.UpdateEvent(*event))
}

func TestSingleActiveEvent(t *testing.T) {
	s := newStore(t)

	first, err := s.CreateEvent(2025)
	require.NoError(t, err)
	second, err := s.CreateEvent(2026)
	require.NoError(t, err)

	first.Status = models.EventOngoing
	first.Active = true
	require.NoError(t, s.UpdateEvent(*first))

	second.Status = models.EventOngoing
	second.Active = true
	assert.ErrorIs(t, s.UpdateEvent(*second), ErrActiveEventExists)
}

func TestDefaultEventFallsBackToLatestPast(t *testing.T) {
	s := newStore(t)

	_, err := s.DefaultEvent()
	assert.ErrorIs(t, err, ErrEventNotFound)

	old, err := s.CreateEvent(2024)
	require.NoError(t, err)
	old.Status = models.EventPast
	require.NoError(t, s.UpdateEvent(*old))

	recent, err := s.CreateEvent(2025)
	require.NoError(t, err)
	recent.Status = models.EventPast
	require.NoError(t, s.UpdateEvent(*recent))

	// No active event: the most recent past year is shown.
	def, err := s.DefaultEvent()
	require.NoError(t, err)
	assert.Equal(t, 2025, def.Year)

	active, err := s.CreateEvent(2026)
	require.NoError(t, err)
	active.Status = models.EventOngoing
	active.Active = true
	require.NoError(t, s.UpdateEvent(*active))

	def, err = s.DefaultEvent()
	require.NoError(t, err)
	assert.Equal(t, 2026, def.Year)
}

func TestEventsSortedNewestFirst(t *testing.T) {
	s := newStore(t)
	_, err := s.CreateEvent(2024)
	require.NoError(t, err)
	_, err = s.CreateEvent(2026)
	require.NoError(t, err)
	_, err = s.CreateEvent(2025)
	require.NoError(t, err)

	events := s.Events()
	require.Len(t, events, 3)
	assert.Equal(t, []int{2026, 2025, 2024}, []int{events[0].Year, events[1].Year, events[2].Year})
}

func TestStoreRoundTripsThroughFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")

	s, err := NewStore(path)
	require.NoError(t, err)

	event, err := s.CreateEvent(2026)
	require.NoError(t, err)
	require.NoError(t, s.SetChallengeCategories([]string{"sport", "culture"}))
	require.NoError(t, s.SetFileSystem("s3", "letax-media"))
	require.NoError(t, s.SetInfoText("welcome"))

	// A second store reading the same file sees everything.
	s2, err := NewStore(path)
	require.NoError(t, err)

	got, err := s2.EventByID(event.ID)
	require.NoError(t, err)
	assert.Equal(t, 2026, got.Year)
	assert.Equal(t, []string{"sport", "culture"}, s2.ChallengeCategories())
	assert.Equal(t, "welcome", s2.InfoText())

	kind, bucket := s2.FileSystem()
	assert.Equal(t, "s3", kind)
	assert.Equal(t, "letax-media", bucket)
}

func TestSetFileSystemRejectsUnknownKind(t *testing.T) {
	s := newStore(t)
	assert.Error(t, s.SetFileSystem("nfs", ""))
}
