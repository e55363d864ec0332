package services

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasnerz/letax/internal/models"
	"github.com/kasnerz/letax/internal/settings"
)

func TestEventListHidesDrafts(t *testing.T) {
	env := newTestEnv(t)
	svc := NewEventService(env.settings, env.repos, env.scoring)

	_, err := env.settings.CreateEvent(2027)
	require.NoError(t, err)

	public := svc.List(false)
	require.Len(t, public, 1)
	assert.Equal(t, env.eventID, public[0].ID)

	admin := svc.List(true)
	assert.Len(t, admin, 2)
}

func TestEventCreateProvisionsDatabase(t *testing.T) {
	env := newTestEnv(t)
	svc := NewEventService(env.settings, env.repos, env.scoring)

	event, err := svc.Create(2027)
	require.NoError(t, err)
	assert.Equal(t, models.EventDraft, event.Status)

	_, err = os.Stat(filepath.Join(env.dataDir, "db", event.ID, "database.db"))
	assert.NoError(t, err)
}

func TestEventUpdateRefusesSecondActive(t *testing.T) {
	env := newTestEnv(t)
	svc := NewEventService(env.settings, env.repos, env.scoring)

	event, err := svc.Create(2027)
	require.NoError(t, err)
	event.Status = models.EventOngoing
	event.Active = true
	assert.ErrorIs(t, svc.Update(*event), settings.ErrActiveEventExists)
}

func TestEventDefault(t *testing.T) {
	env := newTestEnv(t)
	svc := NewEventService(env.settings, env.repos, env.scoring)

	def, err := svc.Default()
	require.NoError(t, err)
	assert.Equal(t, env.eventID, def.ID)
}
