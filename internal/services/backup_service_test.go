package services

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasnerz/letax/internal/accounts"
	"github.com/kasnerz/letax/internal/models"
)

func newBackupService(t *testing.T, env *testEnv) *BackupService {
	t.Helper()
	acc, err := accounts.NewManager(filepath.Join(env.dataDir, "accounts.yaml"))
	require.NoError(t, err)
	return NewBackupService(env.dataDir, filepath.Join(t.TempDir(), "backups"),
		env.repos, env.settings, acc, env.cache)
}

func TestBackupRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	svc := newBackupService(t, env)
	pax := env.addParticipant(t, "Alice", "alice@example.com")
	env.addTeam(t, "Busy", pax.ID)
	env.addChallenge(t, "Swim in a lake", 10)

	name, err := svc.Create()
	require.NoError(t, err)
	assert.Regexp(t, `^db_\d{4}-\d{2}-\d{2}_\d{2}-\d{2}-\d{2}\.zip$`, name)

	list, err := svc.List()
	require.NoError(t, err)
	assert.Equal(t, []string{name}, list)

	// Mutate the state after the snapshot.
	env.addParticipant(t, "Bob", "bob@example.com")
	require.NoError(t, env.repo(t).CatalogRepo.DeleteChallenge("Swim in a lake"))

	require.NoError(t, svc.Restore(name))

	paxes, err := env.repo(t).ParticipantRepo.List()
	require.NoError(t, err)
	require.Len(t, paxes, 1, "records created after the backup are gone")
	assert.Equal(t, "alice@example.com", paxes[0].Email)

	challenges, err := env.repo(t).CatalogRepo.Challenges()
	require.NoError(t, err)
	require.Len(t, challenges, 1)
	assert.Equal(t, "Swim in a lake", challenges[0].Name)
}

func TestRestoreReloadsFlatFileStores(t *testing.T) {
	env := newTestEnv(t)
	svc := newBackupService(t, env)

	name, err := svc.Create()
	require.NoError(t, err)

	// A settings change after the snapshot is rolled back by the restore.
	require.NoError(t, env.settings.SetInfoText("added later"))
	require.NoError(t, svc.Restore(name))
	assert.Empty(t, env.settings.InfoText())

	event, err := env.settings.EventByID(env.eventID)
	require.NoError(t, err)
	assert.Equal(t, models.EventOngoing, event.Status)
}

func TestRestoreRejectsPathTraversal(t *testing.T) {
	env := newTestEnv(t)
	svc := newBackupService(t, env)

	assert.Error(t, svc.Restore("../outside.zip"))
	assert.Error(t, svc.Restore("missing.zip"))
}

func TestListWithoutBackups(t *testing.T) {
	env := newTestEnv(t)
	svc := newBackupService(t, env)

	list, err := svc.List()
	require.NoError(t, err)
	assert.Empty(t, list)
}
