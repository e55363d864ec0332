package services

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kasnerz/letax/internal/cache"
	"github.com/kasnerz/letax/internal/media"
	"github.com/kasnerz/letax/internal/models"
	"github.com/kasnerz/letax/internal/repositories"
	"github.com/kasnerz/letax/internal/settings"
	"github.com/kasnerz/letax/internal/utils"
	"github.com/kasnerz/letax/pkg/database"
)

// testEnv is the common service test fixture: one ongoing event backed by a
// database file in a temp dir.
type testEnv struct {
	repos    *repositories.Manager
	settings *settings.Store
	cache    *cache.TTL
	scoring  *ScoringService
	eventID  string
	dataDir  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dataDir := t.TempDir()

	st, err := settings.NewStore(filepath.Join(dataDir, "settings.yaml"))
	require.NoError(t, err)

	event, err := st.CreateEvent(2026)
	require.NoError(t, err)
	event.Status = models.EventOngoing
	event.Active = true
	require.NoError(t, st.UpdateEvent(*event))

	repos := repositories.NewManager(database.NewRegistry(dataDir))
	t.Cleanup(func() { repos.Reset() })

	c, err := cache.New(64, time.Minute)
	require.NoError(t, err)

	return &testEnv{
		repos:    repos,
		settings: st,
		cache:    c,
		scoring:  NewScoringService(repos, c),
		eventID:  event.ID,
		dataDir:  dataDir,
	}
}

func (e *testEnv) repo(t *testing.T) *repositories.Repository {
	t.Helper()
	repo, err := e.repos.ForEvent(e.eventID)
	require.NoError(t, err)
	return repo
}

func (e *testEnv) setEventStatus(t *testing.T, status string) {
	t.Helper()
	event, err := e.settings.EventByID(e.eventID)
	require.NoError(t, err)
	event.Status = status
	require.NoError(t, e.settings.UpdateEvent(*event))
}

// addParticipant inserts a participant with a generated id.
func (e *testEnv) addParticipant(t *testing.T, name, email string) *models.Participant {
	t.Helper()
	pax := &models.Participant{ID: utils.GenerateID(), Email: email, NameWeb: name}
	require.NoError(t, e.repo(t).ParticipantRepo.Create(pax))
	return pax
}

// addTeam inserts a team with the given members.
func (e *testEnv) addTeam(t *testing.T, name string, members ...string) *models.Team {
	t.Helper()
	team := &models.Team{TeamID: utils.GenerateID(), Name: name, Visible: true}
	slots := []*string{&team.Member1, &team.Member2, &team.Member3}
	for i, m := range members {
		*slots[i] = m
	}
	require.NoError(t, e.repo(t).TeamRepo.Create(team))
	return team
}

func (e *testEnv) addChallenge(t *testing.T, name string, points int) {
	t.Helper()
	_, err := e.repo(t).CatalogRepo.UpsertChallenges([]models.Challenge{
		{Name: name, Description: "d", Category: "misc", Points: points},
	})
	require.NoError(t, err)
}

func (e *testEnv) addCheckpoint(t *testing.T, name string, points int) {
	t.Helper()
	_, err := e.repo(t).CatalogRepo.UpsertCheckpoints([]models.Checkpoint{
		{Name: name, Description: "d", Points: points},
	})
	require.NoError(t, err)
}

func (e *testEnv) addPost(t *testing.T, team *models.Team, paxID, actionType, actionName string) *models.Post {
	t.Helper()
	post := &models.Post{
		PostID:     utils.GenerateID(),
		PaxID:      paxID,
		TeamID:     team.TeamID,
		ActionType: actionType,
		ActionName: actionName,
		Created:    time.Now(),
	}
	require.NoError(t, e.repo(t).PostRepo.Create(post))
	e.scoring.Invalidate(e.eventID)
	return post
}

// jpegUpload renders a small solid-color JPEG for media pipeline tests.
func jpegUpload(t *testing.T, width, height int) media.Upload {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}

	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return media.Upload{
		Filename:    "photo.jpg",
		ContentType: "image/jpeg",
		Data:        buf.Bytes(),
	}
}
