package services

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasnerz/letax/internal/media"
	"github.com/kasnerz/letax/internal/models"
	"github.com/kasnerz/letax/internal/storage"
)

func TestExportSite(t *testing.T) {
	env := newTestEnv(t)
	env.addChallenge(t, "Swim in a lake", 10)
	pax := env.addParticipant(t, "Alice", "alice@example.com")
	env.addTeam(t, "Busy Bees", pax.ID)

	storageRoot := t.TempDir()
	postSvc := NewPostService(env.repos, env.settings, storage.NewLocal(storageRoot), media.NewProcessor(""), env.scoring)
	post, err := postSvc.Submit(context.Background(), env.eventID, pax.ID, SubmitPostRequest{
		ActionType: models.ActionChallenge,
		ActionName: "Swim in a lake",
		Comment:    "so cold",
	}, []media.Upload{jpegUpload(t, 800, 600)})
	require.NoError(t, err)

	exportDir := t.TempDir()
	svc := NewExportService(exportDir, env.repos, env.settings, env.scoring, storage.NewLocal(storageRoot))

	zipPath, err := svc.ExportSite(context.Background(), env.eventID, "https://letax.example.com")
	require.NoError(t, err)
	assert.FileExists(t, zipPath)

	siteDir := filepath.Join(exportDir, env.eventID)
	assert.FileExists(t, filepath.Join(siteDir, "index.html"))

	teamDir := filepath.Join(siteDir, "teams", "busy-bees")
	assert.FileExists(t, filepath.Join(teamDir, "qr.png"))
	assert.FileExists(t, filepath.Join(teamDir, "files", filepath.Base(post.Files[0].Path)))

	index, err := os.ReadFile(filepath.Join(siteDir, "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(index), "Busy Bees")
	assert.Contains(t, string(index), `teams/busy-bees/`)

	// The team page carries the post title and date in stable markup.
	page, err := os.ReadFile(filepath.Join(teamDir, "index.html"))
	require.NoError(t, err)
	title := regexp.MustCompile(`class="card-title post-title">([^<]+)<`).FindSubmatch(page)
	require.NotNil(t, title)
	assert.Equal(t, "Swim in a lake", string(title[1]))
	date := regexp.MustCompile(`post-date">(\d{4}-\d{2}-\d{2} \d{2}:\d{2})<`).FindSubmatch(page)
	assert.NotNil(t, date)
	assert.Contains(t, string(page), "so cold")

	// The archive contains the whole site.
	r, err := zip.OpenReader(zipPath)
	require.NoError(t, err)
	defer r.Close()
	names := map[string]bool{}
	for _, f := range r.File {
		names[f.Name] = true
	}
	assert.True(t, names["index.html"])
	assert.True(t, names["teams/busy-bees/index.html"])
}

func TestExportSiteWithoutBaseURLSkipsQR(t *testing.T) {
	env := newTestEnv(t)
	pax := env.addParticipant(t, "Alice", "alice@example.com")
	env.addTeam(t, "Busy", pax.ID)

	exportDir := t.TempDir()
	svc := NewExportService(exportDir, env.repos, env.settings, env.scoring, storage.NewLocal(t.TempDir()))

	_, err := svc.ExportSite(context.Background(), env.eventID, "")
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(exportDir, env.eventID, "teams", "busy", "qr.png"))
}

func TestExportSiteSkipsMissingMedia(t *testing.T) {
	env := newTestEnv(t)
	pax := env.addParticipant(t, "Alice", "alice@example.com")
	team := env.addTeam(t, "Busy", pax.ID)

	// A post whose file was never stored must not break the export.
	post := env.addPost(t, team, pax.ID, models.ActionStory, "lost media")
	require.NoError(t, env.repo(t).DB.Create(&models.PostFile{
		PostID: post.PostID,
		Path:   "files/nope/gone.jpg",
		MIME:   "image/jpeg",
	}).Error)

	exportDir := t.TempDir()
	svc := NewExportService(exportDir, env.repos, env.settings, env.scoring, storage.NewLocal(t.TempDir()))

	_, err := svc.ExportSite(context.Background(), env.eventID, "")
	require.NoError(t, err)
}

func TestUploadFTPRequiresExportedSite(t *testing.T) {
	env := newTestEnv(t)
	svc := NewExportService(t.TempDir(), env.repos, env.settings, env.scoring, storage.NewLocal(t.TempDir()))

	err := svc.UploadFTP(context.Background(), env.eventID, "127.0.0.1:21", "u", "p", "/")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run the export first")
}
