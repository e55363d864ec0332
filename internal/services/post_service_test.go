package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasnerz/letax/internal/media"
	"github.com/kasnerz/letax/internal/models"
	"github.com/kasnerz/letax/internal/repositories"
	"github.com/kasnerz/letax/internal/storage"
	"github.com/kasnerz/letax/internal/utils"
)

func newPostService(t *testing.T, env *testEnv) (*PostService, string) {
	t.Helper()
	root := t.TempDir()
	svc := NewPostService(env.repos, env.settings, storage.NewLocal(root), media.NewProcessor(""), env.scoring)
	return svc, root
}

func TestSubmitChallengePost(t *testing.T) {
	env := newTestEnv(t)
	env.addChallenge(t, "Swim in a lake", 10)
	pax := env.addParticipant(t, "Alice", "alice@example.com")
	env.addTeam(t, "Busy", pax.ID)
	svc, root := newPostService(t, env)

	post, err := svc.Submit(context.Background(), env.eventID, pax.ID, SubmitPostRequest{
		ActionType: models.ActionChallenge,
		ActionName: "Swim in a lake",
		Comment:    "so cold",
	}, []media.Upload{jpegUpload(t, 1200, 800)})
	require.NoError(t, err)
	require.Len(t, post.Files, 1)
	assert.Equal(t, "so cold", post.Comment)

	// Original plus the thumbnail pyramid end up under the storage root.
	_, err = os.Stat(filepath.Join(root, post.Files[0].Path))
	assert.NoError(t, err)
	for _, suffix := range media.ThumbnailSuffixes() {
		_, err = os.Stat(filepath.Join(root, media.ThumbnailPath(post.Files[0].Path, suffix)))
		assert.NoError(t, err, "missing thumbnail %s", suffix)
	}

	// The challenge now counts towards the team score.
	board, err := env.scoring.Leaderboard(env.eventID)
	require.NoError(t, err)
	assert.Equal(t, 10, board[0].Points)
}

func TestSubmitRejectsDuplicateChallenge(t *testing.T) {
	env := newTestEnv(t)
	env.addChallenge(t, "Swim in a lake", 10)
	pax := env.addParticipant(t, "Alice", "alice@example.com")
	env.addTeam(t, "Busy", pax.ID)
	svc, _ := newPostService(t, env)

	req := SubmitPostRequest{ActionType: models.ActionChallenge, ActionName: "Swim in a lake"}
	_, err := svc.Submit(context.Background(), env.eventID, pax.ID, req, []media.Upload{jpegUpload(t, 400, 300)})
	require.NoError(t, err)

	_, err = svc.Submit(context.Background(), env.eventID, pax.ID, req, []media.Upload{jpegUpload(t, 400, 300)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already completed")
}

func TestSubmitAllowsRepeatedStories(t *testing.T) {
	env := newTestEnv(t)
	pax := env.addParticipant(t, "Alice", "alice@example.com")
	env.addTeam(t, "Busy", pax.ID)
	svc, _ := newPostService(t, env)

	req := SubmitPostRequest{ActionType: models.ActionStory, ActionName: "Morning vibes"}
	for i := 0; i < 2; i++ {
		_, err := svc.Submit(context.Background(), env.eventID, pax.ID, req, []media.Upload{jpegUpload(t, 400, 300)})
		require.NoError(t, err)
	}
}

func TestSubmitRequiresOngoingEvent(t *testing.T) {
	env := newTestEnv(t)
	pax := env.addParticipant(t, "Alice", "alice@example.com")
	env.addTeam(t, "Busy", pax.ID)
	svc, _ := newPostService(t, env)

	env.setEventStatus(t, models.EventPast)
	_, err := svc.Submit(context.Background(), env.eventID, pax.ID,
		SubmitPostRequest{ActionType: models.ActionStory, ActionName: "too late"},
		[]media.Upload{jpegUpload(t, 400, 300)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not ongoing")
}

func TestSubmitRequiresTeamAndFiles(t *testing.T) {
	env := newTestEnv(t)
	pax := env.addParticipant(t, "Alice", "alice@example.com")
	svc, _ := newPostService(t, env)

	req := SubmitPostRequest{ActionType: models.ActionStory, ActionName: "solo"}
	_, err := svc.Submit(context.Background(), env.eventID, pax.ID, req, []media.Upload{jpegUpload(t, 400, 300)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "team")

	env.addTeam(t, "Busy", pax.ID)
	_, err = svc.Submit(context.Background(), env.eventID, pax.ID, req, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one")
}

func TestSubmitRejectsUnknownChallenge(t *testing.T) {
	env := newTestEnv(t)
	pax := env.addParticipant(t, "Alice", "alice@example.com")
	env.addTeam(t, "Busy", pax.ID)
	svc, _ := newPostService(t, env)

	_, err := svc.Submit(context.Background(), env.eventID, pax.ID,
		SubmitPostRequest{ActionType: models.ActionChallenge, ActionName: "Fly to the moon"},
		[]media.Upload{jpegUpload(t, 400, 300)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown challenge")
}

func TestDeletePostReopensAction(t *testing.T) {
	env := newTestEnv(t)
	env.addChallenge(t, "Swim in a lake", 10)
	pax := env.addParticipant(t, "Alice", "alice@example.com")
	env.addTeam(t, "Busy", pax.ID)
	svc, root := newPostService(t, env)

	req := SubmitPostRequest{ActionType: models.ActionChallenge, ActionName: "Swim in a lake"}
	post, err := svc.Submit(context.Background(), env.eventID, pax.ID, req, []media.Upload{jpegUpload(t, 400, 300)})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), env.eventID, post.PostID, pax.ID, false))

	_, err = os.Stat(filepath.Join(root, post.Files[0].Path))
	assert.True(t, os.IsNotExist(err))

	// The team may complete the challenge again.
	_, err = svc.Submit(context.Background(), env.eventID, pax.ID, req, []media.Upload{jpegUpload(t, 400, 300)})
	assert.NoError(t, err)
}

func TestDeletePostRequiresAuthorOrAdmin(t *testing.T) {
	env := newTestEnv(t)
	author := env.addParticipant(t, "Alice", "alice@example.com")
	other := env.addParticipant(t, "Bob", "bob@example.com")
	env.addTeam(t, "Busy", author.ID)
	env.addTeam(t, "Other", other.ID)
	svc, _ := newPostService(t, env)

	post, err := svc.Submit(context.Background(), env.eventID, author.ID,
		SubmitPostRequest{ActionType: models.ActionStory, ActionName: "mine"},
		[]media.Upload{jpegUpload(t, 400, 300)})
	require.NoError(t, err)

	err = svc.Delete(context.Background(), env.eventID, post.PostID, other.ID, false)
	require.Error(t, err)

	// Admins may remove anyone's post.
	assert.NoError(t, svc.Delete(context.Background(), env.eventID, post.PostID, other.ID, true))
}

func TestUpdateCommentRequiresAuthorOrAdmin(t *testing.T) {
	env := newTestEnv(t)
	author := env.addParticipant(t, "Alice", "alice@example.com")
	other := env.addParticipant(t, "Bob", "bob@example.com")
	env.addTeam(t, "Busy", author.ID)
	svc, _ := newPostService(t, env)

	post, err := svc.Submit(context.Background(), env.eventID, author.ID,
		SubmitPostRequest{ActionType: models.ActionStory, ActionName: "mine"},
		[]media.Upload{jpegUpload(t, 400, 300)})
	require.NoError(t, err)

	require.Error(t, svc.UpdateComment(env.eventID, post.PostID, other.ID, false, "nope"))
	require.NoError(t, svc.UpdateComment(env.eventID, post.PostID, author.ID, false, "edited"))

	got, err := svc.ByID(env.eventID, post.PostID)
	require.NoError(t, err)
	assert.Equal(t, "edited", got.Comment)
}

func TestFeedFiltersAndPaginates(t *testing.T) {
	env := newTestEnv(t)
	env.addChallenge(t, "Swim in a lake", 10)
	pax := env.addParticipant(t, "Alice", "alice@example.com")
	team := env.addTeam(t, "Busy", pax.ID)
	svc, _ := newPostService(t, env)

	_, err := svc.Submit(context.Background(), env.eventID, pax.ID,
		SubmitPostRequest{ActionType: models.ActionChallenge, ActionName: "Swim in a lake"},
		[]media.Upload{jpegUpload(t, 400, 300)})
	require.NoError(t, err)
	_, err = svc.Submit(context.Background(), env.eventID, pax.ID,
		SubmitPostRequest{ActionType: models.ActionStory, ActionName: "Morning vibes"},
		[]media.Upload{jpegUpload(t, 400, 300)})
	require.NoError(t, err)

	posts, total, err := svc.Feed(env.eventID, repositories.PostFilters{}, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, posts, 2)

	posts, total, err = svc.Feed(env.eventID, repositories.PostFilters{
		TeamID:     team.TeamID,
		ActionType: models.ActionStory,
	}, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, posts, 1)
	assert.Equal(t, "Morning vibes", posts[0].ActionName)
}

func TestDuplicateActionPostRejectedByDatabase(t *testing.T) {
	env := newTestEnv(t)
	pax := env.addParticipant(t, "Alice", "alice@example.com")
	team := env.addTeam(t, "Busy", pax.ID)

	// even a write bypassing the service trips the unique index
	env.addPost(t, team, pax.ID, models.ActionChallenge, "Swim in a lake")
	err := env.repo(t).PostRepo.Create(&models.Post{
		PostID:     utils.GenerateID(),
		PaxID:      pax.ID,
		TeamID:     team.TeamID,
		ActionType: models.ActionChallenge,
		ActionName: "Swim in a lake",
		Created:    time.Now(),
	})
	require.Error(t, err)

	// stories with the same name stay repeatable
	env.addPost(t, team, pax.ID, models.ActionStory, "Morning vibes")
	env.addPost(t, team, pax.ID, models.ActionStory, "Morning vibes")
}

func TestFeedFirstPageStartsAtNewestPost(t *testing.T) {
	env := newTestEnv(t)
	pax := env.addParticipant(t, "Alice", "alice@example.com")
	team := env.addTeam(t, "Busy", pax.ID)
	svc, _ := newPostService(t, env)

	// 12 stories spread over distinct timestamps, one more than a full page.
	base := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	for i := 1; i <= 12; i++ {
		require.NoError(t, env.repo(t).PostRepo.Create(&models.Post{
			PostID:     utils.GenerateID(),
			PaxID:      pax.ID,
			TeamID:     team.TeamID,
			ActionType: models.ActionStory,
			ActionName: fmt.Sprintf("Story %02d", i),
			Created:    base.Add(time.Duration(i) * time.Minute),
		}))
	}

	posts, total, err := svc.Feed(env.eventID, repositories.PostFilters{}, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 12, total)
	require.Len(t, posts, 10)
	assert.Equal(t, "Story 12", posts[0].ActionName)
	assert.Equal(t, "Story 03", posts[9].ActionName)

	posts, _, err = svc.Feed(env.eventID, repositories.PostFilters{}, 2)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, "Story 02", posts[0].ActionName)
	assert.Equal(t, "Story 01", posts[1].ActionName)

	// out-of-range page numbers are clamped to the first page
	posts, _, err = svc.Feed(env.eventID, repositories.PostFilters{}, 0)
	require.NoError(t, err)
	require.Len(t, posts, 10)
	assert.Equal(t, "Story 12", posts[0].ActionName)
}

func TestAvailableCheckpointsCarryBonusChallenge(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.repo(t).CatalogRepo.UpsertCheckpoints([]models.Checkpoint{
		{Name: "Lookout tower", Description: "d", Points: 10,
			Challenge: "Climb the stairs twice", ChallengePoints: 5},
	})
	require.NoError(t, err)
	pax := env.addParticipant(t, "Alice", "alice@example.com")
	env.addTeam(t, "Busy", pax.ID)
	svc, _ := newPostService(t, env)

	actions, err := svc.AvailableActions(env.eventID, pax.ID, models.ActionCheckpoint)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, 10, actions[0].Points)
	assert.Equal(t, "Climb the stairs twice", actions[0].Challenge)
	assert.Equal(t, 5, actions[0].ChallengePoints)
}

func TestAvailableActionsMarksCompleted(t *testing.T) {
	env := newTestEnv(t)
	env.addChallenge(t, "Swim in a lake", 10)
	env.addChallenge(t, "Climb a hill", 25)
	pax := env.addParticipant(t, "Alice", "alice@example.com")
	env.addTeam(t, "Busy", pax.ID)
	svc, _ := newPostService(t, env)

	_, err := svc.Submit(context.Background(), env.eventID, pax.ID,
		SubmitPostRequest{ActionType: models.ActionChallenge, ActionName: "Swim in a lake"},
		[]media.Upload{jpegUpload(t, 400, 300)})
	require.NoError(t, err)

	actions, err := svc.AvailableActions(env.eventID, pax.ID, models.ActionChallenge)
	require.NoError(t, err)
	require.Len(t, actions, 2)

	byName := map[string]bool{}
	for _, a := range actions {
		byName[a.Name] = a.Completed
	}
	assert.True(t, byName["Swim in a lake"])
	assert.False(t, byName["Climb a hill"])
}
