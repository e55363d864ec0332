package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasnerz/letax/internal/models"
)

func TestLeaderboardTeamWithoutPostsScoresZero(t *testing.T) {
	env := newTestEnv(t)
	pax := env.addParticipant(t, "Alice", "alice@example.com")
	env.addTeam(t, "Idle", pax.ID)

	board, err := env.scoring.Leaderboard(env.eventID)
	require.NoError(t, err)
	require.Len(t, board, 1)
	assert.Equal(t, 0, board[0].Points)
	assert.Equal(t, 0, board[0].Challenges)
}

func TestLeaderboardSumsCatalogPointsPerPost(t *testing.T) {
	env := newTestEnv(t)
	env.addChallenge(t, "Swim in a lake", 10)
	env.addChallenge(t, "Climb a hill", 25)
	env.addCheckpoint(t, "Lookout tower", 5)

	p1 := env.addParticipant(t, "Alice", "alice@example.com")
	p2 := env.addParticipant(t, "Bob", "bob@example.com")
	busy := env.addTeam(t, "Busy", p1.ID)
	lazy := env.addTeam(t, "Lazy", p2.ID)

	env.addPost(t, busy, p1.ID, models.ActionChallenge, "Swim in a lake")
	env.addPost(t, busy, p1.ID, models.ActionChallenge, "Climb a hill")
	env.addPost(t, busy, p1.ID, models.ActionCheckpoint, "Lookout tower")
	env.addPost(t, lazy, p2.ID, models.ActionChallenge, "Swim in a lake")

	board, err := env.scoring.Leaderboard(env.eventID)
	require.NoError(t, err)
	require.Len(t, board, 2)

	// Sorted by points, highest first.
	assert.Equal(t, busy.TeamID, board[0].TeamID)
	assert.Equal(t, 40, board[0].Points)
	assert.Equal(t, 2, board[0].Challenges)
	assert.Equal(t, 1, board[0].Checkpoints)
	assert.Equal(t, lazy.TeamID, board[1].TeamID)
	assert.Equal(t, 10, board[1].Points)
}

func TestLeaderboardReflectsCatalogEdits(t *testing.T) {
	env := newTestEnv(t)
	env.addChallenge(t, "Swim in a lake", 10)

	pax := env.addParticipant(t, "Alice", "alice@example.com")
	team := env.addTeam(t, "Busy", pax.ID)
	env.addPost(t, team, pax.ID, models.ActionChallenge, "Swim in a lake")

	board, err := env.scoring.Leaderboard(env.eventID)
	require.NoError(t, err)
	require.Equal(t, 10, board[0].Points)

	// Changing catalog points changes already-submitted posts too.
	env.addChallenge(t, "Swim in a lake", 50)
	env.scoring.Invalidate(env.eventID)

	board, err = env.scoring.Leaderboard(env.eventID)
	require.NoError(t, err)
	assert.Equal(t, 50, board[0].Points)
}

func TestStoriesAndUnknownActionsScoreZero(t *testing.T) {
	env := newTestEnv(t)
	pax := env.addParticipant(t, "Alice", "alice@example.com")
	team := env.addTeam(t, "Busy", pax.ID)

	env.addPost(t, team, pax.ID, models.ActionStory, "Morning vibes")
	env.addPost(t, team, pax.ID, models.ActionChallenge, "No such challenge")

	board, err := env.scoring.Leaderboard(env.eventID)
	require.NoError(t, err)
	require.Len(t, board, 1)
	assert.Equal(t, 0, board[0].Points)
	assert.Equal(t, 1, board[0].Stories)
	assert.Equal(t, 1, board[0].Challenges)
}

func TestLeaderboardIsCachedUntilInvalidated(t *testing.T) {
	env := newTestEnv(t)
	env.addChallenge(t, "Swim in a lake", 10)
	env.addChallenge(t, "Climb a hill", 10)
	pax := env.addParticipant(t, "Alice", "alice@example.com")
	team := env.addTeam(t, "Busy", pax.ID)
	env.addPost(t, team, pax.ID, models.ActionChallenge, "Swim in a lake")

	board, err := env.scoring.Leaderboard(env.eventID)
	require.NoError(t, err)
	require.Equal(t, 10, board[0].Points)

	// A direct write without invalidation is not visible yet.
	require.NoError(t, env.repo(t).PostRepo.Create(&models.Post{
		PostID:     "p2",
		PaxID:      pax.ID,
		TeamID:     team.TeamID,
		ActionType: models.ActionChallenge,
		ActionName: "Climb a hill",
		Created:    time.Now(),
	}))

	board, err = env.scoring.Leaderboard(env.eventID)
	require.NoError(t, err)
	assert.Equal(t, 10, board[0].Points)

	env.scoring.Invalidate(env.eventID)
	board, err = env.scoring.Leaderboard(env.eventID)
	require.NoError(t, err)
	assert.Equal(t, 20, board[0].Points)
}

func TestTopTeamsPrefersAwardedTeams(t *testing.T) {
	env := newTestEnv(t)
	env.addChallenge(t, "Swim in a lake", 10)

	p1 := env.addParticipant(t, "Alice", "alice@example.com")
	p2 := env.addParticipant(t, "Bob", "bob@example.com")
	leader := env.addTeam(t, "Leader", p1.ID)
	winner := env.addTeam(t, "Winner", p2.ID)

	env.addPost(t, leader, p1.ID, models.ActionChallenge, "Swim in a lake")

	// No awards yet: falls back to the point leaders.
	top, err := env.scoring.TopTeams(env.eventID, 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, leader.TeamID, top[0].TeamID)

	require.NoError(t, env.repo(t).TeamRepo.SetAward(winner.TeamID, "1st place"))
	env.scoring.Invalidate(env.eventID)

	top, err = env.scoring.TopTeams(env.eventID, 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, winner.TeamID, top[0].TeamID)
	assert.Equal(t, "1st place", top[0].Award)
}

func TestTopTeamsClampsRequestedCount(t *testing.T) {
	env := newTestEnv(t)
	p1 := env.addParticipant(t, "Alice", "alice@example.com")
	env.addTeam(t, "Only", p1.ID)

	top, err := env.scoring.TopTeams(env.eventID, -1)
	require.NoError(t, err)
	assert.Empty(t, top)

	top, err = env.scoring.TopTeams(env.eventID, 10)
	require.NoError(t, err)
	assert.Len(t, top, 1)
}

func TestTeamOverviewUnknownTeam(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.scoring.TeamOverview(env.eventID, "missing")
	assert.Error(t, err)
}
