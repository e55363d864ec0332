package services

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasnerz/letax/internal/accounts"
	"github.com/kasnerz/letax/internal/mailer"
	"github.com/kasnerz/letax/internal/media"
	"github.com/kasnerz/letax/internal/models"
	"github.com/kasnerz/letax/internal/storage"
)

const testJWTSecret = "test-secret"

func newAuthService(t *testing.T, env *testEnv) (*AuthService, *accounts.Manager) {
	t.Helper()
	acc, err := accounts.NewManager(filepath.Join(env.dataDir, "accounts.yaml"))
	require.NoError(t, err)

	svc := NewAuthService(acc, env.repos, env.settings,
		mailer.New("", 0, "", ""),
		storage.NewLocal(t.TempDir()), media.NewProcessor(""), testJWTSecret)
	return svc, acc
}

func TestRegisterRequiresParticipantEmail(t *testing.T) {
	env := newTestEnv(t)
	svc, _ := newAuthService(t, env)
	env.addParticipant(t, "Alice", "alice@example.com")

	// Unknown e-mail is refused.
	_, err := svc.Register(RegisterRequest{
		Username: "stranger", Email: "stranger@example.com", Name: "S", Password: "secret1",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not registered")

	// Participant e-mail gets a user account, case-insensitive.
	acc, err := svc.Register(RegisterRequest{
		Username: "alice", Email: "Alice@Example.com", Name: "Alice", Password: "secret1",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, acc.Role)
}

func TestRegisterPreauthorizedEmailSetsRole(t *testing.T) {
	env := newTestEnv(t)
	svc, acc := newAuthService(t, env)
	require.NoError(t, acc.AddPreauthorized("crew@example.com", models.RoleAdmin))

	created, err := svc.Register(RegisterRequest{
		Username: "crew", Email: "crew@example.com", Name: "Crew", Password: "secret1",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, created.Role)
}

func TestLoginIssuesVerifiableToken(t *testing.T) {
	env := newTestEnv(t)
	svc, _ := newAuthService(t, env)
	env.addParticipant(t, "Alice", "alice@example.com")

	_, err := svc.Register(RegisterRequest{
		Username: "alice", Email: "alice@example.com", Name: "Alice", Password: "secret1",
	})
	require.NoError(t, err)

	signed, acc, err := svc.Login(LoginRequest{Login: "alice", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "alice", acc.Username)

	token, err := jwt.Parse(signed, func(*jwt.Token) (interface{}, error) {
		return []byte(testJWTSecret), nil
	})
	require.NoError(t, err)
	claims := token.Claims.(jwt.MapClaims)
	assert.Equal(t, "alice", claims["username"])
	assert.Equal(t, "alice@example.com", claims["email"])
	assert.Equal(t, models.RoleUser, claims["role"])

	_, _, err = svc.Login(LoginRequest{Login: "alice", Password: "wrong"})
	assert.ErrorIs(t, err, accounts.ErrInvalidCredentials)
}

func TestResetPasswordIgnoresUnknownEmail(t *testing.T) {
	env := newTestEnv(t)
	svc, _ := newAuthService(t, env)

	// The response must not reveal whether the address exists.
	assert.NoError(t, svc.ResetPassword("nobody@example.com"))
}

func TestChangePasswordVerifiesCurrent(t *testing.T) {
	env := newTestEnv(t)
	svc, acc := newAuthService(t, env)
	_, err := acc.Add("alice", "alice@example.com", "Alice", "old-pass", models.RoleUser)
	require.NoError(t, err)

	require.Error(t, svc.ChangePassword("alice", "wrong", "new-pass"))
	require.NoError(t, svc.ChangePassword("alice", "old-pass", "new-pass"))

	_, err = acc.Authenticate("alice", "new-pass")
	assert.NoError(t, err)
}

func TestProfileCombinesAccountParticipantAndTeam(t *testing.T) {
	env := newTestEnv(t)
	svc, acc := newAuthService(t, env)
	pax := env.addParticipant(t, "Alice", "alice@example.com")
	team := env.addTeam(t, "Busy", pax.ID)
	_, err := acc.Add("alice", "alice@example.com", "Alice", "pw", models.RoleUser)
	require.NoError(t, err)

	profile, err := svc.Profile(env.eventID, "alice")
	require.NoError(t, err)
	assert.Empty(t, profile.Account.Password)
	require.NotNil(t, profile.Participant)
	assert.Equal(t, pax.ID, profile.Participant.ID)
	require.NotNil(t, profile.Team)
	assert.Equal(t, team.TeamID, profile.Team.TeamID)
}

func TestProfileForCrewWithoutParticipant(t *testing.T) {
	env := newTestEnv(t)
	svc, acc := newAuthService(t, env)
	_, err := acc.Add("crew", "crew@example.com", "Crew", "pw", models.RoleAdmin)
	require.NoError(t, err)

	profile, err := svc.Profile(env.eventID, "crew")
	require.NoError(t, err)
	assert.Nil(t, profile.Participant)
	assert.Nil(t, profile.Team)
}

func TestUpdateProfile(t *testing.T) {
	env := newTestEnv(t)
	svc, acc := newAuthService(t, env)
	env.addParticipant(t, "Alice", "alice@example.com")
	_, err := acc.Add("alice", "alice@example.com", "Alice", "pw", models.RoleUser)
	require.NoError(t, err)

	photo := jpegUpload(t, 300, 300)
	pax, err := svc.UpdateProfile(context.Background(), env.eventID, "alice", false, UpdateProfileRequest{
		Bio:              "hiker",
		EmergencyContact: "+420 777 000 000",
	}, &photo)
	require.NoError(t, err)
	assert.Equal(t, "hiker", pax.Bio)
	assert.NotEmpty(t, pax.Photo)

	got, err := svc.Participant(env.eventID, "alice")
	require.NoError(t, err)
	assert.Equal(t, "+420 777 000 000", got.EmergencyContact)
}

func TestUpdateProfileFrozenAfterEvent(t *testing.T) {
	env := newTestEnv(t)
	svc, acc := newAuthService(t, env)
	env.addParticipant(t, "Alice", "alice@example.com")
	_, err := acc.Add("alice", "alice@example.com", "Alice", "pw", models.RoleUser)
	require.NoError(t, err)
	env.setEventStatus(t, models.EventPast)

	_, err = svc.UpdateProfile(context.Background(), env.eventID, "alice", false, UpdateProfileRequest{Bio: "late"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "over")

	// admins may still correct profiles after the fact
	pax, err := svc.UpdateProfile(context.Background(), env.eventID, "alice", true, UpdateProfileRequest{Bio: "fixed"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "fixed", pax.Bio)
}
