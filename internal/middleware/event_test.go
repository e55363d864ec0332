package middleware

import (
	"io"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasnerz/letax/internal/models"
	"github.com/kasnerz/letax/internal/settings"
)

// newEventApp wires ResolveEvent in front of a handler that echoes the
// resolved event id. asAdmin plants the role local the JWT middleware would
// normally set.
func newEventApp(t *testing.T, asAdmin bool) (*fiber.App, *settings.Store) {
	t.Helper()
	store, err := settings.NewStore(filepath.Join(t.TempDir(), "settings.yaml"))
	require.NoError(t, err)

	app := fiber.New()
	if asAdmin {
		app.Use(func(c *fiber.Ctx) error {
			c.Locals("user_role", models.RoleAdmin)
			return c.Next()
		})
	}
	app.Get("/feed", ResolveEvent(store), func(c *fiber.Ctx) error {
		event, err := GetEventFromContext(c)
		if err != nil {
			return err
		}
		return c.SendString(event.ID)
	})
	return app, store
}

func TestResolveEventByQueryAndDefault(t *testing.T) {
	app, store := newEventApp(t, false)
	event, err := store.CreateEvent(2026)
	require.NoError(t, err)
	event.Status = models.EventOngoing
	event.Active = true
	require.NoError(t, store.UpdateEvent(*event))

	resp, err := app.Test(httptest.NewRequest("GET", "/feed", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, event.ID, string(body))

	resp, err = app.Test(httptest.NewRequest("GET", "/feed?event_id="+event.ID, nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/feed?event_id=unknown", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestResolveEventHidesDraftsFromNonAdmins(t *testing.T) {
	app, store := newEventApp(t, false)
	draft, err := store.CreateEvent(2027)
	require.NoError(t, err)

	// same 404 as an unknown id, the draft's existence stays private
	resp, err := app.Test(httptest.NewRequest("GET", "/feed?event_id="+draft.ID, nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestResolveEventServesDraftsToAdmins(t *testing.T) {
	app, store := newEventApp(t, true)
	draft, err := store.CreateEvent(2027)
	require.NoError(t, err)

	resp, err := app.Test(httptest.NewRequest("GET", "/feed?event_id="+draft.ID, nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, draft.ID, string(body))
}
