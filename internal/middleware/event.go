package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/kasnerz/letax/internal/models"
	"github.com/kasnerz/letax/internal/settings"
	"github.com/kasnerz/letax/internal/utils"
)

// ResolveEvent picks the event a request targets: the event_id query
// parameter when present, the default event otherwise. Every event-scoped
// route sits behind this, so handlers never consult ambient state. Draft
// events resolve for admins only; everyone else gets the same 404 as for an
// unknown id.
func ResolveEvent(store *settings.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if id := c.Query("event_id"); id != "" {
			event, err := store.EventByID(id)
			if err != nil || (event.Status == models.EventDraft && !IsAdmin(c)) {
				return utils.Error(c, "Event not found", fiber.StatusNotFound)
			}
			c.Locals("event", event)
			return c.Next()
		}

		event, err := store.DefaultEvent()
		if err != nil {
			return utils.Error(c, "No event is configured", fiber.StatusNotFound)
		}
		if event.Status == models.EventDraft && !IsAdmin(c) {
			return utils.Error(c, "No event is configured", fiber.StatusNotFound)
		}
		c.Locals("event", event)
		return c.Next()
	}
}

// GetEventFromContext returns the event resolved by ResolveEvent.
func GetEventFromContext(c *fiber.Ctx) (*settings.Event, error) {
	event, ok := c.Locals("event").(*settings.Event)
	if !ok || event == nil {
		return nil, fiber.NewError(fiber.StatusInternalServerError, "Event not resolved")
	}
	return event, nil
}
