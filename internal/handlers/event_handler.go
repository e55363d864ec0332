package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/kasnerz/letax/internal/middleware"
	"github.com/kasnerz/letax/internal/settings"
	"github.com/kasnerz/letax/internal/utils"
)

type CreateEventRequest struct {
	Year int `json:"year" validate:"required,min=2000,max=2100"`
}

// ListEvents returns the known competition years. Drafts are only visible
// to admins.
func (h *Handler) ListEvents(c *fiber.Ctx) error {
	events := h.eventSvc.List(middleware.IsAdmin(c))
	return utils.Success(c, events, "Events retrieved successfully")
}

// GetDefaultEvent returns the event shown without an explicit selection.
func (h *Handler) GetDefaultEvent(c *fiber.Ctx) error {
	event, err := h.eventSvc.Default()
	if err != nil {
		return utils.Error(c, "No event is configured", fiber.StatusNotFound)
	}
	return utils.Success(c, event, "Event retrieved successfully")
}

func (h *Handler) CreateEvent(c *fiber.Ctx) error {
	var req CreateEventRequest
	if err := middleware.ValidateBody(&req)(c); err != nil {
		return err
	}

	event, err := h.eventSvc.Create(req.Year)
	if err != nil {
		return utils.Error(c, err.Error(), fiber.StatusBadRequest)
	}
	return utils.Success(c, event, "Event created successfully", fiber.StatusCreated)
}

// UpdateEvent overwrites an event's metadata and lifecycle status.
func (h *Handler) UpdateEvent(c *fiber.Ctx) error {
	var event settings.Event
	if err := c.BodyParser(&event); err != nil {
		return utils.Error(c, "Invalid request body", fiber.StatusBadRequest)
	}
	event.ID = c.Params("id")

	if err := h.eventSvc.Update(event); err != nil {
		return utils.Error(c, err.Error(), fiber.StatusBadRequest)
	}
	return utils.Success(c, event, "Event updated successfully")
}
