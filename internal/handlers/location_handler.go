package handlers

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/kasnerz/letax/internal/middleware"
	"github.com/kasnerz/letax/internal/services"
	"github.com/kasnerz/letax/internal/utils"
)

// ShareLiveLocation records a device-reported GPS fix for the caller's team.
func (h *Handler) ShareLiveLocation(c *fiber.Ctx) error {
	event, err := middleware.GetEventFromContext(c)
	if err != nil {
		return err
	}
	username, err := middleware.GetUsernameFromContext(c)
	if err != nil {
		return utils.Error(c, err.Error(), fiber.StatusUnauthorized)
	}

	var fix services.LiveFix
	if err := middleware.ValidateBody(&fix)(c); err != nil {
		return err
	}

	pax, err := h.authSvc.Participant(event.ID, username)
	if err != nil {
		return utils.Error(c, "You are not a participant of this event", fiber.StatusForbidden)
	}

	loc, err := h.locationSvc.ShareLive(c.Context(), event.ID, username, pax.ID, fix)
	if err != nil {
		return utils.Error(c, err.Error(), fiber.StatusBadRequest)
	}
	return utils.Success(c, loc, "Location shared successfully", fiber.StatusCreated)
}

// AddManualLocation records a user-entered position with a past timestamp.
func (h *Handler) AddManualLocation(c *fiber.Ctx) error {
	event, err := middleware.GetEventFromContext(c)
	if err != nil {
		return err
	}
	username, err := middleware.GetUsernameFromContext(c)
	if err != nil {
		return utils.Error(c, err.Error(), fiber.StatusUnauthorized)
	}

	var fix services.ManualFix
	if err := middleware.ValidateBody(&fix)(c); err != nil {
		return err
	}

	pax, err := h.authSvc.Participant(event.ID, username)
	if err != nil {
		return utils.Error(c, "You are not a participant of this event", fiber.StatusForbidden)
	}

	loc, err := h.locationSvc.AddManual(c.Context(), event.ID, username, pax.ID, fix)
	if err != nil {
		return utils.Error(c, err.Error(), fiber.StatusBadRequest)
	}
	return utils.Success(c, loc, "Location added successfully", fiber.StatusCreated)
}

// GetLastLocations returns each team's newest position at or before the "at"
// query parameter (RFC 3339, defaults to now). Hidden teams appear only for
// admins.
func (h *Handler) GetLastLocations(c *fiber.Ctx) error {
	event, err := middleware.GetEventFromContext(c)
	if err != nil {
		return err
	}

	at := time.Now()
	if raw := c.Query("at"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return utils.Error(c, "Invalid 'at' timestamp, use RFC 3339", fiber.StatusBadRequest)
		}
		at = parsed
	}

	locations, err := h.locationSvc.LastAll(event.ID, at, middleware.IsAdmin(c))
	if err != nil {
		return utils.Error(c, "Failed to load locations", fiber.StatusInternalServerError)
	}
	return utils.Success(c, locations, "Locations retrieved successfully")
}

func (h *Handler) GetLocationHistory(c *fiber.Ctx) error {
	event, err := middleware.GetEventFromContext(c)
	if err != nil {
		return err
	}

	history, err := h.locationSvc.History(event.ID, c.Params("team_id"))
	if err != nil {
		return utils.Error(c, "Failed to load location history", fiber.StatusInternalServerError)
	}
	return utils.Success(c, history, "Location history retrieved successfully")
}

func (h *Handler) DeleteLocation(c *fiber.Ctx) error {
	event, err := middleware.GetEventFromContext(c)
	if err != nil {
		return err
	}
	username, err := middleware.GetUsernameFromContext(c)
	if err != nil {
		return utils.Error(c, err.Error(), fiber.StatusUnauthorized)
	}

	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return utils.Error(c, "Invalid location id", fiber.StatusBadRequest)
	}

	callerPax := ""
	if pax, err := h.authSvc.Participant(event.ID, username); err == nil {
		callerPax = pax.ID
	}

	if err := h.locationSvc.Delete(event.ID, uint(id), callerPax, middleware.IsAdmin(c)); err != nil {
		return utils.Error(c, err.Error(), fiber.StatusForbidden)
	}
	return utils.Success(c, nil, "Location deleted successfully")
}

// ExportGPX streams a team's track as a GPX file.
func (h *Handler) ExportGPX(c *fiber.Ctx) error {
	event, err := middleware.GetEventFromContext(c)
	if err != nil {
		return err
	}

	gpx, err := h.locationSvc.GPX(event.ID, c.Params("id"))
	if err != nil {
		return utils.Error(c, "Team not found", fiber.StatusNotFound)
	}

	c.Set(fiber.HeaderContentType, "application/gpx+xml")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="track.gpx"`)
	return c.Send(gpx)
}
