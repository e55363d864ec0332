package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/kasnerz/letax/internal/middleware"
	"github.com/kasnerz/letax/internal/services"
	"github.com/kasnerz/letax/internal/utils"
)

type AwardRequest struct {
	Award string `json:"award"`
}

type VisibilityRequest struct {
	Visible *bool `json:"visible" validate:"required"`
}

func (h *Handler) ListTeams(c *fiber.Ctx) error {
	event, err := middleware.GetEventFromContext(c)
	if err != nil {
		return err
	}

	teams, err := h.teamSvc.List(event.ID)
	if err != nil {
		return utils.Error(c, "Failed to load teams", fiber.StatusInternalServerError)
	}
	return utils.Success(c, teams, "Teams retrieved successfully")
}

func (h *Handler) GetTeam(c *fiber.Ctx) error {
	event, err := middleware.GetEventFromContext(c)
	if err != nil {
		return err
	}

	team, err := h.teamSvc.ByID(event.ID, c.Params("id"))
	if err != nil {
		return utils.Error(c, "Team not found", fiber.StatusNotFound)
	}
	return utils.Success(c, team, "Team retrieved successfully")
}

// GetTeamOverview returns the team with its derived points and post counts.
func (h *Handler) GetTeamOverview(c *fiber.Ctx) error {
	event, err := middleware.GetEventFromContext(c)
	if err != nil {
		return err
	}

	overview, err := h.scoringSvc.TeamOverview(event.ID, c.Params("id"))
	if err != nil {
		return utils.Error(c, "Team not found", fiber.StatusNotFound)
	}
	return utils.Success(c, overview, "Team overview retrieved successfully")
}

// SaveTeam creates or updates the caller's team.
func (h *Handler) SaveTeam(c *fiber.Ctx) error {
	event, err := middleware.GetEventFromContext(c)
	if err != nil {
		return err
	}
	username, err := middleware.GetUsernameFromContext(c)
	if err != nil {
		return utils.Error(c, err.Error(), fiber.StatusUnauthorized)
	}

	var req services.SaveTeamRequest
	if err := middleware.ValidateBody(&req)(c); err != nil {
		return err
	}

	// admins without a participant record may still assemble teams
	callerPax := ""
	if pax, err := h.authSvc.Participant(event.ID, username); err == nil {
		callerPax = pax.ID
	} else if !middleware.IsAdmin(c) {
		return utils.Error(c, "You are not a participant of this event", fiber.StatusForbidden)
	}

	team, err := h.teamSvc.Save(event.ID, callerPax, middleware.IsAdmin(c), req)
	if err != nil {
		return utils.Error(c, err.Error(), fiber.StatusBadRequest)
	}
	return utils.Success(c, team, "Team saved successfully")
}

// SetTeamPhoto accepts a multipart form with a "photo" file.
func (h *Handler) SetTeamPhoto(c *fiber.Ctx) error {
	event, err := middleware.GetEventFromContext(c)
	if err != nil {
		return err
	}
	username, err := middleware.GetUsernameFromContext(c)
	if err != nil {
		return utils.Error(c, err.Error(), fiber.StatusUnauthorized)
	}
	teamID := c.Params("id")

	if !middleware.IsAdmin(c) {
		pax, err := h.authSvc.Participant(event.ID, username)
		if err != nil {
			return utils.Error(c, "You are not a participant of this event", fiber.StatusForbidden)
		}
		team, err := h.teamSvc.ByID(event.ID, teamID)
		if err != nil {
			return utils.Error(c, "Team not found", fiber.StatusNotFound)
		}
		if !team.HasMember(pax.ID) {
			return utils.Error(c, "Only team members can change the photo", fiber.StatusForbidden)
		}
	}

	fh, err := c.FormFile("photo")
	if err != nil {
		return utils.Error(c, "Photo file is required", fiber.StatusBadRequest)
	}
	upload, err := readUpload(fh)
	if err != nil {
		return utils.Error(c, "Cannot read uploaded photo", fiber.StatusBadRequest)
	}

	if err := h.teamSvc.SetPhoto(c.Context(), event.ID, teamID, upload); err != nil {
		return utils.Error(c, err.Error(), fiber.StatusBadRequest)
	}
	return utils.Success(c, nil, "Team photo updated successfully")
}

func (h *Handler) SetTeamMarker(c *fiber.Ctx) error {
	event, err := middleware.GetEventFromContext(c)
	if err != nil {
		return err
	}
	username, err := middleware.GetUsernameFromContext(c)
	if err != nil {
		return utils.Error(c, err.Error(), fiber.StatusUnauthorized)
	}

	var req services.MarkerRequest
	if err := middleware.ValidateBody(&req)(c); err != nil {
		return err
	}

	callerPax := ""
	if pax, err := h.authSvc.Participant(event.ID, username); err == nil {
		callerPax = pax.ID
	}

	if err := h.teamSvc.SetMarker(event.ID, c.Params("id"), callerPax, middleware.IsAdmin(c), req); err != nil {
		return utils.Error(c, err.Error(), fiber.StatusForbidden)
	}
	return utils.Success(c, nil, "Marker updated successfully")
}

func (h *Handler) SetTeamVisibility(c *fiber.Ctx) error {
	event, err := middleware.GetEventFromContext(c)
	if err != nil {
		return err
	}
	username, err := middleware.GetUsernameFromContext(c)
	if err != nil {
		return utils.Error(c, err.Error(), fiber.StatusUnauthorized)
	}

	var req VisibilityRequest
	if err := middleware.ValidateBody(&req)(c); err != nil {
		return err
	}

	callerPax := ""
	if pax, err := h.authSvc.Participant(event.ID, username); err == nil {
		callerPax = pax.ID
	}

	if err := h.teamSvc.SetVisibility(event.ID, c.Params("id"), callerPax, middleware.IsAdmin(c), *req.Visible); err != nil {
		return utils.Error(c, err.Error(), fiber.StatusForbidden)
	}
	return utils.Success(c, nil, "Visibility updated successfully")
}

// SetTeamAward assigns or clears an award label (admin only).
func (h *Handler) SetTeamAward(c *fiber.Ctx) error {
	event, err := middleware.GetEventFromContext(c)
	if err != nil {
		return err
	}

	var req AwardRequest
	if err := middleware.ValidateBody(&req)(c); err != nil {
		return err
	}

	if err := h.teamSvc.SetAward(event.ID, c.Params("id"), req.Award); err != nil {
		return utils.Error(c, err.Error(), fiber.StatusBadRequest)
	}
	return utils.Success(c, nil, "Award updated successfully")
}
