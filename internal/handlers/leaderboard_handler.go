package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/kasnerz/letax/internal/middleware"
	"github.com/kasnerz/letax/internal/utils"
)

// GetLeaderboard returns all teams ranked by derived points.
func (h *Handler) GetLeaderboard(c *fiber.Ctx) error {
	event, err := middleware.GetEventFromContext(c)
	if err != nil {
		return err
	}

	board, err := h.scoringSvc.Leaderboard(event.ID)
	if err != nil {
		return utils.Error(c, "Failed to compute leaderboard", fiber.StatusInternalServerError)
	}
	return utils.Success(c, board, "Leaderboard retrieved successfully")
}

// GetTopTeams returns the awarded teams, or the point leaders when no awards
// were assigned. The count defaults to 3.
func (h *Handler) GetTopTeams(c *fiber.Ctx) error {
	event, err := middleware.GetEventFromContext(c)
	if err != nil {
		return err
	}

	n, _ := strconv.Atoi(c.Query("n", "3"))
	teams, err := h.scoringSvc.TopTeams(event.ID, n)
	if err != nil {
		return utils.Error(c, "Failed to compute top teams", fiber.StatusInternalServerError)
	}
	return utils.Success(c, teams, "Top teams retrieved successfully")
}

// ListNotifications returns the dashboard messages, hidden ones excluded for
// non-admins.
func (h *Handler) ListNotifications(c *fiber.Ctx) error {
	event, err := middleware.GetEventFromContext(c)
	if err != nil {
		return err
	}

	notifications, err := h.catalogSvc.Notifications(event.ID)
	if err != nil {
		return utils.Error(c, "Failed to load notifications", fiber.StatusInternalServerError)
	}

	if !middleware.IsAdmin(c) {
		visible := notifications[:0]
		for _, n := range notifications {
			if n.Type != "hidden" {
				visible = append(visible, n)
			}
		}
		notifications = visible
	}
	return utils.Success(c, notifications, "Notifications retrieved successfully")
}
