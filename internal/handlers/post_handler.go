package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/kasnerz/letax/internal/media"
	"github.com/kasnerz/letax/internal/middleware"
	"github.com/kasnerz/letax/internal/repositories"
	"github.com/kasnerz/letax/internal/services"
	"github.com/kasnerz/letax/internal/utils"
)

type UpdateCommentRequest struct {
	Comment string `json:"comment"`
}

// GetFeed returns posts newest first, optionally filtered by team_id,
// action_type and action_name, paginated with the "page" query parameter.
func (h *Handler) GetFeed(c *fiber.Ctx) error {
	event, err := middleware.GetEventFromContext(c)
	if err != nil {
		return err
	}

	filters := repositories.PostFilters{
		TeamID:     c.Query("team_id"),
		ActionType: c.Query("action_type"),
		ActionName: c.Query("action_name"),
	}
	page, _ := strconv.Atoi(c.Query("page", "1"))

	posts, total, err := h.postSvc.Feed(event.ID, filters, page)
	if err != nil {
		return utils.Error(c, "Failed to load feed", fiber.StatusInternalServerError)
	}

	size := h.settings.FeedPageSize()
	return utils.SuccessWithMeta(c, posts, &utils.Meta{
		Page:      page,
		PageSize:  size,
		Total:     total,
		TotalPage: int((total + int64(size) - 1) / int64(size)),
	}, "Feed retrieved successfully")
}

func (h *Handler) GetPost(c *fiber.Ctx) error {
	event, err := middleware.GetEventFromContext(c)
	if err != nil {
		return err
	}

	post, err := h.postSvc.ByID(event.ID, c.Params("id"))
	if err != nil {
		return utils.Error(c, "Post not found", fiber.StatusNotFound)
	}
	return utils.Success(c, post, "Post retrieved successfully")
}

// CreatePost accepts a multipart form: action_type, action_name, comment and
// one or more "files" parts.
func (h *Handler) CreatePost(c *fiber.Ctx) error {
	event, err := middleware.GetEventFromContext(c)
	if err != nil {
		return err
	}
	username, err := middleware.GetUsernameFromContext(c)
	if err != nil {
		return utils.Error(c, err.Error(), fiber.StatusUnauthorized)
	}
	pax, err := h.authSvc.Participant(event.ID, username)
	if err != nil {
		return utils.Error(c, "You are not a participant of this event", fiber.StatusForbidden)
	}

	form, err := c.MultipartForm()
	if err != nil {
		return utils.Error(c, "Invalid multipart form", fiber.StatusBadRequest)
	}

	var uploads []media.Upload
	for _, fh := range form.File["files"] {
		if fh.Size > h.cfg.MaxUploadSize {
			return utils.Error(c, "File too large: "+fh.Filename, fiber.StatusRequestEntityTooLarge)
		}
		upload, err := readUpload(fh)
		if err != nil {
			return utils.Error(c, "Cannot read uploaded file", fiber.StatusBadRequest)
		}
		uploads = append(uploads, upload)
	}

	req := services.SubmitPostRequest{
		ActionType: c.FormValue("action_type"),
		ActionName: c.FormValue("action_name"),
		Comment:    c.FormValue("comment"),
	}

	post, err := h.postSvc.Submit(c.Context(), event.ID, pax.ID, req, uploads)
	if err != nil {
		return utils.Error(c, err.Error(), fiber.StatusBadRequest)
	}
	return utils.Success(c, post, "Post created successfully", fiber.StatusCreated)
}

func (h *Handler) UpdatePostComment(c *fiber.Ctx) error {
	event, err := middleware.GetEventFromContext(c)
	if err != nil {
		return err
	}
	username, err := middleware.GetUsernameFromContext(c)
	if err != nil {
		return utils.Error(c, err.Error(), fiber.StatusUnauthorized)
	}

	var req UpdateCommentRequest
	if err := middleware.ValidateBody(&req)(c); err != nil {
		return err
	}

	pax, err := h.authSvc.Participant(event.ID, username)
	if err != nil {
		return utils.Error(c, "You are not a participant of this event", fiber.StatusForbidden)
	}

	if err := h.postSvc.UpdateComment(event.ID, c.Params("id"), pax.ID, middleware.IsAdmin(c), req.Comment); err != nil {
		return utils.Error(c, err.Error(), fiber.StatusForbidden)
	}
	return utils.Success(c, nil, "Comment updated successfully")
}

func (h *Handler) DeletePost(c *fiber.Ctx) error {
	event, err := middleware.GetEventFromContext(c)
	if err != nil {
		return err
	}
	username, err := middleware.GetUsernameFromContext(c)
	if err != nil {
		return utils.Error(c, err.Error(), fiber.StatusUnauthorized)
	}

	callerPax := ""
	if pax, err := h.authSvc.Participant(event.ID, username); err == nil {
		callerPax = pax.ID
	}

	if err := h.postSvc.Delete(c.Context(), event.ID, c.Params("id"), callerPax, middleware.IsAdmin(c)); err != nil {
		return utils.Error(c, err.Error(), fiber.StatusForbidden)
	}
	return utils.Success(c, nil, "Post deleted successfully")
}

// ListActions returns the catalog of the requested type with the caller's
// completed actions flagged.
func (h *Handler) ListActions(c *fiber.Ctx) error {
	event, err := middleware.GetEventFromContext(c)
	if err != nil {
		return err
	}
	username, err := middleware.GetUsernameFromContext(c)
	if err != nil {
		return utils.Error(c, err.Error(), fiber.StatusUnauthorized)
	}

	paxID := ""
	if pax, err := h.authSvc.Participant(event.ID, username); err == nil {
		paxID = pax.ID
	}

	actions, err := h.postSvc.AvailableActions(event.ID, paxID, c.Params("type"))
	if err != nil {
		return utils.Error(c, err.Error(), fiber.StatusBadRequest)
	}
	return utils.Success(c, actions, "Actions retrieved successfully")
}
