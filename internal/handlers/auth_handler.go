package handlers

import (
	"io"
	"mime/multipart"

	"github.com/gofiber/fiber/v2"

	"github.com/kasnerz/letax/internal/media"
	"github.com/kasnerz/letax/internal/middleware"
	"github.com/kasnerz/letax/internal/services"
	"github.com/kasnerz/letax/internal/utils"
)

type ResetPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ChangePasswordRequest struct {
	Current string `json:"current" validate:"required"`
	New     string `json:"new" validate:"required,min=6"`
}

// Register creates a login account for an imported participant or a
// preauthorized e-mail.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req services.RegisterRequest
	if err := middleware.ValidateBody(&req)(c); err != nil {
		return err
	}

	acc, err := h.authSvc.Register(req)
	if err != nil {
		return utils.Error(c, err.Error(), fiber.StatusBadRequest)
	}
	return utils.Success(c, acc, "Account created successfully", fiber.StatusCreated)
}

// Login authenticates by username or e-mail and returns a JWT.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req services.LoginRequest
	if err := middleware.ValidateBody(&req)(c); err != nil {
		return err
	}

	token, acc, err := h.authSvc.Login(req)
	if err != nil {
		return utils.Error(c, "Invalid credentials", fiber.StatusUnauthorized)
	}
	return utils.Success(c, fiber.Map{"token": token, "account": acc}, "Login successful")
}

// ResetPassword mails a fresh password. The response is identical whether
// the address exists or not.
func (h *Handler) ResetPassword(c *fiber.Ctx) error {
	var req ResetPasswordRequest
	if err := middleware.ValidateBody(&req)(c); err != nil {
		return err
	}

	if err := h.authSvc.ResetPassword(req.Email); err != nil {
		return utils.Error(c, "Failed to send reset mail", fiber.StatusInternalServerError)
	}
	return utils.Success(c, nil, "If the address is registered, a new password was sent")
}

func (h *Handler) ChangePassword(c *fiber.Ctx) error {
	username, err := middleware.GetUsernameFromContext(c)
	if err != nil {
		return utils.Error(c, err.Error(), fiber.StatusUnauthorized)
	}

	var req ChangePasswordRequest
	if err := middleware.ValidateBody(&req)(c); err != nil {
		return err
	}

	if err := h.authSvc.ChangePassword(username, req.Current, req.New); err != nil {
		return utils.Error(c, err.Error(), fiber.StatusBadRequest)
	}
	return utils.Success(c, nil, "Password changed successfully")
}

// GetProfile returns the caller's account, participant and team for the
// resolved event.
func (h *Handler) GetProfile(c *fiber.Ctx) error {
	username, err := middleware.GetUsernameFromContext(c)
	if err != nil {
		return utils.Error(c, err.Error(), fiber.StatusUnauthorized)
	}
	event, err := middleware.GetEventFromContext(c)
	if err != nil {
		return err
	}

	profile, err := h.authSvc.Profile(event.ID, username)
	if err != nil {
		return utils.Error(c, "User not found", fiber.StatusNotFound)
	}
	return utils.Success(c, profile, "Profile retrieved successfully")
}

// UpdateProfile edits the caller's participant record. Accepts multipart
// with an optional "photo" file.
func (h *Handler) UpdateProfile(c *fiber.Ctx) error {
	username, err := middleware.GetUsernameFromContext(c)
	if err != nil {
		return utils.Error(c, err.Error(), fiber.StatusUnauthorized)
	}
	event, err := middleware.GetEventFromContext(c)
	if err != nil {
		return err
	}

	req := services.UpdateProfileRequest{
		Bio:              c.FormValue("bio"),
		EmergencyContact: c.FormValue("emergency_contact"),
	}

	var photo *media.Upload
	if fh, err := c.FormFile("photo"); err == nil {
		upload, err := readUpload(fh)
		if err != nil {
			return utils.Error(c, "Cannot read uploaded photo", fiber.StatusBadRequest)
		}
		photo = &upload
	}

	pax, err := h.authSvc.UpdateProfile(c.Context(), event.ID, username, middleware.IsAdmin(c), req, photo)
	if err != nil {
		return utils.Error(c, err.Error(), fiber.StatusBadRequest)
	}
	return utils.Success(c, pax, "Profile updated successfully")
}

// readUpload loads a multipart file into memory for the media pipeline.
func readUpload(fh *multipart.FileHeader) (media.Upload, error) {
	f, err := fh.Open()
	if err != nil {
		return media.Upload{}, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return media.Upload{}, err
	}

	return media.Upload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}
