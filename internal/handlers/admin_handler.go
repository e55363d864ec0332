package handlers

import (
	"bytes"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/kasnerz/letax/internal/middleware"
	"github.com/kasnerz/letax/internal/models"
	"github.com/kasnerz/letax/internal/repositories"
	"github.com/kasnerz/letax/internal/utils"
)

type AddParticipantRequest struct {
	Email string `json:"email" validate:"required,email"`
	Name  string `json:"name" validate:"required"`
}

type SetRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=user admin"`
}

type PreauthorizeRequest struct {
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"required,oneof=user admin"`
}

type NotificationRequest struct {
	Text string `json:"text" validate:"required"`
	Type string `json:"type" validate:"required,oneof=info warning important hidden"`
}

type ExportSiteRequest struct {
	BaseURL string `json:"base_url" validate:"omitempty,url"`
}

type FTPUploadRequest struct {
	Address   string `json:"address" validate:"required"`
	User      string `json:"user" validate:"required"`
	Password  string `json:"password" validate:"required"`
	RemoteDir string `json:"remote_dir"`
}

type SystemSettingsRequest struct {
	ChallengeCategories []string `json:"challenge_categories"`
	FileSystem          string   `json:"file_system" validate:"omitempty,oneof=local s3"`
	FSBucket            string   `json:"fs_bucket"`
	InfoText            *string  `json:"info_text"`
}

func (h *Handler) ListParticipants(c *fiber.Ctx) error {
	event, err := middleware.GetEventFromContext(c)
	if err != nil {
		return err
	}

	participants, err := h.importSvc.Participants(event.ID)
	if err != nil {
		return utils.Error(c, "Failed to load participants", fiber.StatusInternalServerError)
	}
	return utils.Success(c, participants, "Participants retrieved successfully")
}

func (h *Handler) AddParticipant(c *fiber.Ctx) error {
	event, err := middleware.GetEventFromContext(c)
	if err != nil {
		return err
	}

	var req AddParticipantRequest
	if err := middleware.ValidateBody(&req)(c); err != nil {
		return err
	}

	pax, err := h.importSvc.AddParticipant(event.ID, req.Email, req.Name)
	if err != nil {
		return utils.Error(c, err.Error(), fiber.StatusBadRequest)
	}
	return utils.Success(c, pax, "Participant added successfully", fiber.StatusCreated)
}

// ImportParticipants pulls the event's shop orders and inserts everyone who
// bought the ticket product. Safe to re-run.
func (h *Handler) ImportParticipants(c *fiber.Ctx) error {
	event, err := middleware.GetEventFromContext(c)
	if err != nil {
		return err
	}

	summary, err := h.importSvc.ImportParticipants(c.Context(), event.ID)
	if err != nil {
		return utils.Error(c, err.Error(), fiber.StatusBadGateway)
	}
	return utils.Success(c, summary, "Participant import finished")
}

func (h *Handler) ListAccounts(c *fiber.Ctx) error {
	return utils.Success(c, h.accounts.List(), "Accounts retrieved successfully")
}

func (h *Handler) SetAccountRole(c *fiber.Ctx) error {
	var req SetRoleRequest
	if err := middleware.ValidateBody(&req)(c); err != nil {
		return err
	}

	if err := h.accounts.SetRole(c.Params("username"), req.Role); err != nil {
		return utils.Error(c, err.Error(), fiber.StatusBadRequest)
	}
	return utils.Success(c, nil, "Role updated successfully")
}

func (h *Handler) ListPreauthorized(c *fiber.Ctx) error {
	return utils.Success(c, h.accounts.PreauthorizedEmails(), "Preauthorized e-mails retrieved successfully")
}

func (h *Handler) AddPreauthorized(c *fiber.Ctx) error {
	var req PreauthorizeRequest
	if err := middleware.ValidateBody(&req)(c); err != nil {
		return err
	}

	if err := h.accounts.AddPreauthorized(req.Email, req.Role); err != nil {
		return utils.Error(c, err.Error(), fiber.StatusInternalServerError)
	}
	return utils.Success(c, nil, "E-mail preauthorized successfully", fiber.StatusCreated)
}

func (h *Handler) RemovePreauthorized(c *fiber.Ctx) error {
	if err := h.accounts.RemovePreauthorized(c.Params("email")); err != nil {
		return utils.Error(c, err.Error(), fiber.StatusInternalServerError)
	}
	return utils.Success(c, nil, "E-mail removed successfully")
}

func (h *Handler) ListChallengesAdmin(c *fiber.Ctx) error {
	event, err := middleware.GetEventFromContext(c)
	if err != nil {
		return err
	}

	challenges, err := h.catalogSvc.Challenges(event.ID)
	if err != nil {
		return utils.Error(c, "Failed to load challenges", fiber.StatusInternalServerError)
	}
	return utils.Success(c, challenges, "Challenges retrieved successfully")
}

func (h *Handler) SaveChallenge(c *fiber.Ctx) error {
	event, err := middleware.GetEventFromContext(c)
	if err != nil {
		return err
	}

	var challenge models.Challenge
	if err := c.BodyParser(&challenge); err != nil {
		return utils.Error(c, "Invalid request body", fiber.StatusBadRequest)
	}

	if err := h.catalogSvc.SaveChallenge(event.ID, challenge); err != nil {
		return utils.Error(c, err.Error(), fiber.StatusBadRequest)
	}
	return utils.Success(c, challenge, "Challenge saved successfully")
}

func (h *Handler) DeleteChallenge(c *fiber.Ctx) error {
	event, err := middleware.GetEventFromContext(c)
	if err != nil {
		return err
	}

	if err := h.catalogSvc.DeleteChallenge(event.ID, c.Params("name")); err != nil {
		return utils.Error(c, err.Error(), fiber.StatusNotFound)
	}
	return utils.Success(c, nil, "Challenge deleted successfully")
}

func (h *Handler) ListCheckpointsAdmin(c *fiber.Ctx) error {
	event, err := middleware.GetEventFromContext(c)
	if err != nil {
		return err
	}

	checkpoints, err := h.catalogSvc.Checkpoints(event.ID)
	if err != nil {
		return utils.Error(c, "Failed to load checkpoints", fiber.StatusInternalServerError)
	}
	return utils.Success(c, checkpoints, "Checkpoints retrieved successfully")
}

func (h *Handler) SaveCheckpoint(c *fiber.Ctx) error {
	event, err := middleware.GetEventFromContext(c)
	if err != nil {
		return err
	}

	var checkpoint models.Checkpoint
	if err := c.BodyParser(&checkpoint); err != nil {
		return utils.Error(c, "Invalid request body", fiber.StatusBadRequest)
	}

	if err := h.catalogSvc.SaveCheckpoint(event.ID, checkpoint); err != nil {
		return utils.Error(c, err.Error(), fiber.StatusBadRequest)
	}
	return utils.Success(c, checkpoint, "Checkpoint saved successfully")
}

func (h *Handler) DeleteCheckpoint(c *fiber.Ctx) error {
	event, err := middleware.GetEventFromContext(c)
	if err != nil {
		return err
	}

	if err := h.catalogSvc.DeleteCheckpoint(event.ID, c.Params("name")); err != nil {
		return utils.Error(c, err.Error(), fiber.StatusNotFound)
	}
	return utils.Success(c, nil, "Checkpoint deleted successfully")
}

// ImportChallengesCSV upserts challenges from an uploaded CSV sheet.
func (h *Handler) ImportChallengesCSV(c *fiber.Ctx) error {
	event, err := middleware.GetEventFromContext(c)
	if err != nil {
		return err
	}

	data, err := readCSVUpload(c)
	if err != nil {
		return utils.Error(c, err.Error(), fiber.StatusBadRequest)
	}

	count, err := h.importSvc.ImportChallengesCSV(event.ID, bytes.NewReader(data))
	if err != nil {
		return utils.Error(c, err.Error(), fiber.StatusBadRequest)
	}
	return utils.Success(c, fiber.Map{"imported": count}, "Challenges imported successfully")
}

func (h *Handler) ImportCheckpointsCSV(c *fiber.Ctx) error {
	event, err := middleware.GetEventFromContext(c)
	if err != nil {
		return err
	}

	data, err := readCSVUpload(c)
	if err != nil {
		return utils.Error(c, err.Error(), fiber.StatusBadRequest)
	}

	count, err := h.importSvc.ImportCheckpointsCSV(event.ID, bytes.NewReader(data))
	if err != nil {
		return utils.Error(c, err.Error(), fiber.StatusBadRequest)
	}
	return utils.Success(c, fiber.Map{"imported": count}, "Checkpoints imported successfully")
}

// ApplyCatalogDiff commits an explicit bulk edit of a catalog table.
func (h *Handler) ApplyCatalogDiff(c *fiber.Ctx) error {
	event, err := middleware.GetEventFromContext(c)
	if err != nil {
		return err
	}

	var body struct {
		Table string                   `json:"table"`
		Diff  repositories.CatalogDiff `json:"diff"`
	}
	if err := c.BodyParser(&body); err != nil {
		return utils.Error(c, "Invalid request body", fiber.StatusBadRequest)
	}

	if err := h.catalogSvc.ApplyDiff(event.ID, &body.Diff, body.Table); err != nil {
		return utils.Error(c, err.Error(), fiber.StatusBadRequest)
	}
	return utils.Success(c, nil, "Catalog updated successfully")
}

func (h *Handler) CreateNotification(c *fiber.Ctx) error {
	event, err := middleware.GetEventFromContext(c)
	if err != nil {
		return err
	}

	var req NotificationRequest
	if err := middleware.ValidateBody(&req)(c); err != nil {
		return err
	}

	n, err := h.catalogSvc.CreateNotification(event.ID, req.Text, req.Type)
	if err != nil {
		return utils.Error(c, err.Error(), fiber.StatusBadRequest)
	}
	return utils.Success(c, n, "Notification created successfully", fiber.StatusCreated)
}

func (h *Handler) DeleteNotification(c *fiber.Ctx) error {
	event, err := middleware.GetEventFromContext(c)
	if err != nil {
		return err
	}

	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return utils.Error(c, "Invalid notification id", fiber.StatusBadRequest)
	}

	if err := h.catalogSvc.DeleteNotification(event.ID, uint(id)); err != nil {
		return utils.Error(c, err.Error(), fiber.StatusNotFound)
	}
	return utils.Success(c, nil, "Notification deleted successfully")
}

func (h *Handler) ListBackups(c *fiber.Ctx) error {
	backups, err := h.backupSvc.List()
	if err != nil {
		return utils.Error(c, "Failed to list backups", fiber.StatusInternalServerError)
	}
	return utils.Success(c, backups, "Backups retrieved successfully")
}

func (h *Handler) CreateBackup(c *fiber.Ctx) error {
	name, err := h.backupSvc.Create()
	if err != nil {
		return utils.Error(c, err.Error(), fiber.StatusInternalServerError)
	}
	return utils.Success(c, fiber.Map{"backup": name}, "Backup created successfully", fiber.StatusCreated)
}

func (h *Handler) RestoreBackup(c *fiber.Ctx) error {
	if err := h.backupSvc.Restore(c.Params("name")); err != nil {
		return utils.Error(c, err.Error(), fiber.StatusBadRequest)
	}
	return utils.Success(c, nil, "Backup restored successfully")
}

// ExportSite renders the static HTML site of the resolved event.
func (h *Handler) ExportSite(c *fiber.Ctx) error {
	event, err := middleware.GetEventFromContext(c)
	if err != nil {
		return err
	}

	var req ExportSiteRequest
	if err := middleware.ValidateBody(&req)(c); err != nil {
		return err
	}

	zipPath, err := h.exportSvc.ExportSite(c.Context(), event.ID, req.BaseURL)
	if err != nil {
		return utils.Error(c, err.Error(), fiber.StatusInternalServerError)
	}
	return utils.Success(c, fiber.Map{"archive": zipPath}, "Site exported successfully")
}

func (h *Handler) UploadSiteFTP(c *fiber.Ctx) error {
	event, err := middleware.GetEventFromContext(c)
	if err != nil {
		return err
	}

	var req FTPUploadRequest
	if err := middleware.ValidateBody(&req)(c); err != nil {
		return err
	}

	if err := h.exportSvc.UploadFTP(c.Context(), event.ID, req.Address, req.User, req.Password, req.RemoteDir); err != nil {
		return utils.Error(c, err.Error(), fiber.StatusBadGateway)
	}
	return utils.Success(c, nil, "Site uploaded successfully")
}

func (h *Handler) GetSystemSettings(c *fiber.Ctx) error {
	kind, bucket := h.settings.FileSystem()
	return utils.Success(c, fiber.Map{
		"challenge_categories": h.settings.ChallengeCategories(),
		"file_system":          kind,
		"fs_bucket":            bucket,
		"feed_page_size":       h.settings.FeedPageSize(),
		"info_text":            h.settings.InfoText(),
	}, "Settings retrieved successfully")
}

// UpdateSystemSettings applies the provided fields; absent fields keep their
// value. A file system change takes effect after a restart.
func (h *Handler) UpdateSystemSettings(c *fiber.Ctx) error {
	var req SystemSettingsRequest
	if err := middleware.ValidateBody(&req)(c); err != nil {
		return err
	}

	if req.ChallengeCategories != nil {
		if err := h.settings.SetChallengeCategories(req.ChallengeCategories); err != nil {
			return utils.Error(c, err.Error(), fiber.StatusInternalServerError)
		}
	}
	if req.FileSystem != "" {
		if err := h.settings.SetFileSystem(req.FileSystem, req.FSBucket); err != nil {
			return utils.Error(c, err.Error(), fiber.StatusBadRequest)
		}
	}
	if req.InfoText != nil {
		if err := h.settings.SetInfoText(*req.InfoText); err != nil {
			return utils.Error(c, err.Error(), fiber.StatusInternalServerError)
		}
	}
	return utils.Success(c, nil, "Settings updated successfully")
}

// readCSVUpload pulls the "file" part of a multipart upload into memory.
func readCSVUpload(c *fiber.Ctx) ([]byte, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "CSV file is required")
	}
	upload, err := readUpload(fh)
	if err != nil {
		return nil, err
	}
	return upload.Data, nil
}
