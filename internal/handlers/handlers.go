package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/kasnerz/letax/internal/accounts"
	"github.com/kasnerz/letax/internal/config"
	"github.com/kasnerz/letax/internal/middleware"
	"github.com/kasnerz/letax/internal/services"
	"github.com/kasnerz/letax/internal/settings"
	"github.com/kasnerz/letax/internal/utils"
)

type Handler struct {
	authSvc     *services.AuthService
	eventSvc    *services.EventService
	teamSvc     *services.TeamService
	postSvc     *services.PostService
	locationSvc *services.LocationService
	scoringSvc  *services.ScoringService
	catalogSvc  *services.CatalogService
	importSvc   *services.ImportService
	backupSvc   *services.BackupService
	exportSvc   *services.ExportService
	accounts    *accounts.Manager
	settings    *settings.Store
	cfg         *config.Config
}

func NewHandler(
	authSvc *services.AuthService,
	eventSvc *services.EventService,
	teamSvc *services.TeamService,
	postSvc *services.PostService,
	locationSvc *services.LocationService,
	scoringSvc *services.ScoringService,
	catalogSvc *services.CatalogService,
	importSvc *services.ImportService,
	backupSvc *services.BackupService,
	exportSvc *services.ExportService,
	acc *accounts.Manager,
	st *settings.Store,
	cfg *config.Config,
) *Handler {
	return &Handler{
		authSvc:     authSvc,
		eventSvc:    eventSvc,
		teamSvc:     teamSvc,
		postSvc:     postSvc,
		locationSvc: locationSvc,
		scoringSvc:  scoringSvc,
		catalogSvc:  catalogSvc,
		importSvc:   importSvc,
		backupSvc:   backupSvc,
		exportSvc:   exportSvc,
		accounts:    acc,
		settings:    st,
		cfg:         cfg,
	}
}

func (h *Handler) RegisterRoutes(router fiber.Router) {
	// Public routes
	auth := router.Group("/auth")
	{
		auth.Post("/register", h.Register)
		auth.Post("/login", h.Login)
		auth.Post("/reset-password", h.ResetPassword)
	}

	router.Get("/events", h.ListEvents)
	router.Get("/events/default", h.GetDefaultEvent)

	// Event-scoped public routes; the event comes from the event_id query
	// parameter, falling back to the default event.
	public := router.Group("", middleware.ResolveEvent(h.settings))
	{
		public.Get("/leaderboard", h.GetLeaderboard)
		public.Get("/leaderboard/top", h.GetTopTeams)
		public.Get("/teams", h.ListTeams)
		public.Get("/teams/:id", h.GetTeam)
		public.Get("/teams/:id/overview", h.GetTeamOverview)
		public.Get("/teams/:id/gpx", h.ExportGPX)
		public.Get("/posts", h.GetFeed)
		public.Get("/posts/:id", h.GetPost)
		public.Get("/notifications", h.ListNotifications)
	}

	// Protected routes (JWT required)
	protected := router.Group("", middleware.JWTMiddleware(h.cfg), middleware.ResolveEvent(h.settings))
	{
		protected.Get("/profile", h.GetProfile)
		protected.Put("/profile", h.UpdateProfile)
		protected.Post("/auth/change-password", h.ChangePassword)

		protected.Get("/actions/:type", h.ListActions)
		protected.Post("/posts", h.CreatePost)
		protected.Put("/posts/:id/comment", h.UpdatePostComment)
		protected.Delete("/posts/:id", h.DeletePost)

		protected.Post("/teams", h.SaveTeam)
		protected.Post("/teams/:id/photo", h.SetTeamPhoto)
		protected.Put("/teams/:id/marker", h.SetTeamMarker)
		protected.Put("/teams/:id/visibility", h.SetTeamVisibility)

		protected.Post("/locations/live", h.ShareLiveLocation)
		protected.Post("/locations/manual", h.AddManualLocation)
		protected.Get("/locations", h.GetLastLocations)
		protected.Get("/locations/history/:team_id", h.GetLocationHistory)
		protected.Delete("/locations/:id", h.DeleteLocation)

		// Admin only routes
		admin := protected.Group("/admin")
		admin.Use(middleware.AdminOnly)
		{
			admin.Post("/events", h.CreateEvent)
			admin.Put("/events/:id", h.UpdateEvent)

			admin.Get("/participants", h.ListParticipants)
			admin.Post("/participants", h.AddParticipant)
			admin.Post("/participants/import", h.ImportParticipants)

			admin.Get("/accounts", h.ListAccounts)
			admin.Put("/accounts/:username/role", h.SetAccountRole)
			admin.Get("/preauthorized", h.ListPreauthorized)
			admin.Post("/preauthorized", h.AddPreauthorized)
			admin.Delete("/preauthorized/:email", h.RemovePreauthorized)

			admin.Get("/challenges", h.ListChallengesAdmin)
			admin.Post("/challenges", h.SaveChallenge)
			admin.Delete("/challenges/:name", h.DeleteChallenge)
			admin.Post("/challenges/import", h.ImportChallengesCSV)
			admin.Get("/checkpoints", h.ListCheckpointsAdmin)
			admin.Post("/checkpoints", h.SaveCheckpoint)
			admin.Delete("/checkpoints/:name", h.DeleteCheckpoint)
			admin.Post("/checkpoints/import", h.ImportCheckpointsCSV)
			admin.Post("/catalog/diff", h.ApplyCatalogDiff)

			admin.Post("/notifications", h.CreateNotification)
			admin.Delete("/notifications/:id", h.DeleteNotification)

			admin.Put("/teams/:id/award", h.SetTeamAward)

			admin.Get("/backups", h.ListBackups)
			admin.Post("/backups", h.CreateBackup)
			admin.Post("/backups/:name/restore", h.RestoreBackup)

			admin.Post("/export/site", h.ExportSite)
			admin.Post("/export/ftp", h.UploadSiteFTP)

			admin.Get("/settings", h.GetSystemSettings)
			admin.Put("/settings", h.UpdateSystemSettings)
		}
	}
}

// ErrorHandler handles global errors
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	if code >= 500 {
		logrus.WithError(err).WithField("path", c.Path()).Error("request failed")
	}

	return utils.Error(c, message, code)
}
