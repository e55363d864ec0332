package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"github.com/kasnerz/letax/internal/accounts"
	"github.com/kasnerz/letax/internal/cache"
	"github.com/kasnerz/letax/internal/config"
	"github.com/kasnerz/letax/internal/geocode"
	"github.com/kasnerz/letax/internal/handlers"
	"github.com/kasnerz/letax/internal/mailer"
	"github.com/kasnerz/letax/internal/media"
	"github.com/kasnerz/letax/internal/repositories"
	"github.com/kasnerz/letax/internal/services"
	"github.com/kasnerz/letax/internal/settings"
	"github.com/kasnerz/letax/internal/storage"
	"github.com/kasnerz/letax/internal/woocommerce"
	"github.com/kasnerz/letax/pkg/database"
	"github.com/kasnerz/letax/pkg/logger"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	// Load configuration
	cfg, err := config.NewConfigFromEnv()
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}

	// Initialize logger
	logger.Init(cfg.LogLevel)

	// Flat-file stores
	settingsStore, err := settings.NewStore(filepath.Join(cfg.DataDir, "settings.yaml"))
	if err != nil {
		log.Fatalf("Settings error: %v", err)
	}
	accountsStore, err := accounts.NewManager(filepath.Join(cfg.DataDir, "accounts.yaml"))
	if err != nil {
		log.Fatalf("Accounts error: %v", err)
	}

	// Per-event databases
	registry := database.NewRegistry(cfg.DataDir)
	defer registry.CloseAll()
	repos := repositories.NewManager(registry)

	// Media file storage, local disk or S3
	fsKind, fsBucket := settingsStore.FileSystem()
	store, err := storage.New(fsKind, fsBucket, cfg)
	if err != nil {
		log.Fatalf("Storage error: %v", err)
	}

	ttlCache, err := cache.New(1024, time.Minute)
	if err != nil {
		log.Fatalf("Cache error: %v", err)
	}

	// External clients
	proc := media.NewProcessor(cfg.FFmpegPath)
	geo := geocode.NewClient(cfg.GeocoderURL, cfg.GeocoderAgent)
	wc := woocommerce.NewClient(cfg.WCBaseURL, cfg.WCConsumerKey, cfg.WCConsumerSecret)
	mail := mailer.New(cfg.SMTPServer, cfg.SMTPPort, cfg.SMTPSender, cfg.SMTPPass)

	// Initialize services
	scoringSvc := services.NewScoringService(repos, ttlCache)
	authSvc := services.NewAuthService(accountsStore, repos, settingsStore, mail, store, proc, cfg.JWTSecret)
	eventSvc := services.NewEventService(settingsStore, repos, scoringSvc)
	teamSvc := services.NewTeamService(repos, settingsStore, store, proc, scoringSvc)
	postSvc := services.NewPostService(repos, settingsStore, store, proc, scoringSvc)
	locationSvc := services.NewLocationService(repos, settingsStore, geo)
	catalogSvc := services.NewCatalogService(repos, settingsStore, scoringSvc)
	importSvc := services.NewImportService(repos, settingsStore, wc, scoringSvc)
	backupSvc := services.NewBackupService(cfg.DataDir, cfg.BackupDir, repos, settingsStore, accountsStore, ttlCache)
	exportSvc := services.NewExportService(cfg.ExportDir, repos, settingsStore, scoringSvc, store)

	// Initialize handlers
	handler := handlers.NewHandler(
		authSvc, eventSvc, teamSvc, postSvc, locationSvc, scoringSvc,
		catalogSvc, importSvc, backupSvc, exportSvc,
		accountsStore, settingsStore, cfg,
	)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "letax API",
		BodyLimit:    int(cfg.MaxUploadSize) * 4,
		ErrorHandler: handlers.ErrorHandler,
	})

	// Global middlewares
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Serve locally stored media directly
	if fsKind == "local" {
		app.Static("/files", filepath.Join(cfg.DataDir, "files"))
	}

	// Register routes
	api := app.Group("/api/v1")
	handler.RegisterRoutes(api)

	// Start server
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Port)
		log.Printf("Server starting on %s", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		log.Fatalf("Server shutdown error: %v", err)
	}
	log.Println("Server stopped gracefully")
}
