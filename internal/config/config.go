package config

import (
	"errors"
	"os"
	"strconv"
)

type Config struct {
	Port          string
	Env           string
	JWTSecret     string
	DataDir       string
	BackupDir     string
	ExportDir     string
	MaxUploadSize int64
	LogLevel      string

	SMTPServer string
	SMTPPort   int
	SMTPSender string
	SMTPPass   string

	WCBaseURL        string
	WCConsumerKey    string
	WCConsumerSecret string

	AWSRegion    string
	AWSAccessKey string
	AWSSecretKey string

	FFmpegPath    string
	GeocoderURL   string
	GeocoderAgent string
}

func NewConfigFromEnv() (*Config, error) {
	maxUploadSize, _ := strconv.ParseInt(getenv("MAX_UPLOAD_SIZE", "52428800"), 10, 64)
	smtpPort, _ := strconv.Atoi(getenv("SMTP_PORT", "465"))

	cfg := &Config{
		Port:          getenv("PORT", "3000"),
		Env:           getenv("ENV", "development"),
		JWTSecret:     getenv("JWT_SECRET", ""),
		DataDir:       getenv("DATA_DIR", "./data"),
		BackupDir:     getenv("BACKUP_DIR", "./backups"),
		ExportDir:     getenv("EXPORT_DIR", "./exports"),
		MaxUploadSize: maxUploadSize,
		LogLevel:      getenv("LOG_LEVEL", "info"),

		SMTPServer: getenv("SMTP_SERVER", ""),
		SMTPPort:   smtpPort,
		SMTPSender: getenv("SMTP_SENDER", "letni@x-challenge.cz"),
		SMTPPass:   getenv("SMTP_PASSWORD", ""),

		WCBaseURL:        getenv("WC_BASE_URL", "https://x-challenge.cz"),
		WCConsumerKey:    getenv("WC_CONSUMER_KEY", ""),
		WCConsumerSecret: getenv("WC_CONSUMER_SECRET", ""),

		AWSRegion:    getenv("AWS_DEFAULT_REGION", ""),
		AWSAccessKey: getenv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey: getenv("AWS_SECRET_ACCESS_KEY", ""),

		FFmpegPath:    getenv("FFMPEG_PATH", "ffmpeg"),
		GeocoderURL:   getenv("GEOCODER_URL", "https://nominatim.openstreetmap.org"),
		GeocoderAgent: getenv("GEOCODER_USER_AGENT", "letax"),
	}

	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	return cfg, nil
}

func getenv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
