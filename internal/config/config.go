package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port     string
	DBDSN    string
	MediaDir string
	LogFile  string
	LogLevel string

	// Public base URL of the site, used in email links.
	SiteURL    string
	SiteName   string
	PublicURL  string // base URL of this API, used for local media links
	AdminEmail string
	CronSecret string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	EmailFrom    string
	EmailMock    bool

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioSecure    bool

	RedisAddr string

	GenAIKey   string
	GenAIModel string

	EmailInterval time.Duration
	EmailBatch    int
}

func Load() Config {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("[config] no .env file, using process environment")
	}

	cfg := Config{
		Port:     getenv("PORT", "8080"),
		DBDSN:    getenv("DB_DSN", "tfsrentals.db"),
		MediaDir: getenv("MEDIA_DIR", "./data/media"),
		LogFile:  getenv("LOG_FILE", ""),
		LogLevel: getenv("LOG_LEVEL", "info"),

		SiteURL:    getenv("SITE_URL", "http://localhost:3000"),
		SiteName:   getenv("SITE_NAME", "TFS Film Equipment"),
		PublicURL:  getenv("PUBLIC_URL", "http://localhost:8080"),
		AdminEmail: getenv("ADMIN_EMAIL", ""),
		CronSecret: os.Getenv("CRON_SECRET"),

		SMTPHost:     getenv("SMTP_HOST", ""),
		SMTPPort:     getint("SMTP_PORT", 587),
		SMTPUsername: os.Getenv("SMTP_USERNAME"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		EmailFrom:    getenv("EMAIL_FROM", "TFS Film Equipment <noreply@example.com>"),
		EmailMock:    getenv("EMAIL_MOCK_MODE", "false") == "true",

		MinioEndpoint:  os.Getenv("MINIO_ENDPOINT"),
		MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:    getenv("MINIO_BUCKET", "tfs-quotes"),
		MinioSecure:    getenv("MINIO_SECURE", "false") == "true",

		RedisAddr: os.Getenv("REDIS_ADDR"),

		GenAIKey:   os.Getenv("GENAI_API_KEY"),
		GenAIModel: getenv("GENAI_MODEL", "gemini-2.5-flash"),

		EmailInterval: getduration("EMAIL_QUEUE_INTERVAL", 5*time.Minute),
		EmailBatch:    getint("EMAIL_QUEUE_BATCH", 20),
	}
	log.Printf("[config] PORT=%s DB_DSN=%s MEDIA_DIR=%s REDIS=%t MINIO=%t SMTP=%t",
		cfg.Port, cfg.DBDSN, cfg.MediaDir, cfg.RedisAddr != "", cfg.MinioEndpoint != "", cfg.SMTPHost != "")
	return cfg
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	n, err := strconv.Atoi(os.Getenv(k))
	if err != nil {
		return def
	}
	return n
}

func getduration(k string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(k))
	if err != nil || d <= 0 {
		return def
	}
	return d
}
