package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config stores the application configuration.
type Config struct {
	Port      string
	WebAppDir string // Path to the web application's UI files

	// Notion metadata service
	NotionAPIURL           string
	NotionToken            string
	NotionVersion          string
	NotionTimeout          time.Duration
	TracksDatabaseID       string // archive records: Title, 완성일, credits...
	LinksDatabaseID        string // Song -> Link audio URLs
	TrackTitleProperty     string
	LinkTitleProperty      string
	LinkURLProperty        string
	CompletionDateProperty string // sweep sort key, descending
	PageSize               int

	// Response cache
	CacheBackend string // "memory", "redis" or "none"
	CacheTTL     time.Duration
	CacheSize    int

	FieldCatalogPath string // optional YAML field catalog, hot reloaded
	DownloadPassword string // plain passphrase or bcrypt hash

	// Redis配置
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// MinIO object storage for audio files
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioRegion    string
	MinioUseSSL    bool

	LogLevel  string
	LogPath   string
	LogMaxAge int
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration accepts Go durations ("3m") or plain seconds ("180").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load() does not override existing env vars.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found or error loading .env, relying on existing environment variables and defaults.")
	}

	return &Config{
		Port:      getEnv("SERVER_PORT", "8080"),
		WebAppDir: getEnv("WEB_APP_DIR", filepath.Join("web", "ui")),

		NotionAPIURL:           getEnv("NOTION_API_URL", "https://api.notion.com/v1"),
		NotionToken:            os.Getenv("NOTION_TOKEN"), // no default for secrets
		NotionVersion:          getEnv("NOTION_VERSION", "2022-06-28"),
		NotionTimeout:          getEnvDuration("NOTION_TIMEOUT", 30*time.Second),
		TracksDatabaseID:       os.Getenv("NOTION_TRACKS_DATABASE_ID"),
		LinksDatabaseID:        os.Getenv("NOTION_LINKS_DATABASE_ID"),
		TrackTitleProperty:     getEnv("TRACK_TITLE_PROPERTY", "Title"),
		LinkTitleProperty:      getEnv("LINK_TITLE_PROPERTY", "Song"),
		LinkURLProperty:        getEnv("LINK_URL_PROPERTY", "Link"),
		CompletionDateProperty: getEnv("COMPLETION_DATE_PROPERTY", "완성일"),
		PageSize:               getEnvInt("PAGE_SIZE", 100),

		CacheBackend: getEnv("CACHE_BACKEND", "memory"),
		CacheTTL:     getEnvDuration("CACHE_TTL", 3*time.Minute),
		CacheSize:    getEnvInt("CACHE_SIZE", 64),

		FieldCatalogPath: os.Getenv("FIELD_CATALOG"),
		DownloadPassword: getEnv("DOWNLOAD_PASSWORD", "0000"),

		RedisHost:     getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		MinioEndpoint:  getEnv("MINIO_ENDPOINT", ""),
		MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:    getEnv("MINIO_BUCKET", "esmp"),
		MinioRegion:    getEnv("MINIO_REGION", "us-east-1"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", true),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogPath:   getEnv("LOG_PATH", ""),
		LogMaxAge: getEnvInt("LOG_MAX_AGE", 7),
	}
}

// RedisAddr is host:port of the Redis cache.
func (c *Config) RedisAddr() string {
	return c.RedisHost + ":" + c.RedisPort
}
