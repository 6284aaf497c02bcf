package config

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	// Load a local .env into the process environment before the loader
	// below reads it.
	_ "github.com/joho/godotenv/autoload"
)

// AppConfig holds environment driven configuration values. Sensitive data
// never has defaults inside code and must arrive via the environment or
// the config file.
type AppConfig struct {
	AppPort   string
	JWTSecret string

	// Database
	DatabaseURI string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string

	// Redis for caching and token revocation
	RedisHost     string
	RedisPort     int
	RedisDB       int
	RedisPassword string

	// HTTP
	GinMode            string
	GinPath            string
	AllowedOrigins     []string
	RateLimitPerMinute int

	// Logging
	LogLevel      string
	LogPath       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool

	// Reply attachments
	UploadsSelfDestructEnabled bool
	UploadsSelfDestructMinutes int
}

var cfg AppConfig
var loaded bool

// Load loads the application configuration. It should be called once
// during boot. Precedence: config/config.json -> defaults -> environment
// variable overrides.
func Load() AppConfig {
	if loaded {
		return cfg
	}

	_ = loadJSONConfig(filepath.Join("config", "config.json"), &cfg)
	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET must be set in environment variables")
	}

	loaded = true
	return cfg
}

// Get returns the cached configuration, loading it if necessary.
func Get() AppConfig {
	if !loaded {
		return Load()
	}
	return cfg
}

func loadJSONConfig(path string, out *AppConfig) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

func applyDefaults(c *AppConfig) {
	if c.AppPort == "" {
		c.AppPort = "8080"
	}
	if c.DBHost == "" {
		c.DBHost = "127.0.0.1"
	}
	if c.DBPort == "" {
		c.DBPort = "3306"
	}
	if c.DBUser == "" {
		c.DBUser = "qaboard"
	}
	if c.DBName == "" {
		c.DBName = "qaboard"
	}
	if c.RedisHost == "" {
		c.RedisHost = "127.0.0.1"
	}
	if c.RedisPort == 0 {
		c.RedisPort = 6379
	}
	if c.GinMode == "" {
		c.GinMode = "release"
	}
	if c.GinPath == "" {
		c.GinPath = "logs/gin.log"
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if c.RateLimitPerMinute == 0 {
		c.RateLimitPerMinute = 60
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogPath == "" {
		c.LogPath = "logs/app.log"
	}
	if c.UploadsSelfDestructMinutes == 0 {
		c.UploadsSelfDestructMinutes = 60
	}
}

func applyEnvOverrides(c *AppConfig) {
	setString(&c.AppPort, "APP_PORT")
	setString(&c.JWTSecret, "JWT_SECRET")
	setString(&c.DatabaseURI, "DATABASE_URI")
	setString(&c.DBHost, "DB_HOST")
	setString(&c.DBPort, "DB_PORT")
	setString(&c.DBUser, "DB_USER")
	setString(&c.DBPassword, "DB_PASSWORD")
	setString(&c.DBName, "DB_NAME")
	setString(&c.RedisHost, "REDIS_HOST")
	setInt(&c.RedisPort, "REDIS_PORT")
	setInt(&c.RedisDB, "REDIS_DB")
	setString(&c.RedisPassword, "REDIS_PASSWORD")
	setString(&c.GinMode, "GIN_MODE")
	setString(&c.GinPath, "GIN_PATH")
	setInt(&c.RateLimitPerMinute, "RATE_LIMIT_PER_MINUTE")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.LogPath, "LOG_PATH")
	setInt(&c.LogMaxSizeMB, "LOG_MAX_SIZE_MB")
	setInt(&c.LogMaxBackups, "LOG_MAX_BACKUPS")
	setInt(&c.LogMaxAgeDays, "LOG_MAX_AGE_DAYS")
	setBool(&c.LogCompress, "LOG_COMPRESS")
	setBool(&c.UploadsSelfDestructEnabled, "UPLOADS_SELF_DESTRUCT_ENABLED")
	setInt(&c.UploadsSelfDestructMinutes, "UPLOADS_SELF_DESTRUCT_MINUTES")

	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		c.AllowedOrigins = splitAndTrim(v)
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v == "1" || strings.EqualFold(v, "true")
	}
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
