package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

const minSecretLength = 32

type Config struct {
	ServerAddr string
	AppEnv     string
	BaseURL    string
	LogLevel   string

	DBDriver   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	SQLitePath string

	AccessSecret  string
	RefreshSecret string

	RedisAddr     string
	RedisPassword string

	RevokedSweepInterval time.Duration

	ProtectedEmails     []string
	DefaultUserPassword string

	AdminEmail    string
	AdminPassword string
	AdminName     string

	UploadDir     string
	UseS3         bool
	S3Bucket      string
	S3Region      string
	CloudFrontURL string

	CORSOrigins string
}

func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		ServerAddr: getEnv("SERVER_ADDR", ":8080"),
		AppEnv:     getEnv("APP_ENV", "development"),
		BaseURL:    getEnv("BASE_URL", ""),
		LogLevel:   getEnv("LOG_LEVEL", "info"),

		DBDriver:   getEnv("DB_DRIVER", "postgres"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "blog"),
		SQLitePath: getEnv("SQLITE_PATH", "blog.db"),

		AccessSecret:  os.Getenv("JWT_ACCESS_SECRET"),
		RefreshSecret: os.Getenv("JWT_REFRESH_SECRET"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		RevokedSweepInterval: getDuration("REVOKED_SWEEP_INTERVAL", 5*time.Minute),

		ProtectedEmails:     getList("PROTECTED_EMAILS"),
		DefaultUserPassword: getEnv("DEFAULT_USER_PASSWORD", ""),

		AdminEmail:    os.Getenv("ADMIN_EMAIL"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),
		AdminName:     getEnv("ADMIN_NAME", "Administrator"),

		UploadDir:     getEnv("UPLOAD_DIR", "./uploads"),
		UseS3:         getEnv("USE_S3", "false") == "true",
		S3Bucket:      os.Getenv("S3_BUCKET"),
		S3Region:      os.Getenv("S3_REGION"),
		CloudFrontURL: os.Getenv("CLOUDFRONT_URL"),

		CORSOrigins: getEnv("CORS_ORIGINS", "http://localhost:3000, http://localhost:3001"),
	}

	log.Info("✅ Config loaded")
	return cfg
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// Validate reports configuration the server cannot start with.
func (c *Config) Validate() error {
	if err := validateSecret("JWT_ACCESS_SECRET", c.AccessSecret); err != nil {
		return err
	}
	if err := validateSecret("JWT_REFRESH_SECRET", c.RefreshSecret); err != nil {
		return err
	}
	if c.AccessSecret == c.RefreshSecret {
		return fmt.Errorf("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ")
	}

	switch c.DBDriver {
	case "postgres":
		if c.DBHost == "" || c.DBName == "" || c.DBUser == "" {
			return fmt.Errorf("DB_HOST, DB_NAME and DB_USER are required for postgres")
		}
	case "sqlite":
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for sqlite")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	if c.RevokedSweepInterval <= 0 {
		return fmt.Errorf("REVOKED_SWEEP_INTERVAL must be positive")
	}
	return nil
}

func validateSecret(name, secret string) error {
	if secret == "" {
		return fmt.Errorf("%s environment variable is required", name)
	}
	if len(secret) < minSecretLength {
		return fmt.Errorf("%s must be at least %d characters long (current: %d)", name, minSecretLength, len(secret))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Warnf("⚠️  Invalid %s=%q, using %s", key, v, fallback)
		return fallback
	}
	return d
}

func getList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
