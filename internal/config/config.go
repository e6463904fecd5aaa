package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the reference backend.
type Config struct {
	AppName                string
	AppEnv                 string
	AppPort                string
	DatabaseDriver         string
	DatabaseURL            string
	RedisURL               string
	MarksCacheTTL          time.Duration
	JWTSecret              string
	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string
	StorageLocalDir        string
	StorageBaseURL         string
	UploadMaxBytes         int64
	NATSURL                string
	NATSSubject            string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// CloudinaryEnabled reports whether proof files go to Cloudinary instead of local disk.
func (c Config) CloudinaryEnabled() bool {
	return c.CloudinaryCloudName != "" && c.CloudinaryAPIKey != "" && c.CloudinaryAPISecret != ""
}

// ClientConfig configures the student-side command line client.
type ClientConfig struct {
	BaseURL        string
	HealthTimeout  time.Duration
	AttemptTimeout time.Duration
	MaxAttempts    int
	RetryBackoff   time.Duration
	StudentEmail   string
}

func newViper() *viper.Viper {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("SAP")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return v
}

// Load reads backend configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	v := newViper()

	v.SetDefault("app.name", "SAP Points API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("marks.cache_ttl", "2m")
	v.SetDefault("cloudinary.folder", "sap/proofs")
	v.SetDefault("storage.local_dir", "uploads")
	v.SetDefault("storage.base_url", "/uploads")
	v.SetDefault("upload.max_mb", 10)
	v.SetDefault("nats.subject", "sap.submissions")

	ttl, err := parseDuration(v, "marks.cache_ttl")
	if err != nil {
		return Config{}, err
	}

	maxMB := v.GetInt("upload.max_mb")
	if maxMB <= 0 {
		maxMB = 10
	}

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		DatabaseDriver:         strings.ToLower(v.GetString("database.driver")),
		DatabaseURL:            v.GetString("database.url"),
		RedisURL:               v.GetString("redis.url"),
		MarksCacheTTL:          ttl,
		JWTSecret:              v.GetString("jwt.secret"),
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
		StorageLocalDir:        v.GetString("storage.local_dir"),
		StorageBaseURL:         strings.TrimRight(v.GetString("storage.base_url"), "/"),
		UploadMaxBytes:         int64(maxMB) << 20,
		NATSURL:                v.GetString("nats.url"),
		NATSSubject:            v.GetString("nats.subject"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	switch cfg.DatabaseDriver {
	case "postgres", "sqlite":
	default:
		return Config{}, fmt.Errorf("unsupported database driver %q", cfg.DatabaseDriver)
	}

	return cfg, nil
}

// LoadClient reads the student client configuration.
func LoadClient() (ClientConfig, error) {
	v := newViper()

	v.SetDefault("client.base_url", "http://localhost:8080")
	v.SetDefault("client.health_timeout", "5s")
	v.SetDefault("client.attempt_timeout", "30s")
	v.SetDefault("client.max_attempts", 2)
	v.SetDefault("client.retry_backoff", "1s")

	health, err := parseDuration(v, "client.health_timeout")
	if err != nil {
		return ClientConfig{}, err
	}
	attempt, err := parseDuration(v, "client.attempt_timeout")
	if err != nil {
		return ClientConfig{}, err
	}
	backoff, err := parseDuration(v, "client.retry_backoff")
	if err != nil {
		return ClientConfig{}, err
	}

	cfg := ClientConfig{
		BaseURL:        strings.TrimRight(v.GetString("client.base_url"), "/"),
		HealthTimeout:  health,
		AttemptTimeout: attempt,
		MaxAttempts:    v.GetInt("client.max_attempts"),
		RetryBackoff:   backoff,
		StudentEmail:   v.GetString("student.email"),
	}

	if cfg.MaxAttempts <= 0 {
		return ClientConfig{}, fmt.Errorf("client max attempts must be positive")
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	d, err := time.ParseDuration(v.GetString(key))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
