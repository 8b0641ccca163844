package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string   `mapstructure:"PORT"`
	Env         string   `mapstructure:"ENV"`
	DatabaseURL string   `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32    `mapstructure:"DB_MIN_CONNS"`
	JWTSecret   string   `mapstructure:"JWT_SECRET"`
	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`

	// Machine translation provider (OpenAI-compatible chat completions).
	TranslateBaseURL      string        `mapstructure:"TRANSLATE_BASE_URL"`
	TranslateAPIKey       string        `mapstructure:"TRANSLATE_API_KEY"`
	TranslateModel        string        `mapstructure:"TRANSLATE_MODEL"`
	TranslatePollInterval time.Duration `mapstructure:"TRANSLATE_POLL_INTERVAL"`

	// File storage: "memory" for local development, "s3" otherwise.
	FileStore     string        `mapstructure:"FILE_STORE"`
	S3Bucket      string        `mapstructure:"S3_BUCKET"`
	S3Region      string        `mapstructure:"S3_REGION"`
	S3Endpoint    string        `mapstructure:"S3_ENDPOINT"`
	S3AccessKey   string        `mapstructure:"S3_ACCESS_KEY"`
	S3SecretKey   string        `mapstructure:"S3_SECRET_KEY"`
	SignedURLTTL  time.Duration `mapstructure:"SIGNED_URL_TTL"`
	UploadMaxSize int64         `mapstructure:"UPLOAD_MAX_SIZE"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("TRANSLATE_MODEL", "gpt-4o-mini")
	v.SetDefault("TRANSLATE_POLL_INTERVAL", "5s")
	v.SetDefault("FILE_STORE", "memory")
	v.SetDefault("SIGNED_URL_TTL", "60s")
	v.SetDefault("UPLOAD_MAX_SIZE", 50*1024*1024)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("JWT_SECRET")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("TRANSLATE_BASE_URL")
	v.BindEnv("TRANSLATE_API_KEY")
	v.BindEnv("TRANSLATE_MODEL")
	v.BindEnv("TRANSLATE_POLL_INTERVAL")
	v.BindEnv("FILE_STORE")
	v.BindEnv("S3_BUCKET")
	v.BindEnv("S3_REGION")
	v.BindEnv("S3_ENDPOINT")
	v.BindEnv("S3_ACCESS_KEY")
	v.BindEnv("S3_SECRET_KEY")
	v.BindEnv("SIGNED_URL_TTL")
	v.BindEnv("UPLOAD_MAX_SIZE")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() {
		log.Println("WARNING: server is running in DEVELOPMENT mode (ENV=development).")
		log.Println("WARNING: DevAuthMiddleware is active, all requests act as the dev user.")
		log.Println("WARNING: set ENV=production and JWT_SECRET for production.")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run. Outside development
// a JWT secret is mandatory so that real authentication is enforced, and the
// S3 settings must be complete when the s3 file store is selected.
func (c *Config) Validate() error {
	if !c.IsDev() && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required when ENV is not \"development\"")
	}
	switch c.FileStore {
	case "memory":
	case "s3":
		if c.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when FILE_STORE is \"s3\"")
		}
		if c.S3Region == "" && c.S3Endpoint == "" {
			return fmt.Errorf("S3_REGION or S3_ENDPOINT is required when FILE_STORE is \"s3\"")
		}
	default:
		return fmt.Errorf("FILE_STORE must be \"memory\" or \"s3\", got %q", c.FileStore)
	}
	if c.TranslateBaseURL != "" && c.TranslateAPIKey == "" && !c.IsDev() {
		return fmt.Errorf("TRANSLATE_API_KEY is required when TRANSLATE_BASE_URL is set")
	}
	if c.UploadMaxSize <= 0 {
		return fmt.Errorf("UPLOAD_MAX_SIZE must be positive")
	}
	return nil
}
