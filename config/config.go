package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config is built once at startup and handed to every constructor.
// Nothing below main reads the environment on its own.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Storage   StorageConfig
	Mail      MailConfig
	CORS      CORSConfig
	RateLimit RateLimitConfig
	Redis     RedisConfig
	Intake    IntakeConfig
	Report    ReportConfig
	Log       LogConfig
}

type ServerConfig struct {
	Host            string        `env:"HOST"             env-default:"0.0.0.0"`
	Port            string        `env:"PORT"             env-default:"8080"`
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT"     env-default:"30s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT"    env-default:"120s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT"     env-default:"60s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"10s"`
	TrustedProxies  []string      `env:"TRUSTED_PROXIES"  env-separator:","`

	// StaticDir, when set, is served at / with an index.html fallback.
	StaticDir string `env:"STATIC_DIR"`
}

type DatabaseConfig struct {
	URI             string        `env:"POSTGRES_URI"          env-required:"true"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS"     env-default:"10"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS"     env-default:"100"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME"  env-default:"30m"`
	ConnMaxIdleTime time.Duration `env:"DB_CONN_MAX_IDLE_TIME" env-default:"5m"`
	AutoMigrate     bool          `env:"DB_AUTO_MIGRATE"       env-default:"false"`
}

type StorageConfig struct {
	// Driver is "drive" (Google Drive folders) or "gcs" (Cloud Storage bucket).
	Driver          string `env:"STORAGE_DRIVER"            env-default:"drive"`
	CredentialsFile string `env:"GOOGLE_CREDENTIALS_FILE"`
	CredentialsJSON string `env:"GOOGLE_CREDENTIALS_JSON"`
	FolderID        string `env:"DRIVE_FOLDER_ID"`
	ComplaintsID    string `env:"DRIVE_FOLDER_QUEJAS_ID"`
	Bucket          string `env:"GCS_BUCKET"`
}

// ComplaintsFolder returns the complaints folder, falling back to the
// general folder when no dedicated one is configured.
func (c StorageConfig) ComplaintsFolder() string {
	if strings.TrimSpace(c.ComplaintsID) != "" {
		return c.ComplaintsID
	}
	return c.FolderID
}

type MailConfig struct {
	Enabled  bool     `env:"MAIL_ENABLED"  env-default:"true"`
	Host     string   `env:"SMTP_HOST"     env-default:"smtp.gmail.com"`
	Port     int      `env:"SMTP_PORT"     env-default:"587"`
	Username string   `env:"EMAIL_USER"`
	Password string   `env:"EMAIL_PASS"`
	From     string   `env:"EMAIL_FROM"`
	To       []string `env:"EMAIL_TO"      env-separator:","`
	CC       []string `env:"EMAIL_CC"      env-separator:","`

	// Insecure allows opportunistic TLS instead of mandatory STARTTLS (local relays).
	Insecure bool `env:"SMTP_INSECURE" env-default:"false"`
}

// Sender is the From address, defaulting to the SMTP username.
func (c MailConfig) Sender() string {
	if c.From != "" {
		return c.From
	}
	return c.Username
}

type CORSConfig struct {
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" env-separator:"," env-default:"*"`
	AllowedMethods string   `env:"CORS_ALLOWED_METHODS" env-default:"GET,POST,OPTIONS"`
	AllowedHeaders string   `env:"CORS_ALLOWED_HEADERS" env-default:"Authorization,Content-Type,X-Request-Id"`
	MaxAge         int      `env:"CORS_MAX_AGE"         env-default:"86400"`
}

type RateLimitConfig struct {
	// Backend is "memory" or "redis".
	Backend       string        `env:"RATE_LIMIT_BACKEND"    env-default:"memory"`
	PerMinute     int64         `env:"RATE_LIMIT_PER_MINUTE" env-default:"60"`
	SweepInterval time.Duration `env:"RATE_LIMIT_SWEEP"      env-default:"1m"`
}

type RedisConfig struct {
	Addr string `env:"REDIS_ADDR"`
}

type IntakeConfig struct {
	MaxUploadBytes      int64         `env:"MAX_UPLOAD_BYTES"      env-default:"10485760"`
	AllowedMimeTypes    []string      `env:"ALLOWED_MIME_TYPES"    env-separator:"," env-default:"application/pdf,application/msword,application/vnd.openxmlformats-officedocument.wordprocessingml.document,image/jpeg,image/png"`
	ExternalCallTimeout time.Duration `env:"EXTERNAL_CALL_TIMEOUT" env-default:"30s"`
}

type ReportConfig struct {
	// JWTSecret enables the admin bearer check on report downloads when set.
	JWTSecret string `env:"REPORT_JWT_SECRET"`
	JWTIssuer string `env:"REPORT_JWT_ISSUER"`
}

type LogConfig struct {
	Level string `env:"LOG_LEVEL" env-default:"info"`
}

// Load reads the environment (plus defaults) into a Config and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config: read env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return &cfg, nil
}

// Validate checks cross-field constraints that struct tags cannot express.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Database.URI) == "" {
		errs = append(errs, errors.New("POSTGRES_URI is required"))
	}

	switch c.Storage.Driver {
	case "drive":
		if c.Storage.FolderID == "" {
			errs = append(errs, errors.New("DRIVE_FOLDER_ID is required for the drive storage driver"))
		}
	case "gcs":
		if c.Storage.Bucket == "" {
			errs = append(errs, errors.New("GCS_BUCKET is required for the gcs storage driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_DRIVER %q", c.Storage.Driver))
	}

	if c.Mail.Enabled {
		if c.Mail.Host == "" {
			errs = append(errs, errors.New("SMTP_HOST is required when mail is enabled"))
		}
		if c.Mail.Sender() == "" {
			errs = append(errs, errors.New("EMAIL_FROM or EMAIL_USER is required when mail is enabled"))
		}
		if len(c.Mail.To) == 0 {
			errs = append(errs, errors.New("EMAIL_TO is required when mail is enabled"))
		}
	}

	switch c.RateLimit.Backend {
	case "memory":
	case "redis":
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required for the redis rate limit backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown RATE_LIMIT_BACKEND %q", c.RateLimit.Backend))
	}
	if c.RateLimit.PerMinute <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_PER_MINUTE must be > 0"))
	}

	if c.Intake.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_BYTES must be > 0"))
	}
	if len(c.Intake.AllowedMimeTypes) == 0 {
		errs = append(errs, errors.New("ALLOWED_MIME_TYPES must not be empty"))
	}

	return errors.Join(errs...)
}
