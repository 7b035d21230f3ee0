package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	defaultAccessSecret  = "my-secret-key"
	defaultRefreshSecret = "my-refresh-secret-key"
)

type Config struct {
	Env     string `env:"APP_ENV" envDefault:"dev"`
	Port    int    `env:"PORT" envDefault:"8080"`
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:8080"`
	AppName string `env:"APP_NAME" envDefault:"AuthHub"`

	// STORAGE_DRIVER=memory keeps everything in process; nothing survives a restart.
	StorageDriver string `env:"STORAGE_DRIVER" envDefault:"postgres"`

	DB      DBConfig
	JWT     JWTConfig
	Otp     OtpConfig
	Upload  UploadConfig
	Redis   RedisConfig
	Email   EmailConfig
	Tracing TracingConfig
	HTTP    HTTPConfig
	Worker  WorkerConfig

	// nil means "follow APP_ENV"
	ExposeDevSecrets *bool `env:"EXPOSE_DEV_SECRETS"`
}

type DBConfig struct {
	URL      string `env:"DATABASE_URL"`
	Host     string `env:"DB_HOST" envDefault:"127.0.0.1"`
	Port     string `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"authhub"`
	Password string `env:"DB_PASSWORD" envDefault:"authhub"`
	Name     string `env:"DB_NAME" envDefault:"authhub"`
	SSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`
	MaxConns int32  `env:"DB_MAX_CONNS" envDefault:"5"`
	Migrate  bool   `env:"DB_MIGRATE" envDefault:"true"`
}

type JWTConfig struct {
	AccessSecret  string        `env:"JWT_SECRET" envDefault:"my-secret-key"`
	RefreshSecret string        `env:"JWT_SECRET_REFRESH" envDefault:"my-refresh-secret-key"`
	AccessTTL     time.Duration `env:"EXPIRES_IN" envDefault:"10m"`
	RefreshTTL    time.Duration `env:"EXPIRES_IN_REFRESH" envDefault:"20m"`
	Issuer        string        `env:"JWT_ISSUER" envDefault:"authhub"`
	Audience      string        `env:"JWT_AUDIENCE" envDefault:"authhub-client"`
}

type OtpConfig struct {
	Expiry       time.Duration `env:"OTP_EXPIRY" envDefault:"10m"`
	RateWindow   time.Duration `env:"OTP_RATE_WINDOW" envDefault:"60m"`
	MaxPerWindow int           `env:"OTP_MAX_PER_WINDOW" envDefault:"3"`
}

type UploadConfig struct {
	Driver   string `env:"UPLOAD_DRIVER" envDefault:"disk"`
	Dir      string `env:"UPLOAD_DIR" envDefault:"./uploads/profile"`
	MaxBytes int64  `env:"UPLOAD_MAX_BYTES" envDefault:"1048576"`

	MinioEndpoint  string `env:"MINIO_ENDPOINT"`
	MinioAccessKey string `env:"MINIO_ACCESS_KEY"`
	MinioSecretKey string `env:"MINIO_SECRET_KEY"`
	MinioUseSSL    bool   `env:"MINIO_USE_SSL" envDefault:"false"`
	MinioBucket    string `env:"MINIO_BUCKET_PROFILE" envDefault:"profile-images"`
	MinioPublicURL string `env:"MINIO_PUBLIC_URL"`
}

type RedisConfig struct {
	Addr        string `env:"REDIS_ADDR" envDefault:"127.0.0.1:6379"`
	Password    string `env:"REDIS_PASSWORD"`
	DB          int    `env:"REDIS_DB" envDefault:"0"`
	QueuePrefix string `env:"REDIS_QUEUE_PREFIX" envDefault:"authhub:jobs:email"`
}

type EmailConfig struct {
	// disabled | sync | queue
	Mode string `env:"EMAIL_MODE" envDefault:"disabled"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     string `env:"SMTP_PORT" envDefault:"587"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	SMTPFrom     string `env:"SMTP_FROM"`

	SendTimeout      time.Duration `env:"EMAIL_SEND_TIMEOUT" envDefault:"5s"`
	FailureThreshold int           `env:"EMAIL_FAILURE_THRESHOLD" envDefault:"3"`
	Cooldown         time.Duration `env:"EMAIL_COOLDOWN" envDefault:"15s"`
}

type TracingConfig struct {
	Enabled     bool   `env:"OTEL_ENABLED" envDefault:"false"`
	ServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"authhub"`
	Endpoint    string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4317"`
}

type HTTPConfig struct {
	AllowedOrigins  []string      `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
	AuthRateLimit   int           `env:"AUTH_RATE_LIMIT" envDefault:"20"`
	AuthRateWindow  time.Duration `env:"AUTH_RATE_WINDOW" envDefault:"1m"`
	MaxBodyBytes    int64         `env:"MAX_BODY_BYTES" envDefault:"2097152"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"5s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

type WorkerConfig struct {
	ID              string        `env:"WORKER_ID"`
	Concurrency     int           `env:"WORKER_CONCURRENCY" envDefault:"2"`
	PollWait        time.Duration `env:"WORKER_POLL_WAIT" envDefault:"2s"`
	JobTimeout      time.Duration `env:"WORKER_JOB_TIMEOUT" envDefault:"15s"`
	ShutdownGrace   time.Duration `env:"WORKER_SHUTDOWN_GRACE" envDefault:"10s"`
	HealthPort      int           `env:"WORKER_HEALTH_PORT" envDefault:"8081"`
	PromoteInterval time.Duration `env:"WORKER_PROMOTE_INTERVAL" envDefault:"1s"`
}

// Load reads .env when present, then the process environment.
func Load() (Config, error) {
	// a missing .env is normal outside local development
	_ = godotenv.Load()

	return Parse()
}

// Parse reads configuration from the process environment only.
func Parse() (Config, error) {
	var cfg Config

	err := env.Parse(&cfg)

	if err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	err = cfg.Validate()

	if err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error

	switch c.StorageDriver {
	case "postgres", "memory":
	default:
		errs = append(errs, fmt.Errorf("STORAGE_DRIVER must be postgres or memory, got %q", c.StorageDriver))
	}

	switch c.Upload.Driver {
	case "disk":
	case "minio":
		if c.Upload.MinioEndpoint == "" || c.Upload.MinioBucket == "" {
			errs = append(errs, errors.New("MINIO_ENDPOINT and MINIO_BUCKET_PROFILE are required when UPLOAD_DRIVER=minio"))
		}
	default:
		errs = append(errs, fmt.Errorf("UPLOAD_DRIVER must be disk or minio, got %q", c.Upload.Driver))
	}

	switch c.Email.Mode {
	case "disabled", "queue":
	case "sync":
		if c.Email.SMTPHost == "" || c.Email.SMTPFrom == "" {
			errs = append(errs, errors.New("SMTP_HOST and SMTP_FROM are required when EMAIL_MODE=sync"))
		}
	default:
		errs = append(errs, fmt.Errorf("EMAIL_MODE must be disabled, sync or queue, got %q", c.Email.Mode))
	}

	if _, err := url.Parse(c.BaseURL); err != nil {
		errs = append(errs, fmt.Errorf("BASE_URL: %w", err))
	}

	if c.IsProduction() {
		if c.JWT.AccessSecret == defaultAccessSecret || c.JWT.RefreshSecret == defaultRefreshSecret {
			errs = append(errs, errors.New("JWT_SECRET and JWT_SECRET_REFRESH must be set in production"))
		}
		if c.ExposeDevSecrets != nil && *c.ExposeDevSecrets {
			errs = append(errs, errors.New("EXPOSE_DEV_SECRETS must not be enabled in production"))
		}
	}

	if c.JWT.AccessSecret == c.JWT.RefreshSecret {
		errs = append(errs, errors.New("JWT_SECRET and JWT_SECRET_REFRESH must differ"))
	}

	return errors.Join(errs...)
}

func (c Config) IsProduction() bool {
	return c.Env == "prod" || c.Env == "production"
}

// ExposeSecrets reports whether OTP codes and reset links go into responses.
// Production never exposes them.
func (c Config) ExposeSecrets() bool {
	if c.IsProduction() {
		return false
	}
	if c.ExposeDevSecrets != nil {
		return *c.ExposeDevSecrets
	}
	return c.Env == "dev"
}

// DatabaseURL prefers DATABASE_URL and otherwise assembles one from the DB_* parts.
func (c Config) DatabaseURL() string {
	if c.DB.URL != "" {
		return c.DB.URL
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DB.User, c.DB.Password),
		Host:     c.DB.Host + ":" + c.DB.Port,
		Path:     "/" + c.DB.Name,
		RawQuery: "sslmode=" + url.QueryEscape(c.DB.SSLMode),
	}

	return u.String()
}

func WithTimeout(ctx context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, duration)
}
