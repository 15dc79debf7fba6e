package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gymdesk/internal/adapters/email"
	"gymdesk/internal/domain/member"

	"github.com/joho/godotenv"
)

// Environment names
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config holds everything the console reads from its environment.
type Config struct {
	Env  string
	Addr string

	MemberAPIURL string
	FaceAPIURL   string
	FacePageURL  string
	HandoffKey   string

	DBPath string

	CSRFKey              string
	OperatorPasswordHash string

	DefaultDepartment   string
	DefaultDocumentType string
	ListLimit           int

	HTTPTimeout time.Duration
	InsecureTLS bool

	Club  string
	Email email.Config

	LogLevel string
}

// IsProduction reports whether the console runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// Load reads configuration from GYMDESK_* environment variables, loading a
// .env file first outside production.
// PRE: none
// POST: returns a validated config, or the first problem found
func Load() (*Config, error) {
	env := envOrDefault("GYMDESK_ENV", EnvDevelopment)
	if env != EnvProduction {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Warn("config_event", "event", "dotenv_unreadable", "error", err)
		}
		// .env may have set the environment itself.
		env = envOrDefault("GYMDESK_ENV", EnvDevelopment)
	}

	cfg := &Config{
		Env:                  env,
		Addr:                 envOrDefault("GYMDESK_ADDR", ":8080"),
		MemberAPIURL:         strings.TrimRight(envOrDefault("GYMDESK_MEMBER_API_URL", "http://localhost:8000"), "/"),
		FaceAPIURL:           strings.TrimRight(envOrDefault("GYMDESK_FACE_API_URL", "http://localhost:8001"), "/"),
		FacePageURL:          envOrDefault("GYMDESK_FACE_PAGE_URL", "http://localhost:8001/"),
		HandoffKey:           os.Getenv("GYMDESK_HANDOFF_SECRET"),
		DBPath:               envOrDefault("GYMDESK_DB_PATH", "gymdesk.db"),
		CSRFKey:              os.Getenv("GYMDESK_CSRF_KEY"),
		OperatorPasswordHash: os.Getenv("GYMDESK_OPERATOR_PASSWORD_HASH"),
		DefaultDepartment:    envOrDefault("GYMDESK_DEFAULT_DEPARTMENT", member.DepartmentStrength),
		DefaultDocumentType:  envOrDefault("GYMDESK_DEFAULT_DOCUMENT_TYPE", member.DocumentDNI),
		Club:                 envOrDefault("GYMDESK_CLUB_NAME", "el gimnasio"),
		LogLevel:             envOrDefault("GYMDESK_LOG_LEVEL", "info"),
		Email: email.Config{
			Provider:  envOrDefault("GYMDESK_EMAIL_PROVIDER", email.ProviderNoop),
			From:      envOrDefault("GYMDESK_EMAIL_FROM", "Recepción <recepcion@example.com>"),
			ResendKey: os.Getenv("GYMDESK_RESEND_KEY"),
			SES: email.SESConfig{
				Region:          envOrDefault("GYMDESK_SES_REGION", "us-east-1"),
				AccessKeyID:     os.Getenv("GYMDESK_SES_ACCESS_KEY_ID"),
				SecretAccessKey: os.Getenv("GYMDESK_SES_SECRET_ACCESS_KEY"),
			},
		},
	}

	var err error
	if cfg.ListLimit, err = intEnv("GYMDESK_LIST_LIMIT", 10000); err != nil {
		return nil, err
	}
	if cfg.HTTPTimeout, err = durationEnv("GYMDESK_HTTP_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.InsecureTLS, err = boolEnv("GYMDESK_INSECURE_TLS", false); err != nil {
		return nil, err
	}

	if cfg.IsProduction() {
		if cfg.CSRFKey == "" {
			return nil, errors.New("GYMDESK_CSRF_KEY is required in production")
		}
		if cfg.HandoffKey == "" {
			return nil, errors.New("GYMDESK_HANDOFF_SECRET is required in production")
		}
	}
	if cfg.HandoffKey == "" {
		cfg.HandoffKey = "dev-handoff-secret"
	}
	if cfg.CSRFKey == "" {
		cfg.CSRFKey = "dev-csrf-key-32-bytes-long!!!!!!"
	}
	if !isOption(member.Departments, cfg.DefaultDepartment) {
		return nil, fmt.Errorf("GYMDESK_DEFAULT_DEPARTMENT %q is not a known department", cfg.DefaultDepartment)
	}
	if !isOption(member.DocumentTypes, cfg.DefaultDocumentType) {
		return nil, fmt.Errorf("GYMDESK_DEFAULT_DOCUMENT_TYPE %q is not a known document type", cfg.DefaultDocumentType)
	}
	return cfg, nil
}

func isOption(options []member.Option, v string) bool {
	for _, o := range options {
		if o.Value == v {
			return true
		}
	}
	return false
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", key, v)
	}
	return n, nil
}

// durationEnv accepts Go durations ("45s") or a bare number of seconds.
func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration, got %q", key, v)
	}
	return d, nil
}

func boolEnv(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s must be true or false, got %q", key, v)
	}
	return b, nil
}
