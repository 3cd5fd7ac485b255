package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env       string
	Addr      string
	PublicURL *url.URL
	DBDSN     string
	LogLevel  string

	JWTSecret  string
	SessionTTL time.Duration

	SMTP SMTPConfig

	AdminBootstrapName     string
	AdminBootstrapEmail    string
	AdminBootstrapPassword string
}

type SMTPConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	FromName  string
	FromEmail string
	TLSMode   string
}

func (c SMTPConfig) Configured() bool {
	return c.Host != "" && c.FromEmail != ""
}

func Load() (Config, error) {
	_ = godotenv.Load()
	return LoadFromEnv(os.Getenv)
}

func LoadFromEnv(getenv func(string) string) (Config, error) {
	cfg := Config{
		Env:       getenv("APP_ENV"),
		Addr:      getenv("APP_ADDR"),
		DBDSN:     getenv("APP_DB_DSN"),
		LogLevel:  getenv("APP_LOG_LEVEL"),
		JWTSecret: getenv("APP_JWT_SECRET"),
	}

	if cfg.Env == "" {
		cfg.Env = "dev"
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8080"
	}

	switch cfg.Env {
	case "dev", "prod", "test":
	default:
		return Config{}, errors.New("APP_ENV: must be one of dev, test, prod")
	}

	publicURLRaw := getenv("APP_PUBLIC_URL")
	if publicURLRaw != "" {
		parsed, err := url.Parse(publicURLRaw)
		if err != nil {
			return Config{}, fmt.Errorf("APP_PUBLIC_URL: %w", err)
		}
		if !parsed.IsAbs() || parsed.Host == "" {
			return Config{}, errors.New("APP_PUBLIC_URL: must be an absolute URL")
		}
		switch parsed.Scheme {
		case "http", "https":
		default:
			return Config{}, errors.New("APP_PUBLIC_URL: scheme must be http or https")
		}
		cfg.PublicURL = parsed
	}

	ttlRaw := getenv("APP_SESSION_TTL")
	if ttlRaw == "" {
		cfg.SessionTTL = 90 * 24 * time.Hour
	} else {
		ttl, err := time.ParseDuration(ttlRaw)
		if err != nil {
			return Config{}, fmt.Errorf("APP_SESSION_TTL: %w", err)
		}
		if ttl <= 0 {
			return Config{}, errors.New("APP_SESSION_TTL: must be > 0")
		}
		cfg.SessionTTL = ttl
	}

	smtp, err := loadSMTP(getenv)
	if err != nil {
		return Config{}, err
	}
	cfg.SMTP = smtp

	cfg.AdminBootstrapName = strings.TrimSpace(getenv("APP_ADMIN_BOOTSTRAP_NAME"))
	cfg.AdminBootstrapEmail = strings.TrimSpace(strings.ToLower(getenv("APP_ADMIN_BOOTSTRAP_EMAIL")))
	cfg.AdminBootstrapPassword = getenv("APP_ADMIN_BOOTSTRAP_PASSWORD")

	if cfg.AdminBootstrapPassword != "" && cfg.AdminBootstrapEmail == "" {
		return Config{}, errors.New("APP_ADMIN_BOOTSTRAP_EMAIL: required when APP_ADMIN_BOOTSTRAP_PASSWORD is set")
	}
	if cfg.AdminBootstrapPassword != "" && cfg.AdminBootstrapName == "" {
		cfg.AdminBootstrapName = "admin"
	}

	if cfg.IsProd() {
		if cfg.PublicURL == nil {
			return Config{}, errors.New("APP_PUBLIC_URL: required in prod")
		}
		if cfg.DBDSN == "" {
			return Config{}, errors.New("APP_DB_DSN: required in prod")
		}
		if len(cfg.JWTSecret) < 32 {
			return Config{}, errors.New("APP_JWT_SECRET: must be at least 32 bytes in prod")
		}
	}

	return cfg, nil
}

func loadSMTP(getenv func(string) string) (SMTPConfig, error) {
	smtp := SMTPConfig{
		Host:      getenv("APP_SMTP_HOST"),
		Username:  getenv("APP_SMTP_USERNAME"),
		Password:  getenv("APP_SMTP_PASSWORD"),
		FromName:  getenv("APP_SMTP_FROM_NAME"),
		FromEmail: strings.TrimSpace(strings.ToLower(getenv("APP_SMTP_FROM_EMAIL"))),
		TLSMode:   getenv("APP_SMTP_TLS_MODE"),
	}

	portRaw := getenv("APP_SMTP_PORT")
	if portRaw == "" {
		smtp.Port = 587
	} else {
		port, err := strconv.Atoi(portRaw)
		if err != nil || port <= 0 || port > 65535 {
			return SMTPConfig{}, errors.New("APP_SMTP_PORT: must be a valid port number")
		}
		smtp.Port = port
	}

	switch smtp.TLSMode {
	case "", "starttls", "tls", "none":
	default:
		return SMTPConfig{}, errors.New("APP_SMTP_TLS_MODE: must be one of starttls, tls, none")
	}

	return smtp, nil
}

func (c Config) IsProd() bool { return c.Env == "prod" }
