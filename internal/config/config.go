package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ListenAddr string `yaml:"listen_addr"`
	BaseURL    string `yaml:"base_url"`

	DB struct {
		DSN string `yaml:"dsn"`
	} `yaml:"db"`

	// FilesRoot is the directory served through WebDAV file PROPFINDs.
	FilesRoot string `yaml:"files_root"`

	// DefaultTransparency applies to events whose calendar has no default
	// of its own.
	DefaultTransparency string `yaml:"default_transparency"`

	// LockTimeout bounds how long a request waits for the per-user
	// expansion lock.
	LockTimeout time.Duration `yaml:"lock_timeout"`

	// RefreshCron schedules the background recurring-event refresh; empty
	// disables it.
	RefreshCron string `yaml:"refresh_cron"`

	// RemoteUserHeader names the trusted proxy header carrying the
	// authenticated user's email.
	RemoteUserHeader string `yaml:"remote_user_header"`

	PrometheusEnabled bool     `yaml:"prometheus_enabled"`
	TrustedProxies    []string `yaml:"trusted_proxies"`
}

// Load reads an optional YAML file named by HEARTH_CONFIG, then lets
// environment variables override individual settings.
func Load() (*Config, error) {
	cfg := &Config{}

	if path := os.Getenv("HEARTH_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.ListenAddr = getenvDefault("HEARTH_LISTEN_ADDR", defaultString(cfg.ListenAddr, ":8080"))
	cfg.BaseURL = getenvDefault("HEARTH_BASE_URL", defaultString(cfg.BaseURL, "http://localhost:8080"))
	if v := os.Getenv("HEARTH_DB_DSN"); v != "" {
		cfg.DB.DSN = v
	}

	if cfg.DB.DSN == "" {
		host := os.Getenv("HEARTH_DB_HOST")
		name := os.Getenv("HEARTH_DB_NAME")
		user := os.Getenv("HEARTH_DB_USER")
		password := os.Getenv("HEARTH_DB_PASSWORD")
		port := getenvDefault("HEARTH_DB_PORT", "5432")
		sslmode := getenvDefault("HEARTH_DB_SSLMODE", "disable")

		if host != "" && name != "" && user != "" && password != "" {
			cfg.DB.DSN = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, password, host, port, name, sslmode)
		}
	}

	cfg.FilesRoot = getenvDefault("HEARTH_FILES_ROOT", defaultString(cfg.FilesRoot, "./files"))
	cfg.DefaultTransparency = getenvDefault("HEARTH_DEFAULT_TRANSPARENCY", defaultString(cfg.DefaultTransparency, "opaque"))
	cfg.RefreshCron = getenvDefault("HEARTH_REFRESH_CRON", defaultString(cfg.RefreshCron, "@hourly"))
	cfg.RemoteUserHeader = getenvDefault("HEARTH_REMOTE_USER_HEADER", defaultString(cfg.RemoteUserHeader, "X-Remote-User"))
	cfg.PrometheusEnabled = getenvBool("HEARTH_PROMETHEUS_ENDPOINT_ENABLED", cfg.PrometheusEnabled)
	if proxies := getenvList("HEARTH_TRUSTED_PROXIES"); proxies != nil {
		cfg.TrustedProxies = proxies
	}

	if v := os.Getenv("HEARTH_LOCK_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("HEARTH_LOCK_TIMEOUT: %w", err)
		}
		cfg.LockTimeout = d
	}
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = 10 * time.Second
	}

	switch cfg.DefaultTransparency {
	case "opaque", "transparent":
	default:
		return nil, fmt.Errorf("default transparency must be opaque or transparent, got %q", cfg.DefaultTransparency)
	}

	if cfg.DB.DSN == "" {
		return nil, errors.New("HEARTH_DB_DSN is required (or set HEARTH_DB_HOST, HEARTH_DB_NAME, HEARTH_DB_USER, and HEARTH_DB_PASSWORD)")
	}

	if len(cfg.TrustedProxies) == 0 {
		fmt.Println("WARNING: No HEARTH_TRUSTED_PROXIES configured. Hearth will trust all proxies - Not recommended for public environments.")
	}

	return cfg, nil
}

func defaultString(current, def string) string {
	if current != "" {
		return current
	}
	return def
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		switch strings.ToLower(v) {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
	}
	return def
}

func getenvList(key string) []string {
	if v := os.Getenv(key); v != "" {
		var result []string
		for _, item := range strings.Split(v, ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return nil
}
