package ledger

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the configuration for the ledger application. Values come
// from defaults, then an optional YAML file, then environment variables.
type Config struct {
	HTTPAddr string `yaml:"http_addr"`
	// RepoBackend selects the account store: "pg" for runtime, "mem"
	// for local development and tests.
	RepoBackend string         `yaml:"repo_backend"`
	DatabaseDSN string         `yaml:"database_dsn"`
	Identity    IdentityConfig `yaml:"identity"`
	Push        PushConfig     `yaml:"push"`
}

type IdentityConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

type PushConfig struct {
	URL       string `yaml:"url"`
	ServerKey string `yaml:"server_key"`
}

func DefaultConfig() *Config {
	return &Config{
		HTTPAddr:    "localhost:8080",
		RepoBackend: "pg",
		Identity: IdentityConfig{
			BaseURL: "https://identitytoolkit.googleapis.com",
		},
		Push: PushConfig{
			URL: "https://fcm.googleapis.com/fcm/send",
		},
	}
}

// LoadConfig builds the config from defaults, the YAML file at path
// (skipped when path is empty), and environment overrides.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	setFromEnv(&cfg.HTTPAddr, "HTTP_ADDR")
	setFromEnv(&cfg.RepoBackend, "REPO_BACKEND")
	setFromEnv(&cfg.DatabaseDSN, "DB_DSN")
	setFromEnv(&cfg.Identity.BaseURL, "IDENTITY_BASE_URL")
	setFromEnv(&cfg.Identity.APIKey, "IDENTITY_API_KEY")
	setFromEnv(&cfg.Push.URL, "FCM_URL")
	setFromEnv(&cfg.Push.ServerKey, "FCM_SERVER_KEY")

	return cfg, nil
}

func setFromEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
