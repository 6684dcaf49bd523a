package config

import (
	"fmt"
	"os"
	"strconv"

	"simunet-portal/core/models"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	ServerPort        string        `yaml:"server_port"`
	Storage           StorageConfig `yaml:"storage"`
	StuckAfterMinutes int           `yaml:"stuck_after_minutes"`
	MonitorMinutes    int           `yaml:"monitor_minutes"`
	Users             []UserEntry   `yaml:"users"`
}

// StorageConfig selects and parameterizes the persistence driver
type StorageConfig struct {
	Driver      string `yaml:"driver"` // memory | sqlite | postgres
	DatabaseURL string `yaml:"database_url"`
	SQLitePath  string `yaml:"sqlite_path"`
}

// UserEntry is one actor in the portal's user directory. The boundary
// layer resolves request identities against this list.
type UserEntry struct {
	ID             string   `yaml:"id"`
	Name           string   `yaml:"name"`
	Role           string   `yaml:"role"`
	Sites          []string `yaml:"sites"`
	ExplicitJobIDs []string `yaml:"explicit_job_ids"`
}

// Load reads the optional YAML config at path, then applies environment
// variable overrides. A missing path yields pure defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{
		ServerPort: "8080",
		Storage: StorageConfig{
			Driver:     "memory",
			SQLitePath: "data/portal.db",
		},
		StuckAfterMinutes: 180,
		MonitorMinutes:    15,
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.ServerPort = getEnv("SERVER_PORT", cfg.ServerPort)
	cfg.Storage.Driver = getEnv("STORAGE_DRIVER", cfg.Storage.Driver)
	cfg.Storage.DatabaseURL = getEnv("DATABASE_URL", cfg.Storage.DatabaseURL)
	cfg.Storage.SQLitePath = getEnv("SQLITE_PATH", cfg.Storage.SQLitePath)
	cfg.StuckAfterMinutes = getEnvInt("STUCK_AFTER_MINUTES", cfg.StuckAfterMinutes)
	cfg.MonitorMinutes = getEnvInt("MONITOR_MINUTES", cfg.MonitorMinutes)

	return cfg, nil
}

// UserDirectory converts the configured users into resolvable profiles
// keyed by id.
func (c *Config) UserDirectory() map[string]*models.UserProfile {
	users := make(map[string]*models.UserProfile, len(c.Users))
	for _, entry := range c.Users {
		users[entry.ID] = &models.UserProfile{
			ID:   entry.ID,
			Name: entry.Name,
			Role: models.Role(entry.Role),
			Scope: models.UserScope{
				Sites:          entry.Sites,
				ExplicitJobIDs: entry.ExplicitJobIDs,
			},
		}
	}
	return users
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
