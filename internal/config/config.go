package config

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// GameServer holds all configuration for the realm server.
type GameServer struct {
	// Network
	BindAddress string `yaml:"bind_address"`
	Port        int    `yaml:"port"`

	// ProtocolVersion is exchanged in the handshake; clients announcing a
	// different version are told to update and disconnected.
	ProtocolVersion int `yaml:"protocol_version"`

	// Auth
	OfflineMode bool   `yaml:"offline_mode"` // authenticate against the local database
	AuthURL     string `yaml:"auth_url"`     // external provider base URL

	// World content
	MapPath   string `yaml:"map_path"`
	SpawnPath string `yaml:"spawn_path"`

	// Database
	Database DatabaseConfig `yaml:"database"`

	// SyncInterval is the cadence of periodic vitals sync and character
	// saves, in seconds.
	SyncInterval int `yaml:"sync_interval"`

	LogLevel string `yaml:"log_level"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// DefaultGameServer returns GameServer config with sensible defaults.
func DefaultGameServer() GameServer {
	return GameServer{
		BindAddress:     "0.0.0.0",
		Port:            8000,
		ProtocolVersion: 1,
		OfflineMode:     true,
		AuthURL:         "http://127.0.0.1:8080",
		MapPath:         "data/world_map.yaml",
		SpawnPath:       "data/spawns.yaml",
		SyncInterval:    30,
		LogLevel:        "info",
		Database: DatabaseConfig{
			Host:     "127.0.0.1",
			Port:     5432,
			User:     "realmgo",
			Password: "realmgo",
			DBName:   "realmgo",
			SSLMode:  "disable",
		},
	}
}

// LoadGameServer loads server config from a YAML file.
// If the file doesn't exist, returns defaults.
func LoadGameServer(path string) (GameServer, error) {
	cfg := DefaultGameServer()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}

// SlogLevel maps the configured level name to a slog level. Unknown names
// fall back to info.
func (c GameServer) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
