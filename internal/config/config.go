package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

type Config struct {
	DataDir       string `json:"data_dir"`
	LogLevel      string `json:"log_level"`
	MaxConcurrent int    `json:"max_concurrent"`
	Director      struct {
		URL    string `json:"url"`
		Token  string `json:"token"`
		UserID string `json:"user_id"`
	} `json:"director"`
	History struct {
		Backend    string `json:"backend"`
		SQLitePath string `json:"sqlite_path"`
	} `json:"history"`
	Cache struct {
		PruneSchedule string `json:"prune_schedule"`
		MaxAgeHours   int    `json:"max_age_hours"`
	} `json:"cache"`
	Welcome struct {
		Patterns []string `json:"patterns"`
	} `json:"welcome"`
	HTTP struct {
		Enabled bool   `json:"enabled"`
		Listen  string `json:"listen"`
	} `json:"http"`
}

// DefaultPath returns ~/.deckster/config.json.
func DefaultPath() string {
	return filepath.Join(os.Getenv("HOME"), ".deckster", "config.json")
}

// Load reads the config at path, writing one with defaults if none exists.
// Environment variables take precedence over the file.
func Load(path string) (*Config, error) {
	cfg := &Config{
		DataDir:       filepath.Join(os.Getenv("HOME"), ".deckster"),
		MaxConcurrent: 2,
	}
	cfg.LogLevel = "info"
	cfg.Director.URL = "ws://localhost:8000/ws"
	cfg.History.Backend = "jsonl"
	cfg.Cache.PruneSchedule = "@daily"
	cfg.Cache.MaxAgeHours = 24 * 30
	cfg.HTTP.Listen = "127.0.0.1:8787"

	// Load from file if exists, otherwise write defaults
	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if os.IsNotExist(err) {
		if err := Save(path, cfg); err != nil {
			return nil, err
		}
	}

	// Override from env (highest precedence)
	if v := os.Getenv("DECKSTER_DIRECTOR_URL"); v != "" {
		cfg.Director.URL = v
	}
	if v := os.Getenv("DECKSTER_DIRECTOR_TOKEN"); v != "" {
		cfg.Director.Token = v
	}
	if v := os.Getenv("DECKSTER_USER_ID"); v != "" {
		cfg.Director.UserID = v
	}
	if v := os.Getenv("DECKSTER_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}

	return cfg, nil
}

// SQLitePath returns the configured database path, defaulting to
// <data_dir>/history.db.
func (c *Config) SQLitePath() string {
	if c.History.SQLitePath != "" {
		return c.History.SQLitePath
	}
	return filepath.Join(c.DataDir, "history.db")
}

// CacheMaxAge returns cache.max_age_hours as a duration.
func (c *Config) CacheMaxAge() time.Duration {
	return time.Duration(c.Cache.MaxAgeHours) * time.Hour
}

// Save writes cfg to path atomically, creating the directory if needed.
func Save(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return writeAtomic(path, data)
}

func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data = append(data, '\n')
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}

// ToMap converts cfg to a nested map via its JSON form, so numbers come back
// as float64.
func ToMap(cfg *Config) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return m, nil
}

// ListValues returns every config value keyed by dotted path, with secrets
// masked when mask is set.
func ListValues(cfg *Config, mask bool) (map[string]any, error) {
	m, err := ToMap(cfg)
	if err != nil {
		return nil, err
	}
	flat := Flatten(m)
	if mask {
		flat = MaskSecrets(flat)
	}
	return flat, nil
}

// readRaw returns the file's flattened contents, including keys Config
// does not know about.
func readRaw(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return Flatten(m), nil
}

// GetValue returns the value stored under a dotted key.
func GetValue(path, key string) (any, error) {
	if _, err := Load(path); err != nil {
		return nil, err
	}
	flat, err := readRaw(path)
	if err != nil {
		return nil, err
	}
	v, ok := flat[key]
	if !ok {
		return nil, fmt.Errorf("unknown config key: %s", key)
	}
	return v, nil
}

// SetValue stores value under a dotted key. The value is parsed as a JSON
// literal when it is one (numbers, booleans, arrays) and kept as a string
// otherwise. The config file must already exist.
func SetValue(path, key, value string) error {
	flat, err := readRaw(path)
	if err != nil {
		return err
	}

	var parsed any
	if err := json.Unmarshal([]byte(value), &parsed); err != nil {
		parsed = value
	}
	flat[key] = parsed

	data, err := json.MarshalIndent(Unflatten(flat), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return writeAtomic(path, data)
}
