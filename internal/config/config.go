package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

const (
	DefaultHost          = "0.0.0.0"
	DefaultPort          = 8642
	DefaultCacheCapacity = 1000
	DefaultTokenBudget   = 2400
	DefaultRetrieveLimit = 20
	DefaultRelatedLimit  = 5
	DefaultLogLevel      = "info"
	DefaultStatsSchedule = "0 */10 * * * *"
)

type Config struct {
	Server      ServerConfig      `json:"server"`
	Store       StoreConfig       `json:"store"`
	Router      RouterConfig      `json:"router"`
	Memory      MemoryConfig      `json:"memory"`
	Taxonomy    TaxonomyConfig    `json:"taxonomy"`
	Logging     LoggingConfig     `json:"logging"`
	Maintenance MaintenanceConfig `json:"maintenance"`
}

type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

type StoreConfig struct {
	DBPath string `json:"dbPath,omitempty"`
}

type RouterConfig struct {
	CacheCapacity int `json:"cacheCapacity"`
}

type MemoryConfig struct {
	TokenBudget   int `json:"tokenBudget"`
	RetrieveLimit int `json:"retrieveLimit"`
	RelatedLimit  int `json:"relatedLimit"`
}

type TaxonomyConfig struct {
	Path  string `json:"path,omitempty"`
	Watch bool   `json:"watch"`
}

type LoggingConfig struct {
	Level   string `json:"level"`
	Console bool   `json:"console"`
}

type MaintenanceConfig struct {
	StatsSchedule string `json:"statsSchedule,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: DefaultHost,
			Port: DefaultPort,
		},
		Store: StoreConfig{
			DBPath: filepath.Join(ConfigDir(), "memories.db"),
		},
		Router: RouterConfig{
			CacheCapacity: DefaultCacheCapacity,
		},
		Memory: MemoryConfig{
			TokenBudget:   DefaultTokenBudget,
			RetrieveLimit: DefaultRetrieveLimit,
			RelatedLimit:  DefaultRelatedLimit,
		},
		Logging: LoggingConfig{
			Level:   DefaultLogLevel,
			Console: false,
		},
		Maintenance: MaintenanceConfig{
			StatsSchedule: DefaultStatsSchedule,
		},
	}
}

func ConfigDir() string {
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return filepath.Join(home, ".recall")
}

func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if host := os.Getenv("RECALL_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if port := os.Getenv("RECALL_PORT"); port != "" {
		if parsed, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = parsed
		}
	}
	if dbPath := os.Getenv("RECALL_DB_PATH"); dbPath != "" {
		cfg.Store.DBPath = dbPath
	}
	if capacity := os.Getenv("RECALL_CACHE_CAPACITY"); capacity != "" {
		if parsed, err := strconv.Atoi(capacity); err == nil {
			cfg.Router.CacheCapacity = parsed
		}
	}
	if budget := os.Getenv("RECALL_TOKEN_BUDGET"); budget != "" {
		if parsed, err := strconv.Atoi(budget); err == nil {
			cfg.Memory.TokenBudget = parsed
		}
	}
	if limit := os.Getenv("RECALL_RETRIEVE_LIMIT"); limit != "" {
		if parsed, err := strconv.Atoi(limit); err == nil {
			cfg.Memory.RetrieveLimit = parsed
		}
	}
	if limit := os.Getenv("RECALL_RELATED_LIMIT"); limit != "" {
		if parsed, err := strconv.Atoi(limit); err == nil {
			cfg.Memory.RelatedLimit = parsed
		}
	}
	if path := os.Getenv("RECALL_TAXONOMY_PATH"); path != "" {
		cfg.Taxonomy.Path = path
	}
	if watch := os.Getenv("RECALL_TAXONOMY_WATCH"); watch != "" {
		if parsed, err := strconv.ParseBool(watch); err == nil {
			cfg.Taxonomy.Watch = parsed
		}
	}
	if level := os.Getenv("RECALL_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if console := os.Getenv("RECALL_LOG_CONSOLE"); console != "" {
		if parsed, err := strconv.ParseBool(console); err == nil {
			cfg.Logging.Console = parsed
		}
	}
	if schedule := os.Getenv("RECALL_STATS_SCHEDULE"); schedule != "" {
		cfg.Maintenance.StatsSchedule = schedule
	}

	if cfg.Server.Host == "" {
		cfg.Server.Host = DefaultHost
	}
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = DefaultPort
	}
	if cfg.Store.DBPath == "" {
		cfg.Store.DBPath = DefaultConfig().Store.DBPath
	}
	if cfg.Router.CacheCapacity <= 0 {
		cfg.Router.CacheCapacity = DefaultCacheCapacity
	}
	if cfg.Memory.TokenBudget <= 0 {
		cfg.Memory.TokenBudget = DefaultTokenBudget
	}
	if cfg.Memory.RetrieveLimit <= 0 {
		cfg.Memory.RetrieveLimit = DefaultRetrieveLimit
	}
	if cfg.Memory.RelatedLimit <= 0 {
		cfg.Memory.RelatedLimit = DefaultRelatedLimit
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	if cfg.Maintenance.StatsSchedule == "" {
		cfg.Maintenance.StatsSchedule = DefaultStatsSchedule
	}

	return cfg, nil
}

func SaveConfig(cfg *Config) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(ConfigPath(), data, 0644)
}
