package models

import "time"

// Config represents the application configuration
type Config struct {
	Store     StoreConfig
	Scheduler SchedulerConfig
	Host      HostConfig
	Server    ServerConfig
	RulesFile string
}

// StoreConfig selects and configures the key-value backend
type StoreConfig struct {
	Backend  string // memory, sqlite or redis
	Database DatabaseConfig
	Redis    RedisConfig
	Memory   MemoryConfig
}

// DatabaseConfig holds SQLite connection settings
type DatabaseConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
	CleanupInterval time.Duration
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	DialTimeout time.Duration
}

// MemoryConfig holds in-process store settings
type MemoryConfig struct {
	CleanupInterval time.Duration
}

// SchedulerConfig holds asteroid post scheduling settings
type SchedulerConfig struct {
	AsteroidTTL   time.Duration
	PostInterval  time.Duration
	RetryInterval time.Duration
	Community     string
	Enabled       bool
}

// HostConfig holds content host settings
type HostConfig struct {
	WebhookURL string
	Timeout    time.Duration
}

// ServerConfig holds webview server settings
type ServerConfig struct {
	Addr              string
	MessagesPerSecond float64
	Burst             int
	ReadLimit         int64
}
