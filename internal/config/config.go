// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Store      StoreConfig      `yaml:"store"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	LevelDB    LevelDBConfig    `yaml:"leveldb"`
	Redis      RedisConfig      `yaml:"redis"`
	NATS       NATSConfig       `yaml:"nats"`
	Worker     WorkerConfig     `yaml:"worker"`
	Scheduling SchedulingConfig `yaml:"scheduling"`
	Tasks      TasksConfig      `yaml:"tasks"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         string `yaml:"port"`
	ReadTimeout  int    `yaml:"readTimeout"`
	WriteTimeout int    `yaml:"writeTimeout"`
}

// StoreConfig selects the task store backend
type StoreConfig struct {
	Driver string `yaml:"driver"` // memory, leveldb or postgres
}

// PostgresConfig holds PostgreSQL configuration
type PostgresConfig struct {
	URL string `yaml:"-"`
}

// LevelDBConfig holds LevelDB configuration
type LevelDBConfig struct {
	Path           string `yaml:"path"`
	ResultCacheTTL int    `yaml:"resultCacheTTL"` // seconds
}

// RedisConfig holds the notification store configuration. Empty Addr keeps notifications in memory.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"-"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"keyPrefix"`
}

// NATSConfig holds event publishing configuration. Empty URL disables publishing.
type NATSConfig struct {
	URL                 string `yaml:"url"`
	NotificationSubject string `yaml:"notificationSubject"`
	StatusSubject       string `yaml:"statusSubject"`
}

// WorkerConfig holds worker pool configuration
type WorkerConfig struct {
	PoolSize        int `yaml:"poolSize"`
	MaxQueueSize    int `yaml:"maxQueueSize"`
	ShutdownTimeout int `yaml:"shutdownTimeout"` // seconds
	SyncTimeout     int `yaml:"syncTimeout"`     // seconds
}

// SchedulingConfig holds the periodic check intervals in seconds
type SchedulingConfig struct {
	ReadyPollSeconds         int `yaml:"readyPollSeconds"`
	NotificationCheckSeconds int `yaml:"notificationCheckSeconds"`
	HealthCheckSeconds       int `yaml:"healthCheckSeconds"`
}

// TasksConfig tunes the built-in task types
type TasksConfig struct {
	PiStepDelayMillis int `yaml:"piStepDelayMillis"`
	ReportDelayMillis int `yaml:"reportDelayMillis"`
}

// LoggingConfig holds logger configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default configuration values
const (
	DefaultServerPort               = "8080"
	DefaultServerReadTimeout        = 30
	DefaultServerWriteTimeout       = 30
	DefaultStoreDriver              = "memory"
	DefaultLevelDBPath              = "./data/leveldb"
	DefaultResultCacheTTL           = 24 * 60 * 60
	DefaultRedisKeyPrefix           = "taskflow"
	DefaultNotificationSubject      = "taskflow.notifications"
	DefaultStatusSubject            = "taskflow.status"
	DefaultPoolSize                 = 5
	DefaultMaxQueueSize             = 100
	DefaultShutdownTimeout          = 60
	DefaultSyncTimeout              = 300
	DefaultReadyPollSeconds         = 60
	DefaultNotificationCheckSeconds = 60
	DefaultHealthCheckSeconds       = 60
	DefaultPiStepDelayMillis        = 100
	DefaultReportDelayMillis        = 10000
	DefaultLogLevel                 = "INFO"
	DefaultLogFormat                = "json"
)

const (
	StoreMemory   = "memory"
	StoreLevelDB  = "leveldb"
	StorePostgres = "postgres"
)

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an environment variable as integer or returns a default value
func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func orString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func orInt(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

// Load reads the YAML file at configPath (optional when empty), fills in
// defaults and applies TASKFLOW_* environment overrides.
func Load(configPath string) (*Config, error) {
	var config Config

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	// Environment wins over file values, file values over defaults
	config.Server = ServerConfig{
		Port:         getEnv("TASKFLOW_SERVER_PORT", orString(config.Server.Port, DefaultServerPort)),
		ReadTimeout:  getEnvInt("TASKFLOW_SERVER_READ_TIMEOUT", orInt(config.Server.ReadTimeout, DefaultServerReadTimeout)),
		WriteTimeout: getEnvInt("TASKFLOW_SERVER_WRITE_TIMEOUT", orInt(config.Server.WriteTimeout, DefaultServerWriteTimeout)),
	}

	config.Store = StoreConfig{
		Driver: getEnv("TASKFLOW_STORE_DRIVER", orString(config.Store.Driver, DefaultStoreDriver)),
	}

	config.Postgres = PostgresConfig{
		URL: os.Getenv("TASKFLOW_POSTGRES_URL"),
	}

	config.LevelDB = LevelDBConfig{
		Path:           getEnv("TASKFLOW_LEVELDB_PATH", orString(config.LevelDB.Path, DefaultLevelDBPath)),
		ResultCacheTTL: getEnvInt("TASKFLOW_LEVELDB_RESULT_CACHE_TTL", orInt(config.LevelDB.ResultCacheTTL, DefaultResultCacheTTL)),
	}

	config.Redis = RedisConfig{
		Addr:      getEnv("TASKFLOW_REDIS_ADDR", config.Redis.Addr),
		Password:  os.Getenv("TASKFLOW_REDIS_PASSWORD"),
		DB:        getEnvInt("TASKFLOW_REDIS_DB", config.Redis.DB),
		KeyPrefix: getEnv("TASKFLOW_REDIS_KEY_PREFIX", orString(config.Redis.KeyPrefix, DefaultRedisKeyPrefix)),
	}

	config.NATS = NATSConfig{
		URL:                 getEnv("TASKFLOW_NATS_URL", config.NATS.URL),
		NotificationSubject: getEnv("TASKFLOW_NATS_NOTIFICATION_SUBJECT", orString(config.NATS.NotificationSubject, DefaultNotificationSubject)),
		StatusSubject:       getEnv("TASKFLOW_NATS_STATUS_SUBJECT", orString(config.NATS.StatusSubject, DefaultStatusSubject)),
	}

	config.Worker = WorkerConfig{
		PoolSize:        getEnvInt("TASKFLOW_WORKER_POOL_SIZE", orInt(config.Worker.PoolSize, DefaultPoolSize)),
		MaxQueueSize:    getEnvInt("TASKFLOW_WORKER_MAX_QUEUE_SIZE", orInt(config.Worker.MaxQueueSize, DefaultMaxQueueSize)),
		ShutdownTimeout: getEnvInt("TASKFLOW_WORKER_SHUTDOWN_TIMEOUT", orInt(config.Worker.ShutdownTimeout, DefaultShutdownTimeout)),
		SyncTimeout:     getEnvInt("TASKFLOW_WORKER_SYNC_TIMEOUT", orInt(config.Worker.SyncTimeout, DefaultSyncTimeout)),
	}

	config.Scheduling = SchedulingConfig{
		ReadyPollSeconds:         getEnvInt("TASKFLOW_READY_POLL_SECONDS", orInt(config.Scheduling.ReadyPollSeconds, DefaultReadyPollSeconds)),
		NotificationCheckSeconds: getEnvInt("TASKFLOW_NOTIFICATION_CHECK_SECONDS", orInt(config.Scheduling.NotificationCheckSeconds, DefaultNotificationCheckSeconds)),
		HealthCheckSeconds:       getEnvInt("TASKFLOW_HEALTH_CHECK_SECONDS", orInt(config.Scheduling.HealthCheckSeconds, DefaultHealthCheckSeconds)),
	}

	config.Tasks = TasksConfig{
		PiStepDelayMillis: getEnvInt("TASKFLOW_PI_STEP_DELAY_MILLIS", orInt(config.Tasks.PiStepDelayMillis, DefaultPiStepDelayMillis)),
		ReportDelayMillis: getEnvInt("TASKFLOW_REPORT_DELAY_MILLIS", orInt(config.Tasks.ReportDelayMillis, DefaultReportDelayMillis)),
	}

	config.Logging = LoggingConfig{
		Level:  getEnv("TASKFLOW_LOG_LEVEL", orString(config.Logging.Level, DefaultLogLevel)),
		Format: getEnv("TASKFLOW_LOG_FORMAT", orString(config.Logging.Format, DefaultLogFormat)),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks values that would make the scheduler unusable
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case StoreMemory, StoreLevelDB:
	case StorePostgres:
		if c.Postgres.URL == "" {
			return fmt.Errorf("TASKFLOW_POSTGRES_URL environment variable is required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}

	if c.Worker.PoolSize <= 0 {
		return fmt.Errorf("worker pool size must be positive, got %d", c.Worker.PoolSize)
	}
	if c.Worker.MaxQueueSize <= 0 {
		return fmt.Errorf("worker max queue size must be positive, got %d", c.Worker.MaxQueueSize)
	}
	if c.Scheduling.ReadyPollSeconds <= 0 || c.Scheduling.NotificationCheckSeconds <= 0 || c.Scheduling.HealthCheckSeconds <= 0 {
		return fmt.Errorf("scheduling intervals must be positive")
	}
	return nil
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

func (w WorkerConfig) ShutdownTimeoutDuration() time.Duration { return seconds(w.ShutdownTimeout) }
func (w WorkerConfig) SyncTimeoutDuration() time.Duration     { return seconds(w.SyncTimeout) }

func (s SchedulingConfig) ReadyPollInterval() time.Duration { return seconds(s.ReadyPollSeconds) }
func (s SchedulingConfig) NotificationCheckInterval() time.Duration {
	return seconds(s.NotificationCheckSeconds)
}
func (s SchedulingConfig) HealthCheckInterval() time.Duration { return seconds(s.HealthCheckSeconds) }

func (t TasksConfig) PiStepDelay() time.Duration {
	return time.Duration(t.PiStepDelayMillis) * time.Millisecond
}
func (t TasksConfig) ReportDelay() time.Duration {
	return time.Duration(t.ReportDelayMillis) * time.Millisecond
}
