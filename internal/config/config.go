package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
)

type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Security    SecurityConfig    `mapstructure:"security"`
	Queue       QueueConfig       `mapstructure:"queue"`
	Registry    RegistryConfig    `mapstructure:"registry"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int32  `mapstructure:"max_conns"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type SecurityConfig struct {
	// AgentToken общий токен агентов; пустой отключает проверку
	AgentToken     string   `mapstructure:"agent_token"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type QueueConfig struct {
	// StuckAfter число выдач, после которого команда считается зависшей
	StuckAfter         int           `mapstructure:"stuck_after"`
	DefaultUSBDuration time.Duration `mapstructure:"default_usb_duration"`
	MaxUSBDuration     time.Duration `mapstructure:"max_usb_duration"`
	EventsChannel      string        `mapstructure:"events_channel"`
}

type RegistryConfig struct {
	LivenessThreshold time.Duration `mapstructure:"liveness_threshold"`
	ReportHistory     int           `mapstructure:"report_history"`
}

type MaintenanceConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Schedule        string        `mapstructure:"schedule"`
	ReportRetention time.Duration `mapstructure:"report_retention"`
}

type AppConfig struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
}

// Load читает configs/config.yaml; переменные окружения FLEET_* перекрывают файл
func Load() (*Config, error) {
	return LoadFrom("configs")
}

func LoadFrom(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	v.SetEnvPrefix("FLEET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var errViper viper.ConfigFileNotFoundError
		if errors.As(err, &errViper) {
			slog.Warn("config file not found, using defaults")
		} else {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config, %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed, %w", err)
	}

	slog.Info("configuration loaded successfully")
	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "fleetguard")
	v.SetDefault("app.version", "dev")

	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")

	// database defaults
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "fleet")
	v.SetDefault("database.password", "fleet")
	v.SetDefault("database.dbname", "fleet")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)

	// redis defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetDefault("security.agent_token", "")
	v.SetDefault("security.allowed_origins", []string{"*"})

	v.SetDefault("queue.stuck_after", 5)
	v.SetDefault("queue.default_usb_duration", "15m")
	v.SetDefault("queue.max_usb_duration", "24h")
	v.SetDefault("queue.events_channel", "command_events")

	v.SetDefault("registry.liveness_threshold", "2m")
	v.SetDefault("registry.report_history", 100)

	v.SetDefault("maintenance.enabled", true)
	v.SetDefault("maintenance.schedule", "@every 1m")
	v.SetDefault("maintenance.report_retention", "720h") // 30 days
}

func validateConfig(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", cfg.Server.Port)
	}

	if cfg.Server.Mode != "debug" && cfg.Server.Mode != "release" && cfg.Server.Mode != "test" {
		return fmt.Errorf("invalid server mode %s", cfg.Server.Mode)
	}

	if cfg.Database.Enabled {
		if cfg.Database.Host == "" {
			return errors.New("database host is required")
		}
		if cfg.Database.DBName == "" {
			return errors.New("database name is required")
		}
	}

	if cfg.Redis.Enabled && cfg.Redis.Addr == "" {
		return errors.New("redis address is required")
	}

	if cfg.Queue.DefaultUSBDuration <= 0 || cfg.Queue.MaxUSBDuration < cfg.Queue.DefaultUSBDuration {
		return fmt.Errorf("invalid usb durations: default %s, max %s",
			cfg.Queue.DefaultUSBDuration, cfg.Queue.MaxUSBDuration)
	}

	if cfg.Queue.EventsChannel == "" {
		return errors.New("queue events channel is required")
	}

	if cfg.Registry.LivenessThreshold <= 0 {
		return fmt.Errorf("invalid liveness threshold %s", cfg.Registry.LivenessThreshold)
	}

	if cfg.Security.AgentToken == "" {
		slog.Warn("agent token is empty - agent endpoints are not authenticated")
	}

	return nil
}

// возвращает DSN строку для PostgreSQL
func (d *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

// возвращает настройки для Redis клиента
func (r *RedisConfig) GetRedisOptions() *redis.Options {
	return &redis.Options{
		Addr:            r.Addr,
		Password:        r.Password,
		DB:              r.DB,
		DisableIdentity: true,
	}
}
