package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// AgentConfig настройки агента: флаги командной строки, переменные FLEET_* и файл
type AgentConfig struct {
	ServerURL      string        `mapstructure:"server_url"`
	DeviceID       string        `mapstructure:"device_id"`
	Token          string        `mapstructure:"token"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	CommandTimeout time.Duration `mapstructure:"command_timeout"`
	USBDuration    time.Duration `mapstructure:"usb_duration"`
	DryRun         bool          `mapstructure:"dry_run"`
	Debug          bool          `mapstructure:"debug"`
}

// NewAgentViper экземпляр viper агента с окружением FLEET_* и значениями по умолчанию
func NewAgentViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("FLEET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setAgentDefaults(v)
	return v
}

func setAgentDefaults(v *viper.Viper) {
	v.SetDefault("server_url", "http://localhost:8080")
	v.SetDefault("device_id", "")
	v.SetDefault("token", "")
	v.SetDefault("poll_interval", "30s")
	v.SetDefault("request_timeout", "10s")
	v.SetDefault("command_timeout", "5m")
	v.SetDefault("usb_duration", "15m")
	v.SetDefault("dry_run", false)
	v.SetDefault("debug", false)
}

// LoadAgent читает конфигурацию агента; файл config_file необязателен.
// Пустой device_id заменяется именем хоста
func LoadAgent(v *viper.Viper) (*AgentConfig, error) {
	if file := v.GetString("config_file"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read agent config: %w", err)
		}
	}

	var cfg AgentConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode agent config: %w", err)
	}

	if cfg.DeviceID == "" {
		hostname, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("device id is not set and hostname is unavailable: %w", err)
		}
		cfg.DeviceID = hostname
	}

	if err := validateAgentConfig(&cfg); err != nil {
		return nil, fmt.Errorf("agent config validation failed: %w", err)
	}

	return &cfg, nil
}

func validateAgentConfig(cfg *AgentConfig) error {
	parsed, err := url.Parse(cfg.ServerURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("invalid server url: %q", cfg.ServerURL)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("unsupported server url scheme: %s", parsed.Scheme)
	}

	if cfg.PollInterval < time.Second {
		return errors.New("poll interval must be at least 1s")
	}

	if cfg.RequestTimeout <= 0 || cfg.CommandTimeout <= 0 {
		return errors.New("timeouts must be positive")
	}

	if cfg.USBDuration <= 0 {
		return errors.New("usb duration must be positive")
	}

	return nil
}
