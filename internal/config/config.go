package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Relay driver names accepted in relay.driver.
const (
	RelayDriverSimulated = "simulated"
	RelayDriverMQTT      = "mqtt"
)

// ErrInvalidConfig is returned when a loaded value fails validation.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the process configuration read from configs/config.yml and IRRIGATION_* env vars.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	DB        DBConfig        `mapstructure:"db"`
	Log       LogConfig       `mapstructure:"log"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Events    EventsConfig    `mapstructure:"events"`
	Relay     RelayConfig     `mapstructure:"relay"`
	Auth      AuthConfig      `mapstructure:"auth"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
}

type DBConfig struct {
	Path string `mapstructure:"path"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// SchedulerConfig tunes the program engine timing. StepTick is the granularity at which a
// running program observes a stop request.
type SchedulerConfig struct {
	ScanInterval time.Duration `mapstructure:"scan_interval"`
	StepTick     time.Duration `mapstructure:"step_tick"`
	PreemptGrace time.Duration `mapstructure:"preempt_grace"`
}

type EventsConfig struct {
	RetentionDays int `mapstructure:"retention_days"`
}

type RelayConfig struct {
	Driver string     `mapstructure:"driver"`
	MQTT   MQTTConfig `mapstructure:"mqtt"`
}

// MQTTConfig addresses a relay board that listens on <topic_prefix>/relay/<pin>/set.
type MQTTConfig struct {
	Broker      string `mapstructure:"broker"`
	ClientID    string `mapstructure:"client_id"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	TopicPrefix string `mapstructure:"topic_prefix"`
	QoS         int    `mapstructure:"qos"`
	Retained    bool   `mapstructure:"retained"`
}

type AuthConfig struct {
	SigningKey string        `mapstructure:"signing_key"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("db.path", "irrigation.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("scheduler.scan_interval", 30*time.Second)
	v.SetDefault("scheduler.step_tick", time.Second)
	v.SetDefault("scheduler.preempt_grace", time.Second)
	v.SetDefault("events.retention_days", 10)
	v.SetDefault("relay.driver", RelayDriverSimulated)
	v.SetDefault("relay.mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("relay.mqtt.client_id", "irrigation-controller")
	v.SetDefault("relay.mqtt.topic_prefix", "irrigation")
	v.SetDefault("relay.mqtt.qos", 1)
	v.SetDefault("relay.mqtt.retained", true)
	v.SetDefault("auth.signing_key", "change-me")
	v.SetDefault("auth.token_ttl", time.Hour)
}

// Load reads config.yml from the given directories (default "configs"). A missing file is not
// an error: defaults and environment variables still apply.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{"configs"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix("IRRIGATION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would make the controller misbehave at runtime.
func (c *Config) Validate() error {
	if c.Scheduler.ScanInterval <= 0 {
		return fmt.Errorf("%w: scheduler.scan_interval must be positive", ErrInvalidConfig)
	}
	if c.Scheduler.StepTick <= 0 {
		return fmt.Errorf("%w: scheduler.step_tick must be positive", ErrInvalidConfig)
	}
	if c.Scheduler.PreemptGrace < 0 {
		return fmt.Errorf("%w: scheduler.preempt_grace must not be negative", ErrInvalidConfig)
	}
	if c.Events.RetentionDays <= 0 {
		return fmt.Errorf("%w: events.retention_days must be positive", ErrInvalidConfig)
	}
	switch c.Relay.Driver {
	case RelayDriverSimulated, RelayDriverMQTT:
	default:
		return fmt.Errorf("%w: unknown relay.driver %q", ErrInvalidConfig, c.Relay.Driver)
	}
	if c.Relay.MQTT.QoS < 0 || c.Relay.MQTT.QoS > 2 {
		return fmt.Errorf("%w: relay.mqtt.qos must be 0, 1 or 2", ErrInvalidConfig)
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("%w: auth.token_ttl must be positive", ErrInvalidConfig)
	}
	return nil
}
