package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/signalsfoundry/bridge-simulator/model"
)

// EnvPrefix prefixes every environment override, e.g. BRIDGE_LOOP_INTERVAL.
const EnvPrefix = "BRIDGE"

// ErrInvalidConfig indicates a loaded value is out of range.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the complete server configuration.
type Config struct {
	LogLevel  string `mapstructure:"logLevel"`
	LogFormat string `mapstructure:"logFormat"`

	Server  ServerConfig  `mapstructure:"server"`
	Loop    LoopConfig    `mapstructure:"loop"`
	Game    GameConfig    `mapstructure:"game"`
	Session SessionConfig `mapstructure:"session"`
	Tracing TracingConfig `mapstructure:"tracing"`
}

// ServerConfig holds listener addresses. An empty address disables the
// listener.
type ServerConfig struct {
	WebsocketAddress string `mapstructure:"websocketAddress"`
	GRPCAddress      string `mapstructure:"grpcAddress"`
	MetricsAddress   string `mapstructure:"metricsAddress"`
}

// LoopConfig configures the game loop.
type LoopConfig struct {
	Interval    time.Duration `mapstructure:"interval"`
	Accelerated bool          `mapstructure:"accelerated"`
	InboxSize   int           `mapstructure:"inboxSize"`
}

// GameConfig configures the simulated world.
type GameConfig struct {
	QueueCapacity int     `mapstructure:"queueCapacity"`
	SensorRange   float64 `mapstructure:"sensorRange"`
	Scenario      string  `mapstructure:"scenario"`
}

// SessionConfig configures websocket sessions.
type SessionConfig struct {
	MailboxSize  int           `mapstructure:"mailboxSize"`
	Codec        string        `mapstructure:"codec"`
	CommandRate  float64       `mapstructure:"commandRate"`
	CommandBurst int           `mapstructure:"commandBurst"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout"`
}

// TracingConfig mirrors observability.TracingConfig.
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	ServiceName string  `mapstructure:"serviceName"`
	Exporter    string  `mapstructure:"exporter"`
	Endpoint    string  `mapstructure:"endpoint"`
	SampleRatio float64 `mapstructure:"sampleRatio"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logLevel", "info")
	v.SetDefault("logFormat", "text")

	v.SetDefault("server.websocketAddress", ":8080")
	v.SetDefault("server.grpcAddress", ":9090")
	v.SetDefault("server.metricsAddress", ":9100")

	v.SetDefault("loop.interval", model.TickInterval.String())
	v.SetDefault("loop.accelerated", false)
	v.SetDefault("loop.inboxSize", 1024)

	v.SetDefault("game.queueCapacity", 10000)
	v.SetDefault("game.sensorRange", model.SensorRange)
	v.SetDefault("game.scenario", "")

	v.SetDefault("session.mailboxSize", 256)
	v.SetDefault("session.codec", "json")
	v.SetDefault("session.commandRate", 20.0)
	v.SetDefault("session.commandBurst", 40)
	v.SetDefault("session.writeTimeout", "5s")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.serviceName", "bridge-server")
	v.SetDefault("tracing.exporter", "stdout")
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.sampleRatio", 1.0)
}

// Load reads defaults, then the optional config file at path (any format
// viper understands, chosen by extension), then BRIDGE_* environment
// overrides.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default returns the configuration with no file and no overrides applied.
func Default() Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return cfg
}

// Validate reports the first out-of-range value.
func (c Config) Validate() error {
	switch {
	case c.Loop.Interval <= 0:
		return fmt.Errorf("%w: loop.interval must be positive, got %s", ErrInvalidConfig, c.Loop.Interval)
	case c.Game.QueueCapacity <= 0:
		return fmt.Errorf("%w: game.queueCapacity must be positive, got %d", ErrInvalidConfig, c.Game.QueueCapacity)
	case c.Game.SensorRange <= 0:
		return fmt.Errorf("%w: game.sensorRange must be positive, got %v", ErrInvalidConfig, c.Game.SensorRange)
	case c.Session.MailboxSize <= 0:
		return fmt.Errorf("%w: session.mailboxSize must be positive, got %d", ErrInvalidConfig, c.Session.MailboxSize)
	case c.Session.CommandRate < 0:
		return fmt.Errorf("%w: session.commandRate must not be negative", ErrInvalidConfig)
	case c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1:
		return fmt.Errorf("%w: tracing.sampleRatio must be within [0,1], got %v", ErrInvalidConfig, c.Tracing.SampleRatio)
	}
	switch strings.ToLower(c.Session.Codec) {
	case "json", "msgpack":
	default:
		return fmt.Errorf("%w: session.codec must be json or msgpack, got %q", ErrInvalidConfig, c.Session.Codec)
	}
	return nil
}
