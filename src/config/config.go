// Package config loads gridwatch settings from .env, an optional config
// file, GRIDWATCH_* environment variables and command-line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "GRIDWATCH"

// Config holds every runtime setting
type Config struct {
	Broker   string `mapstructure:"broker"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	ClientID string `mapstructure:"client-id"`

	TelemetryTopic string `mapstructure:"telemetry-topic"`
	CommandPrefix  string `mapstructure:"command-prefix"`
	SnapshotTopic  string `mapstructure:"snapshot-topic"`
	Discovery      bool   `mapstructure:"discovery"`
	DryRun         bool   `mapstructure:"dry-run"`

	Debounce time.Duration `mapstructure:"debounce"`
	Refresh  time.Duration `mapstructure:"refresh"`

	Console     bool   `mapstructure:"console"`
	Simulate    bool   `mapstructure:"simulate"`
	MetricsAddr string `mapstructure:"metrics-addr"`
	LogLevel    string `mapstructure:"log-level"`
}

// BrokerURL returns the paho broker address
func (c *Config) BrokerURL() string {
	return fmt.Sprintf("tcp://%s:%d", c.Broker, c.Port)
}

// Validate checks the settings that cannot be defaulted
func (c *Config) Validate() error {
	var errs []error
	if c.Broker == "" {
		errs = append(errs, errors.New("broker must be set"))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port: %d", c.Port))
	}
	if c.TelemetryTopic == "" || c.CommandPrefix == "" {
		errs = append(errs, errors.New("telemetry-topic and command-prefix must be set"))
	}
	if c.Debounce < 0 {
		errs = append(errs, fmt.Errorf("invalid debounce: %s", c.Debounce))
	}
	if c.Refresh <= 0 {
		errs = append(errs, fmt.Errorf("invalid refresh interval: %s", c.Refresh))
	}
	if (c.Username == "") != (c.Password == "") {
		errs = append(errs, errors.New("MQTT username and password must be set together"))
	}
	return errors.Join(errs...)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("broker", "localhost")
	v.SetDefault("port", 1883)
	v.SetDefault("client-id", "")
	v.SetDefault("telemetry-topic", "microgrid/telemetry")
	v.SetDefault("command-prefix", "microgrid/command")
	v.SetDefault("snapshot-topic", "microgrid/snapshot")
	v.SetDefault("discovery", true)
	v.SetDefault("dry-run", false)
	v.SetDefault("debounce", 500*time.Millisecond)
	v.SetDefault("refresh", 8*time.Second)
	v.SetDefault("console", false)
	v.SetDefault("simulate", false)
	v.SetDefault("metrics-addr", "")
	v.SetDefault("log-level", "info")
}

// NewFlagSet declares the command-line flags
func NewFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.String("config", "", "Path to a config file (default: gridwatch.yaml in . or /etc/gridwatch)")
	fs.String("broker", "localhost", "MQTT broker host")
	fs.Int("port", 1883, "MQTT broker port")
	fs.String("client-id", "", "MQTT client id (default: random)")
	fs.String("telemetry-topic", "microgrid/telemetry", "Topic carrying telemetry readings")
	fs.String("command-prefix", "microgrid/command", "Topic prefix for outbound commands")
	fs.String("snapshot-topic", "microgrid/snapshot", "Topic the view-model snapshot is published to")
	fs.Bool("discovery", true, "Publish Home Assistant discovery entities")
	fs.Bool("dry-run", false, "Log outbound commands instead of publishing them")
	fs.Duration("debounce", 500*time.Millisecond, "Delay before re-classifying trends after a reading")
	fs.Duration("refresh", 8*time.Second, "Periodic advisory refresh interval")
	fs.Bool("console", false, "Start the interactive operator console")
	fs.Bool("simulate", false, "Run the built-in telemetry feed simulator")
	fs.String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9100)")
	fs.String("log-level", "info", "Log level: debug, info, warn, error")
	return fs
}

// Load reads configuration. args are the command-line arguments without the
// program name. A missing .env or config file is not an error.
func Load(args []string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("No .env file loaded")
	}

	fs := NewFlagSet("gridwatch")
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if path, _ := fs.GetString("config"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("gridwatch")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/gridwatch")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	// MQTT credentials keep the plain names used in .env files
	_ = v.BindEnv("username", envPrefix+"_USERNAME", "MQTT_USERNAME")
	_ = v.BindEnv("password", envPrefix+"_PASSWORD", "MQTT_PASSWORD")

	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
