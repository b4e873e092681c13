// Package config loads daemon settings from defaults, a YAML file,
// WEIGHBRIDGE_* environment variables and command-line flags, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sweeney/weighbridge/internal/logger"
	"github.com/sweeney/weighbridge/internal/mqtt"
)

// EnvPrefix is prepended to environment variable names.
const EnvPrefix = "WEIGHBRIDGE"

// Config holds all daemon settings.
type Config struct {
	Poll           time.Duration `mapstructure:"poll"`
	Debounce       time.Duration `mapstructure:"debounce"`
	Stabilization  time.Duration `mapstructure:"stabilization"`
	DisplayTimeout time.Duration `mapstructure:"display_timeout"`
	Threshold      int           `mapstructure:"threshold"`
	FirstDeltaZero bool          `mapstructure:"first_delta_zero"`
	ModeCapacity   int           `mapstructure:"mode_capacity"`
	Heartbeat      time.Duration `mapstructure:"heartbeat"`

	GPIO  GPIOConfig  `mapstructure:"gpio"`
	Scale ScaleConfig `mapstructure:"scale"`
	MQTT  MQTTConfig  `mapstructure:"mqtt"`
	HTTP  HTTPConfig  `mapstructure:"http"`
	DB    DBConfig    `mapstructure:"db"`
	Log   LogConfig   `mapstructure:"log"`

	// Set from flags only.
	ConfigFile string `mapstructure:"-"`
	PrintState bool   `mapstructure:"-"`
}

// GPIOConfig maps the four buttons to GPIO line offsets.
type GPIOConfig struct {
	Chip      string `mapstructure:"chip"`
	ActiveLow bool   `mapstructure:"active_low"`
	Up        int    `mapstructure:"up"`
	Down      int    `mapstructure:"down"`
	Left      int    `mapstructure:"left"`
	Right     int    `mapstructure:"right"`
}

// ScaleConfig configures the HX711 load-cell amplifier.
type ScaleConfig struct {
	DataPin     int     `mapstructure:"dout"`
	ClockPin    int     `mapstructure:"sck"`
	Calibration float64 `mapstructure:"calibration"`
	Samples     int     `mapstructure:"samples"`
	Gain        int     `mapstructure:"gain"`
	// Offset is a saved tare in raw counts; --print-state reports the current one.
	Offset float64 `mapstructure:"offset"`
}

// MQTTConfig configures the broker connection and retry budget.
type MQTTConfig struct {
	Broker         string        `mapstructure:"broker"`
	ClientID       string        `mapstructure:"client_id"`
	Username       string        `mapstructure:"username"`
	Password       string        `mapstructure:"password"`
	Topics         mqtt.Topics   `mapstructure:"topics"`
	Attempts       int           `mapstructure:"attempts"`
	RetryDelay     time.Duration `mapstructure:"retry_delay"`
	Backlog        int           `mapstructure:"backlog"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// HTTPConfig configures the status server.
type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

// DBConfig configures the history database. An empty path disables it.
type DBConfig struct {
	Path string `mapstructure:"path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("poll", 10*time.Millisecond)
	v.SetDefault("debounce", 50*time.Millisecond)
	v.SetDefault("stabilization", 2*time.Second)
	v.SetDefault("display_timeout", 30*time.Second)
	v.SetDefault("threshold", 1)
	v.SetDefault("first_delta_zero", true)
	v.SetDefault("mode_capacity", 10)
	v.SetDefault("heartbeat", 15*time.Minute)

	v.SetDefault("gpio.chip", "gpiochip0")
	v.SetDefault("gpio.active_low", false)
	v.SetDefault("gpio.up", 5)
	v.SetDefault("gpio.down", 6)
	v.SetDefault("gpio.left", 13)
	v.SetDefault("gpio.right", 19)

	v.SetDefault("scale.dout", 23)
	v.SetDefault("scale.sck", 24)
	v.SetDefault("scale.calibration", 392.0)
	v.SetDefault("scale.samples", 16)
	v.SetDefault("scale.gain", 128)
	v.SetDefault("scale.offset", 0.0)

	topics := mqtt.DefaultTopics()
	v.SetDefault("mqtt.broker", "tcp://hassio.local:1883")
	v.SetDefault("mqtt.client_id", "weighbridge")
	v.SetDefault("mqtt.username", "weighbridge")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.topics.state", topics.State)
	v.SetDefault("mqtt.topics.game", topics.Game)
	v.SetDefault("mqtt.topics.system", topics.System)
	v.SetDefault("mqtt.attempts", mqtt.DefaultAttempts)
	v.SetDefault("mqtt.retry_delay", mqtt.DefaultRetryDelay)
	v.SetDefault("mqtt.backlog", mqtt.DefaultBacklog)
	v.SetDefault("mqtt.connect_timeout", 5*time.Second)

	v.SetDefault("http.addr", ":80")
	v.SetDefault("db.path", "/var/lib/weighbridge/history.db")
	v.SetDefault("log.level", logger.InfoLevel)
}

// newFlagSet defines the command-line flags. Flag names match config keys.
func newFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.StringP("config", "c", "", "Configuration file path.")
	fs.Bool("print-state", false, "Print one scale reading and exit.")

	fs.Duration("poll", 0, "Main loop tick interval.")
	fs.Duration("debounce", 0, "Button debounce window.")
	fs.Duration("stabilization", 0, "Time a reading must hold before it is published.")
	fs.Duration("display_timeout", 0, "Blank the display after this long without change (0 disables).")
	fs.Int("threshold", 0, "Readings within this many units of zero are ignored.")
	fs.Bool("first_delta_zero", true, "Report 0 for the first event after entering volume mode.")
	fs.Duration("heartbeat", 0, "Interval between heartbeat system events (0 disables).")

	fs.String("gpio.chip", "", "GPIO chip name.")
	fs.Bool("gpio.active_low", false, "Buttons pull the line low when pressed.")
	fs.Float64("scale.calibration", 0, "HX711 raw counts per gram.")
	fs.Float64("scale.offset", 0, "Saved tare offset in raw counts.")

	fs.StringP("mqtt.broker", "b", "", "MQTT broker URL.")
	fs.String("mqtt.username", "", "MQTT username.")
	fs.String("mqtt.password", "", "MQTT password.")
	fs.Int("mqtt.attempts", 0, "Connect attempts per publish.")
	fs.Duration("mqtt.retry_delay", 0, "Delay between connect attempts.")

	fs.String("http.addr", "", "HTTP status server address (empty disables).")
	fs.String("db.path", "", "History database path (empty disables).")
	fs.StringP("log.level", "v", "", "Log level (debug, info, warn, error).")
	return fs
}

// Load parses args and returns the merged configuration.
func Load(args []string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	fs := newFlagSet("weighbridge")
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	// Only flags given on the command line override other sources.
	var bindErr error
	fs.Visit(func(f *pflag.Flag) {
		if f.Name == "config" || f.Name == "print-state" {
			return
		}
		if err := v.BindPFlag(f.Name, f); err != nil && bindErr == nil {
			bindErr = err
		}
	})
	if bindErr != nil {
		return nil, fmt.Errorf("bind flags: %w", bindErr)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	configFile, _ := fs.GetString("config")
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/weighbridge/")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.ConfigFile = v.ConfigFileUsed()
	cfg.PrintState, _ = fs.GetBool("print-state")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Poll <= 0 {
		return fmt.Errorf("poll must be positive, got %v", c.Poll)
	}
	if c.Debounce <= 0 {
		return fmt.Errorf("debounce must be positive, got %v", c.Debounce)
	}
	if c.Stabilization < 0 || c.DisplayTimeout < 0 {
		return errors.New("durations must not be negative")
	}
	if c.Threshold < 0 {
		return fmt.Errorf("threshold must not be negative, got %d", c.Threshold)
	}
	if c.ModeCapacity < 3 {
		return fmt.Errorf("mode_capacity must hold the three modes, got %d", c.ModeCapacity)
	}
	if c.MQTT.Attempts < 1 {
		return fmt.Errorf("mqtt.attempts must be at least 1, got %d", c.MQTT.Attempts)
	}
	if c.Scale.Calibration == 0 {
		return errors.New("scale.calibration must not be zero")
	}
	switch c.Scale.Gain {
	case 128, 64, 32:
	default:
		return fmt.Errorf("scale.gain must be 128, 64 or 32, got %d", c.Scale.Gain)
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}
