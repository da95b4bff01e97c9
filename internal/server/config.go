package server

import (
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/JuweiLin/ARProject/internal/tasks"
	"github.com/JuweiLin/ARProject/pkg/sockpath"
)

// Config is the top-level daemon configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	NATS       NATSConfig       `mapstructure:"nats"`
	Device     DeviceConfig     `mapstructure:"device"`
	Phone      PhoneConfig      `mapstructure:"phone"`
	Headset    HeadsetConfig    `mapstructure:"headset"`
	Experiment ExperimentConfig `mapstructure:"experiment"`
	Log        LogConfig        `mapstructure:"log"`

	// ConfigFile is the file the config was read from, empty if none.
	ConfigFile string `mapstructure:"-"`
}

// ServerConfig holds control socket settings.
type ServerConfig struct {
	Socket string `mapstructure:"socket"`
}

// NATSConfig holds embedded NATS settings. An empty Host keeps the bus
// in-process.
type NATSConfig struct {
	Host  string `mapstructure:"host"`
	Port  int    `mapstructure:"port"`
	Token string `mapstructure:"token"`
}

// DeviceConfig holds device websocket server settings.
type DeviceConfig struct {
	Listen       string        `mapstructure:"listen"`
	PingInterval time.Duration `mapstructure:"ping_interval"`
	PongTimeout  time.Duration `mapstructure:"pong_timeout"`
}

// PhoneConfig holds phone HTTP server settings.
type PhoneConfig struct {
	Listen string `mapstructure:"listen"`
}

// HeadsetConfig holds headset websocket server settings.
type HeadsetConfig struct {
	Listen string `mapstructure:"listen"`
}

// ExperimentConfig holds the task target and where user actions are kept.
type ExperimentConfig struct {
	tasks.Target `mapstructure:",squash"`
	DBPath       string `mapstructure:"db_path"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

func newViper(cfgFile string) *viper.Viper {
	v := viper.New()

	v.SetDefault("server.socket", sockpath.DefaultSocketPath())
	v.SetDefault("device.listen", "0.0.0.0:8765")
	v.SetDefault("device.ping_interval", 5*time.Second)
	v.SetDefault("device.pong_timeout", 5*time.Second)
	v.SetDefault("phone.listen", "0.0.0.0:8080")
	v.SetDefault("headset.listen", "0.0.0.0:8766")
	v.SetDefault("experiment.target_device", tasks.DefaultTarget.Device)
	v.SetDefault("experiment.target_brightness", tasks.DefaultTarget.Brightness)
	v.SetDefault("experiment.target_color", tasks.DefaultTarget.Color)
	v.SetDefault("log.level", "info")

	homeDir, _ := os.UserHomeDir()
	v.SetDefault("experiment.db_path", filepath.Join(homeDir, ".local", "share", "arhub", "actions.db"))

	v.SetConfigType("toml")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("arhub")
		v.AddConfigPath("/etc/arhub")
		v.AddConfigPath("$HOME/.config/arhub")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("ARHUB")
	v.AutomaticEnv()

	v.BindEnv("nats.token", "ARHUB_NATS_TOKEN")
	v.BindEnv("experiment.db_path", "ARHUB_DB_PATH")
	v.BindEnv("log.level", "ARHUB_LOG_LEVEL")
	return v
}

// LoadConfig reads configuration from file and env.
func LoadConfig(cfgFile string) (Config, error) {
	v := newViper(cfgFile)

	// Config file is optional.
	_ = v.ReadInConfig()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	cfg.ConfigFile = v.ConfigFileUsed()
	if _, err := os.Stat(cfg.ConfigFile); err != nil {
		cfg.ConfigFile = ""
	}
	return cfg, nil
}

// WatchExperiment calls fn with the [experiment] section every time cfgFile
// changes on disk.
func WatchExperiment(cfgFile string, fn func(ExperimentConfig)) error {
	v := newViper(cfgFile)
	if err := v.ReadInConfig(); err != nil {
		return err
	}
	v.OnConfigChange(func(fsnotify.Event) {
		var cfg Config
		if err := v.Unmarshal(&cfg); err != nil {
			return
		}
		fn(cfg.Experiment)
	})
	v.WatchConfig()
	return nil
}
