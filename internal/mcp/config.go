package mcp

import (
	"github.com/spf13/viper"

	"github.com/JuweiLin/ARProject/pkg/sockpath"
)

// Config holds all configuration for the MCP server.
type Config struct {
	Daemon DaemonConfig `mapstructure:"daemon"`
	Phone  PhoneConfig  `mapstructure:"phone"`
}

// DaemonConfig holds settings for connecting to the arhubd control API.
type DaemonConfig struct {
	Socket string `mapstructure:"socket"`
}

// PhoneConfig holds the base URL of the phone server commands are sent to.
type PhoneConfig struct {
	URL string `mapstructure:"url"`
}

// LoadConfig reads the MCP server configuration from file, env vars, and defaults.
func LoadConfig(cfgFile string) (Config, error) {
	v := viper.New()

	v.SetDefault("daemon.socket", sockpath.DefaultSocketPath())
	v.SetDefault("phone.url", "http://127.0.0.1:8080")

	v.SetConfigType("toml")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("arhub-mcp")
		v.AddConfigPath("/etc/arhub")
		v.AddConfigPath("$HOME/.config/arhub")
		v.AddConfigPath(".")
	}

	v.BindEnv("daemon.socket", "ARHUB_DAEMON_SOCKET")
	v.BindEnv("phone.url", "ARHUB_PHONE_URL")

	_ = v.ReadInConfig() // config file is optional

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
