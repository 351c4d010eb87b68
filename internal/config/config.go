// Package config loads settings for both the relay server and the
// voice client from a yaml file with env-selected name.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	JoinBurst  int           `mapstructure:"join_burst"`
	JoinWindow time.Duration `mapstructure:"join_window"`
	Secret     string        `mapstructure:"secret"`

	RelayURL       string        `mapstructure:"relay_url"`
	DisplayName    string        `mapstructure:"display_name"`
	STUNServers    []string      `mapstructure:"stun_servers"`
	ScreenFile     string        `mapstructure:"screen_file"`
	SpeakInterval  time.Duration `mapstructure:"speak_interval"`
	SpeakThreshold float64       `mapstructure:"speak_threshold"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("read_limit", 32768)
	v.SetDefault("join_burst", 10)
	v.SetDefault("join_window", "1m")
	v.SetDefault("relay_url", "ws://localhost:8080/api/ws/voice")
	v.SetDefault("display_name", "guest")
	v.SetDefault("stun_servers", []string{"stun:stun.l.google.com:19302"})
	v.SetDefault("speak_interval", "50ms")
	v.SetDefault("speak_threshold", 0.01)

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("config file not found (%s), using defaults\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
