package config

import (
	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Port   int    `mapstructure:"port"`
		Origin string `mapstructure:"origin"`
	} `mapstructure:"server"`
	Rooms struct {
		GraceSeconds int `mapstructure:"grace_seconds"`
		SweepSeconds int `mapstructure:"sweep_seconds"`
	} `mapstructure:"rooms"`
	WS struct {
		MessagesPerSecond int `mapstructure:"messages_per_second"`
		Burst             int `mapstructure:"burst"`
	} `mapstructure:"ws"`
}

// Load reads config.yaml from the given path, falling back to defaults for
// anything unset. A missing config file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(path)

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.origin", "")
	v.SetDefault("rooms.grace_seconds", 300)
	v.SetDefault("rooms.sweep_seconds", 60)
	v.SetDefault("ws.messages_per_second", 60)
	v.SetDefault("ws.burst", 120)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
