package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	pkgconfig "github.com/AlanYahirPadilla/VolunNetOficial-sub002/pkg/config"
	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/pkg/jwt"
)

type Config struct {
	API        APIConfig
	Reconciler ReconcilerConfig
	Log        LogConfig

	v *viper.Viper
}

type APIConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Token   string
	Timeout time.Duration
}

type ReconcilerConfig struct {
	Interval      time.Duration
	MaxErrors     int    `mapstructure:"max_errors"`
	FetchLimit    int    `mapstructure:"fetch_limit"`
	PreviewLength int    `mapstructure:"preview_length"`
	UserID        string `mapstructure:"user_id"` // defaults to the api token's user claim
}

type LogConfig struct {
	Level  string
	Pretty bool
}

func Load() (*Config, error) {
	v, err := pkgconfig.Load("./config", "notifier")
	if err != nil {
		return nil, err
	}

	v.SetDefault("api.base_url", "http://localhost:8088")
	v.SetDefault("api.token", "")
	v.SetDefault("api.timeout", "10s")
	v.SetDefault("reconciler.interval", "3s")
	v.SetDefault("reconciler.max_errors", 5)
	v.SetDefault("reconciler.fetch_limit", 50)
	v.SetDefault("reconciler.preview_length", 80)
	v.SetDefault("reconciler.user_id", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", true)

	v.BindEnv("api.base_url", "CHAT_API_URL")
	v.BindEnv("api.token", "CHAT_API_TOKEN")
	v.BindEnv("reconciler.user_id", "CHAT_USER_ID")
	v.BindEnv("log.level", "LOG_LEVEL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.v = v

	cfg.API.Timeout = pkgconfig.ParseDuration(v, "api.timeout", 10*time.Second)
	cfg.Reconciler.Interval = pkgconfig.ParseDuration(v, "reconciler.interval", 3*time.Second)

	return &cfg, nil
}

// ResolveUserID fills Reconciler.UserID from the api token's user claim
// when it is not configured. Without a user id the reconciler would surface
// the user's own messages, so an unresolvable id is an error.
func (c *Config) ResolveUserID() error {
	if c.Reconciler.UserID != "" {
		return nil
	}
	id, err := jwt.UserIDFromToken(c.API.Token)
	if err != nil {
		return fmt.Errorf("reconciler.user_id is unset and api.token carries no user: %w", err)
	}
	c.Reconciler.UserID = id
	return nil
}

// WatchLogLevel reports log.level changes made to the config file.
func (c *Config) WatchLogLevel(fn func(level string)) {
	if c.v == nil {
		return
	}
	current := c.Log.Level
	pkgconfig.Watch(c.v, func(v *viper.Viper) {
		level := v.GetString("log.level")
		if level == current {
			return
		}
		current = level
		fn(level)
	})
}
