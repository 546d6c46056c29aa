package browser

import (
	"strings"
	"time"
)

const defaultActionTimeout = 30 * time.Second

// Config controls how the Chrome instance is started or attached to.
type Config struct {
	// CDPURL attaches to an already running Chrome (ws:// or http://host:port).
	// When empty a local Chrome is started.
	CDPURL           string `mapstructure:"cdp_url"`
	ChromePath       string `mapstructure:"chrome_path"`
	Headless         bool   `mapstructure:"headless"`
	UserDataDir      string `mapstructure:"user_data_dir"`
	ProfileDirectory string `mapstructure:"profile_directory"`
	WindowWidth      int    `mapstructure:"window_width"`
	WindowHeight     int    `mapstructure:"window_height"`
	// ActionTimeout bounds every single CDP round trip.
	ActionTimeout time.Duration `mapstructure:"action_timeout"`
}

func (c Config) actionTimeout() time.Duration {
	if c.ActionTimeout <= 0 {
		return defaultActionTimeout
	}
	return c.ActionTimeout
}

func (c Config) remote() bool {
	return strings.TrimSpace(c.CDPURL) != ""
}
