// Package config loads deskhand.yaml.
package config

import (
	"strings"
	"time"

	"github.com/go-go-golems/deskhand/pkg/browser"
	"github.com/go-go-golems/deskhand/pkg/helpdesk"
	"github.com/go-go-golems/deskhand/pkg/llm"
	"github.com/go-go-golems/deskhand/pkg/logging"
	"github.com/go-go-golems/deskhand/pkg/pilot"
	"github.com/go-go-golems/deskhand/pkg/redisstream"
	"github.com/go-go-golems/deskhand/pkg/scrape"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const DefaultPath = "deskhand.yaml"

type Settings struct {
	Helpdesk      helpdesk.Config       `mapstructure:"helpdesk"`
	Browser       browser.Config        `mapstructure:"browser"`
	Scrape        Scrape                `mapstructure:"scrape"`
	LLM           llm.Config            `mapstructure:"llm"`
	Paths         Paths                 `mapstructure:"paths"`
	Autopilot     pilot.AutopilotConfig `mapstructure:"autopilot"`
	Actions       Actions               `mapstructure:"actions"`
	Archive       Archive               `mapstructure:"archive"`
	Redis         redisstream.Settings  `mapstructure:"redis"`
	SelectorsFile string                `mapstructure:"selectors_file"`
	Log           logging.Settings      `mapstructure:"log"`
}

type Scrape struct {
	scrape.StabilityConfig `mapstructure:",squash"`
	ReadyTimeout           time.Duration `mapstructure:"ready_timeout"`
	ChangeTimeout          time.Duration `mapstructure:"change_timeout"`
}

type Paths struct {
	OutputDir string `mapstructure:"output_dir"`
	BackupDir string `mapstructure:"backup_dir"`
}

type Actions struct {
	AutoClose bool `mapstructure:"auto_close"`
}

type Archive struct {
	// DB is the SQLite file. Empty disables the archive.
	DB string `mapstructure:"db"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("helpdesk.login_timeout", "15m")
	v.SetDefault("helpdesk.session_check", "3s")

	v.SetDefault("browser.window_width", 1366)
	v.SetDefault("browser.window_height", 900)
	v.SetDefault("browser.action_timeout", "30s")

	v.SetDefault("scrape.stability_threshold", 3)
	v.SetDefault("scrape.max_iterations", 40)
	v.SetDefault("scrape.scroll_pause", "600ms")
	v.SetDefault("scrape.ready_timeout", "40s")
	v.SetDefault("scrape.change_timeout", "40s")

	v.SetDefault("llm.provider", llm.ProviderAPI)
	v.SetDefault("llm.model", llm.DefaultModel)
	v.SetDefault("llm.max_output_tokens", 2048)
	v.SetDefault("llm.temperature", 0.6)
	v.SetDefault("llm.top_p", 0.8)
	v.SetDefault("llm.top_k", 32)
	v.SetDefault("llm.history_limit", llm.DefaultHistoryLimit)
	v.SetDefault("llm.persona_name", llm.DefaultPersonaName)
	v.SetDefault("llm.company", llm.DefaultCompany)
	v.SetDefault("llm.web.url", llm.DefaultWebURL)
	v.SetDefault("llm.web.load_timeout", "20s")
	v.SetDefault("llm.web.response_timeout", "60s")
	v.SetDefault("llm.web.settle", "3s")

	v.SetDefault("paths.output_dir", "output")
	v.SetDefault("paths.backup_dir", "backup")

	v.SetDefault("autopilot.section", "my_conversations")
	v.SetDefault("autopilot.idle_interval", "30s")
	v.SetDefault("autopilot.pause_after", "5s")

	v.SetDefault("actions.auto_close", false)
	v.SetDefault("archive.db", "")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", redisstream.DefaultAddr)
	v.SetDefault("redis.topic", redisstream.DefaultTopic)
	v.SetDefault("redis.group", redisstream.DefaultGroup)
	v.SetDefault("redis.consumer", redisstream.DefaultConsumer)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.dir", "logs")
}

// Load reads and validates the YAML file at path (DefaultPath when empty).
// Environment variables are not consulted.
func Load(path string) (*Settings, error) {
	if strings.TrimSpace(path) == "" {
		path = DefaultPath
	}
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}
	if err := s.Validate(); err != nil {
		return nil, errors.Wrapf(err, "config %s", path)
	}
	return &s, nil
}

func (s *Settings) Validate() error {
	if strings.TrimSpace(s.Helpdesk.URL) == "" {
		return errors.New("helpdesk.url is required")
	}
	switch s.LLM.Provider {
	case llm.ProviderAPI:
		if strings.TrimSpace(s.LLM.APIKey) == "" {
			return errors.New("llm.api_key is required for the api provider")
		}
	case llm.ProviderWeb:
	default:
		return errors.Errorf("llm.provider must be %q or %q, got %q", llm.ProviderAPI, llm.ProviderWeb, s.LLM.Provider)
	}
	if s.Scrape.Threshold <= 0 || s.Scrape.MaxIterations <= 0 {
		return errors.New("scrape.stability_threshold and scrape.max_iterations must be positive")
	}
	if s.Scrape.MaxIterations < s.Scrape.Threshold {
		return errors.New("scrape.max_iterations must not be below scrape.stability_threshold")
	}
	if s.LLM.HistoryLimit <= 0 {
		return errors.New("llm.history_limit must be positive")
	}
	return nil
}

func (s *Settings) ScraperConfig() scrape.Config {
	return scrape.Config{
		Stability:    s.Scrape.StabilityConfig,
		ReadyTimeout: s.Scrape.ReadyTimeout,
	}
}

func (s *Settings) PilotConfig() pilot.Config {
	return pilot.Config{
		Autopilot:     s.Autopilot,
		AutoClose:     s.Actions.AutoClose,
		ReadyTimeout:  s.Scrape.ReadyTimeout,
		ChangeTimeout: s.Scrape.ChangeTimeout,
	}
}
