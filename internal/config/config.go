package config

import (
	"time"
)

type Config struct {
	Workspace WorkspaceConfig `mapstructure:"workspace"`
	Rules     RulesConfig     `mapstructure:"rules"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Stats     StatsConfig     `mapstructure:"stats"`
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type WorkspaceConfig struct {
	// AppToken authenticates the socket-mode connection (xapp-...).
	AppToken string `mapstructure:"app_token"`
	// BotToken authenticates Web API calls such as channel listing (xoxb-...).
	BotToken string `mapstructure:"bot_token"`
	// APIBaseURL is overridable for tests against a stub server.
	APIBaseURL string `mapstructure:"api_base_url"`
	// LinkBaseURL, when set, enables deep links back to the conversation
	// (e.g. https://myworkspace.slack.com).
	LinkBaseURL string `mapstructure:"link_base_url"`
}

type RulesConfig struct {
	Keywords         []string `mapstructure:"keywords"`
	Patterns         []string `mapstructure:"patterns"`
	ChannelAllowlist []string `mapstructure:"channel_allowlist"`
	ChannelBlocklist []string `mapstructure:"channel_blocklist"`
	IgnoreBots       bool     `mapstructure:"ignore_bots"`
}

type AlertingConfig struct {
	// Cooldown is the minimum interval between two alerts for the same
	// channel. Zero disables rate limiting.
	Cooldown       time.Duration `mapstructure:"cooldown"`
	DedupCacheSize int           `mapstructure:"dedup_cache_size"`
	Sound          SoundConfig   `mapstructure:"sound"`
	Notification   NotifyConfig  `mapstructure:"notification"`
}

type SoundConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Path     string        `mapstructure:"path"`
	Volume   float64       `mapstructure:"volume"`
	Repeat   int           `mapstructure:"repeat"`
	Interval time.Duration `mapstructure:"interval"`
}

type NotifyConfig struct {
	Enabled  bool `mapstructure:"enabled"`
	OpenLink bool `mapstructure:"open_link"`
}

type StatsConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	File          string        `mapstructure:"file"`
	HistorySize   int           `mapstructure:"history_size"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
}

type ServerConfig struct {
	Enabled      bool            `mapstructure:"enabled"`
	Port         int             `mapstructure:"port"`
	ReadTimeout  time.Duration   `mapstructure:"read_timeout"`
	WriteTimeout time.Duration   `mapstructure:"write_timeout"`
	RateLimit    RateLimitConfig `mapstructure:"rate_limit"`
}

type RateLimitConfig struct {
	Enabled         bool    `mapstructure:"enabled"`
	RPS             float64 `mapstructure:"rps"`
	Burst           int     `mapstructure:"burst"`
	CleanupInterval int     `mapstructure:"cleanup_interval"`
	MaxAge          int     `mapstructure:"max_age"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func Default() *Config {
	return &Config{
		Workspace: WorkspaceConfig{
			APIBaseURL: "https://slack.com/api",
		},
		Rules: RulesConfig{
			Keywords:   []string{"@help", "help me", "urgent"},
			IgnoreBots: true,
		},
		Alerting: AlertingConfig{
			Cooldown:       5 * time.Minute,
			DedupCacheSize: 500,
			Sound: SoundConfig{
				Enabled:  true,
				Volume:   0.7,
				Repeat:   3,
				Interval: 600 * time.Millisecond,
			},
			Notification: NotifyConfig{
				Enabled:  true,
				OpenLink: false,
			},
		},
		Stats: StatsConfig{
			Enabled:       true,
			File:          "alert_stats.json",
			HistorySize:   50,
			FlushInterval: 5 * time.Second,
		},
		Server: ServerConfig{
			Enabled:      true,
			Port:         5000,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			RateLimit: RateLimitConfig{
				Enabled:         true,
				RPS:             10,
				Burst:           20,
				CleanupInterval: 300,
				MaxAge:          600,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}
