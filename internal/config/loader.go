package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Load reads the YAML config file, applies environment overrides, and
// validates the result. The config file is optional: with an empty path the
// defaults plus environment variables are used, matching how the original
// deployment was driven entirely by env vars.
func Load(configFile string) (*Config, error) {
	viper.Reset()

	viper.SetConfigType("yaml")

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	bindEnvVariables()

	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	cfg := Default()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := ValidateStatic(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func bindEnvVariables() {
	viper.BindEnv("workspace.app_token", "WORKSPACE_APP_TOKEN", "SLACK_APP_TOKEN")
	viper.BindEnv("workspace.bot_token", "WORKSPACE_BOT_TOKEN", "SLACK_BOT_TOKEN")
	viper.BindEnv("workspace.api_base_url", "WORKSPACE_API_BASE_URL")
	viper.BindEnv("workspace.link_base_url", "WORKSPACE_LINK_BASE_URL")

	viper.BindEnv("rules.ignore_bots", "RULES_IGNORE_BOTS", "IGNORE_BOTS")

	viper.BindEnv("alerting.cooldown", "ALERTING_COOLDOWN")
	viper.BindEnv("alerting.sound.path", "ALERTING_SOUND_PATH", "SOUND_PATH")
	viper.BindEnv("alerting.sound.volume", "ALERTING_SOUND_VOLUME", "SOUND_VOLUME")
	viper.BindEnv("alerting.sound.repeat", "ALERTING_SOUND_REPEAT")
	viper.BindEnv("alerting.sound.interval", "ALERTING_SOUND_INTERVAL")

	viper.BindEnv("stats.enabled", "STATS_ENABLED", "ENABLE_STATS")
	viper.BindEnv("stats.file", "STATS_FILE")
	viper.BindEnv("stats.history_size", "STATS_HISTORY_SIZE")

	viper.BindEnv("server.port", "SERVER_PORT")

	viper.BindEnv("logging.level", "LOGGING_LEVEL", "LOG_LEVEL")
	viper.BindEnv("logging.format", "LOGGING_FORMAT")
}

// List-valued settings come through env as comma-separated strings, the
// format the original deployment used (KEYWORDS="urgent, help me").
func applyEnvOverrides(cfg *Config) {
	if keywords := splitEnvList(viper.GetString("KEYWORDS")); keywords != nil {
		cfg.Rules.Keywords = keywords
	}
	if patterns := splitEnvList(viper.GetString("KEYWORD_PATTERNS")); patterns != nil {
		cfg.Rules.Patterns = patterns
	}
	if allowlist := splitEnvList(viper.GetString("CHANNEL_ALLOWLIST")); allowlist != nil {
		cfg.Rules.ChannelAllowlist = allowlist
	}
	if blocklist := splitEnvList(viper.GetString("CHANNEL_BLOCKLIST")); blocklist != nil {
		cfg.Rules.ChannelBlocklist = blocklist
	}
}

func splitEnvList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
