package config

import (
	"fmt"
	"regexp"
	"strings"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// ValidateStatic checks everything that must hold before the process starts
// serving events. Any failure here is a fatal configuration error.
func ValidateStatic(cfg *Config) error {
	var errs []error

	if err := validateWorkspace(cfg.Workspace); err != nil {
		errs = append(errs, err)
	}

	if err := validateRules(cfg.Rules); err != nil {
		errs = append(errs, err)
	}

	if err := validateAlerting(cfg.Alerting); err != nil {
		errs = append(errs, err)
	}

	if err := validateStats(cfg.Stats); err != nil {
		errs = append(errs, err)
	}

	if err := validateServer(cfg.Server); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

func validateWorkspace(cfg WorkspaceConfig) error {
	if cfg.AppToken == "" {
		return &ValidationError{
			Field:   "workspace.app_token",
			Message: "app token is required (WORKSPACE_APP_TOKEN)",
		}
	}
	if cfg.BotToken == "" {
		return &ValidationError{
			Field:   "workspace.bot_token",
			Message: "bot token is required (WORKSPACE_BOT_TOKEN)",
		}
	}
	if cfg.APIBaseURL == "" {
		return &ValidationError{
			Field:   "workspace.api_base_url",
			Message: "API base URL is required",
		}
	}
	return nil
}

func validateRules(cfg RulesConfig) error {
	if len(cfg.Keywords) == 0 && len(cfg.Patterns) == 0 {
		return &ValidationError{
			Field:   "rules",
			Message: "at least one keyword or pattern is required",
		}
	}

	// Invalid regex syntax must stop the process here, never at message time.
	for _, p := range cfg.Patterns {
		if _, err := regexp.Compile("(?i)" + p); err != nil {
			return &ValidationError{
				Field:   "rules.patterns",
				Message: fmt.Sprintf("invalid pattern %q: %v", p, err),
			}
		}
	}

	for _, kw := range cfg.Keywords {
		if strings.TrimSpace(kw) == "" {
			return &ValidationError{
				Field:   "rules.keywords",
				Message: "keywords must not be blank",
			}
		}
	}

	return nil
}

func validateAlerting(cfg AlertingConfig) error {
	if cfg.Cooldown < 0 {
		return &ValidationError{
			Field:   "alerting.cooldown",
			Message: "cooldown must not be negative",
		}
	}
	if cfg.DedupCacheSize <= 0 {
		return &ValidationError{
			Field:   "alerting.dedup_cache_size",
			Message: "dedup cache size must be positive",
		}
	}
	if cfg.Sound.Enabled {
		if cfg.Sound.Volume < 0 || cfg.Sound.Volume > 1 {
			return &ValidationError{
				Field:   "alerting.sound.volume",
				Message: fmt.Sprintf("volume must be between 0 and 1, got %.2f", cfg.Sound.Volume),
			}
		}
		if cfg.Sound.Repeat < 1 {
			return &ValidationError{
				Field:   "alerting.sound.repeat",
				Message: "repeat must be at least 1",
			}
		}
		if cfg.Sound.Interval < 0 {
			return &ValidationError{
				Field:   "alerting.sound.interval",
				Message: "interval must not be negative",
			}
		}
	}
	return nil
}

func validateStats(cfg StatsConfig) error {
	if !cfg.Enabled {
		return nil
	}
	if cfg.File == "" {
		return &ValidationError{
			Field:   "stats.file",
			Message: "stats file path is required when stats are enabled",
		}
	}
	if cfg.HistorySize <= 0 {
		return &ValidationError{
			Field:   "stats.history_size",
			Message: "history size must be positive",
		}
	}
	if cfg.FlushInterval <= 0 {
		return &ValidationError{
			Field:   "stats.flush_interval",
			Message: "flush interval must be positive",
		}
	}
	return nil
}

func validateServer(cfg ServerConfig) error {
	if !cfg.Enabled {
		return nil
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}
	if cfg.ReadTimeout <= 0 {
		return &ValidationError{
			Field:   "server.read_timeout",
			Message: "read timeout must be positive",
		}
	}
	if cfg.WriteTimeout <= 0 {
		return &ValidationError{
			Field:   "server.write_timeout",
			Message: "write timeout must be positive",
		}
	}
	return nil
}
