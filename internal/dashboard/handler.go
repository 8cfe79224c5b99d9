package dashboard

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"klaxon/internal/actuator"
	"klaxon/internal/config"
	"klaxon/internal/rules"
	"klaxon/internal/stats"
	"klaxon/pkg/health"
)

// Handler serves the read-only dashboard API. Everything here is a snapshot
// read; no endpoint mutates engine state.
type Handler struct {
	cfg      *config.Config
	rules    *rules.Set
	tracker  *stats.Tracker
	registry *health.CheckerRegistry
}

func NewHandler(cfg *config.Config, ruleSet *rules.Set, tracker *stats.Tracker, registry *health.CheckerRegistry) *Handler {
	return &Handler{
		cfg:      cfg,
		rules:    ruleSet,
		tracker:  tracker,
		registry: registry,
	}
}

type statsResponse struct {
	GeneratedAt time.Time       `json:"generated_at"`
	Stats       stats.Record    `json:"stats"`
	Rules       rulesSummary    `json:"rules"`
	Alerting    alertingSummary `json:"alerting"`
}

type rulesSummary struct {
	Keywords   []string `json:"keywords"`
	Patterns   []string `json:"patterns"`
	IgnoreBots bool     `json:"ignore_bots"`
}

type alertingSummary struct {
	Cooldown            string `json:"cooldown"`
	SoundEnabled        bool   `json:"sound_enabled"`
	NotificationEnabled bool   `json:"notification_enabled"`
}

type soundsResponse struct {
	Current       string   `json:"current"`
	CurrentExists bool     `json:"current_exists"`
	Available     []string `json:"available"`
}

// GetStats returns the current statistics snapshot together with the active
// rule and alerting configuration, so the dashboard renders from one call.
func (h *Handler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, statsResponse{
		GeneratedAt: time.Now().UTC(),
		Stats:       h.tracker.Snapshot(),
		Rules: rulesSummary{
			Keywords:   h.rules.Keywords(),
			Patterns:   h.rules.Patterns(),
			IgnoreBots: h.rules.IgnoreBots(),
		},
		Alerting: alertingSummary{
			Cooldown:            h.cfg.Alerting.Cooldown.String(),
			SoundEnabled:        h.cfg.Alerting.Sound.Enabled,
			NotificationEnabled: h.cfg.Alerting.Notification.Enabled,
		},
	})
}

// GetSounds lists the system alert sounds available on this host and whether
// the configured one resolves to a real file.
func (h *Handler) GetSounds(c *gin.Context) {
	current := h.cfg.Alerting.Sound.Path
	c.JSON(http.StatusOK, soundsResponse{
		Current:       actuator.SoundName(current),
		CurrentExists: actuator.SoundExists(current),
		Available:     actuator.AvailableSounds(),
	})
}

func (h *Handler) GetHealth(c *gin.Context) {
	result := h.registry.Check(c.Request.Context())

	status := http.StatusOK
	if result.Status != health.StatusHealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, result)
}
