package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"klaxon/internal/actuator"
	"klaxon/internal/config"
	"klaxon/internal/cooldown"
	"klaxon/internal/dashboard"
	"klaxon/internal/dedup"
	"klaxon/internal/engine"
	"klaxon/internal/logger"
	"klaxon/internal/rules"
	"klaxon/internal/stats"
	"klaxon/internal/transport"
	"klaxon/pkg/health"
	"klaxon/pkg/metrics"
)

type App struct {
	cfg    *config.Config
	logger logger.Logger

	rules     *rules.Set
	tracker   *stats.Tracker
	engine    *engine.Service
	client    *transport.Client
	dashboard *dashboard.Server
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: log,
	}
}

func (a *App) Initialize(ctx context.Context) error {
	ruleSet, err := rules.New(a.cfg.Rules)
	if err != nil {
		return fmt.Errorf("failed to build rule set: %w", err)
	}
	a.rules = ruleSet

	a.logger.InfowCtx(ctx, "Rules loaded",
		"keywords", len(ruleSet.Keywords()),
		"patterns", len(ruleSet.Patterns()),
		"ignore_bots", ruleSet.IgnoreBots(),
	)

	a.initStats(ctx)
	a.initEngine(ctx)
	a.initTransport()
	a.initDashboard()

	metrics.RegisterEngineMetrics()
	metrics.RegisterTransportMetrics()
	metrics.RegisterActuatorMetrics()
	if a.cfg.Server.Enabled {
		metrics.RegisterHTTPMetrics()
	}

	return nil
}

func (a *App) initStats(ctx context.Context) {
	var repo stats.Repository
	if a.cfg.Stats.Enabled {
		repo = stats.NewFileRepository(a.cfg.Stats.File)
	}
	a.tracker = stats.NewTracker(repo, a.cfg.Stats.HistorySize, a.cfg.Stats.FlushInterval, a.logger)
	a.tracker.Load(ctx)
}

func (a *App) initEngine(ctx context.Context) {
	notifier := actuator.NewService(a.cfg.Alerting.Sound, a.cfg.Alerting.Notification, a.logger)

	if a.cfg.Alerting.Sound.Enabled && !actuator.SoundExists(a.cfg.Alerting.Sound.Path) {
		a.logger.WarnwCtx(ctx, "Configured sound file not found, alerts will be silent",
			"path", a.cfg.Alerting.Sound.Path,
			"available", actuator.AvailableSounds(),
		)
	}

	a.engine = engine.NewService(
		a.rules,
		cooldown.NewLimiter(a.cfg.Alerting.Cooldown),
		dedup.NewCache(a.cfg.Alerting.DedupCacheSize),
		a.tracker,
		notifier,
		a.cfg.Workspace.LinkBaseURL,
		a.logger,
	)
}

func (a *App) initTransport() {
	directory := transport.NewDirectory(a.cfg.Workspace.APIBaseURL, a.cfg.Workspace.BotToken, nil, a.logger)

	handler := func(ctx context.Context, event engine.Event) {
		a.engine.Handle(ctx, event)
	}

	a.client = transport.NewClient(a.cfg.Workspace, handler, a.handleCommand, directory, a.logger)
}

func (a *App) initDashboard() {
	if !a.cfg.Server.Enabled {
		return
	}

	registry := health.NewCheckerRegistry()
	registry.Register(health.NewFuncChecker("transport", func(ctx context.Context) error {
		if !a.client.Connected() {
			return fmt.Errorf("socket connection down")
		}
		return nil
	}))
	if a.cfg.Stats.Enabled {
		registry.Register(health.NewFileWritableChecker(a.cfg.Stats.File))
	}

	handler := dashboard.NewHandler(a.cfg, a.rules, a.tracker, registry)
	a.dashboard = dashboard.NewServer(a.cfg.Server, handler, a.logger)
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.client.Run(gCtx)
	})

	if a.dashboard != nil {
		g.Go(func() error {
			return a.dashboard.Run(gCtx)
		})
	}

	if a.cfg.Stats.Enabled {
		g.Go(func() error {
			return a.tracker.StartFlusher(gCtx)
		})
	}

	return g.Wait()
}

// handleCommand answers the two query commands inline over the socket.
func (a *App) handleCommand(ctx context.Context, cmd transport.SlashCommand) string {
	switch cmd.Command {
	case "/buzzer-stats":
		return a.statsSummary()
	case "/buzzer-sounds":
		return a.soundsSummary()
	default:
		return ""
	}
}

func (a *App) statsSummary() string {
	snap := a.tracker.Snapshot()

	var b strings.Builder
	fmt.Fprintf(&b, "*On-call alert stats*\n")
	fmt.Fprintf(&b, "Matches: %d | Alerts: %d | Suppressed: %d\n",
		snap.Totals.Matches, snap.Totals.Alerts, snap.Totals.Suppressed)
	fmt.Fprintf(&b, "Alerts today: %d\n", snap.AlertsToday)
	if snap.LastAlertTime != nil {
		fmt.Fprintf(&b, "Last alert: %s\n", snap.LastAlertTime.Format(time.RFC3339))
	}
	if len(snap.PerChannel) > 0 {
		fmt.Fprintf(&b, "Channels: ")
		first := true
		for channel, count := range snap.PerChannel {
			if !first {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s (%d)", channel, count)
			first = false
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (a *App) soundsSummary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "*Alert sounds*\n")
	fmt.Fprintf(&b, "Current: %s", actuator.SoundName(a.cfg.Alerting.Sound.Path))
	if !actuator.SoundExists(a.cfg.Alerting.Sound.Path) {
		b.WriteString(" (missing!)")
	}
	b.WriteString("\n")

	available := actuator.AvailableSounds()
	if len(available) > 0 {
		fmt.Fprintf(&b, "Available: %s\n", strings.Join(available, ", "))
	}
	return b.String()
}
