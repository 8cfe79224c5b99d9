package actuator

import (
	"context"
	"os/exec"
	"sync"
	"time"

	"klaxon/internal/config"
	"klaxon/internal/engine"
	"klaxon/internal/logger"
	"klaxon/pkg/metrics"
)

// CommandRunner executes an external command. Injectable so tests can
// capture invocations instead of shelling out.
type CommandRunner func(ctx context.Context, name string, args ...string) error

func execRunner(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Run()
}

// Service performs the alert side effects: audible buzz, desktop
// notification, and optional deep link back to the conversation. All side
// effects run in background goroutines so the decision path never waits on
// a speaker or a notification daemon, and all failures are logged, counted,
// and swallowed.
type Service struct {
	sound  config.SoundConfig
	notify config.NotifyConfig
	run    CommandRunner
	logger logger.Logger

	mu      sync.Mutex
	playing bool

	// sleep is injectable for tests of the repeat loop.
	sleep func(time.Duration)
}

var _ engine.Notifier = (*Service)(nil)

func NewService(sound config.SoundConfig, notify config.NotifyConfig, log logger.Logger) *Service {
	return &Service{
		sound:  sound,
		notify: notify,
		run:    execRunner,
		logger: log,
		sleep:  time.Sleep,
	}
}

// Notify consumes a dispatch decision. Suppressed decisions never reach the
// actuator, but guard anyway.
func (s *Service) Notify(ctx context.Context, decision engine.Decision) {
	if !decision.ShouldAlert {
		return
	}

	if s.sound.Enabled {
		s.buzz()
	}

	if s.notify.Enabled {
		go s.showNotification(decision.Title, decision.Body)
	}

	if s.notify.OpenLink && decision.Link != "" {
		go s.openLink(decision.Link)
	}
}

// buzz plays the configured sound repeat times with the configured interval.
// Re-entrant calls while a buzz is in progress are dropped: overlapping
// alerts share one audible run.
func (s *Service) buzz() {
	s.mu.Lock()
	if s.playing {
		s.mu.Unlock()
		return
	}
	s.playing = true
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			s.playing = false
			s.mu.Unlock()
		}()

		for i := 0; i < s.sound.Repeat; i++ {
			if err := s.playOnce(); err != nil {
				metrics.ActuatorFailuresTotal.WithLabelValues("sound").Inc()
				s.logger.Warnw("Failed to play alert sound",
					"sound", s.sound.Path,
					"error", err,
				)
				return
			}
			if i < s.sound.Repeat-1 {
				s.sleep(s.sound.Interval)
			}
		}
	}()
}

func (s *Service) playOnce() error {
	name, args := playSoundCommand(s.sound.Path, s.sound.Volume)
	return s.run(context.Background(), name, args...)
}

func (s *Service) showNotification(title, body string) {
	name, args := notifyCommand(title, body)
	if err := s.run(context.Background(), name, args...); err != nil {
		metrics.ActuatorFailuresTotal.WithLabelValues("notification").Inc()
		s.logger.Debugw("Failed to show desktop notification",
			"error", err,
		)
	}
}

func (s *Service) openLink(link string) {
	name, args := openLinkCommand(link)
	if err := s.run(context.Background(), name, args...); err != nil {
		metrics.ActuatorFailuresTotal.WithLabelValues("link").Inc()
		s.logger.Debugw("Failed to open deep link",
			"link", link,
			"error", err,
		)
	}
}
