package actuator

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"klaxon/internal/config"
	"klaxon/internal/engine"
	"klaxon/internal/logger"
)

type commandRecorder struct {
	mu    sync.Mutex
	calls [][]string
	fail  bool
	done  chan struct{}
}

func newCommandRecorder(expected int) *commandRecorder {
	return &commandRecorder{done: make(chan struct{}, expected)}
}

func (r *commandRecorder) run(ctx context.Context, name string, args ...string) error {
	r.mu.Lock()
	r.calls = append(r.calls, append([]string{name}, args...))
	fail := r.fail
	r.mu.Unlock()
	r.done <- struct{}{}
	if fail {
		return fmt.Errorf("command failed")
	}
	return nil
}

func (r *commandRecorder) wait(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-r.done:
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for command %d of %d", i+1, n)
		}
	}
}

func (r *commandRecorder) commandNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.calls))
	for i, call := range r.calls {
		out[i] = call[0]
	}
	return out
}

func newTestService(sound config.SoundConfig, notify config.NotifyConfig, rec *commandRecorder) *Service {
	svc := NewService(sound, notify, logger.NopLogger())
	svc.run = rec.run
	svc.sleep = func(time.Duration) {}
	return svc
}

func alertDecision() engine.Decision {
	return engine.Decision{
		ID:          "d1",
		ShouldAlert: true,
		Title:       "On-call alert",
		Body:        "Channel: oncall\nincident",
		Link:        "https://example.test/archives/C1",
	}
}

func TestNotify_PlaysSoundRepeatTimes(t *testing.T) {
	rec := newCommandRecorder(3)
	svc := newTestService(config.SoundConfig{
		Enabled: true,
		Path:    "/sounds/horn.wav",
		Volume:  0.7,
		Repeat:  3,
	}, config.NotifyConfig{}, rec)

	svc.Notify(context.Background(), alertDecision())
	rec.wait(t, 3)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.calls, 3)
	for _, call := range rec.calls {
		assert.Contains(t, call, "/sounds/horn.wav")
	}
}

func TestNotify_SuppressedDecisionIsNoop(t *testing.T) {
	rec := newCommandRecorder(1)
	svc := newTestService(config.SoundConfig{Enabled: true, Repeat: 1}, config.NotifyConfig{Enabled: true}, rec)

	decision := alertDecision()
	decision.ShouldAlert = false
	decision.Suppressed = true
	svc.Notify(context.Background(), decision)

	select {
	case <-rec.done:
		t.Fatal("suppressed decision must not run commands")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestNotify_SoundFailureStopsRepeats(t *testing.T) {
	rec := newCommandRecorder(3)
	rec.fail = true
	svc := newTestService(config.SoundConfig{
		Enabled: true,
		Path:    "/sounds/horn.wav",
		Repeat:  3,
	}, config.NotifyConfig{}, rec)

	svc.Notify(context.Background(), alertDecision())
	rec.wait(t, 1)

	// The failed first play aborts the run instead of retrying twice more.
	select {
	case <-rec.done:
		t.Fatal("repeat loop should stop after a failure")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestNotify_OverlappingAlertsShareOneBuzz(t *testing.T) {
	rec := newCommandRecorder(10)
	block := make(chan struct{})
	started := make(chan struct{}, 10)

	svc := NewService(config.SoundConfig{Enabled: true, Repeat: 1, Path: "/s.wav"}, config.NotifyConfig{}, logger.NopLogger())
	svc.sleep = func(time.Duration) {}
	svc.run = func(ctx context.Context, name string, args ...string) error {
		started <- struct{}{}
		<-block
		return rec.run(ctx, name, args...)
	}

	ctx := context.Background()
	svc.Notify(ctx, alertDecision())
	<-started

	// Second alert arrives while the first is still playing.
	svc.Notify(ctx, alertDecision())
	close(block)
	rec.wait(t, 1)

	select {
	case <-started:
		t.Fatal("second alert should not start another buzz")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestNotify_NotificationAndLink(t *testing.T) {
	rec := newCommandRecorder(2)
	svc := newTestService(config.SoundConfig{}, config.NotifyConfig{
		Enabled:  true,
		OpenLink: true,
	}, rec)

	svc.Notify(context.Background(), alertDecision())
	rec.wait(t, 2)

	names := rec.commandNames()
	assert.Len(t, names, 2)
}

func TestSoundName(t *testing.T) {
	assert.Equal(t, "horn", SoundName("/usr/share/sounds/horn.wav"))
	assert.Equal(t, "bell", SoundName("bell.oga"))
}

func TestSoundExists(t *testing.T) {
	assert.False(t, SoundExists("/nonexistent/horn.wav"))
	assert.False(t, SoundExists(t.TempDir()))
}
