package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"klaxon/internal/config"
	"klaxon/internal/cooldown"
	"klaxon/internal/dedup"
	"klaxon/internal/logger"
	"klaxon/internal/rules"
	"klaxon/internal/stats"
)

type captureNotifier struct {
	mu        sync.Mutex
	decisions []Decision
}

func (n *captureNotifier) Notify(ctx context.Context, decision Decision) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.decisions = append(n.decisions, decision)
}

func (n *captureNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.decisions)
}

type testEngine struct {
	service  *Service
	notifier *captureNotifier
	tracker  *stats.Tracker
	clock    *fakeClock
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestEngine(t *testing.T, rulesCfg config.RulesConfig, cooldownDur time.Duration) *testEngine {
	t.Helper()

	set, err := rules.New(rulesCfg)
	require.NoError(t, err)

	notifier := &captureNotifier{}
	tracker := stats.NewTracker(nil, 50, time.Minute, logger.NopLogger())
	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}

	svc := NewService(
		set,
		cooldown.NewLimiter(cooldownDur),
		dedup.NewCache(100),
		tracker,
		notifier,
		"https://example.test",
		logger.NopLogger(),
	)
	svc.now = clock.Now

	return &testEngine{service: svc, notifier: notifier, tracker: tracker, clock: clock}
}

func message(id, channel, text string) Event {
	return Event{
		ID:          id,
		ChannelID:   channel,
		ChannelName: "oncall",
		UserID:      "U1",
		Text:        text,
	}
}

func TestHandle_KeywordAlertDispatched(t *testing.T) {
	eng := newTestEngine(t, config.RulesConfig{Keywords: []string{"incident"}}, time.Minute)

	decision := eng.service.Handle(context.Background(), message("e1", "C1", "INCIDENT declared"))

	require.NotNil(t, decision)
	assert.True(t, decision.ShouldAlert)
	assert.False(t, decision.Suppressed)
	assert.Equal(t, "keyword:incident", decision.Rule)
	assert.Equal(t, "https://example.test/archives/C1", decision.Link)
	assert.NotEmpty(t, decision.ID)
	assert.Equal(t, 1, eng.notifier.count())

	snap := eng.tracker.Snapshot()
	assert.Equal(t, int64(1), snap.Totals.Matches)
	assert.Equal(t, int64(1), snap.Totals.Alerts)
}

func TestHandle_SecondAlertInCooldownSuppressed(t *testing.T) {
	eng := newTestEngine(t, config.RulesConfig{Keywords: []string{"incident"}}, time.Minute)
	ctx := context.Background()

	first := eng.service.Handle(ctx, message("e1", "C1", "incident one"))
	require.NotNil(t, first)
	assert.True(t, first.ShouldAlert)

	eng.clock.Advance(30 * time.Second)
	second := eng.service.Handle(ctx, message("e2", "C1", "incident two"))
	require.NotNil(t, second)
	assert.False(t, second.ShouldAlert)
	assert.True(t, second.Suppressed)
	assert.Equal(t, "cooldown", second.SuppressReason)
	assert.Empty(t, second.Link)

	// Suppressed decisions never reach the actuator.
	assert.Equal(t, 1, eng.notifier.count())

	// Both matched messages are counted; the invariant holds.
	snap := eng.tracker.Snapshot()
	assert.Equal(t, int64(2), snap.Totals.Matches)
	assert.Equal(t, int64(1), snap.Totals.Alerts)
	assert.Equal(t, int64(1), snap.Totals.Suppressed)
}

func TestHandle_CooldownExpiryAllowsAgain(t *testing.T) {
	eng := newTestEngine(t, config.RulesConfig{Keywords: []string{"incident"}}, time.Minute)
	ctx := context.Background()

	require.True(t, eng.service.Handle(ctx, message("e1", "C1", "incident")).ShouldAlert)

	eng.clock.Advance(time.Minute)
	decision := eng.service.Handle(ctx, message("e2", "C1", "incident"))
	require.NotNil(t, decision)
	assert.True(t, decision.ShouldAlert)
}

func TestHandle_CooldownIsPerChannel(t *testing.T) {
	eng := newTestEngine(t, config.RulesConfig{Keywords: []string{"incident"}}, time.Minute)
	ctx := context.Background()

	require.True(t, eng.service.Handle(ctx, message("e1", "C1", "incident")).ShouldAlert)

	// A different channel alerts immediately.
	other := Event{ID: "e2", ChannelID: "C2", ChannelName: "alerts", Text: "incident"}
	decision := eng.service.Handle(ctx, other)
	require.NotNil(t, decision)
	assert.True(t, decision.ShouldAlert)
}

func TestHandle_MentionBeatsKeywordAndCooldownZero(t *testing.T) {
	eng := newTestEngine(t, config.RulesConfig{Keywords: []string{"incident"}}, 0)
	ctx := context.Background()

	ev := message("e1", "C1", "incident happening")
	ev.IsMention = true
	decision := eng.service.Handle(ctx, ev)
	require.NotNil(t, decision)
	assert.Equal(t, rules.RuleMention, decision.Rule)

	// Zero cooldown: every match alerts.
	for i, id := range []string{"e2", "e3", "e4"} {
		d := eng.service.Handle(ctx, message(id, "C1", "incident"))
		require.NotNil(t, d, "message %d", i)
		assert.True(t, d.ShouldAlert)
	}
}

func TestHandle_UnmatchedCountsNothing(t *testing.T) {
	eng := newTestEngine(t, config.RulesConfig{Keywords: []string{"incident"}}, time.Minute)

	decision := eng.service.Handle(context.Background(), message("e1", "C1", "lunch anyone"))

	assert.Nil(t, decision)
	assert.Equal(t, 0, eng.notifier.count())
	assert.Equal(t, int64(0), eng.tracker.Snapshot().Totals.Matches)
}

func TestHandle_DuplicateEventDropped(t *testing.T) {
	eng := newTestEngine(t, config.RulesConfig{Keywords: []string{"incident"}}, time.Minute)
	ctx := context.Background()

	require.NotNil(t, eng.service.Handle(ctx, message("e1", "C1", "incident")))

	// Redelivery of the same event id is invisible.
	assert.Nil(t, eng.service.Handle(ctx, message("e1", "C1", "incident")))
	assert.Equal(t, int64(1), eng.tracker.Snapshot().Totals.Matches)
}

func TestHandle_BotMessagesIgnored(t *testing.T) {
	eng := newTestEngine(t, config.RulesConfig{
		Keywords:   []string{"incident"},
		IgnoreBots: true,
	}, time.Minute)

	ev := message("e1", "C1", "incident declared")
	ev.IsBot = true
	assert.Nil(t, eng.service.Handle(context.Background(), ev))
	assert.Equal(t, int64(0), eng.tracker.Snapshot().Totals.Matches)
}

func TestHandle_FilteredChannelInvisibleToStats(t *testing.T) {
	eng := newTestEngine(t, config.RulesConfig{
		Keywords:         []string{"incident"},
		ChannelBlocklist: []string{"oncall"},
	}, time.Minute)

	decision := eng.service.Handle(context.Background(), message("e1", "C1", "incident"))

	assert.Nil(t, decision)
	// Channel-filtered messages are not matches; statistics see nothing.
	assert.Equal(t, int64(0), eng.tracker.Snapshot().Totals.Matches)
}

func TestHandle_EmptyTextDropped(t *testing.T) {
	eng := newTestEngine(t, config.RulesConfig{Keywords: []string{"incident"}}, time.Minute)

	assert.Nil(t, eng.service.Handle(context.Background(), message("e1", "C1", "")))
}

func TestHandle_ConcurrentBurstSingleDispatch(t *testing.T) {
	eng := newTestEngine(t, config.RulesConfig{Keywords: []string{"incident"}}, time.Minute)
	ctx := context.Background()

	var wg sync.WaitGroup
	dispatched := make(chan struct{}, 50)
	for i := 0; i < 50; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			ev := message(eventID(i), "C1", "incident burst")
			if d := eng.service.Handle(ctx, ev); d != nil && d.ShouldAlert {
				dispatched <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(dispatched)

	assert.Equal(t, 1, len(dispatched))
	assert.Equal(t, 1, eng.notifier.count())

	snap := eng.tracker.Snapshot()
	assert.Equal(t, int64(50), snap.Totals.Matches)
	assert.Equal(t, int64(1), snap.Totals.Alerts)
	assert.Equal(t, int64(49), snap.Totals.Suppressed)
}

func TestHandle_PanickingNotifierDoesNotCrash(t *testing.T) {
	set, err := rules.New(config.RulesConfig{Keywords: []string{"incident"}})
	require.NoError(t, err)

	svc := NewService(
		set,
		cooldown.NewLimiter(0),
		dedup.NewCache(100),
		stats.NewTracker(nil, 50, time.Minute, logger.NopLogger()),
		panicNotifier{},
		"",
		logger.NopLogger(),
	)

	assert.NotPanics(t, func() {
		svc.Handle(context.Background(), message("e1", "C1", "incident"))
	})
}

type panicNotifier struct{}

func (panicNotifier) Notify(ctx context.Context, decision Decision) {
	panic("speaker on fire")
}

func eventID(i int) string {
	return fmt.Sprintf("evt-%d", i)
}
