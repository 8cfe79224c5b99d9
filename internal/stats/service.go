package stats

import (
	"context"
	"sync"
	"time"
	"unicode/utf8"

	"klaxon/internal/logger"
	"klaxon/pkg/metrics"
)

const snippetLimit = 180

// Tracker owns the mutable statistics state. All mutation happens under a
// single mutex; Snapshot hands out deep copies. Persistence is debounced and
// runs off the decision path: Record only flips a dirty flag, the flusher
// goroutine does the disk I/O.
type Tracker struct {
	mu         sync.Mutex
	record     Record
	dirty      bool
	historyCap int

	repo          Repository
	flushInterval time.Duration
	logger        logger.Logger
}

func NewTracker(repo Repository, historyCap int, flushInterval time.Duration, log logger.Logger) *Tracker {
	if historyCap <= 0 {
		historyCap = 50
	}
	return &Tracker{
		record:        newRecord(),
		historyCap:    historyCap,
		repo:          repo,
		flushInterval: flushInterval,
		logger:        log,
	}
}

// Load restores a previously persisted record. Missing file is a clean
// start; a corrupt one is logged and ignored rather than blocking startup.
func (t *Tracker) Load(ctx context.Context) {
	if t.repo == nil {
		return
	}

	record, err := t.repo.Load(ctx)
	if err != nil {
		t.logger.WarnwCtx(ctx, "Failed to load persisted statistics, starting fresh",
			"error", err,
		)
		return
	}
	if record == nil {
		return
	}

	t.mu.Lock()
	t.record = *record
	t.trimHistoryLocked()
	t.mu.Unlock()

	t.logger.InfowCtx(ctx, "Restored persisted statistics",
		"total_matches", record.Totals.Matches,
		"total_alerts", record.Totals.Alerts,
	)
}

// Record applies one decision outcome. now is passed in so the engine's
// decision timestamp and the statistics agree.
func (t *Tracker) Record(outcome Outcome, ruleType, rule, channel, text string, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.record.Totals.Matches++
	t.record.PerRule[ruleType]++
	if channel != "" {
		t.record.PerChannel[channel]++
	}

	suppressed := outcome == OutcomeSuppressed
	if suppressed {
		t.record.Totals.Suppressed++
	} else {
		t.record.Totals.Alerts++
		t.rollDailyLocked(now)
		t.record.AlertsToday++
		ts := now
		t.record.LastAlertTime = &ts
	}

	t.record.History = append(t.record.History, HistoryEntry{
		Timestamp:  now,
		Channel:    channel,
		Rule:       rule,
		Snippet:    snippet(text),
		Suppressed: suppressed,
	})
	t.trimHistoryLocked()

	t.dirty = true
	metrics.SetHistorySize(len(t.record.History))
}

// Snapshot returns an independently readable copy of the current record.
func (t *Tracker) Snapshot() Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.record.Clone()
}

// StartFlusher persists the record on the flush interval whenever it has
// changed. Failures are logged and retried on the next cycle; they never
// reach the decision path. Returns when ctx is cancelled, after a final
// flush.
func (t *Tracker) StartFlusher(ctx context.Context) error {
	if t.repo == nil {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(t.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.flush(ctx)
		case <-ctx.Done():
			t.Flush(context.Background())
			return ctx.Err()
		}
	}
}

// Flush writes the current record immediately when dirty. Used by the
// flusher and on shutdown.
func (t *Tracker) Flush(ctx context.Context) {
	t.flush(ctx)
}

func (t *Tracker) flush(ctx context.Context) {
	if t.repo == nil {
		return
	}

	t.mu.Lock()
	if !t.dirty {
		t.mu.Unlock()
		return
	}
	record := t.record.Clone()
	t.dirty = false
	t.mu.Unlock()

	if err := t.repo.Save(ctx, &record); err != nil {
		metrics.StatsFlushTotal.WithLabelValues("error").Inc()
		t.logger.WarnwCtx(ctx, "Failed to persist statistics",
			"error", err,
		)
		// Retry on the next cycle.
		t.mu.Lock()
		t.dirty = true
		t.mu.Unlock()
		return
	}

	metrics.StatsFlushTotal.WithLabelValues("ok").Inc()
}

func (t *Tracker) rollDailyLocked(now time.Time) {
	today := now.Format("2006-01-02")
	if t.record.LastResetDate != today {
		t.record.AlertsToday = 0
		t.record.LastResetDate = today
	}
}

func (t *Tracker) trimHistoryLocked() {
	if over := len(t.record.History) - t.historyCap; over > 0 {
		t.record.History = append(t.record.History[:0:0], t.record.History[over:]...)
	}
}

func snippet(text string) string {
	if len(text) <= snippetLimit {
		return text
	}
	cut := snippetLimit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}
