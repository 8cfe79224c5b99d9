package stats

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"klaxon/internal/logger"
)

type memoryRepository struct {
	mu     sync.Mutex
	record *Record
	saves  int
	fail   bool
}

func (r *memoryRepository) Save(ctx context.Context, record *Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return fmt.Errorf("disk full")
	}
	clone := record.Clone()
	r.record = &clone
	r.saves++
	return nil
}

func (r *memoryRepository) Load(ctx context.Context) (*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.record == nil {
		return nil, nil
	}
	clone := r.record.Clone()
	return &clone, nil
}

func newTestTracker(repo Repository, historyCap int) *Tracker {
	return NewTracker(repo, historyCap, time.Minute, logger.NopLogger())
}

func TestRecord_TotalsInvariant(t *testing.T) {
	tracker := newTestTracker(nil, 50)
	now := time.Now()

	tracker.Record(OutcomeAlert, "keyword", "keyword:incident", "oncall", "incident declared", now)
	tracker.Record(OutcomeSuppressed, "keyword", "keyword:incident", "oncall", "incident again", now)
	tracker.Record(OutcomeAlert, "mention", "mention", "oncall", "hey you", now)

	snap := tracker.Snapshot()
	assert.Equal(t, int64(3), snap.Totals.Matches)
	assert.Equal(t, int64(2), snap.Totals.Alerts)
	assert.Equal(t, int64(1), snap.Totals.Suppressed)
	assert.Equal(t, snap.Totals.Matches, snap.Totals.Alerts+snap.Totals.Suppressed)
}

func TestRecord_PerRuleAndPerChannel(t *testing.T) {
	tracker := newTestTracker(nil, 50)
	now := time.Now()

	tracker.Record(OutcomeAlert, "keyword", "keyword:incident", "oncall", "x", now)
	tracker.Record(OutcomeAlert, "keyword", "keyword:page", "oncall", "x", now)
	tracker.Record(OutcomeAlert, "pattern", "pattern:sev[12]", "alerts", "x", now)

	snap := tracker.Snapshot()
	assert.Equal(t, int64(2), snap.PerRule["keyword"])
	assert.Equal(t, int64(1), snap.PerRule["pattern"])
	assert.Equal(t, int64(2), snap.PerChannel["oncall"])
	assert.Equal(t, int64(1), snap.PerChannel["alerts"])
}

func TestRecord_SuppressedDoesNotCountTowardsToday(t *testing.T) {
	tracker := newTestTracker(nil, 50)
	now := time.Now()

	tracker.Record(OutcomeSuppressed, "keyword", "keyword:incident", "oncall", "x", now)

	snap := tracker.Snapshot()
	assert.Equal(t, int64(0), snap.AlertsToday)
	assert.Nil(t, snap.LastAlertTime)

	tracker.Record(OutcomeAlert, "keyword", "keyword:incident", "oncall", "x", now)
	snap = tracker.Snapshot()
	assert.Equal(t, int64(1), snap.AlertsToday)
	require.NotNil(t, snap.LastAlertTime)
	assert.Equal(t, now.Unix(), snap.LastAlertTime.Unix())
}

func TestRecord_DailyRollover(t *testing.T) {
	tracker := newTestTracker(nil, 50)

	day1 := time.Date(2026, 3, 1, 23, 50, 0, 0, time.UTC)
	day2 := time.Date(2026, 3, 2, 0, 10, 0, 0, time.UTC)

	tracker.Record(OutcomeAlert, "keyword", "keyword:incident", "oncall", "x", day1)
	tracker.Record(OutcomeAlert, "keyword", "keyword:incident", "oncall", "x", day1)
	assert.Equal(t, int64(2), tracker.Snapshot().AlertsToday)

	tracker.Record(OutcomeAlert, "keyword", "keyword:incident", "oncall", "x", day2)

	snap := tracker.Snapshot()
	assert.Equal(t, int64(1), snap.AlertsToday)
	assert.Equal(t, "2026-03-02", snap.LastResetDate)
	// Lifetime totals are unaffected by the daily reset.
	assert.Equal(t, int64(3), snap.Totals.Alerts)
}

func TestRecord_HistoryCapFIFO(t *testing.T) {
	tracker := newTestTracker(nil, 3)
	now := time.Now()

	for i := 0; i < 5; i++ {
		tracker.Record(OutcomeAlert, "keyword", fmt.Sprintf("keyword:k%d", i), "oncall", "x", now)
	}

	snap := tracker.Snapshot()
	require.Len(t, snap.History, 3)
	assert.Equal(t, "keyword:k2", snap.History[0].Rule)
	assert.Equal(t, "keyword:k4", snap.History[2].Rule)
}

func TestRecord_SnippetTruncation(t *testing.T) {
	tracker := newTestTracker(nil, 50)

	long := strings.Repeat("a", 500)
	tracker.Record(OutcomeAlert, "keyword", "keyword:a", "oncall", long, time.Now())

	snap := tracker.Snapshot()
	require.Len(t, snap.History, 1)
	assert.Len(t, snap.History[0].Snippet, snippetLimit)
}

func TestSnapshot_Isolation(t *testing.T) {
	tracker := newTestTracker(nil, 50)
	tracker.Record(OutcomeAlert, "keyword", "keyword:incident", "oncall", "x", time.Now())

	snap := tracker.Snapshot()
	snap.PerRule["keyword"] = 999
	snap.History[0].Rule = "tampered"

	fresh := tracker.Snapshot()
	assert.Equal(t, int64(1), fresh.PerRule["keyword"])
	assert.Equal(t, "keyword:incident", fresh.History[0].Rule)
}

func TestFlush_OnlyWhenDirty(t *testing.T) {
	repo := &memoryRepository{}
	tracker := newTestTracker(repo, 50)

	tracker.Flush(context.Background())
	assert.Equal(t, 0, repo.saves)

	tracker.Record(OutcomeAlert, "keyword", "keyword:incident", "oncall", "x", time.Now())
	tracker.Flush(context.Background())
	assert.Equal(t, 1, repo.saves)

	// Unchanged since last flush: no write.
	tracker.Flush(context.Background())
	assert.Equal(t, 1, repo.saves)
}

func TestFlush_RetriesAfterFailure(t *testing.T) {
	repo := &memoryRepository{fail: true}
	tracker := newTestTracker(repo, 50)

	tracker.Record(OutcomeAlert, "keyword", "keyword:incident", "oncall", "x", time.Now())
	tracker.Flush(context.Background())
	assert.Equal(t, 0, repo.saves)

	// The record stays dirty, so the next cycle writes it.
	repo.fail = false
	tracker.Flush(context.Background())
	assert.Equal(t, 1, repo.saves)
}

func TestLoad_RestoresPersistedRecord(t *testing.T) {
	repo := &memoryRepository{}
	first := newTestTracker(repo, 50)
	first.Record(OutcomeAlert, "keyword", "keyword:incident", "oncall", "x", time.Now())
	first.Flush(context.Background())

	second := newTestTracker(repo, 50)
	second.Load(context.Background())

	snap := second.Snapshot()
	assert.Equal(t, int64(1), snap.Totals.Matches)
	assert.Equal(t, int64(1), snap.Totals.Alerts)
}

func TestFileRepository_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "stats.json")
	repo := NewFileRepository(path)
	ctx := context.Background()

	// Missing file is a clean start, not an error.
	loaded, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, loaded)

	record := newRecord()
	record.Totals = Totals{Matches: 3, Alerts: 2, Suppressed: 1}
	record.PerRule["keyword"] = 2
	record.AlertsToday = 2
	record.LastResetDate = "2026-03-01"

	require.NoError(t, repo.Save(ctx, &record))

	loaded, err = repo.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, record.Totals, loaded.Totals)
	assert.Equal(t, int64(2), loaded.PerRule["keyword"])
	assert.Equal(t, "2026-03-01", loaded.LastResetDate)
}

func TestFileRepository_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.json")
	repo := NewFileRepository(path)
	ctx := context.Background()

	require.NoError(t, writeFile(path, "{not json"))

	_, err := repo.Load(ctx)
	assert.Error(t, err)

	// A tracker survives the corrupt file and starts fresh.
	tracker := NewTracker(repo, 50, time.Minute, logger.NopLogger())
	tracker.Load(ctx)
	assert.Equal(t, int64(0), tracker.Snapshot().Totals.Matches)
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}
