package engine

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"klaxon/internal/cooldown"
	"klaxon/internal/dedup"
	"klaxon/internal/logger"
	"klaxon/internal/rules"
	"klaxon/internal/stats"
	"klaxon/pkg/errors"
	"klaxon/pkg/logging"
	"klaxon/pkg/metrics"
)

// Service orchestrates the decision pipeline: dedup, bot filter, channel
// filter, matcher, cooldown, statistics, dispatch. Handle is synchronous and
// safe for concurrent callers; the limiter, dedup cache, and tracker each
// guard their own state, and the limiter verdict feeding statistics and the
// dispatch decision is taken exactly once per message.
type Service struct {
	rules    *rules.Set
	limiter  *cooldown.Limiter
	seen     *dedup.Cache
	tracker  *stats.Tracker
	notifier Notifier
	linkBase string
	logger   logger.Logger

	// now is injectable for tests.
	now func() time.Time
}

func NewService(set *rules.Set, limiter *cooldown.Limiter, seen *dedup.Cache, tracker *stats.Tracker, notifier Notifier, linkBase string, log logger.Logger) *Service {
	return &Service{
		rules:    set,
		limiter:  limiter,
		seen:     seen,
		tracker:  tracker,
		notifier: notifier,
		linkBase: linkBase,
		logger:   log,
		now:      time.Now,
	}
}

// Handle processes one message event to a terminal state and returns the
// dispatch decision, or nil when the event is invisible to alerting
// (duplicate, bot-ignored, channel-filtered, unmatched). A decision with
// ShouldAlert=true is emitted at most once per message.
func (s *Service) Handle(ctx context.Context, event Event) (decision *Decision) {
	start := s.now()
	ctx = logging.WithEventID(ctx, event.ID)
	ctx = logging.WithChannel(ctx, event.displayChannel())

	defer func() {
		if r := recover(); r != nil {
			err := errors.RecoverPanic(r)
			s.logger.ErrorwCtx(ctx, "Panic while evaluating message, event dropped",
				"error", err,
			)
			decision = nil
		}
	}()

	if event.Text == "" && !event.IsMention {
		s.finish(start, outcomeEmpty)
		return nil
	}

	if s.seen.Seen(event.ID) {
		metrics.DuplicateEventsTotal.Inc()
		s.finish(start, outcomeDuplicate)
		s.logger.DebugwCtx(ctx, "Duplicate event dropped")
		return nil
	}

	if event.IsBot && s.rules.IgnoreBots() {
		s.finish(start, outcomeBotIgnored)
		return nil
	}

	// Filtered-out channels are invisible: no statistics, no decision.
	if !s.rules.ChannelAllowed(event.ChannelID, event.ChannelName) {
		s.finish(start, outcomeFiltered)
		s.logger.DebugwCtx(ctx, "Channel filtered out")
		return nil
	}

	result := rules.Evaluate(event.Text, event.IsMention, s.rules)
	if !result.Matched {
		s.finish(start, outcomeUnmatched)
		return nil
	}

	now := s.now()
	allowed := s.limiter.TryAcquire(event.channelKey(), now)

	outcome := stats.OutcomeAlert
	if !allowed {
		outcome = stats.OutcomeSuppressed
	}
	s.tracker.Record(outcome, result.RuleType(), result.Rule, event.displayChannel(), event.Text, now)

	decision = s.buildDecision(event, result, now, allowed)

	if !allowed {
		s.finish(start, outcomeSuppressed)
		s.logger.InfowCtx(ctx, "Alert suppressed by cooldown",
			"rule", result.Rule,
			"cooldown", s.limiter.Cooldown().String(),
		)
		return decision
	}

	metrics.AlertsByRuleTotal.WithLabelValues(result.RuleType()).Inc()
	s.finish(start, outcomeDispatched)
	s.logger.InfowCtx(ctx, "Alert dispatched",
		"rule", result.Rule,
	)

	if s.notifier != nil {
		s.notifier.Notify(ctx, *decision)
	}

	return decision
}

func (s *Service) buildDecision(event Event, result rules.Result, now time.Time, allowed bool) *Decision {
	d := &Decision{
		ID:          uuid.NewString(),
		ShouldAlert: allowed,
		Rule:        result.Rule,
		Channel:     event.ChannelID,
		ChannelName: event.ChannelName,
		Timestamp:   now,
		Title:       "On-call alert",
		Body:        fmt.Sprintf("Channel: %s\n%s", event.displayChannel(), truncate(event.Text, 180)),
	}

	if !allowed {
		d.Suppressed = true
		d.SuppressReason = "cooldown"
		return d
	}

	if s.linkBase != "" && event.ChannelID != "" {
		d.Link = fmt.Sprintf("%s/archives/%s", s.linkBase, event.ChannelID)
	}

	return d
}

func (s *Service) finish(start time.Time, outcome string) {
	metrics.MessagesTotal.WithLabelValues(outcome).Inc()
	metrics.ObserveEvaluationDuration(s.now().Sub(start), outcome)
}

func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	for limit > 0 && !utf8.RuneStart(text[limit]) {
		limit--
	}
	return text[:limit]
}
