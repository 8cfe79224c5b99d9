package engine

import (
	"context"
	"time"
)

// Event is a normalized message from the workspace transport. It is
// immutable once delivered: the engine consumes it exactly once and never
// stores it.
type Event struct {
	// ID is the upstream event identity used for deduplication
	// (client message id, falling back to the event timestamp).
	ID          string
	Timestamp   time.Time
	ChannelID   string
	ChannelName string
	UserID      string
	Text        string
	IsBot       bool
	// IsMention is pre-set by the transport for direct-mention events.
	IsMention bool
}

// channelKey is the rate-limit bucket for the event: one cooldown per
// channel, keyed by ID with the display name as fallback.
func (e Event) channelKey() string {
	if e.ChannelID != "" {
		return e.ChannelID
	}
	return e.ChannelName
}

// displayChannel is what statistics and notifications show.
func (e Event) displayChannel() string {
	if e.ChannelName != "" {
		return e.ChannelName
	}
	return e.ChannelID
}

// Decision is the engine's final verdict on one message, consumed once by
// the alert actuator.
type Decision struct {
	ID          string
	ShouldAlert bool
	Rule        string
	Channel     string
	ChannelName string
	Timestamp   time.Time

	Suppressed     bool
	SuppressReason string

	// Actuator payload.
	Title string
	Body  string
	Link  string
}

// Notifier is the alert actuator contract. Implementations must not block
// the decision path and must swallow their own failures: a broken speaker
// never stops message evaluation.
type Notifier interface {
	Notify(ctx context.Context, decision Decision)
}

// Terminal states per message, used as metric outcome labels.
const (
	outcomeDispatched = "dispatched"
	outcomeSuppressed = "suppressed"
	outcomeUnmatched  = "unmatched"
	outcomeFiltered   = "filtered"
	outcomeBotIgnored = "bot_ignored"
	outcomeDuplicate  = "duplicate"
	outcomeEmpty      = "empty"
)
