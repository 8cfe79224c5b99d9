package stats

import "time"

// Outcome is the terminal verdict for a matched message.
type Outcome string

const (
	OutcomeAlert      Outcome = "alert"
	OutcomeSuppressed Outcome = "suppressed"
)

// Record is the serialized statistics snapshot. The invariant
// Totals.Alerts + Totals.Suppressed == Totals.Matches holds for any sequence
// of recorded outcomes, because only matched messages are recorded.
type Record struct {
	Totals        Totals           `json:"totals"`
	PerRule       map[string]int64 `json:"per_rule"`
	PerChannel    map[string]int64 `json:"per_channel"`
	AlertsToday   int64            `json:"alerts_today"`
	LastResetDate string           `json:"last_reset_date"`
	LastAlertTime *time.Time       `json:"last_alert_time,omitempty"`
	History       []HistoryEntry   `json:"history"`
}

type Totals struct {
	Matches    int64 `json:"matches"`
	Alerts     int64 `json:"alerts"`
	Suppressed int64 `json:"suppressed"`
}

type HistoryEntry struct {
	Timestamp  time.Time `json:"timestamp"`
	Channel    string    `json:"channel"`
	Rule       string    `json:"rule"`
	Snippet    string    `json:"snippet"`
	Suppressed bool      `json:"suppressed,omitempty"`
}

func newRecord() Record {
	return Record{
		PerRule:    make(map[string]int64),
		PerChannel: make(map[string]int64),
		History:    make([]HistoryEntry, 0),
	}
}

// Clone returns a deep copy so readers never observe partial writes.
func (r Record) Clone() Record {
	out := r
	out.PerRule = make(map[string]int64, len(r.PerRule))
	for k, v := range r.PerRule {
		out.PerRule[k] = v
	}
	out.PerChannel = make(map[string]int64, len(r.PerChannel))
	for k, v := range r.PerChannel {
		out.PerChannel[k] = v
	}
	out.History = make([]HistoryEntry, len(r.History))
	copy(out.History, r.History)
	if r.LastAlertTime != nil {
		t := *r.LastAlertTime
		out.LastAlertTime = &t
	}
	return out
}
