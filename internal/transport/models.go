package transport

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Socket-mode wire types. The workspace pushes envelopes over the websocket;
// every envelope with an id must be acked promptly or the server redelivers
// and eventually drops the connection.

const (
	envelopeHello         = "hello"
	envelopeDisconnect    = "disconnect"
	envelopeEventsAPI     = "events_api"
	envelopeSlashCommands = "slash_commands"
)

type envelope struct {
	Type                   string          `json:"type"`
	EnvelopeID             string          `json:"envelope_id,omitempty"`
	AcceptsResponsePayload bool            `json:"accepts_response_payload,omitempty"`
	Reason                 string          `json:"reason,omitempty"`
	Payload                json.RawMessage `json:"payload,omitempty"`
}

type ack struct {
	EnvelopeID string      `json:"envelope_id"`
	Payload    interface{} `json:"payload,omitempty"`
}

type eventsAPIPayload struct {
	Event workspaceEvent `json:"event"`
}

// workspaceEvent is the inner event of an events_api envelope.
type workspaceEvent struct {
	Type        string `json:"type"`
	Subtype     string `json:"subtype,omitempty"`
	Channel     string `json:"channel"`
	User        string `json:"user,omitempty"`
	BotID       string `json:"bot_id,omitempty"`
	Text        string `json:"text"`
	TS          string `json:"ts"`
	ClientMsgID string `json:"client_msg_id,omitempty"`
}

const (
	eventTypeMessage = "message"
	eventTypeMention = "app_mention"
)

// eventID is the dedup identity: client message id when present, else the
// channel-scoped timestamp.
func (e workspaceEvent) eventID() string {
	if e.ClientMsgID != "" {
		return e.ClientMsgID
	}
	if e.TS != "" {
		return e.Channel + ":" + e.TS
	}
	return ""
}

func (e workspaceEvent) isBot() bool {
	return e.BotID != "" || e.Subtype == "bot_message"
}

// timestamp parses the "seconds.micros" event clock; zero time on failure.
func (e workspaceEvent) timestamp() time.Time {
	if e.TS == "" {
		return time.Time{}
	}
	parts := strings.SplitN(e.TS, ".", 2)
	secs, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return time.Time{}
	}
	var micros int64
	if len(parts) == 2 {
		frac := parts[1]
		if len(frac) > 6 {
			frac = frac[:6]
		}
		for len(frac) < 6 {
			frac += "0"
		}
		micros, _ = strconv.ParseInt(frac, 10, 64)
	}
	return time.Unix(secs, micros*1000)
}

// SlashCommand is a query command received over the socket. Both supported
// commands are pure reads; the responder must not mutate engine state.
type SlashCommand struct {
	Command string `json:"command"`
	Text    string `json:"text"`
	UserID  string `json:"user_id"`
	Channel string `json:"channel_id"`
}

type commandResponse struct {
	ResponseType string `json:"response_type"`
	Text         string `json:"text"`
}

// connectionsOpenResponse is the Web API reply handing out the wss URL.
type connectionsOpenResponse struct {
	OK    bool   `json:"ok"`
	URL   string `json:"url"`
	Error string `json:"error,omitempty"`
}

type conversationsListResponse struct {
	OK       bool   `json:"ok"`
	Error    string `json:"error,omitempty"`
	Channels []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"channels"`
	ResponseMetadata struct {
		NextCursor string `json:"next_cursor"`
	} `json:"response_metadata"`
}
