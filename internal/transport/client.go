package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"klaxon/internal/config"
	"klaxon/internal/engine"
	"klaxon/internal/logger"
	"klaxon/pkg/errors"
	"klaxon/pkg/logging"
	"klaxon/pkg/metrics"
	"klaxon/pkg/retry"
)

const (
	// writeWait bounds a single ack write.
	writeWait = 10 * time.Second
	// readWait must outlast the server ping interval; a silent connection
	// past this deadline is treated as dead and redialed.
	readWait = 90 * time.Second

	maxMessageSize = 1 << 20
)

// EventHandler receives each normalized message event. The engine's Handle
// satisfies this directly.
type EventHandler func(ctx context.Context, event engine.Event)

// CommandResponder answers a slash command with a text reply. Responders
// must be pure reads on engine state.
type CommandResponder func(ctx context.Context, cmd SlashCommand) string

// Client maintains the socket-mode connection to the workspace: it opens a
// socket URL over the Web API, reads envelopes, acks them, and forwards
// normalized events. Connection loss triggers reconnect with exponential
// backoff; engine-owned state (cooldowns, statistics, dedup) lives outside
// this package and survives reconnects untouched.
type Client struct {
	cfg        config.WorkspaceConfig
	handler    EventHandler
	onCommand  CommandResponder
	directory  *Directory
	httpClient *http.Client
	logger     logger.Logger

	connected atomic.Bool
	writeMu   sync.Mutex
}

func NewClient(cfg config.WorkspaceConfig, handler EventHandler, onCommand CommandResponder, directory *Directory, log logger.Logger) *Client {
	return &Client{
		cfg:        cfg,
		handler:    handler,
		onCommand:  onCommand,
		directory:  directory,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     log,
	}
}

// Connected reports whether a socket is currently established. Served on
// /health.
func (c *Client) Connected() bool {
	return c.connected.Load()
}

// Run drives the connect/serve/reconnect loop until ctx is cancelled.
func (c *Client) Run(ctx context.Context) error {
	ctx = logging.WithComponent(ctx, "transport")

	for {
		var conn *websocket.Conn
		err := retry.RetryWithCallback(ctx, retry.ForeverPolicy(), func() error {
			var dialErr error
			conn, dialErr = c.connect(ctx)
			return dialErr
		}, func(attempt int, err error) {
			c.logger.WarnwCtx(ctx, "Socket connect failed, backing off",
				"attempt", attempt,
				"error", err,
			)
		})
		if err != nil {
			// Context cancellation or a fatal error (bad credentials).
			return err
		}

		c.connected.Store(true)
		c.logger.InfowCtx(ctx, "Socket connection established")

		serveErr := c.serve(ctx, conn)

		c.connected.Store(false)
		conn.Close()

		if ctx.Err() != nil {
			return ctx.Err()
		}

		metrics.TransportReconnectsTotal.Inc()
		c.logger.WarnwCtx(ctx, "Socket connection lost, reconnecting",
			"error", serveErr,
		)
	}
}

// connect requests a fresh socket URL and dials it.
func (c *Client) connect(ctx context.Context) (*websocket.Conn, error) {
	wssURL, err := c.openConnection(ctx)
	if err != nil {
		return nil, err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wssURL, nil)
	if err != nil {
		return nil, errors.ErrTransport.WithCause(fmt.Errorf("dial socket: %w", err))
	}
	return conn, nil
}

func (c *Client) openConnection(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIBaseURL+"/apps.connections.open", nil)
	if err != nil {
		return "", errors.ErrTransport.WithCause(err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.AppToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.ErrTransport.WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		// Bad credentials never heal on retry.
		return "", retry.NewFatalError(errors.ErrTransport.WithCause(fmt.Errorf("connections.open returned status %d", resp.StatusCode)))
	}
	if resp.StatusCode != http.StatusOK {
		return "", errors.ErrTransport.WithCause(fmt.Errorf("connections.open returned status %d", resp.StatusCode))
	}

	var open connectionsOpenResponse
	if err := json.NewDecoder(resp.Body).Decode(&open); err != nil {
		return "", errors.ErrTransport.WithCause(fmt.Errorf("decode connections.open: %w", err))
	}
	if !open.OK {
		if open.Error == "invalid_auth" || open.Error == "not_authed" {
			return "", retry.NewFatalError(errors.ErrTransport.WithCause(fmt.Errorf("connections.open failed: %s", open.Error)))
		}
		return "", errors.ErrTransport.WithCause(fmt.Errorf("connections.open failed: %s", open.Error))
	}

	return open.URL, nil
}

// serve reads envelopes until the connection dies or ctx is cancelled.
func (c *Client) serve(ctx context.Context, conn *websocket.Conn) error {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(readWait))
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(readWait))
		c.writeMu.Lock()
		defer c.writeMu.Unlock()
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeWait))
	})

	// Unblock ReadMessage on shutdown.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return errors.ErrTransport.WithCause(fmt.Errorf("socket read: %w", err))
		}

		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.logger.WarnwCtx(ctx, "Undecodable envelope dropped",
				"error", err,
			)
			continue
		}

		if err := c.handleEnvelope(ctx, conn, env); err != nil {
			return err
		}
	}
}

func (c *Client) handleEnvelope(ctx context.Context, conn *websocket.Conn, env envelope) error {
	metrics.TransportEnvelopesTotal.WithLabelValues(env.Type).Inc()

	switch env.Type {
	case envelopeHello:
		c.logger.DebugwCtx(ctx, "Hello envelope received")
		return nil

	case envelopeDisconnect:
		// The server asked for a reconnect (refresh, load shedding).
		return errors.ErrTransport.WithCause(fmt.Errorf("server requested disconnect: %s", env.Reason))

	case envelopeEventsAPI:
		c.sendAck(ctx, conn, env.EnvelopeID, nil)
		c.dispatchEvent(ctx, env.Payload)
		return nil

	case envelopeSlashCommands:
		c.handleSlashCommand(ctx, conn, env)
		return nil

	default:
		if env.EnvelopeID != "" {
			c.sendAck(ctx, conn, env.EnvelopeID, nil)
		}
		c.logger.DebugwCtx(ctx, "Unhandled envelope type",
			"type", env.Type,
		)
		return nil
	}
}

func (c *Client) dispatchEvent(ctx context.Context, payload json.RawMessage) {
	var p eventsAPIPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		c.logger.WarnwCtx(ctx, "Undecodable events payload dropped",
			"error", err,
		)
		return
	}

	ev := p.Event
	if ev.Type != eventTypeMessage && ev.Type != eventTypeMention {
		return
	}

	c.handler(ctx, c.normalize(ctx, ev))
}

// normalize maps a wire event to the engine's message shape, resolving the
// channel display name through the directory cache.
func (c *Client) normalize(ctx context.Context, ev workspaceEvent) engine.Event {
	name := ""
	if c.directory != nil && ev.Channel != "" {
		name = c.directory.NameFor(ctx, ev.Channel)
	}

	return engine.Event{
		ID:          ev.eventID(),
		Timestamp:   ev.timestamp(),
		ChannelID:   ev.Channel,
		ChannelName: name,
		UserID:      ev.User,
		Text:        ev.Text,
		IsBot:       ev.isBot(),
		IsMention:   ev.Type == eventTypeMention,
	}
}

func (c *Client) handleSlashCommand(ctx context.Context, conn *websocket.Conn, env envelope) {
	var cmd SlashCommand
	if err := json.Unmarshal(env.Payload, &cmd); err != nil {
		c.logger.WarnwCtx(ctx, "Undecodable slash command dropped",
			"error", err,
		)
		c.sendAck(ctx, conn, env.EnvelopeID, nil)
		return
	}

	var payload interface{}
	if c.onCommand != nil && env.AcceptsResponsePayload {
		if text := c.onCommand(ctx, cmd); text != "" {
			payload = commandResponse{ResponseType: "ephemeral", Text: text}
		}
	}

	c.sendAck(ctx, conn, env.EnvelopeID, payload)
}

func (c *Client) sendAck(ctx context.Context, conn *websocket.Conn, envelopeID string, payload interface{}) {
	if envelopeID == "" {
		return
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(ack{EnvelopeID: envelopeID, Payload: payload}); err != nil {
		c.logger.WarnwCtx(ctx, "Failed to ack envelope",
			"envelope_id", envelopeID,
			"error", err,
		)
	}
}
