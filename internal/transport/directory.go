package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"klaxon/internal/logger"
	"klaxon/pkg/circuitbreaker"
	"klaxon/pkg/errors"
)

// Directory caches channel id-to-name lookups for the channel filter and for
// display names. The Web API fetch sits behind a circuit breaker so a broken
// or rate-limited API is not hammered on every message; lookups then fall
// back to the raw channel id.
type Directory struct {
	apiBase    string
	botToken   string
	httpClient *http.Client
	breaker    *circuitbreaker.Wrapper
	logger     logger.Logger

	mu       sync.RWMutex
	idToName map[string]string
	loaded   bool
}

func NewDirectory(apiBase, botToken string, httpClient *http.Client, log logger.Logger) *Directory {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Directory{
		apiBase:    apiBase,
		botToken:   botToken,
		httpClient: httpClient,
		breaker:    circuitbreaker.NewWrapper(circuitbreaker.DefaultConfig("channel-directory")),
		logger:     log,
		idToName:   make(map[string]string),
	}
}

// NameFor resolves a channel id to its display name, empty when unknown.
func (d *Directory) NameFor(ctx context.Context, channelID string) string {
	d.ensureLoaded(ctx)

	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.idToName[channelID]
}

func (d *Directory) ensureLoaded(ctx context.Context) {
	d.mu.RLock()
	loaded := d.loaded
	d.mu.RUnlock()
	if loaded {
		return
	}

	_, err := d.breaker.ExecuteWithContext(ctx, func() (interface{}, error) {
		return nil, d.load(ctx)
	})
	if err != nil {
		d.logger.WarnwCtx(ctx, "Failed to load channel directory",
			"error", err,
		)
	}
}

func (d *Directory) load(ctx context.Context) error {
	idToName := make(map[string]string)

	cursor := ""
	for {
		page, err := d.fetchPage(ctx, cursor)
		if err != nil {
			return err
		}
		for _, ch := range page.Channels {
			if ch.ID == "" || ch.Name == "" {
				continue
			}
			idToName[ch.ID] = ch.Name
		}
		cursor = page.ResponseMetadata.NextCursor
		if cursor == "" {
			break
		}
	}

	d.mu.Lock()
	d.idToName = idToName
	d.loaded = true
	d.mu.Unlock()

	d.logger.InfowCtx(ctx, "Loaded channel directory",
		"channels", len(idToName),
	)
	return nil
}

func (d *Directory) fetchPage(ctx context.Context, cursor string) (*conversationsListResponse, error) {
	q := url.Values{}
	q.Set("limit", "1000")
	q.Set("types", "public_channel,private_channel")
	if cursor != "" {
		q.Set("cursor", cursor)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.apiBase+"/conversations.list?"+q.Encode(), nil)
	if err != nil {
		return nil, errors.ErrTransport.WithCause(err)
	}
	req.Header.Set("Authorization", "Bearer "+d.botToken)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, errors.ErrTransport.WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.ErrTransport.WithCause(fmt.Errorf("conversations.list returned status %d", resp.StatusCode))
	}

	var page conversationsListResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, errors.ErrTransport.WithCause(fmt.Errorf("decode conversations.list: %w", err))
	}
	if !page.OK {
		return nil, errors.ErrTransport.WithCause(fmt.Errorf("conversations.list failed: %s", page.Error))
	}

	return &page, nil
}
