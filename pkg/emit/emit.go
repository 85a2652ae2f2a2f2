// Package emit delivers normalized events to the downstream consumer.
package emit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"chatmux/pkg/logger"
)

// Event is one routed delivery: the target subscriber handle, the
// logical parent event id (empty for mentions), the event name and the
// normalized payload.
type Event struct {
	Subscriber  string      `json:"subscriber"`
	ParentEvent string      `json:"parent_event,omitempty"`
	Name        string      `json:"name"`
	Payload     interface{} `json:"payload"`
}

// Emitter hands events to the delivery layer.
type Emitter interface {
	Emit(ctx context.Context, ev Event) error
}

// HTTPEmitter POSTs each event as JSON to a fixed sink URL with optional
// bearer auth.
type HTTPEmitter struct {
	url    string
	bearer string
	client *http.Client
}

var _ Emitter = (*HTTPEmitter)(nil)

// NewHTTPEmitter returns an emitter posting to url. A zero timeout
// defaults to 10s.
func NewHTTPEmitter(url, bearer string, timeout time.Duration) *HTTPEmitter {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPEmitter{url: url, bearer: bearer, client: &http.Client{Timeout: timeout}}
}

func (e *HTTPEmitter) Emit(ctx context.Context, ev Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if e.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+e.bearer)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("emit to %s: %w", e.url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("emit to %s: sink returned %d", e.url, resp.StatusCode)
	}
	return nil
}

// LogEmitter writes events to the log. Used when no sink URL is
// configured and in tests.
type LogEmitter struct{}

var _ Emitter = LogEmitter{}

func (LogEmitter) Emit(_ context.Context, ev Event) error {
	b, _ := json.Marshal(ev.Payload)
	logger.Info("event_emitted",
		"subscriber", ev.Subscriber, "parent", ev.ParentEvent, "name", ev.Name, "payload", string(b))
	return nil
}
