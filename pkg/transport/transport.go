// Package transport relays outbound message calls to the platform REST
// API with a cached client-credentials token.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"chatmux/pkg/logger"
	"chatmux/pkg/models"
	"chatmux/pkg/telemetry"
)

// ErrEmptyContent is returned for outbound sends carrying neither text
// nor attachments.
var ErrEmptyContent = errors.New("transport: message has no text and no attachments")

// Content is the outbound message body.
type Content struct {
	Text        string              `json:"text,omitempty"`
	Attachments []models.Attachment `json:"attachments,omitempty"`
}

// Transport sends, updates and deletes messages on the platform. The
// returned id is the platform activity id of the created message.
type Transport interface {
	Send(ctx context.Context, conversationID string, content Content) (string, error)
	Update(ctx context.Context, conversationID, activityID string, content Content) error
	Delete(ctx context.Context, conversationID, activityID string) error
}

// Client is the HTTP Transport implementation.
type Client struct {
	baseURL string
	tokens  *tokenSource
	client  *http.Client
}

var _ Transport = (*Client)(nil)

// NewClient builds a Client for the platform API at baseURL using the
// client-credentials endpoint for auth. A zero timeout defaults to 15s.
func NewClient(baseURL, tokenURL, clientID, clientSecret, scope string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	hc := &http.Client{Timeout: timeout}
	return &Client{
		baseURL: baseURL,
		tokens:  newTokenSource(tokenURL, clientID, clientSecret, scope, hc),
		client:  hc,
	}
}

func (c *Client) activityURL(conversationID, activityID string) string {
	u := c.baseURL + "/v3/conversations/" + url.PathEscape(conversationID) + "/activities"
	if activityID != "" {
		u += "/" + url.PathEscape(activityID)
	}
	return u
}

// Send posts a new message activity and returns its platform id.
func (c *Client) Send(ctx context.Context, conversationID string, content Content) (string, error) {
	if err := validateContent(content); err != nil {
		telemetry.OutboundCalls.WithLabelValues("send", "invalid").Inc()
		return "", err
	}
	body := map[string]interface{}{"type": models.ActivityMessage, "text": content.Text}
	if len(content.Attachments) > 0 {
		body["attachments"] = content.Attachments
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, c.activityURL(conversationID, ""), body, &out); err != nil {
		telemetry.OutboundCalls.WithLabelValues("send", "error").Inc()
		return "", err
	}
	telemetry.OutboundCalls.WithLabelValues("send", "ok").Inc()
	logger.Info("message_sent", "conversation", conversationID, "activity", out.ID)
	return out.ID, nil
}

// Update replaces the content of an existing message activity.
func (c *Client) Update(ctx context.Context, conversationID, activityID string, content Content) error {
	if err := validateContent(content); err != nil {
		telemetry.OutboundCalls.WithLabelValues("update", "invalid").Inc()
		return err
	}
	body := map[string]interface{}{"type": models.ActivityMessage, "id": activityID, "text": content.Text}
	if len(content.Attachments) > 0 {
		body["attachments"] = content.Attachments
	}
	if err := c.do(ctx, http.MethodPut, c.activityURL(conversationID, activityID), body, nil); err != nil {
		telemetry.OutboundCalls.WithLabelValues("update", "error").Inc()
		return err
	}
	telemetry.OutboundCalls.WithLabelValues("update", "ok").Inc()
	logger.Info("message_updated", "conversation", conversationID, "activity", activityID)
	return nil
}

// Delete removes a message activity.
func (c *Client) Delete(ctx context.Context, conversationID, activityID string) error {
	if err := c.do(ctx, http.MethodDelete, c.activityURL(conversationID, activityID), nil, nil); err != nil {
		telemetry.OutboundCalls.WithLabelValues("delete", "error").Inc()
		return err
	}
	telemetry.OutboundCalls.WithLabelValues("delete", "ok").Inc()
	logger.Info("message_deleted", "conversation", conversationID, "activity", activityID)
	return nil
}

func (c *Client) do(ctx context.Context, method, u string, body, out interface{}) error {
	tok, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("acquire token: %w", err)
	}
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+tok)
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, u, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: platform returned %d", method, u, resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode platform response: %w", err)
		}
	}
	return nil
}

func validateContent(content Content) error {
	if content.Text == "" && len(content.Attachments) == 0 {
		return ErrEmptyContent
	}
	return nil
}
