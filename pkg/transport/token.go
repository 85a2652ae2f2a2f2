package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// tokenSource acquires and caches an OAuth client-credentials bearer
// token, refreshing it shortly before expiry.
type tokenSource struct {
	tokenURL     string
	clientID     string
	clientSecret string
	scope        string
	client       *http.Client

	mu     sync.Mutex
	token  string
	expiry time.Time
}

// refresh margin before the reported expiry.
const expirySlack = 60 * time.Second

func newTokenSource(tokenURL, clientID, clientSecret, scope string, client *http.Client) *tokenSource {
	return &tokenSource{
		tokenURL:     tokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		scope:        scope,
		client:       client,
	}
}

// Token returns a valid bearer token, fetching a new one if the cached
// token is missing or near expiry.
func (ts *tokenSource) Token(ctx context.Context) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if ts.token != "" && time.Now().Before(ts.expiry.Add(-expirySlack)) {
		return ts.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", ts.clientID)
	form.Set("client_secret", ts.clientSecret)
	if ts.scope != "" {
		form.Set("scope", ts.scope)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ts.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := ts.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("token endpoint returned %d", resp.StatusCode)
	}
	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if body.AccessToken == "" {
		return "", fmt.Errorf("token endpoint returned empty token")
	}
	ts.token = body.AccessToken
	ts.expiry = time.Now().Add(time.Duration(body.ExpiresIn) * time.Second)
	return ts.token, nil
}
