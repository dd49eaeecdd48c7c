package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// tokenSource exchanges the long-lived refresh token for short-lived
// access tokens and caches the result until shortly before expiry.
type tokenSource struct {
	cfg  Config
	http *http.Client

	mu      sync.Mutex
	access  string
	expires time.Time
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// token returns a usable access token, refreshing when the cached one
// has expired or when force is set (after the API rejected it).
func (ts *tokenSource) token(ctx context.Context, force bool) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if !force && ts.access != "" && time.Now().Before(ts.expires) {
		return ts.access, nil
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", ts.cfg.RefreshToken)
	form.Set("client_id", ts.cfg.ClientID)
	form.Set("client_secret", ts.cfg.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ts.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("calendar: build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := ts.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("calendar: token refresh: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("calendar: read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := string(body)
		if len(msg) > 256 {
			msg = msg[:256] + "..."
		}
		return "", fmt.Errorf("calendar: token refresh failed: status %d: %s", resp.StatusCode, msg)
	}
	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", fmt.Errorf("calendar: decode token response: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("calendar: token response carried no access token")
	}

	ts.access = tok.AccessToken
	// Renew a minute early so in-flight requests do not race expiry.
	ttl := time.Duration(tok.ExpiresIn) * time.Second
	if ttl > 2*time.Minute {
		ttl -= time.Minute
	}
	ts.expires = time.Now().Add(ttl)
	return ts.access, nil
}
