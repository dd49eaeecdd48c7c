package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Record is a single row in a ledger table: an opaque record identifier
// plus a set of typed named fields.
type Record struct {
	ID          string         `json:"id"`
	Fields      map[string]any `json:"fields"`
	CreatedTime time.Time      `json:"createdTime"`
}

// Client talks to the ledger's REST API.  Requests are scoped to one
// base; tables are addressed by name.  Every call carries a bounded
// timeout through the supplied context and the underlying HTTP client.
type Client struct {
	baseURL string
	baseID  string
	apiKey  string
	http    *http.Client
}

// NewClient builds a ledger client.  Either credential may be empty, in
// which case every call returns ErrNotConfigured and the engine runs in
// "not persisted" mode.
func NewClient(baseURL, baseID, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		baseID:  baseID,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

// Configured reports whether credentials are present.
func (c *Client) Configured() bool {
	return c.baseID != "" && c.apiKey != ""
}

type listResponse struct {
	Records []Record `json:"records"`
	Offset  string   `json:"offset,omitempty"`
}

type recordBody struct {
	Fields map[string]any `json:"fields"`
}

// List returns every record of a table matching the filter formula,
// following pagination offsets until the store is exhausted.  An empty
// formula returns the whole table.
func (c *Client) List(ctx context.Context, table, formula string) ([]Record, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	var out []Record
	offset := ""
	for {
		q := url.Values{}
		if formula != "" {
			q.Set("filterByFormula", formula)
		}
		if offset != "" {
			q.Set("offset", offset)
		}
		endpoint := fmt.Sprintf("%s/%s/%s", c.baseURL, c.baseID, url.PathEscape(table))
		if enc := q.Encode(); enc != "" {
			endpoint += "?" + enc
		}
		var page listResponse
		if err := c.do(ctx, http.MethodGet, endpoint, nil, &page); err != nil {
			return nil, err
		}
		out = append(out, page.Records...)
		if page.Offset == "" {
			return out, nil
		}
		offset = page.Offset
	}
}

// Create inserts a record and returns it with the store-assigned id.
func (c *Client) Create(ctx context.Context, table string, fields map[string]any) (Record, error) {
	if !c.Configured() {
		return Record{}, ErrNotConfigured
	}
	endpoint := fmt.Sprintf("%s/%s/%s", c.baseURL, c.baseID, url.PathEscape(table))
	var rec Record
	if err := c.do(ctx, http.MethodPost, endpoint, recordBody{Fields: fields}, &rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Patch updates the named fields of a record, leaving all others as they
// are.  Unknown record ids surface as ErrNotFound.
func (c *Client) Patch(ctx context.Context, table, recordID string, fields map[string]any) (Record, error) {
	if !c.Configured() {
		return Record{}, ErrNotConfigured
	}
	endpoint := fmt.Sprintf("%s/%s/%s/%s", c.baseURL, c.baseID, url.PathEscape(table), url.PathEscape(recordID))
	var rec Record
	if err := c.do(ctx, http.MethodPatch, endpoint, recordBody{Fields: fields}, &rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body, out any) error {
	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("ledger: marshal request: %w", err)
		}
		payload = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, payload)
	if err != nil {
		return fmt.Errorf("ledger: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ledger: %s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("ledger: read response: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("ledger: %s %s: status %d: %s", method, endpoint, resp.StatusCode, truncate(raw, 256))
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("ledger: decode response: %w", err)
		}
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
