package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/me/testherd/pkg/model"
)

// Client communicates with the testherd server API on behalf of a worker.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new worker API client with connection pooling.
func NewClient(baseURL string) *Client {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}

	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
	}
}

// NextTest asks for the next test to run against the worker's checked-out
// commit. Returns (nil, nil) when nothing is pending. A commit older than
// the server's latest surfaces model.ErrBadCommit so the caller can rebase.
func (c *Client) NextTest(ctx context.Context, commit string, ts time.Time) (*model.PendingEntry, error) {
	body := map[string]any{"commit": commit, "timestamp": ts}
	env, err := c.doRequest(ctx, http.MethodPost, "/api/v1/tests/next", body)
	if err != nil {
		return nil, err
	}
	if env.Error != nil {
		switch env.Error.Code {
		case model.ErrCodeResourceNotFound:
			return nil, nil
		case model.ErrCodeBadCommit:
			return nil, model.ErrBadCommit
		case model.ErrCodeNotReady:
			return nil, model.ErrNotReady
		default:
			return nil, env.Error
		}
	}

	var entry model.PendingEntry
	if err := json.Unmarshal(env.Data, &entry); err != nil {
		return nil, fmt.Errorf("parse assignment: %w", err)
	}
	return &entry, nil
}

// SubmitResult reports a raw result payload for (test, commit).
func (c *Client) SubmitResult(ctx context.Context, test model.TestID, commit, payload string) error {
	body := map[string]any{"test": test, "commit": commit, "payload": payload}
	env, err := c.doRequest(ctx, http.MethodPost, "/api/v1/results", body)
	if err != nil {
		return err
	}
	if env.Error != nil {
		return env.Error
	}
	return nil
}

type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  *model.APIError `json:"error"`
}

func (c *Client) doRequest(ctx context.Context, method, path string, body any) (*envelope, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return nil, fmt.Errorf("parse response (status %d): %w", resp.StatusCode, err)
	}
	return &env, nil
}
