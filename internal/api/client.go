package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// RemoteError is the typed surface of a non-200 envelope code (or a non-2xx
// HTTP status on the raw audio endpoint).
type RemoteError struct {
	Op      string
	Code    int
	Message string
}

func (e *RemoteError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: service returned code %d: %s", e.Op, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: service returned code %d", e.Op, e.Code)
}

// Client is a stateless wrapper around the service's five operations. It
// holds no state between calls beyond the base URL, the optional API key and
// the shared http.Client.
type Client struct {
	baseURL string
	apiKey  string
	hc      *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.hc = hc }
}

// WithTimeout sets the per-request timeout on the underlying http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.hc.Timeout = d }
}

// New creates a client for the service at baseURL. apiKey may be empty; when
// set it is sent as a bearer token.
func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		hc:      &http.Client{Timeout: 120 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Health reports whether the service is reachable and answers its health
// endpoint with a 200 envelope. The health payload itself is opaque.
func (c *Client) Health(ctx context.Context) (bool, error) {
	if err := c.get(ctx, "/health", nil); err != nil {
		return false, err
	}
	return true, nil
}

// Models returns the model names the service can generate with.
func (c *Client) Models(ctx context.Context) ([]string, error) {
	var names []string
	if err := c.get(ctx, "/v1/models", &names); err != nil {
		return nil, err
	}
	return names, nil
}

// Submit creates a generation task and returns its server-assigned id.
func (c *Client) Submit(ctx context.Context, req *GenerationRequest) (string, error) {
	body := map[string]*GenerationRequest{"param_obj": req}
	var data struct {
		TaskID string `json:"task_id"`
	}
	if err := c.post(ctx, "/release_task", body, &data); err != nil {
		return "", fmt.Errorf("submit task: %w", err)
	}
	if data.TaskID == "" {
		return "", fmt.Errorf("submit task: service returned no task id")
	}
	return data.TaskID, nil
}

// QueryStatus fetches the state of one or more tasks in a single call.
// Tasks the service does not report on are absent from the returned map.
func (c *Client) QueryStatus(ctx context.Context, ids []string) (map[string]TaskState, error) {
	body := map[string][]string{"task_id_list": ids}
	var data []TaskState
	if err := c.post(ctx, "/query_result", body, &data); err != nil {
		return nil, fmt.Errorf("query status: %w", err)
	}
	states := make(map[string]TaskState, len(data))
	for _, st := range data {
		states[st.TaskID] = st
	}
	return states, nil
}

// Download fetches the raw audio bytes for a result file reference. This is
// the one endpoint that answers with bytes instead of the envelope.
func (c *Client) Download(ctx context.Context, path string) ([]byte, error) {
	u := fmt.Sprintf("%s/v1/audio?path=%s", c.baseURL, url.QueryEscape(path))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	c.auth(req)

	log.Debug("api request", "method", req.Method, "url", u)
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("download %s: read response: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &RemoteError{Op: "download", Code: resp.StatusCode, Message: strings.TrimSpace(string(data))}
	}
	return data, nil
}

func (c *Client) post(ctx context.Context, endpoint string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return c.do(req, endpoint, out)
}

func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return c.do(req, endpoint, out)
}

// do executes the request, unwraps the envelope and decodes its data field
// into out (when out is non-nil). A code other than 200 in either the HTTP
// status or the envelope becomes a *RemoteError carrying the service's
// error message.
func (c *Client) do(req *http.Request, op string, out any) error {
	req.Header.Set("Content-Type", "application/json")
	c.auth(req)

	log.Debug("api request", "method", req.Method, "url", req.URL.String())
	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	log.Debug("api response", "status", resp.StatusCode, "body", string(respBody))

	var env Envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		if resp.StatusCode != http.StatusOK {
			return &RemoteError{Op: op, Code: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
		}
		return fmt.Errorf("decode response: %w", err)
	}
	if env.Code != http.StatusOK {
		return &RemoteError{Op: op, Code: env.Code, Message: env.Error}
	}
	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode response data: %w", err)
		}
	}
	return nil
}

func (c *Client) auth(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}
