package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const APIKeyHeader = "X-API-Key"

// DefaultMaxResponseBytes caps a successful response body. A full chain is
// the largest thing a node serves.
const DefaultMaxResponseBytes int64 = 64 << 20

var ErrResponseTooLarge = errors.New("response body too large")

type Client struct {
	baseURL  string
	apiKey   string
	http     *http.Client
	maxBytes int64
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

func WithAPIKey(key string) Option {
	return func(cl *Client) {
		cl.apiKey = strings.TrimSpace(key)
	}
}

func WithMaxResponseBytes(n int64) Option {
	return func(cl *Client) {
		if n > 0 {
			cl.maxBytes = n
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		if d > 0 {
			cl.http.Timeout = d
		}
	}
}

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Method  string
	Path    string
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("http %s %s: status %d", e.Method, e.Path, e.Code)
	}
	return fmt.Sprintf("http %s %s: status %d: %s", e.Method, e.Path, e.Code, e.Message)
}

func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("baseURL must not be empty")
	}
	baseURL = strings.TrimRight(baseURL, "/")

	cl := &Client{
		baseURL: baseURL,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
		maxBytes: DefaultMaxResponseBytes,
	}
	for _, o := range opts {
		o(cl)
	}
	return cl, nil
}

func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) Health(ctx context.Context) (Health, error) {
	var out Health
	if err := c.getJSON(ctx, "/healthz", &out); err != nil {
		return Health{}, err
	}
	return out, nil
}

func (c *Client) Version(ctx context.Context) (VersionInfo, error) {
	var out VersionInfo
	if err := c.getJSON(ctx, "/version", &out); err != nil {
		return VersionInfo{}, err
	}
	return out, nil
}

func (c *Client) Status(ctx context.Context) (NodeStatus, error) {
	var out NodeStatus
	if err := c.getJSON(ctx, "/status", &out); err != nil {
		return NodeStatus{}, err
	}
	return out, nil
}

func (c *Client) Chain(ctx context.Context) (Chain, error) {
	var out Chain
	if err := c.getJSON(ctx, "/chain", &out); err != nil {
		return Chain{}, err
	}
	return out, nil
}

func (c *Client) Valid(ctx context.Context) (Validity, error) {
	var out Validity
	if err := c.getJSON(ctx, "/valid", &out); err != nil {
		return Validity{}, err
	}
	return out, nil
}

func (c *Client) Peers(ctx context.Context) (PeerList, error) {
	var out PeerList
	if err := c.getJSON(ctx, "/peers", &out); err != nil {
		return PeerList{}, err
	}
	return out, nil
}

// SubmitBlock asks the node to mine txs into a new block. The call returns
// once mining is done, which can take a while at high difficulty.
func (c *Client) SubmitBlock(ctx context.Context, txs []Transaction) (Block, error) {
	var out SubmitResponse
	if err := c.postJSON(ctx, "/blocks", SubmitRequest{Transactions: txs}, &out); err != nil {
		return Block{}, err
	}
	return out.Block, nil
}

func (c *Client) Consensus(ctx context.Context) (ConsensusResult, error) {
	var out ConsensusResult
	if err := c.postJSON(ctx, "/consensus", struct{}{}, &out); err != nil {
		return ConsensusResult{}, err
	}
	return out, nil
}

func (c *Client) AddPeer(ctx context.Context, url string) (AddPeerResponse, error) {
	var out AddPeerResponse
	if err := c.postJSON(ctx, "/peers", AddPeerRequest{URL: url}, &out); err != nil {
		return AddPeerResponse{}, err
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, path, bytes.NewReader(body), out)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set(APIKeyHeader, c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := &StatusError{Method: method, Path: path, Code: resp.StatusCode}
		var er ErrorResponse
		if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&er); err == nil {
			se.Message = er.Error
		}
		return se
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return err
	}
	if int64(len(raw)) > c.maxBytes {
		return fmt.Errorf("http %s %s: %w (limit %d bytes)", method, path, ErrResponseTooLarge, c.maxBytes)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}
