package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

// ErrNoRunningProcess is returned by SendInput when the backend rejects the input,
// which it does when no program is running.
var ErrNoRunningProcess = errors.New("no running process")

// StatusError is a non-success HTTP status returned by the backend.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("non-2xx HTTP status code %d received when %s: %s", e.StatusCode, e.Op, e.Body)
}

// Client talks to the execution backend over HTTP.
type Client struct {
	Logger     *zap.SugaredLogger
	HTTPClient *http.Client

	baseURL                  string
	retryMax                 int
	retryWait                time.Duration
	customizeRetryableClient func(*retryablehttp.Client)

	waitInterval time.Duration
}

type ClientOption func(c *Client)

func WithClientLogger(l *zap.Logger) ClientOption {
	return func(c *Client) {
		c.Logger = l.Named("transport_client").Sugar()
	}
}

// WithRetryMax sets how many times a request that never reached the backend is retried.
func WithRetryMax(n int) ClientOption {
	return func(c *Client) {
		c.retryMax = n
	}
}

func WithRetryWait(d time.Duration) ClientOption {
	return func(c *Client) {
		c.retryWait = d
	}
}

func WithClientWaitInterval(d time.Duration) ClientOption {
	return func(c *Client) {
		c.waitInterval = d
	}
}

func WithCustomizeRetryableClient(f func(r *retryablehttp.Client)) ClientOption {
	return func(c *Client) {
		c.customizeRetryableClient = f
	}
}

type logAdapter struct {
	*zap.SugaredLogger
}

func (a *logAdapter) Printf(msg string, args ...interface{}) { a.Debugf(msg, args...) }

// NewClient builds a client for the backend at baseURL, e.g. "http://localhost:5000".
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("backend URL is required")
	}
	c := &Client{
		Logger:       zap.NewNop().Sugar(),
		baseURL:      strings.TrimRight(baseURL, "/"),
		retryMax:     3,
		retryWait:    100 * time.Millisecond,
		waitInterval: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = c.retryMax
	retryClient.Backoff = func(min, max time.Duration, attemptNum int, resp *http.Response) time.Duration {
		return c.retryWait
	}
	retryClient.CheckRetry = checkRetry
	retryClient.Logger = &logAdapter{SugaredLogger: c.Logger}

	if c.customizeRetryableClient != nil {
		c.customizeRetryableClient(retryClient)
	}

	c.HTTPClient = retryClient.StandardClient()
	return c, nil
}

// checkRetry retries only requests that got no response at all.
// A POST that reached the backend has already started a program or fed it input,
// so replaying it is never safe. A timeout may have reached it, so it isn't retried either.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return false, nil
	}
	return err != nil && resp == nil, nil
}

func (c *Client) prepReq(r *http.Request) {
	r.Header.Add("Content-Type", "application/json")
}

func (c *Client) postJSON(ctx context.Context, path string, body any) (*http.Response, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	c.prepReq(httpReq)
	return c.HTTPClient.Do(httpReq)
}

func statusError(op string, resp *http.Response) *StatusError {
	var body string
	b, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		body = fmt.Errorf("error reading body: %w", err).Error()
	} else {
		body = strings.TrimSpace(string(b))
	}
	return &StatusError{Op: op, StatusCode: resp.StatusCode, Body: body}
}

// StartRun submits code for execution and returns the stream of its output.
// The stream stays open until the program exits; its lifetime is bound to ctx.
func (c *Client) StartRun(ctx context.Context, code string) (Stream, error) {
	c.Logger.Debugw("starting run", "URL", c.baseURL+"/run", "Bytes", len(code))
	httpResp, err := c.postJSON(ctx, "/run", RunRequest{Code: code})
	if err != nil {
		return nil, fmt.Errorf("starting run over HTTP: %w", err)
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		defer httpResp.Body.Close()
		return nil, statusError("starting run", httpResp)
	}
	return newTextStream(httpResp.Body), nil
}

// SendInput delivers one line of input to the running program and returns the output it produced.
// A rejected request is reported as ErrNoRunningProcess.
func (c *Client) SendInput(ctx context.Context, input string) (string, error) {
	c.Logger.Debugw("sending input", "Bytes", len(input))
	httpResp, err := c.postJSON(ctx, "/send_input", SendInputRequest{Input: input})
	if err != nil {
		return "", fmt.Errorf("sending input over HTTP: %w", err)
	}
	defer httpResp.Body.Close()
	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return "", fmt.Errorf("%w: %w", ErrNoRunningProcess, statusError("sending input", httpResp))
	}

	var resp SendInputResponse
	err = json.NewDecoder(httpResp.Body).Decode(&resp)
	if err != nil {
		return "", fmt.Errorf("decoding send_input response: %w", err)
	}
	return resp.Output, nil
}

func (c *Client) SendHeartbeat(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/heartbeat", nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}

	c.prepReq(req)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP error: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected heartbeat status code %d", resp.StatusCode)
	}
	return nil
}

// WaitForServer polls the backend heartbeat until it answers or ctx is done.
func (c *Client) WaitForServer(ctx context.Context) error {
	ticker := time.NewTicker(c.waitInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			err := c.SendHeartbeat(ctx)
			if err == nil {
				c.Logger.Debug("heartbeat succeeded, done waiting for server")
				return nil
			}
			c.Logger.Debugf("got heartbeat error: %s", err)
		}
	}
}
