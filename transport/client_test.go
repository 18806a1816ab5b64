package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var log *zap.Logger

func init() {
	l, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	log = l
}

func newTestClient(t *testing.T, url string, opts ...ClientOption) *Client {
	opts = append([]ClientOption{WithClientLogger(log), WithRetryWait(time.Millisecond)}, opts...)
	c, err := NewClient(url, opts...)
	require.NoError(t, err)
	return c
}

// readAll drains a stream, returning every chunk it produced.
func readAll(t *testing.T, ctx context.Context, s Stream) []string {
	var chunks []string
	for {
		chunk, err := s.Next(ctx)
		if errors.Is(err, io.EOF) {
			return chunks
		}
		require.NoError(t, err)
		chunks = append(chunks, chunk)
	}
}

func flushWrite(w http.ResponseWriter, b []byte) {
	w.Write(b)
	w.(http.Flusher).Flush()
}

func TestStartRunStreamsOutput(t *testing.T) {
	var gotCode string
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/run", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		var req RunRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotCode = req.Code
		flushWrite(w, []byte("Hello, "))
		flushWrite(w, []byte("World!\n"))
	}))
	t.Cleanup(s.Close)

	ctx := context.Background()
	c := newTestClient(t, s.URL)
	stream, err := c.StartRun(ctx, `print("Hello, World!")`)
	require.NoError(t, err)
	defer stream.Close()

	chunks := readAll(t, ctx, stream)
	assert.Equal(t, "Hello, World!\n", strings.Join(chunks, ""))
	assert.Equal(t, `print("Hello, World!")`, gotCode)

	// the stream stays at EOF
	_, err = stream.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestStartRunReassemblesSplitRunes(t *testing.T) {
	euro := []byte("€")
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flushWrite(w, euro[:2])
		time.Sleep(20 * time.Millisecond)
		flushWrite(w, append(euro[2:], '!'))
	}))
	t.Cleanup(s.Close)

	ctx := context.Background()
	stream, err := newTestClient(t, s.URL).StartRun(ctx, "")
	require.NoError(t, err)
	defer stream.Close()

	chunks := readAll(t, ctx, stream)
	for _, chunk := range chunks {
		assert.True(t, utf8.ValidString(chunk), "chunk %q is not valid UTF-8", chunk)
	}
	assert.Equal(t, "€!", strings.Join(chunks, ""))
}

func TestStartRunRejected(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "a process is already running", http.StatusConflict)
	}))
	t.Cleanup(s.Close)

	_, err := newTestClient(t, s.URL).StartRun(context.Background(), "")
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusConflict, statusErr.StatusCode)
	assert.Equal(t, "a process is already running", statusErr.Body)
}

func TestStartRunUnreachable(t *testing.T) {
	s := httptest.NewServer(http.NotFoundHandler())
	url := s.URL
	s.Close()

	_, err := newTestClient(t, url, WithRetryMax(1)).StartRun(context.Background(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "giving up after 2 attempt(s)")
}

func TestStreamNextHonorsContext(t *testing.T) {
	release := make(chan struct{})
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flushWrite(w, []byte("waiting"))
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(s.Close)
	t.Cleanup(func() { close(release) })

	stream, err := newTestClient(t, s.URL).StartRun(context.Background(), "")
	require.NoError(t, err)
	defer stream.Close()

	chunk, err := stream.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "waiting", chunk)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = stream.Next(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSendInput(t *testing.T) {
	cases := []struct {
		name      string
		handler   http.HandlerFunc
		expOutput string
		expNoProc bool
		expErr    bool
	}{
		{
			name: "output is returned",
			handler: func(w http.ResponseWriter, r *http.Request) {
				var req SendInputRequest
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				json.NewEncoder(w).Encode(SendInputResponse{Output: "got " + req.Input})
			},
			expOutput: "got 5",
		},
		{
			name: "not found means no running process",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "no running process", http.StatusNotFound)
			},
			expNoProc: true,
		},
		{
			name: "any non-success status means no running process",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			expNoProc: true,
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("not json"))
			},
			expErr: true,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			s := httptest.NewServer(c.handler)
			t.Cleanup(s.Close)

			out, err := newTestClient(t, s.URL).SendInput(context.Background(), "5")
			switch {
			case c.expNoProc:
				assert.ErrorIs(t, err, ErrNoRunningProcess)
			case c.expErr:
				require.Error(t, err)
				assert.NotErrorIs(t, err, ErrNoRunningProcess)
			default:
				require.NoError(t, err)
				assert.Equal(t, c.expOutput, out)
			}
		})
	}
}

func TestCheckRetry(t *testing.T) {
	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	cases := []struct {
		name     string
		ctx      context.Context
		resp     *http.Response
		err      error
		expRetry bool
	}{
		{name: "connection error", ctx: context.Background(), err: errors.New("connection refused"), expRetry: true},
		{name: "server error is not replayed", ctx: context.Background(), resp: &http.Response{StatusCode: 500}},
		{name: "success", ctx: context.Background(), resp: &http.Response{StatusCode: 200}},
		{name: "canceled", ctx: canceled, err: errors.New("connection refused")},
		{name: "timeout is not replayed", ctx: context.Background(), err: &url.Error{Op: "Post", URL: "http://backend/send_input", Err: os.ErrDeadlineExceeded}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			retry, _ := checkRetry(c.ctx, c.resp, c.err)
			assert.Equal(t, c.expRetry, retry)
		})
	}
}

func TestWaitForServer(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/heartbeat", r.URL.Path)
		w.Write([]byte(`{"LastHeartbeat":""}`))
	}))
	t.Cleanup(s.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c := newTestClient(t, s.URL, WithClientWaitInterval(time.Millisecond))
	require.NoError(t, c.WaitForServer(ctx))
}

func TestCustomizeRetryableClient(t *testing.T) {
	var requests atomic.Int32
	release := make(chan struct{})
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	t.Cleanup(s.Close)
	t.Cleanup(func() { close(release) })

	c := newTestClient(t, s.URL, WithCustomizeRetryableClient(func(r *retryablehttp.Client) {
		r.HTTPClient.Timeout = 50 * time.Millisecond
	}))
	_, err := c.SendInput(context.Background(), "5")
	require.Error(t, err)
	assert.EqualValues(t, 1, requests.Load())
}

func TestNewClientRequiresURL(t *testing.T) {
	_, err := NewClient("")
	assert.Error(t, err)
}
