package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// WSClient streams runs over a WebSocket and sends input over HTTP.
type WSClient struct {
	*Client

	// DialHTTPClient is used for the WebSocket handshake.
	// It must not retry, since a handshake response hijacks the connection.
	DialHTTPClient *http.Client
}

func NewWSClient(baseURL string, opts ...ClientOption) (*WSClient, error) {
	c, err := NewClient(baseURL, opts...)
	if err != nil {
		return nil, err
	}
	return &WSClient{Client: c, DialHTTPClient: http.DefaultClient}, nil
}

// StartRun dials /ws/run, sends the code, and returns a stream fed by the output frames.
func (c *WSClient) StartRun(ctx context.Context, code string) (Stream, error) {
	u := c.baseURL + "/ws/run"
	c.Logger.Debugw("dialing WebSocket for run", "URL", u)
	wsConn, _, err := websocket.Dial(ctx, u, &websocket.DialOptions{
		HTTPClient:      c.DialHTTPClient,
		CompressionMode: websocket.CompressionContextTakeover,
	})
	if err != nil {
		c.Logger.Debugf("dial error: %s", err)
		return nil, fmt.Errorf("establishing WebSocket conn to run: %w", err)
	}
	wsConn.SetReadLimit(readLimit)

	err = wsjson.Write(ctx, wsConn, WSRunRequest{Code: code})
	if err != nil {
		wsConn.Close(websocket.StatusInternalError, "writing first message")
		return nil, fmt.Errorf("writing first message: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	pr, pw := io.Pipe()
	runner := &wsRunReader{
		log:    c.Logger.Named("ws_run_reader"),
		conn:   wsConn,
		ctx:    ctx,
		cancel: cancel,
		out:    pw,
	}
	runner.wg.Add(1)
	go runner.readMessages()

	return &wsStream{textStream: newTextStream(pr), runner: runner}, nil
}

// wsRunReader copies output frames into a pipe until the run is done.
type wsRunReader struct {
	log    *zap.SugaredLogger
	conn   *websocket.Conn
	ctx    context.Context
	cancel func()
	out    *io.PipeWriter

	wg sync.WaitGroup

	closeConnOnce sync.Once
}

func (r *wsRunReader) close(code websocket.StatusCode, reason string) {
	// websocket reason can't be above 123 chars
	if len(reason) > 100 {
		reason = reason[0:100]
	}
	r.closeConnOnce.Do(func() {
		err := r.conn.Close(code, reason)
		if err != nil {
			r.log.Debugf("error closing conn: %s", err)
		}
	})
}

func (r *wsRunReader) shutdown() {
	r.cancel()
	r.close(websocket.StatusNormalClosure, "")
	r.wg.Wait()
}

// The client always initiates the close once it has seen the Done frame.
func (r *wsRunReader) readMessages() {
	defer r.wg.Done()
	for {
		var msg WSRunMessage
		err := wsjson.Read(r.ctx, r.conn, &msg)
		if websocket.CloseStatus(err) != -1 {
			r.out.CloseWithError(fmt.Errorf("conn unexpectedly closed: %w", err))
			return
		}
		if err != nil {
			r.log.Debugf("message reader got error: %s", err)
			r.out.CloseWithError(err)
			r.close(websocket.StatusInternalError, err.Error())
			return
		}
		if len(msg.Output) > 0 {
			_, err := r.out.Write(msg.Output)
			if err != nil {
				r.log.Debugf("output reader went away: %s", err)
				r.close(websocket.StatusNormalClosure, "")
				return
			}
		}
		if msg.Done {
			r.log.Debugw("run done", "ExitCode", msg.ExitCode, "Err", msg.Err)
			if msg.Err != "" {
				r.out.CloseWithError(errors.New(msg.Err))
			} else {
				r.out.Close()
			}
			r.close(websocket.StatusNormalClosure, "")
			return
		}
	}
}

type wsStream struct {
	*textStream
	runner *wsRunReader
}

func (s *wsStream) Close() error {
	err := s.textStream.Close()
	s.runner.shutdown()
	return err
}
