package backend

import (
	"context"

	"github.com/guseggert/pyconsole/transport"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const readLimit = 32768

// wsJSONWriter sends everything written to it as output frames.
type wsJSONWriter struct {
	log  *zap.SugaredLogger
	ctx  context.Context
	conn *websocket.Conn
}

func (w *wsJSONWriter) Write(b []byte) (int, error) {
	// the encoded frame must fit the client's read limit; base64 grows the payload by a third
	writeLimit := readLimit / 3
	left := b
	for len(left) > 0 {
		chunk := left
		if len(chunk) > writeLimit {
			chunk = chunk[:writeLimit]
		}
		left = left[len(chunk):]

		err := wsjson.Write(w.ctx, w.conn, transport.WSRunMessage{Output: chunk})
		if err != nil {
			return len(b) - len(left) - len(chunk), err
		}
	}
	w.log.Debugf("wrote %d bytes", len(b))
	return len(b), nil
}

func (w *wsJSONWriter) done(exitCode int, runErr error) error {
	msg := transport.WSRunMessage{Done: true, ExitCode: exitCode}
	if runErr != nil {
		msg.Err = runErr.Error()
	}
	return wsjson.Write(w.ctx, w.conn, msg)
}
