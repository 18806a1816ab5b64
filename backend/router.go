package backend

import (
	"bytes"
	"io"
	"sync"
)

// outputRouter is where a run's stdout and stderr are written.
// Writes go to the run's stream, except while a send is waiting for the program's response,
// when they are captured for that send instead.
type outputRouter struct {
	m       sync.Mutex
	stream  io.Writer
	capture *capture
}

// capture collects output for one send.
type capture struct {
	buf bytes.Buffer
	// wrote receives a value after each write, without blocking the writer
	wrote chan struct{}
}

func newOutputRouter(stream io.Writer) *outputRouter {
	return &outputRouter{stream: stream}
}

// Capture diverts output away from the stream until Release is called.
func (o *outputRouter) Capture() *capture {
	o.m.Lock()
	defer o.m.Unlock()
	c := &capture{wrote: make(chan struct{}, 1)}
	o.capture = c
	return c
}

// Release stops capturing and returns what was captured.
func (o *outputRouter) Release(c *capture) string {
	o.m.Lock()
	defer o.m.Unlock()
	if o.capture == c {
		o.capture = nil
	}
	return c.buf.String()
}

func (o *outputRouter) Write(p []byte) (int, error) {
	o.m.Lock()
	defer o.m.Unlock()

	if c := o.capture; c != nil {
		c.buf.Write(p)
		select {
		case c.wrote <- struct{}{}:
		default:
		}
		return len(p), nil
	}

	n, err := o.stream.Write(p)
	if err != nil {
		return n, err
	}
	if n != len(p) {
		return n, io.ErrShortWrite
	}
	return n, nil
}
