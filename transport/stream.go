package transport

import (
	"context"
	"errors"
	"fmt"
	"io"

	"golang.org/x/text/encoding/unicode"
)

const readLimit = 32768

// Stream is the output of one run.
type Stream interface {
	// Next blocks until the next chunk of output arrives.
	// It returns io.EOF once the run is over.
	Next(ctx context.Context) (string, error)
	Close() error
}

// textStream reads chunks of text from a byte stream.
// Multi-byte characters split across reads are held back until they are complete,
// and invalid bytes are replaced with U+FFFD.
type textStream struct {
	rc  io.ReadCloser
	r   io.Reader
	buf []byte
}

func newTextStream(rc io.ReadCloser) *textStream {
	return &textStream{
		rc:  rc,
		r:   unicode.UTF8.NewDecoder().Reader(rc),
		buf: make([]byte, readLimit),
	}
}

func (s *textStream) Next(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	// a blocked read can only be interrupted by closing what it reads from
	stop := context.AfterFunc(ctx, func() { s.rc.Close() })
	defer stop()

	for {
		n, err := s.r.Read(s.buf)
		if n > 0 {
			return string(s.buf[:n]), nil
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", ctxErr
			}
			if errors.Is(err, io.EOF) {
				return "", io.EOF
			}
			return "", fmt.Errorf("reading run output: %w", err)
		}
	}
}

func (s *textStream) Close() error {
	return s.rc.Close()
}
