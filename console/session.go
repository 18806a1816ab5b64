// Package console holds the interactive session core: what runs, what the terminal shows,
// and where each submitted line goes.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/guseggert/pyconsole/prompt"
	"github.com/guseggert/pyconsole/transport"
	"go.uber.org/zap"
)

var (
	ErrRunInProgress = errors.New("a run is already in progress")
	ErrNotPython     = errors.New("only .py files can be loaded")
)

// Transport executes source remotely.
// Both transport.Client and transport.WSClient implement it.
type Transport interface {
	StartRun(ctx context.Context, code string) (transport.Stream, error)
	SendInput(ctx context.Context, input string) (string, error)
}

// Session is one console: the source text, the terminal history and the run state.
// It is safe for concurrent use. Transport calls are made without holding the lock.
type Session struct {
	log         *zap.SugaredLogger
	transport   Transport
	saver       Saver
	echoPrompts bool

	mu      sync.Mutex
	source  string
	prompts prompt.List
	state   State
	// streamOpen is true from Start until Finish, and tells a late send response
	// whether the run is still there to return to.
	streamOpen bool
	input      string
	history    *History
}

type Option func(s *Session)

func WithLogger(l *zap.Logger) Option {
	return func(s *Session) {
		s.log = l.Sugar().Named("console")
	}
}

func WithSaver(saver Saver) Option {
	return func(s *Session) {
		s.saver = saver
	}
}

// WithEchoPrompts controls whether a detected prompt label is shown as its own line.
func WithEchoPrompts(b bool) Option {
	return func(s *Session) {
		s.echoPrompts = b
	}
}

// WithOnChange registers f to be called after the history changes.
// f is called with the session lock held and must not call back into the Session.
func WithOnChange(f func()) Option {
	return func(s *Session) {
		s.history.OnChange(f)
	}
}

func NewSession(t Transport, opts ...Option) *Session {
	s := &Session{
		log:         zap.NewNop().Sugar(),
		transport:   t,
		saver:       DirSaver{},
		echoPrompts: true,
		prompts:     prompt.List{},
		history:     NewHistory(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Session) Source() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source
}

// SetSource replaces the source text. A run in progress keeps the text it started with.
func (s *Session) SetSource(src string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.source = src
}

// LoadSource replaces the source text with the contents of a .py file.
func (s *Session) LoadSource(name string, r io.Reader) error {
	if !strings.HasSuffix(strings.ToLower(name), sourceFileExt) {
		return fmt.Errorf("loading %q: %w", name, ErrNotPython)
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("reading %q: %w", name, err)
	}
	s.SetSource(string(b))
	return nil
}

func (s *Session) ApplyTemplate(name string) error {
	t, err := lookupTemplate(name)
	if err != nil {
		return err
	}
	s.SetSource(t.Code)
	return nil
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Prompts returns the prompt labels of the current or most recent run.
func (s *Session) Prompts() prompt.List {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append(prompt.List{}, s.prompts...)
}

func (s *Session) History() *History {
	return s.history
}

// Input returns the pending input line.
func (s *Session) Input() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.input
}

func (s *Session) SetInput(v string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.input = v
}

// Start opens a run of the current source text.
// If a run is already open it does nothing and returns ErrRunInProgress.
// If the transport fails the failure is written to the history, the session
// goes back to Idle and the error is returned.
func (s *Session) Start(ctx context.Context) (transport.Stream, error) {
	s.mu.Lock()
	if s.state != Idle {
		state := s.state
		s.mu.Unlock()
		s.log.Debugw("ignoring run request", "State", state)
		return nil, ErrRunInProgress
	}
	code := s.source
	s.prompts = prompt.Extract(code)
	s.state = Running
	s.streamOpen = true
	s.history.Append(RunningMarker)
	prompts := s.prompts
	s.mu.Unlock()

	s.log.Debugw("starting run", "Prompts", prompts.Labels())
	stream, err := s.transport.StartRun(ctx, code)
	if err != nil {
		s.Finish(err)
		return nil, fmt.Errorf("starting run: %w", err)
	}
	return stream, nil
}

// Receive applies one chunk of run output.
// Any chunk of a run whose source declares prompts moves it to AwaitingInput, whether or not
// the chunk holds a label. Chunks that arrive after the run has finished are dropped.
func (s *Session) Receive(chunk string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.streamOpen {
		s.log.Debugw("dropping chunk for finished run", "Chunk", chunk)
		return
	}
	prompted := s.show(chunk)
	if prompted || len(s.prompts) > 0 {
		s.state = AwaitingInput
	}
}

// Finish closes the run. A nil or io.EOF error is a normal end.
func (s *Session) Finish(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.streamOpen {
		return
	}
	s.streamOpen = false
	s.state = Idle
	if err != nil && !errors.Is(err, io.EOF) {
		s.log.Debugf("run failed: %s", err)
		s.history.Append(MsgRunError)
		return
	}
	s.log.Debug("run finished")
}

// Run starts a run and feeds its output into the session until the stream ends.
func (s *Session) Run(ctx context.Context) error {
	stream, err := s.Start(ctx)
	if err != nil {
		return err
	}
	defer stream.Close()
	for {
		chunk, err := stream.Next(ctx)
		if errors.Is(err, io.EOF) {
			s.Finish(nil)
			return nil
		}
		if err != nil {
			s.Finish(err)
			return fmt.Errorf("reading run output: %w", err)
		}
		s.Receive(chunk)
	}
}

// Submit handles one line typed by the user.
// While no run is open the line is a local command; otherwise it goes to the
// program's stdin. Failures are written to the history, never returned.
func (s *Session) Submit(ctx context.Context, line string) {
	s.mu.Lock()
	s.input = ""
	text := strings.TrimSpace(line)
	if text == "" {
		s.mu.Unlock()
		return
	}
	if !s.state.Remote() {
		s.dispatch(text)
		s.mu.Unlock()
		return
	}
	s.history.Append(EchoPrefix + text)
	s.mu.Unlock()

	out, err := s.transport.SendInput(ctx, text)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.log.Debugf("error sending input: %s", err)
		if errors.Is(err, transport.ErrNoRunningProcess) {
			s.history.Append(MsgNoProcess)
		} else {
			s.history.Append(MsgSendError)
		}
		s.settle(false)
		return
	}
	s.settle(s.show(out))
}

// SubmitInput submits the pending input line.
func (s *Session) SubmitInput(ctx context.Context) {
	s.Submit(ctx, s.Input())
}

// settle picks the state after a send. The caller holds s.mu.
func (s *Session) settle(prompted bool) {
	switch {
	case !s.streamOpen:
		s.state = Idle
	case prompted:
		s.state = AwaitingInput
	default:
		s.state = Running
	}
}

// show splits output around the run's prompts and appends what is left.
// It reports whether a prompt was found. The caller holds s.mu.
func (s *Session) show(out string) bool {
	seg := prompt.Split(out, s.prompts)
	if seg.Prompted() && s.echoPrompts {
		// the last match is the prompt nearest the end of the output
		if label := strings.TrimSpace(seg.Matched[len(seg.Matched)-1]); label != "" {
			s.history.Append(label)
		}
	}
	if !seg.Empty() {
		s.history.Append(seg.Output)
	}
	return seg.Prompted()
}
