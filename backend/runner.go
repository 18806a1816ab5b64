package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	errBusy          = errors.New("a program is already running")
	errNotRunning    = errors.New("no running process")
	errNoInterpreter = errors.New("interpreter command is empty")
)

// run is one execution of a program.
type run struct {
	id  uuid.UUID
	log *zap.SugaredLogger
	cmd *exec.Cmd

	stdout io.ReadCloser
	stderr io.ReadCloser
	stdin  io.WriteCloser

	output *outputRouter

	// done is closed once all output has been read and the process has exited
	done chan struct{}

	// sendMut serializes sends, so that each gets only the output that followed its own input
	sendMut sync.Mutex
}

// startRun starts code under the interpreter, writing its output to sink.
// Output is not copied until wait is called.
func (s *Server) startRun(code string, sink io.Writer) (*run, error) {
	s.runMut.Lock()
	defer s.runMut.Unlock()
	if s.cur != nil {
		return nil, errBusy
	}

	args := append(append([]string{}, s.interpreter[1:]...), code)
	cmd := exec.Command(s.interpreter[0], args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("getting stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("getting stderr pipe: %w", err)
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("getting stdin pipe: %w", err)
	}
	err = cmd.Start()
	if err != nil {
		return nil, fmt.Errorf("starting process: %w", err)
	}

	id := uuid.New()
	r := &run{
		id:     id,
		log:    s.logger.Named("run").With("RunID", id.String()),
		cmd:    cmd,
		stdout: stdout,
		stderr: stderr,
		stdin:  stdin,
		output: newOutputRouter(sink),
		done:   make(chan struct{}),
	}
	s.cur = r
	r.log.Debugw("process started", "PID", cmd.Process.Pid)
	return r, nil
}

func (s *Server) current() *run {
	s.runMut.Lock()
	defer s.runMut.Unlock()
	return s.cur
}

func (s *Server) endRun(r *run) {
	s.runMut.Lock()
	defer s.runMut.Unlock()
	if s.cur == r {
		s.cur = nil
	}
}

func (r *run) kill() {
	err := r.cmd.Process.Kill()
	if err != nil && !errors.Is(err, os.ErrProcessDone) {
		r.log.Debugf("error killing process: %s", err)
	}
}

// wait copies output until the process exits, and returns its exit code.
// The process is killed if ctx is done first, or if output can't be delivered.
func (r *run) wait(ctx context.Context) (int, error) {
	startTime := time.Now()
	stop := context.AfterFunc(ctx, r.kill)
	defer stop()

	var g errgroup.Group
	g.Go(func() error { return r.pump(r.stdout) })
	g.Go(func() error { return r.pump(r.stderr) })
	pumpErr := g.Wait()

	// all reads are done, so it's now safe to wait
	waitErr := r.cmd.Wait()
	close(r.done)

	exitCode := r.cmd.ProcessState.ExitCode()
	r.log.Debugw("process exited", "ExitCode", exitCode, "TimeMS", time.Since(startTime).Milliseconds())

	if pumpErr != nil {
		return exitCode, pumpErr
	}
	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		return exitCode, fmt.Errorf("waiting for process: %w", waitErr)
	}
	return exitCode, nil
}

func (r *run) pump(src io.Reader) error {
	_, err := io.Copy(r.output, src)
	if err != nil {
		r.log.Debugf("error copying output, killing process: %s", err)
		r.kill()
		return fmt.Errorf("copying output: %w", err)
	}
	return nil
}

// send writes one line to stdin and returns the output that follows it.
// It returns once the program has been quiet for settle, or has exited.
func (r *run) send(ctx context.Context, input string, settle time.Duration) (string, error) {
	r.sendMut.Lock()
	defer r.sendMut.Unlock()

	select {
	case <-r.done:
		return "", errNotRunning
	default:
	}

	c := r.output.Capture()
	_, err := io.WriteString(r.stdin, input+"\n")
	if err != nil {
		r.output.Release(c)
		r.log.Debugf("error writing stdin: %s", err)
		return "", fmt.Errorf("%w: writing stdin: %w", errNotRunning, err)
	}

	timer := time.NewTimer(settle)
	defer timer.Stop()
	for {
		select {
		case <-c.wrote:
			timer.Reset(settle)
		case <-timer.C:
			return r.output.Release(c), nil
		case <-r.done:
			return r.output.Release(c), nil
		case <-ctx.Done():
			r.output.Release(c)
			return "", ctx.Err()
		}
	}
}
