package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/guseggert/pyconsole/transport"
	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// Server runs programs on behalf of console clients, one at a time.
type Server struct {
	logger *zap.SugaredLogger

	listenAddr  string
	interpreter []string
	settle      time.Duration

	httpServer *http.Server

	runMut sync.Mutex
	cur    *run

	heartbeatMut  sync.Mutex
	lastHeartbeat time.Time
}

type Option func(s *Server)

func WithListenAddr(addr string) Option {
	return func(s *Server) {
		s.listenAddr = addr
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		s.logger = l.Sugar().Named("backend")
	}
}

func WithLogLevel(l zapcore.Level) Option {
	return func(s *Server) {
		s.logger = s.logger.WithOptions(zap.IncreaseLevel(l))
	}
}

// WithInterpreter sets the command that runs code. The code is passed as the last argument.
func WithInterpreter(cmd ...string) Option {
	return func(s *Server) {
		s.interpreter = cmd
	}
}

// WithSettle sets how long a send waits for the program to go quiet.
func WithSettle(d time.Duration) Option {
	return func(s *Server) {
		s.settle = d
	}
}

func NewServer(opts ...Option) (*Server, error) {
	logger, err := zap.NewDevelopment()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	s := &Server{
		logger:      logger.Named("backend").Sugar(),
		listenAddr:  "127.0.0.1:5000",
		interpreter: []string{"python3", "-u", "-c"},
		settle:      300 * time.Millisecond,
	}
	for _, o := range opts {
		o(s)
	}
	if len(s.interpreter) == 0 || s.interpreter[0] == "" {
		return nil, errNoInterpreter
	}
	s.httpServer = &http.Server{Handler: s.Handler()}
	return s, nil
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler {
	router := httprouter.New()
	router.GET("/heartbeat", s.heartbeat)
	router.POST("/run", s.runHTTP)
	router.GET("/ws/run", s.runWS)
	router.POST("/send_input", s.sendInput)
	return router
}

// Run listens on the configured address and serves until Stop is called.
func (s *Server) Run() error {
	l, err := net.Listen("tcp", s.listenAddr)
	if err != nil {
		return fmt.Errorf("listening TCP: %w", err)
	}
	return s.Serve(l)
}

func (s *Server) Serve(l net.Listener) error {
	s.heartbeatMut.Lock()
	s.lastHeartbeat = time.Now()
	s.heartbeatMut.Unlock()

	s.logger.Infof("listening on %s", l.Addr())
	err := s.httpServer.Serve(l)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Stop() error {
	return s.httpServer.Close()
}

func (s *Server) heartbeat(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	s.heartbeatMut.Lock()
	lastHeartbeat := s.lastHeartbeat
	s.lastHeartbeat = time.Now()
	s.heartbeatMut.Unlock()
	response := struct {
		LastHeartbeat string
	}{
		LastHeartbeat: lastHeartbeat.UTC().Format(time.RFC3339),
	}
	writeJSON(s.logger, w, response)
}

// flushWriter flushes after every write so that output reaches the client as it is produced.
type flushWriter struct {
	w http.ResponseWriter
	f http.Flusher
}

func (fw *flushWriter) Write(p []byte) (int, error) {
	n, err := fw.w.Write(p)
	fw.f.Flush()
	return n, err
}

func (s *Server) runHTTP(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	var req transport.RunRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	run, err := s.startRun(req.Code, &flushWriter{w: w, f: flusher})
	if errors.Is(err, errBusy) {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	if err != nil {
		s.logger.Debugf("error starting run: %s", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer s.endRun(run)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// if the client goes away, the process is killed
	exitCode, err := run.wait(r.Context())
	if err != nil {
		run.log.Debugf("run ended with error: %s", err)
		return
	}
	run.log.Debugw("run done", "ExitCode", exitCode)
}

func (s *Server) runWS(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		CompressionMode: websocket.CompressionContextTakeover,
	})
	if err != nil {
		s.logger.Debugf("error accepting WebSocket conn: %s", err)
		return
	}
	s.logger.Debug("accepted WebSocket conn")

	var req transport.WSRunRequest
	err = wsjson.Read(r.Context(), conn, &req)
	if err != nil {
		s.logger.Debugf("error reading first message: %s", err)
		conn.Close(websocket.StatusInternalError, "reading first message")
		return
	}

	// the client sends nothing after the request, but something must read to see it close
	ctx := conn.CloseRead(r.Context())
	out := &wsJSONWriter{log: s.logger.Named("ws_writer"), ctx: ctx, conn: conn}

	run, err := s.startRun(req.Code, out)
	if err != nil {
		s.logger.Debugf("error starting run: %s", err)
		if err := out.done(-1, err); err != nil {
			s.logger.Debugf("error sending done message: %s", err)
		}
		s.awaitClientClose(ctx, conn)
		return
	}
	exitCode, runErr := run.wait(ctx)
	s.endRun(run)
	err = out.done(exitCode, runErr)
	if err != nil {
		run.log.Debugf("error sending done message: %s", err)
		return
	}
	s.awaitClientClose(ctx, conn)
}

// awaitClientClose gives the client a moment to close after the done frame, then closes.
func (s *Server) awaitClientClose(ctx context.Context, conn *websocket.Conn) {
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
	}
	err := conn.Close(websocket.StatusNormalClosure, "")
	if err != nil {
		s.logger.Debugf("error closing conn: %s", err)
	}
}

func (s *Server) sendInput(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	var req transport.SendInputRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	run := s.current()
	if run == nil {
		http.Error(w, errNotRunning.Error(), http.StatusNotFound)
		return
	}

	output, err := run.send(r.Context(), req.Input, s.settle)
	if errors.Is(err, errNotRunning) {
		http.Error(w, errNotRunning.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		run.log.Debugf("error sending input: %s", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(run.log, w, transport.SendInputResponse{Output: output})
}

func writeJSON(log *zap.SugaredLogger, w http.ResponseWriter, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Debugf("error marshaling response: %s", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Add("Content-Type", "application/json")
	w.Write(b)
}
