package localserver

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yndnr/tokdrop-go/internal/telemetry/metric"
)

const (
	// maxRequestLine caps a request line.
	maxRequestLine = 4096

	// connTimeout bounds one request/response exchange.
	connTimeout = 10 * time.Second

	socketMode = 0o660
)

// Server represents the local management server.
type Server struct {
	path    string
	handler *Handler
	logger  *slog.Logger
	metrics *metric.Registry

	mu       sync.Mutex
	listener net.Listener
	running  atomic.Bool
	wg       sync.WaitGroup
}

// New creates a new local server. logger and metrics may be nil.
func New(socketPath string, handler *Handler, logger *slog.Logger, metrics *metric.Registry) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		path:    socketPath,
		handler: handler,
		logger:  logger,
		metrics: metrics,
	}
}

// Listen binds the socket. A stale socket file left by a previous run is
// removed first.
func (s *Server) Listen() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return fmt.Errorf("create socket dir: %w", err)
	}
	if err := removeStale(s.path); err != nil {
		return err
	}

	ln, err := net.Listen("unix", s.path)
	if err != nil {
		return err
	}
	if err := os.Chmod(s.path, socketMode); err != nil {
		ln.Close()
		return fmt.Errorf("chmod socket: %w", err)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	s.running.Store(true)
	return nil
}

// ListenAndServe binds the socket if needed and serves until Shutdown.
func (s *Server) ListenAndServe() error {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()

	if ln == nil {
		if err := s.Listen(); err != nil {
			return err
		}
		s.mu.Lock()
		ln = s.listener
		s.mu.Unlock()
	}

	for {
		conn, err := ln.Accept()
		if err != nil {
			if !s.running.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(conn)
		}()
	}
}

// Shutdown stops accepting connections and waits for active ones to
// finish, or for ctx to end.
func (s *Server) Shutdown(ctx context.Context) error {
	s.running.Store(false)

	var closeErr error
	s.mu.Lock()
	if s.listener != nil {
		closeErr = s.listener.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return closeErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()
	start := time.Now()
	conn.SetDeadline(start.Add(connTimeout))

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 256), maxRequestLine)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			s.logger.Debug("local request read failed", "error", err)
		}
		return
	}

	fields := strings.Fields(scanner.Text())
	if len(fields) == 0 {
		fmt.Fprintln(conn, "ERR empty command")
		return
	}
	cmd, args := fields[0], fields[1:]

	ctx, cancel := context.WithTimeout(context.Background(), connTimeout)
	defer cancel()

	if err := s.handler.Execute(ctx, conn, cmd, args); err != nil {
		s.logger.Debug("local reply write failed", "command", cmd, "error", err)
	}

	label := commandLabel(cmd)
	s.metrics.RecordRequest("local", label, "done")
	s.metrics.ObserveRequestDuration("local", label, time.Since(start).Seconds())
	s.logger.Info("local command", "command", cmd, "args", len(args))
}

// removeStale deletes path if it is a socket nobody is listening on.
func removeStale(path string) error {
	fi, err := os.Lstat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if fi.Mode()&os.ModeSocket == 0 {
		return fmt.Errorf("%s exists and is not a socket", path)
	}

	if c, err := net.DialTimeout("unix", path, time.Second); err == nil {
		c.Close()
		return fmt.Errorf("%s is in use by another process", path)
	}
	return os.Remove(path)
}
