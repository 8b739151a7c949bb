package shutdown

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// ErrSignal is the shutdown cause when a termination signal arrives.
var ErrSignal = errors.New("termination signal received")

// Hook releases one resource during shutdown.
type Hook func(context.Context) error

type namedHook struct {
	name string
	fn   Hook
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger for hook progress. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) { h.logger = l }
}

// WithSignals overrides the signals that start shutdown. Passing none
// disables signal handling; tests drive the handler with Trigger.
func WithSignals(sigs ...os.Signal) Option {
	return func(h *Handler) { h.signals = sigs }
}

// Handler handles graceful shutdown.
type Handler struct {
	timeout time.Duration
	signals []os.Signal
	logger  *slog.Logger

	mu    sync.Mutex
	hooks []namedHook

	ctx    context.Context
	cancel context.CancelCauseFunc
	done   chan struct{}
}

// NewHandler creates a handler and starts watching for signals.
func NewHandler(timeout time.Duration, opts ...Option) *Handler {
	h := &Handler{
		timeout: timeout,
		signals: []os.Signal{syscall.SIGINT, syscall.SIGTERM},
		logger:  slog.Default(),
		hooks:   make([]namedHook, 0),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.ctx, h.cancel = context.WithCancelCause(context.Background())

	if len(h.signals) > 0 {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, h.signals...)
		go func() {
			select {
			case sig := <-sigCh:
				h.logger.Info("shutdown signal received", "signal", sig.String())
				h.cancel(ErrSignal)
			case <-h.ctx.Done():
			}
			signal.Stop(sigCh)
		}()
	}
	return h
}

// Context is cancelled when shutdown begins.
func (h *Handler) Context() context.Context {
	return h.ctx
}

// OnShutdown registers a shutdown hook.
// Hooks are called in reverse order of registration.
func (h *Handler) OnShutdown(name string, hook Hook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hooks = append(h.hooks, namedHook{name: name, fn: hook})
}

// Trigger starts shutdown. A nil cause or context.Canceled means a clean
// stop; anything else is reported by Wait. Only the first call counts.
func (h *Handler) Trigger(cause error) {
	if cause == nil {
		cause = context.Canceled
	}
	h.cancel(cause)
}

// Wait blocks until shutdown begins, runs the hooks and returns the
// trigger cause (unless it was a signal or clean stop) joined with any
// hook errors.
func (h *Handler) Wait() error {
	<-h.ctx.Done()
	cause := context.Cause(h.ctx)

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	h.mu.Lock()
	hooks := make([]namedHook, len(h.hooks))
	copy(hooks, h.hooks)
	h.mu.Unlock()

	var errs []error
	if cause != nil && !errors.Is(cause, ErrSignal) && !errors.Is(cause, context.Canceled) {
		errs = append(errs, cause)
	}

	for i := len(hooks) - 1; i >= 0; i-- {
		hook := hooks[i]
		start := time.Now()
		if err := hook.fn(ctx); err != nil {
			h.logger.Error("shutdown hook failed", "hook", hook.name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", hook.name, err))
			continue
		}
		h.logger.Debug("shutdown hook done", "hook", hook.name, "took", time.Since(start))
	}

	close(h.done)
	return errors.Join(errs...)
}

// Done returns a channel that closes when shutdown is complete.
func (h *Handler) Done() <-chan struct{} {
	return h.done
}
