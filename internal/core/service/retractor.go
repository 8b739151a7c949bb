package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yndnr/tokdrop-go/internal/core/domain"
	"github.com/yndnr/tokdrop-go/internal/infra/clock"
	"github.com/yndnr/tokdrop-go/internal/telemetry/logger"
	"github.com/yndnr/tokdrop-go/internal/telemetry/metric"
	"github.com/yndnr/tokdrop-go/pkg/cmap"
)

// deleteTimeout bounds a single delete call.
const deleteTimeout = 30 * time.Second

// ErrRetractorStopped is returned by Schedule after Stop.
var ErrRetractorStopped = errors.New("retractor stopped")

// Retractor deletes delivered messages once their delay has elapsed.
//
// Pending retractions are keyed by (chat, message). Each is attempted
// exactly once; delete failures are logged at debug level and dropped.
// When a RetractionRepository is configured, pending entries survive a
// restart and are re-armed by Restore.
type Retractor struct {
	messenger Messenger
	repo      RetractionRepository
	clock     clock.Clock
	delay     time.Duration
	metrics   *metric.Registry

	pending *cmap.Map[*pendingRetraction]
	stopped atomic.Bool

	// baseCtx is canceled by Stop to abort in-flight deletes.
	baseCtx context.Context
	cancel  context.CancelFunc
}

type pendingRetraction struct {
	r domain.Retraction

	mu       sync.Mutex
	timer    *clock.Timer
	canceled bool
}

func (p *pendingRetraction) setTimer(t *clock.Timer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.timer = t
	if p.canceled {
		t.Stop()
	}
}

func (p *pendingRetraction) stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.canceled = true
	if p.timer != nil {
		p.timer.Stop()
	}
}

// RetractorConfig configures a Retractor.
type RetractorConfig struct {
	Messenger Messenger
	// Repo persists pending entries; nil keeps them in memory only.
	Repo    RetractionRepository
	Clock   clock.Clock
	Delay   time.Duration
	Metrics *metric.Registry
}

// NewRetractor creates a Retractor. A non-positive delay selects
// domain.DefaultRetractionDelay.
func NewRetractor(cfg RetractorConfig) *Retractor {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Delay <= 0 {
		cfg.Delay = domain.DefaultRetractionDelay
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Retractor{
		messenger: cfg.Messenger,
		repo:      cfg.Repo,
		clock:     cfg.Clock,
		delay:     cfg.Delay,
		metrics:   cfg.Metrics,
		pending:   cmap.New[*pendingRetraction](),
		baseCtx:   ctx,
		cancel:    cancel,
	}
}

// Delay returns the configured retraction delay.
func (r *Retractor) Delay() time.Duration {
	return r.delay
}

// Schedule arranges for (chatID, messageID) to be deleted after the
// configured delay. Scheduling the same message twice re-arms it.
func (r *Retractor) Schedule(ctx context.Context, chatID, messageID int64) error {
	if r.stopped.Load() {
		return ErrRetractorStopped
	}

	entry := domain.Retraction{
		ChatID:    chatID,
		MessageID: messageID,
		Due:       r.clock.Now().Add(r.delay),
	}

	if r.repo != nil {
		// The in-memory timer still runs; only restart survival is lost.
		if err := r.repo.SaveRetraction(ctx, entry); err != nil {
			logger.L(ctx).Warn("persist retraction failed",
				"chat_id", chatID, "message_id", messageID, "error", err)
		}
	}

	r.arm(entry)
	r.metrics.IncRetractionScheduled()
	return nil
}

// Restore re-arms every persisted retraction. Overdue entries fire
// immediately. Returns the number of entries armed.
func (r *Retractor) Restore(ctx context.Context) (int, error) {
	if r.repo == nil {
		return 0, nil
	}

	entries, err := r.repo.ListRetractions(ctx)
	if err != nil {
		return 0, err
	}
	for _, entry := range entries {
		r.arm(entry)
	}

	if len(entries) > 0 {
		logger.L(ctx).Info("retractions restored", "count", len(entries))
	}
	return len(entries), nil
}

func (r *Retractor) arm(entry domain.Retraction) {
	key := entry.Key()
	p := &pendingRetraction{r: entry}

	if prev, ok := r.pending.Pop(key); ok {
		prev.stop()
	}
	r.pending.Set(key, p)
	r.metrics.SetRetractionsPending(r.pending.Count())

	wait := entry.Due.Sub(r.clock.Now())
	p.setTimer(r.clock.AfterFunc(wait, func() { r.fire(key, p) }))
}

func (r *Retractor) fire(key string, p *pendingRetraction) {
	if !r.pending.DeleteIf(key, func(cur *pendingRetraction) bool { return cur == p }) {
		return
	}
	r.metrics.SetRetractionsPending(r.pending.Count())

	ctx, cancel := context.WithTimeout(r.baseCtx, deleteTimeout)
	defer cancel()

	err := r.messenger.DeleteMessage(ctx, p.r.ChatID, p.r.MessageID)
	if err != nil && r.baseCtx.Err() != nil {
		// Shutting down: keep the persisted entry for the next start.
		return
	}

	if err != nil {
		r.metrics.RecordRetraction("failed")
		logger.L(ctx).Debug("retraction failed",
			"chat_id", p.r.ChatID, "message_id", p.r.MessageID, "error", err)
	} else {
		r.metrics.RecordRetraction("deleted")
	}

	if r.repo != nil {
		if err := r.repo.DeleteRetraction(ctx, p.r.ChatID, p.r.MessageID); err != nil {
			logger.L(ctx).Debug("drop persisted retraction failed", "key", key, "error", err)
		}
	}
}

// Cancel disarms a pending retraction. Reports whether one was pending.
func (r *Retractor) Cancel(ctx context.Context, chatID, messageID int64) bool {
	p, ok := r.pending.Pop(domain.RetractionKey(chatID, messageID))
	if !ok {
		return false
	}
	p.stop()
	r.metrics.SetRetractionsPending(r.pending.Count())

	if r.repo != nil {
		if err := r.repo.DeleteRetraction(ctx, chatID, messageID); err != nil {
			logger.L(ctx).Debug("drop persisted retraction failed",
				"chat_id", chatID, "message_id", messageID, "error", err)
		}
	}
	return true
}

// Pending returns the number of armed retractions.
func (r *Retractor) Pending() int {
	return r.pending.Count()
}

// Stop disarms every timer and aborts in-flight deletes. Persisted
// entries are kept so the next Restore picks them up.
func (r *Retractor) Stop() {
	if !r.stopped.CompareAndSwap(false, true) {
		return
	}
	r.cancel()

	for _, key := range r.pending.Keys() {
		if p, ok := r.pending.Pop(key); ok {
			p.stop()
		}
	}
	r.metrics.SetRetractionsPending(0)
}
