package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/yndnr/tokdrop-go/internal/core/domain"
	"github.com/yndnr/tokdrop-go/internal/core/service"
	"github.com/yndnr/tokdrop-go/internal/platform/telegram"
	"github.com/yndnr/tokdrop-go/internal/telemetry/logger"
	"github.com/yndnr/tokdrop-go/internal/telemetry/metric"
)

const (
	// DefaultPollTimeout is the getUpdates long-poll duration.
	DefaultPollTimeout = 30 * time.Second

	// errorBackoff is the pause after a failed poll without retry_after.
	errorBackoff = 3 * time.Second
)

// API is the subset of the Bot API the surface calls directly.
type API interface {
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]telegram.Update, error)
	SendMessage(ctx context.Context, chatID int64, text, parseMode string) (*telegram.Message, error)
	GetFile(ctx context.Context, fileID string) (*telegram.File, error)
	Download(ctx context.Context, filePath string) (io.ReadCloser, error)
}

// PremiumStore grants premium access.
type PremiumStore interface {
	AddPremium(ctx context.Context, user string) (bool, error)
}

// Options configures a Bot.
type Options struct {
	API       API
	Batches   *service.BatchService
	Publisher *service.Publisher
	Gate      *service.Gate
	Deliverer *service.Deliverer
	Premium   PremiumStore

	// Admins may upload, publish and grant premium.
	Admins []int64
	// BuyText is the reply to /buy.
	BuyText string
	// PollTimeout overrides DefaultPollTimeout.
	PollTimeout time.Duration

	Metrics *metric.Registry
}

// Bot dispatches Telegram updates to the core services.
type Bot struct {
	api       API
	batches   *service.BatchService
	publisher *service.Publisher
	gate      *service.Gate
	deliverer *service.Deliverer
	premium   PremiumStore

	admins      map[int64]bool
	buyText     string
	pollTimeout time.Duration
	backoff     time.Duration
	metrics     *metric.Registry

	offset int64
}

// New creates a Bot.
func New(opts Options) (*Bot, error) {
	switch {
	case opts.API == nil:
		return nil, errors.New("bot: API is required")
	case opts.Batches == nil || opts.Publisher == nil:
		return nil, errors.New("bot: batch services are required")
	case opts.Gate == nil || opts.Deliverer == nil:
		return nil, errors.New("bot: delivery services are required")
	case opts.Premium == nil:
		return nil, errors.New("bot: premium store is required")
	case len(opts.Admins) == 0:
		return nil, errors.New("bot: at least one admin is required")
	}

	admins := make(map[int64]bool, len(opts.Admins))
	for _, id := range opts.Admins {
		admins[id] = true
	}

	poll := opts.PollTimeout
	if poll <= 0 {
		poll = DefaultPollTimeout
	}

	return &Bot{
		api:         opts.API,
		batches:     opts.Batches,
		publisher:   opts.Publisher,
		gate:        opts.Gate,
		deliverer:   opts.Deliverer,
		premium:     opts.Premium,
		admins:      admins,
		buyText:     opts.BuyText,
		pollTimeout: poll,
		backoff:     errorBackoff,
		metrics:     opts.Metrics,
	}, nil
}

// Run polls for updates until ctx is canceled. Poll failures are logged
// and retried; Run only returns when ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	logger.L(ctx).Info("bot polling started", "poll_timeout", b.pollTimeout)

	for {
		updates, err := b.api.GetUpdates(ctx, b.offset, b.pollTimeout)
		if ctx.Err() != nil {
			logger.L(ctx).Info("bot polling stopped")
			return nil
		}
		if err != nil {
			wait := b.backoff
			var apiErr *telegram.APIError
			if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
				wait = apiErr.RetryAfter
			}
			logger.L(ctx).Warn("get updates failed", "error", err, "retry_in", wait)

			select {
			case <-ctx.Done():
				return nil
			case <-time.After(wait):
			}
			continue
		}

		for _, u := range updates {
			if u.UpdateID >= b.offset {
				b.offset = u.UpdateID + 1
			}
			b.HandleUpdate(ctx, u)
		}
	}
}

// HandleUpdate processes one update. A panicking handler is logged and
// the update dropped.
func (b *Bot) HandleUpdate(ctx context.Context, u telegram.Update) {
	ctx = logger.WithRequestID(ctx, uuid.NewString())
	ctx = logger.WithUpdateID(ctx, u.UpdateID)

	defer func() {
		if r := recover(); r != nil {
			logger.L(ctx).Error("update handler panicked",
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()))
		}
	}()

	msg := u.Message
	if msg == nil || msg.From == nil {
		return
	}

	cmd, args := parseCommand(msg)
	b.metrics.RecordUpdate(commandLabel(cmd, msg))

	switch cmd {
	case "start":
		b.handleStart(ctx, msg, args)
	case "upload":
		b.adminOnly(ctx, msg, b.handleUpload)
	case "finish":
		b.adminOnly(ctx, msg, b.handleFinish)
	case "buy":
		b.reply(ctx, msg, b.buyText)
	case "addpremium":
		b.adminOnly(ctx, msg, func(ctx context.Context, msg *telegram.Message) {
			b.handleAddPremium(ctx, msg, args)
		})
	case "":
		if _, ok := msg.Attachment(); ok {
			b.adminOnly(ctx, msg, b.handleUpload)
		}
	}
}

func (b *Bot) adminOnly(ctx context.Context, msg *telegram.Message, h func(context.Context, *telegram.Message)) {
	if !b.admins[msg.From.ID] {
		logger.L(ctx).Debug("ignoring admin command", "user_id", msg.From.ID, "error", domain.ErrPermissionDenied)
		return
	}
	h(ctx, msg)
}

func (b *Bot) reply(ctx context.Context, msg *telegram.Message, text string) {
	b.send(ctx, msg, text, "")
}

func (b *Bot) send(ctx context.Context, msg *telegram.Message, text, parseMode string) {
	if _, err := b.api.SendMessage(ctx, msg.Chat.ID, text, parseMode); err != nil {
		logger.L(ctx).Warn("reply failed", "chat_id", msg.Chat.ID, "error", err)
	}
}

func requesterID(msg *telegram.Message) string {
	return strconv.FormatInt(msg.From.ID, 10)
}

func commandLabel(cmd string, msg *telegram.Message) string {
	switch cmd {
	case "start", "upload", "finish", "buy", "addpremium":
		return cmd
	case "":
		if _, ok := msg.Attachment(); ok {
			return "file"
		}
	}
	return "other"
}
