package service

import (
	"context"
	"fmt"
	"path"

	"github.com/yndnr/tokdrop-go/internal/core/domain"
	"github.com/yndnr/tokdrop-go/internal/telemetry/logger"
	"github.com/yndnr/tokdrop-go/internal/telemetry/metric"
)

// FailedFileWarning is sent in place of a file that could not be delivered.
const FailedFileWarning = "⚠️ Failed to send file: %s"

// DeliveryReport lists the outcome of a Deliver call per file reference.
type DeliveryReport struct {
	Delivered []string
	Failed    []string

	// MessageIDs holds the sent message id for each delivered file.
	MessageIDs []int64
}

// Deliverer sends a batch's files to a chat in order and schedules the
// retraction of every sent message. One file failing never stops the
// rest of the batch.
type Deliverer struct {
	files     FileOpener
	messenger Messenger
	retractor *Retractor
	metrics   *metric.Registry
}

// NewDeliverer creates a Deliverer. retractor may be nil to disable
// retraction; metrics may be nil.
func NewDeliverer(files FileOpener, messenger Messenger, retractor *Retractor, metrics *metric.Registry) *Deliverer {
	return &Deliverer{
		files:     files,
		messenger: messenger,
		retractor: retractor,
		metrics:   metrics,
	}
}

// Deliver sends files to chatID. Files are attempted in order; a failed
// file is replaced by a warning message naming its reference.
func (d *Deliverer) Deliver(ctx context.Context, chatID int64, files []string) *DeliveryReport {
	report := &DeliveryReport{}

	for i, ref := range files {
		if ctx.Err() != nil {
			report.Failed = append(report.Failed, files[i:]...)
			logger.L(ctx).Warn("delivery interrupted", "chat_id", chatID, "remaining", len(files)-i)
			break
		}

		msgID, outcome := d.deliverOne(ctx, chatID, ref)
		d.metrics.RecordDelivery(outcome)

		if outcome != "sent" {
			report.Failed = append(report.Failed, ref)
			d.warn(ctx, chatID, ref)
			continue
		}

		report.Delivered = append(report.Delivered, ref)
		report.MessageIDs = append(report.MessageIDs, msgID)

		if d.retractor != nil {
			if err := d.retractor.Schedule(ctx, chatID, msgID); err != nil {
				logger.L(ctx).Warn("schedule retraction failed",
					"chat_id", chatID, "message_id", msgID, "error", err)
			}
		}
	}

	logger.L(ctx).Info("delivery finished",
		"chat_id", chatID,
		"delivered", len(report.Delivered),
		"failed", len(report.Failed))
	return report
}

// deliverOne returns the sent message id and an outcome label:
// "sent", "unavailable" or "send_failed".
func (d *Deliverer) deliverOne(ctx context.Context, chatID int64, ref string) (int64, string) {
	body, err := d.files.Open(ctx, ref)
	if err != nil {
		logger.L(ctx).Warn("open file failed", "ref", ref,
			"error", domain.ErrFileUnavailable.WithDetails(ref).WithCause(err))
		return 0, "unavailable"
	}
	defer body.Close()

	kind := domain.ClassifyFile(ref)
	msgID, err := d.messenger.SendFile(ctx, chatID, kind, path.Base(ref), body)
	if err != nil {
		logger.L(ctx).Warn("send file failed", "ref", ref, "kind", string(kind),
			"error", domain.ErrSendFailed.WithDetails(ref).WithCause(err))
		return 0, "send_failed"
	}
	return msgID, "sent"
}

func (d *Deliverer) warn(ctx context.Context, chatID int64, ref string) {
	if _, err := d.messenger.SendText(ctx, chatID, fmt.Sprintf(FailedFileWarning, ref)); err != nil {
		logger.L(ctx).Warn("send failure warning failed", "chat_id", chatID, "error", err)
	}
}
