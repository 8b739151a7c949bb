package service

import (
	"context"

	"github.com/yndnr/tokdrop-go/internal/core/domain"
	"github.com/yndnr/tokdrop-go/internal/telemetry/logger"
	"github.com/yndnr/tokdrop-go/internal/telemetry/metric"
)

// Link is a published batch.
type Link struct {
	TokenID string
	// Long is the deep link carrying the transport string.
	Long string
	// Short is the shortened link, or Long when shortening failed.
	Short string
}

// Publisher finalizes batches into deep links.
type Publisher struct {
	batches   *BatchService
	shortener Shortener
	botName   string
	metrics   *metric.Registry
}

// NewPublisher creates a Publisher. shortener may be nil, in which case
// links are published unshortened.
func NewPublisher(batches *BatchService, shortener Shortener, botName string, metrics *metric.Registry) *Publisher {
	return &Publisher{
		batches:   batches,
		shortener: shortener,
		botName:   botName,
		metrics:   metrics,
	}
}

// DeepLink builds the t.me start link for a token id. The transport
// string is unpadded so it stays within the start parameter's
// [A-Za-z0-9_-] alphabet.
func DeepLink(botName, id string) string {
	return "https://t.me/" + botName + "?start=" + domain.EncodeToken(id)
}

// Publish finalizes the conversation's open batch and returns its link.
// Returns domain.ErrNoOpenBatch if nothing is open.
func (p *Publisher) Publish(ctx context.Context, conversation string) (*Link, error) {
	id, err := p.batches.Finalize(ctx, conversation)
	if err != nil {
		return nil, err
	}

	link := p.LinkFor(ctx, id)
	p.metrics.IncLinksIssued()
	logger.L(ctx).Info("link published", "token_id", id, "shortened", link.Short != link.Long)
	return link, nil
}

// LinkFor builds the link for an existing token without touching any
// batch. Used to reissue links from the management surface.
func (p *Publisher) LinkFor(ctx context.Context, id string) *Link {
	long := DeepLink(p.botName, id)
	link := &Link{TokenID: id, Long: long, Short: long}

	if p.shortener == nil {
		return link
	}

	short, err := p.shortener.Shorten(ctx, long)
	if err != nil || short == "" {
		p.metrics.IncShortenerFallback()
		logger.L(ctx).Warn("shortener failed, using long link", "token_id", id, "error", err)
		return link
	}
	link.Short = short
	return link
}
