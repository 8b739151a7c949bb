package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/yndnr/tokdrop-go/internal/core/domain"
	"github.com/yndnr/tokdrop-go/internal/infra/clock"
	"github.com/yndnr/tokdrop-go/internal/telemetry/logger"
	"github.com/yndnr/tokdrop-go/internal/telemetry/metric"
)

// Gate decides whether a requester may receive a token's files.
//
// Checks run in a fixed order: premium membership, transport decoding,
// record lookup, then the delivery window. Nothing is cached; every call
// reads the store.
type Gate struct {
	repo    GateRepository
	clock   clock.Clock
	ttl     time.Duration
	metrics *metric.Registry
}

// NewGate creates a Gate. A non-positive ttl selects domain.DefaultTTL.
func NewGate(repo GateRepository, clk clock.Clock, ttl time.Duration, metrics *metric.Registry) *Gate {
	if clk == nil {
		clk = clock.Real()
	}
	if ttl <= 0 {
		ttl = domain.DefaultTTL
	}
	return &Gate{repo: repo, clock: clk, ttl: ttl, metrics: metrics}
}

// TTL returns the delivery window.
func (g *Gate) TTL() time.Duration {
	return g.ttl
}

// Check evaluates a request. Storage faults are returned as errors, never
// folded into a rejection.
func (g *Gate) Check(ctx context.Context, requester, transport string) (*domain.Decision, error) {
	decision, err := g.check(ctx, requester, strings.TrimSpace(transport))
	if err != nil {
		return nil, err
	}

	g.metrics.RecordGateDecision(decision.Kind.String())
	log := logger.L(ctx)
	if err := decision.Err(); err != nil {
		log = log.With("code", domain.GetErrorCode(err))
		if decision.Cause != nil {
			log = log.With("cause", decision.Cause)
		}
	}
	log.Debug("gate decision",
		"requester", requester,
		"result", decision.Kind.String())
	return decision, nil
}

func (g *Gate) check(ctx context.Context, requester, transport string) (*domain.Decision, error) {
	premium, err := g.repo.IsPremium(ctx, requester)
	if err != nil {
		return nil, err
	}
	if premium {
		return g.premiumDecision(ctx, transport), nil
	}

	if transport == "" {
		return &domain.Decision{Kind: domain.RejectedMissing}, nil
	}

	id, ok := domain.DecodeToken(transport)
	if !ok {
		return &domain.Decision{Kind: domain.RejectedInvalid, Cause: domain.ErrTokenMalformed}, nil
	}

	rec, err := g.repo.GetToken(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrTokenNotFound) {
			return &domain.Decision{Kind: domain.RejectedInvalid, Cause: err}, nil
		}
		return nil, err
	}

	if rec.IsExpired(g.clock.Now(), g.ttl) {
		return &domain.Decision{Kind: domain.RejectedExpired, Record: rec}, nil
	}
	return &domain.Decision{Kind: domain.GrantedToken, Record: rec}, nil
}

// premiumDecision attaches the record a premium requester's link points
// at, if any. The delivery window does not apply to premium requesters,
// and a lookup failure only costs them the files, not the grant.
func (g *Gate) premiumDecision(ctx context.Context, transport string) *domain.Decision {
	decision := &domain.Decision{Kind: domain.GrantedUnlimited}

	id, ok := domain.DecodeToken(transport)
	if !ok {
		return decision
	}

	rec, err := g.repo.GetToken(ctx, id)
	switch {
	case err == nil:
		decision.Record = rec
	case !errors.Is(err, domain.ErrTokenNotFound):
		logger.L(ctx).Warn("premium token lookup failed", "token_id", id, "error", err)
	}
	return decision
}
