package service

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/yndnr/tokdrop-go/internal/core/domain"
	"github.com/yndnr/tokdrop-go/internal/infra/clock"
	"github.com/yndnr/tokdrop-go/internal/telemetry/logger"
	"github.com/yndnr/tokdrop-go/internal/telemetry/metric"
	"github.com/yndnr/tokdrop-go/pkg/cmap"
)

// batchLockStripes bounds the number of conversations that can hold a
// batch lock at the same time without sharing a stripe.
const batchLockStripes = 64

// FileUpload describes one incoming file.
type FileUpload struct {
	// UniqueID is the platform's stable id for the file content.
	UniqueID string
	// Name is the original file name; may be empty for photos.
	Name string
	// Kind is the media kind the platform reported.
	Kind domain.FileKind
	// Body streams the file contents.
	Body io.Reader
}

// BatchService builds upload batches: one open token record per
// conversation, files appended in arrival order, closed by Finalize.
//
// All operations on one conversation are serialized; different
// conversations proceed in parallel.
type BatchService struct {
	repo    BatchRepository
	files   FileStore
	clock   clock.Clock
	locks   *cmap.Locker
	metrics *metric.Registry
	newID   func() (string, error)
}

// NewBatchService creates a BatchService. files may be nil if Upload is
// never called; metrics may be nil.
func NewBatchService(repo BatchRepository, files FileStore, clk clock.Clock, metrics *metric.Registry) *BatchService {
	if clk == nil {
		clk = clock.Real()
	}
	return &BatchService{
		repo:    repo,
		files:   files,
		clock:   clk,
		locks:   cmap.NewLocker(batchLockStripes),
		metrics: metrics,
		newID:   domain.GenerateTokenID,
	}
}

// ConversationKey formats a chat id as the conversation key batches are
// stored under.
func ConversationKey(chatID int64) string {
	return strconv.FormatInt(chatID, 10)
}

// OpenOrGet returns the open batch for conversation, creating an empty
// record stamped with the current time if none is open.
func (s *BatchService) OpenOrGet(ctx context.Context, conversation string) (string, error) {
	unlock := s.locks.Lock(conversation)
	defer unlock()

	return s.openOrGetLocked(ctx, conversation)
}

func (s *BatchService) openOrGetLocked(ctx context.Context, conversation string) (string, error) {
	id, ok, err := s.repo.OpenBatch(ctx, conversation)
	if err != nil {
		return "", err
	}
	if ok {
		return id, nil
	}

	id, err = s.newID()
	if err != nil {
		return "", err
	}
	if err := s.repo.StartBatch(ctx, conversation, domain.NewTokenRecord(id, s.clock.Now())); err != nil {
		return "", err
	}

	logger.L(ctx).Info("batch opened", "conversation", conversation, "token_id", id)
	return id, nil
}

// Append adds ref to the open batch.
// Returns domain.ErrNoOpenBatch if no batch is open.
func (s *BatchService) Append(ctx context.Context, conversation, ref string) (string, error) {
	unlock := s.locks.Lock(conversation)
	defer unlock()

	return s.appendLocked(ctx, conversation, ref)
}

func (s *BatchService) appendLocked(ctx context.Context, conversation, ref string) (string, error) {
	id, err := s.repo.AppendToOpenBatch(ctx, conversation, ref)
	if err != nil {
		return "", err
	}
	s.metrics.IncUploads()
	logger.L(ctx).Debug("file appended", "conversation", conversation, "token_id", id, "ref", ref)
	return id, nil
}

// Finalize closes the open batch and returns its id. The record stays
// in storage; only the marker is cleared.
// Returns domain.ErrNoOpenBatch if no batch is open.
func (s *BatchService) Finalize(ctx context.Context, conversation string) (string, error) {
	unlock := s.locks.Lock(conversation)
	defer unlock()

	id, err := s.repo.TakeOpenBatch(ctx, conversation)
	if err != nil {
		return "", err
	}
	logger.L(ctx).Info("batch finalized", "conversation", conversation, "token_id", id)
	return id, nil
}

// Upload opens a batch if needed, stores the file and appends its
// reference, all under the conversation lock.
func (s *BatchService) Upload(ctx context.Context, conversation string, up FileUpload) (string, error) {
	if s.files == nil {
		return "", domain.ErrServiceUnavailable.WithDetails("no file store configured")
	}
	if up.UniqueID == "" {
		return "", domain.ErrMissingArgument.WithDetails("file unique id")
	}

	unlock := s.locks.Lock(conversation)
	defer unlock()

	if _, err := s.openOrGetLocked(ctx, conversation); err != nil {
		return "", err
	}

	name := domain.StoredFileName(up.UniqueID, up.Name, up.Kind)
	ref, err := s.files.Put(ctx, name, up.Body)
	if err != nil {
		return "", fmt.Errorf("store %s: %w", name, err)
	}

	return s.appendLocked(ctx, conversation, ref)
}
