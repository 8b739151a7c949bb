package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yndnr/tokdrop-go/internal/core/domain"
	"github.com/yndnr/tokdrop-go/internal/infra/clock"
)

var testEpoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestBatchService(repo *memRepo, files FileStore) (*BatchService, *clock.FakeClock) {
	clk := clock.Fake(testEpoch)
	return NewBatchService(repo, files, clk, nil), clk
}

func TestBatchService_OpenOrGetIsIdempotent(t *testing.T) {
	repo := newMemRepo()
	s, _ := newTestBatchService(repo, nil)
	ctx := context.Background()

	first, err := s.OpenOrGet(ctx, "1")
	require.NoError(t, err)
	second, err := s.OpenOrGet(ctx, "1")
	require.NoError(t, err)
	require.Equal(t, first, second)

	rec, err := repo.GetToken(ctx, first)
	require.NoError(t, err)
	require.True(t, rec.Created.Equal(testEpoch))
	require.Empty(t, rec.Files)
	require.True(t, strings.HasPrefix(first, "Z"))
}

func TestBatchService_ConversationsAreIndependent(t *testing.T) {
	s, _ := newTestBatchService(newMemRepo(), nil)
	ctx := context.Background()

	a, err := s.OpenOrGet(ctx, "1")
	require.NoError(t, err)
	b, err := s.OpenOrGet(ctx, "2")
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestBatchService_AppendRequiresOpenBatch(t *testing.T) {
	s, _ := newTestBatchService(newMemRepo(), nil)

	_, err := s.Append(context.Background(), "1", "files/x")
	require.ErrorIs(t, err, domain.ErrNoOpenBatch)
}

func TestBatchService_AppendKeepsOrder(t *testing.T) {
	repo := newMemRepo()
	s, _ := newTestBatchService(repo, nil)
	ctx := context.Background()

	id, _ := s.OpenOrGet(ctx, "1")
	for _, ref := range []string{"a", "b", "c"} {
		got, err := s.Append(ctx, "1", ref)
		require.NoError(t, err)
		require.Equal(t, id, got)
	}

	rec, _ := repo.GetToken(ctx, id)
	require.Equal(t, []string{"a", "b", "c"}, rec.Files)
}

func TestBatchService_FinalizeWithoutBatchCreatesNothing(t *testing.T) {
	repo := newMemRepo()
	s, _ := newTestBatchService(repo, nil)

	_, err := s.Finalize(context.Background(), "1")
	require.ErrorIs(t, err, domain.ErrNoOpenBatch)
	require.Empty(t, repo.tokens)
}

func TestBatchService_FinalizedRecordIsFrozen(t *testing.T) {
	repo := newMemRepo()
	s, _ := newTestBatchService(repo, nil)
	ctx := context.Background()

	id, _ := s.OpenOrGet(ctx, "1")
	s.Append(ctx, "1", "a")

	finalized, err := s.Finalize(ctx, "1")
	require.NoError(t, err)
	require.Equal(t, id, finalized)

	_, err = s.Append(ctx, "1", "late")
	require.ErrorIs(t, err, domain.ErrNoOpenBatch)

	_, err = s.Finalize(ctx, "1")
	require.ErrorIs(t, err, domain.ErrNoOpenBatch)

	rec, _ := repo.GetToken(ctx, id)
	require.Equal(t, []string{"a"}, rec.Files)

	next, err := s.OpenOrGet(ctx, "1")
	require.NoError(t, err)
	require.NotEqual(t, id, next)
}

func TestBatchService_ConcurrentUploadsShareOneBatch(t *testing.T) {
	repo := newMemRepo()
	files := newMemFiles()
	s, _ := newTestBatchService(repo, files)
	ctx := context.Background()

	const n = 50
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := s.Upload(ctx, "7", FileUpload{
				UniqueID: fmt.Sprintf("u%02d", i),
				Name:     "doc.pdf",
				Kind:     domain.FileKindDocument,
				Body:     strings.NewReader("x"),
			})
			if err != nil {
				t.Error(err)
				return
			}
			ids[i] = id
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		require.Equal(t, ids[0], id)
	}
	rec, _ := repo.GetToken(ctx, ids[0])
	require.Len(t, rec.Files, n)
	require.Len(t, repo.tokens, 1)
}

func TestBatchService_UploadNamesFiles(t *testing.T) {
	repo := newMemRepo()
	files := newMemFiles()
	s, _ := newTestBatchService(repo, files)
	ctx := context.Background()

	id, err := s.Upload(ctx, "1", FileUpload{UniqueID: "AgAD1", Name: "report.pdf", Kind: domain.FileKindDocument, Body: strings.NewReader("pdf")})
	require.NoError(t, err)
	_, err = s.Upload(ctx, "1", FileUpload{UniqueID: "AgAD2", Kind: domain.FileKindPhoto, Body: strings.NewReader("jpg")})
	require.NoError(t, err)

	rec, _ := repo.GetToken(ctx, id)
	require.Equal(t, []string{"files/AgAD1_report.pdf", "files/AgAD2.jpg"}, rec.Files)
}

func TestBatchService_UploadValidation(t *testing.T) {
	s, _ := newTestBatchService(newMemRepo(), nil)
	_, err := s.Upload(context.Background(), "1", FileUpload{UniqueID: "x", Body: strings.NewReader("")})
	require.ErrorIs(t, err, domain.ErrServiceUnavailable)

	s, _ = newTestBatchService(newMemRepo(), newMemFiles())
	_, err = s.Upload(context.Background(), "1", FileUpload{Body: strings.NewReader("")})
	require.ErrorIs(t, err, domain.ErrMissingArgument)
}

func TestBatchService_StorageErrorPropagates(t *testing.T) {
	repo := newMemRepo()
	repo.failWith = domain.ErrStorageError.WithCause(errors.New("disk"))
	s, _ := newTestBatchService(repo, nil)

	_, err := s.OpenOrGet(context.Background(), "1")
	require.ErrorIs(t, err, domain.ErrStorageError)
}

func TestConversationKey(t *testing.T) {
	require.Equal(t, "-1001234", ConversationKey(-1001234))
}
