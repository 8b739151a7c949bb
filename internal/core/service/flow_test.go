package service

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yndnr/tokdrop-go/internal/core/domain"
	"github.com/yndnr/tokdrop-go/internal/infra/clock"
	"github.com/yndnr/tokdrop-go/internal/storage"
)

// TestUploadPublishRedeem runs a batch from upload to retraction against
// the badger-backed record store.
func TestUploadPublishRedeem(t *testing.T) {
	engine, err := storage.NewBadgerEngine(storage.InMemoryKVConfig(), slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close() })
	store := storage.NewRecordStore(engine)

	ctx := context.Background()
	clk := clock.Fake(testEpoch)
	files := newMemFiles()
	m := newFakeMessenger()

	batches := NewBatchService(store, files, clk, nil)
	publisher := NewPublisher(batches, nil, "dropbot", nil)
	gate := NewGate(store, clk, 0, nil)
	retractor := NewRetractor(RetractorConfig{Messenger: m, Repo: store, Clock: clk})
	deliverer := NewDeliverer(files, m, retractor, nil)

	_, err = batches.Upload(ctx, "1", FileUpload{UniqueID: "u1", Name: "a.pdf", Kind: domain.FileKindDocument, Body: strings.NewReader("A")})
	require.NoError(t, err)
	_, err = batches.Upload(ctx, "1", FileUpload{UniqueID: "u2", Kind: domain.FileKindPhoto, Body: strings.NewReader("B")})
	require.NoError(t, err)

	link, err := publisher.Publish(ctx, "1")
	require.NoError(t, err)
	transport := strings.TrimPrefix(link.Long, "https://t.me/dropbot?start=")

	clk.Advance(time.Hour)
	decision, err := gate.Check(ctx, "42", transport)
	require.NoError(t, err)
	require.Equal(t, domain.GrantedToken, decision.Kind)
	require.Equal(t, []string{"files/u1_a.pdf", "files/u2.jpg"}, decision.Files())

	report := deliverer.Deliver(ctx, 42, decision.Files())
	require.Len(t, report.Delivered, 2)
	require.Equal(t, domain.FileKindPhoto, m.files[1].Kind)

	pending, err := store.ListRetractions(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)

	clk.Advance(15 * time.Minute)
	require.Len(t, m.deletedKeys(), 2)

	pending, err = store.ListRetractions(ctx)
	require.NoError(t, err)
	require.Empty(t, pending)

	clk.Advance(5 * time.Hour)
	decision, err = gate.Check(ctx, "42", transport)
	require.NoError(t, err)
	require.Equal(t, domain.RejectedExpired, decision.Kind)
}
