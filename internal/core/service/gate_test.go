package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yndnr/tokdrop-go/internal/core/domain"
	"github.com/yndnr/tokdrop-go/internal/infra/clock"
	"github.com/yndnr/tokdrop-go/internal/storage"
)

func newTestGate() (*Gate, *memRepo, *clock.FakeClock) {
	repo := newMemRepo()
	clk := clock.Fake(testEpoch)
	return NewGate(repo, clk, 0, nil), repo, clk
}

func TestGate_Decisions(t *testing.T) {
	gate, repo, clk := newTestGate()
	ctx := context.Background()

	rec := &domain.TokenRecord{ID: "Z1740830400-abc", Created: testEpoch, Files: []string{"files/a.pdf"}}
	repo.put(rec)
	valid := domain.EncodeToken(rec.ID)

	tests := []struct {
		name      string
		transport string
		advance   time.Duration
		want      domain.DecisionKind
	}{
		{"no argument", "", 0, domain.RejectedMissing},
		{"whitespace argument", "   ", 0, domain.RejectedMissing},
		{"not base64", "!!!", 0, domain.RejectedInvalid},
		{"wrong namespace", "aGVsbG8=", 0, domain.RejectedInvalid},
		{"unknown id", domain.EncodeToken("Znope"), 0, domain.RejectedInvalid},
		{"fresh", valid, 0, domain.GrantedToken},
		{"exactly at ttl", valid, 21600 * time.Second, domain.GrantedToken},
		{"one second past ttl", valid, time.Second, domain.RejectedExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clk.Advance(tt.advance)
			d, err := gate.Check(ctx, "42", tt.transport)
			require.NoError(t, err)
			require.Equal(t, tt.want, d.Kind)
		})
	}
}

func TestGate_InvalidCarriesCause(t *testing.T) {
	gate, repo, _ := newTestGate()
	repo.put(&domain.TokenRecord{ID: "Zknown", Created: testEpoch, Files: []string{"a"}})

	tests := []struct {
		name      string
		transport string
		cause     error
	}{
		{"not base64", "!!!", domain.ErrTokenMalformed},
		{"wrong namespace", "aGVsbG8", domain.ErrTokenMalformed},
		{"padded on unpadded length", domain.EncodeToken("Zknown") + "=", domain.ErrTokenMalformed},
		{"unknown id", domain.EncodeToken("Znope"), domain.ErrTokenNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := gate.Check(context.Background(), "42", tt.transport)
			require.NoError(t, err)
			require.Equal(t, domain.RejectedInvalid, d.Kind)
			require.ErrorIs(t, d.Cause, tt.cause)
			require.ErrorIs(t, d.Err(), domain.ErrTokenInvalid)
			require.ErrorIs(t, d.Err(), tt.cause)
		})
	}
}

func TestGate_GrantCarriesFiles(t *testing.T) {
	gate, repo, _ := newTestGate()
	repo.put(&domain.TokenRecord{ID: "Zf", Created: testEpoch, Files: []string{"x", "y"}})

	d, err := gate.Check(context.Background(), "42", domain.EncodeToken("Zf"))
	require.NoError(t, err)
	require.True(t, d.Granted())
	require.Equal(t, []string{"x", "y"}, d.Files())
}

func TestGate_ExpiredExposesNoFiles(t *testing.T) {
	gate, repo, clk := newTestGate()
	repo.put(&domain.TokenRecord{ID: "Zold", Created: testEpoch, Files: []string{"x"}})
	clk.Advance(7 * time.Hour)

	d, err := gate.Check(context.Background(), "42", domain.EncodeToken("Zold"))
	require.NoError(t, err)
	require.Equal(t, domain.RejectedExpired, d.Kind)
	require.Nil(t, d.Files())
	require.ErrorIs(t, d.Err(), domain.ErrTokenExpired)
}

func TestGate_PremiumWithoutToken(t *testing.T) {
	gate, repo, _ := newTestGate()
	repo.premium["99"] = true

	d, err := gate.Check(context.Background(), "99", "")
	require.NoError(t, err)
	require.Equal(t, domain.GrantedUnlimited, d.Kind)
	require.Nil(t, d.Files())
}

func TestGate_PremiumSkipsExpiry(t *testing.T) {
	gate, repo, clk := newTestGate()
	repo.premium["99"] = true
	repo.put(&domain.TokenRecord{ID: "Zold", Created: testEpoch, Files: []string{"x"}})
	clk.Advance(48 * time.Hour)

	d, err := gate.Check(context.Background(), "99", domain.EncodeToken("Zold"))
	require.NoError(t, err)
	require.Equal(t, domain.GrantedUnlimited, d.Kind)
	require.Equal(t, []string{"x"}, d.Files())
}

func TestGate_PremiumWithGarbageTokenStillGranted(t *testing.T) {
	gate, repo, _ := newTestGate()
	repo.premium["99"] = true

	d, err := gate.Check(context.Background(), "99", "garbage")
	require.NoError(t, err)
	require.Equal(t, domain.GrantedUnlimited, d.Kind)
	require.Nil(t, d.Record)
}

func TestGate_StorageFaultIsAnError(t *testing.T) {
	gate, repo, _ := newTestGate()
	repo.failWith = domain.ErrStorageError.WithCause(errors.New("io"))

	d, err := gate.Check(context.Background(), "42", domain.EncodeToken("Zx"))
	require.ErrorIs(t, err, domain.ErrStorageError)
	require.Nil(t, d)
}

func TestGate_DefaultTTL(t *testing.T) {
	gate, _, _ := newTestGate()
	require.Equal(t, 6*time.Hour, gate.TTL())
}

// TestGate_TTLBoundaryThroughStore checks that sub-second creation times
// survive persistence, so a request exactly at the TTL is still granted.
func TestGate_TTLBoundaryThroughStore(t *testing.T) {
	engine, err := storage.NewBadgerEngine(storage.InMemoryKVConfig(), slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close() })
	store := storage.NewRecordStore(engine)
	ctx := context.Background()

	for i, ns := range []int64{1, 7_777_778, 123_456_789, 500_000_001, 999_999_999} {
		created := time.Unix(1760000000, ns)
		id := fmt.Sprintf("Z1760000000-ttl%d", i)
		require.NoError(t, store.PutToken(ctx, &domain.TokenRecord{ID: id, Created: created, Files: []string{"x"}}))

		clk := clock.Fake(created.Add(domain.DefaultTTL))
		gate := NewGate(store, clk, 0, nil)

		d, err := gate.Check(ctx, "42", domain.EncodeToken(id))
		require.NoError(t, err)
		require.Equal(t, domain.GrantedToken, d.Kind, "created ns %d at exact ttl", ns)

		clk.Advance(time.Nanosecond)
		d, err = gate.Check(ctx, "42", domain.EncodeToken(id))
		require.NoError(t, err)
		require.Equal(t, domain.RejectedExpired, d.Kind, "created ns %d past ttl", ns)
	}
}
