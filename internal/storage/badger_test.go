package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func newTestEngine(t *testing.T) *BadgerEngine {
	t.Helper()

	engine, err := NewBadgerEngine(InMemoryKVConfig(), slog.Default())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { engine.Close() })
	return engine
}

func TestBadgerEngine_BasicOperations(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	t.Run("Set and Get", func(t *testing.T) {
		if err := engine.Set(ctx, []byte("k"), []byte("v")); err != nil {
			t.Fatal(err)
		}
		got, err := engine.Get(ctx, []byte("k"))
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != "v" {
			t.Errorf("Get() = %s, want v", got)
		}
	})

	t.Run("Get non-existent key", func(t *testing.T) {
		_, err := engine.Get(ctx, []byte("missing"))
		if !errors.Is(err, ErrKeyNotFound) {
			t.Errorf("Get() error = %v, want ErrKeyNotFound", err)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		engine.Set(ctx, []byte("d"), []byte("x"))
		if err := engine.Delete(ctx, []byte("d")); err != nil {
			t.Fatal(err)
		}
		if _, err := engine.Get(ctx, []byte("d")); !errors.Is(err, ErrKeyNotFound) {
			t.Errorf("Get() after Delete error = %v, want ErrKeyNotFound", err)
		}
	})
}

func TestBadgerEngine_UpdateRollsBackOnError(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := engine.Update(ctx, func(txn KVTxn) error {
		if err := txn.Set([]byte("a"), []byte("1")); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Update() error = %v, want boom", err)
	}
	if _, err := engine.Get(ctx, []byte("a")); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("write from failed transaction is visible: %v", err)
	}
}

func TestBadgerEngine_UpdateReadsOwnWrites(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	err := engine.Update(ctx, func(txn KVTxn) error {
		if err := txn.Set([]byte("a"), []byte("1")); err != nil {
			return err
		}
		v, err := txn.Get([]byte("a"))
		if err != nil {
			return err
		}
		if string(v) != "1" {
			return fmt.Errorf("read %q inside txn", v)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestBadgerEngine_Scan(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	for _, k := range []string{"p/1", "p/2", "p/3", "q/1"} {
		engine.Set(ctx, []byte(k), []byte(k))
	}

	var keys []string
	err := engine.Scan(ctx, []byte("p/"), func(key, value []byte) bool {
		keys = append(keys, string(key))
		return true
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 3 || keys[0] != "p/1" || keys[2] != "p/3" {
		t.Errorf("Scan(p/) keys = %v", keys)
	}

	count := 0
	engine.Scan(ctx, []byte("p/"), func(key, value []byte) bool {
		count++
		return false
	})
	if count != 1 {
		t.Errorf("Scan with early stop visited %d keys, want 1", count)
	}
}

func TestBadgerEngine_BackupAndLoad(t *testing.T) {
	src := newTestEngine(t)
	ctx := context.Background()

	src.Set(ctx, []byte("token/Z1"), []byte(`{"created":1,"files":[]}`))
	src.Set(ctx, []byte("premium/7"), []byte("true"))

	var buf bytes.Buffer
	if _, err := src.Backup(ctx, &buf); err != nil {
		t.Fatal(err)
	}

	dst := newTestEngine(t)
	if err := dst.Load(ctx, &buf); err != nil {
		t.Fatal(err)
	}

	got, err := dst.Get(ctx, []byte("premium/7"))
	if err != nil || string(got) != "true" {
		t.Errorf("Get(premium/7) after Load = %q, %v", got, err)
	}
}

func TestBadgerEngine_OnDisk(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	cfg := DefaultKVConfig(dir)
	cfg.Badger.GCInterval = "1h"

	engine, err := NewBadgerEngine(cfg, slog.Default())
	if err != nil {
		t.Fatal(err)
	}
	engine.Set(ctx, []byte("k"), []byte("v"))
	if _, err := engine.GC(ctx); err != nil {
		t.Errorf("GC() error = %v", err)
	}
	if err := engine.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := NewBadgerEngine(cfg, slog.Default())
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()

	got, err := reopened.Get(ctx, []byte("k"))
	if err != nil || string(got) != "v" {
		t.Errorf("Get(k) after reopen = %q, %v", got, err)
	}

	stats, err := reopened.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalSize != stats.LSMSize+stats.ValueLogSize {
		t.Errorf("TotalSize = %d, want LSM+vlog", stats.TotalSize)
	}
}

func TestBadgerEngine_ClosedOperations(t *testing.T) {
	engine, err := NewBadgerEngine(InMemoryKVConfig(), slog.Default())
	if err != nil {
		t.Fatal(err)
	}
	engine.Close()

	if _, err := engine.Get(context.Background(), []byte("k")); !errors.Is(err, ErrClosed) {
		t.Errorf("Get() after Close error = %v, want ErrClosed", err)
	}
	if err := engine.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestNewBadgerEngine_RequiresDir(t *testing.T) {
	if _, err := NewBadgerEngine(DefaultKVConfig(""), nil); err == nil {
		t.Error("NewBadgerEngine() with empty dir should fail")
	}
}

func TestBadgerEngine_RegisterMetrics(t *testing.T) {
	engine := newTestEngine(t)
	reg := prometheus.NewRegistry()
	engine.RegisterMetrics(reg)

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	if len(families) != 4 {
		t.Errorf("gathered %d metric families, want 4", len(families))
	}
}
