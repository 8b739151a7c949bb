package cmap

import (
	"sync"
	"testing"
)

func TestLocker_SerializesSameKey(t *testing.T) {
	l := NewLocker(8)

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := l.Lock("conversation-1")
			defer unlock()
			v := counter
			counter = v + 1
		}()
	}
	wg.Wait()

	if counter != 100 {
		t.Errorf("counter = %d, want 100", counter)
	}
}

func TestLocker_Reentry(t *testing.T) {
	l := NewLocker(4)

	unlock := l.Lock("a")
	unlock()

	// Released stripe can be taken again.
	unlock = l.Lock("a")
	unlock()
}

func TestNewLocker_InvalidStripes(t *testing.T) {
	l := NewLocker(7)
	if len(l.stripes) != DefaultShardCount {
		t.Errorf("stripes = %d, want %d", len(l.stripes), DefaultShardCount)
	}
}
