package clock

import (
	"testing"
	"time"
)

var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeClock_AfterFuncFiresInDeadlineOrder(t *testing.T) {
	c := Fake(epoch)

	var order []int
	c.AfterFunc(3*time.Second, func() { order = append(order, 3) })
	c.AfterFunc(1*time.Second, func() { order = append(order, 1) })
	c.AfterFunc(2*time.Second, func() { order = append(order, 2) })

	c.Advance(2 * time.Second)
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("after 2s order = %v, want [1 2]", order)
	}

	c.Advance(time.Second)
	if len(order) != 3 || order[2] != 3 {
		t.Fatalf("after 3s order = %v, want [1 2 3]", order)
	}
}

func TestFakeClock_Stop(t *testing.T) {
	c := Fake(epoch)

	fired := false
	timer := c.AfterFunc(time.Second, func() { fired = true })

	if !timer.Stop() {
		t.Error("Stop() on pending timer should return true")
	}
	if timer.Stop() {
		t.Error("second Stop() should return false")
	}

	c.Advance(time.Minute)
	if fired {
		t.Error("stopped timer fired")
	}
}

func TestFakeClock_StopAfterFire(t *testing.T) {
	c := Fake(epoch)
	timer := c.AfterFunc(time.Second, func() {})
	c.Advance(time.Second)

	if timer.Stop() {
		t.Error("Stop() after firing should return false")
	}
}

func TestFakeClock_NonPositiveDelayRunsImmediately(t *testing.T) {
	c := Fake(epoch)
	fired := false
	c.AfterFunc(0, func() { fired = true })
	if !fired {
		t.Error("AfterFunc(0) should run synchronously")
	}
}

func TestFakeClock_Now(t *testing.T) {
	c := Fake(epoch)
	c.Advance(90 * time.Second)
	if got := c.Now(); !got.Equal(epoch.Add(90 * time.Second)) {
		t.Errorf("Now() = %v", got)
	}
}

func TestFakeClock_CallbackSchedulesWithinAdvance(t *testing.T) {
	c := Fake(epoch)

	var fired []string
	c.AfterFunc(time.Second, func() {
		fired = append(fired, "first")
		c.AfterFunc(time.Second, func() { fired = append(fired, "second") })
	})

	c.Advance(5 * time.Second)
	if len(fired) != 2 || fired[1] != "second" {
		t.Errorf("fired = %v, want [first second]", fired)
	}
}

func TestFakeClock_SameDeadlineKeepsOrder(t *testing.T) {
	c := Fake(epoch)

	var order []int
	for i := range 4 {
		c.AfterFunc(time.Minute, func() { order = append(order, i) })
	}
	c.Advance(time.Minute)

	for i, got := range order {
		if got != i {
			t.Fatalf("order = %v, want [0 1 2 3]", order)
		}
	}
}
