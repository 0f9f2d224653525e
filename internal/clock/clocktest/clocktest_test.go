package clocktest

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestAdvanceFiresInDeadlineOrder(t *testing.T) {
	c := New()
	var got []string
	c.AfterFunc(300*time.Millisecond, func() { got = append(got, "c") })
	c.AfterFunc(100*time.Millisecond, func() { got = append(got, "a") })
	c.AfterFunc(100*time.Millisecond, func() { got = append(got, "b") })

	c.Advance(99 * time.Millisecond)
	if len(got) != 0 {
		t.Fatalf("fired early: %v", got)
	}
	c.Advance(time.Second)
	if diff := cmp.Diff([]string{"a", "b", "c"}, got); diff != "" {
		t.Errorf("fire order (-want +got):\n%s", diff)
	}
}

func TestStop(t *testing.T) {
	c := New()
	fired := false
	tm := c.AfterFunc(0, func() { fired = true })
	if !tm.Stop() {
		t.Fatal("Stop on armed timer = false, want true")
	}
	if tm.Stop() {
		t.Error("second Stop = true, want false")
	}
	c.Advance(time.Second)
	if fired {
		t.Error("stopped timer fired")
	}
}

func TestZeroDelayIsNotSynchronous(t *testing.T) {
	c := New()
	fired := false
	c.AfterFunc(0, func() { fired = true })
	if fired {
		t.Fatal("AfterFunc(0) fired synchronously")
	}
	c.Advance(0)
	if !fired {
		t.Error("AfterFunc(0) did not fire on Advance(0)")
	}
}

func TestCallbackSeesDeadlineTime(t *testing.T) {
	c := New()
	var at time.Time
	c.AfterFunc(250*time.Millisecond, func() {
		at = c.Now()
		// Registered during the advance, still within range.
		c.AfterFunc(0, func() {})
	})
	end := c.Advance(time.Second)
	if want := Start.Add(250 * time.Millisecond); !at.Equal(want) {
		t.Errorf("callback time = %v, want %v", at, want)
	}
	if !end.Equal(Start.Add(time.Second)) {
		t.Errorf("Advance returned %v", end)
	}
	if n := c.Pending(); n != 0 {
		t.Errorf("Pending = %d, want 0", n)
	}
}
