package remote

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func qe(typ string, at, delay time.Duration) QueuedEvent {
	return QueuedEvent{
		Event:      &OutgoingEvent{Target: "1", Type: typ, Delay: delay},
		EnqueuedAt: t0.Add(at),
	}
}

func queuedTypes(events []QueuedEvent) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.Event.Type
	}
	return out
}

func TestReduceQueue(t *testing.T) {
	in := []QueuedEvent{qe("a", 0, 0), qe("b", 0, 0), qe("a", 0, 0), qe("c", 0, 0)}
	in[2].Event.Coalesce = SameTargetAndType
	orig := append([]QueuedEvent(nil), in...)

	got := ReduceQueue(in)
	if diff := cmp.Diff([]string{"b", "a", "c"}, queuedTypes(got)); diff != "" {
		t.Errorf("ReduceQueue mismatch (-want +got):\n%s", diff)
	}
	for i := range in {
		if in[i] != orig[i] {
			t.Fatalf("input modified at %d", i)
		}
	}
}

func TestReduceQueueOnlyEarlierEvents(t *testing.T) {
	// A coalescing event never removes events enqueued after it.
	in := []QueuedEvent{qe("a", 0, 0), qe("a", 0, 0)}
	in[0].Event.Coalesce = SameTargetAndType
	if got := ReduceQueue(in); len(got) != 2 {
		t.Errorf("ReduceQueue kept %d events; want 2", len(got))
	}
}

func TestSameTargetTypeAnd(t *testing.T) {
	f := SameTargetTypeAnd("column")
	tests := []struct {
		name       string
		next, prev *OutgoingEvent
		want       bool
	}{
		{
			name: "same column",
			next: &OutgoingEvent{Target: "t", Type: "resize", Data: map[string]any{"column": "a", "width": 10}},
			prev: &OutgoingEvent{Target: "t", Type: "resize", Data: map[string]any{"column": "a", "width": 20}},
			want: true,
		},
		{
			name: "different column",
			next: &OutgoingEvent{Target: "t", Type: "resize", Data: map[string]any{"column": "a"}},
			prev: &OutgoingEvent{Target: "t", Type: "resize", Data: map[string]any{"column": "z"}},
		},
		{
			name: "key missing on one side",
			next: &OutgoingEvent{Target: "t", Type: "resize", Data: map[string]any{"column": "a"}},
			prev: &OutgoingEvent{Target: "t", Type: "resize"},
		},
		{
			name: "key missing on both sides",
			next: &OutgoingEvent{Target: "t", Type: "resize"},
			prev: &OutgoingEvent{Target: "t", Type: "resize"},
			want: true,
		},
		{
			name: "other target",
			next: &OutgoingEvent{Target: "t", Type: "resize"},
			prev: &OutgoingEvent{Target: "u", Type: "resize"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f(tt.next, tt.prev); got != tt.want {
				t.Errorf("got %v; want %v", got, tt.want)
			}
		})
	}
}

func TestNextDeadline(t *testing.T) {
	tests := []struct {
		name   string
		events []QueuedEvent
		want   time.Duration
		ok     bool
	}{
		{name: "empty"},
		{
			name:   "single",
			events: []QueuedEvent{qe("a", 0, 500*time.Millisecond)},
			want:   500 * time.Millisecond,
			ok:     true,
		},
		{
			name:   "later event with shorter delay pulls in",
			events: []QueuedEvent{qe("a", 0, 500*time.Millisecond), qe("b", 100*time.Millisecond, 0)},
			want:   100 * time.Millisecond,
			ok:     true,
		},
		{
			name:   "later event with longer delay does not push back",
			events: []QueuedEvent{qe("a", 0, 300*time.Millisecond), qe("b", 0, 500*time.Millisecond)},
			want:   300 * time.Millisecond,
			ok:     true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NextDeadline(tt.events)
			if ok != tt.ok {
				t.Fatalf("ok = %v; want %v", ok, tt.ok)
			}
			if ok && !got.Equal(t0.Add(tt.want)) {
				t.Errorf("deadline = %v; want t0+%v", got.Sub(t0), tt.want)
			}
		})
	}
}

func TestSplitBatch(t *testing.T) {
	mk := func(boundaries ...bool) []QueuedEvent {
		out := make([]QueuedEvent, len(boundaries))
		for i, b := range boundaries {
			out[i] = qe(string(rune('a'+i)), 0, 0)
			out[i].Event.NewRequest = b
		}
		return out
	}
	tests := []struct {
		name      string
		in        []QueuedEvent
		batch     []string
		remaining []string
	}{
		{"no boundary", mk(false, false, false), []string{"a", "b", "c"}, []string{}},
		{"boundary first", mk(true, false), []string{"a", "b"}, []string{}},
		{"boundary in the middle", mk(false, true, false, true, false), []string{"a"}, []string{"b", "c", "d", "e"}},
		{"boundary last", mk(false, false, true), []string{"a", "b"}, []string{"c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batch, rest := SplitBatch(tt.in)
			if diff := cmp.Diff(tt.batch, queuedTypes(batch)); diff != "" {
				t.Errorf("batch mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.remaining, queuedTypes(rest)); diff != "" {
				t.Errorf("rest mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestQueueCut(t *testing.T) {
	var q Queue
	for i, b := range []bool{false, true, false, true, false} {
		q.Add(&OutgoingEvent{Target: "1", Type: string(rune('a' + i)), NewRequest: b}, t0)
	}
	var got [][]string
	for q.Len() > 0 {
		got = append(got, types(q.Cut()))
	}
	want := [][]string{{"a"}, {"b", "c"}, {"d", "e"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("cuts mismatch (-want +got):\n%s", diff)
	}
	if q.Cut() != nil {
		t.Error("Cut on empty queue returned a batch")
	}
}
