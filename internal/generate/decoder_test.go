package generate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MuhammadMaazA/AgentForge/internal/workspace"
)

// stubFeed replays a fixed event slice. Closing the events channel without a
// terminal event simulates a transport failure.
type stubFeed struct {
	ch     chan Event
	closed bool
}

func newStubFeed(events ...Event) *stubFeed {
	f := &stubFeed{ch: make(chan Event, len(events)+1)}
	for _, ev := range events {
		f.ch <- ev
	}
	close(f.ch)
	return f
}

func (f *stubFeed) Events() <-chan Event { return f.ch }

func (f *stubFeed) Close() error {
	f.closed = true
	return nil
}

func collect(t *testing.T, out <-chan Event) []Event {
	t.Helper()
	var got []Event
	for ev := range out {
		got = append(got, ev)
	}
	return got
}

func TestDecodeAppliesEventsInOrder(t *testing.T) {
	tree := workspace.NewTree()
	feed := newStubFeed(
		Event{Type: EventCreateFolder, Path: "src"},
		Event{Type: EventCreateFile, Path: "src/app.py", Content: "# v1"},
		Event{Type: EventUpdateFile, Path: "src/app.py", Content: "# v2"},
		Event{Type: EventDone, Message: "done"},
	)

	out := make(chan Event, 8)
	res := NewDecoder(tree).Decode(context.Background(), feed, out)

	if res.Err != nil {
		t.Fatalf("Decode returned error: %v", res.Err)
	}
	if res.ActiveFile != "src/app.py" {
		t.Errorf("ActiveFile = %q, want %q", res.ActiveFile, "src/app.py")
	}
	if res.Applied != 3 {
		t.Errorf("Applied = %d, want 3", res.Applied)
	}

	if got, _ := tree.Content("src/app.py"); got != "# v2" {
		t.Errorf("tree content = %q, want %q", got, "# v2")
	}
	if kind, ok := tree.Stat("src"); !ok || kind != workspace.KindFolder {
		t.Errorf("Stat(src) = %v, ok=%v, want folder", kind, ok)
	}
	if !feed.closed {
		t.Error("Decode did not close the feed")
	}

	events := collect(t, out)
	if len(events) != 4 {
		t.Fatalf("forwarded %d events, want 4", len(events))
	}
	if events[len(events)-1].Type != EventDone {
		t.Errorf("last forwarded event = %v, want done", events[len(events)-1].Type)
	}
}

func TestDecodeLogEventsHaveNoTreeEffect(t *testing.T) {
	tree := workspace.NewTree()
	feed := newStubFeed(
		Event{Type: EventLog, Message: "thinking"},
		Event{Type: EventCreateFile, Path: "a.txt", Content: "x"},
		Event{Type: EventLog, Message: "still thinking"},
		Event{Type: EventDone},
	)

	out := make(chan Event, 8)
	res := NewDecoder(tree).Decode(context.Background(), feed, out)

	if res.Err != nil {
		t.Fatalf("Decode returned error: %v", res.Err)
	}
	if res.Applied != 1 {
		t.Errorf("Applied = %d, want 1", res.Applied)
	}
	if n := tree.FileCount(); n != 1 {
		t.Errorf("FileCount = %d, want 1", n)
	}
}

func TestDecodeProducerError(t *testing.T) {
	tree := workspace.NewTree()
	feed := newStubFeed(
		Event{Type: EventCreateFile, Path: "partial.txt", Content: "kept"},
		Event{Type: EventError, Message: "model refused"},
		// Anything after the terminal event must not be consumed.
		Event{Type: EventCreateFile, Path: "never.txt", Content: "no"},
	)

	out := make(chan Event, 8)
	res := NewDecoder(tree).Decode(context.Background(), feed, out)

	var ferr *FeedError
	if !errors.As(res.Err, &ferr) {
		t.Fatalf("Err = %v, want *FeedError", res.Err)
	}
	if ferr.Message != "model refused" {
		t.Errorf("error message = %q, want producer message", ferr.Message)
	}

	// Partial tree is retained, the event after error never applied.
	if got, _ := tree.Content("partial.txt"); got != "kept" {
		t.Errorf("partial file = %q, want %q", got, "kept")
	}
	if _, ok := tree.Content("never.txt"); ok {
		t.Error("event after terminal error was applied")
	}
}

func TestDecodeTransportFailure(t *testing.T) {
	tree := workspace.NewTree()
	// Feed closes after one file with no terminal event.
	feed := newStubFeed(
		Event{Type: EventCreateFile, Path: "partial.txt", Content: "kept"},
	)

	out := make(chan Event, 8)
	res := NewDecoder(tree).Decode(context.Background(), feed, out)

	if !errors.Is(res.Err, ErrFeedClosed) {
		t.Fatalf("Err = %v, want ErrFeedClosed", res.Err)
	}

	events := collect(t, out)
	errCount := 0
	for _, ev := range events {
		if ev.Type == EventError {
			errCount++
			if ev.Message != ErrFeedClosed.Error() {
				t.Errorf("synthesized message = %q, want %q", ev.Message, ErrFeedClosed.Error())
			}
		}
	}
	if errCount != 1 {
		t.Errorf("forwarded %d error events, want exactly 1", errCount)
	}

	if got, _ := tree.Content("partial.txt"); got != "kept" {
		t.Error("partial tree was not retained after transport failure")
	}
}

func TestDecodeContextCancel(t *testing.T) {
	tree := workspace.NewTree()
	// Unbuffered feed that never delivers, so Decode must block on it.
	f := &stubFeed{ch: make(chan Event)}

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan Event, 1)

	done := make(chan Result, 1)
	go func() {
		done <- NewDecoder(tree).Decode(ctx, f, out)
	}()

	cancel()

	select {
	case res := <-done:
		if !errors.Is(res.Err, context.Canceled) {
			t.Errorf("Err = %v, want context.Canceled", res.Err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Decode did not return after cancellation")
	}
	if !f.closed {
		t.Error("feed not closed after cancellation")
	}
}

func TestDecodeKindConflictLastWriteWins(t *testing.T) {
	tree := workspace.NewTree()
	feed := newStubFeed(
		Event{Type: EventCreateFile, Path: "src", Content: "a file"},
		Event{Type: EventCreateFolder, Path: "src"},
		Event{Type: EventCreateFile, Path: "src/app.py", Content: "nested"},
		Event{Type: EventDone},
	)

	out := make(chan Event, 8)
	res := NewDecoder(tree).Decode(context.Background(), feed, out)

	if res.Err != nil {
		t.Fatalf("Decode returned error: %v", res.Err)
	}
	if kind, _ := tree.Stat("src"); kind != workspace.KindFolder {
		t.Errorf("Stat(src) = %v, want folder", kind)
	}
	if got, _ := tree.Content("src/app.py"); got != "nested" {
		t.Errorf("Content(src/app.py) = %q, want %q", got, "nested")
	}
}
