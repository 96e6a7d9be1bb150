package generate

import (
	"context"
	"errors"

	"github.com/MuhammadMaazA/AgentForge/internal/workspace"
)

// ErrFeedClosed is the failure recorded when a feed closes before
// delivering a terminal event.
var ErrFeedClosed = errors.New("connection failed")

// FeedError is a generation failure visible to the caller: either the
// producer reported an error event, or the feed ended without one.
type FeedError struct {
	Message string
	Cause   error
}

func (e *FeedError) Error() string { return e.Message }

func (e *FeedError) Unwrap() error { return e.Cause }

// Result summarizes one consumed feed.
type Result struct {
	// ActiveFile is the path of the last file created or updated, the file
	// a UI should keep focused.
	ActiveFile string
	// Applied counts tree mutations performed.
	Applied int
	// Err is nil only when the feed ended with a done event.
	Err error
}

// Decoder applies generation feeds to a workspace tree.
type Decoder struct {
	tree *workspace.Tree
}

func NewDecoder(tree *workspace.Tree) *Decoder {
	return &Decoder{tree: tree}
}

// Decode consumes feed in arrival order. Folder and file events mutate the
// tree before they are forwarded to out, so a caller that reads an event
// and then queries the tree always observes its mutation. Decode returns
// after forwarding a terminal event, after synthesizing an error event for
// a feed that closed without one, or when ctx is canceled. out is closed
// before returning and the feed is always closed.
func (d *Decoder) Decode(ctx context.Context, feed Feed, out chan<- Event) Result {
	defer close(out)
	defer feed.Close()

	var res Result
	for {
		select {
		case <-ctx.Done():
			res.Err = ctx.Err()
			return res
		case ev, ok := <-feed.Events():
			if !ok {
				// Transport died mid-feed. Surface it exactly once as an
				// error event with the standard message.
				res.Err = &FeedError{Message: ErrFeedClosed.Error(), Cause: ErrFeedClosed}
				forward(ctx, out, Event{Type: EventError, Message: ErrFeedClosed.Error()})
				return res
			}

			switch ev.Type {
			case EventCreateFolder:
				d.tree.SetPath(ev.Path, workspace.KindFolder, "")
				res.Applied++
			case EventCreateFile, EventUpdateFile:
				d.tree.SetPath(ev.Path, workspace.KindFile, ev.Content)
				res.ActiveFile = ev.Path
				res.Applied++
			case EventLog, EventError, EventDone:
				// No tree effect.
			}

			forward(ctx, out, ev)

			switch ev.Type {
			case EventDone:
				return res
			case EventError:
				res.Err = &FeedError{Message: ev.Message}
				return res
			}
		}
	}
}

func forward(ctx context.Context, out chan<- Event, ev Event) {
	select {
	case out <- ev:
	case <-ctx.Done():
	}
}
