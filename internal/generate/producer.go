package generate

import "context"

// Producer opens generation feeds. The scripted producer serves development
// and tests without any external service; the remote producer speaks to a
// generation service over a WebSocket.
type Producer interface {
	Open(ctx context.Context, req Request) (Feed, error)
}

// Feed is a single generation stream. Events is closed when the feed ends,
// with or without a terminal event; a close without done or error means the
// transport failed. Close releases the feed early and may be called more
// than once.
type Feed interface {
	Events() <-chan Event
	Close() error
}
