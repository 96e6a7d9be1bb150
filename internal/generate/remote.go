package generate

import (
	"context"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
)

// RemoteProducer opens generation feeds against an external generation
// service over a WebSocket. The protocol is a single request frame followed
// by a stream of event frames; the service closes the socket after its
// terminal event.
type RemoteProducer struct {
	// URL is the service endpoint, e.g. "ws://127.0.0.1:9000/generate".
	URL string
	// Dialer defaults to websocket.DefaultDialer.
	Dialer *websocket.Dialer
}

func (p *RemoteProducer) Open(ctx context.Context, req Request) (Feed, error) {
	dialer := p.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	conn, _, err := dialer.DialContext(ctx, p.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial generation service: %w", err)
	}
	if err := conn.WriteJSON(req); err != nil {
		conn.Close()
		return nil, fmt.Errorf("send generation request: %w", err)
	}

	f := &remoteFeed{
		conn: conn,
		ch:   make(chan Event),
		done: make(chan struct{}),
	}
	go f.readLoop()
	return f, nil
}

type remoteFeed struct {
	conn *websocket.Conn
	ch   chan Event
	done chan struct{}
	once sync.Once
}

// readLoop converts socket frames into events until the socket dies. A read
// error just ends the feed: the decoder distinguishes a clean terminal event
// from a transport failure by whether one arrived before the channel closed.
func (f *remoteFeed) readLoop() {
	defer close(f.ch)
	for {
		var ev Event
		if err := f.conn.ReadJSON(&ev); err != nil {
			return
		}
		select {
		case f.ch <- ev:
		case <-f.done:
			return
		}
		if ev.Type.Terminal() {
			return
		}
	}
}

func (f *remoteFeed) Events() <-chan Event { return f.ch }

func (f *remoteFeed) Close() error {
	var err error
	f.once.Do(func() {
		close(f.done)
		err = f.conn.Close()
	})
	return err
}
