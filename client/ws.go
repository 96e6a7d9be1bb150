package client

import (
	"context"
	"strings"

	"github.com/gorilla/websocket"
)

// Generate opens a generation stream. The returned channel carries every
// event the server emits and closes after the terminal one, or when ctx is
// cancelled. Cancelling ctx tells the server to abandon the generation.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (<-chan GenerateEvent, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.wsURL("/ws/generate"), nil)
	if err != nil {
		return nil, err
	}
	if err := conn.WriteJSON(req); err != nil {
		conn.Close()
		return nil, err
	}

	out := make(chan GenerateEvent, 16)
	go func() {
		defer close(out)
		defer conn.Close()
		for {
			var ev GenerateEvent
			if err := conn.ReadJSON(&ev); err != nil {
				return
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
			if ev.Type == EventDone || ev.Type == EventError {
				return
			}
		}
	}()
	go func() {
		<-ctx.Done()
		conn.Close()
	}()
	return out, nil
}

// StreamLogs subscribes to a running process's log stream. The channel closes
// after the terminal "done" entry, when the subscription is rejected, or when
// ctx is cancelled.
func (c *Client) StreamLogs(ctx context.Context, processID string) (<-chan LogEntry, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.wsURL("/ws/logs/"+processID), nil)
	if err != nil {
		return nil, err
	}

	out := make(chan LogEntry, 64)
	go func() {
		defer close(out)
		defer conn.Close()
		for {
			var e LogEntry
			if err := conn.ReadJSON(&e); err != nil {
				return
			}
			select {
			case out <- e:
			case <-ctx.Done():
				return
			}
			if e.Type == "done" {
				return
			}
		}
	}()
	go func() {
		<-ctx.Done()
		conn.Close()
	}()
	return out, nil
}

// wsURL converts the client's HTTP base URL to a WebSocket URL for the given
// path, carrying the auth token as a query parameter.
func (c *Client) wsURL(path string) string {
	base := c.baseURL
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	u := base + path
	if c.token != "" {
		u += "?token=" + c.token
	}
	return u
}
