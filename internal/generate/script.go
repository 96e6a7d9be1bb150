package generate

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// ScriptProducer streams a canned starter project for the requested app
// kind. It exists so the server can run without a generation service: the
// emitted trees are complete, runnable apps, so the full
// generate-run-preview loop works in development and in tests.
type ScriptProducer struct {
	// Delay is the pause between events. Zero emits as fast as the consumer
	// reads.
	Delay time.Duration
	// ChunkSize is how many bytes of a source file arrive per event. Files
	// larger than this are streamed as a create followed by growing updates,
	// the way the real service streams progressive rewrites. Zero disables
	// chunking.
	ChunkSize int
}

func (p *ScriptProducer) Open(ctx context.Context, req Request) (Feed, error) {
	events := p.script(req)

	feedCtx, cancel := context.WithCancel(ctx)
	f := &scriptFeed{
		ch:     make(chan Event),
		cancel: cancel,
	}

	go func() {
		defer close(f.ch)
		for _, ev := range events {
			if p.Delay > 0 {
				select {
				case <-time.After(p.Delay):
				case <-feedCtx.Done():
					return
				}
			}
			select {
			case f.ch <- ev:
			case <-feedCtx.Done():
				return
			}
		}
	}()

	return f, nil
}

type scriptFeed struct {
	ch     chan Event
	cancel context.CancelFunc
	once   sync.Once
}

func (f *scriptFeed) Events() <-chan Event { return f.ch }

func (f *scriptFeed) Close() error {
	f.once.Do(f.cancel)
	return nil
}

// script expands the template for the requested kind into the event
// sequence a real generation run would produce: folders first, then each
// file, with progress logs interleaved and a terminal done.
func (p *ScriptProducer) script(req Request) []Event {
	tmpl := templateFor(req.AppType)

	events := []Event{
		{Type: EventLog, Message: fmt.Sprintf("Generating %s app %q", tmpl.framework, displayName(req))},
	}

	for _, folder := range tmpl.folders {
		events = append(events, Event{Type: EventCreateFolder, Path: folder})
	}

	for _, file := range tmpl.files {
		body := file.body(req)
		events = append(events, Event{Type: EventLog, Message: "Writing " + file.path})
		events = append(events, p.fileEvents(file.path, body)...)
	}

	events = append(events,
		Event{Type: EventLog, Message: "Generation complete"},
		Event{Type: EventDone, Message: "done"},
	)
	return events
}

// fileEvents streams body to path. Small files arrive whole; larger ones
// arrive as a create holding the first chunk followed by updates whose
// content grows until the final update carries the complete file.
func (p *ScriptProducer) fileEvents(path, body string) []Event {
	if p.ChunkSize <= 0 || len(body) <= p.ChunkSize {
		return []Event{{Type: EventCreateFile, Path: path, Content: body}}
	}

	var events []Event
	for end := p.ChunkSize; ; end += p.ChunkSize {
		if end >= len(body) {
			events = append(events, Event{Type: EventUpdateFile, Path: path, Content: body})
			break
		}
		typ := EventUpdateFile
		if len(events) == 0 {
			typ = EventCreateFile
		}
		events = append(events, Event{Type: typ, Path: path, Content: body[:end]})
	}
	return events
}
