package client

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/MuhammadMaazA/AgentForge/internal/generate"
	"github.com/MuhammadMaazA/AgentForge/internal/runner"
	"github.com/MuhammadMaazA/AgentForge/internal/session"
	"github.com/MuhammadMaazA/AgentForge/internal/workspace"
	"github.com/MuhammadMaazA/AgentForge/internal/ws"
)

type stubRunner struct {
	mu     sync.Mutex
	nextID int
	subs   map[string][]chan runner.LogEntry
	ports  map[string]int
}

func newStubRunner() *stubRunner {
	return &stubRunner{
		subs:  make(map[string][]chan runner.LogEntry),
		ports: make(map[string]int),
	}
}

func (s *stubRunner) Run(ctx context.Context, snap workspace.Snapshot) (runner.Started, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := fmt.Sprintf("p%d", s.nextID)
	s.ports[id] = 9000 + s.nextID
	return runner.Started{ProcessID: id, PreviewURL: "http://127.0.0.1/preview/" + id + "/", Port: s.ports[id]}, nil
}

func (s *stubRunner) Stop(ctx context.Context, processID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ports[processID]; !ok {
		return fmt.Errorf("%w: %s", runner.ErrUnknownProcess, processID)
	}
	for _, ch := range s.subs[processID] {
		close(ch)
	}
	delete(s.subs, processID)
	delete(s.ports, processID)
	return nil
}

func (s *stubRunner) Logs(processID string) (<-chan runner.LogEntry, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ports[processID]; !ok {
		return nil, nil, fmt.Errorf("%w: %s", runner.ErrUnknownProcess, processID)
	}
	ch := make(chan runner.LogEntry, 256)
	s.subs[processID] = append(s.subs[processID], ch)
	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, c := range s.subs[processID] {
			if c == ch {
				s.subs[processID] = append(s.subs[processID][:i], s.subs[processID][i+1:]...)
				close(ch)
				return
			}
		}
	}
	return ch, cancel, nil
}

func (s *stubRunner) publish(processID string, e runner.LogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs[processID] {
		ch <- e
	}
}

func (s *stubRunner) finish(processID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs[processID] {
		ch <- runner.LogEntry{Kind: runner.LogKindDone, Message: "Process terminated."}
		close(ch)
	}
	delete(s.subs, processID)
}

func (s *stubRunner) Port(processID string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	port, ok := s.ports[processID]
	return port, ok
}

func (s *stubRunner) Snapshot() []runner.RunStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []runner.RunStatus
	for id, port := range s.ports {
		out = append(out, runner.RunStatus{ProcessID: id, Port: port, Alive: true})
	}
	return out
}

func (s *stubRunner) Stats(processID string) (runner.Stats, error) {
	return runner.Stats{Alive: true}, nil
}

func startBackend(t *testing.T, token string) (*Client, *stubRunner) {
	t.Helper()
	sr := newStubRunner()
	orch := session.New(workspace.NewTree(), &generate.ScriptProducer{}, sr)
	t.Cleanup(orch.Close)

	srv := ws.NewServer(orch, sr, "scripted", nil, token)
	mux := http.NewServeMux()
	srv.SetupRoutes(mux)

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return New(ts.URL, token), sr
}

func TestHealth(t *testing.T) {
	c, _ := startBackend(t, "")

	h, err := c.Health()
	if err != nil {
		t.Fatal(err)
	}
	if h.Status != "ok" || h.Generator != "scripted" {
		t.Errorf("health = %+v", h)
	}
}

func TestRunStopStatus(t *testing.T) {
	c, _ := startBackend(t, "")

	run, err := c.Run(FileSystem{
		"app.py": {Type: "file", Content: "print('hi')"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if run.ProcessID == "" || run.URL == "" {
		t.Fatalf("run = %+v", run)
	}

	st, err := c.Status()
	if err != nil {
		t.Fatal(err)
	}
	if st.Session.Status != "running" || st.Session.ProcessID != run.ProcessID {
		t.Errorf("status = %+v", st.Session)
	}

	// A mismatched id is reported as a failure, not a transport error.
	stop, err := c.Stop("p999")
	if err != nil {
		t.Fatal(err)
	}
	if stop.Success {
		t.Error("mismatched stop reported success")
	}

	stop, err = c.Stop(run.ProcessID)
	if err != nil {
		t.Fatal(err)
	}
	if !stop.Success {
		t.Errorf("stop = %+v", stop)
	}

	// Stopping again is an acknowledged no-op.
	stop, err = c.Stop(run.ProcessID)
	if err != nil {
		t.Fatal(err)
	}
	if !stop.Success {
		t.Errorf("second stop = %+v", stop)
	}
}

func TestGenerateAndWorkspace(t *testing.T) {
	c, _ := startBackend(t, "")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	events, err := c.Generate(ctx, GenerateRequest{
		AppName: "TodoApp",
		AppType: "streamlit",
	})
	if err != nil {
		t.Fatal(err)
	}

	var last GenerateEvent
	sawFile := false
	for ev := range events {
		if ev.Type == EventCreateFile {
			sawFile = true
		}
		last = ev
	}
	if last.Type != EventDone {
		t.Fatalf("last event = %+v, want done", last)
	}
	if !sawFile {
		t.Error("no create_file events seen")
	}

	w, err := c.Workspace()
	if err != nil {
		t.Fatal(err)
	}
	if w.FileSystem["app.py"] == nil {
		t.Errorf("workspace missing app.py: %v", w.FileSystem)
	}
	if w.ActiveFile == "" {
		t.Error("no active file")
	}
}

func TestEditFile(t *testing.T) {
	c, _ := startBackend(t, "")

	if err := c.EditFile("src/app.py", "# edited"); err != nil {
		t.Fatal(err)
	}

	w, err := c.Workspace()
	if err != nil {
		t.Fatal(err)
	}
	src := w.FileSystem["src"]
	if src == nil || src.Children["app.py"] == nil || src.Children["app.py"].Content != "# edited" {
		t.Errorf("workspace = %+v", w.FileSystem)
	}
}

func TestStreamLogs(t *testing.T) {
	c, sr := startBackend(t, "")

	run, err := c.Run(nil)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logs, err := c.StreamLogs(ctx, run.ProcessID)
	if err != nil {
		t.Fatal(err)
	}

	sr.publish(run.ProcessID, runner.LogEntry{Kind: runner.LogKindLine, Message: "[stdout] listening"})
	sr.finish(run.ProcessID)

	var entries []LogEntry
	for e := range logs {
		entries = append(entries, e)
	}
	if len(entries) < 2 {
		t.Fatalf("entries = %v", entries)
	}
	if entries[len(entries)-1].Type != "done" {
		t.Errorf("last entry = %+v, want done", entries[len(entries)-1])
	}
}

func TestStreamLogsUnknownProcess(t *testing.T) {
	c, _ := startBackend(t, "")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := c.StreamLogs(ctx, "p404"); err == nil {
		t.Fatal("subscribing to an unknown process succeeded")
	}
}

func TestAuthToken(t *testing.T) {
	c, _ := startBackend(t, "sekrit")

	if _, err := c.Status(); err != nil {
		t.Fatalf("authorized status failed: %v", err)
	}

	bad := New(c.baseURL, "wrong")
	if _, err := bad.Status(); err == nil {
		t.Fatal("wrong token was accepted")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := bad.Generate(ctx, GenerateRequest{AppName: "x", AppType: "flask"}); err == nil {
		t.Fatal("wrong token opened a generate stream")
	}
}
