package session

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MuhammadMaazA/AgentForge/internal/generate"
	"github.com/MuhammadMaazA/AgentForge/internal/runner"
	"github.com/MuhammadMaazA/AgentForge/internal/workspace"
)

// ErrProcessMismatch is returned when a stop or log request names a process
// the orchestrator is not tracking.
var ErrProcessMismatch = errors.New("process id does not match the tracked session")

// recentLogMax bounds the orchestrator's own log tail shown on the status
// surface.
const recentLogMax = 50

// Orchestrator owns one workspace tree, at most one open generation feed
// and at most one active execution session. Run, stop and restart requests
// are serialized: a stop always completes, subscription first, before the
// next run starts.
type Orchestrator struct {
	tree     *workspace.Tree
	producer generate.Producer
	runner   runner.Runner
	decoder  *generate.Decoder

	// runMu serializes Run/Stop/Close. Held across the full stop-then-start
	// sequence so a restart can never interleave with another request.
	runMu sync.Mutex

	// mu guards the snapshot state below; readers never wait on runMu.
	mu         sync.RWMutex
	session    ExecutionSession
	activeFile string
	recentLogs []string

	// log subscription owned by the orchestrator for the current session.
	logCancel func()
	logDone   chan struct{}

	// genMu guards the single open generation feed.
	genMu     sync.Mutex
	genCancel context.CancelFunc
	genDone   chan struct{}
}

func New(tree *workspace.Tree, producer generate.Producer, r runner.Runner) *Orchestrator {
	return &Orchestrator{
		tree:     tree,
		producer: producer,
		runner:   r,
		decoder:  generate.NewDecoder(tree),
	}
}

// GenerationFeed is the caller's handle on one generation request: the live
// event stream plus the decode result once the stream ends.
type GenerationFeed struct {
	ID     string
	events <-chan generate.Event
	done   <-chan struct{}
	cancel context.CancelFunc

	mu  sync.Mutex
	res generate.Result
}

// Events streams every decoded event in arrival order. The channel closes
// after the terminal event.
func (f *GenerationFeed) Events() <-chan generate.Event { return f.events }

// Result blocks until decoding ends and returns its outcome.
func (f *GenerationFeed) Result() generate.Result {
	<-f.done
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.res
}

// Close abandons the feed. The decode loop stops promptly and the producer
// feed is released.
func (f *GenerationFeed) Close() {
	f.cancel()
}

// Generate opens a generation feed for req and starts the decode loop that
// applies its events to the workspace tree. An already-open feed for this
// orchestrator is canceled and fully drained first: two feeds never write
// into the same tree concurrently.
func (o *Orchestrator) Generate(ctx context.Context, req generate.Request) (*GenerationFeed, error) {
	o.genMu.Lock()
	defer o.genMu.Unlock()

	if o.genCancel != nil {
		log.Printf("[session] superseding open generation feed")
		o.genCancel()
		<-o.genDone
		o.genCancel = nil
		o.genDone = nil
	}

	feed, err := o.producer.Open(ctx, req)
	if err != nil {
		return nil, err
	}

	genCtx, cancel := context.WithCancel(context.Background())
	out := make(chan generate.Event, 64)
	done := make(chan struct{})

	gf := &GenerationFeed{
		ID:     "g-" + uuid.NewString()[:8],
		events: out,
		done:   done,
		cancel: cancel,
	}

	log.Printf("[session] [%s] generation feed opened for %q (%s)", gf.ID, req.AppName, req.AppType)
	go func() {
		defer close(done)
		res := o.decoder.Decode(genCtx, feed, out)

		gf.mu.Lock()
		gf.res = res
		gf.mu.Unlock()

		if res.ActiveFile != "" {
			o.mu.Lock()
			o.activeFile = res.ActiveFile
			o.mu.Unlock()
		}
		if res.Err != nil {
			log.Printf("[session] [%s] generation ended: %v", gf.ID, res.Err)
		} else {
			log.Printf("[session] [%s] generation done, %d events applied", gf.ID, res.Applied)
		}
	}()

	o.genCancel = cancel
	o.genDone = done
	return gf, nil
}

// Run executes snap as the orchestrator's execution session. If a session
// is active the full stop sequence runs and completes first; the previous
// process and preview address are gone before the new Starting phase
// begins. An empty snapshot runs the orchestrator's current tree.
func (o *Orchestrator) Run(ctx context.Context, snap workspace.Snapshot) (runner.Started, error) {
	o.runMu.Lock()
	defer o.runMu.Unlock()

	if cur := o.Session(); cur.Status.Active() {
		log.Printf("[session] run while %s, stopping %s first", cur.Status, cur.ProcessID)
		o.stopTracked(ctx, cur.ProcessID)
	}

	if snap == nil {
		snap = o.tree.Snapshot()
	}

	o.setSession(ExecutionSession{Status: Starting, StartedAt: time.Now()})

	started, err := o.runner.Run(ctx, snap)
	if err != nil {
		log.Printf("[session] run failed: %v", err)
		o.setSession(ExecutionSession{Status: Failed, LastError: err.Error()})
		return runner.Started{}, err
	}

	logs, cancel, err := o.runner.Logs(started.ProcessID)
	if err != nil {
		// A session without its log tail is still a session; the caller can
		// open its own subscription.
		log.Printf("[session] [%s] log subscription failed: %v", started.ProcessID, err)
	} else {
		done := make(chan struct{})
		o.mu.Lock()
		o.logCancel = cancel
		o.logDone = done
		o.recentLogs = nil
		o.mu.Unlock()
		go o.drainLogs(logs, done)
	}

	o.setSession(ExecutionSession{
		ProcessID:  started.ProcessID,
		PreviewURL: started.PreviewURL,
		Status:     Running,
		StartedAt:  time.Now(),
	})
	log.Printf("[session] [%s] running at %s", started.ProcessID, started.PreviewURL)
	return started, nil
}

// drainLogs tails the orchestrator's own subscription into the bounded
// recent-log buffer until the channel closes.
func (o *Orchestrator) drainLogs(logs <-chan runner.LogEntry, done chan struct{}) {
	defer close(done)
	for entry := range logs {
		o.mu.Lock()
		o.recentLogs = append(o.recentLogs, entry.Message)
		if len(o.recentLogs) > recentLogMax {
			o.recentLogs = o.recentLogs[len(o.recentLogs)-recentLogMax:]
		}
		o.mu.Unlock()
	}
}

// Stop tears down the tracked session. Stopping an orchestrator that has no
// active session is a no-op; naming a process other than the tracked one
// returns ErrProcessMismatch and leaves the tracked session alone.
func (o *Orchestrator) Stop(ctx context.Context, processID string) error {
	o.runMu.Lock()
	defer o.runMu.Unlock()

	cur := o.Session()
	if !cur.Status.Active() {
		return nil
	}
	if processID != cur.ProcessID {
		return ErrProcessMismatch
	}

	o.stopTracked(ctx, processID)
	return nil
}

// stopTracked runs the full stop sequence: close the orchestrator's log
// subscription first so no output from a dying process is attributed to a
// later one, then terminate the process, then go Idle. Callers hold runMu.
func (o *Orchestrator) stopTracked(ctx context.Context, processID string) {
	o.setStatus(Stopping)

	o.mu.Lock()
	cancel, done := o.logCancel, o.logDone
	o.logCancel, o.logDone = nil, nil
	o.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}

	if err := o.runner.Stop(ctx, processID); err != nil && !errors.Is(err, runner.ErrUnknownProcess) {
		// The process may already be gone; anything else is logged and the
		// session still ends, per the recoverability policy.
		log.Printf("[session] [%s] stop: %v", processID, err)
	}

	o.setSession(ExecutionSession{Status: Idle})
	log.Printf("[session] [%s] stopped", processID)
}

// StreamLogs opens a caller-owned log subscription for the tracked running
// process.
func (o *Orchestrator) StreamLogs(processID string) (<-chan runner.LogEntry, func(), error) {
	cur := o.Session()
	if !cur.Status.Active() || processID != cur.ProcessID {
		return nil, nil, ErrProcessMismatch
	}
	return o.runner.Logs(processID)
}

// Edit applies a direct user edit: same overwrite semantics as an
// update_file event, and the edited file becomes the active one.
func (o *Orchestrator) Edit(path, content string) {
	o.tree.SetPath(path, workspace.KindFile, content)
	o.mu.Lock()
	o.activeFile = path
	o.mu.Unlock()
}

// SnapshotTree returns a detached copy of the current workspace.
func (o *Orchestrator) SnapshotTree() workspace.Snapshot {
	return o.tree.Snapshot()
}

// FileCount reports how many files the workspace holds.
func (o *Orchestrator) FileCount() int {
	return o.tree.FileCount()
}

// ResetTree drops the workspace, typically before generating a fresh app.
func (o *Orchestrator) ResetTree() {
	o.tree.Reset()
	o.mu.Lock()
	o.activeFile = ""
	o.mu.Unlock()
}

func (o *Orchestrator) ActiveFile() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.activeFile
}

// Session returns a copy of the tracked execution session.
func (o *Orchestrator) Session() ExecutionSession {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.session
}

// RecentLogs returns the tail of the current session's output.
func (o *Orchestrator) RecentLogs() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return append([]string(nil), o.recentLogs...)
}

func (o *Orchestrator) setSession(s ExecutionSession) {
	o.mu.Lock()
	o.session = s
	o.mu.Unlock()
}

func (o *Orchestrator) setStatus(s Status) {
	o.mu.Lock()
	o.session.Status = s
	o.mu.Unlock()
}

// Close tears the orchestrator down: the open generation feed is canceled
// and drained, and any active session is stopped so no generated process
// outlives its owner.
func (o *Orchestrator) Close() {
	o.genMu.Lock()
	if o.genCancel != nil {
		o.genCancel()
		<-o.genDone
		o.genCancel = nil
		o.genDone = nil
	}
	o.genMu.Unlock()

	o.runMu.Lock()
	defer o.runMu.Unlock()
	if cur := o.Session(); cur.Status.Active() {
		o.stopTracked(context.Background(), cur.ProcessID)
	}
}
