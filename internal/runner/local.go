package runner

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MuhammadMaazA/AgentForge/internal/workspace"
)

const (
	scanInitialBuf = 64 * 1024
	scanMaxBuf     = 1024 * 1024
)

// Config tunes the local runner. Zero values fall back to the defaults
// below.
type Config struct {
	// WorkDir is where run directories are staged; empty means the system
	// temp dir.
	WorkDir string
	// PortBase and PortSpan bound the ports handed to generated apps.
	PortBase int
	PortSpan int
	// StartupTimeout caps how long Run waits for the app port to accept
	// connections before declaring the app slow-but-started.
	StartupTimeout time.Duration
	// StopGrace is how long a terminated process gets before it is killed;
	// KillGrace how long a kill gets before Stop gives up waiting.
	StopGrace time.Duration
	KillGrace time.Duration
	// LogHistory is how many log entries each run retains for late
	// subscribers.
	LogHistory int
	// PreviewBase, when set, fronts preview URLs with the reverse proxy:
	// "<PreviewBase>/<processID>/". Empty hands out the app's direct
	// address.
	PreviewBase string
}

func (c Config) withDefaults() Config {
	if c.PortBase == 0 {
		c.PortBase = 8100
	}
	if c.PortSpan == 0 {
		c.PortSpan = 100
	}
	if c.StartupTimeout == 0 {
		c.StartupTimeout = 15 * time.Second
	}
	if c.StopGrace == 0 {
		c.StopGrace = 3 * time.Second
	}
	if c.KillGrace == 0 {
		c.KillGrace = 2 * time.Second
	}
	if c.LogHistory == 0 {
		c.LogHistory = 500
	}
	return c
}

// run is one tracked process: its staged directory, port, log hub and
// handle. finalize runs exactly once whether the process exits on its own
// or is stopped.
type run struct {
	id        string
	port      int
	dir       string
	hub       *logHub
	startedAt time.Time

	mu  sync.Mutex
	cmd *exec.Cmd

	exited   chan struct{}
	finalize sync.Once
}

func (r *run) process() *os.Process {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cmd == nil {
		return nil
	}
	return r.cmd.Process
}

// Local runs workspace snapshots as subprocesses on this machine. It honors
// the Runner contract and additionally exposes the registry views the HTTP
// layer needs (preview target ports, debug dumps, resource stats).
type Local struct {
	cfg Config

	mu   sync.Mutex
	runs map[string]*run
}

func NewLocal(cfg Config) *Local {
	return &Local{
		cfg:  cfg.withDefaults(),
		runs: make(map[string]*run),
	}
}

func newProcessID() string {
	return "p-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

func (l *Local) Run(ctx context.Context, snap workspace.Snapshot) (Started, error) {
	dir, err := os.MkdirTemp(l.cfg.WorkDir, "agentforge-run-")
	if err != nil {
		return Started{}, fmt.Errorf("stage run dir: %w", err)
	}

	if err := materialize(snap, dir); err != nil {
		os.RemoveAll(dir)
		return Started{}, fmt.Errorf("materialize workspace: %w", err)
	}

	root, err := findProjectRoot(dir)
	if err != nil {
		os.RemoveAll(dir)
		return Started{}, err
	}

	port, err := allocatePort(l.cfg.PortBase, l.cfg.PortSpan)
	if err != nil {
		os.RemoveAll(dir)
		return Started{}, err
	}

	p, err := planCommands(root, port)
	if err != nil {
		os.RemoveAll(dir)
		return Started{}, err
	}

	r := &run{
		id:        newProcessID(),
		port:      port,
		dir:       dir,
		hub:       newLogHub(l.cfg.LogHistory),
		startedAt: time.Now(),
		exited:    make(chan struct{}),
	}
	r.hub.publish(LogEntry{Kind: LogKindLine, Message: "[system] Starting project setup..."})

	// Registered before install so a log subscription opened right after
	// Run returns still replays the install output.
	l.mu.Lock()
	l.runs[r.id] = r
	l.mu.Unlock()

	if p.install != nil {
		if err := l.runInstall(ctx, r, root, p); err != nil {
			l.cleanup(r, "[system] Install failed.")
			return Started{}, err
		}
	}

	if err := l.startProcess(r, root, p); err != nil {
		l.cleanup(r, "[system] Startup failed.")
		return Started{}, err
	}

	if err := l.waitReady(ctx, r); err != nil {
		l.stopRun(r)
		return Started{}, err
	}

	log.Printf("[runner] [%s] serving on port %d from %s", r.id, r.port, root)
	return Started{
		ProcessID:  r.id,
		PreviewURL: l.previewURL(r),
		Port:       r.port,
	}, nil
}

func (l *Local) previewURL(r *run) string {
	if l.cfg.PreviewBase != "" {
		return strings.TrimRight(l.cfg.PreviewBase, "/") + "/" + r.id + "/"
	}
	return "http://127.0.0.1:" + strconv.Itoa(r.port)
}

// runInstall executes the install command to completion, streaming its
// output into the run's log hub.
func (l *Local) runInstall(ctx context.Context, r *run, dir string, p plan) error {
	r.hub.publish(LogEntry{Kind: LogKindLine, Message: "[install] Running: " + strings.Join(p.install, " ")})

	cmd := exec.CommandContext(ctx, p.install[0], p.install[1:]...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), p.env...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("install stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("install stderr: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start install: %w", err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		pumpLines(stdout, r.hub, "[install]")
	}()
	go func() {
		defer wg.Done()
		pumpLines(stderr, r.hub, "[install]")
	}()
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("install %q: %w", strings.Join(p.install, " "), err)
	}
	return nil
}

// startProcess launches the run command with stdout/stderr pumps and a
// waiter that finalizes the run when the process exits on its own.
func (l *Local) startProcess(r *run, dir string, p plan) error {
	r.hub.publish(LogEntry{Kind: LogKindLine, Message: "[run] Starting: " + strings.Join(p.run, " ")})
	r.hub.publish(LogEntry{Kind: LogKindLine, Message: "[run] Port: " + strconv.Itoa(r.port)})

	cmd := exec.Command(p.run[0], p.run[1:]...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), p.env...)
	cmd.SysProcAttr = sysProcAttr()

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("run stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("run stderr: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %q: %w", strings.Join(p.run, " "), err)
	}

	r.mu.Lock()
	r.cmd = cmd
	r.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		pumpLines(stdout, r.hub, "[stdout]")
	}()
	go func() {
		defer wg.Done()
		pumpLines(stderr, r.hub, "[stderr]")
	}()

	go func() {
		wg.Wait()
		err := cmd.Wait()
		close(r.exited)
		if err != nil {
			log.Printf("[runner] [%s] process exited: %v", r.id, err)
		}
		l.cleanup(r, "Process terminated.")
	}()

	return nil
}

func pumpLines(rd io.Reader, hub *logHub, prefix string) {
	scanner := bufio.NewScanner(rd)
	scanner.Buffer(make([]byte, scanInitialBuf), scanMaxBuf)
	for scanner.Scan() {
		hub.publish(LogEntry{Kind: LogKindLine, Message: prefix + " " + scanner.Text()})
	}
}

// waitReady polls the app port until it accepts a connection. A process
// that dies first is a startup failure; a live process that is still not
// listening when the window closes is treated as started (slow frameworks
// keep streaming logs).
func (l *Local) waitReady(ctx context.Context, r *run) error {
	deadline := time.After(l.cfg.StartupTimeout)
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(r.port))

	for {
		conn, err := net.DialTimeout("tcp", addr, 250*time.Millisecond)
		if err == nil {
			conn.Close()
			return nil
		}
		select {
		case <-r.exited:
			return fmt.Errorf("process %s exited during startup", r.id)
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			log.Printf("[runner] [%s] port %d not ready after %v, continuing", r.id, r.port, l.cfg.StartupTimeout)
			return nil
		case <-time.After(150 * time.Millisecond):
		}
	}
}

func (l *Local) Stop(ctx context.Context, processID string) error {
	l.mu.Lock()
	r, ok := l.runs[processID]
	l.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProcess, processID)
	}

	log.Printf("[runner] [%s] stop requested", r.id)
	l.stopRun(r)
	return nil
}

// stopRun escalates: SIGTERM to the group, a grace period, SIGKILL, a
// shorter grace, then cleanup regardless.
func (l *Local) stopRun(r *run) {
	proc := r.process()
	if proc != nil && !exitedAlready(r) {
		if err := terminateProcess(proc); err == nil {
			if waitOrTimeout(r.exited, l.cfg.StopGrace) {
				l.cleanup(r, "Process terminated.")
				return
			}
			log.Printf("[runner] [%s] did not stop gracefully, killing", r.id)
		}
		if err := killProcess(proc); err == nil {
			if !waitOrTimeout(r.exited, l.cfg.KillGrace) {
				log.Printf("[runner] [%s] could not be killed", r.id)
			}
		}
	}
	l.cleanup(r, "Process terminated.")
}

func exitedAlready(r *run) bool {
	select {
	case <-r.exited:
		return true
	default:
		return false
	}
}

func waitOrTimeout(ch <-chan struct{}, d time.Duration) bool {
	select {
	case <-ch:
		return true
	case <-time.After(d):
		return false
	}
}

// cleanup closes the log hub with the terminal entry, removes the staged
// directory and drops the registry entry. Safe to call from both the waiter
// and Stop; only the first caller's message is delivered.
func (l *Local) cleanup(r *run, doneMessage string) {
	r.finalize.Do(func() {
		r.hub.close(LogEntry{Kind: LogKindDone, Message: doneMessage})
		if err := os.RemoveAll(r.dir); err != nil {
			log.Printf("[runner] [%s] remove %s: %v", r.id, r.dir, err)
		}
		l.mu.Lock()
		delete(l.runs, r.id)
		l.mu.Unlock()
		log.Printf("[runner] [%s] cleaned up", r.id)
	})
}

func (l *Local) Logs(processID string) (<-chan LogEntry, func(), error) {
	l.mu.Lock()
	r, ok := l.runs[processID]
	l.mu.Unlock()
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownProcess, processID)
	}
	ch, cancel := r.hub.subscribe()
	return ch, cancel, nil
}

// Port reports the port the identified process is bound to, for the preview
// proxy.
func (l *Local) Port(processID string) (int, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.runs[processID]
	if !ok {
		return 0, false
	}
	return r.port, true
}

// RunStatus is one registry entry as shown by the debug endpoint.
type RunStatus struct {
	ProcessID string    `json:"process_id"`
	Port      int       `json:"port"`
	Dir       string    `json:"temp_dir"`
	Alive     bool      `json:"process_alive"`
	StartedAt time.Time `json:"started_at"`
}

// Snapshot dumps the registry, sorted by start time.
func (l *Local) Snapshot() []RunStatus {
	l.mu.Lock()
	statuses := make([]RunStatus, 0, len(l.runs))
	for _, r := range l.runs {
		statuses = append(statuses, RunStatus{
			ProcessID: r.id,
			Port:      r.port,
			Dir:       r.dir,
			Alive:     r.process() != nil && !exitedAlready(r),
			StartedAt: r.startedAt,
		})
	}
	l.mu.Unlock()

	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].StartedAt.Before(statuses[j].StartedAt)
	})
	return statuses
}

// Close stops every tracked run. Called on server shutdown so no generated
// process outlives the service.
func (l *Local) Close() {
	l.mu.Lock()
	runs := make([]*run, 0, len(l.runs))
	for _, r := range l.runs {
		runs = append(runs, r)
	}
	l.mu.Unlock()

	for _, r := range runs {
		l.stopRun(r)
	}
}
