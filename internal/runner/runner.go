package runner

import (
	"context"
	"errors"

	"github.com/MuhammadMaazA/AgentForge/internal/workspace"
)

// ErrUnknownProcess is returned when a process id does not name a tracked
// run.
var ErrUnknownProcess = errors.New("process not found")

// Started is the result of a successful run request.
type Started struct {
	ProcessID  string `json:"process_id"`
	PreviewURL string `json:"url"`
	Port       int    `json:"port"`
}

// LogEntry is one line of a process log feed. Kind is "log" for output
// lines and "done" for the single terminal entry.
type LogEntry struct {
	Kind    string `json:"type"`
	Message string `json:"message"`
}

const (
	LogKindLine = "log"
	LogKindDone = "done"
)

// Runner executes workspace snapshots as live processes. The orchestrator
// is its only caller for Run and Stop; Logs may be handed out to any number
// of observers.
type Runner interface {
	// Run materializes the snapshot and starts it, returning once the
	// process is reachable or the startup window has elapsed. A dead
	// process is an error; a live but slow one is not.
	Run(ctx context.Context, snap workspace.Snapshot) (Started, error)

	// Stop terminates the identified process and releases its resources.
	// Unknown ids return ErrUnknownProcess.
	Stop(ctx context.Context, processID string) error

	// Logs subscribes to the process's log feed. Recent history is
	// replayed first, then live entries until the terminal done entry,
	// after which the channel closes. The returned func cancels the
	// subscription early and is safe to call more than once.
	Logs(processID string) (<-chan LogEntry, func(), error)
}
