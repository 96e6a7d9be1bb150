package session

import (
	"encoding/json"
	"time"
)

// Status is the execution session state machine: Idle → Starting → Running
// → Stopping → Idle, with Starting → Failed on a run error.
type Status int

const (
	Idle Status = iota
	Starting
	Running
	Stopping
	Failed
)

var statusNames = map[Status]string{
	Idle:     "idle",
	Starting: "starting",
	Running:  "running",
	Stopping: "stopping",
	Failed:   "failed",
}

var statusFromName = map[string]Status{
	"idle":     Idle,
	"starting": Starting,
	"running":  Running,
	"stopping": Stopping,
	"failed":   Failed,
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	if v, ok := statusFromName[name]; ok {
		*s = v
	}
	return nil
}

// Active reports whether the status names a session that owns, or is in the
// middle of acquiring or releasing, a live process.
func (s Status) Active() bool {
	return s == Starting || s == Running || s == Stopping
}

// ExecutionSession is a snapshot of the orchestrator's tracked session. At
// most one active session exists per orchestrator.
type ExecutionSession struct {
	ProcessID  string    `json:"process_id,omitempty"`
	PreviewURL string    `json:"preview_url,omitempty"`
	Status     Status    `json:"status"`
	StartedAt  time.Time `json:"started_at"`
	LastError  string    `json:"last_error,omitempty"`
}
