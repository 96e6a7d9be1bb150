// Package client provides WebSocket and HTTP clients for the AgentForge
// backend. Types mirror the backend wire protocol without importing backend
// packages.
package client

import "time"

// FileNode is one entry in a workspace file system. Folders carry Children,
// files carry Content.
type FileNode struct {
	Type     string              `json:"type"`
	Content  string              `json:"content,omitempty"`
	Children map[string]*FileNode `json:"children,omitempty"`
}

// FileSystem is a workspace snapshot keyed by top-level entry name.
type FileSystem map[string]*FileNode

// GenerateRequest describes the app to generate.
type GenerateRequest struct {
	AppName     string   `json:"app_name"`
	AppType     string   `json:"app_type"`
	Features    []string `json:"features,omitempty"`
	Description string   `json:"description,omitempty"`
}

// GenerateEvent is one frame of a generation stream. The stream ends with a
// "done" or "error" event.
type GenerateEvent struct {
	Type    string `json:"type"`
	Path    string `json:"path,omitempty"`
	Content string `json:"content,omitempty"`
	Message string `json:"message,omitempty"`
}

const (
	EventCreateFolder = "create_folder"
	EventCreateFile   = "create_file"
	EventUpdateFile   = "update_file"
	EventLog          = "log"
	EventError        = "error"
	EventDone         = "done"
)

// LogEntry is one frame of a process log stream. Type is "log" for output
// lines and "done" for the terminal entry.
type LogEntry struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// RunResponse is the result of POST /api/run.
type RunResponse struct {
	URL       string `json:"url"`
	ProcessID string `json:"process_id"`
}

// StopResponse is the result of POST /api/stop.
type StopResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// SessionInfo mirrors the backend's execution session record.
type SessionInfo struct {
	ProcessID  string    `json:"process_id,omitempty"`
	PreviewURL string    `json:"preview_url,omitempty"`
	Status     string    `json:"status"`
	StartedAt  time.Time `json:"started_at"`
	LastError  string    `json:"last_error,omitempty"`
}

// ProcessStats is a resource sample of the running process.
type ProcessStats struct {
	Alive      bool    `json:"alive"`
	PID        int     `json:"pid,omitempty"`
	CPUPercent float64 `json:"cpu_percent"`
	MemoryRSS  uint64  `json:"memory_rss"`
}

// StatusResponse is the result of GET /api/status.
type StatusResponse struct {
	Session    SessionInfo   `json:"session"`
	Files      int           `json:"files"`
	Stats      *ProcessStats `json:"stats,omitempty"`
	RecentLogs []string      `json:"recent_logs,omitempty"`
}

// WorkspaceResponse is the result of GET /api/workspace.
type WorkspaceResponse struct {
	FileSystem FileSystem `json:"fileSystem"`
	ActiveFile string     `json:"active_file,omitempty"`
}

// HealthResponse is the result of GET /health.
type HealthResponse struct {
	Status    string `json:"status"`
	Generator string `json:"generator"`
}
