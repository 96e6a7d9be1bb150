package ws

import (
	"github.com/MuhammadMaazA/AgentForge/internal/runner"
	"github.com/MuhammadMaazA/AgentForge/internal/session"
	"github.com/MuhammadMaazA/AgentForge/internal/workspace"
)

// Wire types for the caller-facing API. Generation events and log entries
// go over their WebSocket feeds in their own flat JSON forms
// (generate.Event, runner.LogEntry); the types here cover the REST bodies.

type RunRequest struct {
	// FileSystem is the tree to execute. Empty means "run the server's
	// current workspace".
	FileSystem workspace.Snapshot `json:"fileSystem"`
}

type RunResponse struct {
	URL       string `json:"url"`
	ProcessID string `json:"process_id"`
}

type StopRequest struct {
	ProcessID string `json:"process_id"`
}

type StopResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type FileEditRequest struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

type WorkspaceResponse struct {
	FileSystem workspace.Snapshot `json:"fileSystem"`
	ActiveFile string             `json:"active_file,omitempty"`
}

type StatusResponse struct {
	Session    session.ExecutionSession `json:"session"`
	Files      int                      `json:"files"`
	Stats      *runner.Stats            `json:"stats,omitempty"`
	RecentLogs []string                 `json:"recent_logs,omitempty"`
}

type DebugRunsResponse struct {
	ActiveRuns []runner.RunStatus `json:"active_runs"`
}

type HealthResponse struct {
	Status    string `json:"status"`
	Generator string `json:"generator"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
