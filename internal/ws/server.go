package ws

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/MuhammadMaazA/AgentForge/internal/generate"
	"github.com/MuhammadMaazA/AgentForge/internal/runner"
	"github.com/MuhammadMaazA/AgentForge/internal/session"
	"github.com/MuhammadMaazA/AgentForge/internal/workspace"
)

// ProcessDirectory is the runner-side registry view the HTTP layer needs
// beyond the orchestrator: preview target ports, the debug dump and
// resource stats. *runner.Local implements it.
type ProcessDirectory interface {
	Port(processID string) (int, bool)
	Snapshot() []runner.RunStatus
	Stats(processID string) (runner.Stats, error)
}

type Server struct {
	orch           *session.Orchestrator
	directory      ProcessDirectory
	generatorMode  string
	authToken      string
	allowedOrigins map[string]bool
	allowedHosts   map[string]bool
}

func NewServer(orch *session.Orchestrator, directory ProcessDirectory, generatorMode string, allowedOrigins []string, authToken string) *Server {
	s := &Server{
		orch:           orch,
		directory:      directory,
		generatorMode:  generatorMode,
		authToken:      authToken,
		allowedOrigins: make(map[string]bool),
		allowedHosts:   make(map[string]bool),
	}

	for _, origin := range allowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		s.allowedOrigins[trimmed] = true
		if parsed, err := url.Parse(trimmed); err == nil && parsed.Host != "" {
			s.allowedHosts[parsed.Host] = true
		}
	}

	return s
}

func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/generate", s.handleGenerate)
	mux.HandleFunc("/ws/logs/", s.handleLogs)
	mux.HandleFunc("/api/run", s.cors(s.handleRun))
	mux.HandleFunc("/api/stop", s.cors(s.handleStop))
	mux.HandleFunc("/api/workspace", s.cors(s.handleWorkspace))
	mux.HandleFunc("/api/workspace/file", s.cors(s.handleFileEdit))
	mux.HandleFunc("/api/status", s.cors(s.handleStatus))
	mux.HandleFunc("/api/debug/active-runs", s.cors(s.handleDebugRuns))
	mux.HandleFunc("/preview/", s.handlePreview)
	mux.HandleFunc("/health", s.cors(s.handleHealth))
}

func (s *Server) upgrader() websocket.Upgrader {
	return websocket.Upgrader{CheckOrigin: s.checkOrigin}
}

// handleGenerate runs one generation request per connection: the client's
// first frame is the request, the server streams decoded events back and
// closes after the terminal one. A new connection supersedes any feed still
// open.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	up := s.upgrader()
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] generate upgrade error: %v", err)
		return
	}
	defer conn.Close()

	var req generate.Request
	if err := conn.ReadJSON(&req); err != nil {
		log.Printf("[ws] generate request frame: %v", err)
		return
	}

	gf, err := s.orch.Generate(r.Context(), req)
	if err != nil {
		conn.WriteJSON(generate.Event{Type: generate.EventError, Message: err.Error()})
		return
	}
	defer gf.Close()

	// Reader pump: a client that goes away cancels the feed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				gf.Close()
				return
			}
		}
	}()

	for ev := range gf.Events() {
		if err := conn.WriteJSON(ev); err != nil {
			return
		}
	}
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// handleLogs streams one process's log feed until the done entry.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	processID := strings.TrimPrefix(r.URL.Path, "/ws/logs/")
	if processID == "" {
		http.Error(w, "process id required", http.StatusBadRequest)
		return
	}

	logs, cancel, err := s.orch.StreamLogs(processID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	defer cancel()

	up := s.upgrader()
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] logs upgrade error: %v", err)
		return
	}
	defer conn.Close()

	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	for entry := range logs {
		if err := conn.WriteJSON(entry); err != nil {
			return
		}
	}
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	var snap workspace.Snapshot
	if len(req.FileSystem) > 0 {
		snap = req.FileSystem
	}

	started, err := s.orch.Run(r.Context(), snap)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, RunResponse{URL: started.PreviewURL, ProcessID: started.ProcessID})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req StopRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ProcessID == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "process_id is required"})
		return
	}

	// A mismatch is reported, not fatal (HTTP 200 with success: false).
	if err := s.orch.Stop(r.Context(), req.ProcessID); err != nil {
		writeJSON(w, http.StatusOK, StopResponse{
			Success: false,
			Message: fmt.Sprintf("Process %s not found or already stopped.", req.ProcessID),
		})
		return
	}
	writeJSON(w, http.StatusOK, StopResponse{
		Success: true,
		Message: fmt.Sprintf("Process %s stopped.", req.ProcessID),
	})
}

func (s *Server) handleWorkspace(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, WorkspaceResponse{
		FileSystem: s.orch.SnapshotTree(),
		ActiveFile: s.orch.ActiveFile(),
	})
}

func (s *Server) handleFileEdit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req FileEditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Path) == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "path is required"})
		return
	}

	s.orch.Edit(req.Path, req.Content)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cur := s.orch.Session()
	resp := StatusResponse{
		Session:    cur,
		Files:      s.orch.FileCount(),
		RecentLogs: s.orch.RecentLogs(),
	}
	if cur.Status == session.Running && cur.ProcessID != "" {
		if stats, err := s.directory.Stats(cur.ProcessID); err == nil {
			resp.Stats = &stats
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDebugRuns(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, DebugRunsResponse{ActiveRuns: s.directory.Snapshot()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Generator: s.generatorMode})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// cors wraps API handlers with auth and the CORS headers the dev UI origin
// needs.
func (s *Server) cors(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if !s.authorize(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) authorize(r *http.Request) bool {
	if s.authToken == "" {
		return true
	}

	if r.URL.Query().Get("token") == s.authToken {
		return true
	}

	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.authToken {
		return true
	}

	return false
}

// originAllowed implements the upgrade origin policy: the configured allow
// list when one exists, otherwise same-host and localhost.
func (s *Server) originAllowed(origin string) bool {
	if len(s.allowedOrigins) > 0 {
		if s.allowedOrigins[origin] {
			return true
		}
		if parsed, err := url.Parse(origin); err == nil && parsed.Host != "" {
			return s.allowedHosts[parsed.Host]
		}
		return false
	}

	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := parsed.Host
	if host == "" {
		return false
	}

	if strings.HasPrefix(host, "localhost:") || host == "localhost" {
		return true
	}
	if strings.HasPrefix(host, "127.0.0.1:") || host == "127.0.0.1" {
		return true
	}
	if strings.HasPrefix(host, "[::1]:") || host == "::1" {
		return true
	}
	return false
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if parsed, err := url.Parse(origin); err == nil && parsed.Host == r.Host {
		return true
	}
	return s.originAllowed(origin)
}

func ListenAndServe(host string, port int, mux *http.ServeMux) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	log.Printf("[ws] listening on %s", addr)
	return http.ListenAndServe(addr, mux)
}
