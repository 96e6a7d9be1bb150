package generate

import (
	"encoding/json"
	"fmt"
)

// EventType enumerates the closed set of generation feed events.
type EventType int

const (
	EventCreateFolder EventType = iota
	EventCreateFile
	EventUpdateFile
	EventLog
	EventError
	EventDone
)

var eventNames = map[EventType]string{
	EventCreateFolder: "create_folder",
	EventCreateFile:   "create_file",
	EventUpdateFile:   "update_file",
	EventLog:          "log",
	EventError:        "error",
	EventDone:         "done",
}

var eventFromName = map[string]EventType{
	"create_folder": EventCreateFolder,
	"create_file":   EventCreateFile,
	"update_file":   EventUpdateFile,
	"log":           EventLog,
	"error":         EventError,
	"done":          EventDone,
}

func (e EventType) String() string {
	if s, ok := eventNames[e]; ok {
		return s
	}
	return "unknown"
}

func (e EventType) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.String())
}

// UnmarshalJSON rejects names outside the event set so a corrupted feed can
// never alias to a file mutation.
func (e *EventType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, ok := eventFromName[s]
	if !ok {
		return fmt.Errorf("unknown event type %q", s)
	}
	*e = v
	return nil
}

// Terminal reports whether the event ends its feed.
func (e EventType) Terminal() bool {
	return e == EventDone || e == EventError
}

// Event is one step of a generation feed. Path and Content are set on the
// folder and file events, Message on log, error and done.
type Event struct {
	Type    EventType `json:"type"`
	Path    string    `json:"path,omitempty"`
	Content string    `json:"content,omitempty"`
	Message string    `json:"message,omitempty"`
}

// Request describes the app a caller wants generated.
type Request struct {
	AppName     string   `json:"app_name"`
	AppType     string   `json:"app_type"`
	Features    []string `json:"features,omitempty"`
	Description string   `json:"description,omitempty"`
}
