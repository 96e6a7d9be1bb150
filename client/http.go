package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client makes REST calls to the AgentForge backend.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// New creates a client targeting the given base URL (e.g. "http://127.0.0.1:8080").
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Run sends POST /api/run. A nil fs runs the server's current workspace.
func (c *Client) Run(fs FileSystem) (*RunResponse, error) {
	body := map[string]FileSystem{"fileSystem": fs}
	var out RunResponse
	if err := c.post("/api/run", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Stop sends POST /api/stop for the given process.
func (c *Client) Stop(processID string) (*StopResponse, error) {
	body := map[string]string{"process_id": processID}
	var out StopResponse
	if err := c.post("/api/stop", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Status fetches /api/status.
func (c *Client) Status() (*StatusResponse, error) {
	var s StatusResponse
	if err := c.get("/api/status", &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Workspace fetches /api/workspace.
func (c *Client) Workspace() (*WorkspaceResponse, error) {
	var w WorkspaceResponse
	if err := c.get("/api/workspace", &w); err != nil {
		return nil, err
	}
	return &w, nil
}

// EditFile sends PUT /api/workspace/file, overwriting one file's content.
func (c *Client) EditFile(path, content string) error {
	body := map[string]string{"path": path, "content": content}
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPut, c.baseURL+"/api/workspace/file", bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.setAuth(req)
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("PUT /api/workspace/file: %d %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// Health fetches /health.
func (c *Client) Health() (*HealthResponse, error) {
	var h HealthResponse
	if err := c.get("/health", &h); err != nil {
		return nil, err
	}
	return &h, nil
}

func (c *Client) get(path string, out interface{}) error {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	c.setAuth(req)
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("GET %s: %d %s", path, resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) post(path string, body interface{}, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.setAuth(req)
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("POST %s: %d %s", path, resp.StatusCode, string(respBody))
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) setAuth(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}
