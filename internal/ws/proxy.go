package ws

import (
	"fmt"
	"log"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
)

// framingHeaders are stripped from proxied responses so the UI can embed
// the preview in an iframe.
var framingHeaders = []string{
	"X-Frame-Options",
	"Content-Security-Policy",
	"X-Content-Type-Options",
}

// handlePreview reverse-proxies /preview/{process_id}/... to the generated
// app bound on localhost, so the preview URL is reachable through the one
// address the caller already has.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/preview/")
	processID, subPath, _ := strings.Cut(rest, "/")
	if processID == "" {
		http.Error(w, "process id required", http.StatusBadRequest)
		return
	}

	port, ok := s.directory.Port(processID)
	if !ok {
		http.Error(w, "process not found", http.StatusNotFound)
		return
	}

	target := &url.URL{Scheme: "http", Host: fmt.Sprintf("127.0.0.1:%d", port)}
	proxy := &httputil.ReverseProxy{
		Director: func(req *http.Request) {
			req.URL.Scheme = target.Scheme
			req.URL.Host = target.Host
			req.URL.Path = "/" + subPath
			req.Host = target.Host
		},
		ModifyResponse: func(resp *http.Response) error {
			for _, h := range framingHeaders {
				resp.Header.Del(h)
			}
			return nil
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			log.Printf("[ws] preview proxy for %s: %v", processID, err)
			http.Error(w, "preview unavailable", http.StatusBadGateway)
		},
	}
	proxy.ServeHTTP(w, r)
}
