// Package server exposes the chat backend over HTTP. Business failures are
// reported inside a 200 payload; only malformed requests and unreachable
// routes get non-2xx statuses, because the widget embedding this backend
// treats transport errors as fatal.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gridchat/internal/history"
	"gridchat/internal/logger"
	"gridchat/internal/orchestrator"
	"gridchat/internal/pipeline"
)

// ChatMessage is one conversation turn in the request body.
type ChatMessage struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp,omitempty"`
}

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	DocumentID    string        `json:"documentId"`
	Messages      []ChatMessage `json:"messages"`
	ExecutionMode string        `json:"executionMode,omitempty"`
}

// Server wires the orchestrator into an http.Handler.
type Server struct {
	orch *orchestrator.Orchestrator
	mux  *http.ServeMux
}

// New builds the HTTP handler for the given orchestrator.
func New(orch *orchestrator.Orchestrator) *Server {
	s := &Server{orch: orch, mux: http.NewServeMux()}

	s.mux.HandleFunc("/chat", s.handleChat)
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/stats", s.handleStats)
	s.mux.HandleFunc("/agents", s.handleAgents)
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/", s.handleRoot)

	return s
}

// ServeHTTP applies CORS and request logging around the mux.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Api-Key")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	start := time.Now()
	s.mux.ServeHTTP(w, r)
	logger.L.Info("request handled", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start).Round(time.Millisecond).String())
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	conv := history.Conversation{}
	for _, m := range req.Messages {
		msg, err := history.ParseMessage(m.Role, m.Content, m.Timestamp)
		if err != nil {
			// A message that fails validation is malformed input, not a
			// business outcome; it never reaches the pipeline.
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		conv.Messages = append(conv.Messages, msg)
	}

	apiKey := r.Header.Get("X-Api-Key")
	resp := s.orch.ProcessChat(r.Context(), req.DocumentID, apiKey, conv)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.orch.Health(r.Context())
	code := http.StatusOK
	switch status.Status {
	case orchestrator.StatusDegraded:
		code = http.StatusPartialContent
	case orchestrator.StatusUnhealthy:
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.orch.Stats())
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"agents": s.orch.Agents(),
		"plans":  pipeline.ListPlans(),
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "gridchat",
		"status":  "running",
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.L.Error("failed to encode response", "error", err)
	}
}
