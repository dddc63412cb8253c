// internal/api/server.go
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/user/deckster/internal/export"
	"github.com/user/deckster/internal/reconcile"
	"github.com/user/deckster/internal/session"
	"github.com/user/deckster/internal/types"
)

// Server is the read-only debug API over stored sessions.
type Server struct {
	history types.HistoryStore
	cache   types.UserMessageCache
	welcome []string
	logger  *slog.Logger
	mux     *http.ServeMux
}

// NewServer creates a Server. cache may be nil.
func NewServer(history types.HistoryStore, cache types.UserMessageCache, welcome []string) *Server {
	s := &Server{
		history: history,
		cache:   cache,
		welcome: welcome,
		logger:  slog.Default().With("component", "api"),
		mux:     http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/sessions", s.handleSessions)
	s.mux.HandleFunc("GET /api/sessions/{id}/transcript", s.handleTranscript)
	s.mux.HandleFunc("POST /api/reconcile", s.handleReconcile)
	return s
}

// ServeHTTP delegates to the internal mux, implementing http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		http.Error(w, `{"error":"history store not configured"}`, http.StatusServiceUnavailable)
		return
	}
	sessions, err := s.history.Sessions(r.Context())
	if err != nil {
		s.logger.Error("list sessions failed", "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	if sessions == nil {
		sessions = []*types.SessionSummary{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sessions)
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		http.Error(w, `{"error":"history store not configured"}`, http.StatusServiceUnavailable)
		return
	}
	sessionID := types.SessionID(r.PathValue("id"))

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}
	exporter, err := export.NewExporter(format)
	if err != nil {
		http.Error(w, fmt.Sprintf(`{"error":%q}`, err.Error()), http.StatusBadRequest)
		return
	}

	res, err := session.Snapshot(r.Context(), sessionID,
		session.Deps{History: s.history, Cache: s.cache},
		session.WithLogger(s.logger),
		session.WithWelcomePatterns(s.welcome),
	)
	if err != nil {
		s.logger.Error("rebuild transcript failed", "session_id", string(sessionID), "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	if len(res.Items) == 0 {
		http.Error(w, `{"error":"session not found"}`, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", contentType(exporter.Extension()))
	if err := exporter.Export(export.NewTranscript(sessionID, res), w); err != nil {
		s.logger.Error("export transcript failed", "session_id", string(sessionID), "error", err)
	}
}

// reconcileRequest is the JSON body for POST /api/reconcile.
type reconcileRequest struct {
	SessionID    types.SessionID           `json:"session_id"`
	UserMessages []types.UserMessageRecord `json:"user_messages"`
	Events       []*types.AgentEvent       `json:"events"`
	Answered     []types.MessageID         `json:"answered"`
}

// handleReconcile runs one stateless pass over the posted inputs.
func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	var req reconcileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}

	rctx := reconcile.NewContext(req.SessionID)
	for _, id := range req.Answered {
		rctx.Answered().MarkAnswered(id)
	}
	engine := reconcile.NewEngine(rctx,
		reconcile.WithLogger(s.logger),
		reconcile.WithWelcomePatterns(s.welcome),
	)
	res := engine.Reconcile(reconcile.Inputs{UserMessages: req.UserMessages, Live: req.Events})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(export.NewTranscript(req.SessionID, res))
}

func contentType(ext string) string {
	switch ext {
	case "json":
		return "application/json"
	case "jsonl":
		return "application/x-ndjson"
	case "yaml":
		return "application/yaml"
	case "md":
		return "text/markdown; charset=utf-8"
	default:
		return "text/plain; charset=utf-8"
	}
}
