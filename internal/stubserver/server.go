// Package stubserver is an in-memory stand-in for the remote memory chat
// service. It answers the same JSON contract so the client can be run and
// tested without the real backend.
package stubserver

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

const serviceName = "AI Chat with Memory Backend"

// Responder produces the assistant reply for a message. remembered is the
// number of earlier exchanges stored for the session.
type Responder func(message string, remembered int) string

// Options configure the router.
type Options struct {
	// AllowedOrigins for CORS. Empty means any origin.
	AllowedOrigins []string
	// Responder overrides the default echo reply.
	Responder Responder
	// FailWith makes POST /api/chat answer this status instead of replying.
	FailWith int
	// RequestLogging enables chi's request logger.
	RequestLogging bool
	Logger         *slog.Logger
}

type chatRequest struct {
	Message   string  `json:"message"`
	SessionID *string `json:"session_id"`
}

type chatResponse struct {
	Response          string `json:"response"`
	SessionID         string `json:"session_id"`
	ContextUsed       bool   `json:"context_used"`
	ConversationCount int    `json:"conversation_count"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Server holds the stub's state.
type Server struct {
	store          *Store
	respond        Responder
	failWith       int
	origins        []string
	requestLogging bool
	logger         *slog.Logger
	startedAt      time.Time
}

// EchoResponder is the default reply: it repeats the message and reports
// how much the session remembers.
func EchoResponder(message string, remembered int) string {
	if remembered == 0 {
		return fmt.Sprintf("You said: %s", message)
	}
	return fmt.Sprintf("You said: %s (I remember %d earlier exchange(s) in this session.)", message, remembered)
}

// New builds a Server backed by store. A nil store gets a fresh one.
func New(store *Store, opts Options) *Server {
	if store == nil {
		store = NewStore()
	}
	respond := opts.Responder
	if respond == nil {
		respond = EchoResponder
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return &Server{
		store:          store,
		respond:        respond,
		failWith:       opts.FailWith,
		origins:        origins,
		requestLogging: opts.RequestLogging,
		logger:         logger,
		startedAt:      time.Now().UTC(),
	}
}

// Store exposes the backing session store.
func (s *Server) Store() *Store {
	return s.store
}

// Router wires the stub's routes.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	if s.requestLogging {
		r.Use(middleware.RequestLogger(&requestLogFormatter{logger: s.logger}))
	}
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Post("/chat", s.handleChat)
		r.Get("/history/{sessionID}", s.handleHistory)
		r.Get("/sessions", s.handleSessions)
		r.Get("/stats", s.handleStats)
		r.Get("/health", s.handleHealth)
		r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
			s.respondJSON(w, http.StatusOK, map[string]string{"message": "pong"})
		})
	})
	return r
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if s.failWith != 0 {
		s.respondError(w, s.failWith, http.StatusText(s.failWith))
		return
	}
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		s.respondError(w, http.StatusBadRequest, "Message is required")
		return
	}

	requested := ""
	if req.SessionID != nil {
		requested = *req.SessionID
	}
	sessionID, created := s.store.Resolve(requested)
	if created {
		s.logger.Info("created session", "session_id", sessionID)
	}

	remembered := s.store.Count(sessionID)
	reply := s.respond(message, remembered)
	count := s.store.Append(sessionID, Exchange{
		User:      message,
		Assistant: reply,
		Timestamp: time.Now().UTC(),
	})

	s.logger.Info("chat reply", "session_id", sessionID, "conversation_count", count)
	s.respondJSON(w, http.StatusOK, chatResponse{
		Response:          reply,
		SessionID:         sessionID,
		ContextUsed:       remembered > 0,
		ConversationCount: count,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	history := s.store.History(chi.URLParam(r, "sessionID"))
	if history == nil {
		history = []Exchange{}
	}
	s.respondJSON(w, http.StatusOK, history)
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.store.Sessions())
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	exchanges, sessions := s.store.Totals()
	s.respondJSON(w, http.StatusOK, map[string]any{
		"total_conversations": exchanges,
		"active_sessions":     sessions,
		"storage":             "memory",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   serviceName,
		"uptime_s":  int(time.Since(s.startedAt).Seconds()),
	})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("encoding JSON response", "error", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, errorResponse{Error: message})
}
