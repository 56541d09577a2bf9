// Package httpapi implements the Chat Endpoint: the single public HTTP
// surface that composes Session Memory and the Orchestrator into a
// coherent conversational turn.
package httpapi

import (
	"bytes"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"shopfront/internal/agent"
	"shopfront/internal/orchestrator"
	"shopfront/internal/session"
)

// Server wires the Chat Endpoint's HTTP handlers.
type Server struct {
	memory       *session.Memory
	orchestrator *orchestrator.Orchestrator
	deps         *agent.Deps
	corsOrigins  []string
	serviceName  string
	version      string
}

// New constructs a Server. deps is the process-wide dependency bag shared
// by every turn; individual turns never mutate it.
func New(memory *session.Memory, orch *orchestrator.Orchestrator, deps *agent.Deps, corsOrigins []string, serviceName, version string) *Server {
	return &Server{
		memory:       memory,
		orchestrator: orch,
		deps:         deps,
		corsOrigins:  corsOrigins,
		serviceName:  serviceName,
		version:      version,
	}
}

// Routes builds the http.Handler for the full Chat Endpoint surface:
// POST /chat, DELETE /chat/session/{session_id}, GET /health.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("DELETE /chat/session/{session_id}", s.handleClearSession)
	mux.HandleFunc("GET /health", s.handleHealth)
	return s.withMiddleware(mux)
}

// withMiddleware applies CORS headers, structured request logging, and the
// X-Process-Time-Ms response header required by spec §6. The response body
// is buffered so the timing header can be attached before anything is
// flushed to the underlying connection.
func (s *Server) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		s.applyCORS(w, r)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		rec := &bufferingRecorder{header: make(http.Header), status: http.StatusOK}
		next.ServeHTTP(rec, r)

		elapsed := time.Since(start)
		for k, vv := range rec.header {
			for _, v := range vv {
				w.Header().Add(k, v)
			}
		}
		w.Header().Set("X-Process-Time-Ms", formatMillis(elapsed))
		w.WriteHeader(rec.status)
		_, _ = w.Write(rec.body.Bytes())

		log.Ctx(r.Context()).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", elapsed).
			Msg("http request")
	})
}

func (s *Server) applyCORS(w http.ResponseWriter, r *http.Request) {
	if len(s.corsOrigins) == 0 {
		return
	}
	origin := r.Header.Get("Origin")
	for _, allowed := range s.corsOrigins {
		if allowed == "*" || allowed == origin {
			w.Header().Set("Access-Control-Allow-Origin", allowed)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			break
		}
	}
}

// bufferingRecorder collects a handler's headers, status, and body without
// writing any of it through, so middleware can add headers after the
// handler has already "finished" from its own point of view.
type bufferingRecorder struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func (r *bufferingRecorder) Header() http.Header         { return r.header }
func (r *bufferingRecorder) Write(b []byte) (int, error) { return r.body.Write(b) }
func (r *bufferingRecorder) WriteHeader(status int)      { r.status = status }

func formatMillis(d time.Duration) string {
	ms := float64(d) / float64(time.Millisecond)
	return strconv.FormatFloat(ms, 'f', 2, 64)
}
