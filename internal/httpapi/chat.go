package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
	"unicode/utf8"

	"shopfront/internal/agent"
	"shopfront/internal/session"
)

const (
	minMessageLen     = 3
	maxMessageLen     = 1000
	minMaxResults     = 1
	maxMaxResults     = 20
	defaultMaxResults = 5

	// defaultTurnTimeout is spec §5's wall-clock bound on one chat turn,
	// used when Deps.TurnTimeout is unset.
	defaultTurnTimeout = 30 * time.Second

	// healthCheckTimeout bounds the catalog readiness probe in /health so a
	// half-open connection can't tie up the handler goroutine indefinitely.
	healthCheckTimeout = 5 * time.Second
)

// chatRequest is the POST /chat request body.
type chatRequest struct {
	Message    string `json:"message"`
	SessionID  string `json:"session_id"`
	MaxResults int    `json:"max_results"`
}

// entities mirrors the non-null entity fields extracted by the classifier.
type entities struct {
	ProductName string  `json:"product_name,omitempty"`
	Category    string  `json:"category,omitempty"`
	MaxPrice    float64 `json:"max_price,omitempty"`
	MinPrice    float64 `json:"min_price,omitempty"`
}

// chatResponse is the POST /chat response body.
type chatResponse struct {
	Message    string         `json:"message"`
	Intent     string         `json:"intent"`
	Confidence float64        `json:"confidence"`
	Entities   entities       `json:"entities"`
	AgentUsed  string         `json:"agent_used"`
	Response   map[string]any `json:"response"`
	Success    bool           `json:"success"`
	Error      string         `json:"error,omitempty"`
	SessionID  string         `json:"session_id"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidationError(w, "malformed JSON body: "+err.Error())
		return
	}
	if err := validateChatRequest(req); err != nil {
		writeValidationError(w, err.Error())
		return
	}
	if req.MaxResults == 0 {
		req.MaxResults = defaultMaxResults
	}

	turnTimeout := defaultTurnTimeout
	if s.deps != nil && s.deps.TurnTimeout > 0 {
		turnTimeout = s.deps.TurnTimeout
	}
	ctx, cancel := context.WithTimeout(r.Context(), turnTimeout)
	defer cancel()

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = s.memory.CreateSession()
	}

	history := s.memory.GetHistory(ctx, sessionID)
	enriched := session.BuildEnrichedQuery(req.Message, history)

	rc := agent.Context{
		Deps:       s.deps,
		SessionID:  sessionID,
		MaxResults: req.MaxResults,
	}

	result := s.orchestrator.Handle(ctx, enriched, rc)
	agentUsed := string(result.Intent.Intent)
	if result.Intent.Intent == agent.IntentComparison {
		agentUsed = "recommendation"
	}

	if !result.Response.Success {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": result.Response.Error})
		return
	}

	assistantText := stringifyAnswer(result.Response.Data)
	s.memory.AppendTurn(ctx, sessionID, req.Message, assistantText)

	resp := chatResponse{
		Message:    req.Message,
		Intent:     string(result.Intent.Intent),
		Confidence: result.Intent.Confidence,
		Entities: entities{
			ProductName: result.Intent.ProductName,
			Category:    result.Intent.Category,
			MaxPrice:    result.Intent.MaxPrice,
			MinPrice:    result.Intent.MinPrice,
		},
		AgentUsed: agentUsed,
		Response:  result.Response.Data,
		Success:   true,
		SessionID: sessionID,
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClearSession(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session_id")
	s.memory.Clear(r.Context(), sessionID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	catalogStatus := "not configured"
	if s.deps != nil && s.deps.Catalog != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()
		if err := s.deps.Catalog.Ping(ctx); err != nil {
			catalogStatus = "unreachable: " + err.Error()
		} else {
			catalogStatus = "ok"
		}
	}

	backends := map[string]string{"session": s.memory.CacheBackend()}
	if s.deps != nil && s.deps.PriceCache != nil {
		backends["price"] = s.deps.PriceCache.Backend()
	}
	if s.deps != nil && s.deps.ReviewCache != nil {
		backends["review_summary"] = s.deps.ReviewCache.Backend()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"service":        s.serviceName,
		"version":        s.version,
		"timestamp":      nowUnix(),
		"breakers":       s.orchestrator.Breakers().Snapshot(),
		"catalog":        catalogStatus,
		"cache_backends": backends,
	})
}

func validateChatRequest(req chatRequest) error {
	if l := utf8.RuneCountInString(req.Message); l < minMessageLen || l > maxMessageLen {
		return fmt.Errorf("message must be between %d and %d characters, got %d", minMessageLen, maxMessageLen, l)
	}
	if req.MaxResults != 0 && (req.MaxResults < minMaxResults || req.MaxResults > maxMaxResults) {
		return fmt.Errorf("max_results must be between %d and %d, got %d", minMaxResults, maxMaxResults, req.MaxResults)
	}
	return nil
}

// stringifyAnswer extracts the "answer" field from an agent's data map if
// present, otherwise falls back to stringifying the whole map, per spec
// §4.8 step 6.
func stringifyAnswer(data map[string]any) string {
	if answer, ok := data["answer"].(string); ok && answer != "" {
		return answer
	}
	b, err := json.Marshal(data)
	if err != nil {
		return ""
	}
	return string(b)
}

func writeValidationError(w http.ResponseWriter, detail string) {
	writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
