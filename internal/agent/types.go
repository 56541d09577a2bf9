// Package agent defines the uniform Agent Runtime Contract shared by every
// specialized agent, plus the bounded tool-calling loop they're built on.
package agent

import (
	"context"
	"errors"
	"time"

	"shopfront/internal/cache"
	"shopfront/internal/catalog"
	"shopfront/internal/llm"
	"shopfront/internal/vectorindex"
)

// ErrDependenciesMissing is the precondition-violation sentinel: Context.Deps
// was nil when an agent was invoked.
var ErrDependenciesMissing = errors.New("dependencies not provided")

// ErrBudgetExhausted signals the tool-calling loop exceeded its configured
// maximum number of LLM/tool turns without producing a final answer.
var ErrBudgetExhausted = errors.New("agent turn budget exhausted")

// Deps is the shared dependency bag every agent reads from. Individual
// agents may require a subset of these to be non-nil (e.g. the policy agent
// requires VectorIndex).
type Deps struct {
	Catalog     catalog.Catalog
	LLM         llm.Provider
	Embedder    llm.Embedder
	VectorIndex *vectorindex.Index
	MaxTurns    int
	Model       string

	// TurnTimeout bounds the wall-clock duration of one whole chat turn
	// (spec §5's cancellation requirement); zero means the Chat Endpoint
	// falls back to its own default.
	TurnTimeout time.Duration

	// ReviewCache and PriceCache are the "review_summary:" and "price:"
	// namespace handles used to short-circuit repeated LLM calls.
	ReviewCache cache.Cache
	PriceCache  cache.Cache
}

// Context carries per-turn parameters alongside the process-wide Deps.
type Context struct {
	Deps            *Deps
	SessionID       string
	MaxResults      int
	CompareMode     bool
	StructuredHints map[string]any
}

// Response is the uniform agent result. Invariant: if Success is false,
// Error is non-empty and Data is empty.
type Response struct {
	Success  bool           `json:"success"`
	Data     map[string]any `json:"data"`
	Error    string         `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Fail builds a failure Response for the given agent name and cause.
func Fail(agentName string, err error) Response {
	return Response{Success: false, Data: map[string]any{}, Error: agentName + " error: " + err.Error()}
}

// Agent is the uniform contract every specialized agent implements.
type Agent interface {
	Name() string
	Process(ctx context.Context, query string, rc Context) Response
}
