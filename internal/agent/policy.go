package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"shopfront/internal/llm"
	"shopfront/internal/tools"
	"shopfront/internal/vectorindex"
)

const policyName = "policy"

var policySchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"answer":     map[string]any{"type": "string"},
		"sources":    map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"confidence": map[string]any{"type": "string", "enum": []string{"high", "medium", "low"}},
	},
	"required": []string{"answer", "sources", "confidence"},
}

const policySystemPrompt = `You answer shopper questions about store policies (returns, shipping,
warranty, etc). Call retrieve_policy_sections to fetch the relevant policy
text, then call submit_result with an answer grounded ONLY in the retrieved
text, the list of policy_type values you used as sources, and your
confidence (high/medium/low). If retrieval returns nothing, say no policy
information is available, use an empty sources list, and set confidence to
low.`

const defaultRetrievalK = 3

// PolicyAgent answers RAG questions over the Policy Vector Index. It
// requires Deps.VectorIndex to be non-nil.
type PolicyAgent struct{}

func (a *PolicyAgent) Name() string { return policyName }

func (a *PolicyAgent) Process(ctx context.Context, query string, rc Context) Response {
	if rc.Deps == nil {
		return Fail(policyName, ErrDependenciesMissing)
	}
	if rc.Deps.VectorIndex == nil {
		return Fail(policyName, fmt.Errorf("vector index not configured"))
	}

	registry := tools.NewRegistry()
	registry.Register(&retrievePolicyTool{
		index:    rc.Deps.VectorIndex,
		embedder: rc.Deps.Embedder,
	})

	raw, err := RunToolLoop(ctx, rc.Deps.LLM, rc.Deps.Model, policySystemPrompt, query, registry, policySchema, rc.Deps.MaxTurns)
	if err != nil {
		return Fail(policyName, err)
	}

	var parsed struct {
		Answer     string   `json:"answer"`
		Sources    []string `json:"sources"`
		Confidence string   `json:"confidence"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return Fail(policyName, fmt.Errorf("malformed output: %w", err))
	}
	if parsed.Sources == nil {
		parsed.Sources = []string{}
	}

	return Response{
		Success: true,
		Data: map[string]any{
			"answer":     parsed.Answer,
			"sources":    parsed.Sources,
			"confidence": parsed.Confidence,
		},
	}
}

// --- tools ---

type retrievePolicyTool struct {
	index    *vectorindex.Index
	embedder llm.Embedder
}

func (t *retrievePolicyTool) Name() string { return "retrieve_policy_sections" }

func (t *retrievePolicyTool) JSONSchema() map[string]any {
	return map[string]any{
		"description": "Search the store's policy text for the sections most relevant to a query.",
		"parameters": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{"type": "string"},
				"k":     map[string]any{"type": "integer"},
			},
			"required": []string{"query"},
		},
	}
}

func (t *retrievePolicyTool) Call(ctx context.Context, raw json.RawMessage) (any, error) {
	var args struct {
		Query string `json:"query"`
		K     int    `json:"k"`
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	if args.K <= 0 {
		args.K = defaultRetrievalK
	}
	chunks, err := t.index.Search(ctx, args.Query, args.K, t.embedder)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, len(chunks))
	for i, c := range chunks {
		out[i] = map[string]any{
			"policy_type": c.PolicyType,
			"text":        c.Text,
			"score":       c.Score,
		}
	}
	return map[string]any{"chunks": out}, nil
}
