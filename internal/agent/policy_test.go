package agent

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopfront/internal/catalog"
	"shopfront/internal/llm"
	"shopfront/internal/vectorindex"
)

// scriptedProvider returns one canned reply per call, in order.
type scriptedProvider struct {
	replies []llm.Message
	n       int
}

func (s *scriptedProvider) Chat(context.Context, []llm.Message, []llm.ToolSchema, string) (llm.Message, error) {
	r := s.replies[s.n]
	s.n++
	return r, nil
}

func toolCallReply(name string, args any) llm.Message {
	b, _ := json.Marshal(args)
	return llm.Message{Role: "assistant", ToolCalls: []llm.ToolCall{{Name: name, Args: b, ID: "1"}}}
}

func TestPolicyAgentRetrievesAndAnswers(t *testing.T) {
	idx := vectorindex.New(32)
	embedder := vectorindex.NewDeterministic(32, 7)
	require.NoError(t, idx.Build(context.Background(), []catalog.Policy{
		{PolicyType: "returns", Description: "30 day returns", Conditions: "unused, original packaging"},
	}, embedder))

	provider := &scriptedProvider{replies: []llm.Message{
		toolCallReply("retrieve_policy_sections", map[string]any{"query": "return policy", "k": 3}),
		toolCallReply("submit_result", map[string]any{
			"answer":     "You can return items within 30 days.",
			"sources":    []string{"returns"},
			"confidence": "high",
		}),
	}}

	a := &PolicyAgent{}
	deps := &Deps{LLM: provider, Embedder: embedder, VectorIndex: idx, MaxTurns: 5}
	resp := a.Process(context.Background(), "what is your return policy", Context{Deps: deps})

	require.True(t, resp.Success)
	assert.Equal(t, "high", resp.Data["confidence"])
	assert.Contains(t, resp.Data["sources"], "returns")
}

func TestPolicyAgentRequiresVectorIndex(t *testing.T) {
	a := &PolicyAgent{}
	resp := a.Process(context.Background(), "what is your return policy", Context{Deps: &Deps{}})
	assert.False(t, resp.Success)
}

func TestPolicyAgentEmptyIndexStillSucceeds(t *testing.T) {
	idx := vectorindex.New(32)
	embedder := vectorindex.NewDeterministic(32, 7)
	require.NoError(t, idx.Build(context.Background(), nil, embedder))

	provider := &scriptedProvider{replies: []llm.Message{
		toolCallReply("retrieve_policy_sections", map[string]any{"query": "return policy", "k": 3}),
		toolCallReply("submit_result", map[string]any{
			"answer":     "No policy information is available.",
			"sources":    []string{},
			"confidence": "low",
		}),
	}}

	a := &PolicyAgent{}
	deps := &Deps{LLM: provider, Embedder: embedder, VectorIndex: idx, MaxTurns: 5}
	resp := a.Process(context.Background(), "what is your return policy", Context{Deps: deps})

	require.True(t, resp.Success)
	assert.Empty(t, resp.Data["sources"])
}
