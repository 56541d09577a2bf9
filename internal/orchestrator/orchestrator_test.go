package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopfront/internal/agent"
	"shopfront/internal/llm"
)

// stubProvider returns a canned Chat response, or an error, for every call.
type stubProvider struct {
	reply llm.Message
	err   error
}

func (s *stubProvider) Chat(_ context.Context, _ []llm.Message, _ []llm.ToolSchema, _ string) (llm.Message, error) {
	return s.reply, s.err
}

// fakeAgent is a minimal agent.Agent for orchestrator-level tests.
type fakeAgent struct {
	name string
	resp agent.Response
	fn   func(rc agent.Context) agent.Response
}

func (f *fakeAgent) Name() string { return f.name }

func (f *fakeAgent) Process(_ context.Context, _ string, rc agent.Context) agent.Response {
	if f.fn != nil {
		return f.fn(rc)
	}
	return f.resp
}

func classifierReturning(intent agent.Intent) *agent.IntentClassifier {
	raw := `{"intent":"` + string(intent) + `","confidence":0.9,"reasoning":"test"}`
	return &agent.IntentClassifier{Provider: &stubProvider{reply: llm.Message{
		ToolCalls: []llm.ToolCall{{Name: "submit_result", Args: []byte(raw)}},
	}}}
}

func TestHandleRoutesToClassifiedAgent(t *testing.T) {
	rec := &fakeAgent{name: "recommendation", resp: agent.Response{Success: true, Data: map[string]any{"ok": true}}}
	gen := &fakeAgent{name: "general", resp: agent.Response{Success: true, Data: map[string]any{}}}
	o := New(classifierReturning(agent.IntentRecommendation), map[string]agent.Agent{
		"recommendation": rec,
		"general":        gen,
	})

	result := o.Handle(context.Background(), "budget phones", agent.Context{Deps: &agent.Deps{}})
	assert.Equal(t, agent.IntentRecommendation, result.Intent.Intent)
	assert.True(t, result.Response.Success)
	assert.Equal(t, true, result.Response.Data["ok"])
}

func TestHandleRewritesComparisonToRecommendation(t *testing.T) {
	var sawCompareMode bool
	rec := &fakeAgent{name: "recommendation", fn: func(rc agent.Context) agent.Response {
		sawCompareMode = rc.CompareMode
		return agent.Response{Success: true, Data: map[string]any{}}
	}}
	gen := &fakeAgent{name: "general", resp: agent.Response{Success: true, Data: map[string]any{}}}
	o := New(classifierReturning(agent.IntentComparison), map[string]agent.Agent{
		"recommendation": rec,
		"general":        gen,
	})

	_ = o.Handle(context.Background(), "compare these two", agent.Context{Deps: &agent.Deps{}})
	assert.True(t, sawCompareMode)
}

func TestHandleDemotesToGeneralWhenAgentUnregistered(t *testing.T) {
	gen := &fakeAgent{name: "general", resp: agent.Response{Success: true, Data: map[string]any{"fallback": true}}}
	o := New(classifierReturning(agent.IntentPolicy), map[string]agent.Agent{
		"general": gen,
	})

	result := o.Handle(context.Background(), "what's your return policy", agent.Context{Deps: &agent.Deps{}})
	assert.True(t, result.Response.Success)
	assert.Equal(t, true, result.Response.Data["fallback"])
}

func TestHandleDemotesToGeneralWhenBreakerOpen(t *testing.T) {
	failing := &fakeAgent{name: "recommendation", resp: agent.Response{Success: false, Data: map[string]any{}, Error: "boom"}}
	gen := &fakeAgent{name: "general", resp: agent.Response{Success: true, Data: map[string]any{"fallback": true}}}
	o := New(classifierReturning(agent.IntentRecommendation), map[string]agent.Agent{
		"recommendation": failing,
		"general":        gen,
	})

	deps := &agent.Deps{}
	for i := 0; i < 3; i++ {
		result := o.Handle(context.Background(), "budget phones", agent.Context{Deps: deps})
		require.False(t, result.Response.Success)
	}

	require.Equal(t, "open", string(o.Breakers().For("recommendation").State()))

	result := o.Handle(context.Background(), "budget phones", agent.Context{Deps: deps})
	assert.True(t, result.Response.Success)
	assert.Equal(t, true, result.Response.Data["fallback"])
}

func TestHandleRecoversFromAgentPanic(t *testing.T) {
	panicking := &fakeAgent{name: "recommendation", fn: func(agent.Context) agent.Response {
		panic("boom")
	}}
	gen := &fakeAgent{name: "general", resp: agent.Response{Success: true, Data: map[string]any{"fallback": true}}}
	o := New(classifierReturning(agent.IntentRecommendation), map[string]agent.Agent{
		"recommendation": panicking,
		"general":        gen,
	})

	result := o.Handle(context.Background(), "budget phones", agent.Context{Deps: &agent.Deps{}})
	assert.True(t, result.Response.Success, "panic should fall back to general, not crash the turn")
	assert.Equal(t, true, result.Response.Data["fallback"])
}

func TestHandleNeverReturnsGoError(t *testing.T) {
	// Handle's signature has no error return; this test documents the
	// contract that even a total misconfiguration degrades to a Response.
	o := New(classifierReturning(agent.IntentGeneral), map[string]agent.Agent{})
	result := o.Handle(context.Background(), "hi", agent.Context{Deps: &agent.Deps{}})
	assert.False(t, result.Response.Success)
	assert.NotEmpty(t, result.Response.Error)
}
