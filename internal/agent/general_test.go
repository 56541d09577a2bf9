package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"shopfront/internal/llm"
)

type canned struct {
	msg llm.Message
	err error
}

func (c canned) Chat(context.Context, []llm.Message, []llm.ToolSchema, string) (llm.Message, error) {
	return c.msg, c.err
}

func TestGeneralAgentMissingDeps(t *testing.T) {
	a := &GeneralAgent{}
	resp := a.Process(context.Background(), "hi", Context{})
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "dependencies not provided")
}

func TestGeneralAgentHappyPath(t *testing.T) {
	a := &GeneralAgent{}
	deps := &Deps{LLM: canned{msg: llm.Message{Role: "assistant", Content: "try our recommendations!"}}}
	resp := a.Process(context.Background(), "what do you sell", Context{Deps: deps})
	assert.True(t, resp.Success)
	assert.Equal(t, "try our recommendations!", resp.Data["answer"])
}
