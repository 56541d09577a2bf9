package agent

import (
	"context"
	"fmt"

	"shopfront/internal/llm"
)

const generalName = "general"

const generalSystemPrompt = `You are the fallback assistant for an e-commerce store. The shopper's
message didn't clearly fit recommendations, reviews, pricing, or policy
questions. Give a brief, friendly reply and, where useful, redirect them
toward one of those topics. Keep it to two or three sentences.`

// GeneralAgent is the single-turn, tool-free fallback every other agent
// routes to when its own breaker trips or it isn't registered.
type GeneralAgent struct{}

func (a *GeneralAgent) Name() string { return generalName }

func (a *GeneralAgent) Process(ctx context.Context, query string, rc Context) Response {
	if rc.Deps == nil {
		return Fail(generalName, ErrDependenciesMissing)
	}

	reply, err := rc.Deps.LLM.Chat(ctx, []llm.Message{
		{Role: "system", Content: generalSystemPrompt},
		{Role: "user", Content: query},
	}, nil, rc.Deps.Model)
	if err != nil {
		return Fail(generalName, fmt.Errorf("llm chat: %w", err))
	}

	return Response{
		Success: true,
		Data: map[string]any{
			"answer": reply.Content,
		},
	}
}
