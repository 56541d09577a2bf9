// Package openai adapts the OpenAI chat-completions and embeddings APIs to
// the portable llm.Provider / llm.Embedder interfaces.
package openai

import (
	"context"
	"encoding/json"
	"fmt"

	sdk "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/rs/zerolog/log"

	"shopfront/internal/llm"
	"shopfront/internal/observability"
)

// Client wraps the OpenAI SDK client and satisfies llm.Provider and
// llm.Embedder.
type Client struct {
	sdk            sdk.Client
	chatModel      string
	embeddingModel string
	embeddingDim   int
}

// New constructs a Client. apiKey may be empty in which case the SDK reads
// OPENAI_API_KEY from the environment itself.
func New(apiKey, chatModel, embeddingModel string, embeddingDim int) *Client {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	return &Client{
		sdk:            sdk.NewClient(opts...),
		chatModel:      chatModel,
		embeddingModel: embeddingModel,
		embeddingDim:   embeddingDim,
	}
}

// Chat sends one round of the conversation, optionally offering tools, and
// returns the model's reply (either a tool-call batch or final content).
func (c *Client) Chat(ctx context.Context, msgs []llm.Message, tools []llm.ToolSchema, model string) (llm.Message, error) {
	effectiveModel := model
	if effectiveModel == "" {
		effectiveModel = c.chatModel
	}

	params := sdk.ChatCompletionNewParams{
		Model:    sdk.ChatModel(effectiveModel),
		Messages: AdaptMessages(msgs),
	}
	if len(tools) > 0 {
		params.Tools = AdaptSchemas(tools)
	}

	if raw, err := json.Marshal(params); err == nil {
		log.Ctx(ctx).Debug().RawJSON("request", observability.RedactJSON(raw)).Msg("openai chat request")
	}

	comp, err := c.sdk.Chat.Completions.New(ctx, params)
	if err != nil {
		return llm.Message{}, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(comp.Choices) == 0 {
		return llm.Message{}, fmt.Errorf("openai chat completion: no choices returned")
	}

	choice := comp.Choices[0]
	out := llm.Message{Role: "assistant", Content: choice.Message.Content}
	for _, tc := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, llm.ToolCall{
			Name: tc.Function.Name,
			Args: json.RawMessage(tc.Function.Arguments),
			ID:   tc.ID,
		})
	}

	log.Ctx(ctx).Debug().
		Int64("prompt_tokens", comp.Usage.PromptTokens).
		Int64("completion_tokens", comp.Usage.CompletionTokens).
		Int64("total_tokens", comp.Usage.TotalTokens).
		Msg("openai chat usage")

	return out, nil
}

// Dimension reports the configured embedding vector size.
func (c *Client) Dimension() int { return c.embeddingDim }

// Embed returns one vector per input text, in order, via a single batched
// embeddings call.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := c.sdk.Embeddings.New(ctx, sdk.EmbeddingNewParams{
		Model: sdk.EmbeddingModel(c.embeddingModel),
		Input: sdk.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai embeddings: expected %d vectors, got %d", len(texts), len(resp.Data))
	}
	out := make([][]float32, len(resp.Data))
	for _, d := range resp.Data {
		vec := make([]float32, len(d.Embedding))
		for i, f := range d.Embedding {
			vec[i] = float32(f)
		}
		out[d.Index] = vec
	}
	return out, nil
}
