package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"shopfront/internal/llm"
	"shopfront/internal/observability"
	"shopfront/internal/tools"
)

// submitToolName is the terminal tool every loop offers the model: calling
// it ends the loop and its arguments become the typed output.
const submitToolName = "submit_result"

// RunToolLoop drives an LLM + tool-calling loop bound to a typed output
// schema. The model may call any tool in registry repeatedly; calling
// submitToolName with arguments matching outputSchema ends the loop
// successfully. Exceeding maxTurns returns ErrBudgetExhausted.
func RunToolLoop(ctx context.Context, provider llm.Provider, model, systemPrompt, userMessage string, registry tools.Registry, outputSchema map[string]any, maxTurns int) (json.RawMessage, error) {
	if maxTurns <= 0 {
		maxTurns = 15
	}

	registry = tools.NewRecordingRegistry(registry, func(ev tools.DispatchEvent) {
		log.Ctx(ctx).Debug().
			Str("tool", ev.Name).
			RawJSON("args", observability.RedactJSON(ev.Args)).
			AnErr("dispatch_err", ev.Err).
			Msg("agent: tool dispatched")
	})

	schemas := registry.Schemas()
	schemas = append(schemas, llm.ToolSchema{
		Name:        submitToolName,
		Description: "Submit the final structured result for this turn. Call this exactly once you have enough information.",
		Parameters:  outputSchema,
	})

	msgs := []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userMessage},
	}

	for turn := 0; turn < maxTurns; turn++ {
		reply, err := provider.Chat(ctx, msgs, schemas, model)
		if err != nil {
			return nil, fmt.Errorf("llm chat: %w", err)
		}
		msgs = append(msgs, reply)

		if len(reply.ToolCalls) == 0 {
			// The model answered in plain text instead of calling
			// submit_result; treat the content as the final payload if it
			// happens to be valid JSON, otherwise wrap it.
			if json.Valid([]byte(reply.Content)) {
				return json.RawMessage(reply.Content), nil
			}
			b, _ := json.Marshal(map[string]string{"answer": reply.Content})
			return b, nil
		}

		for _, tc := range reply.ToolCalls {
			if tc.Name == submitToolName {
				return tc.Args, nil
			}
			payload, dispatchErr := registry.Dispatch(ctx, tc.Name, tc.Args)
			if dispatchErr != nil {
				payload, _ = json.Marshal(map[string]any{"ok": false, "error": dispatchErr.Error()})
			}
			msgs = append(msgs, llm.Message{Role: "tool", Content: string(payload), ToolID: tc.ID})
		}
	}

	return nil, ErrBudgetExhausted
}
