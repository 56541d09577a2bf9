package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"shopfront/internal/llm"
	"shopfront/internal/tools"
)

// Intent is the closed set of routing targets a chat turn can classify to.
type Intent string

const (
	IntentRecommendation Intent = "recommendation"
	IntentComparison     Intent = "comparison"
	IntentReview         Intent = "review"
	IntentPolicy         Intent = "policy"
	IntentPrice          Intent = "price"
	IntentGeneral        Intent = "general"
)

// IntentResult is the typed, never-raising output of the Intent Classifier.
type IntentResult struct {
	Intent       Intent   `json:"intent"`
	Confidence   float64  `json:"confidence"`
	ProductName  string   `json:"product_name,omitempty"`
	ProductNames []string `json:"product_names,omitempty"`
	Category     string   `json:"category,omitempty"`
	MaxPrice     float64  `json:"max_price,omitempty"`
	MinPrice     float64  `json:"min_price,omitempty"`
	Reasoning    string   `json:"reasoning"`
}

var intentSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"intent": map[string]any{
			"type": "string",
			"enum": []string{"recommendation", "comparison", "review", "policy", "price", "general"},
		},
		"confidence":    map[string]any{"type": "number"},
		"product_name":  map[string]any{"type": "string"},
		"product_names": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"category":      map[string]any{"type": "string"},
		"max_price":    map[string]any{"type": "number"},
		"min_price":    map[string]any{"type": "number"},
		"reasoning":    map[string]any{"type": "string"},
	},
	"required": []string{"intent", "confidence", "reasoning"},
}

const intentSystemPrompt = `You classify an e-commerce shopper's message into exactly one intent:
recommendation, comparison, review, policy, price, or general. Extract any
product name, category, or price bounds mentioned. For comparison intent,
list every product name the shopper named in product_names. Always call
submit_result with your classification.`

// IntentClassifier is the always-first, never-failing routing agent.
type IntentClassifier struct {
	Provider llm.Provider
	Model    string
}

// Classify never returns an error to the caller: any failure degrades to
// IntentResult{Intent: general, Confidence: 0}.
func (c *IntentClassifier) Classify(ctx context.Context, query string) IntentResult {
	raw, err := RunToolLoop(ctx, c.Provider, c.Model, intentSystemPrompt, query, tools.NewRegistry(), intentSchema, 1)
	if err != nil {
		return IntentResult{Intent: IntentGeneral, Confidence: 0, Reasoning: fmt.Sprintf("classification failed: %v", err)}
	}
	var result IntentResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return IntentResult{Intent: IntentGeneral, Confidence: 0, Reasoning: fmt.Sprintf("malformed classification output: %v", err)}
	}
	if result.Intent == "" {
		result.Intent = IntentGeneral
	}
	return result
}
