// Package orchestrator implements the Orchestrator: the registry of agents
// keyed by intent, the circuit-breaker consultation before dispatch, and
// the general-agent fallback on unavailability or failure.
package orchestrator

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"shopfront/internal/agent"
	"shopfront/internal/breaker"
)

// generalIntentName is the routing key every demotion falls back to.
const generalIntentName = "general"

// Orchestrator dispatches a classified intent to the matching agent,
// consulting and updating a per-agent circuit breaker on every call.
type Orchestrator struct {
	classifier *agent.IntentClassifier
	agents     map[string]agent.Agent
	breakers   *breaker.Registry
}

// New constructs an Orchestrator. agents is the registry of intent name ->
// agent; an intent with no entry (e.g. a deployment without a policy agent)
// demotes to general exactly like a tripped breaker does. A general agent
// MUST be present in agents under the "general" key.
func New(classifier *agent.IntentClassifier, agents map[string]agent.Agent) *Orchestrator {
	return &Orchestrator{
		classifier: classifier,
		agents:     agents,
		breakers:   breaker.NewRegistry(),
	}
}

// Result pairs the agent's response with the classification that routed to
// it, mirroring spec §4.7 step 7.
type Result struct {
	Response agent.Response
	Intent   agent.IntentResult
}

// Breakers exposes the orchestrator's breaker registry for read-only
// introspection (e.g. a /health handler).
func (o *Orchestrator) Breakers() *breaker.Registry { return o.breakers }

// Handle runs one full chat-turn routing: classify, rewrite synonyms,
// enrich hints, consult breakers, dispatch, and record outcome. It never
// panics or returns a Go error to the caller — any agent failure is
// reflected in Result.Response.Success.
func (o *Orchestrator) Handle(ctx context.Context, query string, rc agent.Context) Result {
	intentResult := o.classifier.Classify(ctx, query)

	routingKey := string(intentResult.Intent)
	if intentResult.Intent == agent.IntentComparison {
		routingKey = "recommendation"
		rc.CompareMode = true
	}

	rc.StructuredHints = mergeHints(rc.StructuredHints, intentResult)

	a, br := o.lookup(routingKey)
	if a == nil || !br.IsAvailable() {
		routingKey = generalIntentName
		a, br = o.lookup(generalIntentName)
	}
	if a == nil {
		// Even the general agent is unregistered: this is a deployment
		// misconfiguration, not a runtime failure, but Handle still must
		// not panic.
		return Result{
			Response: agent.Response{Success: false, Data: map[string]any{}, Error: "no agent registered for intent or fallback"},
			Intent:   intentResult,
		}
	}

	resp, err := o.invoke(ctx, a, query, rc)
	if err != nil {
		br.RecordFailure()
		log.Ctx(ctx).Warn().Err(err).Str("agent", routingKey).Msg("orchestrator: agent panicked, falling back to general")
		if routingKey != generalIntentName {
			gAgent, gBreaker := o.lookup(generalIntentName)
			if gAgent != nil {
				fallbackResp, fallbackErr := o.invoke(ctx, gAgent, query, rc)
				if fallbackErr == nil {
					if fallbackResp.Success {
						gBreaker.RecordSuccess()
					} else {
						gBreaker.RecordFailure()
					}
					return Result{Response: fallbackResp, Intent: intentResult}
				}
			}
		}
		return Result{
			Response: agent.Response{Success: false, Data: map[string]any{}, Error: err.Error()},
			Intent:   intentResult,
		}
	}

	if resp.Success {
		br.RecordSuccess()
	} else {
		br.RecordFailure()
	}
	return Result{Response: resp, Intent: intentResult}
}

func (o *Orchestrator) lookup(routingKey string) (agent.Agent, *breaker.Breaker) {
	a, ok := o.agents[routingKey]
	if !ok {
		return nil, o.breakers.For(routingKey)
	}
	return a, o.breakers.For(routingKey)
}

// invoke calls the agent, recovering any panic into an error so one
// misbehaving agent can never take down the turn.
func (o *Orchestrator) invoke(ctx context.Context, a agent.Agent, query string, rc agent.Context) (resp agent.Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: panic: %v", a.Name(), r)
		}
	}()
	resp = a.Process(ctx, query, rc)
	return resp, nil
}

// mergeHints enriches the context's structured_hints with any non-null
// entity fields the classifier returned, without overwriting existing
// caller-supplied hints.
func mergeHints(hints map[string]any, ir agent.IntentResult) map[string]any {
	out := make(map[string]any, len(hints)+4)
	for k, v := range hints {
		out[k] = v
	}
	if ir.ProductName != "" {
		if _, exists := out["product_name"]; !exists {
			out["product_name"] = ir.ProductName
		}
	}
	if ir.Category != "" {
		if _, exists := out["category"]; !exists {
			out["category"] = ir.Category
		}
	}
	if ir.MaxPrice != 0 {
		if _, exists := out["max_price"]; !exists {
			out["max_price"] = ir.MaxPrice
		}
	}
	if ir.MinPrice != 0 {
		if _, exists := out["min_price"]; !exists {
			out["min_price"] = ir.MinPrice
		}
	}
	if len(ir.ProductNames) > 0 {
		if _, exists := out["requested_names"]; !exists {
			out["requested_names"] = ir.ProductNames
		}
	}
	return out
}
