package observability

import (
	"encoding/json"
	"strings"
)

// sensitiveKeys names the JSON object keys RedactJSON masks before a
// request/response payload reaches a log line. Matched case-insensitively,
// and by substring so headers like "X-Api-Key" or "Authorization" are caught
// alongside exact field names.
var sensitiveKeys = []string{
	"api_key", "apikey", "x-api-key", "authorization", "auth",
	"token", "access_token", "refresh_token", "password", "secret", "bearer",
}

// RedactJSON masks sensitive values (API keys, tokens, secrets) in a JSON
// payload before it is logged. Used by the OpenAI client's request logging
// and the agent runtime's tool-dispatch logging. Malformed JSON is
// returned unchanged rather than dropped.
func RedactJSON(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return raw
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return raw
	}
	b, err := json.Marshal(redactValue(v))
	if err != nil {
		return raw
	}
	return b
}

func redactValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		for k, vv := range val {
			if isSensitiveKey(k) {
				val[k] = "[REDACTED]"
			} else {
				val[k] = redactValue(vv)
			}
		}
		return val
	case []any:
		for i := range val {
			val[i] = redactValue(val[i])
		}
		return val
	default:
		return v
	}
}

func isSensitiveKey(k string) bool {
	low := strings.ToLower(k)
	for _, s := range sensitiveKeys {
		if strings.Contains(low, s) {
			return true
		}
	}
	return false
}
