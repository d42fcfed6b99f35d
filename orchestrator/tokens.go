package orchestrator

import (
	"strings"

	"github.com/kevin-toles/llm-gateway/message"
)

// charsPerToken is a conservative character-to-token ratio used for
// proactive context-window estimation; it is never a substitute for a real
// tokenizer, only a cheap bound to decide whether compression is needed.
const charsPerToken = 4

// contextSafetyMargin is the fraction of a model's context limit the
// gateway tries to stay under before triggering compression.
const contextSafetyMargin = 0.85

// defaultContextLimit is used for any model not present in
// contextLimitsByModel.
const defaultContextLimit = 4096

// contextLimitsByModel holds known context windows, in tokens, for every
// model the registered providers are expected to serve. Unlisted models
// fall back to defaultContextLimit.
var contextLimitsByModel = map[string]int{
	"gpt-5.2":                    128000,
	"gpt-5.2-pro":                128000,
	"gpt-5-mini":                 128000,
	"gpt-5-nano":                 128000,
	"claude-opus-4.5":            200000,
	"claude-sonnet-4.5":          200000,
	"claude-opus-4-5-20250514":   200000,
	"claude-sonnet-4-5-20250514": 200000,
	"claude-opus-4-20250514":     200000,
	"claude-sonnet-4-20250514":   200000,
	"gemini-2.0-flash":           1048576,
	"gemini-1.5-pro":             2097152,
	"gemini-1.5-flash":           1048576,
	"gemini-pro":                 32768,
	"deepseek-reasoner":          64000,
}

// contextLimit returns the known context window for model, matching by
// substring the way a version-suffixed deployment name (e.g.
// "gpt-5.2-2026-03-01") still resolves to its base entry.
func contextLimit(model string) int {
	lower := strings.ToLower(model)
	for name, limit := range contextLimitsByModel {
		if strings.Contains(lower, name) {
			return limit
		}
	}
	return defaultContextLimit
}

// estimateTokens approximates the token count of messages from their
// character length plus a fixed per-message formatting overhead.
func estimateTokens(messages []message.Message) int {
	totalChars := 0
	for _, msg := range messages {
		totalChars += len(msg.Content)
		totalChars += 10
	}
	return totalChars / charsPerToken
}

// ContextLimit exposes contextLimit to callers outside the package (the
// HTTP layer's CMS proxy header protocol needs the same table to report
// X-Token-Limit independently of running a completion).
func ContextLimit(model string) int {
	return contextLimit(model)
}

// EstimateTokens exposes estimateTokens to callers outside the package,
// for the same reason as ContextLimit.
func EstimateTokens(messages []message.Message) int {
	return estimateTokens(messages)
}

// SafetyMargin is the fraction of a model's context limit used as the
// compression trigger threshold, exposed so the HTTP layer's tier
// computation uses the exact same boundary the orchestrator compresses at.
func SafetyMargin() float64 {
	return contextSafetyMargin
}
