package orchestrator

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/kevin-toles/llm-gateway/message"
	"github.com/kevin-toles/llm-gateway/provider"
)

// thinkingOpenPattern / thinkingClosePattern detect reasoning-model thinking
// blocks (Qwen3, DeepSeek-R1 style) that were opened but never closed
// because the model exhausted its token budget mid-thought.
var (
	thinkingOpenPattern  = regexp.MustCompile(`(?i)<(?:think|thinking|reasoning|r|internal_thought)>`)
	thinkingClosePattern = regexp.MustCompile(`(?i)</(?:think|thinking|reasoning|r|internal_thought)>`)
)

// thinkingContextCharLimit bounds how much of a truncated thinking block is
// replayed back to the model as context on retry.
const thinkingContextCharLimit = 500

// hasTruncatedThinking reports whether resp is a length-truncated response
// that opened a thinking block but never closed it — the signature of a
// reasoning model running out of budget before reaching an answer.
func hasTruncatedThinking(resp *provider.CompletionResponse) bool {
	if resp == nil || resp.FinishReason != "length" {
		return false
	}
	hasOpen := thinkingOpenPattern.MatchString(resp.Content)
	hasClose := thinkingClosePattern.MatchString(resp.Content)
	return hasOpen && !hasClose
}

// extractThinkingContent strips the opening thinking tag from a truncated
// response, leaving the raw reasoning text.
func extractThinkingContent(resp *provider.CompletionResponse) string {
	if resp == nil {
		return ""
	}
	return thinkingOpenPattern.ReplaceAllString(resp.Content, "")
}

// buildThinkingRetryMessages appends the truncated reasoning as assistant
// context and tags the last user message with /no_think, so a single
// reissue to the same model is far more likely to produce a direct answer
// instead of thinking again. It never recurses: the caller reissues the
// request exactly once with the result.
func buildThinkingRetryMessages(messages []message.Message, thinkingContent string) []message.Message {
	retry := make([]message.Message, len(messages))
	copy(retry, messages)

	truncated := thinkingContent
	if len(truncated) > thinkingContextCharLimit {
		truncated = truncated[:thinkingContextCharLimit]
	}
	retry = append(retry, message.Message{
		Role:    message.RoleAssistant,
		Content: fmt.Sprintf("[Internal reasoning: %s...]", truncated),
	})

	for i := len(retry) - 1; i >= 0; i-- {
		if retry[i].Role != message.RoleUser {
			continue
		}
		if !strings.Contains(retry[i].Content, "/no_think") {
			retry[i] = message.Message{
				Role:    message.RoleUser,
				Content: retry[i].Content + " /no_think",
			}
		}
		break
	}

	return retry
}
