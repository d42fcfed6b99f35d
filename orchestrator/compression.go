package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/kevin-toles/llm-gateway/downstream"
	"github.com/kevin-toles/llm-gateway/gwlog"
	"github.com/kevin-toles/llm-gateway/message"
)

// minFloorGuardTokens is the minimum token budget the floor guard assumes
// is available for the hard-truncated tail message, even if the
// already-used token count leaves less room on paper.
const minFloorGuardTokens = 100

// compressContext fits messages within contextLimit's safety margin. It
// tries CMS first (if cms is non-nil and infra believes it reachable),
// falling back to in-process truncation on any CMS failure, including a
// CMS response that carries neither optimized text nor chunks (Open
// Question iii: treated as a failure signal, not a valid empty
// compression).
func compressContext(ctx context.Context, messages []message.Message, contextLimitTokens int, model string, cms *downstream.CMS, infra *InfraStatus, log gwlog.Logger) []message.Message {
	if log == nil {
		log = gwlog.NoopLogger{}
	}
	targetTokens := int(float64(contextLimitTokens) * contextSafetyMargin)

	if cms != nil && infra != nil && infra.CMSAvailable() {
		if compressed, ok := cmsCompress(ctx, messages, model, cms, log); ok {
			log.Info(ctx, "context compressed via CMS",
				gwlog.F("from_messages", len(messages)), gwlog.F("to_messages", len(compressed)))
			return compressed
		}
		if infra != nil {
			infra.MarkFailure(ServiceCMS)
		}
	}

	return fallbackCompress(ctx, messages, targetTokens, log)
}

// cmsCompress concatenates non-system message content, sends it to CMS,
// and rebuilds a [system?, compressed] message list from the result. It
// returns ok=false on any transport error or an empty CMS result.
func cmsCompress(ctx context.Context, messages []message.Message, model string, cms *downstream.CMS, log gwlog.Logger) ([]message.Message, bool) {
	var systemMsg *message.Message
	content := messages
	if len(messages) > 0 && messages[0].Role == message.RoleSystem {
		systemMsg = &messages[0]
		content = messages[1:]
	}
	if len(content) == 0 {
		return nil, false
	}

	var sb strings.Builder
	for _, msg := range content {
		if msg.Content == "" {
			continue
		}
		fmt.Fprintf(&sb, "[%s]: %s\n\n", msg.Role, msg.Content)
	}
	combined := strings.TrimSpace(sb.String())
	if combined == "" {
		return nil, false
	}

	result, err := cms.Process(ctx, combined, model)
	if err != nil {
		log.Warn(ctx, "CMS compression call failed", gwlog.F("error", err.Error()))
		return nil, false
	}
	if result.Empty() {
		return nil, false
	}

	var compressed []message.Message
	if systemMsg != nil {
		compressed = append(compressed, *systemMsg)
	}
	if len(result.Chunks) > 0 {
		compressed = append(compressed, message.User(result.LastChunk()))
	} else {
		compressed = append(compressed, message.User(result.OptimizedText))
	}
	return compressed, true
}

// fallbackCompress keeps the system message (if any) plus as many of the
// most recent remaining messages as fit within targetTokens, then applies
// a floor guard so the result is never empty.
func fallbackCompress(ctx context.Context, messages []message.Message, targetTokens int, log gwlog.Logger) []message.Message {
	if len(messages) == 0 {
		return messages
	}

	var result []message.Message
	remaining := messages
	tokensUsed := 0
	if messages[0].Role == message.RoleSystem {
		result = append(result, messages[0])
		remaining = messages[1:]
		tokensUsed = estimateTokens(messages[:1])
	}

	var kept []message.Message
	for i := len(remaining) - 1; i >= 0; i-- {
		msgTokens := estimateTokens(remaining[i : i+1])
		if tokensUsed+msgTokens > targetTokens {
			break
		}
		kept = append([]message.Message{remaining[i]}, kept...)
		tokensUsed += msgTokens
	}
	result = append(result, kept...)

	applyFloorGuard(ctx, &result, remaining, targetTokens, tokensUsed, log)
	return result
}

// applyFloorGuard ensures result is non-empty (beyond a lone system
// message) by hard-truncating the last available message to fit whatever
// token budget remains, never returning an empty context.
func applyFloorGuard(ctx context.Context, result *[]message.Message, remaining []message.Message, targetTokens, tokensUsed int, log gwlog.Logger) {
	hasOnlySystem := len(*result) == 1 && (*result)[0].Role == message.RoleSystem
	if len(*result) > 0 && !hasOnlySystem {
		return
	}
	if len(remaining) == 0 {
		return
	}

	last := remaining[len(remaining)-1]
	availableTokens := targetTokens - tokensUsed
	if availableTokens < minFloorGuardTokens {
		availableTokens = minFloorGuardTokens
	}
	maxChars := availableTokens * charsPerToken

	truncated := last.Content
	if len(truncated) > maxChars {
		truncated = truncated[:maxChars]
	}
	if truncated == "" {
		return
	}

	*result = append(*result, message.Message{Role: last.Role, Content: truncated})
	log.Warn(ctx, "floor guard hard-truncated message to prevent empty context",
		gwlog.F("from_chars", len(last.Content)), gwlog.F("to_chars", len(truncated)))
}
