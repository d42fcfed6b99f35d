// Package orchestrator implements the chat completion business logic:
// provider dispatch, session history, proactive context compression,
// truncated-reasoning recovery, and the tool-call iteration loop.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kevin-toles/llm-gateway/circuit"
	"github.com/kevin-toles/llm-gateway/downstream"
	"github.com/kevin-toles/llm-gateway/gwerrors"
	"github.com/kevin-toles/llm-gateway/gwlog"
	"github.com/kevin-toles/llm-gateway/message"
	"github.com/kevin-toles/llm-gateway/provider"
	"github.com/kevin-toles/llm-gateway/session"
	"github.com/kevin-toles/llm-gateway/tools"
)

// DefaultMaxToolIterations bounds the tool-call loop to prevent a
// misbehaving model/tool pair from looping forever.
const DefaultMaxToolIterations = 10

// Request is the orchestrator-level completion request: the provider-
// agnostic completion fields plus the session this turn belongs to, if
// any.
type Request struct {
	provider.CompletionRequest
	SessionID string
}

// Metrics is the narrow recording surface Complete and dispatch report
// request outcomes to. metrics.Collector satisfies it via duck typing. A
// nil Metrics (the default) means these points go unrecorded.
type Metrics interface {
	RecordRequest(provider, model, status string, duration time.Duration, totalTokens int)
	RecordTokens(provider, model string, promptTokens, completionTokens int)
	RecordProviderError(provider, kind string)
}

// Orchestrator wires provider routing, tool execution, session
// persistence, and context management into the single complete()
// operation the HTTP layer calls for blocking completions. Streaming
// requests do not go through it: the HTTP layer calls the adapter's Stream
// directly.
type Orchestrator struct {
	Router            *provider.Router
	Executor          *tools.Executor
	Sessions          *session.Manager
	CMS               *downstream.CMS
	Infra             *InfraStatus
	Cost              CostTracker
	Breakers          *circuit.Registry
	MaxToolIterations int
	CMSEnabled        bool
	Log               gwlog.Logger
	Metrics           Metrics
}

// SetMetrics installs the recorder Complete and dispatch report request,
// token, and provider-error points to.
func (o *Orchestrator) SetMetrics(m Metrics) {
	o.Metrics = m
}

// New constructs an Orchestrator. sessions, cms, and cost may all be nil:
// a nil Sessions disables history load/save, a nil CMS disables the
// primary compression strategy (fallback truncation always applies), and
// a nil Cost is replaced with a no-op tracker.
func New(router *provider.Router, executor *tools.Executor, sessions *session.Manager, cms *downstream.CMS, breakers *circuit.Registry, cost CostTracker, log gwlog.Logger) *Orchestrator {
	if cost == nil {
		cost = NoopCostTracker{}
	}
	if log == nil {
		log = gwlog.NoopLogger{}
	}
	return &Orchestrator{
		Router:            router,
		Executor:          executor,
		Sessions:          sessions,
		CMS:               cms,
		Infra:             NewInfraStatus(),
		Cost:              cost,
		Breakers:          breakers,
		MaxToolIterations: DefaultMaxToolIterations,
		Log:               log,
	}
}

// Complete runs the full chat completion pipeline: alias resolution,
// provider selection, session history assembly, proactive context
// compression, provider dispatch with circuit breaking, truncated-
// reasoning recovery, the bounded tool-call loop, and session
// persistence.
func (o *Orchestrator) Complete(ctx context.Context, req Request) (*provider.CompletionResponse, error) {
	start := time.Now()
	req.Model = o.Router.ResolveAlias(req.Model)

	backend, err := o.Router.GetProvider(req.Model)
	if err != nil {
		return nil, err
	}

	messages, err := o.buildMessagesWithHistory(ctx, req)
	if err != nil {
		return nil, err
	}

	limit := contextLimit(req.Model)
	estimated := estimateTokens(messages)
	cmsProxyActive := o.CMSEnabled && o.CMS != nil

	if float64(estimated) > float64(limit)*contextSafetyMargin {
		if !cmsProxyActive {
			o.Log.Info(ctx, "proactive context compression",
				gwlog.F("estimated_tokens", estimated), gwlog.F("limit", limit), gwlog.F("model", req.Model))
			messages = compressContext(ctx, messages, limit, req.Model, o.CMS, o.Infra, o.Log)
		} else {
			o.Log.Info(ctx, "CMS proxy active, delegating context management",
				gwlog.F("estimated_tokens", estimated), gwlog.F("limit", limit))
		}
	}

	working := workingRequest(req, messages)

	response, err := o.dispatch(ctx, backend, working)
	if err != nil {
		return nil, err
	}

	if hasTruncatedThinking(response) {
		o.Log.Info(ctx, "truncated thinking detected, retrying with /no_think", gwlog.F("model", req.Model))
		thinking := extractThinkingContent(response)
		retryMessages := buildThinkingRetryMessages(messages, thinking)
		retryRequest := workingRequest(req, retryMessages)
		retryResponse, err := o.dispatch(ctx, backend, retryRequest)
		if err != nil {
			return nil, err
		}
		response = retryResponse
		messages = retryMessages
	}

	iteration := 0
	for hasToolCalls(response) && iteration < o.maxIterations() {
		response, messages, err = o.handleToolCalls(ctx, backend, response, req, messages)
		if err != nil {
			return nil, err
		}
		iteration++
	}

	if err := o.saveToSession(ctx, req, messages, response); err != nil {
		return nil, err
	}

	o.Cost.Record(ctx, backend.Name(), req.Model, response.Usage.PromptTokens, response.Usage.CompletionTokens)
	o.recordRequestMetrics(backend.Name(), req.Model, response, time.Since(start))

	return response, nil
}

// recordRequestMetrics reports a completed request's outcome, if a
// recorder is installed.
func (o *Orchestrator) recordRequestMetrics(providerName, model string, response *provider.CompletionResponse, duration time.Duration) {
	if o.Metrics == nil {
		return
	}
	total := response.Usage.PromptTokens + response.Usage.CompletionTokens
	o.Metrics.RecordRequest(providerName, model, "success", duration, total)
	o.Metrics.RecordTokens(providerName, model, response.Usage.PromptTokens, response.Usage.CompletionTokens)
}

// errKind extracts the gateway error taxonomy label from err, for metrics
// labeling. Returns "unknown" for errors outside that taxonomy.
func errKind(err error) string {
	var ge *gwerrors.GatewayError
	if errors.As(err, &ge) {
		return string(ge.Kind)
	}
	return "unknown"
}

func (o *Orchestrator) maxIterations() int {
	if o.MaxToolIterations <= 0 {
		return DefaultMaxToolIterations
	}
	return o.MaxToolIterations
}

// buildMessagesWithHistory prepends a session's stored history, if any, to
// the request's own messages.
func (o *Orchestrator) buildMessagesWithHistory(ctx context.Context, req Request) ([]message.Message, error) {
	var messages []message.Message

	if req.SessionID != "" && o.Sessions != nil {
		history, err := o.Sessions.GetHistory(ctx, req.SessionID)
		if err != nil {
			return nil, err
		}
		messages = append(messages, history...)
	}

	messages = append(messages, req.Messages...)
	return messages, nil
}

// workingRequest builds a dispatch-ready CompletionRequest carrying
// messages instead of the original request's, intentionally never
// carrying a session id downstream to the adapter.
func workingRequest(original Request, messages []message.Message) *provider.CompletionRequest {
	cr := original.CompletionRequest
	cr.Messages = messages
	return &cr
}

// hasToolCalls reports whether response demands another iteration of the
// tool-call loop.
func hasToolCalls(response *provider.CompletionResponse) bool {
	return response != nil && response.FinishReason == "tool_calls" && len(response.ToolCalls) > 0
}

// handleToolCalls appends the assistant's tool-call turn and every tool
// result to messages, dispatches the provider again with the updated
// conversation, and returns the new response alongside the updated
// message list.
func (o *Orchestrator) handleToolCalls(ctx context.Context, backend provider.Adapter, response *provider.CompletionResponse, req Request, messages []message.Message) (*provider.CompletionResponse, []message.Message, error) {
	assistantMsg := message.AssistantWithToolCalls(response.Content, response.ToolCalls)
	messages = append(append([]message.Message{}, messages...), assistantMsg)

	results := o.Executor.ExecuteBatch(ctx, response.ToolCalls)
	for _, result := range results {
		messages = append(messages, message.Tool(result.ToolCallID, result.Content))
	}

	working := workingRequest(req, messages)
	newResponse, err := o.dispatch(ctx, backend, working)
	if err != nil {
		return nil, nil, err
	}
	return newResponse, messages, nil
}

// saveToSession persists every message from the first request message
// onward (per session.Manager.PersistTurn's history-match rule), plus the
// final assistant response. A persistence failure is returned to the
// caller, which withholds the completion response: the client cannot
// trust a response whose turn was not durably recorded.
func (o *Orchestrator) saveToSession(ctx context.Context, req Request, messages []message.Message, response *provider.CompletionResponse) error {
	if req.SessionID == "" || o.Sessions == nil {
		return nil
	}
	final := message.Assistant(response.Content)
	if err := o.Sessions.PersistTurn(ctx, req.SessionID, req.Messages, messages, final); err != nil {
		o.Log.Error(ctx, "failed to persist session turn", gwlog.F("session_id", req.SessionID), gwlog.F("error", err.Error()))
		return err
	}
	return nil
}

// dispatch calls backend.Complete guarded by that provider's circuit
// breaker: a call is rejected fast with KindCircuitOpen when the breaker
// is open, without ever reaching the network.
func (o *Orchestrator) dispatch(ctx context.Context, backend provider.Adapter, req *provider.CompletionRequest) (*provider.CompletionResponse, error) {
	if o.Breakers == nil {
		return backend.Complete(ctx, req)
	}

	breaker := o.Breakers.Get(backend.Name())
	if !breaker.Allow() {
		return nil, gwerrors.Wrap(gwerrors.KindCircuitOpen,
			fmt.Sprintf("provider %q circuit is open", backend.Name()), gwerrors.ErrCircuitOpen)
	}

	resp, err := backend.Complete(ctx, req)
	if err != nil {
		breaker.RecordFailure()
		if o.Metrics != nil {
			o.Metrics.RecordProviderError(backend.Name(), errKind(err))
		}
		return nil, err
	}
	breaker.RecordSuccess()
	return resp, nil
}
