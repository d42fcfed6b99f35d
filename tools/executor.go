package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/kevin-toles/llm-gateway/message"
)

// Metrics is the narrow recording surface Execute reports per-call
// outcomes to. metrics.Collector satisfies it via duck typing.
type Metrics interface {
	RecordToolExecution(tool, status string, duration time.Duration)
}

// Executor dispatches tool calls against a Registry, validating arguments
// against each tool's JSON Schema before invoking its handler.
type Executor struct {
	registry       *Registry
	defaultTimeout time.Duration
	maxConcurrency int
	metrics        Metrics
}

// NewExecutor constructs an Executor. defaultTimeout applies to any tool
// that does not set its own Timeout; maxConcurrency bounds how many tool
// calls ExecuteBatch runs at once (0 or negative means unbounded).
func NewExecutor(registry *Registry, defaultTimeout time.Duration, maxConcurrency int) *Executor {
	if defaultTimeout <= 0 {
		defaultTimeout = 30 * time.Second
	}
	return &Executor{registry: registry, defaultTimeout: defaultTimeout, maxConcurrency: maxConcurrency}
}

// SetMetrics installs the recorder Execute reports each call's name,
// outcome, and duration to.
func (e *Executor) SetMetrics(m Metrics) {
	e.metrics = m
}

// Execute runs a single ToolCall: lookup, schema validation, timeout-bound
// invocation. It never returns a Go error — every failure mode is encoded
// in the returned ToolResult's IsError field, since a ToolResult always
// needs to be fed back into the conversation regardless of outcome.
func (e *Executor) Execute(ctx context.Context, call message.ToolCall) message.ToolResult {
	start := time.Now()
	result := e.execute(ctx, call)
	if e.metrics != nil {
		status := "success"
		if result.IsError {
			status = "error"
		}
		e.metrics.RecordToolExecution(call.Name, status, time.Since(start))
	}
	return result
}

func (e *Executor) execute(ctx context.Context, call message.ToolCall) message.ToolResult {
	tool, ok := e.registry.Get(call.Name)
	if !ok {
		return message.ToolResult{ToolCallID: call.ID, Content: fmt.Sprintf("tool %q is not registered", call.Name), IsError: true}
	}

	if err := validateArguments(tool.Parameters, call.Arguments); err != nil {
		return message.ToolResult{ToolCallID: call.ID, Content: fmt.Sprintf("argument validation failed: %v", err), IsError: true}
	}

	timeout := tool.Timeout
	if timeout <= 0 {
		timeout = e.defaultTimeout
	}
	toolCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		value interface{}
		err   error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("tool panicked: %v", r)}
			}
		}()
		value, err := tool.Handler(call.Arguments)
		done <- outcome{value: value, err: err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			return message.ToolResult{ToolCallID: call.ID, Content: o.err.Error(), IsError: true}
		}
		return message.ToolResult{ToolCallID: call.ID, Content: stringify(o.value), IsError: false}
	case <-toolCtx.Done():
		return message.ToolResult{ToolCallID: call.ID, Content: fmt.Sprintf("tool %q timed out after %s", call.Name, timeout), IsError: true}
	}
}

// ExecuteBatch runs every call concurrently, bounded by maxConcurrency,
// and returns results in the same order as calls regardless of
// completion order.
func (e *Executor) ExecuteBatch(ctx context.Context, calls []message.ToolCall) []message.ToolResult {
	results := make([]message.ToolResult, len(calls))
	if len(calls) == 0 {
		return results
	}

	limit := e.maxConcurrency
	if limit <= 0 || limit > len(calls) {
		limit = len(calls)
	}
	sem := make(chan struct{}, limit)

	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, c message.ToolCall) {
			defer wg.Done()
			defer func() { <-sem }()
			results[idx] = e.Execute(ctx, c)
		}(i, call)
	}
	wg.Wait()
	return results
}

// validateArguments compiles schema (a JSON Schema document as a Go
// value) and validates args against it. A nil/empty schema admits
// anything.
func validateArguments(schema map[string]interface{}, args map[string]interface{}) error {
	if len(schema) == 0 {
		return nil
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", schema); err != nil {
		return fmt.Errorf("add schema resource: %w", err)
	}
	compiled, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	return compiled.Validate(args)
}

func stringify(v interface{}) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
