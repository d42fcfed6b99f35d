package tools

import (
	"context"
	"testing"
	"time"

	"github.com/kevin-toles/llm-gateway/message"
)

func echoRegistry() *Registry {
	r := NewRegistry()
	r.Register(RegisteredTool{
		Name:        "echo",
		Description: "echoes back the message argument",
		Parameters: map[string]interface{}{
			"type":     "object",
			"required": []interface{}{"message"},
			"properties": map[string]interface{}{
				"message": map[string]interface{}{"type": "string"},
			},
		},
		Handler: func(args map[string]interface{}) (interface{}, error) {
			return args["message"], nil
		},
	})
	return r
}

// TestExecutor_ToolLoopScenario mirrors the tool-loop literal scenario: a
// scripted echo("ok") call returns ToolResult(tool_call_id="t1",
// content="ok", is_error=false).
func TestExecutor_ToolLoopScenario(t *testing.T) {
	exec := NewExecutor(echoRegistry(), time.Second, 4)

	call := message.ToolCall{ID: "t1", Name: "echo", Arguments: map[string]interface{}{"message": "ok"}}
	result := exec.Execute(context.Background(), call)

	if result.IsError {
		t.Fatalf("unexpected error result: %s", result.Content)
	}
	if result.ToolCallID != "t1" || result.Content != "ok" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestExecutor_UnknownToolIsError(t *testing.T) {
	exec := NewExecutor(echoRegistry(), time.Second, 4)
	result := exec.Execute(context.Background(), message.ToolCall{ID: "t1", Name: "nonexistent"})
	if !result.IsError {
		t.Fatal("expected an error result for an unregistered tool")
	}
}

func TestExecutor_SchemaValidationFailureIsError(t *testing.T) {
	exec := NewExecutor(echoRegistry(), time.Second, 4)
	result := exec.Execute(context.Background(), message.ToolCall{ID: "t1", Name: "echo", Arguments: map[string]interface{}{}})
	if !result.IsError {
		t.Fatal("expected a validation error result for missing required argument")
	}
}

func TestExecutor_TimeoutIsError(t *testing.T) {
	r := NewRegistry()
	r.Register(RegisteredTool{
		Name:    "slow",
		Handler: func(args map[string]interface{}) (interface{}, error) {
			time.Sleep(50 * time.Millisecond)
			return "too late", nil
		},
		Timeout: 5 * time.Millisecond,
	})
	exec := NewExecutor(r, time.Second, 4)

	result := exec.Execute(context.Background(), message.ToolCall{ID: "t1", Name: "slow"})
	if !result.IsError {
		t.Fatal("expected a timeout error result")
	}
}

func TestExecutor_PanicRecovered(t *testing.T) {
	r := NewRegistry()
	r.Register(RegisteredTool{
		Name: "panics",
		Handler: func(args map[string]interface{}) (interface{}, error) {
			panic("boom")
		},
	})
	exec := NewExecutor(r, time.Second, 4)

	result := exec.Execute(context.Background(), message.ToolCall{ID: "t1", Name: "panics"})
	if !result.IsError {
		t.Fatal("expected a panic to surface as an error result")
	}
}

// TestExecutor_BatchPreservesOrder exercises bounded-concurrency batch
// execution where the slowest call is first: the result order must still
// match the input order.
func TestExecutor_BatchPreservesOrder(t *testing.T) {
	r := NewRegistry()
	delays := map[string]time.Duration{
		"slow":   30 * time.Millisecond,
		"medium": 15 * time.Millisecond,
		"fast":   0,
	}
	for name, delay := range delays {
		d := delay
		n := name
		r.Register(RegisteredTool{
			Name: n,
			Handler: func(args map[string]interface{}) (interface{}, error) {
				time.Sleep(d)
				return n, nil
			},
		})
	}
	exec := NewExecutor(r, time.Second, 2)

	calls := []message.ToolCall{
		{ID: "1", Name: "slow"},
		{ID: "2", Name: "medium"},
		{ID: "3", Name: "fast"},
	}
	results := exec.ExecuteBatch(context.Background(), calls)

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	want := []string{"slow", "medium", "fast"}
	for i, w := range want {
		if results[i].Content != w {
			t.Fatalf("result %d: expected %q, got %q", i, w, results[i].Content)
		}
	}
}

type fakeToolMetrics struct {
	calls []string
}

func (f *fakeToolMetrics) RecordToolExecution(tool, status string, duration time.Duration) {
	f.calls = append(f.calls, tool+":"+status)
}

// TestExecutor_RecordsMetricsPerCall checks that Execute reports each
// call's tool name and outcome to an installed Metrics recorder,
// regardless of whether the call succeeded or failed.
func TestExecutor_RecordsMetricsPerCall(t *testing.T) {
	exec := NewExecutor(echoRegistry(), time.Second, 4)
	recorder := &fakeToolMetrics{}
	exec.SetMetrics(recorder)

	exec.Execute(context.Background(), message.ToolCall{ID: "t1", Name: "echo", Arguments: map[string]interface{}{"message": "ok"}})
	exec.Execute(context.Background(), message.ToolCall{ID: "t2", Name: "nonexistent"})

	want := []string{"echo:success", "nonexistent:error"}
	if len(recorder.calls) != len(want) {
		t.Fatalf("expected recorded calls %v, got %v", want, recorder.calls)
	}
	for i, c := range want {
		if recorder.calls[i] != c {
			t.Fatalf("expected recorded calls %v, got %v", want, recorder.calls)
		}
	}
}
