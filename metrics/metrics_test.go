package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestRecordRequest_IncrementsCountersAndExposesThem(t *testing.T) {
	c := NewCollector()
	c.RecordRequest("openai", "gpt-4o", "success", 250*time.Millisecond, 120)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if rec.Code != 200 {
		t.Fatalf("expected 200 from metrics handler, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "llm_gateway_requests_total") {
		t.Fatalf("expected requests_total metric in output, got:\n%s", body)
	}
	if !strings.Contains(body, `provider="openai"`) {
		t.Fatalf("expected provider label in output, got:\n%s", body)
	}
}

func TestRecordCircuitState_SetsGaugeByState(t *testing.T) {
	c := NewCollector()
	c.RecordCircuitState("openai", "open")

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	if !strings.Contains(body, "llm_gateway_circuit_state") {
		t.Fatalf("expected circuit_state metric in output, got:\n%s", body)
	}
}

func TestRecordFallbackAttempt_LabelsByBackendAndOutcome(t *testing.T) {
	c := NewCollector()
	c.RecordFallbackAttempt("semantic_search", false)
	c.RecordFallbackAttempt("ai_agents", true)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	if !strings.Contains(body, `llm_gateway_fallback_attempts_total{backend="ai_agents",status="success"}`) {
		t.Fatalf("expected success-labeled fallback attempt metric, got:\n%s", body)
	}
	if !strings.Contains(body, `llm_gateway_fallback_attempts_total{backend="semantic_search",status="failure"}`) {
		t.Fatalf("expected failure-labeled fallback attempt metric, got:\n%s", body)
	}
}

func TestRecordToolExecution_AndRateLimitRejection(t *testing.T) {
	c := NewCollector()
	c.RecordToolExecution("search", "success", 10*time.Millisecond)
	c.RecordRateLimitRejection("api-key-123")

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	if !strings.Contains(body, "llm_gateway_tool_executions_total") {
		t.Fatalf("expected tool_executions_total metric in output, got:\n%s", body)
	}
	if !strings.Contains(body, "llm_gateway_rate_limit_rejections_total") {
		t.Fatalf("expected rate_limit_rejections_total metric in output, got:\n%s", body)
	}
}
