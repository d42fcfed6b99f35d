package downstream

import (
	"context"
	"fmt"
)

// AIAgents proxies to the ai-agents service's task-specific run endpoints
// (code-review, architecture, doc-generate).
type AIAgents struct {
	*Client
}

// NewAIAgents constructs an ai-agents client.
func NewAIAgents(baseURL string) *AIAgents {
	return &AIAgents{Client: NewClient("ai-agents", baseURL, 0)}
}

// AgentTask names one of the ai-agents service's supported run endpoints.
type AgentTask string

const (
	TaskCodeReview   AgentTask = "code-review"
	TaskArchitecture AgentTask = "architecture"
	TaskDocGenerate  AgentTask = "doc-generate"
)

// AgentRequest is the payload for any task's run endpoint.
type AgentRequest struct {
	Code    string `json:"code"`
	Language string `json:"language,omitempty"`
	Context string `json:"context,omitempty"`
	Format  string `json:"format,omitempty"`
}

// AgentResponse is the task-agnostic envelope every run endpoint returns;
// Result's shape varies per task and is left as a generic map.
type AgentResponse struct {
	Status  string                 `json:"status"`
	Result  map[string]interface{} `json:"result"`
	Message string                 `json:"message"`
}

// Run invokes task's run endpoint with req.
func (a *AIAgents) Run(ctx context.Context, task AgentTask, req AgentRequest) (*AgentResponse, error) {
	if req.Language == "" {
		req.Language = "python"
	}
	if req.Format == "" {
		req.Format = "markdown"
	}
	var resp AgentResponse
	path := fmt.Sprintf("/v1/agents/%s/run", task)
	if err := a.postJSON(ctx, path, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
