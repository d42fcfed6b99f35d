package downstream

import "context"

// CMS proxies to the Context Management Service's compression/chunking
// endpoint. The orchestrator's primary compression strategy calls Process
// before falling back to its own truncation logic.
type CMS struct {
	*Client
}

// NewCMS constructs a CMS client.
func NewCMS(baseURL string) *CMS {
	return &CMS{Client: NewClient("cms", baseURL, 0)}
}

type processRequest struct {
	Text  string `json:"text"`
	Model string `json:"model"`
}

// ProcessResult is CMS's response: either a single optimized_text or a
// sequence of chunks, never both populated meaningfully. An empty
// OptimizedText with no Chunks is treated by the caller as a CMS failure
// signal, not a valid (if vacuous) compression.
type ProcessResult struct {
	OptimizedText string   `json:"optimized_text"`
	Chunks        []string `json:"chunks"`
}

// Process asks CMS to compress or chunk text for the given model's context
// window.
func (c *CMS) Process(ctx context.Context, text, model string) (*ProcessResult, error) {
	var resp ProcessResult
	if err := c.postJSON(ctx, "/v1/process", processRequest{Text: text, Model: model}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LastChunk returns the most recent chunk when CMS responded with a
// chunked result, per the "use chunks[-1]" rule.
func (r *ProcessResult) LastChunk() string {
	if len(r.Chunks) == 0 {
		return ""
	}
	return r.Chunks[len(r.Chunks)-1]
}

// Empty reports whether CMS's result carries neither optimized text nor
// chunks — the orchestrator's Open Question (iii) resolution treats this
// as a CMS failure signal rather than a valid empty compression.
func (r *ProcessResult) Empty() bool {
	return r.OptimizedText == "" && len(r.Chunks) == 0
}
