package orchestrator

import "context"

// CostTracker records token usage per completion for downstream cost
// accounting. The orchestrator calls it once per terminal response; it
// never blocks completion on a tracker failure.
type CostTracker interface {
	Record(ctx context.Context, provider, model string, promptTokens, completionTokens int)
}

// NoopCostTracker discards every record. It is the default when the
// gateway is wired without a cost tracking backend.
type NoopCostTracker struct{}

func (NoopCostTracker) Record(ctx context.Context, provider, model string, promptTokens, completionTokens int) {
}
