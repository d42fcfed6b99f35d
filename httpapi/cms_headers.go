package httpapi

import (
	"net/http"
	"strconv"

	"github.com/kevin-toles/llm-gateway/message"
	"github.com/kevin-toles/llm-gateway/orchestrator"
)

// cmsTier classifies estimated context utilization into the four
// client-visible tiers: bypass, validate, optimize, plan (chunk).
type cmsTier int

const (
	tierBypass cmsTier = iota + 1
	tierValidate
	tierOptimize
	tierPlan
)

func tierForUtilization(utilization float64) cmsTier {
	switch {
	case utilization < 0.25:
		return tierBypass
	case utilization < 0.50:
		return tierValidate
	case utilization < 0.75:
		return tierOptimize
	default:
		return tierPlan
	}
}

// writeCMSHeaders computes and sets X-CMS-Routed, X-CMS-Tier,
// X-Token-Count, X-Token-Limit, and X-Headroom-Pct on every
// /v1/chat/completions response. Tier is always derived from the
// estimated-token/limit ratio so a client can observe headroom even when
// CMS proxying is disabled entirely.
func writeCMSHeaders(w http.ResponseWriter, model string, messages []message.Message, cmsEnabled bool, requestedMode string) {
	limit := orchestrator.ContextLimit(model)
	count := orchestrator.EstimateTokens(messages)

	utilization := 0.0
	if limit > 0 {
		utilization = float64(count) / float64(limit)
	}
	headroomPct := (1 - utilization) * 100
	if headroomPct < 0 {
		headroomPct = 0
	}

	routed := cmsEnabled && utilization >= orchestrator.SafetyMargin() && requestedMode != "none"

	w.Header().Set("X-CMS-Routed", strconv.FormatBool(routed))
	w.Header().Set("X-CMS-Tier", strconv.Itoa(int(tierForUtilization(utilization))))
	w.Header().Set("X-Token-Count", strconv.Itoa(count))
	w.Header().Set("X-Token-Limit", strconv.Itoa(limit))
	w.Header().Set("X-Headroom-Pct", strconv.FormatFloat(headroomPct, 'f', 1, 64))
}
