// Package session persists conversations keyed by UUID with a TTL, backed
// by Redis.
package session

import (
	"time"

	"github.com/kevin-toles/llm-gateway/message"
)

// Session is a single persisted conversation.
type Session struct {
	ID        string            `json:"id"`
	Messages  []message.Message `json:"messages"`
	Context   map[string]string `json:"context,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}
