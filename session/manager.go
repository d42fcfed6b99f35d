package session

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/kevin-toles/llm-gateway/message"
)

// Manager is the stateless facade the HTTP layer and orchestrator use to
// manipulate sessions; all state lives in the underlying Store.
type Manager struct {
	store Store
	ttl   time.Duration
}

// NewManager constructs a Manager. ttl is applied to every Save.
func NewManager(store Store, ttl time.Duration) *Manager {
	return &Manager{store: store, ttl: ttl}
}

// TTL returns the duration applied to every Save, so callers that surface
// a session's expiry (e.g. the HTTP layer) don't need to track it
// separately.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Create starts a new, empty session with a fresh UUID.
func (m *Manager) Create(ctx context.Context) (*Session, error) {
	now := time.Now()
	s := &Session{
		ID:        uuid.New().String(),
		Messages:  []message.Message{},
		Context:   map[string]string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.store.Save(ctx, s, m.ttl); err != nil {
		return nil, err
	}
	return s, nil
}

// Get loads a session by id. Returns a gwerrors KindSessionMissing error if
// it does not exist or has expired.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	return m.store.Load(ctx, id)
}

// Delete removes a session. Idempotent.
func (m *Manager) Delete(ctx context.Context, id string) error {
	return m.store.Delete(ctx, id)
}

// GetHistory returns the session's message list. A missing or expired
// session yields the store's KindSessionMissing error.
func (m *Manager) GetHistory(ctx context.Context, id string) ([]message.Message, error) {
	s, err := m.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.Messages, nil
}

// ClearHistory empties a session's message list without deleting the
// session itself.
func (m *Manager) ClearHistory(ctx context.Context, id string) error {
	s, err := m.store.Load(ctx, id)
	if err != nil {
		return err
	}
	s.Messages = []message.Message{}
	s.UpdatedAt = time.Now()
	return m.store.Save(ctx, s, m.ttl)
}

// UpdateContext merges the given key-value pairs into the session's
// context map.
func (m *Manager) UpdateContext(ctx context.Context, id string, updates map[string]string) error {
	s, err := m.store.Load(ctx, id)
	if err != nil {
		return err
	}
	if s.Context == nil {
		s.Context = map[string]string{}
	}
	for k, v := range updates {
		s.Context[k] = v
	}
	s.UpdatedAt = time.Now()
	return m.store.Save(ctx, s, m.ttl)
}

// AddMessage appends a single message to the session's history.
func (m *Manager) AddMessage(ctx context.Context, id string, msg message.Message) error {
	s, err := m.store.Load(ctx, id)
	if err != nil {
		return err
	}
	s.Messages = append(s.Messages, msg)
	s.UpdatedAt = time.Now()
	return m.store.Save(ctx, s, m.ttl)
}

// PersistTurn implements the session-persistence rule: given the full
// accumulated message list built up over one orchestrator run (original
// request messages plus every message generated during the tool-call
// loop) and the final assistant response, it locates the index of the
// first message matching requestMessages[0] by (role, content) and
// appends every message from that index onward, followed by the final
// response, to the session.
//
// This correctly captures tool-call and tool-result messages that did not
// exist in the original request, without requiring the caller to track
// which messages are "new" separately.
func (m *Manager) PersistTurn(ctx context.Context, id string, requestMessages, accumulated []message.Message, final message.Message) error {
	s, err := m.store.Load(ctx, id)
	if err != nil {
		return err
	}

	historyCount := 0
	if len(requestMessages) > 0 {
		first := requestMessages[0]
		for i, msg := range accumulated {
			if message.SameTurn(msg, first) {
				historyCount = i
				break
			}
		}
	}

	s.Messages = append(s.Messages, accumulated[historyCount:]...)
	s.Messages = append(s.Messages, final)
	s.UpdatedAt = time.Now()
	return m.store.Save(ctx, s, m.ttl)
}
