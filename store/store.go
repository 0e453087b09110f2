// Package store persists conversations keyed by the correspondent's
// WhatsApp id. Two implementations: an in-memory store for tests and
// single-process runs, and a gorm-backed store with granular updates.
package store

import (
	"context"
	"sync"

	"github.com/bytedance/sonic"

	"github.com/danielmdadu/leadagent/lead"
)

// Store loads and saves conversations. Get returns (nil, nil) for an id
// with no conversation yet.
type Store interface {
	Get(ctx context.Context, id string) (*lead.Conversation, error)
	Save(ctx context.Context, id string, c *lead.Conversation) error
	Delete(ctx context.Context, id string) error
}

// Memory keeps serialized conversations in a map. Serialization gives the
// same isolation a real backend would: callers never share record
// pointers across requests.
type Memory struct {
	mu   sync.Mutex
	data map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{data: map[string][]byte{}}
}

func (m *Memory) Get(_ context.Context, id string) (*lead.Conversation, error) {
	m.mu.Lock()
	raw, ok := m.data[id]
	m.mu.Unlock()
	if !ok {
		return nil, nil
	}
	var c lead.Conversation
	if err := sonic.Unmarshal(raw, &c); err != nil {
		return nil, err
	}
	if c.Record == nil {
		c.Record = lead.NewRecord()
	}
	if c.Record.MachineryDetails == nil {
		c.Record.MachineryDetails = map[string]string{}
	}
	return &c, nil
}

func (m *Memory) Save(_ context.Context, id string, c *lead.Conversation) error {
	raw, err := sonic.Marshal(c)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.data[id] = raw
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	delete(m.data, id)
	m.mu.Unlock()
	return nil
}
